package crypto

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Candidate is one (algorithm, key) pair to try.
type Candidate struct {
	Algorithm Algorithm
	Key       []byte
	Label     string
}

func (c Candidate) String() string {
	if c.Label != "" {
		return c.Label
	}
	if c.Algorithm == Bypass {
		return "bypass"
	}
	return fmt.Sprintf("%s/%d", c.Algorithm, len(c.Key)*8)
}

// ParseCandidate builds a candidate from an algorithm name and a hex key.
func ParseCandidate(algorithm, key, label string) (Candidate, error) {
	a := Algorithm(strings.ToUpper(strings.TrimSpace(algorithm)))
	if strings.EqualFold(algorithm, string(Bypass)) {
		return Candidate{Algorithm: Bypass, Label: label}, nil
	}
	if _, ok := Generator(a); !ok {
		return Candidate{}, fmt.Errorf("unknown algorithm %q", algorithm)
	}
	k, err := hex.DecodeString(strings.ReplaceAll(key, " ", ""))
	if err != nil {
		return Candidate{}, fmt.Errorf("key for %s: %w", label, err)
	}
	return Candidate{Algorithm: a, Key: k, Label: label}, nil
}

// well-known weak and factory keys, tried in this order
var defaultKeys = map[Algorithm][]string{
	TEA1: {
		"00000000000000000000",
		"FFFFFFFFFFFFFFFFFFFFFFFF",
		"0123456789ABCDEF0123",
		"FEDCBA9876543210FEDC",
		"1111111111111111111111",
		"AAAAAAAAAAAAAAAAAAAA",
		"5555555555555555555555",
		"0001020304050607080910",
		"1234567890ABCDEF1234",
		"DEADBEEFCAFEBABEFACE",
		"A0B1C2D3E4F506172839",
		"112233445566778899AA",
		"0F0F0F0F0F0F0F0F0F0F",
	},
	TEA2: {
		"00000000000000000000000000000000",
		"FFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFF",
		"0123456789ABCDEF0123456789ABCDEF",
		"FEDCBA9876543210FEDCBA9876543210",
		"11111111111111111111111111111111",
		"AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA",
		"55555555555555555555555555555555",
		"000102030405060708091011121314151617",
		"1234567890ABCDEF1234567890ABCDEF",
		"DEADBEEFCAFEBABEDEADBEEFCAFEBABE",
		"A0B1C2D3E4F5061728394A5B6C7D8E9F",
		"1122334455667788990011223344556677",
	},
	TEA3: {
		"00000000000000000000000000000000",
		"FFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFF",
	},
}

var algorithmOrder = []Algorithm{TEA1, TEA2, TEA3}

// crossTryLimit is how many defaults of the other algorithms are tried.
const crossTryLimit = 5

// DefaultCandidates returns the well-known keys for a.
func DefaultCandidates(a Algorithm) []Candidate {
	var out []Candidate
	for i, k := range defaultKeys[a] {
		key, _ := hex.DecodeString(k)
		out = append(out, Candidate{
			Algorithm: a,
			Key:       key,
			Label:     fmt.Sprintf("%s default %d", a, i),
		})
	}
	return out
}

// BuildCandidates orders configured keys, then defaults for the hinted
// algorithm, then bypass, then the first few defaults of every other
// algorithm. Without a hint all default lists are cross-tried.
func BuildCandidates(configured []Candidate, hint Algorithm, defaults, bypass bool) []Candidate {
	out := append([]Candidate(nil), configured...)
	if defaults && hint != "" {
		out = append(out, DefaultCandidates(hint)...)
	}
	if bypass {
		out = append(out, Candidate{Algorithm: Bypass, Label: "bypass"})
	}
	if defaults {
		for _, a := range algorithmOrder {
			if a == hint {
				continue
			}
			cands := DefaultCandidates(a)
			if len(cands) > crossTryLimit {
				cands = cands[:crossTryLimit]
			}
			for _, c := range cands {
				c.Label += " (cross)"
				out = append(out, c)
			}
		}
	}
	return out
}
