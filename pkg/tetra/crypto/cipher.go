package crypto

import (
	"fmt"
	"math/bits"
	"sync"
)

type Algorithm string

const (
	TEA1 Algorithm = "TEA1"
	TEA2 Algorithm = "TEA2"
	TEA3 Algorithm = "TEA3"

	// Bypass treats the ciphertext as clear.
	Bypass Algorithm = "none"
)

// AlgorithmForMode maps the 2-bit encryption mode of a RESOURCE PDU to the
// algorithm it hints at. Mode 0 hints at nothing.
func AlgorithmForMode(mode int) (Algorithm, bool) {
	switch mode {
	case 1:
		return TEA1, true
	case 2:
		return TEA2, true
	case 3:
		return TEA3, true
	}
	return "", false
}

// KeystreamGenerator produces the keystream XORed over a payload.
type KeystreamGenerator interface {
	Algorithm() Algorithm
	Keystream(key []byte, iv uint32, n int) ([]byte, error)
}

type KeyLengthError struct {
	Algorithm Algorithm
	Length    int
}

func (e *KeyLengthError) Error() string {
	return fmt.Sprintf("%s: unsupported key length %d", e.Algorithm, e.Length)
}

// RegisterGenerator and Generator keep one KeystreamGenerator per
// algorithm. The built-in generators are keyed nonlinear shift registers
// with the key sizes of the TEA family; they are not the air-interface
// algorithms, which can be registered in their place.
var (
	generatorsMu sync.RWMutex
	generators   = map[Algorithm]KeystreamGenerator{}
)

func RegisterGenerator(g KeystreamGenerator) {
	generatorsMu.Lock()
	defer generatorsMu.Unlock()
	generators[g.Algorithm()] = g
}

func Generator(a Algorithm) (KeystreamGenerator, bool) {
	generatorsMu.RLock()
	defer generatorsMu.RUnlock()
	g, ok := generators[a]
	return g, ok
}

func init() {
	RegisterGenerator(newShiftRegister(TEA1, 10, 12, 0x9e3779b97f4a7c15, 167, 29, 3))
	RegisterGenerator(newShiftRegister(TEA2, 10, 18, 0xc2b2ae3d27d4eb4f, 89, 113, 5))
	RegisterGenerator(newShiftRegister(TEA3, 10, 18, 0x165667b19e3779f9, 201, 7, 1))
}

// shiftRegister clocks a 64-bit register one byte at a time. Each clock
// feeds back a key byte through a substitution box.
type shiftRegister struct {
	algorithm Algorithm
	minKey    int
	maxKey    int
	constant  uint64
	sbox      [256]byte
	warmup    int
}

func newShiftRegister(a Algorithm, minKey, maxKey int, constant uint64, mul, add byte, rot int) *shiftRegister {
	g := &shiftRegister{
		algorithm: a,
		minKey:    minKey,
		maxKey:    maxKey,
		constant:  constant,
		warmup:    32,
	}
	for i := range g.sbox {
		g.sbox[i] = bits.RotateLeft8(byte(i)*mul+add, rot)
	}
	return g
}

func (g *shiftRegister) Algorithm() Algorithm {
	return g.algorithm
}

func (g *shiftRegister) Keystream(key []byte, iv uint32, n int) ([]byte, error) {
	if len(key) < g.minKey || len(key) > g.maxKey {
		return nil, &KeyLengthError{Algorithm: g.algorithm, Length: len(key)}
	}
	reg := (uint64(iv)<<32 | uint64(^iv)) ^ g.constant
	out := make([]byte, n)
	for i := 0; i < g.warmup+n; i++ {
		k := key[i%len(key)]
		fb := g.sbox[byte(reg>>56)^k] ^ byte(reg>>29) ^ byte(reg>>13)
		reg = reg<<8 | uint64(fb)
		if i >= g.warmup {
			out[i-g.warmup] = byte(reg>>40) ^ g.sbox[byte(reg>>16)]
		}
	}
	return out, nil
}

// XORKeystream returns data XORed with the keystream for (a, key, iv).
// Encryption and decryption are the same operation.
func XORKeystream(a Algorithm, key []byte, iv uint32, data []byte) ([]byte, error) {
	out := make([]byte, len(data))
	if a == Bypass {
		copy(out, data)
		return out, nil
	}
	g, ok := Generator(a)
	if !ok {
		return nil, fmt.Errorf("no keystream generator for %s", a)
	}
	ks, err := g.Keystream(key, iv, len(data))
	if err != nil {
		return nil, err
	}
	for i := range data {
		out[i] = data[i] ^ ks[i]
	}
	return out, nil
}
