package crypto

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/norasector/tetramon/pkg/tetra/sds"
)

const DefaultMinScore = 50

// Result is a successful decryption. It is not modified after Decrypt
// returns.
type Result struct {
	Plaintext []byte
	Score     float64
	Candidate Candidate
	Tried     int
}

// DecryptionFailure is returned when no candidate reached the minimum
// score. Ciphertext is the unmodified input.
type DecryptionFailure struct {
	Tried         int
	BestScore     float64
	BestCandidate Candidate
	Ciphertext    []byte
}

func (e *DecryptionFailure) Error() string {
	return fmt.Sprintf("decryption failed after %d candidates (best %.1f with %s)", e.Tried, e.BestScore, e.BestCandidate)
}

// Engine tries every candidate key against a ciphertext and keeps the most
// plausible plaintext.
type Engine struct {
	configured []Candidate
	defaults   bool
	bypass     bool
	minScore   float64
	workers    int
	scorer     *Scorer
	logger     zerolog.Logger
}

type EngineOption func(e *Engine) error

func WithKeys(candidates ...Candidate) EngineOption {
	return func(e *Engine) error {
		for _, c := range candidates {
			if c.Algorithm == Bypass {
				continue
			}
			if _, ok := Generator(c.Algorithm); !ok {
				return fmt.Errorf("key %s: no generator for %s", c, c.Algorithm)
			}
		}
		e.configured = append(e.configured, candidates...)
		return nil
	}
}

func WithMinScore(score float64) EngineOption {
	return func(e *Engine) error {
		if score < 0 || score > MaxScore {
			return fmt.Errorf("min score %v outside [0, %d]", score, MaxScore)
		}
		e.minScore = score
		return nil
	}
}

func WithWorkers(n int) EngineOption {
	return func(e *Engine) error {
		if n > 0 {
			e.workers = n
		}
		return nil
	}
}

// WithDefaultKeys enables trying the built-in well-known keys.
func WithDefaultKeys(enabled bool) EngineOption {
	return func(e *Engine) error {
		e.defaults = enabled
		return nil
	}
}

// WithBypass adds the treat-as-clear candidate.
func WithBypass(enabled bool) EngineOption {
	return func(e *Engine) error {
		e.bypass = enabled
		return nil
	}
}

func WithScorer(s *Scorer) EngineOption {
	return func(e *Engine) error {
		e.scorer = s
		return nil
	}
}

func WithLogger(logger zerolog.Logger) EngineOption {
	return func(e *Engine) error {
		e.logger = logger
		return nil
	}
}

func NewEngine(opts ...EngineOption) (*Engine, error) {
	e := &Engine{
		defaults: true,
		bypass:   true,
		minScore: DefaultMinScore,
		workers:  runtime.NumCPU(),
		scorer:   NewScorer(sds.DefaultPrefixes()),
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Candidates lists, in trial order, the keys tried for a given encryption
// mode.
func (e *Engine) Candidates(mode int) []Candidate {
	hint, _ := AlgorithmForMode(mode)
	return BuildCandidates(e.configured, hint, e.defaults, e.bypass)
}

type trial struct {
	done      bool
	plaintext []byte
	score     float64
}

// Decrypt runs every candidate for mode on a bounded worker pool. The
// highest score at or above the minimum wins, the earliest candidate on a
// tie. A MaxScore result stops trials of later candidates.
func (e *Engine) Decrypt(ctx context.Context, ciphertext []byte, mode int, iv uint32) (*Result, error) {
	candidates := e.Candidates(mode)
	trials := make([]trial, len(candidates))

	var stopAfter atomic.Int64
	stopAfter.Store(int64(len(candidates)))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(e.workers)
	for i := range candidates {
		i := i
		if int64(i) > stopAfter.Load() {
			break
		}
		eg.Go(func() error {
			if egCtx.Err() != nil {
				return egCtx.Err()
			}
			if int64(i) > stopAfter.Load() {
				return nil
			}
			c := candidates[i]
			plaintext, err := XORKeystream(c.Algorithm, c.Key, iv, ciphertext)
			if err != nil {
				e.logger.Debug().Err(err).Str("candidate", c.String()).Int("key_len", len(c.Key)).Msg("candidate skipped")
				return nil
			}
			score := e.scorer.Score(plaintext)
			trials[i] = trial{done: true, plaintext: plaintext, score: score}
			if score >= MaxScore {
				for {
					cur := stopAfter.Load()
					if int64(i) >= cur || stopAfter.CompareAndSwap(cur, int64(i)) {
						break
					}
				}
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	best, tried := -1, 0
	for i, t := range trials {
		if !t.done {
			continue
		}
		tried++
		if best < 0 || t.score > trials[best].score {
			best = i
		}
	}
	if best < 0 {
		return nil, &DecryptionFailure{Tried: tried, Ciphertext: ciphertext}
	}
	if trials[best].score < e.minScore {
		return nil, &DecryptionFailure{
			Tried:         tried,
			BestScore:     trials[best].score,
			BestCandidate: candidates[best],
			Ciphertext:    ciphertext,
		}
	}
	e.logger.Debug().Str("candidate", candidates[best].String()).Float64("score", trials[best].score).Int("tried", tried).Msg("decrypted")
	return &Result{
		Plaintext: trials[best].plaintext,
		Score:     trials[best].score,
		Candidate: candidates[best],
		Tried:     tried,
	}, nil
}
