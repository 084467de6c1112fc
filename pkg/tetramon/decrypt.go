package tetramon

import (
	"errors"

	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/norasector/tetramon/pkg/tetra"
	"github.com/norasector/tetramon/pkg/tetra/crypto"
	"github.com/norasector/tetramon/pkg/util"
)

// decryptJob is a snapshot of a completed encrypted message. The
// reassembler no longer references ciphertext once the job is queued.
type decryptJob struct {
	record     *tetra.MessageRecord
	ciphertext []byte
	mode       int
	iv         uint32
}

type decryptResult struct {
	decryptJob
	result  *crypto.Result
	err     error
	elapsed int64
}

func (m *Monitor) decryptMessages() error {
	for job := range m.jobChan {
		var res *crypto.Result
		var err error
		elapsed := util.TimeOperationMicroseconds(func() {
			res, err = m.engine.Decrypt(m.ctx, job.ciphertext, job.mode, job.iv)
		})

		select {
		case <-m.ctx.Done():
			return m.ctx.Err()
		case m.resultChan <- decryptResult{decryptJob: job, result: res, err: err, elapsed: elapsed}:
		}
	}
	return nil
}

// processDecryptResults emits decrypted messages. It is the last stage to
// drain, so it ends the session's remaining goroutines when done.
func (m *Monitor) processDecryptResults() error {
	defer m.cancel()

	for r := range m.resultChan {
		rec := r.record
		hint, _ := crypto.AlgorithmForMode(r.mode)
		rec.Algorithm = string(hint)

		var failure *crypto.DecryptionFailure
		result := "ok"
		switch {
		case r.err == nil:
			rec.Decrypted = true
			rec.Algorithm = string(r.result.Candidate.Algorithm)
			rec.KeyLabel = r.result.Candidate.String()
			rec.Score = r.result.Score
			plaintext, _ := crypto.StripChecksum(r.result.Plaintext)
			m.decode(rec, plaintext)

			m.updateStats(func(s *tetra.Stats) { s.Decrypted++ })
			m.metrics.decryptScore.Observe(r.result.Score)
			m.logger.Info().
				Str("id", rec.ID).
				Str("algorithm", rec.Algorithm).
				Str("candidate", rec.KeyLabel).
				Int("key_len", len(r.result.Candidate.Key)).
				Float64("score", r.result.Score).
				Int("tried", r.result.Tried).
				Int64("elapsed_us", r.elapsed).
				Msg("decrypted message")

		case errors.As(r.err, &failure):
			result = "failed"
			rec.Score = failure.BestScore
			m.undecrypted(rec, failure.Ciphertext)

			m.updateStats(func(s *tetra.Stats) { s.DecryptFailures++ })
			m.logger.Warn().
				Str("id", rec.ID).
				Int("mode", r.mode).
				Int("tried", failure.Tried).
				Float64("best_score", failure.BestScore).
				Str("best_candidate", failure.BestCandidate.String()).
				Int("key_len", len(failure.BestCandidate.Key)).
				Msg("decryption failed")

		default:
			result = "aborted"
			m.undecrypted(rec, r.ciphertext)
			m.logger.Warn().Err(r.err).Str("id", rec.ID).Msg("decryption aborted")
		}

		m.metrics.decrypts.WithLabelValues(result, rec.Algorithm).Inc()
		go m.writeAPI.WritePoint(influxdb2.NewPoint("decrypt.result",
			map[string]string{
				"result":    result,
				"algorithm": rec.Algorithm,
			},
			map[string]interface{}{
				"score":      rec.Score,
				"bytes":      len(r.ciphertext),
				"elapsed_us": r.elapsed,
			}, rec.Timestamp))

		m.emitMessage(rec)
	}
	return nil
}
