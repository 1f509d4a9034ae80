// Package checkpoint persists the ask-once verdict map across runs
package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/models"
)

// DefaultFlushEvery is how many puts may accumulate before an automatic flush.
const DefaultFlushEvery = 20

// Store owns the on-disk checkpoint file. A single run owns its file
// exclusively; there is no cross-process coordination.
type Store struct {
	path       string
	flushEvery int
	logger     ectologger.Logger

	state   *models.Checkpoint
	pending int
}

// New creates a store for the given checkpoint path.
func New(path string, flushEvery int, logger ectologger.Logger) *Store {
	if flushEvery <= 0 {
		flushEvery = DefaultFlushEvery
	}
	return &Store{
		path:       path,
		flushEvery: flushEvery,
		logger:     logger,
		state:      models.NewCheckpoint(),
	}
}

// Load reads the checkpoint from disk. A missing file is a fresh run,
// not an error.
func (s *Store) Load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.logger.WithFields(map[string]any{"path": s.path}).Info("No checkpoint found, starting fresh")
			return nil
		}
		return fmt.Errorf("failed to read checkpoint: %w", err)
	}

	var cp models.Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return fmt.Errorf("failed to parse checkpoint: %w", err)
	}
	if cp.Verdicts == nil {
		cp.Verdicts = make(map[string]models.Verdict)
	}
	s.state = &cp

	s.logger.WithFields(map[string]any{
		"path":     s.path,
		"verdicts": len(cp.Verdicts),
	}).Info("Loaded checkpoint")
	return nil
}

// Get returns the stored verdict for a pair key, if any.
func (s *Store) Get(key string) (models.Verdict, bool) {
	v, ok := s.state.Verdicts[key]
	return v, ok
}

// Put records a verdict. The first write for a key wins; later puts
// for the same key are ignored (ask-once). Flushes automatically every
// flushEvery accepted puts.
func (s *Store) Put(verdict models.Verdict) error {
	if _, exists := s.state.Verdicts[verdict.PairKey]; exists {
		return nil
	}
	if verdict.CreatedAt.IsZero() {
		verdict.CreatedAt = time.Now().UTC()
	}

	s.state.Verdicts[verdict.PairKey] = verdict
	s.state.LastProcessedKey = verdict.PairKey
	s.state.Counters.PairsProcessed++
	switch verdict.Source {
	case models.VerdictSourceOracle:
		s.state.Counters.OracleVerdicts++
	default:
		s.state.Counters.RuleVerdicts++
	}

	s.pending++
	if s.pending >= s.flushEvery {
		return s.Flush()
	}
	return nil
}

// PutAll records a batch of verdicts, flushing at most once.
func (s *Store) PutAll(verdicts []models.Verdict) error {
	for _, v := range verdicts {
		if _, exists := s.state.Verdicts[v.PairKey]; exists {
			continue
		}
		if v.CreatedAt.IsZero() {
			v.CreatedAt = time.Now().UTC()
		}
		s.state.Verdicts[v.PairKey] = v
		s.state.LastProcessedKey = v.PairKey
		s.state.Counters.PairsProcessed++
		if v.Source == models.VerdictSourceOracle {
			s.state.Counters.OracleVerdicts++
		} else {
			s.state.Counters.RuleVerdicts++
		}
		s.pending++
	}
	if s.pending >= s.flushEvery {
		return s.Flush()
	}
	return nil
}

// CountFallback bumps the fallback counter for diagnostics.
func (s *Store) CountFallback() {
	s.state.Counters.Fallbacks++
}

// SetInputFingerprint records the fingerprint of the input set the
// checkpoint was built against.
func (s *Store) SetInputFingerprint(fp string) {
	s.state.InputFingerprint = fp
}

// InputFingerprint returns the recorded input fingerprint.
func (s *Store) InputFingerprint() string {
	return s.state.InputFingerprint
}

// Len returns the number of stored verdicts.
func (s *Store) Len() int {
	return len(s.state.Verdicts)
}

// Verdicts returns the current verdict map. Callers must not mutate it.
func (s *Store) Verdicts() map[string]models.Verdict {
	return s.state.Verdicts
}

// Counters returns the aggregate run counters.
func (s *Store) Counters() models.CheckpointCounters {
	return s.state.Counters
}

// Flush writes the checkpoint atomically (temp file + rename).
func (s *Store) Flush() error {
	s.state.UpdatedAt = time.Now().UTC()

	data, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".checkpoint-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create checkpoint temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close checkpoint temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace checkpoint: %w", err)
	}

	s.pending = 0
	s.logger.WithFields(map[string]any{
		"path":     s.path,
		"verdicts": len(s.state.Verdicts),
	}).Debug("Flushed checkpoint")
	return nil
}
