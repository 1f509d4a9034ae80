// Package startup brings external dependencies up in registration order,
// retrying the whole sequence with fibonacci backoff until it succeeds or
// the attempt budget is spent.
package startup

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
)

// Dependency is one startable external resource, such as a database
// connection or a migration pass.
type Dependency interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Sequence starts dependencies in the order they were added and stops the
// ones that started in reverse order.
type Sequence struct {
	logger      ectologger.Logger
	maxAttempts int
	deps        []Dependency
	started     []Dependency
}

func New(logger ectologger.Logger, maxAttempts int) *Sequence {
	return &Sequence{
		logger:      logger,
		maxAttempts: maxAttempts,
	}
}

// Add registers a dependency. Order of registration is start order.
func (s *Sequence) Add(dep Dependency) {
	s.deps = append(s.deps, dep)
}

// Start brings every dependency up. A failed attempt keeps whatever already
// started and retries only the remainder after a fibonacci wait.
func (s *Sequence) Start(ctx context.Context) error {
	var lastErr error

	a, b := 1, 1
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		lastErr = s.startRemaining(ctx, attempt)
		if lastErr == nil {
			return nil
		}
		if attempt == s.maxAttempts {
			break
		}

		s.logger.Infof("Retrying startup in %d seconds (attempt %d/%d)", a, attempt, s.maxAttempts)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(a) * time.Second):
		}
		a, b = b, a+b
	}

	return fmt.Errorf("startup failed after %d attempts: %w", s.maxAttempts, lastErr)
}

func (s *Sequence) startRemaining(ctx context.Context, attempt int) error {
	for _, dep := range s.deps[len(s.started):] {
		s.logger.WithField("dependency", dep.Name()).Infof("Starting dependency '%s'", dep.Name())
		if err := dep.Start(ctx); err != nil {
			s.logger.WithError(err).WithField("dependency", dep.Name()).Errorf("Startup dependency '%s' attempt %d failed", dep.Name(), attempt)
			return err
		}
		s.started = append(s.started, dep)
	}
	return nil
}

// Stop shuts down started dependencies in reverse order. Every dependency
// gets a stop attempt even when an earlier one fails; the first error wins.
func (s *Sequence) Stop(ctx context.Context) error {
	var firstErr error
	for i := len(s.started) - 1; i >= 0; i-- {
		dep := s.started[i]
		s.logger.WithField("dependency", dep.Name()).Infof("Stopping dependency '%s'", dep.Name())
		if err := dep.Stop(ctx); err != nil {
			s.logger.WithError(err).WithField("dependency", dep.Name()).Errorf("Failed to stop dependency '%s'", dep.Name())
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	s.started = nil
	return firstErr
}
