// Package saga provides a small orchestrator for multi-write operations that
// must leave storage consistent even when a later write fails. The stock
// counters and the reservation ledger live in different rows, so the service
// pairs each counter mutation with a compensating action instead of relying
// on a cross-row transaction.
package saga

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Step is one unit of work. Undo reverses Execute and is invoked only when a
// later step fails; a nil Undo marks a step with no compensating action.
type Step struct {
	Name    string
	Execute func(ctx context.Context) error
	Undo    func(ctx context.Context) error
}

// Saga runs steps in order, compensating completed steps in reverse order on
// the first failure.
type Saga struct {
	name   string
	steps  []Step
	logger *zap.Logger
}

// New creates a saga orchestrator.
func New(name string, logger *zap.Logger) *Saga {
	return &Saga{name: name, logger: logger}
}

// Then appends a step and returns the saga for chaining.
func (s *Saga) Then(step Step) *Saga {
	s.steps = append(s.steps, step)
	return s
}

// Execute runs all steps. On failure it unwinds the completed steps and
// returns the original error; compensation failures are logged, not returned,
// since the original failure is what the caller must act on.
func (s *Saga) Execute(ctx context.Context) error {
	for i, step := range s.steps {
		if err := step.Execute(ctx); err != nil {
			s.unwind(ctx, i-1)
			return fmt.Errorf("%s: step %s: %w", s.name, step.Name, err)
		}
	}
	return nil
}

func (s *Saga) unwind(ctx context.Context, from int) {
	for i := from; i >= 0; i-- {
		step := s.steps[i]
		if step.Undo == nil {
			continue
		}
		s.logger.Warn("compensating saga step",
			zap.String("saga", s.name),
			zap.String("step", step.Name),
		)
		if err := step.Undo(ctx); err != nil {
			s.logger.Error("saga compensation failed",
				zap.String("saga", s.name),
				zap.String("step", step.Name),
				zap.Error(err),
			)
		}
	}
}
