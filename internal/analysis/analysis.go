// Package analysis hands completed response sets to the analysis
// generator. Hand-offs are written to an outbox in the completing commit;
// the Dispatcher delivers them and retries failures.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/abhisek/vitalq/internal/assessment"
	"github.com/abhisek/vitalq/internal/logging"
	"github.com/abhisek/vitalq/internal/store"
)

const (
	// DefaultMaxAttempts bounds redelivery of a failing hand-off.
	DefaultMaxAttempts = 5
	// DefaultClaimLease is how long a delivery claim keeps other
	// deliverers away. An older claim is taken to belong to a process that
	// died mid-delivery.
	DefaultClaimLease = 5 * time.Minute
)

// Generator consumes one completed response set.
type Generator interface {
	Generate(ctx context.Context, h assessment.Handoff) error
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, h assessment.Handoff) error

func (f GeneratorFunc) Generate(ctx context.Context, h assessment.Handoff) error {
	return f(ctx, h)
}

// Outbox tracks hand-off delivery. ClaimHandoff must be atomic so that
// only one deliverer runs the generator for a hand-off.
type Outbox interface {
	PendingHandoffs(ctx context.Context, limit int) ([]store.PendingHandoff, error)
	ClaimHandoff(ctx context.Context, assessmentID string, at, staleBefore time.Time) (bool, error)
	MarkHandoffDelivered(ctx context.Context, assessmentID string, at time.Time) error
	MarkHandoffFailed(ctx context.Context, assessmentID string, cause error) error
}

// Dispatcher delivers hand-offs to a Generator and records the outcome in
// the outbox. It implements assessment.HandoffSink.
type Dispatcher struct {
	outbox      Outbox
	gen         Generator
	log         *slog.Logger
	now         func() time.Time
	maxAttempts int
	lease       time.Duration
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.log = l }
}

// WithMaxAttempts sets how many deliveries Flush tries per hand-off.
func WithMaxAttempts(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.maxAttempts = n
		}
	}
}

// WithClaimLease sets how long a delivery claim blocks other deliverers.
func WithClaimLease(d time.Duration) Option {
	return func(disp *Dispatcher) {
		if d > 0 {
			disp.lease = d
		}
	}
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(outbox Outbox, gen Generator, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		outbox:      outbox,
		gen:         gen,
		log:         logging.NewNop(),
		now:         time.Now,
		maxAttempts: DefaultMaxAttempts,
		lease:       DefaultClaimLease,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Deliver claims h in the outbox, runs the generator and records the
// result. A hand-off claimed elsewhere or already delivered is left alone.
func (d *Dispatcher) Deliver(ctx context.Context, h assessment.Handoff) error {
	_, err := d.deliver(ctx, h)
	return err
}

func (d *Dispatcher) deliver(ctx context.Context, h assessment.Handoff) (bool, error) {
	now := d.now().UTC()
	claimed, err := d.outbox.ClaimHandoff(ctx, h.AssessmentID, now, now.Add(-d.lease))
	if err != nil {
		return false, fmt.Errorf("claim hand-off %s: %w", h.AssessmentID, err)
	}
	if !claimed {
		d.log.Debug("hand-off claimed elsewhere or delivered", "assessment_id", h.AssessmentID)
		return false, nil
	}

	if err := d.gen.Generate(ctx, h); err != nil {
		if markErr := d.outbox.MarkHandoffFailed(ctx, h.AssessmentID, err); markErr != nil {
			d.log.Warn("failed to record hand-off failure", "assessment_id", h.AssessmentID, "err", markErr)
		}
		return false, fmt.Errorf("generate analysis for %s: %w", h.AssessmentID, err)
	}
	if err := d.outbox.MarkHandoffDelivered(ctx, h.AssessmentID, d.now().UTC()); err != nil {
		return false, fmt.Errorf("mark hand-off delivered: %w", err)
	}
	d.log.Info("analysis hand-off delivered",
		"assessment_id", h.AssessmentID, "responses", len(h.Responses))
	return true, nil
}

// Flush redelivers pending hand-offs that have attempts left. It returns
// how many were delivered; individual failures are logged, not returned.
func (d *Dispatcher) Flush(ctx context.Context) (int, error) {
	pending, err := d.outbox.PendingHandoffs(ctx, 0)
	if err != nil {
		return 0, err
	}
	delivered := 0
	for _, p := range pending {
		if p.Attempts >= d.maxAttempts {
			continue
		}
		if err := ctx.Err(); err != nil {
			return delivered, err
		}
		ok, err := d.deliver(ctx, p.Handoff)
		if err != nil {
			d.log.Warn("hand-off redelivery failed",
				"assessment_id", p.Handoff.AssessmentID, "attempt", p.Attempts+1, "err", err)
			continue
		}
		if ok {
			delivered++
		}
	}
	return delivered, nil
}

// Run flushes the outbox every interval until ctx is done. A non-positive
// interval disables redelivery.
func (d *Dispatcher) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := d.Flush(ctx); err != nil && ctx.Err() == nil {
				d.log.Warn("outbox flush failed", "err", err)
			}
		}
	}
}

// LogGenerator logs a one-line summary of each hand-off.
type LogGenerator struct {
	Log *slog.Logger
}

func (g LogGenerator) Generate(_ context.Context, h assessment.Handoff) error {
	g.Log.Info("assessment ready for analysis",
		"assessment_id", h.AssessmentID,
		"client_ref", h.ClientRef,
		"answered", h.Summary.Answered,
		"skipped", h.Summary.Skipped,
		"weighted_score", h.Summary.WeightedScore)
	return nil
}

// JSONGenerator writes each hand-off as one JSON line.
type JSONGenerator struct {
	mu sync.Mutex
	w  io.Writer
}

// NewJSONGenerator creates a JSONGenerator writing to w.
func NewJSONGenerator(w io.Writer) *JSONGenerator {
	return &JSONGenerator{w: w}
}

func (g *JSONGenerator) Generate(_ context.Context, h assessment.Handoff) error {
	b, err := json.Marshal(h)
	if err != nil {
		return fmt.Errorf("encode hand-off: %w", err)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, err := g.w.Write(append(b, '\n')); err != nil {
		return fmt.Errorf("write hand-off: %w", err)
	}
	return nil
}

// Multi runs every generator in order and stops at the first error. When
// the hand-off is redelivered, generators that already succeeded for it
// are not run again.
func Multi(gens ...Generator) Generator {
	return &multi{gens: gens, done: make(map[string]int)}
}

type multi struct {
	gens []Generator

	mu   sync.Mutex
	done map[string]int // assessment id -> generators that succeeded
}

func (m *multi) Generate(ctx context.Context, h assessment.Handoff) error {
	m.mu.Lock()
	start := m.done[h.AssessmentID]
	m.mu.Unlock()

	for i := start; i < len(m.gens); i++ {
		if err := m.gens[i].Generate(ctx, h); err != nil {
			m.mu.Lock()
			m.done[h.AssessmentID] = i
			m.mu.Unlock()
			return err
		}
	}
	m.mu.Lock()
	delete(m.done, h.AssessmentID)
	m.mu.Unlock()
	return nil
}
