package coordinator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/surrealdb/surrealshift/pkg/logger"
	"github.com/surrealdb/surrealshift/pkg/migration"
	"github.com/surrealdb/surrealshift/pkg/models"
	"github.com/surrealdb/surrealshift/pkg/store"
)

// Outcome is how the reconciler settled one journal entry.
type Outcome string

const (
	// OutcomeConsistent means both stores already agreed.
	OutcomeConsistent Outcome = "consistent"
	// OutcomeRestored means the primary was put back to its prior state and
	// the secondary brought in line with it.
	OutcomeRestored Outcome = "restored"
)

// SweepResult counts the entries a sweep handled.
type SweepResult struct {
	Examined   int `json:"examined"`
	Consistent int `json:"consistent"`
	Restored   int `json:"restored"`
	Failed     int `json:"failed"`
}

// DefaultGrace is how old a pending entry must be before a sweep touches
// it. A younger entry may belong to a dual write whose secondary half is
// still in flight.
const DefaultGrace = time.Minute

// Reconciler settles compensation journal entries left pending when a dual
// write's rollback failed or the process stopped between the two writes.
type Reconciler struct {
	journal migration.Journal
	set     *Set
	grace   time.Duration
	logger  zerolog.Logger
}

// ReconcilerOption configures a Reconciler.
type ReconcilerOption func(*Reconciler)

// WithGrace sets the minimum age of the entries a sweep settles. Zero or
// less makes every pending entry eligible, which is only safe while no
// writes are running.
func WithGrace(d time.Duration) ReconcilerOption {
	return func(r *Reconciler) { r.grace = d }
}

func NewReconciler(j migration.Journal, set *Set, l zerolog.Logger, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		journal: j,
		set:     set,
		grace:   DefaultGrace,
		logger:  logger.WithComponent(l, "reconciler"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Sweep handles every pending entry older than the grace period once.
// Entries that cannot be settled stay pending with the failure noted, and
// are retried by the next sweep.
func (r *Reconciler) Sweep(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	var cutoff time.Time
	if r.grace > 0 {
		cutoff = time.Now().Add(-r.grace)
	}
	pending, err := r.journal.Pending(ctx, cutoff)
	if err != nil {
		return res, fmt.Errorf("load pending compensations: %w", err)
	}

	for _, c := range pending {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Examined++
		l := r.logger.With().
			Str("compensation_id", c.ID).
			Str("correlation_id", c.CorrelationID).
			Str("entity", c.EntityType).
			Str("entity_id", c.EntityID).
			Str("change", string(c.Operation)).
			Logger()

		outcome, err := r.settle(ctx, c)
		if err != nil {
			res.Failed++
			compensations.WithLabelValues(c.EntityType, "failed").Inc()
			l.Error().Err(err).Msg("compensation failed")
			if ferr := r.journal.Fail(ctx, c.ID, err.Error()); ferr != nil {
				l.Warn().Err(ferr).Msg("recording compensation failure failed")
			}
			continue
		}
		if err := r.journal.Resolve(ctx, c.ID); err != nil {
			res.Failed++
			l.Error().Err(err).Msg("resolving compensation failed")
			continue
		}

		compensations.WithLabelValues(c.EntityType, string(outcome)).Inc()
		switch outcome {
		case OutcomeConsistent:
			res.Consistent++
		case OutcomeRestored:
			res.Restored++
		}
		l.Info().Str("outcome", string(outcome)).Msg("compensation resolved")
	}

	if res.Examined > 0 {
		r.logger.Info().
			Int("examined", res.Examined).
			Int("consistent", res.Consistent).
			Int("restored", res.Restored).
			Int("failed", res.Failed).
			Msg("reconciliation sweep complete")
	}
	return res, nil
}

func (r *Reconciler) settle(ctx context.Context, c *models.Compensation) (Outcome, error) {
	e, ok := r.set.compensator(c.EntityType)
	if !ok {
		return "", fmt.Errorf("no coordinator for entity type %q", c.EntityType)
	}
	return e.compensate(ctx, c)
}

// Run sweeps every interval until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.Sweep(ctx); err != nil && !errors.Is(err, context.Canceled) {
				r.logger.Error().Err(err).Msg("reconciliation sweep failed")
			}
		}
	}
}

func (e *entity[T, K]) compensate(ctx context.Context, c *models.Compensation) (Outcome, error) {
	id, err := e.repo.parse(c.EntityID)
	if err != nil {
		return "", err
	}
	p, err := e.repo.get(e.primary, ctx, id)
	if err != nil {
		return "", fmt.Errorf("read primary: %w", err)
	}
	s, err := e.repo.get(e.secondary, ctx, id)
	if err != nil {
		return "", fmt.Errorf("read secondary: %w", err)
	}
	if e.agree(p, s) {
		return OutcomeConsistent, nil
	}

	if err := e.restorePrimary(ctx, c, id, p); err != nil {
		return "", fmt.Errorf("restore primary: %w", err)
	}
	if err := e.mirror(ctx, id); err != nil {
		return "", fmt.Errorf("mirror secondary: %w", err)
	}
	return OutcomeRestored, nil
}

// restorePrimary puts the primary back to the state recorded before the
// write: absent for creates, the prior snapshot otherwise.
func (e *entity[T, K]) restorePrimary(ctx context.Context, c *models.Compensation, id K, current *T) error {
	if c.Operation == models.ChangeOperationCreate {
		if current == nil {
			return nil
		}
		return e.repo.remove(e.primary, ctx, id)
	}

	if len(c.Prior) == 0 {
		return fmt.Errorf("%s compensation %s has no prior state", c.Operation, c.ID)
	}
	prior := new(T)
	if err := c.Prior.Decode(prior); err != nil {
		return fmt.Errorf("decode prior state: %w", err)
	}
	if current == nil {
		return e.repo.create(e.primary, ctx, prior)
	}
	return e.repo.update(e.primary, ctx, prior)
}

// mirror makes the secondary match the primary for one record.
func (e *entity[T, K]) mirror(ctx context.Context, id K) error {
	p, err := e.repo.get(e.primary, ctx, id)
	if err != nil {
		return err
	}
	if p == nil {
		err := e.repo.remove(e.secondary, ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}
	_, err = e.upsert(ctx, e.secondary, p)
	return err
}
