package migration

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/surrealdb/surrealshift/pkg/logger"
	"github.com/surrealdb/surrealshift/pkg/models"
)

// Branch names the path a write took.
type Branch string

const (
	BranchPrimaryOnly Branch = "primary_only"
	BranchDualWrite   Branch = "dual_write"
	BranchTargetOnly  Branch = "target_only"
)

// WriteOperation bundles the closures for one logical write. It is built per
// call by an entity coordinator and never stored.
type WriteOperation[T any] struct {
	// Primary writes the source of record.
	Primary func(ctx context.Context) (T, error)
	// Secondary mirrors the write to the target, given the primary's result.
	Secondary func(ctx context.Context, primary T) (T, error)
	// TargetOnly writes the target alone in the phase-5 shape.
	TargetOnly func(ctx context.Context) (T, error)
	// Rollback undoes the primary write after the secondary failed.
	Rollback func(ctx context.Context, primary T) error

	// Undo describes the journal entry recorded before Secondary runs: the
	// kind of change the primary applied and its state before the write, nil
	// for creates. It is called after Primary succeeded. A nil Undo records a
	// create.
	Undo func(primary T) (models.ChangeOperation, any)
}

// WriteResult is the success envelope. Data is always the canonical value:
// the primary's result, or the target's in the target-only branch.
type WriteResult[T any] struct {
	Data          T
	CorrelationID string
	Branch        Branch
}

type WriterConfig[T any] struct {
	Registry   *Registry
	EntityType string
	// ExtractID names the record a result refers to, for errors and journal
	// entries.
	ExtractID func(T) string
	// Journal is optional; without one the rollback is the only compensation.
	Journal Journal
	Logger  zerolog.Logger
}

// DualWriter runs the subset of a WriteOperation that the current phase
// calls for.
type DualWriter[T any] struct {
	registry   *Registry
	entityType string
	extractID  func(T) string
	journal    Journal
	logger     zerolog.Logger
}

func NewDualWriter[T any](cfg WriterConfig[T]) *DualWriter[T] {
	extract := cfg.ExtractID
	if extract == nil {
		extract = func(T) string { return "" }
	}
	return &DualWriter[T]{
		registry:   cfg.Registry,
		entityType: cfg.EntityType,
		extractID:  extract,
		journal:    cfg.Journal,
		logger:     logger.WithComponent(cfg.Logger, "dual_write"),
	}
}

// Execute performs one logical write.
//
// In the phase-5 shape only TargetOnly runs. Otherwise Primary runs first;
// a primary failure returns a *PrimaryWriteError and nothing else runs. When
// dual writes are enabled Secondary then receives the primary's result. If
// it fails, Rollback runs once and the call returns a *SecondaryWriteError
// wrapping the secondary's error, with any rollback failure attached but
// never in its place.
func (w *DualWriter[T]) Execute(ctx context.Context, operationType string, op WriteOperation[T]) (*WriteResult[T], error) {
	flags := w.registry.Snapshot()
	ctx, correlationID := correlationFor(ctx)
	l := logger.WithOperation(w.logger, correlationID, w.entityType, operationType)
	t := startTimer(w.entityType, "write")
	defer t.observe()

	l.Info().Int("phase", int(flags.Phase)).Msg("write operation start")

	if flags.TargetOnlyWrites() {
		return w.targetOnly(ctx, l, correlationID, operationType, op)
	}

	primary, err := op.Primary(ctx)
	if err != nil {
		l.Error().Err(err).Msg("primary write failed")
		writesTotal.WithLabelValues(w.entityType, operationType, string(BranchPrimaryOnly), outcomeFailure).Inc()
		return nil, &PrimaryWriteError{Entity: w.entityType, Operation: operationType, CorrelationID: correlationID, Err: err}
	}
	entityID := w.extractID(primary)
	l.Debug().Str("entity_id", entityID).Msg("primary write succeeded")

	if !flags.DualWrite {
		writesTotal.WithLabelValues(w.entityType, operationType, string(BranchPrimaryOnly), outcomeSuccess).Inc()
		l.Info().Str("entity_id", entityID).Msg("write operation complete")
		return &WriteResult[T]{Data: primary, CorrelationID: correlationID, Branch: BranchPrimaryOnly}, nil
	}

	entry, err := w.record(ctx, correlationID, entityID, primary, op)
	if err != nil {
		l.Error().Err(err).Str("entity_id", entityID).Msg("recording compensation failed, secondary write skipped")
		return nil, w.secondaryFailed(ctx, l, correlationID, operationType, entityID, primary, op, nil, err)
	}

	if _, err := op.Secondary(ctx, primary); err != nil {
		l.Error().Err(err).Str("entity_id", entityID).Msg("secondary write failed")
		return nil, w.secondaryFailed(ctx, l, correlationID, operationType, entityID, primary, op, entry, err)
	}

	w.resolve(ctx, l, entry)
	writesTotal.WithLabelValues(w.entityType, operationType, string(BranchDualWrite), outcomeSuccess).Inc()
	l.Info().Str("entity_id", entityID).Msg("write operation complete")
	return &WriteResult[T]{Data: primary, CorrelationID: correlationID, Branch: BranchDualWrite}, nil
}

func (w *DualWriter[T]) targetOnly(ctx context.Context, l zerolog.Logger, correlationID, operationType string, op WriteOperation[T]) (*WriteResult[T], error) {
	if op.TargetOnly == nil {
		err := fmt.Errorf("%s %s has no target-only operation", w.entityType, operationType)
		writesTotal.WithLabelValues(w.entityType, operationType, string(BranchTargetOnly), outcomeFailure).Inc()
		return nil, &SecondaryWriteError{Entity: w.entityType, Operation: operationType, CorrelationID: correlationID, TargetOnly: true, Err: err}
	}
	result, err := op.TargetOnly(ctx)
	if err != nil {
		l.Error().Err(err).Msg("target-only write failed")
		writesTotal.WithLabelValues(w.entityType, operationType, string(BranchTargetOnly), outcomeFailure).Inc()
		return nil, &SecondaryWriteError{Entity: w.entityType, Operation: operationType, CorrelationID: correlationID, TargetOnly: true, Err: err}
	}
	writesTotal.WithLabelValues(w.entityType, operationType, string(BranchTargetOnly), outcomeSuccess).Inc()
	l.Info().Str("entity_id", w.extractID(result)).Msg("target-only write complete")
	return &WriteResult[T]{Data: result, CorrelationID: correlationID, Branch: BranchTargetOnly}, nil
}

// secondaryFailed runs the rollback and builds the error for a dual write
// whose secondary half did not land.
func (w *DualWriter[T]) secondaryFailed(ctx context.Context, l zerolog.Logger, correlationID, operationType, entityID string, primary T, op WriteOperation[T], entry *models.Compensation, cause error) error {
	writesTotal.WithLabelValues(w.entityType, operationType, string(BranchDualWrite), outcomeFailure).Inc()
	werr := &SecondaryWriteError{
		Entity:        w.entityType,
		Operation:     operationType,
		EntityID:      entityID,
		CorrelationID: correlationID,
		Err:           cause,
	}

	if op.Rollback == nil {
		werr.Rollback = &RollbackError{Entity: w.entityType, EntityID: entityID, CorrelationID: correlationID, Err: fmt.Errorf("no rollback defined")}
		rollbacksTotal.WithLabelValues(w.entityType, outcomeFailure).Inc()
		l.Error().Str("entity_id", entityID).Msg("no rollback defined, primary left ahead of secondary")
		w.fail(ctx, l, entry, werr.Rollback)
		return werr
	}

	l.Warn().Str("entity_id", entityID).Msg("rolling back primary write")
	if err := op.Rollback(ctx, primary); err != nil {
		werr.Rollback = &RollbackError{Entity: w.entityType, EntityID: entityID, CorrelationID: correlationID, Err: err}
		rollbacksTotal.WithLabelValues(w.entityType, outcomeFailure).Inc()
		l.Error().Err(err).Str("entity_id", entityID).Msg("rollback failed")
		w.fail(ctx, l, entry, werr.Rollback)
		return werr
	}

	rollbacksTotal.WithLabelValues(w.entityType, outcomeSuccess).Inc()
	l.Info().Str("entity_id", entityID).Msg("rollback succeeded")
	w.resolve(ctx, l, entry)
	return werr
}

func (w *DualWriter[T]) record(ctx context.Context, correlationID, entityID string, primary T, op WriteOperation[T]) (*models.Compensation, error) {
	if w.journal == nil {
		return nil, nil
	}
	change, prior := models.ChangeOperationCreate, any(nil)
	if op.Undo != nil {
		change, prior = op.Undo(primary)
	}
	entry := &models.Compensation{
		ID:            NewCorrelationID(),
		CorrelationID: correlationID,
		EntityType:    w.entityType,
		EntityID:      entityID,
		Operation:     change,
		Status:        models.CompensationPending,
		CreatedAt:     models.Now(),
	}
	if prior != nil {
		m, err := models.ToJSONMap(prior)
		if err != nil {
			return nil, fmt.Errorf("encode prior state: %w", err)
		}
		entry.Prior = m
	}
	if err := w.journal.Record(ctx, entry); err != nil {
		return nil, fmt.Errorf("record compensation: %w", err)
	}
	return entry, nil
}

func (w *DualWriter[T]) resolve(ctx context.Context, l zerolog.Logger, entry *models.Compensation) {
	if entry == nil {
		return
	}
	if err := w.journal.Resolve(ctx, entry.ID); err != nil {
		// The entry stays pending; the reconciler will find both stores in
		// agreement and settle it.
		l.Warn().Err(err).Str("compensation_id", entry.ID).Msg("resolving compensation failed")
	}
}

func (w *DualWriter[T]) fail(ctx context.Context, l zerolog.Logger, entry *models.Compensation, cause error) {
	if entry == nil {
		return
	}
	if err := w.journal.Fail(ctx, entry.ID, cause.Error()); err != nil {
		l.Warn().Err(err).Str("compensation_id", entry.ID).Msg("updating compensation failed")
	}
}
