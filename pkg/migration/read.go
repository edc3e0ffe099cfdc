package migration

import (
	"context"
	"reflect"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/surrealdb/surrealshift/pkg/logger"
)

// Source names which store served a read.
type Source string

const (
	SourcePrimary   Source = "primary"
	SourceSecondary Source = "secondary"
	SourceBoth      Source = "both"
)

// ReadOperation bundles the two reads for one logical lookup.
type ReadOperation[T any] struct {
	// EntityID labels the report and messages; empty for lookups by other
	// keys whose result is not known up front.
	EntityID  string
	Primary   func(ctx context.Context) (T, error)
	Secondary func(ctx context.Context) (T, error)
}

// ReadResult is the success envelope of a read. Data is the canonical value:
// the primary's result whenever the primary was read.
type ReadResult[T any] struct {
	Data          T
	Primary       T
	Secondary     T
	Source        Source
	CorrelationID string
	// Report is set when the two results were compared.
	Report *ValidationReport
}

// ValidationPassed reports whether no divergence was found. Reads that were
// not compared pass trivially.
func (r *ReadResult[T]) ValidationPassed() bool {
	return r.Report == nil || r.Report.ValidationPassed
}

type ReaderConfig[T any] struct {
	Registry   *Registry
	EntityType string
	// Compare lists divergences between two non-nil results.
	Compare func(primary, secondary T) []ValidationError
	// IsNil overrides the default nil detection, e.g. for list reads where
	// an empty result is still a result.
	IsNil func(T) bool
	// Redact converts a result into what may appear in logged reports.
	Redact func(T) any
	// EntityID names a result when the operation did not carry an ID.
	EntityID func(T) string
	Logger   zerolog.Logger
}

// DualReader runs the subset of a ReadOperation that the current phase calls
// for and validates agreement when both stores are read.
type DualReader[T any] struct {
	registry   *Registry
	entityType string
	compare    func(primary, secondary T) []ValidationError
	isNil      func(T) bool
	redact     func(T) any
	entityID   func(T) string
	logger     zerolog.Logger
}

func NewDualReader[T any](cfg ReaderConfig[T]) *DualReader[T] {
	r := &DualReader[T]{
		registry:   cfg.Registry,
		entityType: cfg.EntityType,
		compare:    cfg.Compare,
		isNil:      cfg.IsNil,
		redact:     cfg.Redact,
		entityID:   cfg.EntityID,
		logger:     logger.WithComponent(cfg.Logger, "dual_read"),
	}
	if r.compare == nil {
		r.compare = func(T, T) []ValidationError { return nil }
	}
	if r.isNil == nil {
		r.isNil = isNil[T]
	}
	if r.redact == nil {
		r.redact = func(v T) any { return v }
	}
	return r
}

// Execute performs one logical read.
//
// A validation failure is reported uniformly: the populated result, with the
// primary's data as canonical, is returned together with a
// *ValidationFailedError. Store failures return a nil result and a
// *PrimaryReadError or *SecondaryReadError.
func (r *DualReader[T]) Execute(ctx context.Context, operationType string, op ReadOperation[T]) (*ReadResult[T], error) {
	flags := r.registry.Snapshot()
	ctx, correlationID := correlationFor(ctx)
	l := logger.WithOperation(r.logger, correlationID, r.entityType, operationType)
	t := startTimer(r.entityType, "read")
	defer t.observe()

	l.Debug().Int("phase", int(flags.Phase)).Msg("read operation start")

	switch {
	case !flags.DualRead && !flags.ReadFromTarget:
		data, err := op.Primary(ctx)
		if err != nil {
			l.Error().Err(err).Msg("primary read failed")
			readsTotal.WithLabelValues(r.entityType, operationType, string(SourcePrimary), outcomeFailure).Inc()
			return nil, &PrimaryReadError{Entity: r.entityType, Operation: operationType, CorrelationID: correlationID, Err: err}
		}
		readsTotal.WithLabelValues(r.entityType, operationType, string(SourcePrimary), outcomeSuccess).Inc()
		return &ReadResult[T]{Data: data, Primary: data, Source: SourcePrimary, CorrelationID: correlationID}, nil

	case !flags.DualRead:
		data, err := op.Secondary(ctx)
		if err != nil {
			l.Error().Err(err).Msg("secondary read failed")
			readsTotal.WithLabelValues(r.entityType, operationType, string(SourceSecondary), outcomeFailure).Inc()
			return nil, &SecondaryReadError{Entity: r.entityType, Operation: operationType, CorrelationID: correlationID, Err: err}
		}
		readsTotal.WithLabelValues(r.entityType, operationType, string(SourceSecondary), outcomeSuccess).Inc()
		return &ReadResult[T]{Data: data, Secondary: data, Source: SourceSecondary, CorrelationID: correlationID}, nil
	}

	return r.dualRead(ctx, l, flags, correlationID, operationType, op)
}

func (r *DualReader[T]) dualRead(ctx context.Context, l zerolog.Logger, flags FlagSet, correlationID, operationType string, op ReadOperation[T]) (*ReadResult[T], error) {
	l.Debug().Bool("validation", flags.Validation).Msg("executing dual read")

	// No derived context: a failure on one side must not cancel the other.
	var (
		g                  errgroup.Group
		primary, secondary T
	)
	g.Go(func() error {
		v, err := op.Primary(ctx)
		if err != nil {
			l.Error().Err(err).Msg("primary read failed")
			return &PrimaryReadError{Entity: r.entityType, Operation: operationType, CorrelationID: correlationID, Err: err}
		}
		primary = v
		return nil
	})
	g.Go(func() error {
		v, err := op.Secondary(ctx)
		if err != nil {
			l.Error().Err(err).Msg("secondary read failed")
			return &SecondaryReadError{Entity: r.entityType, Operation: operationType, CorrelationID: correlationID, Err: err}
		}
		secondary = v
		return nil
	})
	if err := g.Wait(); err != nil {
		readsTotal.WithLabelValues(r.entityType, operationType, string(SourceBoth), outcomeFailure).Inc()
		return nil, err
	}

	result := &ReadResult[T]{
		Data:          primary,
		Primary:       primary,
		Secondary:     secondary,
		Source:        SourceBoth,
		CorrelationID: correlationID,
	}
	if !flags.Validation {
		readsTotal.WithLabelValues(r.entityType, operationType, string(SourceBoth), outcomeSuccess).Inc()
		return result, nil
	}

	entityID := op.EntityID
	if entityID == "" && r.entityID != nil {
		switch {
		case !r.isNil(primary):
			entityID = r.entityID(primary)
		case !r.isNil(secondary):
			entityID = r.entityID(secondary)
		}
	}

	errs := r.validate(primary, secondary)
	report := NewValidationReport(r.entityType, operationType, correlationID, r.payload(primary), r.payload(secondary), errs, entityID)
	result.Report = report
	LogValidationReport(r.logger, report)

	if report.ValidationPassed {
		readsTotal.WithLabelValues(r.entityType, operationType, string(SourceBoth), outcomeSuccess).Inc()
		return result, nil
	}

	readsTotal.WithLabelValues(r.entityType, operationType, string(SourceBoth), outcomeInvalid).Inc()
	for _, e := range errs {
		validationFailuresTotal.WithLabelValues(r.entityType, e.Attribute).Inc()
	}
	return result, &ValidationFailedError{
		Report:  report,
		Message: ActionableErrorMessage(r.entityType, operationType, entityID, errs),
	}
}

// validate compares two results. Two nil results agree; exactly one nil
// result is a divergence of its own and skips attribute comparison.
func (r *DualReader[T]) validate(primary, secondary T) []ValidationError {
	pNil, sNil := r.isNil(primary), r.isNil(secondary)
	switch {
	case pNil && sNil:
		return nil
	case pNil:
		return []ValidationError{NewValidationError("existence", nil, "present",
			"Primary result is null but Secondary result is not null")}
	case sNil:
		return []ValidationError{NewValidationError("existence", "present", nil,
			"Secondary result is null but Primary result is not null")}
	}
	return r.compare(primary, secondary)
}

func (r *DualReader[T]) payload(v T) any {
	if r.isNil(v) {
		return nil
	}
	return r.redact(v)
}

func isNil[T any](v T) bool {
	rv := reflect.ValueOf(any(v))
	if !rv.IsValid() {
		return true
	}
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
