package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/surrealdb/surrealshift/pkg/logger"
	"github.com/surrealdb/surrealshift/pkg/migration"
	"github.com/surrealdb/surrealshift/pkg/models"
	"github.com/surrealdb/surrealshift/pkg/store"
)

type key interface {
	comparable
	fmt.Stringer
}

// repo binds an entity type to its methods on store.Store. The funcs are
// method expressions, so one repo serves both stores.
type repo[T any, K key] struct {
	get    func(store.Store, context.Context, K) (*T, error)
	create func(store.Store, context.Context, *T) error
	update func(store.Store, context.Context, *T) error
	remove func(store.Store, context.Context, K) error
	list   func(store.Store, context.Context) ([]*T, error)
	parse  func(string) (K, error)
	id     func(*T) K
	// clone defaults to a shallow copy.
	clone func(*T) *T
}

// loader finds the record a write addresses in the given store. It returns a
// *NotFoundError when the record is absent.
type loader[T any] func(ctx context.Context, s store.Store) (*T, error)

// mutator changes a loaded record in place before it is written back to s.
type mutator[T any] func(ctx context.Context, s store.Store, v *T) error

// entity is the shared machinery behind every entity coordinator: the typed
// dual writer and reader, and the write shapes all of them use.
type entity[T any, K key] struct {
	name      string
	primary   store.Store
	secondary store.Store
	repo      repo[T, K]
	compare   func(p, s *T) []migration.ValidationError
	writer    *migration.DualWriter[*T]
	reader    *migration.DualReader[*T]
	lists     *migration.DualReader[[]*T]
	logger    zerolog.Logger
}

func newEntity[T any, K key](cfg Config, name string, r repo[T, K], compare func(p, s *T) []migration.ValidationError, redact func(*T) any) *entity[T, K] {
	if r.clone == nil {
		r.clone = func(v *T) *T {
			c := *v
			return &c
		}
	}
	extractID := func(v *T) string {
		if v == nil {
			return ""
		}
		return r.id(v).String()
	}
	e := &entity[T, K]{
		name:      name,
		primary:   cfg.Primary,
		secondary: cfg.Secondary,
		repo:      r,
		compare:   compare,
		logger:    logger.WithComponent(cfg.Logger, "coordinator").With().Str("entity", name).Logger(),
	}
	e.writer = migration.NewDualWriter(migration.WriterConfig[*T]{
		Registry:   cfg.Registry,
		EntityType: name,
		ExtractID:  extractID,
		Journal:    cfg.Journal,
		Logger:     cfg.Logger,
	})
	e.reader = migration.NewDualReader(migration.ReaderConfig[*T]{
		Registry:   cfg.Registry,
		EntityType: name,
		Compare:    compare,
		Redact:     redact,
		EntityID:   extractID,
		Logger:     cfg.Logger,
	})
	e.lists = migration.NewDualReader(migration.ReaderConfig[[]*T]{
		Registry:   cfg.Registry,
		EntityType: name,
		Compare:    compareList(strings.ToLower(name), extractID, compare),
		IsNil:      func([]*T) bool { return false },
		Logger:     cfg.Logger,
	})
	return e
}

func (e *entity[T, K]) entityName() string { return e.name }

func (e *entity[T, K]) write(ctx context.Context, operationType string, op migration.WriteOperation[*T]) (*T, error) {
	res, err := e.writer.Execute(ctx, operationType, op)
	if err != nil {
		return nil, err
	}
	return res.Data, nil
}

func (e *entity[T, K]) read(ctx context.Context, operationType, entityID string, get func(context.Context, store.Store) (*T, error)) (*T, error) {
	res, err := e.reader.Execute(ctx, operationType, migration.ReadOperation[*T]{
		EntityID:  entityID,
		Primary:   func(ctx context.Context) (*T, error) { return get(ctx, e.primary) },
		Secondary: func(ctx context.Context) (*T, error) { return get(ctx, e.secondary) },
	})
	return readData(res, err)
}

func (e *entity[T, K]) findByID(ctx context.Context, id K) (*T, error) {
	return e.read(ctx, "findById", id.String(), func(ctx context.Context, s store.Store) (*T, error) {
		return e.repo.get(s, ctx, id)
	})
}

// readList runs a list query against the stores the phase calls for. key
// labels the result in reports, e.g. the parent the list belongs to.
func (e *entity[T, K]) readList(ctx context.Context, operationType, key string, list func(context.Context, store.Store) ([]*T, error)) ([]*T, error) {
	res, err := e.lists.Execute(ctx, operationType, migration.ReadOperation[[]*T]{
		EntityID:  key,
		Primary:   func(ctx context.Context) ([]*T, error) { return list(ctx, e.primary) },
		Secondary: func(ctx context.Context) ([]*T, error) { return list(ctx, e.secondary) },
	})
	return readData(res, err)
}

// compareList matches two lists by record ID. Attributes are prefixed with
// label[<id>] so a report names the record that diverged.
func compareList[T any](label string, id func(*T) string, compare func(p, s *T) []migration.ValidationError) func(p, s []*T) []migration.ValidationError {
	return func(p, s []*T) []migration.ValidationError {
		var errs []migration.ValidationError
		bySecondary := make(map[string]*T, len(s))
		for _, v := range s {
			bySecondary[id(v)] = v
		}
		seen := make(map[string]bool, len(p))
		for _, pv := range p {
			key := id(pv)
			seen[key] = true
			prefix := fmt.Sprintf("%s[%s]", label, key)
			sv, ok := bySecondary[key]
			if !ok {
				errs = append(errs, migration.NewValidationError(prefix, "present", nil, prefix+" missing from Secondary"))
				continue
			}
			for _, ve := range compare(pv, sv) {
				errs = append(errs, migration.NewValidationError(prefix+"."+ve.Attribute, ve.PrimaryValue, ve.SecondaryValue, ""))
			}
		}

		var extra []string
		for key := range bySecondary {
			if !seen[key] {
				extra = append(extra, key)
			}
		}
		sort.Strings(extra)
		for _, key := range extra {
			prefix := fmt.Sprintf("%s[%s]", label, key)
			errs = append(errs, migration.NewValidationError(prefix, nil, "present", prefix+" missing from Primary"))
		}
		return errs
	}
}

// readData unwraps a read result. A validation failure still carries the
// primary's data next to the error.
func readData[T any](res *migration.ReadResult[T], err error) (T, error) {
	if res == nil {
		var zero T
		return zero, err
	}
	return res.Data, err
}

func (e *entity[T, K]) byID(id K) loader[T] {
	return func(ctx context.Context, s store.Store) (*T, error) {
		v, err := e.repo.get(s, ctx, id)
		if err != nil {
			return nil, err
		}
		if v == nil {
			return nil, &NotFoundError{Entity: e.name, ID: id.String()}
		}
		return v, nil
	}
}

// createOp inserts v. check, when set, runs against the store about to be
// written, before the insert.
func (e *entity[T, K]) createOp(v *T, check mutator[T]) migration.WriteOperation[*T] {
	insert := func(ctx context.Context, s store.Store) (*T, error) {
		c := e.repo.clone(v)
		if check != nil {
			if err := check(ctx, s, c); err != nil {
				return nil, err
			}
		}
		if err := e.repo.create(s, ctx, c); err != nil {
			return nil, err
		}
		return c, nil
	}
	return migration.WriteOperation[*T]{
		Primary: func(ctx context.Context) (*T, error) { return insert(ctx, e.primary) },
		Secondary: func(ctx context.Context, p *T) (*T, error) {
			c := e.repo.clone(p)
			return c, e.repo.create(e.secondary, ctx, c)
		},
		TargetOnly: func(ctx context.Context) (*T, error) { return insert(ctx, e.secondary) },
		Rollback: func(ctx context.Context, p *T) error {
			return e.repo.remove(e.primary, ctx, e.repo.id(p))
		},
	}
}

// mutateOp loads a record, applies mutate to a copy and writes it back. The
// secondary receives the primary's result as an upsert, so records that
// predate dual writes are copied over on their first change.
func (e *entity[T, K]) mutateOp(load loader[T], mutate mutator[T]) migration.WriteOperation[*T] {
	var prior *T
	apply := func(ctx context.Context, s store.Store) (*T, *T, error) {
		cur, err := load(ctx, s)
		if err != nil {
			return nil, nil, err
		}
		next := e.repo.clone(cur)
		if err := mutate(ctx, s, next); err != nil {
			return nil, nil, err
		}
		if err := e.repo.update(s, ctx, next); err != nil {
			return nil, nil, err
		}
		return cur, next, nil
	}
	return migration.WriteOperation[*T]{
		Primary: func(ctx context.Context) (*T, error) {
			cur, next, err := apply(ctx, e.primary)
			prior = cur
			return next, err
		},
		Secondary: func(ctx context.Context, p *T) (*T, error) {
			return e.upsert(ctx, e.secondary, p)
		},
		TargetOnly: func(ctx context.Context) (*T, error) {
			_, next, err := apply(ctx, e.secondary)
			return next, err
		},
		Rollback: func(ctx context.Context, _ *T) error {
			return e.repo.update(e.primary, ctx, e.repo.clone(prior))
		},
		Undo: func(*T) (models.ChangeOperation, any) {
			return models.ChangeOperationUpdate, prior
		},
	}
}

// deleteOp removes a record and returns its last state. A secondary that
// never held the record counts as deleted.
func (e *entity[T, K]) deleteOp(load loader[T]) migration.WriteOperation[*T] {
	remove := func(ctx context.Context, s store.Store) (*T, error) {
		cur, err := load(ctx, s)
		if err != nil {
			return nil, err
		}
		if err := e.repo.remove(s, ctx, e.repo.id(cur)); err != nil {
			return nil, err
		}
		return cur, nil
	}
	return migration.WriteOperation[*T]{
		Primary: func(ctx context.Context) (*T, error) { return remove(ctx, e.primary) },
		Secondary: func(ctx context.Context, p *T) (*T, error) {
			err := e.repo.remove(e.secondary, ctx, e.repo.id(p))
			if errors.Is(err, store.ErrNotFound) {
				return p, nil
			}
			return p, err
		},
		TargetOnly: func(ctx context.Context) (*T, error) { return remove(ctx, e.secondary) },
		Rollback: func(ctx context.Context, p *T) error {
			return e.repo.create(e.primary, ctx, e.repo.clone(p))
		},
		Undo: func(p *T) (models.ChangeOperation, any) {
			return models.ChangeOperationDelete, p
		},
	}
}

// upsert updates v in s, creating it when s does not hold it yet.
func (e *entity[T, K]) upsert(ctx context.Context, s store.Store, v *T) (*T, error) {
	c := e.repo.clone(v)
	err := e.repo.update(s, ctx, c)
	if errors.Is(err, store.ErrNotFound) {
		c = e.repo.clone(v)
		err = e.repo.create(s, ctx, c)
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// agree reports whether two reads of the same record match.
func (e *entity[T, K]) agree(p, s *T) bool {
	if p == nil || s == nil {
		return p == nil && s == nil
	}
	return len(e.compare(p, s)) == 0
}
