package migration_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surrealdb/surrealshift/pkg/migration"
	"github.com/surrealdb/surrealshift/pkg/models"
)

type writeFixture struct {
	trace        *trace
	primaryErr   error
	secondaryErr error
	targetErr    error
	rollbackErr  error
	gotPrimary   *record
}

func (f *writeFixture) op() migration.WriteOperation[*record] {
	return migration.WriteOperation[*record]{
		Primary: func(context.Context) (*record, error) {
			f.trace.add("primary")
			if f.primaryErr != nil {
				return nil, f.primaryErr
			}
			return &record{Name: "r1", Value: "from-primary"}, nil
		},
		Secondary: func(_ context.Context, primary *record) (*record, error) {
			f.trace.add("secondary")
			f.gotPrimary = primary
			if f.secondaryErr != nil {
				return nil, f.secondaryErr
			}
			return &record{Name: "r1", Value: "from-secondary"}, nil
		},
		TargetOnly: func(context.Context) (*record, error) {
			f.trace.add("target")
			if f.targetErr != nil {
				return nil, f.targetErr
			}
			return &record{Name: "r1", Value: "from-target"}, nil
		},
		Rollback: func(context.Context, *record) error {
			f.trace.add("rollback")
			return f.rollbackErr
		},
	}
}

func newWriter(t *testing.T, phase migration.Phase, j migration.Journal) *migration.DualWriter[*record] {
	t.Helper()
	reg := migration.NewRegistry()
	require.NoError(t, reg.SetPhase(phase))
	l, _ := testLogger(t)
	return migration.NewDualWriter(migration.WriterConfig[*record]{
		Registry:   reg,
		EntityType: "Record",
		ExtractID:  func(r *record) string { return r.Name },
		Journal:    j,
		Logger:     l,
	})
}

func TestDualWriteBothSucceed(t *testing.T) {
	for _, phase := range []migration.Phase{2, 3, 4} {
		t.Run(phase.String(), func(t *testing.T) {
			f := &writeFixture{trace: &trace{}}
			res, err := newWriter(t, phase, nil).Execute(context.Background(), "create", f.op())
			require.NoError(t, err)

			assert.Equal(t, []string{"primary", "secondary"}, f.trace.list())
			assert.Equal(t, "from-primary", res.Data.Value)
			assert.Equal(t, "from-primary", f.gotPrimary.Value, "secondary receives the primary's result")
			assert.Equal(t, migration.BranchDualWrite, res.Branch)
			assert.NotEmpty(t, res.CorrelationID)
		})
	}
}

func TestDualWriteSecondaryFailureRollsBack(t *testing.T) {
	for _, phase := range []migration.Phase{2, 3, 4} {
		t.Run(phase.String(), func(t *testing.T) {
			cause := errors.New("target unavailable")
			f := &writeFixture{trace: &trace{}, secondaryErr: cause}
			res, err := newWriter(t, phase, nil).Execute(context.Background(), "create", f.op())
			require.Error(t, err)
			assert.Nil(t, res)

			assert.Equal(t, []string{"primary", "secondary", "rollback"}, f.trace.list())
			assert.Equal(t, 1, f.trace.count("rollback"))
			assert.ErrorIs(t, err, cause)

			var werr *migration.SecondaryWriteError
			require.ErrorAs(t, err, &werr)
			assert.Equal(t, "r1", werr.EntityID)
			assert.True(t, werr.RolledBack())
		})
	}
}

func TestDualWriteRollbackFailureDoesNotMaskCause(t *testing.T) {
	cause := errors.New("target unavailable")
	f := &writeFixture{trace: &trace{}, secondaryErr: cause, rollbackErr: errors.New("primary gone")}
	_, err := newWriter(t, migration.PhaseDualWrite, nil).Execute(context.Background(), "update", f.op())

	assert.ErrorIs(t, err, cause)
	var werr *migration.SecondaryWriteError
	require.ErrorAs(t, err, &werr)
	require.NotNil(t, werr.Rollback)
	assert.False(t, werr.RolledBack())
	assert.Contains(t, werr.Rollback.Error(), "primary gone")
	assert.NotContains(t, err.Error(), "primary gone")
}

func TestDualWritePrimaryFailureStopsEverything(t *testing.T) {
	cause := errors.New("constraint violation")
	f := &writeFixture{trace: &trace{}, primaryErr: cause}
	_, err := newWriter(t, migration.PhaseDualRead, nil).Execute(context.Background(), "create", f.op())

	var perr *migration.PrimaryWriteError
	require.ErrorAs(t, err, &perr)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, []string{"primary"}, f.trace.list())
}

func TestPhaseOneNeverCallsSecondary(t *testing.T) {
	f := &writeFixture{trace: &trace{}}
	res, err := newWriter(t, migration.PhaseSourceOnly, nil).Execute(context.Background(), "create", f.op())
	require.NoError(t, err)
	assert.Equal(t, []string{"primary"}, f.trace.list())
	assert.Equal(t, migration.BranchPrimaryOnly, res.Branch)
}

func TestPhaseFiveOnlyWritesTarget(t *testing.T) {
	f := &writeFixture{trace: &trace{}}
	res, err := newWriter(t, migration.PhaseTargetOnly, nil).Execute(context.Background(), "create", f.op())
	require.NoError(t, err)
	assert.Equal(t, []string{"target"}, f.trace.list())
	assert.Equal(t, "from-target", res.Data.Value)
	assert.Equal(t, migration.BranchTargetOnly, res.Branch)

	f = &writeFixture{trace: &trace{}, targetErr: errors.New("down")}
	_, err = newWriter(t, migration.PhaseTargetOnly, nil).Execute(context.Background(), "create", f.op())
	var werr *migration.SecondaryWriteError
	require.ErrorAs(t, err, &werr)
	assert.True(t, werr.TargetOnly)
	assert.Equal(t, []string{"target"}, f.trace.list(), "no rollback in the target-only branch")
}

func TestDualWriteSnapshotsFlagsAtEntry(t *testing.T) {
	reg := migration.NewRegistry()
	require.NoError(t, reg.SetPhase(migration.PhaseDualWrite))
	l, _ := testLogger(t)
	w := migration.NewDualWriter(migration.WriterConfig[*record]{Registry: reg, EntityType: "Record", Logger: l})

	tr := &trace{}
	_, err := w.Execute(context.Background(), "create", migration.WriteOperation[*record]{
		Primary: func(context.Context) (*record, error) {
			tr.add("primary")
			// A phase change mid-call must not alter this call's routing.
			require.NoError(t, reg.SetPhase(migration.PhaseSourceOnly))
			return &record{Name: "r"}, nil
		},
		Secondary: func(context.Context, *record) (*record, error) {
			tr.add("secondary")
			return &record{Name: "r"}, nil
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"primary", "secondary"}, tr.list())
}

func TestDualWriteJournal(t *testing.T) {
	t.Run("resolved after success", func(t *testing.T) {
		j := &fakeJournal{}
		f := &writeFixture{trace: &trace{}}
		op := f.op()
		op.Undo = func(*record) (models.ChangeOperation, any) {
			return models.ChangeOperationUpdate, &record{Name: "r1", Value: "before"}
		}

		res, err := newWriter(t, migration.PhaseDualWrite, j).Execute(context.Background(), "update", op)
		require.NoError(t, err)
		require.Len(t, j.recorded, 1)
		entry := j.recorded[0]
		assert.Equal(t, res.CorrelationID, entry.CorrelationID)
		assert.Equal(t, "Record", entry.EntityType)
		assert.Equal(t, "r1", entry.EntityID)
		assert.Equal(t, models.ChangeOperationUpdate, entry.Operation)
		assert.Equal(t, "before", entry.Prior["Value"])
		assert.Equal(t, []string{entry.ID}, j.resolved)
		assert.Empty(t, j.failed)
	})

	t.Run("left pending when rollback fails", func(t *testing.T) {
		j := &fakeJournal{}
		f := &writeFixture{trace: &trace{}, secondaryErr: errors.New("x"), rollbackErr: errors.New("y")}
		_, err := newWriter(t, migration.PhaseDualWrite, j).Execute(context.Background(), "create", f.op())
		require.Error(t, err)
		require.Len(t, j.recorded, 1)
		assert.Empty(t, j.resolved)
		assert.Equal(t, []string{j.recorded[0].ID}, j.failed)
	})

	t.Run("record failure skips secondary", func(t *testing.T) {
		j := &fakeJournal{recordErr: errors.New("journal full")}
		f := &writeFixture{trace: &trace{}}
		_, err := newWriter(t, migration.PhaseDualWrite, j).Execute(context.Background(), "create", f.op())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "journal full")
		assert.Equal(t, []string{"primary", "rollback"}, f.trace.list())
	})

	t.Run("untouched outside dual write", func(t *testing.T) {
		j := &fakeJournal{}
		f := &writeFixture{trace: &trace{}}
		_, err := newWriter(t, migration.PhaseSourceOnly, j).Execute(context.Background(), "create", f.op())
		require.NoError(t, err)
		assert.Empty(t, j.recorded)
	})
}

func TestDualWriteAdoptsContextCorrelationID(t *testing.T) {
	f := &writeFixture{trace: &trace{}}
	ctx := migration.WithCorrelationID(context.Background(), "req-42")
	res, err := newWriter(t, migration.PhaseDualWrite, nil).Execute(ctx, "create", f.op())
	require.NoError(t, err)
	assert.Equal(t, "req-42", res.CorrelationID)
}
