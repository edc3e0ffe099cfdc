package migration_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surrealdb/surrealshift/pkg/migration"
)

func compareRecords(p, s *record) []migration.ValidationError {
	var c migration.Comparison
	c.Equal("name", p.Name, s.Name)
	c.Equal("value", p.Value, s.Value)
	return c.Errors()
}

func newReader(t *testing.T, phase migration.Phase) (*migration.DualReader[*record], *migration.Registry) {
	t.Helper()
	reg := migration.NewRegistry()
	require.NoError(t, reg.SetPhase(phase))
	l, _ := testLogger(t)
	return migration.NewDualReader(migration.ReaderConfig[*record]{
		Registry:   reg,
		EntityType: "Record",
		Compare:    compareRecords,
		Logger:     l,
	}), reg
}

func readOp(tr *trace, p, s *record, pErr, sErr error) migration.ReadOperation[*record] {
	return migration.ReadOperation[*record]{
		EntityID: "r1",
		Primary: func(context.Context) (*record, error) {
			tr.add("primary")
			return p, pErr
		},
		Secondary: func(context.Context) (*record, error) {
			tr.add("secondary")
			return s, sErr
		},
	}
}

func TestDualReadRouting(t *testing.T) {
	p := &record{Name: "r1", Value: "p"}
	s := &record{Name: "r1", Value: "p"}
	tests := []struct {
		phase  migration.Phase
		calls  []string
		source migration.Source
	}{
		{1, []string{"primary"}, migration.SourcePrimary},
		{2, []string{"primary"}, migration.SourcePrimary},
		{3, []string{"primary", "secondary"}, migration.SourceBoth},
		{4, []string{"secondary"}, migration.SourceSecondary},
		{5, []string{"secondary"}, migration.SourceSecondary},
	}
	for _, tt := range tests {
		t.Run(tt.phase.String(), func(t *testing.T) {
			r, _ := newReader(t, tt.phase)
			tr := &trace{}
			res, err := r.Execute(context.Background(), "findById", readOp(tr, p, s, nil, nil))
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.calls, tr.list())
			assert.Equal(t, tt.source, res.Source)
			assert.True(t, res.ValidationPassed())
		})
	}
}

func TestDualReadSingleAttributeDivergence(t *testing.T) {
	r, _ := newReader(t, migration.PhaseDualRead)
	p := &record{Name: "r1", Value: "old"}
	s := &record{Name: "r1", Value: "new"}

	res, err := r.Execute(context.Background(), "findById", readOp(&trace{}, p, s, nil, nil))
	require.Error(t, err)
	assert.ErrorIs(t, err, migration.ErrValidationFailed)

	require.NotNil(t, res, "divergence still returns the canonical result")
	assert.Same(t, p, res.Data)
	assert.False(t, res.ValidationPassed())
	require.Len(t, res.Report.Errors, 1)
	assert.Equal(t, "value", res.Report.Errors[0].Attribute)
	assert.Equal(t, res.CorrelationID, res.Report.CorrelationID)
	assert.Contains(t, err.Error(), "Data validation failed for Record ID r1")
	assert.Contains(t, err.Error(), `value mismatch: Primary="old", Secondary="new"`)
}

func TestDualReadNulls(t *testing.T) {
	t.Run("both nil passes", func(t *testing.T) {
		r, _ := newReader(t, migration.PhaseDualRead)
		res, err := r.Execute(context.Background(), "findById", readOp(&trace{}, nil, nil, nil, nil))
		require.NoError(t, err)
		assert.Nil(t, res.Data)
		require.NotNil(t, res.Report)
		assert.True(t, res.Report.ValidationPassed)
	})

	t.Run("one side nil fails validation", func(t *testing.T) {
		r, _ := newReader(t, migration.PhaseDualRead)
		p := &record{Name: "r1"}
		res, err := r.Execute(context.Background(), "findById", readOp(&trace{}, p, nil, nil, nil))
		require.ErrorIs(t, err, migration.ErrValidationFailed)
		require.Len(t, res.Report.Errors, 1)
		assert.Equal(t, "existence", res.Report.Errors[0].Attribute)
		assert.Nil(t, res.Report.SecondaryData)
	})
}

func TestDualReadWithoutValidation(t *testing.T) {
	r, reg := newReader(t, migration.PhaseDualRead)
	require.NoError(t, reg.SetFlag(migration.FlagValidation, false))

	res, err := r.Execute(context.Background(), "findById",
		readOp(&trace{}, &record{Value: "a"}, &record{Value: "b"}, nil, nil))
	require.NoError(t, err)
	assert.Nil(t, res.Report)
	assert.Equal(t, "a", res.Data.Value)
	assert.Equal(t, "b", res.Secondary.Value)
}

func TestDualReadFailures(t *testing.T) {
	cause := errors.New("boom")

	t.Run("primary only", func(t *testing.T) {
		r, _ := newReader(t, migration.PhaseDualWrite)
		_, err := r.Execute(context.Background(), "findById", readOp(&trace{}, nil, nil, cause, nil))
		var perr *migration.PrimaryReadError
		require.ErrorAs(t, err, &perr)
		assert.ErrorIs(t, err, cause)
	})

	t.Run("secondary only", func(t *testing.T) {
		r, _ := newReader(t, migration.PhaseTargetOnly)
		_, err := r.Execute(context.Background(), "findById", readOp(&trace{}, nil, nil, nil, cause))
		var serr *migration.SecondaryReadError
		require.ErrorAs(t, err, &serr)
	})

	t.Run("dual read fails on either side", func(t *testing.T) {
		r, _ := newReader(t, migration.PhaseDualRead)
		res, err := r.Execute(context.Background(), "findById", readOp(&trace{}, &record{}, nil, nil, cause))
		assert.Nil(t, res)
		var serr *migration.SecondaryReadError
		require.ErrorAs(t, err, &serr)
	})
}

func TestDualReadDoesNotCancelOtherSide(t *testing.T) {
	r, _ := newReader(t, migration.PhaseDualRead)
	finished := make(chan struct{})

	_, err := r.Execute(context.Background(), "findById", migration.ReadOperation[*record]{
		Primary: func(context.Context) (*record, error) {
			return nil, errors.New("fast failure")
		},
		Secondary: func(ctx context.Context) (*record, error) {
			time.Sleep(20 * time.Millisecond)
			if ctx.Err() == nil {
				close(finished)
			}
			return &record{}, nil
		},
	})
	require.Error(t, err)

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("secondary read was cancelled")
	}
}

func TestDualReadLogsReportWithCorrelationID(t *testing.T) {
	reg := migration.NewRegistry()
	require.NoError(t, reg.SetPhase(migration.PhaseDualRead))
	l, buf := testLogger(t)
	r := migration.NewDualReader(migration.ReaderConfig[*record]{
		Registry: reg, EntityType: "Record", Compare: compareRecords, Logger: l,
	})

	res, err := r.Execute(context.Background(), "findById",
		readOp(&trace{}, &record{Value: "a"}, &record{Value: "b"}, nil, nil))
	require.Error(t, err)

	out := buf.String()
	assert.Contains(t, out, "VALIDATION FAILED")
	assert.Contains(t, out, "complete payloads")
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		assert.Contains(t, line, res.CorrelationID)
	}
}
