package migration_test

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/surrealdb/surrealshift/pkg/logger"
	"github.com/surrealdb/surrealshift/pkg/models"
)

type record struct {
	Name  string
	Value string
}

// trace collects the order in which closures ran.
type trace struct {
	mu    sync.Mutex
	calls []string
}

func (tr *trace) add(name string) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.calls = append(tr.calls, name)
}

func (tr *trace) list() []string {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return append([]string(nil), tr.calls...)
}

func (tr *trace) count(name string) int {
	n := 0
	for _, c := range tr.list() {
		if c == name {
			n++
		}
	}
	return n
}

func testLogger(t *testing.T) (zerolog.Logger, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	data, err := logger.New().FromBuffer(&syncWriter{buf: buf}).Level("debug").Make()
	require.NoError(t, err)
	return data.Logger, buf
}

type syncWriter struct {
	mu  sync.Mutex
	buf *bytes.Buffer
}

func (w *syncWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Write(p)
}

// fakeJournal records calls and can be told to fail Record.
type fakeJournal struct {
	mu        sync.Mutex
	recorded  []models.Compensation
	resolved  []string
	failed    []string
	recordErr error
}

func (j *fakeJournal) Record(_ context.Context, c *models.Compensation) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.recordErr != nil {
		return j.recordErr
	}
	j.recorded = append(j.recorded, *c)
	return nil
}

func (j *fakeJournal) Resolve(_ context.Context, id string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.resolved = append(j.resolved, id)
	return nil
}

func (j *fakeJournal) Fail(_ context.Context, id string, _ string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.failed = append(j.failed, id)
	return nil
}

func (j *fakeJournal) Pending(context.Context, time.Time) ([]*models.Compensation, error) {
	return nil, errors.New("not used")
}
