package coordinator_test

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/surrealdb/surrealshift/pkg/coordinator"
	"github.com/surrealdb/surrealshift/pkg/journal"
	"github.com/surrealdb/surrealshift/pkg/logger"
	"github.com/surrealdb/surrealshift/pkg/migration"
	"github.com/surrealdb/surrealshift/pkg/models"
	"github.com/surrealdb/surrealshift/pkg/store/memory"
)

type env struct {
	primary   *memory.Store
	secondary *memory.Store
	registry  *migration.Registry
	journal   *journal.MemoryJournal
	set       *coordinator.Set
	logs      *syncBuffer
}

func newEnv(t *testing.T, phase migration.Phase) *env {
	t.Helper()
	logs := &syncBuffer{}
	data, err := logger.New().FromBuffer(logs).Level("debug").Make()
	require.NoError(t, err)

	e := &env{
		primary:   memory.New(),
		secondary: memory.New(),
		registry:  migration.NewRegistry(),
		journal:   journal.NewMemory(),
		logs:      logs,
	}
	require.NoError(t, e.registry.SetPhase(phase))
	e.set = coordinator.New(coordinator.Config{
		Primary:   e.primary,
		Secondary: e.secondary,
		Registry:  e.registry,
		Journal:   e.journal,
		Logger:    data.Logger,
	})
	return e
}

func (e *env) phase(t *testing.T, p migration.Phase) {
	t.Helper()
	require.NoError(t, e.registry.SetPhase(p))
}

func (e *env) resetCalls() {
	e.primary.ResetCalls()
	e.secondary.ResetCalls()
}

func (e *env) pending(t *testing.T) []*models.Compensation {
	t.Helper()
	pending, err := e.journal.Pending(context.Background(), time.Time{})
	require.NoError(t, err)
	return pending
}

// reconciler sweeps every pending entry regardless of age.
func (e *env) reconciler() *coordinator.Reconciler {
	return coordinator.NewReconciler(e.journal, e.set, logger.Nop(), coordinator.WithGrace(0))
}

func newUser(name string) *models.User {
	return &models.User{
		Username:     name,
		Email:        name + "@example.com",
		PasswordHash: "$2b$10$" + name,
		FirstName:    "Ada",
		LastName:     "Lovelace",
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
