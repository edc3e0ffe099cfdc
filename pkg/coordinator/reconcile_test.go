package coordinator_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surrealdb/surrealshift/pkg/coordinator"
	"github.com/surrealdb/surrealshift/pkg/journal"
	"github.com/surrealdb/surrealshift/pkg/logger"
	"github.com/surrealdb/surrealshift/pkg/migration"
	"github.com/surrealdb/surrealshift/pkg/models"
)

func TestReconcileFailedCreateRollback(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, migration.PhaseDualWrite)
	e.secondary.FailNext("CreateUser", errors.New("surreal unavailable"))
	e.primary.FailNext("DeleteUser", errors.New("postgres unavailable"))

	_, err := e.set.Users.Create(ctx, newUser("alice"))
	var swe *migration.SecondaryWriteError
	require.ErrorAs(t, err, &swe)
	require.NotNil(t, swe.Rollback)
	assert.False(t, swe.RolledBack())

	pending := e.pending(t)
	require.Len(t, pending, 1)
	assert.Equal(t, models.ChangeOperationCreate, pending[0].Operation)
	assert.Equal(t, 1, pending[0].Attempts)
	assert.Contains(t, pending[0].ErrorMessage, "postgres unavailable")

	res, err := e.reconciler().Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, coordinator.SweepResult{Examined: 1, Restored: 1}, res)
	assert.Empty(t, e.pending(t))

	users, err := e.primary.ListUsers(ctx)
	require.NoError(t, err)
	assert.Empty(t, users, "the orphaned primary create is undone")
}

func TestReconcileFailedDeleteRollback(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, migration.PhaseDualWrite)
	created, err := e.set.Users.Create(ctx, newUser("alice"))
	require.NoError(t, err)

	e.secondary.FailNext("DeleteUser", errors.New("surreal unavailable"))
	e.primary.FailNext("CreateUser", errors.New("postgres unavailable"))
	_, err = e.set.Users.Delete(ctx, created.ID)
	require.Error(t, err)

	p, err := e.primary.GetUser(ctx, created.ID)
	require.NoError(t, err)
	require.Nil(t, p)

	res, err := e.reconciler().Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Restored)

	p, err = e.primary.GetUser(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "alice", p.Username)
	assert.Equal(t, created.PasswordHash, p.PasswordHash)
	assert.True(t, created.CreatedAt.Equal(p.CreatedAt))
}

func TestReconcileConsistentEntry(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, migration.PhaseDualWrite)
	created, err := e.set.Users.Create(ctx, newUser("alice"))
	require.NoError(t, err)

	// A process that died after both writes landed leaves this behind.
	require.NoError(t, e.journal.Record(ctx, &models.Compensation{
		ID:         "crashed",
		EntityType: coordinator.EntityUser,
		EntityID:   created.ID.String(),
		Operation:  models.ChangeOperationCreate,
		Status:     models.CompensationPending,
		CreatedAt:  models.Now(),
	}))

	res, err := e.reconciler().Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, coordinator.SweepResult{Examined: 1, Consistent: 1}, res)

	p, err := e.primary.GetUser(ctx, created.ID)
	require.NoError(t, err)
	assert.NotNil(t, p, "agreeing stores are left alone")
}

func TestReconcileKeepsFailuresPending(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, migration.PhaseDualWrite)
	require.NoError(t, e.journal.Record(ctx, &models.Compensation{
		ID:         "unknown",
		EntityType: "Invoice",
		EntityID:   "x",
		Operation:  models.ChangeOperationCreate,
		Status:     models.CompensationPending,
		CreatedAt:  models.Now(),
	}))
	id := models.NewProductID()
	require.NoError(t, e.journal.Record(ctx, &models.Compensation{
		ID:         "no-prior",
		EntityType: coordinator.EntityProduct,
		EntityID:   id.String(),
		Operation:  models.ChangeOperationUpdate,
		Status:     models.CompensationPending,
		CreatedAt:  models.Now(),
	}))
	// The product exists only in the secondary, so the stores disagree and
	// the update has nothing to restore from.
	require.NoError(t, e.secondary.CreateProduct(ctx, &models.Product{ID: id, Name: "ghost"}))

	res, err := e.reconciler().Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Failed)

	pending := e.pending(t)
	require.Len(t, pending, 2)
	for _, c := range pending {
		assert.Equal(t, 1, c.Attempts)
		assert.NotEmpty(t, c.ErrorMessage)
	}
}

// sweepOnRecord runs a sweep right after each entry is recorded, while the
// dual write that recorded it is still between its two halves.
type sweepOnRecord struct {
	*journal.MemoryJournal
	sweep func(ctx context.Context)
}

func (j *sweepOnRecord) Record(ctx context.Context, c *models.Compensation) error {
	if err := j.MemoryJournal.Record(ctx, c); err != nil {
		return err
	}
	j.sweep(ctx)
	return nil
}

func TestSweepLeavesInFlightWritesAlone(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, migration.PhaseDualWrite)
	j := &sweepOnRecord{MemoryJournal: e.journal}
	set := coordinator.New(coordinator.Config{
		Primary:   e.primary,
		Secondary: e.secondary,
		Registry:  e.registry,
		Journal:   j,
		Logger:    logger.Nop(),
	})
	r := coordinator.NewReconciler(j, set, logger.Nop())
	var sweeps []coordinator.SweepResult
	j.sweep = func(ctx context.Context) {
		res, err := r.Sweep(ctx)
		require.NoError(t, err)
		sweeps = append(sweeps, res)
	}

	created, err := set.Users.Create(ctx, newUser("alice"))
	require.NoError(t, err)
	_, err = set.Users.Update(ctx, created.ID, coordinator.UserPatch{FirstName: ptr("Grace")})
	require.NoError(t, err)

	require.Len(t, sweeps, 2)
	for _, res := range sweeps {
		assert.Zero(t, res.Examined)
	}
	p, err := e.primary.GetUser(ctx, created.ID)
	require.NoError(t, err)
	s, err := e.secondary.GetUser(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Grace", p.FirstName)
	assert.Equal(t, "Grace", s.FirstName)
	assert.Empty(t, e.pending(t))
}

func TestSweepWaitsOutGracePeriod(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, migration.PhaseDualWrite)
	created, err := e.set.Users.Create(ctx, newUser("alice"))
	require.NoError(t, err)

	for id, age := range map[string]time.Duration{"old": 2 * coordinator.DefaultGrace, "young": 0} {
		require.NoError(t, e.journal.Record(ctx, &models.Compensation{
			ID:         id,
			EntityType: coordinator.EntityUser,
			EntityID:   created.ID.String(),
			Operation:  models.ChangeOperationCreate,
			Status:     models.CompensationPending,
			CreatedAt:  models.Now().Add(-age),
		}))
	}

	res, err := coordinator.NewReconciler(e.journal, e.set, logger.Nop()).Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, coordinator.SweepResult{Examined: 1, Consistent: 1}, res)

	pending := e.pending(t)
	require.Len(t, pending, 1)
	assert.Equal(t, "young", pending[0].ID)
}

func TestReconcileFailedUpdateRollback(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, migration.PhaseDualWrite)
	created, err := e.set.Users.Create(ctx, newUser("alice"))
	require.NoError(t, err)
	before, err := e.primary.GetUser(ctx, created.ID)
	require.NoError(t, err)

	e.secondary.FailNext("UpdateUser", errors.New("surreal unavailable"))
	e.primary.FailAfter("UpdateUser", 1, errors.New("postgres unavailable"))
	_, err = e.set.Users.Update(ctx, created.ID, coordinator.UserPatch{FirstName: ptr("Grace"), Email: ptr("grace@example.com")})
	var swe *migration.SecondaryWriteError
	require.ErrorAs(t, err, &swe)
	require.NotNil(t, swe.Rollback)

	pending := e.pending(t)
	require.Len(t, pending, 1)
	assert.Equal(t, models.ChangeOperationUpdate, pending[0].Operation)

	res, err := e.reconciler().Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, coordinator.SweepResult{Examined: 1, Restored: 1}, res)

	p, err := e.primary.GetUser(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, before, p)
	s, err := e.secondary.GetUser(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, before, s)
}

func TestReconcileFailedOrderUpdateRollback(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, migration.PhaseDualWrite)
	order, err := e.set.Orders.Create(ctx, &models.Order{
		UserID: models.NewUserID(),
		Items: []models.OrderItem{
			{ProductID: models.NewProductID(), Quantity: 2, PriceAtTime: 10},
			{ProductID: models.NewProductID(), Quantity: 1, PriceAtTime: 5.5},
		},
	})
	require.NoError(t, err)
	before, err := e.primary.GetOrder(ctx, order.ID)
	require.NoError(t, err)

	e.secondary.FailNext("UpdateOrder", errors.New("surreal unavailable"))
	e.primary.FailAfter("UpdateOrder", 1, errors.New("postgres unavailable"))
	_, err = e.set.Orders.UpdateStatus(ctx, order.ID, models.OrderStatusCompleted)
	require.Error(t, err)

	p, err := e.primary.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, models.OrderStatusCompleted, p.Status, "failed rollback leaves the primary ahead")

	res, err := e.reconciler().Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Restored)

	p, err = e.primary.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, before, p)
	s, err := e.secondary.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPending, s.Status)
	assert.Len(t, s.Items, 2)
}

func TestReconcileFailedClearCartRollback(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, migration.PhaseDualWrite)
	user, err := e.set.Users.Create(ctx, newUser("shopper"))
	require.NoError(t, err)
	for _, qty := range []int{1, 2} {
		_, err := e.set.Cart.AddItem(ctx, user.ID, models.NewProductID(), qty)
		require.NoError(t, err)
	}

	e.secondary.FailNext("DeleteCartItem", errors.New("surreal unavailable"))
	e.primary.FailNext("CreateCartItem", errors.New("postgres unavailable"))
	_, err = e.set.Cart.ClearCart(ctx, user.ID)
	var swe *migration.SecondaryWriteError
	require.ErrorAs(t, err, &swe)
	require.NotNil(t, swe.Rollback)

	pending := e.pending(t)
	require.Len(t, pending, 1)
	assert.Equal(t, coordinator.EntityCart, pending[0].EntityType)
	assert.Equal(t, models.ChangeOperationDelete, pending[0].Operation)

	res, err := e.reconciler().Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, coordinator.SweepResult{Examined: 1, Restored: 1}, res)

	p, err := e.primary.ListCartItems(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, p, 2)
	e.phase(t, migration.PhaseDualRead)
	items, err := e.set.Cart.Items(ctx, user.ID)
	require.NoError(t, err, "both stores hold the restored cart")
	assert.Len(t, items, 2)
}
