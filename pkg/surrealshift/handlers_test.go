package surrealshift

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surrealdb/surrealshift/pkg/migration"
	"github.com/surrealdb/surrealshift/pkg/models"
	"github.com/surrealdb/surrealshift/pkg/store/memory"
)

type testApp struct {
	*App
	handler   http.Handler
	primary   *memory.Store
	secondary *memory.Store
}

func newTestApp(t *testing.T, phase migration.Phase) *testApp {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Memory = true
	cfg.InitialPhase = int(phase)
	cfg.LogFile = filepath.Join(t.TempDir(), "surrealshift.log")
	// Requests run one at a time, so no journal entry is ever in flight
	// when a sweep starts.
	cfg.ReconcileGrace = 0

	app, err := New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	p, s := app.Stores()
	return &testApp{
		App:       app,
		handler:   app.Handler(),
		primary:   p.(*memory.Store),
		secondary: s.(*memory.Store),
	}
}

func (a *testApp) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

type flagsResponse struct {
	Flags     map[string]any `json:"flags"`
	Phase     int            `json:"phase"`
	PhaseName string         `json:"phase_name"`
}

func (a *testApp) createUser(t *testing.T, name string) models.User {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/api/users", map[string]any{
		"username":      name,
		"email":         name + "@example.com",
		"password_hash": "$2b$10$" + name,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody[models.User](t, rec)
}

func TestHealth(t *testing.T) {
	a := newTestApp(t, migration.PhaseDualRead)
	for _, path := range []string{"/health", "/api/health"} {
		rec := a.do(t, http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody[map[string]any](t, rec)
		assert.Equal(t, "healthy", body["status"])
		assert.EqualValues(t, 3, body["phase"])
		assert.Equal(t, "dual-read", body["phase_name"])
	}
}

func TestAdminPhase(t *testing.T) {
	a := newTestApp(t, migration.PhaseSourceOnly)

	rec := a.do(t, http.MethodPost, "/api/admin/phase", map[string]int{"phase": 3})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	flags := decodeBody[flagsResponse](t, rec)
	assert.Equal(t, 3, flags.Phase)
	assert.Equal(t, true, flags.Flags[migration.FlagDualRead])
	assert.Equal(t, true, flags.Flags[migration.FlagValidation])
	assert.Equal(t, migration.PhaseDualRead, a.Registry().Phase())

	rec = a.do(t, http.MethodPost, "/api/admin/phase", map[string]int{"phase": 7})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody[map[string]string](t, rec)["error"], "invalid migration phase 7")
	assert.Equal(t, migration.PhaseDualRead, a.Registry().Phase(), "rejected phase leaves flags alone")

	rec = a.do(t, http.MethodPost, "/api/admin/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decodeBody[flagsResponse](t, rec).Phase)
}

func TestAdminFlags(t *testing.T) {
	a := newTestApp(t, migration.PhaseSourceOnly)

	rec := a.do(t, http.MethodPost, "/api/admin/flags", map[string]any{
		"flags": map[string]any{migration.FlagDualWrite: true, migration.FlagMigrationPhase: 2},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = a.do(t, http.MethodGet, "/api/admin/flags", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	flags := decodeBody[flagsResponse](t, rec)
	assert.Equal(t, true, flags.Flags[migration.FlagDualWrite])
	assert.Equal(t, false, flags.Flags[migration.FlagDualRead])
	assert.EqualValues(t, 2, flags.Flags[migration.FlagMigrationPhase])

	cases := map[string]map[string]any{
		"unknown flag":  {"flags": map[string]any{"turbo": true}},
		"wrong type":    {"flags": map[string]any{migration.FlagValidation: "yes"}},
		"phase range":   {"flags": map[string]any{migration.FlagMigrationPhase: 9}},
		"no flags":      {"flags": map[string]any{}},
		"missing flags": {},
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec := a.do(t, http.MethodPost, "/api/admin/flags", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
}

func TestAdminFlagsAllOrNothing(t *testing.T) {
	a := newTestApp(t, migration.PhaseSourceOnly)

	// dual_write sorts before the rejected migration_phase and
	// validation flags; it must not be applied on its own.
	rec := a.do(t, http.MethodPost, "/api/admin/flags", map[string]any{
		"flags": map[string]any{
			migration.FlagDualWrite:      true,
			migration.FlagMigrationPhase: 9,
			migration.FlagValidation:     true,
		},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	assert.Equal(t, migration.FlagSet{Phase: migration.PhaseSourceOnly}, a.Registry().AllFlags())
}

func TestCorrelationHeader(t *testing.T) {
	a := newTestApp(t, migration.PhaseSourceOnly)

	rec := a.do(t, http.MethodGet, "/health", nil, CorrelationHeader, "req-7")
	assert.Equal(t, "req-7", rec.Header().Get(CorrelationHeader))

	rec = a.do(t, http.MethodGet, "/health", nil)
	assert.NotEmpty(t, rec.Header().Get(CorrelationHeader))
}

func TestUserRoutes(t *testing.T) {
	a := newTestApp(t, migration.PhaseDualWrite)
	user := a.createUser(t, "alice")
	assert.Equal(t, "[REDACTED]", user.PasswordHash)
	assert.False(t, user.ID.IsZero())

	stored, err := a.secondary.GetUser(context.Background(), user.ID)
	require.NoError(t, err)
	require.NotNil(t, stored, "dual write mirrored the user")
	assert.Equal(t, "$2b$10$alice", stored.PasswordHash)

	rec := a.do(t, http.MethodGet, "/api/users/"+user.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", decodeBody[models.User](t, rec).Username)

	rec = a.do(t, http.MethodGet, "/api/users/by-username/alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, user.ID, decodeBody[models.User](t, rec).ID)

	rec = a.do(t, http.MethodGet, "/api/users/by-email/alice@example.com", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(t, http.MethodPut, "/api/users/"+user.ID.String(), map[string]string{"first_name": "Alice"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Alice", decodeBody[models.User](t, rec).FirstName)

	rec = a.do(t, http.MethodPost, "/api/users/"+user.ID.String()+"/seller", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeBody[models.User](t, rec).IsSeller)

	rec = a.do(t, http.MethodDelete, "/api/users/"+user.ID.String(), nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = a.do(t, http.MethodGet, "/api/users/"+user.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = a.do(t, http.MethodDelete, "/api/users/"+user.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUserRouteErrors(t *testing.T) {
	a := newTestApp(t, migration.PhaseDualWrite)
	a.createUser(t, "alice")

	rec := a.do(t, http.MethodGet, "/api/users/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, http.MethodPost, "/api/users", map[string]string{"username": "al", "email": "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, http.MethodPost, "/api/users", map[string]string{
		"username":      "alice",
		"email":         "other@example.com",
		"password_hash": "x",
	})
	assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())

	req := httptest.NewRequest(http.MethodPost, "/api/users", bytes.NewBufferString("{"))
	raw := httptest.NewRecorder()
	a.handler.ServeHTTP(raw, req)
	assert.Equal(t, http.StatusBadRequest, raw.Code)
}

func TestDualReadDivergenceResponse(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t, migration.PhaseDualRead)
	user := a.createUser(t, "alice")

	drifted, err := a.secondary.GetUser(ctx, user.ID)
	require.NoError(t, err)
	drifted.Email = "drifted@example.com"
	require.NoError(t, a.secondary.UpdateUser(ctx, drifted))

	rec := a.do(t, http.MethodGet, "/api/users/"+user.ID.String(), nil, CorrelationHeader, "req-42")
	require.Equal(t, http.StatusConflict, rec.Code)
	body := decodeBody[struct {
		Error         string                      `json:"error"`
		CorrelationID string                      `json:"correlation_id"`
		Errors        []migration.ValidationError `json:"errors"`
	}](t, rec)
	assert.Contains(t, body.Error, "Data validation failed for User ID "+user.ID.String())
	assert.Equal(t, "req-42", body.CorrelationID)
	require.Len(t, body.Errors, 1)
	assert.Equal(t, "email", body.Errors[0].Attribute)
}

func TestCatalogAndCartRoutes(t *testing.T) {
	a := newTestApp(t, migration.PhaseDualWrite)
	seller := a.createUser(t, "seller")
	buyer := a.createUser(t, "buyer")

	rec := a.do(t, http.MethodPost, "/api/categories", map[string]string{"name": "Books"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	category := decodeBody[models.Category](t, rec)

	rec = a.do(t, http.MethodPost, "/api/categories", map[string]string{"name": "Orphan", "parent_id": models.NewCategoryID().String()})
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	rec = a.do(t, http.MethodPut, "/api/categories/"+category.ID.String(), map[string]string{"name": "Novels"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Novels", decodeBody[models.Category](t, rec).Name)

	rec = a.do(t, http.MethodPost, "/api/products", map[string]any{
		"seller_id":          seller.ID.String(),
		"category_id":        category.ID.String(),
		"name":               "Dune",
		"price":              9.99,
		"inventory_quantity": 3,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	product := decodeBody[models.Product](t, rec)
	productPath := "/api/products/" + product.ID.String()

	rec = a.do(t, http.MethodPost, productPath+"/inventory/reduce", map[string]int{"quantity": 5})
	assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())

	rec = a.do(t, http.MethodPost, productPath+"/inventory/reduce", map[string]int{"quantity": 2})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 1, decodeBody[models.Product](t, rec).InventoryQuantity)

	rec = a.do(t, http.MethodPut, productPath+"/inventory", map[string]int{"quantity": 10})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 10, decodeBody[models.Product](t, rec).InventoryQuantity)

	rec = a.do(t, http.MethodPut, productPath, map[string]any{"price": 12.5})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 12.5, decodeBody[models.Product](t, rec).Price)

	cartPath := "/api/users/" + buyer.ID.String() + "/cart"
	rec = a.do(t, http.MethodPost, cartPath, map[string]any{"product_id": product.ID.String(), "quantity": 1})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = a.do(t, http.MethodPost, cartPath, map[string]any{"product_id": product.ID.String(), "quantity": 2})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 3, decodeBody[models.CartItem](t, rec).Quantity, "adding again merges the line")

	rec = a.do(t, http.MethodPost, cartPath, map[string]any{"product_id": "nope", "quantity": 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, http.MethodPut, cartPath+"/"+product.ID.String(), map[string]int{"quantity": 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = a.do(t, http.MethodPut, cartPath+"/"+product.ID.String(), map[string]int{"quantity": 5})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = a.do(t, http.MethodGet, cartPath, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cart := decodeBody[struct {
		Items []models.CartItem `json:"items"`
	}](t, rec)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 5, cart.Items[0].Quantity)

	rec = a.do(t, http.MethodDelete, cartPath+"/"+product.ID.String(), nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = a.do(t, http.MethodGet, cartPath, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"items":[]}`, rec.Body.String())

	rec = a.do(t, http.MethodDelete, productPath, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = a.do(t, http.MethodDelete, "/api/categories/"+category.ID.String(), nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = a.do(t, http.MethodGet, productPath, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListRoutes(t *testing.T) {
	a := newTestApp(t, migration.PhaseDualRead)
	seller := a.createUser(t, "seller")

	rec := a.do(t, http.MethodPost, "/api/categories", map[string]string{"name": "Books"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	books := decodeBody[models.Category](t, rec)
	rec = a.do(t, http.MethodPost, "/api/categories", map[string]string{"name": "Poetry", "parent_id": books.ID.String()})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	type categories struct {
		Categories []models.Category `json:"categories"`
	}
	rec = a.do(t, http.MethodGet, "/api/categories/roots", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	roots := decodeBody[categories](t, rec)
	require.Len(t, roots.Categories, 1)
	assert.Equal(t, books.ID, roots.Categories[0].ID)

	rec = a.do(t, http.MethodGet, "/api/categories/"+books.ID.String()+"/children", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, decodeBody[categories](t, rec).Categories, 1)

	rec = a.do(t, http.MethodPost, "/api/products", map[string]any{
		"seller_id":   seller.ID.String(),
		"category_id": books.ID.String(),
		"name":        "Dune",
		"price":       9.99,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	type products struct {
		Products []models.Product `json:"products"`
	}
	for _, path := range []string{
		"/api/categories/" + books.ID.String() + "/products",
		"/api/users/" + seller.ID.String() + "/products",
	} {
		rec = a.do(t, http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Len(t, decodeBody[products](t, rec).Products, 1, path)
	}

	ordersPath := "/api/users/" + seller.ID.String() + "/orders"
	rec = a.do(t, http.MethodGet, ordersPath, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"orders":[]}`, rec.Body.String())
	rec = a.do(t, http.MethodPost, "/api/orders", map[string]any{
		"user_id": seller.ID.String(),
		"items":   []map[string]any{{"product_id": models.NewProductID().String(), "quantity": 1, "price_at_time": 2}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = a.do(t, http.MethodGet, ordersPath, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[struct {
		Orders []models.Order `json:"orders"`
	}](t, rec).Orders, 1)

	rec = a.do(t, http.MethodGet, "/api/users/nope/orders", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSuperAdminAndClearCartRoutes(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t, migration.PhaseDualWrite)
	user := a.createUser(t, "alice")
	userPath := "/api/users/" + user.ID.String()

	rec := a.do(t, http.MethodPost, userPath+"/super-admin", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	promoted := decodeBody[models.User](t, rec)
	assert.True(t, promoted.SuperAdmin)
	assert.Equal(t, "[REDACTED]", promoted.PasswordHash)

	rec = a.do(t, http.MethodDelete, userPath+"/super-admin", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.False(t, decodeBody[models.User](t, rec).SuperAdmin)

	cartPath := userPath + "/cart"
	for i := 0; i < 2; i++ {
		rec = a.do(t, http.MethodPost, cartPath, map[string]any{"product_id": models.NewProductID().String(), "quantity": 1})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}
	rec = a.do(t, http.MethodDelete, cartPath, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, decodeBody[struct {
		Removed []models.CartItem `json:"removed"`
	}](t, rec).Removed, 2)

	left, err := a.secondary.ListCartItems(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestOrderRoutes(t *testing.T) {
	a := newTestApp(t, migration.PhaseDualWrite)
	buyer := a.createUser(t, "buyer")
	productID := models.NewProductID()

	rec := a.do(t, http.MethodPost, "/api/orders", map[string]any{
		"user_id": buyer.ID.String(),
		"items": []map[string]any{
			{"product_id": productID.String(), "quantity": 2, "price_at_time": 4.5},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	order := decodeBody[models.Order](t, rec)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, 9.0, order.TotalAmount)
	require.Len(t, order.Items, 1)

	orderPath := "/api/orders/" + order.ID.String()
	rec = a.do(t, http.MethodPut, orderPath+"/status", map[string]string{"status": "shipped"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, http.MethodPut, orderPath+"/status", map[string]string{"status": "completed"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	stored, err := a.secondary.GetOrder(context.Background(), order.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, models.OrderStatusCompleted, stored.Status)
	assert.Len(t, stored.Items, 1)

	rec = a.do(t, http.MethodGet, orderPath, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.OrderStatusCompleted, decodeBody[models.Order](t, rec).Status)

	rec = a.do(t, http.MethodGet, "/api/orders/"+models.NewOrderID().String(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCompensationsAndReconcile(t *testing.T) {
	a := newTestApp(t, migration.PhaseDualWrite)
	a.secondary.FailNext("CreateUser", errors.New("surreal unavailable"))
	a.primary.FailNext("DeleteUser", errors.New("postgres unavailable"))

	rec := a.do(t, http.MethodPost, "/api/users", map[string]string{
		"username":      "alice",
		"email":         "alice@example.com",
		"password_hash": "x",
	})
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = a.do(t, http.MethodGet, "/api/admin/compensations", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	pending := decodeBody[struct {
		Pending []models.Compensation `json:"pending"`
	}](t, rec)
	require.Len(t, pending.Pending, 1)
	assert.Equal(t, "User", pending.Pending[0].EntityType)
	assert.Equal(t, models.ChangeOperationCreate, pending.Pending[0].Operation)

	rec = a.do(t, http.MethodPost, "/api/admin/reconcile", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"examined":1,"consistent":0,"restored":1,"failed":0}`, rec.Body.String())

	rec = a.do(t, http.MethodGet, "/api/admin/compensations", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"pending":[]}`, rec.Body.String())
}

func TestBackfillRoute(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t, migration.PhaseSourceOnly)
	user := a.createUser(t, "alice")

	missing, err := a.secondary.GetUser(ctx, user.ID)
	require.NoError(t, err)
	require.Nil(t, missing)

	rec := a.do(t, http.MethodPost, "/api/admin/backfill", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody[struct {
		Results []struct {
			Entity  string `json:"entity"`
			Created int    `json:"created"`
		} `json:"results"`
	}](t, rec)
	require.NotEmpty(t, body.Results)
	assert.Equal(t, "User", body.Results[0].Entity)
	assert.Equal(t, 1, body.Results[0].Created)

	copied, err := a.secondary.GetUser(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, copied)
}

func TestMetricsEndpoint(t *testing.T) {
	a := newTestApp(t, migration.PhaseDualWrite)
	rec := a.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "surrealshift_migration_phase")
}

func TestPhaseGaugeFollowsLastRegistry(t *testing.T) {
	first := newTestApp(t, migration.PhaseDualWrite)
	second := newTestApp(t, migration.PhaseDualRead)

	rec := first.do(t, http.MethodGet, "/metrics", nil)
	assert.Contains(t, rec.Body.String(), "surrealshift_migration_phase 3")

	require.NoError(t, first.registry.SetPhase(migration.PhaseReadTarget))
	rec = second.do(t, http.MethodGet, "/metrics", nil)
	assert.Contains(t, rec.Body.String(), "surrealshift_migration_phase 4")
}
