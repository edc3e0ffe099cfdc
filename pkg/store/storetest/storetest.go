// Package storetest holds a conformance suite that every store.Store
// implementation runs from its own tests.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surrealdb/surrealshift/pkg/models"
	"github.com/surrealdb/surrealshift/pkg/store"
)

// Factory returns a fresh, migrated and empty store.
type Factory func(t *testing.T) store.Store

// Run exercises the repository contract against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("users", func(t *testing.T) { testUsers(t, newStore(t)) })
	t.Run("categories", func(t *testing.T) { testCategories(t, newStore(t)) })
	t.Run("products", func(t *testing.T) { testProducts(t, newStore(t)) })
	t.Run("cart", func(t *testing.T) { testCart(t, newStore(t)) })
	t.Run("orders", func(t *testing.T) { testOrders(t, newStore(t)) })
}

// NewUser returns a user with every field populated.
func NewUser(name string) *models.User {
	now := models.Now()
	return &models.User{
		ID:           models.NewUserID(),
		Username:     name,
		Email:        name + "@example.com",
		PasswordHash: "$2b$10$" + name,
		FirstName:    "First",
		LastName:     "Last",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func testUsers(t *testing.T, s store.Store) {
	ctx := context.Background()

	missing, err := s.GetUser(ctx, models.NewUserID())
	require.NoError(t, err)
	assert.Nil(t, missing)

	u := NewUser("alice")
	require.NoError(t, s.CreateUser(ctx, u))

	got, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, u.Username, got.Username)
	assert.True(t, u.CreatedAt.Equal(got.CreatedAt))

	byName, err := s.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, byName)
	assert.Equal(t, u.ID, byName.ID)

	byEmail, err := s.GetUserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	require.NotNil(t, byEmail)
	assert.Equal(t, u.ID, byEmail.ID)

	dup := NewUser("alice")
	assert.ErrorIs(t, s.CreateUser(ctx, dup), store.ErrConflict)

	u.IsSeller = true
	u.UpdatedAt = models.Now().Add(time.Second)
	require.NoError(t, s.UpdateUser(ctx, u))
	got, err = s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, got.IsSeller)

	assert.ErrorIs(t, s.UpdateUser(ctx, NewUser("ghost")), store.ErrNotFound)

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)

	require.NoError(t, s.DeleteUser(ctx, u.ID))
	got, err = s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.ErrorIs(t, s.DeleteUser(ctx, u.ID), store.ErrNotFound)
}

func testCategories(t *testing.T, s store.Store) {
	ctx := context.Background()

	root := &models.Category{ID: models.NewCategoryID(), Name: "Books", CreatedAt: models.Now()}
	require.NoError(t, s.CreateCategory(ctx, root))
	child := &models.Category{ID: models.NewCategoryID(), Name: "Sci-Fi", ParentID: &root.ID, CreatedAt: models.Now()}
	require.NoError(t, s.CreateCategory(ctx, child))

	got, err := s.GetCategory(ctx, child.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.NotNil(t, got.ParentID)
	assert.Equal(t, root.ID, *got.ParentID)

	child.Name = "Science Fiction"
	require.NoError(t, s.UpdateCategory(ctx, child))
	got, err = s.GetCategory(ctx, child.ID)
	require.NoError(t, err)
	assert.Equal(t, "Science Fiction", got.Name)

	list, err := s.ListCategories(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	roots, err := s.ListChildCategories(ctx, nil)
	require.NoError(t, err)
	require.Len(t, roots, 1)
	assert.Equal(t, root.ID, roots[0].ID)
	children, err := s.ListChildCategories(ctx, &root.ID)
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, child.ID, children[0].ID)
	none, err := s.ListChildCategories(ctx, &child.ID)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	require.NoError(t, s.DeleteCategory(ctx, child.ID))
	assert.ErrorIs(t, s.DeleteCategory(ctx, child.ID), store.ErrNotFound)
}

func testProducts(t *testing.T, s store.Store) {
	ctx := context.Background()
	seller := NewUser("seller")
	require.NoError(t, s.CreateUser(ctx, seller))
	cat := &models.Category{ID: models.NewCategoryID(), Name: "Games", CreatedAt: models.Now()}
	require.NoError(t, s.CreateCategory(ctx, cat))

	p := &models.Product{
		ID:                models.NewProductID(),
		SellerID:          seller.ID,
		CategoryID:        cat.ID,
		Name:              "Chess set",
		Description:       "Wooden",
		Price:             49.99,
		InventoryQuantity: 10,
		CreatedAt:         models.Now(),
		UpdatedAt:         models.Now(),
	}
	require.NoError(t, s.CreateProduct(ctx, p))

	got, err := s.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, seller.ID, got.SellerID)
	assert.InDelta(t, 49.99, got.Price, 0.001)

	p.InventoryQuantity = 3
	require.NoError(t, s.UpdateProduct(ctx, p))
	got, err = s.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.InventoryQuantity)

	list, err := s.ListProducts(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	byCategory, err := s.ListProductsByCategory(ctx, cat.ID)
	require.NoError(t, err)
	assert.Len(t, byCategory, 1)
	bySeller, err := s.ListProductsBySeller(ctx, seller.ID)
	require.NoError(t, err)
	assert.Len(t, bySeller, 1)
	bySeller, err = s.ListProductsBySeller(ctx, models.NewUserID())
	require.NoError(t, err)
	assert.Empty(t, bySeller)

	require.NoError(t, s.DeleteProduct(ctx, p.ID))
	got, err = s.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func testCart(t *testing.T, s store.Store) {
	ctx := context.Background()
	user := NewUser("shopper")
	require.NoError(t, s.CreateUser(ctx, user))
	productID := models.NewProductID()

	empty, err := s.ListCartItems(ctx, user.ID)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	item := &models.CartItem{ID: models.NewCartItemID(), UserID: user.ID, ProductID: productID, Quantity: 2, CreatedAt: models.Now(), UpdatedAt: models.Now()}
	require.NoError(t, s.CreateCartItem(ctx, item))

	dup := &models.CartItem{ID: models.NewCartItemID(), UserID: user.ID, ProductID: productID, Quantity: 1, CreatedAt: models.Now(), UpdatedAt: models.Now()}
	assert.ErrorIs(t, s.CreateCartItem(ctx, dup), store.ErrConflict)

	got, err := s.GetCartItemByProduct(ctx, user.ID, productID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, item.ID, got.ID)

	item.Quantity = 5
	require.NoError(t, s.UpdateCartItem(ctx, item))
	items, err := s.ListCartItems(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 5, items[0].Quantity)

	all, err := s.ListAllCartItems(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, s.DeleteCartItem(ctx, item.ID))
	got, err = s.GetCartItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func testOrders(t *testing.T, s store.Store) {
	ctx := context.Background()
	user := NewUser("buyer")
	require.NoError(t, s.CreateUser(ctx, user))

	order := &models.Order{
		ID:     models.NewOrderID(),
		UserID: user.ID,
		Status: models.OrderStatusPending,
		Items: []models.OrderItem{
			{ID: models.NewOrderItemID(), ProductID: models.NewProductID(), Quantity: 2, PriceAtTime: 5},
			{ID: models.NewOrderItemID(), ProductID: models.NewProductID(), Quantity: 1, PriceAtTime: 10},
		},
		CreatedAt: models.Now(),
		UpdatedAt: models.Now(),
	}
	order.TotalAmount = order.ComputeTotal()
	require.NoError(t, s.CreateOrder(ctx, order))

	got, err := s.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Len(t, got.Items, 2)
	assert.Equal(t, order.ID, got.Items[0].OrderID)
	assert.InDelta(t, 20.0, got.TotalAmount, 0.001)

	order.Status = models.OrderStatusCompleted
	order.Items = nil
	require.NoError(t, s.UpdateOrder(ctx, order))
	got, err = s.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCompleted, got.Status)
	assert.Len(t, got.Items, 2, "updating the header keeps the items")

	list, err := s.ListOrders(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	byUser, err := s.ListOrdersByUser(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, byUser, 1)
	assert.Len(t, byUser[0].Items, 2)
	byUser, err = s.ListOrdersByUser(ctx, models.NewUserID())
	require.NoError(t, err)
	assert.Empty(t, byUser)

	require.NoError(t, s.DeleteOrder(ctx, order.ID))
	got, err = s.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}
