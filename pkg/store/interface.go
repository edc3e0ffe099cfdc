package store

import (
	"context"
	"errors"

	"github.com/surrealdb/surrealshift/pkg/models"
)

// ErrNotFound is returned by writes that address a record which does not
// exist. Reads report absence as a nil entity with a nil error instead.
var ErrNotFound = errors.New("record not found")

// ErrConflict is returned when a create collides with an existing record or
// unique key.
var ErrConflict = errors.New("record already exists")

type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id models.UserID) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateUser(ctx context.Context, user *models.User) error
	DeleteUser(ctx context.Context, id models.UserID) error
	ListUsers(ctx context.Context) ([]*models.User, error)
}

type CategoryStore interface {
	CreateCategory(ctx context.Context, category *models.Category) error
	GetCategory(ctx context.Context, id models.CategoryID) (*models.Category, error)
	UpdateCategory(ctx context.Context, category *models.Category) error
	DeleteCategory(ctx context.Context, id models.CategoryID) error
	ListCategories(ctx context.Context) ([]*models.Category, error)
	// ListChildCategories lists the direct children of parentID, or the
	// root categories when parentID is nil.
	ListChildCategories(ctx context.Context, parentID *models.CategoryID) ([]*models.Category, error)
}

type ProductStore interface {
	CreateProduct(ctx context.Context, product *models.Product) error
	GetProduct(ctx context.Context, id models.ProductID) (*models.Product, error)
	UpdateProduct(ctx context.Context, product *models.Product) error
	DeleteProduct(ctx context.Context, id models.ProductID) error
	ListProducts(ctx context.Context) ([]*models.Product, error)
	ListProductsByCategory(ctx context.Context, categoryID models.CategoryID) ([]*models.Product, error)
	ListProductsBySeller(ctx context.Context, sellerID models.UserID) ([]*models.Product, error)
}

type CartStore interface {
	CreateCartItem(ctx context.Context, item *models.CartItem) error
	GetCartItem(ctx context.Context, id models.CartItemID) (*models.CartItem, error)
	GetCartItemByProduct(ctx context.Context, userID models.UserID, productID models.ProductID) (*models.CartItem, error)
	UpdateCartItem(ctx context.Context, item *models.CartItem) error
	DeleteCartItem(ctx context.Context, id models.CartItemID) error
	ListCartItems(ctx context.Context, userID models.UserID) ([]*models.CartItem, error)
	ListAllCartItems(ctx context.Context) ([]*models.CartItem, error)
}

type OrderStore interface {
	// CreateOrder persists the order together with its items.
	CreateOrder(ctx context.Context, order *models.Order) error
	GetOrder(ctx context.Context, id models.OrderID) (*models.Order, error)
	// UpdateOrder replaces the order header. Items are immutable after creation.
	UpdateOrder(ctx context.Context, order *models.Order) error
	DeleteOrder(ctx context.Context, id models.OrderID) error
	ListOrders(ctx context.Context) ([]*models.Order, error)
	ListOrdersByUser(ctx context.Context, userID models.UserID) ([]*models.Order, error)
}

// Store is one complete backend. The migration coordinators hold two of
// them, the source of record and the migration target.
type Store interface {
	UserStore
	CategoryStore
	ProductStore
	CartStore
	OrderStore

	Migrate(ctx context.Context) error
	Close() error
}
