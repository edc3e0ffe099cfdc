// Package surrealdb implements [store.Store] on SurrealDB through the Go SDK.
// It is the migration target.
//
// Records are written under the RecordID derived from the entity's typed ID
// (users:⟨uuid⟩, products:⟨uuid⟩, ...), so a record mirrored from PostgreSQL
// keeps its identity. Foreign keys marshal to RecordIDs as well and are
// queried with parameters, never by string interpolation.
//
// Order items are embedded in their order document rather than kept in a
// table of their own.
package surrealdb

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/surrealdb/surrealdb.go"
	"github.com/surrealdb/surrealdb.go/pkg/connection"
	"github.com/surrealdb/surrealdb.go/pkg/connection/gorillaws"
	surrealdb_models "github.com/surrealdb/surrealdb.go/pkg/models"
	"github.com/surrealdb/surrealdb.go/surrealcbor"

	"github.com/surrealdb/surrealshift/pkg/models"
	"github.com/surrealdb/surrealshift/pkg/store"
)

const tableUsers = "users"

type SurrealStore struct {
	db       *surrealdb.DB
	ns       string
	database string
}

var _ store.Store = (*SurrealStore)(nil)

// NewSurrealStore connects over WebSocket with the surrealcbor codec, signs
// in when credentials are given and selects the namespace and database.
func NewSurrealStore(ctx context.Context, wsURL, namespace, database, username, password string) (*SurrealStore, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}

	conf := connection.NewConfig(u)
	// surrealcbor encodes time.Time as SurrealDB datetimes and honors the
	// typed IDs' RecordID marshaling.
	codec := surrealcbor.New()
	conf.Marshaler = codec
	conf.Unmarshaler = codec

	db, err := surrealdb.FromConnection(ctx, gorillaws.New(conf))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SurrealDB: %w", err)
	}

	if username != "" && password != "" {
		if _, err := db.SignIn(ctx, map[string]any{
			"user": username,
			"pass": password,
		}); err != nil {
			return nil, fmt.Errorf("failed to authenticate: %w", err)
		}
	}

	if err := db.Use(ctx, namespace, database); err != nil {
		return nil, fmt.Errorf("failed to use namespace/database: %w", err)
	}

	return &SurrealStore{db: db, ns: namespace, database: database}, nil
}

// Migrate defines the unique indexes that PostgreSQL enforces with
// constraints. Tables themselves are created on first write.
func (s *SurrealStore) Migrate(ctx context.Context) error {
	statements := []string{
		"DEFINE INDEX IF NOT EXISTS users_username ON users FIELDS username UNIQUE",
		"DEFINE INDEX IF NOT EXISTS users_email ON users FIELDS email UNIQUE",
		"DEFINE INDEX IF NOT EXISTS cart_user_product ON cart_items FIELDS user_id, product_id UNIQUE",
		"DEFINE INDEX IF NOT EXISTS products_seller ON products FIELDS seller_id",
		"DEFINE INDEX IF NOT EXISTS orders_user ON orders FIELDS user_id",
	}
	for _, stmt := range statements {
		if _, err := surrealdb.Query[any](ctx, s.db, stmt, nil); err != nil {
			return fmt.Errorf("migrate %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *SurrealStore) Close() error {
	return s.db.Close(context.Background())
}

// isNotFound recognizes the SDK's ways of reporting an absent record.
func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "Expected a single or multiple results but got 0") ||
		strings.Contains(msg, "cannot unmarshal array into Go value")
}

func translate(err error, what string) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if strings.Contains(msg, "already exists") || strings.Contains(msg, "already contains") {
		return fmt.Errorf("%s: %w", what, store.ErrConflict)
	}
	return fmt.Errorf("%s: %w", what, err)
}

// selectOne loads a record by RecordID. present filters out the empty value
// some SDK versions return for a missing record.
func selectOne[T any](ctx context.Context, db *surrealdb.DB, rid surrealdb_models.RecordID, present func(*T) bool) (*T, error) {
	v, err := surrealdb.Select[T](ctx, db, rid)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	if v == nil || !present(v) {
		return nil, nil
	}
	return v, nil
}

// queryAll runs a single-statement query and returns its rows.
func queryAll[T any](ctx context.Context, db *surrealdb.DB, query string, params map[string]any) ([]*T, error) {
	result, err := surrealdb.Query[[]*T](ctx, db, query, params)
	if err != nil {
		return nil, err
	}
	rows := []*T{}
	if result != nil && len(*result) > 0 {
		rows = append(rows, (*result)[0].Result...)
	}
	return rows, nil
}

func create[T any](ctx context.Context, db *surrealdb.DB, rid surrealdb_models.RecordID, v *T, what string) error {
	_, err := surrealdb.Create[T](ctx, db, rid, v)
	return translate(err, what)
}

func update[T any](ctx context.Context, db *surrealdb.DB, rid surrealdb_models.RecordID, v *T, what string) error {
	_, err := surrealdb.Update[T](ctx, db, rid, v)
	return translate(err, what)
}

func remove[T any](ctx context.Context, db *surrealdb.DB, rid surrealdb_models.RecordID, what string) error {
	_, err := surrealdb.Delete[T](ctx, db, rid)
	if err != nil && !isNotFound(err) {
		return translate(err, what)
	}
	return nil
}

// User operations

func (s *SurrealStore) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID.IsZero() {
		user.ID = models.NewUserID()
	}
	return create(ctx, s.db, user.ID.RecordID(), user, "create user")
}

func (s *SurrealStore) GetUser(ctx context.Context, id models.UserID) (*models.User, error) {
	return selectOne(ctx, s.db, id.RecordID(), func(u *models.User) bool { return !u.ID.IsZero() })
}

func (s *SurrealStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.findUser(ctx, "username", username)
}

func (s *SurrealStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findUser(ctx, "email", email)
}

func (s *SurrealStore) findUser(ctx context.Context, field, value string) (*models.User, error) {
	// field is one of two constants above, never caller input.
	query := fmt.Sprintf("SELECT * FROM %s WHERE %s = $value LIMIT 1", tableUsers, field)
	users, err := queryAll[models.User](ctx, s.db, query, map[string]any{"value": value})
	if err != nil {
		return nil, fmt.Errorf("failed to find user by %s: %w", field, err)
	}
	if len(users) == 0 {
		return nil, nil
	}
	return users[0], nil
}

func (s *SurrealStore) UpdateUser(ctx context.Context, user *models.User) error {
	existing, err := s.GetUser(ctx, user.ID)
	if err != nil {
		return err
	}
	if existing == nil {
		return fmt.Errorf("update user: %w", store.ErrNotFound)
	}
	return update(ctx, s.db, user.ID.RecordID(), user, "update user")
}

func (s *SurrealStore) DeleteUser(ctx context.Context, id models.UserID) error {
	existing, err := s.GetUser(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return fmt.Errorf("delete user: %w", store.ErrNotFound)
	}
	return remove[models.User](ctx, s.db, id.RecordID(), "delete user")
}

func (s *SurrealStore) ListUsers(ctx context.Context) ([]*models.User, error) {
	return queryAll[models.User](ctx, s.db, "SELECT * FROM users ORDER BY created_at", nil)
}

// Category operations

func (s *SurrealStore) CreateCategory(ctx context.Context, category *models.Category) error {
	if category.ID.IsZero() {
		category.ID = models.NewCategoryID()
	}
	return create(ctx, s.db, category.ID.RecordID(), category, "create category")
}

func (s *SurrealStore) GetCategory(ctx context.Context, id models.CategoryID) (*models.Category, error) {
	return selectOne(ctx, s.db, id.RecordID(), func(c *models.Category) bool { return !c.ID.IsZero() })
}

func (s *SurrealStore) UpdateCategory(ctx context.Context, category *models.Category) error {
	existing, err := s.GetCategory(ctx, category.ID)
	if err != nil {
		return err
	}
	if existing == nil {
		return fmt.Errorf("update category: %w", store.ErrNotFound)
	}
	return update(ctx, s.db, category.ID.RecordID(), category, "update category")
}

func (s *SurrealStore) DeleteCategory(ctx context.Context, id models.CategoryID) error {
	existing, err := s.GetCategory(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return fmt.Errorf("delete category: %w", store.ErrNotFound)
	}
	return remove[models.Category](ctx, s.db, id.RecordID(), "delete category")
}

func (s *SurrealStore) ListCategories(ctx context.Context) ([]*models.Category, error) {
	return queryAll[models.Category](ctx, s.db, "SELECT * FROM categories ORDER BY created_at", nil)
}

func (s *SurrealStore) ListChildCategories(ctx context.Context, parentID *models.CategoryID) ([]*models.Category, error) {
	if parentID == nil {
		return queryAll[models.Category](ctx, s.db,
			"SELECT * FROM categories WHERE parent_id = NONE OR parent_id = NULL ORDER BY created_at", nil)
	}
	return queryAll[models.Category](ctx, s.db,
		"SELECT * FROM categories WHERE parent_id = $parent ORDER BY created_at",
		map[string]any{"parent": *parentID})
}

// Product operations

func (s *SurrealStore) CreateProduct(ctx context.Context, product *models.Product) error {
	if product.ID.IsZero() {
		product.ID = models.NewProductID()
	}
	return create(ctx, s.db, product.ID.RecordID(), product, "create product")
}

func (s *SurrealStore) GetProduct(ctx context.Context, id models.ProductID) (*models.Product, error) {
	return selectOne(ctx, s.db, id.RecordID(), func(p *models.Product) bool { return !p.ID.IsZero() })
}

func (s *SurrealStore) UpdateProduct(ctx context.Context, product *models.Product) error {
	existing, err := s.GetProduct(ctx, product.ID)
	if err != nil {
		return err
	}
	if existing == nil {
		return fmt.Errorf("update product: %w", store.ErrNotFound)
	}
	return update(ctx, s.db, product.ID.RecordID(), product, "update product")
}

func (s *SurrealStore) DeleteProduct(ctx context.Context, id models.ProductID) error {
	existing, err := s.GetProduct(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return fmt.Errorf("delete product: %w", store.ErrNotFound)
	}
	return remove[models.Product](ctx, s.db, id.RecordID(), "delete product")
}

func (s *SurrealStore) ListProducts(ctx context.Context) ([]*models.Product, error) {
	return queryAll[models.Product](ctx, s.db, "SELECT * FROM products ORDER BY created_at", nil)
}

func (s *SurrealStore) ListProductsByCategory(ctx context.Context, categoryID models.CategoryID) ([]*models.Product, error) {
	return queryAll[models.Product](ctx, s.db,
		"SELECT * FROM products WHERE category_id = $category ORDER BY created_at",
		map[string]any{"category": categoryID})
}

func (s *SurrealStore) ListProductsBySeller(ctx context.Context, sellerID models.UserID) ([]*models.Product, error) {
	return queryAll[models.Product](ctx, s.db,
		"SELECT * FROM products WHERE seller_id = $seller ORDER BY created_at",
		map[string]any{"seller": sellerID})
}

// Cart operations

func (s *SurrealStore) CreateCartItem(ctx context.Context, item *models.CartItem) error {
	if item.ID.IsZero() {
		item.ID = models.NewCartItemID()
	}
	return create(ctx, s.db, item.ID.RecordID(), item, "create cart item")
}

func (s *SurrealStore) GetCartItem(ctx context.Context, id models.CartItemID) (*models.CartItem, error) {
	return selectOne(ctx, s.db, id.RecordID(), func(c *models.CartItem) bool { return !c.ID.IsZero() })
}

func (s *SurrealStore) GetCartItemByProduct(ctx context.Context, userID models.UserID, productID models.ProductID) (*models.CartItem, error) {
	items, err := queryAll[models.CartItem](ctx, s.db,
		"SELECT * FROM cart_items WHERE user_id = $user AND product_id = $product LIMIT 1",
		map[string]any{"user": userID, "product": productID})
	if err != nil {
		return nil, fmt.Errorf("failed to find cart item: %w", err)
	}
	if len(items) == 0 {
		return nil, nil
	}
	return items[0], nil
}

func (s *SurrealStore) UpdateCartItem(ctx context.Context, item *models.CartItem) error {
	existing, err := s.GetCartItem(ctx, item.ID)
	if err != nil {
		return err
	}
	if existing == nil {
		return fmt.Errorf("update cart item: %w", store.ErrNotFound)
	}
	return update(ctx, s.db, item.ID.RecordID(), item, "update cart item")
}

func (s *SurrealStore) DeleteCartItem(ctx context.Context, id models.CartItemID) error {
	existing, err := s.GetCartItem(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return fmt.Errorf("delete cart item: %w", store.ErrNotFound)
	}
	return remove[models.CartItem](ctx, s.db, id.RecordID(), "delete cart item")
}

func (s *SurrealStore) ListCartItems(ctx context.Context, userID models.UserID) ([]*models.CartItem, error) {
	return queryAll[models.CartItem](ctx, s.db,
		"SELECT * FROM cart_items WHERE user_id = $user ORDER BY created_at",
		map[string]any{"user": userID})
}

func (s *SurrealStore) ListAllCartItems(ctx context.Context) ([]*models.CartItem, error) {
	return queryAll[models.CartItem](ctx, s.db, "SELECT * FROM cart_items ORDER BY created_at", nil)
}

// Order operations

func (s *SurrealStore) CreateOrder(ctx context.Context, order *models.Order) error {
	if order.ID.IsZero() {
		order.ID = models.NewOrderID()
	}
	for i := range order.Items {
		if order.Items[i].ID.IsZero() {
			order.Items[i].ID = models.NewOrderItemID()
		}
		order.Items[i].OrderID = order.ID
	}
	return create(ctx, s.db, order.ID.RecordID(), order, "create order")
}

func (s *SurrealStore) GetOrder(ctx context.Context, id models.OrderID) (*models.Order, error) {
	return selectOne(ctx, s.db, id.RecordID(), func(o *models.Order) bool { return !o.ID.IsZero() })
}

func (s *SurrealStore) UpdateOrder(ctx context.Context, order *models.Order) error {
	existing, err := s.GetOrder(ctx, order.ID)
	if err != nil {
		return err
	}
	if existing == nil {
		return fmt.Errorf("update order: %w", store.ErrNotFound)
	}
	updated := *order
	updated.Items = existing.Items
	return update(ctx, s.db, order.ID.RecordID(), &updated, "update order")
}

func (s *SurrealStore) DeleteOrder(ctx context.Context, id models.OrderID) error {
	existing, err := s.GetOrder(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return fmt.Errorf("delete order: %w", store.ErrNotFound)
	}
	return remove[models.Order](ctx, s.db, id.RecordID(), "delete order")
}

func (s *SurrealStore) ListOrders(ctx context.Context) ([]*models.Order, error) {
	return queryAll[models.Order](ctx, s.db, "SELECT * FROM orders ORDER BY created_at", nil)
}

func (s *SurrealStore) ListOrdersByUser(ctx context.Context, userID models.UserID) ([]*models.Order, error) {
	return queryAll[models.Order](ctx, s.db,
		"SELECT * FROM orders WHERE user_id = $user ORDER BY created_at",
		map[string]any{"user": userID})
}
