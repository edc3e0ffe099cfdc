// Package postgres implements [store.Store] on PostgreSQL through GORM. It is
// the source of record during a migration and can also host the
// compensation journal, so that journal entries live in the same database
// as the writes they describe.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/surrealdb/surrealshift/pkg/models"
	"github.com/surrealdb/surrealshift/pkg/store"
)

type PostgresStore struct {
	db *gorm.DB
}

var _ store.Store = (*PostgresStore)(nil)

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// NewFromDB wraps an existing GORM handle.
func NewFromDB(db *gorm.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(
		&models.User{},
		&models.Category{},
		&models.Product{},
		&models.CartItem{},
		&models.Order{},
		&models.OrderItem{},
		&models.Compensation{},
	)
}

func (s *PostgresStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// translate maps GORM errors onto the store contract.
func translate(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%s: %w", what, store.ErrConflict)
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%s: %w", what, store.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", what, err)
}

// first loads one row into dest, returning false when there is none.
func (s *PostgresStore) first(ctx context.Context, dest any, query string, args ...any) (bool, error) {
	err := s.db.WithContext(ctx).Where(query, args...).First(dest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// replace overwrites every column of an existing row.
func (s *PostgresStore) replace(ctx context.Context, model any, id any, what string) error {
	res := s.db.WithContext(ctx).Model(model).Where("id = ?", id).Select("*").Omit(clause.Associations).Updates(model)
	if res.Error != nil {
		return translate(res.Error, what)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%s: %w", what, store.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) remove(ctx context.Context, model any, id any, what string) error {
	res := s.db.WithContext(ctx).Delete(model, "id = ?", id)
	if res.Error != nil {
		return translate(res.Error, what)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%s: %w", what, store.ErrNotFound)
	}
	return nil
}

// User operations

func (s *PostgresStore) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID.IsZero() {
		user.ID = models.NewUserID()
	}
	return translate(s.db.WithContext(ctx).Create(user).Error, "create user")
}

func (s *PostgresStore) GetUser(ctx context.Context, id models.UserID) (*models.User, error) {
	return s.findUser(ctx, "id = ?", id)
}

func (s *PostgresStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.findUser(ctx, "username = ?", username)
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findUser(ctx, "email = ?", email)
}

func (s *PostgresStore) findUser(ctx context.Context, query string, args ...any) (*models.User, error) {
	var user models.User
	ok, err := s.first(ctx, &user, query, args...)
	if err != nil || !ok {
		return nil, err
	}
	return &user, nil
}

func (s *PostgresStore) UpdateUser(ctx context.Context, user *models.User) error {
	return s.replace(ctx, user, user.ID, "update user")
}

func (s *PostgresStore) DeleteUser(ctx context.Context, id models.UserID) error {
	return s.remove(ctx, &models.User{}, id, "delete user")
}

func (s *PostgresStore) ListUsers(ctx context.Context) ([]*models.User, error) {
	var users []*models.User
	err := s.db.WithContext(ctx).Order("created_at").Find(&users).Error
	return users, err
}

// Category operations

func (s *PostgresStore) CreateCategory(ctx context.Context, category *models.Category) error {
	if category.ID.IsZero() {
		category.ID = models.NewCategoryID()
	}
	return translate(s.db.WithContext(ctx).Create(category).Error, "create category")
}

func (s *PostgresStore) GetCategory(ctx context.Context, id models.CategoryID) (*models.Category, error) {
	var category models.Category
	ok, err := s.first(ctx, &category, "id = ?", id)
	if err != nil || !ok {
		return nil, err
	}
	return &category, nil
}

func (s *PostgresStore) UpdateCategory(ctx context.Context, category *models.Category) error {
	return s.replace(ctx, category, category.ID, "update category")
}

func (s *PostgresStore) DeleteCategory(ctx context.Context, id models.CategoryID) error {
	return s.remove(ctx, &models.Category{}, id, "delete category")
}

func (s *PostgresStore) ListCategories(ctx context.Context) ([]*models.Category, error) {
	var categories []*models.Category
	err := s.db.WithContext(ctx).Order("created_at").Find(&categories).Error
	return categories, err
}

func (s *PostgresStore) ListChildCategories(ctx context.Context, parentID *models.CategoryID) ([]*models.Category, error) {
	categories := []*models.Category{}
	q := s.db.WithContext(ctx)
	if parentID == nil {
		q = q.Where("parent_id IS NULL")
	} else {
		q = q.Where("parent_id = ?", *parentID)
	}
	err := q.Order("created_at").Find(&categories).Error
	return categories, err
}

// Product operations

func (s *PostgresStore) CreateProduct(ctx context.Context, product *models.Product) error {
	if product.ID.IsZero() {
		product.ID = models.NewProductID()
	}
	return translate(s.db.WithContext(ctx).Create(product).Error, "create product")
}

func (s *PostgresStore) GetProduct(ctx context.Context, id models.ProductID) (*models.Product, error) {
	var product models.Product
	ok, err := s.first(ctx, &product, "id = ?", id)
	if err != nil || !ok {
		return nil, err
	}
	return &product, nil
}

func (s *PostgresStore) UpdateProduct(ctx context.Context, product *models.Product) error {
	return s.replace(ctx, product, product.ID, "update product")
}

func (s *PostgresStore) DeleteProduct(ctx context.Context, id models.ProductID) error {
	return s.remove(ctx, &models.Product{}, id, "delete product")
}

func (s *PostgresStore) ListProducts(ctx context.Context) ([]*models.Product, error) {
	var products []*models.Product
	err := s.db.WithContext(ctx).Order("created_at").Find(&products).Error
	return products, err
}

func (s *PostgresStore) ListProductsByCategory(ctx context.Context, categoryID models.CategoryID) ([]*models.Product, error) {
	products := []*models.Product{}
	err := s.db.WithContext(ctx).Where("category_id = ?", categoryID).Order("created_at").Find(&products).Error
	return products, err
}

func (s *PostgresStore) ListProductsBySeller(ctx context.Context, sellerID models.UserID) ([]*models.Product, error) {
	products := []*models.Product{}
	err := s.db.WithContext(ctx).Where("seller_id = ?", sellerID).Order("created_at").Find(&products).Error
	return products, err
}

// Cart operations

func (s *PostgresStore) CreateCartItem(ctx context.Context, item *models.CartItem) error {
	if item.ID.IsZero() {
		item.ID = models.NewCartItemID()
	}
	return translate(s.db.WithContext(ctx).Create(item).Error, "create cart item")
}

func (s *PostgresStore) GetCartItem(ctx context.Context, id models.CartItemID) (*models.CartItem, error) {
	var item models.CartItem
	ok, err := s.first(ctx, &item, "id = ?", id)
	if err != nil || !ok {
		return nil, err
	}
	return &item, nil
}

func (s *PostgresStore) GetCartItemByProduct(ctx context.Context, userID models.UserID, productID models.ProductID) (*models.CartItem, error) {
	var item models.CartItem
	ok, err := s.first(ctx, &item, "user_id = ? AND product_id = ?", userID, productID)
	if err != nil || !ok {
		return nil, err
	}
	return &item, nil
}

func (s *PostgresStore) UpdateCartItem(ctx context.Context, item *models.CartItem) error {
	return s.replace(ctx, item, item.ID, "update cart item")
}

func (s *PostgresStore) DeleteCartItem(ctx context.Context, id models.CartItemID) error {
	return s.remove(ctx, &models.CartItem{}, id, "delete cart item")
}

func (s *PostgresStore) ListCartItems(ctx context.Context, userID models.UserID) ([]*models.CartItem, error) {
	items := []*models.CartItem{}
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at").Find(&items).Error
	return items, err
}

func (s *PostgresStore) ListAllCartItems(ctx context.Context) ([]*models.CartItem, error) {
	items := []*models.CartItem{}
	err := s.db.WithContext(ctx).Order("created_at").Find(&items).Error
	return items, err
}

// Order operations

func (s *PostgresStore) CreateOrder(ctx context.Context, order *models.Order) error {
	if order.ID.IsZero() {
		order.ID = models.NewOrderID()
	}
	for i := range order.Items {
		if order.Items[i].ID.IsZero() {
			order.Items[i].ID = models.NewOrderItemID()
		}
		order.Items[i].OrderID = order.ID
	}
	// Items are inserted in the same transaction as the order header.
	return translate(s.db.WithContext(ctx).Create(order).Error, "create order")
}

func (s *PostgresStore) GetOrder(ctx context.Context, id models.OrderID) (*models.Order, error) {
	var order models.Order
	err := s.db.WithContext(ctx).Preload("Items").Where("id = ?", id).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *PostgresStore) UpdateOrder(ctx context.Context, order *models.Order) error {
	return s.replace(ctx, order, order.ID, "update order")
}

func (s *PostgresStore) DeleteOrder(ctx context.Context, id models.OrderID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.OrderItem{}, "order_id = ?", id).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Order{}, "id = ?", id)
		if res.Error != nil {
			return translate(res.Error, "delete order")
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("delete order: %w", store.ErrNotFound)
		}
		return nil
	})
}

func (s *PostgresStore) ListOrders(ctx context.Context) ([]*models.Order, error) {
	var orders []*models.Order
	err := s.db.WithContext(ctx).Preload("Items").Order("created_at").Find(&orders).Error
	return orders, err
}

func (s *PostgresStore) ListOrdersByUser(ctx context.Context, userID models.UserID) ([]*models.Order, error) {
	orders := []*models.Order{}
	err := s.db.WithContext(ctx).Preload("Items").Where("user_id = ?", userID).Order("created_at").Find(&orders).Error
	return orders, err
}

// Truncate empties every table. Intended for tests against a scratch
// database.
func (s *PostgresStore) Truncate(ctx context.Context) error {
	return s.db.WithContext(ctx).Exec(
		"TRUNCATE order_items, orders, cart_items, products, categories, users, pending_compensations",
	).Error
}
