// Package memory provides an in-process [store.Store] with fault and latency
// injection.
//
// The store keeps each entity in a map keyed by ID and hands out copies, so a
// caller mutating a returned value never changes stored state. Faults are
// registered per operation name (the method name, e.g. "CreateUser") and
// are consumed before the operation touches any data:
//
//	s := memory.New()
//	s.FailNext("UpdateUser", errors.New("disk full"))
//	s.SetLatency(5 * time.Millisecond)
//
// Every call is counted, which lets tests assert which backend a coordinator
// actually used.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/surrealdb/surrealshift/pkg/models"
	"github.com/surrealdb/surrealshift/pkg/store"
)

type fault struct {
	err    error
	always bool
}

type Store struct {
	mu sync.RWMutex

	users      map[models.UserID]models.User
	categories map[models.CategoryID]models.Category
	products   map[models.ProductID]models.Product
	cartItems  map[models.CartItemID]models.CartItem
	orders     map[models.OrderID]models.Order

	faultMu sync.Mutex
	faults  map[string][]fault
	calls   map[string]int
	latency time.Duration
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		users:      make(map[models.UserID]models.User),
		categories: make(map[models.CategoryID]models.Category),
		products:   make(map[models.ProductID]models.Product),
		cartItems:  make(map[models.CartItemID]models.CartItem),
		orders:     make(map[models.OrderID]models.Order),
		faults:     make(map[string][]fault),
		calls:      make(map[string]int),
	}
}

// FailNext makes the next call to op return err.
func (s *Store) FailNext(op string, err error) {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	s.faults[op] = append(s.faults[op], fault{err: err})
}

// FailAfter lets the next n calls to op through, then fails the one after
// with err.
func (s *Store) FailAfter(op string, n int, err error) {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	for i := 0; i < n; i++ {
		s.faults[op] = append(s.faults[op], fault{})
	}
	s.faults[op] = append(s.faults[op], fault{err: err})
}

// FailAlways makes every call to op return err until ClearFaults.
func (s *Store) FailAlways(op string, err error) {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	s.faults[op] = append(s.faults[op], fault{err: err, always: true})
}

func (s *Store) ClearFaults() {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	s.faults = make(map[string][]fault)
}

// SetLatency delays every operation by d, honoring context cancellation.
func (s *Store) SetLatency(d time.Duration) {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	s.latency = d
}

// Calls returns how many times op was invoked, including failed calls.
func (s *Store) Calls(op string) int {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	return s.calls[op]
}

// ResetCalls zeroes every call counter.
func (s *Store) ResetCalls() {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	s.calls = make(map[string]int)
}

func (s *Store) enter(ctx context.Context, op string) error {
	s.faultMu.Lock()
	s.calls[op]++
	latency := s.latency
	var injected error
	if queue := s.faults[op]; len(queue) > 0 {
		injected = queue[0].err
		if !queue[0].always {
			s.faults[op] = queue[1:]
		}
	}
	s.faultMu.Unlock()

	if latency > 0 {
		timer := time.NewTimer(latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	if injected != nil {
		return injected
	}
	return ctx.Err()
}

func (s *Store) Migrate(ctx context.Context) error {
	return s.enter(ctx, "Migrate")
}

func (s *Store) Close() error {
	return nil
}

// User operations

func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	if err := s.enter(ctx, "CreateUser"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if user.ID.IsZero() {
		user.ID = models.NewUserID()
	}
	if _, ok := s.users[user.ID]; ok {
		return fmt.Errorf("user %s: %w", user.ID, store.ErrConflict)
	}
	for _, u := range s.users {
		if u.Username == user.Username || u.Email == user.Email {
			return fmt.Errorf("user %s: %w", user.Username, store.ErrConflict)
		}
	}
	s.users[user.ID] = *user
	return nil
}

func (s *Store) GetUser(ctx context.Context, id models.UserID) (*models.User, error) {
	if err := s.enter(ctx, "GetUser"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	if err := s.enter(ctx, "GetUserByUsername"); err != nil {
		return nil, err
	}
	return s.findUser(func(u models.User) bool { return u.Username == username }), nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	if err := s.enter(ctx, "GetUserByEmail"); err != nil {
		return nil, err
	}
	return s.findUser(func(u models.User) bool { return u.Email == email }), nil
}

func (s *Store) findUser(match func(models.User) bool) *models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if match(u) {
			return &u
		}
	}
	return nil
}

func (s *Store) UpdateUser(ctx context.Context, user *models.User) error {
	if err := s.enter(ctx, "UpdateUser"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; !ok {
		return fmt.Errorf("user %s: %w", user.ID, store.ErrNotFound)
	}
	s.users[user.ID] = *user
	return nil
}

func (s *Store) DeleteUser(ctx context.Context, id models.UserID) error {
	if err := s.enter(ctx, "DeleteUser"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return fmt.Errorf("user %s: %w", id, store.ErrNotFound)
	}
	delete(s.users, id)
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]*models.User, error) {
	if err := s.enter(ctx, "ListUsers"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, &u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Category operations

func (s *Store) CreateCategory(ctx context.Context, category *models.Category) error {
	if err := s.enter(ctx, "CreateCategory"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if category.ID.IsZero() {
		category.ID = models.NewCategoryID()
	}
	if _, ok := s.categories[category.ID]; ok {
		return fmt.Errorf("category %s: %w", category.ID, store.ErrConflict)
	}
	s.categories[category.ID] = cloneCategory(*category)
	return nil
}

func (s *Store) GetCategory(ctx context.Context, id models.CategoryID) (*models.Category, error) {
	if err := s.enter(ctx, "GetCategory"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.categories[id]
	if !ok {
		return nil, nil
	}
	c = cloneCategory(c)
	return &c, nil
}

func (s *Store) UpdateCategory(ctx context.Context, category *models.Category) error {
	if err := s.enter(ctx, "UpdateCategory"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.categories[category.ID]; !ok {
		return fmt.Errorf("category %s: %w", category.ID, store.ErrNotFound)
	}
	s.categories[category.ID] = cloneCategory(*category)
	return nil
}

func (s *Store) DeleteCategory(ctx context.Context, id models.CategoryID) error {
	if err := s.enter(ctx, "DeleteCategory"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.categories[id]; !ok {
		return fmt.Errorf("category %s: %w", id, store.ErrNotFound)
	}
	delete(s.categories, id)
	return nil
}

func (s *Store) ListCategories(ctx context.Context) ([]*models.Category, error) {
	if err := s.enter(ctx, "ListCategories"); err != nil {
		return nil, err
	}
	return s.listCategories(func(models.Category) bool { return true }), nil
}

func (s *Store) ListChildCategories(ctx context.Context, parentID *models.CategoryID) ([]*models.Category, error) {
	if err := s.enter(ctx, "ListChildCategories"); err != nil {
		return nil, err
	}
	return s.listCategories(func(c models.Category) bool {
		if parentID == nil || c.ParentID == nil {
			return parentID == nil && c.ParentID == nil
		}
		return *c.ParentID == *parentID
	}), nil
}

func (s *Store) listCategories(match func(models.Category) bool) []*models.Category {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Category, 0)
	for _, c := range s.categories {
		if match(c) {
			c = cloneCategory(c)
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func cloneCategory(c models.Category) models.Category {
	if c.ParentID != nil {
		parent := *c.ParentID
		c.ParentID = &parent
	}
	return c
}

// Product operations

func (s *Store) CreateProduct(ctx context.Context, product *models.Product) error {
	if err := s.enter(ctx, "CreateProduct"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if product.ID.IsZero() {
		product.ID = models.NewProductID()
	}
	if _, ok := s.products[product.ID]; ok {
		return fmt.Errorf("product %s: %w", product.ID, store.ErrConflict)
	}
	s.products[product.ID] = *product
	return nil
}

func (s *Store) GetProduct(ctx context.Context, id models.ProductID) (*models.Product, error) {
	if err := s.enter(ctx, "GetProduct"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product *models.Product) error {
	if err := s.enter(ctx, "UpdateProduct"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[product.ID]; !ok {
		return fmt.Errorf("product %s: %w", product.ID, store.ErrNotFound)
	}
	s.products[product.ID] = *product
	return nil
}

func (s *Store) DeleteProduct(ctx context.Context, id models.ProductID) error {
	if err := s.enter(ctx, "DeleteProduct"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[id]; !ok {
		return fmt.Errorf("product %s: %w", id, store.ErrNotFound)
	}
	delete(s.products, id)
	return nil
}

func (s *Store) ListProducts(ctx context.Context) ([]*models.Product, error) {
	if err := s.enter(ctx, "ListProducts"); err != nil {
		return nil, err
	}
	return s.listProducts(func(models.Product) bool { return true }), nil
}

func (s *Store) ListProductsByCategory(ctx context.Context, categoryID models.CategoryID) ([]*models.Product, error) {
	if err := s.enter(ctx, "ListProductsByCategory"); err != nil {
		return nil, err
	}
	return s.listProducts(func(p models.Product) bool { return p.CategoryID == categoryID }), nil
}

func (s *Store) ListProductsBySeller(ctx context.Context, sellerID models.UserID) ([]*models.Product, error) {
	if err := s.enter(ctx, "ListProductsBySeller"); err != nil {
		return nil, err
	}
	return s.listProducts(func(p models.Product) bool { return p.SellerID == sellerID }), nil
}

func (s *Store) listProducts(match func(models.Product) bool) []*models.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Product, 0)
	for _, p := range s.products {
		if match(p) {
			out = append(out, &p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Cart operations

func (s *Store) CreateCartItem(ctx context.Context, item *models.CartItem) error {
	if err := s.enter(ctx, "CreateCartItem"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if item.ID.IsZero() {
		item.ID = models.NewCartItemID()
	}
	if _, ok := s.cartItems[item.ID]; ok {
		return fmt.Errorf("cart item %s: %w", item.ID, store.ErrConflict)
	}
	for _, existing := range s.cartItems {
		if existing.UserID == item.UserID && existing.ProductID == item.ProductID {
			return fmt.Errorf("cart item for product %s: %w", item.ProductID, store.ErrConflict)
		}
	}
	s.cartItems[item.ID] = *item
	return nil
}

func (s *Store) GetCartItem(ctx context.Context, id models.CartItemID) (*models.CartItem, error) {
	if err := s.enter(ctx, "GetCartItem"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.cartItems[id]
	if !ok {
		return nil, nil
	}
	return &item, nil
}

func (s *Store) GetCartItemByProduct(ctx context.Context, userID models.UserID, productID models.ProductID) (*models.CartItem, error) {
	if err := s.enter(ctx, "GetCartItemByProduct"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, item := range s.cartItems {
		if item.UserID == userID && item.ProductID == productID {
			return &item, nil
		}
	}
	return nil, nil
}

func (s *Store) UpdateCartItem(ctx context.Context, item *models.CartItem) error {
	if err := s.enter(ctx, "UpdateCartItem"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cartItems[item.ID]; !ok {
		return fmt.Errorf("cart item %s: %w", item.ID, store.ErrNotFound)
	}
	s.cartItems[item.ID] = *item
	return nil
}

func (s *Store) DeleteCartItem(ctx context.Context, id models.CartItemID) error {
	if err := s.enter(ctx, "DeleteCartItem"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cartItems[id]; !ok {
		return fmt.Errorf("cart item %s: %w", id, store.ErrNotFound)
	}
	delete(s.cartItems, id)
	return nil
}

func (s *Store) ListCartItems(ctx context.Context, userID models.UserID) ([]*models.CartItem, error) {
	if err := s.enter(ctx, "ListCartItems"); err != nil {
		return nil, err
	}
	return s.listCart(func(item models.CartItem) bool { return item.UserID == userID }), nil
}

func (s *Store) ListAllCartItems(ctx context.Context) ([]*models.CartItem, error) {
	if err := s.enter(ctx, "ListAllCartItems"); err != nil {
		return nil, err
	}
	return s.listCart(func(models.CartItem) bool { return true }), nil
}

func (s *Store) listCart(match func(models.CartItem) bool) []*models.CartItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.CartItem, 0)
	for _, item := range s.cartItems {
		if match(item) {
			out = append(out, &item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Order operations

func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	if err := s.enter(ctx, "CreateOrder"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if order.ID.IsZero() {
		order.ID = models.NewOrderID()
	}
	if _, ok := s.orders[order.ID]; ok {
		return fmt.Errorf("order %s: %w", order.ID, store.ErrConflict)
	}
	for i := range order.Items {
		if order.Items[i].ID.IsZero() {
			order.Items[i].ID = models.NewOrderItemID()
		}
		order.Items[i].OrderID = order.ID
	}
	s.orders[order.ID] = cloneOrder(*order)
	return nil
}

func (s *Store) GetOrder(ctx context.Context, id models.OrderID) (*models.Order, error) {
	if err := s.enter(ctx, "GetOrder"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, nil
	}
	o = cloneOrder(o)
	return &o, nil
}

func (s *Store) UpdateOrder(ctx context.Context, order *models.Order) error {
	if err := s.enter(ctx, "UpdateOrder"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.orders[order.ID]
	if !ok {
		return fmt.Errorf("order %s: %w", order.ID, store.ErrNotFound)
	}
	updated := cloneOrder(*order)
	updated.Items = existing.Items
	s.orders[order.ID] = updated
	return nil
}

func (s *Store) DeleteOrder(ctx context.Context, id models.OrderID) error {
	if err := s.enter(ctx, "DeleteOrder"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[id]; !ok {
		return fmt.Errorf("order %s: %w", id, store.ErrNotFound)
	}
	delete(s.orders, id)
	return nil
}

func (s *Store) ListOrders(ctx context.Context) ([]*models.Order, error) {
	if err := s.enter(ctx, "ListOrders"); err != nil {
		return nil, err
	}
	return s.listOrders(func(models.Order) bool { return true }), nil
}

func (s *Store) ListOrdersByUser(ctx context.Context, userID models.UserID) ([]*models.Order, error) {
	if err := s.enter(ctx, "ListOrdersByUser"); err != nil {
		return nil, err
	}
	return s.listOrders(func(o models.Order) bool { return o.UserID == userID }), nil
}

func (s *Store) listOrders(match func(models.Order) bool) []*models.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Order, 0)
	for _, o := range s.orders {
		if match(o) {
			o = cloneOrder(o)
			out = append(out, &o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func cloneOrder(o models.Order) models.Order {
	if o.Items != nil {
		items := make([]models.OrderItem, len(o.Items))
		copy(items, o.Items)
		o.Items = items
	}
	return o
}
