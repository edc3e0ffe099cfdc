package coordinator

import (
	"context"
	"fmt"
	"sort"

	"github.com/surrealdb/surrealshift/pkg/migration"
	"github.com/surrealdb/surrealshift/pkg/models"
	"github.com/surrealdb/surrealshift/pkg/store"
)

type OrderCoordinator struct {
	e *entity[models.Order, models.OrderID]
}

func newOrderCoordinator(cfg Config) *OrderCoordinator {
	r := repo[models.Order, models.OrderID]{
		get:    store.Store.GetOrder,
		create: store.Store.CreateOrder,
		update: store.Store.UpdateOrder,
		remove: store.Store.DeleteOrder,
		list:   store.Store.ListOrders,
		parse:  models.ParseOrderID,
		id:     func(o *models.Order) models.OrderID { return o.ID },
		clone: func(o *models.Order) *models.Order {
			out := *o
			out.Items = append([]models.OrderItem(nil), o.Items...)
			return &out
		},
	}
	return &OrderCoordinator{e: newEntity(cfg, EntityOrder, r, compareOrders, nil)}
}

// Create stores an order with its items. The status defaults to pending and
// a zero total is computed from the items.
func (c *OrderCoordinator) Create(ctx context.Context, in *models.Order) (*models.Order, error) {
	o := *in
	if o.ID.IsZero() {
		o.ID = models.NewOrderID()
	}
	o.Items = make([]models.OrderItem, len(in.Items))
	for i, item := range in.Items {
		if item.ID.IsZero() {
			item.ID = models.NewOrderItemID()
		}
		item.OrderID = o.ID
		o.Items[i] = item
	}
	if o.Status == "" {
		o.Status = models.OrderStatusPending
	}
	if !o.Status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, o.Status)
	}
	if o.TotalAmount == 0 {
		o.TotalAmount = o.ComputeTotal()
	}
	now := models.Now()
	o.CreatedAt, o.UpdatedAt = now, now
	if err := models.Validate("order", &o); err != nil {
		return nil, err
	}
	return c.e.write(ctx, "create", c.e.createOp(&o, nil))
}

func (c *OrderCoordinator) UpdateStatus(ctx context.Context, id models.OrderID, status models.OrderStatus) (*models.Order, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	return c.e.write(ctx, "updateStatus", c.e.mutateOp(c.e.byID(id), func(_ context.Context, _ store.Store, o *models.Order) error {
		o.Status = status
		o.UpdatedAt = models.Now()
		return nil
	}))
}

func (c *OrderCoordinator) FindByID(ctx context.Context, id models.OrderID) (*models.Order, error) {
	return c.e.findByID(ctx, id)
}

// ListByUser lists the user's orders, oldest first.
func (c *OrderCoordinator) ListByUser(ctx context.Context, userID models.UserID) ([]*models.Order, error) {
	return c.e.readList(ctx, "listByUser", userID.String(), func(ctx context.Context, s store.Store) ([]*models.Order, error) {
		return s.ListOrdersByUser(ctx, userID)
	})
}

func compareOrders(p, s *models.Order) []migration.ValidationError {
	var c migration.Comparison
	c.Equal("id", p.ID.String(), s.ID.String())
	c.Equal("user_id", p.UserID.String(), s.UserID.String())
	c.Money("total_amount", p.TotalAmount, s.TotalAmount)
	c.Equal("status", string(p.Status), string(s.Status))
	c.Time("created_at", p.CreatedAt, s.CreatedAt)
	c.Time("updated_at", p.UpdatedAt, s.UpdatedAt)
	c.Add(compareOrderItems(p.Items, s.Items)...)
	return c.Errors()
}

// compareOrderItems matches items by ID, so the stores may return them in
// any order.
func compareOrderItems(p, s []models.OrderItem) []migration.ValidationError {
	var c migration.Comparison
	bySecondary := make(map[models.OrderItemID]models.OrderItem, len(s))
	for _, item := range s {
		bySecondary[item.ID] = item
	}
	seen := make(map[models.OrderItemID]bool, len(p))
	for _, pi := range p {
		seen[pi.ID] = true
		attr := fmt.Sprintf("items[%s]", pi.ID)
		si, ok := bySecondary[pi.ID]
		if !ok {
			c.Add(migration.NewValidationError(attr, "present", nil, attr+" missing from Secondary"))
			continue
		}
		c.Equal(attr+".product_id", pi.ProductID.String(), si.ProductID.String())
		c.Equal(attr+".quantity", pi.Quantity, si.Quantity)
		c.Money(attr+".price_at_time", pi.PriceAtTime, si.PriceAtTime)
	}

	var extra []string
	for id := range bySecondary {
		if !seen[id] {
			extra = append(extra, id.String())
		}
	}
	sort.Strings(extra)
	for _, id := range extra {
		attr := fmt.Sprintf("items[%s]", id)
		c.Add(migration.NewValidationError(attr, nil, "present", attr+" missing from Primary"))
	}
	return c.Errors()
}
