package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/surrealdb/surrealshift/pkg/migration"
	"github.com/surrealdb/surrealshift/pkg/models"
	"github.com/surrealdb/surrealshift/pkg/store"
)

// CartCoordinator writes cart items one at a time and reads a user's cart
// as a list, compared item by item keyed by product. ClearCart writes the
// whole cart at once.
type CartCoordinator struct {
	e     *entity[models.CartItem, models.CartItemID]
	items *migration.DualReader[[]*models.CartItem]
	carts *migration.DualWriter[*Cart]
}

// Cart is a user's whole cart, the unit ClearCart writes and journals.
type Cart struct {
	UserID models.UserID      `json:"user_id"`
	Items  []*models.CartItem `json:"items"`
}

func newCartCoordinator(cfg Config) *CartCoordinator {
	r := repo[models.CartItem, models.CartItemID]{
		get:    store.Store.GetCartItem,
		create: store.Store.CreateCartItem,
		update: store.Store.UpdateCartItem,
		remove: store.Store.DeleteCartItem,
		list:   store.Store.ListAllCartItems,
		parse:  models.ParseCartItemID,
		id:     func(i *models.CartItem) models.CartItemID { return i.ID },
	}
	return &CartCoordinator{
		e: newEntity(cfg, EntityCartItem, r, compareCartItems, nil),
		items: migration.NewDualReader(migration.ReaderConfig[[]*models.CartItem]{
			Registry:   cfg.Registry,
			EntityType: EntityCart,
			Compare:    compareCarts,
			// An empty cart is still a cart.
			IsNil:  func([]*models.CartItem) bool { return false },
			Logger: cfg.Logger,
		}),
		carts: migration.NewDualWriter(migration.WriterConfig[*Cart]{
			Registry:   cfg.Registry,
			EntityType: EntityCart,
			ExtractID: func(c *Cart) string {
				if c == nil {
					return ""
				}
				return c.UserID.String()
			},
			Journal: cfg.Journal,
			Logger:  cfg.Logger,
		}),
	}
}

func (c *CartCoordinator) byProduct(userID models.UserID, productID models.ProductID) loader[models.CartItem] {
	return func(ctx context.Context, s store.Store) (*models.CartItem, error) {
		item, err := s.GetCartItemByProduct(ctx, userID, productID)
		if err != nil {
			return nil, err
		}
		if item == nil {
			return nil, &NotFoundError{Entity: EntityCartItem, ID: fmt.Sprintf("user %s product %s", userID, productID)}
		}
		return item, nil
	}
}

// AddItem puts quantity units of a product in the user's cart, adding to
// the existing line when there is one.
func (c *CartCoordinator) AddItem(ctx context.Context, userID models.UserID, productID models.ProductID, quantity int) (*models.CartItem, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidQuantity, quantity)
	}
	newID := models.NewCartItemID()
	now := models.Now()

	// add returns the written item and, when it changed an existing line,
	// that line's previous state.
	add := func(ctx context.Context, s store.Store) (*models.CartItem, *models.CartItem, error) {
		cur, err := s.GetCartItemByProduct(ctx, userID, productID)
		if err != nil {
			return nil, nil, err
		}
		if cur == nil {
			item := &models.CartItem{
				ID:        newID,
				UserID:    userID,
				ProductID: productID,
				Quantity:  quantity,
				CreatedAt: now,
				UpdatedAt: now,
			}
			return item, nil, s.CreateCartItem(ctx, item)
		}
		next := *cur
		next.Quantity += quantity
		next.UpdatedAt = now
		return &next, cur, s.UpdateCartItem(ctx, &next)
	}

	var prior *models.CartItem
	op := migration.WriteOperation[*models.CartItem]{
		Primary: func(ctx context.Context) (*models.CartItem, error) {
			item, prev, err := add(ctx, c.e.primary)
			prior = prev
			return item, err
		},
		Secondary: func(ctx context.Context, p *models.CartItem) (*models.CartItem, error) {
			return c.e.upsert(ctx, c.e.secondary, p)
		},
		TargetOnly: func(ctx context.Context) (*models.CartItem, error) {
			item, _, err := add(ctx, c.e.secondary)
			return item, err
		},
		Rollback: func(ctx context.Context, p *models.CartItem) error {
			if prior == nil {
				return c.e.primary.DeleteCartItem(ctx, p.ID)
			}
			restored := *prior
			return c.e.primary.UpdateCartItem(ctx, &restored)
		},
		Undo: func(*models.CartItem) (models.ChangeOperation, any) {
			if prior == nil {
				return models.ChangeOperationCreate, nil
			}
			return models.ChangeOperationUpdate, prior
		},
	}
	return c.e.write(ctx, "addItem", op)
}

// UpdateItemQuantity replaces the quantity of an existing cart line.
func (c *CartCoordinator) UpdateItemQuantity(ctx context.Context, userID models.UserID, productID models.ProductID, quantity int) (*models.CartItem, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidQuantity, quantity)
	}
	return c.e.write(ctx, "updateItemQuantity", c.e.mutateOp(c.byProduct(userID, productID), func(_ context.Context, _ store.Store, item *models.CartItem) error {
		item.Quantity = quantity
		item.UpdatedAt = models.Now()
		return nil
	}))
}

func (c *CartCoordinator) RemoveItem(ctx context.Context, userID models.UserID, productID models.ProductID) (*models.CartItem, error) {
	return c.e.write(ctx, "removeItem", c.e.deleteOp(c.byProduct(userID, productID)))
}

// ClearCart empties the user's cart and returns the removed lines. A failed
// secondary write puts every removed line back in the primary.
func (c *CartCoordinator) ClearCart(ctx context.Context, userID models.UserID) ([]*models.CartItem, error) {
	empty := func(ctx context.Context, s store.Store) (*Cart, error) {
		items, err := s.ListCartItems(ctx, userID)
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			if err := s.DeleteCartItem(ctx, item.ID); err != nil {
				if rerr := c.syncCart(ctx, s, userID, items); rerr != nil {
					c.e.logger.Error().Err(rerr).Str("user_id", userID.String()).Msg("restoring partially cleared cart failed")
				}
				return nil, err
			}
		}
		return &Cart{UserID: userID, Items: items}, nil
	}

	var prior []*models.CartItem
	op := migration.WriteOperation[*Cart]{
		Primary: func(ctx context.Context) (*Cart, error) {
			cart, err := empty(ctx, c.e.primary)
			if cart != nil {
				prior = cart.Items
			}
			return cart, err
		},
		Secondary: func(ctx context.Context, p *Cart) (*Cart, error) {
			return p, c.syncCart(ctx, c.e.secondary, userID, nil)
		},
		TargetOnly: func(ctx context.Context) (*Cart, error) { return empty(ctx, c.e.secondary) },
		Rollback: func(ctx context.Context, _ *Cart) error {
			return c.syncCart(ctx, c.e.primary, userID, prior)
		},
		Undo: func(p *Cart) (models.ChangeOperation, any) {
			return models.ChangeOperationDelete, p
		},
	}
	res, err := c.carts.Execute(ctx, "clearCart", op)
	if err != nil {
		return nil, err
	}
	return res.Data.Items, nil
}

// syncCart makes the user's cart in s hold exactly want.
func (c *CartCoordinator) syncCart(ctx context.Context, s store.Store, userID models.UserID, want []*models.CartItem) error {
	cur, err := s.ListCartItems(ctx, userID)
	if err != nil {
		return err
	}
	keep := make(map[models.CartItemID]bool, len(want))
	for _, item := range want {
		keep[item.ID] = true
	}
	for _, item := range cur {
		if keep[item.ID] {
			continue
		}
		if err := s.DeleteCartItem(ctx, item.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
	}
	for _, item := range want {
		if _, err := c.e.upsert(ctx, s, item); err != nil {
			return err
		}
	}
	return nil
}

// compensate settles a whole-cart journal entry: the primary cart goes back
// to the recorded lines and the secondary is made to match it.
func (c *CartCoordinator) compensate(ctx context.Context, comp *models.Compensation) (Outcome, error) {
	userID, err := models.ParseUserID(comp.EntityID)
	if err != nil {
		return "", err
	}
	p, err := c.e.primary.ListCartItems(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("read primary: %w", err)
	}
	s, err := c.e.secondary.ListCartItems(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("read secondary: %w", err)
	}
	if len(compareCarts(p, s)) == 0 {
		return OutcomeConsistent, nil
	}

	if len(comp.Prior) == 0 {
		return "", fmt.Errorf("%s compensation %s has no prior state", comp.Operation, comp.ID)
	}
	var prior Cart
	if err := comp.Prior.Decode(&prior); err != nil {
		return "", fmt.Errorf("decode prior state: %w", err)
	}
	if err := c.syncCart(ctx, c.e.primary, userID, prior.Items); err != nil {
		return "", fmt.Errorf("restore primary: %w", err)
	}
	if p, err = c.e.primary.ListCartItems(ctx, userID); err != nil {
		return "", fmt.Errorf("read primary: %w", err)
	}
	if err := c.syncCart(ctx, c.e.secondary, userID, p); err != nil {
		return "", fmt.Errorf("mirror secondary: %w", err)
	}
	return OutcomeRestored, nil
}

// Items lists the user's cart.
func (c *CartCoordinator) Items(ctx context.Context, userID models.UserID) ([]*models.CartItem, error) {
	res, err := c.items.Execute(ctx, "items", migration.ReadOperation[[]*models.CartItem]{
		EntityID: userID.String(),
		Primary: func(ctx context.Context) ([]*models.CartItem, error) {
			return c.e.primary.ListCartItems(ctx, userID)
		},
		Secondary: func(ctx context.Context) ([]*models.CartItem, error) {
			return c.e.secondary.ListCartItems(ctx, userID)
		},
	})
	return readData(res, err)
}

func compareCartItems(p, s *models.CartItem) []migration.ValidationError {
	var c migration.Comparison
	c.Equal("id", p.ID.String(), s.ID.String())
	c.Equal("user_id", p.UserID.String(), s.UserID.String())
	c.Equal("product_id", p.ProductID.String(), s.ProductID.String())
	c.Equal("quantity", p.Quantity, s.Quantity)
	c.Time("created_at", p.CreatedAt, s.CreatedAt)
	c.Time("updated_at", p.UpdatedAt, s.UpdatedAt)
	return c.Errors()
}

// compareCarts matches lines by product. Attributes are prefixed with the
// product ID so a report names the line that diverged.
func compareCarts(p, s []*models.CartItem) []migration.ValidationError {
	var errs []migration.ValidationError
	bySecondary := make(map[models.ProductID]*models.CartItem, len(s))
	for _, item := range s {
		bySecondary[item.ProductID] = item
	}
	seen := make(map[models.ProductID]bool, len(p))
	for _, pi := range p {
		seen[pi.ProductID] = true
		prefix := fmt.Sprintf("product[%s]", pi.ProductID)
		si, ok := bySecondary[pi.ProductID]
		if !ok {
			errs = append(errs, migration.NewValidationError(prefix, pi.Quantity, nil, prefix+" missing from Secondary"))
			continue
		}
		for _, e := range compareCartItems(pi, si) {
			errs = append(errs, migration.NewValidationError(prefix+"."+e.Attribute, e.PrimaryValue, e.SecondaryValue, ""))
		}
	}

	var extra []*models.CartItem
	for id, item := range bySecondary {
		if !seen[id] {
			extra = append(extra, item)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i].ProductID.String() < extra[j].ProductID.String() })
	for _, si := range extra {
		prefix := fmt.Sprintf("product[%s]", si.ProductID)
		errs = append(errs, migration.NewValidationError(prefix, nil, si.Quantity, prefix+" missing from Primary"))
	}
	return errs
}
