package coordinator

import (
	"context"
	"fmt"

	"github.com/surrealdb/surrealshift/pkg/migration"
	"github.com/surrealdb/surrealshift/pkg/models"
	"github.com/surrealdb/surrealshift/pkg/store"
)

type ProductCoordinator struct {
	e *entity[models.Product, models.ProductID]
}

type ProductPatch struct {
	Name        *string            `json:"name,omitempty"`
	Description *string            `json:"description,omitempty"`
	Price       *float64           `json:"price,omitempty"`
	CategoryID  *models.CategoryID `json:"category_id,omitempty"`
}

func newProductCoordinator(cfg Config) *ProductCoordinator {
	r := repo[models.Product, models.ProductID]{
		get:    store.Store.GetProduct,
		create: store.Store.CreateProduct,
		update: store.Store.UpdateProduct,
		remove: store.Store.DeleteProduct,
		list:   store.Store.ListProducts,
		parse:  models.ParseProductID,
		id:     func(p *models.Product) models.ProductID { return p.ID },
	}
	return &ProductCoordinator{e: newEntity(cfg, EntityProduct, r, compareProducts, nil)}
}

func (c *ProductCoordinator) Create(ctx context.Context, in *models.Product) (*models.Product, error) {
	p := *in
	if p.ID.IsZero() {
		p.ID = models.NewProductID()
	}
	now := models.Now()
	p.CreatedAt, p.UpdatedAt = now, now
	if err := models.Validate("product", &p); err != nil {
		return nil, err
	}
	return c.e.write(ctx, "create", c.e.createOp(&p, nil))
}

func (c *ProductCoordinator) Update(ctx context.Context, id models.ProductID, patch ProductPatch) (*models.Product, error) {
	return c.e.write(ctx, "update", c.e.mutateOp(c.e.byID(id), func(_ context.Context, _ store.Store, p *models.Product) error {
		if patch.Name != nil {
			p.Name = *patch.Name
		}
		if patch.Description != nil {
			p.Description = *patch.Description
		}
		if patch.Price != nil {
			p.Price = *patch.Price
		}
		if patch.CategoryID != nil {
			p.CategoryID = *patch.CategoryID
		}
		p.UpdatedAt = models.Now()
		return models.Validate("product", p)
	}))
}

// UpdateInventory sets the stock level.
func (c *ProductCoordinator) UpdateInventory(ctx context.Context, id models.ProductID, quantity int) (*models.Product, error) {
	if quantity < 0 {
		return nil, fmt.Errorf("%w: inventory %d", ErrInvalidQuantity, quantity)
	}
	return c.e.write(ctx, "updateInventory", c.e.mutateOp(c.e.byID(id), func(_ context.Context, _ store.Store, p *models.Product) error {
		p.InventoryQuantity = quantity
		p.UpdatedAt = models.Now()
		return nil
	}))
}

// ReduceInventory takes quantity units out of stock, failing with
// ErrInsufficientInventory rather than going below zero.
func (c *ProductCoordinator) ReduceInventory(ctx context.Context, id models.ProductID, quantity int) (*models.Product, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidQuantity, quantity)
	}
	return c.e.write(ctx, "reduceInventory", c.e.mutateOp(c.e.byID(id), func(_ context.Context, _ store.Store, p *models.Product) error {
		if p.InventoryQuantity < quantity {
			return fmt.Errorf("%w: product %s has %d, requested %d", ErrInsufficientInventory, p.ID, p.InventoryQuantity, quantity)
		}
		p.InventoryQuantity -= quantity
		p.UpdatedAt = models.Now()
		return nil
	}))
}

func (c *ProductCoordinator) Delete(ctx context.Context, id models.ProductID) (*models.Product, error) {
	return c.e.write(ctx, "delete", c.e.deleteOp(c.e.byID(id)))
}

func (c *ProductCoordinator) FindByID(ctx context.Context, id models.ProductID) (*models.Product, error) {
	return c.e.findByID(ctx, id)
}

func (c *ProductCoordinator) ListByCategory(ctx context.Context, categoryID models.CategoryID) ([]*models.Product, error) {
	return c.e.readList(ctx, "listByCategory", categoryID.String(), func(ctx context.Context, s store.Store) ([]*models.Product, error) {
		return s.ListProductsByCategory(ctx, categoryID)
	})
}

func (c *ProductCoordinator) ListBySeller(ctx context.Context, sellerID models.UserID) ([]*models.Product, error) {
	return c.e.readList(ctx, "listBySeller", sellerID.String(), func(ctx context.Context, s store.Store) ([]*models.Product, error) {
		return s.ListProductsBySeller(ctx, sellerID)
	})
}

func compareProducts(p, s *models.Product) []migration.ValidationError {
	var c migration.Comparison
	c.Equal("id", p.ID.String(), s.ID.String())
	c.Equal("seller_id", p.SellerID.String(), s.SellerID.String())
	c.Equal("category_id", p.CategoryID.String(), s.CategoryID.String())
	c.Equal("name", p.Name, s.Name)
	c.Equal("description", p.Description, s.Description)
	c.Money("price", p.Price, s.Price)
	c.Equal("inventory_quantity", p.InventoryQuantity, s.InventoryQuantity)
	c.Time("created_at", p.CreatedAt, s.CreatedAt)
	c.Time("updated_at", p.UpdatedAt, s.UpdatedAt)
	return c.Errors()
}
