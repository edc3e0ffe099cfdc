package coordinator

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/surrealdb/surrealshift/pkg/migration"
	"github.com/surrealdb/surrealshift/pkg/models"
	"github.com/surrealdb/surrealshift/pkg/store"
)

// Entity type names. They label logs, metrics, journal entries and
// validation messages.
const (
	EntityUser     = "User"
	EntityCategory = "Category"
	EntityProduct  = "Product"
	EntityCartItem = "CartItem"
	EntityCart     = "Cart"
	EntityOrder    = "Order"
)

// Config carries what every coordinator shares.
type Config struct {
	// Primary is the source store, Secondary the migration target.
	Primary   store.Store
	Secondary store.Store
	Registry  *migration.Registry
	// Journal is optional.
	Journal migration.Journal
	Logger  zerolog.Logger
}

// compensator settles one journal entry of its entity type.
type compensator interface {
	compensate(ctx context.Context, c *models.Compensation) (Outcome, error)
}

// syncer is the part of an entity coordinator that backfill and
// reconciliation drive.
type syncer interface {
	compensator
	entityName() string
	backfill(ctx context.Context) (BackfillResult, error)
}

// Set is one coordinator per entity type over a shared pair of stores.
type Set struct {
	Users      *UserCoordinator
	Categories *CategoryCoordinator
	Products   *ProductCoordinator
	Cart       *CartCoordinator
	Orders     *OrderCoordinator

	// entities is in dependency order: users, categories, products, cart
	// items, orders.
	entities []syncer
}

func New(cfg Config) *Set {
	s := &Set{
		Users:      newUserCoordinator(cfg),
		Categories: newCategoryCoordinator(cfg),
		Products:   newProductCoordinator(cfg),
		Cart:       newCartCoordinator(cfg),
		Orders:     newOrderCoordinator(cfg),
	}
	s.entities = []syncer{s.Users.e, s.Categories.e, s.Products.e, s.Cart.e, s.Orders.e}
	return s
}

// compensator finds what settles entries of entityType. Whole-cart writes
// are journaled as EntityCart, next to the per-item EntityCartItem.
func (s *Set) compensator(entityType string) (compensator, bool) {
	if entityType == EntityCart {
		return s.Cart, true
	}
	for _, e := range s.entities {
		if e.entityName() == entityType {
			return e, true
		}
	}
	return nil, false
}
