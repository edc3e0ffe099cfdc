package coordinator

import (
	"context"
	"fmt"

	"github.com/surrealdb/surrealshift/pkg/migration"
	"github.com/surrealdb/surrealshift/pkg/models"
	"github.com/surrealdb/surrealshift/pkg/store"
)

type CategoryCoordinator struct {
	e *entity[models.Category, models.CategoryID]
}

// CategoryPatch names the fields Update changes. ClearParent makes the
// category a root and wins over ParentID.
type CategoryPatch struct {
	Name        *string            `json:"name,omitempty"`
	ParentID    *models.CategoryID `json:"parent_id,omitempty"`
	ClearParent bool               `json:"clear_parent,omitempty"`
}

func newCategoryCoordinator(cfg Config) *CategoryCoordinator {
	r := repo[models.Category, models.CategoryID]{
		get:    store.Store.GetCategory,
		create: store.Store.CreateCategory,
		update: store.Store.UpdateCategory,
		remove: store.Store.DeleteCategory,
		list:   store.Store.ListCategories,
		parse:  models.ParseCategoryID,
		id:     func(c *models.Category) models.CategoryID { return c.ID },
		clone: func(c *models.Category) *models.Category {
			out := *c
			if c.ParentID != nil {
				parent := *c.ParentID
				out.ParentID = &parent
			}
			return &out
		},
	}
	return &CategoryCoordinator{e: newEntity(cfg, EntityCategory, r, compareCategories, nil)}
}

// checkParent fails unless the category's parent, if any, exists in s and
// is not the category itself or one of its descendants.
func checkParent(ctx context.Context, s store.Store, c *models.Category) error {
	if c.ParentID == nil {
		return nil
	}
	if *c.ParentID == c.ID {
		return fmt.Errorf("%w: category cannot be its own parent", ErrInvalidParent)
	}
	parent, err := s.GetCategory(ctx, *c.ParentID)
	if err != nil {
		return err
	}
	if parent == nil {
		return fmt.Errorf("%w: category %s does not exist", ErrInvalidParent, c.ParentID)
	}

	visited := map[models.CategoryID]bool{parent.ID: true}
	for ancestor := parent; ancestor.ParentID != nil; {
		next := *ancestor.ParentID
		if next == c.ID {
			return fmt.Errorf("%w: category %s is a descendant of %s", ErrInvalidParent, c.ParentID, c.ID)
		}
		if visited[next] {
			// An existing cycle that does not pass through c.
			return nil
		}
		visited[next] = true
		if ancestor, err = s.GetCategory(ctx, next); err != nil {
			return err
		}
		if ancestor == nil {
			return nil
		}
	}
	return nil
}

func (c *CategoryCoordinator) Create(ctx context.Context, in *models.Category) (*models.Category, error) {
	cat := *in
	if cat.ID.IsZero() {
		cat.ID = models.NewCategoryID()
	}
	cat.CreatedAt = models.Now()
	if err := models.Validate("category", &cat); err != nil {
		return nil, err
	}
	return c.e.write(ctx, "create", c.e.createOp(&cat, checkParent))
}

func (c *CategoryCoordinator) Update(ctx context.Context, id models.CategoryID, patch CategoryPatch) (*models.Category, error) {
	return c.e.write(ctx, "update", c.e.mutateOp(c.e.byID(id), func(ctx context.Context, s store.Store, cat *models.Category) error {
		if patch.Name != nil {
			cat.Name = *patch.Name
		}
		switch {
		case patch.ClearParent:
			cat.ParentID = nil
		case patch.ParentID != nil:
			parent := *patch.ParentID
			cat.ParentID = &parent
		}
		if err := models.Validate("category", cat); err != nil {
			return err
		}
		return checkParent(ctx, s, cat)
	}))
}

func (c *CategoryCoordinator) Delete(ctx context.Context, id models.CategoryID) (*models.Category, error) {
	return c.e.write(ctx, "delete", c.e.deleteOp(c.e.byID(id)))
}

func (c *CategoryCoordinator) FindByID(ctx context.Context, id models.CategoryID) (*models.Category, error) {
	return c.e.findByID(ctx, id)
}

// Children lists the direct subcategories of parentID.
func (c *CategoryCoordinator) Children(ctx context.Context, parentID models.CategoryID) ([]*models.Category, error) {
	return c.e.readList(ctx, "findByParentId", parentID.String(), func(ctx context.Context, s store.Store) ([]*models.Category, error) {
		return s.ListChildCategories(ctx, &parentID)
	})
}

// Roots lists the categories without a parent.
func (c *CategoryCoordinator) Roots(ctx context.Context) ([]*models.Category, error) {
	return c.e.readList(ctx, "findRootCategories", "roots", func(ctx context.Context, s store.Store) ([]*models.Category, error) {
		return s.ListChildCategories(ctx, nil)
	})
}

func compareCategories(p, s *models.Category) []migration.ValidationError {
	var c migration.Comparison
	c.Equal("id", p.ID.String(), s.ID.String())
	c.Equal("name", p.Name, s.Name)
	c.Equal("parent_id", optionalID(p.ParentID), optionalID(s.ParentID))
	c.Time("created_at", p.CreatedAt, s.CreatedAt)
	return c.Errors()
}

func optionalID(id *models.CategoryID) string {
	if id == nil {
		return ""
	}
	return id.String()
}
