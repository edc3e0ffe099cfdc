package coordinator

import (
	"context"

	"github.com/surrealdb/surrealshift/pkg/migration"
	"github.com/surrealdb/surrealshift/pkg/models"
	"github.com/surrealdb/surrealshift/pkg/store"
)

type UserCoordinator struct {
	e *entity[models.User, models.UserID]
}

// UserPatch names the fields Update changes; nil fields are left alone.
type UserPatch struct {
	Email        *string `json:"email,omitempty"`
	FirstName    *string `json:"first_name,omitempty"`
	LastName     *string `json:"last_name,omitempty"`
	PasswordHash *string `json:"password_hash,omitempty"`
}

func newUserCoordinator(cfg Config) *UserCoordinator {
	r := repo[models.User, models.UserID]{
		get:    store.Store.GetUser,
		create: store.Store.CreateUser,
		update: store.Store.UpdateUser,
		remove: store.Store.DeleteUser,
		list:   store.Store.ListUsers,
		parse:  models.ParseUserID,
		id:     func(u *models.User) models.UserID { return u.ID },
	}
	redact := func(u *models.User) any { return u.Redacted() }
	return &UserCoordinator{e: newEntity(cfg, EntityUser, r, compareUsers, redact)}
}

// Create stores a new user. A zero ID is replaced by a fresh one; timestamps
// are always assigned here.
func (c *UserCoordinator) Create(ctx context.Context, in *models.User) (*models.User, error) {
	u := *in
	if u.ID.IsZero() {
		u.ID = models.NewUserID()
	}
	now := models.Now()
	u.CreatedAt, u.UpdatedAt = now, now
	if err := models.Validate("user", &u); err != nil {
		return nil, err
	}
	return c.e.write(ctx, "create", c.e.createOp(&u, nil))
}

func (c *UserCoordinator) Update(ctx context.Context, id models.UserID, patch UserPatch) (*models.User, error) {
	return c.e.write(ctx, "update", c.e.mutateOp(c.e.byID(id), func(_ context.Context, _ store.Store, u *models.User) error {
		if patch.Email != nil {
			u.Email = *patch.Email
		}
		if patch.FirstName != nil {
			u.FirstName = *patch.FirstName
		}
		if patch.LastName != nil {
			u.LastName = *patch.LastName
		}
		if patch.PasswordHash != nil {
			u.PasswordHash = *patch.PasswordHash
		}
		u.UpdatedAt = models.Now()
		return models.Validate("user", u)
	}))
}

// UpgradeToSeller marks the user as a seller.
func (c *UserCoordinator) UpgradeToSeller(ctx context.Context, id models.UserID) (*models.User, error) {
	return c.e.write(ctx, "upgradeToSeller", c.e.mutateOp(c.e.byID(id), func(_ context.Context, _ store.Store, u *models.User) error {
		u.IsSeller = true
		u.UpdatedAt = models.Now()
		return nil
	}))
}

// PromoteToSuperAdmin grants the user super-admin rights.
func (c *UserCoordinator) PromoteToSuperAdmin(ctx context.Context, id models.UserID) (*models.User, error) {
	return c.setSuperAdmin(ctx, "promoteToSuperAdmin", id, true)
}

// DemoteFromSuperAdmin revokes the user's super-admin rights.
func (c *UserCoordinator) DemoteFromSuperAdmin(ctx context.Context, id models.UserID) (*models.User, error) {
	return c.setSuperAdmin(ctx, "demoteFromSuperAdmin", id, false)
}

func (c *UserCoordinator) setSuperAdmin(ctx context.Context, operationType string, id models.UserID, on bool) (*models.User, error) {
	return c.e.write(ctx, operationType, c.e.mutateOp(c.e.byID(id), func(_ context.Context, _ store.Store, u *models.User) error {
		u.SuperAdmin = on
		u.UpdatedAt = models.Now()
		return nil
	}))
}

// Delete removes the user and returns its last state.
func (c *UserCoordinator) Delete(ctx context.Context, id models.UserID) (*models.User, error) {
	return c.e.write(ctx, "delete", c.e.deleteOp(c.e.byID(id)))
}

// FindByID returns nil without error when no store holds the user.
func (c *UserCoordinator) FindByID(ctx context.Context, id models.UserID) (*models.User, error) {
	return c.e.findByID(ctx, id)
}

func (c *UserCoordinator) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	return c.e.read(ctx, "findByUsername", "", func(ctx context.Context, s store.Store) (*models.User, error) {
		return s.GetUserByUsername(ctx, username)
	})
}

func (c *UserCoordinator) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return c.e.read(ctx, "findByEmail", "", func(ctx context.Context, s store.Store) (*models.User, error) {
		return s.GetUserByEmail(ctx, email)
	})
}

func compareUsers(p, s *models.User) []migration.ValidationError {
	var c migration.Comparison
	c.Equal("id", p.ID.String(), s.ID.String())
	c.Equal("username", p.Username, s.Username)
	c.Equal("email", p.Email, s.Email)
	c.Sensitive("password_hash", p.PasswordHash, s.PasswordHash)
	c.Equal("first_name", p.FirstName, s.FirstName)
	c.Equal("last_name", p.LastName, s.LastName)
	c.Equal("is_seller", p.IsSeller, s.IsSeller)
	c.Equal("super_admin", p.SuperAdmin, s.SuperAdmin)
	c.Time("created_at", p.CreatedAt, s.CreatedAt)
	c.Time("updated_at", p.UpdatedAt, s.UpdatedAt)
	return c.Errors()
}
