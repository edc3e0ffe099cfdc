package migration

import (
	"context"
	"time"

	"github.com/surrealdb/surrealshift/pkg/models"
)

// Journal persists compensation records around the secondary half of a dual
// write. Implementations live in pkg/journal and pkg/store/postgres.
type Journal interface {
	// Record stores c as pending. It is called after the primary write and
	// before the secondary write.
	Record(ctx context.Context, c *models.Compensation) error
	// Resolve marks the record settled.
	Resolve(ctx context.Context, id string) error
	// Fail notes a failed attempt; the record stays pending.
	Fail(ctx context.Context, id string, reason string) error
	// Pending lists unresolved records created at or before cutoff, oldest
	// first. A zero cutoff lists every unresolved record.
	Pending(ctx context.Context, cutoff time.Time) ([]*models.Compensation, error)
}
