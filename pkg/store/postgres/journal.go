package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/surrealdb/surrealshift/pkg/journal"
	"github.com/surrealdb/surrealshift/pkg/migration"
	"github.com/surrealdb/surrealshift/pkg/models"
)

var _ migration.Journal = (*PostgresStore)(nil)

// Record inserts a pending compensation into pending_compensations.
func (s *PostgresStore) Record(ctx context.Context, c *models.Compensation) error {
	return s.db.WithContext(ctx).Create(c).Error
}

// Resolve marks a pending compensation as settled.
func (s *PostgresStore) Resolve(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Model(&models.Compensation{}).
		Where("id = ? AND status = ?", id, models.CompensationPending).
		Updates(map[string]any{
			"status":        models.CompensationResolved,
			"resolved_at":   models.Now(),
			"error_message": "",
		})
	return pendingResult(res, id)
}

// Fail records a failed attempt on a pending compensation.
func (s *PostgresStore) Fail(ctx context.Context, id string, reason string) error {
	res := s.db.WithContext(ctx).Model(&models.Compensation{}).
		Where("id = ? AND status = ?", id, models.CompensationPending).
		Updates(map[string]any{
			"error_message": reason,
			"attempts":      gorm.Expr("attempts + 1"),
		})
	return pendingResult(res, id)
}

// Pending lists unresolved compensations created at or before cutoff,
// oldest first.
func (s *PostgresStore) Pending(ctx context.Context, cutoff time.Time) ([]*models.Compensation, error) {
	var entries []*models.Compensation
	q := s.db.WithContext(ctx).Where("status = ?", models.CompensationPending)
	if !cutoff.IsZero() {
		q = q.Where("created_at <= ?", cutoff)
	}
	err := q.Order("created_at").Find(&entries).Error
	return entries, err
}

func pendingResult(res *gorm.DB, id string) error {
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", journal.ErrUnknownEntry, id)
	}
	return nil
}
