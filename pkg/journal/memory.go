package journal

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/surrealdb/surrealshift/pkg/migration"
	"github.com/surrealdb/surrealshift/pkg/models"
)

// MemoryJournal is an in-process migration.Journal.
type MemoryJournal struct {
	mu      sync.Mutex
	entries map[string]models.Compensation
}

var _ migration.Journal = (*MemoryJournal)(nil)

func NewMemory() *MemoryJournal {
	return &MemoryJournal{entries: make(map[string]models.Compensation)}
}

func (j *MemoryJournal) Record(_ context.Context, c *models.Compensation) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries[c.ID] = *c
	return nil
}

func (j *MemoryJournal) Resolve(_ context.Context, id string) error {
	return j.update(id, func(c *models.Compensation) { c.MarkResolved(models.Now()) })
}

func (j *MemoryJournal) Fail(_ context.Context, id string, reason string) error {
	return j.update(id, func(c *models.Compensation) { c.MarkError(reason) })
}

func (j *MemoryJournal) update(id string, fn func(*models.Compensation)) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	entry, ok := j.entries[id]
	if !ok || entry.IsResolved() {
		return fmt.Errorf("%w: %s", ErrUnknownEntry, id)
	}
	fn(&entry)
	j.entries[id] = entry
	return nil
}

func (j *MemoryJournal) Pending(_ context.Context, cutoff time.Time) ([]*models.Compensation, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []*models.Compensation
	for _, entry := range j.entries {
		if !entry.IsResolved() && due(&entry, cutoff) {
			out = append(out, &entry)
		}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].CreatedAt.Before(out[b].CreatedAt) })
	return out, nil
}

// Get returns a copy of one entry, resolved or not.
func (j *MemoryJournal) Get(id string) (models.Compensation, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	entry, ok := j.entries[id]
	return entry, ok
}

// All returns every entry, oldest first.
func (j *MemoryJournal) All() []models.Compensation {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]models.Compensation, 0, len(j.entries))
	for _, entry := range j.entries {
		out = append(out, entry)
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].CreatedAt.Before(out[b].CreatedAt) })
	return out
}
