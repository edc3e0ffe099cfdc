// Package journal stores the pending-compensation records that make a dual
// write recoverable.
//
// A dual write records an entry after the primary write and before the
// secondary write, then resolves it once the secondary lands or the rollback
// succeeds. Anything still pending afterwards is work for the reconciler in
// [github.com/surrealdb/surrealshift/pkg/coordinator].
//
// [BoltJournal] keeps entries in a local bbolt file and survives restarts;
// [MemoryJournal] is for tests and throwaway runs. The PostgreSQL store also
// implements [github.com/surrealdb/surrealshift/pkg/migration.Journal] for
// deployments that want the journal next to the source of record.
package journal

import (
	"errors"
	"time"

	"github.com/surrealdb/surrealshift/pkg/models"
)

// ErrUnknownEntry is returned when resolving or failing an entry that does
// not exist or is no longer pending.
var ErrUnknownEntry = errors.New("unknown compensation entry")

// due reports whether c was recorded at or before cutoff. A zero cutoff
// admits everything.
func due(c *models.Compensation, cutoff time.Time) bool {
	return cutoff.IsZero() || !c.CreatedAt.After(cutoff)
}
