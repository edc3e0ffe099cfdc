package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/surrealdb/surrealshift/pkg/migration"
	"github.com/surrealdb/surrealshift/pkg/models"
)

var (
	bucketPending  = []byte("pending")
	bucketResolved = []byte("resolved")
)

// BoltJournal implements migration.Journal on a bbolt file. Resolved entries
// move to their own bucket so the history stays inspectable.
type BoltJournal struct {
	db *bolt.DB
}

var _ migration.Journal = (*BoltJournal)(nil)

// OpenBolt opens or creates the journal file at path.
func OpenBolt(path string) (*BoltJournal, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketPending, bucketResolved} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltJournal{db: db}, nil
}

func (j *BoltJournal) Close() error {
	return j.db.Close()
}

func (j *BoltJournal) Record(_ context.Context, c *models.Compensation) error {
	return j.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(c)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketPending).Put([]byte(c.ID), data)
	})
}

func (j *BoltJournal) Resolve(_ context.Context, id string) error {
	return j.db.Update(func(tx *bolt.Tx) error {
		pending := tx.Bucket(bucketPending)
		entry, err := decode(pending.Get([]byte(id)), id)
		if err != nil {
			return err
		}
		entry.MarkResolved(models.Now())
		data, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		if err := tx.Bucket(bucketResolved).Put([]byte(id), data); err != nil {
			return err
		}
		return pending.Delete([]byte(id))
	})
}

func (j *BoltJournal) Fail(_ context.Context, id string, reason string) error {
	return j.db.Update(func(tx *bolt.Tx) error {
		pending := tx.Bucket(bucketPending)
		entry, err := decode(pending.Get([]byte(id)), id)
		if err != nil {
			return err
		}
		entry.MarkError(reason)
		data, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		return pending.Put([]byte(id), data)
	})
}

func (j *BoltJournal) Pending(_ context.Context, cutoff time.Time) ([]*models.Compensation, error) {
	entries, err := j.list(bucketPending)
	if err != nil {
		return nil, err
	}
	out := entries[:0]
	for _, entry := range entries {
		if due(entry, cutoff) {
			out = append(out, entry)
		}
	}
	return out, nil
}

// Resolved lists settled entries, oldest first.
func (j *BoltJournal) Resolved(_ context.Context) ([]*models.Compensation, error) {
	return j.list(bucketResolved)
}

func (j *BoltJournal) list(bucket []byte) ([]*models.Compensation, error) {
	var entries []*models.Compensation
	err := j.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).ForEach(func(k, v []byte) error {
			var entry models.Compensation
			if err := json.Unmarshal(v, &entry); err != nil {
				return err
			}
			entries = append(entries, &entry)
			return nil
		})
	})
	sort.SliceStable(entries, func(a, b int) bool { return entries[a].CreatedAt.Before(entries[b].CreatedAt) })
	return entries, err
}

func decode(data []byte, id string) (*models.Compensation, error) {
	if data == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEntry, id)
	}
	var entry models.Compensation
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}
