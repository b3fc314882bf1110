package buffer

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

// ErrFull is returned by Enqueue once the buffer holds MaxItems entries.
var ErrFull = errors.New("buffer is full")

// Options tune a Store. Zero values keep the defaults.
type Options struct {
	Bucket string
	// MaxItems caps the number of pending writes. Zero means no cap.
	MaxItems int
}

// Store keeps writes that could not reach Postgres in a BoltDB file.
//
// Items live in the data bucket under priority-ordered keys. Snapshot items
// are additionally indexed by slot so a newer snapshot replaces the pending
// one in place of queueing behind it.
type Store struct {
	db       *bolt.DB
	data     []byte
	slots    []byte
	maxItems int
}

// Open initializes the BoltDB file and ensures the buckets exist.
func Open(path string, opts Options) (*Store, error) {
	if opts.Bucket == "" {
		opts.Bucket = "buffer"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open buffer %s: %w", path, err)
	}

	s := &Store{
		db:       db,
		data:     []byte(opts.Bucket),
		slots:    []byte(opts.Bucket + ".slots"),
		maxItems: opts.MaxItems,
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{s.data, s.slots} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Enqueue stores item. A snapshot replaces the pending snapshot of the same
// slot.
func (s *Store) Enqueue(item Item) error {
	if s == nil || s.db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	item.normalize()
	item.bucketKey = []byte(buildKey(item))

	payload, err := json.Marshal(item)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		data, slots := tx.Bucket(s.data), tx.Bucket(s.slots)

		replaced := false
		if slot := item.slotKey(); slot != nil {
			if prev := slots.Get(slot); prev != nil {
				if err := data.Delete(prev); err != nil {
					return err
				}
				replaced = true
			}
			if err := slots.Put(slot, item.bucketKey); err != nil {
				return err
			}
		}
		if !replaced && s.maxItems > 0 && data.Stats().KeyN >= s.maxItems {
			return ErrFull
		}
		return data.Put(item.bucketKey, payload)
	})
}

// GetBatch returns up to limit items in priority order without removing
// them.
func (s *Store) GetBatch(limit int) ([]Item, error) {
	if s == nil || s.db == nil {
		return nil, bolt.ErrDatabaseNotOpen
	}
	if limit <= 0 {
		limit = 50
	}

	var items []Item
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(s.data).Cursor()
		for k, v := c.First(); k != nil && len(items) < limit; k, v = c.Next() {
			var item Item
			if err := json.Unmarshal(v, &item); err != nil {
				continue
			}
			item.bucketKey = append([]byte(nil), k...)
			items = append(items, item)
		}
		return nil
	})
	return items, err
}

// Remove deletes item. Items not read through GetBatch are looked up by ID.
func (s *Store) Remove(item Item) error {
	if s == nil || s.db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		key := item.bucketKey
		if len(key) == 0 {
			key = s.findByID(tx, item.ID)
			if key == nil {
				return nil
			}
		}
		return s.delete(tx, key)
	})
}

// Requeue re-inserts an item after bumping its timestamp. It loses to a
// snapshot of the same slot enqueued in the meantime.
func (s *Store) Requeue(item Item) error {
	if slot := item.slotKey(); slot != nil {
		var newer bool
		err := s.db.View(func(tx *bolt.Tx) error {
			newer = tx.Bucket(s.slots).Get(slot) != nil
			return nil
		})
		if err != nil || newer {
			return err
		}
	}
	item.bucketKey = nil
	item.Timestamp = time.Now()
	return s.Enqueue(item)
}

// Size returns the number of buffered items.
func (s *Store) Size() (int, error) {
	if s == nil || s.db == nil {
		return 0, bolt.ErrDatabaseNotOpen
	}
	var count int
	err := s.db.View(func(tx *bolt.Tx) error {
		count = tx.Bucket(s.data).Stats().KeyN
		return nil
	})
	return count, err
}

// Cleanup drops items older than olderThan and returns how many went.
func (s *Store) Cleanup(olderThan time.Time) (int, error) {
	if s == nil || s.db == nil {
		return 0, bolt.ErrDatabaseNotOpen
	}
	var removed int
	err := s.db.Update(func(tx *bolt.Tx) error {
		var stale [][]byte
		err := tx.Bucket(s.data).ForEach(func(k, v []byte) error {
			var item Item
			if err := json.Unmarshal(v, &item); err != nil || item.Timestamp.Before(olderThan) {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range stale {
			if err := s.delete(tx, k); err != nil {
				return err
			}
		}
		removed = len(stale)
		return nil
	})
	return removed, err
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// delete removes key and its slot index entry when the entry still points
// at it.
func (s *Store) delete(tx *bolt.Tx, key []byte) error {
	data, slots := tx.Bucket(s.data), tx.Bucket(s.slots)
	if raw := data.Get(key); raw != nil {
		var item Item
		if err := json.Unmarshal(raw, &item); err == nil {
			if slot := item.slotKey(); slot != nil && string(slots.Get(slot)) == string(key) {
				if err := slots.Delete(slot); err != nil {
					return err
				}
			}
		}
	}
	return data.Delete(key)
}

func (s *Store) findByID(tx *bolt.Tx, id string) []byte {
	if id == "" {
		return nil
	}
	var found []byte
	_ = tx.Bucket(s.data).ForEach(func(k, v []byte) error {
		if found != nil {
			return nil
		}
		var item Item
		if json.Unmarshal(v, &item) == nil && item.ID == id {
			found = append([]byte(nil), k...)
		}
		return nil
	})
	return found
}

func buildKey(item Item) string {
	return fmt.Sprintf("%d_%020d_%s", item.Priority, item.Timestamp.UnixNano(), item.ID)
}
