package persist

import (
	"fmt"
	"time"

	"github.com/boltdb/bolt"
)

var snapshotBucket = []byte("snapshots")

// SnapshotStore durably holds the latest serialized snapshot (spec §6's
// wire format, produced by the snapshot package) for each document,
// keyed by document id — the bolt-backed analogue of storage/store.go's
// in-memory `items map[string]*Value`, but for whole documents rather
// than individual Redis values.
type SnapshotStore struct {
	db *bolt.DB
}

// OpenSnapshotStore opens (creating if necessary) a bolt-backed snapshot
// store at path.
func OpenSnapshotStore(path string) (*SnapshotStore, error) {
	db, err := bolt.Open(path, 0644, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("persist: open snapshot store: %v", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(snapshotBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("persist: init snapshot bucket: %v", err)
	}
	return &SnapshotStore{db: db}, nil
}

// Put durably stores data as docID's latest snapshot, overwriting
// whatever was there before.
func (s *SnapshotStore) Put(docID string, data []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(snapshotBucket).Put([]byte(docID), data)
	})
}

// Get returns docID's stored snapshot, if any.
func (s *SnapshotStore) Get(docID string) ([]byte, bool, error) {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(snapshotBucket).Get([]byte(docID))
		if v != nil {
			data = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return data, data != nil, nil
}

// Delete removes docID's stored snapshot.
func (s *SnapshotStore) Delete(docID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(snapshotBucket).Delete([]byte(docID))
	})
}

// List returns every document id currently stored.
func (s *SnapshotStore) List() ([]string, error) {
	var ids []string
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(snapshotBucket).ForEach(func(k, _ []byte) error {
			ids = append(ids, string(k))
			return nil
		})
	})
	return ids, err
}

// Close flushes and closes the underlying bolt database.
func (s *SnapshotStore) Close() error {
	return s.db.Close()
}
