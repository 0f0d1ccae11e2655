// Package persist implements durable storage for the server layer: an
// append-only operation log and a snapshot store, both backed by
// boltdb/bolt. It replaces operation/oplog.go's flat-JSON-file log with
// transactional bucket storage, keyed so entries can be range-scanned
// per document and per actor in causal order.
package persist

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/boltdb/bolt"
	"github.com/luoyjx/jsoncrdt/patch"
)

var opLogBucket = []byte("oplog")

// Entry is a durable record of one applied patch: enough to replay a
// document's history from a snapshot checkpoint, or to audit what an
// actor has minted. Timestamp is wall-clock, recorded for operator
// visibility only — causal order is carried by DocID/Actor/Counter, not
// by Timestamp.
type Entry struct {
	DocID     string            `json:"doc_id"`
	Actor     string            `json:"actor"`
	Counter   uint64            `json:"counter"`
	Ops       []patch.Operation `json:"ops"`
	Semantics patch.Semantics   `json:"semantics"`
	Timestamp int64             `json:"timestamp"`
}

// OpLog is a durable, append-only record of applied patches.
type OpLog struct {
	db *bolt.DB
}

// OpenOpLog opens (creating if necessary) a bolt-backed operation log at
// path.
func OpenOpLog(path string) (*OpLog, error) {
	db, err := bolt.Open(path, 0644, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("persist: open oplog: %v", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(opLogBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("persist: init oplog bucket: %v", err)
	}
	return &OpLog{db: db}, nil
}

// entryKey orders entries first by document, then by actor, then by
// counter, so a range scan with Seek(prefix) visits one document's
// entries for one actor in causal order.
func entryKey(docID, actor string, counter uint64) []byte {
	key := make([]byte, 0, len(docID)+1+len(actor)+1+8)
	key = append(key, docID...)
	key = append(key, '|')
	key = append(key, actor...)
	key = append(key, '|')
	ctr := make([]byte, 8)
	binary.BigEndian.PutUint64(ctr, counter)
	return append(key, ctr...)
}

// Append durably records e. Callers should write one entry per applied
// patch, after the patch has already succeeded against the in-memory
// document.
func (l *OpLog) Append(e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("persist: marshal entry: %v", err)
	}
	return l.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(opLogBucket).Put(entryKey(e.DocID, e.Actor, e.Counter), data)
	})
}

// Since returns every entry recorded for docID/actor with Counter >
// after, in causal order. Used to replay an actor's history onto a
// stale replica, or for a peer to pull what it is missing.
func (l *OpLog) Since(docID, actor string, after uint64) ([]Entry, error) {
	prefix := append(append([]byte(docID), '|'), append([]byte(actor), '|')...)
	var out []Entry
	err := l.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(opLogBucket).Cursor()
		for k, v := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				return fmt.Errorf("persist: unmarshal entry: %v", err)
			}
			if e.Counter > after {
				out = append(out, e)
			}
		}
		return nil
	})
	return out, err
}

func hasPrefix(b, prefix []byte) bool {
	if len(b) < len(prefix) {
		return false
	}
	for i := range prefix {
		if b[i] != prefix[i] {
			return false
		}
	}
	return true
}

// Close flushes and closes the underlying bolt database.
func (l *OpLog) Close() error {
	return l.db.Close()
}
