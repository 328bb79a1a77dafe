package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/adfharrison1/go-docstore/pkg/domain"
)

// BoltFileName is the database file used by the bolt backend inside the storage root
const BoltFileName = "docstore.db"

// BoltBackend keeps every snapshot as a value in one bbolt file, one bucket
// per snapshot kind.
type BoltBackend struct {
	path string
	db   *bolt.DB
}

// NewBoltBackend creates a bolt backend storing its database under dir
func NewBoltBackend(dir string) *BoltBackend {
	return &BoltBackend{path: filepath.Join(dir, BoltFileName)}
}

func (bb *BoltBackend) Open() error {
	if err := os.MkdirAll(filepath.Dir(bb.path), 0755); err != nil {
		return &domain.IOError{Op: "open", Path: bb.path, Err: err}
	}
	db, err := bolt.Open(bb.path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return &domain.IOError{Op: "open", Path: bb.path, Err: err}
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, kind := range []string{KindCollections, KindIndexes, KindMeta} {
			if _, err := tx.CreateBucketIfNotExists([]byte(kind)); err != nil {
				return fmt.Errorf("create bucket %s: %w", kind, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return &domain.IOError{Op: "open", Path: bb.path, Err: err}
	}
	bb.db = db
	return nil
}

func (bb *BoltBackend) Close() error {
	if bb.db == nil {
		return nil
	}
	err := bb.db.Close()
	bb.db = nil
	if err != nil {
		return &domain.IOError{Op: "close", Path: bb.path, Err: err}
	}
	return nil
}

func (bb *BoltBackend) ReadAll(kind string) (map[string][]byte, error) {
	out := make(map[string][]byte)
	err := bb.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(kind)).ForEach(func(k, v []byte) error {
			// values are only valid inside the transaction
			out[string(k)] = append([]byte(nil), v...)
			return nil
		})
	})
	if err != nil {
		return nil, &domain.IOError{Op: "load", Path: bb.path + ":" + kind, Err: err}
	}
	return out, nil
}

func (bb *BoltBackend) Read(kind, name string) ([]byte, bool, error) {
	var data []byte
	err := bb.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket([]byte(kind)).Get([]byte(name)); v != nil {
			data = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, false, &domain.IOError{Op: "load", Path: bb.path + ":" + kind + "/" + name, Err: err}
	}
	return data, data != nil, nil
}

func (bb *BoltBackend) Write(kind, name string, data []byte) error {
	err := bb.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(kind)).Put([]byte(name), data)
	})
	if err != nil {
		return &domain.IOError{Op: "save", Path: bb.path + ":" + kind + "/" + name, Err: err}
	}
	return nil
}

func (bb *BoltBackend) Remove(kind, name string) error {
	err := bb.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(kind)).Delete([]byte(name))
	})
	if err != nil {
		return &domain.IOError{Op: "remove", Path: bb.path + ":" + kind + "/" + name, Err: err}
	}
	return nil
}
