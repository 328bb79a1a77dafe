package storage

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/natefinch/atomic"

	"github.com/adfharrison1/go-docstore/pkg/domain"
)

// Snapshot kinds. Index snapshots are named "<collection>/<index>".
const (
	KindCollections = "collections"
	KindIndexes     = "indexes"
	KindMeta        = "meta"

	catalogName = "catalog"
)

// Backend stores encoded snapshots. Implementations only move bytes; the
// engine owns encoding and write ordering.
type Backend interface {
	Open() error
	Close() error
	// ReadAll returns every top-level snapshot of a kind keyed by name
	ReadAll(kind string) (map[string][]byte, error)
	Read(kind, name string) ([]byte, bool, error)
	Write(kind, name string, data []byte) error
	Remove(kind, name string) error
}

var (
	_ Backend = (*FileBackend)(nil)
	_ Backend = (*BoltBackend)(nil)
)

// FileBackend keeps snapshots as files under a storage root:
// <root>/collections/<name><ext>, <root>/indexes/<coll>/<index><ext> and
// <root>/catalog<ext>.
type FileBackend struct {
	root      string
	extension string
	atomic    bool
}

// NewFileBackend creates a file backend rooted at dir
func NewFileBackend(dir, extension string, atomicWrites bool) *FileBackend {
	return &FileBackend{root: dir, extension: extension, atomic: atomicWrites}
}

func (fb *FileBackend) Open() error {
	for _, dir := range []string{fb.root, filepath.Join(fb.root, KindCollections), filepath.Join(fb.root, KindIndexes)} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return &domain.IOError{Op: "open", Path: dir, Err: err}
		}
	}
	return nil
}

func (fb *FileBackend) Close() error { return nil }

func (fb *FileBackend) path(kind, name string) string {
	if kind == KindMeta {
		return filepath.Join(fb.root, name+fb.extension)
	}
	return filepath.Join(fb.root, kind, filepath.FromSlash(name)+fb.extension)
}

func (fb *FileBackend) ReadAll(kind string) (map[string][]byte, error) {
	dir := filepath.Join(fb.root, kind)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string][]byte{}, nil
		}
		return nil, &domain.IOError{Op: "load", Path: dir, Err: err}
	}

	out := make(map[string][]byte, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), fb.extension) {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), fb.extension)
		data, _, err := fb.Read(kind, name)
		if err != nil {
			return nil, err
		}
		out[name] = data
	}
	return out, nil
}

func (fb *FileBackend) Read(kind, name string) ([]byte, bool, error) {
	path := fb.path(kind, name)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, &domain.IOError{Op: "load", Path: path, Err: err}
	}
	return data, true, nil
}

func (fb *FileBackend) Write(kind, name string, data []byte) error {
	path := fb.path(kind, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return &domain.IOError{Op: "save", Path: path, Err: err}
	}

	var err error
	if fb.atomic {
		err = atomic.WriteFile(path, bytes.NewReader(data))
	} else {
		err = os.WriteFile(path, data, 0644)
	}
	if err != nil {
		return &domain.IOError{Op: "save", Path: path, Err: err}
	}
	return nil
}

func (fb *FileBackend) Remove(kind, name string) error {
	path := fb.path(kind, name)
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return &domain.IOError{Op: "remove", Path: path, Err: err}
	}
	if kind == KindIndexes {
		// drop the per-collection directory once its last index file is gone
		_ = os.Remove(filepath.Dir(path))
	}
	return nil
}

// decodeSnapshot wraps decode failures as I/O failures on the named snapshot
func decodeSnapshot(c codec, kind, name string, data []byte, v interface{}) error {
	if err := c.Unmarshal(data, v); err != nil {
		return &domain.IOError{Op: "load", Path: fmt.Sprintf("%s/%s", kind, name), Err: err}
	}
	return nil
}

func indexSnapshotName(collName, indexName string) string {
	return collName + "/" + indexName
}

// enqueueOn hands a write to a background writer. Writes requested after the
// writer closed are dropped.
func enqueueOn(writer *writeQueue, op *writeOp) {
	if writer == nil || !writer.enqueue(op) {
		log.Printf("WARN: Dropped %s of %s: store is not connected", op.key, op.target)
	}
}

// collectionSaveOp snapshots coll when the write runs, so the snapshot
// reflects every mutation made before then. The op is bound to coll rather
// than its name: a collection recreated under the same name gets its own ops.
func (se *StorageEngine) collectionSaveOp(coll *Collection) *writeOp {
	return &writeOp{
		collection: coll.name,
		target:     KindCollections + "/" + coll.name,
		key:        "save",
		run:        func() error { return se.saveCollection(coll) },
	}
}

func (se *StorageEngine) saveCollection(coll *Collection) error {
	collName := coll.name
	start := time.Now()
	coll.mu.RLock()
	if coll.dropped {
		coll.mu.RUnlock()
		return nil // dropped since the save was queued
	}
	// stored documents are never modified in place, so encoding can happen
	// outside the collection lock
	docs := coll.documents()
	coll.mu.RUnlock()

	data, err := se.codec.Marshal(docs)
	if err != nil {
		return &domain.IOError{Op: "save", Path: KindCollections + "/" + collName, Err: err}
	}
	if err := se.backend.Write(KindCollections, collName, data); err != nil {
		return err
	}
	log.Printf("DEBUG: Saved collection %s (%d documents, %d bytes) in %v", collName, len(docs), len(data), time.Since(start))
	return nil
}

func (se *StorageEngine) indexSaveOp(coll *Collection, indexName string) *writeOp {
	return &writeOp{
		collection: coll.name,
		target:     KindIndexes + "/" + indexSnapshotName(coll.name, indexName),
		key:        "save",
		run:        func() error { return se.saveIndex(coll, indexName) },
	}
}

func (se *StorageEngine) saveIndex(coll *Collection, indexName string) error {
	coll.mu.RLock()
	index, exists := coll.indexes.GetIndex(indexName)
	if coll.dropped || !exists {
		coll.mu.RUnlock()
		return nil
	}
	entries := index.Export()
	coll.mu.RUnlock()

	name := indexSnapshotName(coll.name, indexName)
	data, err := se.codec.Marshal(entries)
	if err != nil {
		return &domain.IOError{Op: "save", Path: KindIndexes + "/" + name, Err: err}
	}
	return se.backend.Write(KindIndexes, name, data)
}

func (se *StorageEngine) indexRemoveOp(collName, indexName string) *writeOp {
	name := indexSnapshotName(collName, indexName)
	return &writeOp{
		collection: collName,
		target:     KindIndexes + "/" + name,
		key:        "remove",
		run:        func() error { return se.backend.Remove(KindIndexes, name) },
	}
}

func (se *StorageEngine) collectionRemoveOp(collName string) *writeOp {
	return &writeOp{
		collection: collName,
		target:     KindCollections + "/" + collName,
		key:        "remove",
		run:        func() error { return se.backend.Remove(KindCollections, collName) },
	}
}

// catalogSaveOp rewrites the index catalog from the live collections
func (se *StorageEngine) catalogSaveOp() *writeOp {
	return &writeOp{
		target: KindMeta + "/" + catalogName,
		key:    "save",
		run:    se.saveCatalog,
	}
}

func (se *StorageEngine) saveCatalog() error {
	catalog := make(map[string][]domain.IndexInfo)
	se.mu.RLock()
	for name, coll := range se.collections {
		if infos := coll.Indexes(); len(infos) > 0 {
			catalog[name] = infos
		}
	}
	se.mu.RUnlock()

	data, err := se.codec.Marshal(catalog)
	if err != nil {
		return &domain.IOError{Op: "save", Path: KindMeta + "/" + catalogName, Err: err}
	}
	return se.backend.Write(KindMeta, catalogName, data)
}
