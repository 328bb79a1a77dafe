package storage

import (
	"errors"
	"fmt"
	"log"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/adfharrison1/go-docstore/pkg/domain"
	"github.com/adfharrison1/go-docstore/pkg/indexing"
)

var _ domain.DatabaseEngine = (*StorageEngine)(nil)

// StorageEngine is an embedded document store: named collections held in
// memory and persisted as snapshots through a single background writer.
type StorageEngine struct {
	mu          sync.RWMutex
	collections map[string]*Collection
	connected   bool

	// Configuration
	dataDir          string
	format           Format
	backendKind      BackendKind
	atomicWrites     bool
	eventBuffer      int
	matcherCacheSize int
	newID            func() string
	now              func() time.Time

	backend  Backend
	codec    codec
	writer   *writeQueue
	events   *eventBroker
	matchers *LRUCache
}

// NewStorageEngine creates a new storage engine. Nothing touches disk until Connect.
func NewStorageEngine(options ...StorageOption) *StorageEngine {
	engine := &StorageEngine{
		collections:      make(map[string]*Collection),
		dataDir:          "./data",
		format:           FormatJSON,
		backendKind:      BackendFile,
		eventBuffer:      64,
		matcherCacheSize: 128,
		newID:            func() string { return uuid.New().String() },
		now:              time.Now,
		events:           newEventBroker(),
	}

	// Apply options
	for _, option := range options {
		option(engine)
	}

	engine.matchers = NewLRUCache(engine.matcherCacheSize)
	return engine
}

// Connect opens the storage root, loads every collection and index snapshot
// and starts the background writer
func (se *StorageEngine) Connect() error {
	se.mu.Lock()
	defer se.mu.Unlock()

	if se.connected {
		return nil
	}

	c, err := newCodec(se.format)
	if err != nil {
		return err
	}
	var backend Backend
	switch se.backendKind {
	case BackendFile, "":
		backend = NewFileBackend(se.dataDir, c.Extension(), se.atomicWrites)
	case BackendBolt:
		backend = NewBoltBackend(se.dataDir)
	default:
		return fmt.Errorf("unknown storage backend %q", se.backendKind)
	}

	start := time.Now()
	if err := backend.Open(); err != nil {
		return err
	}
	se.backend = backend
	se.codec = c
	// created before loading so index rebuilds can queue their saves
	se.writer = newWriteQueue(se.onPersistenceError)

	collections, err := se.load()
	if err != nil {
		backend.Close()
		return err
	}
	se.collections = collections

	se.writer.start()
	if se.events.isClosed() {
		se.events = newEventBroker()
	}
	se.connected = true

	log.Printf("INFO: Connected to %s (%s/%s): %d collections loaded in %v",
		se.dataDir, se.backendKind, se.format, len(collections), time.Since(start))
	return nil
}

// load reads the catalog, every collection snapshot and every index snapshot
func (se *StorageEngine) load() (map[string]*Collection, error) {
	catalog := make(map[string][]domain.IndexInfo)
	if data, ok, err := se.backend.Read(KindMeta, catalogName); err != nil {
		return nil, err
	} else if ok {
		if err := decodeSnapshot(se.codec, KindMeta, catalogName, data, &catalog); err != nil {
			return nil, err
		}
	}

	snapshots, err := se.backend.ReadAll(KindCollections)
	if err != nil {
		return nil, err
	}

	collections := make(map[string]*Collection, len(snapshots))
	for name, data := range snapshots {
		var raw []map[string]interface{}
		if err := decodeSnapshot(se.codec, KindCollections, name, data, &raw); err != nil {
			return nil, err
		}
		coll := newCollection(name, se)
		for _, item := range raw {
			// msgpack hands back integer kinds, so normalize every document
			doc, err := domain.NormalizeDocument(item)
			if err != nil {
				return nil, &domain.IOError{Op: "load", Path: KindCollections + "/" + name, Err: err}
			}
			coll.put(doc)
		}
		collections[name] = coll
	}

	for collName, infos := range catalog {
		coll, exists := collections[collName]
		if !exists {
			coll = newCollection(collName, se)
			collections[collName] = coll
		}
		for _, info := range infos {
			if err := se.loadIndex(coll, info); err != nil {
				return nil, err
			}
		}
	}
	return collections, nil
}

func (se *StorageEngine) loadIndex(coll *Collection, info domain.IndexInfo) error {
	name := indexSnapshotName(coll.name, info.Name)
	data, ok, err := se.backend.Read(KindIndexes, name)
	if err != nil {
		return err
	}

	index, err := indexing.NewIndex(info.Name, info.Fields, info.Options)
	if err != nil {
		return &domain.IOError{Op: "load", Path: KindIndexes + "/" + name, Err: err}
	}
	if ok {
		var entries []indexing.Entry
		if err := decodeSnapshot(se.codec, KindIndexes, name, data, &entries); err != nil {
			return err
		}
		index.Import(entries)
	} else {
		log.Printf("WARN: Index %s has no stored entries, rebuilding from documents", name)
		if err := index.Build(coll.documents()); err != nil {
			return &domain.IOError{Op: "load", Path: KindIndexes + "/" + name, Err: err}
		}
		// se.mu is held by Connect, so queue on the writer directly
		se.writer.enqueue(se.indexSaveOp(coll, info.Name))
	}
	coll.indexes.Register(index)
	return nil
}

// Disconnect drains pending writes, stops the writer, closes the backend and
// every event subscription. It returns the persistence errors collected since
// the last Flush.
func (se *StorageEngine) Disconnect() error {
	se.mu.Lock()
	if !se.connected {
		se.mu.Unlock()
		return nil
	}
	se.connected = false
	live := make([]*Collection, 0, len(se.collections))
	for _, coll := range se.collections {
		live = append(live, coll)
	}
	se.mu.Unlock()

	log.Printf("INFO: Disconnecting from %s", se.dataDir)
	// a mutation holding the collection lock finishes queueing its save
	// before the collection is retired, and the drain below persists it
	for _, coll := range live {
		coll.mu.Lock()
		coll.retired = true
		coll.mu.Unlock()
	}
	queueErr := se.writer.close()
	closeErr := se.backend.Close()
	se.events.close()
	se.matchers.Clear()

	se.mu.Lock()
	se.collections = make(map[string]*Collection)
	se.mu.Unlock()

	return errors.Join(queueErr, closeErr)
}

// Flush blocks until every queued write has completed and returns the
// persistence errors collected since the previous Flush
func (se *StorageEngine) Flush() error {
	se.mu.RLock()
	connected := se.connected
	se.mu.RUnlock()
	if !connected {
		return domain.ErrNotConnected
	}
	return se.writer.flush()
}

// Subscribe registers a change-event listener. A non-positive buffer uses the
// engine default. The returned cancel func is safe to call more than once.
func (se *StorageEngine) Subscribe(buffer int) (<-chan domain.ChangeEvent, func()) {
	if buffer <= 0 {
		buffer = se.eventBuffer
	}
	se.mu.RLock()
	events := se.events
	se.mu.RUnlock()
	return events.subscribe(buffer)
}

// publish must not be called with se.mu held
func (se *StorageEngine) publish(ev domain.ChangeEvent) {
	se.mu.RLock()
	events := se.events
	se.mu.RUnlock()
	events.publish(ev)
}

func (se *StorageEngine) onPersistenceError(op *writeOp, err error) {
	log.Printf("ERROR: Persistence %s of %s failed: %v", op.key, op.target, err)
	se.publish(domain.ChangeEvent{
		Type:       domain.EventPersistenceFailed,
		Collection: op.collection,
		Err:        err,
	})
}

// GetStats returns engine and memory statistics
func (se *StorageEngine) GetStats() map[string]interface{} {
	stats := memoryStats()

	se.mu.RLock()
	stats["connected"] = se.connected
	stats["collections"] = len(se.collections)
	documents := 0
	for _, coll := range se.collections {
		documents += coll.Len()
	}
	writer := se.writer
	events := se.events
	se.mu.RUnlock()

	stats["documents"] = documents
	stats["backend"] = string(se.backendKind)
	stats["format"] = string(se.format)
	stats["data_dir"] = se.dataDir
	stats["subscribers"] = events.count()
	stats["cached_matchers"] = se.matchers.Len()
	if writer != nil {
		stats["pending_writes"] = writer.depth()
	}
	return stats
}

// memoryStats returns current memory usage statistics
func memoryStats() map[string]interface{} {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return map[string]interface{}{
		"alloc_mb":       m.Alloc / 1024 / 1024,
		"total_alloc_mb": m.TotalAlloc / 1024 / 1024,
		"sys_mb":         m.Sys / 1024 / 1024,
		"num_goroutines": runtime.NumGoroutine(),
	}
}

// timestamp renders the engine clock in the document timestamp layout
func (se *StorageEngine) timestamp() string {
	return domain.FormatTimestamp(se.now())
}
