package storage

import (
	"log"
	"sort"

	"github.com/adfharrison1/go-docstore/pkg/domain"
)

func (se *StorageEngine) checkConnected() error {
	se.mu.RLock()
	defer se.mu.RUnlock()
	if !se.connected {
		return domain.ErrNotConnected
	}
	return nil
}

// Collection returns the named collection, creating an empty one in memory
// on first reference. Nothing is written until the collection changes.
func (se *StorageEngine) Collection(collName string) (*Collection, error) {
	if err := validateName(collName); err != nil {
		return nil, err
	}
	coll, _, err := se.getOrCreateCollection(collName)
	return coll, err
}

func (se *StorageEngine) getOrCreateCollection(collName string) (*Collection, bool, error) {
	se.mu.RLock()
	if !se.connected {
		se.mu.RUnlock()
		return nil, false, domain.ErrNotConnected
	}
	if coll, exists := se.collections[collName]; exists {
		se.mu.RUnlock()
		return coll, false, nil
	}
	se.mu.RUnlock()

	se.mu.Lock()
	defer se.mu.Unlock()

	// Double-check in case another goroutine created it
	if !se.connected {
		return nil, false, domain.ErrNotConnected
	}
	if coll, exists := se.collections[collName]; exists {
		return coll, false, nil
	}
	coll := newCollection(collName, se)
	se.collections[collName] = coll
	return coll, true, nil
}

// ListCollections returns the collection names in sorted order
func (se *StorageEngine) ListCollections() ([]string, error) {
	se.mu.RLock()
	defer se.mu.RUnlock()
	if !se.connected {
		return nil, domain.ErrNotConnected
	}
	names := make([]string, 0, len(se.collections))
	for name := range se.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// CreateCollection creates an empty collection and persists it. Creating an
// existing collection is a no-op.
func (se *StorageEngine) CreateCollection(collName string) error {
	if err := validateName(collName); err != nil {
		return err
	}
	coll, created, err := se.getOrCreateCollection(collName)
	if err != nil {
		return err
	}
	if created {
		log.Printf("INFO: Created collection %s", collName)
		coll.mu.Lock()
		if coll.usableLocked() == nil {
			coll.enqueueLocked(se.collectionSaveOp(coll))
		}
		coll.mu.Unlock()
	}
	return nil
}

// DropCollection removes a collection, its indexes and their snapshots.
// Dropping an unknown collection is a no-op.
func (se *StorageEngine) DropCollection(collName string) error {
	if err := validateName(collName); err != nil {
		return err
	}

	se.mu.Lock()
	if !se.connected {
		se.mu.Unlock()
		return domain.ErrNotConnected
	}
	coll, exists := se.collections[collName]
	if !exists {
		se.mu.Unlock()
		return nil
	}
	delete(se.collections, collName)

	coll.mu.Lock()
	coll.dropped = true
	indexes := coll.indexes.GetIndexes()
	count := len(coll.docs)
	coll.mu.Unlock()

	// queued before se.mu is released so a collection recreated under the
	// same name queues its writes after these removals
	for _, info := range indexes {
		enqueueOn(se.writer, se.indexRemoveOp(collName, info.Name))
	}
	enqueueOn(se.writer, se.collectionRemoveOp(collName))
	if len(indexes) > 0 {
		enqueueOn(se.writer, se.catalogSaveOp())
	}
	se.mu.Unlock()

	log.Printf("INFO: Dropped collection %s (%d documents, %d indexes)", collName, count, len(indexes))
	se.publish(domain.ChangeEvent{
		Type:       domain.EventCollectionDropped,
		Collection: collName,
		Count:      count,
	})
	return nil
}
