package storage

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/adfharrison1/go-docstore/pkg/aggregation"
	"github.com/adfharrison1/go-docstore/pkg/domain"
	"github.com/adfharrison1/go-docstore/pkg/indexing"
	"github.com/adfharrison1/go-docstore/pkg/query"
)

// entry is a stored document plus its insertion sequence. Stored documents
// are never modified in place: updates swap in a new map.
type entry struct {
	doc domain.Document
	seq uint64
}

// Collection is a named set of documents with its own indexes. Every read and
// mutation runs under the collection lock, so mutations apply in call order.
type Collection struct {
	name   string
	engine *StorageEngine

	mu      sync.RWMutex
	docs    map[string]*entry
	nextSeq uint64
	indexes *indexing.IndexEngine
	dropped bool

	// writer is the queue of the connection that created the collection.
	// Disconnect sets retired before draining it, so handles taken before a
	// reconnect stop accepting writes.
	writer  *writeQueue
	retired bool
}

// newCollection is called with engine.mu held
func newCollection(name string, engine *StorageEngine) *Collection {
	return &Collection{
		name:    name,
		engine:  engine,
		docs:    make(map[string]*entry),
		indexes: indexing.NewIndexEngine(),
		writer:  engine.writer,
	}
}

// Name returns the collection name
func (c *Collection) Name() string {
	return c.name
}

// Len returns the number of stored documents
func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.docs)
}

// put stores doc without index maintenance or persistence (snapshot loading)
func (c *Collection) put(doc domain.Document) {
	id := doc.ID()
	if existing, ok := c.docs[id]; ok {
		existing.doc = doc
		return
	}
	c.docs[id] = &entry{doc: doc, seq: c.nextSeq}
	c.nextSeq++
}

// ordered returns stored entries in insertion order. Caller holds c.mu.
func (c *Collection) ordered() []*entry {
	out := make([]*entry, 0, len(c.docs))
	for _, e := range c.docs {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

// documents returns the stored documents in insertion order. The maps are
// shared, not copied. Caller holds c.mu.
func (c *Collection) documents() []domain.Document {
	entries := c.ordered()
	out := make([]domain.Document, len(entries))
	for i, e := range entries {
		out[i] = e.doc
	}
	return out
}

func (c *Collection) checkUsable() error {
	if err := c.engine.checkConnected(); err != nil {
		return err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.usableLocked()
}

// usableLocked rejects handles to dropped collections and to collections
// from an earlier connection. Caller holds c.mu.
func (c *Collection) usableLocked() error {
	if c.retired {
		return fmt.Errorf("%w: collection %s belongs to a closed connection", domain.ErrNotConnected, c.name)
	}
	if c.dropped {
		return fmt.Errorf("%w: collection %s was dropped", domain.ErrNotFound, c.name)
	}
	return nil
}

// enqueueLocked queues op while c.mu is held, so every write that reports
// success is queued before Disconnect can retire the collection and drain
func (c *Collection) enqueueLocked(op *writeOp) {
	enqueueOn(c.writer, op)
}

// Insert stores a copy of doc, assigning _id (when absent) and timestamps,
// and returns the stored form
func (c *Collection) Insert(doc domain.Document) (domain.Document, error) {
	if err := c.checkUsable(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	stored, err := c.insertLocked(doc)
	if err == nil {
		c.enqueueLocked(c.engine.collectionSaveOp(c))
	}
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}

	c.engine.publish(domain.ChangeEvent{
		Type:       domain.EventDocumentInserted,
		Collection: c.name,
		Document:   stored.Clone(),
	})
	return stored.Clone(), nil
}

func (c *Collection) insertLocked(doc domain.Document) (domain.Document, error) {
	if err := c.usableLocked(); err != nil {
		return nil, err
	}
	normalized, err := domain.NormalizeDocument(doc)
	if err != nil {
		return nil, err
	}

	if raw, present := normalized[domain.FieldID]; present {
		id, ok := raw.(string)
		if !ok || id == "" {
			return nil, fmt.Errorf("%w: _id must be a non-empty string", domain.ErrInvalidDocument)
		}
	} else {
		normalized[domain.FieldID] = c.engine.newID()
	}
	id := normalized.ID()
	if _, exists := c.docs[id]; exists {
		return nil, &domain.DuplicateKeyError{ID: id}
	}

	now := c.engine.timestamp()
	if _, ok := normalized[domain.FieldCreatedAt]; !ok {
		normalized[domain.FieldCreatedAt] = now
	}
	if _, ok := normalized[domain.FieldUpdatedAt]; !ok {
		normalized[domain.FieldUpdatedAt] = now
	}

	if err := c.indexes.UpdateIndexForDocument(id, normalized); err != nil {
		return nil, err
	}
	c.put(normalized)
	return normalized, nil
}

// InsertMany inserts documents one at a time. It stops at the first failure
// and returns the documents inserted before it together with the error.
func (c *Collection) InsertMany(docs []domain.Document) ([]domain.Document, error) {
	inserted := make([]domain.Document, 0, len(docs))
	for i, doc := range docs {
		stored, err := c.Insert(doc)
		if err != nil {
			return inserted, fmt.Errorf("document %d: %w", i, err)
		}
		inserted = append(inserted, stored)
	}
	return inserted, nil
}

// Find returns copies of the documents matching q, sorted and paginated by options
func (c *Collection) Find(q domain.Document, options *domain.FindOptions) ([]domain.Document, error) {
	if err := c.checkUsable(); err != nil {
		return nil, err
	}
	if err := options.Validate(); err != nil {
		return nil, err
	}
	m, err := c.engine.matcher(q)
	if err != nil {
		return nil, err
	}

	c.mu.RLock()
	matched := c.matchLocked(m)
	results := make([]domain.Document, len(matched))
	for i, e := range matched {
		results[i] = e.doc.Clone()
	}
	c.mu.RUnlock()

	if options == nil {
		return results, nil
	}
	query.SortDocuments(results, options.Sort)
	return query.Paginate(results, options.Skip, options.Limit), nil
}

// FindOne returns the first matching document, or nil when none matches
func (c *Collection) FindOne(q domain.Document) (domain.Document, error) {
	docs, err := c.Find(q, &domain.FindOptions{Limit: 1})
	if err != nil || len(docs) == 0 {
		return nil, err
	}
	return docs[0], nil
}

// Count returns the number of documents matching q
func (c *Collection) Count(q domain.Document) (int, error) {
	if err := c.checkUsable(); err != nil {
		return 0, err
	}
	m, err := c.engine.matcher(q)
	if err != nil {
		return 0, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.matchLocked(m)), nil
}

// matchLocked returns matching entries in insertion order, narrowing the scan
// through indexes when the query's equality fields cover one. Caller holds c.mu.
func (c *Collection) matchLocked(m *query.Matcher) []*entry {
	var candidates []*entry
	if ids, ok := c.indexes.Candidates(m.EqualityFields()); ok {
		candidates = make([]*entry, 0, len(ids))
		for _, id := range ids {
			if e, exists := c.docs[id]; exists {
				candidates = append(candidates, e)
			}
		}
		sort.Slice(candidates, func(i, j int) bool { return candidates[i].seq < candidates[j].seq })
	} else {
		candidates = c.ordered()
	}

	out := candidates[:0]
	for _, e := range candidates {
		if m.Match(e.doc) {
			out = append(out, e)
		}
	}
	return out
}

// Update applies update to every document matching q. With Upsert and no
// match, a document seeded from the query's equality fields is inserted. A
// document that fails (duplicate key, invalid operator target) is left
// unchanged; the others still apply and the failures are returned joined.
func (c *Collection) Update(q, update domain.Document, options *domain.UpdateOptions) (domain.UpdateResult, error) {
	var result domain.UpdateResult
	if err := c.checkUsable(); err != nil {
		return result, err
	}
	if err := query.ValidateUpdate(update); err != nil {
		return result, err
	}
	m, err := c.engine.matcher(q)
	if err != nil {
		return result, err
	}

	c.mu.Lock()
	if err := c.usableLocked(); err != nil {
		c.mu.Unlock()
		return result, err
	}
	matched := c.matchLocked(m)

	if len(matched) == 0 {
		if options == nil || !options.Upsert {
			c.mu.Unlock()
			return result, nil
		}
		seed, err := query.UpsertDocument(q, update)
		if err != nil {
			c.mu.Unlock()
			return result, err
		}
		stored, err := c.insertLocked(seed)
		if err == nil {
			c.enqueueLocked(c.engine.collectionSaveOp(c))
		}
		c.mu.Unlock()
		if err != nil {
			return result, err
		}
		result.UpsertedCount = 1
		result.ModifiedCount = 1
		result.UpsertedID = stored.ID()

		c.engine.publish(domain.ChangeEvent{
			Type:       domain.EventDocumentInserted,
			Collection: c.name,
			Document:   stored.Clone(),
		})
		return result, nil
	}

	result.MatchedCount = len(matched)
	var errs []error
	now := c.engine.timestamp()
	for _, e := range matched {
		id := e.doc.ID()
		updated, err := query.ApplyUpdate(e.doc, update)
		if err != nil {
			errs = append(errs, fmt.Errorf("document %s: %w", id, err))
			continue
		}
		updated[domain.FieldUpdatedAt] = now
		if err := c.indexes.UpdateIndexForDocument(id, updated); err != nil {
			errs = append(errs, fmt.Errorf("document %s: %w", id, err))
			continue
		}
		e.doc = updated
		result.ModifiedCount++
	}
	if result.ModifiedCount > 0 {
		c.enqueueLocked(c.engine.collectionSaveOp(c))
	}
	c.mu.Unlock()

	if result.ModifiedCount > 0 {
		c.engine.publish(domain.ChangeEvent{
			Type:       domain.EventDocumentsUpdated,
			Collection: c.name,
			Query:      q.Clone(),
			Update:     update.Clone(),
			Count:      result.ModifiedCount,
		})
	}
	return result, errors.Join(errs...)
}

// Delete removes every document matching q
func (c *Collection) Delete(q domain.Document) (domain.DeleteResult, error) {
	var result domain.DeleteResult
	if err := c.checkUsable(); err != nil {
		return result, err
	}
	m, err := c.engine.matcher(q)
	if err != nil {
		return result, err
	}

	c.mu.Lock()
	if err := c.usableLocked(); err != nil {
		c.mu.Unlock()
		return result, err
	}
	for _, e := range c.matchLocked(m) {
		id := e.doc.ID()
		c.indexes.Apply(id, nil)
		delete(c.docs, id)
		result.DeletedCount++
	}
	if result.DeletedCount > 0 {
		c.enqueueLocked(c.engine.collectionSaveOp(c))
	}
	c.mu.Unlock()

	if result.DeletedCount > 0 {
		c.engine.publish(domain.ChangeEvent{
			Type:       domain.EventDocumentsDeleted,
			Collection: c.name,
			Query:      q.Clone(),
			Count:      result.DeletedCount,
		})
	}
	return result, nil
}

// CreateIndex builds an index over fields and persists it with the catalog.
// The returned name defaults to the fields joined with "_".
func (c *Collection) CreateIndex(fields []string, options domain.IndexOptions) (string, error) {
	if err := c.checkUsable(); err != nil {
		return "", err
	}
	if options.Name == "" {
		options.Name = indexing.DefaultName(fields)
	}
	if err := validateName(options.Name); err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.usableLocked(); err != nil {
		return "", err
	}
	index, err := c.indexes.CreateIndex(fields, options, c.documents())
	if err != nil {
		return "", err
	}

	c.enqueueLocked(c.engine.indexSaveOp(c, index.Name))
	c.enqueueLocked(c.engine.catalogSaveOp())
	return index.Name, nil
}

// DropIndex removes an index and its stored entries
func (c *Collection) DropIndex(name string) error {
	if err := c.checkUsable(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.usableLocked(); err != nil {
		return err
	}
	if err := c.indexes.DropIndex(name); err != nil {
		return err
	}

	c.enqueueLocked(c.engine.indexRemoveOp(c.name, name))
	c.enqueueLocked(c.engine.catalogSaveOp())
	return nil
}

// Indexes describes the collection's indexes sorted by name
func (c *Collection) Indexes() []domain.IndexInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.indexes.GetIndexes()
}

// Aggregate runs a pipeline over a snapshot of the collection
func (c *Collection) Aggregate(pipeline []domain.Document) ([]domain.Document, error) {
	if err := c.checkUsable(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	entries := c.ordered()
	docs := make([]domain.Document, len(entries))
	for i, e := range entries {
		docs[i] = e.doc.Clone()
	}
	c.mu.RUnlock()

	return aggregation.Run(docs, pipeline)
}

// validateName rejects names that cannot be used as snapshot file names
func validateName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: name cannot be empty", domain.ErrInvalidName)
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("%w: %q contains a path separator", domain.ErrInvalidName, name)
	case name == "." || name == ".." || strings.HasPrefix(name, "."):
		return fmt.Errorf("%w: %q cannot start with a dot", domain.ErrInvalidName, name)
	case strings.ContainsRune(name, 0):
		return fmt.Errorf("%w: %q contains a NUL byte", domain.ErrInvalidName, name)
	}
	return nil
}
