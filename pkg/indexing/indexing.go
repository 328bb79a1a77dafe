package indexing

import (
	"fmt"
	"sort"
	"strings"

	"github.com/adfharrison1/go-docstore/pkg/domain"
)

// Index maps a composite key built from one or more field paths to the set of
// document IDs sharing that key.
type Index struct {
	Name    string
	Fields  []string
	Options domain.IndexOptions

	entries map[string]map[string]struct{} // composite key -> doc IDs
	keys    map[string]string              // doc ID -> composite key

	// multiValued counts documents whose key holds an array or mapping
	// component. Such documents match equality queries by membership, so
	// the index cannot answer those queries on its own.
	multiValued map[string]struct{}
}

// Entry is the persisted form of one index key
type Entry struct {
	Key string   `json:"key" msgpack:"key"`
	IDs []string `json:"ids" msgpack:"ids"`
}

// NewIndex creates an empty index over the given field paths
func NewIndex(name string, fields []string, options domain.IndexOptions) (*Index, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: index needs at least one field", domain.ErrInvalidPath)
	}
	for _, f := range fields {
		if _, err := domain.SplitPath(f); err != nil {
			return nil, err
		}
	}
	if name == "" {
		name = DefaultName(fields)
	}
	options.Name = name
	return &Index{
		Name:        name,
		Fields:      append([]string(nil), fields...),
		Options:     options,
		entries:     make(map[string]map[string]struct{}),
		keys:        make(map[string]string),
		multiValued: make(map[string]struct{}),
	}, nil
}

// DefaultName derives an index name from its fields
func DefaultName(fields []string) string {
	return strings.Join(fields, "_")
}

// Info describes the index
func (idx *Index) Info() domain.IndexInfo {
	return domain.IndexInfo{
		Name:    idx.Name,
		Fields:  append([]string(nil), idx.Fields...),
		Options: idx.Options,
	}
}

// KeyFor computes the composite key of doc. ok is false when the document is
// excluded from the index (sparse index and a field is missing).
func (idx *Index) KeyFor(doc domain.Document) (key string, ok bool) {
	key, _, ok = idx.keyFor(doc)
	return key, ok
}

func (idx *Index) keyFor(doc domain.Document) (string, bool, bool) {
	parts := make([]interface{}, len(idx.Fields))
	multi := false
	for i, f := range idx.Fields {
		val, found := domain.Lookup(doc, f)
		if !found {
			if idx.Options.Sparse {
				return "", false, false
			}
			val = nil
		}
		switch val.(type) {
		case []interface{}, map[string]interface{}, domain.Document:
			multi = true
		}
		parts[i] = val
	}
	return domain.CanonicalKey(parts), multi, true
}

// Check validates that storing newDoc under docID would keep the index
// consistent. It never mutates the index.
func (idx *Index) Check(docID string, newDoc domain.Document) error {
	if !idx.Options.Unique || newDoc == nil {
		return nil
	}
	key, ok := idx.KeyFor(newDoc)
	if !ok {
		return nil
	}
	if oldKey, present := idx.keys[docID]; present && oldKey == key {
		return nil
	}
	for id := range idx.entries[key] {
		if id != docID {
			return &domain.DuplicateKeyError{Index: idx.Name, Key: key, ID: docID}
		}
	}
	return nil
}

// Apply moves docID to the key computed from newDoc. A nil newDoc removes
// the document. Callers must Check first when the index is unique.
func (idx *Index) Apply(docID string, newDoc domain.Document) {
	oldKey, present := idx.keys[docID]
	if newDoc == nil {
		if present {
			idx.remove(docID, oldKey)
		}
		return
	}

	key, multi, ok := idx.keyFor(newDoc)
	if present && ok && oldKey == key {
		return
	}
	if present {
		idx.remove(docID, oldKey)
	}
	if !ok {
		return
	}
	idx.add(docID, key, multi)
}

func (idx *Index) add(docID, key string, multi bool) {
	ids, exists := idx.entries[key]
	if !exists {
		ids = make(map[string]struct{})
		idx.entries[key] = ids
	}
	ids[docID] = struct{}{}
	idx.keys[docID] = key
	if multi {
		idx.multiValued[docID] = struct{}{}
	}
}

func (idx *Index) remove(docID, key string) {
	if ids, exists := idx.entries[key]; exists {
		delete(ids, docID)
		if len(ids) == 0 {
			delete(idx.entries, key)
		}
	}
	delete(idx.keys, docID)
	delete(idx.multiValued, docID)
}

// Build indexes every document, failing on the first unique violation
func (idx *Index) Build(docs []domain.Document) error {
	for _, doc := range docs {
		id := doc.ID()
		if err := idx.Check(id, doc); err != nil {
			return err
		}
		idx.Apply(id, doc)
	}
	return nil
}

// Query returns document IDs whose indexed fields equal values, in field order
func (idx *Index) Query(values ...interface{}) []string {
	if len(values) != len(idx.Fields) {
		return nil
	}
	ids := idx.entries[domain.CanonicalKey(values)]
	out := make([]string, 0, len(ids))
	for id := range ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Answerable reports whether equality lookups through this index are exact
func (idx *Index) Answerable() bool {
	return len(idx.multiValued) == 0
}

// Len returns the number of distinct keys
func (idx *Index) Len() int {
	return len(idx.entries)
}

// Export returns the persisted form of the index, sorted by key
func (idx *Index) Export() []Entry {
	out := make([]Entry, 0, len(idx.entries))
	for key, ids := range idx.entries {
		e := Entry{Key: key, IDs: make([]string, 0, len(ids))}
		for id := range ids {
			e.IDs = append(e.IDs, id)
		}
		sort.Strings(e.IDs)
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Import replaces the index contents with persisted entries. The entries are
// trusted as stored.
func (idx *Index) Import(entries []Entry) {
	idx.entries = make(map[string]map[string]struct{}, len(entries))
	idx.keys = make(map[string]string)
	idx.multiValued = make(map[string]struct{})
	for _, e := range entries {
		multi := keyHasCompound(e.Key)
		for _, id := range e.IDs {
			idx.add(id, e.Key, multi)
		}
	}
}

// keyHasCompound reports whether a serialized composite key contains an array
// or mapping component. Keys are JSON arrays, so any nested bracket or brace
// outside a string literal means a compound component.
func keyHasCompound(key string) bool {
	inString, escaped := false, false
	for i, r := range key {
		switch {
		case escaped:
			escaped = false
		case inString && r == '\\':
			escaped = true
		case r == '"':
			inString = !inString
		case !inString && i > 0 && (r == '[' || r == '{'):
			return true
		}
	}
	return false
}
