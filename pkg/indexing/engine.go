package indexing

import (
	"fmt"
	"sort"

	"github.com/adfharrison1/go-docstore/pkg/domain"
)

// IndexEngine manages the indexes bound to a single collection. It is not
// safe for concurrent use; the owning collection serializes access.
type IndexEngine struct {
	indexes map[string]*Index // index name -> index
}

// NewIndexEngine creates a new index engine
func NewIndexEngine() *IndexEngine {
	return &IndexEngine{
		indexes: make(map[string]*Index),
	}
}

// CreateIndex builds a new index over docs and registers it. Nothing is
// registered if the documents violate a unique constraint.
func (ie *IndexEngine) CreateIndex(fields []string, options domain.IndexOptions, docs []domain.Document) (*Index, error) {
	index, err := NewIndex(options.Name, fields, options)
	if err != nil {
		return nil, err
	}
	if _, exists := ie.indexes[index.Name]; exists {
		return nil, fmt.Errorf("%w: %s", domain.ErrIndexExists, index.Name)
	}
	if err := index.Build(docs); err != nil {
		return nil, fmt.Errorf("failed to build index %s: %w", index.Name, err)
	}
	ie.indexes[index.Name] = index
	return index, nil
}

// Register adds an already populated index, replacing any index of the same name
func (ie *IndexEngine) Register(index *Index) {
	ie.indexes[index.Name] = index
}

// DropIndex removes an index
func (ie *IndexEngine) DropIndex(name string) error {
	if _, exists := ie.indexes[name]; !exists {
		return fmt.Errorf("%w: index %s", domain.ErrNotFound, name)
	}
	delete(ie.indexes, name)
	return nil
}

// GetIndex returns an index by name
func (ie *IndexEngine) GetIndex(name string) (*Index, bool) {
	index, exists := ie.indexes[name]
	return index, exists
}

// Indexes returns every index sorted by name
func (ie *IndexEngine) Indexes() []*Index {
	out := make([]*Index, 0, len(ie.indexes))
	for _, index := range ie.indexes {
		out = append(out, index)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// GetIndexes describes every index sorted by name
func (ie *IndexEngine) GetIndexes() []domain.IndexInfo {
	indexes := ie.Indexes()
	out := make([]domain.IndexInfo, len(indexes))
	for i, index := range indexes {
		out[i] = index.Info()
	}
	return out
}

// Check validates a pending document change against every index without
// mutating any of them. newDoc nil means deletion, which never conflicts.
func (ie *IndexEngine) Check(docID string, newDoc domain.Document) error {
	for _, index := range ie.Indexes() {
		if err := index.Check(docID, newDoc); err != nil {
			return err
		}
	}
	return nil
}

// Apply updates every index for a document change validated by Check
func (ie *IndexEngine) Apply(docID string, newDoc domain.Document) {
	for _, index := range ie.indexes {
		index.Apply(docID, newDoc)
	}
}

// UpdateIndexForDocument validates then applies a document change across all
// indexes, so a rejection leaves every index untouched.
func (ie *IndexEngine) UpdateIndexForDocument(docID string, newDoc domain.Document) error {
	if err := ie.Check(docID, newDoc); err != nil {
		return err
	}
	ie.Apply(docID, newDoc)
	return nil
}

// Candidates narrows a query to document IDs using every index whose fields
// are all constrained by equality. ok is false when no index applies.
func (ie *IndexEngine) Candidates(equality map[string]interface{}) (ids []string, ok bool) {
	if len(equality) == 0 {
		return nil, false
	}
	var results [][]string
	for _, index := range ie.Indexes() {
		if !index.Answerable() {
			continue
		}
		values := make([]interface{}, 0, len(index.Fields))
		for _, f := range index.Fields {
			v, constrained := equality[f]
			if !constrained {
				break
			}
			values = append(values, v)
		}
		if len(values) != len(index.Fields) {
			continue
		}
		results = append(results, index.Query(values...))
	}
	if len(results) == 0 {
		return nil, false
	}
	return IntersectStringSlices(results...), true
}

// IntersectStringSlices returns the intersection of multiple string slices
// This is used for index intersection in multi-field queries
func IntersectStringSlices(slices ...[]string) []string {
	if len(slices) == 0 {
		return nil
	}
	if len(slices) == 1 {
		return slices[0]
	}

	// Create a map to track counts of each ID
	countMap := make(map[string]int)

	// Count occurrences of each ID across all slices
	for _, slice := range slices {
		for _, id := range slice {
			countMap[id]++
		}
	}

	// Find IDs that appear in all slices (count equals number of slices)
	result := []string{}
	expectedCount := len(slices)
	for id, count := range countMap {
		if count == expectedCount {
			result = append(result, id)
		}
	}
	sort.Strings(result)
	return result
}
