package storage

import (
	"github.com/adfharrison1/go-docstore/pkg/domain"
)

// CreateIndex creates an index over one or more fields of a collection and
// returns its name
func (se *StorageEngine) CreateIndex(collName string, fields []string, options domain.IndexOptions) (string, error) {
	coll, err := se.Collection(collName)
	if err != nil {
		return "", err
	}
	return coll.CreateIndex(fields, options)
}

// DropIndex removes an index from a collection
func (se *StorageEngine) DropIndex(collName, indexName string) error {
	coll, err := se.Collection(collName)
	if err != nil {
		return err
	}
	return coll.DropIndex(indexName)
}

// GetIndexes describes the indexes of a collection
func (se *StorageEngine) GetIndexes(collName string) ([]domain.IndexInfo, error) {
	coll, err := se.Collection(collName)
	if err != nil {
		return nil, err
	}
	return coll.Indexes(), nil
}
