package storage

import (
	"github.com/adfharrison1/go-docstore/pkg/domain"
)

// Insert inserts a document into a collection, creating the collection on first use
func (se *StorageEngine) Insert(collName string, doc domain.Document) (domain.Document, error) {
	coll, err := se.Collection(collName)
	if err != nil {
		return nil, err
	}
	return coll.Insert(doc)
}

// InsertMany inserts documents in order, stopping at the first failure
func (se *StorageEngine) InsertMany(collName string, docs []domain.Document) ([]domain.Document, error) {
	coll, err := se.Collection(collName)
	if err != nil {
		return nil, err
	}
	return coll.InsertMany(docs)
}

// Find returns documents matching query. A nil or empty query matches everything.
func (se *StorageEngine) Find(collName string, query domain.Document, options *domain.FindOptions) ([]domain.Document, error) {
	coll, err := se.Collection(collName)
	if err != nil {
		return nil, err
	}
	return coll.Find(query, options)
}

// FindOne returns the first document matching query, or nil
func (se *StorageEngine) FindOne(collName string, query domain.Document) (domain.Document, error) {
	coll, err := se.Collection(collName)
	if err != nil {
		return nil, err
	}
	return coll.FindOne(query)
}

// Update applies update to the documents matching query
func (se *StorageEngine) Update(collName string, query, update domain.Document, options *domain.UpdateOptions) (domain.UpdateResult, error) {
	coll, err := se.Collection(collName)
	if err != nil {
		return domain.UpdateResult{}, err
	}
	return coll.Update(query, update, options)
}

// Delete removes the documents matching query
func (se *StorageEngine) Delete(collName string, query domain.Document) (domain.DeleteResult, error) {
	coll, err := se.Collection(collName)
	if err != nil {
		return domain.DeleteResult{}, err
	}
	return coll.Delete(query)
}

// Count returns the number of documents matching query
func (se *StorageEngine) Count(collName string, query domain.Document) (int, error) {
	coll, err := se.Collection(collName)
	if err != nil {
		return 0, err
	}
	return coll.Count(query)
}

// Aggregate runs an aggregation pipeline over a collection
func (se *StorageEngine) Aggregate(collName string, pipeline []domain.Document) ([]domain.Document, error) {
	coll, err := se.Collection(collName)
	if err != nil {
		return nil, err
	}
	return coll.Aggregate(pipeline)
}
