package storage

import (
	"github.com/adfharrison1/go-docstore/pkg/domain"
)

// FindStream streams the documents matching query over a channel. The result
// set is taken when FindStream is called; the channel closes after the last
// document.
func (se *StorageEngine) FindStream(collName string, query domain.Document, options *domain.FindOptions) (<-chan domain.Document, error) {
	docs, err := se.Find(collName, query, options)
	if err != nil {
		return nil, err
	}
	return docGenerator(docs), nil
}

// docGenerator yields docs over a buffered channel
func docGenerator(docs []domain.Document) <-chan domain.Document {
	out := make(chan domain.Document, 100)
	go func() {
		defer close(out)
		for _, doc := range docs {
			out <- doc
		}
	}()
	return out
}
