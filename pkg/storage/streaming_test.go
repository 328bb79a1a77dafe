package storage

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adfharrison1/go-docstore/pkg/domain"
)

func collect(ch <-chan domain.Document) []domain.Document {
	docs := make([]domain.Document, 0)
	for doc := range ch {
		docs = append(docs, doc)
	}
	return docs
}

func TestStorageEngine_FindStream_Basic(t *testing.T) {
	engine := newTestEngine(t)

	docs := []domain.Document{
		{"name": "Alice", "age": 30, "city": "New York"},
		{"name": "Bob", "age": 25, "city": "San Francisco"},
		{"name": "Charlie", "age": 35, "city": "Chicago"},
	}
	_, err := engine.InsertMany("users", docs)
	require.NoError(t, err)

	docChan, err := engine.FindStream("users", nil, nil)
	require.NoError(t, err)

	received := collect(docChan)
	require.Len(t, received, 3)
	for i, doc := range received {
		assert.Equal(t, docs[i]["name"], doc["name"], "stream keeps insertion order")
	}
}

func TestStorageEngine_FindStream_FilterSortAndPaginate(t *testing.T) {
	engine := newTestEngine(t)

	for i := 0; i < 250; i++ {
		_, err := engine.Insert("items", domain.Document{"n": i, "even": i%2 == 0})
		require.NoError(t, err)
	}

	docChan, err := engine.FindStream("items",
		domain.Document{"even": true},
		&domain.FindOptions{Sort: []domain.SortField{domain.Desc("n")}, Skip: 1, Limit: 3})
	require.NoError(t, err)

	received := collect(docChan)
	require.Len(t, received, 3)
	assert.Equal(t, float64(246), received[0]["n"])
	assert.Equal(t, float64(244), received[1]["n"])
	assert.Equal(t, float64(242), received[2]["n"])
}

func TestStorageEngine_FindStream_EmptyCollection(t *testing.T) {
	engine := newTestEngine(t)
	require.NoError(t, engine.CreateCollection("empty"))

	docChan, err := engine.FindStream("empty", nil, nil)
	require.NoError(t, err)
	assert.Empty(t, collect(docChan))
}

func TestStorageEngine_FindStream_Errors(t *testing.T) {
	engine := newTestEngine(t)

	_, err := engine.FindStream("users", domain.Document{"$where": "1"}, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidQuery)

	_, err = engine.FindStream("a/b", nil, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidName)
}

func TestStorageEngine_FindStream_IsASnapshot(t *testing.T) {
	engine := newTestEngine(t)

	for i := 0; i < 10; i++ {
		_, err := engine.Insert("users", domain.Document{"_id": fmt.Sprintf("u%d", i)})
		require.NoError(t, err)
	}

	docChan, err := engine.FindStream("users", nil, nil)
	require.NoError(t, err)

	// mutations after the call do not change what is streamed
	_, err = engine.Delete("users", nil)
	require.NoError(t, err)
	assert.Len(t, collect(docChan), 10)
}
