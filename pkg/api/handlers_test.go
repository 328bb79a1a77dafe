package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adfharrison1/go-docstore/pkg/domain"
	"github.com/adfharrison1/go-docstore/pkg/storage"
)

// newTestAPI wires the handlers over a connected engine rooted in a temp dir
func newTestAPI(t *testing.T, options ...storage.StorageOption) (*mux.Router, *storage.StorageEngine) {
	t.Helper()
	engine := storage.NewStorageEngine(append([]storage.StorageOption{storage.WithDataDir(t.TempDir())}, options...)...)
	require.NoError(t, engine.Connect())
	t.Cleanup(func() { engine.Disconnect() })

	router := mux.NewRouter()
	NewHandler(engine).RegisterRoutes(router)
	return router, engine
}

func seedUsers(t *testing.T, engine *storage.StorageEngine) {
	t.Helper()
	_, err := engine.InsertMany("users", []domain.Document{
		{"_id": "1", "name": "Alice", "age": 30, "city": "Oslo"},
		{"_id": "2", "name": "Bob", "age": 25, "city": "Bergen"},
		{"_id": "3", "name": "Carol", "age": 35, "city": "Oslo"},
	})
	require.NoError(t, err)
}

func do(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeDocs(t *testing.T, w *httptest.ResponseRecorder) []domain.Document {
	t.Helper()
	var docs []domain.Document
	require.NoError(t, json.NewDecoder(w.Body).Decode(&docs))
	return docs
}

func names(docs []domain.Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i], _ = d["name"].(string)
	}
	return out
}

func TestHandler_HandleInsert(t *testing.T) {
	tests := []struct {
		name           string
		collection     string
		body           string
		expectedStatus int
		expectedCount  int
	}{
		{"valid document", "users", `{"name": "Alice", "age": 30}`, http.StatusCreated, 1},
		{"document with existing ID", "users", `{"_id": "123", "name": "Bob"}`, http.StatusCreated, 1},
		{"array of documents", "users", `[{"name": "A"}, {"name": "B"}]`, http.StatusCreated, 2},
		{"empty array", "users", `[]`, http.StatusBadRequest, 0},
		{"invalid JSON", "users", `{"name": `, http.StatusBadRequest, 0},
		{"scalar body", "users", `42`, http.StatusBadRequest, 0},
		{"null body", "users", `null`, http.StatusBadRequest, 0},
		{"non-string _id", "users", `{"_id": 5}`, http.StatusBadRequest, 0},
		{"invalid collection name", ".hidden", `{"a": 1}`, http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, engine := newTestAPI(t)

			w := do(router, "POST", "/collections/"+tt.collection+"/documents", tt.body)
			assert.Equal(t, tt.expectedStatus, w.Code)

			if tt.expectedCount > 0 {
				count, err := engine.Count(tt.collection, nil)
				require.NoError(t, err)
				assert.Equal(t, tt.expectedCount, count)
			}
		})
	}
}

func TestHandler_HandleInsert_ReturnsStoredDocument(t *testing.T) {
	router, _ := newTestAPI(t)

	w := do(router, "POST", "/collections/users/documents", `{"name": "Alice"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var doc domain.Document
	require.NoError(t, json.NewDecoder(w.Body).Decode(&doc))
	assert.NotEmpty(t, doc.ID())
	assert.Equal(t, "Alice", doc["name"])
	assert.NotEmpty(t, doc[domain.FieldCreatedAt])
	assert.Equal(t, doc[domain.FieldCreatedAt], doc[domain.FieldUpdatedAt])

	w = do(router, "POST", "/collections/users/documents", fmt.Sprintf(`{"_id": %q}`, doc.ID()))
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestHandler_HandleInsert_ArrayStopsAtFirstFailure(t *testing.T) {
	router, engine := newTestAPI(t)

	w := do(router, "POST", "/collections/users/documents", `[{"_id": "a"}, {"_id": "b"}, {"_id": "a"}, {"_id": "c"}]`)
	assert.Equal(t, http.StatusConflict, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Contains(t, resp.Message, "inserted 2 of 4")

	count, err := engine.Count("users", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestHandler_HandleFindAll(t *testing.T) {
	router, engine := newTestAPI(t)
	seedUsers(t, engine)

	tests := []struct {
		name           string
		query          string
		expectedStatus int
		expectedNames  []string
	}{
		{"no filter", "", http.StatusOK, []string{"Alice", "Bob", "Carol"}},
		{"string filter", "?city=Oslo", http.StatusOK, []string{"Alice", "Carol"}},
		{"numeric filter", "?age=25", http.StatusOK, []string{"Bob"}},
		{"combined filter", "?city=Oslo&age=35", http.StatusOK, []string{"Carol"}},
		{"no match", "?city=Paris", http.StatusOK, []string{}},
		{"sort and limit", "?sort=age:desc&limit=2", http.StatusOK, []string{"Carol", "Alice"}},
		{"skip with default ascending sort", "?sort=name&skip=1", http.StatusOK, []string{"Bob", "Carol"}},
		{"filter with pagination", "?city=Oslo&sort=age:desc&skip=1", http.StatusOK, []string{"Alice"}},
		{"unknown collection is empty", "", http.StatusOK, nil},
		{"bad limit", "?limit=ten", http.StatusBadRequest, nil},
		{"negative limit", "?limit=-1", http.StatusBadRequest, nil},
		{"bad sort path", "?sort=a..b", http.StatusBadRequest, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			coll := "users"
			if tt.expectedNames == nil && tt.expectedStatus == http.StatusOK {
				coll = "empty"
			}
			w := do(router, "GET", "/collections/"+coll+"/documents"+tt.query, "")
			require.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedStatus != http.StatusOK {
				return
			}
			docs := decodeDocs(t, w)
			if tt.expectedNames == nil {
				assert.Empty(t, docs)
				return
			}
			assert.Equal(t, tt.expectedNames, names(docs))
		})
	}
}

func TestHandler_HandleFind(t *testing.T) {
	router, engine := newTestAPI(t)
	seedUsers(t, engine)

	tests := []struct {
		name           string
		body           string
		expectedStatus int
		expectedNames  []string
	}{
		{"empty body matches all", "", http.StatusOK, []string{"Alice", "Bob", "Carol"}},
		{"operators", `{"query": {"age": {"$gte": 30}}}`, http.StatusOK, []string{"Alice", "Carol"}},
		{"logical", `{"query": {"$or": [{"city": "Bergen"}, {"name": {"$regex": "^c", "$options": "i"}}]}}`, http.StatusOK, []string{"Bob", "Carol"}},
		{"sort list", `{"sort": [{"field": "city", "direction": "asc"}, {"field": "age", "direction": -1}]}`, http.StatusOK, []string{"Bob", "Carol", "Alice"}},
		{"skip and limit", `{"sort": [{"field": "age", "direction": 1}], "skip": 1, "limit": 1}`, http.StatusOK, []string{"Alice"}},
		{"unknown operator", `{"query": {"age": {"$near": 1}}}`, http.StatusBadRequest, nil},
		{"bad regex", `{"query": {"name": {"$regex": "("}}}`, http.StatusBadRequest, nil},
		{"malformed body", `{"query": [}`, http.StatusBadRequest, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(router, "POST", "/collections/users/find", tt.body)
			require.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedStatus == http.StatusOK {
				assert.Equal(t, tt.expectedNames, names(decodeDocs(t, w)))
			}
		})
	}
}

func TestHandler_HandleCount(t *testing.T) {
	router, engine := newTestAPI(t)
	seedUsers(t, engine)

	w := do(router, "POST", "/collections/users/count", `{"query": {"city": "Oslo"}}`)
	require.Equal(t, http.StatusOK, w.Code)
	var resp CountResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, CountResponse{Collection: "users", Count: 2}, resp)

	w = do(router, "POST", "/collections/users/count", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, 3, resp.Count)
}

func TestHandler_HandleUpdate(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		expectedStatus int
		expected       domain.UpdateResult
	}{
		{
			name:           "update many",
			body:           `{"query": {"city": "Oslo"}, "update": {"$inc": {"age": 1}, "$set": {"country": "NO"}}}`,
			expectedStatus: http.StatusOK,
			expected:       domain.UpdateResult{MatchedCount: 2, ModifiedCount: 2},
		},
		{
			name:           "no match",
			body:           `{"query": {"city": "Paris"}, "update": {"$set": {"x": 1}}}`,
			expectedStatus: http.StatusOK,
			expected:       domain.UpdateResult{},
		},
		{
			name:           "upsert",
			body:           `{"query": {"name": "Jane"}, "update": {"$set": {"age": 30}}, "upsert": true}`,
			expectedStatus: http.StatusOK,
			expected:       domain.UpdateResult{UpsertedCount: 1},
		},
		{"empty update", `{"query": {}, "update": {}}`, http.StatusBadRequest, domain.UpdateResult{}},
		{"unknown operator", `{"query": {}, "update": {"$rename": {"a": "b"}}}`, http.StatusBadRequest, domain.UpdateResult{}},
		{"missing body", ``, http.StatusBadRequest, domain.UpdateResult{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, engine := newTestAPI(t)
			seedUsers(t, engine)

			w := do(router, "PATCH", "/collections/users/documents", tt.body)
			require.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedStatus != http.StatusOK {
				return
			}

			var result domain.UpdateResult
			require.NoError(t, json.NewDecoder(w.Body).Decode(&result))
			if tt.expected.UpsertedCount > 0 {
				assert.Equal(t, 0, result.MatchedCount)
				assert.Equal(t, 1, result.ModifiedCount)
				assert.NotEmpty(t, result.UpsertedID)
				jane, err := engine.FindOne("users", domain.Document{"_id": result.UpsertedID})
				require.NoError(t, err)
				assert.Equal(t, "Jane", jane["name"])
				assert.Equal(t, float64(30), jane["age"])
				return
			}
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestHandler_HandleUpdate_UniqueViolation(t *testing.T) {
	router, engine := newTestAPI(t)
	seedUsers(t, engine)
	_, err := engine.CreateIndex("users", []string{"name"}, domain.IndexOptions{Unique: true})
	require.NoError(t, err)

	w := do(router, "PATCH", "/collections/users/documents", `{"query": {"_id": "2"}, "update": {"$set": {"name": "Alice"}}}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	bob, err := engine.FindOne("users", domain.Document{"_id": "2"})
	require.NoError(t, err)
	assert.Equal(t, "Bob", bob["name"])
}

func TestHandler_ById(t *testing.T) {
	router, engine := newTestAPI(t)
	seedUsers(t, engine)

	w := do(router, "GET", "/collections/users/documents/2", "")
	require.Equal(t, http.StatusOK, w.Code)
	var doc domain.Document
	require.NoError(t, json.NewDecoder(w.Body).Decode(&doc))
	assert.Equal(t, "Bob", doc["name"])

	assert.Equal(t, http.StatusNotFound, do(router, "GET", "/collections/users/documents/99", "").Code)

	w = do(router, "PATCH", "/collections/users/documents/2", `{"$set": {"city": "Oslo"}, "$push": {"tags": "new"}}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.NewDecoder(w.Body).Decode(&doc))
	assert.Equal(t, "Oslo", doc["city"])
	assert.Equal(t, []interface{}{"new"}, doc["tags"])
	assert.Equal(t, "2", doc.ID())

	assert.Equal(t, http.StatusNotFound, do(router, "PATCH", "/collections/users/documents/99", `{"$set": {"a": 1}}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(router, "PATCH", "/collections/users/documents/2", `{}`).Code)

	assert.Equal(t, http.StatusNoContent, do(router, "DELETE", "/collections/users/documents/2", "").Code)
	assert.Equal(t, http.StatusNotFound, do(router, "DELETE", "/collections/users/documents/2", "").Code)

	count, err := engine.Count("users", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestHandler_HandleDelete(t *testing.T) {
	router, engine := newTestAPI(t)
	seedUsers(t, engine)

	assert.Equal(t, http.StatusBadRequest, do(router, "DELETE", "/collections/users/documents", `{}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(router, "DELETE", "/collections/users/documents", ``).Code)

	w := do(router, "DELETE", "/collections/users/documents", `{"query": {"age": {"$gt": 28}}}`)
	require.Equal(t, http.StatusOK, w.Code)
	var result domain.DeleteResult
	require.NoError(t, json.NewDecoder(w.Body).Decode(&result))
	assert.Equal(t, 2, result.DeletedCount)

	w = do(router, "DELETE", "/collections/users/documents", `{"query": {}}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.NewDecoder(w.Body).Decode(&result))
	assert.Equal(t, 1, result.DeletedCount)
}

func TestHandler_HandleAggregate(t *testing.T) {
	router, engine := newTestAPI(t)
	seedUsers(t, engine)

	body := `{"pipeline": [
		{"$match": {"age": {"$gte": 25}}},
		{"$group": {"_id": "city", "avgAge": {"$avg": "age"}, "n": {"$sum": 1}}},
		{"$sort": {"_id": 1}}
	]}`
	w := do(router, "POST", "/collections/users/aggregate", body)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []domain.Document{
		{"_id": "Bergen", "avgAge": float64(25), "n": float64(1)},
		{"_id": "Oslo", "avgAge": float64(32.5), "n": float64(2)},
	}, decodeDocs(t, w))

	assert.Equal(t, http.StatusBadRequest, do(router, "POST", "/collections/users/aggregate", `{"pipeline": [{"$unwind": "x"}]}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(router, "POST", "/collections/users/aggregate", `{"pipeline": [{"$limit": -2}]}`).Code)
}

func TestHandler_Indexes(t *testing.T) {
	router, _ := newTestAPI(t)

	tests := []struct {
		name           string
		method         string
		path           string
		body           string
		expectedStatus int
	}{
		{"create", "POST", "/collections/users/indexes", `{"fields": ["email"], "unique": true}`, http.StatusCreated},
		{"create compound", "POST", "/collections/users/indexes", `{"fields": ["city", "age"], "name": "by_city_age"}`, http.StatusCreated},
		{"duplicate name", "POST", "/collections/users/indexes", `{"fields": ["email"]}`, http.StatusConflict},
		{"no fields", "POST", "/collections/users/indexes", `{"fields": []}`, http.StatusBadRequest},
		{"on _id", "POST", "/collections/users/indexes", `{"fields": ["_id"]}`, http.StatusBadRequest},
		{"bad path", "POST", "/collections/users/indexes", `{"fields": ["a..b"]}`, http.StatusBadRequest},
		{"drop", "DELETE", "/collections/users/indexes/email", "", http.StatusNoContent},
		{"drop unknown", "DELETE", "/collections/users/indexes/email", "", http.StatusNotFound},
	}

	// steps share one store and run in order
	for _, tt := range tests {
		w := do(router, tt.method, tt.path, tt.body)
		assert.Equal(t, tt.expectedStatus, w.Code, tt.name)
	}

	w := do(router, "GET", "/collections/users/indexes", "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Indexes    []domain.IndexInfo `json:"indexes"`
		IndexCount int                `json:"index_count"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, 1, resp.IndexCount)
	assert.Equal(t, []domain.IndexInfo{{
		Name:    "by_city_age",
		Fields:  []string{"city", "age"},
		Options: domain.IndexOptions{Name: "by_city_age"},
	}}, resp.Indexes)
}

func TestHandler_Collections(t *testing.T) {
	router, engine := newTestAPI(t)
	seedUsers(t, engine)

	assert.Equal(t, http.StatusCreated, do(router, "POST", "/collections/orders", "").Code)
	assert.Equal(t, http.StatusCreated, do(router, "POST", "/collections/orders", "").Code, "creating twice is a no-op")

	w := do(router, "GET", "/collections", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list CollectionsResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&list))
	assert.Equal(t, []string{"orders", "users"}, list.Collections)

	assert.Equal(t, http.StatusNoContent, do(router, "DELETE", "/collections/users", "").Code)

	w = do(router, "GET", "/collections", "")
	require.NoError(t, json.NewDecoder(w.Body).Decode(&list))
	assert.Equal(t, []string{"orders"}, list.Collections)
}

func TestHandler_HandleStream(t *testing.T) {
	router, engine := newTestAPI(t)
	seedUsers(t, engine)

	w := do(router, "GET", "/collections/users/stream?city=Oslo&sort=age:desc", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, []string{"Carol", "Alice"}, names(decodeDocs(t, w)))

	w = do(router, "GET", "/collections/empty/stream", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decodeDocs(t, w))

	assert.Equal(t, http.StatusBadRequest, do(router, "GET", "/collections/users/stream?skip=-1", "").Code)
}

func TestHandler_HandleHealth(t *testing.T) {
	router, engine := newTestAPI(t)
	seedUsers(t, engine)

	w := do(router, "GET", "/health", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp HealthResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, true, resp.Stats["connected"])
	assert.Equal(t, float64(3), resp.Stats["documents"])
	assert.Equal(t, "json", resp.Stats["format"])
}

func TestStatusForError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&domain.DuplicateKeyError{ID: "1"}, http.StatusConflict},
		{fmt.Errorf("create: %w", domain.ErrIndexExists), http.StatusConflict},
		{domain.ErrInvalidQuery, http.StatusBadRequest},
		{domain.ErrInvalidUpdate, http.StatusBadRequest},
		{domain.ErrInvalidPath, http.StatusBadRequest},
		{domain.ErrInvalidPipeline, http.StatusBadRequest},
		{domain.ErrInvalidName, http.StatusBadRequest},
		{domain.ErrInvalidDocument, http.StatusBadRequest},
		{domain.ErrNotFound, http.StatusNotFound},
		{&domain.IOError{Op: "save", Path: "x", Err: errors.New("disk full")}, http.StatusInternalServerError},
		{domain.ErrNotConnected, http.StatusInternalServerError},
		{errors.New("anything else"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, StatusForError(tt.err))
		})
	}
}
