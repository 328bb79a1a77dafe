package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/adfharrison1/go-docstore/pkg/domain"
)

// InsertManyResponse represents the response for array inserts
type InsertManyResponse struct {
	Success       bool              `json:"success"`
	InsertedCount int               `json:"inserted_count"`
	Collection    string            `json:"collection"`
	Documents     []domain.Document `json:"documents"`
}

// HandleInsert handles POST requests inserting one document (JSON object)
// or many (JSON array). Stored documents, with their _id and timestamps,
// are returned.
func (h *Handler) HandleInsert(w http.ResponseWriter, r *http.Request) {
	collName := mux.Vars(r)["coll"]

	log.Printf("INFO: handleInsert called for collection '%s'", collName)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Printf("ERROR: Reading body failed: %v", err)
		WriteJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	body = bytes.TrimSpace(body)

	if len(body) > 0 && body[0] == '[' {
		h.insertMany(w, collName, body)
		return
	}

	var doc domain.Document
	if err := json.Unmarshal(body, &doc); err != nil || doc == nil {
		log.Printf("ERROR: Decoding body failed: %v", err)
		WriteJSONError(w, http.StatusBadRequest, "Request body must be a JSON object or array")
		return
	}

	stored, err := h.store.Insert(collName, doc)
	if err != nil {
		writeStoreError(w, "Insert", collName, err)
		return
	}

	log.Printf("INFO: Insert successful for collection '%s'", collName)
	writeJSON(w, http.StatusCreated, stored)
}

func (h *Handler) insertMany(w http.ResponseWriter, collName string, body []byte) {
	var docs []domain.Document
	if err := json.Unmarshal(body, &docs); err != nil {
		log.Printf("ERROR: Decoding body failed: %v", err)
		WriteJSONError(w, http.StatusBadRequest, "Request body must be an array of JSON objects")
		return
	}

	if len(docs) == 0 {
		WriteJSONError(w, http.StatusBadRequest, "No documents provided")
		return
	}
	if len(docs) > maxBatchSize {
		log.Printf("ERROR: Too many documents for insert: %d", len(docs))
		WriteJSONError(w, http.StatusBadRequest, fmt.Sprintf("Maximum %d documents allowed per request", maxBatchSize))
		return
	}

	stored, err := h.store.InsertMany(collName, docs)
	if err != nil {
		// documents before the failing one stay inserted
		writeStoreError(w, "Insert", collName, fmt.Errorf("inserted %d of %d: %w", len(stored), len(docs), err))
		return
	}

	log.Printf("INFO: Insert successful for collection '%s', inserted %d documents", collName, len(stored))
	writeJSON(w, http.StatusCreated, InsertManyResponse{
		Success:       true,
		InsertedCount: len(stored),
		Collection:    collName,
		Documents:     stored,
	})
}
