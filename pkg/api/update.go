package api

import (
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/adfharrison1/go-docstore/pkg/domain"
)

// UpdateRequest is the body of PATCH /collections/{coll}/documents
type UpdateRequest struct {
	Query  domain.Document `json:"query"`
	Update domain.Document `json:"update"`
	Upsert bool            `json:"upsert,omitempty"`
}

// HandleUpdate handles PATCH requests applying an update to every matching document
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	collName := mux.Vars(r)["coll"]

	log.Printf("INFO: handleUpdate called for collection '%s'", collName)

	var req UpdateRequest
	if err := decodeBody(r, &req, false); err != nil {
		log.Printf("ERROR: Decoding body failed: %v", err)
		WriteJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.store.Update(collName, req.Query, req.Update, &domain.UpdateOptions{Upsert: req.Upsert})
	if err != nil {
		writeStoreError(w, "Update", collName, err)
		return
	}

	log.Printf("INFO: Update completed for collection '%s', matched %d, modified %d, upserted %d",
		collName, result.MatchedCount, result.ModifiedCount, result.UpsertedCount)
	writeJSON(w, http.StatusOK, result)
}

// HandleDelete handles DELETE requests removing every matching document.
// The query is required; {"query": {}} deletes the whole collection.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	collName := mux.Vars(r)["coll"]

	log.Printf("INFO: handleDelete called for collection '%s'", collName)

	var req QueryRequest
	if err := decodeBody(r, &req, false); err != nil {
		log.Printf("ERROR: Decoding body failed: %v", err)
		WriteJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Query == nil {
		WriteJSONError(w, http.StatusBadRequest, "query is required (use {} to match every document)")
		return
	}

	result, err := h.store.Delete(collName, req.Query)
	if err != nil {
		writeStoreError(w, "Delete", collName, err)
		return
	}

	log.Printf("INFO: Deleted %d documents from collection '%s'", result.DeletedCount, collName)
	writeJSON(w, http.StatusOK, result)
}
