package api

import (
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/adfharrison1/go-docstore/pkg/domain"
)

// FindRequest is the body of POST /collections/{coll}/find
type FindRequest struct {
	Query domain.Document    `json:"query"`
	Sort  []domain.SortField `json:"sort,omitempty"`
	Skip  int                `json:"skip,omitempty"`
	Limit int                `json:"limit,omitempty"`
}

// QueryRequest carries a bare query (count, delete)
type QueryRequest struct {
	Query domain.Document `json:"query"`
}

// CountResponse represents the response of a count
type CountResponse struct {
	Collection string `json:"collection"`
	Count      int    `json:"count"`
}

// HandleFind handles POST requests running a full query with sort and pagination
func (h *Handler) HandleFind(w http.ResponseWriter, r *http.Request) {
	collName := mux.Vars(r)["coll"]

	log.Printf("INFO: handleFind called for collection '%s'", collName)

	var req FindRequest
	if err := decodeBody(r, &req, true); err != nil {
		log.Printf("ERROR: Decoding body failed: %v", err)
		WriteJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	docs, err := h.store.Find(collName, req.Query, &domain.FindOptions{
		Sort:  req.Sort,
		Skip:  req.Skip,
		Limit: req.Limit,
	})
	if err != nil {
		writeStoreError(w, "Find", collName, err)
		return
	}

	log.Printf("INFO: Found %d documents in collection '%s'", len(docs), collName)
	writeJSON(w, http.StatusOK, docs)
}

// HandleCount handles POST requests counting the documents matching a query
func (h *Handler) HandleCount(w http.ResponseWriter, r *http.Request) {
	collName := mux.Vars(r)["coll"]

	var req QueryRequest
	if err := decodeBody(r, &req, true); err != nil {
		log.Printf("ERROR: Decoding body failed: %v", err)
		WriteJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	n, err := h.store.Count(collName, req.Query)
	if err != nil {
		writeStoreError(w, "Count", collName, err)
		return
	}
	writeJSON(w, http.StatusOK, CountResponse{Collection: collName, Count: n})
}
