package api

import (
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/adfharrison1/go-docstore/pkg/domain"
)

// AggregateRequest is the body of POST /collections/{coll}/aggregate
type AggregateRequest struct {
	Pipeline []domain.Document `json:"pipeline"`
}

// HandleAggregate handles POST requests running an aggregation pipeline
func (h *Handler) HandleAggregate(w http.ResponseWriter, r *http.Request) {
	collName := mux.Vars(r)["coll"]

	log.Printf("INFO: handleAggregate called for collection '%s'", collName)

	var req AggregateRequest
	if err := decodeBody(r, &req, false); err != nil {
		log.Printf("ERROR: Decoding body failed: %v", err)
		WriteJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	results, err := h.store.Aggregate(collName, req.Pipeline)
	if err != nil {
		writeStoreError(w, "Aggregate", collName, err)
		return
	}

	log.Printf("INFO: Aggregation over collection '%s' produced %d documents", collName, len(results))
	writeJSON(w, http.StatusOK, results)
}
