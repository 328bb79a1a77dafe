package api

import (
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/adfharrison1/go-docstore/pkg/domain"
)

// CreateIndexRequest is the body of POST /collections/{coll}/indexes
type CreateIndexRequest struct {
	Fields []string `json:"fields"`
	Name   string   `json:"name,omitempty"`
	Unique bool     `json:"unique,omitempty"`
	Sparse bool     `json:"sparse,omitempty"`
}

// HandleCreateIndex creates a (possibly compound) index on a collection
func (h *Handler) HandleCreateIndex(w http.ResponseWriter, r *http.Request) {
	collName := mux.Vars(r)["coll"]

	log.Printf("INFO: handleCreateIndex called for collection '%s'", collName)

	var req CreateIndexRequest
	if err := decodeBody(r, &req, false); err != nil {
		log.Printf("ERROR: Decoding body failed: %v", err)
		WriteJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if len(req.Fields) == 0 {
		WriteJSONError(w, http.StatusBadRequest, "at least one field is required")
		return
	}

	// Prevent creating index on _id (documents are already keyed by it)
	if len(req.Fields) == 1 && req.Fields[0] == domain.FieldID {
		WriteJSONError(w, http.StatusBadRequest, "cannot create index on _id field (automatically indexed)")
		return
	}

	name, err := h.store.CreateIndex(collName, req.Fields, domain.IndexOptions{
		Name:   req.Name,
		Unique: req.Unique,
		Sparse: req.Sparse,
	})
	if err != nil {
		writeStoreError(w, "Create index", collName, err)
		return
	}

	log.Printf("INFO: Created index '%s' on collection '%s'", name, collName)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"success":    true,
		"message":    "Index created successfully",
		"collection": collName,
		"name":       name,
		"fields":     req.Fields,
	})
}

// HandleDropIndex removes a named index from a collection
func (h *Handler) HandleDropIndex(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	collName := vars["coll"]
	name := vars["name"]

	if err := h.store.DropIndex(collName, name); err != nil {
		writeStoreError(w, "Drop index", collName, err)
		return
	}

	log.Printf("INFO: Dropped index '%s' from collection '%s'", name, collName)
	w.WriteHeader(http.StatusNoContent)
}
