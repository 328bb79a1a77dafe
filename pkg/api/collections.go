package api

import (
	"log"
	"net/http"

	"github.com/gorilla/mux"
)

// CollectionsResponse lists collection names
type CollectionsResponse struct {
	Collections []string `json:"collections"`
}

// HandleListCollections handles GET requests listing every collection
func (h *Handler) HandleListCollections(w http.ResponseWriter, r *http.Request) {
	names, err := h.store.ListCollections()
	if err != nil {
		writeStoreError(w, "List collections", "*", err)
		return
	}
	writeJSON(w, http.StatusOK, CollectionsResponse{Collections: names})
}

// HandleCreateCollection handles POST requests creating an empty collection.
// Creating an existing collection succeeds.
func (h *Handler) HandleCreateCollection(w http.ResponseWriter, r *http.Request) {
	collName := mux.Vars(r)["coll"]

	if err := h.store.CreateCollection(collName); err != nil {
		writeStoreError(w, "Create collection", collName, err)
		return
	}

	log.Printf("INFO: Created collection '%s'", collName)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"success":    true,
		"collection": collName,
	})
}

// HandleDropCollection handles DELETE requests removing a collection, its
// snapshot and its indexes
func (h *Handler) HandleDropCollection(w http.ResponseWriter, r *http.Request) {
	collName := mux.Vars(r)["coll"]

	if err := h.store.DropCollection(collName); err != nil {
		writeStoreError(w, "Drop collection", collName, err)
		return
	}

	log.Printf("INFO: Dropped collection '%s'", collName)
	w.WriteHeader(http.StatusNoContent)
}
