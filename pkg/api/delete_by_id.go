package api

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/adfharrison1/go-docstore/pkg/domain"
)

// HandleDeleteById handles DELETE requests to remove a specific document by ID
func (h *Handler) HandleDeleteById(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	collName := vars["coll"]
	docId := vars["id"]

	log.Printf("INFO: handleDeleteById called for collection '%s', document '%s'", collName, docId)

	result, err := h.store.Delete(collName, domain.Document{domain.FieldID: docId})
	if err != nil {
		writeStoreError(w, "Delete", collName, err)
		return
	}
	if result.DeletedCount == 0 {
		WriteJSONError(w, http.StatusNotFound, fmt.Sprintf("document %s not found", docId))
		return
	}

	log.Printf("INFO: Deleted document '%s' from collection '%s'", docId, collName)
	w.WriteHeader(http.StatusNoContent)
}
