package api

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/adfharrison1/go-docstore/pkg/domain"
)

// HandleGetById handles GET requests to retrieve a specific document by ID
func (h *Handler) HandleGetById(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	collName := vars["coll"]
	docId := vars["id"]

	log.Printf("INFO: handleGetById called for collection '%s', document '%s'", collName, docId)

	docs, err := h.store.Find(collName, domain.Document{domain.FieldID: docId}, &domain.FindOptions{Limit: 1})
	if err != nil {
		writeStoreError(w, "Get", collName, err)
		return
	}
	if len(docs) == 0 {
		log.Printf("WARN: Document '%s' not found in collection '%s'", docId, collName)
		WriteJSONError(w, http.StatusNotFound, fmt.Sprintf("document %s not found", docId))
		return
	}

	writeJSON(w, http.StatusOK, docs[0])
}
