package api

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/adfharrison1/go-docstore/pkg/domain"
)

// HandleUpdateById handles PATCH requests applying an update spec (the
// request body) to one document, and returns the updated document
func (h *Handler) HandleUpdateById(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	collName := vars["coll"]
	docId := vars["id"]

	log.Printf("INFO: handleUpdateById called for collection '%s', document '%s'", collName, docId)

	var update domain.Document
	if err := decodeBody(r, &update, false); err != nil {
		log.Printf("ERROR: Decoding body failed: %v", err)
		WriteJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	byID := domain.Document{domain.FieldID: docId}
	result, err := h.store.Update(collName, byID, update, nil)
	if err != nil {
		writeStoreError(w, "Update", collName, err)
		return
	}
	if result.MatchedCount == 0 {
		WriteJSONError(w, http.StatusNotFound, fmt.Sprintf("document %s not found", docId))
		return
	}

	docs, err := h.store.Find(collName, byID, nil)
	if err != nil {
		writeStoreError(w, "Update", collName, err)
		return
	}
	if len(docs) == 0 {
		// deleted concurrently
		WriteJSONError(w, http.StatusNotFound, fmt.Sprintf("document %s not found", docId))
		return
	}

	log.Printf("INFO: Updated document '%s' in collection '%s'", docId, collName)
	writeJSON(w, http.StatusOK, docs[0])
}
