package api

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/mux"
)

// HandleStream handles GET requests streaming matching documents as a
// chunked JSON array. It accepts the same parameters as HandleFindAll.
func (h *Handler) HandleStream(w http.ResponseWriter, r *http.Request) {
	collName := mux.Vars(r)["coll"]

	log.Printf("INFO: handleStream called for collection '%s'", collName)

	opts, err := findOptionsFromQuery(r)
	if err != nil {
		WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	filter := filterFromQuery(r, "skip", "limit", "sort")

	docChan, err := h.store.FindStream(collName, filter, opts)
	if err != nil {
		writeStoreError(w, "Stream", collName, err)
		return
	}

	// Set headers for streaming
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Transfer-Encoding", "chunked")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, _ := w.(http.Flusher)

	// Start JSON array
	w.Write([]byte("[\n"))

	first := true
	docCount := 0

	// Stream documents one by one
	for doc := range docChan {
		docJSON, err := json.Marshal(doc)
		if err != nil {
			log.Printf("ERROR: Failed to marshal document: %v", err)
			continue // Skip this document and continue streaming
		}

		if !first {
			w.Write([]byte(",\n"))
		}
		first = false

		if _, err := w.Write(docJSON); err != nil {
			log.Printf("ERROR: Failed to write to response: %v", err)
			// drain so the producer goroutine can exit
			for range docChan {
			}
			return
		}

		if flusher != nil {
			flusher.Flush()
		}
		docCount++
	}

	// End JSON array
	w.Write([]byte("\n]"))

	log.Printf("INFO: Streamed %d documents from collection '%s'", docCount, collName)
}
