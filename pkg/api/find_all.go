package api

import (
	"log"
	"net/http"

	"github.com/gorilla/mux"
)

// HandleFindAll handles GET requests to find documents. Query parameters
// other than skip, limit and sort become an equality filter; sort takes
// the form "name:asc,age:desc".
func (h *Handler) HandleFindAll(w http.ResponseWriter, r *http.Request) {
	collName := mux.Vars(r)["coll"]

	log.Printf("INFO: handleFindAll called for collection '%s'", collName)

	opts, err := findOptionsFromQuery(r)
	if err != nil {
		WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	filter := filterFromQuery(r, "skip", "limit", "sort")

	docs, err := h.store.Find(collName, filter, opts)
	if err != nil {
		writeStoreError(w, "Find", collName, err)
		return
	}

	if len(filter) == 0 {
		log.Printf("INFO: Found %d documents in collection '%s' (no filter)", len(docs), collName)
	} else {
		log.Printf("INFO: Found %d documents in collection '%s' with filter %v", len(docs), collName, filter)
	}
	writeJSON(w, http.StatusOK, docs)
}
