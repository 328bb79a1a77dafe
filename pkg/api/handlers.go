package api

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/adfharrison1/go-docstore/pkg/domain"
)

// maxBatchSize bounds the number of documents accepted by one insert request
const maxBatchSize = 1000

// Handler provides HTTP handlers for the database API
type Handler struct {
	store domain.DatabaseEngine
}

// NewHandler creates a new API handler over the given engine
func NewHandler(store domain.DatabaseEngine) *Handler {
	return &Handler{store: store}
}

// writeJSON encodes v as the response body with the given status code
func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("ERROR: Encoding response failed: %v", err)
	}
}

// writeStoreError logs err and writes it with the status StatusForError picks
func writeStoreError(w http.ResponseWriter, op, collName string, err error) {
	status := StatusForError(err)
	if status >= http.StatusInternalServerError {
		log.Printf("ERROR: %s failed for collection '%s': %v", op, collName, err)
	} else {
		log.Printf("WARN: %s rejected for collection '%s': %v", op, collName, err)
	}
	WriteJSONError(w, status, err.Error())
}

// decodeBody decodes the JSON request body into v. An empty body is an
// error unless optional is set, in which case v is left untouched.
func decodeBody(r *http.Request, v interface{}, optional bool) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) && optional {
		return nil
	}
	return err
}

// filterFromQuery builds an equality filter from URL query parameters,
// skipping the reserved ones. Numeric values are matched as numbers.
func filterFromQuery(r *http.Request, reserved ...string) domain.Document {
	skip := make(map[string]bool, len(reserved))
	for _, key := range reserved {
		skip[key] = true
	}

	filter := domain.Document{}
	for key, values := range r.URL.Query() {
		if skip[key] || len(values) == 0 {
			continue
		}
		value := values[0] // Take first value if multiple provided
		if num, err := strconv.ParseFloat(value, 64); err == nil {
			filter[key] = num
		} else {
			filter[key] = value
		}
	}
	return filter
}

// findOptionsFromQuery reads skip, limit and sort from the URL query
func findOptionsFromQuery(r *http.Request) (*domain.FindOptions, error) {
	params := r.URL.Query()
	opts := &domain.FindOptions{}

	if v := params.Get("skip"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, errors.New("skip must be an integer")
		}
		opts.Skip = n
	}
	if v := params.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, errors.New("limit must be an integer")
		}
		opts.Limit = n
	}
	if v := params.Get("sort"); v != "" {
		fields, err := domain.ParseSort(v)
		if err != nil {
			return nil, err
		}
		opts.Sort = fields
	}
	return opts, nil
}
