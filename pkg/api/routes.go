package api

import (
	"github.com/gorilla/mux"
)

// RegisterRoutes registers all API routes with the given router
func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/health", h.HandleHealth).Methods("GET")
	router.HandleFunc("/events", h.HandleEvents).Methods("GET")

	// Collection operations
	router.HandleFunc("/collections", h.HandleListCollections).Methods("GET")
	router.HandleFunc("/collections/{coll}", h.HandleCreateCollection).Methods("POST")
	router.HandleFunc("/collections/{coll}", h.HandleDropCollection).Methods("DELETE")

	// Document operations
	router.HandleFunc("/collections/{coll}/documents", h.HandleInsert).Methods("POST")
	router.HandleFunc("/collections/{coll}/documents", h.HandleFindAll).Methods("GET")
	router.HandleFunc("/collections/{coll}/documents", h.HandleUpdate).Methods("PATCH")
	router.HandleFunc("/collections/{coll}/documents", h.HandleDelete).Methods("DELETE")

	// Document operations (by ID)
	router.HandleFunc("/collections/{coll}/documents/{id}", h.HandleGetById).Methods("GET")
	router.HandleFunc("/collections/{coll}/documents/{id}", h.HandleUpdateById).Methods("PATCH")
	router.HandleFunc("/collections/{coll}/documents/{id}", h.HandleDeleteById).Methods("DELETE")

	// Queries
	router.HandleFunc("/collections/{coll}/find", h.HandleFind).Methods("POST")
	router.HandleFunc("/collections/{coll}/count", h.HandleCount).Methods("POST")
	router.HandleFunc("/collections/{coll}/aggregate", h.HandleAggregate).Methods("POST")
	router.HandleFunc("/collections/{coll}/stream", h.HandleStream).Methods("GET")

	// Index operations
	router.HandleFunc("/collections/{coll}/indexes", h.HandleGetIndexes).Methods("GET")
	router.HandleFunc("/collections/{coll}/indexes", h.HandleCreateIndex).Methods("POST")
	router.HandleFunc("/collections/{coll}/indexes/{name}", h.HandleDropIndex).Methods("DELETE")
}
