package server

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/adfharrison1/go-docstore/pkg/api"
	"github.com/adfharrison1/go-docstore/pkg/storage"
)

// Server holds references to storage, router, etc.
type Server struct {
	router   *mux.Router
	dbEngine *storage.StorageEngine
	handler  *api.Handler
}

// NewServer creates a new instance of Server. The engine is not opened
// until Start.
func NewServer(options ...storage.StorageOption) *Server {
	engine := storage.NewStorageEngine(options...)
	s := &Server{
		router:   mux.NewRouter(),
		dbEngine: engine,
		handler:  api.NewHandler(engine),
	}
	// Define HTTP routes
	s.handler.RegisterRoutes(s.router)

	// Use the logging middleware for all routes
	s.router.Use(requestLoggerMiddleware)

	// Customize NotFoundHandler to log 404s
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Printf("WARN: No route found for %s %s", r.Method, r.URL.Path)
		api.WriteJSONError(w, http.StatusNotFound, "no route for "+r.Method+" "+r.URL.Path)
	})

	return s
}

// requestLoggerMiddleware logs the method, URL path, and duration for each request.
func requestLoggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		elapsed := time.Since(start)
		log.Printf("INFO: Request %s %s took %s", r.Method, r.URL.Path, elapsed)
	})
}

// Start opens the storage root and loads every snapshot
func (s *Server) Start() error {
	if err := s.dbEngine.Connect(); err != nil {
		log.Printf("ERROR: Could not open the database: %v", err)
		return err
	}
	log.Printf("INFO: Database opened successfully")
	return nil
}

// Stop drains pending writes and closes the storage root
func (s *Server) Stop() error {
	if err := s.dbEngine.Disconnect(); err != nil {
		log.Printf("ERROR: Closing the database reported write failures: %v", err)
		return err
	}
	log.Printf("INFO: Database closed successfully")
	return nil
}

// Router exposes the internal mux.Router.
func (s *Server) Router() http.Handler {
	return s.router
}

// Engine exposes the storage engine backing the server
func (s *Server) Engine() *storage.StorageEngine {
	return s.dbEngine
}
