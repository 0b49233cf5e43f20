// server is the outermost layer: a gorilla/mux http surface over the
// training coordinator. It exposes session control, status, shader toggles,
// the MJPEG frame stream, a websocket stats feed, and the dashboard page.
// The server holds no training state of its own; every handler delegates to
// the manager.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"mariorl/reinforcement"
)

// Server serves the dashboard and its api for a single training manager.
type Server struct {
	addr    string
	manager *reinforcement.Manager
	router  *mux.Router
	// rootCtx bounds every training session; sessions must outlive the
	// http requests that start them.
	rootCtx context.Context
	log     *log.Logger
}

// NewServer wires the routes and returns a server ready for Serve.
func NewServer(
	ctx context.Context,
	addr string,
	manager *reinforcement.Manager,
	logger *log.Logger,
) (*Server, error) {
	if manager == nil {
		return nil, fmt.Errorf("new server: nil manager")
	}

	server := &Server{
		addr:    addr,
		manager: manager,
		rootCtx: ctx,
		log:     logger,
	}
	server.router = server.routes()
	return server, nil
}

func (server *Server) routes() *mux.Router {
	router := mux.NewRouter()

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/training/start", server.handleTrainingStart).Methods(http.MethodPost)
	api.HandleFunc("/training/stop", server.handleTrainingStop).Methods(http.MethodPost)
	api.HandleFunc("/status", server.handleStatus).Methods(http.MethodGet)
	api.HandleFunc("/shaders", server.handleShadersGet).Methods(http.MethodGet)
	api.HandleFunc("/shaders", server.handleShadersSetAll).Methods(http.MethodPut)
	api.HandleFunc("/shaders/{name}", server.handleShaderSet).Methods(http.MethodPut)

	router.HandleFunc("/stream", server.handleStream).Methods(http.MethodGet)
	router.HandleFunc("/ws/stats", server.handleStatsSocket).Methods(http.MethodGet)
	router.HandleFunc("/", server.handleIndex).Methods(http.MethodGet)

	return router
}

// Handler exposes the router, for tests driving the server via httptest.
func (server *Server) Handler() http.Handler {
	return server.router
}

// Serve blocks serving http until the listener fails or the root context is
// canceled, then shuts down gracefully and stops any active session.
func (server *Server) Serve() (err error) {
	httpServer := &http.Server{
		Addr:    server.addr,
		Handler: server.router,
	}

	go func() {
		<-server.rootCtx.Done()
		server.manager.StopTraining()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	server.log.Printf("serving on %s", server.addr)
	if err = httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		err = fmt.Errorf("serve: %w", err)
		return
	}
	return nil
}
