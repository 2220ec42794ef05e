package websocket

import (
	"net/http"

	"auction-marketplace/internal/api/middleware"
	"auction-marketplace/pkg/logger"

	"github.com/gorilla/mux"
)

// NewRouter serves the gateway endpoints.
func NewRouter(h *GatewayHandler, log logger.Logger) *mux.Router {
	router := mux.NewRouter()
	router.Use(middleware.CORS)
	router.Use(middleware.RequestLogger(log))

	router.HandleFunc("/ws", h.HandleConnection).Methods(http.MethodGet)
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)

	return router
}
