package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

// NewRouter builds the HTTP router with all endpoints.
func NewRouter(h *Handler) http.Handler {
	r := mux.NewRouter()

	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/health", h.Health).Methods("GET")

	api.HandleFunc("/history", h.GetHistory).Methods("GET")
	api.HandleFunc("/progress", h.GetProgress).Methods("GET")

	api.HandleFunc("/news", h.GetNews).Methods("GET")
	api.HandleFunc("/news", h.PutNews).Methods("PUT")

	api.HandleFunc("/settings", h.GetSettings).Methods("GET")
	api.HandleFunc("/settings", h.PutSettings).Methods("PUT")

	api.HandleFunc("/cloud/status", h.GetCloudStatus).Methods("GET")
	api.HandleFunc("/cloud/connect", h.ConnectCloud).Methods("POST")
	api.HandleFunc("/cloud/disconnect", h.DisconnectCloud).Methods("POST")

	// CORS for local dashboard development.
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	})

	return c.Handler(r)
}
