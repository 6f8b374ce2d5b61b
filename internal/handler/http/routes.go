package http

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RegisterRoutes mounts the admin surface on r. Routes sit on r itself, not
// on a subrouter, so that a wrong method answers 405 rather than 404.
func RegisterRoutes(r *mux.Router, h *Handler) {
	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)

	r.HandleFunc("/v1/resolve", h.Resolve).Methods(http.MethodPost)
	r.HandleFunc("/v1/commands", h.ListCommands).Methods(http.MethodGet)
	r.HandleFunc("/v1/commands", h.LearnCommand).Methods(http.MethodPost)
	r.HandleFunc("/v1/commands/{id}", h.ForgetCommand).Methods(http.MethodDelete)
	r.HandleFunc("/v1/stats", h.Stats).Methods(http.MethodGet)
	r.HandleFunc("/v1/reset", h.Reset).Methods(http.MethodPost)
	r.HandleFunc("/v1/thresholds", h.GetThresholds).Methods(http.MethodGet)
	r.HandleFunc("/v1/thresholds", h.PutThresholds).Methods(http.MethodPut)
	r.HandleFunc("/v1/learning", h.PutLearning).Methods(http.MethodPut)
}

func NewRouter(h *Handler) *mux.Router {
	r := mux.NewRouter()
	RegisterRoutes(r, h)
	return r
}
