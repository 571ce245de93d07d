package circuits

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RegisterRoutes mounts the circuit endpoints on an already-authenticated
// subrouter.
func RegisterRoutes(r *mux.Router, h *Handler) {
	s := r.PathPrefix("/circuits").Subrouter()

	s.HandleFunc("/simulation_result/{task_id}", h.SimulationResult).Methods(http.MethodGet)

	s.HandleFunc("/{project_id:[0-9]+}/save_version", h.SaveVersion).Methods(http.MethodPost)
	s.HandleFunc("/{project_id:[0-9]+}/versions", h.Versions).Methods(http.MethodGet)
	s.HandleFunc("/{project_id:[0-9]+}/simulate", h.Simulate).Methods(http.MethodPost)
	s.HandleFunc("/{project_id:[0-9]+}/simulations", h.Simulations).Methods(http.MethodGet)
}
