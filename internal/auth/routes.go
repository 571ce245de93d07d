package auth

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RegisterRoutes mounts the auth endpoints. register/login are public;
// refresh and logout authenticate through their cookies directly, not
// through the session middleware (an expired access token must not block
// either of them).
func RegisterRoutes(r *mux.Router, h *Handler, mw ...mux.MiddlewareFunc) {
	s := r.PathPrefix("/auth").Subrouter()
	s.Use(mw...)
	s.HandleFunc("/register", h.Register).Methods(http.MethodPost)
	s.HandleFunc("/login", h.Login).Methods(http.MethodPost)
	s.HandleFunc("/refresh", h.Refresh).Methods(http.MethodPost)
	s.HandleFunc("/logout", h.Logout).Methods(http.MethodPost)
}
