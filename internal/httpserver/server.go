// Package httpserver hosts the inbound webhook surface: platform receivers
// on the gateway plus the health and metrics muxes every binary exposes.
package httpserver

import "github.com/gorilla/mux"

// Server wraps the shared router. The gateway mounts platform routes on it;
// worker and dispatcher use it only for health endpoints.
type Server struct {
	Mux *mux.Router
}

func New() *Server {
	return &Server{Mux: mux.NewRouter()}
}
