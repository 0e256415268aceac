package api

import "github.com/gorilla/mux"

func registerRoutes(r *mux.Router, s *Server) {
	r.HandleFunc("/validate", s.handleValidate).Methods("POST", "OPTIONS")
	r.HandleFunc("/status/{id}", s.handleStatus).Methods("GET", "OPTIONS")
	r.HandleFunc("/results/{id}", s.handleResults).Methods("GET", "OPTIONS")
	r.HandleFunc("/health", s.handleHealth).Methods("GET", "OPTIONS")
	r.HandleFunc("/stats", s.handleStats).Methods("GET", "OPTIONS")
}
