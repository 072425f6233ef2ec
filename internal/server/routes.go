package server

import (
	"encoding/json"
	"log"
	"net/http"
)

// queryRequest mirrors the original service's request shape: one document
// URL plus its questions.
type queryRequest struct {
	Documents string   `json:"documents"`
	Questions []string `json:"questions"`
}

type queryResponse struct {
	Answers []string `json:"answers"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body: " + err.Error()})
		return
	}
	if req.Documents == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "documents is required"})
		return
	}
	if len(req.Questions) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "questions must be a non-empty list"})
		return
	}

	// A run-fatal failure (the document could not be ingested) still
	// yields one error answer per question; the answer-count contract
	// holds for every outcome, so the client always gets a 200 with a
	// fully populated list.
	answers, err := s.pipe.Process(r.Context(), req.Documents, req.Questions)
	if err != nil {
		log.Printf("server: query for %s failed: %v", req.Documents, err)
	}

	writeJSON(w, http.StatusOK, queryResponse{Answers: answers})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := s.pipe.HealthCheck(r.Context())

	status := http.StatusOK
	if health.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.idx.Stats(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	source := r.URL.Query().Get("source")
	if source == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "source query parameter is required"})
		return
	}

	if err := s.idx.DeleteBySource(r.Context(), source); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
