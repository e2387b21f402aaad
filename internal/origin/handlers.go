package origin

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
)

// maxSlowDelay caps the artificial delay of the /slow route.
const maxSlowDelay = 5 * time.Second

type healthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(healthResponse{Status: "ok"}); err != nil {
		s.logger.Error("encode healthz response", "error", err)
	}
}

// handleFile serves one file from the configured corpus.
func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	content, ok := s.files[name]
	if !ok {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, content)
}

// handleRedirect serves a redirect chain of the requested depth ending at
// /files/file1.txt, so engines can be tested against bounded and unbounded
// redirect policies.
func (s *Server) handleRedirect(w http.ResponseWriter, r *http.Request) {
	hops, err := strconv.Atoi(chi.URLParam(r, "hops"))
	if err != nil || hops < 1 {
		http.Error(w, "hops must be a positive integer", http.StatusBadRequest)
		return
	}

	target := "/files/file1.txt"
	if hops > 1 {
		target = fmt.Sprintf("/redirect/%d", hops-1)
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// handleStatus replies with the requested status code.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	code, err := strconv.Atoi(chi.URLParam(r, "code"))
	if err != nil || code < 100 || code > 599 {
		http.Error(w, "code must be a valid HTTP status", http.StatusBadRequest)
		return
	}

	w.WriteHeader(code)
	fmt.Fprintf(w, "status %d", code)
}

// handleSlow delays its reply by the duration in the delay query parameter.
func (s *Server) handleSlow(w http.ResponseWriter, r *http.Request) {
	delay := 100 * time.Millisecond
	if v := r.URL.Query().Get("delay"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			http.Error(w, "delay must be a non-negative duration", http.StatusBadRequest)
			return
		}
		delay = d
	}
	if delay > maxSlowDelay {
		delay = maxSlowDelay
	}

	time.Sleep(delay)
	fmt.Fprint(w, "slow response")
}
