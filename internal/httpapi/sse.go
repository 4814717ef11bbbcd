package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/MimeLyc/srs-generator/internal/pipeline"
	"github.com/MimeLyc/srs-generator/internal/storage"
	"github.com/MimeLyc/srs-generator/pkg/log"
)

const closeMarker = "event: close\ndata: {}\n\n"

func (s *Server) handleGenerateStream(w http.ResponseWriter, r *http.Request) {
	var req generationRequest
	if err := decodeValid(w, r, s.schemas.generation, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, err.Error())
		return
	}
	namespace := strings.TrimSpace(req.Username)
	if storage.Sanitize(namespace) == "" {
		writeFailure(w, http.StatusBadRequest, "username is required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeFailure(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	events := s.orchestrator.Start(r.Context(), pipeline.Request{
		Requirements: req.Requirements,
		Owner:        req.UserID,
		Namespace:    namespace,
	})

	send := func(e pipeline.Event) bool {
		payload, err := json.Marshal(e)
		if err != nil {
			log.Error("Failed to encode stream event: %v", err)
			return false
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	for {
		select {
		case <-r.Context().Done():
			// the run continues on its own and still finalises the job
			log.Info("Stream client for %q disconnected", namespace)
			return
		case e, ok := <-events:
			if !ok {
				_, _ = fmt.Fprint(w, closeMarker)
				flusher.Flush()
				return
			}
			if !send(e) {
				return
			}
		}
	}
}
