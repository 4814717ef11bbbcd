package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/MimeLyc/srs-generator/internal/export"
	"github.com/MimeLyc/srs-generator/internal/jobs"
	"github.com/MimeLyc/srs-generator/internal/storage"
	"github.com/MimeLyc/srs-generator/pkg/log"
)

func (s *Server) requireStore(w http.ResponseWriter) bool {
	if s.store == nil {
		writeError(w, http.StatusNotImplemented, "job store is not configured")
		return false
	}
	return true
}

func ownerParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	owner := strings.TrimSpace(r.URL.Query().Get("owner"))
	if owner == "" {
		writeError(w, http.StatusBadRequest, "owner is required")
		return "", false
	}
	return owner, true
}

func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, jobs.ErrInvalidID), errors.Is(err, jobs.ErrEmptyUpdate):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, jobs.ErrNotReviewable):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, jobs.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		log.Error("Job store error: %v", err)
		writeError(w, http.StatusInternalServerError, "job store error")
	}
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	owner, ok := ownerParam(w, r)
	if !ok {
		return
	}
	list, err := s.store.FindByOwner(r.Context(), owner)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleLatestJob(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	owner, ok := ownerParam(w, r)
	if !ok {
		return
	}
	job, err := s.store.FindLatestByOwner(r.Context(), owner)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	job, err := s.store.FindByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

type reviewRequest struct {
	Rating      *int     `json:"rating"`
	Annotations []string `json:"annotations"`
}

func (s *Server) handleReviewJob(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	var req reviewRequest
	if err := decodeValid(w, r, s.schemas.review, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	job, err := s.store.SaveFeedback(r.Context(), r.PathValue("id"), jobs.Feedback{
		Rating:      req.Rating,
		Annotations: req.Annotations,
	})
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleExportJobs(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	owner, ok := ownerParam(w, r)
	if !ok {
		return
	}
	data, err := s.exporter.JobsXLSX(r.Context(), owner)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	name := storage.Sanitize(owner) + "_jobs.xlsx"
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
