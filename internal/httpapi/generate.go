package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/MimeLyc/srs-generator/internal/pipeline"
	"github.com/MimeLyc/srs-generator/internal/render"
	"github.com/MimeLyc/srs-generator/internal/srs"
	"github.com/MimeLyc/srs-generator/pkg/log"
)

type generationRequest struct {
	srs.Requirements
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

type generationResponse struct {
	Success bool   `json:"success"`
	Title   string `json:"title"`
	Text    string `json:"text"`
	Message string `json:"message"`
}

type renderRequest struct {
	Username string `json:"username"`
	Title    string `json:"title"`
	Text     string `json:"text"`
}

type renderResponse struct {
	Success  bool   `json:"success"`
	PdfName  string `json:"pdfName"`
	WordName string `json:"wordName"`
	PdfPath  string `json:"pdfPath"`
	WordPath string `json:"wordPath"`
	Message  string `json:"message"`
}

func (s *Server) handleGenerateSRS(w http.ResponseWriter, r *http.Request) {
	var req generationRequest
	if err := decodeValid(w, r, s.schemas.generation, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, err.Error())
		return
	}

	draft, err := s.orchestrator.Generate(r.Context(), req.Requirements)
	if err != nil {
		log.Error("Synchronous generation failed: %v", err)
		if errors.Is(err, pipeline.ErrNotConfigured) {
			writeFailure(w, http.StatusInternalServerError, "Configuration error: "+err.Error())
			return
		}
		writeFailure(w, http.StatusInternalServerError, "Error generating SRS: "+causeOf(err))
		return
	}

	writeJSON(w, http.StatusOK, generationResponse{
		Success: true,
		Title:   draft.Title,
		Text:    draft.Body,
		Message: "SRS generated successfully",
	})
}

func (s *Server) handleGenerateDocuments(w http.ResponseWriter, r *http.Request) {
	var req renderRequest
	if err := decodeValid(w, r, s.schemas.render, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, err.Error())
		return
	}

	docs, err := s.orchestrator.RenderAll(r.Context(), pipeline.Draft{Title: req.Title, Body: req.Text}, strings.TrimSpace(req.Username))
	if err != nil {
		if errors.Is(err, render.ErrEmptyOwner) {
			writeFailure(w, http.StatusBadRequest, "username is required")
			return
		}
		if errors.Is(err, render.ErrUnsupportedText) {
			writeFailure(w, http.StatusUnprocessableEntity, causeOf(err))
			return
		}
		log.Error("Rendering documents for %q failed: %v", req.Username, err)
		writeFailure(w, http.StatusInternalServerError, "Error generating documents: "+causeOf(err))
		return
	}

	writeJSON(w, http.StatusOK, renderResponse{
		Success:  true,
		PdfName:  docs.PDF.Name,
		WordName: docs.Word.Name,
		PdfPath:  docs.PDF.RelPath,
		WordPath: docs.Word.RelPath,
		Message:  "Documents generated successfully",
	})
}

// causeOf strips the stage tag from pipeline errors.
func causeOf(err error) string {
	var se *pipeline.StageError
	if errors.As(err, &se) && se.Err != nil {
		return se.Err.Error()
	}
	return err.Error()
}
