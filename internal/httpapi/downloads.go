package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/MimeLyc/srs-generator/internal/storage"
	"github.com/MimeLyc/srs-generator/pkg/log"
)

var contentTypes = map[storage.Kind]string{
	storage.KindPDF:  "application/pdf",
	storage.KindWord: "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

func (s *Server) handleDownload(kind storage.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner := r.PathValue("owner")
		filename := r.PathValue("filename")

		path, err := s.layout.Resolve(owner, kind, filename)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				writeFailure(w, http.StatusNotFound, "File not found")
				return
			}
			log.Error("Resolving %s/%s failed: %v", owner, filename, err)
			writeFailure(w, http.StatusInternalServerError, "Error serving file")
			return
		}

		f, err := os.Open(path)
		if err != nil {
			log.Error("Opening %s failed: %v", path, err)
			writeFailure(w, http.StatusInternalServerError, "Error serving file")
			return
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			log.Error("Stat %s failed: %v", path, err)
			writeFailure(w, http.StatusInternalServerError, "Error serving file")
			return
		}

		name := storage.Sanitize(filename)
		w.Header().Set("Content-Type", contentTypes[kind])
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
		http.ServeContent(w, r, name, info.ModTime(), f)
	}
}
