package httpapi

import (
	"errors"
	"io/fs"
	"mime"
	"net/http"
	"path/filepath"

	"frontdesk-backend-go/internal/services"

	"github.com/go-chi/chi/v5"
)

// MediaContent serves a stored delivery photo. Photo URLs are handed to
// residents in notifications, so the route is public.
func (s *Server) MediaContent(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	file, err := s.Media.Open(key)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.writeServiceError(w, r, services.ErrNotFound("Foto não encontrada."))
			return
		}
		s.writeServiceError(w, r, err)
		return
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil || info.IsDir() {
		s.writeServiceError(w, r, services.ErrNotFound("Foto não encontrada."))
		return
	}
	if contentType := mime.TypeByExtension(filepath.Ext(key)); contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	w.Header().Set("Cache-Control", "public, max-age=86400")
	http.ServeContent(w, r, info.Name(), info.ModTime(), file)
}
