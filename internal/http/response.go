package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"frontdesk-backend-go/internal/services"

	"go.uber.org/zap"
)

type ErrorResponse struct {
	Title   string `json:"title"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func WriteError(w http.ResponseWriter, status int, title, message string) {
	WriteJSON(w, status, ErrorResponse{Title: title, Message: message})
}

// writeServiceError renders err as the single user-facing notification.
// Upstream failures on the registration path pass the remote message through.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var serr services.ServiceError
	if errors.As(err, &serr) {
		message := serr.Message
		if serr.Status == http.StatusBadGateway {
			message = serr.Error()
		}
		if serr.Status >= http.StatusInternalServerError {
			s.Logger.Warn("request failed",
				zap.String("path", r.URL.Path),
				zap.String("code", serr.Code),
				zap.Error(err),
			)
		}
		WriteJSON(w, serr.Status, ErrorResponse{Title: serr.Title, Message: message, Code: serr.Code})
		return
	}
	s.Logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	WriteError(w, http.StatusInternalServerError, "Erro", "Erro interno do servidor.")
}

func decodeJSON(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return services.ErrBadRequest("Dados inválidos.")
	}
	return nil
}
