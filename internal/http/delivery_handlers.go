package httpapi

import (
	"net/http"
	"strings"

	"frontdesk-backend-go/internal/services"

	"github.com/go-chi/chi/v5"
)

const maxPhotoBytes = 10 << 20

type RegisterDeliveryRequest struct {
	ResidentID   string `json:"residentId"`
	Notes        string `json:"notes"`
	PhotoDataURL string `json:"photoDataUrl"`
}

type PickupRequest struct {
	Description string `json:"description"`
}

// RegisterDelivery accepts either a multipart form with a "photo" file or a
// JSON body carrying the photo as a data URL.
func (s *Server) RegisterDelivery(w http.ResponseWriter, r *http.Request) {
	in, err := s.registerInput(w, r)
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	record, err := s.Deliveries.Register(r.Context(), CurrentSession(r), in)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, record)
}

func (s *Server) registerInput(w http.ResponseWriter, r *http.Request) (services.RegisterInput, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		r.Body = http.MaxBytesReader(w, r.Body, maxPhotoBytes+1<<20)
		if err := r.ParseMultipartForm(maxPhotoBytes); err != nil {
			return services.RegisterInput{}, services.ErrBadRequest("Arquivo inválido.")
		}
		in := services.RegisterInput{
			ResidentID: r.FormValue("residentId"),
			Notes:      r.FormValue("notes"),
		}
		file, header, err := r.FormFile("photo")
		if err != nil {
			return in, services.ErrPhotoRequired
		}
		in.Photo = &services.Photo{ContentType: header.Header.Get("Content-Type"), Body: file}
		return in, nil
	}

	var req RegisterDeliveryRequest
	if err := decodeJSON(r, &req); err != nil {
		return services.RegisterInput{}, err
	}
	in := services.RegisterInput{ResidentID: req.ResidentID, Notes: req.Notes}
	if strings.TrimSpace(req.PhotoDataURL) != "" {
		photo, err := services.DecodeDataURL(strings.TrimSpace(req.PhotoDataURL))
		if err != nil {
			return in, err
		}
		in.Photo = photo
	}
	return in, nil
}

func (s *Server) PendingDeliveries(w http.ResponseWriter, r *http.Request) {
	items, err := s.Deliveries.ListPending(r.Context(), CurrentSession(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

func (s *Server) DeliveryByCode(w http.ResponseWriter, r *http.Request) {
	view, err := s.Deliveries.LookupByCode(r.Context(), CurrentSession(r), chi.URLParam(r, "code"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, view)
}

func (s *Server) ConfirmPickup(w http.ResponseWriter, r *http.Request) {
	var req PickupRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	record, err := s.Deliveries.ConfirmPickup(r.Context(), CurrentSession(r), chi.URLParam(r, "code"), req.Description)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, record)
}
