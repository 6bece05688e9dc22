package httpapi

import (
	"net/http"
	"time"

	"frontdesk-backend-go/internal/models"
	"frontdesk-backend-go/internal/services"

	"github.com/go-chi/chi/v5"
)

// EmployeeDTO is an employee without its secret.
type EmployeeDTO struct {
	ID            string    `json:"id"`
	CondominiumID *string   `json:"condominiumId,omitempty"`
	Name          string    `json:"name"`
	Identifier    string    `json:"identifier"`
	Role          string    `json:"role"`
	Active        bool      `json:"active"`
	CreatedAt     time.Time `json:"createdAt"`
}

func toEmployeeDTO(e models.Employee) EmployeeDTO {
	return EmployeeDTO{
		ID:            e.ID,
		CondominiumID: e.CondominiumID,
		Name:          e.Name,
		Identifier:    e.Identifier,
		Role:          e.Role,
		Active:        e.Active,
		CreatedAt:     e.CreatedAt,
	}
}

func (s *Server) ListEmployees(w http.ResponseWriter, r *http.Request) {
	rows, err := s.Admin.ListEmployees(r.Context(), CurrentSession(r), r.URL.Query().Get("search"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	items := make([]EmployeeDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, toEmployeeDTO(row))
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

func (s *Server) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var in services.EmployeeInput
	if err := decodeJSON(r, &in); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	e, err := s.Admin.CreateEmployee(r.Context(), CurrentSession(r), in)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, toEmployeeDTO(*e))
}

func (s *Server) UpdateEmployee(w http.ResponseWriter, r *http.Request) {
	var in services.EmployeeInput
	if err := decodeJSON(r, &in); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	e, err := s.Admin.UpdateEmployee(r.Context(), CurrentSession(r), chi.URLParam(r, "id"), in)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, toEmployeeDTO(*e))
}

func (s *Server) ToggleEmployee(w http.ResponseWriter, r *http.Request) {
	e, err := s.Admin.ToggleEmployee(r.Context(), CurrentSession(r), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, toEmployeeDTO(*e))
}

func (s *Server) DeleteEmployee(w http.ResponseWriter, r *http.Request) {
	if err := s.Admin.DeleteEmployee(r.Context(), CurrentSession(r), chi.URLParam(r, "id")); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) ListResidents(w http.ResponseWriter, r *http.Request) {
	items, err := s.Admin.ListResidents(r.Context(), CurrentSession(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

func (s *Server) CreateResident(w http.ResponseWriter, r *http.Request) {
	var in services.ResidentInput
	if err := decodeJSON(r, &in); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	resident, err := s.Admin.CreateResident(r.Context(), CurrentSession(r), in)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, resident)
}

func (s *Server) UpdateResident(w http.ResponseWriter, r *http.Request) {
	var in services.ResidentInput
	if err := decodeJSON(r, &in); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	resident, err := s.Admin.UpdateResident(r.Context(), CurrentSession(r), chi.URLParam(r, "id"), in)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, resident)
}

func (s *Server) ToggleResident(w http.ResponseWriter, r *http.Request) {
	resident, err := s.Admin.ToggleResident(r.Context(), CurrentSession(r), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, resident)
}

func (s *Server) DeleteResident(w http.ResponseWriter, r *http.Request) {
	if err := s.Admin.DeleteResident(r.Context(), CurrentSession(r), chi.URLParam(r, "id")); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) GetCondominium(w http.ResponseWriter, r *http.Request) {
	condo, err := s.Admin.GetCondominium(r.Context(), CurrentSession(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, condo)
}

func (s *Server) UpdateCondominium(w http.ResponseWriter, r *http.Request) {
	var in services.CondominiumInput
	if err := decodeJSON(r, &in); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	condo, err := s.Admin.UpdateCondominium(r.Context(), CurrentSession(r), in)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, condo)
}
