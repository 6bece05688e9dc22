package httpapi

import (
	"net/http"
	"strings"

	"frontdesk-backend-go/internal/services"

	"github.com/google/uuid"
)

type LoginRequest struct {
	Identifier string `json:"identifier"`
	Secret     string `json:"secret"`
	DeviceID   string `json:"deviceId"`
}

type TokenResponse struct {
	AccessToken  string            `json:"accessToken"`
	RefreshToken string            `json:"refreshToken"`
	ExpiresAt    int64             `json:"expiresAt"`
	DeviceID     string            `json:"deviceId"`
	DeviceToken  string            `json:"deviceToken"`
	Session      *services.Session `json:"session"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (s *Server) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if _, err := services.NormalizeIdentifier(req.Identifier); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if len([]rune(strings.TrimSpace(req.Secret))) < services.MinSecretLength {
		s.writeServiceError(w, r, services.ErrInvalidSecret.WithMessage("A senha deve ter pelo menos 3 caracteres."))
		return
	}
	device := s.deviceID(r, req.DeviceID)
	session, err := s.Sessions.Login(r.Context(), device, req.Identifier, req.Secret)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeTokens(w, r, http.StatusOK, session)
}

func (s *Server) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := decodeJSON(r, &req); err != nil || req.RefreshToken == "" {
		s.writeServiceError(w, r, services.ErrUnauthenticated)
		return
	}
	claims, err := s.Tokens.ParseToken(req.RefreshToken, "refresh")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	session, err := s.Sessions.Current(r.Context(), claims.DeviceID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if session.Identity.ID != claims.IdentityID {
		s.writeServiceError(w, r, services.ErrUnauthenticated)
		return
	}
	s.writeTokens(w, r, http.StatusOK, session)
}

func (s *Server) CurrentSessionHandler(w http.ResponseWriter, r *http.Request) {
	session, err := s.Sessions.Restore(r.Context(), CurrentClaims(r).DeviceID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, session)
}

func (s *Server) Logout(w http.ResponseWriter, r *http.Request) {
	if err := s.Sessions.Logout(r.Context(), CurrentClaims(r).DeviceID); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// LastIdentifier answers only to the device token handed out at login; a
// bare device id is not enough to read the cached CPF.
func (s *Server) LastIdentifier(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSpace(r.Header.Get(deviceTokenHeader))
	if raw == "" {
		WriteJSON(w, http.StatusOK, map[string]string{"identifier": ""})
		return
	}
	device, err := s.Tokens.ParseDeviceToken(raw)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	identifier, err := s.Sessions.LastIdentifier(r.Context(), device)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"identifier": identifier})
}

func (s *Server) SessionResidents(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	items := CurrentSession(r).FilterResidents(query.Get("unit"), query.Get("block"))
	WriteJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

func (s *Server) writeTokens(w http.ResponseWriter, r *http.Request, status int, session *services.Session) {
	pair, err := s.Tokens.Issue(services.Claims{
		IdentityID:    session.Identity.ID,
		Role:          session.Identity.Role,
		CondominiumID: session.CondominiumID(),
		DeviceID:      session.DeviceID,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	deviceToken, err := s.Tokens.CreateDeviceToken(session.DeviceID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, status, TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresAt:    pair.ExpiresAt,
		DeviceID:     session.DeviceID,
		DeviceToken:  deviceToken,
		Session:      session,
	})
}

// deviceID prefers the header, then the body, and mints a new id for devices
// that never logged in.
func (s *Server) deviceID(r *http.Request, fromBody string) string {
	if value := strings.TrimSpace(r.Header.Get(deviceHeader)); value != "" {
		return value
	}
	if value := strings.TrimSpace(fromBody); value != "" {
		return value
	}
	if s.NewDevice != nil {
		return s.NewDevice()
	}
	return uuid.NewString()
}
