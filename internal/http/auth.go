package httpapi

import (
	"context"
	"net/http"
	"strings"

	"frontdesk-backend-go/internal/services"
)

type contextKey string

const (
	ctxSession contextKey = "session"
	ctxClaims  contextKey = "claims"
)

const (
	deviceHeader      = "X-Device-ID"
	deviceTokenHeader = "X-Device-Token"
)

// WithAuth accepts a bearer access token whose device still holds a session
// for the same identity.
func (s *Server) WithAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
			s.writeServiceError(w, r, services.ErrUnauthenticated)
			return
		}
		tokenStr := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
		session, claims, err := s.authenticate(r.Context(), tokenStr)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		ctx := context.WithValue(r.Context(), ctxSession, session)
		ctx = context.WithValue(ctx, ctxClaims, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) authenticate(ctx context.Context, tokenStr string) (*services.Session, services.Claims, error) {
	claims, err := s.Tokens.ParseToken(tokenStr, "access")
	if err != nil {
		return nil, services.Claims{}, err
	}
	session, err := s.Sessions.Current(ctx, claims.DeviceID)
	if err != nil {
		return nil, services.Claims{}, err
	}
	if session.Identity.ID != claims.IdentityID {
		return nil, services.Claims{}, services.ErrUnauthenticated
	}
	return session, claims, nil
}

func CurrentSession(r *http.Request) *services.Session {
	if value, ok := r.Context().Value(ctxSession).(*services.Session); ok {
		return value
	}
	return nil
}

func CurrentClaims(r *http.Request) services.Claims {
	if value, ok := r.Context().Value(ctxClaims).(services.Claims); ok {
		return value
	}
	return services.Claims{}
}

func (s *Server) RequireAnyRole(roles ...string) func(http.Handler) http.Handler {
	allowed := map[string]bool{}
	for _, role := range roles {
		allowed[strings.ToLower(role)] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session := CurrentSession(r)
			if session != nil && allowed[strings.ToLower(session.Identity.Role)] {
				next.ServeHTTP(w, r)
				return
			}
			s.writeServiceError(w, r, services.ErrForbidden("Acesso restrito à administração."))
		})
	}
}
