package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"frontdesk-backend-go/internal/models"

	"go.uber.org/zap"
)

// ErrMiss is returned by KV.Get when the key does not exist.
var ErrMiss = errors.New("cache miss")

// KV is the durable per-device storage for sessions, the cached identifier
// and the delivery mirror. Values are JSON documents.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

func sessionKey(device string) string        { return "session:" + device }
func lastIdentifierKey(device string) string { return "last_identifier:" + device }
func mirrorKey(device string) string         { return "deliveries:" + device }

type Session struct {
	DeviceID    string              `json:"deviceId"`
	Identity    StaffIdentity       `json:"identity"`
	Condominium *models.Condominium `json:"condominium,omitempty"`
	Residents   []models.Resident   `json:"residents"`
	CreatedAt   time.Time           `json:"createdAt"`
}

func (s *Session) CondominiumID() string {
	if s == nil {
		return ""
	}
	if s.Identity.CondominiumID != nil && *s.Identity.CondominiumID != "" {
		return *s.Identity.CondominiumID
	}
	if s.Condominium != nil {
		return s.Condominium.ID
	}
	return ""
}

func (s *Session) CondominiumName() string {
	if s == nil || s.Condominium == nil {
		return ""
	}
	return s.Condominium.Name
}

// FilterResidents returns the roster entries for unit. An empty block matches
// residents of any block.
func (s *Session) FilterResidents(unit, block string) []models.Resident {
	unit = strings.TrimSpace(unit)
	block = strings.TrimSpace(block)
	out := []models.Resident{}
	if s == nil {
		return out
	}
	for _, resident := range s.Residents {
		if strings.TrimSpace(resident.Unit) != unit {
			continue
		}
		if block != "" && (resident.Block == nil || strings.TrimSpace(*resident.Block) != block) {
			continue
		}
		out = append(out, resident)
	}
	return out
}

func (s *Session) Resident(id string) *models.Resident {
	if s == nil {
		return nil
	}
	for i := range s.Residents {
		if s.Residents[i].ID == id {
			return &s.Residents[i]
		}
	}
	return nil
}

// Authenticator turns raw credentials into a session.
type Authenticator interface {
	Resolve(ctx context.Context, identifier, secret string) (*Session, error)
}

type SessionManager struct {
	KV             KV
	Auth           Authenticator
	Condominiums   CondominiumStore
	Logger         *zap.Logger
	Metrics        *Instruments
	TTL            time.Duration
	RefreshTimeout time.Duration
	Now            func() time.Time
}

// Login replaces the device's session only when resolution succeeds.
func (m *SessionManager) Login(ctx context.Context, device, identifier, secret string) (*Session, error) {
	session, err := m.Auth.Resolve(ctx, identifier, secret)
	if err != nil {
		m.Metrics.LoginAttempt(loginResult(err))
		return nil, err
	}
	session.DeviceID = device
	session.CreatedAt = m.now().UTC()
	if err := m.save(ctx, session); err != nil {
		m.Metrics.LoginAttempt("error")
		return nil, WrapError(err, "persist session")
	}
	if err := m.KV.Set(ctx, lastIdentifierKey(device), session.Identity.Identifier, 0); err != nil {
		m.Logger.Warn("cache last identifier", zap.String("device_id", device), zap.Error(err))
	}
	m.Metrics.LoginAttempt("success")
	m.Logger.Info("staff login",
		zap.String("device_id", device),
		zap.String("identity_id", session.Identity.ID),
		zap.String("role", session.Identity.Role),
		zap.String("condominium_id", session.CondominiumID()),
	)
	return session, nil
}

// Current reads the persisted session without side effects.
func (m *SessionManager) Current(ctx context.Context, device string) (*Session, error) {
	raw, err := m.KV.Get(ctx, sessionKey(device))
	if errors.Is(err, ErrMiss) {
		return nil, ErrUnauthenticated
	}
	if err != nil {
		return nil, WrapError(err, "load session")
	}
	session := &Session{}
	if err := json.Unmarshal([]byte(raw), session); err != nil {
		return nil, ErrUnauthenticated.WithCause(err)
	}
	return session, nil
}

// Restore returns the persisted session at once and refreshes the cached
// condominium in the background. Refresh failures are only logged.
func (m *SessionManager) Restore(ctx context.Context, device string) (*Session, error) {
	session, err := m.Current(ctx, device)
	if err != nil {
		return nil, err
	}
	if condoID := session.CondominiumID(); condoID != "" && m.Condominiums != nil {
		go m.refreshCondominium(device, session.Identity.ID, condoID, session.CondominiumName())
	}
	return session, nil
}

func (m *SessionManager) refreshCondominium(device, identityID, condoID, cachedName string) {
	timeout := m.RefreshTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	condo, err := m.Condominiums.GetCondominium(ctx, condoID)
	if err != nil {
		m.Logger.Warn("condominium refresh failed", zap.String("condominium_id", condoID), zap.Error(err))
		return
	}
	if condo == nil || condo.Name == cachedName {
		return
	}
	current, err := m.Current(ctx, device)
	if err != nil || current.Identity.ID != identityID {
		return
	}
	current.Condominium = condo
	if err := m.save(ctx, current); err != nil {
		m.Logger.Warn("condominium refresh persist failed", zap.String("device_id", device), zap.Error(err))
	}
}

// Logout removes the session and the cached identifier. There is nothing to
// revoke server side.
func (m *SessionManager) Logout(ctx context.Context, device string) error {
	return m.KV.Del(ctx, sessionKey(device), lastIdentifierKey(device))
}

func (m *SessionManager) LastIdentifier(ctx context.Context, device string) (string, error) {
	value, err := m.KV.Get(ctx, lastIdentifierKey(device))
	if errors.Is(err, ErrMiss) {
		return "", nil
	}
	return value, err
}

func (m *SessionManager) save(ctx context.Context, session *Session) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return m.KV.Set(ctx, sessionKey(session.DeviceID), string(payload), m.TTL)
}

func (m *SessionManager) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

func loginResult(err error) string {
	var serr ServiceError
	if errors.As(err, &serr) {
		return serr.Code
	}
	return "error"
}
