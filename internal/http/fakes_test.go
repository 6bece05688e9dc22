package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"frontdesk-backend-go/internal/config"
	"frontdesk-backend-go/internal/models"
	"frontdesk-backend-go/internal/notify"
	"frontdesk-backend-go/internal/services"
	"frontdesk-backend-go/internal/store"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	porterIdentifier = "52998224725"
	porterSecret     = "1234"
	adminIdentifier  = "11144477735"
	adminSecret      = "admin"
)

var errBoom = errors.New("boom")

func strPtr(value string) *string { return &value }

type fakeAuth struct {
	sessions map[string]services.Session
	secrets  map[string]string
}

func (f *fakeAuth) Resolve(_ context.Context, identifier, secret string) (*services.Session, error) {
	digits, err := services.NormalizeIdentifier(identifier)
	if err != nil {
		return nil, err
	}
	template, ok := f.sessions[digits]
	if !ok || f.secrets[digits] != secret {
		return nil, services.ErrInvalidCredentials
	}
	session := template
	session.Residents = append([]models.Resident(nil), template.Residents...)
	return &session, nil
}

type fakeResidents struct {
	rows map[string]models.Resident
}

func (f *fakeResidents) ListResidents(_ context.Context, condominiumID string) ([]models.Resident, error) {
	out := []models.Resident{}
	for _, row := range f.rows {
		if row.CondominiumID == condominiumID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (f *fakeResidents) GetResident(_ context.Context, id string) (*models.Resident, error) {
	row, ok := f.rows[id]
	if !ok {
		return nil, nil
	}
	return &row, nil
}

type fakeDeliveryStore struct {
	mu        sync.Mutex
	residents *fakeResidents
	rows      map[string]models.DeliveryWithResident
	insertErr error
	findErr   error
	markErr   error
}

func newFakeDeliveryStore(residents *fakeResidents) *fakeDeliveryStore {
	return &fakeDeliveryStore{residents: residents, rows: map[string]models.DeliveryWithResident{}}
}

func (f *fakeDeliveryStore) InsertDelivery(_ context.Context, d models.Delivery) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	resident := f.residents.rows[d.ResidentID]
	f.rows[d.ID] = models.DeliveryWithResident{
		Delivery:      d,
		ResidentName:  resident.Name,
		ResidentPhone: resident.Phone,
		ResidentUnit:  resident.Unit,
		ResidentBlock: resident.Block,
	}
	return nil
}

func (f *fakeDeliveryStore) MarkNotified(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row := f.rows[id]
	row.NotificationSent = true
	f.rows[id] = row
	return nil
}

func (f *fakeDeliveryStore) FindDeliveryByCode(_ context.Context, condominiumID, code string) (*models.DeliveryWithResident, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	var found *models.DeliveryWithResident
	for _, row := range f.rows {
		if row.PickupCode != code || derefString(row.CondominiumID) != condominiumID {
			continue
		}
		row := row
		if found == nil || row.Status == models.DeliveryPending {
			found = &row
		}
	}
	return found, nil
}

func (f *fakeDeliveryStore) MarkPickedUp(_ context.Context, id string, at time.Time, description string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markErr != nil {
		return false, f.markErr
	}
	row, ok := f.rows[id]
	if !ok || row.Status != models.DeliveryPending {
		return false, nil
	}
	row.Status = models.DeliveryPickedUp
	row.PickedUpAt = &at
	row.PickupDescription = &description
	f.rows[id] = row
	return true, nil
}

func (f *fakeDeliveryStore) ListPendingDeliveries(_ context.Context, condominiumID string, limit int) ([]models.DeliveryWithResident, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.DeliveryWithResident{}
	for _, row := range f.rows {
		if row.Status == models.DeliveryPending && derefString(row.CondominiumID) == condominiumID {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeliveredAt.After(out[j].DeliveredAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeDeliveryStore) PendingCodeExists(_ context.Context, condominiumID, code string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range f.rows {
		if row.PickupCode == code && row.Status == models.DeliveryPending && derefString(row.CondominiumID) == condominiumID {
			return true, nil
		}
	}
	return false, nil
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

type fakeSender struct {
	mu   sync.Mutex
	sent []notify.Message
	err  error
}

func (f *fakeSender) Send(_ context.Context, msg notify.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type fakeReports struct {
	rows []models.DeliveryReportRow
	err  error
}

func (f *fakeReports) RecentDeliveries(_ context.Context, _ string, _ int) ([]models.DeliveryReportRow, error) {
	return f.rows, f.err
}

type fakeCondos struct {
	condo *models.Condominium
}

func (f *fakeCondos) GetCondominium(_ context.Context, id string) (*models.Condominium, error) {
	if f.condo == nil || f.condo.ID != id {
		return nil, nil
	}
	copied := *f.condo
	return &copied, nil
}

func (f *fakeCondos) FindCondominiumsBySuperUser(context.Context, []string) ([]models.Condominium, error) {
	return nil, nil
}

type fakeAdminStore struct {
	mu        sync.Mutex
	employees []models.Employee
	residents []models.Resident
}

func (f *fakeAdminStore) ListEmployees(_ context.Context, condominiumID, _ string) ([]models.Employee, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Employee{}
	for _, e := range f.employees {
		if derefString(e.CondominiumID) == condominiumID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeAdminStore) CreateEmployee(_ context.Context, e models.Employee) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.employees = append(f.employees, e)
	return nil
}

func (f *fakeAdminStore) UpdateEmployee(_ context.Context, e models.Employee) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.employees {
		if f.employees[i].ID == e.ID {
			f.employees[i] = e
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeAdminStore) ToggleEmployee(_ context.Context, _ string, id string) (*models.Employee, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.employees {
		if f.employees[i].ID == id {
			f.employees[i].Active = !f.employees[i].Active
			e := f.employees[i]
			return &e, nil
		}
	}
	return nil, nil
}

func (f *fakeAdminStore) DeleteEmployee(_ context.Context, _ string, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.employees {
		if f.employees[i].ID == id {
			f.employees = append(f.employees[:i], f.employees[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeAdminStore) ListAllResidents(_ context.Context, _ string) ([]models.Resident, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Resident{}, f.residents...), nil
}

func (f *fakeAdminStore) CreateResident(_ context.Context, r models.Resident) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.residents = append(f.residents, r)
	return nil
}

func (f *fakeAdminStore) UpdateResident(context.Context, models.Resident) (bool, error) {
	return false, nil
}

func (f *fakeAdminStore) ToggleResident(context.Context, string, string) (*models.Resident, error) {
	return nil, nil
}

func (f *fakeAdminStore) DeleteResident(context.Context, string, string) (bool, error) {
	return false, nil
}

func (f *fakeAdminStore) UpdateCondominium(context.Context, models.Condominium, bool) (bool, error) {
	return true, nil
}

type testEnv struct {
	server     *Server
	handler    http.Handler
	kv         *store.MemoryKV
	deliveries *fakeDeliveryStore
	sender     *fakeSender
	reports    *fakeReports
	admin      *fakeAdminStore
	registry   *prometheus.Registry
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	condo := &models.Condominium{ID: "c1", Name: "Residencial Aurora"}
	residents := &fakeResidents{rows: map[string]models.Resident{
		"r1": {ID: "r1", CondominiumID: "c1", Name: "Ana Souza", Unit: "101", Block: strPtr("A"), Phone: "5511988887777", Active: true},
		"r2": {ID: "r2", CondominiumID: "c1", Name: "Bruno Lima", Unit: "102", Phone: "5511977776666", Active: true},
	}}
	roster := []models.Resident{residents.rows["r1"], residents.rows["r2"]}
	auth := &fakeAuth{
		sessions: map[string]services.Session{
			porterIdentifier: {
				Identity:    services.StaffIdentity{ID: "s1", DisplayName: "Carlos", Identifier: porterIdentifier, Role: models.RolePorter, Active: true, CondominiumID: strPtr("c1"), Provenance: services.ProvenanceEmployee},
				Condominium: condo,
				Residents:   roster,
			},
			adminIdentifier: {
				Identity:    services.StaffIdentity{ID: "s2", DisplayName: "Marta", Identifier: adminIdentifier, Role: models.RoleAdministrator, Active: true, CondominiumID: strPtr("c1"), Provenance: services.ProvenanceEmployee},
				Condominium: condo,
				Residents:   roster,
			},
		},
		secrets: map[string]string{porterIdentifier: porterSecret, adminIdentifier: adminSecret},
	}

	logger := zap.NewNop()
	kv := store.NewMemoryKV()
	registry := prometheus.NewRegistry()
	instruments := services.NewInstruments(registry)
	deliveries := newFakeDeliveryStore(residents)
	sender := &fakeSender{}
	reports := &fakeReports{}
	admin := &fakeAdminStore{}
	now := time.Date(2026, 4, 1, 15, 30, 0, 0, time.UTC)
	cfg := config.Config{JWTSecret: "test-secret", JWTIssuer: "frontdesk-test", AccessTTLSeconds: 3600, RefreshTTLSeconds: 7200}
	tokens := NewTokenService(cfg)
	media := &services.DiskStorage{BasePath: t.TempDir(), PublicBaseURL: "http://desk.test"}
	hub := services.NewEventHub()

	condos := &fakeCondos{condo: condo}
	server := &Server{
		Config: cfg,
		Tokens: tokens,
		Sessions: &services.SessionManager{
			KV:           kv,
			Auth:         auth,
			Condominiums: condos,
			Logger:       logger,
			Metrics:      instruments,
		},
		Deliveries: &services.DeliveryService{
			Deliveries:    deliveries,
			Residents:     residents,
			Photos:        media,
			Mirror:        &services.DeliveryMirror{KV: kv},
			Notifier:      sender,
			Events:        hub,
			Metrics:       instruments,
			Logger:        logger,
			Now:           func() time.Time { return now },
			NotifyTimeout: time.Second,
		},
		Reports:  &services.ReportService{Store: reports, Location: time.UTC},
		Admin:    &services.AdminService{Store: admin, Condominiums: condos, Tokens: tokens},
		Media:    media,
		Events:   hub,
		Checks:   map[string]Check{},
		Registry: registry,
		Logger:   logger,
	}
	return &testEnv{
		server:     server,
		handler:    server.Router(),
		kv:         kv,
		deliveries: deliveries,
		sender:     sender,
		reports:    reports,
		admin:      admin,
		registry:   registry,
	}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) login(t *testing.T, identifier, secret, device string) TokenResponse {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/auth/login", "", LoginRequest{Identifier: identifier, Secret: secret}, deviceHeader, device)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp
}
