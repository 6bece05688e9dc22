package services

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"frontdesk-backend-go/internal/models"
	"frontdesk-backend-go/internal/notify"
)

var errRemoteDown = errors.New("remote store unreachable")

type fakeKV struct {
	mu      sync.RWMutex
	data    map[string]string
	setErr  error
	getErr  error
	setCall int
}

func newFakeKV() *fakeKV {
	return &fakeKV{data: map[string]string{}}
}

func (f *fakeKV) Get(_ context.Context, key string) (string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.getErr != nil {
		return "", f.getErr
	}
	value, ok := f.data[key]
	if !ok {
		return "", ErrMiss
	}
	return value, nil
}

func (f *fakeKV) Set(_ context.Context, key, value string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setCall++
	if f.setErr != nil {
		return f.setErr
	}
	f.data[key] = value
	return nil
}

func (f *fakeKV) Del(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, key := range keys {
		delete(f.data, key)
	}
	return nil
}

func (f *fakeKV) has(key string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.data[key]
	return ok
}

type fakeEmployees struct {
	mu    sync.Mutex
	rows  []models.Employee
	err   error
	calls int
}

func (f *fakeEmployees) FindActiveEmployees(_ context.Context, identifier string) ([]models.Employee, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := []models.Employee{}
	for _, row := range f.rows {
		if row.Identifier == identifier && row.Active {
			out = append(out, row)
		}
	}
	return out, nil
}

type fakeCondos struct {
	mu        sync.Mutex
	rows      map[string]models.Condominium
	getErr    error
	findErr   error
	getCalls  int
	findCalls int
	findForms [][]string
}

func newFakeCondos(rows ...models.Condominium) *fakeCondos {
	f := &fakeCondos{rows: map[string]models.Condominium{}}
	for _, row := range rows {
		f.rows[row.ID] = row
	}
	return f
}

func (f *fakeCondos) GetCondominium(_ context.Context, id string) (*models.Condominium, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	if f.getErr != nil {
		return nil, f.getErr
	}
	row, ok := f.rows[id]
	if !ok {
		return nil, nil
	}
	return &row, nil
}

func (f *fakeCondos) FindCondominiumsBySuperUser(_ context.Context, identifiers []string) ([]models.Condominium, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.findCalls++
	f.findForms = append(f.findForms, identifiers)
	if f.findErr != nil {
		return nil, f.findErr
	}
	out := []models.Condominium{}
	for _, row := range f.rows {
		if row.SuperUserIdentifier == nil {
			continue
		}
		for _, form := range identifiers {
			if *row.SuperUserIdentifier == form {
				out = append(out, row)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeCondos) setName(id, name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row := f.rows[id]
	row.Name = name
	f.rows[id] = row
}

type fakeResidents struct {
	rows  []models.Resident
	err   error
	calls int
}

func (f *fakeResidents) ListResidents(_ context.Context, condominiumID string) ([]models.Resident, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := []models.Resident{}
	for _, row := range f.rows {
		if row.CondominiumID == condominiumID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (f *fakeResidents) GetResident(_ context.Context, id string) (*models.Resident, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, row := range f.rows {
		if row.ID == id {
			r := row
			return &r, nil
		}
	}
	return nil, nil
}

type fakeDeliveries struct {
	mu           sync.Mutex
	rows         []models.DeliveryWithResident
	residents    *fakeResidents
	insertErr    error
	collisions   int
	findErr      error
	listErr      error
	markErr      error
	insertCalls  int
	markCalls    int
	notifiedIDs  []string
	pendingCodes map[string]bool
}

func newFakeDeliveries(residents *fakeResidents) *fakeDeliveries {
	return &fakeDeliveries{residents: residents, pendingCodes: map[string]bool{}}
}

func (f *fakeDeliveries) InsertDelivery(_ context.Context, d models.Delivery) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.insertCalls++
	if f.insertErr != nil {
		return f.insertErr
	}
	if f.collisions > 0 {
		f.collisions--
		return ErrPickupCodeTaken
	}
	row := models.DeliveryWithResident{Delivery: d}
	for _, r := range f.residents.rows {
		if r.ID == d.ResidentID {
			row.ResidentName = r.Name
			row.ResidentPhone = r.Phone
			row.ResidentUnit = r.Unit
			row.ResidentBlock = r.Block
		}
	}
	f.rows = append(f.rows, row)
	return nil
}

func (f *fakeDeliveries) MarkNotified(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notifiedIDs = append(f.notifiedIDs, id)
	for i := range f.rows {
		if f.rows[i].ID == id {
			f.rows[i].NotificationSent = true
		}
	}
	return nil
}

func (f *fakeDeliveries) FindDeliveryByCode(_ context.Context, condominiumID, code string) (*models.DeliveryWithResident, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	var best *models.DeliveryWithResident
	for i := range f.rows {
		row := f.rows[i]
		if row.PickupCode != code || deref(row.CondominiumID) != condominiumID {
			continue
		}
		if best == nil ||
			(row.Status == models.DeliveryPending && best.Status != models.DeliveryPending) ||
			(row.Status == best.Status && row.DeliveredAt.After(best.DeliveredAt)) {
			r := row
			best = &r
		}
	}
	return best, nil
}

func (f *fakeDeliveries) MarkPickedUp(_ context.Context, id string, at time.Time, description string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markCalls++
	if f.markErr != nil {
		return false, f.markErr
	}
	for i := range f.rows {
		if f.rows[i].ID == id && f.rows[i].Status == models.DeliveryPending {
			pickedAt := at
			desc := description
			f.rows[i].Status = models.DeliveryPickedUp
			f.rows[i].PickedUpAt = &pickedAt
			f.rows[i].PickupDescription = &desc
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeDeliveries) ListPendingDeliveries(_ context.Context, condominiumID string, limit int) ([]models.DeliveryWithResident, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := []models.DeliveryWithResident{}
	for i := len(f.rows) - 1; i >= 0 && len(out) < limit; i-- {
		row := f.rows[i]
		if row.Status == models.DeliveryPending && deref(row.CondominiumID) == condominiumID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (f *fakeDeliveries) PendingCodeExists(_ context.Context, condominiumID, code string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pendingCodes[code] {
		return true, nil
	}
	for _, row := range f.rows {
		if row.PickupCode == code && row.Status == models.DeliveryPending && deref(row.CondominiumID) == condominiumID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeDeliveries) get(id string) models.DeliveryWithResident {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range f.rows {
		if row.ID == id {
			return row
		}
	}
	return models.DeliveryWithResident{}
}

type fakePhotos struct {
	mu      sync.Mutex
	err     error
	keys    []string
	removed []string
	calls   int
}

func (f *fakePhotos) Remove(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, key)
	return nil
}

func (f *fakePhotos) Upload(_ context.Context, key, _ string, body io.Reader) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	if _, err := io.Copy(io.Discard, body); err != nil {
		return "", err
	}
	f.keys = append(f.keys, key)
	return "https://media.test/media/" + key, nil
}

type fakeNotifier struct {
	mu   sync.Mutex
	err  error
	sent []notify.Message
}

func (f *fakeNotifier) Send(_ context.Context, msg notify.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return f.err
}

func (f *fakeNotifier) messages() []notify.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]notify.Message(nil), f.sent...)
}

type fakeEvents struct {
	mu     sync.Mutex
	events []DeliveryEvent
}

func (f *fakeEvents) Publish(_ string, event DeliveryEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

func strPtr(value string) *string {
	return &value
}
