package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"frontdesk-backend-go/internal/models"
)

const mirrorCapacity = 500

// MirrorRecord is the device-local copy of a registered delivery.
type MirrorRecord struct {
	ID             string          `json:"id"`
	CondominiumID  string          `json:"condominiumId"`
	StaffID        string          `json:"staffId"`
	Resident       MirrorResident  `json:"resident"`
	ApartmentInfo  MirrorApartment `json:"apartmentInfo"`
	WithdrawalCode string          `json:"withdrawalCode"`
	Photo          string          `json:"photo"`
	Observations   string          `json:"observations"`
	Timestamp      time.Time       `json:"timestamp"`
	Status         string          `json:"status"`
	PickedUpAt     *time.Time      `json:"pickedUpAt,omitempty"`
	Description    string          `json:"description,omitempty"`
}

type MirrorResident struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

type MirrorApartment struct {
	Block string `json:"bloco"`
	Unit  string `json:"apartamento"`
}

func mirrorFromDelivery(d models.DeliveryWithResident) MirrorRecord {
	rec := MirrorRecord{
		ID:             d.ID,
		StaffID:        d.StaffID,
		Resident:       MirrorResident{ID: d.ResidentID, Name: d.ResidentName, Phone: d.ResidentPhone},
		ApartmentInfo:  MirrorApartment{Unit: d.ResidentUnit, Block: deref(d.ResidentBlock)},
		WithdrawalCode: d.PickupCode,
		Photo:          d.PhotoURL,
		Observations:   deref(d.Notes),
		Timestamp:      d.DeliveredAt,
		Status:         d.Status,
	}
	if d.CondominiumID != nil {
		rec.CondominiumID = *d.CondominiumID
	}
	return rec
}

// Delivery converts the mirror copy back into the shape the database returns.
func (r MirrorRecord) Delivery() models.DeliveryWithResident {
	d := models.DeliveryWithResident{
		Delivery: models.Delivery{
			ID:          r.ID,
			ResidentID:  r.Resident.ID,
			StaffID:     r.StaffID,
			PickupCode:  r.WithdrawalCode,
			PhotoURL:    r.Photo,
			Notes:       optional(r.Observations),
			Status:      r.Status,
			DeliveredAt: r.Timestamp,
			PickedUpAt:  r.PickedUpAt,
		},
		ResidentName:  r.Resident.Name,
		ResidentPhone: r.Resident.Phone,
		ResidentUnit:  r.ApartmentInfo.Unit,
		ResidentBlock: optional(r.ApartmentInfo.Block),
	}
	if r.CondominiumID != "" {
		condo := r.CondominiumID
		d.CondominiumID = &condo
	}
	d.PickupDescription = optional(r.Description)
	return d
}

// DeliveryMirror keeps a per-device array of delivery copies in the KV. It is
// a cache: callers treat its errors as non-fatal.
type DeliveryMirror struct {
	KV KV
	mu sync.Mutex
}

func (m *DeliveryMirror) List(ctx context.Context, device string) ([]MirrorRecord, error) {
	raw, err := m.KV.Get(ctx, mirrorKey(device))
	if errors.Is(err, ErrMiss) {
		return []MirrorRecord{}, nil
	}
	if err != nil {
		return nil, err
	}
	records := []MirrorRecord{}
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (m *DeliveryMirror) Append(ctx context.Context, device string, rec MirrorRecord) error {
	return m.update(ctx, device, func(records []MirrorRecord) []MirrorRecord {
		records = append(records, rec)
		if len(records) > mirrorCapacity {
			records = records[len(records)-mirrorCapacity:]
		}
		return records
	})
}

// FindPending returns the newest pending copy with code in the condominium.
func (m *DeliveryMirror) FindPending(ctx context.Context, device, condominiumID, code string) (*MirrorRecord, error) {
	records, err := m.List(ctx, device)
	if err != nil {
		return nil, err
	}
	for i := len(records) - 1; i >= 0; i-- {
		rec := records[i]
		if rec.WithdrawalCode == code && rec.Status == models.DeliveryPending && rec.CondominiumID == condominiumID {
			return &rec, nil
		}
	}
	return nil, nil
}

// MarkPickedUp applies a pickup to every pending copy carrying code in the
// condominium.
func (m *DeliveryMirror) MarkPickedUp(ctx context.Context, device, condominiumID, code string, at time.Time, description string) error {
	return m.update(ctx, device, func(records []MirrorRecord) []MirrorRecord {
		for i := range records {
			rec := records[i]
			if rec.WithdrawalCode == code && rec.Status == models.DeliveryPending && rec.CondominiumID == condominiumID {
				pickedAt := at
				records[i].Status = models.DeliveryPickedUp
				records[i].PickedUpAt = &pickedAt
				records[i].Description = description
			}
		}
		return records
	})
}

func (m *DeliveryMirror) update(ctx context.Context, device string, fn func([]MirrorRecord) []MirrorRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	records, err := m.List(ctx, device)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(fn(records))
	if err != nil {
		return err
	}
	return m.KV.Set(ctx, mirrorKey(device), string(payload), 0)
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
