package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"frontdesk-backend-go/internal/models"
	"frontdesk-backend-go/internal/notify"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	maxCodeAttempts     = 10
	defaultPendingLimit = 100
	SourceRemote        = "remote"
	SourceMirror        = "mirror"
)

type DeliveryStore interface {
	InsertDelivery(ctx context.Context, d models.Delivery) error
	MarkNotified(ctx context.Context, id string) error
	// FindDeliveryByCode prefers a pending record, then the most recent one.
	// It returns nil, nil when no record carries code.
	FindDeliveryByCode(ctx context.Context, condominiumID, code string) (*models.DeliveryWithResident, error)
	// MarkPickedUp reports false when the record was no longer pending.
	MarkPickedUp(ctx context.Context, id string, at time.Time, description string) (bool, error)
	ListPendingDeliveries(ctx context.Context, condominiumID string, limit int) ([]models.DeliveryWithResident, error)
	PendingCodeExists(ctx context.Context, condominiumID, code string) (bool, error)
}

type RegisterInput struct {
	ResidentID string
	Photo      *Photo
	Notes      string
}

// DeliveryView is a delivery plus where it was read from.
type DeliveryView struct {
	models.DeliveryWithResident
	Source string `json:"source"`
}

type DeliveryService struct {
	Deliveries    DeliveryStore
	Residents     ResidentStore
	Photos        PhotoStorage
	Mirror        *DeliveryMirror
	Notifier      notify.Sender
	Renderer      notify.Renderer
	Events        EventPublisher
	Metrics       *Instruments
	Logger        *zap.Logger
	Now           func() time.Time
	Codes         func() string
	NotifyTimeout time.Duration
	PendingLimit  int

	inflight sync.WaitGroup
}

// GenerateCode draws a five digit code in 10000..99999.
func GenerateCode() string {
	n, err := rand.Int(rand.Reader, big.NewInt(90000))
	if err != nil {
		return fmt.Sprintf("%05d", 10000+time.Now().UnixNano()%90000)
	}
	return fmt.Sprintf("%05d", 10000+n.Int64())
}

// Register stores the photo, writes the pending record, mirrors it and
// notifies the resident. Only the photo upload and the insert can fail the
// call; the mirror and the notification are best effort.
func (s *DeliveryService) Register(ctx context.Context, session *Session, in RegisterInput) (*models.DeliveryWithResident, error) {
	if session == nil {
		return nil, ErrUnauthenticated
	}
	if in.Photo == nil || in.Photo.Body == nil {
		return nil, ErrPhotoRequired
	}
	resident, err := s.resident(ctx, session, in.ResidentID)
	if err != nil {
		return nil, err
	}
	condoID := session.CondominiumID()

	code, err := s.pickCode(ctx, condoID)
	if err != nil {
		s.Metrics.Registration("code_exhausted")
		return nil, err
	}

	now := s.now().UTC()
	key := fmt.Sprintf("%s/%s/%d.jpg", BucketDeliveries, resident.ID, now.UnixMilli())
	contentType := in.Photo.ContentType
	if contentType == "" {
		contentType = "image/jpeg"
	}
	photoURL, err := s.Photos.Upload(ctx, key, contentType, in.Photo.Body)
	if err != nil {
		s.Metrics.Registration("upload_failed")
		return nil, ErrStorageUploadFailed.WithCause(err)
	}

	record := models.DeliveryWithResident{
		Delivery: models.Delivery{
			ID:               uuid.NewString(),
			CondominiumID:    optional(condoID),
			ResidentID:       resident.ID,
			StaffID:          session.Identity.ID,
			PickupCode:       code,
			PhotoURL:         photoURL,
			Notes:            optional(strings.TrimSpace(in.Notes)),
			Status:           models.DeliveryPending,
			DeliveredAt:      now,
			NotificationSent: false,
		},
		ResidentName:  resident.Name,
		ResidentPhone: resident.Phone,
		ResidentUnit:  resident.Unit,
		ResidentBlock: resident.Block,
	}
	if err := s.insert(ctx, condoID, &record.Delivery); err != nil {
		if rmErr := s.Photos.Remove(ctx, key); rmErr != nil {
			s.Logger.Warn("orphan photo not removed", zap.String("key", key), zap.Error(rmErr))
		}
		if errors.Is(err, ErrCodeSpaceExhausted) {
			s.Metrics.Registration("code_exhausted")
			return nil, err
		}
		s.Metrics.Registration("insert_failed")
		return nil, ErrRecordInsertFailed.WithCause(err)
	}
	s.Metrics.Registration("success")

	if s.Mirror != nil {
		if err := s.Mirror.Append(ctx, session.DeviceID, mirrorFromDelivery(record)); err != nil {
			s.Logger.Warn("delivery mirror append failed", zap.String("delivery_id", record.ID), zap.Error(err))
		}
	}
	s.publish(condoID, EventDeliveryRegistered, record)

	if s.notifyDelivery(ctx, session, record) {
		record.NotificationSent = true
	}
	return &record, nil
}

// insert writes d, drawing a fresh code whenever a concurrent registration
// took the one d carries.
func (s *DeliveryService) insert(ctx context.Context, condoID string, d *models.Delivery) error {
	for attempt := 1; ; attempt++ {
		err := s.Deliveries.InsertDelivery(ctx, *d)
		if !errors.Is(err, ErrPickupCodeTaken) {
			return err
		}
		if attempt >= maxCodeAttempts {
			return ErrCodeSpaceExhausted
		}
		s.Logger.Info("pickup code collided on insert, drawing another", zap.String("code", d.PickupCode))
		code, err := s.pickCode(ctx, condoID)
		if err != nil {
			return err
		}
		d.PickupCode = code
	}
}

func (s *DeliveryService) resident(ctx context.Context, session *Session, id string) (*models.Resident, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrResidentNotFound
	}
	resident := session.Resident(id)
	if resident == nil && s.Residents != nil {
		fetched, err := s.Residents.GetResident(ctx, id)
		if err != nil {
			return nil, WrapError(err, "resident lookup")
		}
		resident = fetched
	}
	if resident == nil {
		return nil, ErrResidentNotFound
	}
	if condoID := session.CondominiumID(); condoID != "" && resident.CondominiumID != condoID {
		return nil, ErrResidentNotFound
	}
	return resident, nil
}

// pickCode avoids codes already held by a pending delivery of the same
// condominium. A failed existence check accepts the candidate and leaves the
// unique index as the final guard.
func (s *DeliveryService) pickCode(ctx context.Context, condoID string) (string, error) {
	gen := s.Codes
	if gen == nil {
		gen = GenerateCode
	}
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code := gen()
		exists, err := s.Deliveries.PendingCodeExists(ctx, condoID, code)
		if err != nil {
			s.Logger.Warn("pickup code check failed", zap.Error(err))
			return code, nil
		}
		if !exists {
			return code, nil
		}
	}
	return "", ErrCodeSpaceExhausted
}

// notifyDelivery sends the arrival message and flags the record on success.
// It survives cancellation of the caller's context.
func (s *DeliveryService) notifyDelivery(ctx context.Context, session *Session, record models.DeliveryWithResident) bool {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.notifyTimeout())
	defer cancel()

	msg, err := s.Renderer.Delivery(session.CondominiumName(), recipientOf(record), record.PickupCode, deref(record.Notes), record.PhotoURL, record.DeliveredAt)
	if err != nil {
		s.Logger.Error("render delivery message", zap.Error(err))
		return false
	}
	if err := s.Notifier.Send(ctx, msg); err != nil {
		s.Metrics.Notification(string(notify.KindDelivery), false)
		s.Logger.Warn("delivery notification failed",
			zap.String("delivery_id", record.ID),
			zap.Error(ErrNotificationFailed.WithCause(err)),
		)
		return false
	}
	s.Metrics.Notification(string(notify.KindDelivery), true)
	if err := s.Deliveries.MarkNotified(ctx, record.ID); err != nil {
		s.Logger.Warn("notification flag update failed", zap.String("delivery_id", record.ID), zap.Error(err))
		return false
	}
	return true
}

// LookupByCode reads the database first and falls back to a pending copy in
// the device mirror when the database has no match or cannot be reached.
func (s *DeliveryService) LookupByCode(ctx context.Context, session *Session, code string) (*DeliveryView, error) {
	if session == nil {
		return nil, ErrUnauthenticated
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrCodeNotFound
	}
	condoID := session.CondominiumID()

	record, err := s.Deliveries.FindDeliveryByCode(ctx, condoID, code)
	if err != nil {
		s.Logger.Warn("delivery lookup failed, trying mirror", zap.String("code", code), zap.Error(err))
	} else if record != nil {
		return &DeliveryView{DeliveryWithResident: *record, Source: SourceRemote}, nil
	}

	if s.Mirror != nil {
		mirrored, merr := s.Mirror.FindPending(ctx, session.DeviceID, condoID, code)
		if merr != nil {
			s.Logger.Warn("delivery mirror read failed", zap.Error(merr))
		} else if mirrored != nil {
			s.Metrics.MirrorFallback()
			return &DeliveryView{DeliveryWithResident: mirrored.Delivery(), Source: SourceMirror}, nil
		}
	}
	return nil, ErrCodeNotFound
}

// ConfirmPickup re-reads the record, refuses one already picked up and
// updates it only while it is still pending.
func (s *DeliveryService) ConfirmPickup(ctx context.Context, session *Session, code, description string) (*models.DeliveryWithResident, error) {
	if session == nil {
		return nil, ErrUnauthenticated
	}
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, ErrDescriptionRequired
	}
	code = strings.TrimSpace(code)
	condoID := session.CondominiumID()

	current, err := s.Deliveries.FindDeliveryByCode(ctx, condoID, code)
	if err != nil {
		s.Metrics.Pickup("lookup_failed")
		return nil, ErrPickupUpdateFailed.WithCause(err)
	}
	if current == nil {
		s.Metrics.Pickup("not_found")
		return nil, ErrCodeNotFound
	}
	switch current.Status {
	case models.DeliveryPickedUp:
		s.Metrics.Pickup("already_picked_up")
		return nil, ErrAlreadyPickedUp
	case models.DeliveryCancelled:
		s.Metrics.Pickup("cancelled")
		return nil, ErrBadRequest("Esta encomenda foi cancelada.")
	}

	now := s.now().UTC()
	updated, err := s.Deliveries.MarkPickedUp(ctx, current.ID, now, description)
	if err != nil {
		s.Metrics.Pickup("update_failed")
		return nil, ErrPickupUpdateFailed.WithCause(err)
	}
	if !updated {
		s.Metrics.Pickup("already_picked_up")
		return nil, ErrAlreadyPickedUp
	}
	s.Metrics.Pickup("success")

	record := *current
	record.Status = models.DeliveryPickedUp
	record.PickedUpAt = &now
	record.PickupDescription = &description

	if s.Mirror != nil {
		if err := s.Mirror.MarkPickedUp(ctx, session.DeviceID, condoID, record.PickupCode, now, description); err != nil {
			s.Logger.Warn("delivery mirror update failed", zap.String("delivery_id", record.ID), zap.Error(err))
		}
	}
	s.publish(condoID, EventDeliveryPickedUp, record)
	s.notifyWithdrawal(ctx, session.CondominiumName(), record)
	return &record, nil
}

func (s *DeliveryService) notifyWithdrawal(ctx context.Context, condoName string, record models.DeliveryWithResident) {
	ctx = context.WithoutCancel(ctx)
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		ctx, cancel := context.WithTimeout(ctx, s.notifyTimeout())
		defer cancel()
		msg, err := s.Renderer.Withdrawal(condoName, recipientOf(record), record.PickupCode, deref(record.PickupDescription), s.now())
		if err != nil {
			s.Logger.Error("render withdrawal message", zap.Error(err))
			return
		}
		if err := s.Notifier.Send(ctx, msg); err != nil {
			s.Metrics.Notification(string(notify.KindWithdrawal), false)
			s.Logger.Warn("withdrawal notification failed",
				zap.String("delivery_id", record.ID),
				zap.Error(ErrNotificationFailed.WithCause(err)),
			)
			return
		}
		s.Metrics.Notification(string(notify.KindWithdrawal), true)
	}()
}

// Drain waits for background notifications to finish.
func (s *DeliveryService) Drain() {
	s.inflight.Wait()
}

// ListPending merges pending database records with pending mirror copies,
// keyed by pickup code, database first. Mirror copies whose record has since
// left the pending state are reconciled and dropped.
func (s *DeliveryService) ListPending(ctx context.Context, session *Session) ([]DeliveryView, error) {
	if session == nil {
		return nil, ErrUnauthenticated
	}
	condoID := session.CondominiumID()
	limit := s.PendingLimit
	if limit <= 0 {
		limit = defaultPendingLimit
	}

	remoteOK := true
	remote, err := s.Deliveries.ListPendingDeliveries(ctx, condoID, limit)
	if err != nil {
		remoteOK = false
		s.Logger.Warn("pending list unavailable, serving mirror", zap.Error(err))
	}

	items := make([]DeliveryView, 0, len(remote))
	seen := map[string]bool{}
	for _, rec := range remote {
		if seen[rec.PickupCode] {
			continue
		}
		seen[rec.PickupCode] = true
		items = append(items, DeliveryView{DeliveryWithResident: rec, Source: SourceRemote})
	}

	if s.Mirror == nil {
		return items, nil
	}
	copies, err := s.Mirror.List(ctx, session.DeviceID)
	if err != nil {
		s.Logger.Warn("delivery mirror read failed", zap.Error(err))
		if !remoteOK {
			return nil, WrapError(err, "pending deliveries")
		}
		return items, nil
	}
	for i := len(copies) - 1; i >= 0; i-- {
		rec := copies[i]
		if rec.Status != models.DeliveryPending || rec.CondominiumID != condoID || seen[rec.WithdrawalCode] {
			continue
		}
		if remoteOK && s.settledRemotely(ctx, session.DeviceID, condoID, rec) {
			continue
		}
		seen[rec.WithdrawalCode] = true
		items = append(items, DeliveryView{DeliveryWithResident: rec.Delivery(), Source: SourceMirror})
	}
	return items, nil
}

// settledRemotely reports whether the database holds the mirrored delivery in
// a final state, and brings the mirror copy up to date when it does.
func (s *DeliveryService) settledRemotely(ctx context.Context, device, condoID string, rec MirrorRecord) bool {
	current, err := s.Deliveries.FindDeliveryByCode(ctx, condoID, rec.WithdrawalCode)
	if err != nil || current == nil || current.ID != rec.ID || current.Status == models.DeliveryPending {
		return false
	}
	if current.Status == models.DeliveryPickedUp {
		at := s.now().UTC()
		if current.PickedUpAt != nil {
			at = *current.PickedUpAt
		}
		if err := s.Mirror.MarkPickedUp(ctx, device, condoID, rec.WithdrawalCode, at, deref(current.PickupDescription)); err != nil {
			s.Logger.Warn("delivery mirror reconcile failed", zap.Error(err))
		}
	}
	return true
}

func (s *DeliveryService) publish(condoID, kind string, record models.DeliveryWithResident) {
	if s.Events == nil {
		return
	}
	s.Events.Publish(condoID, DeliveryEvent{Type: kind, Delivery: record, At: s.now().UTC()})
}

func (s *DeliveryService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *DeliveryService) notifyTimeout() time.Duration {
	if s.NotifyTimeout <= 0 {
		return 10 * time.Second
	}
	return s.NotifyTimeout
}

func recipientOf(record models.DeliveryWithResident) notify.Recipient {
	return notify.Recipient{
		Name:  record.ResidentName,
		Phone: record.ResidentPhone,
		Unit:  record.ResidentUnit,
		Block: deref(record.ResidentBlock),
	}
}
