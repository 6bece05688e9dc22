package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"frontdesk-backend-go/internal/models"
	"frontdesk-backend-go/internal/services"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
)

var (
	_ services.EmployeeStore    = (*Postgres)(nil)
	_ services.CondominiumStore = (*Postgres)(nil)
	_ services.ResidentStore    = (*Postgres)(nil)
	_ services.DeliveryStore    = (*Postgres)(nil)
	_ services.ReportStore      = (*Postgres)(nil)
	_ services.AdminStore       = (*Postgres)(nil)
	_ services.AssetRecorder    = (*Postgres)(nil)
)

// Postgres implements the service ports on top of sqlx. Single-row lookups
// return nil, nil when the row does not exist.
type Postgres struct {
	DB *sqlx.DB
}

func New(db *sqlx.DB) *Postgres {
	return &Postgres{DB: db}
}

func (p *Postgres) FindActiveEmployees(ctx context.Context, identifier string) ([]models.Employee, error) {
	rows := []models.Employee{}
	err := p.DB.SelectContext(ctx, &rows, `
SELECT id, condominium_id, name, identifier, secret, role, active, created_at
FROM employees
WHERE identifier = $1 AND active = TRUE
ORDER BY created_at
`, identifier)
	return rows, err
}

const condominiumColumns = `id, name, address, super_user_id, super_user_name, super_user_identifier, super_user_secret, created_at`

func (p *Postgres) GetCondominium(ctx context.Context, id string) (*models.Condominium, error) {
	var row models.Condominium
	err := p.DB.GetContext(ctx, &row, `SELECT `+condominiumColumns+` FROM condominiums WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (p *Postgres) FindCondominiumsBySuperUser(ctx context.Context, identifiers []string) ([]models.Condominium, error) {
	rows := []models.Condominium{}
	if len(identifiers) == 0 {
		return rows, nil
	}
	query, args, err := sqlx.In(`SELECT `+condominiumColumns+` FROM condominiums WHERE super_user_identifier IN (?) ORDER BY created_at`, identifiers)
	if err != nil {
		return nil, err
	}
	err = p.DB.SelectContext(ctx, &rows, p.DB.Rebind(query), args...)
	return rows, err
}

func (p *Postgres) ListResidents(ctx context.Context, condominiumID string) ([]models.Resident, error) {
	rows := []models.Resident{}
	err := p.DB.SelectContext(ctx, &rows, `
SELECT id, condominium_id, name, unit, block, phone, active
FROM residents
WHERE condominium_id = $1 AND active = TRUE
ORDER BY unit, block NULLS FIRST, name
`, condominiumID)
	return rows, err
}

func (p *Postgres) GetResident(ctx context.Context, id string) (*models.Resident, error) {
	var row models.Resident
	err := p.DB.GetContext(ctx, &row, `
SELECT id, condominium_id, name, unit, block, phone, active
FROM residents
WHERE id = $1 AND active = TRUE
`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

const (
	pendingCodeIndex = "uq_deliveries_pending_code"
	uniqueViolation  = "23505"
)

// InsertDelivery reports services.ErrPickupCodeTaken when another pending
// delivery of the condominium already holds the code.
func (p *Postgres) InsertDelivery(ctx context.Context, d models.Delivery) error {
	_, err := p.DB.NamedExecContext(ctx, `
INSERT INTO deliveries (id, condominium_id, resident_id, staff_id, pickup_code, photo_url, notes, status, delivered_at, notification_sent)
VALUES (:id, :condominium_id, :resident_id, :staff_id, :pickup_code, :photo_url, :notes, :status, :delivered_at, :notification_sent)
`, d)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == pendingCodeIndex {
		return services.ErrPickupCodeTaken
	}
	return err
}

func (p *Postgres) MarkNotified(ctx context.Context, id string) error {
	_, err := p.DB.ExecContext(ctx, `UPDATE deliveries SET notification_sent = TRUE, updated_at = now() WHERE id = $1`, id)
	return err
}

const deliverySelect = `
SELECT d.id, d.condominium_id, d.resident_id, d.staff_id, d.pickup_code, d.photo_url, d.notes, d.status,
       d.delivered_at, d.picked_up_at, d.pickup_description, d.notification_sent,
       r.name AS resident_name, r.phone AS resident_phone, r.unit AS resident_unit, r.block AS resident_block
FROM deliveries d
JOIN residents r ON r.id = d.resident_id
`

// condoMatch treats an empty condominium id as "no condominium".
const condoMatch = `d.condominium_id IS NOT DISTINCT FROM NULLIF($1, '')::uuid`

func (p *Postgres) FindDeliveryByCode(ctx context.Context, condominiumID, code string) (*models.DeliveryWithResident, error) {
	var row models.DeliveryWithResident
	err := p.DB.GetContext(ctx, &row, deliverySelect+`
WHERE `+condoMatch+` AND d.pickup_code = $2
ORDER BY (d.status = 'pending') DESC, d.delivered_at DESC
LIMIT 1
`, condominiumID, code)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (p *Postgres) MarkPickedUp(ctx context.Context, id string, at time.Time, description string) (bool, error) {
	res, err := p.DB.ExecContext(ctx, `
UPDATE deliveries
SET status = 'picked_up', picked_up_at = $2, pickup_description = $3, updated_at = now()
WHERE id = $1 AND status = 'pending'
`, id, at, description)
	return affected(res, err)
}

func (p *Postgres) ListPendingDeliveries(ctx context.Context, condominiumID string, limit int) ([]models.DeliveryWithResident, error) {
	rows := []models.DeliveryWithResident{}
	err := p.DB.SelectContext(ctx, &rows, deliverySelect+`
WHERE `+condoMatch+` AND d.status = 'pending'
ORDER BY d.delivered_at DESC
LIMIT $2
`, condominiumID, limit)
	return rows, err
}

func (p *Postgres) PendingCodeExists(ctx context.Context, condominiumID, code string) (bool, error) {
	var exists bool
	err := p.DB.GetContext(ctx, &exists, `
SELECT EXISTS(
  SELECT 1 FROM deliveries d
  WHERE `+condoMatch+` AND d.pickup_code = $2 AND d.status = 'pending'
)
`, condominiumID, code)
	return exists, err
}

func (p *Postgres) RecentDeliveries(ctx context.Context, condominiumID string, limit int) ([]models.DeliveryReportRow, error) {
	rows := []models.DeliveryReportRow{}
	err := p.DB.SelectContext(ctx, &rows, `
SELECT d.id, d.condominium_id, d.resident_id, d.staff_id, d.pickup_code, d.photo_url, d.notes, d.status,
       d.delivered_at, d.picked_up_at, d.pickup_description, d.notification_sent,
       r.name AS resident_name, r.phone AS resident_phone, r.unit AS resident_unit, r.block AS resident_block,
       COALESCE(e.name, CASE
         WHEN d.staff_id IN (c.super_user_id, 'superuser-' || c.id::text) THEN c.super_user_name
       END) AS staff_name
FROM deliveries d
JOIN residents r ON r.id = d.resident_id
LEFT JOIN employees e ON e.id::text = d.staff_id
LEFT JOIN condominiums c ON c.id = d.condominium_id
WHERE `+condoMatch+`
ORDER BY d.delivered_at DESC
LIMIT $2
`, condominiumID, limit)
	return rows, err
}

func (p *Postgres) RecordAsset(ctx context.Context, asset models.MediaAsset) error {
	_, err := p.DB.NamedExecContext(ctx, `
INSERT INTO media_assets (id, bucket, storage_key, content_type, size_bytes, sha256, created_at)
VALUES (:id, :bucket, :storage_key, :content_type, :size_bytes, :sha256, :created_at)
ON CONFLICT (storage_key) DO UPDATE
SET content_type = EXCLUDED.content_type, size_bytes = EXCLUDED.size_bytes, sha256 = EXCLUDED.sha256
`, asset)
	return err
}

func (p *Postgres) DeleteAsset(ctx context.Context, storageKey string) error {
	_, err := p.DB.ExecContext(ctx, `DELETE FROM media_assets WHERE storage_key = $1`, storageKey)
	return err
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.DB.PingContext(ctx)
}
