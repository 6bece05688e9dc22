package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"frontdesk-backend-go/internal/models"
)

const employeeColumns = `id, condominium_id, name, identifier, secret, role, active, created_at`

func (p *Postgres) ListEmployees(ctx context.Context, condominiumID, search string) ([]models.Employee, error) {
	rows := []models.Employee{}
	query := `SELECT ` + employeeColumns + ` FROM employees WHERE condominium_id = $1`
	args := []interface{}{condominiumID}
	if search != "" {
		query += ` AND (lower(name) LIKE $2 OR identifier LIKE $2)`
		args = append(args, "%"+strings.ToLower(search)+"%")
	}
	query += ` ORDER BY name`
	err := p.DB.SelectContext(ctx, &rows, query, args...)
	return rows, err
}

func (p *Postgres) CreateEmployee(ctx context.Context, e models.Employee) error {
	_, err := p.DB.NamedExecContext(ctx, `
INSERT INTO employees (id, condominium_id, name, identifier, secret, role, active, created_at, updated_at)
VALUES (:id, :condominium_id, :name, :identifier, :secret, :role, :active, :created_at, :created_at)
`, e)
	return err
}

// UpdateEmployee keeps the stored secret when e.Secret is empty.
func (p *Postgres) UpdateEmployee(ctx context.Context, e models.Employee) (bool, error) {
	res, err := p.DB.ExecContext(ctx, `
UPDATE employees
SET name = $3, identifier = $4, role = $5, active = $6,
    secret = COALESCE(NULLIF($7, ''), secret), updated_at = now()
WHERE id = $1 AND condominium_id = $2
`, e.ID, e.CondominiumID, e.Name, e.Identifier, e.Role, e.Active, e.Secret)
	return affected(res, err)
}

func (p *Postgres) ToggleEmployee(ctx context.Context, condominiumID, id string) (*models.Employee, error) {
	var row models.Employee
	err := p.DB.GetContext(ctx, &row, `
UPDATE employees SET active = NOT active, updated_at = now()
WHERE id = $1 AND condominium_id = $2
RETURNING `+employeeColumns, id, condominiumID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (p *Postgres) DeleteEmployee(ctx context.Context, condominiumID, id string) (bool, error) {
	res, err := p.DB.ExecContext(ctx, `DELETE FROM employees WHERE id = $1 AND condominium_id = $2`, id, condominiumID)
	return affected(res, err)
}

const residentColumns = `id, condominium_id, name, unit, block, phone, active`

func (p *Postgres) ListAllResidents(ctx context.Context, condominiumID string) ([]models.Resident, error) {
	rows := []models.Resident{}
	err := p.DB.SelectContext(ctx, &rows, `
SELECT `+residentColumns+`
FROM residents
WHERE condominium_id = $1
ORDER BY unit, block NULLS FIRST, name
`, condominiumID)
	return rows, err
}

func (p *Postgres) CreateResident(ctx context.Context, r models.Resident) error {
	_, err := p.DB.NamedExecContext(ctx, `
INSERT INTO residents (id, condominium_id, name, unit, block, phone, active)
VALUES (:id, :condominium_id, :name, :unit, :block, :phone, :active)
`, r)
	return err
}

func (p *Postgres) UpdateResident(ctx context.Context, r models.Resident) (bool, error) {
	res, err := p.DB.ExecContext(ctx, `
UPDATE residents
SET name = $3, unit = $4, block = $5, phone = $6, active = $7, updated_at = now()
WHERE id = $1 AND condominium_id = $2
`, r.ID, r.CondominiumID, r.Name, r.Unit, r.Block, r.Phone, r.Active)
	return affected(res, err)
}

func (p *Postgres) ToggleResident(ctx context.Context, condominiumID, id string) (*models.Resident, error) {
	var row models.Resident
	err := p.DB.GetContext(ctx, &row, `
UPDATE residents SET active = NOT active, updated_at = now()
WHERE id = $1 AND condominium_id = $2
RETURNING `+residentColumns, id, condominiumID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (p *Postgres) DeleteResident(ctx context.Context, condominiumID, id string) (bool, error) {
	res, err := p.DB.ExecContext(ctx, `DELETE FROM residents WHERE id = $1 AND condominium_id = $2`, id, condominiumID)
	return affected(res, err)
}

func (p *Postgres) UpdateCondominium(ctx context.Context, c models.Condominium, secretChanged bool) (bool, error) {
	query := `
UPDATE condominiums
SET name = $2, address = $3, super_user_name = $4, super_user_identifier = $5, updated_at = now()
WHERE id = $1`
	args := []interface{}{c.ID, c.Name, c.Address, c.SuperUserName, c.SuperUserIdentifier}
	if secretChanged {
		query = `
UPDATE condominiums
SET name = $2, address = $3, super_user_name = $4, super_user_identifier = $5, super_user_secret = $6, updated_at = now()
WHERE id = $1`
		args = append(args, c.SuperUserSecret)
	}
	res, err := p.DB.ExecContext(ctx, query, args...)
	return affected(res, err)
}

func affected(res sql.Result, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
