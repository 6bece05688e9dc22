package services

import (
	"context"
	"strings"
	"time"

	"frontdesk-backend-go/internal/models"

	"github.com/google/uuid"
)

// AdminStore persists the records managed from the administration screens.
// Every call is scoped to one condominium; the bool results report whether a
// row in that condominium was affected.
type AdminStore interface {
	ListEmployees(ctx context.Context, condominiumID, search string) ([]models.Employee, error)
	CreateEmployee(ctx context.Context, e models.Employee) error
	UpdateEmployee(ctx context.Context, e models.Employee) (bool, error)
	ToggleEmployee(ctx context.Context, condominiumID, id string) (*models.Employee, error)
	DeleteEmployee(ctx context.Context, condominiumID, id string) (bool, error)

	ListAllResidents(ctx context.Context, condominiumID string) ([]models.Resident, error)
	CreateResident(ctx context.Context, r models.Resident) error
	UpdateResident(ctx context.Context, r models.Resident) (bool, error)
	ToggleResident(ctx context.Context, condominiumID, id string) (*models.Resident, error)
	DeleteResident(ctx context.Context, condominiumID, id string) (bool, error)

	UpdateCondominium(ctx context.Context, c models.Condominium, secretChanged bool) (bool, error)
}

type EmployeeInput struct {
	Name       string `json:"name"`
	Identifier string `json:"identifier"`
	Secret     string `json:"secret"`
	Role       string `json:"role"`
	Active     *bool  `json:"active"`
}

type ResidentInput struct {
	Name   string  `json:"name"`
	Unit   string  `json:"unit"`
	Block  *string `json:"block"`
	Phone  string  `json:"phone"`
	Active *bool   `json:"active"`
}

type CondominiumInput struct {
	Name                string  `json:"name"`
	Address             *string `json:"address"`
	SuperUserName       *string `json:"superUserName"`
	SuperUserIdentifier *string `json:"superUserIdentifier"`
	SuperUserSecret     *string `json:"superUserSecret"`
}

var employeeRoles = map[string]bool{
	models.RolePorter:        true,
	models.RoleCaretaker:     true,
	models.RoleAdministrator: true,
}

const MinSecretLength = 3

type AdminService struct {
	Store        AdminStore
	Condominiums CondominiumStore
	Tokens       TokenService
	Now          func() time.Time
}

func (a *AdminService) scope(session *Session) (string, error) {
	if session == nil {
		return "", ErrUnauthenticated
	}
	condoID := session.CondominiumID()
	if condoID == "" {
		return "", ErrForbidden("Nenhum condomínio vinculado a este acesso.")
	}
	return condoID, nil
}

func (a *AdminService) ListEmployees(ctx context.Context, session *Session, search string) ([]models.Employee, error) {
	condoID, err := a.scope(session)
	if err != nil {
		return nil, err
	}
	return a.Store.ListEmployees(ctx, condoID, strings.TrimSpace(search))
}

func (a *AdminService) CreateEmployee(ctx context.Context, session *Session, in EmployeeInput) (*models.Employee, error) {
	condoID, err := a.scope(session)
	if err != nil {
		return nil, err
	}
	e, err := a.employeeFromInput(in, true)
	if err != nil {
		return nil, err
	}
	e.ID = uuid.NewString()
	e.CondominiumID = &condoID
	e.CreatedAt = a.now().UTC()
	if err := a.Store.CreateEmployee(ctx, e); err != nil {
		return nil, WrapError(err, "create employee")
	}
	return &e, nil
}

func (a *AdminService) UpdateEmployee(ctx context.Context, session *Session, id string, in EmployeeInput) (*models.Employee, error) {
	condoID, err := a.scope(session)
	if err != nil {
		return nil, err
	}
	e, err := a.employeeFromInput(in, false)
	if err != nil {
		return nil, err
	}
	e.ID = id
	e.CondominiumID = &condoID
	ok, err := a.Store.UpdateEmployee(ctx, e)
	if err != nil {
		return nil, WrapError(err, "update employee")
	}
	if !ok {
		return nil, ErrNotFound("Funcionário não encontrado.")
	}
	return &e, nil
}

func (a *AdminService) ToggleEmployee(ctx context.Context, session *Session, id string) (*models.Employee, error) {
	condoID, err := a.scope(session)
	if err != nil {
		return nil, err
	}
	e, err := a.Store.ToggleEmployee(ctx, condoID, id)
	if err != nil {
		return nil, WrapError(err, "toggle employee")
	}
	if e == nil {
		return nil, ErrNotFound("Funcionário não encontrado.")
	}
	return e, nil
}

func (a *AdminService) DeleteEmployee(ctx context.Context, session *Session, id string) error {
	condoID, err := a.scope(session)
	if err != nil {
		return err
	}
	if session.Identity.ID == id {
		return ErrBadRequest("Você não pode excluir o próprio acesso.")
	}
	ok, err := a.Store.DeleteEmployee(ctx, condoID, id)
	if err != nil {
		return WrapError(err, "delete employee")
	}
	if !ok {
		return ErrNotFound("Funcionário não encontrado.")
	}
	return nil
}

// employeeFromInput validates in. On update an empty secret keeps the
// stored one.
func (a *AdminService) employeeFromInput(in EmployeeInput, create bool) (models.Employee, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return models.Employee{}, ErrBadRequest("Informe o nome do funcionário.")
	}
	identifier, err := NormalizeIdentifier(in.Identifier)
	if err != nil {
		return models.Employee{}, err
	}
	role := strings.ToLower(strings.TrimSpace(in.Role))
	if role == "" {
		role = models.RolePorter
	}
	if !employeeRoles[role] {
		return models.Employee{}, ErrBadRequest("Função inválida.")
	}
	e := models.Employee{Name: name, Identifier: identifier, Role: role, Active: true}
	if in.Active != nil {
		e.Active = *in.Active
	}
	secret := strings.TrimSpace(in.Secret)
	switch {
	case secret == "" && create:
		return models.Employee{}, ErrInvalidSecret
	case secret == "":
	case len(secret) < MinSecretLength:
		return models.Employee{}, ErrInvalidSecret.WithMessage("A senha deve ter pelo menos 3 caracteres.")
	default:
		hash, err := a.Tokens.HashSecret(secret)
		if err != nil {
			return models.Employee{}, WrapError(err, "hash secret")
		}
		e.Secret = hash
	}
	return e, nil
}

func (a *AdminService) ListResidents(ctx context.Context, session *Session) ([]models.Resident, error) {
	condoID, err := a.scope(session)
	if err != nil {
		return nil, err
	}
	return a.Store.ListAllResidents(ctx, condoID)
}

func (a *AdminService) CreateResident(ctx context.Context, session *Session, in ResidentInput) (*models.Resident, error) {
	condoID, err := a.scope(session)
	if err != nil {
		return nil, err
	}
	r, err := residentFromInput(in)
	if err != nil {
		return nil, err
	}
	r.ID = uuid.NewString()
	r.CondominiumID = condoID
	if err := a.Store.CreateResident(ctx, r); err != nil {
		return nil, WrapError(err, "create resident")
	}
	return &r, nil
}

func (a *AdminService) UpdateResident(ctx context.Context, session *Session, id string, in ResidentInput) (*models.Resident, error) {
	condoID, err := a.scope(session)
	if err != nil {
		return nil, err
	}
	r, err := residentFromInput(in)
	if err != nil {
		return nil, err
	}
	r.ID = id
	r.CondominiumID = condoID
	ok, err := a.Store.UpdateResident(ctx, r)
	if err != nil {
		return nil, WrapError(err, "update resident")
	}
	if !ok {
		return nil, ErrResidentNotFound
	}
	return &r, nil
}

func (a *AdminService) ToggleResident(ctx context.Context, session *Session, id string) (*models.Resident, error) {
	condoID, err := a.scope(session)
	if err != nil {
		return nil, err
	}
	r, err := a.Store.ToggleResident(ctx, condoID, id)
	if err != nil {
		return nil, WrapError(err, "toggle resident")
	}
	if r == nil {
		return nil, ErrResidentNotFound
	}
	return r, nil
}

func (a *AdminService) DeleteResident(ctx context.Context, session *Session, id string) error {
	condoID, err := a.scope(session)
	if err != nil {
		return err
	}
	ok, err := a.Store.DeleteResident(ctx, condoID, id)
	if err != nil {
		return WrapError(err, "delete resident")
	}
	if !ok {
		return ErrResidentNotFound
	}
	return nil
}

func residentFromInput(in ResidentInput) (models.Resident, error) {
	r := models.Resident{
		Name:   strings.TrimSpace(in.Name),
		Unit:   strings.TrimSpace(in.Unit),
		Phone:  digitsOnly(in.Phone),
		Active: true,
	}
	if in.Block != nil {
		r.Block = optional(strings.TrimSpace(*in.Block))
	}
	if in.Active != nil {
		r.Active = *in.Active
	}
	switch {
	case r.Name == "":
		return r, ErrBadRequest("Informe o nome do morador.")
	case r.Unit == "":
		return r, ErrBadRequest("Informe o apartamento.")
	case len(r.Phone) < 10:
		return r, ErrBadRequest("Informe um telefone com DDD.")
	}
	return r, nil
}

func (a *AdminService) GetCondominium(ctx context.Context, session *Session) (*models.Condominium, error) {
	condoID, err := a.scope(session)
	if err != nil {
		return nil, err
	}
	condo, err := a.Condominiums.GetCondominium(ctx, condoID)
	if err != nil {
		return nil, WrapError(err, "load condominium")
	}
	if condo == nil {
		return nil, ErrNotFound("Condomínio não encontrado.")
	}
	return condo, nil
}

// UpdateCondominium renames the condominium and edits its super-user. A nil
// field keeps the stored value and an empty string clears it; the secret is
// only ever replaced. Super-user fields are reserved to the super-user.
func (a *AdminService) UpdateCondominium(ctx context.Context, session *Session, in CondominiumInput) (*models.Condominium, error) {
	current, err := a.GetCondominium(ctx, session)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, ErrBadRequest("Informe o nome do condomínio.")
	}
	touchesSuperUser := in.SuperUserName != nil || in.SuperUserIdentifier != nil || in.SuperUserSecret != nil
	if touchesSuperUser && session.Identity.Role != models.RoleSuperUser {
		return nil, ErrForbidden("Somente o síndico pode alterar o acesso do síndico.")
	}
	updated := *current
	updated.Name = name
	if in.Address != nil {
		updated.Address = trimmedOptional(in.Address)
	}
	if in.SuperUserName != nil {
		updated.SuperUserName = trimmedOptional(in.SuperUserName)
	}
	if in.SuperUserIdentifier != nil {
		updated.SuperUserIdentifier = nil
		if raw := deref(trimmedOptional(in.SuperUserIdentifier)); raw != "" {
			identifier, err := NormalizeIdentifier(raw)
			if err != nil {
				return nil, err
			}
			updated.SuperUserIdentifier = &identifier
		}
	}
	secretChanged := false
	if secret := deref(trimmedOptional(in.SuperUserSecret)); secret != "" {
		if len(secret) < MinSecretLength {
			return nil, ErrInvalidSecret.WithMessage("A senha deve ter pelo menos 3 caracteres.")
		}
		updated.SuperUserSecret = models.NewFlexSecret(secret)
		secretChanged = true
	}
	ok, err := a.Store.UpdateCondominium(ctx, updated, secretChanged)
	if err != nil {
		return nil, WrapError(err, "update condominium")
	}
	if !ok {
		return nil, ErrNotFound("Condomínio não encontrado.")
	}
	return &updated, nil
}

func (a *AdminService) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

func trimmedOptional(value *string) *string {
	if value == nil {
		return nil
	}
	return optional(strings.TrimSpace(*value))
}
