package services

import (
	"context"
	"time"

	"frontdesk-backend-go/internal/models"

	"go.uber.org/zap"
)

const (
	ProvenanceEmployee  = "employee"
	ProvenanceSuperUser = "superuser"
)

// StaffIdentity is an authenticated front-desk operator. Employee identities
// are backed by a row; super-user identities are synthesized from the
// condominium record.
type StaffIdentity struct {
	ID            string    `json:"id"`
	DisplayName   string    `json:"name"`
	Identifier    string    `json:"identifier"`
	Role          string    `json:"role"`
	Active        bool      `json:"active"`
	CondominiumID *string   `json:"condominiumId,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	Provenance    string    `json:"provenance"`
}

type EmployeeStore interface {
	FindActiveEmployees(ctx context.Context, identifier string) ([]models.Employee, error)
}

type CondominiumStore interface {
	// GetCondominium returns nil, nil when no row exists.
	GetCondominium(ctx context.Context, id string) (*models.Condominium, error)
	FindCondominiumsBySuperUser(ctx context.Context, identifiers []string) ([]models.Condominium, error)
}

type ResidentStore interface {
	ListResidents(ctx context.Context, condominiumID string) ([]models.Resident, error)
	// GetResident returns nil, nil when no row exists.
	GetResident(ctx context.Context, id string) (*models.Resident, error)
}

// Match is a provider's answer: the identity and, when known, its condominium.
type Match struct {
	Identity    StaffIdentity
	Condominium *models.Condominium
}

// IdentityProvider resolves one class of identity. A nil match with a nil
// error means the credentials do not belong to this class.
type IdentityProvider interface {
	Name() string
	Resolve(ctx context.Context, identifier, secret string) (*Match, error)
}

type EmployeeProvider struct {
	Employees    EmployeeStore
	Condominiums CondominiumStore
}

func (p EmployeeProvider) Name() string { return ProvenanceEmployee }

func (p EmployeeProvider) Resolve(ctx context.Context, identifier, secret string) (*Match, error) {
	rows, err := p.Employees.FindActiveEmployees(ctx, identifier)
	if err != nil {
		return nil, ErrLoginLookupFailed.WithCause(err)
	}
	for _, row := range rows {
		if !row.Active || !verifyStoredSecret(secret, row.Secret) {
			continue
		}
		match := &Match{Identity: StaffIdentity{
			ID:            row.ID,
			DisplayName:   row.Name,
			Identifier:    identifier,
			Role:          row.Role,
			Active:        row.Active,
			CondominiumID: row.CondominiumID,
			CreatedAt:     row.CreatedAt,
			Provenance:    ProvenanceEmployee,
		}}
		if row.CondominiumID != nil && *row.CondominiumID != "" {
			condo, err := p.Condominiums.GetCondominium(ctx, *row.CondominiumID)
			if err != nil {
				return nil, ErrCondominiumLookupFailed.WithCause(err)
			}
			match.Condominium = condo
		}
		return match, nil
	}
	return nil, nil
}

type SuperUserProvider struct {
	Condominiums CondominiumStore
	Now          func() time.Time
}

func (p SuperUserProvider) Name() string { return ProvenanceSuperUser }

func (p SuperUserProvider) Resolve(ctx context.Context, identifier, secret string) (*Match, error) {
	condos, err := p.Condominiums.FindCondominiumsBySuperUser(ctx, identifierForms(identifier))
	if err != nil {
		return nil, ErrLoginLookupFailed.WithCause(err)
	}
	for i := range condos {
		condo := condos[i]
		if !condo.SuperUserSecret.Matches(secret) {
			continue
		}
		id := "superuser-" + condo.ID
		if condo.SuperUserID != nil && *condo.SuperUserID != "" {
			id = *condo.SuperUserID
		}
		name := "Síndico"
		if condo.SuperUserName != nil && *condo.SuperUserName != "" {
			name = *condo.SuperUserName
		}
		condoID := condo.ID
		now := time.Now
		if p.Now != nil {
			now = p.Now
		}
		return &Match{
			Identity: StaffIdentity{
				ID:            id,
				DisplayName:   name,
				Identifier:    identifier,
				Role:          models.RoleSuperUser,
				Active:        true,
				CondominiumID: &condoID,
				CreatedAt:     now().UTC(),
				Provenance:    ProvenanceSuperUser,
			},
			Condominium: &condo,
		}, nil
	}
	return nil, nil
}

// Resolver tries each provider in order; the first match wins.
type Resolver struct {
	Providers []IdentityProvider
	Residents ResidentStore
	Logger    *zap.Logger
}

func NewResolver(residents ResidentStore, logger *zap.Logger, providers ...IdentityProvider) *Resolver {
	return &Resolver{Providers: providers, Residents: residents, Logger: logger}
}

// Resolve validates both inputs before any store call, then builds the session
// for the first provider that recognizes the credentials.
func (r *Resolver) Resolve(ctx context.Context, rawIdentifier, rawSecret string) (*Session, error) {
	identifier, err := NormalizeIdentifier(rawIdentifier)
	if err != nil {
		return nil, err
	}
	secret, err := NormalizeSecret(rawSecret)
	if err != nil {
		return nil, err
	}

	var match *Match
	for _, provider := range r.Providers {
		match, err = provider.Resolve(ctx, identifier, secret)
		if err != nil {
			return nil, err
		}
		if match != nil {
			break
		}
	}
	if match == nil {
		return nil, ErrInvalidCredentials
	}

	session := &Session{
		Identity:    match.Identity,
		Condominium: match.Condominium,
		Residents:   []models.Resident{},
	}
	if condoID := session.CondominiumID(); condoID != "" && r.Residents != nil {
		residents, err := r.Residents.ListResidents(ctx, condoID)
		if err != nil {
			r.Logger.Warn("resident roster unavailable",
				zap.String("condominium_id", condoID),
				zap.Error(err),
			)
		} else if residents != nil {
			session.Residents = residents
		}
	}
	return session, nil
}
