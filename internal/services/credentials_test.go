package services

import (
	"context"
	"testing"
	"time"

	"frontdesk-backend-go/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	employeeCPF  = "52998224725"
	superUserCPF = "11144477735"
)

type resolverFixture struct {
	employees *fakeEmployees
	condos    *fakeCondos
	residents *fakeResidents
	resolver  *Resolver
}

func newResolverFixture(t *testing.T) *resolverFixture {
	t.Helper()
	condoID := "c1"
	hashed, err := hashArgon2id("hashed-secret")
	require.NoError(t, err)

	f := &resolverFixture{
		employees: &fakeEmployees{rows: []models.Employee{
			{ID: "e1", CondominiumID: &condoID, Name: "Carlos", Identifier: employeeCPF, Secret: "portaria", Role: models.RolePorter, Active: true},
			{ID: "e2", CondominiumID: &condoID, Name: "Inativo", Identifier: "39053344705", Secret: "portaria", Role: models.RolePorter, Active: false},
			{ID: "e3", CondominiumID: &condoID, Name: "Helena", Identifier: "15350946056", Secret: hashed, Role: models.RoleAdministrator, Active: true},
		}},
		condos: newFakeCondos(models.Condominium{
			ID:                  condoID,
			Name:                "Residencial Aurora",
			SuperUserName:       strPtr("Marta"),
			SuperUserIdentifier: strPtr(FormatIdentifier(superUserCPF)),
			SuperUserSecret:     models.NewFlexSecret("654321"),
		}),
		residents: &fakeResidents{rows: []models.Resident{
			{ID: "r1", CondominiumID: condoID, Name: "Ana", Unit: "101", Block: strPtr("A"), Phone: "5511999990001", Active: true},
			{ID: "r2", CondominiumID: "other", Name: "Bruno", Unit: "101", Phone: "5511999990002", Active: true},
		}},
	}
	f.resolver = NewResolver(f.residents, zap.NewNop(),
		EmployeeProvider{Employees: f.employees, Condominiums: f.condos},
		SuperUserProvider{Condominiums: f.condos},
	)
	return f
}

func TestResolveRejectsMalformedIdentifierBeforeAnyStoreCall(t *testing.T) {
	f := newResolverFixture(t)
	for _, raw := range []string{"", "123", "5299822472", "529982247251", "abc", "111.111.111-11", "00000000000"} {
		_, err := f.resolver.Resolve(context.Background(), raw, "portaria")
		require.ErrorIs(t, err, ErrInvalidIdentifier, raw)
	}
	assert.Zero(t, f.employees.calls)
	assert.Zero(t, f.condos.findCalls)
	assert.Zero(t, f.condos.getCalls)
	assert.Zero(t, f.residents.calls)
}

func TestResolveRejectsBlankSecret(t *testing.T) {
	f := newResolverFixture(t)
	_, err := f.resolver.Resolve(context.Background(), employeeCPF, "   ")
	require.ErrorIs(t, err, ErrInvalidSecret)
	assert.Zero(t, f.employees.calls)
}

func TestResolveEmployee(t *testing.T) {
	f := newResolverFixture(t)
	session, err := f.resolver.Resolve(context.Background(), "529.982.247-25", " portaria ")
	require.NoError(t, err)

	assert.Equal(t, "e1", session.Identity.ID)
	assert.Equal(t, models.RolePorter, session.Identity.Role)
	assert.Equal(t, employeeCPF, session.Identity.Identifier)
	assert.Equal(t, ProvenanceEmployee, session.Identity.Provenance)
	require.NotNil(t, session.Condominium)
	assert.Equal(t, "Residencial Aurora", session.Condominium.Name)
	assert.Equal(t, "c1", session.CondominiumID())
	require.Len(t, session.Residents, 1)
	assert.Equal(t, "r1", session.Residents[0].ID)
	assert.Zero(t, f.condos.findCalls)
}

func TestResolveEmployeeWrongSecret(t *testing.T) {
	f := newResolverFixture(t)
	_, err := f.resolver.Resolve(context.Background(), employeeCPF, "portaria2")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestResolveInactiveEmployeeIsRejected(t *testing.T) {
	f := newResolverFixture(t)
	_, err := f.resolver.Resolve(context.Background(), "39053344705", "portaria")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestResolveHashedEmployeeSecret(t *testing.T) {
	f := newResolverFixture(t)
	session, err := f.resolver.Resolve(context.Background(), "15350946056", "hashed-secret")
	require.NoError(t, err)
	assert.Equal(t, "e3", session.Identity.ID)
	assert.Equal(t, models.RoleAdministrator, session.Identity.Role)
}

func TestResolveEmployeeCondominiumLookupFailure(t *testing.T) {
	f := newResolverFixture(t)
	f.condos.getErr = errRemoteDown
	_, err := f.resolver.Resolve(context.Background(), employeeCPF, "portaria")
	require.ErrorIs(t, err, ErrCondominiumLookupFailed)
	require.ErrorIs(t, err, errRemoteDown)
}

func TestResolveLookupFailuresAreRemoteErrors(t *testing.T) {
	f := newResolverFixture(t)
	f.employees.err = errRemoteDown
	_, err := f.resolver.Resolve(context.Background(), employeeCPF, "portaria")
	require.ErrorIs(t, err, ErrLoginLookupFailed)
	require.ErrorIs(t, err, errRemoteDown)

	f.employees.err = nil
	f.condos.findErr = errRemoteDown
	_, err = f.resolver.Resolve(context.Background(), superUserCPF, "654321")
	require.ErrorIs(t, err, ErrLoginLookupFailed)
	assert.Contains(t, err.Error(), "remote store unreachable")
}

func TestResolveEmployeeWithMissingCondominiumIsTolerated(t *testing.T) {
	f := newResolverFixture(t)
	delete(f.condos.rows, "c1")
	session, err := f.resolver.Resolve(context.Background(), employeeCPF, "portaria")
	require.NoError(t, err)
	assert.Nil(t, session.Condominium)
	assert.Equal(t, "c1", session.CondominiumID())
}

func TestResolveSuperUserWithNumericSecret(t *testing.T) {
	f := newResolverFixture(t)
	row := f.condos.rows["c1"]
	require.NoError(t, row.SuperUserSecret.Scan(int64(654321)))
	f.condos.rows["c1"] = row

	session, err := f.resolver.Resolve(context.Background(), superUserCPF, "654321")
	require.NoError(t, err)

	assert.Equal(t, "superuser-c1", session.Identity.ID)
	assert.Equal(t, "Marta", session.Identity.DisplayName)
	assert.Equal(t, models.RoleSuperUser, session.Identity.Role)
	assert.Equal(t, superUserCPF, session.Identity.Identifier)
	assert.Equal(t, ProvenanceSuperUser, session.Identity.Provenance)
	assert.Equal(t, "c1", session.CondominiumID())
	assert.Len(t, session.Residents, 1)

	require.Len(t, f.condos.findForms, 1)
	assert.Contains(t, f.condos.findForms[0], superUserCPF)
	assert.Contains(t, f.condos.findForms[0], "111.444.777-35")
}

func TestResolveSuperUserRecordedID(t *testing.T) {
	f := newResolverFixture(t)
	row := f.condos.rows["c1"]
	row.SuperUserID = strPtr("su-77")
	row.SuperUserIdentifier = strPtr(superUserCPF)
	row.SuperUserSecret = models.NewFlexSecret("abc")
	f.condos.rows["c1"] = row

	session, err := f.resolver.Resolve(context.Background(), superUserCPF, "abc")
	require.NoError(t, err)
	assert.Equal(t, "su-77", session.Identity.ID)
}

func TestResolveSuperUserWrongSecret(t *testing.T) {
	f := newResolverFixture(t)
	_, err := f.resolver.Resolve(context.Background(), superUserCPF, "654322")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestResolveToleratesResidentRosterFailure(t *testing.T) {
	f := newResolverFixture(t)
	f.residents.err = errRemoteDown
	session, err := f.resolver.Resolve(context.Background(), employeeCPF, "portaria")
	require.NoError(t, err)
	assert.Empty(t, session.Residents)
	assert.NotNil(t, session.Residents)
}

func TestResolveEmployeeTakesPrecedence(t *testing.T) {
	f := newResolverFixture(t)
	row := f.condos.rows["c1"]
	row.SuperUserIdentifier = strPtr(employeeCPF)
	row.SuperUserSecret = models.NewFlexSecret("portaria")
	f.condos.rows["c1"] = row

	session, err := f.resolver.Resolve(context.Background(), employeeCPF, "portaria")
	require.NoError(t, err)
	assert.Equal(t, "e1", session.Identity.ID)
	assert.Zero(t, f.condos.findCalls)
}

func TestSuperUserProviderUsesClock(t *testing.T) {
	f := newResolverFixture(t)
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	match, err := SuperUserProvider{Condominiums: f.condos, Now: func() time.Time { return fixed }}.
		Resolve(context.Background(), superUserCPF, "654321")
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, fixed, match.Identity.CreatedAt)
}
