package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"frontdesk-backend-go/internal/models"
	"frontdesk-backend-go/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestAdminRoutesRequireAdministrativeRole(t *testing.T) {
	env := newTestEnv(t)
	porter := env.login(t, porterIdentifier, porterSecret, "tablet-1")

	for _, path := range []string{"/api/admin/employees", "/api/admin/residents", "/api/admin/condominium", "/api/admin/reports/deliveries.xlsx"} {
		rec := env.do(t, http.MethodGet, path, porter.AccessToken, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code, path)
	}
}

func TestAdminEmployeeCRUDHidesSecret(t *testing.T) {
	env := newTestEnv(t)
	admin := env.login(t, adminIdentifier, adminSecret, "desk-1")

	rec := env.do(t, http.MethodPost, "/api/admin/employees", admin.AccessToken, services.EmployeeInput{
		Name:       "Joana",
		Identifier: "390.533.447-05",
		Secret:     "s3cret",
		Role:       models.RolePorter,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	assert.NotContains(t, raw, "secret")
	assert.Equal(t, "39053344705", raw["identifier"])
	id, _ := raw["id"].(string)
	require.NotEmpty(t, id)

	require.Len(t, env.admin.employees, 1)
	assert.NotEqual(t, "s3cret", env.admin.employees[0].Secret)

	rec = env.do(t, http.MethodGet, "/api/admin/employees", admin.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Items []EmployeeDTO `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Items, 1)
	assert.Equal(t, "Joana", list.Items[0].Name)

	rec = env.do(t, http.MethodPost, "/api/admin/employees/"+id+"/toggle", admin.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var toggled EmployeeDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &toggled))
	assert.Equal(t, !list.Items[0].Active, toggled.Active)

	rec = env.do(t, http.MethodDelete, "/api/admin/employees/"+id, admin.AccessToken, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = env.do(t, http.MethodDelete, "/api/admin/employees/"+id, admin.AccessToken, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminResidentValidation(t *testing.T) {
	env := newTestEnv(t)
	admin := env.login(t, adminIdentifier, adminSecret, "desk-1")

	rec := env.do(t, http.MethodPost, "/api/admin/residents", admin.AccessToken, services.ResidentInput{Name: "Paula", Unit: "301", Phone: "123"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/admin/residents", admin.AccessToken, services.ResidentInput{Name: "Paula", Unit: "301", Phone: "(11) 98888-7777"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resident models.Resident
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resident))
	assert.Equal(t, "c1", resident.CondominiumID)
	assert.Equal(t, "11988887777", resident.Phone)
}

func TestAdminCondominium(t *testing.T) {
	env := newTestEnv(t)
	admin := env.login(t, adminIdentifier, adminSecret, "desk-1")

	rec := env.do(t, http.MethodGet, "/api/admin/condominium", admin.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var condo models.Condominium
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &condo))
	assert.Equal(t, "Residencial Aurora", condo.Name)

	rec = env.do(t, http.MethodPut, "/api/admin/condominium", admin.AccessToken, services.CondominiumInput{Name: "  "})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPut, "/api/admin/condominium", admin.AccessToken, services.CondominiumInput{Name: "Residencial Aurora II"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &condo))
	assert.Equal(t, "Residencial Aurora II", condo.Name)
}

func TestAdministratorCannotRewriteSuperUserAccess(t *testing.T) {
	env := newTestEnv(t)
	admin := env.login(t, adminIdentifier, adminSecret, "desk-1")

	identifier := "390.533.447-05"
	secret := "takeover"
	rec := env.do(t, http.MethodPut, "/api/admin/condominium", admin.AccessToken, services.CondominiumInput{
		Name:                "Residencial Aurora",
		SuperUserIdentifier: &identifier,
		SuperUserSecret:     &secret,
	})
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "forbidden", decodeError(t, rec).Code)
}

func reportRows() []models.DeliveryReportRow {
	pickedAt := time.Date(2026, 3, 11, 11, 0, 0, 0, time.UTC)
	return []models.DeliveryReportRow{
		{DeliveryWithResident: models.DeliveryWithResident{
			Delivery:     models.Delivery{ID: "d1", PickupCode: "11111", Status: models.DeliveryPending, DeliveredAt: time.Date(2026, 3, 12, 9, 0, 0, 0, time.UTC)},
			ResidentName: "Ana Souza", ResidentUnit: "101",
		}, StaffName: strPtr("Carlos")},
		{DeliveryWithResident: models.DeliveryWithResident{
			Delivery:     models.Delivery{ID: "d2", PickupCode: "22222", Status: models.DeliveryPickedUp, DeliveredAt: time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC), PickedUpAt: &pickedAt},
			ResidentName: "Bruno Lima", ResidentUnit: "102",
		}},
	}
}

func TestDeliveryReport(t *testing.T) {
	env := newTestEnv(t)
	env.reports.rows = reportRows()
	porter := env.login(t, porterIdentifier, porterSecret, "tablet-1")

	rec := env.do(t, http.MethodGet, "/api/reports/deliveries", porter.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var report services.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, 2, report.Total)
	assert.Equal(t, 1, report.Pending)
	assert.Equal(t, 1, report.PickedUp)

	rec = env.do(t, http.MethodGet, "/api/reports/deliveries?from=2026-03-10&to=2026-03-10", porter.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	require.Equal(t, 1, report.Total)
	assert.Equal(t, "d2", report.Items[0].ID)

	rec = env.do(t, http.MethodGet, "/api/reports/deliveries?to=yesterday", porter.AccessToken, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	env.reports.err = errBoom
	rec = env.do(t, http.MethodGet, "/api/reports/deliveries", porter.AccessToken, nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "Erro interno do servidor.", resp.Message)
	assert.NotContains(t, rec.Body.String(), "boom")
}

func TestParseReportFilter(t *testing.T) {
	loc := time.FixedZone("BRT", -3*60*60)
	cases := []struct {
		name    string
		query   string
		wantErr bool
		check   func(t *testing.T, f services.ReportFilter)
	}{
		{name: "empty", query: "", check: func(t *testing.T, f services.ReportFilter) {
			assert.Empty(t, f.Status)
			assert.Nil(t, f.From)
			assert.Nil(t, f.To)
		}},
		{name: "all status", query: "status=all&q=+ana+", check: func(t *testing.T, f services.ReportFilter) {
			assert.Empty(t, f.Status)
			assert.Equal(t, "ana", f.Query)
		}},
		{name: "to covers whole day", query: "from=2026-03-10&to=2026-03-10", check: func(t *testing.T, f services.ReportFilter) {
			assert.Equal(t, time.Date(2026, 3, 10, 3, 0, 0, 0, time.UTC), f.From.UTC())
			assert.Equal(t, time.Date(2026, 3, 11, 2, 59, 59, 999999999, time.UTC), f.To.UTC())
		}},
		{name: "pending", query: "status=pending", check: func(t *testing.T, f services.ReportFilter) {
			assert.Equal(t, models.DeliveryPending, f.Status)
		}},
		{name: "unknown status", query: "status=lost", wantErr: true},
		{name: "bad from", query: "from=10/03/2026", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/reports/deliveries?"+tc.query, nil)
			filter, err := parseReportFilter(req, loc)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			tc.check(t, filter)
		})
	}
}

func TestDeliveryReportXLSX(t *testing.T) {
	env := newTestEnv(t)
	env.reports.rows = reportRows()
	admin := env.login(t, adminIdentifier, adminSecret, "desk-1")

	rec := env.do(t, http.MethodGet, "/api/admin/reports/deliveries.xlsx?status=pending", admin.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment; filename=\"encomendas-")

	book, err := excelize.OpenReader(rec.Body)
	require.NoError(t, err)
	defer book.Close()
	rows, err := book.GetRows("Encomendas")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "11111", rows[1][0])
}
