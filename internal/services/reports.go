package services

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"frontdesk-backend-go/internal/models"

	"github.com/xuri/excelize/v2"
)

type ReportStore interface {
	RecentDeliveries(ctx context.Context, condominiumID string, limit int) ([]models.DeliveryReportRow, error)
}

type ReportFilter struct {
	Status string
	From   *time.Time
	To     *time.Time
	Query  string
}

type Report struct {
	Items    []models.DeliveryReportRow `json:"items"`
	Total    int                        `json:"total"`
	Pending  int                        `json:"pending"`
	PickedUp int                        `json:"pickedUp"`
}

type ReportService struct {
	Store    ReportStore
	Limit    int
	Location *time.Location
}

// Build loads the most recent deliveries of the session's condominium and
// applies filter to them.
func (s *ReportService) Build(ctx context.Context, session *Session, filter ReportFilter) (*Report, error) {
	if session == nil {
		return nil, ErrUnauthenticated
	}
	limit := s.Limit
	if limit <= 0 {
		limit = defaultPendingLimit
	}
	rows, err := s.Store.RecentDeliveries(ctx, session.CondominiumID(), limit)
	if err != nil {
		return nil, WrapError(err, "delivery report")
	}
	report := FilterReport(rows, filter)
	return &report, nil
}

// FilterReport keeps the rows matching filter and counts them by status.
// Query matches resident name, unit, block and pickup code, case-insensitively.
func FilterReport(rows []models.DeliveryReportRow, filter ReportFilter) Report {
	query := strings.ToLower(strings.TrimSpace(filter.Query))
	report := Report{Items: []models.DeliveryReportRow{}}
	for _, row := range rows {
		if filter.Status != "" && row.Status != filter.Status {
			continue
		}
		if filter.From != nil && row.DeliveredAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && row.DeliveredAt.After(*filter.To) {
			continue
		}
		if query != "" && !reportMatches(row, query) {
			continue
		}
		report.Items = append(report.Items, row)
		switch row.Status {
		case models.DeliveryPending:
			report.Pending++
		case models.DeliveryPickedUp:
			report.PickedUp++
		}
	}
	report.Total = len(report.Items)
	return report
}

func reportMatches(row models.DeliveryReportRow, query string) bool {
	for _, field := range []string{row.ResidentName, row.ResidentUnit, deref(row.ResidentBlock), row.PickupCode} {
		if strings.Contains(strings.ToLower(field), query) {
			return true
		}
	}
	return false
}

var reportHeader = []string{
	"Código",
	"Morador",
	"Apartamento",
	"Bloco",
	"Status",
	"Recebida em",
	"Retirada em",
	"Descrição da retirada",
	"Observações",
	"Registrada por",
}

var reportColumnWidths = []float64{10, 28, 12, 8, 12, 18, 18, 32, 32, 24}

var reportStatusLabels = map[string]string{
	models.DeliveryPending:   "Pendente",
	models.DeliveryPickedUp:  "Retirada",
	models.DeliveryCancelled: "Cancelada",
}

// ExportXLSX renders rows as a workbook with a frozen header row. Timestamps
// are written in loc.
func ExportXLSX(rows []models.DeliveryReportRow, loc *time.Location) ([]byte, error) {
	if loc == nil {
		loc = time.UTC
	}
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Encomendas"
	index, err := f.NewSheet(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to drop default sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for col, title := range reportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheet, cell, title); err != nil {
			return nil, fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sheet, cell, cell, headerStyle); err != nil {
			return nil, fmt.Errorf("failed to set header style: %w", err)
		}
		name, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetColWidth(sheet, name, name, reportColumnWidths[col]); err != nil {
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}

	for i, row := range rows {
		values := []any{
			row.PickupCode,
			row.ResidentName,
			row.ResidentUnit,
			deref(row.ResidentBlock),
			statusLabel(row.Status),
			row.DeliveredAt.In(loc).Format("02/01/2006 15:04"),
			formatOptionalTime(row.PickedUpAt, loc),
			deref(row.PickupDescription),
			deref(row.Notes),
			deref(row.StaffName),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, fmt.Errorf("failed to freeze panes: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func statusLabel(status string) string {
	if label, ok := reportStatusLabels[status]; ok {
		return label
	}
	return status
}

func formatOptionalTime(t *time.Time, loc *time.Location) string {
	if t == nil {
		return ""
	}
	return t.In(loc).Format("02/01/2006 15:04")
}
