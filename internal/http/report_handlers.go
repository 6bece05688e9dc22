package httpapi

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"frontdesk-backend-go/internal/models"
	"frontdesk-backend-go/internal/services"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (s *Server) DeliveryReport(w http.ResponseWriter, r *http.Request) {
	report, err := s.buildReport(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, report)
}

func (s *Server) DeliveryReportXLSX(w http.ResponseWriter, r *http.Request) {
	report, err := s.buildReport(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	data, err := services.ExportXLSX(report.Items, s.reportLocation())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	filename := fmt.Sprintf("encomendas-%s.xlsx", time.Now().In(s.reportLocation()).Format("2006-01-02"))
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) buildReport(r *http.Request) (*services.Report, error) {
	filter, err := parseReportFilter(r, s.reportLocation())
	if err != nil {
		return nil, err
	}
	return s.Reports.Build(r.Context(), CurrentSession(r), filter)
}

func (s *Server) reportLocation() *time.Location {
	if s.Reports != nil && s.Reports.Location != nil {
		return s.Reports.Location
	}
	return time.UTC
}

// parseReportFilter reads status, from, to and q. Dates are calendar days in
// loc and "to" covers the whole day.
func parseReportFilter(r *http.Request, loc *time.Location) (services.ReportFilter, error) {
	query := r.URL.Query()
	filter := services.ReportFilter{Query: strings.TrimSpace(query.Get("q"))}
	switch status := strings.TrimSpace(query.Get("status")); status {
	case "", "all":
	case models.DeliveryPending, models.DeliveryPickedUp, models.DeliveryCancelled:
		filter.Status = status
	default:
		return filter, services.ErrBadRequest("Status inválido.")
	}
	if raw := strings.TrimSpace(query.Get("from")); raw != "" {
		from, err := time.ParseInLocation("2006-01-02", raw, loc)
		if err != nil {
			return filter, services.ErrBadRequest("Data inicial inválida.")
		}
		filter.From = &from
	}
	if raw := strings.TrimSpace(query.Get("to")); raw != "" {
		day, err := time.ParseInLocation("2006-01-02", raw, loc)
		if err != nil {
			return filter, services.ErrBadRequest("Data final inválida.")
		}
		to := day.AddDate(0, 0, 1).Add(-time.Nanosecond)
		filter.To = &to
	}
	return filter, nil
}
