package httpapi

import (
	"context"
	"net/http"
	"time"

	"frontdesk-backend-go/internal/config"
	"frontdesk-backend-go/internal/models"
	"frontdesk-backend-go/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

type Check func(ctx context.Context) error

type Server struct {
	Config     config.Config
	Tokens     services.TokenService
	Sessions   *services.SessionManager
	Deliveries *services.DeliveryService
	Reports    *services.ReportService
	Admin      *services.AdminService
	Media      *services.DiskStorage
	Events     *services.EventHub
	Checks     map[string]Check
	Registry   prometheus.Gatherer
	Logger     *zap.Logger
	NewDevice  func() string
}

func NewTokenService(cfg config.Config) services.TokenService {
	return services.TokenService{
		Secret:     []byte(cfg.JWTSecret),
		Issuer:     cfg.JWTIssuer,
		AccessTTL:  time.Duration(cfg.AccessTTLSeconds) * time.Second,
		RefreshTTL: time.Duration(cfg.RefreshTTLSeconds) * time.Second,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	if len(s.Config.CorsOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.Config.CorsOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", deviceHeader, deviceTokenHeader},
			ExposedHeaders:   []string{"Content-Disposition"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}
	r.Use(RequestLogger(s.Logger))

	r.Route("/api", func(api chi.Router) {
		api.Post("/auth/login", s.Login)
		api.Post("/auth/refresh", s.Refresh)
		api.With(s.WithAuth).Get("/auth/session", s.CurrentSessionHandler)
		api.With(s.WithAuth).Post("/auth/logout", s.Logout)

		api.Get("/session/last-identifier", s.LastIdentifier)
		api.With(s.WithAuth).Get("/session/residents", s.SessionResidents)

		api.Route("/deliveries", func(deliveries chi.Router) {
			deliveries.Use(s.WithAuth)
			deliveries.Post("/", s.RegisterDelivery)
			deliveries.Get("/pending", s.PendingDeliveries)
			deliveries.Get("/code/{code}", s.DeliveryByCode)
			deliveries.Post("/code/{code}/pickup", s.ConfirmPickup)
		})

		api.With(s.WithAuth).Get("/reports/deliveries", s.DeliveryReport)

		api.Route("/admin", func(admin chi.Router) {
			admin.Use(s.WithAuth)
			admin.Use(s.RequireAnyRole(models.RoleAdministrator, models.RoleSuperUser))
			admin.Get("/reports/deliveries.xlsx", s.DeliveryReportXLSX)
			admin.Route("/employees", func(employees chi.Router) {
				employees.Get("/", s.ListEmployees)
				employees.Post("/", s.CreateEmployee)
				employees.Put("/{id}", s.UpdateEmployee)
				employees.Post("/{id}/toggle", s.ToggleEmployee)
				employees.Delete("/{id}", s.DeleteEmployee)
			})
			admin.Route("/residents", func(residents chi.Router) {
				residents.Get("/", s.ListResidents)
				residents.Post("/", s.CreateResident)
				residents.Put("/{id}", s.UpdateResident)
				residents.Post("/{id}/toggle", s.ToggleResident)
				residents.Delete("/{id}", s.DeleteResident)
			})
			admin.Get("/condominium", s.GetCondominium)
			admin.Put("/condominium", s.UpdateCondominium)
		})
	})

	r.Get("/media/*", s.MediaContent)
	r.Get("/ws/deliveries", s.DeliverySocket)
	r.Get("/health", s.Health)
	r.Get("/health/ready", s.Ready)
	r.Get("/metrics", s.Metrics)
	return r
}
