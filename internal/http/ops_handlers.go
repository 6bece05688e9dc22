package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"frontdesk-backend-go/internal/services"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const readyTimeout = 5 * time.Second

type ReadyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready runs every check concurrently and reports each result.
func (s *Server) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	names := make([]string, 0, len(s.Checks))
	for name := range s.Checks {
		names = append(names, name)
	}
	sort.Strings(names)

	var mu sync.Mutex
	checks := make(map[string]string, len(names))
	failed := false
	g, gctx := errgroup.WithContext(ctx)
	for _, name := range names {
		name, check := name, s.Checks[name]
		g.Go(func() error {
			err := check(gctx)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				checks[name] = err.Error()
				failed = true
				s.Logger.Warn("readiness check failed", zap.String("check", name), zap.Error(err))
				return nil
			}
			checks[name] = "ok"
			return nil
		})
	}
	_ = g.Wait()

	if failed {
		WriteJSON(w, http.StatusServiceUnavailable, ReadyResponse{Status: "unavailable", Checks: checks})
		return
	}
	WriteJSON(w, http.StatusOK, ReadyResponse{Status: "ok", Checks: checks})
}

// DiskCheck fails when the volume holding path has less than minFreeMB free.
func DiskCheck(path string, minFreeMB int) Check {
	return func(ctx context.Context) error {
		sample, err := services.CaptureHost(path)
		if err != nil {
			return err
		}
		free := sample.DiskFreeBytes / (1024 * 1024)
		if free < int64(minFreeMB) {
			return fmt.Errorf("only %d MB free on %s", free, path)
		}
		return nil
	}
}

func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	gatherer := s.Registry
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}).ServeHTTP(w, r)
}

// DeliverySocket streams delivery events of the caller's condominium. Browsers
// cannot set headers on websocket requests, so the access token comes in the
// query string.
func (s *Server) DeliverySocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		s.writeServiceError(w, r, services.ErrUnauthenticated)
		return
	}
	session, _, err := s.authenticate(r.Context(), token)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.Events.Add(conn, session.CondominiumID())
	defer func() {
		s.Events.Remove(conn)
		_ = conn.Close()
	}()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}
