package www

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/icodeforyou/rdn-scraper/config"
	"github.com/icodeforyou/rdn-scraper/database"
	"github.com/icodeforyou/rdn-scraper/ingest"
	"github.com/icodeforyou/rdn-scraper/types"
)

// Store is the read side of the SQLite database the API serves from.
type Store interface {
	GetRuns(ctx context.Context, limit int) ([]database.RunRow, error)
	GetPoints(ctx context.Context, measurement string, from time.Time) ([]types.Point, error)
	GetLogEntries(ctx context.Context, minLvl slog.Level, page, pageSize int) ([]database.LogEntryRow, error)
}

// Status reports the state of the scrape pipeline.
type Status interface {
	State() ingest.State
	LastSummary() (ingest.Summary, bool)
}

// TriggerFunc runs a scrape right away and waits for it.
type TriggerFunc func() (ingest.Summary, error)

type SysInfo struct {
	Version    string    `json:"version"`
	StartedAt  time.Time `json:"startedAt"`
	ConfigFile string    `json:"configFile,omitempty"`
	SinkType   string    `json:"sinkType"`
	Url        string    `json:"url"`
	RunAt      string    `json:"runAt"`
}

type Server struct {
	logger      *slog.Logger
	config      config.AppConfigApi
	measurement string
	hub         *Hub
	mux         *http.ServeMux
}

func NewServer(store Store, status Status, trigger TriggerFunc, sysInfo SysInfo, measurement string, config config.AppConfigApi) *Server {
	logger := slog.Default().With("module", "www")

	s := &Server{
		logger:      logger,
		config:      config,
		measurement: measurement,
		hub:         NewHub(logger),
		mux:         http.NewServeMux(),
	}

	logReqMW := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s.logger.Debug("http request",
				slog.String("method", r.Method),
				slog.String("url", r.URL.String()),
				slog.String("remoteAddr", r.RemoteAddr))
			next.ServeHTTP(w, r)
		})
	}

	s.mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	s.mux.Handle("GET /api/status", logReqMW(NewStatusHandler(status)))

	s.mux.Handle("GET /api/runs", logReqMW(NewRunsHandler(
		logger.With(slog.String("handler", "runs")),
		store)))

	s.mux.Handle("GET /api/prices", logReqMW(NewPricesHandler(
		logger.With(slog.String("handler", "prices")),
		store,
		measurement)))

	s.mux.Handle("POST /api/run", logReqMW(NewRunHandler(
		logger.With(slog.String("handler", "run")),
		trigger)))

	s.mux.Handle("GET /api/log", logReqMW(NewLogHandler(
		logger.With(slog.String("handler", "log")),
		store)))

	s.mux.Handle("GET /api/sysinfo", logReqMW(NewSysInfoHandler(sysInfo)))

	s.mux.HandleFunc("GET /ws", func(w http.ResponseWriter, r *http.Request) {
		name := r.Header.Get("User-Agent")
		client, err := NewClient(s.hub, w, r, name)
		if err != nil {
			s.logger.Error("new websocket client failed", slog.Any("error", err))
			return
		}
		if !s.hub.register(client) {
			client.conn.Close()
			return
		}
		go client.WritePump()
		go client.ReadPump()
	})

	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

// Publish sends the summary to every websocket client.
func (s *Server) Publish(sum ingest.Summary) {
	buf, err := json.Marshal(sum)
	if err != nil {
		s.logger.Error("encoding run summary failed", slog.Any("error", err))
		return
	}
	s.hub.Publish(buf)
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) {
	go s.hub.Run(ctx)

	if s.config.Port == 0 {
		s.logger.Info("api port is 0, status server disabled")
		<-ctx.Done()
		return
	}

	s.logger.Info("starting server...", "port", s.config.Port)
	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.config.Address, s.config.Port),
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	srvErrors := make(chan error, 1)
	go func() {
		srvErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-srvErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("server error", slog.Any("error", err))
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second*5)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("server shutdown failed", slog.Any("error", err))
		}
	}
}
