package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/mmynk/splitroom/internal/api"
	"github.com/mmynk/splitroom/internal/calculator"
	"github.com/mmynk/splitroom/internal/config"
	"github.com/mmynk/splitroom/internal/metrics"
	"github.com/mmynk/splitroom/internal/navigation"
	"github.com/mmynk/splitroom/internal/notify"
	"github.com/mmynk/splitroom/internal/realtime"
	"github.com/mmynk/splitroom/internal/session"
	"github.com/mmynk/splitroom/internal/storage/sqlite"
)

// app holds the wiring shared by every command.
type app struct {
	cfg      *config.Config
	stdin    io.Reader
	stdout   io.Writer
	stderr   io.Writer
	store    *session.Store
	client   *api.Client
	router   *navigation.Router
	notifier notify.Notifier
	metrics  *metrics.Metrics
	calc     calculator.Calculator

	metricsServer *http.Server
	socket        *realtime.Socket
}

func newApp(ctx context.Context, cfg *config.Config, stdin io.Reader, stdout, stderr io.Writer) (*app, error) {
	a := &app{
		cfg:    cfg,
		stdin:  stdin,
		stdout: stdout,
		stderr: stderr,
		router: navigation.NewRouter(navigation.RouteDashboard),
		calc:   calculator.Calculator{Policy: cfg.Policy()},
	}
	a.notifier = notify.NewWriter(stdout)
	a.router.OnNavigate(func(route string) {
		if route == navigation.RouteLogin {
			fmt.Fprintln(stderr, "→ run 'splitroom login' to continue")
		}
	})

	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		a.metrics = metrics.New(reg)
		a.serveMetrics(reg)
	}

	durable, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open session database: %w", err)
	}
	slog.Debug("Storage initialized", "database", cfg.DBPath)

	a.store = session.New(durable)
	if err := a.store.Open(ctx); err != nil {
		durable.Close()
		return nil, fmt.Errorf("open session: %w", err)
	}

	a.client, err = api.New(cfg.APIURL, a.store,
		api.WithTimeout(cfg.HTTPTimeout),
		api.WithNavigator(a.router),
		api.WithMetrics(a.metrics),
		api.WithInviteConcurrency(cfg.InviteConcurrency),
	)
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) serveMetrics(reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))
	a.metricsServer = &http.Server{
		Addr:              a.cfg.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		slog.Info("Metrics server starting", "address", a.cfg.MetricsAddr)
		if err := a.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics server failed", "error", err)
		}
	}()
}

// realtimeSocket creates the socket on first use.
func (a *app) realtimeSocket() (*realtime.Socket, error) {
	if a.socket != nil {
		return a.socket, nil
	}
	s, err := realtime.NewSocket(a.cfg.WSURL,
		realtime.WithTokenSource(a.store.Token),
		realtime.WithMetrics(a.metrics),
	)
	if err != nil {
		return nil, err
	}
	a.socket = s
	return s, nil
}

func (a *app) Close() {
	if a.socket != nil {
		a.socket.Close()
	}
	if a.metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		a.metricsServer.Shutdown(ctx)
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			slog.Warn("Failed to close session store", "error", err)
		}
	}
}
