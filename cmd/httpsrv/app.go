package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/e-dard/netbug"
	"github.com/gabibotos/httpsrv/log"
	"github.com/gabibotos/httpsrv/middleware"
	"github.com/gabibotos/httpsrv/srv"
	"github.com/gorilla/mux"
	"github.com/heptiolabs/healthcheck"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opencensus.io/plugin/ochttp"
	"go.opencensus.io/plugin/ochttp/propagation/b3"
	"go.opencensus.io/trace"
	"go.opencensus.io/zpages"
)

const metricsNamespace = "httpsrv"

type (
	// appsrv runs the request listener next to a system listener exposing
	// health, version, metrics and debug endpoints.
	appsrv struct {
		healthcheck.Handler
		lg log.Logger

		server    srv.Server
		system    srv.Server
		systemApp *mux.Router
	}
)

// responder answers every request with the same status and body.
func responder(status int, body string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		if body != "" {
			_, _ = w.Write([]byte(body))
		}
	})
}

func newApp(cfg *config, lg log.Logger) (*appsrv, error) {
	listener, err := cfg.listener()
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	health := healthcheck.NewHandler()
	sysApp := mux.NewRouter()
	sysApp.Use(middleware.NoCache)
	sysApp.HandleFunc("/healthz", health.LiveEndpoint)
	sysApp.HandleFunc("/readyz", health.ReadyEndpoint)
	sysApp.HandleFunc("/version", VersionHandler(lg, NewVersionInfo()))
	sysApp.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	debug := http.NewServeMux()
	netbug.RegisterHandler("/debug/", debug) // trailing slash required in this call
	sysApp.PathPrefix("/debug/").Handler(debug)

	var handler http.Handler = responder(cfg.Response.Status, cfg.Response.Body)
	if cfg.Trace {
		trace.ApplyConfig(trace.Config{DefaultSampler: trace.AlwaysSample()})
		handler = &ochttp.Handler{
			Handler:          handler,
			Propagation:      &b3.HTTPFormat{},
			IsPublicEndpoint: cfg.IsPublic,
		}

		muxx := http.NewServeMux()
		zpages.Handle(muxx, "/")
		sysApp.Handle("/tracez", muxx)
		sysApp.PathPrefix("/public/").Handler(muxx)
	}

	opts := []srv.Option{
		srv.LogsWith(lg),
		srv.LogsRequests(),
		srv.WithListener(listener),
		srv.WithMetrics(registry, metricsNamespace),
		srv.OnShutdown(func() {
			lg.Printf("request listener stopped")
		}),
	}
	opts = append(opts, cfg.Server.Options()...)
	if cfg.HSTS {
		opts = append(opts, srv.EnableHSTS(0, false))
	}

	s := &appsrv{
		Handler:   health,
		lg:        lg,
		systemApp: sysApp,
		server:    srv.New(handler, opts...),
	}
	s.system = srv.New(sysApp,
		srv.LogsWith(lg),
		srv.WithListener(&cfg.System),
		srv.WithCleanupTimeout(cfg.Server.CleanupTimeout),
	)
	s.AddReadinessCheck("listener", srv.ListeningCheck(s.server))
	return s, nil
}

// Start the system listener first so probes can observe the request listener coming up.
func (s *appsrv) Start(ctx context.Context) error {
	if err := s.system.Start(ctx); err != nil {
		return fmt.Errorf("system listener: %w", err)
	}
	if err := s.server.Start(ctx); err != nil {
		_ = s.system.Stop(ctx)
		return fmt.Errorf("request listener: %w", err)
	}
	s.lg.Printf("Serving requests at %s, system endpoints at %s", s.server.URL(), s.system.URL())
	return nil
}

// Stop the request listener, then the system listener.
func (s *appsrv) Stop(ctx context.Context) error {
	err := s.server.Stop(ctx)
	if serr := s.system.Stop(ctx); err == nil {
		err = serr
	}
	return err
}
