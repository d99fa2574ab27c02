package app

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"whisperboard/pkg/api"
	"whisperboard/pkg/auth"
	"whisperboard/pkg/banner"
	"whisperboard/pkg/httpx"
	"whisperboard/pkg/logger"
	"whisperboard/pkg/store"
	"whisperboard/pkg/telemetry"
)

const shutdownGrace = 10 * time.Second

// printBanner prints the startup banner and build info.
func (a *App) printBanner() {
	verStr := a.version
	if a.commit != "none" {
		verStr += " (" + a.commit + ")"
	}
	if a.buildDate != "unknown" {
		verStr += " @ " + a.buildDate
	}
	banner.PrintWithEff(a.eff, verStr)
}

// setupHTTPHandlers sets up all HTTP handlers on the provided mux.
func (a *App) setupHTTPHandlers(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", healthzHandler)
	mux.HandleFunc("/readyz", a.readyzHandler)
	mux.Handle("/", api.Handler(api.Deps{Service: a.svc, Hub: a.hub, Blobs: a.blobs}))
	mux.Handle("/docs/", httpSwagger.Handler(httpSwagger.URL("/openapi.yaml")))
	mux.Handle("/openapi.yaml", http.FileServer(http.Dir("./docs")))
	mux.Handle("/metrics", promhttp.Handler())
}

// readyzHandler handles the /readyz endpoint.
func (a *App) readyzHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if !store.Ready() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"not ready"}`))
		return
	}
	ver := a.version
	if ver == "" {
		ver = "dev"
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok","version":"` + ver + `"}`))
}

// healthzHandler handles the /healthz endpoint.
func healthzHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// startHTTP builds the handler, starts the HTTP server in a goroutine and
// returns a channel that will contain any server error.
func (a *App) startHTTP(_ context.Context) <-chan error {
	mux := http.NewServeMux()
	a.setupHTTPHandlers(mux)

	secCfg := auth.SecConfig{
		AllowedOrigins: append([]string{}, a.eff.Config.Security.CORS.AllowedOrigins...),
		RPS:            a.eff.Config.Security.RateLimit.RPS,
		Burst:          a.eff.Config.Security.RateLimit.Burst,
	}

	wrapped := auth.SecurityMiddleware(secCfg)(mux)
	wrapped = telemetry.Middleware(wrapped)

	a.srv = &http.Server{Addr: a.eff.Addr, Handler: wrapped}

	errCh := make(chan error, 1)
	go func() {
		cert := a.eff.Config.Server.TLS.CertFile
		key := a.eff.Config.Server.TLS.KeyFile
		var err error
		if cert != "" && key != "" {
			err = a.srv.ListenAndServeTLS(cert, key)
		} else {
			err = a.srv.ListenAndServe()
		}
		if err == http.ErrServerClosed {
			err = nil
		}
		errCh <- err
	}()
	return errCh
}

// startHealthSidecar starts the standalone probe listener when configured.
// It serves /healthz and /readyz only, on either fasthttp or net/http.
func (a *App) startHealthSidecar(_ context.Context) {
	hc := a.eff.Config.Server.Health
	if hc.Addr == "" {
		return
	}

	probe := func(w httpx.ResponseWriter, r *httpx.Request) {
		switch r.Path {
		case "/healthz", "/readyz":
			w.Header().Set("Content-Type", "application/json")
			if r.Path == "/readyz" && !store.Ready() {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"not ready"}`))
				return
			}
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}

	switch hc.Engine {
	case "nethttp":
		srv := &http.Server{
			Addr:         hc.Addr,
			Handler:      httpx.NetHTTPAdapter(probe),
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 5 * time.Second,
		}
		a.healthSrv = srv
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("health_sidecar_exit", zap.Error(err))
			}
		}()
	default:
		srv := &fasthttp.Server{
			Handler:            httpx.FastHTTPAdapter(probe),
			Name:               "whisperboard-health",
			ReadTimeout:        5 * time.Second,
			WriteTimeout:       5 * time.Second,
			MaxRequestBodySize: 1 << 20,
		}
		a.healthSrv = fasthttpShutdown{srv}
		go func() {
			if err := srv.ListenAndServe(hc.Addr); err != nil {
				logger.Error("health_sidecar_exit", zap.Error(err))
			}
		}()
	}
	logger.Info("health_sidecar_started", zap.String("addr", hc.Addr), zap.String("engine", hc.Engine))
}

// fasthttpShutdown adapts fasthttp's shutdown signature to the stoppable
// interface.
type fasthttpShutdown struct {
	srv *fasthttp.Server
}

func (f fasthttpShutdown) Shutdown(ctx context.Context) error {
	return f.srv.ShutdownWithContext(ctx)
}
