// Package app wires the board components together and owns the server
// lifecycle.
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/joho/godotenv"

	"whisperboard/internal/retention"
	"whisperboard/pkg/blob"
	"whisperboard/pkg/board"
	"whisperboard/pkg/config"
	"whisperboard/pkg/notify"
	"whisperboard/pkg/store"
	"whisperboard/pkg/validation"
)

// App encapsulates the server components and lifecycle.
type App struct {
	eff       config.EffectiveConfigResult
	version   string
	commit    string
	buildDate string

	blobs  blob.Provider
	hub    *notify.Hub
	bridge *notify.RedisBridge
	svc    *board.Service

	srv       *http.Server
	healthSrv stoppable
}

type stoppable interface {
	Shutdown(ctx context.Context) error
}

// New initializes resources that do not require a running context (store,
// validation limits, runtime keys). Call Run to start the servers and block
// until shutdown.
func New(eff config.EffectiveConfigResult, version, commit, buildDate string) (*App, error) {
	_ = godotenv.Load(".env")

	if err := validateConfig(eff); err != nil {
		return nil, err
	}

	runtimeCfg := &config.RuntimeConfig{SigningKeys: map[string]struct{}{}}
	for _, k := range eff.Config.Security.SigningKeys {
		runtimeCfg.SigningKeys[k] = struct{}{}
	}
	config.SetRuntime(runtimeCfg)

	validation.SetLimits(validation.Limits{
		MaxTextLen:     eff.Config.Validation.MaxTextLen,
		MaxAttachments: eff.Config.Validation.MaxAttachments,
		MaxTopicLen:    eff.Config.Validation.MaxTopicLen,
	})

	if err := store.Open(eff.DBPath); err != nil {
		return nil, fmt.Errorf("failed to open pebble at %s: %w", eff.DBPath, err)
	}

	return &App{eff: eff, version: version, commit: commit, buildDate: buildDate}, nil
}

// Run starts the notifier, retention scheduler and HTTP servers, and blocks
// until ctx is canceled or a fatal server error occurs.
func (a *App) Run(ctx context.Context) error {
	if err := a.setupBlob(ctx); err != nil {
		return err
	}
	if err := a.setupNotify(ctx); err != nil {
		return err
	}

	var notifier notify.Broadcaster = a.hub
	if a.bridge != nil {
		notifier = a.bridge
	}
	a.svc = board.New(a.blobs, notifier)

	stopRetention, err := retention.Start(ctx, a.eff, a.blobs)
	if err != nil {
		return err
	}
	defer stopRetention()

	a.printBanner()

	errCh := a.startHTTP(ctx)
	a.startHealthSidecar(ctx)

	select {
	case <-ctx.Done():
		a.shutdown()
		return nil
	case err := <-errCh:
		a.shutdown()
		return err
	}
}

// setupBlob builds the configured attachment provider. An empty provider
// name disables attachment storage entirely.
func (a *App) setupBlob(ctx context.Context) error {
	switch a.eff.Config.Blob.Provider {
	case "":
		return nil
	case "memory":
		a.blobs = blob.NewMemory()
		return nil
	case "minio":
		p, err := blob.NewMinio(ctx, blob.MinioOptions{
			Endpoint:      a.eff.Config.Blob.Endpoint,
			AccessKey:     a.eff.Config.Blob.AccessKey,
			SecretKey:     a.eff.Config.Blob.SecretKey,
			Bucket:        a.eff.Config.Blob.Bucket,
			UseSSL:        a.eff.Config.Blob.UseSSL,
			PublicBaseURL: a.eff.Config.Blob.PublicBaseURL,
		})
		if err != nil {
			return fmt.Errorf("failed to set up blob provider: %w", err)
		}
		a.blobs = p
		return nil
	default:
		return fmt.Errorf("unknown blob provider %q", a.eff.Config.Blob.Provider)
	}
}

// setupNotify builds the local hub and, when configured, the Redis bridge
// for cross-node fanout.
func (a *App) setupNotify(ctx context.Context) error {
	a.hub = notify.NewHub(a.eff.Config.Notify.SendBuffer)
	rc := a.eff.Config.Notify.Redis
	if rc.Addr == "" {
		return nil
	}
	bridge, err := notify.NewRedisBridge(ctx, a.hub, rc.Addr, rc.Password, rc.DB, rc.ChannelPrefix)
	if err != nil {
		return fmt.Errorf("failed to connect redis bridge: %w", err)
	}
	a.bridge = bridge
	return nil
}

func (a *App) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if a.srv != nil {
		_ = a.srv.Shutdown(ctx)
	}
	if a.healthSrv != nil {
		_ = a.healthSrv.Shutdown(ctx)
	}
	if a.bridge != nil {
		_ = a.bridge.Close()
	}
	if a.hub != nil {
		a.hub.Close()
	}
	_ = store.Close()
}
