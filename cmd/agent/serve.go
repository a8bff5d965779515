package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pmharris77/home-assistant-vibecode-agent/internal/config"
	"github.com/pmharris77/home-assistant-vibecode-agent/internal/fileops"
	"github.com/pmharris77/home-assistant-vibecode-agent/internal/ha"
	"github.com/pmharris77/home-assistant-vibecode-agent/internal/logging"
	"github.com/pmharris77/home-assistant-vibecode-agent/internal/server"
	"github.com/pmharris77/home-assistant-vibecode-agent/internal/vault"
	"github.com/pmharris77/home-assistant-vibecode-agent/internal/watch"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the agent HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.Load()
			if err != nil {
				return err
			}
			return serve(settings)
		},
	}
}

func serve(settings *config.Settings) error {
	log := logging.MustNew(settings.LogLevel)
	defer log.Sync()

	log.Info("agent starting",
		zap.String("version", version),
		zap.String("config_path", settings.ConfigPath),
		zap.Bool("versioning", settings.EnableVersioning))

	store := openStore(settings, log)
	files := fileops.NewManager(settings.ConfigPath, store, log.Named("files"))

	var core *ha.Client
	var socket *ha.SocketClient
	if settings.HAToken != "" {
		core = ha.NewClient(settings.HAURL, settings.HAToken, log.Named("ha"))
		socket = ha.NewSocketClient(settings.HAURL, settings.HAToken, log.Named("ws"))
		defer socket.Close()
	} else {
		log.Warn("no supervisor token, home assistant routes disabled")
	}

	srv := server.New(server.Options{
		Files:    files,
		Store:    store,
		Core:     core,
		Socket:   socket,
		APIToken: settings.APIToken,
		Logger:   log.Named("http"),
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if settings.WatchExternal && store.Enabled() {
		watcher := watch.New(settings.ConfigPath, store, store.Rules(), log.Named("watch"))
		go func() {
			if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("watcher stopped", zap.Error(err))
			}
		}()
	}

	err := srv.Run(ctx, settings.ListenAddr)
	if errors.Is(err, http.ErrServerClosed) {
		err = nil
	}
	log.Info("agent stopped")
	return err
}

// openStore opens the versioning store, degrading to disabled mode rather
// than refusing to start: the agent must stay able to serve files even when
// versioning cannot.
func openStore(settings *config.Settings, log *zap.Logger) *vault.Vault {
	store, err := vault.Open(settings.ConfigPath, vault.Options{
		Enabled:         settings.EnableVersioning,
		MaxRevisions:    settings.MaxRevisions,
		RetainRevisions: settings.RetainRevisions,
		Logger:          log.Named("vault"),
	})
	if err != nil {
		log.Error("versioning unavailable, continuing without it", zap.Error(err))
		store, _ = vault.Open(settings.ConfigPath, vault.Options{Enabled: false})
		return store
	}
	if !store.Enabled() {
		return store
	}

	if removed, err := store.Reconcile(); err != nil {
		log.Warn("reconcile failed", zap.Error(err))
	} else if len(removed) > 0 {
		log.Info("untracked newly ignored paths", zap.Strings("paths", removed))
	}
	if id, err := store.Snapshot("Agent startup", vault.SnapshotOptions{}); err != nil {
		log.Warn("startup snapshot failed", zap.Error(err))
	} else if id != "" {
		log.Info("captured state at startup", zap.String("revision", id[:8]))
	}
	return store
}
