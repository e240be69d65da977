package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/Ballindaboy/ITD-TG2YD-MEET/internal/bot"
	"github.com/Ballindaboy/ITD-TG2YD-MEET/internal/config"
	"github.com/Ballindaboy/ITD-TG2YD-MEET/internal/lockfile"
	"github.com/Ballindaboy/ITD-TG2YD-MEET/internal/navigator"
	"github.com/Ballindaboy/ITD-TG2YD-MEET/internal/registry"
	"github.com/Ballindaboy/ITD-TG2YD-MEET/internal/session"
	"github.com/Ballindaboy/ITD-TG2YD-MEET/internal/storage"
	"github.com/Ballindaboy/ITD-TG2YD-MEET/internal/transcribe"
)

// maxListedFolders caps one listing message; deeper trees are reached by
// entering subfolders.
const maxListedFolders = 20

func main() {
	configPath := flag.String("config", "config.toml", "path to the TOML config file")
	offline := flag.Bool("offline", false, "run without a storage backend (logged no-ops)")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(log)

	if err := run(*configPath, *offline, log); err != nil {
		log.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(configPath string, offline bool, log *slog.Logger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if offline {
		cfg.Storage.Offline = true
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return err
	}
	lock, err := lockfile.Acquire(filepath.Join(cfg.DataDir, "bot.lock"))
	if err != nil {
		return err
	}
	defer lock.Release()

	reg, err := registry.Open(cfg.DataDir)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend := pickBackend(ctx, cfg, log)

	retry := storage.DefaultRetryPolicy()
	if cfg.Storage.MaxAttempts > 0 {
		retry.MaxAttempts = cfg.Storage.MaxAttempts
	}
	gw := storage.NewGateway(backend, retry, log)

	engine := session.NewEngine(gw, cfg.IdleTimeout(), log)
	nav := navigator.New(gw, maxListedFolders)

	var tr transcribe.Transcriber = transcribe.Disabled{}
	if cfg.Transcribe.Endpoint != "" {
		tr = transcribe.NewHTTPTranscriber(cfg.Transcribe.Endpoint, cfg.Transcribe.APIKey,
			cfg.Transcribe.Model, cfg.Transcribe.Language)
	}

	b, err := bot.New(cfg, gw, reg, engine, nav, tr, log)
	if err != nil {
		return err
	}

	err = b.Run(ctx)
	if errors.Is(err, context.Canceled) {
		log.Info("shutting down")
		return nil
	}
	return err
}

// pickBackend chooses the storage backend from the config. An unreachable
// cloud backend at startup degrades to offline mode instead of refusing to
// start, so the chat side keeps working through an outage.
func pickBackend(ctx context.Context, cfg config.Config, log *slog.Logger) storage.Backend {
	switch {
	case cfg.Storage.Offline:
		log.Warn("offline mode: storage operations will be no-ops")
		return storage.NewOfflineBackend(log)
	case cfg.Storage.Memory:
		log.Info("using in-memory storage backend")
		return storage.NewMemoryBackend()
	}

	backend, err := storage.NewDriveBackend(ctx, cfg.Drive.CredentialsFile, cfg.Drive.RootFolderID)
	if err != nil {
		log.Error("drive backend unavailable, degrading to offline mode", "err", err)
		return storage.NewOfflineBackend(log)
	}
	return backend
}
