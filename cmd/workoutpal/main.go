package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/claude/workoutpal/internal/auth"
	"github.com/claude/workoutpal/internal/catalog"
	"github.com/claude/workoutpal/internal/config"
	"github.com/claude/workoutpal/internal/history"
	wpmcp "github.com/claude/workoutpal/internal/mcp"
	"github.com/claude/workoutpal/internal/models"
	"github.com/claude/workoutpal/internal/server"
	"github.com/claude/workoutpal/internal/session"
	"github.com/claude/workoutpal/internal/storage"
	"github.com/claude/workoutpal/internal/voice"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"tailscale.com/tsnet"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	migrateOnly := flag.Bool("migrate-only", false, "run migrations and exit")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	log.Info("WorkoutPal starting", "version", Version)

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	// Remote store is optional; without it accounts are disabled and
	// history stays on this device.
	var (
		users  auth.Users
		remote history.Remote
	)
	if cfg.Database.Enabled() {
		dsn := cfg.Database.DSN()
		if err := storage.RunMigrations(dsn); err != nil {
			log.Error("migration failed", "error", err)
			os.Exit(1)
		}
		log.Info("migrations applied")

		if *migrateOnly {
			log.Info("migrate-only: exiting")
			return
		}

		db, err := storage.New(ctx, dsn)
		if err != nil {
			log.Error("failed to connect database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		log.Info("database connected")
		users, remote = db, db
	} else if *migrateOnly {
		log.Error("migrate-only: no database configured")
		os.Exit(1)
	}

	local, err := storage.OpenLocal(cfg.Local.Dir, log)
	if err != nil {
		log.Error("failed to open local cache", "dir", cfg.Local.Dir, "error", err)
		os.Exit(1)
	}
	defer local.Close()

	if snap, err := local.CurrentSession(ctx); err != nil {
		log.Warn("reading last session", "error", err)
	} else if snap != nil && !snap.IsCompleted {
		log.Info("previous session was not finished",
			"workout", snap.WorkoutName,
			"completed", snap.CompletedExercises,
			"total", snap.TotalExercises,
		)
		// Sessions do not survive a restart; report once, then drop it.
		if err := local.ClearCurrentSession(ctx); err != nil {
			log.Warn("clearing last session", "error", err)
		}
	}

	authSvc := auth.New(users, local, cfg.Auth.JWTSecret, log)
	if err := authSvc.Restore(ctx); err != nil {
		log.Warn("restoring sign-in", "error", err)
	}
	authSvc.OnChange(func(u *models.User) {
		if u == nil {
			log.Info("signed out")
			return
		}
		log.Info("signed in", "user", u.ID)
	})

	store := history.New(local, remote, authSvc, log)

	cat, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		log.Error("failed to load catalog", "error", err)
		os.Exit(1)
	}

	speechDefaults := voice.Options{
		Rate:     cfg.Speech.Rate,
		Pitch:    cfg.Speech.Pitch,
		Language: cfg.Speech.Language,
		Voice:    cfg.Speech.Voice,
	}
	var speaker voice.Speaker
	if cfg.Speech.Endpoint != "" {
		tts := voice.NewHTTPSpeaker(cfg.Speech.Endpoint, cfg.Speech.APIKey, speechDefaults, log)
		defer tts.Close()
		speaker = tts
	} else {
		speaker = voice.NewLogSpeaker(log, speechDefaults)
	}

	sessions := session.NewManager(session.RunnerOptions{
		Speaker:     speaker,
		History:     store,
		Snapshots:   local,
		Log:         log,
		AutoAdvance: cfg.Session.AutoAdvance,
	})
	defer sessions.Close()

	// Create server
	srv := server.New(server.Deps{
		Catalog:     cat,
		History:     store,
		Sessions:    sessions,
		Preferences: local,
		Auth:        authSvc,
		Session: session.Config{
			DefaultSetSeconds:  cfg.Session.DefaultSetSeconds,
			DefaultRestSeconds: cfg.Session.DefaultRestSeconds,
			Language:           cfg.Speech.Language,
		},
	}, cfg.Auth.APIKey, log)

	mcpSrv := wpmcp.New(wpmcp.NewLocal(cat, store), Version, log)
	srv.SetMCP(mcpserver.NewStreamableHTTPServer(mcpSrv))

	// Start server: tsnet or plain HTTP
	var listener net.Listener
	var tsServer *tsnet.Server

	if cfg.Tailscale.Enabled {
		tsServer = &tsnet.Server{
			Hostname: cfg.Tailscale.Hostname,
			Dir:      cfg.Tailscale.StateDir,
		}
		if err := tsServer.Start(); err != nil {
			log.Error("tsnet start failed", "error", err)
			os.Exit(1)
		}
		defer tsServer.Close()

		lc, err := tsServer.LocalClient()
		if err != nil {
			log.Error("tsnet local client failed", "error", err)
			os.Exit(1)
		}
		srv.SetTailscale(lc)

		listener, err = tsServer.Listen("tcp", ":80")
		if err != nil {
			log.Error("tsnet listen failed", "error", err)
			os.Exit(1)
		}
		log.Info("tsnet server starting", "hostname", cfg.Tailscale.Hostname)
	} else {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		listener, err = net.Listen("tcp", addr)
		if err != nil {
			log.Error("listen failed", "addr", addr, "error", err)
			os.Exit(1)
		}
		log.Info("server starting", "addr", addr, "mode", "dev (no tailscale)")
	}

	httpSrv := &http.Server{Handler: srv}

	go func() {
		if err := httpSrv.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info("shutting down", "signal", sig)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}
	log.Info("server stopped")
}
