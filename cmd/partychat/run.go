package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/vaitul/partychat/internal/config"
	"github.com/vaitul/partychat/internal/database"
	"github.com/vaitul/partychat/internal/logging"
	"github.com/vaitul/partychat/internal/party"
	"github.com/vaitul/partychat/internal/prefs"
	"github.com/vaitul/partychat/internal/render"
	"github.com/vaitul/partychat/internal/session"
	"github.com/vaitul/partychat/internal/transcript"
	"github.com/vaitul/partychat/internal/version"
)

var (
	errNoDisplayName = errors.New("no display name: pass --name, or join once to save one")
	errUnreachable   = errors.New("chat service unreachable")
)

// roomEntry creates or joins a room on a connected manager and returns the room ID.
type roomEntry func(ctx context.Context, mgr *session.Manager, saved prefs.Profile) (string, error)

func createEntry(name, icon string) roomEntry {
	return func(ctx context.Context, mgr *session.Manager, saved prefs.Profile) (string, error) {
		name, icon := pickIdentity(name, icon, saved)
		if name == "" {
			return "", errNoDisplayName
		}
		return mgr.CreateRoom(ctx, name, icon)
	}
}

func joinEntry(roomID, name, icon string) roomEntry {
	return func(ctx context.Context, mgr *session.Manager, saved prefs.Profile) (string, error) {
		name, icon := pickIdentity(name, icon, saved)
		if name == "" {
			return "", errNoDisplayName
		}
		roomID = strings.TrimSpace(roomID)
		if err := mgr.JoinRoom(ctx, name, roomID, icon); err != nil {
			return "", err
		}
		return roomID, nil
	}
}

// pickIdentity fills missing flags from the saved profile.
func pickIdentity(name, icon string, saved prefs.Profile) (string, string) {
	if strings.TrimSpace(name) == "" {
		name = saved.DisplayName
	}
	if strings.TrimSpace(icon) == "" {
		icon = saved.IconOrDefault()
	}
	return name, icon
}

// loadConfig loads the config file and applies command-line overrides.
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if flagConfig != "" {
		loaded, err := config.LoadWithDefaults(flagConfig)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if flagURL != "" {
		cfg.Server.URL = flagURL
	}
	if flagLogLevel != "" {
		cfg.Log.Level = flagLogLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// setupLogging installs the process-wide slog and zerolog loggers.
func setupLogging(cfg config.LogConfig) (*slog.Logger, error) {
	zl, err := logging.NewZerolog(cfg, os.Stderr)
	if err != nil {
		return nil, err
	}
	log.Logger = zl

	level, _ := logging.ParseLevel(cfg.Level)
	logger := slog.New(logging.NewHandler(zl, level))
	slog.SetDefault(logger)
	return logger, nil
}

func clientConfig(cfg config.ServerConfig) party.ClientConfig {
	return party.ClientConfig{
		URL:               cfg.URL,
		HandshakeTimeout:  cfg.HandshakeTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		PingTimeout:       cfg.PingTimeout,
		KeepAliveInterval: cfg.KeepAliveInterval,
		RequestTimeout:    cfg.RequestTimeout,
	}
}

func sessionConfig(cfg config.SessionConfig, server config.ServerConfig) session.Config {
	sc := session.DefaultConfig()
	sc.MaxAttempts = cfg.MaxAttempts
	sc.BaseDelay = cfg.ReconnectBaseDelay
	sc.MaxDelay = cfg.ReconnectMaxDelay
	sc.JoinGrace = cfg.JoinGrace
	sc.RejoinGrace = cfg.RejoinGrace
	if server.RequestTimeout > 0 {
		sc.RejoinTimeout = server.RequestTimeout + time.Second
	}
	return sc
}

// runSession connects, enters a room and runs the interactive loop until
// /quit, end of input or a signal.
func runSession(parent context.Context, enter roomEntry) error {
	if parent == nil {
		parent = context.Background()
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := setupLogging(cfg.Log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	logger.Info("starting partychat",
		"version", version.Version,
		"commit", version.Commit,
		"url", cfg.Server.URL,
	)

	var (
		opts  []session.Option
		saved prefs.Profile
	)

	store, err := prefs.Open(cfg.Profile.DataPath, logger)
	if err != nil {
		logger.Warn("open profile store failed; profile will not be saved", "error", err)
	} else {
		defer func() {
			if err := store.Close(); err != nil {
				logger.Warn("profile store close error", "error", err)
			}
		}()
		if saved, err = store.Load(); err != nil {
			logger.Warn("load saved profile failed", "error", err)
		}
		opts = append(opts, session.WithIdentityStore(store))
	}

	var archive *transcript.Writer
	if cfg.Transcript.Enabled {
		var stopArchive func()
		archive, stopArchive, err = startTranscript(ctx, cfg.Transcript, logger)
		if err != nil {
			return err
		}
		defer stopArchive()
		opts = append(opts, session.WithArchive(archive))
	}

	dialer := party.NewDialer(clientConfig(cfg.Server), logger)
	mgr := session.NewManager(sessionConfig(cfg.Session, cfg.Server), dialer, logger, opts...)
	defer mgr.Close()

	if err := mgr.Start(ctx); err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	if err := waitConnected(ctx, mgr, cfg.Server.HandshakeTimeout+time.Second); err != nil {
		return err
	}

	roomID, err := enter(ctx, mgr, saved)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "-- in room %s, share it with: partychat resume %s\n", roomID, roomID)
	fmt.Fprintln(os.Stdout, "-- type /help for commands")

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Status.Port > 0 {
		handler := newStatusHandler(mgr, archive)
		g.Go(func() error {
			if err := serveStatus(gctx, statusAddr(cfg.Status), handler, logger); err != nil {
				logger.Warn("status server stopped", "error", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		defer cancel()
		return newREPL(mgr, os.Stdout, render.New(nil)).run(gctx, os.Stdin, mgr.Changes())
	})

	err = g.Wait()
	logger.Info("partychat stopped")
	return err
}

// startTranscript connects the archive database and starts the batch writer.
// The returned func flushes the writer and closes the pool.
func startTranscript(ctx context.Context, cfg config.TranscriptConfig, logger *slog.Logger) (*transcript.Writer, func(), error) {
	pool, err := database.Connect(ctx, cfg.Database, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("connect transcript database: %w", err)
	}
	if err := transcript.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, err
	}

	w := transcript.NewWriter(transcript.WriterConfig{
		BatchSize:     cfg.BatchSize,
		FlushInterval: cfg.FlushInterval,
		BufferSize:    cfg.BufferSize,
	}, pool, logger)
	if err := w.Start(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}

	stop := func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := w.Stop(stopCtx); err != nil {
			logger.Warn("transcript stop error", "error", err)
		}
		pool.Close()
	}
	return w, stop, nil
}

// waitConnected blocks until the first connection is ready.
func waitConnected(ctx context.Context, mgr *session.Manager, timeout time.Duration) error {
	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	changes := mgr.Changes()
	st := mgr.State()
	for {
		switch st.Status {
		case session.StatusConnected:
			return nil
		case session.StatusDisconnected:
			return errUnreachable
		}

		var ok bool
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			return fmt.Errorf("%w: no connection after %s", errUnreachable, timeout)
		case st, ok = <-changes:
			if !ok {
				return session.ErrClosed
			}
		}
	}
}
