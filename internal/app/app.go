// Package app wires configuration, logging, storage and the session store
// shared by the CLI commands and the HTTP adapter.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	rased "github.com/goliatone/go-rased"
	"github.com/goliatone/go-rased/internal/config"
	"github.com/goliatone/go-rased/internal/logger"
	"github.com/goliatone/go-rased/internal/server"
	"github.com/goliatone/go-rased/pkg/activity"
	"github.com/goliatone/go-rased/pkg/printer"
	"github.com/goliatone/go-rased/pkg/session"
	"github.com/goliatone/go-rased/pkg/state"
)

type App struct {
	Log     *logger.Logger
	Config  *config.Config
	Store   *session.Store
	Backend state.Store
	Logos   *printer.LogoResolver

	closers []func() error
}

// New loads the configuration at path and opens the configured backend.
func New(ctx context.Context, path string) (*App, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.Log.Mode, cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return NewWithConfig(ctx, cfg, log)
}

// NewWithConfig builds the app from an already loaded configuration.
func NewWithConfig(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	if log == nil {
		log = logger.Nop()
	}
	a := &App{Log: log, Config: cfg}

	backend, closer, err := OpenBackend(ctx, cfg.Storage, log)
	if err != nil {
		return nil, err
	}
	a.Backend = backend
	if closer != nil {
		a.closers = append(a.closers, closer)
	}

	gate, err := rased.NewGate(cfg.Rules, rased.WithEvaluatorLogger(evaluatorLogger(log)))
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	store, err := session.Open(ctx, backend,
		state.Ref{Slot: cfg.Storage.Slot, Owner: cfg.Storage.Owner},
		session.WithLogger(log.With("component", "session")),
		session.WithTiming(session.Timing{
			SavedAfter: cfg.Autosave.SavedAfter.Duration,
			IdleAfter:  cfg.Autosave.IdleAfter.Duration,
		}),
		session.WithGate(gate),
		session.WithEmitter(activity.NewEmitter(activity.Hooks{logHook(log)}, cfg.Activity)),
		session.WithActor(cfg.Storage.Owner),
	)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.Store = store
	a.Logos = printer.NewLogoResolver(printer.WithResolverLogger(log.With("component", "logo")))

	if err := store.LastError(); err != nil {
		log.Warn("session loaded with a storage error", "backend", cfg.Storage.Backend, "error", err)
	}
	return a, nil
}

// PrintOptions merges the configured print settings for rec and resolves
// its logo.
func (a *App) PrintOptions(ctx context.Context, rec rased.StudentRecord) printer.Options {
	opts := printer.Options{
		AccentColor: a.Config.Print.AccentColor,
		Title:       a.Config.Print.Title,
	}
	if rased.IsHexColor(rec.Settings.AccentColor) {
		opts.AccentColor = rec.Settings.AccentColor
	}
	logo := rec.Settings.LogoURL
	if strings.TrimSpace(logo) == "" {
		logo = a.Config.Print.LogoURL
	}
	opts.LogoDataURI = a.Logos.Resolve(ctx, logo)
	return opts
}

// Server builds the loopback HTTP adapter over the app's session store.
func (a *App) Server() *server.Server {
	log := a.Log.With("component", "http")
	handler := server.NewSessionHandler(server.Deps{
		Store: a.Store,
		Logos: a.Logos,
		Print: printer.Options{
			AccentColor: a.Config.Print.AccentColor,
			Title:       a.Config.Print.Title,
		},
		LogoURL:      a.Config.Print.LogoURL,
		ExportPrefix: a.Config.Export.Prefix,
		Logger:       log,
	})
	return server.NewServer(server.RouterConfig{SessionHandler: handler, Logger: log})
}

// Close stops the session timers and releases the backend.
func (a *App) Close() error {
	if a.Store != nil {
		a.Store.Close()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	a.Log.Sync()
	return errors.Join(errs...)
}

func evaluatorLogger(log *logger.Logger) rased.EvaluatorLogger {
	return rased.EvaluatorLoggerFunc(func(event rased.EvaluatorLogEvent) {
		if event.Err != nil {
			log.Warn("gate rule failed", "step", event.Step, "engine", event.Engine, "scope", event.Scope, "expr", event.Expr, "error", event.Err)
			return
		}
		log.Debug("gate rule evaluated", "step", event.Step, "engine", event.Engine, "scope", event.Scope, "blocked", event.Blocked(), "duration", event.Duration)
	})
}

func logHook(log *logger.Logger) activity.Hook {
	return activity.HookFunc(func(_ context.Context, event activity.Event) error {
		log.Info("activity",
			"verb", event.Verb,
			"object_type", event.ObjectType,
			"object_id", event.ObjectID,
			"channel", event.Channel,
		)
		return nil
	})
}
