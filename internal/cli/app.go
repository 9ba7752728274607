package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/iqralabs/iqra/internal/config"
	"github.com/iqralabs/iqra/internal/gateway"
	"github.com/iqralabs/iqra/internal/generator"
	"github.com/iqralabs/iqra/internal/history"
	"github.com/iqralabs/iqra/internal/progress"
	"github.com/iqralabs/iqra/internal/store"
	"github.com/iqralabs/iqra/internal/syncer"
)

// app wires the full component graph behind a command: config, local
// store, update loop, gateway, coordinator, and the domain components.
type app struct {
	cfg      config.Config
	gw       *gateway.Gateway
	loop     *syncer.Loop
	coord    *syncer.Coordinator
	recorder *history.Recorder
	tracker  *progress.Tracker
	gen      generator.Generator

	local    *store.Local
	loopStop context.CancelFunc
	loopDone chan struct{}
}

// openApp boots the component graph. The update loop runs until Close.
// A stored mirror config is resumed best-effort; a failed resume leaves
// the app fully usable offline.
func openApp(ctx context.Context, opts *RootOptions) (*app, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.StorePath), 0o755); err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to create data directory", err)
	}
	local, err := store.Open(cfg.StorePath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	loop := syncer.NewLoop()
	loopCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = loop.Run(loopCtx)
	}()

	gw := gateway.New(local)
	coord := syncer.New(gw, loop, nil)
	if err := coord.Resume(ctx); err != nil {
		slog.Warn("cloud mirror resume failed, continuing offline", "error", err)
	}

	a := &app{
		cfg:      cfg,
		gw:       gw,
		loop:     loop,
		coord:    coord,
		recorder: history.New(gw, loop),
		tracker:  progress.New(gw, loop),
		gen:      newGenerator(cfg.Generator),
		local:    local,
		loopStop: cancel,
		loopDone: done,
	}
	return a, nil
}

func newGenerator(cfg config.GeneratorConfig) generator.Generator {
	if cfg.Kind == config.GeneratorStatic {
		return generator.NewStatic()
	}
	return generator.NewLLM(cfg.Endpoint, cfg.Model)
}

// Close tears down the mirror connection, stops the update loop, and
// closes the database. The stored mirror config survives so the next
// start resumes it.
func (a *app) Close() error {
	if err := a.coord.Close(); err != nil {
		slog.Warn("mirror teardown on close failed", "error", err)
	}
	a.loopStop()
	<-a.loopDone
	if err := a.local.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
