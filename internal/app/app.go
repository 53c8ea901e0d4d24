// Package app constructs and wires the console: config, logging, the local
// directory store, both transport channels, the reconciliation engine, and
// the operator desk. It owns startup and shutdown ordering and fans config
// reloads out to the services' Apply methods.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"bcast/internal/config"
	"bcast/internal/desk"
	"bcast/internal/dispatch"
	"bcast/internal/eventbus"
	"bcast/internal/reconcile"
	"bcast/internal/store"
	"bcast/internal/transport"
	logx "bcast/pkg/logx"
)

type App struct {
	cfgm *config.Manager

	logs *logx.Service
	log  logx.Logger
	bus  eventbus.Bus

	db     *store.Store
	client *dispatch.Client
	push   *dispatch.PushConsumer
	trans  *transport.Service
	engine *reconcile.Service
	desk   *desk.Desk

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Log.Level,
		Console: cfg.Log.Console,
		File: logx.FileConfig{
			Enabled: cfg.Log.File.Enabled,
			Path:    cfg.Log.File.Path,
		},
	})
	log = log.With(logx.String("comp", "app"))

	bus := eventbus.New()

	db, err := store.Open(store.Config{Path: cfg.Directory.Path},
		log.With(logx.String("comp", "store")))
	if err != nil {
		return nil, fmt.Errorf("open directory: %w", err)
	}

	client := dispatch.NewClient(dispatch.ClientConfig{
		BaseURL:    cfg.Engine.BaseURL,
		Timeout:    cfg.Engine.RequestTimeout(),
		RatePerSec: cfg.Engine.RatePerSec,
	}, log.With(logx.String("comp", "engine-client")))

	trans := transport.New(transport.Config{
		RefreshEvery:  cfg.Poll.RefreshEvery(),
		FallbackEvery: cfg.Poll.FallbackEvery(),
	}, client, log.With(logx.String("comp", "transport")))

	reconnectMin, reconnectMax := cfg.Push.ReconnectBackoff()
	push := dispatch.NewPushConsumer(dispatch.PushConsumerConfig{
		URL:          cfg.Push.URL,
		Queue:        cfg.Push.Queue,
		ReconnectMin: reconnectMin,
		ReconnectMax: reconnectMax,
	}, trans, log.With(logx.String("comp", "push")))

	engine := reconcile.New(trans.Events(), trans, bus,
		log.With(logx.String("comp", "reconcile")))

	deskCfg := desk.Config{DismissAfter: cfg.Notices.DismissAfter()}
	operator := desk.New(deskCfg, client, trans, db, db, engine, bus,
		log.With(logx.String("comp", "desk")))

	return &App{
		cfgm:   cfgm,
		logs:   logSvc,
		log:    log,
		bus:    bus,
		db:     db,
		client: client,
		push:   push,
		trans:  trans,
		engine: engine,
		desk:   operator,
	}, nil
}

// Desk is the operator command surface a front end drives.
func (a *App) Desk() *desk.Desk { return a.desk }

// Engine exposes reconciled aggregates for rendering.
func (a *App) Engine() *reconcile.Service { return a.engine }

// Bus is the re-render signal stream for front ends.
func (a *App) Bus() eventbus.Bus { return a.bus }

// Start brings services up consumer-first so no event is produced before
// its consumer is draining.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	a.engine.Start(runCtx)
	a.trans.Start(runCtx)
	a.push.Start(runCtx)
	if err := a.desk.Start(runCtx); err != nil {
		cancel()
		a.cancel = nil
		return err
	}

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		return cfg.Validate()
	})
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.cfgm.Watch(runCtx); err != nil {
			a.log.Warn("config watch stopped", logx.Err(err))
		}
	}()

	sub := a.cfgm.Subscribe(4)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer a.cfgm.Unsubscribe(sub)
		for {
			select {
			case <-runCtx.Done():
				return
			case cfg, ok := <-sub:
				if !ok {
					return
				}
				a.applyConfig(cfg)
			}
		}
	}()

	a.log.Info("console started")
	return nil
}

// applyConfig fans a validated reload out to the live services. Push
// connection settings need a restart; everything else applies hot.
func (a *App) applyConfig(cfg *config.Config) {
	a.logs.Apply(logx.Config{
		Level:   cfg.Log.Level,
		Console: cfg.Log.Console,
		File: logx.FileConfig{
			Enabled: cfg.Log.File.Enabled,
			Path:    cfg.Log.File.Path,
		},
	})
	a.client.Apply(dispatch.ClientConfig{
		BaseURL:    cfg.Engine.BaseURL,
		Timeout:    cfg.Engine.RequestTimeout(),
		RatePerSec: cfg.Engine.RatePerSec,
	})
	a.trans.Apply(transport.Config{
		RefreshEvery:  cfg.Poll.RefreshEvery(),
		FallbackEvery: cfg.Poll.FallbackEvery(),
	})
	a.log.Info("config applied")
}

// Stop shuts down producer-first: push and polling stop feeding the stream,
// then the engine drains, then the desk and store close.
func (a *App) Stop(ctx context.Context) {
	a.mu.Lock()
	cancel := a.cancel
	a.cancel = nil
	a.mu.Unlock()
	if cancel == nil {
		return
	}

	a.push.Stop(ctx)
	a.trans.Stop(ctx)
	a.engine.Stop(ctx)
	a.desk.Stop(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}

	if err := a.db.Close(); err != nil {
		a.log.Warn("directory close failed", logx.Err(err))
	}
	a.log.Info("console stopped")

	// Give file sinks a moment to flush.
	time.Sleep(10 * time.Millisecond)
}
