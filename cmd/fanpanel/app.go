package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/verte-zerg/fanpanel/internal/api"
	"github.com/verte-zerg/fanpanel/internal/ble"
	"github.com/verte-zerg/fanpanel/internal/bridge"
	"github.com/verte-zerg/fanpanel/internal/config"
	"github.com/verte-zerg/fanpanel/internal/metrics"
	"github.com/verte-zerg/fanpanel/internal/model"
	"github.com/verte-zerg/fanpanel/internal/panel"
	"github.com/verte-zerg/fanpanel/internal/shell"
	"github.com/verte-zerg/fanpanel/internal/store"
	"github.com/verte-zerg/fanpanel/internal/usage"
)

// app holds everything a command needs to drive one device.
type app struct {
	settings settings
	logger   zerolog.Logger
	store    *store.Store
	history  *usage.History
	adapter  *ble.HostAdapter
	panel    *panel.Panel
	server   *metrics.Server
	bridge   *bridge.Bridge
}

func openHistory(logger zerolog.Logger) (*store.Store, *usage.History, error) {
	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	return st, usage.NewHistory(st, time.Now, logger), nil
}

func openApp(s settings, logger zerolog.Logger) (*app, error) {
	st, history, err := openHistory(logger)
	if err != nil {
		return nil, err
	}
	adapter := ble.NewHostAdapter(logger)
	return &app{
		settings: s,
		logger:   logger,
		store:    st,
		history:  history,
		adapter:  adapter,
		panel:    panel.New(s.panel, adapter, history, logger),
	}, nil
}

// startServices brings up the optional HTTP listener and MQTT bridge.
func (a *app) startServices(ctx context.Context) error {
	if a.settings.metrics != "" {
		if err := a.startServer(); err != nil {
			return err
		}
	}
	if a.settings.mqtt.Broker != "" {
		if err := a.startBridge(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) startServer() error {
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)
	a.panel.OnUpdate(collector.ObserveUpdate)
	a.panel.OnChange(collector.ObserveSnapshot)

	srv := metrics.NewServer(a.settings.metrics, reg, a.logger)
	api.Register(srv, a.panel, collector.ObserveCommand, a.logger)
	cache, err := shell.Install(shell.Embedded(), a.logger)
	if err != nil {
		return err
	}
	srv.Use(cache.Handler)
	if err := srv.Start(); err != nil {
		return err
	}
	a.server = srv
	return nil
}

func (a *app) startBridge(ctx context.Context) error {
	b, err := bridge.Dial(a.settings.mqtt, a.logger)
	if err != nil {
		return err
	}
	a.bridge = b

	a.panel.OnUpdate(func(u model.Update) {
		if err := b.Publish(u); err != nil {
			a.logger.Debug().Err(err).Msg("MQTT publish failed")
		}
	})

	var (
		mu        sync.Mutex
		lastState ble.State = -1
		lastUsage usage.Summary
		published bool
	)
	a.panel.OnChange(func(s panel.Snapshot) {
		mu.Lock()
		stateChanged := s.State != lastState
		usageChanged := !published || s.Usage != lastUsage
		lastState, lastUsage, published = s.State, s.Usage, true
		mu.Unlock()

		if stateChanged {
			if err := b.PublishConnection(s.State.String()); err != nil {
				a.logger.Debug().Err(err).Msg("MQTT publish failed")
			}
		}
		if usageChanged {
			if err := b.PublishUsage(s.Usage); err != nil {
				a.logger.Debug().Err(err).Msg("MQTT publish failed")
			}
		}
	})

	return b.SubscribeCommands(func(cmd panel.Command) {
		go func() {
			if err := a.panel.Send(ctx, cmd); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Warn().Str("command", string(cmd)).Msg("MQTT command failed")
			}
		}()
	})
}

// Close disconnects the device and releases every resource. Errors are logged.
func (a *app) Close() {
	if err := a.panel.Disconnect(); err != nil {
		a.logger.Debug().Err(err).Msg("Disconnect on exit failed")
	}
	if a.bridge != nil {
		a.bridge.Close()
	}
	if a.server != nil {
		if err := a.server.Stop(); err != nil {
			a.logger.Warn().Err(err).Msg("Failed to stop HTTP server")
		}
	}
	if err := a.store.Close(); err != nil {
		logErrf("failed to close database: %v\n", err)
	}
}
