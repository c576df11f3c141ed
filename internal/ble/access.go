package ble

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/verte-zerg/fanpanel/internal/format"
	"github.com/verte-zerg/fanpanel/internal/model"
)

// ServiceSource yields the service of the active session.
type ServiceSource interface {
	ActiveService() (Service, error)
}

// Access reads, writes, subscribes to and polls characteristics of the active service.
type Access struct {
	source ServiceSource
	logger zerolog.Logger

	mu         sync.Mutex
	pollCancel context.CancelFunc
	pollDone   chan struct{}
}

// NewAccess creates an access layer over source.
func NewAccess(source ServiceSource, logger zerolog.Logger) *Access {
	return &Access{
		source: source,
		logger: logger.With().Str("component", "gatt").Logger(),
	}
}

// Get resolves a characteristic of the active service.
func (a *Access) Get(ctx context.Context, uuid string) (Characteristic, error) {
	id := model.SanitizeUUID(uuid)
	svc, err := a.source.ActiveService()
	if err != nil {
		return nil, err
	}
	ch, err := svc.Characteristic(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("characteristic %s: %w", id, err)
	}
	return ch, nil
}

// Subscribe delivers every value change of uuid to onValue and primes it with
// one read. When the characteristic cannot notify, it does a single read instead
// and returns false. An empty uuid is ignored.
func (a *Access) Subscribe(ctx context.Context, uuid string, onValue func([]byte)) (bool, error) {
	id := model.SanitizeUUID(uuid)
	if id == "" {
		return false, nil
	}
	ch, err := a.Get(ctx, id)
	if err != nil {
		return false, err
	}
	if ch.Properties().CanNotify() {
		err := ch.EnableNotifications(onValue)
		if err == nil {
			if v, err := ch.Read(ctx); err == nil {
				onValue(v)
			}
			a.logger.Info().Str("uuid", id).Msg("Notifications started")
			return true, nil
		}
		a.logger.Debug().Err(err).Str("uuid", id).Msg("Notifications unavailable; reading once")
	}
	v, err := ch.Read(ctx)
	if err != nil {
		a.logger.Error().Err(err).Str("uuid", id).Msg("readValue failed")
		return false, nil
	}
	onValue(v)
	return false, nil
}

// Poll reads uuid immediately and then every interval. A failed read stops the
// poll and is logged; it is not retried. Starting a poll stops the previous one.
func (a *Access) Poll(ctx context.Context, uuid string, onValue func([]byte), interval time.Duration) error {
	id := model.SanitizeUUID(uuid)
	if id == "" {
		return nil
	}
	if interval <= 0 {
		return fmt.Errorf("poll %s: interval must be > 0", id)
	}
	ch, err := a.Get(ctx, id)
	if err != nil {
		return err
	}

	a.StopPolling()
	pollCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	a.mu.Lock()
	a.pollCancel = cancel
	a.pollDone = done
	a.mu.Unlock()

	tick := func() bool {
		v, err := ch.Read(pollCtx)
		if err != nil {
			if pollCtx.Err() == nil {
				a.logger.Error().Err(err).Str("uuid", id).Msg("Poll failed; stopping")
			}
			return false
		}
		onValue(v)
		return true
	}

	if !tick() {
		cancel()
		close(done)
		return nil
	}
	a.logger.Info().Str("uuid", id).Dur("interval", interval).Msg("Polling")

	go func() {
		defer close(done)
		defer cancel()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-pollCtx.Done():
				return
			case <-ticker.C:
				if !tick() {
					return
				}
			}
		}
	}()
	return nil
}

// StopPolling cancels the running poll, if any, and waits for it to exit.
func (a *Access) StopPolling() {
	a.mu.Lock()
	cancel, done := a.pollCancel, a.pollDone
	a.pollCancel, a.pollDone = nil, nil
	a.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Polling reports whether a poll is running.
func (a *Access) Polling() bool {
	a.mu.Lock()
	done := a.pollDone
	a.mu.Unlock()
	if done == nil {
		return false
	}
	select {
	case <-done:
		return false
	default:
		return true
	}
}

// WriteControl writes value to the control characteristic uuid. It only logs a
// warning when uuid is unset or the characteristic is not writable.
func (a *Access) WriteControl(ctx context.Context, uuid string, value []byte) error {
	id := model.SanitizeUUID(uuid)
	if id == "" {
		a.logger.Warn().Msg("Control/State UUID not set")
		return nil
	}
	ch, err := a.Get(ctx, id)
	if err != nil {
		return err
	}
	if !ch.Properties().CanWrite() {
		a.logger.Warn().Str("uuid", id).Msg("Control characteristic not writable")
		return nil
	}
	if err := ch.Write(ctx, value); err != nil {
		return fmt.Errorf("write %s: %w", id, err)
	}
	a.logger.Info().Str("uuid", id).Msgf("Wrote %s", strings.TrimPrefix(format.Hex(value), "0x "))
	return nil
}
