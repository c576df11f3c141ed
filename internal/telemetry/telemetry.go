// Package telemetry binds the device's characteristics to typed readings.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/verte-zerg/fanpanel/internal/format"
	"github.com/verte-zerg/fanpanel/internal/model"
)

// DefaultPollInterval is how often the speed characteristic is read.
const DefaultPollInterval = 2 * time.Second

// Accessor is the subset of the access layer the wiring needs.
type Accessor interface {
	Subscribe(ctx context.Context, uuid string, onValue func([]byte)) (bool, error)
	Poll(ctx context.Context, uuid string, onValue func([]byte), interval time.Duration) error
}

// Wiring subscribes or polls each configured channel and emits Readings.
type Wiring struct {
	access       Accessor
	pollInterval time.Duration
	now          func() time.Time
	logger       zerolog.Logger
}

// NewWiring creates a wiring over access. A zero interval uses DefaultPollInterval.
func NewWiring(access Accessor, pollInterval time.Duration, logger zerolog.Logger) *Wiring {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &Wiring{
		access:       access,
		pollInterval: pollInterval,
		now:          time.Now,
		logger:       logger.With().Str("component", "telemetry").Logger(),
	}
}

// Start binds every channel with a non-empty UUID. Readings are stamped with
// gen and sent to out until ctx is done; the speed channel is polled, the
// others subscribed.
func (w *Wiring) Start(ctx context.Context, gen uint64, uuids model.UUIDConfig, out chan<- model.Reading) error {
	uuids = uuids.Normalize()
	bound := 0
	for _, ch := range model.Channels {
		id := uuids.For(ch)
		if id == "" {
			continue
		}
		emit := w.emitter(ctx, gen, ch, out)
		if ch == model.ChannelSpeed {
			if err := w.access.Poll(ctx, id, emit, w.pollInterval); err != nil {
				return fmt.Errorf("poll %s: %w", ch, err)
			}
		} else if _, err := w.access.Subscribe(ctx, id, emit); err != nil {
			return fmt.Errorf("subscribe %s: %w", ch, err)
		}
		bound++
	}
	w.logger.Debug().Int("channels", bound).Msg("Telemetry started")
	return nil
}

// emitter drops values once ctx is done. Stale listeners stay registered
// with the stack after a restart, so the check comes before the send.
func (w *Wiring) emitter(ctx context.Context, gen uint64, ch model.Channel, out chan<- model.Reading) func([]byte) {
	return func(raw []byte) {
		if ctx.Err() != nil {
			return
		}
		r := model.Reading{Channel: ch, Raw: raw, At: w.now(), Gen: gen}
		select {
		case out <- r:
		case <-ctx.Done():
		}
	}
}

// Decode renders a reading according to its channel. Values that do not
// decode fall back to the generic text/hex rendering.
func Decode(r model.Reading, asText bool) model.Update {
	u := model.Update{Channel: r.Channel, Raw: r.Raw, At: r.At, Text: format.Value(r.Raw, asText)}
	switch r.Channel {
	case model.ChannelVoltage:
		mv, err := format.Uint16LE(r.Raw)
		if err == nil && mv > 0 {
			u.Text = format.Volts(mv)
			u.Value = float64(mv) / 1000
			u.Decoded = true
		}
	case model.ChannelPercent:
		if p, err := format.Uint8(r.Raw); err == nil {
			u.Text = format.Percent(p)
			u.Value = float64(p)
			u.Decoded = true
		}
	case model.ChannelCharge:
		if c, err := format.Uint8(r.Raw); err == nil {
			u.Text = format.Charge(c)
			if c != 0 {
				u.Value = 1
			}
			u.Decoded = true
		}
	case model.ChannelState:
		if s, err := format.Uint8(r.Raw); err == nil {
			u.Flags = format.Flags(s)
			u.Text = format.State(u.Flags)
			u.Value = float64(s)
			u.Decoded = true
		}
	}
	return u
}
