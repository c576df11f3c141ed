// Package panel owns the device session and turns readings into display state.
package panel

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/verte-zerg/fanpanel/internal/ble"
	"github.com/verte-zerg/fanpanel/internal/model"
	"github.com/verte-zerg/fanpanel/internal/telemetry"
	"github.com/verte-zerg/fanpanel/internal/usage"
)

const readingBuffer = 64

// ErrServiceUUIDUnset is returned by Connect when no service UUID is configured.
var ErrServiceUUIDUnset = errors.New("service uuid not set")

// Level classifies a status message.
type Level string

// Status levels.
const (
	LevelInfo  Level = ""
	LevelOK    Level = "ok"
	LevelWarn  Level = "warn"
	LevelError Level = "err"
)

// Status is the one-line message shown to the user.
type Status struct {
	Text  string
	Level Level
}

// Snapshot is a consistent copy of everything the panel displays.
type Snapshot struct {
	State        ble.State
	DeviceName   string
	DeviceID     string
	CanReconnect bool
	Streaming    bool
	Values       map[model.Channel]string
	LastVoltage  string
	Flags        model.StateFlags
	OnSince      time.Time
	Usage        usage.Summary
	Status       Status
	AsText       bool
	ServiceUUID  string
}

// Connected reports whether the session is up.
func (s Snapshot) Connected() bool {
	return s.State == ble.StateConnected
}

// Panel coordinates the connection, telemetry and usage accounting.
type Panel struct {
	cfg      model.Config
	manager  *ble.Manager
	access   *ble.Access
	wiring   *telemetry.Wiring
	history  *usage.History
	logger   zerolog.Logger
	now      func() time.Time
	readings chan model.Reading

	mu          sync.Mutex
	tracker     usage.Tracker
	values      map[model.Channel]string
	lastVoltage string
	flags       model.StateFlags
	summary     usage.Summary
	status      Status
	asText      bool
	dataCancel  context.CancelFunc
	gen         uint64
	changeFns   []func(Snapshot)
	updateFns   []func(model.Update)
}

// New creates a panel for the device reachable through adapter.
func New(cfg model.Config, adapter ble.Adapter, history *usage.History, logger zerolog.Logger) *Panel {
	manager := ble.NewManager(adapter, logger)
	access := ble.NewAccess(manager, logger)
	p := &Panel{
		cfg:      cfg,
		manager:  manager,
		access:   access,
		wiring:   telemetry.NewWiring(access, cfg.PollInterval, logger),
		history:  history,
		logger:   logger.With().Str("component", "panel").Logger(),
		now:      time.Now,
		readings: make(chan model.Reading, readingBuffer),
		values:   map[model.Channel]string{},
		status:   Status{Text: "Disconnected"},
		asText:   cfg.AsText,
	}
	manager.OnDisconnected(p.onDisconnected)
	return p
}

// OnChange registers fn to receive a snapshot after every state change.
func (p *Panel) OnChange(fn func(Snapshot)) {
	p.mu.Lock()
	p.changeFns = append(p.changeFns, fn)
	p.mu.Unlock()
}

// OnUpdate registers fn to receive every decoded telemetry update.
func (p *Panel) OnUpdate(fn func(model.Update)) {
	p.mu.Lock()
	p.updateFns = append(p.updateFns, fn)
	p.mu.Unlock()
}

// Run consumes readings until ctx is done. It is the only place readings are applied.
func (p *Panel) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case r := <-p.readings:
			p.apply(r)
		}
	}
}

// Connect runs the connection flow. With reuse set the previously picked
// device is reconnected without scanning.
func (p *Panel) Connect(ctx context.Context, reuse bool) error {
	cfg := p.config()
	uuids := cfg.UUIDs.Normalize()
	if uuids.Service == "" {
		p.setStatus(Status{Text: "Enter Service UUID", Level: LevelWarn})
		return ErrServiceUUIDUnset
	}
	if reuse {
		p.setStatus(Status{Text: "Reconnecting…"})
	} else {
		p.setStatus(Status{Text: "Requesting device…"})
	}

	op := "connectFlow"
	connectCtx := ctx
	if cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		connectCtx, cancel = context.WithTimeout(ctx, cfg.RequestTimeout)
		defer cancel()
	}
	session, err := p.manager.Connect(connectCtx, ble.Request{ServiceUUID: uuids.Service, NamePrefix: cfg.NamePrefix}, reuse)
	if err != nil {
		return p.fail(op, err)
	}
	p.setStatus(Status{Text: "Connected", Level: LevelOK})
	p.logger.Info().Msgf("Connected to %s", nameOr(session.Device.Name(), "device"))
	if cfg.AutoStart {
		return p.StartData(ctx)
	}
	return nil
}

// StartData binds the telemetry channels of the active session.
func (p *Panel) StartData(_ context.Context) error {
	if p.manager.State() != ble.StateConnected {
		return p.fail("startData", ble.ErrNoService)
	}
	dataCtx, cancel := context.WithCancel(context.Background())
	p.mu.Lock()
	prev := p.dataCancel
	p.dataCancel = cancel
	p.gen++
	gen := p.gen
	p.mu.Unlock()
	if prev != nil {
		prev()
	}
	if err := p.wiring.Start(dataCtx, gen, p.config().UUIDs, p.readings); err != nil {
		return p.fail("startData", err)
	}
	p.notifyChange()
	return nil
}

// Disconnect tears down the session. Usage in progress is flushed.
func (p *Panel) Disconnect() error {
	if p.manager.Session() == nil {
		p.setStatus(Status{Text: "Disconnected", Level: LevelWarn})
		return nil
	}
	if err := p.manager.Disconnect(); err != nil {
		return p.fail("disconnect", err)
	}
	return nil
}

// Control writes a single opcode to the control characteristic.
func (p *Panel) Control(ctx context.Context, op byte) error {
	if err := p.access.WriteControl(ctx, p.config().UUIDs.ControlUUID(), []byte{op}); err != nil {
		return p.fail("writeControl", err)
	}
	return nil
}

// Send writes the opcode configured for cmd.
func (p *Panel) Send(ctx context.Context, cmd Command) error {
	op, err := cmd.Opcode(p.config().Opcodes)
	if err != nil {
		return p.fail("writeControl", err)
	}
	return p.Control(ctx, op)
}

// ResetHistory clears all recorded usage.
func (p *Panel) ResetHistory(ctx context.Context) error {
	if err := p.history.Reset(ctx); err != nil {
		return p.fail("resetHistory", err)
	}
	p.logger.Info().Msg("History reset")
	return p.RefreshUsage(ctx)
}

// RefreshUsage reloads today's and yesterday's totals.
func (p *Panel) RefreshUsage(ctx context.Context) error {
	sum, err := p.history.Summary(ctx)
	if err != nil {
		return p.fail("renderHist", err)
	}
	p.mu.Lock()
	p.summary = sum
	p.mu.Unlock()
	p.notifyChange()
	return nil
}

// SetServiceUUID replaces the service UUID used by the next Connect.
func (p *Panel) SetServiceUUID(uuid string) {
	p.mu.Lock()
	p.cfg.UUIDs.Service = model.SanitizeUUID(uuid)
	p.mu.Unlock()
	p.notifyChange()
}

// SetAsText toggles text decoding for values rendered from now on.
func (p *Panel) SetAsText(on bool) {
	p.mu.Lock()
	p.asText = on
	p.mu.Unlock()
	p.notifyChange()
}

// Snapshot returns the current display state.
func (p *Panel) Snapshot() Snapshot {
	state := p.manager.State()
	device := p.manager.Device()

	p.mu.Lock()
	defer p.mu.Unlock()
	values := make(map[model.Channel]string, len(p.values))
	for k, v := range p.values {
		values[k] = v
	}
	snap := Snapshot{
		State:        state,
		CanReconnect: device != nil,
		Streaming:    p.dataCancel != nil,
		Values:       values,
		LastVoltage:  p.lastVoltage,
		Flags:        p.flags,
		OnSince:      p.tracker.Since(),
		Usage:        p.summary,
		Status:       p.status,
		AsText:       p.asText,
		ServiceUUID:  model.SanitizeUUID(p.cfg.UUIDs.Service),
	}
	if device != nil {
		snap.DeviceName = nameOr(device.Name(), "Unknown")
		snap.DeviceID = device.ID()
	}
	return snap
}

func (p *Panel) config() model.Config {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg
}

// apply drops readings from an earlier telemetry start or session.
func (p *Panel) apply(r model.Reading) {
	p.mu.Lock()
	if r.Gen != p.gen {
		p.mu.Unlock()
		return
	}
	u := telemetry.Decode(r, p.asText)
	p.values[r.Channel] = u.Text
	if r.Channel == model.ChannelVoltage && u.Decoded {
		p.lastVoltage = u.Text
	}
	minutes := 0
	if r.Channel == model.ChannelState && u.Decoded {
		p.flags = u.Flags
		minutes = p.tracker.Observe(u.Flags.On, r.At)
	}
	fns := append([]func(model.Update){}, p.updateFns...)
	p.mu.Unlock()

	if minutes > 0 {
		p.bump(minutes)
	}
	for _, fn := range fns {
		fn(u)
	}
	p.notifyChange()
}

func (p *Panel) onDisconnected() {
	p.mu.Lock()
	cancel := p.dataCancel
	p.dataCancel = nil
	p.gen++
	minutes := p.tracker.Flush(p.now())
	p.flags = model.StateFlags{}
	p.status = Status{Text: "Disconnected", Level: LevelWarn}
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	p.access.StopPolling()
	p.logger.Info().Msg("Disconnected")
	if minutes > 0 {
		p.bump(minutes)
	}
	p.notifyChange()
}

func (p *Panel) bump(minutes int) {
	ctx := context.Background()
	if err := p.history.Bump(ctx, minutes); err != nil {
		_ = p.fail("bumpUsage", err)
		return
	}
	if err := p.RefreshUsage(ctx); err != nil {
		return
	}
}

// fail logs err with the operation name and surfaces it as the status line.
func (p *Panel) fail(op string, err error) error {
	p.logger.Error().Err(err).Str("op", op).Msgf("%s failed", op)
	p.setStatus(Status{Text: describe(err), Level: LevelError})
	return fmt.Errorf("%s: %w", op, err)
}

func (p *Panel) setStatus(s Status) {
	p.mu.Lock()
	p.status = s
	p.mu.Unlock()
	p.notifyChange()
}

func (p *Panel) notifyChange() {
	p.mu.Lock()
	fns := append([]func(Snapshot){}, p.changeFns...)
	p.mu.Unlock()
	if len(fns) == 0 {
		return
	}
	snap := p.Snapshot()
	for _, fn := range fns {
		fn(snap)
	}
}

func describe(err error) string {
	msg := err.Error()
	if i := strings.LastIndex(msg, ": "); i >= 0 && i+2 < len(msg) {
		return "Error: " + msg[i+2:]
	}
	return "Error: " + msg
}

func nameOr(name, fallback string) string {
	if name == "" {
		return fallback
	}
	return name
}
