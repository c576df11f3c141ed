package panel

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/verte-zerg/fanpanel/internal/ble"
	"github.com/verte-zerg/fanpanel/internal/ble/bletest"
	"github.com/verte-zerg/fanpanel/internal/model"
	"github.com/verte-zerg/fanpanel/internal/store"
	"github.com/verte-zerg/fanpanel/internal/usage"
)

const (
	svcUUID   = "0000fff0-0000-1000-8000-00805f9b34fb"
	stateUUID = "0000fff1-0000-1000-8000-00805f9b34fb"
)

var noon = time.Date(2026, 3, 7, 12, 0, 0, 0, time.Local)

type fixture struct {
	panel *Panel
	dev   *bletest.Device
	state *bletest.Characteristic
	clock *time.Time
}

func newFixture(t *testing.T, autoStart bool) *fixture {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "fanpanel.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	clock := noon
	now := func() time.Time { return clock }

	state := bletest.NewCharacteristic(stateUUID, ble.PropRead|ble.PropWrite|ble.PropNotify, []byte{0x03})
	dev := bletest.NewDevice("AA:BB", "Fan-01", bletest.NewService(svcUUID, state))
	cfg := model.Config{
		UUIDs:     model.UUIDConfig{Service: svcUUID, State: stateUUID},
		AutoStart: autoStart,
		Opcodes:   model.DefaultOpcodes(),
	}
	p := New(cfg, bletest.NewAdapter(dev), usage.NewHistory(st, now, zerolog.Nop()), zerolog.Nop())
	p.now = now
	return &fixture{panel: p, dev: dev, state: state, clock: &clock}
}

func TestOnOffCycleBumpsOnce(t *testing.T) {
	f := newFixture(t, false)
	p := f.panel

	p.apply(model.Reading{Channel: model.ChannelState, Raw: []byte{0x01}, At: noon})
	p.apply(model.Reading{Channel: model.ChannelState, Raw: []byte{0x01}, At: noon.Add(time.Minute)})
	if !p.Snapshot().Flags.On {
		t.Fatalf("expected device on")
	}
	p.apply(model.Reading{Channel: model.ChannelState, Raw: []byte{0x00}, At: noon.Add(5 * time.Minute)})
	p.apply(model.Reading{Channel: model.ChannelState, Raw: []byte{0x00}, At: noon.Add(6 * time.Minute)})

	snap := p.Snapshot()
	if snap.Usage.Today != 5 {
		t.Fatalf("expected 5 minutes today, got %d", snap.Usage.Today)
	}
	if snap.Values[model.ChannelState] != "OFF" {
		t.Fatalf("unexpected state text %q", snap.Values[model.ChannelState])
	}
}

func TestDisconnectFlushesOnPeriod(t *testing.T) {
	f := newFixture(t, false)
	p := f.panel
	ctx := context.Background()

	if err := p.Connect(ctx, false); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if snap := p.Snapshot(); !snap.Connected() || snap.DeviceName != "Fan-01" || snap.Status.Text != "Connected" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	p.apply(model.Reading{Channel: model.ChannelState, Raw: []byte{0x01}, At: noon})
	*f.clock = noon.Add(3 * time.Minute)

	if err := p.Disconnect(); err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	snap := p.Snapshot()
	if snap.Connected() || snap.Status.Text != "Disconnected" || snap.Status.Level != LevelWarn {
		t.Fatalf("unexpected snapshot after disconnect %+v", snap)
	}
	if snap.Usage.Today != 3 {
		t.Fatalf("expected 3 minutes, got %d", snap.Usage.Today)
	}
	if !snap.CanReconnect {
		t.Fatalf("expected reconnect to be offered")
	}

	// A second disconnect must not count the period again.
	if err := p.Disconnect(); err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	if got := p.Snapshot().Usage.Today; got != 3 {
		t.Fatalf("expected 3 minutes after second disconnect, got %d", got)
	}
}

func TestLinkLossFlushesOnPeriod(t *testing.T) {
	f := newFixture(t, false)
	p := f.panel
	if err := p.Connect(context.Background(), false); err != nil {
		t.Fatalf("connect: %v", err)
	}
	p.apply(model.Reading{Channel: model.ChannelState, Raw: []byte{0x01}, At: noon})
	*f.clock = noon.Add(10 * time.Minute)
	f.dev.DropLink()

	if got := p.Snapshot().Usage.Today; got != 10 {
		t.Fatalf("expected 10 minutes, got %d", got)
	}
}

func TestConnectRequiresServiceUUID(t *testing.T) {
	f := newFixture(t, false)
	p := f.panel
	p.SetServiceUUID("  ")

	err := p.Connect(context.Background(), false)
	if !errors.Is(err, ErrServiceUUIDUnset) {
		t.Fatalf("expected ErrServiceUUIDUnset, got %v", err)
	}
	if s := p.Snapshot().Status; s.Text != "Enter Service UUID" || s.Level != LevelWarn {
		t.Fatalf("unexpected status %+v", s)
	}
}

func TestReconnectWithoutDeviceFails(t *testing.T) {
	f := newFixture(t, false)
	p := f.panel
	err := p.Connect(context.Background(), true)
	if !errors.Is(err, ble.ErrNoDevice) {
		t.Fatalf("expected ErrNoDevice, got %v", err)
	}
	if p.Snapshot().Status.Level != LevelError {
		t.Fatalf("expected error status")
	}
}

func TestAutoStartStreamsReadings(t *testing.T) {
	f := newFixture(t, true)
	p := f.panel
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates := make(chan model.Update, 8)
	p.OnUpdate(func(u model.Update) { updates <- u })
	go func() {
		_ = p.Run(ctx)
	}()

	if err := p.Connect(ctx, false); err != nil {
		t.Fatalf("connect: %v", err)
	}
	waitFor(t, updates, "ON / Turbo")

	f.state.Notify([]byte{0x00})
	waitFor(t, updates, "OFF")

	if err := p.Disconnect(); err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	if p.Snapshot().Streaming {
		t.Fatalf("expected streaming to stop")
	}
}

func TestSendWritesOpcode(t *testing.T) {
	f := newFixture(t, false)
	p := f.panel
	ctx := context.Background()
	if err := p.Connect(ctx, false); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := p.Send(ctx, CommandTurbo); err != nil {
		t.Fatalf("send: %v", err)
	}
	writes := f.state.Writes()
	if len(writes) != 1 || len(writes[0]) != 1 || writes[0][0] != model.OpModeTurbo {
		t.Fatalf("unexpected writes %v", writes)
	}
}

func TestResetHistory(t *testing.T) {
	f := newFixture(t, false)
	p := f.panel
	ctx := context.Background()
	p.apply(model.Reading{Channel: model.ChannelState, Raw: []byte{0x01}, At: noon})
	p.apply(model.Reading{Channel: model.ChannelState, Raw: []byte{0x00}, At: noon.Add(2 * time.Minute)})
	if err := p.ResetHistory(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if got := p.Snapshot().Usage; got.Today != 0 || got.Yesterday != 0 {
		t.Fatalf("expected empty usage, got %+v", got)
	}
}

func TestParseCommand(t *testing.T) {
	cmd, err := ParseCommand(" Turbo ")
	if err != nil || cmd != CommandTurbo {
		t.Fatalf("unexpected parse %q %v", cmd, err)
	}
	if _, err := ParseCommand("boost"); !errors.Is(err, ErrUnknownCommand) {
		t.Fatalf("expected ErrUnknownCommand, got %v", err)
	}
	op, err := CommandPower.Opcode(model.DefaultOpcodes())
	if err != nil || op != model.OpPowerToggle {
		t.Fatalf("unexpected opcode %#x %v", op, err)
	}
}

func waitFor(t *testing.T, updates <-chan model.Update, text string) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case u := <-updates:
			if u.Channel == model.ChannelState && u.Text == text {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %q", text)
		}
	}
}

func drain(p *Panel) {
	for {
		select {
		case r := <-p.readings:
			p.apply(r)
		default:
			return
		}
	}
}

func TestQueuedReadingsIgnoredAfterDisconnect(t *testing.T) {
	f := newFixture(t, false)
	p := f.panel
	ctx := context.Background()

	if err := p.Connect(ctx, false); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := p.StartData(ctx); err != nil {
		t.Fatalf("start data: %v", err)
	}
	if len(p.readings) == 0 {
		t.Fatalf("expected the priming read to be queued")
	}
	if err := p.Disconnect(); err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	drain(p)

	snap := p.Snapshot()
	if snap.Flags.On || !snap.OnSince.IsZero() {
		t.Fatalf("tracker restarted while disconnected: %+v", snap)
	}
	if _, ok := snap.Values[model.ChannelState]; ok {
		t.Fatalf("unexpected state value %q", snap.Values[model.ChannelState])
	}

	// Reconnect an hour later; the off reading must not count the gap.
	*f.clock = noon.Add(time.Hour)
	if err := p.Connect(ctx, true); err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	f.state.Notify([]byte{0x00})
	if err := p.StartData(ctx); err != nil {
		t.Fatalf("start data: %v", err)
	}
	drain(p)
	if got := p.Snapshot().Usage.Today; got != 0 {
		t.Fatalf("expected no usage, got %d", got)
	}
}

func TestRestartingDataDoesNotDuplicateReadings(t *testing.T) {
	f := newFixture(t, false)
	p := f.panel
	ctx := context.Background()

	if err := p.Connect(ctx, false); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := p.StartData(ctx); err != nil {
		t.Fatalf("start data: %v", err)
	}
	if err := p.StartData(ctx); err != nil {
		t.Fatalf("restart data: %v", err)
	}
	drain(p)
	if f.state.Subscribers() != 2 {
		t.Fatalf("expected both listeners registered, got %d", f.state.Subscribers())
	}

	f.state.Notify([]byte{0x01})
	if len(p.readings) != 1 {
		t.Fatalf("expected one reading per notification, got %d", len(p.readings))
	}
	drain(p)
	if !p.Snapshot().Flags.On {
		t.Fatalf("expected device on")
	}
}
