package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/verte-zerg/fanpanel/internal/model"
)

type fakeAccess struct {
	subscribed []string
	polled     []string
	interval   time.Duration
	values     map[string][]byte
}

func (f *fakeAccess) Subscribe(_ context.Context, uuid string, onValue func([]byte)) (bool, error) {
	f.subscribed = append(f.subscribed, uuid)
	onValue(f.values[uuid])
	return true, nil
}

func (f *fakeAccess) Poll(_ context.Context, uuid string, onValue func([]byte), interval time.Duration) error {
	f.polled = append(f.polled, uuid)
	f.interval = interval
	onValue(f.values[uuid])
	return nil
}

func TestStartBindsConfiguredChannels(t *testing.T) {
	fa := &fakeAccess{values: map[string][]byte{
		"v": {0xe8, 0x03},
		"s": {0x01},
		"x": []byte("3"),
	}}
	w := NewWiring(fa, 0, zerolog.Nop())
	out := make(chan model.Reading, 8)
	uuids := model.UUIDConfig{Voltage: " V ", State: "s", Speed: "x"}

	if err := w.Start(context.Background(), 7, uuids, out); err != nil {
		t.Fatalf("start: %v", err)
	}
	if len(fa.subscribed) != 2 || fa.subscribed[0] != "v" || fa.subscribed[1] != "s" {
		t.Fatalf("unexpected subscriptions %v", fa.subscribed)
	}
	if len(fa.polled) != 1 || fa.polled[0] != "x" || fa.interval != DefaultPollInterval {
		t.Fatalf("unexpected poll %v every %s", fa.polled, fa.interval)
	}
	close(out)
	var channels []model.Channel
	for r := range out {
		if r.Gen != 7 {
			t.Fatalf("expected generation 7, got %d", r.Gen)
		}
		channels = append(channels, r.Channel)
	}
	want := []model.Channel{model.ChannelVoltage, model.ChannelState, model.ChannelSpeed}
	if len(channels) != len(want) {
		t.Fatalf("expected %v, got %v", want, channels)
	}
	for i := range want {
		if channels[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, channels)
		}
	}
}

func TestDecode(t *testing.T) {
	cases := []struct {
		ch     model.Channel
		raw    []byte
		asText bool
		text   string
	}{
		{model.ChannelVoltage, []byte{0xe8, 0x03}, false, "1.00 V"},
		{model.ChannelVoltage, []byte{0x00, 0x00}, false, "0x 00 00"},
		{model.ChannelVoltage, []byte("4"), true, "4"},
		{model.ChannelPercent, []byte{0x4b}, false, "75%"},
		{model.ChannelCharge, []byte{0x01}, false, "Charging"},
		{model.ChannelCharge, []byte{0x00}, false, "Not charging"},
		{model.ChannelState, []byte{0x03}, false, "ON / Turbo"},
		{model.ChannelState, nil, false, "—"},
		{model.ChannelSpeed, []byte{0x41, 0x42}, true, "AB"},
		{model.ChannelSpeed, []byte{0x41, 0x42}, false, "0x 41 42"},
	}
	for _, tc := range cases {
		u := Decode(model.Reading{Channel: tc.ch, Raw: tc.raw}, tc.asText)
		if u.Text != tc.text {
			t.Fatalf("%s %v: expected %q, got %q", tc.ch, tc.raw, tc.text, u.Text)
		}
	}

	u := Decode(model.Reading{Channel: model.ChannelState, Raw: []byte{0x01}}, false)
	if !u.Decoded || !u.Flags.On || u.Flags.Turbo {
		t.Fatalf("unexpected state update %+v", u)
	}
}

type notifyAccess struct {
	listeners []func([]byte)
}

func (n *notifyAccess) Subscribe(_ context.Context, _ string, onValue func([]byte)) (bool, error) {
	n.listeners = append(n.listeners, onValue)
	return true, nil
}

func (n *notifyAccess) Poll(context.Context, string, func([]byte), time.Duration) error {
	return nil
}

func (n *notifyAccess) notify(raw []byte) {
	for _, fn := range n.listeners {
		fn(raw)
	}
}

func TestCancelledStartStopsEmitting(t *testing.T) {
	na := &notifyAccess{}
	w := NewWiring(na, 0, zerolog.Nop())
	out := make(chan model.Reading, 8)
	uuids := model.UUIDConfig{State: "s"}

	first, cancel := context.WithCancel(context.Background())
	if err := w.Start(first, 1, uuids, out); err != nil {
		t.Fatalf("start: %v", err)
	}
	cancel()
	if err := w.Start(context.Background(), 2, uuids, out); err != nil {
		t.Fatalf("restart: %v", err)
	}

	for i := 0; i < 4; i++ {
		na.notify([]byte{0x01})
	}
	if len(out) != 4 {
		t.Fatalf("expected one reading per notification, got %d", len(out))
	}
	for len(out) > 0 {
		if r := <-out; r.Gen != 2 {
			t.Fatalf("reading from cancelled start delivered: %+v", r)
		}
	}
}
