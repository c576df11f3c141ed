package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/verte-zerg/fanpanel/internal/ble"
	"github.com/verte-zerg/fanpanel/internal/model"
	"github.com/verte-zerg/fanpanel/internal/panel"
	"github.com/verte-zerg/fanpanel/internal/usage"
)

type fakePanel struct {
	snap panel.Snapshot
	sent []panel.Command
	err  error
}

func (f *fakePanel) Snapshot() panel.Snapshot { return f.snap }

func (f *fakePanel) Send(_ context.Context, cmd panel.Command) error {
	f.sent = append(f.sent, cmd)
	return f.err
}

func connectedPanel() *fakePanel {
	return &fakePanel{snap: panel.Snapshot{
		State:      ble.StateConnected,
		DeviceName: "Fan-01",
		Values:     map[model.Channel]string{model.ChannelVoltage: "3.70 V"},
		Flags:      model.StateFlags{On: true},
		OnSince:    time.Date(2026, 3, 7, 12, 0, 0, 0, time.UTC),
		Usage:      usage.Summary{Today: 4, Yesterday: 9},
		Status:     panel.Status{Text: "Connected", Level: panel.LevelOK},
	}}
}

func TestStatusHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	StatusHandler(connectedPanel()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	var st Status
	if err := json.NewDecoder(rec.Body).Decode(&st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !st.Connected || st.State != "Connected" || st.Values["voltage"] != "3.70 V" || !st.PowerOn {
		t.Fatalf("unexpected body %+v", st)
	}
	if st.Usage.Today != 4 || st.Usage.Yesterday != 9 || st.OnSince == nil {
		t.Fatalf("unexpected usage %+v", st)
	}
}

func TestControlHandler(t *testing.T) {
	var observed []string
	onCommand := func(cmd string, err error) { observed = append(observed, cmd) }

	cases := []struct {
		name   string
		panel  *fakePanel
		method string
		query  string
		status int
		sent   int
	}{
		{"ok", connectedPanel(), http.MethodPost, "?cmd=turbo", http.StatusOK, 1},
		{"wrong method", connectedPanel(), http.MethodGet, "?cmd=turbo", http.StatusMethodNotAllowed, 0},
		{"unknown", connectedPanel(), http.MethodPost, "?cmd=boost", http.StatusBadRequest, 0},
		{"disconnected", &fakePanel{}, http.MethodPost, "?cmd=power", http.StatusConflict, 0},
		{"write fails", &fakePanel{snap: connectedPanel().snap, err: errors.New("gatt")}, http.MethodPost, "?cmd=power", http.StatusBadGateway, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			ControlHandler(tc.panel, onCommand).ServeHTTP(rec, httptest.NewRequest(tc.method, "/api/control"+tc.query, nil))
			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rec.Code)
			}
			if len(tc.panel.sent) != tc.sent {
				t.Fatalf("expected %d sends, got %d", tc.sent, len(tc.panel.sent))
			}
		})
	}
	if len(observed) != 2 {
		t.Fatalf("expected 2 observed commands, got %v", observed)
	}
}
