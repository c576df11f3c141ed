package tui

import (
	"github.com/charmbracelet/bubbles/key"

	"github.com/verte-zerg/fanpanel/internal/ble"
	"github.com/verte-zerg/fanpanel/internal/panel"
)

type keyMap struct {
	Connect    key.Binding
	Reconnect  key.Binding
	Disconnect key.Binding
	Start      key.Binding
	Power      key.Binding
	Standard   key.Binding
	Turbo      key.Binding
	AsText     key.Binding
	Service    key.Binding
	History    key.Binding
	ClearLog   key.Binding
	Reset      key.Binding
	Quit       key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Connect:    key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "connect")),
		Reconnect:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reconnect")),
		Disconnect: key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "disconnect")),
		Start:      key.NewBinding(key.WithKeys("g"), key.WithHelp("g", "start data")),
		Power:      key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "power")),
		Standard:   key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "standard")),
		Turbo:      key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "turbo")),
		AsText:     key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "text/hex")),
		Service:    key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "service uuid")),
		History:    key.NewBinding(key.WithKeys("h"), key.WithHelp("h", "history")),
		ClearLog:   key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "clear log")),
		Reset:      key.NewBinding(key.WithKeys("R"), key.WithHelp("R", "reset history")),
		Quit:       key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// apply enables each binding for the current session state.
func (k *keyMap) apply(s panel.Snapshot, busy bool) {
	connected := s.Connected()
	idle := !busy && s.State == ble.StateDisconnected
	k.Connect.SetEnabled(idle)
	k.Reconnect.SetEnabled(idle && s.CanReconnect)
	k.Disconnect.SetEnabled(connected)
	k.Start.SetEnabled(connected && !busy && !s.Streaming)
	k.Power.SetEnabled(connected)
	k.Standard.SetEnabled(connected)
	k.Turbo.SetEnabled(connected)
	k.Service.SetEnabled(idle)
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{
		k.Connect, k.Reconnect, k.Disconnect, k.Start,
		k.Power, k.Standard, k.Turbo,
		k.AsText, k.Service, k.History, k.ClearLog, k.Reset, k.Quit,
	}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Connect, k.Reconnect, k.Disconnect, k.Start},
		{k.Power, k.Standard, k.Turbo},
		{k.AsText, k.Service, k.History, k.ClearLog, k.Reset, k.Quit},
	}
}
