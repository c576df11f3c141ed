// Package model defines shared data structures.
package model

import (
	"strings"
	"time"
)

// Channel names a telemetry characteristic.
type Channel string

// Telemetry channels in the order they are wired.
const (
	ChannelVoltage Channel = "voltage"
	ChannelPercent Channel = "percent"
	ChannelCharge  Channel = "charge"
	ChannelState   Channel = "state"
	ChannelSpeed   Channel = "speed"
)

// Channels lists every telemetry channel.
var Channels = []Channel{ChannelVoltage, ChannelPercent, ChannelCharge, ChannelState, ChannelSpeed}

// Control opcodes understood by the stock firmware.
const (
	OpPowerToggle  byte = 0x10
	OpModeStandard byte = 0x20
	OpModeTurbo    byte = 0x21
)

// SanitizeUUID trims and lower-cases a characteristic identifier.
func SanitizeUUID(u string) string {
	return strings.ToLower(strings.TrimSpace(u))
}

// UUIDConfig maps the service and each channel to a characteristic UUID.
type UUIDConfig struct {
	Service string
	State   string
	Voltage string
	Percent string
	Charge  string
	Speed   string
	Control string
}

// Normalize returns a copy with every identifier sanitized.
func (u UUIDConfig) Normalize() UUIDConfig {
	return UUIDConfig{
		Service: SanitizeUUID(u.Service),
		State:   SanitizeUUID(u.State),
		Voltage: SanitizeUUID(u.Voltage),
		Percent: SanitizeUUID(u.Percent),
		Charge:  SanitizeUUID(u.Charge),
		Speed:   SanitizeUUID(u.Speed),
		Control: SanitizeUUID(u.Control),
	}
}

// For returns the characteristic UUID bound to a channel.
func (u UUIDConfig) For(ch Channel) string {
	switch ch {
	case ChannelState:
		return u.State
	case ChannelVoltage:
		return u.Voltage
	case ChannelPercent:
		return u.Percent
	case ChannelCharge:
		return u.Charge
	case ChannelSpeed:
		return u.Speed
	default:
		return ""
	}
}

// ControlUUID returns the characteristic that receives control writes.
// It falls back to the state characteristic when no dedicated one is set.
func (u UUIDConfig) ControlUUID() string {
	if c := SanitizeUUID(u.Control); c != "" {
		return c
	}
	return SanitizeUUID(u.State)
}

// Opcodes holds the single-byte control commands.
type Opcodes struct {
	Power    byte
	Standard byte
	Turbo    byte
}

// DefaultOpcodes returns the stock firmware opcodes.
func DefaultOpcodes() Opcodes {
	return Opcodes{Power: OpPowerToggle, Standard: OpModeStandard, Turbo: OpModeTurbo}
}

// Config defines panel settings.
type Config struct {
	UUIDs        UUIDConfig
	NamePrefix   string
	PollInterval time.Duration
	AsText       bool
	AutoStart    bool
	Opcodes      Opcodes
	// RequestTimeout bounds the device search; zero waits until the caller gives up.
	RequestTimeout time.Duration
}

// HistoryConfig defines filters for the usage report.
type HistoryConfig struct {
	Since  *time.Time
	Last   int
	Window int
}

// Reading is a raw characteristic value observed at a point in time.
type Reading struct {
	Channel Channel
	Raw     []byte
	At      time.Time
	// Gen identifies the telemetry start that produced the reading.
	Gen uint64
}

// StateFlags is the decoded operating state bitmask.
type StateFlags struct {
	On    bool
	Turbo bool
}

// Update is a decoded Reading ready for display.
type Update struct {
	Channel Channel
	Text    string
	Value   float64
	Decoded bool
	Flags   StateFlags
	Raw     []byte
	At      time.Time
}

// DayUsage is the accumulated on-time for one calendar day.
type DayUsage struct {
	Day     time.Time
	Key     string
	Minutes int
}
