// Package format renders raw characteristic values for display.
package format

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/verte-zerg/fanpanel/internal/model"
)

// Placeholder is shown for a missing value.
const Placeholder = "—"

// ErrShortValue is returned when a value has fewer bytes than the decoder needs.
var ErrShortValue = errors.New("value too short")

// Value renders bytes as text when asText is set and the bytes are printable,
// otherwise as a space-separated hex string.
func Value(b []byte, asText bool) string {
	if len(b) == 0 {
		return Placeholder
	}
	if asText {
		if s, ok := printable(b); ok {
			return s
		}
	}
	return Hex(b)
}

// Hex renders bytes as "0x 41 42".
func Hex(b []byte) string {
	parts := make([]string, len(b))
	for i, c := range b {
		parts[i] = fmt.Sprintf("%02x", c)
	}
	return "0x " + strings.Join(parts, " ")
}

func printable(b []byte) (string, bool) {
	if !utf8.Valid(b) {
		return "", false
	}
	s := string(b)
	for _, r := range s {
		if !unicode.IsPrint(r) && !unicode.IsSpace(r) {
			return "", false
		}
	}
	if strings.TrimSpace(s) == "" {
		return "", false
	}
	return s, true
}

// Uint16LE decodes the first two bytes as a little-endian unsigned integer.
func Uint16LE(b []byte) (uint16, error) {
	if len(b) < 2 {
		return 0, fmt.Errorf("uint16: %w (%d bytes)", ErrShortValue, len(b))
	}
	return binary.LittleEndian.Uint16(b), nil
}

// Uint8 decodes the first byte.
func Uint8(b []byte) (uint8, error) {
	if len(b) < 1 {
		return 0, fmt.Errorf("uint8: %w", ErrShortValue)
	}
	return b[0], nil
}

// Volts renders a millivolt reading as "1.00 V".
func Volts(mv uint16) string {
	return fmt.Sprintf("%.2f V", float64(mv)/1000)
}

// Percent renders a fan percentage.
func Percent(p uint8) string {
	return fmt.Sprintf("%d%%", p)
}

// Charge renders the charging indicator.
func Charge(c uint8) string {
	if c != 0 {
		return "Charging"
	}
	return "Not charging"
}

// Flags decodes the state bitmask: bit 0 is power, bit 1 is turbo.
func Flags(s uint8) model.StateFlags {
	return model.StateFlags{On: s&0x01 != 0, Turbo: s&0x02 != 0}
}

// State renders state flags as "ON / Turbo".
func State(f model.StateFlags) string {
	parts := []string{"OFF"}
	if f.On {
		parts[0] = "ON"
	}
	if f.Turbo {
		parts = append(parts, "Turbo")
	}
	return strings.Join(parts, " / ")
}

// Minutes renders a usage duration in minutes as "1h 05m".
func Minutes(m int) string {
	if m < 60 {
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%dh %02dm", m/60, m%60)
}
