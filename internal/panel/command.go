package panel

import (
	"errors"
	"fmt"
	"strings"

	"github.com/verte-zerg/fanpanel/internal/model"
)

// ErrUnknownCommand is returned for command names that map to no opcode.
var ErrUnknownCommand = errors.New("unknown command")

// Command names a control action.
type Command string

// Supported commands.
const (
	CommandPower    Command = "power"
	CommandStandard Command = "standard"
	CommandTurbo    Command = "turbo"
)

// Commands lists every supported command.
var Commands = []Command{CommandPower, CommandStandard, CommandTurbo}

// ParseCommand accepts a command name in any case.
func ParseCommand(s string) (Command, error) {
	cmd := Command(strings.ToLower(strings.TrimSpace(s)))
	for _, c := range Commands {
		if c == cmd {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCommand, s)
}

// Opcode resolves the byte written for c.
func (c Command) Opcode(ops model.Opcodes) (byte, error) {
	switch c {
	case CommandPower:
		return ops.Power, nil
	case CommandStandard:
		return ops.Standard, nil
	case CommandTurbo:
		return ops.Turbo, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownCommand, string(c))
	}
}
