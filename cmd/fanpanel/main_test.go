package main

import (
	"strings"
	"testing"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/fanpanel/internal/config"
	"github.com/verte-zerg/fanpanel/internal/logging"
	"github.com/verte-zerg/fanpanel/internal/model"
)

func TestDefaultConfigTemplateDecodes(t *testing.T) {
	var cfg config.FileConfig
	if _, err := toml.Decode(defaultConfigTemplate(), &cfg); err != nil {
		t.Fatalf("decode template: %v", err)
	}

	uncommented := strings.ReplaceAll(defaultConfigTemplate(), "\n# ", "\n")
	uncommented = strings.TrimPrefix(uncommented, "# fanpanel configuration\n")
	var lines []string
	for _, line := range strings.Split(uncommented, "\n") {
		if strings.HasPrefix(line, "Uncomment") {
			continue
		}
		lines = append(lines, line)
	}
	cfg = config.FileConfig{}
	if _, err := toml.Decode(strings.Join(lines, "\n"), &cfg); err != nil {
		t.Fatalf("decode uncommented template: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate uncommented template: %v", err)
	}
	if cfg.Control.Turbo == nil || *cfg.Control.Turbo != int(model.DefaultOpcodes().Turbo) {
		t.Fatalf("expected default turbo opcode, got %v", cfg.Control.Turbo)
	}
}

func TestApplyConfigRespectsChangedFlags(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	var service, prefix string
	var interval time.Duration
	cmd.Flags().StringVar(&service, "service", "", "")
	cmd.Flags().StringVar(&prefix, "name-prefix", "", "")
	cmd.Flags().DurationVar(&interval, "poll-interval", time.Second, "")
	if err := cmd.Flags().Set("service", "fff0"); err != nil {
		t.Fatalf("set flag: %v", err)
	}

	fromFile := "ffe0"
	namePrefix := "Fan"
	every := "5s"
	applyStringConfig(cmd, "service", &service, &fromFile)
	applyStringConfig(cmd, "name-prefix", &prefix, &namePrefix)
	applyDurationConfig(cmd, "poll-interval", &interval, &every)

	if service != "fff0" {
		t.Fatalf("expected flag value to win, got %q", service)
	}
	if prefix != "Fan" {
		t.Fatalf("expected config value, got %q", prefix)
	}
	if interval != 5*time.Second {
		t.Fatalf("expected 5s, got %s", interval)
	}
}

func TestApplyOpcodeConfig(t *testing.T) {
	op := byte(0x20)
	value := 0x7f
	applyOpcodeConfig(&op, &value)
	if op != 0x7f {
		t.Fatalf("expected 0x7f, got %#x", op)
	}
	bad := 300
	applyOpcodeConfig(&op, &bad)
	if op != 0x7f {
		t.Fatalf("out of range opcode should be ignored, got %#x", op)
	}
}

func TestValidateSettings(t *testing.T) {
	ok := settings{
		panel: model.Config{PollInterval: time.Second},
		log:   logging.Options{Level: "info"},
	}
	if err := validateSettings(ok); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	bad := ok
	bad.panel.PollInterval = 0
	if err := validateSettings(bad); err == nil {
		t.Fatalf("expected poll interval error")
	}
	bad = ok
	bad.log.Level = "trace"
	if err := validateSettings(bad); err == nil {
		t.Fatalf("expected log level error")
	}
	bad = ok
	bad.log.Format = "xml"
	if err := validateSettings(bad); err == nil {
		t.Fatalf("expected log format error")
	}
}
