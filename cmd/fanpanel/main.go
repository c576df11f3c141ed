// Package main provides the CLI entrypoint for fanpanel.
package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/fanpanel/internal/bridge"
	"github.com/verte-zerg/fanpanel/internal/config"
	"github.com/verte-zerg/fanpanel/internal/logging"
	"github.com/verte-zerg/fanpanel/internal/model"
	"github.com/verte-zerg/fanpanel/internal/telemetry"
	"github.com/verte-zerg/fanpanel/internal/tui"
)

const (
	defaultRequestTimeout = 15 * time.Second
	defaultLogLevel       = "info"
	defaultMQTTTopic      = bridge.DefaultTopic
)

var (
	deviceService      string
	deviceState        string
	deviceVoltage      string
	devicePercent      string
	deviceCharge       string
	deviceSpeed        string
	deviceControl      string
	deviceNamePrefix   string
	devicePollInterval time.Duration
	deviceTimeout      time.Duration
	deviceAsText       bool
	deviceAutoStart    bool

	logLevel  string
	logFile   string
	logFormat string

	metricsListen string

	mqttBroker   string
	mqttTopic    string
	mqttUsername string
	mqttPassword string
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "fanpanel",
		Short:         "Control panel for BLE battery fans",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runPanelCmd,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&deviceService, "service", "", "primary service UUID")
	flags.StringVar(&deviceState, "state", "", "state characteristic UUID")
	flags.StringVar(&deviceVoltage, "voltage", "", "voltage characteristic UUID")
	flags.StringVar(&devicePercent, "percent", "", "fan percent characteristic UUID")
	flags.StringVar(&deviceCharge, "charge", "", "charge characteristic UUID")
	flags.StringVar(&deviceSpeed, "speed", "", "speed characteristic UUID (polled)")
	flags.StringVar(&deviceControl, "control", "", "control characteristic UUID (default: state)")
	flags.StringVar(&deviceNamePrefix, "name-prefix", "", "only offer devices whose name starts with this")
	flags.DurationVar(&devicePollInterval, "poll-interval", telemetry.DefaultPollInterval, "speed poll interval")
	flags.DurationVar(&deviceTimeout, "request-timeout", defaultRequestTimeout, "how long to search for a device")
	flags.BoolVar(&deviceAsText, "as-text", false, "decode unknown values as text instead of hex")
	flags.BoolVar(&deviceAutoStart, "auto-start", true, "start telemetry right after connecting")
	flags.StringVar(&logLevel, "log-level", defaultLogLevel, "log level (debug, info, warn, error)")
	flags.StringVar(&logFile, "log-file", config.DefaultLogPath(), "log file (empty to disable)")
	flags.StringVar(&logFormat, "log-format", "", "headless log format (json or text)")
	flags.StringVar(&metricsListen, "metrics-listen", "", "address for /metrics, /api and the status page")
	flags.StringVar(&mqttBroker, "mqtt-broker", "", "MQTT broker URL, e.g. tcp://localhost:1883")
	flags.StringVar(&mqttTopic, "mqtt-topic", defaultMQTTTopic, "MQTT topic prefix")

	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newScanCmd())
	rootCmd.AddCommand(newMonitorCmd())
	rootCmd.AddCommand(newControlCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newResetHistoryCmd())

	return rootCmd
}

func runPanelCmd(cmd *cobra.Command, _ []string) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}

	buf := logging.NewBuffer(logging.DefaultMaxLines)
	logger, logCloser, err := logging.NewPanel(buf, s.log)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := logCloser.Close(); cerr != nil {
			logErrf("failed to close log file: %v\n", cerr)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(s, logger)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.startServices(ctx); err != nil {
		return err
	}
	go func() {
		_ = a.panel.Run(ctx)
	}()
	if err := a.panel.RefreshUsage(ctx); err != nil {
		logger.Warn().Err(err).Msg("Usage not loaded")
	}
	logger.Info().Msg("Ready")

	program := tea.NewProgram(tui.NewModel(ctx, a.panel, buf, a.history), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

type settings struct {
	panel   model.Config
	log     logging.Options
	metrics string
	mqtt    bridge.Config
}

// loadSettings merges the config file under explicitly set flags.
func loadSettings(cmd *cobra.Command) (settings, error) {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return settings{}, fmt.Errorf("failed to load config: %w", err)
	}
	dev := fileCfg.Device
	applyStringConfig(cmd, "service", &deviceService, dev.Service)
	applyStringConfig(cmd, "state", &deviceState, dev.State)
	applyStringConfig(cmd, "voltage", &deviceVoltage, dev.Voltage)
	applyStringConfig(cmd, "percent", &devicePercent, dev.Percent)
	applyStringConfig(cmd, "charge", &deviceCharge, dev.Charge)
	applyStringConfig(cmd, "speed", &deviceSpeed, dev.Speed)
	applyStringConfig(cmd, "control", &deviceControl, dev.Control)
	applyStringConfig(cmd, "name-prefix", &deviceNamePrefix, dev.NamePrefix)
	applyDurationConfig(cmd, "poll-interval", &devicePollInterval, dev.PollInterval)
	applyDurationConfig(cmd, "request-timeout", &deviceTimeout, dev.Timeout)
	applyBoolConfig(cmd, "as-text", &deviceAsText, dev.AsText)
	applyBoolConfig(cmd, "auto-start", &deviceAutoStart, dev.AutoStart)
	applyStringConfig(cmd, "log-level", &logLevel, fileCfg.Log.Level)
	applyStringConfig(cmd, "log-file", &logFile, fileCfg.Log.File)
	applyStringConfig(cmd, "metrics-listen", &metricsListen, fileCfg.Metrics.Listen)
	applyStringConfig(cmd, "mqtt-broker", &mqttBroker, fileCfg.MQTT.Broker)
	applyStringConfig(cmd, "mqtt-topic", &mqttTopic, fileCfg.MQTT.Topic)
	if fileCfg.MQTT.Username != nil {
		mqttUsername = *fileCfg.MQTT.Username
	}
	if fileCfg.MQTT.Password != nil {
		mqttPassword = *fileCfg.MQTT.Password
	}

	ops := model.DefaultOpcodes()
	applyOpcodeConfig(&ops.Power, fileCfg.Control.Power)
	applyOpcodeConfig(&ops.Standard, fileCfg.Control.Standard)
	applyOpcodeConfig(&ops.Turbo, fileCfg.Control.Turbo)

	s := settings{
		panel: model.Config{
			UUIDs: model.UUIDConfig{
				Service: deviceService,
				State:   deviceState,
				Voltage: deviceVoltage,
				Percent: devicePercent,
				Charge:  deviceCharge,
				Speed:   deviceSpeed,
				Control: deviceControl,
			},
			NamePrefix:     deviceNamePrefix,
			PollInterval:   devicePollInterval,
			AsText:         deviceAsText,
			AutoStart:      deviceAutoStart,
			Opcodes:        ops,
			RequestTimeout: deviceTimeout,
		},
		log:     logging.Options{Level: logLevel, Format: logFormat, File: logFile},
		metrics: metricsListen,
		mqtt: bridge.Config{
			Broker:   mqttBroker,
			Topic:    mqttTopic,
			Username: mqttUsername,
			Password: mqttPassword,
		},
	}
	if err := validateSettings(s); err != nil {
		return settings{}, err
	}
	return s, nil
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyBoolConfig(cmd *cobra.Command, name string, target, value *bool) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

// applyDurationConfig expects value to have passed config validation.
func applyDurationConfig(cmd *cobra.Command, name string, target *time.Duration, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	if d, err := config.ParseInterval(*value); err == nil {
		*target = d
	}
}

func applyOpcodeConfig(target *byte, value *int) {
	if value == nil {
		return
	}
	if op, err := config.Opcode(*value); err == nil {
		*target = op
	}
}

func validateSettings(s settings) error {
	if s.panel.PollInterval <= 0 {
		return fmt.Errorf("--poll-interval must be > 0")
	}
	if s.panel.RequestTimeout < 0 {
		return fmt.Errorf("--request-timeout must be >= 0")
	}
	switch strings.ToLower(s.log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("--log-level must be one of debug, info, warn, error")
	}
	if s.log.Format != "" && s.log.Format != "json" && s.log.Format != "text" {
		return fmt.Errorf("--log-format must be json or text")
	}
	return nil
}

func defaultConfigTemplate() string {
	ops := model.DefaultOpcodes()
	return fmt.Sprintf(`# fanpanel configuration
# Uncomment a value to enable it. CLI flags override config values.

[device]
# service = ""            # Primary service UUID (required to connect)
# state = ""              # State characteristic (bit0 on, bit1 turbo)
# voltage = ""            # Voltage characteristic (u16 LE millivolts)
# percent = ""            # Fan percent characteristic (u8)
# charge = ""             # Charge characteristic (u8, non-zero = charging)
# speed = ""              # Speed characteristic (polled)
# control = ""            # Control characteristic (default: state)
# name-prefix = ""        # Only offer devices whose name starts with this
# poll-interval = %q      # Speed poll interval
# request-timeout = %q   # How long to search for a device
# as-text = false         # Decode unknown values as text instead of hex
# auto-start = true       # Start telemetry right after connecting

[control]
# power = 0x%02X           # Power toggle opcode
# standard = 0x%02X        # Standard mode opcode
# turbo = 0x%02X           # Turbo mode opcode

[log]
# level = %q          # debug, info, warn, error
# file = %q

[metrics]
# listen = "127.0.0.1:9310"  # Serves /metrics, /health, /api and the status page

[mqtt]
# broker = "tcp://localhost:1883"
# topic = %q
# username = ""
# password = ""
`,
		telemetry.DefaultPollInterval.String(),
		defaultRequestTimeout.String(),
		ops.Power,
		ops.Standard,
		ops.Turbo,
		defaultLogLevel,
		config.DefaultLogPath(),
		defaultMQTTTopic,
	)
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
