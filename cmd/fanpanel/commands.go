package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/fanpanel/internal/ble"
	"github.com/verte-zerg/fanpanel/internal/logging"
	"github.com/verte-zerg/fanpanel/internal/model"
	"github.com/verte-zerg/fanpanel/internal/panel"
	"github.com/verte-zerg/fanpanel/internal/stats"
)

const (
	defaultScanTimeout = 10 * time.Second
	defaultWindow      = 7
)

var (
	scanTimeout     time.Duration
	monitorDuration time.Duration
	historySince    string
	historyLast     int
	historyWindow   int
	historyColor    bool
	historyWidth    int
)

func headlessLogger() zerolog.Logger {
	return logging.New(os.Stderr, logging.Options{Level: logLevel, Format: logFormat})
}

func newScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "List nearby devices",
		Args:  cobra.NoArgs,
		RunE:  runScanCmd,
	}
	cmd.Flags().DurationVar(&scanTimeout, "timeout", defaultScanTimeout, "how long to scan")
	return cmd
}

func runScanCmd(cmd *cobra.Command, _ []string) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	if scanTimeout <= 0 {
		return fmt.Errorf("--timeout must be > 0")
	}
	logger := headlessLogger()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, scanTimeout)
	defer cancel()

	filter := ble.Filter{NamePrefix: s.panel.NamePrefix}
	if svc := s.panel.UUIDs.Normalize().Service; svc != "" {
		filter.Services = []string{svc}
	}

	var mu sync.Mutex
	seen := map[string]bool{}
	adapter := ble.NewHostAdapter(logger)
	err = adapter.Scan(ctx, filter, func(adv ble.Advertisement) {
		mu.Lock()
		defer mu.Unlock()
		if seen[adv.ID] {
			return
		}
		seen[adv.ID] = true
		name := adv.Name
		if name == "" {
			name = "Unknown"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s  %-24s  %4d dBm  %s\n", adv.ID, name, adv.RSSI, strings.Join(adv.Services, ","))
	})
	if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("failed to scan: %w", err)
	}
	if len(seen) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No devices found.")
	}
	return nil
}

func newMonitorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Connect and print telemetry without the TUI",
		Args:  cobra.NoArgs,
		RunE:  runMonitorCmd,
	}
	cmd.Flags().DurationVar(&monitorDuration, "duration", 0, "stop after this long (0 runs until interrupted)")
	return cmd
}

func runMonitorCmd(cmd *cobra.Command, _ []string) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	if monitorDuration < 0 {
		return fmt.Errorf("--duration must be >= 0")
	}
	logger := headlessLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if monitorDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, monitorDuration)
		defer cancel()
	}

	a, err := openApp(s, logger)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.startServices(ctx); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	a.panel.OnUpdate(func(u model.Update) {
		fmt.Fprintf(out, "%s  %-8s %s\n", u.At.Format("15:04:05"), u.Channel, u.Text)
	})
	go func() {
		_ = a.panel.Run(ctx)
	}()

	if err := a.panel.Connect(ctx, false); err != nil {
		return err
	}
	if !s.panel.AutoStart {
		if err := a.panel.StartData(ctx); err != nil {
			return err
		}
	}
	<-ctx.Done()
	return nil
}

func newControlCmd() *cobra.Command {
	names := make([]string, 0, len(panel.Commands))
	for _, c := range panel.Commands {
		names = append(names, string(c))
	}
	return &cobra.Command{
		Use:       fmt.Sprintf("control <%s>", strings.Join(names, "|")),
		Short:     "Connect, send one command and disconnect",
		Args:      cobra.ExactArgs(1),
		ValidArgs: names,
		RunE:      runControlCmd,
	}
}

func runControlCmd(cmd *cobra.Command, args []string) error {
	command, err := panel.ParseCommand(args[0])
	if err != nil {
		return err
	}
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	s.panel.AutoStart = false
	logger := headlessLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(s, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.panel.Connect(ctx, false); err != nil {
		return err
	}
	if err := a.panel.Send(ctx, command); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Sent %s\n", command)
	return nil
}

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded fan usage",
		Args:  cobra.NoArgs,
		RunE:  runHistoryCmd,
	}
	cmd.Flags().StringVar(&historySince, "since", "", "first day to include (YYYY-MM-DD)")
	cmd.Flags().IntVar(&historyLast, "last", 0, "only the last N days")
	cmd.Flags().IntVar(&historyWindow, "window", defaultWindow, "moving average window in days")
	cmd.Flags().BoolVar(&historyColor, "color", false, "force colored bars")
	cmd.Flags().IntVar(&historyWidth, "width", 0, "chart width (0 uses the terminal width)")
	return cmd
}

func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	if historyLast < 0 {
		return fmt.Errorf("--last must be >= 0")
	}
	if historyWindow <= 0 {
		return fmt.Errorf("--window must be > 0")
	}
	if historyWidth < 0 {
		return fmt.Errorf("--width must be >= 0")
	}
	cfg := model.HistoryConfig{Last: historyLast, Window: historyWindow}
	if historySince != "" {
		since, err := time.ParseInLocation("2006-01-02", historySince, time.Local)
		if err != nil {
			return fmt.Errorf("invalid --since: %w", err)
		}
		cfg.Since = &since
	}

	st, history, err := openHistory(headlessLogger())
	if err != nil {
		return err
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close database: %v\n", cerr)
		}
	}()

	report, err := stats.BuildReport(cmd.Context(), history, cfg, time.Now())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if err := stats.RenderSummary(out, report); err != nil {
		return err
	}
	if len(report.Days) == 0 {
		return nil
	}
	fmt.Fprintln(out)
	if err := stats.RenderBars(out, report, historyWidth, historyColor); err != nil {
		return err
	}
	return stats.RenderDayTable(out, report)
}

func newResetHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset-history",
		Short: "Delete all recorded usage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, history, err := openHistory(headlessLogger())
			if err != nil {
				return err
			}
			defer func() {
				if cerr := st.Close(); cerr != nil {
					logErrf("failed to close database: %v\n", cerr)
				}
			}()
			if err := history.Reset(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "History cleared.")
			return nil
		},
	}
}
