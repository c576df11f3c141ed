// Package metrics exposes device telemetry to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/verte-zerg/fanpanel/internal/model"
	"github.com/verte-zerg/fanpanel/internal/panel"
)

const namespace = "fanpanel"

// Collector mirrors the panel's readings into gauges and counters.
type Collector struct {
	Voltage        prometheus.Gauge
	Percent        prometheus.Gauge
	Charging       prometheus.Gauge
	PowerOn        prometheus.Gauge
	Turbo          prometheus.Gauge
	Connected      prometheus.Gauge
	UsageToday     prometheus.Gauge
	UsageYesterday prometheus.Gauge
	Updates        *prometheus.CounterVec
	Commands       *prometheus.CounterVec
}

func gauge(name, help string) prometheus.Gauge {
	return prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help})
}

// NewCollector creates the collector and registers it with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		Voltage:        gauge("battery_voltage_volts", "Battery voltage reported by the device"),
		Percent:        gauge("fan_percent", "Fan percentage reported by the device"),
		Charging:       gauge("charging", "1 while the battery is charging"),
		PowerOn:        gauge("power_on", "1 while the fan is on"),
		Turbo:          gauge("turbo", "1 while turbo mode is active"),
		Connected:      gauge("connected", "1 while a device session is up"),
		UsageToday:     gauge("usage_today_minutes", "Minutes the fan was on today"),
		UsageYesterday: gauge("usage_yesterday_minutes", "Minutes the fan was on yesterday"),
		Updates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "updates_total",
				Help:      "Telemetry updates received",
			},
			[]string{"channel", "decoded"},
		),
		Commands: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "commands_total",
				Help:      "Control commands sent",
			},
			[]string{"command", "result"},
		),
	}
	reg.MustRegister(
		c.Voltage,
		c.Percent,
		c.Charging,
		c.PowerOn,
		c.Turbo,
		c.Connected,
		c.UsageToday,
		c.UsageYesterday,
		c.Updates,
		c.Commands,
	)
	return c
}

// ObserveUpdate records a decoded telemetry update.
func (c *Collector) ObserveUpdate(u model.Update) {
	decoded := "false"
	if u.Decoded {
		decoded = "true"
	}
	c.Updates.WithLabelValues(string(u.Channel), decoded).Inc()
	if !u.Decoded {
		return
	}
	switch u.Channel {
	case model.ChannelVoltage:
		c.Voltage.Set(u.Value)
	case model.ChannelPercent:
		c.Percent.Set(u.Value)
	case model.ChannelCharge:
		c.Charging.Set(u.Value)
	case model.ChannelState:
		c.PowerOn.Set(boolValue(u.Flags.On))
		c.Turbo.Set(boolValue(u.Flags.Turbo))
	}
}

// ObserveSnapshot records connection and usage state.
func (c *Collector) ObserveSnapshot(s panel.Snapshot) {
	c.Connected.Set(boolValue(s.Connected()))
	c.UsageToday.Set(float64(s.Usage.Today))
	c.UsageYesterday.Set(float64(s.Usage.Yesterday))
	if !s.Connected() {
		c.PowerOn.Set(0)
		c.Turbo.Set(0)
	}
}

// ObserveCommand counts a control command and its outcome.
func (c *Collector) ObserveCommand(cmd string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.Commands.WithLabelValues(cmd, result).Inc()
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
