// Package bridge mirrors panel telemetry to an MQTT broker and accepts
// control commands from it.
package bridge

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/verte-zerg/fanpanel/internal/format"
	"github.com/verte-zerg/fanpanel/internal/model"
	"github.com/verte-zerg/fanpanel/internal/panel"
	"github.com/verte-zerg/fanpanel/internal/usage"
)

// DefaultTopic is the topic prefix used when none is configured.
const DefaultTopic = "fanpanel"

// ErrNoBroker is returned by Dial without a broker URL.
var ErrNoBroker = errors.New("mqtt broker not set")

// Config selects the broker and topic prefix.
type Config struct {
	Broker   string
	Topic    string
	Username string
	Password string
}

// Client is the subset of the paho client the bridge uses.
type Client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
	Disconnect(quiesce uint)
}

// UpdatePayload is published for every telemetry update.
type UpdatePayload struct {
	Channel string    `json:"channel"`
	Text    string    `json:"text"`
	Value   float64   `json:"value"`
	Decoded bool      `json:"decoded"`
	Raw     string    `json:"raw"`
	At      time.Time `json:"at"`
}

// UsagePayload is published whenever the usage totals change.
type UsagePayload struct {
	Today     int `json:"today"`
	Yesterday int `json:"yesterday"`
}

// Bridge publishes under a topic prefix.
type Bridge struct {
	client Client
	prefix string
	logger zerolog.Logger
}

// Dial connects to the configured broker.
func Dial(cfg Config, logger zerolog.Logger) (*Bridge, error) {
	if strings.TrimSpace(cfg.Broker) == "" {
		return nil, ErrNoBroker
	}
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetClientID(randomClientID())
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(10 * time.Second)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Broker, token.Error())
	}
	b := New(client, cfg.Topic, logger)
	b.logger.Info().Str("broker", cfg.Broker).Str("topic", b.prefix).Msg("MQTT bridge connected")
	return b, nil
}

// New wraps an already connected client.
func New(client Client, prefix string, logger zerolog.Logger) *Bridge {
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		prefix = DefaultTopic
	}
	return &Bridge{
		client: client,
		prefix: prefix,
		logger: logger.With().Str("component", "mqtt").Logger(),
	}
}

// Topic joins the prefix with name.
func (b *Bridge) Topic(name string) string {
	return b.prefix + "/" + name
}

// Publish sends u to <prefix>/<channel>.
func (b *Bridge) Publish(u model.Update) error {
	payload := UpdatePayload{
		Channel: string(u.Channel),
		Text:    u.Text,
		Value:   u.Value,
		Decoded: u.Decoded,
		Raw:     hex.EncodeToString(u.Raw),
		At:      u.At,
	}
	return b.publishJSON(b.Topic(string(u.Channel)), false, payload)
}

// PublishUsage sends the totals to <prefix>/usage as a retained message.
func (b *Bridge) PublishUsage(s usage.Summary) error {
	return b.publishJSON(b.Topic("usage"), true, UsagePayload{Today: s.Today, Yesterday: s.Yesterday})
}

// PublishConnection sends the connection state to <prefix>/connection as a retained message.
func (b *Bridge) PublishConnection(state string) error {
	return b.publish(b.Topic("connection"), true, []byte(state))
}

// SubscribeCommands delivers parsed commands from <prefix>/control/set to fn.
// Unknown payloads are logged and dropped.
func (b *Bridge) SubscribeCommands(fn func(panel.Command)) error {
	topic := b.Topic("control/set")
	handler := func(_ mqtt.Client, msg mqtt.Message) {
		cmd, err := panel.ParseCommand(string(msg.Payload()))
		if err != nil {
			b.logger.Warn().Err(err).Str("payload", format.Value(msg.Payload(), true)).Msg("Ignoring control message")
			return
		}
		b.logger.Info().Str("command", string(cmd)).Msg("Control message received")
		fn(cmd)
	}
	if token := b.client.Subscribe(topic, 1, handler); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to subscribe %s: %w", topic, token.Error())
	}
	return nil
}

// Close disconnects from the broker.
func (b *Bridge) Close() {
	b.client.Disconnect(250)
}

func (b *Bridge) publishJSON(topic string, retained bool, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", topic, err)
	}
	return b.publish(topic, retained, data)
}

func (b *Bridge) publish(topic string, retained bool, payload []byte) error {
	if token := b.client.Publish(topic, 0, retained, payload); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to publish %s: %w", topic, token.Error())
	}
	return nil
}

func randomClientID() string {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("fanpanel-%d", time.Now().UnixNano())
	}
	return "fanpanel-" + hex.EncodeToString(buf)
}
