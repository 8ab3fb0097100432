package mqttpub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/icodeforyou/rdn-scraper/logging"
	"github.com/icodeforyou/rdn-scraper/types"
)

type Options struct {
	Host     string
	Port     int
	Username string
	Password string
	ClientID string
	Topic    string
	Qos      byte
}

// Sink publishes every batch as one JSON message.
type Sink struct {
	client mqtt.Client
	logger *slog.Logger
	topic  string
	qos    byte
}

type message struct {
	Name   string         `json:"name"`
	Points []messagePoint `json:"points"`
}

type messagePoint struct {
	Measurement string            `json:"measurement"`
	Tags        map[string]string `json:"tags,omitempty"`
	Fields      map[string]any    `json:"fields"`
	Time        time.Time         `json:"time"`
}

func New(opts Options) *Sink {
	logger := slog.Default().With("module", "mqttpub")
	clientOpts := mqtt.NewClientOptions()
	clientOpts.AddBroker(fmt.Sprintf("tcp://%s:%d", opts.Host, opts.Port))
	clientOpts.SetClientID(opts.ClientID)
	clientOpts.SetUsername(opts.Username)
	clientOpts.SetPassword(opts.Password)
	clientOpts.SetAutoReconnect(true)
	clientOpts.OnConnect = func(client mqtt.Client) {
		logger.Info("MQTT connected", slog.String("topic", opts.Topic))
	}
	clientOpts.OnConnectionLost = func(client mqtt.Client, err error) {
		logger.Warn("MQTT connection lost", slog.Any("error", err))
	}

	mqttLogger := slog.Default().With("module", "mqtt")
	mqtt.CRITICAL = logging.NewPrintfLogger(mqttLogger, slog.LevelError)
	mqtt.ERROR = logging.NewPrintfLogger(mqttLogger, slog.LevelError)
	mqtt.WARN = logging.NewPrintfLogger(mqttLogger, slog.LevelWarn)

	return newSink(mqtt.NewClient(clientOpts), logger, opts.Topic, opts.Qos)
}

func newSink(client mqtt.Client, logger *slog.Logger, topic string, qos byte) *Sink {
	return &Sink{client: client, logger: logger, topic: topic, qos: qos}
}

func (s *Sink) Connect(ctx context.Context) error {
	s.logger.Debug("connecting MQTT client")
	if err := wait(ctx, s.client.Connect()); err != nil {
		return fmt.Errorf("connecting to MQTT broker: %w", err)
	}
	return nil
}

func (s *Sink) Write(ctx context.Context, batch types.Batch) error {
	if batch.Len() == 0 {
		return nil
	}

	payload, err := encode(batch)
	if err != nil {
		return fmt.Errorf("encoding batch %q: %w", batch.Name, err)
	}

	if err := wait(ctx, s.client.Publish(s.topic, s.qos, false, payload)); err != nil {
		return fmt.Errorf("publishing batch %q to %s: %w", batch.Name, s.topic, err)
	}
	s.logger.Debug("batch published", slog.String("topic", s.topic), slog.Int("points", batch.Len()))
	return nil
}

func (s *Sink) Close() error {
	s.logger.Info("disconnecting MQTT client")
	s.client.Disconnect(250)
	return nil
}

func encode(batch types.Batch) ([]byte, error) {
	msg := message{Name: batch.Name, Points: make([]messagePoint, 0, batch.Len())}
	for _, p := range batch.Points {
		msg.Points = append(msg.Points, messagePoint{
			Measurement: p.Measurement,
			Tags:        p.Tags,
			Fields:      p.Fields,
			Time:        p.Time.UTC(),
		})
	}
	return json.Marshal(msg)
}

func wait(ctx context.Context, token mqtt.Token) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
