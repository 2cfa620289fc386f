package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/go-playground/validator/v10"

	"stazione/internal/types"
)

// ErrNoFreshReading is returned by MQTTSource.NextSample when nothing new
// arrived since the previous call. The scheduler skips that tick.
var ErrNoFreshReading = errors.New("sources: no fresh reading")

// MQTTConfig describes the broker connection.
type MQTTConfig struct {
	Broker         string
	Topic          string
	ClientID       string
	Username       string
	Password       string
	QoS            byte
	ConnectTimeout time.Duration
}

// readingPayload is the JSON document published by the station. Timestamp is
// optional; the arrival time is used when it is missing.
type readingPayload struct {
	Timestamp   *time.Time `json:"timestamp"`
	Temperature *float64   `json:"temperature" validate:"required"`
	Humidity    *float64   `json:"humidity" validate:"required"`
	Pressure    *float64   `json:"pressure" validate:"required"`
	Rain        *float64   `json:"rain" validate:"required"`
}

// MQTTSource keeps the latest valid reading received on a topic.
type MQTTSource struct {
	client   mqtt.Client
	topic    string
	qos      byte
	validate *validator.Validate
	clock    types.Clock
	logger   *slog.Logger

	mu     sync.Mutex
	latest types.Sample
	fresh  bool
}

// NewMQTTSource connects to the broker and subscribes to cfg.Topic. The
// subscription is renewed on every reconnect.
func NewMQTTSource(cfg MQTTConfig, val *validator.Validate, clock types.Clock, logger *slog.Logger) (*MQTTSource, error) {
	s := newMQTTSource(cfg.Topic, cfg.QoS, val, clock, logger)

	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.SetConnectTimeout(cfg.ConnectTimeout)
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		token := c.Subscribe(s.topic, s.qos, s.handleMessage)
		if token.WaitTimeout(cfg.ConnectTimeout) && token.Error() != nil {
			s.logger.Error("mqtt subscribe failed", "topic", s.topic, "error", token.Error())
			return
		}
		s.logger.Info("mqtt subscribed", "topic", s.topic)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		s.logger.Warn("mqtt connection lost", "error", err)
	})

	s.client = mqtt.NewClient(opts)
	token := s.client.Connect()
	if !token.WaitTimeout(cfg.ConnectTimeout) {
		return nil, types.NewAppError(types.ErrCodeUpstreamSensor,
			fmt.Sprintf("timed out connecting to MQTT broker %s", cfg.Broker), nil)
	}
	if err := token.Error(); err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamSensor, "failed to connect to MQTT broker", err)
	}
	return s, nil
}

func newMQTTSource(topic string, qos byte, val *validator.Validate, clock types.Clock, logger *slog.Logger) *MQTTSource {
	if val == nil {
		val = validator.New()
	}
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MQTTSource{topic: topic, qos: qos, validate: val, clock: clock, logger: logger}
}

// NextSample hands out the newest reading once.
func (s *MQTTSource) NextSample(ctx context.Context) (types.Sample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.fresh {
		return types.Sample{}, ErrNoFreshReading
	}
	s.fresh = false
	return s.latest, nil
}

// Name identifies the source in the health response.
func (s *MQTTSource) Name() string { return "mqtt" }

// Check reports whether the broker connection is up.
func (s *MQTTSource) Check(ctx context.Context) error {
	if s.client == nil || !s.client.IsConnectionOpen() {
		return errors.New("mqtt broker not connected")
	}
	return nil
}

// Close disconnects from the broker.
func (s *MQTTSource) Close() {
	if s.client != nil {
		s.client.Disconnect(250)
	}
}

func (s *MQTTSource) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	if err := s.ingest(msg.Payload()); err != nil {
		s.logger.Warn("discarding mqtt reading",
			"topic", msg.Topic(),
			"error", err,
		)
	}
}

// ingest decodes and validates one payload and makes it the latest reading.
// Readings older than the current latest are dropped.
func (s *MQTTSource) ingest(payload []byte) error {
	var p readingPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return types.NewAppError(types.ErrCodeValidationInvalidJSON, "reading is not valid JSON", err)
	}
	if err := s.validate.Struct(p); err != nil {
		return types.NewAppError(types.ErrCodeValidationMissingField, "reading is missing a field", err)
	}

	sample := types.Sample{
		Temperature: *p.Temperature,
		Humidity:    *p.Humidity,
		Pressure:    *p.Pressure,
		Rainfall:    *p.Rain,
	}
	if p.Timestamp != nil {
		sample.Timestamp = p.Timestamp.UTC()
	} else {
		sample.Timestamp = s.clock.Now()
	}
	if err := types.ValidateSample(sample); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.latest.Timestamp.IsZero() && sample.Timestamp.Before(s.latest.Timestamp) {
		return fmt.Errorf("reading at %s is older than %s", sample.Timestamp, s.latest.Timestamp)
	}
	s.latest = sample
	s.fresh = true
	return nil
}
