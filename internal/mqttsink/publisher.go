// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package mqttsink relays decoded frames to an MQTT broker.
//
// Every frame is published CBOR-encoded on <prefix>/<frame_type>, where the
// frame type is the lower-case formatter name (e.g. crsf/link_statistics).
package mqttsink

import (
	"errors"
	"fmt"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/fxamacker/cbor/v2"
	"go.uber.org/zap"

	"github.com/Thermoquad/crsfscope/internal/config"
	"github.com/Thermoquad/crsfscope/pkg/crsf"
)

// ErrPublishTimeout is returned when the broker does not acknowledge in time
var ErrPublishTimeout = errors.New("mqtt publish timeout")

// Client is the subset of paho.Client used for publishing
type Client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

// Envelope is the CBOR document published for each frame
type Envelope struct {
	Type        uint8        `cbor:"0,keyasint"`
	Name        string       `cbor:"1,keyasint"`
	TimestampNS int64        `cbor:"2,keyasint"`
	ELRS        bool         `cbor:"3,keyasint"`
	Message     crsf.Message `cbor:"4,keyasint,omitempty"`
	Raw         []byte       `cbor:"5,keyasint"`
}

// Publisher publishes frames to MQTT. It implements monitor.Sink.
type Publisher struct {
	client  Client
	prefix  string
	qos     byte
	retain  bool
	timeout time.Duration
	logger  *zap.Logger
	closeFn func()
}

// NewPublisher wraps an existing client
func NewPublisher(client Client, cfg config.MQTTConfig, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Publisher{
		client:  client,
		prefix:  strings.TrimSuffix(cfg.TopicPrefix, "/"),
		qos:     cfg.QoS,
		retain:  cfg.Retain,
		timeout: timeout,
		logger:  logger,
	}
}

// Connect dials the configured broker and returns a publisher bound to it
func Connect(cfg config.MQTTConfig, logger *zap.Logger) (*Publisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetCleanSession(true).
		SetConnectTimeout(cfg.Timeout)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetOnConnectHandler(func(paho.Client) {
		logger.Info("mqtt connected", zap.String("broker", cfg.Broker))
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		logger.Warn("mqtt connection lost", zap.String("broker", cfg.Broker), zap.Error(err))
	})

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(cfg.Timeout) {
		return nil, fmt.Errorf("mqtt connect %s: timeout", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", cfg.Broker, err)
	}

	p := NewPublisher(client, cfg, logger)
	p.closeFn = func() { client.Disconnect(250) }
	return p, nil
}

// Topic returns the topic a frame of type t is published on
func (p *Publisher) Topic(t crsf.FrameType) string {
	if !t.Known() {
		return fmt.Sprintf("%s/unknown/0x%02x", p.prefix, uint8(t))
	}
	return p.prefix + "/" + strings.ToLower(t.String())
}

// Encode builds the CBOR envelope for a frame and its decoded message
func Encode(f *crsf.Frame, msg crsf.Message) ([]byte, error) {
	env := Envelope{
		Type:        uint8(f.Type()),
		Name:        f.Type().String(),
		TimestampNS: f.Timestamp().UnixNano(),
		ELRS:        f.IsELRS(),
		Message:     msg,
		Raw:         f.Payload(),
	}
	return cbor.Marshal(env)
}

// Publish implements monitor.Sink
func (p *Publisher) Publish(f *crsf.Frame, msg crsf.Message) error {
	payload, err := Encode(f, msg)
	if err != nil {
		return fmt.Errorf("encode %s: %w", f.Type(), err)
	}

	topic := p.Topic(f.Type())
	token := p.client.Publish(topic, p.qos, p.retain, payload)
	if !token.WaitTimeout(p.timeout) {
		return fmt.Errorf("%w: %s", ErrPublishTimeout, topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}

	p.logger.Debug("published frame", zap.String("topic", topic), zap.Int("bytes", len(payload)))
	return nil
}

// Close disconnects from the broker if the publisher owns the connection
func (p *Publisher) Close() error {
	if p.closeFn != nil {
		p.closeFn()
	}
	return nil
}
