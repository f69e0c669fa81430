// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mqttsink

import (
	"errors"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/crsfscope/internal/config"
	"github.com/Thermoquad/crsfscope/pkg/crsf"
)

type fakeToken struct {
	done    chan struct{}
	err     error
	pending bool
}

func newFakeToken(err error, pending bool) *fakeToken {
	t := &fakeToken{done: make(chan struct{}), err: err, pending: pending}
	if !pending {
		close(t.done)
	}
	return t
}

func (t *fakeToken) Wait() bool                     { return !t.pending }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return !t.pending }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

type published struct {
	topic   string
	qos     byte
	retain  bool
	payload []byte
}

type fakeClient struct {
	messages []published
	token    paho.Token
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	c.messages = append(c.messages, published{topic, qos, retained, payload.([]byte)})
	if c.token != nil {
		return c.token
	}
	return newFakeToken(nil, false)
}

func frameOf(t *testing.T, frameType crsf.FrameType, payload []byte) *crsf.Frame {
	t.Helper()
	data, err := crsf.EncodeFrame(crsf.SyncByte, frameType, payload)
	require.NoError(t, err)
	f, err := crsf.ParseFrame(data)
	require.NoError(t, err)
	return f
}

func TestTopic(t *testing.T) {
	p := NewPublisher(&fakeClient{}, config.MQTTConfig{TopicPrefix: "crsf/"}, nil)

	require.Equal(t, "crsf/rc_channels_packed", p.Topic(crsf.FrameTypeRCChannelsPacked))
	require.Equal(t, "crsf/link_statistics", p.Topic(crsf.FrameTypeLinkStatistics))
	require.Equal(t, "crsf/unknown/0x55", p.Topic(crsf.FrameType(0x55)))
}

func TestPublish(t *testing.T) {
	client := &fakeClient{}
	p := NewPublisher(client, config.MQTTConfig{TopicPrefix: "quad", QoS: 1, Retain: true}, nil)

	f := frameOf(t, crsf.FrameTypeLinkStatistics, []byte{80, 82, 99, 10, 0, 1, 2, 85, 97, 6})
	msg, err := crsf.DecodeMessage(f)
	require.NoError(t, err)
	require.NoError(t, p.Publish(f, msg))

	require.Len(t, client.messages, 1)
	got := client.messages[0]
	require.Equal(t, "quad/link_statistics", got.topic)
	require.Equal(t, byte(1), got.qos)
	require.True(t, got.retain)

	var env struct {
		Type    uint8                  `cbor:"0,keyasint"`
		Name    string                 `cbor:"1,keyasint"`
		Message map[string]interface{} `cbor:"4,keyasint"`
		Raw     []byte                 `cbor:"5,keyasint"`
	}
	require.NoError(t, cbor.Unmarshal(got.payload, &env))
	require.Equal(t, uint8(crsf.FrameTypeLinkStatistics), env.Type)
	require.Equal(t, "LINK_STATISTICS", env.Name)
	require.EqualValues(t, 99, env.Message["UplinkLinkQuality"])
	require.Equal(t, f.Payload(), env.Raw)
}

func TestPublishErrors(t *testing.T) {
	f := frameOf(t, crsf.FrameTypeFlightMode, []byte("ACRO"))

	client := &fakeClient{token: newFakeToken(nil, true)}
	p := NewPublisher(client, config.MQTTConfig{TopicPrefix: "crsf", Timeout: time.Millisecond}, nil)
	require.ErrorIs(t, p.Publish(f, nil), ErrPublishTimeout)

	brokerErr := errors.New("not authorized")
	client.token = newFakeToken(brokerErr, false)
	require.ErrorIs(t, p.Publish(f, nil), brokerErr)
}

func TestCloseWithoutConnection(t *testing.T) {
	p := NewPublisher(&fakeClient{}, config.MQTTConfig{}, nil)
	require.NoError(t, p.Close())
}
