// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package monitor runs the receive pipeline shared by the long-running commands:
// bytes -> decoder -> validator -> statistics, metrics and sinks.
package monitor

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Thermoquad/crsfscope/internal/metrics"
	"github.com/Thermoquad/crsfscope/pkg/crsf"
)

// DefaultSinkQueue is the number of frames buffered for sinks before Feed
// starts dropping them
const DefaultSinkQueue = 256

// Sink receives every valid frame together with its decoded message.
// msg is nil when the payload did not fit the frame type's layout.
// Publish runs on the monitor's sink worker, never on the Feed caller.
type Sink interface {
	Publish(f *crsf.Frame, msg crsf.Message) error
}

// Event is one decoder outcome, delivered in stream order
type Event struct {
	Frame      *crsf.Frame
	Message    crsf.Message
	Err        error
	Anomalies  []crsf.ValidationError
	ReceivedAt time.Time
}

// TelemetryEntry is the last decoded message of one frame type
type TelemetryEntry struct {
	Type      string       `json:"type"`
	Code      uint8        `json:"code"`
	UpdatedAt time.Time    `json:"updated_at"`
	Count     uint64       `json:"count"`
	Message   crsf.Message `json:"message"`
}

// StatsSnapshot is a copy of the link statistics
type StatsSnapshot struct {
	Uptime           float64           `json:"uptime_seconds"`
	TotalFrames      uint64            `json:"total_frames"`
	ValidFrames      uint64            `json:"valid_frames"`
	Errors           uint64            `json:"errors"`
	CRCErrors        uint64            `json:"crc_errors"`
	HeaderErrors     uint64            `json:"header_errors"`
	TruncatedFrames  uint64            `json:"truncated_frames"`
	MalformedFrames  uint64            `json:"malformed_frames"`
	LengthMismatches uint64            `json:"length_mismatches"`
	UnknownTypes     uint64            `json:"unknown_types"`
	AnomalousValues  uint64            `json:"anomalous_values"`
	ChannelRange     uint64            `json:"channel_range"`
	LinkQuality      uint64            `json:"link_quality"`
	BatteryRange     uint64            `json:"battery_range"`
	GPSRange         uint64            `json:"gps_range"`
	FrameRate        float64           `json:"frame_rate"`
	ErrorRate        float64           `json:"error_rate"`
	FramesByType     map[string]uint64 `json:"frames_by_type"`
	BytesReceived    uint64            `json:"bytes_received"`
	SinkDropped      uint64            `json:"sink_dropped"`
}

// ChannelsSnapshot is the last received RC channel set
type ChannelsSnapshot struct {
	Valid     bool                     `json:"valid"`
	UpdatedAt time.Time                `json:"updated_at"`
	Raw       crsf.Channels            `json:"raw"`
	Micros    [crsf.NumChannels]uint16 `json:"micros"`
}

// Snapshot is a consistent view of the monitor state
type Snapshot struct {
	Channels  ChannelsSnapshot          `json:"channels"`
	Telemetry map[string]TelemetryEntry `json:"telemetry"`
	Stats     StatsSnapshot             `json:"stats"`
}

// Monitor decodes a byte stream and tracks link state. It is safe for
// concurrent use: Feed may run on a reader goroutine while Snapshot serves HTTP.
type Monitor struct {
	mu        sync.RWMutex
	decoder   *crsf.Decoder
	stats     *crsf.Statistics
	bytes     uint64
	channels  ChannelsSnapshot
	telemetry map[crsf.FrameType]TelemetryEntry

	metrics *metrics.FrameMetrics
	sinks   []Sink
	logger  *zap.Logger

	queueSize int
	queue     chan sinkItem
	closed    bool
	dropped   uint64
	done      chan struct{}
}

type sinkItem struct {
	frame *crsf.Frame
	msg   crsf.Message
}

// Option configures a Monitor
type Option func(*Monitor)

// WithMetrics records Prometheus metrics for every event
func WithMetrics(m *metrics.FrameMetrics) Option {
	return func(mon *Monitor) { mon.metrics = m }
}

// WithSink adds a frame sink
func WithSink(s Sink) Option {
	return func(mon *Monitor) { mon.sinks = append(mon.sinks, s) }
}

// WithSinkQueue sets how many frames may wait for the sinks.
// Values below 1 keep DefaultSinkQueue.
func WithSinkQueue(n int) Option {
	return func(mon *Monitor) {
		if n > 0 {
			mon.queueSize = n
		}
	}
}

// WithLogger sets the diagnostic logger
func WithLogger(l *zap.Logger) Option {
	return func(mon *Monitor) { mon.logger = l }
}

// New creates a monitor
func New(opts ...Option) *Monitor {
	m := &Monitor{
		decoder:   crsf.NewDecoder(),
		stats:     crsf.NewStatistics(),
		telemetry: make(map[crsf.FrameType]TelemetryEntry),
		logger:    zap.NewNop(),
		queueSize: DefaultSinkQueue,
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	if len(m.sinks) == 0 {
		close(m.done)
		return m
	}
	m.queue = make(chan sinkItem, m.queueSize)
	go m.runSinks()
	return m
}

// Close stops accepting frames for the sinks and waits until the queued ones
// are published. Frames fed after Close still update the monitor state but
// are not handed to the sinks.
func (m *Monitor) Close() {
	m.mu.Lock()
	if !m.closed {
		m.closed = true
		if m.queue != nil {
			close(m.queue)
		}
	}
	m.mu.Unlock()
	<-m.done
}

func (m *Monitor) runSinks() {
	defer close(m.done)
	for item := range m.queue {
		for _, s := range m.sinks {
			if err := s.Publish(item.frame, item.msg); err != nil {
				m.logger.Warn("sink publish failed", zap.Stringer("type", item.frame.Type()), zap.Error(err))
			}
		}
	}
}

// enqueue hands a frame to the sink worker without blocking. Caller holds m.mu.
func (m *Monitor) enqueue(frame *crsf.Frame, msg crsf.Message) {
	select {
	case m.queue <- sinkItem{frame: frame, msg: msg}:
	default:
		m.dropped++
		if m.dropped == 1 {
			m.logger.Warn("sink queue full, dropping frames", zap.Int("capacity", cap(m.queue)))
		}
	}
}

// Feed runs data through the decoder and returns the resulting events in order.
// Valid frames are queued for the sinks after the monitor state is updated.
// Feed never waits on a sink: when the queue is full the frame is dropped
// and counted in StatsSnapshot.SinkDropped.
func (m *Monitor) Feed(data []byte) []Event {
	now := time.Now()
	var events []Event

	m.mu.Lock()
	m.bytes += uint64(len(data))
	if m.metrics != nil {
		m.metrics.ObserveBytes(len(data))
	}
	m.decoder.Feed(data, func(frame *crsf.Frame, err error) {
		events = append(events, m.process(frame, err, now))
	})
	if m.queue != nil && !m.closed {
		for _, ev := range events {
			if ev.Frame != nil {
				m.enqueue(ev.Frame, ev.Message)
			}
		}
	}
	m.mu.Unlock()
	return events
}

// process updates state for one decoder outcome. Caller holds m.mu.
func (m *Monitor) process(frame *crsf.Frame, err error, now time.Time) Event {
	if err != nil {
		m.stats.Update(nil, err, nil)
		if m.metrics != nil {
			m.metrics.ObserveDecodeError(err)
		}
		m.logger.Debug("decode error", zap.Error(err))
		return Event{Err: err, ReceivedAt: now}
	}

	msg, anomalies := crsf.DecodeAndValidate(frame)
	m.stats.Update(frame, nil, anomalies)

	if m.metrics != nil {
		m.metrics.ObserveFrame(frame)
		m.metrics.ObserveAnomalies(anomalies)
		if msg != nil {
			m.metrics.ObserveMessage(msg)
		}
	}

	if msg != nil {
		m.updateState(frame, msg, now)
	}
	for _, a := range anomalies {
		m.logger.Debug("anomaly", zap.Stringer("type", frame.Type()), zap.String("anomaly", a.Type.String()), zap.String("detail", a.Message))
	}

	return Event{Frame: frame, Message: msg, Anomalies: anomalies, ReceivedAt: now}
}

func (m *Monitor) updateState(frame *crsf.Frame, msg crsf.Message, now time.Time) {
	if rc, ok := msg.(crsf.RCChannels); ok {
		m.channels.Valid = true
		m.channels.UpdatedAt = now
		m.channels.Raw = rc.Channels
		for i, v := range rc.Channels {
			m.channels.Micros[i] = crsf.TicksToMicros(v)
		}
		return
	}

	entry := m.telemetry[frame.Type()]
	entry.Type = frame.Type().String()
	entry.Code = uint8(frame.Type())
	entry.UpdatedAt = now
	entry.Count++
	entry.Message = msg
	m.telemetry[frame.Type()] = entry
}

// Snapshot returns a copy of the current state
func (m *Monitor) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	telemetry := make(map[string]TelemetryEntry, len(m.telemetry))
	for t, e := range m.telemetry {
		telemetry[typeKey(t)] = e
	}

	return Snapshot{
		Channels:  m.channels,
		Telemetry: telemetry,
		Stats:     m.statsLocked(),
	}
}

// Stats returns a copy of the link statistics
func (m *Monitor) Stats() StatsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.statsLocked()
}

// Summary returns the formatted statistics block
func (m *Monitor) Summary() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats.String()
}

// ResetStats clears the statistics counters
func (m *Monitor) ResetStats() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.Reset()
	m.bytes = 0
	m.dropped = 0
}

func (m *Monitor) statsLocked() StatsSnapshot {
	s := m.stats
	elapsed := time.Since(s.StartTime).Seconds()

	snap := StatsSnapshot{
		Uptime:           elapsed,
		TotalFrames:      s.TotalFrames,
		ValidFrames:      s.ValidFrames,
		Errors:           s.ErrorCount(),
		CRCErrors:        s.CRCErrors,
		HeaderErrors:     s.HeaderErrors,
		TruncatedFrames:  s.TruncatedFrames,
		MalformedFrames:  s.MalformedFrames,
		LengthMismatches: s.LengthMismatches,
		UnknownTypes:     s.UnknownTypes,
		AnomalousValues:  s.AnomalousValues,
		ChannelRange:     s.ChannelRange,
		LinkQuality:      s.LinkQuality,
		BatteryRange:     s.BatteryRange,
		GPSRange:         s.GPSRange,
		FramesByType:     make(map[string]uint64, len(s.FramesByType)),
		BytesReceived:    m.bytes,
		SinkDropped:      m.dropped,
	}
	if elapsed > 0 {
		snap.FrameRate = float64(s.TotalFrames) / elapsed
		snap.ErrorRate = float64(s.ErrorCount()) / elapsed
	}
	for t, n := range s.FramesByType {
		snap.FramesByType[typeKey(t)] = n
	}
	return snap
}

// typeKey names a frame type for JSON maps; unknown types keep their code
func typeKey(t crsf.FrameType) string {
	if !t.Known() {
		return fmt.Sprintf("UNKNOWN_0x%02X", uint8(t))
	}
	return t.String()
}
