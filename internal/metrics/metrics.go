// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package metrics

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Thermoquad/crsfscope/pkg/crsf"
)

// NewRegistry creates a Prometheus registry with the Go and process collectors
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler returns the Prometheus scrape handler for reg
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// FrameMetrics are the link-level counters and gauges
type FrameMetrics struct {
	FramesTotal       *prometheus.CounterVec // labels: type
	DecodeErrorsTotal *prometheus.CounterVec // labels: reason
	AnomaliesTotal    *prometheus.CounterVec // labels: anomaly
	BytesReceived     prometheus.Counter
	ChannelValue      *prometheus.GaugeVec // labels: channel (1-16)
	LinkQuality       *prometheus.GaugeVec // labels: direction
	BatteryVoltage    prometheus.Gauge
}

// NewFrameMetrics registers and returns the frame metrics
func NewFrameMetrics(reg prometheus.Registerer) *FrameMetrics {
	m := &FrameMetrics{
		FramesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crsf_frames_total",
			Help: "Valid frames decoded, by frame type.",
		}, []string{"type"}),
		DecodeErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crsf_decode_errors_total",
			Help: "Frames rejected by the decoder, by reason.",
		}, []string{"reason"}),
		AnomaliesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crsf_anomalies_total",
			Help: "CRC-valid frames with implausible content, by anomaly.",
		}, []string{"anomaly"}),
		BytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crsf_bytes_received_total",
			Help: "Total bytes read from the link.",
		}),
		ChannelValue: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "crsf_channel_value",
			Help: "Last raw 11-bit RC channel value.",
		}, []string{"channel"}),
		LinkQuality: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "crsf_link_quality_percent",
			Help: "Last reported link quality.",
		}, []string{"direction"}),
		BatteryVoltage: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "crsf_battery_voltage_volts",
			Help: "Last reported battery voltage.",
		}),
	}
	reg.MustRegister(m.FramesTotal, m.DecodeErrorsTotal, m.AnomaliesTotal, m.BytesReceived,
		m.ChannelValue, m.LinkQuality, m.BatteryVoltage)
	return m
}

// ObserveBytes counts bytes read from the link
func (m *FrameMetrics) ObserveBytes(n int) {
	m.BytesReceived.Add(float64(n))
}

// ObserveFrame counts a valid frame
func (m *FrameMetrics) ObserveFrame(f *crsf.Frame) {
	m.FramesTotal.WithLabelValues(f.Type().String()).Inc()
}

// ObserveDecodeError counts a decoder rejection
func (m *FrameMetrics) ObserveDecodeError(err error) {
	m.DecodeErrorsTotal.WithLabelValues(DecodeErrorReason(err)).Inc()
}

// ObserveAnomalies counts validation anomalies
func (m *FrameMetrics) ObserveAnomalies(errs []crsf.ValidationError) {
	for _, e := range errs {
		m.AnomaliesTotal.WithLabelValues(e.Type.String()).Inc()
	}
}

// ObserveMessage updates gauges from decoded telemetry
func (m *FrameMetrics) ObserveMessage(msg crsf.Message) {
	switch v := msg.(type) {
	case crsf.RCChannels:
		for i, value := range v.Channels {
			m.ChannelValue.WithLabelValues(strconv.Itoa(i + 1)).Set(float64(value))
		}
	case crsf.LinkStatistics:
		m.LinkQuality.WithLabelValues("uplink").Set(float64(v.UplinkLinkQuality))
		m.LinkQuality.WithLabelValues("downlink").Set(float64(v.DownlinkLinkQuality))
	case crsf.BatterySensor:
		m.BatteryVoltage.Set(float64(v.Voltage) / 10)
	}
}

// DecodeErrorReason maps a decoder error to a metric label
func DecodeErrorReason(err error) string {
	switch {
	case errors.Is(err, crsf.ErrCRCMismatch):
		return "crc"
	case errors.Is(err, crsf.ErrMalformedHeader):
		return "header"
	case errors.Is(err, crsf.ErrTruncated):
		return "truncated"
	default:
		return "other"
	}
}
