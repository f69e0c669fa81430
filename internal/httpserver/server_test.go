// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package httpserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/crsfscope/internal/config"
	appmetrics "github.com/Thermoquad/crsfscope/internal/metrics"
	"github.com/Thermoquad/crsfscope/internal/monitor"
	"github.com/Thermoquad/crsfscope/pkg/crsf"
)

func newTestServer(t *testing.T) (*Server, *monitor.Monitor) {
	t.Helper()
	cfg := config.HTTPConfig{Addr: ":0", ReadTimeout: time.Second, WriteTimeout: time.Second}
	reg := appmetrics.NewRegistry()
	mon := monitor.New(monitor.WithMetrics(appmetrics.NewFrameMetrics(reg)))
	return New(cfg, mon, "/metrics", appmetrics.Handler(reg)), mon
}

func get(s *Server, path string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func TestHealthzAndMetrics(t *testing.T) {
	srv, mon := newTestServer(t)
	rc := crsf.BuildRCFrame(crsf.NeutralChannels())
	mon.Feed(rc[:])

	rr := get(srv, "/healthz")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "ok", rr.Body.String())

	rr = get(srv, "/metrics")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `crsf_frames_total{type="RC_CHANNELS_PACKED"} 1`)
}

func TestChannels(t *testing.T) {
	srv, mon := newTestServer(t)

	rr := get(srv, "/api/v1/channels")
	require.Equal(t, http.StatusOK, rr.Code)
	var before monitor.ChannelsSnapshot
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &before))
	require.False(t, before.Valid)

	rc := crsf.BuildRCFrame(crsf.NeutralChannels())
	mon.Feed(rc[:])

	rr = get(srv, "/api/v1/channels")
	var after monitor.ChannelsSnapshot
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &after))
	require.True(t, after.Valid)
	require.Equal(t, crsf.NeutralChannels(), after.Raw)
}

func TestTelemetryAndStats(t *testing.T) {
	srv, mon := newTestServer(t)

	data, err := crsf.EncodeFrame(crsf.SyncByte, crsf.FrameTypeFlightMode, []byte("ANGL\x00"))
	require.NoError(t, err)
	mon.Feed(data)

	rr := get(srv, "/api/v1/telemetry")
	require.Equal(t, http.StatusOK, rr.Code)
	var telemetry map[string]map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &telemetry))
	require.Contains(t, telemetry, "FLIGHT_MODE")
	require.Equal(t, "ANGL", telemetry["FLIGHT_MODE"]["message"].(map[string]interface{})["Mode"])

	rr = get(srv, "/api/v1/telemetry/FLIGHT_MODE")
	require.Equal(t, http.StatusOK, rr.Code)

	rr = get(srv, "/api/v1/telemetry/GPS")
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = get(srv, "/api/v1/stats")
	require.Equal(t, http.StatusOK, rr.Code)
	var stats monitor.StatsSnapshot
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &stats))
	require.Equal(t, uint64(1), stats.ValidFrames)

	rr = httptest.NewRecorder()
	srv.srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/stats/reset", nil))
	require.Equal(t, http.StatusNoContent, rr.Code)
	require.Zero(t, mon.Stats().TotalFrames)
}

func TestMetricsDisabled(t *testing.T) {
	cfg := config.HTTPConfig{Addr: ":0"}
	srv := New(cfg, monitor.New(), "", nil)
	require.Equal(t, http.StatusNotFound, get(srv, "/metrics").Code)
	require.Equal(t, ":0", srv.Addr())
}
