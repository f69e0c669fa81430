// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Thermoquad/crsfscope/internal/capture"
	"github.com/Thermoquad/crsfscope/internal/httpserver"
	"github.com/Thermoquad/crsfscope/internal/metrics"
	"github.com/Thermoquad/crsfscope/internal/monitor"
	"github.com/Thermoquad/crsfscope/internal/mqttsink"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Monitor a link headlessly and expose its state over HTTP",
	Long: `Decode a CRSF link without a terminal UI and publish what it carries.

The current channels, latest telemetry and statistics are served as JSON under
/api/v1, with Prometheus metrics on the configured metrics path. Decoded frames
can also be relayed to an MQTT broker (--mqtt) and appended to a capture file
(--record).

Examples:
  crsfscope serve --port /dev/ttyUSB0 --http-addr :9090
  crsfscope serve --tcp 192.168.4.1:5761 --mqtt --mqtt-broker tcp://broker:1883`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("http-addr", ":9090", "HTTP listen address")
	serveCmd.Flags().Bool("mqtt", false, "Relay decoded frames to MQTT")
	serveCmd.Flags().String("mqtt-broker", "tcp://localhost:1883", "MQTT broker URL")
	serveCmd.Flags().String("mqtt-prefix", "crsf", "MQTT topic prefix")
	serveCmd.Flags().String("record", "", "Append valid frames to this capture file")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	opts := []monitor.Option{monitor.WithLogger(logger)}

	var metricsHandler http.Handler
	if cfg.Metrics.Enable {
		reg := metrics.NewRegistry()
		opts = append(opts, monitor.WithMetrics(metrics.NewFrameMetrics(reg)))
		metricsHandler = metrics.Handler(reg)
	}

	if cfg.MQTT.Enable {
		pub, err := mqttsink.Connect(cfg.MQTT, logger)
		if err != nil {
			return err
		}
		defer pub.Close()
		opts = append(opts, monitor.WithSink(pub))
	}

	if cfg.Capture.Path != "" {
		rec, err := capture.Create(cfg.Capture.Path)
		if err != nil {
			return err
		}
		defer rec.Close()
		opts = append(opts, monitor.WithSink(rec))
		logger.Info("recording frames", zap.String("path", cfg.Capture.Path), zap.Stringer("session", rec.Session()))
	}

	mon := monitor.New(opts...)
	defer mon.Close()
	srv := httpserver.New(cfg.HTTP, mon, cfg.Metrics.Path, metricsHandler)

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", srv.Addr()))
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		buf := make([]byte, 256)
		for {
			n, err := conn.Read(buf)
			if err != nil {
				if errors.Is(err, ErrConnectionClosed) {
					logger.Info("connection closed", zap.String("connection", connInfo))
					return
				}
				select {
				case <-ctx.Done():
					return
				default:
				}
				logger.Debug("read error", zap.Error(err))
				time.Sleep(10 * time.Millisecond)
				continue
			}
			for _, ev := range mon.Feed(buf[:n]) {
				if ev.Err != nil {
					logger.Debug("decode error", zap.Error(ev.Err))
				}
			}
		}
	}()

	logger.Info("serving", zap.String("connection", connInfo))

	var runErr error
	select {
	case <-ctx.Done():
	case <-readerDone:
	case runErr = <-serverErr:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}

	stats := mon.Stats()
	logger.Info("serve stopped",
		zap.Uint64("frames", stats.ValidFrames),
		zap.Uint64("errors", stats.Errors))
	return runErr
}
