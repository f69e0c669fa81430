// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Thermoquad/crsfscope/internal/config"
	"github.com/Thermoquad/crsfscope/internal/logging"
)

var (
	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// TCP connection flag
	tcpAddr string

	// Config and logging flags
	configPath string
	logLevel   string
	logFormat  string
	logFile    string

	// Resolved in PersistentPreRunE
	cfg    *config.Config
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "crsfscope",
	Short: "CRSF / ELRS Link Analyzer",
	Long: `crsfscope - A CLI tool for monitoring, analyzing and driving CRSF links.

Decodes Crossfire (CRSF) and ExpressLRS frames from a receiver or transmitter
module, validates telemetry, tracks link statistics and can generate RC channel
frames.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 420000]
  WebSocket: --url ws://host/path [--username user]
  TCP:       --tcp localhost:5761

Settings may also come from a config file (--config, or crsfscope.yaml in the
working directory or ~/.config/crsfscope) and CRSFSCOPE_* environment variables.

For WebSocket authentication, the password is read from the CRSF_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.`,
	Version:      "1.0.0",
	SilenceUsage: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath, cmd.Flags())
		if err != nil {
			return err
		}
		cfg = loaded

		l, err := logging.InitLogger(cfg.Logging)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		logger = l
		return nil
	},

	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 420000, "Baud rate (serial only)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	// TCP connection flag
	rootCmd.PersistentFlags().StringVar(&tcpAddr, "tcp", "", "TCP address of a simulator or bridge (host:port)")

	// Config and logging flags
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (YAML, TOML or JSON)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "console", "Log format (console or json)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Also write logs to this rotating file")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
