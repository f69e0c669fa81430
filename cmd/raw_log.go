// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Thermoquad/crsfscope/internal/capture"
	"github.com/Thermoquad/crsfscope/pkg/crsf"
)

var rawLogCmd = &cobra.Command{
	Use:   "raw_log",
	Short: "Display raw frame log in human-readable format",
	Long: `Continuously decode and display CRSF frames as they arrive.

Each frame is shown with timestamp, frame type, sync variant (CRSF or ELRS),
length, CRC and the decoded payload. Frame types without a known layout are
shown as a hex dump.

Use --record to append every valid frame to a capture file that can be read
back with the replay command.

Supports serial, WebSocket and TCP connections.`,
	RunE: runRawLog,
}

func init() {
	rootCmd.AddCommand(rawLogCmd)
	rawLogCmd.Flags().String("record", "", "Append valid frames to this capture file")
}

func runRawLog(cmd *cobra.Command, args []string) error {
	// Open connection (serial, WebSocket or TCP)
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	var recorder *capture.Recorder
	if cfg.Capture.Path != "" {
		recorder, err = capture.Create(cfg.Capture.Path)
		if err != nil {
			return err
		}
		defer recorder.Close()
		logger.Info("recording frames", zap.String("path", cfg.Capture.Path), zap.Stringer("session", recorder.Session()))
	}

	fmt.Printf("crsfscope - Raw Frame Log\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	decoder := crsf.NewDecoder()
	buf := make([]byte, 128)

	for {
		n, err := conn.Read(buf)
		if err != nil {
			// For WebSocket and TCP connections, a read error usually means
			// the connection is permanently closed - exit gracefully
			if errors.Is(err, ErrConnectionClosed) {
				logger.Info("connection closed")
				return nil
			}
			logger.Warn("read error", zap.Error(err))
			continue
		}

		decoder.Feed(buf[:n], func(frame *crsf.Frame, err error) {
			if err != nil {
				fmt.Printf("[ERROR] %v\n", err)
				return
			}
			fmt.Print(crsf.FormatFrame(frame))
			if recorder != nil {
				if err := recorder.Record(frame); err != nil {
					logger.Error("capture write failed", zap.Error(err))
				}
			}
		})
	}
}
