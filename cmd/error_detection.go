// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Thermoquad/crsfscope/internal/monitor"
	"github.com/Thermoquad/crsfscope/pkg/crsf"
)

var (
	showAll       bool
	statsInterval int
	useTUI        bool
)

var errorDetectionCmd = &cobra.Command{
	Use:   "error_detection",
	Short: "Detect and analyze malformed frames and errors",
	Long: `Track frame errors, malformed data, and anomalous values with statistics.

This command validates each frame and detects:
  - Header errors (bad length byte) and truncated frames
  - CRC errors
  - Malformed frames (payload too short for the type, unknown types)
  - Anomalous values (channels outside 172-1811, LQ > 100%, battery > 100%,
    GPS coordinates off the globe)
  - Statistics and trends (frame rate, error rate, success rate)

By default, only errors are displayed. Use --show-all to display valid frames too.

Frames are validated in real-time, with errors highlighted immediately and
periodic statistics summaries displayed at configurable intervals.`,
	RunE: runErrorDetection,
}

func init() {
	rootCmd.AddCommand(errorDetectionCmd)
	errorDetectionCmd.Flags().BoolVar(&showAll, "show-all", false, "Show all frames (not just errors)")
	errorDetectionCmd.Flags().IntVar(&statsInterval, "stats-interval", 10, "Statistics update interval (seconds)")
	errorDetectionCmd.Flags().BoolVar(&useTUI, "tui", true, "Use terminal UI (false for text mode)")
}

func runErrorDetection(cmd *cobra.Command, args []string) error {
	// Open connection (serial, WebSocket or TCP)
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	mon := monitor.New(monitor.WithLogger(logger))

	if useTUI {
		return runTUIMode(conn, connInfo, mon)
	}
	return runTextMode(conn, connInfo, mon)
}

// printDecodeError prints a decode error in highlighted format
func printDecodeError(err error) {
	timestamp := time.Now().Format("15:04:05.000")
	label := "DECODE ERROR"
	if errors.Is(err, crsf.ErrCRCMismatch) {
		label = "CRC ERROR"
	}
	fmt.Printf("[%s] \033[1;31m%s:\033[0m %v\n", timestamp, label, err)
	fmt.Printf("  >>> DECODE FAILED <<<\n\n")
}

// printValidationErrors prints validation errors for a frame
func printValidationErrors(frame *crsf.Frame, errs []crsf.ValidationError) {
	timestamp := frame.Timestamp().Format("15:04:05.000")
	frameType := crsf.FormatFrameType(frame.Type())

	fmt.Printf("[%s] \033[1;33mVALIDATION ERROR:\033[0m %s (0x%02X)\n", timestamp, frameType, uint8(frame.Type()))
	fmt.Printf("  CRC: \033[1;32mOK\033[0m\n")

	for i, err := range errs {
		switch err.Type {
		case crsf.AnomalyLengthMismatch:
			fmt.Printf("  Issue %d: \033[1;31m%s\033[0m\n", i+1, err.Message)
			if length, ok := err.Details["length"].(int); ok {
				fmt.Printf("    Payload length=%d, frame length field=%d\n", length, frame.Length())
			}

		case crsf.AnomalyUnknownType:
			fmt.Printf("  Issue %d: \033[1;31m%s\033[0m\n", i+1, err.Message)

		case crsf.AnomalyChannelRange:
			fmt.Printf("  Issue %d: \033[1;33m%s\033[0m\n", i+1, err.Message)
			if value, ok := err.Details["value"].(uint16); ok {
				fmt.Printf("    %d ticks = %d us\n", value, crsf.TicksToMicros(value))
			}

		case crsf.AnomalyLinkQuality:
			fmt.Printf("  Issue %d: \033[1;33m%s\033[0m\n", i+1, err.Message)
			if direction, ok := err.Details["direction"].(string); ok {
				fmt.Printf("    Direction: %s\n", direction)
			}

		case crsf.AnomalyBatteryRemaining, crsf.AnomalyGPSCoordinate:
			fmt.Printf("  Issue %d: \033[1;33m%s\033[0m\n", i+1, err.Message)

		default:
			fmt.Printf("  Issue %d: %s\n", i+1, err.Message)
		}
	}

	fmt.Printf("  Payload: % X\n", frame.Payload())
	fmt.Printf("  >>> FRAME FLAGGED <<<\n\n")
}

// runTUIMode runs error detection in TUI mode
func runTUIMode(conn ByteReader, connInfo string, mon *monitor.Monitor) error {
	synchronized := false
	rejectedBeforeSync := 0

	// Create TUI program
	m := initialModel(connInfo, mon, statsInterval, showAll)
	p := tea.NewProgram(m)

	// Reader goroutine
	go func() {
		buf := make([]byte, 128)
		for {
			n, err := conn.Read(buf)
			if err != nil {
				if errors.Is(err, ErrConnectionClosed) {
					p.Send(connectionClosedMsg{})
					return
				}
				logger.Debug("read error", zap.Error(err))
				continue
			}

			for _, ev := range mon.Feed(buf[:n]) {
				if ev.Err != nil && !synchronized {
					// Not synced yet, just count rejected candidates
					rejectedBeforeSync++
					continue
				}
				if ev.Frame != nil && !synchronized {
					// First frame! We're now synchronized
					synchronized = true
					p.Send(syncMsg{rejected: rejectedBeforeSync})
				}
				p.Send(frameEventMsg(ev))
			}
		}
	}()

	// Run TUI
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %v", err)
	}

	return nil
}

// runTextMode runs error detection in text mode
func runTextMode(conn ByteReader, connInfo string, mon *monitor.Monitor) error {
	fmt.Printf("crsfscope - Error Detection Mode\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Statistics interval: %d seconds\n", statsInterval)
	if showAll {
		fmt.Printf("Mode: All frames\n")
	} else {
		fmt.Printf("Mode: Errors only\n")
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	// Sync tracking - ignore decode errors until first valid frame
	synchronized := false
	rejectedBeforeSync := 0

	// Statistics ticker
	statsTicker := time.NewTicker(time.Duration(statsInterval) * time.Second)
	defer statsTicker.Stop()

	// Channel for non-blocking reads
	readBuf := make(chan []byte, 10)
	closed := make(chan struct{})
	go func() {
		buf := make([]byte, 128)
		for {
			n, err := conn.Read(buf)
			if err != nil {
				if errors.Is(err, ErrConnectionClosed) {
					close(closed)
					return
				}
				logger.Warn("read error", zap.Error(err))
				continue
			}
			data := make([]byte, n)
			copy(data, buf[:n])
			readBuf <- data
		}
	}()

	for {
		select {
		case data := <-readBuf:
			for _, ev := range mon.Feed(data) {
				if ev.Err != nil {
					if synchronized {
						// We're synced, this is a real error
						printDecodeError(ev.Err)
					} else {
						// Not synced yet, just count rejected candidates
						rejectedBeforeSync++
					}
					continue
				}

				if !synchronized {
					// First frame! We're now synchronized
					synchronized = true
					if rejectedBeforeSync > 0 {
						fmt.Printf("[SYNC] Synchronized after rejecting %d candidate frames\n\n", rejectedBeforeSync)
					} else {
						fmt.Printf("[SYNC] Synchronized\n\n")
					}
				}

				// Print frame or error based on mode
				if len(ev.Anomalies) > 0 {
					printValidationErrors(ev.Frame, ev.Anomalies)
				} else if ev.Frame.Type() == crsf.FrameTypeDeviceInfo {
					// Always print device announcements (for debugging)
					fmt.Print(crsf.FormatFrame(ev.Frame))
				} else if showAll {
					// Print valid frame (only if --show-all flag is set)
					fmt.Print(crsf.FormatFrame(ev.Frame))
				}
			}

		case <-statsTicker.C:
			// Print statistics
			fmt.Println()
			fmt.Print(mon.Summary())
			fmt.Println()

		case <-closed:
			fmt.Println()
			fmt.Print(mon.Summary())
			logger.Info("connection closed")
			return nil
		}
	}
}
