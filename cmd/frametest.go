// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/crsfscope/pkg/crsf"
)

var (
	frameTestTimeout int
)

var frameTestCmd = &cobra.Command{
	Use:   "frame_test",
	Short: "Test connection by waiting for a valid CRSF frame",
	Long: `Wait for a valid CRSF frame on the connection until timeout.

This command connects to a serial port, WebSocket or TCP endpoint and waits for
any valid CRSF or ELRS frame. It ignores invalid bytes and waits for a complete,
valid frame (passing CRC check).

Exit codes:
  0 - Frame received before timeout
  1 - Timeout reached without receiving a valid frame
  2 - Connection error

Useful for checking wiring and baud rate to a receiver or TX module.`,
	RunE: runFrameTest,
}

func init() {
	rootCmd.AddCommand(frameTestCmd)
	frameTestCmd.Flags().IntVar(&frameTestTimeout, "timeout", 10, "Timeout in seconds to wait for a frame")
}

func runFrameTest(cmd *cobra.Command, args []string) error {
	// Open connection (serial, WebSocket or TCP)
	conn, connInfo, err := OpenConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("crsfscope - Frame Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds\n", frameTestTimeout)
	fmt.Printf("Waiting for valid CRSF frame...\n\n")

	decoder := crsf.NewDecoder()
	buf := make([]byte, 128)

	// Channel for frame reception
	frameChan := make(chan *crsf.Frame, 1)
	errChan := make(chan error, 1)

	// Reader goroutine
	go func() {
		rejected := 0
		for {
			n, err := conn.Read(buf)
			if err != nil {
				errChan <- err
				return
			}

			var found *crsf.Frame
			decoder.Feed(buf[:n], func(frame *crsf.Frame, decodeErr error) {
				switch {
				case found != nil:
				case decodeErr != nil:
					// Ignore decode errors, just count rejected candidates
					rejected++
				default:
					found = frame
				}
			})
			if found != nil {
				if rejected > 0 {
					fmt.Printf("(rejected %d candidate frames before sync)\n", rejected)
				}
				frameChan <- found
				return
			}
		}
	}()

	// Wait for frame or timeout
	select {
	case frame := <-frameChan:
		variant := "CRSF"
		if frame.IsELRS() {
			variant = "ELRS"
		}
		fmt.Printf("SUCCESS: Received valid frame\n")
		fmt.Printf("  Type: %s (0x%02X)\n", crsf.FormatFrameType(frame.Type()), uint8(frame.Type()))
		fmt.Printf("  Sync: 0x%02X (%s)\n", frame.Sync(), variant)
		fmt.Printf("  Length: %d bytes\n", frame.Length())
		fmt.Printf("  CRC: 0x%02X\n", frame.CRC())
		os.Exit(0)

	case err := <-errChan:
		fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
		os.Exit(2)

	case <-time.After(time.Duration(frameTestTimeout) * time.Second):
		fmt.Fprintf(os.Stderr, "TIMEOUT: No valid frame received within %d seconds\n", frameTestTimeout)
		os.Exit(1)
	}

	return nil
}
