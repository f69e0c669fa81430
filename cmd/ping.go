// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Thermoquad/crsfscope/pkg/crsf"
)

var (
	pingTimeout int
	pingCount   int
	pingDest    uint8
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Ping one CRSF device and measure the round trip",
	Long: `Send DEVICE_PING to a single address and wait for its DEVICE_INFO reply.

This verifies bidirectional communication with one device on the bus, e.g. the
receiver behind a TX module or the flight controller behind a receiver.

Examples:
  # Ping the receiver three times
  crsfscope ping --port /dev/ttyUSB0 --dest 0xEC

Exit codes:
  0 - All pings successful
  1 - One or more pings failed/timed out
  2 - Connection error`,
	RunE: runPing,
}

func init() {
	rootCmd.AddCommand(pingCmd)
	pingCmd.Flags().IntVar(&pingTimeout, "timeout", 2, "Timeout in seconds for each ping")
	pingCmd.Flags().IntVar(&pingCount, "count", 3, "Number of pings to send")
	pingCmd.Flags().Uint8Var(&pingDest, "dest", uint8(crsf.AddressCRSFReceiver), "Destination address")
}

func runPing(cmd *cobra.Command, args []string) error {
	// Open connection (serial, WebSocket or TCP)
	conn, connInfo, err := OpenConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	dest := crsf.Address(pingDest)

	fmt.Printf("crsfscope - Device Ping\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Destination: %s\n", formatAddress(dest))
	fmt.Printf("Timeout: %d seconds per ping\n", pingTimeout)
	fmt.Printf("Count: %d pings\n\n", pingCount)

	// One reader for the whole run; replies from other devices are dropped
	replies := make(chan crsf.DeviceInfo, 4)
	errChan := make(chan error, 1)
	go func() {
		decoder := crsf.NewDecoder()
		buf := make([]byte, 128)
		for {
			n, err := conn.Read(buf)
			if err != nil {
				errChan <- err
				return
			}
			for _, frame := range decoder.Decode(buf[:n], nil) {
				if frame.Type() != crsf.FrameTypeDeviceInfo {
					continue
				}
				msg, err := crsf.DecodeMessage(frame)
				if err != nil {
					logger.Debug("ignoring DEVICE_INFO", zap.Error(err))
					continue
				}
				info := msg.(crsf.DeviceInfo)
				if info.Origin != dest {
					continue
				}
				select {
				case replies <- info:
				default:
				}
			}
		}
	}()

	successCount := 0
	failCount := 0

pings:
	for i := 1; i <= pingCount; i++ {
		fmt.Printf("Ping %d/%d: ", i, pingCount)

		// Drop late replies to the previous ping
	drain:
		for {
			select {
			case <-replies:
			default:
				break drain
			}
		}

		startTime := time.Now()
		if _, err := conn.Write(crsf.NewDevicePing(dest, crsf.AddressRadioTransmitter)); err != nil {
			fmt.Printf("SEND FAILED: %v\n", err)
			failCount++
			continue
		}

		select {
		case info := <-replies:
			rtt := time.Since(startTime)
			fmt.Printf("DEVICE_INFO from %q, rtt=%v\n", info.Name, rtt.Round(time.Millisecond))
			successCount++

		case err := <-errChan:
			fmt.Printf("READ FAILED: %v\n", err)
			failCount += pingCount - i + 1
			break pings

		case <-time.After(time.Duration(pingTimeout) * time.Second):
			fmt.Printf("TIMEOUT (no response in %ds)\n", pingTimeout)
			failCount++
		}

		// Small delay between pings
		if i < pingCount {
			time.Sleep(100 * time.Millisecond)
		}
	}

	// Summary
	fmt.Printf("\n--- Ping statistics ---\n")
	fmt.Printf("%d pings sent, %d responses received, %.0f%% packet loss\n",
		pingCount, successCount, float64(failCount)/float64(pingCount)*100)

	if failCount > 0 {
		os.Exit(1)
	}
	return nil
}
