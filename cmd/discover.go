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
	discoverTimeout int
	discoverOrigin  uint8
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Discover CRSF devices on the bus",
	Long: `Broadcast DEVICE_PING and list the devices that answer with DEVICE_INFO.

Every CRSF device (TX module, receiver, flight controller, ...) answers a
broadcast ping with its address, type and name. Replies are collected until the
timeout; duplicate replies from the same address are shown once.

Examples:
  # Discover devices behind a TX module on USB
  crsfscope discover --port /dev/ttyUSB0

  # Ping as the flight controller (0xC8) instead of the radio (0xEA)
  crsfscope discover --port /dev/ttyUSB0 --origin 0xC8

Exit codes:
  0 - Discovery successful (at least one device found)
  1 - Discovery failed (no devices before timeout)
  2 - Connection error`,
	RunE: runDiscover,
}

func init() {
	rootCmd.AddCommand(discoverCmd)
	discoverCmd.Flags().IntVar(&discoverTimeout, "timeout", 3, "Timeout in seconds for discovery")
	discoverCmd.Flags().Uint8Var(&discoverOrigin, "origin", uint8(crsf.AddressRadioTransmitter), "Origin address used in the ping")
}

func runDiscover(cmd *cobra.Command, args []string) error {
	// Open connection (serial, WebSocket or TCP)
	conn, connInfo, err := OpenConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	origin := crsf.Address(discoverOrigin)

	fmt.Printf("crsfscope - Device Discovery\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Origin: %s\n", formatAddress(origin))
	fmt.Printf("Timeout: %d seconds\n\n", discoverTimeout)

	// Send DEVICE_PING to every device
	fmt.Printf("Sending DEVICE_PING (destination=%s)...\n", crsf.FormatAddress(crsf.AddressBroadcast))
	if _, err := conn.Write(crsf.NewDevicePing(crsf.AddressBroadcast, origin)); err != nil {
		fmt.Printf("SEND FAILED: %v\n", err)
		os.Exit(2)
	}

	// Collect DEVICE_INFO responses
	found := make(chan crsf.DeviceInfo, 16)
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
				found <- msg.(crsf.DeviceInfo)
			}
		}
	}()

	devices := make(map[crsf.Address]crsf.DeviceInfo)
	deadline := time.After(time.Duration(discoverTimeout) * time.Second)

collect:
	for {
		select {
		case info := <-found:
			if _, seen := devices[info.Origin]; seen {
				continue
			}
			devices[info.Origin] = info
			printDevice(info)

		case err := <-errChan:
			fmt.Printf("READ FAILED: %v\n", err)
			os.Exit(2)

		case <-deadline:
			break collect
		}
	}

	// Summary
	fmt.Printf("\n--- Discovery summary ---\n")
	fmt.Printf("Devices found: %d\n", len(devices))

	if len(devices) == 0 {
		fmt.Printf("No devices discovered. Check wiring, baud rate and device power.\n")
		os.Exit(1)
	}

	return nil
}

func printDevice(info crsf.DeviceInfo) {
	fmt.Printf("\nDevice found:\n")
	fmt.Printf("  Name: %s\n", info.Name)
	fmt.Printf("  Address: %s\n", formatAddress(info.Origin))
	fmt.Printf("  Device type: 0x%02X\n", info.DeviceType)
	fmt.Printf("  Device ID: 0x%02X\n", info.DeviceID)
}

func formatAddress(a crsf.Address) string {
	return fmt.Sprintf("%s (0x%02X)", crsf.FormatAddress(a), uint8(a))
}
