// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Thermoquad/crsfscope/pkg/crsf"
)

var (
	rcSendChannels string
	rcSendMicros   bool
	rcSendCount    int
	rcSendDryRun   bool
)

var rcSendCmd = &cobra.Command{
	Use:   "rc_send",
	Short: "Transmit RC channel frames at a fixed rate",
	Long: `Build RC_CHANNELS_PACKED frames and send them at a fixed rate.

Channels are given as a comma-separated list of up to 16 values; missing or
empty entries stay at the default raw value of 1500 ticks. Values are raw
11-bit ticks (0-2047) unless --us is set.

Examples:
  # Sticks centered, throttle low, at 150 Hz until Ctrl+C
  crsfscope rc_send --port /dev/ttyUSB0 --rate 150 --us --channels 1500,1500,988,1500

  # Print ten frames as hex without opening a connection
  crsfscope rc_send --dry-run --count 10 --channels 172,1811`,
	RunE: runRCSend,
}

func init() {
	rootCmd.AddCommand(rcSendCmd)
	rcSendCmd.Flags().Float64("rate", 50, "Frames per second")
	rcSendCmd.Flags().StringVar(&rcSendChannels, "channels", "", "Comma-separated channel values (CH1..CH16)")
	rcSendCmd.Flags().BoolVar(&rcSendMicros, "us", false, "Channel values are microseconds instead of ticks")
	rcSendCmd.Flags().IntVar(&rcSendCount, "count", 0, "Number of frames to send (0 = until interrupted)")
	rcSendCmd.Flags().BoolVar(&rcSendDryRun, "dry-run", false, "Print frames as hex instead of sending")
}

func runRCSend(cmd *cobra.Command, args []string) error {
	hz := cfg.Transmit.Rate
	if hz <= 0 {
		return fmt.Errorf("--rate must be positive")
	}

	ch, err := parseChannelList(rcSendChannels, rcSendMicros)
	if err != nil {
		return err
	}
	frame := crsf.BuildRCFrame(ch)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	count := rcSendCount
	write := func(b []byte) error {
		fmt.Printf("% X\n", b)
		return nil
	}

	if rcSendDryRun {
		if count == 0 {
			count = 1
		}
	} else {
		conn, connInfo, err := OpenConnection()
		if err != nil {
			return err
		}
		defer conn.Close()

		fmt.Printf("crsfscope - RC Send\n")
		fmt.Printf("Connection: %s\n", connInfo)
		fmt.Printf("Rate: %.1f Hz\n", hz)
		fmt.Print(crsf.FormatChannels(ch))
		fmt.Printf("Press Ctrl+C to stop\n\n")

		write = func(b []byte) error {
			_, err := conn.Write(b)
			return err
		}
	}

	limiter := rate.NewLimiter(rate.Limit(hz), 1)
	sent := 0
	for count == 0 || sent < count {
		if err := limiter.Wait(ctx); err != nil {
			break
		}
		if err := write(frame[:]); err != nil {
			return fmt.Errorf("write RC frame: %w", err)
		}
		sent++
	}

	logger.Info("rc_send finished", zap.Int("frames", sent), zap.Float64("rate", hz))
	return nil
}

// parseChannelList parses up to 16 comma-separated channel values.
// Empty entries keep the neutral value; micros selects microsecond input.
func parseChannelList(s string, micros bool) (crsf.Channels, error) {
	ch := crsf.NeutralChannels()
	if strings.TrimSpace(s) == "" {
		return ch, nil
	}

	fields := strings.Split(s, ",")
	if len(fields) > crsf.NumChannels {
		return ch, fmt.Errorf("too many channels: %d (max %d)", len(fields), crsf.NumChannels)
	}

	for i, field := range fields {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		v, err := strconv.ParseUint(field, 10, 16)
		if err != nil {
			return ch, fmt.Errorf("channel %d: invalid value %q", i+1, field)
		}
		if micros {
			v = uint64(crsf.MicrosToTicks(uint16(v)))
		}
		if v > crsf.ChannelMask {
			return ch, fmt.Errorf("channel %d: %w", i+1, errChannelRange)
		}
		ch[i] = uint16(v)
	}
	return ch, nil
}

var errChannelRange = errors.New("value outside 0-2047 ticks")
