// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Thermoquad/crsfscope/internal/capture"
	"github.com/Thermoquad/crsfscope/pkg/crsf"
)

var replayRealtime bool

var replayCmd = &cobra.Command{
	Use:   "replay <capture-file>",
	Short: "Print frames from a capture file",
	Long: `Read a capture file written by raw_log --record or serve --record and
print every frame in the same format as raw_log.

A header line is printed whenever the recording session changes. With
--realtime, frames are paced using their recorded receive times.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().BoolVar(&replayRealtime, "realtime", false, "Pace output by recorded timestamps")
}

func runReplay(cmd *cobra.Command, args []string) error {
	r, err := capture.Open(args[0])
	if err != nil {
		return err
	}
	defer r.Close()

	var (
		session  string
		last     time.Time
		frames   int
		failures int
	)

	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", args[0], err)
		}

		if rec.Session != session {
			session = rec.Session
			last = time.Time{}
			fmt.Printf("=== Session %s (%s) ===\n", session, rec.Time().Format(time.RFC3339))
		}

		if replayRealtime && !last.IsZero() {
			if gap := rec.Time().Sub(last); gap > 0 {
				time.Sleep(gap)
			}
		}
		last = rec.Time()

		frame, err := rec.Parse()
		if err != nil {
			failures++
			fmt.Printf("[ERROR] %v (% X)\n", err, rec.Frame)
			continue
		}
		frames++
		fmt.Print(crsf.FormatFrame(frame))
	}

	fmt.Printf("\n%d frames replayed, %d unreadable\n", frames, failures)
	logger.Debug("replay finished", zap.String("file", args[0]), zap.Int("frames", frames), zap.Int("errors", failures))
	return nil
}
