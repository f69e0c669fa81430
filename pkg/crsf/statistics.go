// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package crsf

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// Statistics tracks frame statistics and error rates
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	TotalFrames      uint64
	ValidFrames      uint64
	CRCErrors        uint64
	HeaderErrors     uint64
	TruncatedFrames  uint64
	DecodeErrors     uint64
	MalformedFrames  uint64
	LengthMismatches uint64
	AnomalousValues  uint64
	ChannelRange     uint64
	LinkQuality      uint64
	BatteryRange     uint64
	GPSRange         uint64
	UnknownTypes     uint64

	FramesByType map[FrameType]uint64

	// Rates (calculated)
	FrameRate float64 // frames/sec
	ErrorRate float64 // errors/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
		FramesByType:   make(map[FrameType]uint64),
	}
}

// Update updates statistics based on a frame and its errors
func (s *Statistics) Update(frame *Frame, decodeErr error, validationErrors []ValidationError) {
	s.TotalFrames++
	s.LastUpdateTime = time.Now()

	// Handle decode errors
	if decodeErr != nil {
		switch {
		case errors.Is(decodeErr, ErrCRCMismatch):
			s.CRCErrors++
		case errors.Is(decodeErr, ErrMalformedHeader):
			s.HeaderErrors++
		case errors.Is(decodeErr, ErrTruncated):
			s.TruncatedFrames++
		default:
			s.DecodeErrors++
		}
		return // Don't process frame further if decode failed
	}

	if frame != nil {
		s.FramesByType[frame.Type()]++
	}

	if len(validationErrors) == 0 {
		s.ValidFrames++
		return
	}

	for _, err := range validationErrors {
		switch err.Type {
		case AnomalyLengthMismatch:
			s.LengthMismatches++
			s.MalformedFrames++
		case AnomalyUnknownType:
			s.UnknownTypes++
			s.MalformedFrames++
		case AnomalyChannelRange:
			s.ChannelRange++
			s.AnomalousValues++
		case AnomalyLinkQuality:
			s.LinkQuality++
			s.AnomalousValues++
		case AnomalyBatteryRemaining:
			s.BatteryRange++
			s.AnomalousValues++
		case AnomalyGPSCoordinate:
			s.GPSRange++
			s.AnomalousValues++
		}
	}
}

// ErrorCount returns the number of frames that failed decoding or validation
func (s *Statistics) ErrorCount() uint64 {
	return s.CRCErrors + s.HeaderErrors + s.TruncatedFrames + s.DecodeErrors + s.MalformedFrames + s.AnomalousValues
}

// CalculateRates calculates frame and error rates
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.FrameRate = float64(s.TotalFrames) / elapsed
		s.ErrorRate = float64(s.ErrorCount()) / elapsed
	}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	percent := func(n uint64) float64 {
		if s.TotalFrames == 0 {
			return 0
		}
		return float64(n) * 100.0 / float64(s.TotalFrames)
	}

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Total Frames:    %8d\n", s.TotalFrames)
	result += fmt.Sprintf("Valid Frames:    %8d (%.1f%%)\n", s.ValidFrames, percent(s.ValidFrames))

	if s.CRCErrors > 0 {
		result += fmt.Sprintf("CRC Errors:      %8d (%.1f%%)\n", s.CRCErrors, percent(s.CRCErrors))
	}
	if s.HeaderErrors > 0 {
		result += fmt.Sprintf("Header Errors:   %8d (%.1f%%)\n", s.HeaderErrors, percent(s.HeaderErrors))
	}
	if s.TruncatedFrames > 0 {
		result += fmt.Sprintf("Truncated:       %8d (%.1f%%)\n", s.TruncatedFrames, percent(s.TruncatedFrames))
	}
	if s.DecodeErrors > 0 {
		result += fmt.Sprintf("Decode Errors:   %8d (%.1f%%)\n", s.DecodeErrors, percent(s.DecodeErrors))
	}
	if s.MalformedFrames > 0 {
		result += fmt.Sprintf("Malformed:       %8d (%.1f%%)\n", s.MalformedFrames, percent(s.MalformedFrames))
		if s.LengthMismatches > 0 {
			result += fmt.Sprintf("  Length Mismatch:  %5d\n", s.LengthMismatches)
		}
		if s.UnknownTypes > 0 {
			result += fmt.Sprintf("  Unknown Type:     %5d\n", s.UnknownTypes)
		}
	}
	if s.AnomalousValues > 0 {
		result += fmt.Sprintf("Anomalous Values:%8d (%.1f%%)\n", s.AnomalousValues, percent(s.AnomalousValues))
		if s.ChannelRange > 0 {
			result += fmt.Sprintf("  Channel Range:    %5d\n", s.ChannelRange)
		}
		if s.LinkQuality > 0 {
			result += fmt.Sprintf("  Link Quality:     %5d\n", s.LinkQuality)
		}
		if s.BatteryRange > 0 {
			result += fmt.Sprintf("  Battery:          %5d\n", s.BatteryRange)
		}
		if s.GPSRange > 0 {
			result += fmt.Sprintf("  GPS:              %5d\n", s.GPSRange)
		}
	}

	if len(s.FramesByType) > 0 {
		result += "Frames by type:\n"
		types := make([]FrameType, 0, len(s.FramesByType))
		for t := range s.FramesByType {
			types = append(types, t)
		}
		sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
		for _, t := range types {
			result += fmt.Sprintf("  %-26s %8d\n", fmt.Sprintf("%s (0x%02X)", t, uint8(t)), s.FramesByType[t])
		}
	}

	result += fmt.Sprintf("Frame Rate:      %8.1f frames/sec\n", s.FrameRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	*s = *NewStatistics()
}
