// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package crsf

import "fmt"

// Channels holds the 16 raw 11-bit RC channel values, ch1..ch16
type Channels [NumChannels]uint16

// NeutralChannels returns a channel set with every channel at ChannelNeutralRaw
func NeutralChannels() Channels {
	var ch Channels
	for i := range ch {
		ch[i] = ChannelNeutralRaw
	}
	return ch
}

// PackChannels packs 16 channels into 22 bytes, low bit first.
// Values above 11 bits are truncated, not rejected.
func PackChannels(ch Channels) [PackedChannelsSize]byte {
	var out [PackedChannelsSize]byte
	var bitBuffer uint32
	bitCount := 0
	byteIndex := 0

	for i := 0; i < NumChannels; i++ {
		bitBuffer |= uint32(ch[i]&ChannelMask) << bitCount
		bitCount += ChannelBits

		for bitCount >= 8 {
			out[byteIndex] = byte(bitBuffer)
			byteIndex++
			bitBuffer >>= 8
			bitCount -= 8
		}
	}

	// 176 bits fill 22 bytes exactly; kept for layouts that leave a partial byte
	if bitCount > 0 && byteIndex < len(out) {
		out[byteIndex] = byte(bitBuffer)
	}

	return out
}

// UnpackChannels extracts 16 channels from a 22-byte packed payload
func UnpackChannels(packed [PackedChannelsSize]byte) Channels {
	var ch Channels
	var bitBuffer uint32
	bitCount := 0
	byteIndex := 0

	for i := 0; i < NumChannels; i++ {
		for bitCount < ChannelBits {
			bitBuffer |= uint32(packed[byteIndex]) << bitCount
			byteIndex++
			bitCount += 8
		}
		ch[i] = uint16(bitBuffer & ChannelMask)
		bitBuffer >>= ChannelBits
		bitCount -= ChannelBits
	}

	return ch
}

// ChannelsFromPayload unpacks channels from an RC_CHANNELS_PACKED payload slice
func ChannelsFromPayload(payload []byte) (Channels, error) {
	if len(payload) < PackedChannelsSize {
		return Channels{}, fmt.Errorf("%w: channel payload %d bytes (need %d)", ErrTruncated, len(payload), PackedChannelsSize)
	}
	var packed [PackedChannelsSize]byte
	copy(packed[:], payload)
	return UnpackChannels(packed), nil
}

// TicksToMicros converts a raw CRSF channel value to a pulse width in microseconds
func TicksToMicros(ticks uint16) uint16 {
	return uint16((int(ticks)-ChannelValueMid)*5/8 + 1500)
}

// MicrosToTicks converts a pulse width in microseconds to a raw CRSF channel value.
// Results are clamped to the 11-bit range.
func MicrosToTicks(us uint16) uint16 {
	ticks := (int(us)-1500)*8/5 + ChannelValueMid
	if ticks < 0 {
		return 0
	}
	if ticks > ChannelMask {
		return ChannelMask
	}
	return uint16(ticks)
}
