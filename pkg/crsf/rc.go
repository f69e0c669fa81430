// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package crsf

// BuildRCFrame assembles a complete RC_CHANNELS_PACKED frame ready for transmission.
// Layout: sync(0xC8) | length(24) | type(0x16) | packed channels(22) | crc
func BuildRCFrame(ch Channels) [RCFrameSize]byte {
	var frame [RCFrameSize]byte
	frame[offsetSync] = SyncByte
	frame[offsetLength] = RCFrameLength
	frame[offsetType] = byte(FrameTypeRCChannelsPacked)

	packed := PackChannels(ch)
	copy(frame[offsetPayload:], packed[:])

	frame[RCFrameSize-1] = CRC8(frame[offsetType : RCFrameSize-1])
	return frame
}
