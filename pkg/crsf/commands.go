// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package crsf

// NewDevicePing creates a DEVICE_PING frame (0x28) using the extended header.
// Devices answer with DEVICE_INFO. Use AddressBroadcast to ping every device.
func NewDevicePing(destination, origin Address) []byte {
	frame, _ := EncodeFrame(SyncByte, FrameTypeDevicePing, []byte{byte(destination), byte(origin)})
	return frame
}
