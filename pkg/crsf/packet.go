// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package crsf

import "time"

// Frame represents a decoded CRSF frame
type Frame struct {
	sync      byte
	length    uint8
	frameType FrameType
	payload   []byte
	crc       byte
	timestamp time.Time
}

// NewFrame creates a new frame with the given fields
func NewFrame(sync byte, frameType FrameType, payload []byte, crc byte) *Frame {
	return &Frame{
		sync:      sync,
		length:    uint8(len(payload) + 2),
		frameType: frameType,
		payload:   payload,
		crc:       crc,
		timestamp: time.Now(),
	}
}

// ParseFrame validates buf and returns the frame it starts with.
// The payload is copied so buf may be reused by the caller.
func ParseFrame(buf []byte) (*Frame, error) {
	if err := Validate(buf); err != nil {
		return nil, err
	}
	frameLen := int(buf[offsetLength])
	payload := make([]byte, frameLen-2)
	copy(payload, buf[offsetPayload:offsetPayload+len(payload)])

	return &Frame{
		sync:      buf[offsetSync],
		length:    uint8(frameLen),
		frameType: FrameType(buf[offsetType]),
		payload:   payload,
		crc:       buf[frameLen+1],
		timestamp: time.Now(),
	}, nil
}

// Sync returns the frame's sync byte
func (f *Frame) Sync() byte {
	return f.sync
}

// Length returns the frame's length field (type + payload + crc)
func (f *Frame) Length() uint8 {
	return f.length
}

// Type returns the frame type
func (f *Frame) Type() FrameType {
	return f.frameType
}

// Payload returns the payload bytes (without type and crc)
func (f *Frame) Payload() []byte {
	return f.payload
}

// CRC returns the frame's CRC value
func (f *Frame) CRC() byte {
	return f.crc
}

// Timestamp returns the frame's decode timestamp
func (f *Frame) Timestamp() time.Time {
	return f.timestamp
}

// SetTimestamp overrides the decode timestamp, e.g. when replaying a capture
func (f *Frame) SetTimestamp(t time.Time) {
	f.timestamp = t
}

// IsELRS returns true if the frame used the ELRS sync byte
func (f *Frame) IsELRS() bool {
	return f.sync == SyncByteELRS
}

// Bytes returns the frame in wire format
func (f *Frame) Bytes() []byte {
	data := make([]byte, 0, len(f.payload)+4)
	data = append(data, f.sync, f.length, byte(f.frameType))
	data = append(data, f.payload...)
	return append(data, f.crc)
}
