// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package crsf

import (
	"errors"
	"fmt"
)

// Frame errors. IsValid collapses all of them into a single false.
var (
	ErrMalformedHeader = errors.New("malformed header")
	ErrTruncated       = errors.New("truncated frame")
	ErrCRCMismatch     = errors.New("CRC mismatch")
)

// IsSync reports whether b is a recognized sync byte
func IsSync(b byte) bool {
	return b == SyncByte || b == SyncByteELRS
}

// validLength reports whether the length field is within [2, 64]
func validLength(l byte) bool {
	return l >= MinFrameLength && l <= MaxFrameLength
}

// headerOK reports whether buf starts with a sync byte and an in-range length.
// buf must hold at least 2 bytes.
func headerOK(buf []byte) bool {
	return IsSync(buf[offsetSync]) && validLength(buf[offsetLength])
}

// crcOK reports whether the CRC of the frame starting at buf matches.
// The header must be valid and buf must hold the whole frame.
func crcOK(buf []byte) bool {
	crcIndex := int(buf[offsetLength]) + 1
	return CRC8(buf[offsetType:crcIndex]) == buf[crcIndex]
}

// Classify extracts the declared frame type from buf.
// Returns false when buf holds fewer than 3 bytes, the sync byte is not recognized,
// or the length field is out of range. Unknown frame types are still classified.
func Classify(buf []byte) (FrameType, bool) {
	if len(buf) < offsetType+1 || !headerOK(buf) {
		return 0, false
	}
	return FrameType(buf[offsetType]), true
}

// IsValid reports whether buf starts with a complete, checksum-correct frame.
// It does not allocate.
func IsValid(buf []byte) bool {
	if len(buf) < MinFrameSize || !headerOK(buf) {
		return false
	}
	if len(buf) < int(buf[offsetLength])+headerSize {
		return false
	}
	return crcOK(buf)
}

// Validate is the diagnostic form of IsValid: it reports why buf is rejected.
// Trailing bytes beyond the declared frame are ignored.
func Validate(buf []byte) error {
	if len(buf) < MinFrameSize {
		return fmt.Errorf("%w: %d bytes (min %d)", ErrTruncated, len(buf), MinFrameSize)
	}
	if !IsSync(buf[offsetSync]) {
		return fmt.Errorf("%w: sync byte 0x%02X", ErrMalformedHeader, buf[offsetSync])
	}
	if !validLength(buf[offsetLength]) {
		return fmt.Errorf("%w: length %d (valid %d-%d)", ErrMalformedHeader,
			buf[offsetLength], MinFrameLength, MaxFrameLength)
	}

	// Capacity is confirmed before any offset derived from the length field is used
	frameLen := int(buf[offsetLength])
	if len(buf) < frameLen+headerSize {
		return fmt.Errorf("%w: have %d bytes, frame needs %d", ErrTruncated, len(buf), frameLen+headerSize)
	}

	if !crcOK(buf) {
		crcIndex := frameLen + 1
		return fmt.Errorf("%w: expected 0x%02X, got 0x%02X", ErrCRCMismatch,
			CRC8(buf[offsetType:crcIndex]), buf[crcIndex])
	}
	return nil
}

// FrameSize returns the total buffer size of the frame starting at buf.
// Returns false if the header is not valid.
func FrameSize(buf []byte) (int, bool) {
	if len(buf) < headerSize || !headerOK(buf) {
		return 0, false
	}
	return int(buf[offsetLength]) + headerSize, true
}

// EncodeFrame creates a complete wire-formatted frame with the given sync byte.
// The CRC is computed over type and payload.
func EncodeFrame(sync byte, frameType FrameType, payload []byte) ([]byte, error) {
	if !IsSync(sync) {
		return nil, fmt.Errorf("%w: sync byte 0x%02X", ErrMalformedHeader, sync)
	}
	if len(payload) > MaxPayloadSize {
		return nil, fmt.Errorf("payload too large: %d bytes (max %d)", len(payload), MaxPayloadSize)
	}

	frameLen := len(payload) + 2
	data := make([]byte, frameLen+headerSize)
	data[offsetSync] = sync
	data[offsetLength] = byte(frameLen)
	data[offsetType] = byte(frameType)
	copy(data[offsetPayload:], payload)
	data[len(data)-1] = CRC8(data[offsetType : len(data)-1])

	return data, nil
}
