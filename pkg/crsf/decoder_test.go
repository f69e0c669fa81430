// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package crsf

import (
	"errors"
	"testing"
)

// feed runs data through d and collects frames and errors
func feed(d *Decoder, data []byte) ([]*Frame, []error) {
	var errs []error
	frames := d.Decode(data, func(err error) {
		errs = append(errs, err)
	})
	return frames, errs
}

// ============================================================
// Decoder Tests
// ============================================================

func TestDecoder_SingleFrame(t *testing.T) {
	d := NewDecoder()
	frame := BuildRCFrame(rampChannels())

	var result *Frame
	for i, b := range frame {
		d.Feed([]byte{b}, func(f *Frame, err error) {
			if err != nil {
				t.Fatalf("byte %d: unexpected error %v", i, err)
			}
			if i != RCFrameSize-1 {
				t.Fatalf("Frame completed early at byte %d", i)
			}
			result = f
		})
	}

	if result == nil {
		t.Fatal("Expected a decoded frame")
	}
	if result.Type() != FrameTypeRCChannelsPacked {
		t.Errorf("Expected RC_CHANNELS_PACKED, got %s", result.Type())
	}
	if result.Timestamp().IsZero() {
		t.Error("Decoded frame should carry a timestamp")
	}
}

func TestDecoder_MultipleFrames(t *testing.T) {
	d := NewDecoder()
	rc := BuildRCFrame(NeutralChannels())

	var stream []byte
	stream = append(stream, rc[:]...)
	stream = append(stream, buildFrame(SyncByteELRS, FrameTypeLinkStatistics, make([]byte, 10))...)
	stream = append(stream, buildFrame(SyncByte, FrameTypeFlightMode, []byte("ANGL\x00"))...)

	frames, errs := feed(d, stream)
	if len(errs) != 0 {
		t.Fatalf("Unexpected errors: %v", errs)
	}

	expected := []FrameType{FrameTypeRCChannelsPacked, FrameTypeLinkStatistics, FrameTypeFlightMode}
	if len(frames) != len(expected) {
		t.Fatalf("Expected %d frames, got %d", len(expected), len(frames))
	}
	for i, f := range frames {
		if f.Type() != expected[i] {
			t.Errorf("frame %d: expected %s, got %s", i, expected[i], f.Type())
		}
	}
	if !frames[1].IsELRS() {
		t.Error("Second frame should carry the ELRS sync byte")
	}
}

func TestDecoder_ResyncThroughNoise(t *testing.T) {
	d := NewDecoder()
	rc := BuildRCFrame(rampChannels())

	noise := []byte{0x00, 0x11, 0x22, 0x33, 0x7F, 0xFF, 0x01}
	stream := append(append([]byte{}, noise...), rc[:]...)

	frames, errs := feed(d, stream)
	if len(errs) != 0 {
		t.Fatalf("Noise without sync bytes should not raise errors: %v", errs)
	}
	if len(frames) != 1 {
		t.Fatalf("Expected 1 frame, got %d", len(frames))
	}
}

func TestDecoder_InvalidLength(t *testing.T) {
	d := NewDecoder()

	frames, errs := feed(d, []byte{SyncByte, 0x01})
	if len(frames) != 0 {
		t.Fatalf("Expected no frames, got %d", len(frames))
	}
	if len(errs) != 1 || !errors.Is(errs[0], ErrMalformedHeader) {
		t.Fatalf("Expected one ErrMalformedHeader, got %v", errs)
	}

	// Decoder must recover for the next frame
	rc := BuildRCFrame(NeutralChannels())
	frames, errs = feed(d, rc[:])
	if len(errs) != 0 || len(frames) != 1 {
		t.Errorf("Expected recovery, got %d frames and errors %v", len(frames), errs)
	}
}

func TestDecoder_CRCError(t *testing.T) {
	d := NewDecoder()
	rc := BuildRCFrame(NeutralChannels())
	rc[RCFrameSize-1] ^= 0x5A

	frames, errs := feed(d, rc[:])
	if len(frames) != 0 {
		t.Errorf("Expected no frames, got %d", len(frames))
	}
	// The rejected frame is rescanned from the byte after its sync, so the
	// 0xEE bytes in the neutral payload add header errors after the CRC error
	if len(errs) == 0 || !errors.Is(errs[0], ErrCRCMismatch) {
		t.Fatalf("Expected a CRC error first, got %v", errs)
	}
	for _, err := range errs[1:] {
		if !errors.Is(err, ErrMalformedHeader) {
			t.Errorf("Expected header errors after the CRC error, got %v", err)
		}
	}

	good := BuildRCFrame(NeutralChannels())
	frames, errs = feed(d, good[:])
	if len(errs) != 0 || len(frames) != 1 {
		t.Errorf("Expected recovery after CRC error, got %d frames and errors %v", len(frames), errs)
	}
}

func TestDecoder_MinimalFrame(t *testing.T) {
	d := NewDecoder()
	data := buildFrame(SyncByte, FrameTypeHeartbeat, nil)

	frames, errs := feed(d, data)
	if len(errs) != 0 {
		t.Fatalf("Unexpected errors: %v", errs)
	}
	if len(frames) != 1 || len(frames[0].Payload()) != 0 {
		t.Fatalf("Expected one empty-payload frame, got %d", len(frames))
	}
}

func TestDecoder_MaximumFrame(t *testing.T) {
	d := NewDecoder()
	payload := make([]byte, MaxPayloadSize)
	for i := range payload {
		payload[i] = byte(i)
	}
	data := buildFrame(SyncByte, FrameTypeArduino, payload)

	frames, errs := feed(d, data)
	if len(errs) != 0 {
		t.Fatalf("Unexpected errors: %v", errs)
	}
	if len(frames) != 1 || len(frames[0].Payload()) != MaxPayloadSize {
		t.Fatal("Expected one maximum-size frame")
	}
}

func TestDecoder_RawBytes(t *testing.T) {
	d := NewDecoder()

	frames, errs := feed(d, []byte{0x01, 0x02, SyncByte, 24})
	if len(frames) != 0 || len(errs) != 0 {
		t.Fatalf("Unexpected output: %d frames, errors %v", len(frames), errs)
	}

	raw := d.GetRawBytes()
	if len(raw) != 2 || raw[0] != SyncByte || raw[1] != 24 {
		t.Errorf("Raw bytes should start at the sync byte, got % X", raw)
	}

	d.Reset()
	if len(d.GetRawBytes()) != 0 {
		t.Error("Reset should clear raw bytes")
	}
}

func TestDecoder_RawBytesBounded(t *testing.T) {
	d := NewDecoder()
	noise := make([]byte, 1000)
	for i := range noise {
		noise[i] = SyncByte
	}
	feed(d, noise)
	if len(d.GetRawBytes()) > MaxFrameSize {
		t.Errorf("Raw buffer grew unbounded: %d bytes", len(d.GetRawBytes()))
	}
}

func TestDecoder_SplitAcrossChunks(t *testing.T) {
	d := NewDecoder()
	rc := BuildRCFrame(rampChannels())

	frames, _ := feed(d, rc[:10])
	if len(frames) != 0 {
		t.Fatal("Frame should not complete from a partial chunk")
	}
	frames, errs := feed(d, rc[10:])
	if len(errs) != 0 || len(frames) != 1 {
		t.Fatalf("Expected 1 frame after second chunk, got %d (errors %v)", len(frames), errs)
	}
}

// ============================================================
// Resynchronization Tests
// ============================================================

func TestDecoder_StraySyncBeforeFrame(t *testing.T) {
	for _, stray := range []byte{SyncByte, SyncByteELRS} {
		d := NewDecoder()
		rc := BuildRCFrame(NeutralChannels())
		stream := append([]byte{stray}, rc[:]...)

		frames, errs := feed(d, stream)
		if len(frames) != 1 {
			t.Fatalf("stray 0x%02X: expected 1 frame, got %d (errors %v)", stray, len(frames), errs)
		}
		if frames[0].Type() != FrameTypeRCChannelsPacked {
			t.Errorf("stray 0x%02X: expected RC_CHANNELS_PACKED, got %s", stray, frames[0].Type())
		}
		if len(errs) != 1 || !errors.Is(errs[0], ErrMalformedHeader) {
			t.Errorf("stray 0x%02X: expected one header error, got %v", stray, errs)
		}
	}
}

func TestDecoder_StraySyncWithPlausibleLength(t *testing.T) {
	d := NewDecoder()
	rc := BuildRCFrame(rampChannels())

	// 0xEE 0x20 claims a 34-byte frame that swallows the whole first RC frame
	stream := []byte{SyncByteELRS, 0x20, 0x01}
	stream = append(stream, rc[:]...)
	stream = append(stream, rc[:]...)

	frames, errs := feed(d, stream)
	if len(frames) != 2 {
		t.Fatalf("Expected 2 frames, got %d (errors %v)", len(frames), errs)
	}
	for i, f := range frames {
		if f.Type() != FrameTypeRCChannelsPacked {
			t.Errorf("frame %d: expected RC_CHANNELS_PACKED, got %s", i, f.Type())
		}
	}
	if len(errs) == 0 || !errors.Is(errs[0], ErrCRCMismatch) {
		t.Errorf("Expected the bogus candidate to fail its CRC first, got %v", errs)
	}
}

func TestDecoder_CorruptedFrameThenGoodFrame(t *testing.T) {
	d := NewDecoder()
	bad := BuildRCFrame(rampChannels())
	bad[10] ^= 0xFF
	good := BuildRCFrame(NeutralChannels())

	stream := append(append([]byte{}, bad[:]...), good[:]...)
	frames, errs := feed(d, stream)
	if len(frames) != 1 {
		t.Fatalf("Expected the good frame to survive, got %d frames (errors %v)", len(frames), errs)
	}
	ch, err := ChannelsFromPayload(frames[0].Payload())
	if err != nil {
		t.Fatalf("Unexpected payload error: %v", err)
	}
	if ch != NeutralChannels() {
		t.Error("Recovered frame should be the neutral one")
	}
	if len(errs) == 0 || !errors.Is(errs[0], ErrCRCMismatch) {
		t.Errorf("Expected a CRC error for the corrupted frame, got %v", errs)
	}
}

func TestDecoder_SyncValuesInsidePayload(t *testing.T) {
	d := NewDecoder()

	// Channel values whose packed bytes include 0xEE
	var ch Channels
	for i := range ch {
		ch[i] = 0x6EE
		if i%2 == 1 {
			ch[i] = 0x0C8
		}
	}
	rc := BuildRCFrame(ch)

	var stream []byte
	for i := 0; i < 5; i++ {
		stream = append(stream, rc[:]...)
	}
	frames, errs := feed(d, stream)
	if len(errs) != 0 || len(frames) != 5 {
		t.Fatalf("Expected 5 frames and no errors, got %d frames and %v", len(frames), errs)
	}
}
