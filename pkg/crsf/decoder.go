// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package crsf

import "fmt"

// Decoder extracts frames from a byte stream.
//
// Bytes are held in a fixed window until they either complete a frame or are
// rejected. A rejected candidate (bad length or CRC) only discards its sync
// byte; the bytes after it are scanned again, so a stray sync value in noise
// or inside a corrupted frame never hides the frames that follow.
// A Decoder is not safe for concurrent use.
type Decoder struct {
	window [MaxFrameSize]byte
	n      int
}

// NewDecoder creates a new protocol decoder
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Reset discards any partially received frame
func (d *Decoder) Reset() {
	d.n = 0
}

// GetRawBytes returns the bytes buffered for the frame in progress.
// The slice is only valid until the next call to Feed or Decode.
func (d *Decoder) GetRawBytes() []byte {
	return d.window[:d.n]
}

// Feed runs data through the decoder. emit is called in stream order with
// either a completed frame or the error that rejected a candidate frame.
// Bytes that are not sync bytes while no frame is in progress are skipped
// silently.
func (d *Decoder) Feed(data []byte, emit func(*Frame, error)) {
	for _, b := range data {
		if d.n == 0 && !IsSync(b) {
			continue
		}
		d.window[d.n] = b
		d.n++
		d.scan(emit)
	}
}

// Decode feeds a chunk of bytes through the decoder.
// Completed frames are returned in order; errors encountered along the way are
// passed to onError when it is non-nil.
func (d *Decoder) Decode(data []byte, onError func(error)) []*Frame {
	var frames []*Frame
	d.Feed(data, func(f *Frame, err error) {
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		frames = append(frames, f)
	})
	return frames
}

// scan consumes as many frames and rejections from the window as the buffered
// bytes allow
func (d *Decoder) scan(emit func(*Frame, error)) {
	for d.n > 0 {
		if !IsSync(d.window[offsetSync]) {
			d.shift(1)
			continue
		}
		if d.n < headerSize {
			return
		}

		length := d.window[offsetLength]
		if !validLength(length) {
			d.shift(1)
			emit(nil, fmt.Errorf("%w: length %d (valid %d-%d)", ErrMalformedHeader, length, MinFrameLength, MaxFrameLength))
			continue
		}

		size := int(length) + headerSize
		if d.n < size {
			return
		}

		frame, err := ParseFrame(d.window[:size])
		if err != nil {
			d.shift(1)
			emit(nil, err)
			continue
		}
		d.shift(size)
		emit(frame, nil)
	}
}

// shift drops the first k buffered bytes
func (d *Decoder) shift(k int) {
	d.n = copy(d.window[:], d.window[k:d.n])
}
