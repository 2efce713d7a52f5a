// Package sse splits a chunked text/event-stream body into data frames.
//
// Only single-line "data: " frames are recognized. Chunk boundaries may
// fall anywhere, including inside the prefix or inside a multi-byte
// character, so the decoder buffers the unterminated tail of each chunk
// and joins it with the next one.
package sse

import "bytes"

// Prefix marks a data frame. The payload is the rest of the line.
const Prefix = "data: "

var prefix = []byte(Prefix)

// Decoder reassembles frames from arbitrary chunks. It is not safe for
// concurrent use; a stream has exactly one reader.
type Decoder struct {
	buf     []byte
	scanned int // bytes of buf already known to hold no newline
}

// NewDecoder returns an empty Decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed appends chunk to the buffered tail and returns the payloads of
// every frame it completed, in terminator order. Lines without the
// prefix and blank lines are discarded.
func (d *Decoder) Feed(chunk []byte) []string {
	d.buf = append(d.buf, chunk...)

	var frames []string
	start, from := 0, d.scanned
	for {
		i := bytes.IndexByte(d.buf[from:], '\n')
		if i < 0 {
			break
		}
		line := d.buf[start : from+i]
		start = from + i + 1
		from = start

		line = bytes.TrimSuffix(line, []byte{'\r'})
		if payload, ok := bytes.CutPrefix(line, prefix); ok {
			frames = append(frames, string(payload))
		}
	}

	if start > 0 {
		// Copy the tail so the consumed lines can be collected.
		d.buf = append([]byte(nil), d.buf[start:]...)
	}
	d.scanned = len(d.buf)
	return frames
}

// Pending reports how many bytes of an unterminated line are buffered.
func (d *Decoder) Pending() int {
	return len(d.buf)
}

// Close drops any unterminated tail and returns its size. A partial
// frame at end of stream is never salvaged.
func (d *Decoder) Close() int {
	n := len(d.buf)
	d.buf = nil
	d.scanned = 0
	return n
}
