package sse

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func feedAll(d *Decoder, chunks ...string) []string {
	var out []string
	for _, c := range chunks {
		out = append(out, d.Feed([]byte(c))...)
	}
	return out
}

func TestDecoder_SingleChunk(t *testing.T) {
	d := NewDecoder()
	frames := d.Feed([]byte("data: {\"a\":1}\n\ndata: {\"b\":2}\n\n"))

	assert.Equal(t, []string{`{"a":1}`, `{"b":2}`}, frames)
	assert.Equal(t, 0, d.Pending())
}

func TestDecoder_SplitPrefix(t *testing.T) {
	d := NewDecoder()
	frames := feedAll(d, "da", "ta", ": ", "x", "\n")

	assert.Equal(t, []string{"x"}, frames)
}

func TestDecoder_SplitTerminatorAndCRLF(t *testing.T) {
	d := NewDecoder()
	frames := feedAll(d, "data: one\r", "\n", "data: two\r\n")

	assert.Equal(t, []string{"one", "two"}, frames)
}

func TestDecoder_DiscardsForeignAndBlankLines(t *testing.T) {
	d := NewDecoder()
	frames := feedAll(d,
		": keepalive comment\n",
		"\n",
		"   \n",
		"event: progress\n",
		"data:no-space\n",
		" data: indented\n",
		"data: kept\n",
	)

	assert.Equal(t, []string{"kept"}, frames)
}

func TestDecoder_EmptyPayload(t *testing.T) {
	d := NewDecoder()
	frames := d.Feed([]byte("data: \n"))

	assert.Equal(t, []string{""}, frames)
}

func TestDecoder_RetainsPartialTail(t *testing.T) {
	d := NewDecoder()
	frames := d.Feed([]byte("data: first\ndata: sec"))

	assert.Equal(t, []string{"first"}, frames)
	assert.Equal(t, len("data: sec"), d.Pending())

	frames = d.Feed([]byte("ond\n"))
	assert.Equal(t, []string{"second"}, frames)
	assert.Equal(t, 0, d.Pending())
}

func TestDecoder_CloseDropsPartialFrame(t *testing.T) {
	d := NewDecoder()
	frames := d.Feed([]byte("data: done\ndata: {\"type\":\"comp"))

	assert.Equal(t, []string{"done"}, frames)
	assert.Equal(t, len(`data: {"type":"comp`), d.Close())
	assert.Equal(t, 0, d.Pending())
	assert.Empty(t, d.Feed(nil))
}

func TestDecoder_MultiByteSplit(t *testing.T) {
	line := "data: {\"status\":\"Generando monturas… ñ\"}\n"
	for i := 1; i < len(line); i++ {
		d := NewDecoder()
		frames := feedAll(d, line[:i], line[i:])
		assert.Equal(t, []string{`{"status":"Generando monturas… ñ"}`}, frames, "split at %d", i)
	}
}

func TestDecoder_SplitInvariance(t *testing.T) {
	stream := "data: {\"type\":\"progress\",\"progress\":10}\n\n" +
		": comment\n" +
		"data: {\"type\":\"selfie\",\"selfie_url\":\"http://x\"}\r\n\r\n" +
		"data: {\"type\":\"complete\"}\n"

	want := NewDecoder().Feed([]byte(stream))
	assert.Len(t, want, 3)

	// every single split point
	for i := 0; i <= len(stream); i++ {
		d := NewDecoder()
		got := feedAll(d, stream[:i], stream[i:])
		assert.Equal(t, want, got, "split at %d", i)
	}

	// every pair of split points
	for i := 0; i <= len(stream); i++ {
		for j := i; j <= len(stream); j++ {
			d := NewDecoder()
			got := feedAll(d, stream[:i], stream[i:j], stream[j:])
			if !assert.Equal(t, want, got, "split at %d,%d", i, j) {
				return
			}
		}
	}

	// one byte at a time
	d := NewDecoder()
	var got []string
	for i := 0; i < len(stream); i++ {
		got = append(got, d.Feed([]byte{stream[i]})...)
	}
	assert.Equal(t, want, got)
}

func TestDecoder_LongFrameScansEachByteOnce(t *testing.T) {
	payload := `{"type":"image","image":{"data":"` + strings.Repeat("A", 64*1024) + `"}}`
	stream := Prefix + payload + "\n"

	d := NewDecoder()
	var got []string
	for i := 0; i < len(stream); i += 4096 {
		end := min(i+4096, len(stream))
		got = append(got, d.Feed([]byte(stream[i:end]))...)
		if end < len(stream) {
			// the whole tail has been searched already
			assert.Equal(t, d.Pending(), d.scanned)
		}
	}

	require.Len(t, got, 1)
	assert.Equal(t, payload, got[0])
	assert.Zero(t, d.Pending())
	assert.Zero(t, d.scanned)
}

func TestDecoder_ScanOffsetResetsOnClose(t *testing.T) {
	d := NewDecoder()
	d.Feed([]byte("data: partial"))
	assert.Equal(t, 13, d.Close())
	assert.Zero(t, d.scanned)

	assert.Equal(t, []string{"x"}, d.Feed([]byte("data: x\n")))
}
