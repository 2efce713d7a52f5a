package photo

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pngBytes is a valid 1x1 PNG.
var pngBytes, _ = base64.StdEncoding.DecodeString("iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg==")

func TestLoader_Download_Success(t *testing.T) {
	var handlerCalled bool
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte("123"))
	}))
	defer ts.Close()

	data, mimeType, err := NewLoader().Download(context.Background(), ts.URL)
	require.NoError(t, err)

	assert.Equal(t, []byte("123"), data)
	assert.Equal(t, "image/jpeg", mimeType)
	assert.True(t, handlerCalled)
}

func TestLoader_Download_NotFound(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	_, _, err := NewLoader().Download(context.Background(), ts.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}

func TestLoader_Download_ContextCanceled(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should have been canceled")
	}))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := NewLoader().Download(ctx, ts.URL)
	assert.Error(t, err)
}

func TestLoader_Download_SizeLimit(t *testing.T) {
	largeData := make([]byte, 100)
	for i := range largeData {
		largeData[i] = byte(i % 256)
	}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.WriteHeader(http.StatusOK)
		w.Write(largeData)
	}))
	defer ts.Close()

	_, _, err := NewLoader().WithMaxSize(50).Download(context.Background(), ts.URL)
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestLoader_Download_ContentLengthExceedsLimit(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Header().Set("Content-Length", "999999999")
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	_, _, err := NewLoader().WithMaxSize(1000).Download(context.Background(), ts.URL)
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestLoader_Download_InvalidContentType(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<html>not an image</html>"))
	}))
	defer ts.Close()

	_, _, err := NewLoader().Download(context.Background(), ts.URL)
	assert.ErrorIs(t, err, ErrNotImage)
}

func TestLoader_Load_URL(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(pngBytes)
	}))
	defer ts.Close()

	got, err := NewLoader().Load(context.Background(), ts.URL+"/selfie.png")
	require.NoError(t, err)
	assert.Equal(t, DataURL("image/png", pngBytes), got)
}

func TestLoader_Load_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "selfie.png")
	require.NoError(t, os.WriteFile(path, pngBytes, 0o644))

	got, err := NewLoader().Load(context.Background(), path)
	require.NoError(t, err)

	mimeType, data, err := ParseDataURL(got)
	require.NoError(t, err)
	assert.Equal(t, "image/png", mimeType)
	assert.Equal(t, pngBytes, data)
}

func TestLoader_Load_FileErrors(t *testing.T) {
	dir := t.TempDir()
	textPath := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(textPath, []byte("hello"), 0o644))
	pngPath := filepath.Join(dir, "selfie.png")
	require.NoError(t, os.WriteFile(pngPath, pngBytes, 0o644))

	_, err := NewLoader().Load(context.Background(), filepath.Join(dir, "missing.jpg"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = NewLoader().Load(context.Background(), textPath)
	assert.ErrorIs(t, err, ErrNotImage)

	_, err = NewLoader().WithMaxSize(10).Load(context.Background(), pngPath)
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestLoader_Load_DataURLPassthrough(t *testing.T) {
	in := DataURL("image/webp", []byte("RIFF"))

	got, err := NewLoader().Load(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, in, got)

	_, err = NewLoader().Load(context.Background(), DataURL("text/plain", []byte("x")))
	assert.ErrorIs(t, err, ErrNotImage)

	_, err = NewLoader().Load(context.Background(), "data:image/png,raw")
	assert.Error(t, err)
}

func TestParseDataURL(t *testing.T) {
	mimeType, data, err := ParseDataURL("data:image/png;base64,AAEC")
	require.NoError(t, err)
	assert.Equal(t, "image/png", mimeType)
	assert.Equal(t, []byte{0, 1, 2}, data)

	mimeType, _, err = ParseDataURL("data:;base64,AAEC")
	require.NoError(t, err)
	assert.Equal(t, "text/plain", mimeType)

	for _, bad := range []string{
		"https://example.com/a.png",
		"data:image/png;base64",
		"data:image/png,AAEC",
		"data:image/png;base64,***",
	} {
		_, _, err := ParseDataURL(bad)
		assert.Error(t, err, bad)
	}
}
