// Package photo turns the user's photo into the inline data URL the
// analysis request carries.
package photo

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultTimeout is the default timeout for photo downloads
	DefaultTimeout = 30 * time.Second
	// DefaultMaxSize is the default maximum photo size (10MB)
	DefaultMaxSize = 10 * 1024 * 1024
)

var (
	ErrNotImage = errors.New("not an image")
	ErrTooLarge = errors.New("image too large")
)

// Loader reads photos from disk or the network with configurable limits.
type Loader struct {
	client  *resty.Client
	maxSize int64
}

// NewLoader creates a Loader with default settings.
func NewLoader() *Loader {
	return &Loader{
		client:  resty.New().SetDebug(false).SetTimeout(DefaultTimeout),
		maxSize: DefaultMaxSize,
	}
}

// WithTimeout sets a custom timeout for downloads.
func (l *Loader) WithTimeout(timeout time.Duration) *Loader {
	l.client.SetTimeout(timeout)
	return l
}

// WithMaxSize sets a custom maximum photo size.
func (l *Loader) WithMaxSize(maxSize int64) *Loader {
	if maxSize > 0 {
		l.maxSize = maxSize
	}
	return l
}

// Load returns source as a data URL. source is a local path, an http(s)
// URL, or a data:image URL which is validated and returned as is.
func (l *Loader) Load(ctx context.Context, source string) (string, error) {
	switch {
	case strings.HasPrefix(source, "data:"):
		mimeType, data, err := ParseDataURL(source)
		if err != nil {
			return "", err
		}
		if !isImage(mimeType) {
			return "", fmt.Errorf("%w: data URL has type %s", ErrNotImage, mimeType)
		}
		if int64(len(data)) > l.maxSize {
			return "", fmt.Errorf("%w: %d bytes exceeds limit of %d bytes", ErrTooLarge, len(data), l.maxSize)
		}
		return source, nil

	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		data, mimeType, err := l.Download(ctx, source)
		if err != nil {
			return "", err
		}
		return DataURL(mimeType, data), nil

	default:
		data, mimeType, err := l.ReadFile(source)
		if err != nil {
			return "", err
		}
		return DataURL(mimeType, data), nil
	}
}

// Download fetches a photo and returns its bytes and MIME type.
// It respects context cancellation and enforces the size limit.
func (l *Loader) Download(ctx context.Context, url string) ([]byte, string, error) {
	log.Info().Str("url", url).Msg("downloading photo")

	res, err := l.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(url)
	if err != nil {
		return nil, "", fmt.Errorf("failed to download photo: %w", err)
	}
	body := res.RawBody()
	defer body.Close()

	if res.StatusCode() != http.StatusOK {
		return nil, "", fmt.Errorf("download failed: status %d", res.StatusCode())
	}

	contentType := res.Header().Get("Content-Type")
	if contentType != "" {
		mediaType, _, err := mime.ParseMediaType(contentType)
		if err != nil || !isImage(mediaType) {
			return nil, "", fmt.Errorf("%w: expected image/*, got %s", ErrNotImage, contentType)
		}
		contentType = mediaType
	}

	if res.RawResponse.ContentLength > l.maxSize {
		return nil, "", fmt.Errorf("%w: %d bytes exceeds limit of %d bytes", ErrTooLarge, res.RawResponse.ContentLength, l.maxSize)
	}

	data, err := l.readLimited(body)
	if err != nil {
		return nil, "", err
	}

	if contentType == "" {
		contentType, err = sniff(data)
		if err != nil {
			return nil, "", err
		}
	}
	return data, contentType, nil
}

// ReadFile reads a photo from disk and sniffs its MIME type.
func (l *Loader) ReadFile(path string) ([]byte, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open photo: %w", err)
	}
	defer f.Close()

	if info, err := f.Stat(); err == nil && info.Size() > l.maxSize {
		return nil, "", fmt.Errorf("%w: %d bytes exceeds limit of %d bytes", ErrTooLarge, info.Size(), l.maxSize)
	}

	data, err := l.readLimited(f)
	if err != nil {
		return nil, "", err
	}
	mimeType, err := sniff(data)
	if err != nil {
		return nil, "", err
	}
	return data, mimeType, nil
}

func (l *Loader) readLimited(r io.Reader) ([]byte, error) {
	// Content-Length and Stat can lie, the limit reader can't
	data, err := io.ReadAll(io.LimitReader(r, l.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read photo data: %w", err)
	}
	if int64(len(data)) > l.maxSize {
		return nil, fmt.Errorf("%w: exceeds limit of %d bytes", ErrTooLarge, l.maxSize)
	}
	return data, nil
}

func sniff(data []byte) (string, error) {
	mediaType, _, _ := mime.ParseMediaType(http.DetectContentType(data))
	if !isImage(mediaType) {
		return "", fmt.Errorf("%w: detected %s", ErrNotImage, mediaType)
	}
	return mediaType, nil
}

func isImage(mediaType string) bool {
	return strings.HasPrefix(mediaType, "image/")
}

// DataURL encodes data as a base64 data URL.
func DataURL(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// ParseDataURL decodes a base64 data URL into its MIME type and bytes.
func ParseDataURL(s string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return "", nil, errors.New("not a data URL")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, errors.New("data URL has no payload separator")
	}
	mimeType, ok := strings.CutSuffix(meta, ";base64")
	if !ok {
		return "", nil, errors.New("data URL is not base64 encoded")
	}
	if mimeType == "" {
		mimeType = "text/plain"
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("failed to decode data URL: %w", err)
	}
	return mimeType, data, nil
}
