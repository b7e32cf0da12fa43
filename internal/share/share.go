// Package share produces the artifacts used to hand a site URL to another device:
// QR codes (PNG for the web console, block characters for the terminal) and a
// system-browser launcher.
package share

import (
	"fmt"
	"io"
	"strconv"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/pkg/browser"
	qrcode "github.com/skip2/go-qrcode"
)

// Encoder renders QR codes and caches PNGs by URL and size.
type Encoder struct {
	cache *ristretto.Cache[string, []byte]
}

// NewEncoder creates an Encoder with a small bounded PNG cache.
func NewEncoder() (*Encoder, error) {
	cache, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: 1e4,
		MaxCost:     8 << 20,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("qr cache: %w", err)
	}
	return &Encoder{cache: cache}, nil
}

// PNG returns a size×size PNG encoding url.
func (e *Encoder) PNG(url string, size int) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("empty url")
	}
	key := strconv.Itoa(size) + "|" + url
	if png, ok := e.cache.Get(key); ok {
		return png, nil
	}
	png, err := qrcode.Encode(url, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	e.cache.Set(key, png, int64(len(png)))
	return png, nil
}

// Close releases the cache's background goroutines.
func (e *Encoder) Close() {
	e.cache.Close()
}

// Terminal renders url as a QR code made of half-block characters.
func Terminal(url string) (string, error) {
	q, err := qrcode.New(url, qrcode.Medium)
	if err != nil {
		return "", fmt.Errorf("encode qr: %w", err)
	}
	return q.ToSmallString(false), nil
}

// OpenBrowser asks the OS to open url. Fire-and-forget: browser output is discarded.
func OpenBrowser(url string) error {
	browser.Stdout = io.Discard
	browser.Stderr = io.Discard
	return browser.OpenURL(url)
}
