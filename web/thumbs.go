package web

import (
	"bytes"
	"image"
	"sync"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
)

const thumbSize = 256

// thumbCache holds generated thumbnails keyed by source URL. Like the
// resolution cache it is a display optimization with no invalidation.
type thumbCache struct {
	mu sync.Mutex
	m  map[string][]byte
}

func newThumbCache() *thumbCache {
	return &thumbCache{m: make(map[string][]byte)}
}

func (c *thumbCache) get(url string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.m[url]
	return data, ok
}

func (c *thumbCache) put(url string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[url] = data
}

// makeThumb returns a webp thumbnail fitting thumbSize on the longer edge.
func makeThumb(data []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	thumb := imaging.Fit(img, thumbSize, thumbSize, imaging.Lanczos)
	var buf bytes.Buffer
	if err := webp.Encode(&buf, thumb, &webp.Options{Quality: 80}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
