package prober

import (
	"context"
	"image"
	_ "image/gif"  // Keep for probing gifs
	_ "image/jpeg" // Keep for probing jpegs
	_ "image/png"  // Keep for probing pngs
	"log"
	"net/http"
	"sync"
	"time"

	_ "golang.org/x/image/webp" // Keep for probing webps
)

const probeTimeout = 10 * time.Second

// Resolution holds the pixel dimensions of a probed image.
type Resolution struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Unknown is returned whenever a probe fails. Callers fall back to a default
// output size and show a soft warning instead of an error.
var Unknown = Resolution{}

// Known reports whether the resolution was actually detected.
func (r Resolution) Known() bool {
	return r.Width > 0 && r.Height > 0
}

// Prober fetches remote images and reads just enough bytes to learn their
// dimensions. Successful lookups are cached by URL for the lifetime of the
// prober. The cache is a display optimization, never invalidated; stale
// entries are acceptable.
type Prober struct {
	Client *http.Client

	mu    sync.Mutex
	cache map[string]Resolution
}

// New creates a Prober with the probe timeout applied to its client.
func New() *Prober {
	return &Prober{
		Client: &http.Client{Timeout: probeTimeout},
		cache:  make(map[string]Resolution),
	}
}

// Probe returns the dimensions of the image at url, or Unknown on any
// failure (bad URL, non-image content, timeout, decode error). It never
// returns an error.
func (p *Prober) Probe(ctx context.Context, url string) Resolution {
	p.mu.Lock()
	if res, ok := p.cache[url]; ok {
		p.mu.Unlock()
		return res
	}
	p.mu.Unlock()

	res := p.fetch(ctx, url)
	if res.Known() {
		p.mu.Lock()
		p.cache[url] = res
		p.mu.Unlock()
	}
	return res
}

func (p *Prober) fetch(ctx context.Context, url string) Resolution {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		log.Printf("Probe failed for %s: %v", url, err)
		return Unknown
	}

	resp, err := p.Client.Do(req)
	if err != nil {
		log.Printf("Probe failed for %s: %v", url, err)
		return Unknown
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("Probe failed for %s: status %d", url, resp.StatusCode)
		return Unknown
	}

	// DecodeConfig reads only the header, not the full image.
	cfg, format, err := image.DecodeConfig(resp.Body)
	if err != nil {
		log.Printf("Probe failed for %s: %v", url, err)
		return Unknown
	}

	log.Printf("Probed %s: %s %dx%d", url, format, cfg.Width, cfg.Height)
	return Resolution{Width: cfg.Width, Height: cfg.Height}
}
