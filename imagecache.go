package strip

import (
	"bytes"
	"fmt"
	"image"
	"log"
	"os"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"
	"golang.org/x/sync/singleflight"
)

// FetchFunc loads the raw bytes behind a static image URI. The default
// reads from the local filesystem; pages serving assets elsewhere supply
// their own.
type FetchFunc func(uri string) ([]byte, error)

// ImageCache holds decoded static panel images keyed by URI. Loads are
// deduplicated per URI, so a scene referencing one image from many panels
// fetches it once. Lookup is non-blocking: the painter asks with Get and
// simply skips panels whose image has not landed yet.
type ImageCache struct {
	mu     sync.Mutex
	images map[string]*ebiten.Image
	group  singleflight.Group
	fetch  FetchFunc
	onLoad func(uri string)
}

// NewImageCache returns a cache backed by the given fetcher, or
// os.ReadFile when fetch is nil.
func NewImageCache(fetch FetchFunc) *ImageCache {
	if fetch == nil {
		fetch = os.ReadFile
	}
	return &ImageCache{
		images: make(map[string]*ebiten.Image),
		fetch:  fetch,
	}
}

// SetLoadFunc registers a callback fired after each successful load, from
// the loading goroutine. The reader uses it to request a repaint once a
// panel's image becomes paintable.
func (c *ImageCache) SetLoadFunc(fn func(uri string)) {
	c.mu.Lock()
	c.onLoad = fn
	c.mu.Unlock()
}

// Get returns the decoded image for a URI if it has been loaded.
func (c *ImageCache) Get(uri string) (*ebiten.Image, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	img, ok := c.images[uri]
	return img, ok
}

// Load fetches and decodes a URI, blocking until done. Concurrent loads of
// the same URI collapse into one fetch.
func (c *ImageCache) Load(uri string) error {
	_, err, _ := c.group.Do(uri, func() (any, error) {
		c.mu.Lock()
		_, done := c.images[uri]
		c.mu.Unlock()
		if done {
			return nil, nil
		}
		raw, err := c.fetch(uri)
		if err != nil {
			return nil, fmt.Errorf("strip: fetching image %q: %w", uri, err)
		}
		decoded, _, err := image.Decode(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("strip: decoding image %q: %w", uri, err)
		}
		img := ebiten.NewImageFromImage(decoded)
		c.mu.Lock()
		c.images[uri] = img
		onLoad := c.onLoad
		c.mu.Unlock()
		if onLoad != nil {
			onLoad(uri)
		}
		return nil, nil
	})
	return err
}

// Prefetch starts background loads for the given URIs. Failures are
// logged; the painter keeps skipping the panel until a later load
// succeeds.
func (c *ImageCache) Prefetch(uris []string) {
	for _, uri := range uris {
		go func(uri string) {
			if err := c.Load(uri); err != nil {
				log.Print(err)
			}
		}(uri)
	}
}

// Clear drops every cached image.
func (c *ImageCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for uri, img := range c.images {
		img.Deallocate()
		delete(c.images, uri)
	}
}
