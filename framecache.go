package strip

import (
	"time"

	"github.com/hajimehoshi/ebiten/v2"
)

// Frame is the most recent decoded output of one capture stream.
type Frame struct {
	StreamIndex   int
	Image         *ebiten.Image
	Width, Height int
	// ReceivedAt records arrival time for diagnostics.
	ReceivedAt time.Time
}

// FrameCache holds the latest frame per stream index. Newest always wins:
// a late frame for an index simply replaces whatever is stored, even if a
// start/stop cycle happened in between, because display only ever shows
// the best current image. The cache is not safe for concurrent use; all
// access happens on the reader's update tick.
type FrameCache struct {
	frames   map[int]*Frame
	onChange func(index int)
}

// NewFrameCache returns an empty cache.
func NewFrameCache() *FrameCache {
	return &FrameCache{frames: make(map[int]*Frame)}
}

// SetChangeFunc registers a callback fired after every Put. The reader
// uses it to request a repaint, but only when the changed stream is
// currently visible — frames arriving for background streams are stored
// without triggering paints.
func (c *FrameCache) SetChangeFunc(fn func(index int)) {
	c.onChange = fn
}

// Put stores frame as the latest for its stream index, overwriting any
// previous frame.
func (c *FrameCache) Put(index int, frame *Frame) {
	if frame == nil {
		return
	}
	if prev := c.frames[index]; prev != nil && prev.Image != nil && prev.Image != frame.Image {
		prev.Image.Deallocate()
	}
	c.frames[index] = frame
	if c.onChange != nil {
		c.onChange(index)
	}
}

// Get returns the latest frame for the stream index, or false if none is
// cached.
func (c *FrameCache) Get(index int) (*Frame, bool) {
	f, ok := c.frames[index]
	return f, ok
}

// Evict releases the cached frame for the stream index. Subsequent Gets
// return false until a new frame arrives.
func (c *FrameCache) Evict(index int) {
	if f, ok := c.frames[index]; ok {
		if f.Image != nil {
			f.Image.Deallocate()
		}
		delete(c.frames, index)
	}
}

// Len returns the number of cached frames.
func (c *FrameCache) Len() int {
	return len(c.frames)
}

// Clear evicts every cached frame. Called when the owning reader closes.
func (c *FrameCache) Clear() {
	for index := range c.frames {
		c.Evict(index)
	}
}
