package strip

import "fmt"

// Vec2 is a 2D vector used for positions, offsets, and sizes throughout
// the API.
type Vec2 struct {
	X, Y float64
}

// Rect is an axis-aligned rectangle in document space. The coordinate
// system has its origin at the top-left, with Y increasing downward.
type Rect struct {
	X, Y, Width, Height float64
}

// Area returns the rectangle's area. Negative dimensions yield 0.
func (r Rect) Area() float64 {
	if r.Width <= 0 || r.Height <= 0 {
		return 0
	}
	return r.Width * r.Height
}

// Contains reports whether the point (x, y) lies inside the rectangle.
// Points on the edge are considered inside.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.X && x <= r.X+r.Width &&
		y >= r.Y && y <= r.Y+r.Height
}

// Intersects reports whether r and other overlap.
// Adjacent rectangles (sharing only an edge) are considered intersecting.
func (r Rect) Intersects(other Rect) bool {
	return r.X <= other.X+other.Width &&
		r.X+r.Width >= other.X &&
		r.Y <= other.Y+other.Height &&
		r.Y+r.Height >= other.Y
}

// Intersection returns the overlapping region of r and other. If the
// rectangles do not overlap, the result has zero (or negative-clamped)
// size and Area() == 0.
func (r Rect) Intersection(other Rect) Rect {
	x1 := max(r.X, other.X)
	y1 := max(r.Y, other.Y)
	x2 := min(r.X+r.Width, other.X+other.Width)
	y2 := min(r.Y+r.Height, other.Y+other.Height)
	if x2 < x1 {
		x2 = x1
	}
	if y2 < y1 {
		y2 = y1
	}
	return Rect{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}
}

// VisibleRange is the document-space vertical extent currently on screen.
// Recomputed by the page chassis on every scroll or resize event.
type VisibleRange struct {
	Top, Bottom float64
}

// Height returns the vertical extent of the range. Negative heights
// (Bottom above Top) clamp to 0.
func (v VisibleRange) Height() float64 {
	if v.Bottom <= v.Top {
		return 0
	}
	return v.Bottom - v.Top
}

// SourceType distinguishes what a panel draws.
type SourceType uint8

const (
	SourceNone   SourceType = iota // panel renders nothing
	SourceImage                    // static image looked up by URI
	SourceStream                   // live capture stream by index
)

// Source is a panel's image source: nothing, a static image, or a live
// capture stream. Multiple panels may reference the same stream index;
// they share one capture feed rendered into several regions.
type Source struct {
	Type   SourceType
	URI    string // SourceImage only
	Stream int    // SourceStream only; non-negative
}

// ImageSource returns a static image source for the given URI.
func ImageSource(uri string) Source {
	return Source{Type: SourceImage, URI: uri}
}

// StreamSource returns a live capture source for the given stream index.
func StreamSource(index int) Source {
	return Source{Type: SourceStream, Stream: index}
}

// ClipMask describes per-edge inset clipping applied to a panel's source
// image, in source pixels.
type ClipMask struct {
	Top, Right, Bottom, Left float64
}

// Panel is one rectangular region of the scrollable layout.
type Panel struct {
	// ID uniquely identifies the panel within its Scene.
	ID string
	// X, Y, Width, Height position the panel in document space.
	X, Y, Width, Height float64
	// Rotation is in degrees, clockwise, about the panel center.
	Rotation float64
	// Opacity in [0, 1]. The zero value is treated as 1 by NormalizeOpacity
	// during Scene validation so literal Panel structs stay short.
	Opacity float64
	// ZOrder orders painting; higher draws on top. Ties break by ascending Y.
	ZOrder int
	// Clip, when non-nil, insets the panel's source image.
	Clip *ClipMask
	// Source selects what the panel draws.
	Source Source
}

// Bounds returns the panel's unrotated document-space rectangle.
// Visibility is computed against this axis-aligned shape; rotation is a
// paint-time effect only.
func (p Panel) Bounds() Rect {
	return Rect{X: p.X, Y: p.Y, Width: p.Width, Height: p.Height}
}

// Scene is the declarative layout of a reading session: a viewport width
// and an ordered list of panels. A Scene is immutable once installed on a
// Reader; replace it wholesale with Reader.SetScene.
type Scene struct {
	ViewportWidth float64
	Panels        []Panel
}

// Validate checks scene invariants: positive viewport width, positive
// panel sizes, unique panel IDs, in-range opacity, and non-negative stream
// indices. Zero-valued opacities are normalized to 1 so that struct
// literals omitting Opacity behave as fully opaque.
func (s *Scene) Validate() error {
	if s.ViewportWidth <= 0 {
		return fmt.Errorf("strip: scene viewport width must be positive, got %v", s.ViewportWidth)
	}
	seen := make(map[string]bool, len(s.Panels))
	for i := range s.Panels {
		p := &s.Panels[i]
		if p.ID == "" {
			return fmt.Errorf("strip: panel %d has an empty ID", i)
		}
		if seen[p.ID] {
			return fmt.Errorf("strip: duplicate panel ID %q", p.ID)
		}
		seen[p.ID] = true
		if p.Width <= 0 || p.Height <= 0 {
			return fmt.Errorf("strip: panel %q must have positive size, got %vx%v", p.ID, p.Width, p.Height)
		}
		if p.Opacity == 0 {
			p.Opacity = 1
		}
		if p.Opacity < 0 || p.Opacity > 1 {
			return fmt.Errorf("strip: panel %q opacity %v out of range [0, 1]", p.ID, p.Opacity)
		}
		if p.Source.Type == SourceStream && p.Source.Stream < 0 {
			return fmt.Errorf("strip: panel %q references negative stream index %d", p.ID, p.Source.Stream)
		}
		if p.Source.Type == SourceImage && p.Source.URI == "" {
			return fmt.Errorf("strip: panel %q has an image source with no URI", p.ID)
		}
	}
	return nil
}

// StreamsFor maps a set of visible panel IDs to the set of stream indices
// those panels reference. Panels with non-stream sources contribute
// nothing.
func (s *Scene) StreamsFor(visibleIDs map[string]bool) map[int]bool {
	streams := make(map[int]bool)
	for i := range s.Panels {
		p := &s.Panels[i]
		if p.Source.Type == SourceStream && visibleIDs[p.ID] {
			streams[p.Source.Stream] = true
		}
	}
	return streams
}

// ImageURIs returns the distinct static image URIs referenced by the
// scene, in first-appearance order. Used to prefetch the image cache.
func (s *Scene) ImageURIs() []string {
	var uris []string
	seen := make(map[string]bool)
	for i := range s.Panels {
		p := &s.Panels[i]
		if p.Source.Type == SourceImage && !seen[p.Source.URI] {
			seen[p.Source.URI] = true
			uris = append(uris, p.Source.URI)
		}
	}
	return uris
}
