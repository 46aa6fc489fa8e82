package strip

import (
	"image"
	"math"
	"sort"

	"github.com/hajimehoshi/ebiten/v2"
)

// paintOrder returns panel indices in paint order: ascending ZOrder, ties
// broken by ascending document Y, then by declaration order for stability.
func paintOrder(panels []Panel) []int {
	order := make([]int, len(panels))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		pa, pb := &panels[order[a]], &panels[order[b]]
		if pa.ZOrder != pb.ZOrder {
			return pa.ZOrder < pb.ZOrder
		}
		return pa.Y < pb.Y
	})
	return order
}

// paint draws every panel overlapping the visible window, in paint order.
// Panels are culled against the window the same way a camera culls nodes
// against its visible bounds; the order itself is computed over the full
// scene so z ties resolve identically regardless of scroll position.
func (r *Reader) paint(screen *ebiten.Image) {
	screen.Clear()
	r.skipped = r.skipped[:0]
	window := Rect{
		X:      0,
		Y:      r.visRange.Top,
		Width:  r.viewportWidth,
		Height: r.visRange.Height(),
	}
	for _, i := range paintOrder(r.scene.Panels) {
		p := &r.scene.Panels[i]
		if !p.Bounds().Intersects(window) {
			continue
		}
		src := r.sourceImage(p)
		if src == nil {
			continue
		}
		r.drawPanel(screen, p, src)
	}
}

// sourceImage resolves a panel's source to a drawable image, or nil when
// there is nothing to draw. A live panel with no cached frame yet is
// recorded as skipped so diagnostics can surface it.
func (r *Reader) sourceImage(p *Panel) *ebiten.Image {
	switch p.Source.Type {
	case SourceImage:
		img, ok := r.images.Get(p.Source.URI)
		if !ok {
			return nil
		}
		return img
	case SourceStream:
		f, ok := r.frames.Get(p.Source.Stream)
		if !ok || f.Image == nil {
			r.skipped = append(r.skipped, p.ID)
			return nil
		}
		return f.Image
	default:
		return nil
	}
}

// drawPanel paints one panel: clip insets applied on the source, scaled to
// the panel's size, rotated about the panel center, placed relative to the
// scroll position, and faded by opacity.
func (r *Reader) drawPanel(screen *ebiten.Image, p *Panel, src *ebiten.Image) {
	if c := p.Clip; c != nil {
		b := src.Bounds()
		clipped := image.Rect(
			b.Min.X+int(c.Left),
			b.Min.Y+int(c.Top),
			b.Max.X-int(c.Right),
			b.Max.Y-int(c.Bottom),
		)
		if clipped.Empty() {
			return
		}
		src = src.SubImage(clipped).(*ebiten.Image)
	}
	b := src.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return
	}

	op := &ebiten.DrawImageOptions{}
	op.Filter = ebiten.FilterLinear
	// SubImage draws keep their parent-image offset; cancel it first.
	op.GeoM.Translate(-float64(b.Min.X), -float64(b.Min.Y))
	op.GeoM.Scale(p.Width/float64(b.Dx()), p.Height/float64(b.Dy()))
	op.GeoM.Translate(-p.Width/2, -p.Height/2)
	op.GeoM.Rotate(p.Rotation * math.Pi / 180)
	op.GeoM.Translate(p.X+p.Width/2, p.Y+p.Height/2-r.visRange.Top)
	op.GeoM.Scale(r.scale, r.scale)
	op.ColorScale.ScaleAlpha(float32(p.Opacity))
	screen.DrawImage(src, op)
}
