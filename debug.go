package strip

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
)

// paintDebugOverlay draws per-stream lifecycle state and per-panel labels
// on top of the scene. Purely cosmetic; enabled via SetDebugOverlay.
func (r *Reader) paintDebugOverlay(screen *ebiten.Image) {
	var b strings.Builder
	fmt.Fprintf(&b, "window %.0f..%.0f  vw %.0f  paints %d\n",
		r.visRange.Top, r.visRange.Bottom, r.viewportWidth, r.paintCount)
	fmt.Fprintf(&b, "visible panels: %d  cached frames: %d\n",
		len(r.visibleIDs), r.frames.Len())

	diags := r.coord.Diagnostics()
	sort.Slice(diags, func(i, j int) bool { return diags[i].Index < diags[j].Index })
	for _, d := range diags {
		fmt.Fprintf(&b, "stream %d: %s  frames %d", d.Index, d.State, d.FramesReceived)
		if d.StartedNoFrame {
			b.WriteString("  NO FRAMES SINCE START")
		}
		if d.SentBeforeReady > 0 {
			fmt.Fprintf(&b, "  pre-ready sends %d", d.SentBeforeReady)
		}
		b.WriteByte('\n')
	}
	if len(r.skipped) > 0 {
		fmt.Fprintf(&b, "skipped (no frame): %s\n", strings.Join(r.skipped, ", "))
	}
	ebitenutil.DebugPrint(screen, b.String())

	// Per-panel labels at each visible panel's on-screen origin.
	for i := range r.scene.Panels {
		p := &r.scene.Panels[i]
		if !r.visibleIDs[p.ID] {
			continue
		}
		x := int(p.X * r.scale)
		y := int((p.Y - r.visRange.Top) * r.scale)
		label := p.ID
		if p.Source.Type == SourceStream {
			label = fmt.Sprintf("%s [stream %d]", p.ID, p.Source.Stream)
		}
		ebitenutil.DebugPrintAt(screen, label, x, y)
	}
}
