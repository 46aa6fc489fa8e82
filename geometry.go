package strip

// VisibilityRatio returns the fraction of the panel's area that lies
// inside the visible window: the axis-aligned intersection between the
// panel's bounds and the rectangle spanning the full viewport width over
// visibleRange. Returns 0 for degenerate panels or windows.
func VisibilityRatio(p Panel, visibleRange VisibleRange, viewportWidth float64) float64 {
	area := p.Bounds().Area()
	if area == 0 || viewportWidth <= 0 || visibleRange.Height() == 0 {
		return 0
	}
	window := Rect{
		X:      0,
		Y:      visibleRange.Top,
		Width:  viewportWidth,
		Height: visibleRange.Height(),
	}
	return p.Bounds().Intersection(window).Area() / area
}

// VisiblePanels computes the set of panel IDs considered visible for the
// given window, applying asymmetric hysteresis against the previous
// visible set:
//
//   - a panel not in prior becomes visible once its ratio reaches enterAt;
//   - a panel in prior stays visible until its ratio drops below exitBelow.
//
// The asymmetry keeps a panel's edge from toggling it on and off while the
// reader scrolls slowly across a single threshold. The function is pure:
// callers own prior and the returned set, which becomes prior for the next
// call.
func VisiblePanels(panels []Panel, visibleRange VisibleRange, viewportWidth float64, prior map[string]bool, enterAt, exitBelow float64) map[string]bool {
	visible := make(map[string]bool, len(prior))
	for i := range panels {
		p := &panels[i]
		ratio := VisibilityRatio(*p, visibleRange, viewportWidth)
		if prior[p.ID] {
			if ratio >= exitBelow {
				visible[p.ID] = true
			}
		} else if ratio >= enterAt {
			visible[p.ID] = true
		}
	}
	return visible
}

// sameIDSet reports whether two visible-ID sets contain the same members.
func sameIDSet(a, b map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for id := range a {
		if !b[id] {
			return false
		}
	}
	return true
}
