package render

// thumb locates the scrollbar thumb for content rows shown through a window
// of viewport rows starting at offset. When everything fits, the thumb
// fills the track.
func thumb(content, viewport, offset int) (top, height int) {
	if viewport <= 0 {
		return 0, 0
	}
	if content <= viewport {
		return 0, viewport
	}
	maxOffset := content - viewport
	offset = clamp(offset, 0, maxOffset)

	// thumb height ~= viewport^2 / content
	height = clamp(int(float64(viewport)*float64(viewport)/float64(content)), 1, viewport)
	maxTop := viewport - height
	if maxTop > 0 {
		top = int(float64(offset) / float64(maxOffset) * float64(maxTop))
	}
	return clamp(top, 0, maxTop), height
}

func clamp(x, low, high int) int {
	switch {
	case x < low:
		return low
	case x > high:
		return high
	default:
		return x
	}
}
