package display

// Panel geometry for the reMarkable 2. The EPD coordinate system is the
// rotated landscape frame the controller scans in; callers address the panel
// in portrait coordinates and PushUpdate transforms between the two.
//
// The framebuffer the kernel driver exposes is wider and taller than the
// panel: each row carries control signals in its leading groups, and the
// first rows of each page carry the frame sync pattern. Phase data for eight
// EPD pixels packs into one 16-bit word stored every bufDepth bytes.
const (
	EPDWidth  = 1872
	EPDHeight = 1404

	epdSize = EPDWidth * EPDHeight

	bufWidth       = 260
	bufHeight      = 1408
	bufTotalFrames = 17
	bufDepth       = 4
	bufStride      = bufWidth * bufDepth
	bufFrame       = bufStride * bufHeight

	marginTop  = 3
	marginLeft = 26

	// bufActualDepth is the packing quantum: EPD pixels per packed word.
	bufActualDepth = 8
)

// UpdateRegion is an axis-aligned rectangle in EPD coordinates.
type UpdateRegion struct {
	Top    int
	Left   int
	Width  int
	Height int
}

// Empty reports whether the region covers no pixels.
func (r UpdateRegion) Empty() bool {
	return r.Width == 0 || r.Height == 0
}

// Contains reports whether the point lies inside the region, half-open on
// the right and bottom edges.
func (r UpdateRegion) Contains(x, y int) bool {
	return x >= r.Left && x < r.Left+r.Width && y >= r.Top && y < r.Top+r.Height
}

// Extend grows the region to the bounding union with other. An empty region
// is the identity: extending it yields other unchanged.
func (r *UpdateRegion) Extend(other UpdateRegion) {
	if other.Empty() {
		return
	}
	if r.Empty() {
		*r = other
		return
	}
	top := min(r.Top, other.Top)
	left := min(r.Left, other.Left)
	bottom := max(r.Top+r.Height, other.Top+other.Height)
	right := max(r.Left+r.Width, other.Left+other.Width)
	r.Top = top
	r.Left = left
	r.Width = right - left
	r.Height = bottom - top
}

// ExtendPoint grows the region to include the single pixel at (x, y).
func (r *UpdateRegion) ExtendPoint(x, y int) {
	r.Extend(UpdateRegion{Top: y, Left: x, Width: 1, Height: 1})
}

// Align returns the smallest region containing r whose left edge and width
// are multiples of quantum. quantum must be a power of two. Top and height
// are left untouched.
func (r UpdateRegion) Align(quantum int) UpdateRegion {
	mask := quantum - 1
	if r.Width&mask == 0 && r.Left&mask == 0 {
		return r
	}
	result := r
	result.Left = r.Left &^ mask
	padLeft := r.Left & mask
	result.Width = (padLeft + r.Width + mask) &^ mask
	return result
}

// transformRegion maps a rectangle in a width×height portrait canvas to the
// rotated and mirrored canvas scanned by the EPD controller: transpose, then
// flip both axes. Applying it twice with the canvas dimensions swapped is
// the identity.
func transformRegion(r UpdateRegion, canvasWidth, canvasHeight int) UpdateRegion {
	return UpdateRegion{
		Top:    canvasWidth - r.Left - r.Width,
		Left:   canvasHeight - r.Top - r.Height,
		Width:  r.Height,
		Height: r.Width,
	}
}
