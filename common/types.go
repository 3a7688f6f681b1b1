// package common contains common types that are used throughout chromascope. They are not interface-wrapped structs, just plain structs that express
// commonly used data-types.
package common

// Rect is an integer rectangle expressed as an origin and a size, e.g. the window rectangle in desktop coordinates.
type Rect struct {
	X, Y          int32
	Width, Height int32
}

// NewRect builds a Rect from an origin and a size.
func NewRect(x, y, width, height int32) Rect {
	return Rect{X: x, Y: y, Width: width, Height: height}
}

// Right returns the exclusive right edge.
func (r Rect) Right() int32 {
	return r.X + r.Width
}

// Bottom returns the exclusive bottom edge.
func (r Rect) Bottom() int32 {
	return r.Y + r.Height
}

// Edges returns the rectangle as {left, top, right, bottom}, the layout used by shader parameters.
func (r Rect) Edges() [4]int32 {
	return [4]int32{r.X, r.Y, r.Right(), r.Bottom()}
}

// Empty reports whether the rectangle covers no pixels.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// TextureStagingData holds pixel data pending GPU upload.
// Captured desktop frames and still images are staged this way before they are written into the capture texture.
type TextureStagingData struct {
	// Pixels holds the raw texel bytes, row-major, BytesPerRow bytes per row.
	Pixels []byte
	// Width is the width of the texture in pixels.
	Width uint32
	// Height is the height of the texture in pixels.
	Height uint32
	// BytesPerRow is the row pitch of Pixels. Zero means tightly packed.
	BytesPerRow uint32
}
