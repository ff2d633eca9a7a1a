package compositor

// Frame is a paletted output image the engine composites into.
type Frame struct {
	Pix    []uint8
	W, H   int
	Stride int
}

// NewFrame allocates a zeroed frame with a tight stride.
func NewFrame(w, h int) *Frame {
	return &Frame{
		Pix:    make([]uint8, w*h),
		W:      w,
		H:      h,
		Stride: w,
	}
}
