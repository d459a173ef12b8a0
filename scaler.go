package studio

// ScaleMode defines how scaling should handle aspect ratio mismatches.
type ScaleMode int

const (
	// ScaleModeStretch scales to exactly match target dimensions (may distort).
	ScaleModeStretch ScaleMode = iota
	// ScaleModeFit scales to fit within target dimensions, preserving aspect ratio (may letterbox).
	ScaleModeFit
	// ScaleModeFill scales to fill target dimensions, preserving aspect ratio (may crop).
	ScaleModeFill
)

func (m ScaleMode) String() string {
	switch m {
	case ScaleModeStretch:
		return "stretch"
	case ScaleModeFit:
		return "fit"
	case ScaleModeFill:
		return "fill"
	default:
		return "unknown"
	}
}

// DrawScaled scales src into rect of dst using bilinear interpolation.
// Parts of rect outside dst are clipped. It returns false if nothing was drawn.
func DrawScaled(dst, src *VideoFrame, rect Rect, mode ScaleMode) bool {
	if src == nil || dst == nil || src.Width <= 0 || src.Height <= 0 || rect.Empty() {
		return false
	}

	// Calculate source region and destination rectangle based on scale mode
	srcX, srcY, srcW, srcH := sourceRegion(src.Width, src.Height, rect.W, rect.H, mode)
	if mode == ScaleModeFit {
		w, h := CalculateScaledSize(src.Width, src.Height, rect.W, rect.H, ScaleModeFit)
		rect = Rect{X: rect.X + (rect.W-w)/2, Y: rect.Y + (rect.H-h)/2, W: w, H: h}
	}

	bounds := Rect{W: dst.Width, H: dst.Height}
	if rect.Intersect(bounds).Empty() {
		return false
	}

	// Y plane
	scalePlaneInto(
		src.Data[0], src.Stride[0], srcX, srcY, srcW, srcH,
		dst.Data[0], dst.Stride[0], bounds, rect)

	// U and V planes (half resolution)
	chromaSrcW, chromaSrcH := max(srcW/2, 1), max(srcH/2, 1)
	chromaBounds := Rect{W: dst.Width / 2, H: dst.Height / 2}
	chromaRect := Rect{
		X: floorHalf(rect.X),
		Y: floorHalf(rect.Y),
		W: floorHalf(rect.X+rect.W) - floorHalf(rect.X),
		H: floorHalf(rect.Y+rect.H) - floorHalf(rect.Y),
	}
	for p := 1; p <= 2; p++ {
		scalePlaneInto(
			src.Data[p], src.Stride[p], srcX/2, srcY/2, chromaSrcW, chromaSrcH,
			dst.Data[p], dst.Stride[p], chromaBounds, chromaRect)
	}
	return true
}

// FillRect paints rect of dst with a single color, clipped to dst.
func FillRect(dst *VideoFrame, rect Rect, y, u, v byte) {
	r := rect.Intersect(Rect{W: dst.Width, H: dst.Height})
	if r.Empty() {
		return
	}
	fillPlane(dst.Data[0], dst.Stride[0], r, y)

	cr := Rect{
		X: floorHalf(r.X),
		Y: floorHalf(r.Y),
		W: floorHalf(r.X+r.W+1) - floorHalf(r.X),
		H: floorHalf(r.Y+r.H+1) - floorHalf(r.Y),
	}.Intersect(Rect{W: dst.Width / 2, H: dst.Height / 2})
	fillPlane(dst.Data[1], dst.Stride[1], cr, u)
	fillPlane(dst.Data[2], dst.Stride[2], cr, v)
}

func fillPlane(plane []byte, stride int, r Rect, val byte) {
	for row := r.Y; row < r.Y+r.H; row++ {
		line := plane[row*stride+r.X : row*stride+r.X+r.W]
		for i := range line {
			line[i] = val
		}
	}
}

// floorHalf halves v rounding towards negative infinity.
func floorHalf(v int) int {
	return v >> 1
}

// sourceRegion determines what region of the source to use based on scale mode.
func sourceRegion(srcW, srcH, dstW, dstH int, mode ScaleMode) (x, y, w, h int) {
	if mode != ScaleModeFill {
		return 0, 0, srcW, srcH
	}

	// Crop source to match target aspect ratio
	srcAspect := float64(srcW) / float64(srcH)
	dstAspect := float64(dstW) / float64(dstH)

	if srcAspect > dstAspect {
		// Source is wider, crop horizontally
		newW := int(float64(srcH)*dstAspect) &^ 1
		return ((srcW - newW) / 2) &^ 1, 0, newW, srcH
	} else if srcAspect < dstAspect {
		// Source is taller, crop vertically
		newH := int(float64(srcW)/dstAspect) &^ 1
		return 0, ((srcH - newH) / 2) &^ 1, srcW, newH
	}
	return 0, 0, srcW, srcH
}

// scalePlaneInto scales a source region of one plane onto rect of the
// destination plane, writing only pixels inside bounds.
func scalePlaneInto(src []byte, srcStride, srcX, srcY, srcW, srcH int,
	dst []byte, dstStride int, bounds, rect Rect) {

	if srcW <= 0 || srcH <= 0 || rect.Empty() {
		return
	}
	visible := rect.Intersect(bounds)
	if visible.Empty() {
		return
	}

	// Fixed-point scaling factors (16.16)
	xRatio := (srcW << 16) / rect.W
	yRatio := (srcH << 16) / rect.H

	for dy := visible.Y; dy < visible.Y+visible.H; dy++ {
		// Source Y coordinate in fixed-point
		srcYFP := (dy - rect.Y) * yRatio
		yWeight := srcYFP & 0xFFFF

		// Clamp to valid range
		y0 := srcYFP>>16 + srcY
		y1 := y0 + 1
		if y1 >= srcY+srcH {
			y1 = y0
		}
		row0 := src[y0*srcStride:]
		row1 := src[y1*srcStride:]
		out := dst[dy*dstStride:]

		for dx := visible.X; dx < visible.X+visible.W; dx++ {
			srcXFP := (dx - rect.X) * xRatio
			xWeight := srcXFP & 0xFFFF

			x0 := srcXFP>>16 + srcX
			x1 := x0 + 1
			if x1 >= srcX+srcW {
				x1 = x0
			}

			// Interpolate horizontally, then vertically
			top := (int(row0[x0])*(0x10000-xWeight) + int(row0[x1])*xWeight) >> 16
			bottom := (int(row1[x0])*(0x10000-xWeight) + int(row1[x1])*xWeight) >> 16
			out[dx] = byte((top*(0x10000-yWeight) + bottom*yWeight) >> 16)
		}
	}
}

// ScaleFrame scales a frame into a newly allocated frame of the given size.
// A frame that already has the target size is returned unchanged.
func ScaleFrame(frame *VideoFrame, dstWidth, dstHeight int, mode ScaleMode) *VideoFrame {
	if frame.Width == dstWidth && frame.Height == dstHeight {
		return frame
	}
	out := NewI420Frame(dstWidth, dstHeight)
	out.Fill(16, 128, 128)
	out.Timestamp = frame.Timestamp
	DrawScaled(out, frame, Rect{W: dstWidth, H: dstHeight}, mode)
	return out
}

// CalculateScaledSize returns the output dimensions when scaling with a given mode.
// This is useful for determining letterbox dimensions in ScaleModeFit.
func CalculateScaledSize(srcW, srcH, maxW, maxH int, mode ScaleMode) (w, h int) {
	if mode != ScaleModeFit || srcW <= 0 || srcH <= 0 {
		return maxW, maxH
	}

	srcAspect := float64(srcW) / float64(srcH)
	dstAspect := float64(maxW) / float64(maxH)

	if srcAspect > dstAspect {
		// Source is wider, fit to width
		w = maxW
		h = int(float64(maxW) / srcAspect)
	} else {
		// Source is taller, fit to height
		h = maxH
		w = int(float64(maxH) * srcAspect)
	}
	// Ensure even dimensions for YUV
	w = min((w+1)&^1, maxW)
	h = min((h+1)&^1, maxH)
	return w, h
}
