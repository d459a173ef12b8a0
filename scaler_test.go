package studio

import (
	"testing"
)

func TestScaleFrame_NoScaling(t *testing.T) {
	frame := createGradientFrame(640, 480)

	// Should return same frame when no scaling needed
	if out := ScaleFrame(frame, 640, 480, ScaleModeStretch); out != frame {
		t.Error("Expected same frame when no scaling needed")
	}
}

func TestScaleFrame_Downscale(t *testing.T) {
	srcW, srcH := 1280, 720
	dstW, dstH := 640, 360

	out := ScaleFrame(createGradientFrame(srcW, srcH), dstW, dstH, ScaleModeStretch)

	if out.Width != dstW || out.Height != dstH {
		t.Errorf("Expected %dx%d, got %dx%d", dstW, dstH, out.Width, out.Height)
	}
	if len(out.Data[0]) != dstW*dstH {
		t.Errorf("Y plane size mismatch: expected %d, got %d", dstW*dstH, len(out.Data[0]))
	}
	if len(out.Data[1]) != (dstW/2)*(dstH/2) {
		t.Errorf("U plane size mismatch")
	}

	// The horizontal gradient survives scaling
	if left, right := out.Data[0][0], out.Data[0][dstW-1]; left >= right {
		t.Errorf("gradient lost: left=%d right=%d", left, right)
	}
}

func TestScaleFrame_Upscale(t *testing.T) {
	out := ScaleFrame(createGradientFrame(320, 240), 640, 480, ScaleModeStretch)
	if out.Width != 640 || out.Height != 480 {
		t.Errorf("Expected 640x480, got %dx%d", out.Width, out.Height)
	}
}

func TestScaleFrame_Fit(t *testing.T) {
	// 16:9 into 4:3 letterboxes top and bottom
	src := createSolidFrame(1280, 720, 200)
	out := ScaleFrame(src, 640, 480, ScaleModeFit)

	if got := out.Data[0][0]; got != 16 {
		t.Errorf("letterbox luma = %d, want 16", got)
	}
	if got := out.Data[0][240*640+320]; got != 200 {
		t.Errorf("center luma = %d, want 200", got)
	}
}

func TestDrawScaled_Clipping(t *testing.T) {
	dst := NewI420Frame(100, 100)
	dst.Fill(16, 128, 128)
	src := createSolidFrame(50, 50, 200)

	// Half the rectangle lies outside the destination
	if !DrawScaled(dst, src, Rect{X: 80, Y: 0, W: 40, H: 40}, ScaleModeStretch) {
		t.Fatal("DrawScaled reported nothing drawn")
	}
	if got := dst.Data[0][10*100+90]; got != 200 {
		t.Errorf("inside pixel = %d, want 200", got)
	}
	if got := dst.Data[0][10*100+70]; got != 16 {
		t.Errorf("pixel left of rect = %d, want 16", got)
	}

	if DrawScaled(dst, src, Rect{X: 200, Y: 0, W: 40, H: 40}, ScaleModeStretch) {
		t.Error("fully clipped draw should report false")
	}
}

func TestFillRect(t *testing.T) {
	dst := NewI420Frame(8, 8)
	dst.Fill(0, 0, 0)
	FillRect(dst, Rect{X: 2, Y: 2, W: 4, H: 4}, 16, 128, 128)

	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			inside := x >= 2 && x < 6 && y >= 2 && y < 6
			got := dst.Data[0][y*8+x]
			if inside && got != 16 || !inside && got != 0 {
				t.Errorf("luma(%d,%d) = %d, inside=%v", x, y, got, inside)
			}
		}
	}
	if dst.Data[1][1*4+1] != 128 {
		t.Errorf("chroma inside rect not filled")
	}
	if dst.Data[1][0] != 0 {
		t.Errorf("chroma outside rect touched")
	}
}

func TestCalculateScaledSize(t *testing.T) {
	tests := []struct {
		name             string
		srcW, srcH       int
		maxW, maxH       int
		mode             ScaleMode
		expectW, expectH int
	}{
		{"16:9 to 4:3 fit", 1920, 1080, 640, 480, ScaleModeFit, 640, 360},
		{"4:3 to 16:9 fit", 640, 480, 1280, 720, ScaleModeFit, 960, 720},
		{"same aspect", 1280, 720, 640, 360, ScaleModeFit, 640, 360},
		{"fill mode", 1920, 1080, 640, 480, ScaleModeFill, 640, 480},
		{"stretch mode", 1920, 1080, 640, 480, ScaleModeStretch, 640, 480},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := CalculateScaledSize(tt.srcW, tt.srcH, tt.maxW, tt.maxH, tt.mode)
			if w != tt.expectW || h != tt.expectH {
				t.Errorf("Expected %dx%d, got %dx%d", tt.expectW, tt.expectH, w, h)
			}
		})
	}
}

func createGradientFrame(width, height int) *VideoFrame {
	frame := NewI420Frame(width, height)

	// Fill Y with horizontal gradient
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			frame.Data[0][y*width+x] = byte(x * 255 / width)
		}
	}

	// Fill U/V with neutral values
	for i := range frame.Data[1] {
		frame.Data[1][i] = 128
		frame.Data[2][i] = 128
	}
	return frame
}

func createSolidFrame(width, height int, luma byte) *VideoFrame {
	frame := NewI420Frame(width, height)
	frame.Fill(luma, 128, 128)
	return frame
}

func BenchmarkDrawScaled_720pToCell(b *testing.B) {
	src := createGradientFrame(1280, 720)
	dst := NewI420Frame(CanvasWidth, CanvasHeight)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		DrawScaled(dst, src, Rect{X: 266, Y: 0, W: 266, H: 200}, ScaleModeStretch)
	}
}
