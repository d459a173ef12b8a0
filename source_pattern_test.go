package studio

import (
	"context"
	"testing"
	"time"
)

func TestNewTestPatternSource_Defaults(t *testing.T) {
	source := NewTestPatternSource(TestPatternConfig{})

	cfg := source.Config()
	if cfg.Width != 640 {
		t.Errorf("Default width = %d, want 640", cfg.Width)
	}
	if cfg.Height != 480 {
		t.Errorf("Default height = %d, want 480", cfg.Height)
	}
	if cfg.FPS != 30 {
		t.Errorf("Default FPS = %d, want 30", cfg.FPS)
	}
	if cfg.Format != PixelFormatI420 {
		t.Errorf("Default format = %v, want I420", cfg.Format)
	}
	if cfg.SourceType != SourceTypeTestPattern {
		t.Errorf("SourceType = %v, want TestPattern", cfg.SourceType)
	}
}

func TestNewTestPatternSource_OddDimensions(t *testing.T) {
	source := NewTestPatternSource(TestPatternConfig{Width: 321, Height: 241})

	cfg := source.Config()
	if cfg.Width != 322 || cfg.Height != 242 {
		t.Errorf("dimensions = %dx%d, want 322x242", cfg.Width, cfg.Height)
	}
}

func TestTestPatternSource_StartStop(t *testing.T) {
	source := NewTestPatternSource(TestPatternConfig{
		Width:  320,
		Height: 240,
		FPS:    30,
	})

	ctx := context.Background()

	if err := source.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Double start should fail
	if err := source.Start(ctx); err == nil {
		t.Error("Double start should fail")
	}

	if err := source.Stop(); err != nil {
		t.Errorf("Stop failed: %v", err)
	}

	// Double stop should be safe
	if err := source.Stop(); err != nil {
		t.Errorf("Double stop should not fail: %v", err)
	}
}

func TestTestPatternSource_ReadFrame(t *testing.T) {
	source := NewTestPatternSource(TestPatternConfig{
		Width:   320,
		Height:  240,
		FPS:     30,
		Pattern: PatternColorBars,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := source.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer source.Close()

	frame, err := source.ReadFrame(ctx)
	if err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}

	if frame.Width != 320 || frame.Height != 240 {
		t.Errorf("Frame dimensions: %dx%d, want 320x240", frame.Width, frame.Height)
	}
	if len(frame.Data) != 3 {
		t.Fatalf("Frame planes: %d, want 3", len(frame.Data))
	}
	if len(frame.Data[0]) != 320*240 {
		t.Errorf("Y plane size: %d, want %d", len(frame.Data[0]), 320*240)
	}
	if len(frame.Data[1]) != 160*120 || len(frame.Data[2]) != 160*120 {
		t.Errorf("UV plane sizes: %d, %d, want %d", len(frame.Data[1]), len(frame.Data[2]), 160*120)
	}

	// First bar is 75% white, last is black
	if first, last := frame.Data[0][0], frame.Data[0][319]; first <= last {
		t.Errorf("color bars luma: first=%d last=%d", first, last)
	}
}

func TestTestPatternSource_FramesAreIndependent(t *testing.T) {
	source := NewTestPatternSource(TestPatternConfig{Width: 64, Height: 64, FPS: 100, Pattern: PatternMovingBox})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := source.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer source.Close()

	a, err := source.ReadFrame(ctx)
	if err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}
	b, err := source.ReadFrame(ctx)
	if err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}
	if &a.Data[0][0] == &b.Data[0][0] {
		t.Error("frames share their buffer")
	}
}

func TestTestPatternSource_Callback(t *testing.T) {
	source := NewTestPatternSource(TestPatternConfig{Width: 64, Height: 64, FPS: 60})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	received := make(chan *VideoFrame, 1)
	source.SetCallback(func(frame *VideoFrame) {
		select {
		case received <- frame:
		default:
		}
	})

	if err := source.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer source.Close()

	select {
	case frame := <-received:
		if frame.Width != 64 {
			t.Errorf("Callback frame width: %d", frame.Width)
		}
	case <-ctx.Done():
		t.Fatal("Timeout waiting for callback frame")
	}
}

func TestTestPatternSource_SolidColor(t *testing.T) {
	source := NewTestPatternSource(TestPatternConfig{
		Width:   16,
		Height:  16,
		Pattern: PatternSolidColor,
		R:       255, G: 0, B: 0,
	})

	wantY, wantU, wantV := rgbToYUV(255, 0, 0)
	base := source.base
	if base.Data[0][0] != wantY || base.Data[1][0] != wantU || base.Data[2][0] != wantV {
		t.Errorf("solid color = (%d,%d,%d), want (%d,%d,%d)",
			base.Data[0][0], base.Data[1][0], base.Data[2][0], wantY, wantU, wantV)
	}
}

func TestPatternType_String(t *testing.T) {
	tests := []struct {
		pattern PatternType
		want    string
	}{
		{PatternColorBars, "ColorBars"},
		{PatternSolidColor, "SolidColor"},
		{PatternCheckerboard, "Checkerboard"},
		{PatternMovingBox, "MovingBox"},
		{PatternType(99), "Unknown"},
	}

	for _, tt := range tests {
		if got := tt.pattern.String(); got != tt.want {
			t.Errorf("PatternType(%d).String() = %q, want %q", tt.pattern, got, tt.want)
		}
	}
}

func BenchmarkTestPatternSource_MovingBox(b *testing.B) {
	source := NewTestPatternSource(TestPatternConfig{Width: 1280, Height: 720, Pattern: PatternMovingBox})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		source.generatePattern(uint64(i))
	}
}
