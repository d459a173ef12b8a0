package studio

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// PatternType defines the type of test pattern to generate.
type PatternType int

const (
	PatternColorBars    PatternType = iota // SMPTE color bars
	PatternSolidColor                      // Solid color
	PatternCheckerboard                    // Checkerboard pattern
	PatternMovingBox                       // Moving box (animated)
)

func (p PatternType) String() string {
	switch p {
	case PatternColorBars:
		return "ColorBars"
	case PatternSolidColor:
		return "SolidColor"
	case PatternCheckerboard:
		return "Checkerboard"
	case PatternMovingBox:
		return "MovingBox"
	default:
		return "Unknown"
	}
}

// TestPatternConfig configures a test pattern source.
type TestPatternConfig struct {
	Width   int         // Frame width (default: 640)
	Height  int         // Frame height (default: 480)
	FPS     int         // Frames per second (default: 30)
	Pattern PatternType // Pattern type (default: ColorBars)

	// Color used by SolidColor and as the box color of MovingBox
	R, G, B uint8

	// For Checkerboard pattern
	CheckerSize int // Size of each checker square (default: 32)
}

// DefaultTestPatternConfig returns a default test pattern configuration.
func DefaultTestPatternConfig() TestPatternConfig {
	return TestPatternConfig{
		Width:       640,
		Height:      480,
		FPS:         30,
		Pattern:     PatternColorBars,
		R:           235,
		G:           235,
		B:           235,
		CheckerSize: 32,
	}
}

// TestPatternSource generates synthetic I420 frames. It stands in for a
// camera or a captured display.
type TestPatternSource struct {
	config TestPatternConfig
	stype  SourceType

	// Canvas the pattern is generated into; every delivered frame is a copy.
	base *VideoFrame

	frameDuration time.Duration
	frameCount    uint64
	startTime     time.Time

	running  atomic.Bool
	ctx      context.Context
	cancel   context.CancelFunc
	frameCh  chan *VideoFrame
	doneCh   chan struct{}
	callback VideoFrameCallback

	mu sync.RWMutex
}

// NewTestPatternSource creates a new test pattern video source.
func NewTestPatternSource(config TestPatternConfig) *TestPatternSource {
	return newTestPatternSource(config, SourceTypeTestPattern)
}

func newTestPatternSource(config TestPatternConfig, stype SourceType) *TestPatternSource {
	if config.Width <= 0 {
		config.Width = 640
	}
	if config.Height <= 0 {
		config.Height = 480
	}
	if config.FPS <= 0 {
		config.FPS = 30
	}
	if config.CheckerSize <= 0 {
		config.CheckerSize = 32
	}
	// Ensure even dimensions for I420
	config.Width = (config.Width + 1) &^ 1
	config.Height = (config.Height + 1) &^ 1

	s := &TestPatternSource{
		config:        config,
		stype:         stype,
		base:          NewI420Frame(config.Width, config.Height),
		frameDuration: time.Second / time.Duration(config.FPS),
		frameCh:       make(chan *VideoFrame, 2),
	}
	s.generatePattern(0)
	return s
}

// Start begins generating frames.
func (s *TestPatternSource) Start(ctx context.Context) error {
	if s.running.Load() {
		return fmt.Errorf("source already running")
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.doneCh = make(chan struct{})
	s.running.Store(true)
	s.startTime = time.Now()
	s.frameCount = 0

	go s.generateLoop()

	return nil
}

// Stop stops generating frames and waits for the goroutine to exit.
func (s *TestPatternSource) Stop() error {
	if !s.running.Load() {
		return nil
	}

	s.running.Store(false)
	if s.cancel != nil {
		s.cancel()
	}
	if s.doneCh != nil {
		<-s.doneCh
	}
	return nil
}

// Close closes the source.
func (s *TestPatternSource) Close() error {
	s.Stop()
	s.mu.Lock()
	if s.frameCh != nil {
		close(s.frameCh)
		s.frameCh = nil
	}
	s.mu.Unlock()
	return nil
}

// ReadFrame reads the next frame (blocking).
func (s *TestPatternSource) ReadFrame(ctx context.Context) (*VideoFrame, error) {
	s.mu.RLock()
	ch := s.frameCh
	s.mu.RUnlock()
	if ch == nil {
		return nil, fmt.Errorf("source closed")
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case frame, ok := <-ch:
		if !ok {
			return nil, fmt.Errorf("source closed")
		}
		return frame, nil
	}
}

// SetCallback sets the push-mode callback.
func (s *TestPatternSource) SetCallback(cb VideoFrameCallback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callback = cb
}

// Config returns the source configuration.
func (s *TestPatternSource) Config() SourceConfig {
	return SourceConfig{
		Width:      s.config.Width,
		Height:     s.config.Height,
		FPS:        s.config.FPS,
		Format:     PixelFormatI420,
		SourceType: s.stype,
	}
}

func (s *TestPatternSource) generateLoop() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.frameDuration)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.frameCount++
			if s.config.Pattern == PatternMovingBox {
				s.generatePattern(s.frameCount)
			}

			frame := s.base.Clone()
			frame.Timestamp = time.Since(s.startTime).Nanoseconds()
			frame.Duration = s.frameDuration.Nanoseconds()

			s.mu.RLock()
			cb := s.callback
			ch := s.frameCh
			s.mu.RUnlock()

			if cb != nil {
				cb(frame)
				continue
			}
			select {
			case <-s.ctx.Done():
				return
			case ch <- frame:
			default:
				// Drop frame if channel full
			}
		}
	}
}

func (s *TestPatternSource) generatePattern(frameNum uint64) {
	switch s.config.Pattern {
	case PatternSolidColor:
		y, u, v := rgbToYUV(s.config.R, s.config.G, s.config.B)
		s.base.Fill(y, u, v)
	case PatternCheckerboard:
		s.generateCheckerboard()
	case PatternMovingBox:
		s.generateMovingBox(frameNum)
	default:
		s.generateColorBars()
	}
}

// SMPTE color bars (simplified 8-bar pattern)
var colorBarsRGB = [8][3]uint8{
	{192, 192, 192}, // White (75%)
	{192, 192, 0},   // Yellow
	{0, 192, 192},   // Cyan
	{0, 192, 0},     // Green
	{192, 0, 192},   // Magenta
	{192, 0, 0},     // Red
	{0, 0, 192},     // Blue
	{16, 16, 16},    // Black
}

func (s *TestPatternSource) generateColorBars() {
	w, h := s.config.Width, s.config.Height
	barWidth := max(w/8, 1)
	yp, up, vp := s.base.Data[0], s.base.Data[1], s.base.Data[2]

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			barIdx := min(x/barWidth, 7)
			rgb := colorBarsRGB[barIdx]
			yVal, u, v := rgbToYUV(rgb[0], rgb[1], rgb[2])

			yp[y*w+x] = yVal
			if x%2 == 0 && y%2 == 0 {
				uvIdx := (y/2)*(w/2) + x/2
				up[uvIdx] = u
				vp[uvIdx] = v
			}
		}
	}
}

func (s *TestPatternSource) generateCheckerboard() {
	w, h := s.config.Width, s.config.Height
	size := s.config.CheckerSize

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			yVal := uint8(16)
			if ((x/size)+(y/size))%2 == 0 {
				yVal = 235
			}
			s.base.Data[0][y*w+x] = yVal
		}
	}
	for i := range s.base.Data[1] {
		s.base.Data[1][i] = 128
		s.base.Data[2][i] = 128
	}
}

func (s *TestPatternSource) generateMovingBox(frameNum uint64) {
	w, h := s.config.Width, s.config.Height
	s.base.Fill(16, 128, 128)

	boxSize := min(w, h) / 5
	radius := float64(min(w, h)) / 4
	angle := float64(frameNum) * 0.05 // Radians per frame
	boxX := w/2 + int(radius*math.Cos(angle)) - boxSize/2
	boxY := h/2 + int(radius*math.Sin(angle)) - boxSize/2

	yVal, u, v := rgbToYUV(s.config.R, s.config.G, s.config.B)
	for y := max(boxY, 0); y < boxY+boxSize && y < h; y++ {
		for x := max(boxX, 0); x < boxX+boxSize && x < w; x++ {
			s.base.Data[0][y*w+x] = yVal
			if x%2 == 0 && y%2 == 0 {
				uvIdx := (y/2)*(w/2) + x/2
				s.base.Data[1][uvIdx] = u
				s.base.Data[2][uvIdx] = v
			}
		}
	}
}

// rgbToYUV converts RGB to YUV (BT.601)
func rgbToYUV(r, g, b uint8) (y, u, v uint8) {
	yf := 16.0 + 65.481*float64(r)/255.0 + 128.553*float64(g)/255.0 + 24.966*float64(b)/255.0
	uf := 128.0 - 37.797*float64(r)/255.0 - 74.203*float64(g)/255.0 + 112.0*float64(b)/255.0
	vf := 128.0 + 112.0*float64(r)/255.0 - 93.786*float64(g)/255.0 - 18.214*float64(b)/255.0

	y = uint8(clamp(yf, 16, 235))
	u = uint8(clamp(uf, 16, 240))
	v = uint8(clamp(vf, 16, 240))
	return
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
