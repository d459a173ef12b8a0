package studio

import (
	"sync"
	"time"
)

// Output geometry of the composite.
const (
	CanvasWidth  = 1280
	CanvasHeight = 720
)

// Rect is an axis-aligned rectangle in pixels.
type Rect struct {
	X, Y, W, H int
}

// Empty reports whether the rectangle covers no pixels.
func (r Rect) Empty() bool {
	return r.W <= 0 || r.H <= 0
}

// Intersect returns the overlap of r and o.
func (r Rect) Intersect(o Rect) Rect {
	x0, y0 := max(r.X, o.X), max(r.Y, o.Y)
	x1, y1 := min(r.X+r.W, o.X+o.W), min(r.Y+r.H, o.Y+o.H)
	if x1 <= x0 || y1 <= y0 {
		return Rect{}
	}
	return Rect{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

// Overlaps reports whether r and o share at least one pixel.
func (r Rect) Overlaps(o Rect) bool {
	return !r.Intersect(o).Empty()
}

// Canvas is the fixed-size surface the compositor draws on. Only the render
// loop draws into it; Commit hands a copy of the finished frame to every
// capture of the canvas.
type Canvas struct {
	surface *VideoFrame
	created time.Time

	mu          sync.Mutex
	last        *VideoFrame
	subscribers map[*latest[VideoFrame]]struct{}
}

// NewCanvas creates a CanvasWidth x CanvasHeight canvas. Its size never
// changes.
func NewCanvas() *Canvas {
	surface := NewI420Frame(CanvasWidth, CanvasHeight)
	surface.Fill(16, 128, 128)
	return &Canvas{
		surface:     surface,
		created:     time.Now(),
		subscribers: make(map[*latest[VideoFrame]]struct{}),
	}
}

func (c *Canvas) Width() int  { return c.surface.Width }
func (c *Canvas) Height() int { return c.surface.Height }

// Bounds returns the canvas rectangle.
func (c *Canvas) Bounds() Rect {
	return Rect{W: c.surface.Width, H: c.surface.Height}
}

// Surface returns the drawing surface. It must only be used by the goroutine
// that renders into the canvas.
func (c *Canvas) Surface() *VideoFrame {
	return c.surface
}

// Clear paints the whole surface with one color.
func (c *Canvas) Clear(y, u, v byte) {
	c.surface.Fill(y, u, v)
}

// Commit publishes the current surface as a finished frame.
func (c *Canvas) Commit() *VideoFrame {
	frame := c.surface.Clone()
	frame.Timestamp = time.Since(c.created).Nanoseconds()

	c.mu.Lock()
	if c.last != nil {
		frame.Duration = frame.Timestamp - c.last.Timestamp
	}
	c.last = frame
	subs := make([]*latest[VideoFrame], 0, len(c.subscribers))
	for s := range c.subscribers {
		subs = append(subs, s)
	}
	c.mu.Unlock()

	for _, s := range subs {
		s.publish(frame)
	}
	return frame
}

// LastFrame returns the most recently committed frame, or nil.
func (c *Canvas) LastFrame() *VideoFrame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

func (c *Canvas) subscribe() *latest[VideoFrame] {
	l := newLatest[VideoFrame]()
	c.mu.Lock()
	c.subscribers[l] = struct{}{}
	last := c.last
	c.mu.Unlock()
	if last != nil {
		l.publish(last)
	}
	return l
}

func (c *Canvas) unsubscribe(l *latest[VideoFrame]) {
	c.mu.Lock()
	delete(c.subscribers, l)
	c.mu.Unlock()
	l.close()
}

// Subscribers returns the number of live captures of the canvas.
func (c *Canvas) Subscribers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subscribers)
}
