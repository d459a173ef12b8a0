package studio

import (
	"sync/atomic"

	"github.com/rs/zerolog"
)

// CompositorConfig configures the layout of the composite.
type CompositorConfig struct {
	CellWidth   int       // Width of a participant cell
	CellHeight  int       // Height of a participant cell
	ScreenShare Rect      // Where the screen share is drawn
	Background  [3]byte   // Background color (Y, U, V)
	Mode        ScaleMode // How sources are fitted into their cell
	Logger      zerolog.Logger
}

// DefaultCompositorConfig returns the standard grid: a row of 266x200 cells
// across the top and the screen share at (0, 200, 600, 300).
func DefaultCompositorConfig() CompositorConfig {
	return CompositorConfig{
		CellWidth:   266,
		CellHeight:  200,
		ScreenShare: Rect{X: 0, Y: 200, W: 600, H: 300},
		Background:  [3]byte{16, 128, 128}, // Black in YUV
		Mode:        ScaleModeStretch,
		Logger:      zerolog.Nop(),
	}
}

// Placement is where a registry entry is drawn.
type Placement struct {
	Entry SourceEntry
	Rect  Rect
}

// Compositor draws the sources of a registry onto a canvas.
type Compositor struct {
	config CompositorConfig
	log    zerolog.Logger
	frames atomic.Uint64
}

// NewCompositor creates a compositor. Zero-value fields take their defaults.
func NewCompositor(config CompositorConfig) *Compositor {
	def := DefaultCompositorConfig()
	if config.CellWidth <= 0 {
		config.CellWidth = def.CellWidth
	}
	if config.CellHeight <= 0 {
		config.CellHeight = def.CellHeight
	}
	if config.ScreenShare.Empty() {
		config.ScreenShare = def.ScreenShare
	}
	if config.Background == ([3]byte{}) {
		config.Background = def.Background
	}
	return &Compositor{
		config: config,
		log:    config.Logger.With().Str("component", "compositor").Logger(),
	}
}

// Config returns the compositor configuration.
func (c *Compositor) Config() CompositorConfig {
	return c.config
}

// Layout computes the destination rectangle of every entry. The primary at
// registry index i gets (CellWidth*i, 0, CellWidth, CellHeight); the screen
// share gets its fixed rectangle. Rectangles may extend past the canvas.
func (c *Compositor) Layout(entries []SourceEntry) []Placement {
	placements := make([]Placement, 0, len(entries))
	for i, e := range entries {
		var r Rect
		switch e.Role {
		case RoleScreenShare:
			r = c.config.ScreenShare
		default:
			r = Rect{X: c.config.CellWidth * i, Y: 0, W: c.config.CellWidth, H: c.config.CellHeight}
		}
		placements = append(placements, Placement{Entry: e, Rect: r})
	}
	return placements
}

// Render clears the canvas, draws one registry snapshot on it and commits
// the result. It returns how many sources were drawn.
func (c *Compositor) Render(reg *SourceRegistry, canvas *Canvas) int {
	bg := c.config.Background
	canvas.Clear(bg[0], bg[1], bg[2])

	entries, streams := reg.ResolveAll()
	surface := canvas.Surface()
	drawn := 0

	for i, p := range c.Layout(entries) {
		stream := streams[i]
		if stream == nil {
			continue
		}
		tracks := stream.GetVideoTracks()
		if len(tracks) == 0 {
			continue
		}
		track := tracks[0]
		if !track.Enabled() {
			// A disabled camera shows black
			FillRect(surface, p.Rect, 16, 128, 128)
			drawn++
			continue
		}
		frame := track.CurrentFrame()
		if frame == nil {
			continue
		}
		if DrawScaled(surface, frame, p.Rect, c.config.Mode) {
			drawn++
		}
	}

	canvas.Commit()
	if n := c.frames.Add(1); n == 1 {
		c.log.Debug().Int("sources", drawn).Msg("first composite rendered")
	}
	return drawn
}

// Frames returns the number of composites rendered.
func (c *Compositor) Frames() uint64 {
	return c.frames.Load()
}
