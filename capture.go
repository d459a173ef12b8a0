package studio

import (
	"context"
	"sync"
)

// canvasTrack is a live video track fed by Canvas.Commit.
type canvasTrack struct {
	*BaseTrack
	canvas *Canvas
	frames *latest[VideoFrame]
	fps    int
	once   sync.Once
}

func (t *canvasTrack) ReadFrame(ctx context.Context) (*VideoFrame, error) {
	return t.frames.next(ctx)
}

func (t *canvasTrack) CurrentFrame() *VideoFrame {
	return t.frames.load()
}

func (t *canvasTrack) Settings() VideoTrackSettings {
	return VideoTrackSettings{
		Width:     t.canvas.Width(),
		Height:    t.canvas.Height(),
		FrameRate: t.fps,
	}
}

// Close detaches the track from the canvas.
func (t *canvasTrack) Close() error {
	t.once.Do(func() {
		t.canvas.unsubscribe(t.frames)
		t.SetState(TrackStateEnded)
	})
	return nil
}

// CaptureStream returns a live stream with one video track carrying every
// frame committed to canvas from now on. fps is advisory.
func CaptureStream(canvas *Canvas, fps int) (MediaStream, error) {
	if canvas == nil {
		return nil, ErrNoCanvas
	}
	track := &canvasTrack{
		BaseTrack: NewBaseTrack("", "canvas", RTPCodecTypeVideo),
		canvas:    canvas,
		frames:    canvas.subscribe(),
		fps:       fps,
	}
	stream := NewMediaStream("")
	stream.AddTrack(track)
	return stream, nil
}
