package studio

import (
	"context"
	"fmt"
	"sync"
)

// SourceVideoTrack exposes a VideoSource as a live VideoTrack. The source is
// driven in push mode; readers always observe the most recent frame.
type SourceVideoTrack struct {
	*BaseTrack
	source   VideoSource
	deviceID string
	frames   *latest[VideoFrame]
	cancel   context.CancelFunc
	once     sync.Once
}

// NewSourceVideoTrack starts source and wraps it in a track.
func NewSourceVideoTrack(ctx context.Context, source VideoSource, label, deviceID string) (*SourceVideoTrack, error) {
	t := &SourceVideoTrack{
		BaseTrack: NewBaseTrack("", label, RTPCodecTypeVideo),
		source:    source,
		deviceID:  deviceID,
		frames:    newLatest[VideoFrame](),
	}
	source.SetCallback(func(frame *VideoFrame) {
		t.frames.publish(frame)
	})

	// The track outlives the acquisition context.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	t.cancel = cancel
	if err := source.Start(runCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("start video source: %w", err)
	}
	return t, nil
}

// ReadFrame waits for the next frame.
func (t *SourceVideoTrack) ReadFrame(ctx context.Context) (*VideoFrame, error) {
	return t.frames.next(ctx)
}

// CurrentFrame returns the most recent frame.
func (t *SourceVideoTrack) CurrentFrame() *VideoFrame {
	return t.frames.load()
}

// Settings returns the actual video settings.
func (t *SourceVideoTrack) Settings() VideoTrackSettings {
	cfg := t.source.Config()
	return VideoTrackSettings{
		Width:     cfg.Width,
		Height:    cfg.Height,
		FrameRate: cfg.FPS,
		DeviceID:  t.deviceID,
	}
}

// Close stops the underlying source and ends the track.
func (t *SourceVideoTrack) Close() error {
	var err error
	t.once.Do(func() {
		t.cancel()
		err = t.source.Close()
		t.frames.close()
		t.SetState(TrackStateEnded)
	})
	return err
}

// SourceAudioTrack exposes an AudioSource as a live AudioTrack.
type SourceAudioTrack struct {
	*BaseTrack
	source   AudioSource
	deviceID string
	samples  *latest[AudioSamples]
	cancel   context.CancelFunc
	once     sync.Once
}

// NewSourceAudioTrack starts source and wraps it in a track.
func NewSourceAudioTrack(ctx context.Context, source AudioSource, label, deviceID string) (*SourceAudioTrack, error) {
	t := &SourceAudioTrack{
		BaseTrack: NewBaseTrack("", label, RTPCodecTypeAudio),
		source:    source,
		deviceID:  deviceID,
		samples:   newLatest[AudioSamples](),
	}
	source.SetCallback(func(samples *AudioSamples) {
		t.samples.publish(samples)
	})

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	t.cancel = cancel
	if err := source.Start(runCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("start audio source: %w", err)
	}
	return t, nil
}

// ReadSamples waits for the next block of samples.
func (t *SourceAudioTrack) ReadSamples(ctx context.Context) (*AudioSamples, error) {
	return t.samples.next(ctx)
}

// Settings returns the actual audio settings.
func (t *SourceAudioTrack) Settings() AudioTrackSettings {
	return AudioTrackSettings{
		SampleRate:   t.source.SampleRate(),
		ChannelCount: t.source.Channels(),
		DeviceID:     t.deviceID,
	}
}

// Close stops the underlying source and ends the track.
func (t *SourceAudioTrack) Close() error {
	var err error
	t.once.Do(func() {
		t.cancel()
		err = t.source.Close()
		t.samples.close()
		t.SetState(TrackStateEnded)
	})
	return err
}
