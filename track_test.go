package studio

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBaseTrack(t *testing.T) {
	track := NewBaseTrack("", "cam", RTPCodecTypeVideo)

	if track.ID() == "" {
		t.Error("empty id should be replaced by a generated one")
	}
	if track.Kind() != RTPCodecTypeVideo || track.Label() != "cam" {
		t.Errorf("kind/label = %v/%q", track.Kind(), track.Label())
	}
	if !track.Enabled() || track.State() != TrackStateLive {
		t.Error("new track should be live and enabled")
	}

	track.SetEnabled(false)
	if track.Enabled() {
		t.Error("SetEnabled(false) had no effect")
	}

	ended := make(chan struct{})
	track.OnEnded(func() { close(ended) })
	track.SetState(TrackStateEnded)
	track.SetState(TrackStateEnded) // fires once

	select {
	case <-ended:
	case <-time.After(time.Second):
		t.Fatal("OnEnded callback not called")
	}
}

func TestMediaStream_AddRemove(t *testing.T) {
	stream := NewMediaStream("s1")
	video := newFakeVideoTrack()
	audio := newFakeAudioTrack()

	stream.AddTrack(video)
	stream.AddTrack(audio)
	stream.AddTrack(audio) // duplicate is ignored

	if n := len(stream.GetTracks()); n != 2 {
		t.Fatalf("tracks = %d, want 2", n)
	}
	if n := len(stream.GetVideoTracks()); n != 1 {
		t.Errorf("video tracks = %d, want 1", n)
	}
	if n := len(stream.GetAudioTracks()); n != 1 {
		t.Errorf("audio tracks = %d, want 1", n)
	}
	if stream.GetTrackByID(audio.ID()) == nil {
		t.Error("GetTrackByID did not find audio track")
	}
	if !stream.Active() {
		t.Error("stream with live tracks should be active")
	}

	stream.RemoveTrack(audio)
	if n := len(stream.GetAudioTracks()); n != 0 {
		t.Errorf("audio tracks after remove = %d, want 0", n)
	}
	if audio.State() != TrackStateLive {
		t.Error("RemoveTrack must not end the track")
	}

	stream.Close()
	if video.State() != TrackStateEnded {
		t.Error("Close should end every track")
	}
}

func TestLatest_Next(t *testing.T) {
	l := newLatest[int]()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	one := 1
	l.publish(&one)

	got := make(chan *int, 1)
	go func() {
		v, err := l.next(ctx)
		if err != nil {
			t.Errorf("next: %v", err)
		}
		got <- v
	}()

	// next waits for a value newer than the current one
	two := 2
	for received := false; !received; {
		select {
		case v := <-got:
			if v == nil || *v != 2 {
				t.Errorf("next = %v, want 2", v)
			}
			received = true
		case <-time.After(10 * time.Millisecond):
			l.publish(&two)
		}
	}

	l.close()
	if _, err := l.next(ctx); !errors.Is(err, ErrTrackEnded) {
		t.Errorf("next after close = %v, want ErrTrackEnded", err)
	}
}

func TestSourceVideoTrack(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	source := NewTestPatternSource(TestPatternConfig{Width: 64, Height: 48, FPS: 60})
	track, err := NewSourceVideoTrack(ctx, source, "pattern", "dev0")
	if err != nil {
		t.Fatalf("NewSourceVideoTrack: %v", err)
	}

	frame, err := track.ReadFrame(ctx)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if frame.Width != 64 || frame.Height != 48 {
		t.Errorf("frame = %dx%d", frame.Width, frame.Height)
	}
	if track.CurrentFrame() == nil {
		t.Error("CurrentFrame nil after a frame was read")
	}
	if s := track.Settings(); s.Width != 64 || s.FrameRate != 60 || s.DeviceID != "dev0" {
		t.Errorf("settings = %+v", s)
	}

	if err := track.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	track.Close()
	if track.State() != TrackStateEnded {
		t.Error("closed track should be ended")
	}
	if _, err := track.ReadFrame(ctx); !errors.Is(err, ErrTrackEnded) {
		t.Errorf("ReadFrame after close = %v, want ErrTrackEnded", err)
	}
}

// fakeVideoTrack is a video track whose frames are set by the test.
type fakeVideoTrack struct {
	*BaseTrack
	frames *latest[VideoFrame]
}

func newFakeVideoTrack() *fakeVideoTrack {
	return &fakeVideoTrack{
		BaseTrack: NewBaseTrack("", "fake video", RTPCodecTypeVideo),
		frames:    newLatest[VideoFrame](),
	}
}

func (t *fakeVideoTrack) ReadFrame(ctx context.Context) (*VideoFrame, error) {
	return t.frames.next(ctx)
}
func (t *fakeVideoTrack) CurrentFrame() *VideoFrame  { return t.frames.load() }
func (t *fakeVideoTrack) Settings() VideoTrackSettings { return VideoTrackSettings{} }
func (t *fakeVideoTrack) Close() error {
	t.frames.close()
	t.SetState(TrackStateEnded)
	return nil
}

// fakeAudioTrack is an audio track whose samples are set by the test.
type fakeAudioTrack struct {
	*BaseTrack
	samples *latest[AudioSamples]
}

func newFakeAudioTrack() *fakeAudioTrack {
	return &fakeAudioTrack{
		BaseTrack: NewBaseTrack("", "fake audio", RTPCodecTypeAudio),
		samples:   newLatest[AudioSamples](),
	}
}

func (t *fakeAudioTrack) ReadSamples(ctx context.Context) (*AudioSamples, error) {
	return t.samples.next(ctx)
}
func (t *fakeAudioTrack) Settings() AudioTrackSettings {
	return AudioTrackSettings{SampleRate: 48000, ChannelCount: 2}
}
func (t *fakeAudioTrack) Close() error {
	t.samples.close()
	t.SetState(TrackStateEnded)
	return nil
}

// newFakeStream returns a stream with one video track showing a solid frame
// of the given luma, plus an audio track when withAudio is set.
func newFakeStream(luma byte, withAudio bool) (*SimpleMediaStream, *fakeVideoTrack) {
	video := newFakeVideoTrack()
	frame := NewI420Frame(64, 48)
	frame.Fill(luma, 128, 128)
	video.frames.publish(frame)

	stream := NewMediaStream("")
	stream.AddTrack(video)
	if withAudio {
		stream.AddTrack(newFakeAudioTrack())
	}
	return stream, video
}

func TestMediaStream_TrackCallbacks(t *testing.T) {
	stream := NewMediaStream("")
	added := make(chan MediaStreamTrack, 1)
	removed := make(chan MediaStreamTrack, 1)
	stream.OnAddTrack(func(track MediaStreamTrack) { added <- track })
	stream.OnRemoveTrack(func(track MediaStreamTrack) { removed <- track })

	audio := newFakeAudioTrack()
	stream.AddTrack(audio)
	select {
	case got := <-added:
		if got != audio {
			t.Error("OnAddTrack got the wrong track")
		}
	case <-time.After(time.Second):
		t.Fatal("OnAddTrack not called")
	}

	stream.RemoveTrack(newFakeAudioTrack()) // not in the stream
	stream.RemoveTrack(audio)
	select {
	case got := <-removed:
		if got != audio {
			t.Error("OnRemoveTrack got the wrong track")
		}
	case <-time.After(time.Second):
		t.Fatal("OnRemoveTrack not called")
	}
}
