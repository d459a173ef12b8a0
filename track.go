package studio

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
)

// Re-export pion's RTPCodecType for convenience
type RTPCodecType = webrtc.RTPCodecType

const (
	RTPCodecTypeUnknown = webrtc.RTPCodecTypeUnknown
	RTPCodecTypeAudio   = webrtc.RTPCodecTypeAudio
	RTPCodecTypeVideo   = webrtc.RTPCodecTypeVideo
)

// ErrTrackEnded is returned when reading from a track that has ended.
var ErrTrackEnded = errors.New("track ended")

// TrackState represents the state of a track.
type TrackState int

const (
	TrackStateLive  TrackState = iota // Track is active and producing media
	TrackStateEnded                   // Track has ended
)

func (s TrackState) String() string {
	switch s {
	case TrackStateLive:
		return "live"
	case TrackStateEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// MediaStreamTrack represents a single audio or video track.
// This is similar to the browser's MediaStreamTrack interface.
type MediaStreamTrack interface {
	io.Closer

	// ID returns the unique identifier for this track.
	ID() string

	// Kind returns the track kind (audio or video) - compatible with pion.
	Kind() RTPCodecType

	// Label returns a human-readable label for the track source.
	Label() string

	// State returns the current track state.
	State() TrackState

	// Enabled returns whether the track is enabled.
	// A disabled video track renders black, a disabled audio track is silent.
	Enabled() bool

	// SetEnabled sets the enabled state.
	SetEnabled(enabled bool)

	// OnEnded sets a callback for when the track ends.
	OnEnded(callback func())
}

// VideoTrack is a MediaStreamTrack that produces video frames.
type VideoTrack interface {
	MediaStreamTrack

	// ReadFrame waits for the next video frame.
	ReadFrame(ctx context.Context) (*VideoFrame, error)

	// CurrentFrame returns the most recent frame, or nil before the first one.
	// The returned frame must not be modified.
	CurrentFrame() *VideoFrame

	// Settings returns the actual video settings.
	Settings() VideoTrackSettings
}

// VideoTrackSettings describes the actual video track settings.
type VideoTrackSettings struct {
	Width     int
	Height    int
	FrameRate int
	DeviceID  string
}

// AudioTrack is a MediaStreamTrack that produces audio samples.
type AudioTrack interface {
	MediaStreamTrack

	// ReadSamples waits for the next block of audio samples.
	ReadSamples(ctx context.Context) (*AudioSamples, error)

	// Settings returns the actual audio settings.
	Settings() AudioTrackSettings
}

// AudioTrackSettings describes the actual audio track settings.
type AudioTrackSettings struct {
	SampleRate   int
	ChannelCount int
	DeviceID     string
}

// MediaStream is a collection of tracks (like browser's MediaStream).
type MediaStream interface {
	io.Closer

	// ID returns the unique identifier for this stream.
	ID() string

	// Active returns whether any track in the stream is live.
	Active() bool

	// GetTracks returns all tracks in the stream.
	GetTracks() []MediaStreamTrack

	// GetVideoTracks returns all video tracks.
	GetVideoTracks() []VideoTrack

	// GetAudioTracks returns all audio tracks.
	GetAudioTracks() []AudioTrack

	// GetTrackByID returns a track by its ID.
	GetTrackByID(id string) MediaStreamTrack

	// AddTrack adds a track to the stream. Adding a track that is already
	// part of the stream has no effect.
	AddTrack(track MediaStreamTrack)

	// RemoveTrack removes a track from the stream.
	RemoveTrack(track MediaStreamTrack)

	// OnAddTrack sets a callback for when a track is added.
	OnAddTrack(callback func(track MediaStreamTrack))

	// OnRemoveTrack sets a callback for when a track is removed.
	OnRemoveTrack(callback func(track MediaStreamTrack))
}

// BaseTrack provides common functionality for tracks.
type BaseTrack struct {
	id      string
	label   string
	kind    RTPCodecType
	state   atomic.Int32
	enabled atomic.Bool
	endedCb func()
	mu      sync.RWMutex
}

// NewBaseTrack creates a new base track. An empty id gets a random UUID.
func NewBaseTrack(id, label string, kind RTPCodecType) *BaseTrack {
	if id == "" {
		id = uuid.NewString()
	}
	t := &BaseTrack{
		id:    id,
		label: label,
		kind:  kind,
	}
	t.state.Store(int32(TrackStateLive))
	t.enabled.Store(true)
	return t
}

func (t *BaseTrack) ID() string         { return t.id }
func (t *BaseTrack) Kind() RTPCodecType { return t.kind }
func (t *BaseTrack) Label() string      { return t.label }

func (t *BaseTrack) State() TrackState {
	return TrackState(t.state.Load())
}

// SetState updates the track state, firing the ended callback once.
func (t *BaseTrack) SetState(state TrackState) {
	old := TrackState(t.state.Swap(int32(state)))
	if state == TrackStateEnded && old != TrackStateEnded {
		t.mu.RLock()
		cb := t.endedCb
		t.mu.RUnlock()
		if cb != nil {
			go cb()
		}
	}
}

func (t *BaseTrack) Enabled() bool     { return t.enabled.Load() }
func (t *BaseTrack) SetEnabled(e bool) { t.enabled.Store(e) }

func (t *BaseTrack) OnEnded(callback func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.endedCb = callback
}

// SimpleMediaStream is a basic MediaStream implementation.
type SimpleMediaStream struct {
	id            string
	tracks        []MediaStreamTrack
	mu            sync.RWMutex
	onAddTrack    func(MediaStreamTrack)
	onRemoveTrack func(MediaStreamTrack)
}

// NewMediaStream creates a new media stream. An empty id gets a random UUID.
func NewMediaStream(id string) *SimpleMediaStream {
	if id == "" {
		id = uuid.NewString()
	}
	return &SimpleMediaStream{
		id:     id,
		tracks: make([]MediaStreamTrack, 0),
	}
}

func (s *SimpleMediaStream) ID() string { return s.id }

func (s *SimpleMediaStream) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tracks {
		if t.State() == TrackStateLive {
			return true
		}
	}
	return false
}

func (s *SimpleMediaStream) GetTracks() []MediaStreamTrack {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]MediaStreamTrack, len(s.tracks))
	copy(result, s.tracks)
	return result
}

func (s *SimpleMediaStream) GetVideoTracks() []VideoTrack {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []VideoTrack
	for _, t := range s.tracks {
		if vt, ok := t.(VideoTrack); ok {
			result = append(result, vt)
		}
	}
	return result
}

func (s *SimpleMediaStream) GetAudioTracks() []AudioTrack {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []AudioTrack
	for _, t := range s.tracks {
		if at, ok := t.(AudioTrack); ok {
			result = append(result, at)
		}
	}
	return result
}

func (s *SimpleMediaStream) GetTrackByID(id string) MediaStreamTrack {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tracks {
		if t.ID() == id {
			return t
		}
	}
	return nil
}

func (s *SimpleMediaStream) AddTrack(track MediaStreamTrack) {
	s.mu.Lock()
	for _, t := range s.tracks {
		if t.ID() == track.ID() {
			s.mu.Unlock()
			return
		}
	}
	s.tracks = append(s.tracks, track)
	cb := s.onAddTrack
	s.mu.Unlock()

	if cb != nil {
		go cb(track)
	}
}

func (s *SimpleMediaStream) RemoveTrack(track MediaStreamTrack) {
	s.mu.Lock()
	removed := false
	for i, t := range s.tracks {
		if t.ID() == track.ID() {
			s.tracks = append(s.tracks[:i], s.tracks[i+1:]...)
			removed = true
			break
		}
	}
	cb := s.onRemoveTrack
	s.mu.Unlock()

	if removed && cb != nil {
		go cb(track)
	}
}

func (s *SimpleMediaStream) OnAddTrack(callback func(MediaStreamTrack)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onAddTrack = callback
}

func (s *SimpleMediaStream) OnRemoveTrack(callback func(MediaStreamTrack)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onRemoveTrack = callback
}

// Close closes every track in the stream.
func (s *SimpleMediaStream) Close() error {
	s.mu.Lock()
	tracks := s.tracks
	s.tracks = nil
	s.mu.Unlock()

	var lastErr error
	for _, t := range tracks {
		if err := t.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// latest holds the most recent value published by a producer and wakes
// every reader blocked waiting for the next one.
type latest[T any] struct {
	mu     sync.Mutex
	value  *T
	notify chan struct{}
	closed bool
}

func newLatest[T any]() *latest[T] {
	return &latest[T]{notify: make(chan struct{})}
}

func (l *latest[T]) publish(v *T) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.value = v
	ch := l.notify
	l.notify = make(chan struct{})
	l.mu.Unlock()
	close(ch)
}

func (l *latest[T]) load() *T {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.value
}

// next blocks until a value newer than the one present at call time arrives.
func (l *latest[T]) next(ctx context.Context) (*T, error) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil, ErrTrackEnded
	}
	ch := l.notify
	l.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-ch:
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, ErrTrackEnded
	}
	return l.value, nil
}

func (l *latest[T]) close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	ch := l.notify
	l.mu.Unlock()
	close(ch)
}
