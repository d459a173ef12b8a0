package studio

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// StudioConfig configures a Studio.
type StudioConfig struct {
	Users        int // Initial participants (default: 2, negative = none)
	FPS          int // Composite render rate (default: 60)
	MirrorPolicy MirrorPolicy

	// Strict makes invariant violations (removing a missing participant or
	// screen share) return errors instead of being ignored.
	Strict bool

	Devices     MediaDevices    // Capture devices (default: synthetic devices)
	Emitter     FileEmitter     // Receives recordings (default: current directory)
	NewRecorder RecorderFactory // Recorder constructor (default: NewWebMRecorder)
	Recorder    RecorderOptions
	Compositor  CompositorConfig

	Logger zerolog.Logger
}

// DefaultStudioConfig returns two participants on synthetic devices.
func DefaultStudioConfig() StudioConfig {
	return StudioConfig{
		Users:        2,
		FPS:          60,
		MirrorPolicy: MirrorFirstPrimary,
		Recorder:     DefaultRecorderOptions(),
		Compositor:   DefaultCompositorConfig(),
		Logger:       zerolog.Nop(),
	}
}

// StudioState is a point-in-time view of a Studio.
type StudioState struct {
	Users       int
	Camera      bool
	Microphone  bool
	ScreenShare bool
	Recording   bool
	Rendering   bool
	Sources     []SourceEntry
}

// Studio owns the source registry, the render loop and the recording
// session, and serializes every mutation of them.
type Studio struct {
	config StudioConfig
	log    zerolog.Logger

	registry   *SourceRegistry
	canvas     *Canvas
	compositor *Compositor
	scheduler  *FrameScheduler
	session    *RecordingSession
	mixer      *AudioMixer
	devices    MediaDevices

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	users  int
	camera MediaStream
	screen MediaStream
	muted  bool
	closed bool
}

// NewStudio creates a studio with config.Users participant slots.
func NewStudio(config StudioConfig) *Studio {
	if config.Users == 0 {
		config.Users = 2
	}
	if config.Users < 0 {
		config.Users = 0
	}
	if config.FPS <= 0 {
		config.FPS = 60
	}
	if config.Devices == nil {
		config.Devices = NewMediaDevices(NewSyntheticDevices(DefaultSyntheticDevicesConfig()))
	}
	config.Compositor.Logger = config.Logger

	ctx, cancel := context.WithCancel(context.Background())
	s := &Studio{
		config:     config,
		log:        config.Logger.With().Str("component", "studio").Logger(),
		registry:   NewSourceRegistry(config.MirrorPolicy),
		canvas:     NewCanvas(),
		compositor: NewCompositor(config.Compositor),
		mixer:      NewAudioMixer(),
		devices:    config.Devices,
		ctx:        ctx,
		cancel:     cancel,
	}
	s.scheduler = NewFrameScheduler(SchedulerConfig{FPS: config.FPS, Logger: config.Logger}, s.render)
	s.session = NewRecordingSession(SessionConfig{
		NewRecorder: config.NewRecorder,
		Recorder:    config.Recorder,
		Emitter:     config.Emitter,
		Mixer:       s.mixer,
		FPS:         config.Recorder.VideoFPS,
		OnError:     s.recordingFailed,
		Logger:      config.Logger,
	})

	for i := 0; i < config.Users; i++ {
		s.addUserLocked()
	}
	return s
}

func (s *Studio) render() {
	s.compositor.Render(s.registry, s.canvas)
}

// Registry returns the source registry.
func (s *Studio) Registry() *SourceRegistry { return s.registry }

// Canvas returns the composite canvas.
func (s *Studio) Canvas() *Canvas { return s.canvas }

// Users returns the participant count.
func (s *Studio) Users() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users
}

// AddUser adds a participant slot and returns its ID.
func (s *Studio) AddUser() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", ErrClosed
	}
	return s.addUserLocked(), nil
}

func (s *Studio) addUserLocked() string {
	id := fmt.Sprintf("user%d", s.registry.PrimaryCount())
	if !s.registry.AddPrimary(id) {
		return id
	}
	s.users++
	s.log.Debug().Str("user", id).Int("users", s.users).Msg("participant added")

	if s.camera != nil && s.registry.PrimaryCount() == 1 {
		// First slot of a studio whose camera is already on
		s.registry.Bind(id, Live(s.camera))
		s.updateSchedulerLocked()
	}
	return id
}

// RemoveUser removes the most recently added participant slot. Removing
// from an empty studio is a no-op, or ErrNoParticipants in strict mode.
func (s *Studio) RemoveUser() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	entry, ok := s.registry.RemovePrimary()
	if !ok {
		if s.config.Strict {
			return ErrNoParticipants
		}
		return nil
	}
	s.users--
	s.log.Debug().Str("user", entry.ID).Int("users", s.users).Msg("participant removed")

	if entry.Binding.Kind == BindingLive && entry.Binding.Stream == s.camera {
		// Nothing shows the camera any more
		s.releaseCameraLocked()
	}
	s.updateSchedulerLocked()
	return nil
}

// EnableCamera acquires a camera and microphone and shows them in the first
// participant slot, with the other slots mirroring it. On failure the studio
// is left unchanged.
func (s *Studio) EnableCamera(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.camera != nil {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	// Acquisition may wait on a permission prompt; the render loop keeps
	// running on the current registry meanwhile.
	stream, err := s.devices.GetUserMedia(ctx, UserMediaOptions{
		Video: &VideoConstraints{},
		Audio: &AudioConstraints{},
	})
	if err != nil {
		s.log.Warn().Err(err).Msg("camera acquisition failed")
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		stream.Close()
		return ErrClosed
	}
	if s.camera != nil {
		// A concurrent enable won
		stream.Close()
		return nil
	}
	s.camera = stream
	if s.muted {
		s.mixer.SetMuted([]MediaStream{stream}, true)
	}

	first := ""
	for _, e := range s.registry.Snapshot() {
		if e.Role != RolePrimary {
			continue
		}
		if first == "" {
			first = e.ID
			s.registry.Bind(e.ID, Live(stream))
		} else if s.config.MirrorPolicy == MirrorFirstPrimary {
			s.registry.Bind(e.ID, MirroredFrom(first))
		}
	}
	s.log.Info().Str("stream", stream.ID()).Msg("camera enabled")
	s.updateSchedulerLocked()
	return nil
}

// DisableCamera releases the camera and microphone.
func (s *Studio) DisableCamera() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.camera == nil {
		return nil
	}
	s.releaseCameraLocked()
	s.updateSchedulerLocked()
	return nil
}

func (s *Studio) releaseCameraLocked() {
	s.registry.Unbind(s.camera)
	s.camera.Close()
	s.camera = nil
	s.log.Info().Msg("camera disabled")
}

// ToggleCamera flips the camera and reports whether it is now on.
func (s *Studio) ToggleCamera(ctx context.Context) (bool, error) {
	s.mu.Lock()
	on := s.camera != nil
	s.mu.Unlock()

	if on {
		return false, s.DisableCamera()
	}
	if err := s.EnableCamera(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// ToggleMicrophone mutes or unmutes every source's audio, including the
// audio already merged into an in-progress recording. It reports whether
// the microphone is now live.
func (s *Studio) ToggleMicrophone() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.muted = !s.muted
	streams := s.registry.Streams()
	if s.camera != nil {
		streams = append(streams, s.camera)
	}
	if rec := s.session.Stream(); rec != nil {
		streams = append(streams, rec)
	}
	n := s.mixer.SetMuted(streams, s.muted)
	s.log.Info().Bool("muted", s.muted).Int("tracks", n).Msg("microphone toggled")
	return !s.muted
}

// EnableScreenShare acquires a display capture and adds it as the screen
// share. On failure the studio is left unchanged.
func (s *Studio) EnableScreenShare(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.screen != nil {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	stream, err := s.devices.GetDisplayMedia(ctx, DisplayMediaOptions{Audio: true})
	if err != nil {
		s.log.Warn().Err(err).Msg("screen share acquisition failed")
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		stream.Close()
		return ErrClosed
	}
	if s.screen != nil {
		stream.Close()
		return nil
	}
	s.screen = stream
	s.registry.SetScreenShare(stream)
	for _, t := range stream.GetVideoTracks() {
		// The share can end on its own, e.g. when the shared window closes
		t.OnEnded(func() { s.screenEnded(stream) })
	}
	s.log.Info().Str("stream", stream.ID()).Msg("screen share enabled")
	s.updateSchedulerLocked()
	return nil
}

// DisableScreenShare removes the screen share. Removing a missing screen
// share is a no-op, or ErrNoScreenShare in strict mode.
func (s *Studio) DisableScreenShare() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.screen == nil {
		if s.config.Strict {
			return ErrNoScreenShare
		}
		return nil
	}
	s.releaseScreenLocked()
	s.updateSchedulerLocked()
	return nil
}

func (s *Studio) releaseScreenLocked() {
	s.registry.SetScreenShare(nil)
	screen := s.screen
	s.screen = nil
	screen.Close()
	s.log.Info().Msg("screen share disabled")
}

func (s *Studio) screenEnded(stream MediaStream) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.screen != stream {
		return
	}
	s.releaseScreenLocked()
	s.updateSchedulerLocked()
}

// ToggleScreenShare flips the screen share and reports whether it is now on.
func (s *Studio) ToggleScreenShare(ctx context.Context) (bool, error) {
	s.mu.Lock()
	on := s.screen != nil
	s.mu.Unlock()

	if on {
		return false, s.DisableScreenShare()
	}
	if err := s.EnableScreenShare(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// StartRecording records the composite and the audio of every current
// source until StopRecording.
func (s *Studio) StartRecording() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	sources := s.registry.Streams()
	if s.camera != nil {
		sources = appendStream(sources, s.camera)
	}
	if err := s.session.Start(s.ctx, s.canvas, sources); err != nil {
		return err
	}
	s.updateSchedulerLocked()
	return nil
}

// StopRecording finalizes the recording and emits it.
func (s *Studio) StopRecording() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.session.Stop()
	s.updateSchedulerLocked()
	return err
}

// ToggleRecording flips recording and reports whether it is now active.
func (s *Studio) ToggleRecording() (bool, error) {
	if s.session.State() == SessionRecording {
		return false, s.StopRecording()
	}
	if err := s.StartRecording(); err != nil {
		return false, err
	}
	return true, nil
}

// Recording reports whether a recording is in progress.
func (s *Studio) Recording() bool {
	return s.session.State() == SessionRecording
}

// Preview returns the stream being recorded, for monitoring, or nil.
func (s *Studio) Preview() MediaStream {
	return s.session.Stream()
}

func (s *Studio) recordingFailed(err error) {
	s.log.Error().Err(err).Msg("recording aborted")

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.updateSchedulerLocked()
	}
}

// Snapshot returns the current studio state.
func (s *Studio) Snapshot() StudioState {
	s.mu.Lock()
	defer s.mu.Unlock()

	return StudioState{
		Users:       s.users,
		Camera:      s.camera != nil,
		Microphone:  !s.muted,
		ScreenShare: s.screen != nil,
		Recording:   s.session.State() == SessionRecording,
		Rendering:   s.scheduler.Running(),
		Sources:     s.registry.Snapshot(),
	}
}

// updateSchedulerLocked renders while a source is live or a recording runs.
func (s *Studio) updateSchedulerLocked() {
	if s.registry.HasLive() || s.session.State() == SessionRecording {
		s.scheduler.Start(s.ctx)
	} else {
		s.scheduler.Stop()
	}
}

// Close stops any recording, emitting it, and releases every device.
func (s *Studio) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	var err error
	if s.session.State() == SessionRecording {
		err = s.session.Stop()
	}
	s.scheduler.Stop()
	if s.camera != nil {
		s.releaseCameraLocked()
	}
	if s.screen != nil {
		s.releaseScreenLocked()
	}
	s.cancel()
	return err
}

func appendStream(streams []MediaStream, stream MediaStream) []MediaStream {
	for _, s := range streams {
		if s == stream {
			return streams
		}
	}
	return append(streams, stream)
}
