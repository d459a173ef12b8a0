package studio

import (
	"bytes"
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

// RecordingFilename is the name of every emitted recording.
const RecordingFilename = "recorded-video.webm"

// SessionState is the state of a RecordingSession.
type SessionState int

const (
	SessionIdle SessionState = iota
	SessionRecording
)

func (s SessionState) String() string {
	switch s {
	case SessionIdle:
		return "idle"
	case SessionRecording:
		return "recording"
	default:
		return "unknown"
	}
}

// SessionConfig configures a RecordingSession.
type SessionConfig struct {
	NewRecorder RecorderFactory // Recorder constructor (default: NewWebMRecorder)
	Recorder    RecorderOptions // Options passed to every recorder
	Emitter     FileEmitter     // Receives the finished file (default: current directory)
	Mixer       *AudioMixer
	FPS         int // Advisory capture rate (default: 30)

	// OnError is told about encoding failures that ended a recording.
	OnError func(err error)

	Logger zerolog.Logger
}

// recording is one Idle -> Recording -> Idle activation.
type recording struct {
	recorder Recorder
	stream   MediaStream

	mu     sync.Mutex
	chunks [][]byte
	failed bool
}

func (r *recording) append(chunk []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chunks = append(r.chunks, chunk)
}

func (r *recording) fail() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = true
	r.chunks = nil
}

// file concatenates every chunk, or returns false if the recording failed.
func (r *recording) file() ([]byte, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failed {
		return nil, false
	}
	return bytes.Join(r.chunks, nil), true
}

// RecordingSession binds a capture of the canvas and the mixed source audio
// to a recorder, emitting exactly one file per recording.
type RecordingSession struct {
	config SessionConfig
	log    zerolog.Logger

	mu     sync.Mutex
	state  SessionState
	active *recording
}

// NewRecordingSession creates an idle session.
func NewRecordingSession(config SessionConfig) *RecordingSession {
	if config.NewRecorder == nil {
		config.NewRecorder = NewWebMRecorder
	}
	if config.Emitter == nil {
		config.Emitter = DirEmitter{Dir: "."}
	}
	if config.Mixer == nil {
		config.Mixer = NewAudioMixer()
	}
	if config.FPS <= 0 {
		config.FPS = 30
	}
	return &RecordingSession{
		config: config,
		log:    config.Logger.With().Str("component", "session").Logger(),
	}
}

// State returns the current state.
func (s *RecordingSession) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Stream returns the stream being recorded, or nil while idle.
func (s *RecordingSession) Stream() MediaStream {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return nil
	}
	return s.active.stream
}

// Start captures canvas, merges the audio of sources into the capture and
// starts recording it.
func (s *RecordingSession) Start(ctx context.Context, canvas *Canvas, sources []MediaStream) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != SessionIdle {
		return &InvalidTransitionError{Op: "start", State: s.state}
	}

	stream, err := CaptureStream(canvas, s.config.FPS)
	if err != nil {
		return err
	}
	rec := &recording{stream: stream}
	stream.OnAddTrack(func(t MediaStreamTrack) {
		s.log.Debug().Str("track", t.ID()).Str("kind", t.Kind().String()).Msg("track added to recording")
	})
	stream.OnRemoveTrack(func(t MediaStreamTrack) {
		s.log.Debug().Str("track", t.ID()).Str("kind", t.Kind().String()).Msg("track released from recording")
	})
	merged := s.config.Mixer.MergeAudioInto(stream, sources)

	opts := s.config.Recorder
	opts.OnDataAvailable = rec.append
	opts.OnError = func(err error) { s.recorderFailed(rec, err) }
	opts.Logger = s.config.Logger

	recorder, err := s.config.NewRecorder(stream, opts)
	if err != nil {
		release(stream)
		return asEncodingError(err)
	}
	rec.recorder = recorder
	if err := recorder.Start(ctx); err != nil {
		release(stream)
		return asEncodingError(err)
	}

	s.active = rec
	s.state = SessionRecording
	s.log.Info().Str("stream", stream.ID()).Int("audioTracks", merged).Msg("recording started")
	return nil
}

// Stop finalizes the recording and emits RecordingFilename. If the recorder
// failed the partial output is discarded and an *EncodingError returned.
func (s *RecordingSession) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != SessionRecording {
		return &InvalidTransitionError{Op: "stop", State: s.state}
	}
	rec := s.active
	s.active = nil
	s.state = SessionIdle

	stopErr := rec.recorder.Stop()
	release(rec.stream)
	if stopErr != nil {
		rec.fail()
		s.log.Error().Err(stopErr).Msg("recording discarded")
		return asEncodingError(stopErr)
	}

	data, ok := rec.file()
	if !ok {
		return &EncodingError{Err: errors.New("recording failed")}
	}
	if err := s.config.Emitter.Emit(data, RecordingFilename); err != nil {
		s.log.Error().Err(err).Str("file", RecordingFilename).Msg("emit recording")
		return nil
	}
	s.log.Info().Int("bytes", len(data)).Str("file", RecordingFilename).Msg("recording emitted")
	return nil
}

// recorderFailed ends rec after a mid-session encoder failure.
func (s *RecordingSession) recorderFailed(rec *recording, err error) {
	rec.fail()

	s.mu.Lock()
	if s.active != rec {
		// Already stopped; Stop saw the failure.
		s.mu.Unlock()
		return
	}
	s.active = nil
	s.state = SessionIdle
	s.mu.Unlock()

	s.log.Error().Err(err).Msg("recorder failed, recording discarded")
	rec.recorder.Stop()
	release(rec.stream)

	if s.config.OnError != nil {
		s.config.OnError(asEncodingError(err))
	}
}

// release detaches a captured stream: the canvas capture ends and the
// borrowed source audio tracks are removed without being stopped.
func release(stream MediaStream) {
	for _, t := range stream.GetTracks() {
		if ct, ok := t.(*canvasTrack); ok {
			ct.Close()
		}
		stream.RemoveTrack(t)
	}
}

func asEncodingError(err error) error {
	var encErr *EncodingError
	if errors.As(err, &encErr) {
		return err
	}
	return &EncodingError{Err: err}
}
