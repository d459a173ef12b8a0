package studio

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// TonePattern defines the waveform produced by a ToneSource.
type TonePattern int

const (
	ToneSilence TonePattern = iota // Silence
	ToneSine                       // Sine wave tone
	ToneSquare                     // Square wave tone
)

func (p TonePattern) String() string {
	switch p {
	case ToneSilence:
		return "Silence"
	case ToneSine:
		return "Sine"
	case ToneSquare:
		return "Square"
	default:
		return "Unknown"
	}
}

// ToneConfig configures a synthetic microphone.
type ToneConfig struct {
	SampleRate int         // Sample rate (default: 48000)
	Channels   int         // Number of channels (default: 2)
	FrameSize  int         // Samples per block (default: 960 = 20ms at 48kHz)
	Pattern    TonePattern // Waveform
	Frequency  float64     // Tone frequency in Hz (default: 440)
	Amplitude  float64     // Amplitude 0.0-1.0 (default: 0.25)
}

// DefaultToneConfig returns a 440 Hz stereo sine at 48 kHz.
func DefaultToneConfig() ToneConfig {
	return ToneConfig{
		SampleRate: 48000,
		Channels:   2,
		FrameSize:  960,
		Pattern:    ToneSine,
		Frequency:  440.0,
		Amplitude:  0.25,
	}
}

// ToneSource generates synthetic S16 audio blocks.
type ToneSource struct {
	config ToneConfig

	phase float64

	running   atomic.Bool
	ctx       context.Context
	cancel    context.CancelFunc
	samplesCh chan *AudioSamples
	doneCh    chan struct{}
	callback  AudioSamplesCallback

	mu sync.RWMutex
}

// NewToneSource creates a new synthetic audio source.
func NewToneSource(config ToneConfig) *ToneSource {
	if config.SampleRate <= 0 {
		config.SampleRate = 48000
	}
	if config.Channels <= 0 {
		config.Channels = 2
	}
	if config.FrameSize <= 0 {
		config.FrameSize = config.SampleRate / 50
	}
	if config.Frequency <= 0 {
		config.Frequency = 440.0
	}
	if config.Amplitude <= 0 {
		config.Amplitude = 0.25
	}
	if config.Amplitude > 1.0 {
		config.Amplitude = 1.0
	}

	return &ToneSource{
		config:    config,
		samplesCh: make(chan *AudioSamples, 2),
	}
}

// Start begins generating audio samples.
func (s *ToneSource) Start(ctx context.Context) error {
	if s.running.Load() {
		return fmt.Errorf("source already running")
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.doneCh = make(chan struct{})
	s.running.Store(true)
	s.phase = 0

	go s.generateLoop()

	return nil
}

// Stop stops generating audio samples.
func (s *ToneSource) Stop() error {
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
func (s *ToneSource) Close() error {
	s.Stop()
	s.mu.Lock()
	if s.samplesCh != nil {
		close(s.samplesCh)
		s.samplesCh = nil
	}
	s.mu.Unlock()
	return nil
}

// ReadSamples reads the next audio samples (blocking).
func (s *ToneSource) ReadSamples(ctx context.Context) (*AudioSamples, error) {
	s.mu.RLock()
	ch := s.samplesCh
	s.mu.RUnlock()
	if ch == nil {
		return nil, fmt.Errorf("source closed")
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case samples, ok := <-ch:
		if !ok {
			return nil, fmt.Errorf("source closed")
		}
		return samples, nil
	}
}

// SetCallback sets the push-mode callback.
func (s *ToneSource) SetCallback(cb AudioSamplesCallback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callback = cb
}

// SampleRate returns the audio sample rate.
func (s *ToneSource) SampleRate() int { return s.config.SampleRate }

// Channels returns the number of audio channels.
func (s *ToneSource) Channels() int { return s.config.Channels }

func (s *ToneSource) blockDuration() time.Duration {
	return time.Duration(s.config.FrameSize) * time.Second / time.Duration(s.config.SampleRate)
}

func (s *ToneSource) generateLoop() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.blockDuration())
	defer ticker.Stop()

	startTime := time.Now()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			samples := &AudioSamples{
				Data:        s.generateBlock(),
				SampleRate:  s.config.SampleRate,
				Channels:    s.config.Channels,
				SampleCount: s.config.FrameSize,
				Format:      AudioFormatS16,
				Timestamp:   time.Since(startTime).Nanoseconds(),
			}

			s.mu.RLock()
			cb := s.callback
			ch := s.samplesCh
			s.mu.RUnlock()

			if cb != nil {
				cb(samples)
				continue
			}
			select {
			case ch <- samples:
			default:
				// Drop if channel full
			}
		}
	}
}

// generateBlock renders one block of interleaved little-endian S16 samples.
func (s *ToneSource) generateBlock() []byte {
	data := make([]byte, s.config.FrameSize*s.config.Channels*2)
	if s.config.Pattern == ToneSilence {
		return data
	}

	phaseIncrement := 2.0 * math.Pi * s.config.Frequency / float64(s.config.SampleRate)
	amplitude := s.config.Amplitude * 32767.0

	idx := 0
	for i := 0; i < s.config.FrameSize; i++ {
		var sample int16
		switch s.config.Pattern {
		case ToneSquare:
			if math.Sin(s.phase) >= 0 {
				sample = int16(amplitude)
			} else {
				sample = -int16(amplitude)
			}
		default:
			sample = int16(amplitude * math.Sin(s.phase))
		}

		s.phase += phaseIncrement
		if s.phase > 2*math.Pi {
			s.phase -= 2 * math.Pi
		}

		for c := 0; c < s.config.Channels; c++ {
			binary.LittleEndian.PutUint16(data[idx:], uint16(sample))
			idx += 2
		}
	}
	return data
}
