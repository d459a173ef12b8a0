package studio

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
)

// SourceType identifies the type of media source.
type SourceType int

const (
	SourceTypeUnknown     SourceType = iota
	SourceTypeCamera                 // Camera capture
	SourceTypeScreen                 // Screen capture
	SourceTypeTestPattern            // Synthetic test pattern generator
	SourceTypeMicrophone             // Microphone capture
)

func (s SourceType) String() string {
	switch s {
	case SourceTypeCamera:
		return "Camera"
	case SourceTypeScreen:
		return "Screen"
	case SourceTypeTestPattern:
		return "TestPattern"
	case SourceTypeMicrophone:
		return "Microphone"
	default:
		return "Unknown"
	}
}

// SourceConfig describes a media source's capabilities and configuration.
type SourceConfig struct {
	Width      int         // Frame width in pixels
	Height     int         // Frame height in pixels
	FPS        int         // Frames per second
	Format     PixelFormat // Pixel format
	SourceType SourceType  // Type of source
}

// AudioSourceConfig is the format requested from an audio source.
type AudioSourceConfig struct {
	SampleRate int // 0 = source default
	Channels   int // 0 = source default
}

// VideoFrameCallback is called when a frame is available (push mode).
type VideoFrameCallback func(frame *VideoFrame)

// VideoSource produces raw video frames.
type VideoSource interface {
	io.Closer

	// Start begins capture/generation.
	Start(ctx context.Context) error

	// Stop halts capture/generation.
	Stop() error

	// ReadFrame reads the next frame (blocking).
	// The returned frame is valid until the next ReadFrame call or Close.
	ReadFrame(ctx context.Context) (*VideoFrame, error)

	// SetCallback sets push-mode callback for frame delivery.
	// When set, frames are pushed to the callback instead of being buffered.
	SetCallback(cb VideoFrameCallback)

	// Config returns the source configuration.
	Config() SourceConfig
}

// AudioSamplesCallback is called when audio samples are available (push mode).
type AudioSamplesCallback func(samples *AudioSamples)

// AudioSource produces raw audio samples.
type AudioSource interface {
	io.Closer

	// Start begins capture/generation.
	Start(ctx context.Context) error

	// Stop halts capture/generation.
	Stop() error

	// ReadSamples reads the next audio samples (blocking).
	ReadSamples(ctx context.Context) (*AudioSamples, error)

	// SetCallback sets push-mode callback for sample delivery.
	SetCallback(cb AudioSamplesCallback)

	// SampleRate returns the audio sample rate.
	SampleRate() int

	// Channels returns the number of audio channels.
	Channels() int
}

// VideoSourceFactory opens a video source. Zero fields of config mean the
// factory's own defaults.
type VideoSourceFactory func(config SourceConfig) (VideoSource, error)

// AudioSourceFactory opens an audio source.
type AudioSourceFactory func(config AudioSourceConfig) (AudioSource, error)

// SourceCatalog maps source types to the factories that open them. A device
// provider owns one and opens every device through it, so callers can swap
// the generator behind a device kind.
type SourceCatalog struct {
	mu    sync.RWMutex
	video map[SourceType]VideoSourceFactory
	audio map[SourceType]AudioSourceFactory
}

// NewSourceCatalog returns an empty catalog.
func NewSourceCatalog() *SourceCatalog {
	return &SourceCatalog{
		video: make(map[SourceType]VideoSourceFactory),
		audio: make(map[SourceType]AudioSourceFactory),
	}
}

// RegisterVideo sets the factory for stype, replacing any previous one.
func (c *SourceCatalog) RegisterVideo(stype SourceType, factory VideoSourceFactory) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.video[stype] = factory
}

// RegisterAudio sets the factory for stype, replacing any previous one.
func (c *SourceCatalog) RegisterAudio(stype SourceType, factory AudioSourceFactory) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.audio[stype] = factory
}

// OpenVideo creates a video source of stype. A type without a factory
// reports ErrDeviceNotFound.
func (c *SourceCatalog) OpenVideo(stype SourceType, config SourceConfig) (VideoSource, error) {
	c.mu.RLock()
	factory, ok := c.video[stype]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: no %s video source", ErrDeviceNotFound, stype)
	}
	config.SourceType = stype
	return factory(config)
}

// OpenAudio creates an audio source of stype.
func (c *SourceCatalog) OpenAudio(stype SourceType, config AudioSourceConfig) (AudioSource, error) {
	c.mu.RLock()
	factory, ok := c.audio[stype]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: no %s audio source", ErrDeviceNotFound, stype)
	}
	return factory(config)
}

// VideoTypes lists the video source types with a factory, in order.
func (c *SourceCatalog) VideoTypes() []SourceType {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return sortedTypes(c.video)
}

// AudioTypes lists the audio source types with a factory, in order.
func (c *SourceCatalog) AudioTypes() []SourceType {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return sortedTypes(c.audio)
}

func sortedTypes[F any](m map[SourceType]F) []SourceType {
	types := make([]SourceType, 0, len(m))
	for t := range m {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}
