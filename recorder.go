package studio

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Recorder encodes a MediaStream into chunks of a container file.
type Recorder interface {
	// Start begins encoding. Chunks are delivered through
	// RecorderOptions.OnDataAvailable.
	Start(ctx context.Context) error

	// Stop finalizes the file. Every remaining chunk has been delivered when
	// Stop returns. Stopping twice is a no-op.
	Stop() error
}

// RecorderFactory creates a recorder for a stream.
type RecorderFactory func(stream MediaStream, opts RecorderOptions) (Recorder, error)

// RecorderOptions configures a recorder.
type RecorderOptions struct {
	MimeType  string        // Container type (default: video/webm)
	Timeslice time.Duration // Chunk interval (default: 1s)

	VideoFPS    int // Encoded frame rate (default: 30)
	JPEGQuality int // Video quality 1-100 (default: 75)

	SampleRate int // Audio sample rate (default: 48000)
	Channels   int // Audio channels (default: 2)

	// OnDataAvailable receives each chunk in order.
	OnDataAvailable func(chunk []byte)

	// OnError is called at most once, with an *EncodingError.
	OnError func(err error)

	Logger zerolog.Logger
}

// MimeTypeWebM is the only container supported by the built-in recorder.
const MimeTypeWebM = "video/webm"

// DefaultRecorderOptions returns WebM options with one-second chunks.
func DefaultRecorderOptions() RecorderOptions {
	return RecorderOptions{
		MimeType:    MimeTypeWebM,
		Timeslice:   time.Second,
		VideoFPS:    30,
		JPEGQuality: 75,
		SampleRate:  48000,
		Channels:    2,
		Logger:      zerolog.Nop(),
	}
}

func (o RecorderOptions) withDefaults() RecorderOptions {
	def := DefaultRecorderOptions()
	if o.MimeType == "" {
		o.MimeType = def.MimeType
	}
	if o.Timeslice <= 0 {
		o.Timeslice = def.Timeslice
	}
	if o.VideoFPS <= 0 {
		o.VideoFPS = def.VideoFPS
	}
	if o.JPEGQuality <= 0 || o.JPEGQuality > 100 {
		o.JPEGQuality = def.JPEGQuality
	}
	if o.SampleRate <= 0 {
		o.SampleRate = def.SampleRate
	}
	if o.Channels <= 0 {
		o.Channels = def.Channels
	}
	return o
}
