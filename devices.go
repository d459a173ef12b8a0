package studio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// DeviceKind represents the type of media device.
type DeviceKind int

const (
	DeviceKindVideoInput DeviceKind = iota // Camera
	DeviceKindAudioInput                   // Microphone
	DeviceKindDisplay                      // Screen / window capture
)

func (k DeviceKind) String() string {
	switch k {
	case DeviceKindVideoInput:
		return "videoinput"
	case DeviceKindAudioInput:
		return "audioinput"
	case DeviceKindDisplay:
		return "display"
	default:
		return "unknown"
	}
}

// DeviceInfo describes a media device (like browser's MediaDeviceInfo).
type DeviceInfo struct {
	DeviceID string     // Unique identifier for the device
	Kind     DeviceKind // Device type
	Label    string     // Human-readable device name
}

// DisplayMediaOptions configures getDisplayMedia (screen capture).
type DisplayMediaOptions struct {
	Video DisplayVideoOptions
	Audio bool // Request audio from display
}

// DisplayVideoOptions configures display capture video.
type DisplayVideoOptions struct {
	Width     int // Requested width
	Height    int // Requested height
	FrameRate int // Requested framerate
}

// UserMediaOptions configures getUserMedia.
type UserMediaOptions struct {
	Video *VideoConstraints // nil = no video
	Audio *AudioConstraints // nil = no audio
}

// VideoConstraints for getUserMedia video.
type VideoConstraints struct {
	DeviceID  string // Specific device ID
	Width     int    // Requested width
	Height    int    // Requested height
	FrameRate int    // Requested framerate
}

// AudioConstraints for getUserMedia audio.
type AudioConstraints struct {
	DeviceID     string // Specific device ID
	SampleRate   int    // Requested sample rate
	ChannelCount int    // Requested channels
}

// MediaDevices provides access to media input devices (like navigator.mediaDevices).
type MediaDevices interface {
	// EnumerateDevices returns a list of available media devices.
	EnumerateDevices(ctx context.Context) ([]DeviceInfo, error)

	// GetUserMedia prompts for permission and returns a MediaStream with
	// requested audio and/or video tracks (camera/microphone).
	GetUserMedia(ctx context.Context, options UserMediaOptions) (MediaStream, error)

	// GetDisplayMedia prompts for permission and returns a MediaStream with
	// screen/window capture.
	GetDisplayMedia(ctx context.Context, options DisplayMediaOptions) (MediaStream, error)
}

// DeviceProvider is implemented by platform-specific device implementations.
type DeviceProvider interface {
	// ListVideoDevices returns available video input devices.
	ListVideoDevices(ctx context.Context) ([]DeviceInfo, error)

	// ListAudioInputDevices returns available audio input devices.
	ListAudioInputDevices(ctx context.Context) ([]DeviceInfo, error)

	// OpenVideoDevice opens a video input device.
	OpenVideoDevice(ctx context.Context, deviceID string, constraints *VideoConstraints) (VideoTrack, error)

	// OpenAudioDevice opens an audio input device.
	OpenAudioDevice(ctx context.Context, deviceID string, constraints *AudioConstraints) (AudioTrack, error)

	// CaptureDisplay captures the screen/window.
	CaptureDisplay(ctx context.Context, options DisplayVideoOptions) (VideoTrack, error)

	// CaptureDisplayAudio captures display audio (if available).
	CaptureDisplayAudio(ctx context.Context) (AudioTrack, error)
}

// deviceRegistry holds the registered device provider.
type deviceRegistry struct {
	provider DeviceProvider
	mu       sync.RWMutex
}

var globalDeviceRegistry = &deviceRegistry{}

// RegisterDeviceProvider registers a platform-specific device provider.
func RegisterDeviceProvider(provider DeviceProvider) {
	globalDeviceRegistry.mu.Lock()
	defer globalDeviceRegistry.mu.Unlock()
	globalDeviceRegistry.provider = provider
}

// GetDeviceProvider returns the registered device provider.
func GetDeviceProvider() DeviceProvider {
	globalDeviceRegistry.mu.RLock()
	defer globalDeviceRegistry.mu.RUnlock()
	return globalDeviceRegistry.provider
}

// DefaultMediaDevices is the default MediaDevices implementation. With a nil
// provider it uses whatever RegisterDeviceProvider installed.
type DefaultMediaDevices struct {
	provider DeviceProvider
}

// NewMediaDevices returns a MediaDevices backed by provider.
func NewMediaDevices(provider DeviceProvider) *DefaultMediaDevices {
	return &DefaultMediaDevices{provider: provider}
}

// GetMediaDevices returns MediaDevices over the registered provider (like navigator.mediaDevices).
func GetMediaDevices() MediaDevices {
	return &DefaultMediaDevices{}
}

func (d *DefaultMediaDevices) deviceProvider() (DeviceProvider, error) {
	if d.provider != nil {
		return d.provider, nil
	}
	if p := GetDeviceProvider(); p != nil {
		return p, nil
	}
	return nil, ErrNoDeviceProvider
}

// EnumerateDevices implements MediaDevices.
func (d *DefaultMediaDevices) EnumerateDevices(ctx context.Context) ([]DeviceInfo, error) {
	provider, err := d.deviceProvider()
	if err != nil {
		return nil, err
	}

	var devices []DeviceInfo
	if videoDevices, err := provider.ListVideoDevices(ctx); err == nil {
		devices = append(devices, videoDevices...)
	}
	if audioDevices, err := provider.ListAudioInputDevices(ctx); err == nil {
		devices = append(devices, audioDevices...)
	}
	return devices, nil
}

// GetUserMedia implements MediaDevices. Either every requested track is
// acquired or none is: a failure closes whatever was already opened.
func (d *DefaultMediaDevices) GetUserMedia(ctx context.Context, options UserMediaOptions) (MediaStream, error) {
	provider, err := d.deviceProvider()
	if err != nil {
		return nil, err
	}

	stream := NewMediaStream("")

	if options.Video != nil {
		deviceID, err := defaultDevice(ctx, DeviceKindVideoInput, options.Video.DeviceID, provider.ListVideoDevices)
		if err != nil {
			return nil, err
		}
		videoTrack, err := provider.OpenVideoDevice(ctx, deviceID, options.Video)
		if err != nil {
			return nil, acquisitionFailure(ctx, DeviceKindVideoInput, err)
		}
		stream.AddTrack(videoTrack)
	}

	if options.Audio != nil {
		deviceID, err := defaultDevice(ctx, DeviceKindAudioInput, options.Audio.DeviceID, provider.ListAudioInputDevices)
		if err != nil {
			stream.Close()
			return nil, err
		}
		audioTrack, err := provider.OpenAudioDevice(ctx, deviceID, options.Audio)
		if err != nil {
			// Close video track if we already opened it
			stream.Close()
			return nil, acquisitionFailure(ctx, DeviceKindAudioInput, err)
		}
		stream.AddTrack(audioTrack)
	}

	return stream, nil
}

// GetDisplayMedia implements MediaDevices.
func (d *DefaultMediaDevices) GetDisplayMedia(ctx context.Context, options DisplayMediaOptions) (MediaStream, error) {
	provider, err := d.deviceProvider()
	if err != nil {
		return nil, err
	}

	stream := NewMediaStream("")

	videoTrack, err := provider.CaptureDisplay(ctx, options.Video)
	if err != nil {
		return nil, acquisitionFailure(ctx, DeviceKindDisplay, err)
	}
	stream.AddTrack(videoTrack)

	if options.Audio {
		// Display audio is optional, as in browsers.
		if audioTrack, err := provider.CaptureDisplayAudio(ctx); err == nil {
			stream.AddTrack(audioTrack)
		}
	}

	return stream, nil
}

func defaultDevice(ctx context.Context, kind DeviceKind, requested string, list func(context.Context) ([]DeviceInfo, error)) (string, error) {
	if requested != "" {
		return requested, nil
	}
	devices, err := list(ctx)
	if err != nil {
		return "", acquisitionFailure(ctx, kind, err)
	}
	if len(devices) == 0 {
		return "", &AcquisitionError{Device: kind, Reason: ReasonNotFound}
	}
	return devices[0].DeviceID, nil
}

// acquisitionFailure normalizes provider errors into *AcquisitionError.
func acquisitionFailure(ctx context.Context, kind DeviceKind, err error) error {
	var acqErr *AcquisitionError
	switch {
	case errors.As(err, &acqErr):
		return err
	case errors.Is(err, ErrPermissionDenied):
		return &AcquisitionError{Device: kind, Reason: ReasonPermissionDenied, Err: err}
	case errors.Is(err, ErrDeviceNotFound):
		return &AcquisitionError{Device: kind, Reason: ReasonNotFound, Err: err}
	case errors.Is(err, ErrUserCancelled), ctx.Err() != nil:
		return &AcquisitionError{Device: kind, Reason: ReasonUserCancelled, Err: err}
	default:
		return fmt.Errorf("acquire %s: %w", kind, err)
	}
}

// PermissionFunc decides whether an acquisition of kind is granted. It may
// block to model a user prompt and returns nil to grant access.
type PermissionFunc func(ctx context.Context, kind DeviceKind) error

// SyntheticDevicesConfig configures the synthetic device provider.
type SyntheticDevicesConfig struct {
	Cameras     int // Number of cameras (default: 1, negative = none)
	Microphones int // Number of microphones (default: 1, negative = none)

	Camera     TestPatternConfig
	Microphone ToneConfig
	Display    TestPatternConfig

	// Permission is consulted before every open; nil grants everything.
	Permission PermissionFunc

	// PromptDelay simulates the time a user takes to answer a prompt.
	PromptDelay time.Duration
}

// DefaultSyntheticDevicesConfig returns one camera, one microphone and a display.
func DefaultSyntheticDevicesConfig() SyntheticDevicesConfig {
	camera := DefaultTestPatternConfig()
	camera.Pattern = PatternMovingBox
	camera.R, camera.G, camera.B = 40, 200, 80

	display := DefaultTestPatternConfig()
	display.Width, display.Height = 1280, 720
	display.FPS = 15
	display.Pattern = PatternColorBars

	return SyntheticDevicesConfig{
		Cameras:     1,
		Microphones: 1,
		Camera:      camera,
		Microphone:  DefaultToneConfig(),
		Display:     display,
	}
}

// SyntheticDevices is a DeviceProvider whose devices are test pattern and
// tone generators. It stands in for real capture hardware.
type SyntheticDevices struct {
	config  SyntheticDevicesConfig
	sources *SourceCatalog
}

// NewSyntheticDevices creates a synthetic device provider.
func NewSyntheticDevices(config SyntheticDevicesConfig) *SyntheticDevices {
	if config.Cameras == 0 {
		config.Cameras = 1
	}
	if config.Microphones == 0 {
		config.Microphones = 1
	}
	p := &SyntheticDevices{config: config, sources: NewSourceCatalog()}
	p.sources.RegisterVideo(SourceTypeCamera, func(sc SourceConfig) (VideoSource, error) {
		return newTestPatternSource(withSourceConfig(p.config.Camera, sc), SourceTypeCamera), nil
	})
	p.sources.RegisterVideo(SourceTypeScreen, func(sc SourceConfig) (VideoSource, error) {
		return newTestPatternSource(withSourceConfig(p.config.Display, sc), SourceTypeScreen), nil
	})
	p.sources.RegisterAudio(SourceTypeMicrophone, func(ac AudioSourceConfig) (AudioSource, error) {
		cfg := p.config.Microphone
		if ac.SampleRate > 0 {
			cfg.SampleRate = ac.SampleRate
		}
		if ac.Channels > 0 {
			cfg.Channels = ac.Channels
		}
		return NewToneSource(cfg), nil
	})
	return p
}

// Sources returns the catalog the devices are opened from. Registering a
// factory for SourceTypeCamera, SourceTypeScreen or SourceTypeMicrophone
// replaces the synthetic generator behind that device kind.
func (p *SyntheticDevices) Sources() *SourceCatalog {
	return p.sources
}

func withSourceConfig(cfg TestPatternConfig, sc SourceConfig) TestPatternConfig {
	if sc.Width > 0 {
		cfg.Width = sc.Width
	}
	if sc.Height > 0 {
		cfg.Height = sc.Height
	}
	if sc.FPS > 0 {
		cfg.FPS = sc.FPS
	}
	return cfg
}

func (p *SyntheticDevices) ListVideoDevices(ctx context.Context) ([]DeviceInfo, error) {
	return listSynthetic(DeviceKindVideoInput, "camera", "Synthetic Camera", p.config.Cameras), nil
}

func (p *SyntheticDevices) ListAudioInputDevices(ctx context.Context) ([]DeviceInfo, error) {
	return listSynthetic(DeviceKindAudioInput, "mic", "Synthetic Microphone", p.config.Microphones), nil
}

func listSynthetic(kind DeviceKind, prefix, label string, n int) []DeviceInfo {
	var devices []DeviceInfo
	for i := 0; i < n; i++ {
		devices = append(devices, DeviceInfo{
			DeviceID: fmt.Sprintf("%s-%d", prefix, i),
			Kind:     kind,
			Label:    fmt.Sprintf("%s %d", label, i),
		})
	}
	return devices
}

func (p *SyntheticDevices) OpenVideoDevice(ctx context.Context, deviceID string, constraints *VideoConstraints) (VideoTrack, error) {
	if err := p.lookup(ctx, DeviceKindVideoInput, deviceID, p.ListVideoDevices); err != nil {
		return nil, err
	}
	sc := SourceConfig{Format: PixelFormatI420}
	if constraints != nil {
		sc.Width, sc.Height, sc.FPS = constraints.Width, constraints.Height, constraints.FrameRate
	}
	return p.openVideo(ctx, SourceTypeCamera, sc, "camera "+deviceID, deviceID)
}

func (p *SyntheticDevices) OpenAudioDevice(ctx context.Context, deviceID string, constraints *AudioConstraints) (AudioTrack, error) {
	if err := p.lookup(ctx, DeviceKindAudioInput, deviceID, p.ListAudioInputDevices); err != nil {
		return nil, err
	}
	var ac AudioSourceConfig
	if constraints != nil {
		ac.SampleRate, ac.Channels = constraints.SampleRate, constraints.ChannelCount
	}
	source, err := p.sources.OpenAudio(SourceTypeMicrophone, ac)
	if err != nil {
		return nil, err
	}
	track, err := NewSourceAudioTrack(ctx, source, "microphone "+deviceID, deviceID)
	if err != nil {
		source.Close()
		return nil, err
	}
	return track, nil
}

func (p *SyntheticDevices) CaptureDisplay(ctx context.Context, options DisplayVideoOptions) (VideoTrack, error) {
	if err := p.prompt(ctx, DeviceKindDisplay); err != nil {
		return nil, err
	}
	sc := SourceConfig{
		Width:  options.Width,
		Height: options.Height,
		FPS:    options.FrameRate,
		Format: PixelFormatI420,
	}
	return p.openVideo(ctx, SourceTypeScreen, sc, "screen", "display-0")
}

func (p *SyntheticDevices) openVideo(ctx context.Context, stype SourceType, sc SourceConfig, label, deviceID string) (VideoTrack, error) {
	source, err := p.sources.OpenVideo(stype, sc)
	if err != nil {
		return nil, err
	}
	track, err := NewSourceVideoTrack(ctx, source, label, deviceID)
	if err != nil {
		source.Close()
		return nil, err
	}
	return track, nil
}

func (p *SyntheticDevices) CaptureDisplayAudio(ctx context.Context) (AudioTrack, error) {
	return nil, &AcquisitionError{Device: DeviceKindDisplay, Reason: ReasonNotFound}
}

func (p *SyntheticDevices) lookup(ctx context.Context, kind DeviceKind, deviceID string, list func(context.Context) ([]DeviceInfo, error)) error {
	devices, err := list(ctx)
	if err != nil {
		return acquisitionFailure(ctx, kind, err)
	}
	found := false
	for _, d := range devices {
		if d.DeviceID == deviceID {
			found = true
			break
		}
	}
	if !found {
		return &AcquisitionError{Device: kind, Reason: ReasonNotFound, Err: fmt.Errorf("no device %q", deviceID)}
	}
	return p.prompt(ctx, kind)
}

// prompt waits out the simulated prompt and asks the permission hook.
func (p *SyntheticDevices) prompt(ctx context.Context, kind DeviceKind) error {
	if p.config.PromptDelay > 0 {
		timer := time.NewTimer(p.config.PromptDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return &AcquisitionError{Device: kind, Reason: ReasonUserCancelled, Err: ctx.Err()}
		case <-timer.C:
		}
	}
	if err := ctx.Err(); err != nil {
		return &AcquisitionError{Device: kind, Reason: ReasonUserCancelled, Err: err}
	}
	if p.config.Permission == nil {
		return nil
	}
	if err := p.config.Permission(ctx, kind); err != nil {
		return acquisitionFailure(ctx, kind, err)
	}
	return nil
}
