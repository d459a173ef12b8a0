package studio

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// trackingDevices wraps a provider and remembers every opened track.
type trackingDevices struct {
	DeviceProvider

	mu     sync.Mutex
	opened []MediaStreamTrack
}

func (d *trackingDevices) OpenVideoDevice(ctx context.Context, id string, c *VideoConstraints) (VideoTrack, error) {
	track, err := d.DeviceProvider.OpenVideoDevice(ctx, id, c)
	if err == nil {
		d.mu.Lock()
		d.opened = append(d.opened, track)
		d.mu.Unlock()
	}
	return track, err
}

func denyKind(denied DeviceKind) PermissionFunc {
	return func(ctx context.Context, kind DeviceKind) error {
		if kind == denied {
			return ErrPermissionDenied
		}
		return nil
	}
}

func TestSyntheticDevices_Enumerate(t *testing.T) {
	config := DefaultSyntheticDevicesConfig()
	config.Cameras = 2
	devices, err := NewMediaDevices(NewSyntheticDevices(config)).EnumerateDevices(context.Background())
	if err != nil {
		t.Fatalf("EnumerateDevices: %v", err)
	}
	var cams, mics int
	for _, d := range devices {
		switch d.Kind {
		case DeviceKindVideoInput:
			cams++
		case DeviceKindAudioInput:
			mics++
		}
	}
	if cams != 2 || mics != 1 {
		t.Errorf("cameras = %d, microphones = %d; want 2, 1", cams, mics)
	}
}

func TestGetUserMedia(t *testing.T) {
	md := NewMediaDevices(NewSyntheticDevices(DefaultSyntheticDevicesConfig()))
	stream, err := md.GetUserMedia(context.Background(), UserMediaOptions{
		Video: &VideoConstraints{Width: 320, Height: 240},
		Audio: &AudioConstraints{},
	})
	if err != nil {
		t.Fatalf("GetUserMedia: %v", err)
	}
	defer stream.Close()

	if len(stream.GetVideoTracks()) != 1 || len(stream.GetAudioTracks()) != 1 {
		t.Fatalf("tracks = %d video, %d audio", len(stream.GetVideoTracks()), len(stream.GetAudioTracks()))
	}
	if s := stream.GetVideoTracks()[0].Settings(); s.Width != 320 || s.Height != 240 {
		t.Errorf("video settings = %+v", s)
	}
}

func TestGetUserMedia_Failures(t *testing.T) {
	tests := []struct {
		name   string
		config func(*SyntheticDevicesConfig)
		ctx    func() (context.Context, context.CancelFunc)
		want   error
		reason AcquisitionReason
	}{
		{
			name:   "camera denied",
			config: func(c *SyntheticDevicesConfig) { c.Permission = denyKind(DeviceKindVideoInput) },
			want:   ErrPermissionDenied,
			reason: ReasonPermissionDenied,
		},
		{
			name:   "microphone denied",
			config: func(c *SyntheticDevicesConfig) { c.Permission = denyKind(DeviceKindAudioInput) },
			want:   ErrPermissionDenied,
			reason: ReasonPermissionDenied,
		},
		{
			name:   "no camera",
			config: func(c *SyntheticDevicesConfig) { c.Cameras = -1 },
			want:   ErrDeviceNotFound,
			reason: ReasonNotFound,
		},
		{
			name:   "no microphone",
			config: func(c *SyntheticDevicesConfig) { c.Microphones = -1 },
			want:   ErrDeviceNotFound,
			reason: ReasonNotFound,
		},
		{
			name:   "prompt dismissed",
			config: func(c *SyntheticDevicesConfig) { c.PromptDelay = time.Hour },
			ctx: func() (context.Context, context.CancelFunc) {
				return context.WithTimeout(context.Background(), 20*time.Millisecond)
			},
			want:   ErrUserCancelled,
			reason: ReasonUserCancelled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultSyntheticDevicesConfig()
			tt.config(&config)
			provider := &trackingDevices{DeviceProvider: NewSyntheticDevices(config)}

			ctx, cancel := context.Background(), context.CancelFunc(func() {})
			if tt.ctx != nil {
				ctx, cancel = tt.ctx()
			}
			defer cancel()

			stream, err := NewMediaDevices(provider).GetUserMedia(ctx, UserMediaOptions{
				Video: &VideoConstraints{},
				Audio: &AudioConstraints{},
			})
			if stream != nil {
				t.Error("failed acquisition returned a stream")
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			var acqErr *AcquisitionError
			if !errors.As(err, &acqErr) || acqErr.Reason != tt.reason {
				t.Errorf("err = %#v, want reason %s", err, tt.reason)
			}

			// Nothing acquired may stay open
			for _, track := range provider.opened {
				if track.State() != TrackStateEnded {
					t.Errorf("track %s left %s", track.ID(), track.State())
				}
			}
		})
	}
}

func TestGetUserMedia_RollbackClosesCamera(t *testing.T) {
	config := DefaultSyntheticDevicesConfig()
	config.Permission = denyKind(DeviceKindAudioInput)
	provider := &trackingDevices{DeviceProvider: NewSyntheticDevices(config)}

	_, err := NewMediaDevices(provider).GetUserMedia(context.Background(), UserMediaOptions{
		Video: &VideoConstraints{},
		Audio: &AudioConstraints{},
	})
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("err = %v, want ErrPermissionDenied", err)
	}
	if len(provider.opened) != 1 {
		t.Fatalf("opened %d cameras, want 1", len(provider.opened))
	}
	if provider.opened[0].State() != TrackStateEnded {
		t.Error("camera opened before the denial was not closed")
	}
}

func TestGetDisplayMedia(t *testing.T) {
	config := DefaultSyntheticDevicesConfig()
	md := NewMediaDevices(NewSyntheticDevices(config))

	stream, err := md.GetDisplayMedia(context.Background(), DisplayMediaOptions{Audio: true})
	if err != nil {
		t.Fatalf("GetDisplayMedia: %v", err)
	}
	defer stream.Close()
	if len(stream.GetVideoTracks()) != 1 {
		t.Fatal("no display video track")
	}
	if len(stream.GetAudioTracks()) != 0 {
		t.Error("synthetic display has no audio")
	}

	config.Permission = denyKind(DeviceKindDisplay)
	md = NewMediaDevices(NewSyntheticDevices(config))
	_, err = md.GetDisplayMedia(context.Background(), DisplayMediaOptions{})
	var acqErr *AcquisitionError
	if !errors.As(err, &acqErr) || acqErr.Device != DeviceKindDisplay || !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("err = %v, want display permission denied", err)
	}
}

func TestMediaDevices_NoProvider(t *testing.T) {
	RegisterDeviceProvider(nil)
	_, err := GetMediaDevices().GetUserMedia(context.Background(), UserMediaOptions{Video: &VideoConstraints{}})
	if !errors.Is(err, ErrNoDeviceProvider) {
		t.Errorf("err = %v, want ErrNoDeviceProvider", err)
	}

	RegisterDeviceProvider(NewSyntheticDevices(DefaultSyntheticDevicesConfig()))
	defer RegisterDeviceProvider(nil)
	stream, err := GetMediaDevices().GetUserMedia(context.Background(), UserMediaOptions{Audio: &AudioConstraints{}})
	if err != nil {
		t.Fatalf("GetUserMedia with registered provider: %v", err)
	}
	stream.Close()
}

func TestAcquisitionError(t *testing.T) {
	err := &AcquisitionError{Device: DeviceKindVideoInput, Reason: ReasonNotFound}
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Error("not found error should match ErrDeviceNotFound")
	}
	if errors.Is(err, ErrPermissionDenied) {
		t.Error("not found error should not match ErrPermissionDenied")
	}
	if got, want := err.Error(), "acquire videoinput: not found"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestSyntheticDevices_ListErrorIsReported(t *testing.T) {
	p := NewSyntheticDevices(DefaultSyntheticDevicesConfig())
	failing := func(err error) func(context.Context) ([]DeviceInfo, error) {
		return func(context.Context) ([]DeviceInfo, error) { return nil, err }
	}

	err := p.lookup(context.Background(), DeviceKindVideoInput, "camera-0", failing(ErrPermissionDenied))
	if !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("denied listing: err = %v, want ErrPermissionDenied", err)
	}

	busy := errors.New("device busy")
	err = p.lookup(context.Background(), DeviceKindVideoInput, "camera-0", failing(busy))
	if !errors.Is(err, busy) {
		t.Errorf("err = %v, want the listing error", err)
	}
	if errors.Is(err, ErrDeviceNotFound) {
		t.Error("a failed listing must not be reported as not found")
	}
}
