package studio

import (
	"testing"
)

func TestPixelFormat_String(t *testing.T) {
	tests := []struct {
		format PixelFormat
		want   string
	}{
		{PixelFormatI420, "I420"},
		{PixelFormat(99), "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.format.String(); got != tt.want {
				t.Errorf("PixelFormat.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAudioFormat_BytesPerSample(t *testing.T) {
	tests := []struct {
		format AudioFormat
		want   int
	}{
		{AudioFormatS16, 2},
		{AudioFormat(99), 0},
	}

	for _, tt := range tests {
		t.Run(tt.format.String(), func(t *testing.T) {
			if got := tt.format.BytesPerSample(); got != tt.want {
				t.Errorf("AudioFormat.BytesPerSample() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestI420Size(t *testing.T) {
	tests := []struct {
		width, height int
		want          int
	}{
		{1920, 1080, 1920*1080 + 2*(960*540)},
		{1280, 720, 1280*720 + 2*(640*360)},
		{640, 480, 640*480 + 2*(320*240)},
		{266, 200, 266*200 + 2*(133*100)},
	}

	for _, tt := range tests {
		t.Run("", func(t *testing.T) {
			if got := I420Size(tt.width, tt.height); got != tt.want {
				t.Errorf("I420Size(%d, %d) = %v, want %v", tt.width, tt.height, got, tt.want)
			}
		})
	}
}

func TestNewI420Frame(t *testing.T) {
	f := NewI420Frame(1280, 720)
	if f.Width != 1280 || f.Height != 720 {
		t.Fatalf("dimensions = %dx%d, want 1280x720", f.Width, f.Height)
	}
	if len(f.Data[0]) != 1280*720 || len(f.Data[1]) != 640*360 || len(f.Data[2]) != 640*360 {
		t.Errorf("plane sizes = %d/%d/%d", len(f.Data[0]), len(f.Data[1]), len(f.Data[2]))
	}
	if f.Stride[0] != 1280 || f.Stride[1] != 640 || f.Stride[2] != 640 {
		t.Errorf("strides = %v", f.Stride)
	}

	f.Fill(16, 128, 128)
	for i, want := range []byte{16, 128, 128} {
		for j, v := range f.Data[i] {
			if v != want {
				t.Fatalf("plane %d index %d = %d, want %d", i, j, v, want)
			}
		}
	}
}

func TestVideoFrame_Clone(t *testing.T) {
	original := &VideoFrame{
		Data: [][]byte{
			{1, 2, 3, 4},
			{5},
			{7},
		},
		Stride:    []int{2, 1, 1},
		Width:     2,
		Height:    2,
		Format:    PixelFormatI420,
		Timestamp: 12345,
		Duration:  33333,
	}

	clone := original.Clone()

	if clone.Width != original.Width || clone.Height != original.Height {
		t.Error("Clone dimensions mismatch")
	}
	if clone.Timestamp != original.Timestamp || clone.Duration != original.Duration {
		t.Error("Clone timing mismatch")
	}
	for i := range original.Data {
		for j := range original.Data[i] {
			if clone.Data[i][j] != original.Data[i][j] {
				t.Errorf("Clone data mismatch at plane %d, index %d", i, j)
			}
		}
	}

	// Verify independence (modify clone, original unchanged)
	clone.Data[0][0] = 99
	if original.Data[0][0] == 99 {
		t.Error("Clone is not independent from original")
	}
}

func TestAudioSamples_Clone(t *testing.T) {
	original := &AudioSamples{
		Data:        []byte{0x00, 0x01, 0x02, 0x03},
		SampleRate:  48000,
		Channels:    2,
		SampleCount: 1,
		Format:      AudioFormatS16,
		Timestamp:   12345,
	}

	clone := original.Clone()

	if clone.SampleRate != original.SampleRate || clone.Channels != original.Channels {
		t.Error("Clone format mismatch")
	}
	if len(clone.Data) != len(original.Data) {
		t.Error("Clone data length mismatch")
	}

	clone.Data[0] = 0xFF
	if original.Data[0] == 0xFF {
		t.Error("Clone is not independent from original")
	}
}

func BenchmarkVideoFrame_Clone(b *testing.B) {
	frame := NewI420Frame(1280, 720)

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		_ = frame.Clone()
	}
}
