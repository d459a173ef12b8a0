package studio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"strings"
	"sync"
	"time"

	"github.com/at-wat/ebml-go/mkvcore"
	"github.com/at-wat/ebml-go/webm"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/rs/zerolog"
)

// WebM track layout.
const (
	webmTrackTypeVideo = 1
	webmTrackTypeAudio = 2

	codecMJPEG = "V_MJPEG"
	codecPCM   = "A_PCM/INT/LIT"

	// MJPEG and PCM are outside the WebM codec subset
	docTypeMatroska = "matroska"

	audioBlockDuration = 20 * time.Millisecond
	muxerCloseTimeout  = 5 * time.Second
)

type recorderState int

const (
	recorderNew recorderState = iota
	recorderStarted
	recorderStopped
)

// chunkSink collects muxer output between timeslices.
type chunkSink struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	closed chan struct{}
	once   sync.Once
}

func newChunkSink() *chunkSink {
	return &chunkSink{closed: make(chan struct{})}
}

func (s *chunkSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

// Close is called by the muxer once every track is closed.
func (s *chunkSink) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

func (s *chunkSink) take() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.buf.Len() == 0 {
		return nil
	}
	out := bytes.Clone(s.buf.Bytes())
	s.buf.Reset()
	return out
}

// audioInput buffers one track's PCM between reads and mix ticks.
type audioInput struct {
	track AudioTrack
	limit int

	mu  sync.Mutex
	buf []byte
}

func (in *audioInput) push(p []byte) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.buf = append(in.buf, p...)
	if over := len(in.buf) - in.limit; over > 0 {
		// Drop the oldest audio when the mixer falls behind
		in.buf = append(in.buf[:0], in.buf[over:]...)
	}
}

func (in *audioInput) pop(n int) []byte {
	in.mu.Lock()
	defer in.mu.Unlock()
	k := min(n, len(in.buf))
	out := bytes.Clone(in.buf[:k])
	in.buf = append(in.buf[:0], in.buf[k:]...)
	return out
}

// WebMRecorder records the first video track of a stream as MJPEG and the
// mixdown of its audio tracks as PCM, using the WebM block writer with a
// matroska EBML header.
type WebMRecorder struct {
	stream MediaStream
	opts   RecorderOptions
	log    zerolog.Logger

	sink   *chunkSink
	video  webm.BlockWriteCloser
	audio  webm.BlockWriteCloser
	tracks []webm.BlockWriteCloser
	inputs []*audioInput

	start     time.Time
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	flushStop chan struct{}
	flushDone chan struct{}
	deliverMu sync.Mutex
	errOnce   sync.Once
	err       error

	mu    sync.Mutex
	state recorderState
}

// NewWebMRecorder creates a WebM recorder for stream. It satisfies RecorderFactory.
func NewWebMRecorder(stream MediaStream, opts RecorderOptions) (Recorder, error) {
	if stream == nil {
		return nil, &EncodingError{Err: errors.New("nil stream")}
	}
	opts = opts.withDefaults()
	if !strings.HasPrefix(opts.MimeType, MimeTypeWebM) {
		return nil, &EncodingError{Err: fmt.Errorf("unsupported mime type %q", opts.MimeType)}
	}
	return &WebMRecorder{
		stream: stream,
		opts:   opts,
		log:    opts.Logger.With().Str("component", "recorder").Str("stream", stream.ID()).Logger(),
	}, nil
}

// Start implements Recorder.
func (r *WebMRecorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != recorderNew {
		return &EncodingError{Err: errors.New("recorder already started")}
	}

	var entries []webm.TrackEntry
	videoTracks := r.stream.GetVideoTracks()
	audioTracks := r.stream.GetAudioTracks()

	if len(videoTracks) > 0 {
		settings := videoTracks[0].Settings()
		entries = append(entries, webm.TrackEntry{
			Name:            "Video",
			TrackNumber:     uint64(len(entries) + 1),
			TrackUID:        uint64(len(entries) + 1),
			CodecID:         codecMJPEG,
			TrackType:       webmTrackTypeVideo,
			DefaultDuration: uint64(time.Second / time.Duration(r.opts.VideoFPS)),
			Video: &webm.Video{
				PixelWidth:  uint64(settings.Width),
				PixelHeight: uint64(settings.Height),
			},
		})
	}
	if len(audioTracks) > 0 {
		entries = append(entries, webm.TrackEntry{
			Name:            "Audio",
			TrackNumber:     uint64(len(entries) + 1),
			TrackUID:        uint64(len(entries) + 1),
			CodecID:         codecPCM,
			TrackType:       webmTrackTypeAudio,
			DefaultDuration: uint64(audioBlockDuration),
			Audio: &webm.Audio{
				SamplingFrequency: float64(r.opts.SampleRate),
				Channels:          uint64(r.opts.Channels),
			},
		})
	}
	if len(entries) == 0 {
		return &EncodingError{Err: errors.New("stream has no tracks")}
	}

	r.sink = newChunkSink()
	writers, err := webm.NewSimpleBlockWriter(r.sink, entries, mkvcore.WithEBMLHeader(matroskaHeader()))
	if err != nil {
		return &EncodingError{Err: fmt.Errorf("create webm writer: %w", err)}
	}
	r.tracks = writers
	idx := 0
	if len(videoTracks) > 0 {
		r.video = writers[idx]
		idx++
	}
	if len(audioTracks) > 0 {
		r.audio = writers[idx]
	}

	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.start = time.Now()
	r.state = recorderStarted

	if r.video != nil {
		r.wg.Add(1)
		go r.videoLoop(runCtx, videoTracks[0])
	}
	if r.audio != nil {
		// Keep at most one second of audio per input
		limit := r.opts.SampleRate * r.opts.Channels * AudioFormatS16.BytesPerSample()
		for _, t := range audioTracks {
			in := &audioInput{track: t, limit: limit}
			r.inputs = append(r.inputs, in)
			r.wg.Add(1)
			go r.readAudio(runCtx, in)
		}
		r.wg.Add(1)
		go r.mixLoop(runCtx)
	}

	r.flushStop = make(chan struct{})
	r.flushDone = make(chan struct{})
	go r.flushLoop()

	r.log.Info().
		Int("videoTracks", len(videoTracks)).
		Int("audioTracks", len(audioTracks)).
		Dur("timeslice", r.opts.Timeslice).
		Msg("recording started")
	return nil
}

// Stop implements Recorder.
func (r *WebMRecorder) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != recorderStarted {
		return nil
	}
	r.state = recorderStopped

	r.cancel()
	r.wg.Wait()

	var errs []error
	if r.err != nil {
		errs = append(errs, r.err)
	}
	for _, w := range r.tracks {
		if err := w.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	// The muxer closes the sink once the last cluster is written
	timer := time.NewTimer(muxerCloseTimeout)
	select {
	case <-r.sink.closed:
	case <-timer.C:
		errs = append(errs, errors.New("timed out finalizing container"))
	}
	timer.Stop()

	close(r.flushStop)
	<-r.flushDone
	r.deliver(r.sink.take())

	r.log.Info().Dur("duration", time.Since(r.start)).Msg("recording stopped")
	if err := errors.Join(errs...); err != nil {
		return &EncodingError{Err: err}
	}
	return nil
}

func matroskaHeader() *webm.EBMLHeader {
	return &webm.EBMLHeader{
		EBMLVersion:        1,
		EBMLReadVersion:    1,
		EBMLMaxIDLength:    4,
		EBMLMaxSizeLength:  8,
		DocType:            docTypeMatroska,
		DocTypeVersion:     4,
		DocTypeReadVersion: 2,
	}
}

func (r *WebMRecorder) videoLoop(ctx context.Context, track VideoTrack) {
	defer r.wg.Done()

	ticker := time.NewTicker(time.Second / time.Duration(r.opts.VideoFPS))
	defer ticker.Stop()

	var last *VideoFrame
	var buf bytes.Buffer
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			frame := track.CurrentFrame()
			if frame == nil || frame == last {
				continue
			}
			last = frame

			sample, err := r.encodeFrame(&buf, frame)
			if err == nil {
				err = r.writeSample(r.video, true, sample)
			}
			if err != nil {
				r.fail(err)
				return
			}
		}
	}
}

// encodeFrame compresses one I420 frame to a JPEG picture.
func (r *WebMRecorder) encodeFrame(buf *bytes.Buffer, frame *VideoFrame) (media.Sample, error) {
	img := &image.YCbCr{
		Y:              frame.Data[0],
		Cb:             frame.Data[1],
		Cr:             frame.Data[2],
		YStride:        frame.Stride[0],
		CStride:        frame.Stride[1],
		SubsampleRatio: image.YCbCrSubsampleRatio420,
		Rect:           image.Rect(0, 0, frame.Width, frame.Height),
	}
	buf.Reset()
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: r.opts.JPEGQuality}); err != nil {
		return media.Sample{}, fmt.Errorf("encode frame: %w", err)
	}
	return media.Sample{
		Data:      bytes.Clone(buf.Bytes()),
		Timestamp: time.Now(),
		Duration:  time.Duration(frame.Duration),
	}, nil
}

func (r *WebMRecorder) readAudio(ctx context.Context, in *audioInput) {
	defer r.wg.Done()

	warned := false
	for {
		samples, err := in.track.ReadSamples(ctx)
		if err != nil {
			return
		}
		if samples == nil {
			continue
		}
		if samples.Format != AudioFormatS16 || samples.SampleRate != r.opts.SampleRate || samples.Channels != r.opts.Channels {
			if !warned {
				r.log.Warn().
					Str("track", in.track.ID()).
					Int("sampleRate", samples.SampleRate).
					Int("channels", samples.Channels).
					Msg("skipping audio in unsupported format")
				warned = true
			}
			continue
		}
		in.push(samples.Data)
	}
}

func (r *WebMRecorder) mixLoop(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(audioBlockDuration)
	defer ticker.Stop()

	frameBytes := r.opts.Channels * AudioFormatS16.BytesPerSample()
	blockFrames := r.opts.SampleRate * int(audioBlockDuration/time.Millisecond) / 1000
	out := make([]byte, blockFrames*frameBytes)
	var written int64

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			inputs := make([][]byte, 0, len(r.inputs))
			for _, in := range r.inputs {
				data := in.pop(len(out))
				if !in.track.Enabled() {
					continue
				}
				inputs = append(inputs, data)
			}
			MixPCM(out, inputs...)

			sample := media.Sample{
				Data:      bytes.Clone(out),
				Timestamp: r.start.Add(time.Duration(written) * time.Second / time.Duration(r.opts.SampleRate)),
				Duration:  audioBlockDuration,
			}
			written += int64(blockFrames)
			if err := r.writeSample(r.audio, true, sample); err != nil {
				r.fail(err)
				return
			}
		}
	}
}

func (r *WebMRecorder) writeSample(w webm.BlockWriteCloser, keyframe bool, sample media.Sample) error {
	ts := sample.Timestamp.Sub(r.start).Milliseconds()
	if _, err := w.Write(keyframe, ts, sample.Data); err != nil {
		return fmt.Errorf("write block: %w", err)
	}
	return nil
}

func (r *WebMRecorder) flushLoop() {
	defer close(r.flushDone)

	ticker := time.NewTicker(r.opts.Timeslice)
	defer ticker.Stop()

	for {
		select {
		case <-r.flushStop:
			return
		case <-ticker.C:
			r.deliver(r.sink.take())
		}
	}
}

func (r *WebMRecorder) deliver(chunk []byte) {
	if len(chunk) == 0 || r.opts.OnDataAvailable == nil {
		return
	}
	r.deliverMu.Lock()
	defer r.deliverMu.Unlock()
	r.opts.OnDataAvailable(chunk)
}

// fail records the first encoding error, which Stop also returns. The
// callback runs on its own goroutine so it may call Stop.
func (r *WebMRecorder) fail(err error) {
	r.errOnce.Do(func() {
		r.err = err
		r.log.Error().Err(err).Msg("encoding failed")
		if r.opts.OnError != nil {
			go r.opts.OnError(&EncodingError{Err: err})
		}
	})
}
