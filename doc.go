// Package studio composites live video sources into one 1280x720 frame,
// mixes their audio and records the result to a WebM file.
//
// Key pieces include:
//   - MediaStream/MediaStreamTrack and MediaDevices (getUserMedia-style APIs)
//   - SourceRegistry: ordered participant slots plus an optional screen share
//   - Compositor, Canvas and the bilinear scaler
//   - FrameScheduler: the render loop
//   - AudioMixer and RecordingSession
//   - Studio: the single owner tying them together
//
// # Architecture
//
//	Render:  SourceRegistry -> Compositor -> Canvas (once per FrameScheduler tick)
//	Record:  Canvas -> CaptureStream -> AudioMixer.MergeAudioInto -> Recorder -> FileEmitter
//
// Every mutation of the registry or the recording session goes through a
// Studio. A mutation is visible at the next render tick and no tick observes
// a partial one. Device acquisition runs outside the Studio lock so a
// pending permission prompt never stalls rendering.
//
// # Recording
//
// The built-in recorder writes recorded-video.webm with Motion JPEG video
// and a PCM mixdown of every source's audio. Chunks are delivered once per
// timeslice and concatenated when the recording stops.
//
// # Devices
//
// SyntheticDevices provides test pattern cameras and displays and tone
// microphones. A PermissionFunc can deny or cancel acquisitions.
package studio
