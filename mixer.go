package studio

import (
	"encoding/binary"
	"math"
)

// AudioMixer gathers the audio of many sources into one stream.
type AudioMixer struct{}

// NewAudioMixer creates an audio mixer.
func NewAudioMixer() *AudioMixer {
	return &AudioMixer{}
}

// MergeAudioInto adds every audio track of sources to target. Tracks are
// shared, not copied, so muting a source also mutes it in target. It returns
// the number of tracks offered to target.
func (m *AudioMixer) MergeAudioInto(target MediaStream, sources []MediaStream) int {
	if target == nil {
		return 0
	}
	n := 0
	for _, src := range sources {
		if src == nil {
			continue
		}
		for _, track := range src.GetAudioTracks() {
			target.AddTrack(track)
			n++
		}
	}
	return n
}

// SetMuted disables (or re-enables) every audio track of streams and returns
// how many tracks were touched.
func (m *AudioMixer) SetMuted(streams []MediaStream, muted bool) int {
	n := 0
	for _, s := range streams {
		if s == nil {
			continue
		}
		for _, track := range s.GetAudioTracks() {
			track.SetEnabled(!muted)
			n++
		}
	}
	return n
}

// MixPCM sums interleaved little-endian S16 blocks into dst, saturating at
// the int16 range. Inputs shorter than dst contribute silence for the
// remainder; nil inputs are skipped. dst is overwritten.
func MixPCM(dst []byte, inputs ...[]byte) {
	for i := 0; i+1 < len(dst); i += 2 {
		sum := 0
		for _, in := range inputs {
			if i+1 < len(in) {
				sum += int(int16(binary.LittleEndian.Uint16(in[i:])))
			}
		}
		sum = min(max(sum, math.MinInt16), math.MaxInt16)
		binary.LittleEndian.PutUint16(dst[i:], uint16(int16(sum)))
	}
}
