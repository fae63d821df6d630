// Package audio carries raw 16-bit little-endian PCM from a capture source to
// the speech recognizer.
//
// Capture devices are outside the process: audio arrives as a byte stream
// (stdin, a FIFO, a file) in whatever format the device produced, and is
// converted to the 16 kHz mono format recognizers expect.
package audio

import (
	"fmt"
	"time"
)

// bytesPerSample is fixed at 2 for 16-bit PCM.
const bytesPerSample = 2

// Format describes the sample rate and channel count of a PCM stream.
type Format struct {
	SampleRate int
	Channels   int
}

// SpeechFormat is the format delivered to recognizers.
var SpeechFormat = Format{SampleRate: 16000, Channels: 1}

// Validate reports an error for non-positive fields.
func (f Format) Validate() error {
	if f.SampleRate <= 0 {
		return fmt.Errorf("audio: sample rate must be positive, got %d", f.SampleRate)
	}
	if f.Channels <= 0 {
		return fmt.Errorf("audio: channels must be positive, got %d", f.Channels)
	}
	return nil
}

// FrameBytes returns the byte length of d worth of audio, rounded down to
// whole sample frames.
func (f Format) FrameBytes(d time.Duration) int {
	samples := int(int64(f.SampleRate) * int64(d) / int64(time.Second))
	return samples * f.Channels * bytesPerSample
}

// String returns e.g. "48000Hz stereo".
func (f Format) String() string {
	ch := "mono"
	switch {
	case f.Channels == 2:
		ch = "stereo"
	case f.Channels > 2:
		ch = fmt.Sprintf("%dch", f.Channels)
	}
	return fmt.Sprintf("%dHz %s", f.SampleRate, ch)
}

// Frame is one chunk of PCM audio.
type Frame struct {
	Data   []byte
	Format Format

	// Offset is the position of the frame from stream start.
	Offset time.Duration
}
