package audio

import (
	"encoding/binary"
	"log/slog"
	"sync"
)

// Converter converts frames to a target format: channels are downmixed to
// mono first, then the mono signal is resampled. Create one per stream.
type Converter struct {
	Target Format

	warnOnce sync.Once
}

// Convert returns frame in the target format. Frames already in the target
// format are returned unchanged. Frames with a partial trailing sample are
// truncated.
func (c *Converter) Convert(frame Frame) Frame {
	src := frame.Format
	if src == c.Target {
		return frame
	}
	c.warnOnce.Do(func() {
		slog.Info("audio: converting capture format", "from", src.String(), "to", c.Target.String())
	})

	samples := decode(frame.Data)
	if src.Channels > 1 {
		samples = Downmix(samples, src.Channels)
	}
	if src.SampleRate != c.Target.SampleRate {
		samples = Resample(samples, src.SampleRate, c.Target.SampleRate)
	}
	if c.Target.Channels > 1 {
		samples = Upmix(samples, c.Target.Channels)
	}
	return Frame{Data: encode(samples), Format: c.Target, Offset: frame.Offset}
}

// Downmix averages interleaved samples of n channels into one.
func Downmix(samples []int16, n int) []int16 {
	if n <= 1 {
		return samples
	}
	out := make([]int16, len(samples)/n)
	for i := range out {
		var sum int32
		for ch := 0; ch < n; ch++ {
			sum += int32(samples[i*n+ch])
		}
		out[i] = int16(sum / int32(n))
	}
	return out
}

// Upmix duplicates mono samples into n interleaved channels.
func Upmix(samples []int16, n int) []int16 {
	if n <= 1 {
		return samples
	}
	out := make([]int16, len(samples)*n)
	for i, s := range samples {
		for ch := 0; ch < n; ch++ {
			out[i*n+ch] = s
		}
	}
	return out
}

// Resample converts mono samples from srcRate to dstRate by linear
// interpolation.
func Resample(samples []int16, srcRate, dstRate int) []int16 {
	if srcRate <= 0 || dstRate <= 0 || srcRate == dstRate || len(samples) == 0 {
		return samples
	}
	n := int(int64(len(samples)) * int64(dstRate) / int64(srcRate))
	out := make([]int16, n)
	step := float64(srcRate) / float64(dstRate)
	last := len(samples) - 1
	for i := range out {
		pos := float64(i) * step
		idx := int(pos)
		if idx >= last {
			out[i] = samples[last]
			continue
		}
		frac := pos - float64(idx)
		out[i] = int16(float64(samples[idx])*(1-frac) + float64(samples[idx+1])*frac)
	}
	return out
}

func decode(pcm []byte) []int16 {
	out := make([]int16, len(pcm)/bytesPerSample)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	return out
}

func encode(samples []int16) []byte {
	out := make([]byte, len(samples)*bytesPerSample)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}
