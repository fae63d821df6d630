package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

// DefaultFrameDuration is the capture chunk size.
const DefaultFrameDuration = 100 * time.Millisecond

// Capture reads PCM in format src from r, converts it to dst and sends it on
// out in frames of frameDur. It closes out when it returns. A clean EOF
// returns nil; a trailing partial frame is still delivered.
func Capture(ctx context.Context, r io.Reader, src, dst Format, frameDur time.Duration, out chan<- Frame) error {
	defer close(out)

	if err := src.Validate(); err != nil {
		return err
	}
	if frameDur <= 0 {
		frameDur = DefaultFrameDuration
	}
	size := src.FrameBytes(frameDur)
	if size == 0 {
		return fmt.Errorf("audio: frame duration %v too short for %s", frameDur, src)
	}

	conv := &Converter{Target: dst}
	var offset time.Duration
	for {
		buf := make([]byte, size)
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			n -= n % (bytesPerSample * src.Channels)
			frame := conv.Convert(Frame{Data: buf[:n], Format: src, Offset: offset})
			offset += time.Duration(int64(n) * int64(time.Second) / int64(src.SampleRate*src.Channels*bytesPerSample))
			if len(frame.Data) > 0 {
				select {
				case out <- frame:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
		switch {
		case err == nil:
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
			return nil
		default:
			return fmt.Errorf("audio: read: %w", err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}
