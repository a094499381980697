package hogmode

import (
	"fmt"
	"time"
)

// render runs on the host's dedicated real-time thread. It converts the
// host's requested byte count to whole frames, computes the presentation
// deadline and pulls exactly that many frames from the upstream source. No
// locks are taken here; everything it touches is immutable after the session
// becomes active, except the source's own internally-synchronized pull.
func (s *Session) render(outputTime time.Time, buffers [][]byte) error {
	if s.stream.Index >= len(buffers) {
		return fmt.Errorf("no buffer for sub-stream index %d", s.stream.Index)
	}

	buf := buffers[s.stream.Index]
	requested := uint32(len(buf))

	frames := requested / s.stride
	if frames*s.stride != requested {
		s.logger.Error("unsupported unaligned read", "bytes", requested, "stride", s.stride)

		return ErrUnalignedRead
	}

	deadline := time.Now().Add(s.latency + callbackLatency(outputTime) + s.format.FramesToDuration(frames))
	s.cfg.Source.ReadFrames(buf, frames, deadline)

	return nil
}

// callbackLatency is the host-reported time until the buffer being filled
// reaches the hardware. Timestamps in the past contribute nothing.
func callbackLatency(outputTime time.Time) time.Duration {
	if d := time.Until(outputTime); d > 0 {
		return d
	}

	return 0
}
