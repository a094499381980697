package hogmode

import (
	"bytes"
	"sync"
	"time"
)

// FrameRing is a bounded, internally synchronized frame buffer that
// implements Source with a non-blocking pull policy: a render-side request
// that cannot be satisfied from buffered data is zero-filled (silence) and
// counted as an underrun, so the real-time path never waits on the producer.
// Writes beyond capacity drop the oldest audio first.
type FrameRing struct {
	mu        sync.Mutex
	buf       bytes.Buffer
	frameSize uint32
	maxBytes  int
	underruns int
}

// NewFrameRing creates a ring holding at most maxFrames frames of frameSize
// bytes each.
func NewFrameRing(frameSize, maxFrames uint32) *FrameRing {
	return &FrameRing{
		frameSize: frameSize,
		maxBytes:  int(frameSize * maxFrames),
	}
}

// Write appends interleaved audio bytes, discarding the oldest buffered audio
// when capacity is exceeded.
func (r *FrameRing) Write(data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(data) > r.maxBytes {
		data = data[len(data)-r.maxBytes:]
	}

	if excess := r.buf.Len() + len(data) - r.maxBytes; excess > 0 {
		r.buf.Next(excess)
	}
	r.buf.Write(data)
}

// ReadFrames implements Source. The deadline is accepted but not waited on:
// whatever is buffered when the call arrives is all the audio there is.
func (r *FrameRing) ReadFrames(dst []byte, frames uint32, deadline time.Time) uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	want := int(frames * r.frameSize)
	if want > len(dst) {
		want = len(dst) - len(dst)%int(r.frameSize)
	}

	n, _ := r.buf.Read(dst[:want])
	got := uint32(n) / r.frameSize

	// Partial frames stay partial only on the wire; roll the cut-off bytes
	// into the padding and silence everything past the delivered audio,
	// including any unaligned tail of dst.
	if rem := n % int(r.frameSize); rem != 0 {
		n -= rem
		got = uint32(n) / r.frameSize
	}
	for i := n; i < len(dst); i++ {
		dst[i] = 0
	}

	if got < frames {
		r.underruns++
	}

	return got
}

// BufferedFrames returns the number of whole frames currently buffered.
func (r *FrameRing) BufferedFrames() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	return uint32(r.buf.Len()) / r.frameSize
}

// Underruns returns the number of pull requests that could not be fully
// satisfied.
func (r *FrameRing) Underruns() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.underruns
}
