package hogmode_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/presto8/hogmode"
)

// recordingSource remembers every pull it receives.
type recordingSource struct {
	mu        sync.Mutex
	frames    []uint32
	deadlines []time.Time
}

func (r *recordingSource) ReadFrames(dst []byte, frames uint32, deadline time.Time) uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, frames)
	r.deadlines = append(r.deadlines, deadline)

	return frames
}

func (r *recordingSource) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = nil
	r.deadlines = nil
}

func (r *recordingSource) calls() ([]uint32, []time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]uint32(nil), r.frames...), append([]time.Time(nil), r.deadlines...)
}

// pausedSession opens a session on the reference device and immediately stops
// callback delivery, so the tests drive render invocations by hand.
func pausedSession(t *testing.T, src hogmode.Source) (*hogmode.LoopbackHost, hogmode.DeviceID, *hogmode.Session) {
	t.Helper()

	h := hogmode.NewLoopbackHost()
	dev := newOutputDevice(h)

	s, err := hogmode.Open(h, hogmode.Config{Device: dev, Format: pcm48k16, Source: src})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Pause())

	return h, dev, s
}

func TestRenderRequestsExactFrameCount(t *testing.T) {
	src := &recordingSource{}
	h, dev, _ := pausedSession(t, src)
	src.reset()

	procs := h.RenderProcs(dev)
	require.Len(t, procs, 1)

	// 2048 bytes at a 4 byte stride is exactly 512 frames.
	buffers, err := h.RenderOnce(dev, procs[0], 2048)
	require.NoError(t, err)
	require.Len(t, buffers, 1)

	frames, _ := src.calls()
	require.Equal(t, []uint32{512}, frames)
}

func TestRenderUnalignedReadFails(t *testing.T) {
	src := &recordingSource{}
	h, dev, _ := pausedSession(t, src)
	src.reset()

	procs := h.RenderProcs(dev)
	require.Len(t, procs, 1)

	_, err := h.RenderOnce(dev, procs[0], 2050)
	assert.ErrorIs(t, err, hogmode.ErrUnalignedRead)

	// No frame request reaches the source on an unaligned read.
	frames, _ := src.calls()
	assert.Empty(t, frames)
}

func TestRenderDeadlineAccountsForLatency(t *testing.T) {
	src := &recordingSource{}
	h, dev, s := pausedSession(t, src)
	src.reset()

	procs := h.RenderProcs(dev)
	require.Len(t, procs, 1)

	before := time.Now()
	_, err := h.RenderOnce(dev, procs[0], 2048)
	require.NoError(t, err)
	after := time.Now()

	_, deadlines := src.calls()
	require.Len(t, deadlines, 1)

	// The deadline includes at least the fixed latency budget plus the play
	// time of the requested frames, measured from some instant inside the
	// call window.
	minBudget := s.Latency() + pcm48k16.FramesToDuration(512)
	assert.False(t, deadlines[0].Before(before.Add(minBudget)))

	// And it cannot run ahead of the call window by more than the budget
	// plus the host-reported callback latency, which RenderOnce keeps at
	// zero.
	assert.False(t, deadlines[0].After(after.Add(minBudget)))
}

func TestRenderDeadlineMonotonic(t *testing.T) {
	src := &recordingSource{}
	h, dev, _ := pausedSession(t, src)
	src.reset()

	procs := h.RenderProcs(dev)
	require.Len(t, procs, 1)

	for i := 0; i < 5; i++ {
		_, err := h.RenderOnce(dev, procs[0], 2048)
		require.NoError(t, err)
	}

	_, deadlines := src.calls()
	require.Len(t, deadlines, 5)
	for i := 1; i < len(deadlines); i++ {
		assert.False(t, deadlines[i].Before(deadlines[i-1]),
			"deadline %d went backwards", i)
	}
}
