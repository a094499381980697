package hogmode_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/presto8/hogmode"
)

func TestFrameRingReadWrite(t *testing.T) {
	ring := hogmode.NewFrameRing(4, 16)

	data := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	ring.Write(data)
	assert.Equal(t, uint32(2), ring.BufferedFrames())

	dst := make([]byte, 8)
	got := ring.ReadFrames(dst, 2, time.Now())
	assert.Equal(t, uint32(2), got)
	assert.Equal(t, data, dst)
	assert.Equal(t, uint32(0), ring.BufferedFrames())
	assert.Equal(t, 0, ring.Underruns())
}

func TestFrameRingUnderrunZeroFills(t *testing.T) {
	ring := hogmode.NewFrameRing(4, 16)
	ring.Write([]byte{9, 9, 9, 9})

	dst := []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
	got := ring.ReadFrames(dst, 2, time.Now())
	assert.Equal(t, uint32(1), got)
	assert.Equal(t, []byte{9, 9, 9, 9, 0, 0, 0, 0}, dst)
	assert.Equal(t, 1, ring.Underruns())

	// A pull from an empty ring is all silence.
	dst2 := []byte{0xff, 0xff, 0xff, 0xff}
	got = ring.ReadFrames(dst2, 1, time.Now())
	assert.Equal(t, uint32(0), got)
	assert.Equal(t, []byte{0, 0, 0, 0}, dst2)
	assert.Equal(t, 2, ring.Underruns())
}

func TestFrameRingUnalignedDstTailIsSilenced(t *testing.T) {
	ring := hogmode.NewFrameRing(4, 16)
	ring.Write([]byte{1, 2, 3, 4})

	// dst holds one whole frame plus two stray bytes; the strays must come
	// back as silence, not as whatever the caller left there.
	dst := []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
	got := ring.ReadFrames(dst, 2, time.Now())
	assert.Equal(t, uint32(1), got)
	assert.Equal(t, []byte{1, 2, 3, 4, 0, 0}, dst)
	assert.Equal(t, 1, ring.Underruns())
}

func TestFrameRingDropsOldestOnOverflow(t *testing.T) {
	ring := hogmode.NewFrameRing(2, 3) // capacity: 3 frames of 2 bytes

	ring.Write([]byte{1, 1, 2, 2, 3, 3})
	ring.Write([]byte{4, 4})
	require.Equal(t, uint32(3), ring.BufferedFrames())

	dst := make([]byte, 6)
	got := ring.ReadFrames(dst, 3, time.Now())
	assert.Equal(t, uint32(3), got)
	assert.Equal(t, []byte{2, 2, 3, 3, 4, 4}, dst, "oldest frame was dropped")
}

func TestFrameRingOversizedWrite(t *testing.T) {
	ring := hogmode.NewFrameRing(2, 2) // capacity: 4 bytes

	ring.Write([]byte{1, 1, 2, 2, 3, 3, 4, 4})
	assert.Equal(t, uint32(2), ring.BufferedFrames())

	dst := make([]byte, 4)
	got := ring.ReadFrames(dst, 2, time.Now())
	assert.Equal(t, uint32(2), got)
	assert.Equal(t, []byte{3, 3, 4, 4}, dst, "only the newest audio is kept")
}
