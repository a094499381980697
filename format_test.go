package hogmode_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/presto8/hogmode"
)

var (
	pcm48k16 = hogmode.PhysicalFormat{
		SampleRate:    48000,
		Encoding:      hogmode.ENCODING_PCM,
		Flags:         hogmode.FORMAT_FLAG_PACKED,
		Channels:      2,
		BitsPerSample: 16,
	}
	pcm44k24 = hogmode.PhysicalFormat{
		SampleRate:    44100,
		Encoding:      hogmode.ENCODING_PCM,
		Flags:         hogmode.FORMAT_FLAG_PACKED,
		Channels:      2,
		BitsPerSample: 24,
	}
	ac3_48k = hogmode.PhysicalFormat{
		SampleRate:    48000,
		Encoding:      hogmode.ENCODING_AC3,
		Channels:      2,
		BitsPerSample: 16,
	}
)

func TestBestFormatExactMatch(t *testing.T) {
	best, err := hogmode.BestFormat(pcm48k16, []hogmode.PhysicalFormat{pcm48k16, pcm44k24})
	require.NoError(t, err)
	assert.True(t, best.Equal(pcm48k16))

	// Order must not matter for an exact match.
	best, err = hogmode.BestFormat(pcm48k16, []hogmode.PhysicalFormat{pcm44k24, pcm48k16})
	require.NoError(t, err)
	assert.True(t, best.Equal(pcm48k16))
}

func TestBestFormatEmptyOrInvalid(t *testing.T) {
	_, err := hogmode.BestFormat(pcm48k16, nil)
	assert.ErrorIs(t, err, hogmode.ErrNoFormatFound)

	invalid := hogmode.PhysicalFormat{SampleRate: 48000, Channels: 2, BitsPerSample: 16}
	_, err = hogmode.BestFormat(pcm48k16, []hogmode.PhysicalFormat{invalid, {}})
	assert.ErrorIs(t, err, hogmode.ErrNoFormatFound)
}

func TestBestFormatSkipsInvalidCandidates(t *testing.T) {
	best, err := hogmode.BestFormat(pcm48k16, []hogmode.PhysicalFormat{{}, pcm44k24})
	require.NoError(t, err)
	assert.True(t, best.Equal(pcm44k24))
}

func TestBestFormatPriorityOrder(t *testing.T) {
	// An encoding match beats a closer sample rate.
	best, err := hogmode.BestFormat(ac3_48k, []hogmode.PhysicalFormat{pcm48k16, {
		SampleRate:    44100,
		Encoding:      hogmode.ENCODING_AC3,
		Channels:      2,
		BitsPerSample: 16,
	}})
	require.NoError(t, err)
	assert.Equal(t, hogmode.ENCODING_AC3, best.Encoding)

	// A closer sample rate beats a closer channel count.
	mono48k := pcm48k16
	mono48k.Channels = 1
	stereo96k := pcm48k16
	stereo96k.SampleRate = 96000
	best, err = hogmode.BestFormat(pcm48k16, []hogmode.PhysicalFormat{stereo96k, mono48k})
	require.NoError(t, err)
	assert.Equal(t, float64(48000), best.SampleRate)

	// A closer bit depth decides between otherwise equal candidates.
	deep := pcm48k16
	deep.BitsPerSample = 32
	best, err = hogmode.BestFormat(pcm48k16, []hogmode.PhysicalFormat{deep, pcm48k16})
	require.NoError(t, err)
	assert.Equal(t, uint32(16), best.BitsPerSample)
}

func TestBestFormatFirstSeenWinsTies(t *testing.T) {
	// Both candidates carry flags incompatible with the request, so neither
	// wins the flag tie-break and the earlier entry must survive.
	want := pcm48k16
	want.Flags = hogmode.FORMAT_FLAG_PACKED
	first := pcm48k16
	first.Flags = hogmode.FORMAT_FLAG_PACKED | hogmode.FORMAT_FLAG_ALIGNED_HIGH
	second := pcm48k16
	second.Flags = hogmode.FORMAT_FLAG_PACKED | hogmode.FORMAT_FLAG_BIG_ENDIAN
	best, err := hogmode.BestFormat(want, []hogmode.PhysicalFormat{first, second})
	require.NoError(t, err)
	assert.True(t, best.Equal(first))
}

func TestFormatFrameConversions(t *testing.T) {
	assert.Equal(t, uint32(4), pcm48k16.FrameSize())
	assert.Equal(t, uint32(2048), pcm48k16.FramesToBytes(512))
	assert.Equal(t, uint32(512), pcm48k16.BytesToFrames(2048))
	assert.Equal(t, uint32(512), pcm48k16.BytesToFrames(2050)) // remainder discarded

	frames := float64(608)
	expected := time.Duration(frames / 48000 * float64(time.Second))
	assert.Equal(t, expected, pcm48k16.FramesToDuration(608))

	var zero hogmode.PhysicalFormat
	assert.Equal(t, uint32(0), zero.BytesToFrames(2048))
	assert.Equal(t, time.Duration(0), zero.FramesToDuration(512))
}

func TestFormatInterleaved(t *testing.T) {
	assert.True(t, pcm48k16.Interleaved())

	planar := pcm48k16
	planar.Flags |= hogmode.FORMAT_FLAG_NON_INTERLEAVED
	assert.False(t, planar.Interleaved())
}
