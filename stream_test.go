package hogmode_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/presto8/hogmode"
)

func TestSelectStreamSkipsInputStreams(t *testing.T) {
	h := hogmode.NewLoopbackHost()
	dev := h.AddDevice(hogmode.DeviceSpec{
		Name: "Loop Out",
		Streams: []hogmode.StreamSpec{
			{Direction: hogmode.DIRECTION_INPUT, Formats: []hogmode.PhysicalFormat{pcm48k16}, Current: pcm48k16},
			{Direction: hogmode.DIRECTION_OUTPUT, Formats: []hogmode.PhysicalFormat{pcm48k16}, Current: pcm48k16},
		},
	})

	desc, err := hogmode.SelectStream(h, dev, pcm48k16, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, desc.Index)

	dir, err := h.StreamDirection(desc.ID)
	require.NoError(t, err)
	assert.Equal(t, hogmode.DIRECTION_OUTPUT, dir)
}

func TestSelectStreamNoUsableStream(t *testing.T) {
	h := hogmode.NewLoopbackHost()

	// Input-only device.
	dev := h.AddDevice(hogmode.DeviceSpec{
		Name: "Mic",
		Streams: []hogmode.StreamSpec{
			{Direction: hogmode.DIRECTION_INPUT, Formats: []hogmode.PhysicalFormat{pcm48k16}, Current: pcm48k16},
		},
	})
	_, err := hogmode.SelectStream(h, dev, pcm48k16, nil)
	assert.ErrorIs(t, err, hogmode.ErrNoUsableStream)

	// No streams at all.
	empty := h.AddDevice(hogmode.DeviceSpec{Name: "Ghost"})
	_, err = hogmode.SelectStream(h, empty, pcm48k16, nil)
	assert.ErrorIs(t, err, hogmode.ErrNoUsableStream)
}

func TestSelectStreamCompressedRequiresEncodingSupport(t *testing.T) {
	h := hogmode.NewLoopbackHost()
	dev := h.AddDevice(hogmode.DeviceSpec{
		Name: "SPDIF",
		Streams: []hogmode.StreamSpec{
			{Direction: hogmode.DIRECTION_OUTPUT, Formats: []hogmode.PhysicalFormat{pcm48k16}, Current: pcm48k16},
			{
				Direction: hogmode.DIRECTION_OUTPUT,
				Encodings: []hogmode.Encoding{hogmode.ENCODING_AC3},
				Formats:   []hogmode.PhysicalFormat{ac3_48k},
				Current:   ac3_48k,
			},
		},
	})

	// The first stream carries no AC3 capability; the second must win.
	desc, err := hogmode.SelectStream(h, dev, ac3_48k, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, desc.Index)

	// A PCM request is satisfied by any output stream.
	desc, err = hogmode.SelectStream(h, dev, pcm48k16, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, desc.Index)
}
