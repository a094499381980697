package main

import (
	"testing"

	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/presto8/hogmode"
)

func TestFormatForWav(t *testing.T) {
	decoder := &wav.Decoder{
		NumChans:       2,
		BitDepth:       16,
		SampleRate:     48000,
		WavAudioFormat: wavFormatPCM,
	}

	format, err := formatForWav(decoder)
	require.NoError(t, err)
	assert.Equal(t, float64(48000), format.SampleRate)
	assert.Equal(t, uint32(2), format.Channels)
	assert.Equal(t, uint32(16), format.BitsPerSample)
	assert.Equal(t, hogmode.ENCODING_PCM, format.Encoding)
}

func TestFormatForWavRejectsFloat(t *testing.T) {
	decoder := &wav.Decoder{
		NumChans:       2,
		BitDepth:       32,
		SampleRate:     48000,
		WavAudioFormat: 3, // IEEE float
	}

	_, err := formatForWav(decoder)
	assert.Error(t, err)
}

func TestFormatForWavRejectsOddBitDepth(t *testing.T) {
	decoder := &wav.Decoder{
		NumChans:       2,
		BitDepth:       12,
		SampleRate:     48000,
		WavAudioFormat: wavFormatPCM,
	}

	_, err := formatForWav(decoder)
	assert.Error(t, err)
}

func TestPackSamples(t *testing.T) {
	format := hogmode.PhysicalFormat{
		SampleRate:    48000,
		Encoding:      hogmode.ENCODING_PCM,
		Channels:      2,
		BitsPerSample: 16,
	}

	out, err := packSamples([]int{0x0102, -2}, 16, format)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x02, 0x01, 0xfe, 0xff}, out)

	// Widening shifts into the high bits of the wider container.
	format.BitsPerSample = 32
	out, err = packSamples([]int{1}, 16, format)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x00, 0x01, 0x00}, out)

	// Narrowing is not supported.
	format.BitsPerSample = 16
	_, err = packSamples([]int{1}, 24, format)
	assert.Error(t, err)
}
