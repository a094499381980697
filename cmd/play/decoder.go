package main

import (
	"fmt"

	"github.com/go-audio/wav"

	"github.com/presto8/hogmode"
)

// wavFormatPCM is the WAV format tag for integer PCM; tag 3 is IEEE float.
const wavFormatPCM = 1

// formatForWav maps the WAV header onto the physical format requested from
// the device.
func formatForWav(decoder *wav.Decoder) (hogmode.PhysicalFormat, error) {
	if decoder.WavAudioFormat != wavFormatPCM {
		return hogmode.PhysicalFormat{}, fmt.Errorf("unsupported WAV audio format tag %d, only integer PCM is supported", decoder.WavAudioFormat)
	}

	switch decoder.BitDepth {
	case 16, 24, 32:
	default:
		return hogmode.PhysicalFormat{}, fmt.Errorf("unsupported bit depth %d", decoder.BitDepth)
	}

	return hogmode.PhysicalFormat{
		SampleRate:    float64(decoder.SampleRate),
		Encoding:      hogmode.ENCODING_PCM,
		Flags:         hogmode.FORMAT_FLAG_PACKED,
		Channels:      uint32(decoder.NumChans),
		BitsPerSample: uint32(decoder.BitDepth),
	}, nil
}

// packSamples converts decoded integer samples into packed little-endian
// bytes at the negotiated sample width.
func packSamples(samples []int, srcBits int, format hogmode.PhysicalFormat) ([]byte, error) {
	shift := int(format.BitsPerSample) - srcBits
	if shift < 0 {
		return nil, fmt.Errorf("cannot narrow %d-bit samples to %d bits", srcBits, format.BitsPerSample)
	}

	width := int(format.BitsPerSample) / 8
	out := make([]byte, len(samples)*width)

	for i, s := range samples {
		v := int32(s) << shift
		for b := 0; b < width; b++ {
			out[i*width+b] = byte(v >> (8 * b))
		}
	}

	return out, nil
}
