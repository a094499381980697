package hogmode

import (
	"fmt"
	"time"
)

// PhysicalFormat describes one hardware transmission format of a sub-stream:
// the format actually sent over the wire, as opposed to the virtual format the
// hardware presents to software after any implicit conversion.
type PhysicalFormat struct {
	SampleRate    float64
	Encoding      Encoding
	Flags         FormatFlag
	Channels      uint32
	BitsPerSample uint32
}

// Valid reports whether the format is structurally valid, i.e. carries an
// encoding identifier. Devices occasionally publish zeroed placeholder
// entries in their candidate lists; those are skipped during negotiation.
func (f PhysicalFormat) Valid() bool {
	return f.Encoding != ENCODING_INVALID
}

// Interleaved reports whether frames are stored interleaved in one buffer.
func (f PhysicalFormat) Interleaved() bool {
	return f.Flags&FORMAT_FLAG_NON_INTERLEAVED == 0
}

// Equal reports whether two formats describe the same transmission format.
func (f PhysicalFormat) Equal(other PhysicalFormat) bool {
	return f.SampleRate == other.SampleRate &&
		f.Encoding == other.Encoding &&
		f.Flags == other.Flags &&
		f.Channels == other.Channels &&
		f.BitsPerSample == other.BitsPerSample
}

// FrameSize returns the size of a single interleaved frame in bytes.
// A frame contains one sample for each channel.
func (f PhysicalFormat) FrameSize() uint32 {
	return f.Channels * (f.BitsPerSample / 8)
}

// String returns a human-readable representation of the format.
func (f PhysicalFormat) String() string {
	return fmt.Sprintf("%gHz %dch %dbit %s [flags 0x%x]",
		f.SampleRate, f.Channels, f.BitsPerSample, f.Encoding, uint32(f.Flags))
}

// FramesToBytes converts a number of frames to the corresponding byte count.
func (f PhysicalFormat) FramesToBytes(frames uint32) uint32 {
	return frames * f.FrameSize()
}

// BytesToFrames converts a byte count to the corresponding number of frames.
// The remainder is discarded; callers that require exact alignment must check
// it themselves.
func (f PhysicalFormat) BytesToFrames(bytes uint32) uint32 {
	frameSize := f.FrameSize()
	if frameSize == 0 {
		return 0
	}

	return bytes / frameSize
}

// FramesToDuration converts a number of frames to their play time at the
// format's sample rate.
func (f PhysicalFormat) FramesToDuration(frames uint32) time.Duration {
	if f.SampleRate == 0 {
		return 0
	}

	return time.Duration(float64(frames) / f.SampleRate * float64(time.Second))
}

// absDiff returns the absolute distance between two positive quantities.
func absDiff(a, b float64) float64 {
	if a > b {
		return a - b
	}

	return b - a
}

// layoutFlags are the flag bits that matter for tie-breaking: two formats
// that agree on these are equally usable for the same sample data.
const layoutFlags = FORMAT_FLAG_FLOAT | FORMAT_FLAG_BIG_ENDIAN | FORMAT_FLAG_PACKED | FORMAT_FLAG_ALIGNED_HIGH

// isBetter reports whether candidate is a strictly better hardware match for
// want than current. The comparison is a fixed priority order: encoding match
// first, then sample rate distance, channel count distance and bit depth
// distance, with layout-flag compatibility breaking remaining ties. Formats
// that compare equal are not "better", so the first candidate seen wins.
func isBetter(want, current, candidate PhysicalFormat) bool {
	if (candidate.Encoding == want.Encoding) != (current.Encoding == want.Encoding) {
		return candidate.Encoding == want.Encoding
	}

	candRate := absDiff(candidate.SampleRate, want.SampleRate)
	curRate := absDiff(current.SampleRate, want.SampleRate)
	if candRate != curRate {
		return candRate < curRate
	}

	candCh := absDiff(float64(candidate.Channels), float64(want.Channels))
	curCh := absDiff(float64(current.Channels), float64(want.Channels))
	if candCh != curCh {
		return candCh < curCh
	}

	candBits := absDiff(float64(candidate.BitsPerSample), float64(want.BitsPerSample))
	curBits := absDiff(float64(current.BitsPerSample), float64(want.BitsPerSample))
	if candBits != curBits {
		return candBits < curBits
	}

	candFlags := (candidate.Flags^want.Flags)&layoutFlags == 0
	curFlags := (current.Flags^want.Flags)&layoutFlags == 0

	return candFlags && !curFlags
}

// BestFormat selects the best hardware match for want among the candidate
// physical formats. Structurally invalid candidates are skipped. The fold
// carries a nullable best-so-far accumulator and keeps the first-seen
// candidate on ties, so the result is deterministic for a given candidate
// order. Returns ErrNoFormatFound if the list is empty or holds no valid
// entry.
func BestFormat(want PhysicalFormat, candidates []PhysicalFormat) (PhysicalFormat, error) {
	var best *PhysicalFormat

	for i := range candidates {
		candidate := candidates[i]
		if !candidate.Valid() {
			continue
		}

		if best == nil || isBetter(want, *best, candidate) {
			best = &candidate
		}
	}

	if best == nil {
		return PhysicalFormat{}, ErrNoFormatFound
	}

	return *best, nil
}
