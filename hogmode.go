// Package hogmode drives a hardware audio output device in exclusive (hog)
// mode: it acquires sole access to the device, switches the selected
// sub-stream to the best matching physical transmission format, streams audio
// through a pull-based render callback, and restores the original hardware
// state on teardown. The platform itself is consumed through the Host
// interface, so the package works against any backend that can expose the
// device/stream property surface.
package hogmode

// Encoding identifies the transmission encoding of a physical format.
type Encoding uint32

const (
	// ENCODING_INVALID marks a structurally invalid candidate format.
	ENCODING_INVALID Encoding = 0
	// ENCODING_PCM is linear PCM.
	ENCODING_PCM Encoding = 1
	// ENCODING_AC3 is Dolby AC-3 passthrough.
	ENCODING_AC3 Encoding = 2
	// ENCODING_EAC3 is Dolby E-AC-3 passthrough.
	ENCODING_EAC3 Encoding = 3
	// ENCODING_DTS is DTS passthrough.
	ENCODING_DTS Encoding = 4
)

// IsPCM reports whether the encoding is linear PCM.
func (e Encoding) IsPCM() bool {
	return e == ENCODING_PCM
}

// IsCompressed reports whether the encoding is a compressed passthrough
// encoding rather than linear PCM.
func (e Encoding) IsCompressed() bool {
	switch e {
	case ENCODING_AC3, ENCODING_EAC3, ENCODING_DTS:
		return true
	default:
		return false
	}
}

// FormatFlag describes the byte layout of samples within a physical format.
type FormatFlag uint32

const (
	// FORMAT_FLAG_FLOAT marks floating point samples; signed integer otherwise.
	FORMAT_FLAG_FLOAT FormatFlag = 1 << 0
	// FORMAT_FLAG_BIG_ENDIAN marks big endian sample bytes.
	FORMAT_FLAG_BIG_ENDIAN FormatFlag = 1 << 1
	// FORMAT_FLAG_PACKED marks samples that fill their container exactly.
	FORMAT_FLAG_PACKED FormatFlag = 1 << 2
	// FORMAT_FLAG_ALIGNED_HIGH marks samples aligned to the high bits of the container.
	FORMAT_FLAG_ALIGNED_HIGH FormatFlag = 1 << 3
	// FORMAT_FLAG_NON_INTERLEAVED marks one buffer per channel instead of
	// interleaved frames. The session rejects non-interleaved virtual formats.
	FORMAT_FLAG_NON_INTERLEAVED FormatFlag = 1 << 4
)

// Direction defines the data direction of a device sub-stream.
type Direction uint32

const (
	// DIRECTION_OUTPUT is a playback stream.
	DIRECTION_OUTPUT Direction = 0
	// DIRECTION_INPUT is a capture stream.
	DIRECTION_INPUT Direction = 1
)

// Selector identifies a watchable or readable object property on the host.
type Selector uint32

const (
	// SELECTOR_DEVICE_CHANGED fires when any property of a device changes.
	SELECTOR_DEVICE_CHANGED Selector = 1
	// SELECTOR_DEVICE_LIST fires on the system object when the set of
	// available devices changes.
	SELECTOR_DEVICE_LIST Selector = 2
	// SELECTOR_DEVICE_LATENCY is the device-reported latency in frames.
	SELECTOR_DEVICE_LATENCY Selector = 3
	// SELECTOR_BUFFER_FRAME_SIZE is the device I/O buffer size in frames.
	SELECTOR_BUFFER_FRAME_SIZE Selector = 4
	// SELECTOR_SAFETY_OFFSET is the device safety offset in frames.
	SELECTOR_SAFETY_OFFSET Selector = 5
)

// SessionState defines the lifecycle state of a Session.
type SessionState int32

const (
	SESSION_STATE_UNCONFIGURED      SessionState = 0 // No resources acquired.
	SESSION_STATE_LOCKED            SessionState = 1 // Exclusive access attempted, mixing suppressed.
	SESSION_STATE_STREAM_SELECTED   SessionState = 2 // Output sub-stream chosen.
	SESSION_STATE_FORMAT_NEGOTIATED SessionState = 3 // Physical format switched.
	SESSION_STATE_ACTIVE            SessionState = 4 // Render callback registered, device running.
	SESSION_STATE_DRAINING          SessionState = 5 // Callback delivery paused.
	SESSION_STATE_TORN_DOWN         SessionState = 6 // Final.
)

// SessionStateNames provides human-readable names for session states.
var SessionStateNames = map[SessionState]string{
	SESSION_STATE_UNCONFIGURED:      "UNCONFIGURED",
	SESSION_STATE_LOCKED:            "LOCKED",
	SESSION_STATE_STREAM_SELECTED:   "STREAM_SELECTED",
	SESSION_STATE_FORMAT_NEGOTIATED: "FORMAT_NEGOTIATED",
	SESSION_STATE_ACTIVE:            "ACTIVE",
	SESSION_STATE_DRAINING:          "DRAINING",
	SESSION_STATE_TORN_DOWN:         "TORN_DOWN",
}

// String returns the human-readable name of the state.
func (s SessionState) String() string {
	if name, ok := SessionStateNames[s]; ok {
		return name
	}

	return "UNKNOWN"
}

// EncodingNames provides human-readable names for encodings.
var EncodingNames = map[Encoding]string{
	ENCODING_INVALID: "INVALID",
	ENCODING_PCM:     "PCM",
	ENCODING_AC3:     "AC3",
	ENCODING_EAC3:    "EAC3",
	ENCODING_DTS:     "DTS",
}

// String returns the human-readable name of the encoding.
func (e Encoding) String() string {
	if name, ok := EncodingNames[e]; ok {
		return name
	}

	return "UNKNOWN"
}

// HogPID identifies the process holding the exclusive lock on a device.
type HogPID int32

// HOG_UNOWNED is the sentinel meaning the exclusive lock is not held.
const HOG_UNOWNED HogPID = -1
