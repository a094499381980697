package hogmode

import "errors"

// Fatal error kinds. Any of these reported by Open aborts initialization and
// runs the full best-effort rollback. ErrUnalignedRead is the only error the
// render path can return once a session is active; it is reported to the host
// without tearing the session down.
var (
	// ErrNoUsableStream means no sub-stream of the device qualifies as an
	// output stream for the requested format class.
	ErrNoUsableStream = errors.New("no usable output sub-stream")

	// ErrNoFormatFound means the device published no structurally valid
	// candidate physical format.
	ErrNoFormatFound = errors.New("no physical format found")

	// ErrFormatSwitchFailed means the hardware did not confirm the switch to
	// the negotiated physical format.
	ErrFormatSwitchFailed = errors.New("physical format switch failed")

	// ErrChannelLayoutMismatch means the virtual format's channel count does
	// not match the negotiated channel layout. Downstream buffering assumes a
	// fixed layout, so this is a hard stop.
	ErrChannelLayoutMismatch = errors.New("channel count does not match negotiated layout")

	// ErrUnalignedRead means the host requested a byte count that is not an
	// exact multiple of the frame stride.
	ErrUnalignedRead = errors.New("unaligned read")
)
