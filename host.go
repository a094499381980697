package hogmode

import "time"

// DeviceID identifies an audio object on the host. Devices and the system
// object share one identifier space, so property listeners can target either.
type DeviceID uint32

// SYSTEM_OBJECT is the host-wide object that carries the device-list
// property. Watching SELECTOR_DEVICE_LIST on it reports hotplug events.
const SYSTEM_OBJECT DeviceID = 1

// StreamID identifies one sub-stream of a device.
type StreamID uint32

// RenderProcID identifies a registered render callback on a device.
type RenderProcID uint32

// ListenerID identifies a registered property listener.
type ListenerID uint32

// DeviceInfo describes one host device for user-facing selection.
type DeviceInfo struct {
	ID    DeviceID
	UID   string // Stable unique identifier, survives re-enumeration.
	Name  string
	Alive bool
}

// RenderFunc is invoked by the host on its dedicated real-time thread to fill
// output buffers with audio. buffers holds one byte slice per sub-stream of
// the device; the callback fills the slice of its selected sub-stream and
// leaves the rest untouched. outputTime is the host's estimate of when the
// filled buffers reach the hardware. The callback must not block beyond the
// upstream buffer's pull contract.
type RenderFunc func(outputTime time.Time, buffers [][]byte) error

// PropertyListenerFunc is invoked by the host's notification thread when a
// watched property fires. Invocations for different selectors may run
// concurrently with each other.
type PropertyListenerFunc func(object DeviceID, selector Selector)

// Host is the platform capability surface the session is built against. All
// methods are safe for use from the control thread; the host invokes
// RenderFunc and PropertyListenerFunc on its own threads.
type Host interface {
	// Devices enumerates the available devices. Pure pass-through for
	// user-facing selection; the session itself never calls it.
	Devices() ([]DeviceInfo, error)

	// DeviceIsAlive reports whether the device is still present and usable.
	DeviceIsAlive(dev DeviceID) (bool, error)

	// LockDevice acquires exclusive (hog mode) access to the device and
	// returns the owning pid.
	LockDevice(dev DeviceID) (HogPID, error)

	// UnlockDevice releases exclusive access previously acquired with
	// LockDevice.
	UnlockDevice(dev DeviceID, pid HogPID) error

	// DisableMixing turns off device-level mixing. changed reports whether
	// the call actually altered the device state, so the caller knows
	// whether to re-enable mixing on teardown.
	DisableMixing(dev DeviceID) (changed bool, err error)

	// EnableMixing turns device-level mixing back on.
	EnableMixing(dev DeviceID) error

	// Streams lists the sub-streams of the device in buffer-list order.
	Streams(dev DeviceID) ([]StreamID, error)

	// StreamDirection returns the data direction of a sub-stream.
	StreamDirection(stream StreamID) (Direction, error)

	// StreamSupportsEncoding reports whether the sub-stream can transmit the
	// given compressed encoding.
	StreamSupportsEncoding(stream StreamID, enc Encoding) (bool, error)

	// PhysicalFormat returns the format currently transmitted over hardware.
	PhysicalFormat(stream StreamID) (PhysicalFormat, error)

	// AvailablePhysicalFormats returns the candidate physical formats the
	// sub-stream can be switched to.
	AvailablePhysicalFormats(stream StreamID) ([]PhysicalFormat, error)

	// SetPhysicalFormat switches the sub-stream to the given physical format
	// and blocks until the hardware confirms the switch or the host's
	// internal timeout elapses.
	SetPhysicalFormat(stream StreamID, format PhysicalFormat) error

	// VirtualFormat returns the format the hardware presents to software
	// after any implicit conversion.
	VirtualFormat(stream StreamID) (PhysicalFormat, error)

	// DeviceLatency reads one of the per-device latency properties
	// (SELECTOR_DEVICE_LATENCY, SELECTOR_BUFFER_FRAME_SIZE,
	// SELECTOR_SAFETY_OFFSET), in frames.
	DeviceLatency(dev DeviceID, sel Selector) (uint32, error)

	// AddPropertyListener watches a property on a device or on
	// SYSTEM_OBJECT.
	AddPropertyListener(object DeviceID, sel Selector, fn PropertyListenerFunc) (ListenerID, error)

	// RemovePropertyListener stops a previously added watch.
	RemovePropertyListener(object DeviceID, id ListenerID) error

	// CreateRenderProc registers a render callback with the device's
	// real-time I/O mechanism. The callback is not invoked until
	// StartDevice.
	CreateRenderProc(dev DeviceID, fn RenderFunc) (RenderProcID, error)

	// DestroyRenderProc deregisters a render callback.
	DestroyRenderProc(dev DeviceID, id RenderProcID) error

	// StartDevice begins callback delivery for the registered render proc.
	StartDevice(dev DeviceID, id RenderProcID) error

	// StopDevice halts callback delivery without deregistering the proc.
	// The host guarantees no render invocation is in flight once it returns.
	StopDevice(dev DeviceID, id RenderProcID) error
}
