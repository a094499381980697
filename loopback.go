package hogmode

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// LoopbackHost is a self-contained in-memory Host: a virtual device topology
// with scriptable sub-streams, candidate formats and latency properties, a
// paced render clock per started device, and property-change injection. It
// plays the role a loopback sound card plays for a kernel driver: the backend
// the test suite and the bundled commands run against without real hardware.
type LoopbackHost struct {
	mu sync.Mutex

	nextID    uint32
	devices   map[DeviceID]*loopbackDevice
	streams   map[StreamID]*loopbackStream
	listeners map[DeviceID]map[ListenerID]listenerEntry
}

type listenerEntry struct {
	sel Selector
	fn  PropertyListenerFunc
}

// StreamSpec scripts one sub-stream of a loopback device.
type StreamSpec struct {
	Direction Direction
	// Encodings lists the compressed encodings the stream can transmit.
	Encodings []Encoding
	// Formats is the candidate physical format list, in publication order.
	Formats []PhysicalFormat
	// Current is the physical format the stream starts in.
	Current PhysicalFormat
	// RefuseSwitch makes every SetPhysicalFormat call fail, for exercising
	// the format-switch failure path.
	RefuseSwitch bool
}

// DeviceSpec scripts one loopback device.
type DeviceSpec struct {
	Name          string
	Streams       []StreamSpec
	LatencyFrames uint32
	BufferFrames  uint32
	SafetyFrames  uint32
	// RefuseHog makes LockDevice fail, for exercising the warning-only
	// degradation path.
	RefuseHog bool
}

type loopbackDevice struct {
	id      DeviceID
	uid     string
	spec    DeviceSpec
	alive   bool
	hogPID  HogPID
	mixing  bool
	streams []StreamID

	procs map[RenderProcID]*renderLoop
}

type loopbackStream struct {
	device   DeviceID
	index    int
	spec     StreamSpec
	physical PhysicalFormat
	virtual  PhysicalFormat
	captured []byte
}

type renderLoop struct {
	fn      RenderFunc
	running bool
	stop    chan struct{}
	done    chan struct{}
}

// NewLoopbackHost creates an empty host. Add devices with AddDevice.
func NewLoopbackHost() *LoopbackHost {
	return &LoopbackHost{
		nextID:    uint32(SYSTEM_OBJECT),
		devices:   make(map[DeviceID]*loopbackDevice),
		streams:   make(map[StreamID]*loopbackStream),
		listeners: make(map[DeviceID]map[ListenerID]listenerEntry),
	}
}

// AddDevice registers a scripted device and returns its id.
func (h *LoopbackHost) AddDevice(spec DeviceSpec) DeviceID {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	dev := &loopbackDevice{
		id:     DeviceID(h.nextID),
		uid:    uuid.NewString(),
		spec:   spec,
		alive:  true,
		hogPID: HOG_UNOWNED,
		mixing: true,
		procs:  make(map[RenderProcID]*renderLoop),
	}

	for i, ss := range spec.Streams {
		h.nextID++
		id := StreamID(h.nextID)
		h.streams[id] = &loopbackStream{
			device:   dev.id,
			index:    i,
			spec:     ss,
			physical: ss.Current,
			virtual:  ss.Current,
		}
		dev.streams = append(dev.streams, id)
	}

	h.devices[dev.id] = dev

	return dev.id
}

func (h *LoopbackHost) device(dev DeviceID) (*loopbackDevice, error) {
	d, ok := h.devices[dev]
	if !ok {
		return nil, fmt.Errorf("no such device %d", dev)
	}

	return d, nil
}

func (h *LoopbackHost) stream(stream StreamID) (*loopbackStream, error) {
	s, ok := h.streams[stream]
	if !ok {
		return nil, fmt.Errorf("no such stream %d", stream)
	}

	return s, nil
}

// Devices implements Host.
func (h *LoopbackHost) Devices() ([]DeviceInfo, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	infos := make([]DeviceInfo, 0, len(h.devices))
	for _, d := range h.devices {
		infos = append(infos, DeviceInfo{ID: d.id, UID: d.uid, Name: d.spec.Name, Alive: d.alive})
	}

	return infos, nil
}

// DeviceIsAlive implements Host.
func (h *LoopbackHost) DeviceIsAlive(dev DeviceID) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	d, err := h.device(dev)
	if err != nil {
		return false, err
	}

	return d.alive, nil
}

// LockDevice implements Host. The lock is refused when the device is
// scripted to refuse hog mode or another pid already holds it.
func (h *LoopbackHost) LockDevice(dev DeviceID) (HogPID, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	d, err := h.device(dev)
	if err != nil {
		return HOG_UNOWNED, err
	}
	if d.spec.RefuseHog {
		return HOG_UNOWNED, fmt.Errorf("device %d does not grant hog mode", dev)
	}

	pid := HogPID(os.Getpid())
	if d.hogPID != HOG_UNOWNED && d.hogPID != pid {
		return HOG_UNOWNED, fmt.Errorf("device %d is hogged by pid %d", dev, d.hogPID)
	}
	d.hogPID = pid

	return pid, nil
}

// UnlockDevice implements Host.
func (h *LoopbackHost) UnlockDevice(dev DeviceID, pid HogPID) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	d, err := h.device(dev)
	if err != nil {
		return err
	}
	if d.hogPID != pid {
		return fmt.Errorf("device %d is not hogged by pid %d", dev, pid)
	}
	d.hogPID = HOG_UNOWNED

	return nil
}

// DisableMixing implements Host.
func (h *LoopbackHost) DisableMixing(dev DeviceID) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	d, err := h.device(dev)
	if err != nil {
		return false, err
	}
	if !d.mixing {
		return false, nil
	}
	d.mixing = false

	return true, nil
}

// EnableMixing implements Host.
func (h *LoopbackHost) EnableMixing(dev DeviceID) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	d, err := h.device(dev)
	if err != nil {
		return err
	}
	d.mixing = true

	return nil
}

// Streams implements Host.
func (h *LoopbackHost) Streams(dev DeviceID) ([]StreamID, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	d, err := h.device(dev)
	if err != nil {
		return nil, err
	}

	return append([]StreamID(nil), d.streams...), nil
}

// StreamDirection implements Host.
func (h *LoopbackHost) StreamDirection(stream StreamID) (Direction, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, err := h.stream(stream)
	if err != nil {
		return 0, err
	}

	return s.spec.Direction, nil
}

// StreamSupportsEncoding implements Host.
func (h *LoopbackHost) StreamSupportsEncoding(stream StreamID, enc Encoding) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, err := h.stream(stream)
	if err != nil {
		return false, err
	}
	for _, e := range s.spec.Encodings {
		if e == enc {
			return true, nil
		}
	}

	return false, nil
}

// PhysicalFormat implements Host.
func (h *LoopbackHost) PhysicalFormat(stream StreamID) (PhysicalFormat, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, err := h.stream(stream)
	if err != nil {
		return PhysicalFormat{}, err
	}

	return s.physical, nil
}

// AvailablePhysicalFormats implements Host.
func (h *LoopbackHost) AvailablePhysicalFormats(stream StreamID) ([]PhysicalFormat, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, err := h.stream(stream)
	if err != nil {
		return nil, err
	}

	return append([]PhysicalFormat(nil), s.spec.Formats...), nil
}

// SetPhysicalFormat implements Host. The switch confirms synchronously; a
// format outside the published candidate list is rejected, as is any switch
// on a stream scripted with RefuseSwitch.
func (h *LoopbackHost) SetPhysicalFormat(stream StreamID, format PhysicalFormat) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, err := h.stream(stream)
	if err != nil {
		return err
	}
	if d := h.devices[s.device]; d != nil && !d.alive {
		return fmt.Errorf("device %d is gone", s.device)
	}
	if s.spec.RefuseSwitch {
		return fmt.Errorf("stream %d refused format switch", stream)
	}

	supported := false
	for _, f := range s.spec.Formats {
		if f.Equal(format) {
			supported = true
			break
		}
	}
	if !supported {
		return fmt.Errorf("stream %d does not support %s", stream, format)
	}

	s.physical = format
	// The loopback hardware does no implicit conversion.
	s.virtual = format

	return nil
}

// VirtualFormat implements Host. Unreadable once the device is unplugged.
func (h *LoopbackHost) VirtualFormat(stream StreamID) (PhysicalFormat, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, err := h.stream(stream)
	if err != nil {
		return PhysicalFormat{}, err
	}
	if d := h.devices[s.device]; d != nil && !d.alive {
		return PhysicalFormat{}, fmt.Errorf("device %d is gone", s.device)
	}

	return s.virtual, nil
}

// SetVirtualFormat scripts the virtual format independently of the physical
// one, modeling hardware that applies an implicit conversion. No listeners
// fire; pair with FirePropertyChange to deliver the notification.
func (h *LoopbackHost) SetVirtualFormat(stream StreamID, format PhysicalFormat) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, err := h.stream(stream)
	if err != nil {
		return err
	}
	s.virtual = format

	return nil
}

// DeviceLatency implements Host.
func (h *LoopbackHost) DeviceLatency(dev DeviceID, sel Selector) (uint32, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	d, err := h.device(dev)
	if err != nil {
		return 0, err
	}

	switch sel {
	case SELECTOR_DEVICE_LATENCY:
		return d.spec.LatencyFrames, nil
	case SELECTOR_BUFFER_FRAME_SIZE:
		return d.spec.BufferFrames, nil
	case SELECTOR_SAFETY_OFFSET:
		return d.spec.SafetyFrames, nil
	default:
		return 0, fmt.Errorf("selector %d is not a latency property", sel)
	}
}

// AddPropertyListener implements Host. SYSTEM_OBJECT is a valid target.
func (h *LoopbackHost) AddPropertyListener(object DeviceID, sel Selector, fn PropertyListenerFunc) (ListenerID, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if object != SYSTEM_OBJECT {
		if _, err := h.device(object); err != nil {
			return 0, err
		}
	}

	h.nextID++
	id := ListenerID(h.nextID)
	if h.listeners[object] == nil {
		h.listeners[object] = make(map[ListenerID]listenerEntry)
	}
	h.listeners[object][id] = listenerEntry{sel: sel, fn: fn}

	return id, nil
}

// RemovePropertyListener implements Host.
func (h *LoopbackHost) RemovePropertyListener(object DeviceID, id ListenerID) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	entries := h.listeners[object]
	if _, ok := entries[id]; !ok {
		return fmt.Errorf("no listener %d on object %d", id, object)
	}
	delete(entries, id)

	return nil
}

// CreateRenderProc implements Host.
func (h *LoopbackHost) CreateRenderProc(dev DeviceID, fn RenderFunc) (RenderProcID, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	d, err := h.device(dev)
	if err != nil {
		return 0, err
	}

	h.nextID++
	id := RenderProcID(h.nextID)
	d.procs[id] = &renderLoop{fn: fn}

	return id, nil
}

// DestroyRenderProc implements Host. The proc must be stopped first; a
// running proc is stopped as part of destruction, mirroring hosts that
// tolerate the omission.
func (h *LoopbackHost) DestroyRenderProc(dev DeviceID, id RenderProcID) error {
	if err := h.StopDevice(dev, id); err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	d, err := h.device(dev)
	if err != nil {
		return err
	}
	if _, ok := d.procs[id]; !ok {
		return fmt.Errorf("no render proc %d on device %d", id, dev)
	}
	delete(d.procs, id)

	return nil
}

// StartDevice implements Host. Idempotent for an already running proc.
func (h *LoopbackHost) StartDevice(dev DeviceID, id RenderProcID) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	d, err := h.device(dev)
	if err != nil {
		return err
	}
	loop, ok := d.procs[id]
	if !ok {
		return fmt.Errorf("no render proc %d on device %d", id, dev)
	}
	if loop.running {
		return nil
	}

	loop.running = true
	loop.stop = make(chan struct{})
	loop.done = make(chan struct{})

	go h.runRenderLoop(dev, loop)

	return nil
}

// StopDevice implements Host. Returns only after any in-flight render
// invocation has completed, per the Host contract.
func (h *LoopbackHost) StopDevice(dev DeviceID, id RenderProcID) error {
	h.mu.Lock()

	d, err := h.device(dev)
	if err != nil {
		h.mu.Unlock()

		return err
	}
	loop, ok := d.procs[id]
	if !ok {
		h.mu.Unlock()

		return fmt.Errorf("no render proc %d on device %d", id, dev)
	}
	if !loop.running {
		h.mu.Unlock()

		return nil
	}

	loop.running = false
	stop, done := loop.stop, loop.done
	h.mu.Unlock()

	close(stop)
	<-done

	return nil
}

// runRenderLoop paces render callbacks at the device's buffer cadence,
// capturing whatever the callback produced.
func (h *LoopbackHost) runRenderLoop(dev DeviceID, loop *renderLoop) {
	defer close(loop.done)

	period := h.renderPeriod(dev)
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-loop.stop:
			return
		case <-ticker.C:
			h.renderTick(dev, loop.fn)
		}
	}
}

// renderPeriod is the wall-clock spacing of render callbacks: one device
// buffer's worth of audio at the first output stream's current rate.
func (h *LoopbackHost) renderPeriod(dev DeviceID) time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()

	const fallback = 10 * time.Millisecond

	d, err := h.device(dev)
	if err != nil || d.spec.BufferFrames == 0 {
		return fallback
	}
	for _, id := range d.streams {
		s := h.streams[id]
		if s.spec.Direction == DIRECTION_OUTPUT && s.virtual.SampleRate > 0 {
			return s.virtual.FramesToDuration(d.spec.BufferFrames)
		}
	}

	return fallback
}

// renderTick performs one callback invocation with freshly sized buffers.
func (h *LoopbackHost) renderTick(dev DeviceID, fn RenderFunc) {
	h.mu.Lock()
	d, err := h.device(dev)
	if err != nil {
		h.mu.Unlock()

		return
	}

	frames := d.spec.BufferFrames
	if frames == 0 {
		frames = 512
	}

	buffers := make([][]byte, len(d.streams))
	for i, id := range d.streams {
		stride := h.streams[id].virtual.FrameSize()
		buffers[i] = make([]byte, frames*stride)
	}
	outputTime := time.Now().Add(h.streams[d.streams[0]].virtual.FramesToDuration(frames))
	streams := append([]StreamID(nil), d.streams...)
	h.mu.Unlock()

	// The callback runs without the host lock, like a real I/O thread.
	if err := fn(outputTime, buffers); err != nil {
		return
	}

	h.mu.Lock()
	for i, id := range streams {
		s := h.streams[id]
		s.captured = append(s.captured, buffers[i]...)
	}
	h.mu.Unlock()
}

// RenderOnce synchronously invokes the registered render proc with one set of
// buffers of byteCount bytes per sub-stream, returning the filled buffers and
// the callback's error. Test and tooling hook; the paced loop does the same
// on its own cadence.
func (h *LoopbackHost) RenderOnce(dev DeviceID, id RenderProcID, byteCount int) ([][]byte, error) {
	h.mu.Lock()
	d, err := h.device(dev)
	if err != nil {
		h.mu.Unlock()

		return nil, err
	}
	loop, ok := d.procs[id]
	if !ok {
		h.mu.Unlock()

		return nil, fmt.Errorf("no render proc %d on device %d", id, dev)
	}

	buffers := make([][]byte, len(d.streams))
	for i := range d.streams {
		buffers[i] = make([]byte, byteCount)
	}
	fn := loop.fn
	h.mu.Unlock()

	return buffers, fn(time.Now(), buffers)
}

// RenderProcs returns the ids of the render procs registered on a device, in
// unspecified order.
func (h *LoopbackHost) RenderProcs(dev DeviceID) []RenderProcID {
	h.mu.Lock()
	defer h.mu.Unlock()

	d, err := h.device(dev)
	if err != nil {
		return nil
	}

	ids := make([]RenderProcID, 0, len(d.procs))
	for id := range d.procs {
		ids = append(ids, id)
	}

	return ids
}

// Captured drains and returns the audio rendered into a sub-stream so far.
func (h *LoopbackHost) Captured(stream StreamID) []byte {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.streams[stream]
	if !ok {
		return nil
	}
	out := s.captured
	s.captured = nil

	return out
}

// HogOwner reports the pid currently holding the device lock, HOG_UNOWNED if
// none.
func (h *LoopbackHost) HogOwner(dev DeviceID) HogPID {
	h.mu.Lock()
	defer h.mu.Unlock()

	d, err := h.device(dev)
	if err != nil {
		return HOG_UNOWNED
	}

	return d.hogPID
}

// MixingEnabled reports whether device-level mixing is currently on.
func (h *LoopbackHost) MixingEnabled(dev DeviceID) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	d, err := h.device(dev)
	if err != nil {
		return false
	}

	return d.mixing
}

// ChangePhysicalFormat changes a stream's transmission format behind the
// session's back, the way another process or the hardware itself would, and
// fires the device-changed listeners from the calling goroutine.
func (h *LoopbackHost) ChangePhysicalFormat(stream StreamID, format PhysicalFormat) error {
	h.mu.Lock()
	s, err := h.stream(stream)
	if err != nil {
		h.mu.Unlock()

		return err
	}
	s.physical = format
	s.virtual = format
	dev := s.device
	h.mu.Unlock()

	h.FirePropertyChange(dev, SELECTOR_DEVICE_CHANGED)

	return nil
}

// Unplug marks a device as gone and fires the system-wide device-list
// listeners.
func (h *LoopbackHost) Unplug(dev DeviceID) error {
	h.mu.Lock()
	d, err := h.device(dev)
	if err != nil {
		h.mu.Unlock()

		return err
	}
	d.alive = false
	h.mu.Unlock()

	h.FirePropertyChange(SYSTEM_OBJECT, SELECTOR_DEVICE_LIST)

	return nil
}

// FirePropertyChange invokes the listeners watching (object, selector) from
// the calling goroutine. Concurrent calls model the host's notification
// thread firing redundant notifications.
func (h *LoopbackHost) FirePropertyChange(object DeviceID, sel Selector) {
	h.mu.Lock()
	var fns []PropertyListenerFunc
	for _, entry := range h.listeners[object] {
		if entry.sel == sel {
			fns = append(fns, entry.fn)
		}
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn(object, sel)
	}
}
