package hogmode

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Source is the upstream audio buffer a session pulls from. Implementations
// own their backpressure and underrun policy and must be internally
// synchronized: ReadFrames is called from the host's real-time thread and
// must honor the deadline contract rather than block.
type Source interface {
	// ReadFrames fills dst with up to frames frames of interleaved audio,
	// already matched to the negotiated hardware format, targeted to arrive
	// at the hardware by deadline. It returns the number of frames actually
	// produced; the remainder of dst is expected to be silence.
	ReadFrames(dst []byte, frames uint32, deadline time.Time) uint32
}

// ChannelLayout is the logical channel layout fixed by the channel-map
// initializer. The session validates it against the hardware's virtual
// format; it never recomputes it.
type ChannelLayout struct {
	Channels uint32
}

// ChannelMapFunc fixes the logical channel layout for a device and its
// negotiated physical format. External collaborator; see DefaultChannelMap.
type ChannelMapFunc func(h Host, dev DeviceID, format PhysicalFormat) (ChannelLayout, error)

// DefaultChannelMap derives the layout directly from the negotiated format's
// channel count.
func DefaultChannelMap(h Host, dev DeviceID, format PhysicalFormat) (ChannelLayout, error) {
	return ChannelLayout{Channels: format.Channels}, nil
}

// Config carries the parameters for opening a Session.
type Config struct {
	// Device is the target device, resolved externally from a user-facing
	// device identifier.
	Device DeviceID

	// Format is the requested logical format, PCM or compressed passthrough.
	Format PhysicalFormat

	// Source supplies the audio data. Required.
	Source Source

	// OnReload is the reload request sink: invoked at most once per drift
	// episode when the session must be rebuilt from scratch by its owner.
	// Called from the host's notification thread. Optional.
	OnReload func()

	// ChannelMap fixes the logical channel layout. Defaults to
	// DefaultChannelMap.
	ChannelMap ChannelMapFunc

	// Logger receives advisory conditions and progress. Defaults to
	// slog.Default().
	Logger *slog.Logger
}

// Session owns one exclusive-mode output session on a device: the hog lock,
// the selected sub-stream, the negotiated format and the registered render
// and change callbacks. All methods are for the control thread; the render
// and listener paths touch only immutable fields and the reload flag.
type Session struct {
	host   Host
	cfg    Config
	logger *slog.Logger

	state SessionState

	hogPID        HogPID
	changedMixing bool

	stream StreamDescriptor

	// originalFormat is restored on teardown once formatCommitted is set.
	originalFormat  PhysicalFormat
	formatCommitted bool

	// hwFormat is the virtual format as read back after the switch; the
	// drift baseline for the change listener. format is the logical
	// negotiated format exposed to callers.
	hwFormat PhysicalFormat
	format   PhysicalFormat
	stride   uint32
	latency  time.Duration

	listeners        []listenerHandle
	renderProc       RenderProcID
	renderRegistered bool

	reloadRequested atomic.Bool
}

type listenerHandle struct {
	object DeviceID
	id     ListenerID
}

// Open acquires the device, negotiates the physical format and registers the
// render and change callbacks. On any fatal error the full rollback sequence
// runs best-effort before the error is returned; the device is left in its
// original state as far as the hardware allows. Failure to acquire the hog
// lock or to disable mixing is deliberately non-fatal: the session degrades
// to best-effort exclusivity with a logged warning, matching hardware that
// does not grant hog mode. There is no retry; the caller re-invokes Open.
func Open(h Host, cfg Config) (*Session, error) {
	if h == nil {
		return nil, fmt.Errorf("host is required")
	}
	if cfg.Source == nil {
		return nil, fmt.Errorf("config: Source is required")
	}
	if !cfg.Format.Encoding.IsPCM() && !cfg.Format.Encoding.IsCompressed() {
		return nil, fmt.Errorf("config: unsupported format encoding %s", cfg.Format.Encoding)
	}
	if cfg.ChannelMap == nil {
		cfg.ChannelMap = DefaultChannelMap
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("session", uuid.NewString(), "device", cfg.Device)

	s := &Session{
		host:   h,
		cfg:    cfg,
		logger: logger,
		state:  SESSION_STATE_UNCONFIGURED,
		hogPID: HOG_UNOWNED,
	}

	if err := s.acquire(); err != nil {
		if rbErr := s.teardown(); rbErr != nil {
			s.logger.Warn("rollback finished with warnings", "err", rbErr)
		}

		return nil, err
	}

	s.state = SESSION_STATE_ACTIVE
	s.logger.Info("session active", "format", s.format, "latency", s.latency)

	return s, nil
}

// acquire walks the initialization states in order. Any returned error is
// fatal; the caller runs the rollback.
func (s *Session) acquire() error {
	dev := s.cfg.Device

	alive, err := s.host.DeviceIsAlive(dev)
	if err != nil {
		s.logger.Warn("could not check whether device is alive", "err", err)
	} else if !alive {
		s.logger.Warn("device is not alive")
	}

	pid, err := s.host.LockDevice(dev)
	if err != nil {
		s.logger.Warn("failed to set hog mode, continuing without exclusivity", "err", err)
	} else {
		s.hogPID = pid
	}

	changed, err := s.host.DisableMixing(dev)
	if err != nil {
		s.logger.Warn("failed to disable mixing", "err", err)
	}
	s.changedMixing = changed
	s.state = SESSION_STATE_LOCKED

	stream, err := SelectStream(s.host, dev, s.cfg.Format, s.logger)
	if err != nil {
		return err
	}
	s.stream = stream
	s.state = SESSION_STATE_STREAM_SELECTED

	original, err := s.host.PhysicalFormat(stream.ID)
	if err != nil {
		return fmt.Errorf("could not get stream's original physical format: %w", err)
	}

	candidates, err := s.host.AvailablePhysicalFormats(stream.ID)
	if err != nil {
		return fmt.Errorf("could not get stream's candidate formats: %w", err)
	}

	best, err := BestFormat(s.cfg.Format, candidates)
	if err != nil {
		return err
	}
	s.logger.Debug("negotiated physical format", "format", best)

	s.originalFormat = original
	if err := s.host.SetPhysicalFormat(stream.ID, best); err != nil {
		return fmt.Errorf("%w (%s): %v", ErrFormatSwitchFailed, best, err)
	}
	s.formatCommitted = true
	s.state = SESSION_STATE_FORMAT_NEGOTIATED

	layout, err := s.cfg.ChannelMap(s.host, dev, best)
	if err != nil {
		return fmt.Errorf("could not initialize channel layout: %w", err)
	}

	virtual, err := s.host.VirtualFormat(stream.ID)
	if err != nil {
		return fmt.Errorf("could not get stream's virtual format: %w", err)
	}
	s.logger.Debug("virtual format", "format", virtual)

	if !virtual.Interleaved() || virtual.FrameSize() == 0 {
		return fmt.Errorf("hardware format not supported: %s", virtual)
	}

	// Recompute the logical format from the now-active virtual format. When
	// both the requested and active encodings are compressed passthrough,
	// keep the requested tag: the mapping between logical and hardware
	// passthrough tags is imperfect.
	format := virtual
	if s.cfg.Format.Encoding.IsCompressed() && virtual.Encoding.IsCompressed() {
		format.Encoding = s.cfg.Format.Encoding
	}

	if format.Channels != layout.Channels {
		return fmt.Errorf("%w: hardware has %d channels, layout has %d",
			ErrChannelLayoutMismatch, format.Channels, layout.Channels)
	}

	s.hwFormat = virtual
	s.format = format
	s.stride = format.FrameSize()
	s.latency = s.latencyBudget(dev, format)
	s.logger.Debug("base latency", "latency", s.latency)

	for _, watch := range []struct {
		object DeviceID
		sel    Selector
	}{
		{dev, SELECTOR_DEVICE_CHANGED},
		{SYSTEM_OBJECT, SELECTOR_DEVICE_LIST},
	} {
		id, err := s.host.AddPropertyListener(watch.object, watch.sel, s.onPropertyChange)
		if err != nil {
			return fmt.Errorf("cannot install change listener: %w", err)
		}
		s.listeners = append(s.listeners, listenerHandle{object: watch.object, id: id})
	}

	proc, err := s.host.CreateRenderProc(dev, s.render)
	if err != nil {
		return fmt.Errorf("failed to register render callback: %w", err)
	}
	s.renderProc = proc
	s.renderRegistered = true

	if err := s.host.StartDevice(dev, proc); err != nil {
		return fmt.Errorf("failed to start callback delivery: %w", err)
	}

	return nil
}

// latencyBudget sums the device-reported latency properties, in frames, and
// converts them to time at the negotiated rate. Each property read failure is
// advisory; the property simply contributes nothing.
func (s *Session) latencyBudget(dev DeviceID, format PhysicalFormat) time.Duration {
	var frames uint32
	for _, sel := range []Selector{
		SELECTOR_DEVICE_LATENCY,
		SELECTOR_BUFFER_FRAME_SIZE,
		SELECTOR_SAFETY_OFFSET,
	} {
		value, err := s.host.DeviceLatency(dev, sel)
		if err != nil {
			s.logger.Warn("cannot get device latency", "selector", sel, "err", err)
			continue
		}
		frames += value
	}

	return format.FramesToDuration(frames)
}

// Pause stops callback delivery without deregistering the render proc or
// releasing any hardware resource. Reversible with Resume.
func (s *Session) Pause() error {
	if s.state != SESSION_STATE_ACTIVE {
		return fmt.Errorf("cannot pause in state %s", s.state)
	}

	if err := s.host.StopDevice(s.cfg.Device, s.renderProc); err != nil {
		s.logger.Warn("can't stop callback delivery", "err", err)

		return fmt.Errorf("pause: %w", err)
	}
	s.state = SESSION_STATE_DRAINING

	return nil
}

// Resume restarts callback delivery using the render proc registered at Open.
func (s *Session) Resume() error {
	if s.state != SESSION_STATE_DRAINING {
		return fmt.Errorf("cannot resume in state %s", s.state)
	}

	if err := s.host.StartDevice(s.cfg.Device, s.renderProc); err != nil {
		s.logger.Warn("can't restart callback delivery", "err", err)

		return fmt.Errorf("resume: %w", err)
	}
	s.state = SESSION_STATE_ACTIVE

	return nil
}

// Close tears the session down: listeners removed, render callback stopped
// and destroyed, original physical format restored, mixing re-enabled if this
// session disabled it, hog lock released. Every step is attempted regardless
// of earlier failures; failures are logged and returned joined. Safe to call
// more than once.
func (s *Session) Close() error {
	if s.state == SESSION_STATE_TORN_DOWN {
		return nil
	}

	return s.teardown()
}

// teardownStep pairs an advisory label with one rollback action.
type teardownStep struct {
	name string
	run  func() error
}

// teardown executes the ordered rollback list unconditionally and
// independently: a failing step is recorded and the rest still run. It is the
// single exit path for both failed initialization and regular Close.
func (s *Session) teardown() error {
	dev := s.cfg.Device

	var steps []teardownStep

	for _, l := range s.listeners {
		listener := l
		steps = append(steps, teardownStep{
			name: "remove change listener",
			run:  func() error { return s.host.RemovePropertyListener(listener.object, listener.id) },
		})
	}

	if s.renderRegistered {
		steps = append(steps,
			teardownStep{
				name: "stop callback delivery",
				run:  func() error { return s.host.StopDevice(dev, s.renderProc) },
			},
			teardownStep{
				name: "destroy render callback",
				run:  func() error { return s.host.DestroyRenderProc(dev, s.renderProc) },
			},
		)
	}

	if s.formatCommitted {
		steps = append(steps, teardownStep{
			name: "restore original physical format",
			run:  func() error { return s.host.SetPhysicalFormat(s.stream.ID, s.originalFormat) },
		})
	}

	if s.changedMixing {
		steps = append(steps, teardownStep{
			name: "re-enable mixing",
			run:  func() error { return s.host.EnableMixing(dev) },
		})
	}

	if s.hogPID != HOG_UNOWNED {
		steps = append(steps, teardownStep{
			name: "release exclusive lock",
			run: func() error {
				err := s.host.UnlockDevice(dev, s.hogPID)
				s.hogPID = HOG_UNOWNED

				return err
			},
		})
	}

	var report []error
	for _, step := range steps {
		if err := step.run(); err != nil {
			s.logger.Warn("teardown step failed", "step", step.name, "err", err)
			report = append(report, fmt.Errorf("%s: %w", step.name, err))
		}
	}

	s.listeners = nil
	s.renderRegistered = false
	s.formatCommitted = false
	s.changedMixing = false
	s.state = SESSION_STATE_TORN_DOWN

	return errors.Join(report...)
}

// State returns the session's lifecycle state.
func (s *Session) State() SessionState {
	return s.state
}

// Format returns the negotiated logical output format. Valid once the
// session is active.
func (s *Session) Format() PhysicalFormat {
	return s.format
}

// SampleRate returns the negotiated output sample rate in Hz.
func (s *Session) SampleRate() float64 {
	return s.format.SampleRate
}

// Stream returns the selected sub-stream descriptor.
func (s *Session) Stream() StreamDescriptor {
	return s.stream
}

// Latency returns the fixed latency budget: device latency, buffer frame
// size and safety offset, converted to time at the negotiated rate. Computed
// once at session start.
func (s *Session) Latency() time.Duration {
	return s.latency
}

// ReloadPending reports whether the change listener has requested a reload.
// The flag stays set until the session is rebuilt; this session never clears
// it.
func (s *Session) ReloadPending() bool {
	return s.reloadRequested.Load()
}
