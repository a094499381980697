package hogmode

import (
	"fmt"
	"log/slog"
)

// StreamDescriptor identifies the sub-stream a session renders into: the
// stream's host identifier plus its index within the device's buffer list.
// Selected once during initialization and immutable for the session's
// lifetime.
type StreamDescriptor struct {
	ID    StreamID
	Index int
}

// SelectStream picks the first sub-stream of the device that is an output
// stream and is usable for the requested format: any output stream will do
// for PCM, while compressed passthrough additionally requires the stream to
// support the requested encoding. Devices can expose multiple sub-streams;
// what multi-stream devices actually do with them is unclear, so the first
// qualifying one is taken. Probing is read-only; per-stream probe failures
// are logged and the stream skipped. Returns ErrNoUsableStream if no
// candidate qualifies.
func SelectStream(h Host, dev DeviceID, want PhysicalFormat, logger *slog.Logger) (StreamDescriptor, error) {
	if logger == nil {
		logger = slog.Default()
	}

	streams, err := h.Streams(dev)
	if err != nil {
		return StreamDescriptor{}, fmt.Errorf("could not get sub-streams: %w", err)
	}

	for i, stream := range streams {
		direction, err := h.StreamDirection(stream)
		if err != nil {
			logger.Warn("could not get stream direction", "index", i, "err", err)
			continue
		}
		if direction != DIRECTION_OUTPUT {
			logger.Debug("sub-stream is not an output stream", "index", i)
			continue
		}

		if !want.Encoding.IsPCM() {
			supported, err := h.StreamSupportsEncoding(stream, want.Encoding)
			if err != nil {
				logger.Warn("could not probe stream encoding support", "index", i, "err", err)
				continue
			}
			if !supported {
				continue
			}
		}

		logger.Debug("using sub-stream", "index", i, "total", len(streams))

		return StreamDescriptor{ID: stream, Index: i}, nil
	}

	return StreamDescriptor{}, ErrNoUsableStream
}
