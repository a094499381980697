package hogmode

// onPropertyChange runs on the host's notification thread whenever a watched
// property fires, for both the per-device and the system-wide device-list
// selectors. It checks whether the stream still reports the negotiated
// virtual format; if the format is unreadable or has drifted, the reload flag
// is raised with a single compare-and-set so that redundant concurrent
// notifications for the same drift episode issue exactly one reload request.
func (s *Session) onPropertyChange(object DeviceID, selector Selector) {
	current, err := s.host.VirtualFormat(s.stream.ID)
	if err != nil {
		s.logger.Warn("could not get stream format", "err", err)
	}

	if err == nil && s.hwFormat.Equal(current) {
		return
	}

	if s.reloadRequested.CompareAndSwap(false, true) {
		s.logger.Info("stream format changed, requesting reload",
			"object", object, "selector", selector)
		if s.cfg.OnReload != nil {
			s.cfg.OnReload()
		}
	}
}
