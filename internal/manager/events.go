package manager

// Event represents a manager lifecycle event.
// Minimal and stable: name + subject (component or handle id) and optional fields.
type Event struct {
	Name    string
	Subject string
	Fields  map[string]any
}

// EventPublisher receives events from the manager. Implementations should be
// lightweight and non-blocking; Publish must not panic.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}

// emit logs an event line and publishes it.
func (m *Manager) emit(name, subject string, fields map[string]any) {
	m.log.Info().Str("event", name).Str("subject", subject).Fields(fields).Msg("manager")
	m.publish(Event{Name: name, Subject: subject, Fields: fields})
}

// emitErr is emit at error level with the error attached.
func (m *Manager) emitErr(name, subject string, err error, fields map[string]any) {
	if fields == nil {
		fields = map[string]any{}
	}
	fields["error"] = err.Error()
	m.log.Error().Str("event", name).Str("subject", subject).Err(err).Msg("manager")
	m.publish(Event{Name: name, Subject: subject, Fields: fields})
}

func (m *Manager) publish(e Event) {
	if e.Fields == nil {
		e.Fields = map[string]any{}
	}
	m.mu.RLock()
	p := m.publisher
	m.mu.RUnlock()
	p.Publish(e)
}
