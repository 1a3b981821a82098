package events

import "log/slog"

// SlogEmitter writes every event to a structured logger. The daemon uses it
// as the default sink so state changes are observable without an indexer.
type SlogEmitter struct {
	logger *slog.Logger
}

func NewSlogEmitter(logger *slog.Logger) *SlogEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogEmitter{logger: logger}
}

func (e *SlogEmitter) Emit(event Event) {
	if e == nil || event == nil {
		return
	}
	e.logger.Info("engine event",
		slog.String("type", event.EventType()),
		slog.Any("event", event))
}
