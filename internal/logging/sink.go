package logging

import (
	"github.com/rs/zerolog"
)

// Sink receives diagnostics from the assembly core. The caller owns the
// sink and hands it to every component; nothing in the core configures
// logging on its own.
//
// Key/value pairs follow the msg: Info("probed", "path", p, "seconds", 4.2).
type Sink interface {
	Info(msg string, kv ...any)
	Warn(msg string, kv ...any)
	Error(msg string, kv ...any)
}

type zerologSink struct {
	logger zerolog.Logger
}

// NewSink adapts a zerolog logger to a Sink.
func NewSink(logger zerolog.Logger) Sink {
	return &zerologSink{logger: logger}
}

func (s *zerologSink) Info(msg string, kv ...any) {
	emit(s.logger.Info(), msg, kv)
}

func (s *zerologSink) Warn(msg string, kv ...any) {
	emit(s.logger.Warn(), msg, kv)
}

func (s *zerologSink) Error(msg string, kv ...any) {
	emit(s.logger.Error(), msg, kv)
}

func emit(ev *zerolog.Event, msg string, kv []any) {
	if len(kv)%2 == 1 {
		kv = append(kv, "(MISSING)")
	}
	ev.Fields(kv).Msg(msg)
}

type nopSink struct{}

func (nopSink) Info(string, ...any)  {}
func (nopSink) Warn(string, ...any)  {}
func (nopSink) Error(string, ...any) {}

// Nop returns a Sink that discards everything.
func Nop() Sink { return nopSink{} }
