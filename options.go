package fibre

import "go.uber.org/zap"

// Option configures a Host at construction, in the teacher's
// NewFiber/NewScheduler constructor-function style adapted to Go's
// functional-options idiom.
type Option func(*Host)

// WithLogger attaches a zap logger that receives Debug-level lifecycle
// events: push/pop, schedule, suspend/resume/abort. The default is a
// no-op logger, so the library stays silent unless a caller opts in —
// the Go analogue of the C library only emitting diagnostics when built
// with FIBRE_RUNTIME_CHECK.
func WithLogger(l *zap.Logger) Option {
	return func(h *Host) {
		if l != nil {
			h.log = l
		}
	}
}
