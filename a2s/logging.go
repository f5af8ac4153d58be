package a2s

import "github.com/rs/zerolog"

// WithLogger attaches a zerolog.Logger the dispatcher emits diagnostics
// through, each line tagged with the run's run_id. The session and
// reassembler do not log. Callers who
// don't set one get a disabled logger (zerolog.Nop()) — this library is
// silent by default, matching the teacher's opt-in Debug flag.
func WithLogger(logger zerolog.Logger) DispatcherOption {
	return func(o *dispatcherOptions) {
		o.logger = logger
	}
}
