package a2s

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Options configures a blocking Query/QueryOne call. The core package
// accepts configuration purely as this struct — it never reads a flag, a
// config file, or an environment variable itself.
type Options struct {
	Timeout time.Duration
	Logger  zerolog.Logger
}

func (o Options) dispatcherOpts() []DispatcherOption {
	var opts []DispatcherOption
	if o.Timeout > 0 {
		opts = append(opts, WithTimeout(o.Timeout))
	}
	opts = append(opts, WithLogger(o.Logger))
	return opts
}

// Query runs the dispatcher for every given endpoint and blocks until the
// run's Done event fires, discarding the intermediate event stream. Use
// NewDispatcher directly when the per-stage events (and early results as
// they arrive) matter.
func Query(ctx context.Context, specs []EndpointSpec, opts Options) DoneEvent {
	d := NewDispatcher(specs, opts.dispatcherOpts()...)
	events := d.Events()
	d.Run(ctx)

	for {
		select {
		case <-events.Info:
		case <-events.Challenge:
		case <-events.Players:
		case <-events.Rules:
		case <-events.Ping:
		case <-events.Error:
		case done := <-events.Done:
			return done
		}
	}
}

// QueryOne runs the dispatcher for a single endpoint and blocks for its
// Result, mirroring a conventional synchronous client call for callers who
// don't need the multi-endpoint event surface.
func QueryOne(ctx context.Context, spec EndpointSpec, opts Options) Result {
	done := Query(ctx, []EndpointSpec{spec}, opts)
	if len(done.Results) == 0 {
		return Result{Spec: spec, Err: ErrTimeout}
	}
	return done.Results[0]
}
