package a2s

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultTimeout is the overall per-run deadline used when no WithTimeout
// option is given; see spec.md §6.
const DefaultTimeout = 2000 * time.Millisecond

type dispatcherOptions struct {
	timeout   time.Duration
	transport Transport
	resolver  Resolver
	logger    zerolog.Logger
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*dispatcherOptions)

// WithTimeout overrides the overall wall-clock deadline for the run.
func WithTimeout(d time.Duration) DispatcherOption {
	return func(o *dispatcherOptions) { o.timeout = d }
}

// WithTransport overrides the default UDP Transport, e.g. with a fake for
// tests.
func WithTransport(t Transport) DispatcherOption {
	return func(o *dispatcherOptions) { o.transport = t }
}

// WithResolver overrides the default net.Resolver-backed Resolver.
func WithResolver(r Resolver) DispatcherOption {
	return func(o *dispatcherOptions) { o.resolver = r }
}

// Dispatcher owns the bound UDP socket, the set of endpoint sessions, and
// the overall timeout for one query run; see spec.md §4.5.
type Dispatcher struct {
	specs []EndpointSpec
	opts  dispatcherOptions
	runID uuid.UUID

	events struct {
		info      chan InfoEvent
		challenge chan ChallengeEvent
		players   chan PlayersEvent
		rules     chan RulesEvent
		ping      chan PingEvent
		errs      chan ErrorEvent
		done      chan DoneEvent
	}
}

// NewDispatcher prepares a dispatcher for the given endpoints. Call Run to
// start it.
func NewDispatcher(specs []EndpointSpec, opts ...DispatcherOption) *Dispatcher {
	o := dispatcherOptions{
		timeout:   DefaultTimeout,
		transport: NewUDPTransport(),
		resolver:  NewResolver(),
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	d := &Dispatcher{specs: specs, opts: o, runID: uuid.New()}
	n := len(specs)
	d.events.info = make(chan InfoEvent, n+1)
	d.events.challenge = make(chan ChallengeEvent, 2*n+1)
	d.events.players = make(chan PlayersEvent, n+1)
	d.events.rules = make(chan RulesEvent, n+1)
	d.events.ping = make(chan PingEvent, n+1)
	d.events.errs = make(chan ErrorEvent, 4*n+16)
	d.events.done = make(chan DoneEvent, 1)
	return d
}

// Events returns the typed channel table this run delivers through. Safe to
// call before or after Run; the channels are created in NewDispatcher.
func (d *Dispatcher) Events() Events {
	return Events{
		Info:      d.events.info,
		Challenge: d.events.challenge,
		Players:   d.events.players,
		Rules:     d.events.rules,
		Ping:      d.events.ping,
		Error:     d.events.errs,
		Done:      d.events.done,
	}
}

// Run resolves every endpoint, binds the socket, sends the initial
// A2S_INFO requests, and drives the event loop in a new goroutine. It
// returns immediately; completion is observed via Events().Done, which
// fires exactly once. Every event channel is closed once Done has been
// sent.
func (d *Dispatcher) Run(ctx context.Context) {
	go d.loop(ctx)
}

func (d *Dispatcher) log() zerolog.Logger {
	return d.opts.logger.With().Str("run_id", d.runID.String()).Logger()
}

func (d *Dispatcher) loop(ctx context.Context) {
	log := d.log()
	log.Debug().Int("endpoints", len(d.specs)).Msg("dispatcher starting")

	defer close(d.events.done)
	defer close(d.events.info)
	defer close(d.events.challenge)
	defer close(d.events.players)
	defer close(d.events.rules)
	defer close(d.events.ping)
	defer close(d.events.errs)

	sessions := make([]*session, len(d.specs))
	index := make(map[netip.AddrPort]int, len(d.specs))

	resolved := resolveAll(ctx, d.opts.resolver, d.specs)
	for i, spec := range d.specs {
		if resolved[i].err != nil {
			log.Warn().Str("host", spec.Host).Err(resolved[i].err).Msg("resolve failed")
			d.events.errs <- ErrorEvent{Endpoint: spec, Err: resolved[i].err}
			sessions[i] = newSession(spec, netip.AddrPort{})
			sessions[i].err = resolved[i].err
			continue
		}
		sessions[i] = newSession(spec, resolved[i].addr)
		index[resolved[i].addr] = i
	}

	if err := d.opts.transport.Bind(ctx); err != nil {
		log.Error().Err(err).Msg("bind failed")
		d.events.errs <- ErrorEvent{Err: err}
		d.finish(sessions, false)
		return
	}
	defer d.opts.transport.Close()

	for i, sess := range sessions {
		if sess.err != nil {
			continue
		}
		req, err := initialRequest()
		if err != nil {
			sess.err = err
			continue
		}
		if err := d.opts.transport.SendTo(req, sess.addr); err != nil {
			log.Error().Err(err).Msg("fatal socket error sending initial request")
			d.events.errs <- ErrorEvent{Err: err}
			d.finish(sessions, false)
			return
		}
		_ = i
	}

	runCtx, cancel := context.WithTimeout(ctx, d.opts.timeout)
	defer cancel()

	timedOut := false
	for {
		if allTerminal(sessions) {
			break
		}

		dgram, err := d.opts.transport.Recv(runCtx)
		if err != nil {
			if deadline, ok := runCtx.Deadline(); ok && !time.Now().Before(deadline) {
				<-runCtx.Done() // the socket deadline can fire before the context records its expiry
			}
			if runCtx.Err() != nil {
				timedOut = errors.Is(runCtx.Err(), context.DeadlineExceeded)
				break
			}
			log.Error().Err(err).Msg("fatal socket error receiving")
			d.events.errs <- ErrorEvent{Err: err}
			break
		}

		idx, ok := index[dgram.From]
		if !ok {
			log.Warn().Str("from", dgram.From.String()).Msg("datagram from unrecognized source")
			d.events.errs <- ErrorEvent{Err: fmt.Errorf("%w: %s", ErrUnknownSource, dgram.From)}
			continue
		}

		sess := sessions[idx]
		if sess.terminal() {
			continue // late datagram for an already-finished endpoint; dropped.
		}

		d.ingestDatagram(log, sess, dgram.Data)
	}

	d.finish(sessions, timedOut)
}

func (d *Dispatcher) ingestDatagram(log zerolog.Logger, sess *session, data []byte) {
	r := newReader(data)
	prefix, err := r.readI32()
	if err != nil {
		d.events.errs <- ErrorEvent{Endpoint: sess.spec, Err: fmt.Errorf("%w: %v", ErrTruncated, err)}
		return
	}

	switch prefix {
	case int32(simplePrefix):
		d.processBody(log, sess, data[r.pos:])
	case int32(splitPrefix):
		payload, complete, err := ingestFragment(&sess.reassembly, data[r.pos:], sess.appID, sess.protocolVersion)
		if err != nil {
			sess.err = err
			d.events.errs <- ErrorEvent{Endpoint: sess.spec, Err: err}
			return
		}
		if !complete {
			return
		}
		d.processBody(log, sess, payload)
	default:
		// Framing prefix outside {-1,-2}: surfaced, endpoint state untouched.
		d.events.errs <- ErrorEvent{Endpoint: sess.spec, Err: fmt.Errorf("%w: %d", ErrBadFraming, prefix)}
	}
}

func (d *Dispatcher) processBody(log zerolog.Logger, sess *session, body []byte) {
	out, err := sess.handleResponse(body)
	if err != nil {
		d.events.errs <- ErrorEvent{Endpoint: sess.spec, Err: err}
		if errors.Is(err, ErrTruncated) || errors.Is(err, ErrTruncatedString) || errors.Is(err, ErrChecksum) {
			sess.err = err
		}
		return
	}

	switch ev := out.event.(type) {
	case InfoEvent:
		d.events.info <- ev
	case ChallengeEvent:
		d.events.challenge <- ev
	case PlayersEvent:
		d.events.players <- ev
	case RulesEvent:
		d.events.rules <- ev
	case PingEvent:
		d.events.ping <- ev
	}

	if out.send != nil {
		if out.onSent != nil {
			out.onSent(time.Now())
		}
		if err := d.opts.transport.SendTo(out.send, sess.addr); err != nil {
			log.Error().Err(err).Msg("fatal socket error sending follow-up request")
			d.events.errs <- ErrorEvent{Endpoint: sess.spec, Err: err}
			sess.err = err
		}
	}
}

func (d *Dispatcher) finish(sessions []*session, timedOut bool) {
	results := make([]Result, len(sessions))
	for i, sess := range sessions {
		results[i] = sess.result(sess.err)
	}
	d.events.done <- DoneEvent{Results: results, TimedOut: timedOut}
}

func allTerminal(sessions []*session) bool {
	for _, s := range sessions {
		if !s.terminal() {
			return false
		}
	}
	return true
}
