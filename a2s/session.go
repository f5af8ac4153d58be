package a2s

import (
	"fmt"
	"net/netip"
	"time"
)

// session is the per-endpoint state machine described in spec.md §4.4. It
// owns every mutable slot for one endpoint; the dispatcher is the only
// caller, and calls happen one at a time in arrival order, so no locking is
// needed here (see spec.md §5).
type session struct {
	spec EndpointSpec
	addr netip.AddrPort

	stage Stage

	info    *Info
	players []Player
	rules   []Rule
	pingMs  float64

	challengePlayer *uint32
	challengeRules  *uint32
	pingSentAt      time.Time

	reassembly *reassembly

	appID           uint16
	protocolVersion uint8

	// err is set once this endpoint is terminated by a fatal parse/resolve
	// error (ErrResolve, ErrChecksum, a codec ErrTruncated...) rather than
	// by completing the state machine. Out-of-order or unrecognized
	// response types are surfaced to the caller but do not set this.
	err error
}

func newSession(spec EndpointSpec, addr netip.AddrPort) *session {
	return &session{spec: spec, addr: addr, stage: StageAwaitInfo}
}

// terminal reports whether this endpoint is finished for the run, either
// because its state machine reached DONE or because it failed outright.
func (s *session) terminal() bool {
	return s.stage == StageDone || s.err != nil
}

// result snapshots everything learned so far into the caller-facing Result
// shape. Safe to call at any point, including mid-flight for timeout
// reporting.
func (s *session) result(err error) Result {
	return Result{
		Spec:    s.spec,
		Addr:    s.addr,
		Info:    s.info,
		Players: s.players,
		Rules:   s.rules,
		PingMs:  s.pingMs,
		Err:     err,
	}
}

// outcome is what processing one response datagram produced: at most one
// event to surface, at most one follow-up request to send, and whether the
// state machine reached DONE.
type outcome struct {
	event  any
	send   []byte
	onSent func(time.Time)
	done   bool
}

// initialRequest builds the A2S_INFO datagram that kicks off a session.
func initialRequest() ([]byte, error) {
	return buildRequest(reqInfo, challengeAbsent)
}

// handleResponse advances the state machine given body, the response
// already stripped of the -1/-2 framing prefix (and, for split responses,
// already reassembled) — so body[0] is the response type byte per
// spec.md §4.4.
func (s *session) handleResponse(body []byte) (outcome, error) {
	r := newReader(body)
	typeByte, err := r.readU8()
	if err != nil {
		return outcome{}, err
	}

	switch typeByte {
	case 0x49:
		return s.onInfo(r, false)
	case 0x6D:
		return s.onInfo(r, true)
	case 0x41:
		return s.onChallenge(r)
	case 0x44:
		return s.onPlayers(r)
	case 0x45:
		return s.onRules(r)
	case 0x6A:
		return s.onPing()
	default:
		return outcome{}, &UnexpectedResponseTypeError{Stage: s.stage, Got: typeByte}
	}
}

func (s *session) onInfo(r *reader, goldSource bool) (outcome, error) {
	if s.stage != StageAwaitInfo {
		return outcome{}, outOfOrderErr(s.stage, boolByte(goldSource, 0x6D, 0x49))
	}

	var info Info
	if goldSource {
		gs, err := parseGoldSourceInfo(r)
		if err != nil {
			return outcome{}, err
		}
		info = Info{GoldSource: gs}
		s.protocolVersion = gs.Protocol
	} else {
		si, err := parseSourceInfo(r)
		if err != nil {
			return outcome{}, err
		}
		info = Info{Source: si}
		s.appID = si.AppID
		s.protocolVersion = si.Protocol
	}
	s.info = &info
	s.stage = StageAwaitChallengeP

	req, err := buildRequest(reqPlayer, challengeAbsent)
	if err != nil {
		return outcome{}, err
	}
	return outcome{event: InfoEvent{Endpoint: s.spec, Info: info}, send: req}, nil
}

func (s *session) onChallenge(r *reader) (outcome, error) {
	if s.stage != StageAwaitChallengeP && s.stage != StageAwaitChallengeR {
		return outcome{}, outOfOrderErr(s.stage, 0x41)
	}

	token, err := r.readU32()
	if err != nil {
		return outcome{}, err
	}

	if s.challengePlayer == nil {
		s.challengePlayer = &token
		req, err := buildRequest(reqPlayer, token)
		if err != nil {
			return outcome{}, err
		}
		s.stage = StageAwaitPlayers
		return outcome{event: ChallengeEvent{Endpoint: s.spec, Token: token}, send: req}, nil
	}

	s.challengeRules = &token
	req, err := buildRequest(reqRules, token)
	if err != nil {
		return outcome{}, err
	}
	s.stage = StageAwaitRules
	return outcome{event: ChallengeEvent{Endpoint: s.spec, Token: token}, send: req}, nil
}

func (s *session) onPlayers(r *reader) (outcome, error) {
	if s.stage != StageAwaitPlayers {
		return outcome{}, outOfOrderErr(s.stage, 0x44)
	}

	players, err := parsePlayers(r, s.appID)
	if err != nil {
		return outcome{}, err
	}
	s.players = players
	s.stage = StageAwaitChallengeR

	req, err := buildRequest(reqRules, challengeAbsent)
	if err != nil {
		return outcome{}, err
	}
	return outcome{event: PlayersEvent{Endpoint: s.spec, Players: players}, send: req}, nil
}

func (s *session) onRules(r *reader) (outcome, error) {
	if s.stage != StageAwaitRules {
		return outcome{}, outOfOrderErr(s.stage, 0x45)
	}

	rules, err := parseRules(r)
	if err != nil {
		return outcome{}, err
	}
	s.rules = rules
	s.stage = StageAwaitPing

	req, err := buildRequest(reqPing, 0)
	if err != nil {
		return outcome{}, err
	}
	return outcome{
		event:  RulesEvent{Endpoint: s.spec, Rules: rules},
		send:   req,
		onSent: func(t time.Time) { s.pingSentAt = t },
	}, nil
}

func (s *session) onPing() (outcome, error) {
	if s.stage != StageAwaitPing {
		return outcome{}, outOfOrderErr(s.stage, 0x6A)
	}

	s.pingMs = elapsedMs(time.Since(s.pingSentAt))
	s.stage = StageDone
	return outcome{event: PingEvent{Endpoint: s.spec, Milliseconds: s.pingMs}, done: true}, nil
}

func outOfOrderErr(stage Stage, got byte) error {
	return fmt.Errorf("%w: got 0x%02x while in stage %s", ErrProtocolOutOfOrder, got, stage)
}

func boolByte(b bool, ifTrue, ifFalse byte) byte {
	if b {
		return ifTrue
	}
	return ifFalse
}
