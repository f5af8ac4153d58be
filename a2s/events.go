package a2s

// InfoEvent fires once per endpoint, when its A2S_INFO (or obsolete
// GoldSource) response is parsed.
type InfoEvent struct {
	Endpoint EndpointSpec
	Info     Info
}

// ChallengeEvent fires up to twice per endpoint: once for the PLAYER
// challenge, once for the RULES challenge.
type ChallengeEvent struct {
	Endpoint EndpointSpec
	Token    uint32
}

// PlayersEvent fires once per endpoint, when its A2S_PLAYER response is
// parsed.
type PlayersEvent struct {
	Endpoint EndpointSpec
	Players  []Player
}

// RulesEvent fires once per endpoint, when its A2S_RULES response is
// parsed.
type RulesEvent struct {
	Endpoint EndpointSpec
	Rules    []Rule
}

// PingEvent fires once per endpoint, when the ping echo returns.
type PingEvent struct {
	Endpoint     EndpointSpec
	Milliseconds float64
}

// ErrorEvent may fire any number of times per endpoint (or with a zero
// Endpoint for dispatcher-wide errors such as ErrUnknownSource or a bind
// failure that can't be attributed to one session).
type ErrorEvent struct {
	Endpoint EndpointSpec
	Err      error
}

// DoneEvent fires exactly once, terminating a dispatcher run.
type DoneEvent struct {
	Results  []Result
	TimedOut bool
}

// Events is the typed channel table a dispatcher run delivers through — one
// channel per event kind, so completion and error paths are statically
// visible to callers instead of being dispatched off a string event name.
type Events struct {
	Info      <-chan InfoEvent
	Challenge <-chan ChallengeEvent
	Players   <-chan PlayersEvent
	Rules     <-chan RulesEvent
	Ping      <-chan PingEvent
	Error     <-chan ErrorEvent
	Done      <-chan DoneEvent
}
