package a2s

import (
	"net/netip"
	"time"
)

// Stage names a position in the per-endpoint query state machine.
type Stage int

const (
	StageAwaitInfo Stage = iota
	StageAwaitChallengeP
	StageAwaitPlayers
	StageAwaitChallengeR
	StageAwaitRules
	StageAwaitPing
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StageAwaitInfo:
		return "AWAIT_INFO"
	case StageAwaitChallengeP:
		return "AWAIT_CHALLENGE_P"
	case StageAwaitPlayers:
		return "AWAIT_PLAYERS"
	case StageAwaitChallengeR:
		return "AWAIT_CHALLENGE_R"
	case StageAwaitRules:
		return "AWAIT_RULES"
	case StageAwaitPing:
		return "AWAIT_PING"
	case StageDone:
		return "DONE"
	default:
		return "UNKNOWN"
	}
}

// EndpointSpec is the caller-supplied input for one remote server: a
// hostname (resolved later by a Resolver) and the UDP port it listens for
// A2S queries on.
type EndpointSpec struct {
	Host string
	Port uint16
}

// ShipInfo is the "The Ship" (AppID 2400) extension to the Source info
// record: game-mode, number of spectator witnesses and round duration.
type ShipInfo struct {
	Mode       uint8
	Witnesses  uint8
	Duration   uint8
}

// SpectatorInfo is the optional SourceTV/HLTV sub-record carried in the
// extended-data trailer of a Source info response.
type SpectatorInfo struct {
	Port uint16
	Name string
}

// SourceInfo is the parsed A2S_INFO response body for the modern ("Source")
// schema (response type 0x49).
type SourceInfo struct {
	Protocol    uint8
	Name        string
	Map         string
	Folder      string
	Game        string
	AppID       uint16
	Players     uint8
	MaxPlayers  uint8
	Bots        uint8
	ServerType  byte
	Environment byte
	Visibility  uint8
	VAC         uint8
	Ship        *ShipInfo
	Version     string
	EDF         uint8

	// Optional trailer fields, gated by bits of EDF per spec.md §4.4.
	Port       *uint16
	SteamID    string // decimal-rendered uint64
	Spectator  *SpectatorInfo
	Keywords   string
	GameID     string // decimal-rendered uint64
}

// GoldSourceModInfo is the optional mod sub-record of an obsolete
// GoldSource info response, present only when ModFlag == 1.
type GoldSourceModInfo struct {
	Link         string
	DownloadLink string
	Version      int32
	Size         int32
	Type         uint8
	DLL          uint8
}

// GoldSourceInfo is the parsed A2S_INFO response body for the obsolete
// GoldSource schema (response type 0x6D).
type GoldSourceInfo struct {
	Address     string
	Name        string
	Map         string
	Folder      string
	Game        string
	Players     uint8
	MaxPlayers  uint8
	Protocol    uint8
	ServerType  byte
	Environment byte
	Visibility  uint8
	ModFlag     uint8
	Mod         *GoldSourceModInfo
	VAC         uint8
	Bots        uint8
}

// Info is a tagged variant holding exactly one of the two info schemas the
// wire protocol can produce.
type Info struct {
	Source     *SourceInfo
	GoldSource *GoldSourceInfo
}

// AppID reports the application id governing schema variants, defaulting to
// 0 (unknown) for the obsolete GoldSource schema, which carries none.
func (i *Info) AppID() uint16 {
	if i == nil {
		return 0
	}
	if i.Source != nil {
		return i.Source.AppID
	}
	return 0
}

// Player is one row of an A2S_PLAYER response.
type Player struct {
	Index    uint8
	Name     string
	Score    int32
	Duration float32

	// Populated only when the owning endpoint's AppID is 2400 ("The Ship").
	Deaths *int32
	Money  *int32
}

// Rule is one name/value pair of an A2S_RULES response.
type Rule struct {
	Name  string
	Value string
}

// Result is the finalized, read-only view of everything learned about one
// endpoint, delivered with the terminal Done event.
type Result struct {
	Spec    EndpointSpec
	Addr    netip.AddrPort
	Info    *Info
	Players []Player
	Rules   []Rule
	PingMs  float64
	Err     error
}

// Complete reports whether all four stages produced a result for this
// endpoint.
func (r *Result) Complete() bool {
	return r.Info != nil && r.Players != nil && r.Rules != nil && r.PingMs > 0
}

// elapsedMs converts a duration to the millisecond float the ping stage
// reports, preserving the documented unit (see SPEC_FULL.md §11.2).
func elapsedMs(d time.Duration) float64 {
	return float64(d.Nanoseconds()) / 1e6
}
