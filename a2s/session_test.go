package a2s

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func infoResponseBody(appID uint16) []byte {
	var b []byte
	b = append(b, 0x49)
	b = append(b, 17)
	b = append(b, "Srv\x00"...)
	b = append(b, "Map\x00"...)
	b = append(b, "Fld\x00"...)
	b = append(b, "Game\x00"...)
	b = append(b, byte(appID), byte(appID>>8))
	b = append(b, 0, 16, 0, 'd', 'l', 0, 0)
	b = append(b, "1.0\x00"...)
	return b
}

func TestSession_HappyPathTransitionsThroughEveryStage(t *testing.T) {
	s := newSession(EndpointSpec{Host: "h", Port: 1}, netip.AddrPort{})
	assert.Equal(t, StageAwaitInfo, s.stage)

	out, err := s.handleResponse(infoResponseBody(0))
	require.NoError(t, err)
	assert.Equal(t, StageAwaitChallengeP, s.stage)
	_, ok := out.event.(InfoEvent)
	assert.True(t, ok)
	require.NotNil(t, out.send)

	// First challenge: for players.
	out, err = s.handleResponse(challengeBody(0xAAAA))
	require.NoError(t, err)
	assert.Equal(t, StageAwaitPlayers, s.stage)
	require.NotNil(t, s.challengePlayer)
	assert.Equal(t, uint32(0xAAAA), *s.challengePlayer)

	out, err = s.handleResponse(playersBody())
	require.NoError(t, err)
	assert.Equal(t, StageAwaitChallengeR, s.stage)

	// Second challenge: for rules.
	out, err = s.handleResponse(challengeBody(0xBBBB))
	require.NoError(t, err)
	assert.Equal(t, StageAwaitRules, s.stage)
	require.NotNil(t, s.challengeRules)
	assert.Equal(t, uint32(0xBBBB), *s.challengeRules)

	out, err = s.handleResponse(rulesBody())
	require.NoError(t, err)
	assert.Equal(t, StageAwaitPing, s.stage)
	require.NotNil(t, out.onSent)
	out.onSent(s.pingSentAt) // simulate dispatcher capturing send time

	out, err = s.handleResponse([]byte{0x6A})
	require.NoError(t, err)
	assert.Equal(t, StageDone, s.stage)
	assert.True(t, out.done)
	assert.True(t, s.terminal())
}

func TestSession_OutOfOrderResponseSurfacedButDoesNotAdvance(t *testing.T) {
	s := newSession(EndpointSpec{}, netip.AddrPort{})
	// A players response arrives before info was ever requested.
	_, err := s.handleResponse(playersBody())
	assert.ErrorIs(t, err, ErrProtocolOutOfOrder)
	assert.Equal(t, StageAwaitInfo, s.stage)
	assert.False(t, s.terminal())
}

func TestSession_UnknownResponseTypeByte(t *testing.T) {
	s := newSession(EndpointSpec{}, netip.AddrPort{})
	_, err := s.handleResponse([]byte{0xEE})
	assert.ErrorIs(t, err, ErrUnexpectedResponseType)
	var typed *UnexpectedResponseTypeError
	assert.ErrorAs(t, err, &typed)
}

func TestSession_ChallengeForPlayersAlwaysPrecedesPlayerRequestWithToken(t *testing.T) {
	s := newSession(EndpointSpec{}, netip.AddrPort{})
	_, err := s.handleResponse(infoResponseBody(0))
	require.NoError(t, err)

	out, err := s.handleResponse(challengeBody(0x1234))
	require.NoError(t, err)

	// The substantive PLAYER request is only built after challengePlayer is set.
	require.NotNil(t, s.challengePlayer)
	require.NotNil(t, out.send)
	assert.Equal(t, byte(typePlayer), out.send[4])
	assert.Equal(t, []byte{0x34, 0x12, 0x00, 0x00}, out.send[5:])
}

func challengeBody(token uint32) []byte {
	b := []byte{0x41}
	b = append(b, byte(token), byte(token>>8), byte(token>>16), byte(token>>24))
	return b
}

func playersBody() []byte {
	return []byte{0x44, 0x00}
}

func rulesBody() []byte {
	return []byte{0x45, 0x00, 0x00}
}
