package a2s

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildRequest_Info(t *testing.T) {
	buf, err := buildRequest(reqInfo, challengeAbsent)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0xFF, 0xFF, 0xFF, typeInfo}, buf[:5])
	assert.Equal(t, sourceEngineQuery, string(buf[5:]))
}

func TestBuildRequest_PlayerCarriesChallengeLittleEndian(t *testing.T) {
	buf, err := buildRequest(reqPlayer, 0x01020304)
	require.NoError(t, err)
	require.Len(t, buf, 9)
	assert.Equal(t, byte(typePlayer), buf[4])
	assert.Equal(t, []byte{0x04, 0x03, 0x02, 0x01}, buf[5:])
}

func TestBuildRequest_RulesCarriesChallenge(t *testing.T) {
	buf, err := buildRequest(reqRules, 0xAABBCCDD)
	require.NoError(t, err)
	assert.Equal(t, byte(typeRules), buf[4])
	assert.Equal(t, []byte{0xDD, 0xCC, 0xBB, 0xAA}, buf[5:])
}

func TestBuildRequest_Ping(t *testing.T) {
	buf, err := buildRequest(reqPing, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0xFF, 0xFF, 0xFF, typePing}, buf)
}

func TestBuildRequest_UnknownKindFails(t *testing.T) {
	_, err := buildRequest(requestKind(255), 0)
	assert.ErrorIs(t, err, ErrInvalidRequestKind)
}
