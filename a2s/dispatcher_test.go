package a2s

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcher_FullSequenceSingleEndpoint(t *testing.T) {
	server := newMockA2SServer(t)
	server.players = []mockPlayer{
		{name: "Alice", score: 10, duration: 120.5},
		{name: "Bob", score: 5, duration: 30},
	}
	server.rules = []Rule{{Name: "mp_friendlyfire", Value: "0"}}

	d := NewDispatcher([]EndpointSpec{server.addr()}, WithTimeout(2*time.Second))
	events := d.Events()
	d.Run(context.Background())

	var infoEvents, playersEvents, rulesEvents, pingEvents int
	var done DoneEvent
	var gotDone bool
	for !gotDone {
		select {
		case <-events.Info:
			infoEvents++
		case <-events.Challenge:
		case <-events.Players:
			playersEvents++
		case <-events.Rules:
			rulesEvents++
		case <-events.Ping:
			pingEvents++
		case <-events.Error:
			t.Log("unexpected error event")
		case done = <-events.Done:
			gotDone = true
		}
	}

	require.Len(t, done.Results, 1)
	r := done.Results[0]
	require.NoError(t, r.Err)
	assert.False(t, done.TimedOut)
	assert.Equal(t, 1, infoEvents)
	assert.Equal(t, 1, playersEvents)
	assert.Equal(t, 1, rulesEvents)
	assert.Equal(t, 1, pingEvents)

	require.NotNil(t, r.Info)
	require.NotNil(t, r.Info.Source)
	assert.Equal(t, "Test Server", r.Info.Source.Name)
	assert.Equal(t, "de_dust2", r.Info.Source.Map)

	require.Len(t, r.Players, 2)
	assert.Equal(t, "Alice", r.Players[0].Name)
	assert.Equal(t, int32(10), r.Players[0].Score)

	require.Len(t, r.Rules, 1)
	assert.Equal(t, "mp_friendlyfire", r.Rules[0].Name)

	assert.Greater(t, r.PingMs, 0.0)
	assert.True(t, r.Complete())
}

func TestDispatcher_MultipleEndpointsIndependent(t *testing.T) {
	s1 := newMockA2SServer(t)
	s1.name = "Server One"
	s1.rules = []Rule{{Name: "sv_cheats", Value: "0"}}
	s2 := newMockA2SServer(t)
	s2.name = "Server Two"
	s2.rules = []Rule{{Name: "sv_cheats", Value: "0"}}

	d := NewDispatcher([]EndpointSpec{s1.addr(), s2.addr()}, WithTimeout(2*time.Second))
	events := d.Events()
	d.Run(context.Background())

	done := drain(events)
	require.Len(t, done.Results, 2)
	for _, r := range done.Results {
		require.NoError(t, r.Err)
		require.NotNil(t, r.Info)
		require.NotNil(t, r.Info.Source)
		assert.True(t, r.Complete())
		assert.NotNil(t, r.Players)
		assert.NotEmpty(t, r.Rules)
	}
	assert.ElementsMatch(t, []string{"Server One", "Server Two"},
		[]string{done.Results[0].Info.Source.Name, done.Results[1].Info.Source.Name})
}

func TestDispatcher_TimeoutYieldsPartialResults(t *testing.T) {
	conn := newSilentUDPEndpoint(t)

	d := NewDispatcher([]EndpointSpec{conn}, WithTimeout(80*time.Millisecond))
	events := d.Events()
	d.Run(context.Background())

	done := drain(events)
	require.Len(t, done.Results, 1)
	assert.True(t, done.TimedOut)
	assert.Nil(t, done.Results[0].Info)
	assert.False(t, done.Results[0].Complete())
}

func TestDispatcher_ResolveFailureSurfacesErrorAndDoesNotBlockOthers(t *testing.T) {
	good := newMockA2SServer(t)

	bad := EndpointSpec{Host: "this.host.does.not.resolve.invalid", Port: 27015}

	d := NewDispatcher([]EndpointSpec{bad, good.addr()}, WithTimeout(2*time.Second))
	events := d.Events()
	d.Run(context.Background())

	done := drain(events)
	require.Len(t, done.Results, 2)
	assert.Error(t, done.Results[0].Err)
	assert.NoError(t, done.Results[1].Err)
	assert.NotNil(t, done.Results[1].Info)
	assert.True(t, done.Results[1].Complete())
}

func drain(events Events) DoneEvent {
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

// newSilentUDPEndpoint returns a bound UDP socket's address that never
// replies to anything, to exercise the overall-timeout path.
func newSilentUDPEndpoint(t *testing.T) EndpointSpec {
	t.Helper()
	conn, err := net.ListenPacket("udp4", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	addr := conn.LocalAddr().(*net.UDPAddr)
	return EndpointSpec{Host: addr.IP.String(), Port: uint16(addr.Port)}
}
