package a2s

import (
	"context"
	"fmt"
	"net"
	"net/netip"
)

// Datagram is one inbound UDP packet handed to the dispatcher by a
// Transport.
type Datagram struct {
	Data []byte
	From netip.AddrPort
}

// Transport is the raw UDP collaborator the dispatcher drives: a bound
// socket the dispatcher sends requests through and reads responses from.
// Consumed, not owned — the dispatcher is the only thing that ever calls
// these methods, and always from its own goroutine (see spec.md §5).
type Transport interface {
	Bind(ctx context.Context) error
	SendTo(data []byte, addr netip.AddrPort) error
	Recv(ctx context.Context) (Datagram, error)
	Close() error
}

// udpTransport is the default Transport, a single net.UDPConn shared across
// every endpoint in a run.
type udpTransport struct {
	conn *net.UDPConn
}

// NewUDPTransport returns the default Transport implementation: one
// unconnected IPv4 UDP socket, bound to an ephemeral local port on Bind.
func NewUDPTransport() Transport {
	return &udpTransport{}
}

func (t *udpTransport) Bind(ctx context.Context) error {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBind, err)
	}
	t.conn = conn
	return nil
}

func (t *udpTransport) SendTo(data []byte, addr netip.AddrPort) error {
	_, err := t.conn.WriteToUDPAddrPort(data, addr)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSocket, err)
	}
	return nil
}

func (t *udpTransport) Recv(ctx context.Context) (Datagram, error) {
	buf := make([]byte, 65507)
	if deadline, ok := ctx.Deadline(); ok {
		t.conn.SetReadDeadline(deadline)
	}
	n, from, err := t.conn.ReadFromUDPAddrPort(buf)
	if err != nil {
		return Datagram{}, fmt.Errorf("%w: %v", ErrSocket, err)
	}
	return Datagram{Data: buf[:n], From: from.Unmap()}, nil
}

func (t *udpTransport) Close() error {
	if t.conn == nil {
		return nil
	}
	return t.conn.Close()
}
