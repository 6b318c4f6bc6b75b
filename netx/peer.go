// Package netx implements the coordination-protocol transport: TCP
// connections between the renderer and each worker, and between workers
// for peer-to-peer ray forwarding, framed with package protocol. Peers
// are keyed by the cluster's own worker ids. The cluster assumes a
// trusted LAN; there is no TLS and no authentication.
package netx

import (
	"bufio"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/flexrender/flexrender/protocol"
)

// SendBufferSize is the per-peer batching write buffer. Writes coalesce
// in it; filling it triggers an immediate flush.
const SendBufferSize = 64 * 1024

// FlushInterval bounds how long a coalesced write can sit unflushed.
const FlushInterval = 10 * time.Millisecond

// KeepAliveIdle and KeepAliveInterval configure the TCP keepalive probe
// cadence (1s idle, 60s probe).
const (
	KeepAliveIdle     = 1 * time.Second
	KeepAliveInterval = 60 * time.Second
)

// ConnState tracks a connection's lifecycle.
type ConnState uint8

const (
	StateConnected ConnState = iota
	StateDisconnecting
	StateDisconnected
)

// Peer is one TCP connection to another cluster member, identified by its
// worker id rather than a connection-local handle.
type Peer struct {
	WorkerID uint32

	conn   net.Conn
	reader *bufio.Reader
	writer *bufio.Writer

	state    atomic.Uint32
	lastSeen atomic.Int64

	sendCh    chan *protocol.Message
	closeCh   chan struct{}
	closeOnce sync.Once
}

func newPeer(id uint32, conn net.Conn, sendQueueSize int) *Peer {
	applyKeepAlive(conn)

	p := &Peer{
		WorkerID: id,
		conn:     conn,
		reader:   bufio.NewReaderSize(conn, SendBufferSize),
		writer:   bufio.NewWriterSize(conn, SendBufferSize),
		sendCh:   make(chan *protocol.Message, sendQueueSize),
		closeCh:  make(chan struct{}),
	}
	p.state.Store(uint32(StateConnected))
	p.lastSeen.Store(time.Now().UnixNano())
	return p
}

func applyKeepAlive(conn net.Conn) {
	tc, ok := conn.(*net.TCPConn)
	if !ok {
		return
	}
	tc.SetKeepAliveConfig(net.KeepAliveConfig{
		Enable:   true,
		Idle:     KeepAliveIdle,
		Interval: KeepAliveInterval,
	})
}

// Send queues msg for transmission. Returns false if the peer is gone or
// its send queue is full; backpressure proper is handled one level up by
// the renderer pausing a worker, so a full queue here means the peer has
// stopped pumping writes at all and is treated as dead.
func (p *Peer) Send(msg *protocol.Message) bool {
	if ConnState(p.state.Load()) != StateConnected {
		return false
	}
	select {
	case p.sendCh <- msg:
		return true
	default:
		return false
	}
}

// Close initiates a graceful shutdown of this peer's connection.
func (p *Peer) Close() {
	p.closeOnce.Do(func() {
		p.state.Store(uint32(StateDisconnecting))
		close(p.closeCh)
		p.conn.Close()
	})
}

func (p *Peer) readLoop(handler func(uint32, *protocol.Message)) {
	defer p.Close()
	for {
		msg, err := protocol.Decode(p.reader)
		if err != nil {
			return
		}
		p.lastSeen.Store(time.Now().UnixNano())
		handler(p.WorkerID, msg)
	}
}

func (p *Peer) writeLoop() {
	defer p.Close()

	ticker := time.NewTicker(FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.closeCh:
			return
		case msg := <-p.sendCh:
			if err := msg.Encode(p.writer); err != nil {
				return
			}
		case <-ticker.C:
			if p.writer.Buffered() > 0 {
				if err := p.writer.Flush(); err != nil {
					return
				}
			}
		}
	}
}
