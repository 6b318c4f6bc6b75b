package netx

import (
	"fmt"
	"net"
	"sync"

	"github.com/flexrender/flexrender/protocol"
)

// Manager owns every peer connection a renderer or worker process holds,
// keyed by worker id. Renderer-worker and worker-worker links are both
// plain TCP connections carrying framed protocol.Message values.
type Manager struct {
	mu    sync.RWMutex
	peers map[uint32]*Peer

	sendQueueSize int

	onMessage    func(uint32, *protocol.Message)
	onDisconnect func(uint32)

	listener net.Listener
	wg       sync.WaitGroup
}

// NewManager creates an empty peer manager. sendQueueSize bounds how many
// outbound messages may be queued per peer before Send starts reporting
// backpressure.
func NewManager(sendQueueSize int) *Manager {
	if sendQueueSize < 1 {
		sendQueueSize = 256
	}
	return &Manager{peers: make(map[uint32]*Peer), sendQueueSize: sendQueueSize}
}

// SetHandlers installs the message and disconnect callbacks. Must be
// called before Listen/Connect.
func (m *Manager) SetHandlers(onMessage func(uint32, *protocol.Message), onDisconnect func(uint32)) {
	m.onMessage = onMessage
	m.onDisconnect = onDisconnect
}

// Listen binds addr and accepts inbound connections, assigning each one
// the worker id carried in its first message (handled by the caller's
// onMessage once INIT or an equivalent identifying message arrives — until
// then the connection is tracked under a provisional id counting up from
// 1<<31).
func (m *Manager) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("netx: listen %s: %w", addr, err)
	}
	m.listener = ln

	m.wg.Add(1)
	go m.acceptLoop()
	return nil
}

func (m *Manager) acceptLoop() {
	defer m.wg.Done()
	var pending uint32 = 1 << 31 // provisional ids for not-yet-identified inbound connections

	for {
		conn, err := m.listener.Accept()
		if err != nil {
			return
		}
		id := pending
		pending++
		m.adopt(id, conn)
	}
}

// Rekey moves a peer tracked under a provisional id to its real worker id,
// once the identifying message (INIT) has been read.
func (m *Manager) Rekey(oldID, newID uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.peers[oldID]; ok {
		delete(m.peers, oldID)
		p.WorkerID = newID
		m.peers[newID] = p
	}
}

// Connect dials addr and registers the resulting connection under id.
func (m *Manager) Connect(id uint32, addr string) error {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("netx: dial %s: %w", addr, err)
	}
	m.adopt(id, conn)
	return nil
}

func (m *Manager) adopt(id uint32, conn net.Conn) {
	peer := newPeer(id, conn, m.sendQueueSize)

	m.mu.Lock()
	m.peers[id] = peer
	m.mu.Unlock()

	go peer.readLoop(m.dispatch)
	go peer.writeLoop()
	go m.monitor(peer)
}

func (m *Manager) dispatch(id uint32, msg *protocol.Message) {
	if m.onMessage != nil {
		m.onMessage(id, msg)
	}
}

func (m *Manager) monitor(p *Peer) {
	<-p.closeCh
	m.mu.Lock()
	if cur, ok := m.peers[p.WorkerID]; ok && cur == p {
		delete(m.peers, p.WorkerID)
	}
	m.mu.Unlock()
	if m.onDisconnect != nil {
		m.onDisconnect(p.WorkerID)
	}
}

// Send delivers msg to the named peer. Reports false if the peer is
// unknown or its send queue is saturated.
func (m *Manager) Send(id uint32, msg *protocol.Message) bool {
	m.mu.RLock()
	p, ok := m.peers[id]
	m.mu.RUnlock()
	if !ok {
		return false
	}
	return p.Send(msg)
}

// Broadcast delivers msg to every connected peer.
func (m *Manager) Broadcast(msg *protocol.Message) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.peers {
		clone := *msg
		p.Send(&clone)
	}
}

// PeerCount reports how many peers are currently tracked.
func (m *Manager) PeerCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.peers)
}

// Drop closes and forgets a single peer, used when a message arrives that
// is invalid in the receiver's current protocol state, without tearing
// down every other link.
func (m *Manager) Drop(id uint32) {
	m.mu.Lock()
	p, ok := m.peers[id]
	if ok {
		delete(m.peers, id)
	}
	m.mu.Unlock()
	if ok {
		p.Close()
	}
}

// Close tears down the listener and every connected peer.
func (m *Manager) Close() {
	if m.listener != nil {
		m.listener.Close()
	}
	m.mu.Lock()
	peers := make([]*Peer, 0, len(m.peers))
	for _, p := range m.peers {
		peers = append(peers, p)
	}
	m.peers = make(map[uint32]*Peer)
	m.mu.Unlock()

	for _, p := range peers {
		p.Close()
	}
	m.wg.Wait()
}
