// Package ntcp implements the T1 transport: a legacy TCP transport using
// a four-message Diffie-Hellman + Ed25519 handshake and AES-256-CBC
// streaming. It exposes a frame codec (frame.go), the handshake state
// machine (handshake.go), the established duplex session (session.go),
// and the listener/connector Manager below.
package ntcp

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/cvsouth/i2p-go/data"
)

// maxPendingHandshakes bounds the number of inbound connections
// concurrently performing the handshake, enforced with a semaphore
// channel in ListenAndServe.
const maxPendingHandshakes = 64

// Manager owns the T1 listener and the set of live established sessions,
// keyed by peer hash. It is the NTCP half of the dispatcher's per-
// transport pair.
type Manager struct {
	addr   *net.TCPAddr
	own    data.RouterSecretKeys
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[data.Hash]*Session

	inbound chan *PeerSession
	sem     chan struct{}
}

// PeerSession pairs an established Session with the peer identity that
// was authenticated during its handshake.
type PeerSession struct {
	Peer    data.RouterIdentity
	Session *Session
}

// NewManager constructs a Manager bound to addr, authenticating as own.
func NewManager(addr *net.TCPAddr, own data.RouterSecretKeys, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		addr:     addr,
		own:      own,
		logger:   logger,
		sessions: make(map[data.Hash]*Session),
		inbound:  make(chan *PeerSession, 16),
		sem:      make(chan struct{}, maxPendingHandshakes),
	}
}

// Address returns the RouterAddress this manager advertises.
func (m *Manager) Address() data.RouterAddress {
	return data.NewRouterAddress("NTCP", m.addr)
}

// Inbound yields newly accepted, handshake-established sessions.
func (m *Manager) Inbound() <-chan *PeerSession { return m.inbound }

// ListenAndServe accepts inbound TCP connections and drives each through
// the inbound handshake, bounded by a semaphore channel so a burst of
// connection attempts cannot spawn unbounded concurrent handshakes.
func (m *Manager) ListenAndServe(ctx context.Context) error {
	l, err := net.ListenTCP("tcp", m.addr)
	if err != nil {
		return fmt.Errorf("ntcp: listen %s: %w", m.addr, err)
	}
	m.addr = l.Addr().(*net.TCPAddr)
	go func() {
		<-ctx.Done()
		l.Close()
	}()

	m.logger.Info("ntcp listening", "addr", m.addr.String())
	for {
		conn, err := l.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return fmt.Errorf("ntcp: accept: %w", err)
			}
		}

		select {
		case m.sem <- struct{}{}:
		case <-ctx.Done():
			conn.Close()
			return nil
		}
		go func() {
			defer func() { <-m.sem }()
			m.handleInbound(ctx, conn)
		}()
	}
}

func (m *Manager) handleInbound(ctx context.Context, conn net.Conn) {
	sess, peer, err := Accept(ctx, conn, m.own)
	if err != nil {
		m.logger.Warn("ntcp inbound handshake failed", "remote", conn.RemoteAddr(), "err", err)
		return
	}
	hash := peer.Hash()
	m.mu.Lock()
	m.sessions[hash] = sess
	m.mu.Unlock()
	m.logger.Info("ntcp session established (inbound)", "peer", hash.String())

	select {
	case m.inbound <- &PeerSession{Peer: peer, Session: sess}:
	case <-ctx.Done():
	}
}

// EnsureSession returns a cached session to peer, or dials addr and
// performs the outbound handshake if none exists.
func (m *Manager) EnsureSession(ctx context.Context, peer data.RouterIdentity, addr *net.TCPAddr) (*Session, error) {
	hash := peer.Hash()

	m.mu.Lock()
	sess, ok := m.sessions[hash]
	m.mu.Unlock()
	if ok {
		return sess, nil
	}

	conn, err := net.DialTCP("tcp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("ntcp: dial %s: %w", addr, err)
	}
	sess, err = Connect(ctx, conn, m.own, peer)
	if err != nil {
		conn.Close()
		return nil, err
	}

	m.mu.Lock()
	m.sessions[hash] = sess
	m.mu.Unlock()
	m.logger.Info("ntcp session established (outbound)", "peer", hash.String())
	return sess, nil
}

// Bid reports this transport's cost to deliver a size-byte message to
// peer: cheap if a live session already exists, costlier (but still
// possible) if a new connection would have to be dialed. size is
// accepted for symmetry with the Transport contract; T1 has no
// per-message cost beyond "session live or not".
func (m *Manager) Bid(peerHash data.Hash, size int) (cost int, ok bool) {
	if size > data.MaxMessageSize {
		return 0, false
	}
	m.mu.Lock()
	_, live := m.sessions[peerHash]
	m.mu.Unlock()
	if live {
		return 5, true
	}
	return 10, true
}

// Forget drops a session, e.g. after a fatal read/write error.
func (m *Manager) Forget(peerHash data.Hash) {
	m.mu.Lock()
	delete(m.sessions, peerHash)
	m.mu.Unlock()
}

// Peers returns the hashes of all currently live sessions, for the
// control API's session listing.
func (m *Manager) Peers() []data.Hash {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]data.Hash, 0, len(m.sessions))
	for h := range m.sessions {
		out = append(out, h)
	}
	return out
}
