package rtc

import (
	"context"
	"encoding/binary"
	"net"
	"sync"
	"time"

	"github.com/pion/stun/v3"

	"github.com/srs-core/mediacore/pkg/errs"
	"github.com/srs-core/mediacore/pkg/logger"
)

const sessionSweepInterval = 1500 * time.Millisecond

// RTCSession is one ICE/DTLS/SRTP connection's lifecycle and datagram
// handlers, as seen by the SessionManager (spec §4.10).
type RTCSession interface {
	IsAlive() bool
	IsDisposing() bool
	SwitchToContext()
	OnRTP(data []byte) error
	OnRTCP(data []byte) error
	OnSTUN(pkt *stun.Message) error
	OnDTLS(data []byte) error
}

// FastID packs a UDP peer address into a uint64 session-lookup key (spec
// §4.10 "fast-id (uint64 from peer ip:port)"). IPv4 addresses pack
// naturally into 48 bits (32-bit address, 16-bit port); IPv6 addresses are
// folded into 32 bits by XORing their four 32-bit words, since the exact
// original hash isn't available in the source pack and any deterministic,
// collision-resistant-enough packing satisfies the lookup-key contract.
func FastID(addr net.IP, port uint16) uint64 {
	if v4 := addr.To4(); v4 != nil {
		return uint64(binary.BigEndian.Uint32(v4))<<16 | uint64(port)
	}
	v6 := addr.To16()
	var folded uint32
	for i := 0; i < len(v6); i += 4 {
		folded ^= binary.BigEndian.Uint32(v6[i : i+4])
	}
	return uint64(folded)<<16 | uint64(port)
}

// SessionManager holds the resource manager of RTC connections, keyed by
// ICE username and by fast-id, and sweeps dead sessions (spec §4.10).
type SessionManager struct {
	logger *logger.Logger

	mu         sync.Mutex
	byUsername map[string]RTCSession
	byFastID   map[uint64]RTCSession
	all        map[RTCSession]struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	now func() time.Time
}

// NewSessionManager constructs an empty SessionManager.
func NewSessionManager(ctx context.Context, log *logger.Logger) *SessionManager {
	ctx, cancel := context.WithCancel(ctx)
	return &SessionManager{
		logger:     log.With("component", "session_manager"),
		byUsername: make(map[string]RTCSession),
		byFastID:   make(map[uint64]RTCSession),
		all:        make(map[RTCSession]struct{}),
		ctx:        ctx,
		cancel:     cancel,
		now:        time.Now,
	}
}

// Add registers session under its ICE username and fast-id.
func (m *SessionManager) Add(username string, fastID uint64, session RTCSession) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byUsername[username] = session
	m.byFastID[fastID] = session
	m.all[session] = struct{}{}
}

// Remove unregisters session from every index.
func (m *SessionManager) Remove(session RTCSession) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.all, session)
	for u, s := range m.byUsername {
		if s == session {
			delete(m.byUsername, u)
		}
	}
	for f, s := range m.byFastID {
		if s == session {
			delete(m.byFastID, f)
		}
	}
}

// FindByUsername looks up a session by its negotiated ICE username.
func (m *SessionManager) FindByUsername(username string) (RTCSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byUsername[username]
	return s, ok
}

// FindByFastID looks up a session by its peer ip:port fast-id.
func (m *SessionManager) FindByFastID(fastID uint64) (RTCSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byFastID[fastID]
	return s, ok
}

// Count returns the number of sessions currently registered, for status
// reporting.
func (m *SessionManager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.all)
}

// Start launches the periodic sweep goroutine.
func (m *SessionManager) Start() {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.sweepLoop()
	}()
}

// Stop cancels the sweep goroutine and waits for it to exit.
func (m *SessionManager) Stop() {
	m.cancel()
	m.wg.Wait()
}

func (m *SessionManager) sweepLoop() {
	ticker := time.NewTicker(sessionSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

// sweep implements srs_update_rtc_sessions(): for each not-disposing
// session whose IsAlive() is false, switch its context and remove it.
// Live and already-disposing sessions are left alone (spec §4.10).
func (m *SessionManager) sweep() {
	m.mu.Lock()
	dead := make([]RTCSession, 0)
	for s := range m.all {
		if s.IsDisposing() {
			continue
		}
		if !s.IsAlive() {
			dead = append(dead, s)
		}
	}
	m.mu.Unlock()

	for _, s := range dead {
		s.SwitchToContext()
		m.Remove(s)
	}
}

// DatagramKind classifies a UDP datagram by its first bytes (spec §4.10
// "UDP packet dispatch").
type DatagramKind int

const (
	DatagramUnknown DatagramKind = iota
	DatagramSTUN
	DatagramRTCP
	DatagramRTP
	DatagramDTLS
)

// ClassifyDatagram peeks the first two bytes of buf and classifies it per
// spec §4.10: STUN messages have a leading byte < 2; RTCP packet types
// fall in [192,223]; the RTP/RTCP version bits [128,191] otherwise select
// RTP; anything else is a DTLS record.
func ClassifyDatagram(buf []byte) DatagramKind {
	if len(buf) == 0 {
		return DatagramUnknown
	}
	first := buf[0]
	if first < 2 {
		return DatagramSTUN
	}
	if first >= 128 && first <= 191 {
		if len(buf) >= 2 && buf[1] >= 192 && buf[1] <= 223 {
			return DatagramRTCP
		}
		return DatagramRTP
	}
	return DatagramDTLS
}

// DispatchDatagram classifies buf and routes it to session's matching
// handler. Session lookup by fast-id is the caller's responsibility: on a
// lookup miss, the upstream layer handles STUN-binding-driven session
// creation instead of failing here (spec §4.10).
func DispatchDatagram(session RTCSession, buf []byte) error {
	switch ClassifyDatagram(buf) {
	case DatagramSTUN:
		msg := &stun.Message{Raw: append([]byte(nil), buf...)}
		if err := msg.Decode(); err != nil {
			return errs.Wrap(errs.KindRTCSTUN, "decode stun message", err)
		}
		return session.OnSTUN(msg)
	case DatagramRTCP:
		return session.OnRTCP(buf)
	case DatagramRTP:
		return session.OnRTP(buf)
	default:
		return session.OnDTLS(buf)
	}
}
