// Package replication implements the primary-side replica-sink
// registry and write fan-out, plus the replica-side handshake that
// attaches this process to another server as its primary.
package replication

import (
	"crypto/rand"
	"fmt"
	"sync"
)

// Role is the server's replication role.
type Role string

const (
	RoleMaster  Role = "master"
	RoleReplica Role = "slave"
)

// Sink is one replica-side connection registered to receive propagated
// writes. Write is supplied by the owning conn and funnels through
// whatever lock that conn already takes around its own writer, so a
// propagated write landing on another goroutine (the one applying the
// write on the primary) can never interleave on the wire, or race on
// the shared *bufio.Writer's internal state, with a reply that
// connection's own read loop is writing at the same moment (e.g. an
// "OK" to a command other than REPLCONF ACK).
type Sink struct {
	ID    string
	Write func([]byte) error
}

// Manager owns the primary's fixed identity and replica-sink registry.
// A server that is itself a replica still holds one (with role
// RoleReplica) purely so INFO can report it; it registers no sinks.
type Manager struct {
	mu     sync.Mutex
	role   Role
	replID string
	sinks  []*Sink
}

// New creates a Manager starting in RoleMaster with a freshly generated
// 40-hex replication id. BecomeReplica flips role once replicaof is
// configured; the identity string is otherwise never reused.
func New() *Manager {
	return &Manager{role: RoleMaster, replID: generateReplID()}
}

func generateReplID() string {
	b := make([]byte, 20)
	if _, err := rand.Read(b); err != nil {
		panic("replication: crypto/rand unavailable: " + err.Error())
	}
	return fmt.Sprintf("%x", b)
}

// BecomeReplica switches this manager's reported role to slave. It
// does not itself perform the handshake; callers run Connect
// separately and call this once it succeeds.
func (m *Manager) BecomeReplica() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.role = RoleReplica
}

func (m *Manager) Role() Role {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.role
}

func (m *Manager) ReplID() string {
	return m.replID
}

// Offset always reports 0: the reference behavior this server follows
// leaves the replication offset pinned regardless of writes processed
// (see DESIGN.md's Open Question decision).
func (m *Manager) Offset() int64 { return 0 }

// AddSink registers a replica connection as a replication sink after
// it completes PSYNC, in arrival order. write must serialize against
// any other writer of that same connection (see Sink's doc comment).
func (m *Manager) AddSink(id string, write func([]byte) error) *Sink {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := &Sink{ID: id, Write: write}
	m.sinks = append(m.sinks, s)
	return s
}

// RemoveSink drops a sink, on disconnect or on a failed write to it.
func (m *Manager) RemoveSink(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, s := range m.sinks {
		if s.ID == id {
			m.sinks = append(m.sinks[:i], m.sinks[i+1:]...)
			return
		}
	}
}

// Propagate forwards raw (the exact RESP array bytes the primary
// received for a write command) to every registered sink, in sink
// registration order. A sink whose write fails is dropped from the
// registry; the failure is never surfaced to the originating client.
func (m *Manager) Propagate(raw []byte) {
	m.mu.Lock()
	sinks := make([]*Sink, len(m.sinks))
	copy(sinks, m.sinks)
	m.mu.Unlock()

	for _, s := range sinks {
		if err := s.Write(raw); err != nil {
			m.RemoveSink(s.ID)
		}
	}
}

// Info renders the body of INFO replication.
func (m *Manager) Info() string {
	role := m.Role()
	if role == RoleMaster {
		return fmt.Sprintf("role:master\r\nmaster_replid:%s\r\nmaster_repl_offset:%d\r\n", m.replID, m.Offset())
	}
	return fmt.Sprintf("role:slave\r\nmaster_replid:%s\r\nmaster_repl_offset:%d\r\n", m.replID, m.Offset())
}
