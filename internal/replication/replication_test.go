package replication

import (
	"bufio"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewManagerStartsAsMaster(t *testing.T) {
	m := New()
	assert.Equal(t, RoleMaster, m.Role())
	assert.Len(t, m.ReplID(), 40)
	assert.Equal(t, int64(0), m.Offset())
}

func TestBecomeReplicaFlipsRole(t *testing.T) {
	m := New()
	m.BecomeReplica()
	assert.Equal(t, RoleReplica, m.Role())
}

func TestInfoReportsRoleAndReplID(t *testing.T) {
	m := New()
	info := m.Info()
	assert.Contains(t, info, "role:master")
	assert.Contains(t, info, m.ReplID())
	assert.Contains(t, info, "master_repl_offset:0")
}

func TestPropagateFansOutToAllSinks(t *testing.T) {
	m := New()

	c1, s1 := net.Pipe()
	c2, s2 := net.Pipe()
	defer c1.Close()
	defer c2.Close()
	defer s1.Close()
	defer s2.Close()

	m.AddSink("a", func(b []byte) error { _, err := c1.Write(b); return err })
	m.AddSink("b", func(b []byte) error { _, err := c2.Write(b); return err })

	done := make(chan struct{})
	go func() {
		defer close(done)
		m.Propagate([]byte("*1\r\n$4\r\nPING\r\n"))
	}()

	buf1 := make([]byte, len("*1\r\n$4\r\nPING\r\n"))
	_, err := readFullPipe(s1, buf1)
	require.NoError(t, err)
	assert.Equal(t, "*1\r\n$4\r\nPING\r\n", string(buf1))

	buf2 := make([]byte, len("*1\r\n$4\r\nPING\r\n"))
	_, err = readFullPipe(s2, buf2)
	require.NoError(t, err)
	assert.Equal(t, "*1\r\n$4\r\nPING\r\n", string(buf2))

	<-done
}

func TestRemoveSinkStopsFanOut(t *testing.T) {
	m := New()
	c1, s1 := net.Pipe()
	defer c1.Close()
	defer s1.Close()

	m.AddSink("a", func(b []byte) error { _, err := c1.Write(b); return err })
	m.RemoveSink("a")

	done := make(chan struct{})
	go func() {
		m.Propagate([]byte("ignored"))
		close(done)
	}()
	<-done // must not block waiting on s1 to read
}

func readFullPipe(r net.Conn, buf []byte) (int, error) {
	br := bufio.NewReader(r)
	n := 0
	for n < len(buf) {
		m, err := br.Read(buf[n:])
		n += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

func TestEmptyRDBBlobHasCanonicalPrefixAndSuffix(t *testing.T) {
	require.True(t, len(EmptyRDB) > 9)
	assert.Equal(t, "REDIS0011", string(EmptyRDB[:9]))
	assert.Equal(t, []byte{0x5a, 0xa2}, EmptyRDB[len(EmptyRDB)-2:])
}
