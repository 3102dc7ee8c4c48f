package server

import (
	"bufio"
	"errors"
	"io"
	"net"
	"strings"
	"sync"

	"github.com/google/uuid"

	"goredis/internal/resp"
	"goredis/internal/telemetry"
	"goredis/internal/txn"
)

// role tags what a connection is for, per the data model's role_tag:
// it determines whether ordinary replies are suppressed and whether
// the connection is eligible to become a replica sink.
type role int

const (
	roleClient      role = iota
	roleReplicaSink      // a replica-link-on-primary, after PSYNC
	rolePrimaryLink      // the primary-link-on-replica
)

// conn is one connection's handler: it owns that connection's RESP
// stream and transaction state, and runs entirely on its own
// goroutine. Cross-connection coordination only ever happens through
// the Server's shared registries, never by touching another conn.
type conn struct {
	id   string
	role role
	srv  *Server

	nc  net.Conn
	r   *bufio.Reader
	w   *bufio.Writer
	dec *resp.Decoder

	// writeMu serializes every write to w: a connection's own replies
	// run on its read loop's goroutine, but a replica-sink connection
	// also receives propagated writes from whichever other goroutine is
	// applying a command on the primary, and bufio.Writer is not safe
	// for concurrent use.
	writeMu sync.Mutex

	tx txn.State

	// isSink is set once this connection completes PSYNC and is
	// registered in the replica-sink registry; its teardown must
	// deregister it.
	isSink bool
}

func (s *Server) newConn(nc net.Conn, r role) *conn {
	reader := bufio.NewReader(nc)
	return &conn{
		id:   uuid.NewString(),
		role: r,
		srv:  s,
		nc:   nc,
		r:    reader,
		w:    bufio.NewWriter(nc),
		dec:  resp.NewDecoder(reader),
	}
}

// run is the read -> decode -> dispatch -> write loop. It exits, and
// closes the connection, on peer close or an unrecoverable decode
// error; a command-level error never terminates the loop.
func (c *conn) run() {
	log := telemetry.Conn(c.id, c.roleName())
	defer c.teardown()

	for {
		val, err := c.dec.Decode()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.WithError(err).Debug("closing connection after decode error")
			}
			return
		}

		raw := resp.EncodeBytes(val)
		args := val.StringArgs()
		if len(args) == 0 {
			continue
		}

		if err := c.handleCommand(args, raw); err != nil {
			log.WithError(err).Debug("closing connection after write error")
			return
		}
	}
}

func (c *conn) roleName() string {
	switch c.role {
	case roleReplicaSink:
		return "replica-sink"
	case rolePrimaryLink:
		return "primary-link"
	default:
		return "client"
	}
}

// teardown releases everything this connection may have registered
// itself in: the replica-sink set, on an unexpected disconnect.
func (c *conn) teardown() {
	if c.isSink {
		c.srv.repl.RemoveSink(c.id)
	}
	c.nc.Close()
}

// writeValue encodes and flushes v. It does not consult the
// connection's role: whether a command's reply is suppressed is decided
// beforehand by replyIsSuppressed in executeAndReply. It takes writeMu
// so it can never interleave with a propagated write landing on this
// same connection via writeRaw.
func (c *conn) writeValue(v resp.Value) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := resp.Encode(c.w, v); err != nil {
		return err
	}
	return c.w.Flush()
}

// writeRaw writes and flushes b as-is. It is handed to the replication
// manager as a replica sink's Write callback, so that writes fanned
// out from another connection's goroutine serialize against this
// connection's own replies on the same writeMu.
func (c *conn) writeRaw(b []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if _, err := c.w.Write(b); err != nil {
		return err
	}
	return c.w.Flush()
}

func (c *conn) writeError(format string, a ...interface{}) error {
	return c.writeValue(resp.NewError(format, a...))
}

// handleCommand is the transaction-aware entry point: it intercepts
// MULTI/EXEC/DISCARD, queues everything else while IN_TX, and
// otherwise executes the command immediately.
func (c *conn) handleCommand(args []string, raw []byte) error {
	name := strings.ToUpper(args[0])
	rest := args[1:]

	if c.tx.InTx && name != "EXEC" && name != "DISCARD" && name != "MULTI" {
		c.tx.Enqueue(name, rest, raw)
		return c.writeValue(resp.NewSimple("QUEUED"))
	}

	switch name {
	case "MULTI":
		if c.tx.InTx {
			return c.writeError("ERR MULTI calls can not be nested")
		}
		c.tx.Begin()
		return c.writeValue(resp.NewSimple("OK"))

	case "EXEC":
		if !c.tx.InTx {
			return c.writeError("ERR EXEC without MULTI")
		}
		return c.execBatch()

	case "DISCARD":
		if !c.tx.InTx {
			return c.writeError("ERR DISCARD without MULTI")
		}
		c.tx.Discard()
		return c.writeValue(resp.NewSimple("OK"))
	}

	return c.executeAndReply(name, rest, raw)
}

// execBatch runs a queued EXEC batch. The whole batch holds the
// keyspace lock, so no other connection's command can interleave
// between two commands of this transaction (§5). Each queued write
// still propagates to replica sinks individually, using the exact
// bytes it arrived as when it was queued.
func (c *conn) execBatch() error {
	queued := c.tx.Drain()

	c.srv.store.Lock()
	defer c.srv.store.Unlock()

	replies := make([]resp.Value, 0, len(queued))
	for _, q := range queued {
		outcome := c.dispatch(q.Name, q.Args)
		replies = append(replies, outcome.Reply)
		if isWriteCommand(q.Name) && outcome.Reply.Kind != resp.Error {
			c.srv.repl.Propagate(q.Raw)
		}
	}
	return c.writeValue(txn.EncodeReplies(replies))
}

// executeAndReply runs one command outside a transaction, replicates
// it if it is a successful write, and writes its reply (unless this
// connection's role suppresses ordinary replies). BLPOP and PSYNC are
// handled entirely outside the generic lock-dispatch-unlock path: BLPOP
// may suspend the connection (holding the store lock across that would
// stall every other connection), and PSYNC writes two frames of its own
// and mutates this connection's role rather than producing one reply.
func (c *conn) executeAndReply(name string, args []string, raw []byte) error {
	switch name {
	case "BLPOP":
		return c.handleBLPOP(args)
	case "PSYNC":
		return c.handlePSYNC(args)
	}

	c.srv.store.Lock()
	outcome := c.dispatch(name, args)
	c.srv.store.Unlock()

	if isWriteCommand(name) && outcome.Reply.Kind != resp.Error {
		c.srv.repl.Propagate(raw)
	}

	if c.replyIsSuppressed(name, args) {
		return nil
	}
	return c.writeValue(outcome.Reply)
}

// replyIsSuppressed reports whether name/args should produce no reply
// on this connection, given its role: a primary-link connection only
// ever talks back for REPLCONF GETACK (everything else it receives is
// a propagated write it must apply silently), and a replica-sink
// connection never replies to the REPLCONF ACK heartbeats a real
// replica sends it, since those share the connection's one writer with
// whatever this server is concurrently propagating to that sink.
func (c *conn) replyIsSuppressed(name string, args []string) bool {
	isReplconf := func(sub string) bool {
		return name == "REPLCONF" && len(args) > 0 && strings.EqualFold(args[0], sub)
	}
	switch c.role {
	case rolePrimaryLink:
		return !isReplconf("GETACK")
	case roleReplicaSink:
		return isReplconf("ACK")
	default:
		return false
	}
}
