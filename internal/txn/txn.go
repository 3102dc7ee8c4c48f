// Package txn implements the per-connection MULTI/EXEC/DISCARD queueing
// state machine. Each connection owns one State; there is no shared
// registry because a connection's transaction state is never visible
// to, or touched by, any other connection.
package txn

import "goredis/internal/resp"

// QueuedCommand is one command captured between MULTI and EXEC/DISCARD.
// Raw holds the exact bytes this command arrived as, so EXEC can still
// propagate byte-identical writes to replicas once it runs the batch.
type QueuedCommand struct {
	Name string
	Args []string
	Raw  []byte
}

// State holds one connection's transaction state. The zero value is
// ready to use: not inside a transaction, empty queue.
type State struct {
	InTx  bool
	Queue []QueuedCommand
}

// Begin enters the queueing state. Redis rejects nested MULTI; callers
// check InTx themselves before calling Begin so they can reply with the
// right error.
func (s *State) Begin() {
	s.InTx = true
	s.Queue = s.Queue[:0]
}

// Enqueue appends a command to the pending batch. Callers only call
// this once InTx is true.
func (s *State) Enqueue(name string, args []string, raw []byte) {
	s.Queue = append(s.Queue, QueuedCommand{Name: name, Args: args, Raw: raw})
}

// Discard clears queued commands and leaves the queueing state,
// matching DISCARD.
func (s *State) Discard() {
	s.InTx = false
	s.Queue = nil
}

// Drain returns the queued batch and leaves the queueing state,
// matching EXEC: the caller executes the returned commands under a
// single store lock and replies with the array of their results.
func (s *State) Drain() []QueuedCommand {
	q := s.Queue
	s.InTx = false
	s.Queue = nil
	return q
}

// EncodeReplies wraps a batch of per-command reply values into the
// single RESP array EXEC returns to the client.
func EncodeReplies(replies []resp.Value) resp.Value {
	return resp.NewArray(replies...)
}
