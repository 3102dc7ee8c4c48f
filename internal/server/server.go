// Package server is the connection orchestrator: it binds the
// listening socket, spawns one handler per accepted connection, and
// owns the shared registries (keyspace, blocking-pop waiters,
// replication) those handlers dispatch commands against.
package server

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"goredis/internal/blocking"
	"goredis/internal/config"
	"goredis/internal/replication"
	"goredis/internal/store"
	"goredis/internal/telemetry"
)

// Server holds the state every per-connection handler dispatches
// against: the keyspace, the blocking-pop registry, and the
// replication manager. There is exactly one of these per process.
type Server struct {
	cfg      config.Config
	store    *store.Store
	blocking *blocking.Registry
	repl     *replication.Manager

	listener net.Listener
}

// New wires together a fresh Server from its external collaborators:
// cfg (parsed command-line configuration) and an already-populated
// store (the RDB loader ran before this point and is out of THE
// CORE's scope).
func New(cfg config.Config, st *store.Store) *Server {
	return &Server{
		cfg:      cfg,
		store:    st,
		blocking: blocking.NewRegistry(),
		repl:     replication.New(),
	}
}

// Serve binds the listening socket, accepts connections until ctx is
// canceled, and — if configured with a primary — attaches to it as a
// replica concurrently. It returns once the accept loop, the
// listener-closing goroutine and the replica link (if any) have exited,
// or with the first unrecoverable error among them. Per-connection
// handler goroutines are not waited for.
func (s *Server) Serve(ctx context.Context) error {
	addr := fmt.Sprintf("127.0.0.1:%d", s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", addr, err)
	}
	s.listener = ln
	telemetry.For("server").WithField("addr", addr).Info("listening")

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-ctx.Done()
		return s.listener.Close()
	})

	g.Go(func() error {
		return s.acceptLoop(ctx)
	})

	if s.cfg.ReplicaOf != "" {
		host, port, err := parseReplicaOf(s.cfg.ReplicaOf)
		if err != nil {
			return err
		}
		g.Go(func() error {
			return s.runReplicaLink(ctx, host, port)
		})
	}

	return g.Wait()
}

func parseReplicaOf(spec string) (string, int, error) {
	fields := strings.Fields(spec)
	if len(fields) != 2 {
		return "", 0, fmt.Errorf("server: malformed replicaof %q, want \"<host> <port>\"", spec)
	}
	port, err := strconv.Atoi(fields[1])
	if err != nil {
		return "", 0, fmt.Errorf("server: malformed replicaof port %q: %w", fields[1], err)
	}
	return fields[0], port, nil
}

func (s *Server) acceptLoop(ctx context.Context) error {
	for {
		nc, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("server: accept: %w", err)
		}
		c := s.newConn(nc, roleClient)
		go c.run()
	}
}

// runReplicaLink performs the replica-side handshake against host:port
// and, on success, drives the resulting primary-link connection
// through the ordinary conn read/dispatch loop with role_tag
// primary-link-on-replica. Per §7, a handshake failure is fatal only to
// replication: the local server keeps serving reads, so this returns
// nil rather than propagating the error into the errgroup.
func (s *Server) runReplicaLink(ctx context.Context, host string, port int) error {
	log := telemetry.For("replication")
	addr := fmt.Sprintf("%s:%d", host, port)

	link, err := replication.Connect(addr, s.cfg.Port)
	if err != nil {
		log.WithError(err).Error("replica handshake failed")
		return nil
	}
	s.repl.BecomeReplica()
	log.WithField("primary", addr).Info("replica handshake complete")

	c := &conn{
		id:   uuid.NewString(),
		role: rolePrimaryLink,
		srv:  s,
		nc:   link.Conn,
		r:    link.Reader,
		w:    link.Writer,
		dec:  link.Decoder,
	}

	done := make(chan struct{})
	go func() {
		c.run()
		close(done)
	}()

	select {
	case <-ctx.Done():
		link.Conn.Close()
		<-done
	case <-done:
	}
	return nil
}
