package server

import (
	"strconv"
	"strings"
	"time"

	"goredis/internal/dispatch"
	"goredis/internal/replication"
	"goredis/internal/resp"
)

// writeCommands are the commands whose successful application is
// propagated to replica sinks: the set SPEC_FULL.md §4.5 lists. LPOP
// and BLPOP are not in it and are never propagated.
func isWriteCommand(name string) bool {
	switch name {
	case "SET", "LPUSH", "RPUSH", "INCR":
		return true
	}
	return false
}

// dispatch matches one decoded command against the recognized set and
// runs it against the keyspace. The caller already holds the store
// lock, for the duration of either a single command or a whole EXEC
// batch, so handlers here never lock/unlock it themselves. BLPOP is the
// one command this cannot run for: it is intercepted before reaching
// here on the standalone path (handleBLPOP) and only appears here as
// its own non-blocking, immediate-check form, used inside EXEC where a
// transaction can never suspend.
func (c *conn) dispatch(name string, args []string) dispatch.Outcome {
	switch name {
	case "PING":
		if len(args) > 0 {
			return dispatch.ReplyWith(resp.NewBulkString(args[0]))
		}
		return dispatch.ReplyWith(resp.NewSimple("PONG"))

	case "ECHO":
		if len(args) != 1 {
			return dispatch.ReplyWith(resp.NewError("ERR wrong number of arguments for 'echo' command"))
		}
		return dispatch.ReplyWith(resp.NewBulkString(args[0]))

	case "SET":
		return c.cmdSet(args)

	case "GET":
		if len(args) != 1 {
			return dispatch.ReplyWith(resp.NewError("ERR wrong number of arguments for 'get' command"))
		}
		v, ok, err := c.srv.store.Get(args[0])
		if err != nil {
			return dispatch.ReplyWith(resp.NewError(err.Error()))
		}
		if !ok {
			return dispatch.ReplyWith(resp.NewNullBulk())
		}
		return dispatch.ReplyWith(resp.NewBulkString(v))

	case "INCR":
		if len(args) != 1 {
			return dispatch.ReplyWith(resp.NewError("ERR wrong number of arguments for 'incr' command"))
		}
		n, err := c.srv.store.Incr(args[0], 1)
		if err != nil {
			return dispatch.ReplyWith(resp.NewError("ERR %s", err.Error()))
		}
		return dispatch.ReplyWith(resp.NewInt(n))

	case "TYPE":
		if len(args) != 1 {
			return dispatch.ReplyWith(resp.NewError("ERR wrong number of arguments for 'type' command"))
		}
		return dispatch.ReplyWith(resp.NewSimple(c.srv.store.Type(args[0])))

	case "LPUSH":
		return c.cmdPush(args, c.srv.store.LPush)

	case "RPUSH":
		return c.cmdPush(args, c.srv.store.RPush)

	case "LLEN":
		if len(args) != 1 {
			return dispatch.ReplyWith(resp.NewError("ERR wrong number of arguments for 'llen' command"))
		}
		n, err := c.srv.store.LLen(args[0])
		if err != nil {
			return dispatch.ReplyWith(resp.NewError(err.Error()))
		}
		return dispatch.ReplyWith(resp.NewInt(int64(n)))

	case "LRANGE":
		return c.cmdLRange(args)

	case "LPOP":
		return c.cmdLPop(args)

	case "BLPOP":
		return c.cmdBLPopImmediate(args)

	case "KEYS":
		if len(args) != 1 {
			return dispatch.ReplyWith(resp.NewError("ERR wrong number of arguments for 'keys' command"))
		}
		keys := c.srv.store.Keys(args[0])
		vs := make([]resp.Value, len(keys))
		for i, k := range keys {
			vs[i] = resp.NewBulkString(k)
		}
		return dispatch.ReplyWith(resp.NewArray(vs...))

	case "CONFIG":
		return c.cmdConfig(args)

	case "INFO":
		return dispatch.ReplyWith(resp.NewBulkString(c.srv.repl.Info()))

	case "REPLCONF":
		return c.cmdReplconf(args)

	default:
		return dispatch.ReplyWith(resp.NewError("ERR unknown command '%s'", name))
	}
}

func (c *conn) cmdSet(args []string) dispatch.Outcome {
	if len(args) < 2 {
		return dispatch.ReplyWith(resp.NewError("ERR wrong number of arguments for 'set' command"))
	}
	key, value := args[0], args[1]

	var expireAt *time.Time
	rest := args[2:]
	for i := 0; i < len(rest); i++ {
		if !strings.EqualFold(rest[i], "PX") {
			return dispatch.ReplyWith(resp.NewError("ERR syntax error"))
		}
		if i+1 >= len(rest) {
			return dispatch.ReplyWith(resp.NewError("ERR syntax error"))
		}
		ms, err := strconv.ParseInt(rest[i+1], 10, 64)
		if err != nil {
			return dispatch.ReplyWith(resp.NewError("ERR value is not an integer or out of range"))
		}
		t := time.Now().Add(time.Duration(ms) * time.Millisecond)
		expireAt = &t
		i++
	}

	c.srv.store.Set(key, value, expireAt)
	return dispatch.ReplyWith(resp.NewSimple("OK"))
}

func (c *conn) cmdPush(args []string, push func(string, ...string) (int, error)) dispatch.Outcome {
	if len(args) < 2 {
		return dispatch.ReplyWith(resp.NewError("ERR wrong number of arguments for push command"))
	}
	key, values := args[0], args[1:]
	n, err := push(key, values...)
	if err != nil {
		return dispatch.ReplyWith(resp.NewError(err.Error()))
	}

	// Producer side of BLPOP (§4.4): drain waiters against the list we
	// just grew, one element per waiter, until either side runs dry.
	for {
		v, ok, err := c.srv.store.LPop(key)
		if err != nil || !ok {
			break
		}
		if !c.srv.blocking.Notify(key, v) {
			// No waiter consumed it: put it back at the head and stop.
			c.srv.store.LPush(key, v)
			break
		}
	}

	return dispatch.ReplyWith(resp.NewInt(int64(n)))
}

func (c *conn) cmdLRange(args []string) dispatch.Outcome {
	if len(args) != 3 {
		return dispatch.ReplyWith(resp.NewError("ERR wrong number of arguments for 'lrange' command"))
	}
	start, err := strconv.Atoi(args[1])
	if err != nil {
		return dispatch.ReplyWith(resp.NewError("ERR value is not an integer or out of range"))
	}
	stop, err := strconv.Atoi(args[2])
	if err != nil {
		return dispatch.ReplyWith(resp.NewError("ERR value is not an integer or out of range"))
	}
	items, err := c.srv.store.LRange(args[0], start, stop)
	if err != nil {
		return dispatch.ReplyWith(resp.NewError(err.Error()))
	}
	vs := make([]resp.Value, len(items))
	for i, it := range items {
		vs[i] = resp.NewBulkString(it)
	}
	return dispatch.ReplyWith(resp.NewArray(vs...))
}

func (c *conn) cmdLPop(args []string) dispatch.Outcome {
	if len(args) < 1 || len(args) > 2 {
		return dispatch.ReplyWith(resp.NewError("ERR wrong number of arguments for 'lpop' command"))
	}
	key := args[0]

	if len(args) == 1 {
		v, ok, err := c.srv.store.LPop(key)
		if err != nil {
			return dispatch.ReplyWith(resp.NewError(err.Error()))
		}
		if !ok {
			return dispatch.ReplyWith(resp.NewNullBulk())
		}
		return dispatch.ReplyWith(resp.NewBulkString(v))
	}

	count, err := strconv.Atoi(args[1])
	if err != nil || count < 0 {
		return dispatch.ReplyWith(resp.NewError("ERR value is out of range, must be positive"))
	}
	vs := make([]resp.Value, 0, count)
	for i := 0; i < count; i++ {
		v, ok, err := c.srv.store.LPop(key)
		if err != nil {
			return dispatch.ReplyWith(resp.NewError(err.Error()))
		}
		if !ok {
			break
		}
		vs = append(vs, resp.NewBulkString(v))
	}
	if len(vs) == 0 {
		return dispatch.ReplyWith(resp.NewNullArray())
	}
	return dispatch.ReplyWith(resp.NewArray(vs...))
}

// cmdBLPopImmediate is BLPOP's non-blocking form, used only for a
// command queued inside MULTI/EXEC: a transaction batch runs under a
// single store-lock critical section and can never suspend, so BLPOP
// degrades to an immediate check, matching reference Redis behavior.
func (c *conn) cmdBLPopImmediate(args []string) dispatch.Outcome {
	if len(args) != 2 {
		return dispatch.ReplyWith(resp.NewError("ERR wrong number of arguments for 'blpop' command"))
	}
	v, ok, err := c.srv.store.LPop(args[0])
	if err != nil {
		return dispatch.ReplyWith(resp.NewError(err.Error()))
	}
	if !ok {
		return dispatch.ReplyWith(resp.NewNullArray())
	}
	return dispatch.ReplyWith(resp.NewArray(resp.NewBulkString(args[0]), resp.NewBulkString(v)))
}

func (c *conn) cmdConfig(args []string) dispatch.Outcome {
	if len(args) != 2 || !strings.EqualFold(args[0], "GET") {
		return dispatch.ReplyWith(resp.NewError("ERR unsupported CONFIG subcommand"))
	}
	var value string
	switch strings.ToLower(args[1]) {
	case "dir":
		value = c.srv.cfg.Dir
	case "dbfilename":
		value = c.srv.cfg.DBFilename
	default:
		return dispatch.ReplyWith(resp.NewArray())
	}
	return dispatch.ReplyWith(resp.NewArray(resp.NewBulkString(args[1]), resp.NewBulkString(value)))
}

func (c *conn) cmdReplconf(args []string) dispatch.Outcome {
	if len(args) == 0 {
		return dispatch.ReplyWith(resp.NewError("ERR wrong number of arguments for 'replconf' command"))
	}
	if strings.EqualFold(args[0], "GETACK") {
		return dispatch.ReplyWith(resp.CommandArray("REPLCONF", "ACK", strconv.FormatInt(c.srv.repl.Offset(), 10)))
	}
	return dispatch.ReplyWith(resp.NewSimple("OK"))
}

// handleBLPOP is BLPOP's standalone (non-transactional) form: it may
// genuinely suspend the connection, so it runs outside the generic
// lock-dispatch-unlock wrapper executeAndReply otherwise uses, taking
// the store lock only for the two instantaneous list checks (before and
// after registering the waiter); a value handed over by a producer is
// replied with without taking the lock again.
//
// Registering the waiter (blocking.Wait) and the list re-check below
// happen in that order, not the other way around: if the initial check
// ran, then unlocked, then registered, a concurrent RPUSH could land
// entirely in the gap between unlock and register — its own Notify
// would see no waiter yet, push the value back, and leave this waiter
// parked on an element nobody will ever deliver again. Registering
// first and re-checking the store under lock afterward closes that
// window: any push that ran in the gap either delivered straight to
// our now-registered waiter, or (if it ran before registration) left
// its element sitting in the list for the re-check to find.
func (c *conn) handleBLPOP(args []string) error {
	if len(args) != 2 {
		return c.writeError("ERR wrong number of arguments for 'blpop' command")
	}
	key := args[0]
	secs, err := strconv.ParseFloat(args[1], 64)
	if err != nil || secs < 0 {
		return c.writeError("ERR timeout is not a float or negative")
	}

	c.srv.store.Lock()
	v, ok, err := c.srv.store.LPop(key)
	c.srv.store.Unlock()
	if err != nil {
		return c.writeError(err.Error())
	}
	if ok {
		return c.writeValue(resp.NewArray(resp.NewBulkString(key), resp.NewBulkString(v)))
	}

	var deadline time.Time
	if secs > 0 {
		deadline = time.Now().Add(time.Duration(secs * float64(time.Second)))
	}
	ch := c.srv.blocking.Wait(key, deadline)

	c.srv.store.Lock()
	v, ok, err = c.srv.store.LPop(key)
	if ok || err != nil {
		c.srv.blocking.Cancel(key, ch)
	}
	c.srv.store.Unlock()
	if err != nil {
		return c.writeError(err.Error())
	}
	if ok {
		return c.writeValue(resp.NewArray(resp.NewBulkString(key), resp.NewBulkString(v)))
	}

	result := <-ch
	if result.Err != nil {
		return c.writeValue(resp.NewNullArray())
	}
	return c.writeValue(resp.NewArray(resp.NewBulkString(key), resp.NewBulkString(result.Value)))
}

// handlePSYNC completes a replica's full-resync request: it writes the
// FULLRESYNC line and the fixed empty-RDB snapshot directly (no reply
// value passes through the generic dispatch path, since this is the
// one handler that must write two distinct frames itself), then
// registers the connection as a replica sink.
func (c *conn) handlePSYNC(args []string) error {
	line := "FULLRESYNC " + c.srv.repl.ReplID() + " " + strconv.FormatInt(c.srv.repl.Offset(), 10)
	if err := c.writeValue(resp.NewSimple(line)); err != nil {
		return err
	}
	if err := resp.WriteBareBulk(c.w, replication.EmptyRDB); err != nil {
		return err
	}
	if err := c.w.Flush(); err != nil {
		return err
	}

	c.srv.repl.AddSink(c.id, c.writeRaw)
	c.isSink = true
	c.role = roleReplicaSink
	return nil
}
