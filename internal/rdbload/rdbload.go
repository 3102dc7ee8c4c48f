// Package rdbload populates a fresh keyspace from an on-disk RDB
// snapshot at startup. Parsing itself is handed to a real third-party
// RDB reader; this package only translates what it parses into
// store.Entry values.
package rdbload

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hdt3213/rdb/parser"

	"goredis/internal/store"
)

// Load reads dir/dbfilename and applies every key it contains to s. A
// missing file is not an error: a fresh server simply starts with an
// empty keyspace, matching first-run behavior.
func Load(s *store.Store, dir, dbfilename string) (int, error) {
	path := filepath.Join(dir, dbfilename)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("rdbload: opening %s: %w", path, err)
	}
	defer f.Close()

	s.Lock()
	defer s.Unlock()

	loaded := 0
	dec := parser.NewDecoder(f)
	err = dec.Parse(func(o parser.RedisObject) bool {
		if applyObject(s, o) {
			loaded++
		}
		return true
	})
	if err != nil {
		return loaded, fmt.Errorf("rdbload: parsing %s: %w", path, err)
	}
	return loaded, nil
}

func applyObject(s *store.Store, o parser.RedisObject) bool {
	var expireAt *time.Time
	if exp := o.GetExpiration(); exp != nil && !exp.IsZero() {
		t := *exp
		expireAt = &t
	}

	switch obj := o.(type) {
	case *parser.StringObject:
		s.Set(obj.Key, string(obj.Value), expireAt)
		return true
	case *parser.ListObject:
		values := make([]string, len(obj.Values))
		for i, v := range obj.Values {
			values[i] = string(v)
		}
		if _, err := s.RPush(obj.Key, values...); err != nil {
			return false
		}
		return true
	default:
		// Hash/set/zset/stream/module entries fall outside this
		// server's string/list data model; they are skipped rather
		// than rejected so an RDB file carrying unrelated Redis data
		// can still seed the keys this server does understand.
		return false
	}
}
