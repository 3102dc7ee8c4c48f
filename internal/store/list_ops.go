package store

import "container/list"

// getOrCreateList returns key's backing list, creating an empty one in
// place if the key is absent or lazily expired. Caller must hold Lock.
func (s *Store) getOrCreateList(key string) (*Entry, error) {
	e, ok := s.lookup(key)
	if !ok {
		e = &Entry{Kind: KindList, List: list.New()}
		s.data[key] = e
		return e, nil
	}
	if e.Kind != KindList {
		return nil, ErrWrongType
	}
	return e, nil
}

// saveOrDelete drops key entirely once its list has been emptied,
// matching Redis's "a list with no elements does not exist" rule.
func (s *Store) saveOrDelete(key string, e *Entry) {
	if e.List.Len() == 0 {
		delete(s.data, key)
	}
}

// LPush prepends values (each pushed in turn, so the last argument
// ends up at the head) and returns the resulting length. Caller must
// hold Lock.
func (s *Store) LPush(key string, values ...string) (int, error) {
	e, err := s.getOrCreateList(key)
	if err != nil {
		return 0, err
	}
	for _, v := range values {
		e.List.PushFront(v)
	}
	return e.List.Len(), nil
}

// RPush appends values in order and returns the resulting length.
// Caller must hold Lock.
func (s *Store) RPush(key string, values ...string) (int, error) {
	e, err := s.getOrCreateList(key)
	if err != nil {
		return 0, err
	}
	for _, v := range values {
		e.List.PushBack(v)
	}
	return e.List.Len(), nil
}

// LLen reports the length of key's list, 0 if the key is absent.
// Caller must hold Lock.
func (s *Store) LLen(key string) (int, error) {
	e, ok := s.lookup(key)
	if !ok {
		return 0, nil
	}
	if e.Kind != KindList {
		return 0, ErrWrongType
	}
	return e.List.Len(), nil
}

// LRange returns the elements of key's list between start and stop
// (inclusive), both of which may be negative to index from the tail,
// clamped to the list's bounds the way Redis does. Caller must hold
// Lock.
func (s *Store) LRange(key string, start, stop int) ([]string, error) {
	e, ok := s.lookup(key)
	if !ok {
		return nil, nil
	}
	if e.Kind != KindList {
		return nil, ErrWrongType
	}

	n := e.List.Len()
	start = normalizeIndex(start, n)
	stop = normalizeIndex(stop, n)
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if n == 0 || start > stop || start >= n {
		return []string{}, nil
	}

	out := make([]string, 0, stop-start+1)
	i := 0
	for el := e.List.Front(); el != nil; el = el.Next() {
		if i > stop {
			break
		}
		if i >= start {
			out = append(out, el.Value.(string))
		}
		i++
	}
	return out, nil
}

// LPop removes and returns the first element of key's list, or
// ok=false if the list is empty or absent. Caller must hold Lock.
func (s *Store) LPop(key string) (string, bool, error) {
	e, ok := s.lookup(key)
	if !ok {
		return "", false, nil
	}
	if e.Kind != KindList {
		return "", false, ErrWrongType
	}
	front := e.List.Front()
	if front == nil {
		return "", false, nil
	}
	e.List.Remove(front)
	s.saveOrDelete(key, e)
	return front.Value.(string), true, nil
}

func normalizeIndex(i, n int) int {
	if i < 0 {
		i = n + i
	}
	return i
}
