package txn

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBeginThenEnqueue(t *testing.T) {
	var s State
	s.Begin()
	assert.True(t, s.InTx)
	s.Enqueue("SET", []string{"k", "v"}, nil)
	s.Enqueue("GET", []string{"k"}, nil)
	assert.Len(t, s.Queue, 2)
}

func TestDiscardClearsState(t *testing.T) {
	var s State
	s.Begin()
	s.Enqueue("SET", []string{"k", "v"}, nil)
	s.Discard()
	assert.False(t, s.InTx)
	assert.Empty(t, s.Queue)
}

func TestDrainReturnsQueueAndResetsState(t *testing.T) {
	var s State
	s.Begin()
	s.Enqueue("SET", []string{"k", "v"}, nil)
	q := s.Drain()
	assert.Len(t, q, 1)
	assert.False(t, s.InTx)
	assert.Empty(t, s.Queue)
}
