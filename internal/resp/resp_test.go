package resp

import (
	"bufio"
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeAll(t *testing.T, wire string) []Value {
	t.Helper()
	d := NewDecoder(bufio.NewReader(strings.NewReader(wire)))
	var out []Value
	for {
		v, err := d.Decode()
		if err != nil {
			break
		}
		out = append(out, v)
	}
	return out
}

func TestDecodeArrayOfBulkStrings(t *testing.T) {
	vs := decodeAll(t, "*1\r\n$4\r\nPING\r\n")
	require.Len(t, vs, 1)
	assert.Equal(t, []string{"PING"}, vs[0].StringArgs())
}

func TestDecodeNeedMoreDoesNotConsume(t *testing.T) {
	r := bufio.NewReader(bytes.NewReader([]byte("*1\r\n$4\r\nPI")))
	d := NewDecoder(r)
	_, err := d.Decode()
	assert.ErrorIs(t, err, ErrNeedMore)
}

func TestDecodeBackToBackFrames(t *testing.T) {
	vs := decodeAll(t, "+PONG\r\n+OK\r\n+OK\r\n+FULLRESYNC abc 0\r\n")
	require.Len(t, vs, 4)
	assert.Equal(t, "PONG", vs[0].Str)
	assert.Equal(t, "FULLRESYNC abc 0", vs[3].Str)
}

func TestDecodeNullBulkAndArray(t *testing.T) {
	vs := decodeAll(t, "$-1\r\n*-1\r\n")
	require.Len(t, vs, 2)
	assert.Equal(t, BulkString, vs[0].Kind)
	assert.Nil(t, vs[0].Bulk)
	assert.Equal(t, Array, vs[1].Kind)
	assert.Nil(t, vs[1].Array)
}

func TestEncodeRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	require.NoError(t, Encode(w, NewArray(NewBulkString("q"), NewBulkString("hello"))))
	w.Flush()
	assert.Equal(t, "*2\r\n$1\r\nq\r\n$5\r\nhello\r\n", buf.String())
}

func TestEncodeNullBulk(t *testing.T) {
	assert.Equal(t, "$-1\r\n", string(EncodeBytes(NewNullBulk())))
}

func TestWriteBareBulkHasNoTrailingCRLF(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	require.NoError(t, WriteBareBulk(w, []byte("REDIS0011xyz")))
	w.Flush()
	assert.Equal(t, "$12\r\nREDIS0011xyz", buf.String())
}
