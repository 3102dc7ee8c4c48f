package resp

import (
	"bufio"
	"bytes"
	"strconv"
)

// Encode writes v to w in RESP wire format.
func Encode(w *bufio.Writer, v Value) error {
	switch v.Kind {
	case SimpleString:
		w.WriteByte('+')
		w.WriteString(v.Str)
		w.WriteString("\r\n")

	case Error:
		w.WriteByte('-')
		w.WriteString(v.Str)
		w.WriteString("\r\n")

	case Integer:
		w.WriteByte(':')
		w.WriteString(strconv.FormatInt(v.Int, 10))
		w.WriteString("\r\n")

	case BulkString:
		if v.Bulk == nil {
			w.WriteString("$-1\r\n")
			return nil
		}
		w.WriteByte('$')
		w.WriteString(strconv.Itoa(len(v.Bulk)))
		w.WriteString("\r\n")
		w.Write(v.Bulk)
		w.WriteString("\r\n")

	case Array:
		if v.Array == nil {
			w.WriteString("*-1\r\n")
			return nil
		}
		w.WriteByte('*')
		w.WriteString(strconv.Itoa(len(v.Array)))
		w.WriteString("\r\n")
		for _, e := range v.Array {
			if err := Encode(w, e); err != nil {
				return err
			}
		}

	default:
		w.WriteString("$-1\r\n")
	}
	return nil
}

// EncodeBytes renders v to a standalone byte slice, used when the raw
// bytes of a write command must be captured for replica fan-out.
func EncodeBytes(v Value) []byte {
	var buf bytes.Buffer
	bw := bufio.NewWriter(&buf)
	Encode(bw, v)
	bw.Flush()
	return buf.Bytes()
}

// WriteBareBulk writes a bulk string header and payload with NO
// trailing CRLF, used exclusively for shipping the fixed RDB snapshot
// blob during PSYNC full resync (§4.1/§6).
func WriteBareBulk(w *bufio.Writer, payload []byte) error {
	w.WriteByte('$')
	w.WriteString(strconv.Itoa(len(payload)))
	w.WriteString("\r\n")
	_, err := w.Write(payload)
	return err
}
