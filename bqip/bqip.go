// Package bqip implements the line/frame wire protocol described in spec
// terms as BQIP: `T|LEN|PAYLOAD` requests and `R|...`/`E|...` responses.
// Grounded on original_source/bqip.c's incremental two-phase frame reader,
// reimplemented over bufio.Reader since Go's buffered I/O already gives
// the "read what's available, resume later" behavior the original
// hand-rolled with a fixed ring buffer.
package bqip

import (
	"bufio"
	"fmt"
	"io"
	"strconv"

	"github.com/Polqt/bolodb/internal/errs"
)

// RequestType is the single-byte request discriminator.
type RequestType byte

const (
	Query       RequestType = 'Q'
	Plan        RequestType = 'P'
	Measurement RequestType = 'M'
)

// Request is one decoded BQIP frame.
type Request struct {
	Type    RequestType
	Payload string
}

// maxPayload bounds a single frame's declared length, guarding against a
// malicious or corrupt LEN field forcing an unbounded allocation.
const maxPayload = 16 << 20

// ReadRequest decodes exactly one `T|LEN|PAYLOAD` frame from r. Per
// connection, BQIP accepts one request at a time with no pipelining, so
// callers construct a fresh bufio.Reader (or reuse one across a
// single-request-per-connection lifetime) rather than buffering ahead.
func ReadRequest(r *bufio.Reader) (*Request, error) {
	typByte, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("bqip: read type: %w", err)
	}
	typ := RequestType(typByte)
	switch typ {
	case Query, Plan, Measurement:
	default:
		return nil, errs.New(errs.Invalid, "bqip: unknown request type %q", typByte)
	}

	if err := expect(r, '|'); err != nil {
		return nil, err
	}

	lenStr, err := readUntil(r, '|')
	if err != nil {
		return nil, err
	}
	n, err := strconv.Atoi(lenStr)
	if err != nil || n < 0 {
		return nil, errs.New(errs.Invalid, "bqip: bad frame length %q", lenStr)
	}
	if n > maxPayload {
		return nil, errs.New(errs.Invalid, "bqip: frame length %d exceeds maximum %d", n, maxPayload)
	}
	if err := expect(r, '|'); err != nil {
		return nil, err
	}

	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("bqip: read payload: %w", err)
	}

	return &Request{Type: typ, Payload: string(payload)}, nil
}

func expect(r *bufio.Reader, want byte) error {
	got, err := r.ReadByte()
	if err != nil {
		return fmt.Errorf("bqip: read delimiter: %w", err)
	}
	if got != want {
		return errs.New(errs.Invalid, "bqip: expected %q, got %q", want, got)
	}
	return nil
}

// readUntil consumes bytes up to (not including) the next occurrence of
// delim, which is left unconsumed for the caller to check explicitly.
func readUntil(r *bufio.Reader, delim byte) (string, error) {
	var buf []byte
	for {
		b, err := r.ReadByte()
		if err != nil {
			return "", fmt.Errorf("bqip: scan for %q: %w", delim, err)
		}
		if b == delim {
			if err := r.UnreadByte(); err != nil {
				return "", err
			}
			return string(buf), nil
		}
		if b < '0' || b > '9' {
			return "", errs.New(errs.Invalid, "bqip: non-digit %q in frame length", b)
		}
		buf = append(buf, b)
	}
}

// Tuple is one (timestamp, value) result point.
type Tuple struct {
	Start uint64
	Value float64
}

// FieldResult is one named result series.
type FieldResult struct {
	Name   string
	Tuples []Tuple
}

// WriteError writes an "E|<message>" response.
func WriteError(w io.Writer, msg string) error {
	_, err := io.WriteString(w, "E|"+msg)
	return err
}

// WriteResult writes an "R|name1=t1:v1,t2:v2,...name2=..." response,
// matching bqip.c's bqip_send_tuple format ("%lu:%e,") byte for byte.
func WriteResult(w io.Writer, fields []FieldResult) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString("R|"); err != nil {
		return err
	}
	for _, f := range fields {
		if _, err := bw.WriteString(f.Name + "="); err != nil {
			return err
		}
		for _, t := range f.Tuples {
			if _, err := fmt.Fprintf(bw, "%d:%.6e,", t.Start, t.Value); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}
