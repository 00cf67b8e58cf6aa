// Package resp implements the backend wire protocol (RESP2): command
// encoding and reply parsing.
//
// Reply kinds mirror the protocol's five frame types plus the nil bulk /
// nil array, which both surface as TypeNil.
package resp

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
)

// Type identifies the kind of a reply frame.
type Type int

const (
	TypeStatus Type = iota + 1 // +OK
	TypeError                  // -ERR ...
	TypeInteger                // :123
	TypeBulk                   // $5\r\nhello
	TypeArray                  // *2\r\n...
	TypeNil                    // $-1 or *-1
)

func (t Type) String() string {
	switch t {
	case TypeStatus:
		return "status"
	case TypeError:
		return "error"
	case TypeInteger:
		return "integer"
	case TypeBulk:
		return "bulk"
	case TypeArray:
		return "array"
	case TypeNil:
		return "nil"
	default:
		return "unknown"
	}
}

// Reply is one decoded reply frame.
type Reply struct {
	Type  Type
	Str   string // status line, error text, or bulk payload
	Int   int64
	Elems []*Reply
}

// IsError reports whether the reply is a protocol-level error frame.
func (r *Reply) IsError() bool {
	return r != nil && r.Type == TypeError
}

// AppendCommand appends the RESP encoding of a command to buf.
// Every argument is written as a bulk string.
func AppendCommand(buf []byte, args ...string) []byte {
	buf = append(buf, '*')
	buf = strconv.AppendInt(buf, int64(len(args)), 10)
	buf = append(buf, '\r', '\n')
	for _, arg := range args {
		buf = append(buf, '$')
		buf = strconv.AppendInt(buf, int64(len(arg)), 10)
		buf = append(buf, '\r', '\n')
		buf = append(buf, arg...)
		buf = append(buf, '\r', '\n')
	}
	return buf
}

// Reader decodes reply frames from a stream.
type Reader struct {
	br *bufio.Reader
}

// NewReader wraps r in a buffered reply decoder.
func NewReader(r io.Reader) *Reader {
	return &Reader{br: bufio.NewReader(r)}
}

// ReadReply decodes the next reply frame. It blocks until a full frame is
// available or the stream fails.
func (r *Reader) ReadReply() (*Reply, error) {
	line, err := r.readLine()
	if err != nil {
		return nil, err
	}
	if len(line) == 0 {
		return nil, fmt.Errorf("resp: empty frame")
	}

	marker, rest := line[0], string(line[1:])
	switch marker {
	case '+':
		return &Reply{Type: TypeStatus, Str: rest}, nil
	case '-':
		return &Reply{Type: TypeError, Str: rest}, nil
	case ':':
		n, err := strconv.ParseInt(rest, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("resp: bad integer %q: %w", rest, err)
		}
		return &Reply{Type: TypeInteger, Int: n}, nil
	case '$':
		return r.readBulk(rest)
	case '*':
		return r.readArray(rest)
	default:
		return nil, fmt.Errorf("resp: unknown frame marker %q", marker)
	}
}

func (r *Reader) readBulk(lenStr string) (*Reply, error) {
	n, err := strconv.ParseInt(lenStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("resp: bad bulk length %q: %w", lenStr, err)
	}
	if n < 0 {
		return &Reply{Type: TypeNil}, nil
	}

	payload := make([]byte, n+2) // includes trailing CRLF
	if _, err := io.ReadFull(r.br, payload); err != nil {
		return nil, err
	}
	if payload[n] != '\r' || payload[n+1] != '\n' {
		return nil, fmt.Errorf("resp: bulk payload missing terminator")
	}
	return &Reply{Type: TypeBulk, Str: string(payload[:n])}, nil
}

func (r *Reader) readArray(lenStr string) (*Reply, error) {
	n, err := strconv.ParseInt(lenStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("resp: bad array length %q: %w", lenStr, err)
	}
	if n < 0 {
		return &Reply{Type: TypeNil}, nil
	}

	elems := make([]*Reply, 0, n)
	for i := int64(0); i < n; i++ {
		elem, err := r.ReadReply()
		if err != nil {
			return nil, err
		}
		elems = append(elems, elem)
	}
	return &Reply{Type: TypeArray, Elems: elems}, nil
}

// readLine reads up to CRLF and returns the line without the terminator.
func (r *Reader) readLine() ([]byte, error) {
	line, err := r.br.ReadBytes('\n')
	if err != nil {
		return nil, err
	}
	if len(line) < 2 || line[len(line)-2] != '\r' {
		return nil, fmt.Errorf("resp: line missing CRLF terminator")
	}
	return line[:len(line)-2], nil
}
