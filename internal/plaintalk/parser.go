// Package plaintalk reads and writes PlainTalk messages.
//
// A message is a line of fields separated by single spaces and terminated by
// "\n" or "\r\n". Inside a field, "{N}" is followed by exactly N raw bytes that
// are taken verbatim, which is how fields carry spaces, newlines, braces or
// nothing at all ("{0}"). An empty line is a message with one empty field.
package plaintalk

import (
	"bufio"
	"errors"
	"io"
)

// DefaultMaxFieldSize is used when a Parser is created with a non-positive limit.
const DefaultMaxFieldSize = 64 * 1024

var (
	// ErrEndOfMessage is returned by Message.ReadField when every field of the
	// message has been read.
	ErrEndOfMessage = errors.New("plaintalk: no more fields in message")
	// ErrFieldTooLong is returned when a field exceeds the parser's size limit.
	ErrFieldTooLong = errors.New("plaintalk: field too long")
	// ErrInvalidEscape is returned for a "{" that does not start a valid
	// "{N}" length escape.
	ErrInvalidEscape = errors.New("plaintalk: invalid escape sequence")
)

// maxEscapeDigits bounds the "{N}" length prefix so it cannot overflow an int.
const maxEscapeDigits = 9

// Parser pulls messages from a byte stream. Messages must be consumed in order;
// calling Next discards whatever is left of the current message.
type Parser struct {
	r        *bufio.Reader
	maxField int
	cur      *Message
	err      error
}

// NewParser returns a Parser reading from r. Fields longer than maxFieldSize
// bytes make the parser fail with ErrFieldTooLong.
func NewParser(r io.Reader, maxFieldSize int) *Parser {
	if maxFieldSize <= 0 {
		maxFieldSize = DefaultMaxFieldSize
	}
	return &Parser{
		r:        bufio.NewReader(r),
		maxField: maxFieldSize,
	}
}

// Next returns the next message. It returns io.EOF when the stream ends
// cleanly between messages. Any other error is sticky.
func (p *Parser) Next() (*Message, error) {
	if p.cur != nil && !p.cur.end {
		if err := p.cur.Discard(); err != nil {
			return nil, err
		}
	}
	p.cur = nil
	if p.err != nil {
		return nil, p.err
	}

	if _, err := p.r.Peek(1); err != nil {
		if !errors.Is(err, io.EOF) {
			p.err = err
		}
		return nil, err
	}

	p.cur = &Message{p: p}
	return p.cur, nil
}

// Message is one incoming message. Its fields are read front to back.
type Message struct {
	p   *Parser
	end bool
}

// AtEnd reports whether every field of the message has been read.
func (m *Message) AtEnd() bool {
	return m.end
}

// ReadField returns the next field. The returned slice is owned by the caller.
// After the last field it returns ErrEndOfMessage.
func (m *Message) ReadField() ([]byte, error) {
	if m.p.err != nil {
		return nil, m.p.err
	}
	if m.end {
		return nil, ErrEndOfMessage
	}

	field, err := m.p.readField(m, false)
	if err != nil {
		m.p.err = err
		return nil, err
	}
	return field, nil
}

// ReadString is ReadField for callers that want a string.
func (m *Message) ReadString() (string, error) {
	field, err := m.ReadField()
	if err != nil {
		return "", err
	}
	return string(field), nil
}

// Discard skips the remaining fields of the message.
func (m *Message) Discard() error {
	for !m.end {
		if m.p.err != nil {
			return m.p.err
		}
		if _, err := m.p.readField(m, true); err != nil {
			m.p.err = err
			return err
		}
	}
	return nil
}

func (p *Parser) readField(m *Message, discard bool) ([]byte, error) {
	var field []byte
	size := 0

	for {
		b, err := p.r.ReadByte()
		if err != nil {
			return nil, unexpected(err)
		}

		switch b {
		case ' ':
			return field, nil
		case '\n':
			m.end = true
			return field, nil
		case '\r':
			next, err := p.r.Peek(1)
			if err == nil && next[0] == '\n' {
				_, _ = p.r.ReadByte()
				m.end = true
				return field, nil
			}
		case '{':
			n, err := p.readEscapeLength()
			if err != nil {
				return nil, err
			}
			if size+n > p.maxField {
				return nil, ErrFieldTooLong
			}
			size += n
			if discard {
				if _, err := p.r.Discard(n); err != nil {
					return nil, unexpected(err)
				}
				continue
			}
			start := len(field)
			field = append(field, make([]byte, n)...)
			if _, err := io.ReadFull(p.r, field[start:]); err != nil {
				return nil, unexpected(err)
			}
			continue
		}

		size++
		if size > p.maxField {
			return nil, ErrFieldTooLong
		}
		if !discard {
			field = append(field, b)
		}
	}
}

// readEscapeLength parses the "N}" following an opening brace.
func (p *Parser) readEscapeLength() (int, error) {
	n, digits := 0, 0
	for {
		b, err := p.r.ReadByte()
		if err != nil {
			return 0, unexpected(err)
		}
		if b == '}' {
			if digits == 0 {
				return 0, ErrInvalidEscape
			}
			return n, nil
		}
		if b < '0' || b > '9' {
			return 0, ErrInvalidEscape
		}
		digits++
		if digits > maxEscapeDigits {
			return 0, ErrFieldTooLong
		}
		n = n*10 + int(b-'0')
	}
}

func unexpected(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}
