package plaintalk

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strconv"
)

// ErrNoFields is returned when asked to write a message without fields.
var ErrNoFields = errors.New("plaintalk: message must have at least one field")

// Generator writes PlainTalk messages. Output is buffered until Flush.
// A Generator is not safe for concurrent use.
type Generator struct {
	w *bufio.Writer
}

// NewGenerator returns a Generator writing to w.
func NewGenerator(w io.Writer) *Generator {
	return &Generator{w: bufio.NewWriter(w)}
}

// WriteMessage writes one message made of the given fields.
func (g *Generator) WriteMessage(fields ...[]byte) error {
	if len(fields) == 0 {
		return ErrNoFields
	}
	for i, f := range fields {
		if i > 0 {
			if err := g.w.WriteByte(' '); err != nil {
				return err
			}
		}
		if err := g.writeField(f); err != nil {
			return err
		}
	}
	return g.w.WriteByte('\n')
}

// WriteStrings is WriteMessage for string fields.
func (g *Generator) WriteStrings(fields ...string) error {
	bs := make([][]byte, len(fields))
	for i, f := range fields {
		bs[i] = []byte(f)
	}
	return g.WriteMessage(bs...)
}

// Flush writes any buffered messages to the underlying writer.
func (g *Generator) Flush() error {
	return g.w.Flush()
}

func (g *Generator) writeField(f []byte) error {
	if !needsEscape(f) {
		_, err := g.w.Write(f)
		return err
	}
	if _, err := g.w.WriteString("{" + strconv.Itoa(len(f)) + "}"); err != nil {
		return err
	}
	_, err := g.w.Write(f)
	return err
}

func needsEscape(f []byte) bool {
	return len(f) == 0 || bytes.ContainsAny(f, " \r\n{")
}
