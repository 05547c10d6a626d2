package sam

import (
	"bytes"
	"iter"

	samerr "gosam/internal/errors"
)

// MaxLineLength bounds a single control line.  A bridge that sends more
// without a newline is treated as desynchronised.
const MaxLineLength = 64 * 1024

// Framer turns an arbitrarily chunked byte stream into Commands.  It
// knows nothing about SAM semantics beyond the two-token line shape.
//
// A Framer is not safe for concurrent use.
type Framer struct {
	buf []byte
	err error
}

// NewFramer returns an empty Framer.
func NewFramer() *Framer { return &Framer{} }

// Feed appends chunk to the internal buffer and returns an iterator over
// the complete lines now available, in arrival order.  Lines are parsed
// lazily: if the consumer stops early the unread lines stay buffered
// and are visible to the next Feed or to Drain.
//
// After a malformed line the Framer is poisoned; the iterator yields
// the ParseError and every later Feed yields it again.
func (f *Framer) Feed(chunk []byte) iter.Seq2[Command, error] {
	if f.err == nil {
		f.buf = append(f.buf, chunk...)
	}
	return func(yield func(Command, error) bool) {
		if f.err != nil {
			yield(Command{}, f.err)
			return
		}
		for {
			i := bytes.IndexByte(f.buf, '\n')
			if i < 0 {
				break
			}
			if i > MaxLineLength {
				f.tooLong()
				yield(Command{}, f.err)
				return
			}
			line := string(f.buf[:i])
			f.buf = f.buf[i+1:]

			cmd, err := ParseCommand(line)
			if err != nil {
				f.poison(err)
				yield(Command{}, err)
				return
			}
			if !yield(cmd, nil) {
				return
			}
		}

		if len(f.buf) > MaxLineLength {
			f.tooLong()
			yield(Command{}, f.err)
			return
		}
		if len(f.buf) == 0 {
			f.buf = nil
		}
	}
}

// Drain returns the buffered bytes that do not yet form a command and
// empties the buffer.
func (f *Framer) Drain() []byte {
	b := f.buf
	f.buf = nil
	return b
}

// Buffered returns the number of bytes held back.
func (f *Framer) Buffered() int { return len(f.buf) }

// Err returns the ParseError that poisoned the Framer, if any.
func (f *Framer) Err() error { return f.err }

func (f *Framer) tooLong() {
	f.poison(&samerr.ParseError{Line: string(f.buf[:64]) + "...", Reason: "line too long"})
}

func (f *Framer) poison(err error) {
	f.err = err
	f.buf = nil
}
