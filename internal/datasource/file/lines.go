package file

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"golang.org/x/text/encoding"

	"breachpw/internal/charset"
)

const readBufSize = 1 << 20 // 1 MiB

// LineError reports a line that could not be decoded. Reading may continue
// after it.
type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string { return fmt.Sprintf("line %d: %v", e.Line, e.Err) }

func (e *LineError) Unwrap() error { return e.Err }

// LineReader streams decoded lines from a shard. Memory is bounded by the
// longest line, never by the file size.
type LineReader struct {
	br   *bufio.Reader
	dec  *encoding.Decoder
	buf  []byte
	line int

	stripCR bool
}

// NewLineReader returns a LineReader decoding r with codec.
func NewLineReader(r io.Reader, codec *charset.Codec) *LineReader {
	return &LineReader{
		br:  bufio.NewReaderSize(r, readBufSize),
		dec: codec.NewDecoder(),
	}
}

// StripCR makes ReadLine also drop one "\r" before the "\n", for input
// written on Windows. Shards written by Writer end in "\n" only and must be
// read without it, since a value may itself end in "\r".
func (r *LineReader) StripCR() *LineReader {
	r.stripCR = true
	return r
}

// ReadLine returns the next line without its "\n" terminator (or "\r\n"
// after StripCR),
// decoded to UTF-8. It returns io.EOF after the last line. A line that fails
// to decode yields a *LineError.
func (r *LineReader) ReadLine() (string, error) {
	r.buf = r.buf[:0]
	for {
		chunk, err := r.br.ReadSlice('\n')
		r.buf = append(r.buf, chunk...)
		if err == nil {
			break
		}
		if err == bufio.ErrBufferFull {
			continue
		}
		if err == io.EOF {
			if len(r.buf) == 0 {
				return "", io.EOF
			}
			break
		}
		return "", err
	}
	r.line++

	b := bytes.TrimSuffix(r.buf, []byte{'\n'})
	if r.stripCR {
		b = bytes.TrimSuffix(b, []byte{'\r'})
	}
	out, err := r.dec.Bytes(b)
	if err != nil {
		return "", &LineError{Line: r.line, Err: err}
	}
	return string(out), nil
}

// Line returns the 1-based number of the line last returned.
func (r *LineReader) Line() int { return r.line }
