package file

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/text/encoding"

	"breachpw/internal/charset"
)

const writeBufSize = 1 << 20 // 1 MiB

// Writer writes encoded lines to a shard file.
type Writer struct {
	f    *os.File
	bw   *bufio.Writer
	enc  *encoding.Encoder
	path string
}

// Create truncates (or creates) path, creating parent directories.
func Create(path string, codec *charset.Codec) (*Writer, error) {
	return openWriter(path, codec, os.O_CREATE|os.O_WRONLY|os.O_TRUNC)
}

// Append opens path for appending, creating it and its parent directories
// when missing.
func Append(path string, codec *charset.Codec) (*Writer, error) {
	return openWriter(path, codec, os.O_CREATE|os.O_WRONLY|os.O_APPEND)
}

func openWriter(path string, codec *charset.Codec, flag int) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create dir %s: %w", filepath.Dir(path), err)
	}
	f, err := os.OpenFile(path, flag, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &Writer{
		f:    f,
		bw:   bufio.NewWriterSize(f, writeBufSize),
		enc:  codec.NewEncoder(),
		path: path,
	}, nil
}

// WriteLine encodes s and writes it followed by "\n".
func (w *Writer) WriteLine(s string) error {
	b, err := w.enc.String(s)
	if err != nil {
		return fmt.Errorf("encode line for %s: %w", w.path, err)
	}
	if _, err := w.bw.WriteString(b); err != nil {
		return fmt.Errorf("write %s: %w", w.path, err)
	}
	if err := w.bw.WriteByte('\n'); err != nil {
		return fmt.Errorf("write %s: %w", w.path, err)
	}
	return nil
}

// Close flushes buffered output and closes the file.
func (w *Writer) Close() error {
	ferr := w.bw.Flush()
	cerr := w.f.Close()
	if ferr != nil {
		return fmt.Errorf("flush %s: %w", w.path, ferr)
	}
	if cerr != nil {
		return fmt.Errorf("close %s: %w", w.path, cerr)
	}
	return nil
}
