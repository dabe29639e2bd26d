// Package charset resolves the text encoding used for every file the
// pipeline reads or writes. Strings are UTF-8 in memory; files carry the
// configured charset. With a single-byte charset such as ISO-8859-1 every
// byte maps to exactly one rune, so decoding never fails and encoding the
// decoded text reproduces the original bytes.
package charset

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
)

// aliases covers common spellings that are not registered IANA aliases.
var aliases = map[string]string{
	"utf8":    "UTF-8",
	"latin-1": "ISO-8859-1",
	"cp1252":  "windows-1252",
}

// Codec is a resolved charset. It is immutable and safe for concurrent use;
// the decoders and encoders it hands out are not.
type Codec struct {
	name   string
	enc    encoding.Encoding
	single bool
	utf8   bool
}

// Latin1 is the default codec.
var Latin1 = &Codec{name: "ISO-8859-1", enc: charmap.ISO8859_1, single: true}

// Lookup resolves name (IANA names and aliases, case-insensitive).
func Lookup(name string) (*Codec, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("charset: empty encoding name")
	}
	if a, ok := aliases[strings.ToLower(name)]; ok {
		name = a
	}
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil {
		return nil, fmt.Errorf("charset: unknown encoding %q: %w", name, err)
	}
	if enc == nil {
		return nil, fmt.Errorf("charset: encoding %q is not supported", name)
	}
	canonical, err := ianaindex.MIME.Name(enc)
	if err != nil || canonical == "" {
		if canonical, err = ianaindex.IANA.Name(enc); err != nil {
			canonical = name
		}
	}
	_, single := enc.(*charmap.Charmap)
	return &Codec{
		name:   canonical,
		enc:    enc,
		single: single,
		utf8:   enc == unicode.UTF8,
	}, nil
}

// Name returns the canonical IANA name.
func (c *Codec) Name() string { return c.name }

// SingleByte reports whether every byte decodes to exactly one rune.
func (c *Codec) SingleByte() bool { return c.single }

// NewDecoder returns a decoder from the file charset to UTF-8. For UTF-8
// itself invalid sequences are reported as errors instead of being replaced,
// so callers can skip such lines rather than store altered values.
func (c *Codec) NewDecoder() *encoding.Decoder {
	if c.utf8 {
		return &encoding.Decoder{Transformer: encoding.UTF8Validator}
	}
	return c.enc.NewDecoder()
}

// NewEncoder returns an encoder from UTF-8 to the file charset. Runes the
// charset cannot represent are reported as errors.
func (c *Codec) NewEncoder() *encoding.Encoder {
	if c.utf8 {
		return &encoding.Encoder{Transformer: encoding.UTF8Validator}
	}
	return c.enc.NewEncoder()
}
