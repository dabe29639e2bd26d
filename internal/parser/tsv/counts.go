// Package tsv implements the shard format shared by the deduplicator and the
// loader: one "value<TAB>count" row per line.
//
// Values are opaque and may themselves contain tabs. The count is always a
// decimal integer, so rows are split on the last tab.
package tsv

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Count is one distinct value and how often it occurred in a shard.
type Count struct {
	Value string
	Count int64
}

var (
	// ErrNoSeparator is returned for lines without a tab.
	ErrNoSeparator = errors.New("missing tab separator")
	// ErrBadCount is returned when the count field is not a positive integer.
	ErrBadCount = errors.New("count must be a positive integer")
)

// Format renders c as a line without terminator.
func Format(c Count) string {
	return c.Value + "\t" + strconv.FormatInt(c.Count, 10)
}

// Parse decodes one line produced by Format.
func Parse(line string) (Count, error) {
	i := strings.LastIndexByte(line, '\t')
	if i < 0 {
		return Count{}, ErrNoSeparator
	}
	n, err := strconv.ParseInt(line[i+1:], 10, 64)
	if err != nil {
		return Count{}, fmt.Errorf("%w: %q", ErrBadCount, line[i+1:])
	}
	if n <= 0 {
		return Count{}, fmt.Errorf("%w: %d", ErrBadCount, n)
	}
	return Count{Value: line[:i], Count: n}, nil
}
