package tsv

import (
	"context"
	"errors"
	"fmt"
	"io"

	"breachpw/internal/datasource/file"
)

// Stream reads rows from r and passes each to emit until EOF.
//
// Per-line errors (undecodable bytes, malformed rows) are soft: they are
// reported via onError(line, err) and the stream continues. Read errors,
// errors returned by emit and cancellation stop the stream and are returned.
func Stream(
	ctx context.Context,
	r *file.LineReader,
	emit func(Count) error,
	onError func(line int, err error),
) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		line, err := r.ReadLine()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			var le *file.LineError
			if errors.As(err, &le) {
				if onError != nil {
					onError(le.Line, le.Err)
				}
				continue
			}
			return fmt.Errorf("read: %w", err)
		}

		c, err := Parse(line)
		if err != nil {
			if onError != nil {
				onError(r.Line(), err)
			}
			continue
		}
		if err := emit(c); err != nil {
			return err
		}
	}
}
