// Package datasource defines how stages obtain the raw bytes of a shard.
package datasource

import (
	"context"
	"io"
)

// Source opens one shard for streaming reads.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}
