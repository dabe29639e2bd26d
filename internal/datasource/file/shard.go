package file

import (
	"context"
	"fmt"
	"io"
	"os"

	"breachpw/internal/datasource"
)

// Shard names one file of a stage directory by its List identifier. The same
// identifier is reused by every stage, so a shard keeps its name from the
// raw dump through to the load.
type Shard struct {
	Dir string
	ID  string
}

// Path is the shard's location on disk.
func (s Shard) Path() string { return Path(s.Dir, s.ID) }

// In returns the same shard under another stage directory.
func (s Shard) In(dir string) Shard { return Shard{Dir: dir, ID: s.ID} }

// Open returns the shard for a single sequential read. A done ctx fails
// before the filesystem is touched.
func (s Shard) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.Path())
	if err != nil {
		return nil, fmt.Errorf("open shard %s: %w", s.ID, err)
	}
	adviseSequential(f)
	return f, nil
}

var _ datasource.Source = Shard{}
