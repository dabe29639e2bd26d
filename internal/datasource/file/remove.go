package file

import (
	"os"

	"github.com/hashicorp/go-multierror"
)

// Remover deletes consumed source files when enabled. Failures never abort
// a stage; they are collected so the stage can report them once.
type Remover struct {
	enabled bool
	deleted int64
	errs    *multierror.Error
}

// NewRemover returns a Remover; a disabled Remover keeps every file.
func NewRemover(enabled bool) *Remover { return &Remover{enabled: enabled} }

// Remove deletes path and reports whether the file is gone.
func (r *Remover) Remove(path string) bool {
	if !r.enabled {
		return false
	}
	if err := os.Remove(path); err != nil {
		r.errs = multierror.Append(r.errs, err)
		return false
	}
	r.deleted++
	return true
}

// Deleted returns the number of files removed so far.
func (r *Remover) Deleted() int64 { return r.deleted }

// Failed returns the number of failed deletions so far.
func (r *Remover) Failed() int64 {
	if r.errs == nil {
		return 0
	}
	return int64(len(r.errs.Errors))
}

// Err returns all deletion failures, or nil.
func (r *Remover) Err() error { return r.errs.ErrorOrNil() }
