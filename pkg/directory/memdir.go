package directory

import (
	"github.com/hack-pad/hackpadfs/mem"

	"github.com/kittclouds/retrieval-core/pkg/errs"
)

// NewMemory opens an in-memory Directory backed by hackpadfs/mem. Used
// for tests and for transient in-memory indices that never reach
// durable storage.
func NewMemory() (Directory, error) {
	fsys, err := mem.NewFS()
	if err != nil {
		return nil, &errs.Io{Cause: err}
	}
	return NewFS(fsys, ""), nil
}
