package directory

import (
	"github.com/hack-pad/hackpadfs/os"

	"github.com/kittclouds/retrieval-core/pkg/errs"
)

// NewOS opens a Directory rooted at root on the real filesystem, backed
// by hackpadfs/os. All paths passed to the returned Directory are
// joined onto root before reaching the OS.
func NewOS(root string) (Directory, error) {
	fsys, err := os.NewFS()
	if err != nil {
		return nil, &errs.Io{Cause: err}
	}
	return newPrefixed(fsys, root, root), nil
}
