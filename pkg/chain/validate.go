package chain

import (
	"github.com/open-teleop/kinsim/pkg/model"
)

// Validate checks the structural preconditions for building a tree and returns
// the index of the fixed body that becomes the root. It does not modify sys.
func Validate(sys *model.System) (int, error) {
	seen := make(map[int]bool, len(sys.Bodies))
	root, fixed := -1, 0
	for _, b := range sys.Bodies {
		if seen[b.Index] {
			return -1, invalid(ErrDuplicateBody, -1, b.Index, "%q", b.Name)
		}
		seen[b.Index] = true
		if b.IsFixed {
			fixed++
			root = b.Index
		}
	}
	if fixed != 1 {
		return -1, invalid(ErrInvalidRootCount, -1, -1, "found %d", fixed)
	}

	mates := make(map[int]bool, len(sys.Mates))
	for _, m := range sys.Mates {
		if mates[m.Index] {
			return -1, invalid(ErrDuplicateMate, m.Index, -1, "%q", m.Name)
		}
		mates[m.Index] = true
		if m.Bearing.Body == m.Shaft.Body {
			return -1, invalid(ErrSelfMate, m.Index, m.Bearing.Body, "")
		}
		for _, end := range []model.Endpoint{m.Bearing, m.Shaft} {
			if !seen[end.Body] {
				return -1, invalid(ErrUnknownBody, m.Index, end.Body, "")
			}
		}
	}

	return root, nil
}
