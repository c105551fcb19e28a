package primitive

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/leolilley/ryeos/pkg/ryemodels"
)

// ResolveAnchor searches upward from root for any of cfg.MarkersAny,
// returning the first directory containing a match. mode=always makes a
// miss fatal; mode=auto skips the anchor (returns "" with no error) when
// no marker is found anywhere up to the filesystem root.
func ResolveAnchor(cfg *ryemodels.AnchorConfig, root string) (string, error) {
	if cfg == nil {
		return "", nil
	}
	dir := root
	for {
		for _, marker := range cfg.MarkersAny {
			if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
				return dir, nil
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	if cfg.Mode == ryemodels.AnchorAlways {
		return "", ryemodels.NewRyeError(ryemodels.ErrSubprocess,
			fmt.Errorf("anchor required (mode=always) but no marker found searching up from %q", root))
	}
	return "", nil
}
