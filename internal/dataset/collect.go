package dataset

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Collect returns the files in dir whose names match the glob pattern, sorted
// in ascending lexical order. Input files are named so that this is also
// chronological order. Environment variables in dir are expanded. A pattern
// that matches nothing yields an empty result and no error.
func Collect(dir, pattern string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(os.ExpandEnv(dir), pattern))
	if err != nil {
		return nil, fmt.Errorf("collecting %q in %q: %w", pattern, dir, err)
	}
	sort.Strings(matches)
	return matches, nil
}
