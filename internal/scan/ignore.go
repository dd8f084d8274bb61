package scan

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// ignoreMatcher wraps go-git's gitignore matcher for the tree's root
// .gitignore. A missing or empty .gitignore never ignores anything.
type ignoreMatcher struct {
	m gitignore.Matcher
}

func newIgnoreMatcher(root string) *ignoreMatcher {
	data, err := os.ReadFile(filepath.Join(root, ".gitignore"))
	if err != nil {
		return &ignoreMatcher{}
	}
	var patterns []gitignore.Pattern
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, gitignore.ParsePattern(line, nil))
	}
	if len(patterns) == 0 {
		return &ignoreMatcher{}
	}
	return &ignoreMatcher{m: gitignore.NewMatcher(patterns)}
}

// Ignored reports whether the root-relative path matches an ignore
// pattern. isDir must be true for directories so dir-only patterns apply.
func (im *ignoreMatcher) Ignored(rel string, isDir bool) bool {
	if im.m == nil {
		return false
	}
	return im.m.Match(splitSegments(rel), isDir)
}

func splitSegments(rel string) []string {
	parts := strings.Split(filepath.ToSlash(rel), "/")
	segments := parts[:0]
	for _, p := range parts {
		if p != "" && p != "." {
			segments = append(segments, p)
		}
	}
	return segments
}
