// Package scan discovers the analyzable files under a source tree.
//
// Discovery order is the lexicographic walk order, so the same tree state
// always yields the same sequence.
package scan

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	t "codebrief/internal/types"
)

// Extensions always treated as text. Anything else falls through to the
// binary blocklist and then a content sniff.
var textExts = map[string]bool{
	".py": true, ".js": true, ".ts": true, ".html": true, ".css": true,
	".json": true, ".md": true, ".txt": true, ".jsx": true, ".tsx": true,
	".vue": true, ".yml": true, ".yaml": true, ".toml": true, ".ini": true,
	".cfg": true, ".sh": true, ".bash": true, ".c": true, ".cpp": true,
	".h": true, ".hpp": true, ".java": true, ".go": true, ".rb": true,
	".php": true, ".swift": true, ".rs": true, ".scala": true, ".sql": true,
	".xml": true,
}

var binaryExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true,
	".ico": true, ".bmp": true, ".tiff": true, ".svg": true,
	".mp4": true, ".m4v": true, ".mov": true, ".mkv": true, ".webm": true,
	".avi": true, ".mp3": true, ".wav": true, ".ogg": true, ".flac": true,
	".m4a": true, ".pdf": true, ".zip": true, ".jar": true, ".gz": true,
	".tgz": true, ".bz2": true, ".7z": true, ".exe": true, ".dll": true,
	".dylib": true, ".so": true, ".woff": true, ".woff2": true,
}

// Discover walks root and returns every analyzable file with its content,
// honoring .gitignore and skipping binaries. Paths come back relative to
// root with forward slashes.
func Discover(root string) ([]t.CandidateFile, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("scan %s: not a directory", root)
	}

	ignore := newIgnoreMatcher(root)
	var files []t.CandidateFile
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if path == root {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		// Skip VCS & dependency dirs
		if d.IsDir() {
			switch d.Name() {
			case ".git", ".hg", ".svn", "node_modules", "vendor", "target", "build", ".next", ".cache":
				return filepath.SkipDir
			}
			if ignore.Ignored(rel, true) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if ignore.Ignored(rel, false) {
			return nil
		}
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			// Unreadable files are left out of the run entirely rather
			// than analyzed as garbage.
			return nil
		}
		if !isText(rel, data) {
			return nil
		}
		files = append(files, t.CandidateFile{
			Path:      rel,
			SizeBytes: int64(len(data)),
			Content:   string(data),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}
	return files, nil
}

// TotalSize sums the byte sizes of the discovered files.
func TotalSize(files []t.CandidateFile) int64 {
	var total int64
	for _, f := range files {
		total += f.SizeBytes
	}
	return total
}

func isText(path string, data []byte) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if textExts[ext] {
		return true
	}
	if binaryExts[ext] {
		return false
	}
	return looksLikeText(data)
}

// looksLikeText sniffs the first KiB: no NUL bytes and valid UTF-8.
func looksLikeText(data []byte) bool {
	sample := data
	if len(sample) > 1024 {
		sample = sample[:1024]
		// A rune split by the cut would fail validation; trim it off.
		for i := len(sample) - 1; i >= 0 && i > len(sample)-5; i-- {
			if utf8.RuneStart(sample[i]) {
				if !utf8.Valid(sample[i:]) {
					sample = sample[:i]
				}
				break
			}
		}
	}
	for _, b := range sample {
		if b == 0 {
			return false
		}
	}
	return utf8.Valid(sample)
}
