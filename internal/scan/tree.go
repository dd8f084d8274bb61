package scan

import (
	"path/filepath"
	"sort"
	"strings"
)

// RenderTree draws the discovered paths as an ASCII tree headed by the
// root directory's name. Directories get a trailing slash; siblings are
// sorted so the rendering is stable.
//
//	myproject/
//	├── cmd/
//	│   └── main.go
//	└── go.mod
func RenderTree(root string, paths []string) string {
	var sb strings.Builder
	sb.WriteString(filepath.Base(filepath.Clean(root)))
	sb.WriteString("/\n")

	nested := make(map[string]any)
	for _, p := range paths {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		node := nested
		for _, part := range strings.Split(p, "/") {
			if part == "" || part == "." {
				continue
			}
			child, ok := node[part].(map[string]any)
			if !ok {
				child = make(map[string]any)
				node[part] = child
			}
			node = child
		}
	}
	renderLevel(&sb, nested, "")
	return strings.TrimRight(sb.String(), "\n")
}

func renderLevel(sb *strings.Builder, node map[string]any, prefix string) {
	keys := make([]string, 0, len(node))
	for k := range node {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for i, k := range keys {
		last := i == len(keys)-1
		children := node[k].(map[string]any)

		sb.WriteString(prefix)
		if last {
			sb.WriteString("└── ")
		} else {
			sb.WriteString("├── ")
		}
		sb.WriteString(k)
		if len(children) > 0 {
			sb.WriteString("/")
		}
		sb.WriteString("\n")

		if len(children) > 0 {
			childPrefix := prefix + "│   "
			if last {
				childPrefix = prefix + "    "
			}
			renderLevel(sb, children, childPrefix)
		}
	}
}
