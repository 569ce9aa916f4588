package backend

import (
	"fmt"
	"path"
	"strings"
)

// normalizePath cleans p into the virtual-absolute form shared by all
// backends: forward slashes, leading "/". Relative paths are resolved against
// the root; anything that would climb above it is rejected.
func normalizePath(p string) (string, error) {
	p = strings.TrimSpace(strings.ReplaceAll(p, "\\", "/"))
	if p == "" || p == "." {
		return "/", nil
	}

	clean := path.Clean(p)
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", ErrOutsideRoot
	}
	if !strings.HasPrefix(clean, "/") {
		clean = "/" + clean
	}
	// Rooted paths cannot climb above "/" after Clean.
	return clean, nil
}

// editContent applies the shared edit semantics on top of a read/write pair:
// oldText must appear exactly once unless replaceAll is set, and zero matches
// is always an error. Returns the new content and the number of replacements.
func editContent(p, content, oldText, newText string, replaceAll bool) (string, int, error) {
	if oldText == "" {
		return "", 0, fmt.Errorf("edit %s: empty search text", p)
	}

	count := strings.Count(content, oldText)
	if count == 0 {
		return "", 0, fmt.Errorf("edit %s: text not found", p)
	}
	if count > 1 && !replaceAll {
		return "", 0, fmt.Errorf("edit %s: text occurs %d times, pass replace_all to replace every occurrence", p, count)
	}

	if replaceAll {
		return strings.ReplaceAll(content, oldText, newText), count, nil
	}
	return strings.Replace(content, oldText, newText, 1), 1, nil
}
