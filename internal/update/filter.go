package update

import (
	"path"
	"strings"
)

// matchesAny reports whether a file path matches any of the glob
// patterns. Patterns match against the full slash path, its base name,
// and any suffix segment, so "*.ts" and "src/*.ts" both behave as
// expected without a recursive-glob syntax.
func matchesAny(patterns []string, filePath string) bool {
	filePath = path.Clean(strings.ReplaceAll(filePath, "\\", "/"))
	for _, pattern := range patterns {
		if matchesPattern(pattern, filePath) {
			return true
		}
	}
	return false
}

func matchesPattern(pattern, filePath string) bool {
	if strings.Contains(pattern, "**") {
		return matchSegments(strings.Split(pattern, "/"), strings.Split(filePath, "/"))
	}
	if ok, err := path.Match(pattern, filePath); err == nil && ok {
		return true
	}
	if ok, err := path.Match(pattern, path.Base(filePath)); err == nil && ok {
		return true
	}
	// Directory patterns like "node_modules/*" match at any depth, so the
	// pattern is tried against every contiguous segment run of the path.
	segments := strings.Split(filePath, "/")
	for i := 0; i < len(segments); i++ {
		for j := i + 1; j <= len(segments); j++ {
			sub := strings.Join(segments[i:j], "/")
			if ok, err := path.Match(pattern, sub); err == nil && ok {
				return true
			}
		}
	}
	return false
}

// matchSegments matches glob segments against path segments, with "**"
// spanning zero or more segments.
func matchSegments(patSegs, pathSegs []string) bool {
	if len(patSegs) == 0 {
		return len(pathSegs) == 0
	}
	if patSegs[0] == "**" {
		for i := 0; i <= len(pathSegs); i++ {
			if matchSegments(patSegs[1:], pathSegs[i:]) {
				return true
			}
		}
		return false
	}
	if len(pathSegs) == 0 {
		return false
	}
	if ok, err := path.Match(patSegs[0], pathSegs[0]); err != nil || !ok {
		return false
	}
	return matchSegments(patSegs[1:], pathSegs[1:])
}

// shouldProcess applies include/exclude filtering. Exclude wins on
// conflict; an empty include list admits everything.
func shouldProcess(include, exclude []string, filePath string) bool {
	if matchesAny(exclude, filePath) {
		return false
	}
	if len(include) == 0 {
		return true
	}
	return matchesAny(include, filePath)
}
