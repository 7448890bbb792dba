package update

import (
	"path"
	"regexp"
	"strings"
)

// CodeMetadata is what regex extraction pulls from a recognized code
// file: declared identifiers, imported modules, framework references,
// and a rough branching-based complexity score.
type CodeMetadata struct {
	Functions           []string
	Classes             []string
	Imports             []string
	FrameworkReferences []string
	Complexity          float64
}

// languageByExtension maps file extensions to recognized code languages.
var languageByExtension = map[string]string{
	".ts":    "typescript",
	".tsx":   "typescript",
	".js":    "javascript",
	".jsx":   "javascript",
	".mjs":   "javascript",
	".go":    "go",
	".py":    "python",
	".java":  "java",
	".rb":    "ruby",
	".rs":    "rust",
	".php":   "php",
	".cs":    "csharp",
	".kt":    "kotlin",
	".swift": "swift",
}

// LanguageForPath returns the code language for a file path, empty for
// unrecognized extensions.
func LanguageForPath(filePath string) string {
	return languageByExtension[strings.ToLower(path.Ext(filePath))]
}

var (
	funcDeclPattern  = regexp.MustCompile(`(?m)^\s*(?:export\s+)?(?:async\s+)?function\s+(\w+)`)
	arrowFuncPattern = regexp.MustCompile(`(?m)(?:const|let|var)\s+(\w+)\s*=\s*(?:async\s+)?\(`)
	goFuncPattern    = regexp.MustCompile(`(?m)^func\s+(?:\([^)]+\)\s+)?(\w+)\s*\(`)
	pyDefPattern     = regexp.MustCompile(`(?m)^\s*def\s+(\w+)\s*\(`)
	methodPattern    = regexp.MustCompile(`(?m)^\s*(?:public|private|protected)\s+(?:static\s+)?\w[\w<>\[\]]*\s+(\w+)\s*\(`)

	classDeclPattern = regexp.MustCompile(`(?m)\bclass\s+(\w+)`)
	goTypePattern    = regexp.MustCompile(`(?m)^type\s+(\w+)\s+struct\b`)

	importFromPattern = regexp.MustCompile(`import\s+(?:[\w{},\s*]+\s+from\s+)?['"]([^'"]+)['"]`)
	requirePattern    = regexp.MustCompile(`require\(['"]([^'"]+)['"]\)`)
	goImportPattern   = regexp.MustCompile(`(?m)^\s*(?:\w+\s+)?"([\w./-]+)"`)
	pyImportPattern   = regexp.MustCompile(`(?m)^\s*(?:from\s+([\w.]+)\s+import|import\s+([\w.]+))`)

	branchPattern = regexp.MustCompile(`\b(if|for|while|switch|case|catch|when|elif|else if)\b`)
)

// knownFrameworks maps import substrings to framework names.
var knownFrameworks = []struct {
	indicator string
	name      string
}{
	{"express", "express"},
	{"react", "react"},
	{"vue", "vue"},
	{"@angular", "angular"},
	{"next", "nextjs"},
	{"django", "django"},
	{"flask", "flask"},
	{"fastapi", "fastapi"},
	{"spring", "spring"},
	{"rails", "rails"},
	{"gin-gonic", "gin"},
	{"labstack/echo", "echo"},
	{"nestjs", "nestjs"},
	{"laravel", "laravel"},
}

// ExtractCodeMetadata pulls identifiers and imports from code content.
// The extraction is pattern-based and language-aware only in which
// pattern groups apply; it is intentionally tolerant of partial files.
func ExtractCodeMetadata(content, language string) CodeMetadata {
	meta := CodeMetadata{}
	seen := make(map[string]bool)
	add := func(dst *[]string, value string) {
		value = strings.TrimSpace(value)
		if value == "" || seen[value] {
			return
		}
		seen[value] = true
		*dst = append(*dst, value)
	}

	switch language {
	case "go":
		for _, m := range goFuncPattern.FindAllStringSubmatch(content, -1) {
			add(&meta.Functions, m[1])
		}
		for _, m := range goTypePattern.FindAllStringSubmatch(content, -1) {
			add(&meta.Classes, m[1])
		}
		for _, m := range goImportPattern.FindAllStringSubmatch(content, -1) {
			if strings.Contains(m[1], "/") || strings.Contains(m[1], ".") {
				add(&meta.Imports, m[1])
			}
		}
	case "python":
		for _, m := range pyDefPattern.FindAllStringSubmatch(content, -1) {
			add(&meta.Functions, m[1])
		}
		for _, m := range classDeclPattern.FindAllStringSubmatch(content, -1) {
			add(&meta.Classes, m[1])
		}
		for _, m := range pyImportPattern.FindAllStringSubmatch(content, -1) {
			if m[1] != "" {
				add(&meta.Imports, m[1])
			} else {
				add(&meta.Imports, m[2])
			}
		}
	default:
		for _, m := range funcDeclPattern.FindAllStringSubmatch(content, -1) {
			add(&meta.Functions, m[1])
		}
		for _, m := range arrowFuncPattern.FindAllStringSubmatch(content, -1) {
			add(&meta.Functions, m[1])
		}
		for _, m := range methodPattern.FindAllStringSubmatch(content, -1) {
			add(&meta.Functions, m[1])
		}
		for _, m := range classDeclPattern.FindAllStringSubmatch(content, -1) {
			add(&meta.Classes, m[1])
		}
		for _, m := range importFromPattern.FindAllStringSubmatch(content, -1) {
			add(&meta.Imports, m[1])
		}
		for _, m := range requirePattern.FindAllStringSubmatch(content, -1) {
			add(&meta.Imports, m[1])
		}
	}

	meta.FrameworkReferences = frameworkReferences(meta.Imports)
	meta.Complexity = complexityScore(content)
	return meta
}

// frameworkReferences maps imports onto known framework names.
func frameworkReferences(imports []string) []string {
	var refs []string
	seen := make(map[string]bool)
	for _, imp := range imports {
		lower := strings.ToLower(imp)
		for _, fw := range knownFrameworks {
			if strings.Contains(lower, fw.indicator) && !seen[fw.name] {
				seen[fw.name] = true
				refs = append(refs, fw.name)
			}
		}
	}
	return refs
}

// complexityScore is a rough cyclomatic proxy: branching keywords per
// hundred lines, clamped to [0,1].
func complexityScore(content string) float64 {
	lines := strings.Count(content, "\n") + 1
	branches := len(branchPattern.FindAllString(content, -1))
	score := float64(branches) / float64(lines) * 10
	if score > 1 {
		return 1
	}
	return score
}
