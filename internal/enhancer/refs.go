package enhancer

import "regexp"

// Regex patterns for code reference extraction.
var (
	// import defaultExport from 'module' / import { a, b } from "module"
	importFromPattern = regexp.MustCompile(`import\s+(?:[\w{}\s,*]+\s+from\s+)?['"]([^'"]+)['"]`)

	// require('module')
	requirePattern = regexp.MustCompile(`require\(\s*['"]([^'"]+)['"]\s*\)`)

	// class declarations
	classPattern = regexp.MustCompile(`\bclass\s+([A-Za-z_]\w*)`)

	// function declarations and arrow-function bindings
	funcDeclPattern  = regexp.MustCompile(`\bfunction\s+([A-Za-z_]\w*)`)
	arrowFuncPattern = regexp.MustCompile(`\b(?:const|let|var)\s+([A-Za-z_]\w*)\s*=\s*(?:async\s+)?\(`)
	goFuncPattern    = regexp.MustCompile(`\bfunc\s+(?:\([^)]+\)\s+)?([A-Za-z_]\w*)\s*\(`)

	// file paths with common code extensions
	fileRefPattern = regexp.MustCompile(`\b[\w\-./]+\.(?:go|ts|tsx|js|jsx|py|java|rb|rs|php|cs)\b`)
)

// extractCodeReferences pulls files, functions, classes, and import
// targets out of raw chunk content.
func extractCodeReferences(content string) CodeReferences {
	refs := CodeReferences{}

	refs.Files = dedupe(fileRefPattern.FindAllString(content, -1))

	for _, m := range classPattern.FindAllStringSubmatch(content, -1) {
		refs.Classes = append(refs.Classes, m[1])
	}
	refs.Classes = dedupe(refs.Classes)

	for _, m := range funcDeclPattern.FindAllStringSubmatch(content, -1) {
		refs.Functions = append(refs.Functions, m[1])
	}
	for _, m := range arrowFuncPattern.FindAllStringSubmatch(content, -1) {
		refs.Functions = append(refs.Functions, m[1])
	}
	for _, m := range goFuncPattern.FindAllStringSubmatch(content, -1) {
		refs.Functions = append(refs.Functions, m[1])
	}
	refs.Functions = dedupe(refs.Functions)

	for _, m := range importFromPattern.FindAllStringSubmatch(content, -1) {
		refs.Imports = append(refs.Imports, m[1])
	}
	for _, m := range requirePattern.FindAllStringSubmatch(content, -1) {
		refs.Imports = append(refs.Imports, m[1])
	}
	refs.Imports = dedupe(refs.Imports)

	return refs
}

func dedupe(items []string) []string {
	if len(items) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(items))
	out := items[:0]
	for _, item := range items {
		if !seen[item] {
			seen[item] = true
			out = append(out, item)
		}
	}
	return out
}
