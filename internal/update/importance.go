package update

import (
	"strings"
)

// ComputeImportance scores a file's retrieval importance from path and
// content heuristics. The weights are product tuning constants, capped
// at 1.0.
func ComputeImportance(filePath, content string, functionCount int) float64 {
	var score float64
	lower := strings.ToLower(filePath)

	base := lower
	if idx := strings.LastIndex(lower, "/"); idx >= 0 {
		base = lower[idx+1:]
	}
	if strings.HasPrefix(base, "index.") || strings.HasPrefix(base, "main.") {
		score += 0.3
	}
	if strings.Contains(lower, "api/") || strings.Contains(lower, "service") {
		score += 0.2
	}
	if strings.Contains(lower, "config") || strings.Contains(lower, "env") {
		score += 0.1
	}

	lines := strings.Count(content, "\n") + 1
	if lines > 100 {
		score += 0.1
	}
	if lines > 500 {
		score += 0.1
	}

	if functionCount > 5 {
		score += 0.1
	}
	if functionCount > 15 {
		score += 0.1
	}

	if score > 1 {
		return 1
	}
	return score
}
