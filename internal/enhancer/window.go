package enhancer

import "strings"

// excerptTail returns up to maxChars from the end of content, preferring
// a sentence boundary. Fenced code blocks are never split: if the cut
// would land inside a fence, the excerpt starts after the fence opens.
func excerptTail(content string, maxChars int) string {
	if content == "" {
		return ""
	}
	if len(content) <= maxChars {
		return content
	}

	cut := len(content) - maxChars
	cut = snapOutOfFence(content, cut)
	if cut >= len(content) {
		cut = len(content) - maxChars
	}

	excerpt := content[cut:]
	// Prefer starting at a sentence boundary inside the excerpt.
	if idx := strings.Index(excerpt, ". "); idx >= 0 && idx+2 < len(excerpt) && !insideFence(excerpt, idx) {
		excerpt = excerpt[idx+2:]
	}
	return strings.TrimSpace(excerpt)
}

// excerptHead returns up to maxChars from the start of content, preferring
// a sentence boundary and never splitting a fenced code block.
func excerptHead(content string, maxChars int) string {
	if content == "" {
		return ""
	}
	if len(content) <= maxChars {
		return content
	}

	cut := maxChars
	if insideFence(content, cut) {
		// Retreat to before the fence opened.
		if open := strings.LastIndex(content[:cut], "```"); open >= 0 {
			cut = open
		}
	}
	if cut <= 0 {
		cut = maxChars
	}

	excerpt := content[:cut]
	// Prefer ending at the last complete sentence.
	if idx := strings.LastIndex(excerpt, ". "); idx > 0 && !insideFence(excerpt, idx) {
		excerpt = excerpt[:idx+1]
	}
	return strings.TrimSpace(excerpt)
}

// insideFence reports whether offset falls inside a ``` fenced region.
func insideFence(content string, offset int) bool {
	return strings.Count(content[:offset], "```")%2 == 1
}

// snapOutOfFence moves offset forward past a fence close if it lands
// inside a fenced region.
func snapOutOfFence(content string, offset int) int {
	if !insideFence(content, offset) {
		return offset
	}
	if close := strings.Index(content[offset:], "```"); close >= 0 {
		return offset + close + 3
	}
	return offset
}
