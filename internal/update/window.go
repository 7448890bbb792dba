package update

// splitWindows breaks content into overlapping fixed-size windows. The
// window advance is size minus overlap, never less than one rune, and
// the window count is capped at maxWindows.
func splitWindows(content string, size, overlap, maxWindows int) []string {
	if content == "" {
		return nil
	}
	if size <= 0 {
		size = 1500
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	runes := []rune(content)
	if len(runes) <= size {
		return []string{content}
	}

	step := size - overlap
	windows := make([]string, 0, (len(runes)/step)+1)
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		windows = append(windows, string(runes[start:end]))
		if maxWindows > 0 && len(windows) == maxWindows {
			break
		}
		if end == len(runes) {
			break
		}
	}
	return windows
}
