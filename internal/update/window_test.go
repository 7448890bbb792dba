package update

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitWindows_ShortContent(t *testing.T) {
	windows := splitWindows("short", 100, 20, 0)
	assert.Equal(t, []string{"short"}, windows)
}

func TestSplitWindows_Empty(t *testing.T) {
	assert.Nil(t, splitWindows("", 100, 20, 0))
}

func TestSplitWindows_Overlap(t *testing.T) {
	content := strings.Repeat("abcdefghij", 10) // 100 chars
	windows := splitWindows(content, 40, 10, 0)

	require.Len(t, windows, 4, "step 30 over 100 chars")
	// Each window's first 10 chars repeat the previous window's last 10.
	for i := 1; i < len(windows); i++ {
		prev := windows[i-1]
		assert.Equal(t, prev[len(prev)-10:], windows[i][:10], "window %d overlap", i)
	}
}

func TestSplitWindows_Cap(t *testing.T) {
	content := strings.Repeat("x", 10000)
	windows := splitWindows(content, 100, 0, 3)
	assert.Len(t, windows, 3)
}

func TestSplitWindows_InvalidOverlapIgnored(t *testing.T) {
	content := strings.Repeat("x", 250)
	windows := splitWindows(content, 100, 100, 0) // overlap >= size
	assert.Len(t, windows, 3)
}

func TestSplitWindows_CoversAllContent(t *testing.T) {
	content := strings.Repeat("0123456789", 37) // 370 chars
	windows := splitWindows(content, 100, 25, 0)

	require.NotEmpty(t, windows)
	last := windows[len(windows)-1]
	assert.True(t, strings.HasSuffix(content, last), "final window reaches the end of content")
}
