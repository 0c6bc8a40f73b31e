// viewport.go provides a reusable scrollable viewport component with
// vertical scrolling. Long lines wrap. Widths are measured in terminal cells,
// so styled text and wide characters are clipped correctly.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// Viewport is a scrollable text area.
type Viewport struct {
	width   int
	height  int
	content []string // lines of content
	scrollY int      // vertical scroll offset (line index)
}

// NewViewport creates a viewport with the given dimensions.
func NewViewport(width, height int) *Viewport {
	return &Viewport{
		width:  width,
		height: height,
	}
}

// SetContent replaces the viewport content.
func (v *Viewport) SetContent(content string) {
	v.content = strings.Split(content, "\n")
	v.clampScroll()
}

// SetContentLines replaces the viewport content with pre-split lines.
func (v *Viewport) SetContentLines(lines []string) {
	v.content = lines
	v.clampScroll()
}

// SetSize updates viewport dimensions.
func (v *Viewport) SetSize(width, height int) {
	v.width = max(width, 1)
	v.height = max(height, 1)
	v.clampScroll()
}

// ScrollUp moves the viewport up by n lines.
func (v *Viewport) ScrollUp(n int) {
	v.scrollY -= n
	v.clampScroll()
}

// ScrollDown moves the viewport down by n lines.
func (v *Viewport) ScrollDown(n int) {
	v.scrollY += n
	v.clampScroll()
}

// PageUp scrolls up by one page.
func (v *Viewport) PageUp() {
	v.ScrollUp(v.height)
}

// PageDown scrolls down by one page.
func (v *Viewport) PageDown() {
	v.ScrollDown(v.height)
}

// Home scrolls to the top.
func (v *Viewport) Home() {
	v.scrollY = 0
}

// End scrolls to the bottom.
func (v *Viewport) End() {
	v.scrollY = v.maxScrollY()
}

// ScrollTo makes line visible, scrolling as little as possible.
func (v *Viewport) ScrollTo(line int) {
	switch {
	case line < v.scrollY:
		v.scrollY = line
	case line >= v.scrollY+v.height:
		v.scrollY = line - v.height + 1
	}
	v.clampScroll()
}

// Render returns the visible portion of the content.
func (v *Viewport) Render() string {
	if len(v.content) == 0 {
		return ""
	}

	lines := v.lines()
	end := min(v.scrollY+v.height, len(lines))
	var visible []string
	if v.scrollY < end {
		visible = append(visible, lines[v.scrollY:end]...)
	}
	for len(visible) < v.height {
		visible = append(visible, "")
	}

	content := strings.Join(visible, "\n")
	if indicator := v.scrollIndicator(len(lines)); indicator != "" {
		return lipgloss.JoinVertical(lipgloss.Left, content, indicator)
	}
	return content
}

// lines returns the content laid out for the current width.
func (v *Viewport) lines() []string {
	out := make([]string, 0, len(v.content))
	for _, line := range v.content {
		if v.width <= 0 || ansi.StringWidth(line) <= v.width {
			out = append(out, line)
			continue
		}
		out = append(out, strings.Split(ansi.Hardwrap(line, v.width, true), "\n")...)
	}
	return out
}

func (v *Viewport) clampScroll() {
	v.scrollY = min(v.scrollY, v.maxScrollY())
	v.scrollY = max(v.scrollY, 0)
}

func (v *Viewport) maxScrollY() int {
	return max(len(v.lines())-v.height, 0)
}

func (v *Viewport) scrollIndicator(total int) string {
	if total <= v.height {
		return ""
	}
	pct := (v.scrollY * 100) / max(total-v.height, 1)
	label := fmt.Sprintf(" %d%% (%d/%d)", pct, v.scrollY+1, total)
	rule := strings.Repeat("─", max(v.width-lipgloss.Width(label), 0))
	return StyleDimmed.Render(rule + label)
}
