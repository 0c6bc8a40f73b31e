package tui

import (
	"strings"
	"unicode/utf8"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// textField is a multi-line input that edits at the end of its value.
// Enter inserts a newline; pasted text arrives as runes and is kept as-is.
type textField struct {
	label       string
	placeholder string
	value       string
	width       int
	height      int // visible lines
}

func newTextField(label, placeholder string, height int) *textField {
	return &textField{label: label, placeholder: placeholder, height: height, width: 40}
}

func (f *textField) SetValue(s string) {
	f.value = s
}

func (f *textField) Value() string {
	return f.value
}

// HandleKey applies an editing key and reports whether it was consumed.
func (f *textField) HandleKey(msg tea.KeyMsg) bool {
	switch msg.Type {
	case tea.KeyRunes:
		f.value += string(msg.Runes)
	case tea.KeySpace:
		f.value += " "
	case tea.KeyEnter:
		f.value += "\n"
	case tea.KeyBackspace:
		if _, size := utf8.DecodeLastRuneInString(f.value); size > 0 {
			f.value = f.value[:len(f.value)-size]
		}
	case tea.KeyCtrlW:
		f.deleteWord()
	case tea.KeyCtrlU:
		f.value = ""
	default:
		return false
	}
	return true
}

func (f *textField) deleteWord() {
	trimmed := strings.TrimRight(f.value, " \t\n")
	idx := strings.LastIndexAny(trimmed, " \t\n")
	f.value = trimmed[:idx+1]
}

// Render draws the label and the last lines of the value in a box.
func (f *textField) Render(focused bool) string {
	labelStyle := StyleBold
	border := StyleField
	if focused {
		labelStyle = StyleInputFocused
		border = StyleFieldFocused
	}

	inner := max(f.width-4, 1)
	var lines []string
	if f.value == "" && !focused {
		lines = []string{StyleDimmed.Render(ansi.Truncate(f.placeholder, inner, "…"))}
	} else {
		text := f.value
		if focused {
			text += "█"
		}
		for _, line := range strings.Split(text, "\n") {
			if ansi.StringWidth(line) <= inner {
				lines = append(lines, line)
				continue
			}
			lines = append(lines, strings.Split(ansi.Hardwrap(line, inner, true), "\n")...)
		}
		if len(lines) > f.height {
			lines = lines[len(lines)-f.height:]
		}
	}
	for len(lines) < f.height {
		lines = append(lines, "")
	}

	box := border.Width(f.width - 2).Render(strings.Join(lines, "\n"))
	return lipgloss.JoinVertical(lipgloss.Left, labelStyle.Render(f.label), box)
}
