package composer

import (
	"strings"
	"unicode/utf16"

	"github.com/DachengChen/obsql/config"
)

// SnippetDelimiter separates queries in delimited snippet mode.
const SnippetDelimiter = "===="

// SplitFunc turns a response buffer into display snippets.
type SplitFunc func(buffer string) []string

// Partition splits an enumerated answer into snippets: drop
// everything up to three characters past the first "1", then split on
// "2.". Offsets count UTF-16 code units, the same units the web page's
// script uses, and are clamped to the buffer length. With no "1" the cut
// lands at offset 2.
//
// The result always has at least one element; an empty remainder gives
// a single empty snippet.
func Partition(buffer string) []string {
	units := utf16.Encode([]rune(buffer))
	idx := -1
	for i, u := range units {
		if u == '1' {
			idx = i
			break
		}
	}
	start := min(idx+3, len(units))
	return strings.Split(string(utf16.Decode(units[start:])), "2.")
}

// SplitDelimited splits the buffer on lines consisting solely of
// SnippetDelimiter. Pieces are trimmed and empty pieces dropped.
func SplitDelimited(buffer string) []string {
	var (
		out     []string
		current strings.Builder
	)
	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			out = append(out, s)
		}
		current.Reset()
	}
	for _, line := range strings.SplitAfter(buffer, "\n") {
		if strings.TrimSpace(line) == SnippetDelimiter {
			flush()
			continue
		}
		current.WriteString(line)
	}
	flush()
	return out
}

// Mode pairs a prompt builder with the splitter that reads its answers.
type Mode struct {
	Name   string
	Prompt func(FormState) string
	Split  SplitFunc
}

// ModeFor returns the snippet mode for a config value. Unknown or empty
// values fall back to the enumerated mode.
func ModeFor(name string) Mode {
	if name == config.SnippetModeDelimited {
		return Mode{Name: config.SnippetModeDelimited, Prompt: BuildDelimitedPrompt, Split: SplitDelimited}
	}
	return Mode{Name: config.SnippetModeEnumerated, Prompt: BuildPrompt, Split: Partition}
}
