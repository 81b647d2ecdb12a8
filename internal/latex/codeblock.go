package latex

import (
	"fmt"
	"regexp"
	"strings"

	"latex-workbench/internal/logger"
)

const (
	codeBlockBegin = `\begin{codeblock}`
	codeBlockEnd   = `\end{codeblock}`
)

var (
	// \begin{codeblock}[label]{lang}, both arguments optional
	codeBlockBeginPattern = regexp.MustCompile(`\\begin\{codeblock\}(?:\[(?P<label>.*?)\])?(?:\{(?P<lang>.*?)\})?`)
	codeBlockEndPattern   = regexp.MustCompile(`\\end\{codeblock\}`)
)

// CodeBlock is a fenced \begin{codeblock} ... \end{codeblock} region.
// StartLine and EndLine are the 0-based lines of the two fences.
type CodeBlock struct {
	Ordinal   int    `json:"ordinal" yaml:"ordinal"`
	StartLine int    `json:"start_line" yaml:"start_line"`
	EndLine   int    `json:"end_line" yaml:"end_line"`
	Label     string `json:"label,omitempty" yaml:"label,omitempty"`
	Lang      string `json:"lang,omitempty" yaml:"lang,omitempty"`
	Title     string `json:"title" yaml:"title"`
}

// Contains reports whether line lies within the block, fences included.
func (b CodeBlock) Contains(line int) bool {
	return line >= b.StartLine && line <= b.EndLine
}

func codeBlockTitle(ordinal int, label, lang string) string {
	switch {
	case label != "" && lang != "":
		return fmt.Sprintf("codeblock %d [%s]{%s}", ordinal, label, lang)
	case label != "":
		return fmt.Sprintf("codeblock %d [%s]", ordinal, label)
	case lang != "":
		return fmt.Sprintf("codeblock %d {%s}", ordinal, lang)
	default:
		return fmt.Sprintf("codeblock %d", ordinal)
	}
}

// fenceState is the code block scanner state.
type fenceState int

const (
	fenceOutside fenceState = iota
	fenceInside
)

// detectCodeBlocks scans lines for code blocks. Blocks do not nest: while
// inside a block only the closing fence is recognised. If the last block is
// never closed, openStart is the line of its opening fence, otherwise -1.
func detectCodeBlocks(lines []string) (blocks []CodeBlock, openStart int) {
	state := fenceOutside
	start := -1
	label, lang := "", ""
	ordinal := 0

	for i, line := range lines {
		switch state {
		case fenceOutside:
			m := codeBlockBeginPattern.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			state = fenceInside
			start = i
			label = strings.TrimSpace(m[codeBlockBeginPattern.SubexpIndex("label")])
			lang = strings.TrimSpace(m[codeBlockBeginPattern.SubexpIndex("lang")])
		case fenceInside:
			if !codeBlockEndPattern.MatchString(line) {
				continue
			}
			ordinal++
			blocks = append(blocks, CodeBlock{
				Ordinal:   ordinal,
				StartLine: start,
				EndLine:   i,
				Label:     label,
				Lang:      lang,
				Title:     codeBlockTitle(ordinal, label, lang),
			})
			state = fenceOutside
			start = -1
			label, lang = "", ""
		}
	}

	if state == fenceInside {
		logger.Warn("unterminated code block, rest of document treated as code",
			logger.Int("startLine", start))
		return blocks, start
	}
	return blocks, -1
}

// stripCodeBlocks drops code block lines, fences included, from an already
// sliced list of lines. The toggle only looks at the fence lines themselves.
func stripCodeBlocks(lines []string) []string {
	out := make([]string, 0, len(lines))
	inBlock := false
	for _, line := range lines {
		if !inBlock && codeBlockBeginPattern.MatchString(line) {
			inBlock = true
			continue
		}
		if inBlock && codeBlockEndPattern.MatchString(line) {
			inBlock = false
			continue
		}
		if !inBlock {
			out = append(out, line)
		}
	}
	return out
}

// SplitLines splits text on \n, \r\n and \r. A trailing line terminator
// does not produce an extra empty line.
func SplitLines(text string) []string {
	if text == "" {
		return []string{}
	}
	lines := make([]string, 0, strings.Count(text, "\n")+1)
	start := 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '\n':
			lines = append(lines, text[start:i])
			start = i + 1
		case '\r':
			lines = append(lines, text[start:i])
			if i+1 < len(text) && text[i+1] == '\n' {
				i++
			}
			start = i + 1
		}
	}
	if start < len(text) {
		lines = append(lines, text[start:])
	}
	return lines
}
