package latex

import (
	"regexp"
	"strings"
)

// SectionKind is the command a Section was parsed from.
type SectionKind string

const (
	KindSection       SectionKind = "section"
	KindSubsection    SectionKind = "subsection"
	KindSubsubsection SectionKind = "subsubsection"
	KindNumTitle      SectionKind = "numtitle"
	KindCircTitle     SectionKind = "circtitle"
	KindDingTitle     SectionKind = "dingtitle"
	KindSquaTitle     SectionKind = "squatitle"
	KindCodeBlock     SectionKind = "codeblock"
)

// CodeBlockLevel is the outline level given to code block entries.
const CodeBlockLevel = 4

var headingLevels = map[SectionKind]int{
	KindSection:       1,
	KindSubsection:    2,
	KindSubsubsection: 3,
	KindNumTitle:      4,
	KindCircTitle:     4,
	KindDingTitle:     4,
	KindSquaTitle:     4,
}

// Only matched at the start of the trimmed line; an optional empty [] may
// sit between the command and its title.
var headingPattern = regexp.MustCompile(`^\\(section|subsection|subsubsection|numtitle|circtitle|dingtitle|squatitle)(\[\])?\{([^}]*)\}`)

// Section is one outline entry: a heading command or a code block.
type Section struct {
	Kind    SectionKind `json:"kind" yaml:"kind"`
	Title   string      `json:"title" yaml:"title"`
	Level   int         `json:"level" yaml:"level"`
	LineNum int         `json:"line_num" yaml:"line_num"`
}

// IsCodeBlock reports whether the entry stands for a code block.
func (s Section) IsCodeBlock() bool {
	return s.Kind == KindCodeBlock
}

// Command rebuilds the heading command line, e.g. \subsection{title}.
func (s Section) Command() string {
	return `\` + string(s.Kind) + "{" + s.Title + "}"
}

// LevelOf returns the outline level of a heading kind, 0 if unknown.
func LevelOf(kind SectionKind) int {
	if kind == KindCodeBlock {
		return CodeBlockLevel
	}
	return headingLevels[kind]
}

// ParseHeading matches a heading command at the start of the trimmed line.
func ParseHeading(line string) (SectionKind, string, bool) {
	m := headingPattern.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return "", "", false
	}
	return SectionKind(m[1]), strings.TrimSpace(m[3]), true
}

var headingPrefixPattern = regexp.MustCompile(`^\\(section|subsection|subsubsection|numtitle|circtitle|dingtitle|squatitle)\b`)

// LooksLikeHeading reports whether the trimmed line starts with a heading
// command, whether or not its title argument is well formed.
func LooksLikeHeading(line string) bool {
	return headingPrefixPattern.MatchString(strings.TrimSpace(line))
}
