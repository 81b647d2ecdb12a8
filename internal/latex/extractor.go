// Package latex parses the outline of a LaTeX-like competition paper:
// code blocks, heading commands, per-problem fragments and the abstract.
//
// An Extractor holds one immutable snapshot of the document. Any edit to the
// source requires building a new Extractor; there is no incremental re-parse.
package latex

import (
	"os"
	"sort"

	"latex-workbench/internal/logger"
	"latex-workbench/internal/types"
)

// DefaultMaxLevel is the deepest heading level kept when none is given.
const DefaultMaxLevel = 4

// ReadFunc loads the full text of a document.
type ReadFunc func(path string) (string, error)

// Option configures an Extractor built from a file.
type Option func(*Extractor)

// WithReadFunc replaces the plain UTF-8 file reader, e.g. with one that
// honours a configured encoding.
func WithReadFunc(fn ReadFunc) Option {
	return func(e *Extractor) {
		if fn != nil {
			e.read = fn
		}
	}
}

// Extractor is the structural parser over one document snapshot.
type Extractor struct {
	path     string
	read     ReadFunc
	lines    []string
	maxLevel int

	codeBlocks []CodeBlock
	openStart  int
	endByStart map[int]int
	inCode     []bool
	sections   []Section
}

// New parses lines. Headings deeper than maxLevel are dropped; code blocks
// are always kept. maxLevel <= 0 selects DefaultMaxLevel.
func New(lines []string, maxLevel int) *Extractor {
	e := &Extractor{
		read:     readUTF8File,
		lines:    lines,
		maxLevel: maxLevel,
	}
	if e.maxLevel <= 0 {
		e.maxLevel = DefaultMaxLevel
	}
	e.parse()
	return e
}

// NewFromFile reads path and parses it. Read failures are returned as
// *types.AppError; nothing in the document content itself is an error.
func NewFromFile(path string, maxLevel int, opts ...Option) (*Extractor, error) {
	e := &Extractor{read: readUTF8File}
	for _, opt := range opts {
		opt(e)
	}

	text, err := e.read(path)
	if err != nil {
		logger.Error("failed to read document", err, logger.String("path", path))
		return nil, err
	}

	parsed := New(SplitLines(text), maxLevel)
	parsed.path = path
	parsed.read = e.read

	logger.Debug("document parsed",
		logger.String("path", path),
		logger.Int("lines", len(parsed.lines)),
		logger.Int("sections", len(parsed.sections)),
		logger.Int("codeBlocks", len(parsed.codeBlocks)))
	return parsed, nil
}

func readUTF8File(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", types.NewIOError("failed to read document", path, err)
	}
	return string(data), nil
}

func (e *Extractor) parse() {
	blocks, openStart := detectCodeBlocks(e.lines)
	e.codeBlocks = blocks
	e.openStart = openStart
	e.endByStart = make(map[int]int, len(blocks))

	e.inCode = make([]bool, len(e.lines))
	for _, b := range blocks {
		e.endByStart[b.StartLine] = b.EndLine
		for i := b.StartLine; i <= b.EndLine; i++ {
			e.inCode[i] = true
		}
	}
	// An unterminated block never closes, so no heading after it is seen.
	if openStart >= 0 {
		for i := openStart; i < len(e.lines); i++ {
			e.inCode[i] = true
		}
	}

	sections := make([]Section, 0, len(blocks))
	for _, b := range blocks {
		sections = append(sections, Section{
			Kind:    KindCodeBlock,
			Title:   b.Title,
			Level:   CodeBlockLevel,
			LineNum: b.StartLine,
		})
	}
	for i, line := range e.lines {
		if e.inCode[i] {
			continue
		}
		kind, title, ok := ParseHeading(line)
		if !ok {
			continue
		}
		if level := headingLevels[kind]; level <= e.maxLevel {
			sections = append(sections, Section{Kind: kind, Title: title, Level: level, LineNum: i})
		}
	}
	sort.SliceStable(sections, func(i, j int) bool {
		return sections[i].LineNum < sections[j].LineNum
	})
	e.sections = sections
}

// Path returns the backing file, empty when built from lines.
func (e *Extractor) Path() string { return e.path }

// MaxLevel returns the deepest heading level kept.
func (e *Extractor) MaxLevel() int { return e.maxLevel }

// Lines returns the document snapshot.
func (e *Extractor) Lines() []string { return e.lines }

// CodeBlocks returns the detected code blocks in document order.
func (e *Extractor) CodeBlocks() []CodeBlock {
	out := make([]CodeBlock, len(e.codeBlocks))
	copy(out, e.codeBlocks)
	return out
}

// Sections returns every outline entry, code blocks included, by line.
func (e *Extractor) Sections() []Section {
	out := make([]Section, len(e.sections))
	copy(out, e.sections)
	return out
}

// Headings returns the outline entries that are not code blocks.
func (e *Extractor) Headings() []Section {
	out := make([]Section, 0, len(e.sections))
	for _, s := range e.sections {
		if !s.IsCodeBlock() {
			out = append(out, s)
		}
	}
	return out
}

// UnterminatedCodeBlock returns the opening line of a code block that is
// never closed.
func (e *Extractor) UnterminatedCodeBlock() (int, bool) {
	return e.openStart, e.openStart >= 0
}

// InCodeBlock reports whether line is excluded from heading detection.
func (e *Extractor) InCodeBlock(line int) bool {
	return line >= 0 && line < len(e.inCode) && e.inCode[line]
}

// FindSection returns the first entry, in line order, whose title
// contains substr.
func (e *Extractor) FindSection(substr string) (Section, bool) {
	for _, s := range e.sections {
		if containsTitle(s.Title, substr) {
			return s, true
		}
	}
	return Section{}, false
}

// Content slices the document from startLine up to the next entry at
// startLevel or above. When startLine opens a code block, the block itself
// is returned, fences included.
func (e *Extractor) Content(startLine, startLevel int) []string {
	if startLine < 0 || startLine >= len(e.lines) {
		return []string{}
	}
	if end, ok := e.endByStart[startLine]; ok {
		return e.slice(startLine, end+1)
	}

	end := len(e.lines)
	for _, s := range e.sections {
		if s.LineNum > startLine && s.Level <= startLevel {
			end = s.LineNum
			break
		}
	}
	return e.slice(startLine, end)
}

// Section returns the content of the level-1 section titled exactly title.
func (e *Extractor) Section(title string) []string {
	for _, s := range e.sections {
		if s.Title == title && s.Level == 1 {
			return e.Content(s.LineNum, s.Level)
		}
	}
	return []string{}
}

func (e *Extractor) slice(from, to int) []string {
	out := make([]string, to-from)
	copy(out, e.lines[from:to])
	return out
}
