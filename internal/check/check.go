// Package check reports structural problems in a paper source: broken code
// blocks and headings, unbalanced braces and environments, unusable marker
// pairs, garbled text and problems missing their sections.
//
// None of these stop the parser; they are collected here so a user can fix
// a document that renders oddly.
package check

import (
	"fmt"
	"regexp"
	"strings"

	"latex-workbench/internal/latex"
	"latex-workbench/internal/logger"
	"latex-workbench/internal/marker"
)

// Issue types.
const (
	TypeSyntax    = "syntax"
	TypeStructure = "structure"
	TypeEncoding  = "encoding"
	TypeMarker    = "marker"
	TypeProblem   = "problem"
)

// Issue is one finding. Line is 1-based; 0 means the whole document.
type Issue struct {
	Line    int    `json:"line" yaml:"line"`
	Column  int    `json:"column,omitempty" yaml:"column,omitempty"`
	Message string `json:"message" yaml:"message"`
	Type    string `json:"type" yaml:"type"`
}

// Result contains the findings for one document.
type Result struct {
	Valid    bool    `json:"valid" yaml:"valid"`
	Errors   []Issue `json:"errors" yaml:"errors"`
	Warnings []Issue `json:"warnings" yaml:"warnings"`
}

func (r *Result) addError(line, col int, typ, format string, args ...interface{}) {
	r.Errors = append(r.Errors, Issue{Line: line, Column: col, Message: fmt.Sprintf(format, args...), Type: typ})
}

func (r *Result) addWarning(line, col int, typ, format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, Issue{Line: line, Column: col, Message: fmt.Sprintf(format, args...), Type: typ})
}

// Document checks text. The extractor must have been built from the same
// text.
func Document(text string, e *latex.Extractor) *Result {
	result := &Result{Errors: []Issue{}, Warnings: []Issue{}}
	lines := e.Lines()

	checkCodeBlocks(e, result)
	checkHeadings(e, result)
	checkBraceBalance(e, result)
	checkEnvironments(e, result)
	checkMarkers(text, result)
	checkEncodingIssues(lines, result)
	checkProblems(e, result)

	result.Valid = len(result.Errors) == 0

	logger.Debug("document checked",
		logger.Bool("valid", result.Valid),
		logger.Int("errorCount", len(result.Errors)),
		logger.Int("warningCount", len(result.Warnings)))
	return result
}

func checkCodeBlocks(e *latex.Extractor, result *Result) {
	if start, open := e.UnterminatedCodeBlock(); open {
		result.addError(start+1, 0, TypeStructure,
			"code block is never closed; no heading after this line is recognised")
	}
}

func checkHeadings(e *latex.Extractor, result *Result) {
	for i, line := range e.Lines() {
		if e.InCodeBlock(i) || !latex.LooksLikeHeading(line) {
			continue
		}
		if _, _, ok := latex.ParseHeading(line); !ok {
			result.addWarning(i+1, 0, TypeSyntax, "heading is missing its {title} argument and is ignored")
		}
	}
}

// stripComment cuts an unescaped % comment.
func stripComment(line string) string {
	for i := 0; i < len(line); i++ {
		if line[i] == '%' && (i == 0 || line[i-1] != '\\') {
			return line[:i]
		}
	}
	return line
}

func checkBraceBalance(e *latex.Extractor, result *Result) {
	depth := 0
	for lineNum, line := range e.Lines() {
		if e.InCodeBlock(lineNum) {
			continue
		}
		line = stripComment(line)
		for i := 0; i < len(line); i++ {
			if i > 0 && line[i-1] == '\\' {
				continue
			}
			switch line[i] {
			case '{':
				depth++
			case '}':
				if depth == 0 {
					result.addError(lineNum+1, i+1, TypeSyntax, "unexpected closing brace '}'")
					continue
				}
				depth--
			}
		}
	}
	if depth != 0 {
		result.addError(0, 0, TypeSyntax, "unbalanced braces: %d left open", depth)
	}
}

var envPattern = regexp.MustCompile(`\\(begin|end)\{([^}]+)\}`)

type openEnv struct {
	name string
	line int
}

func checkEnvironments(e *latex.Extractor, result *Result) {
	var stack []openEnv
	for lineNum, line := range e.Lines() {
		// Fences are checked by checkCodeBlocks; their bodies are verbatim.
		if e.InCodeBlock(lineNum) {
			continue
		}
		for _, m := range envPattern.FindAllStringSubmatch(stripComment(line), -1) {
			cmd, env := m[1], m[2]
			if cmd == "begin" {
				stack = append(stack, openEnv{name: env, line: lineNum + 1})
				continue
			}
			if len(stack) == 0 {
				result.addError(lineNum+1, 0, TypeStructure, "unexpected \\end{%s} without matching \\begin", env)
				continue
			}
			last := stack[len(stack)-1]
			if last.name != env {
				result.addError(lineNum+1, 0, TypeStructure,
					"mismatched environment: \\begin{%s} on line %d closed by \\end{%s}", last.name, last.line, env)
			}
			stack = stack[:len(stack)-1]
		}
	}
	for _, env := range stack {
		result.addError(env.line, 0, TypeStructure, "environment %s is never closed", env.name)
	}
}

func lineOf(text string, offset int) int {
	return strings.Count(text[:offset], "\n") + 1
}

func checkMarkers(text string, result *Result) {
	delims := marker.FindDelimiters(text)
	if len(delims) == 0 {
		return
	}
	if len(delims)%2 != 0 {
		last := delims[len(delims)-1]
		result.addWarning(0, 0, TypeMarker,
			"%d markers found, an odd count disables every pair (last marker on line %d)", len(delims), lineOf(text, last.Start))
		return
	}

	for i := 0; i < len(delims); i += 2 {
		if delims[i].Text != delims[i+1].Text {
			result.addWarning(lineOf(text, delims[i].Start), 0, TypeMarker,
				"marker %s is closed by %s; the pair is skipped", delims[i].Text, delims[i+1].Text)
		}
	}
	for _, label := range marker.DuplicateLabels(marker.FindPairs(text)) {
		result.addWarning(0, 0, TypeMarker, "marker label %q is used by more than one pair", label)
	}
}

var encodingIssuePatterns = []string{
	"鎮ㄧ殑", // GBK read as UTF-8
	"锟斤拷",
	"\uFFFD",
}

func checkEncodingIssues(lines []string, result *Result) {
	for lineNum, line := range lines {
		for _, pattern := range encodingIssuePatterns {
			if idx := strings.Index(line, pattern); idx != -1 {
				result.addError(lineNum+1, idx+1, TypeEncoding, "possible encoding issue (garbled text)")
				break
			}
		}
		if lineNum > 0 && strings.Contains(line, "\uFEFF") {
			result.addWarning(lineNum+1, 0, TypeEncoding, "BOM found in the middle of the file")
		}
	}
}

func checkProblems(e *latex.Extractor, result *Result) {
	ids := e.ProblemIDs()
	if len(ids) == 0 {
		return
	}

	doc := strings.Join(e.Lines(), "\n")
	hasAbstract := strings.Contains(doc, `\begin{abstract}`)
	for _, id := range ids {
		parts := e.ProblemParts(id)
		if parts.Analysis == nil {
			result.addWarning(0, 0, TypeProblem, "problem %s has no \"问题%s的分析\" section", id, id)
		}
		if parts.Modeling == nil {
			result.addWarning(0, 0, TypeProblem, "problem %s has no \"问题%s模型的建立与求解\" section", id, id)
		}
		if hasAbstract && !strings.Contains(doc, `\textbf{针对问题`+id+`}`) {
			result.addWarning(0, 0, TypeProblem, "abstract has no \\textbf{针对问题%s} paragraph", id)
		}
	}
}

// FormatReport renders a result for humans.
func FormatReport(path string, result *Result) string {
	var report strings.Builder
	report.WriteString(fmt.Sprintf("Check report for: %s\n", path))
	report.WriteString(strings.Repeat("=", 60) + "\n\n")

	if result.Valid {
		report.WriteString("✓ No errors\n\n")
	} else {
		report.WriteString("✗ Errors found\n\n")
	}

	writeIssues := func(title string, issues []Issue) {
		if len(issues) == 0 {
			return
		}
		report.WriteString(fmt.Sprintf("%s (%d):\n", title, len(issues)))
		for i, issue := range issues {
			if issue.Line > 0 {
				report.WriteString(fmt.Sprintf("  %d. Line %d: %s [%s]\n", i+1, issue.Line, issue.Message, issue.Type))
			} else {
				report.WriteString(fmt.Sprintf("  %d. %s [%s]\n", i+1, issue.Message, issue.Type))
			}
		}
		report.WriteString("\n")
	}
	writeIssues("Errors", result.Errors)
	writeIssues("Warnings", result.Warnings)

	if result.Valid && len(result.Warnings) == 0 {
		report.WriteString("No issues found.\n")
	}
	return report.String()
}

// Summary returns a one-line count of errors by type.
func Summary(result *Result) string {
	if result.Valid {
		return fmt.Sprintf("no errors, %d warnings", len(result.Warnings))
	}

	counts := map[string]int{}
	for _, issue := range result.Errors {
		counts[issue.Type]++
	}
	return fmt.Sprintf("%d syntax, %d structure, %d encoding errors, %d warnings",
		counts[TypeSyntax], counts[TypeStructure], counts[TypeEncoding], len(result.Warnings))
}
