package latex

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"latex-workbench/internal/logger"
)

const (
	restatementTitle = "问题重述"
	backgroundTitle  = "问题背景"

	analysisHeading = `\section{问题分析}`
	modelingHeading = `\section{模型建立与求解}`

	abstractBegin = `\begin{abstract}`
	abstractEnd   = `\end{abstract}`
	keywordsCmd   = `\keywords`
	abstractBold  = `\textbf{针对问题`
	problemBold   = `\textbf{问题`
)

var (
	problemIDPattern         = regexp.MustCompile(`\\textbf\{问题([一二三四五六七八九十]+)：\}`)
	abstractProblemIDPattern = regexp.MustCompile(`\\textbf\{针对问题([一二三四五六七八九十]+)\}`)
)

var chineseNumerals = map[string]int{
	"一": 1, "二": 2, "三": 3, "四": 4, "五": 5,
	"六": 6, "七": 7, "八": 8, "九": 9, "十": 10,
}

// ChineseToNumber maps a single Chinese numeral to its value. Anything it
// does not recognise maps to 0.
func ChineseToNumber(numeral string) int {
	return chineseNumerals[numeral]
}

func containsTitle(title, substr string) bool {
	return strings.Contains(title, substr)
}

// ProblemIDs returns the distinct problem numerals bolded in the
// restatement section, ordered by numeric value.
func (e *Extractor) ProblemIDs() []string {
	s, ok := e.FindSection(restatementTitle)
	if !ok {
		return []string{}
	}

	seen := make(map[string]struct{})
	ids := []string{}
	for _, line := range stripCodeBlocks(e.Content(s.LineNum, s.Level)) {
		for _, m := range problemIDPattern.FindAllStringSubmatch(line, -1) {
			if _, dup := seen[m[1]]; dup {
				continue
			}
			seen[m[1]] = struct{}{}
			ids = append(ids, m[1])
		}
	}

	sort.SliceStable(ids, func(i, j int) bool {
		ni, nj := ChineseToNumber(ids[i]), ChineseToNumber(ids[j])
		if ni != nj {
			return ni < nj
		}
		return ids[i] < ids[j]
	})
	return ids
}

// ProblemParts holds the fragments of the paper that concern one problem.
// A nil field means its source section was not found.
type ProblemParts struct {
	Restatement []string `json:"restatement,omitempty" yaml:"restatement,omitempty"`
	Analysis    []string `json:"analysis,omitempty" yaml:"analysis,omitempty"`
	Modeling    []string `json:"modeling,omitempty" yaml:"modeling,omitempty"`
}

// Empty reports whether no part was found.
func (p ProblemParts) Empty() bool {
	return p.Restatement == nil && p.Analysis == nil && p.Modeling == nil
}

// Lines concatenates the found parts in document order.
func (p ProblemParts) Lines() []string {
	out := make([]string, 0, len(p.Restatement)+len(p.Analysis)+len(p.Modeling))
	out = append(out, p.Restatement...)
	out = append(out, p.Analysis...)
	return append(out, p.Modeling...)
}

// ProblemParts collects the restatement, analysis and modeling fragments
// for problem id.
func (e *Extractor) ProblemParts(id string) ProblemParts {
	var parts ProblemParts

	if s, ok := e.FindSection(restatementTitle); ok {
		content := stripCodeBlocks(e.Content(s.LineNum, s.Level))
		parts.Restatement = restatement(content, id)
	}
	parts.Analysis = e.headedPart(fmt.Sprintf("问题%s的分析", id), analysisHeading)
	parts.Modeling = e.headedPart(fmt.Sprintf("问题%s模型的建立与求解", id), modelingHeading)

	logger.Debug("problem parts extracted",
		logger.String("problem", id),
		logger.Int("restatement", len(parts.Restatement)),
		logger.Int("analysis", len(parts.Analysis)),
		logger.Int("modeling", len(parts.Modeling)))
	return parts
}

func (e *Extractor) headedPart(titleSubstr, heading string) []string {
	s, ok := e.FindSection(titleSubstr)
	if !ok {
		return nil
	}
	out := []string{heading, s.Command()}
	return append(out, e.Content(s.LineNum+1, s.Level)...)
}

// restateState is the state of the restatement walk. The states are
// mutually exclusive and the last trigger wins.
type restateState int

const (
	restateNone restateState = iota
	restateBackground
	restateRestate
	restateTarget
)

// restatement walks the code-free restatement section and keeps the
// background, the general restatement and the paragraphs of problem id.
// Trigger lines are kept along with the lines they open.
func restatement(lines []string, id string) []string {
	out := []string{`\section{` + restatementTitle + `}`}
	target := problemBold + id + "：}"
	state := restateNone

	for _, line := range lines {
		switch {
		case strings.Contains(line, `\subsection{`+backgroundTitle+`}`):
			state = restateBackground
		case strings.Contains(line, `\subsection{`+restatementTitle+`}`):
			state = restateRestate
		case strings.Contains(line, target):
			state = restateTarget
		case state == restateTarget && strings.Contains(line, problemBold):
			state = restateNone
		}
		if state != restateNone {
			out = append(out, line)
		}
	}
	return out
}

// abstractPhase is the position of the abstract walk.
type abstractPhase int

const (
	abstractOutside abstractPhase = iota
	abstractInside
)

// AbstractParts returns the abstract reduced to the paragraphs of problem
// id, framed by the environment's own begin and end lines.
//
// The lines are walked in a pass of their own: from disk when the
// Extractor was built from a file, otherwise from the snapshot. An empty
// result means no abstract was found.
func (e *Extractor) AbstractParts(id string) ([]string, error) {
	lines := e.lines
	if e.path != "" {
		text, err := e.read(e.path)
		if err != nil {
			logger.Error("failed to re-read document for abstract", err, logger.String("path", e.path))
			return nil, err
		}
		lines = SplitLines(text)
	}
	return abstractParts(lines, id), nil
}

func abstractParts(lines []string, id string) []string {
	var frame, intro, problem, summary []string
	phase := abstractOutside
	inBlock := false
	targetFound := false

scan:
	for _, raw := range lines {
		line := strings.TrimSpace(raw)

		if !inBlock && strings.Contains(line, codeBlockBegin) {
			inBlock = true
			continue
		}
		if inBlock {
			if strings.Contains(line, codeBlockEnd) {
				inBlock = false
			}
			continue
		}

		switch {
		case strings.Contains(line, abstractBegin):
			frame = append(frame, line)
			phase = abstractInside
			continue
		case strings.Contains(line, abstractEnd):
			frame = append(frame, line)
			break scan
		}
		if phase != abstractInside {
			continue
		}

		switch {
		case strings.Contains(line, abstractBold):
			m := abstractProblemIDPattern.FindStringSubmatch(line)
			if m != nil && m[1] == id {
				problem = append(problem, line)
				targetFound = true
			} else if targetFound {
				targetFound = false
			}
		case strings.Contains(line, keywordsCmd):
			summary = append(summary, line)
			targetFound = false
		case len(problem) == 0 && len(summary) == 0:
			intro = append(intro, line)
		case targetFound:
			problem = append(problem, line)
		case len(problem) > 0:
			summary = append(summary, line)
		}
	}

	if len(frame) == 0 {
		return []string{}
	}
	out := make([]string, 0, len(intro)+len(problem)+len(summary)+2)
	out = append(out, frame[0])
	out = append(out, intro...)
	out = append(out, problem...)
	out = append(out, summary...)
	return append(out, frame[len(frame)-1])
}
