package check

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"latex-workbench/internal/latex"
)

func run(text string) *Result {
	return Document(text, latex.New(latex.SplitLines(text), latex.DefaultMaxLevel))
}

func hasIssue(issues []Issue, typ, fragment string) bool {
	for _, issue := range issues {
		if issue.Type == typ && strings.Contains(issue.Message, fragment) {
			return true
		}
	}
	return false
}

const cleanPaper = `\begin{document}
\begin{abstract}
\textbf{针对问题一}，建立模型。
\keywords{优化}
\end{abstract}
\section{问题重述}
\textbf{问题一：}求解
\section{问题一的分析}
分析 50\% 的数据 % comment with }
\section{问题一模型的建立与求解}
\begin{codeblock}{python}
print("{")
\end{codeblock}
<-----结果----->
x
<-----结果----->
\end{document}`

func TestCleanDocument(t *testing.T) {
	result := run(cleanPaper)
	assert.True(t, result.Valid, "errors: %v", result.Errors)
	assert.Empty(t, result.Warnings)
	assert.Contains(t, FormatReport("paper.tex", result), "No issues found.")
	assert.Equal(t, "no errors, 0 warnings", Summary(result))
}

func TestUnterminatedCodeBlock(t *testing.T) {
	result := run("\\section{A}\n\\begin{codeblock}\n\\section{B}\n")
	require.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, 2, result.Errors[0].Line)
	assert.Equal(t, TypeStructure, result.Errors[0].Type)
}

func TestBrokenHeading(t *testing.T) {
	result := run("\\section{Fine}\n\\subsection{No close\n")
	assert.True(t, hasIssue(result.Warnings, TypeSyntax, "missing its {title}"))
}

func TestBraceBalance(t *testing.T) {
	result := run("a}\n\\textbf{b\n\\{ escaped \\}\n")
	assert.True(t, hasIssue(result.Errors, TypeSyntax, "unexpected closing brace"))
	assert.True(t, hasIssue(result.Errors, TypeSyntax, "1 left open"))
}

func TestEnvironments(t *testing.T) {
	result := run("\\begin{itemize}\n\\end{enumerate}\n\\end{table}\n\\begin{figure}\n")
	assert.True(t, hasIssue(result.Errors, TypeStructure, "mismatched environment"))
	assert.True(t, hasIssue(result.Errors, TypeStructure, "without matching"))
	assert.True(t, hasIssue(result.Errors, TypeStructure, "figure is never closed"))
}

func TestMarkers(t *testing.T) {
	t.Run("odd count", func(t *testing.T) {
		result := run("<-----A----->\nx\n<-----A----->\n<-----B----->\n")
		assert.True(t, hasIssue(result.Warnings, TypeMarker, "odd count"))
		assert.True(t, result.Valid)
	})

	t.Run("mismatch and duplicates", func(t *testing.T) {
		text := "<-----A----->1<-----B----->\n<-----C----->2<-----C----->\n<-----C----->3<-----C----->"
		result := run(text)
		assert.True(t, hasIssue(result.Warnings, TypeMarker, "closed by <-----B----->"))
		assert.True(t, hasIssue(result.Warnings, TypeMarker, `"C"`))
	})
}

func TestEncodingIssues(t *testing.T) {
	result := run("fine\n锟斤拷\n")
	require.False(t, result.Valid)
	assert.Equal(t, 2, result.Errors[0].Line)
	assert.Equal(t, TypeEncoding, result.Errors[0].Type)
}

func TestProblemsMissingSections(t *testing.T) {
	text := `\begin{abstract}
\textbf{针对问题一}
\end{abstract}
\section{问题重述}
\textbf{问题一：}a
\textbf{问题二：}b
\section{问题一的分析}
\section{问题一模型的建立与求解}`

	result := run(text)
	assert.True(t, hasIssue(result.Warnings, TypeProblem, "问题二的分析"))
	assert.True(t, hasIssue(result.Warnings, TypeProblem, "问题二模型的建立与求解"))
	assert.True(t, hasIssue(result.Warnings, TypeProblem, "针对问题二"))
	assert.False(t, hasIssue(result.Warnings, TypeProblem, "problem 一"))
}

func TestFormatReport(t *testing.T) {
	result := run("a}\n<-----A----->\n")
	report := FormatReport("paper.tex", result)
	assert.Contains(t, report, "Check report for: paper.tex")
	assert.Contains(t, report, "Errors (1):")
	assert.Contains(t, report, "Line 1: unexpected closing brace")
	assert.Contains(t, report, "Warnings (1):")
	assert.Equal(t, "1 syntax, 0 structure, 0 encoding errors, 1 warnings", Summary(result))
}
