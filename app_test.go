package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"latex-workbench/internal/config"
	"latex-workbench/internal/settings"
	"latex-workbench/internal/types"
)

var paperLines = []string{
	`\begin{abstract}`,                  // 0
	`\textbf{针对问题一}，建立模型A。`,          // 1
	`\keywords{优化}`,                     // 2
	`\end{abstract}`,                    // 3
	`\section{问题重述}`,                    // 4
	`\textbf{问题一：}求解A`,                 // 5
	`\section{问题一的分析}`,                 // 6
	`分析一`,                              // 7
	`\section{问题一模型的建立与求解}`,           // 8
	`<-----摘要----->`,                    // 9
	`旧摘要`,                              // 10
	`<-----摘要----->`,                    // 11
	`\begin{codeblock}[统计]{python}`,     // 12
	`print(1)`,                          // 13
	`\end{codeblock}`,                   // 14
}

var paperText = strings.Join(paperLines, "\n") + "\n"

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

// newTestApp builds an App whose config, backups and recent list live in a
// temp directory. extra is appended to the YAML config.
func newTestApp(t *testing.T, extra string) (*App, string) {
	t.Helper()
	dir := t.TempDir()

	cfgPath := filepath.Join(dir, "config.yaml")
	writeFile(t, cfgPath, "max_level: 3\nbackup_keep: 2\nbackup_dir: "+filepath.Join(dir, "backups")+"\n"+extra)

	cm, err := config.NewConfigManager(cfgPath)
	require.NoError(t, err)
	recent := settings.NewManagerWithPath(filepath.Join(dir, "recent.json"), 5)

	app, err := NewApp(cm, recent)
	require.NoError(t, err)
	return app, dir
}

func openPaper(t *testing.T) (*App, string) {
	t.Helper()
	app, dir := newTestApp(t, "")
	path := filepath.Join(dir, "paper.tex")
	writeFile(t, path, paperText)

	text, err := app.OpenPath(path)
	require.NoError(t, err)
	require.Equal(t, paperText, text)
	return app, path
}

func TestNewAppRejectsBadEncoding(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	writeFile(t, cfgPath, "encoding: latin-9\n")

	cm, err := config.NewConfigManager(cfgPath)
	require.NoError(t, err)
	_, err = NewApp(cm, settings.NewManagerWithPath(filepath.Join(dir, "recent.json"), 5))
	assert.True(t, types.IsCode(err, types.ErrConfig))
}

func TestNoDocumentOpen(t *testing.T) {
	app, _ := newTestApp(t, "")

	assert.Empty(t, app.OutlineNodes())
	assert.Empty(t, app.CodeNodes())
	assert.Empty(t, app.ProblemTree())
	assert.Empty(t, app.RenderContent(0, 1))

	text, err := app.ReloadFromDisk()
	assert.NoError(t, err)
	assert.Empty(t, text)

	assert.True(t, types.IsCode(app.SaveText("x"), types.ErrInvalidInput))
	_, err = app.Check()
	assert.True(t, types.IsCode(err, types.ErrInvalidInput))
}

func TestOpenPath(t *testing.T) {
	app, path := openPaper(t)

	assert.Equal(t, path, app.CurrentFile())
	assert.Equal(t, []string{path}, app.RecentFiles())
	assert.Equal(t, []string{"摘要"}, app.ScanMarkers(app.CurrentText()))

	_, err := app.OpenPath(filepath.Join(filepath.Dir(path), "missing.tex"))
	assert.True(t, types.IsCode(err, types.ErrFileNotFound))
	assert.Equal(t, path, app.CurrentFile(), "failed open keeps the current document")
}

func TestNavigation(t *testing.T) {
	app, _ := openPaper(t)

	assert.Equal(t, Outline{
		{Title: "问题重述", Level: 1, Line: 4},
		{Title: "问题一的分析", Level: 1, Line: 6},
		{Title: "问题一模型的建立与求解", Level: 1, Line: 8},
	}, app.OutlineNodes())
	assert.Equal(t, []string{"问题重述", "问题一的分析", "问题一模型的建立与求解"}, app.SectionTitles())

	code := app.CodeNodes()
	require.Len(t, code, 1)
	assert.Equal(t, 1, code[0].Ordinal)
	assert.Equal(t, "统计", code[0].Label)
	assert.Equal(t, "python", code[0].Lang)
	assert.Equal(t, 12, code[0].StartLine)
	assert.Equal(t, 14, code[0].EndLine)
	assert.Equal(t, 4, code[0].Level)

	tree := app.ProblemTree()
	require.Len(t, tree, 1)
	assert.Equal(t, "一", tree[0].ID)
	assert.Equal(t, "问题一", tree[0].Title)
	require.Len(t, tree[0].Parts, 4)
	assert.Equal(t, PartAbstract, tree[0].Parts[0].Key)
	assert.Equal(t, PartModeling, tree[0].Parts[3].Key)

	assert.Equal(t, "\\section{问题一的分析}\n分析一", app.RenderContent(6, 1))
	assert.Equal(t, strings.Join(paperLines[12:15], "\n"), app.RenderContent(12, 4))
	assert.Equal(t, "\\section{问题一的分析}\n分析一", app.RenderSection("问题一的分析"))
	assert.Empty(t, app.RenderSection("missing"))

	assert.Contains(t, app.OutlineNodes().Text(), "问题重述  (line 4)")
	assert.Contains(t, code.Text(), "(lines 12-14)")
	assert.Contains(t, tree.Text(), "  restate  问题重述")
}

func TestRenderProblem(t *testing.T) {
	app, _ := openPaper(t)

	t.Run("single parts", func(t *testing.T) {
		got, err := app.RenderProblem("一", PartAnalysis)
		require.NoError(t, err)
		assert.Equal(t, "\\section{问题分析}\n\\section{问题一的分析}\n分析一", got)

		got, err = app.RenderProblem("一", PartRestate)
		require.NoError(t, err)
		assert.Equal(t, "\\section{问题重述}\n\\textbf{问题一：}求解A", got)

		got, err = app.RenderProblem("一", PartAbstract)
		require.NoError(t, err)
		assert.Equal(t, strings.Join(paperLines[0:4], "\n"), got)
	})

	t.Run("merged", func(t *testing.T) {
		got, err := app.RenderProblem("一", "")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(got, `\begin{abstract}`))
		assert.Contains(t, got, "\\end{abstract}\n\n\\section{问题重述}")
		assert.Contains(t, got, "求解A\n\n\\section{问题分析}")
		assert.Contains(t, got, "分析一\n\n\\section{模型建立与求解}")
		assert.True(t, strings.HasSuffix(got, `\end{codeblock}`))
	})

	t.Run("unknown", func(t *testing.T) {
		got, err := app.RenderProblem("一", "appendix")
		require.NoError(t, err)
		assert.Empty(t, got)

		got, err = app.RenderProblem("", "")
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestExtractToFile(t *testing.T) {
	app, path := openPaper(t)
	dir := filepath.Dir(path)

	out, err := app.ExtractProblemToFile("一")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "问题一.tex"), out)
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "\\begin{abstract}\n\\textbf{针对问题一}"))
	assert.Contains(t, string(data), "\\end{abstract}\n\\section{问题重述}\n")

	out, err = app.ExtractSectionToFile("问题一的分析")
	require.NoError(t, err)
	data, err = os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "\\section{问题一的分析}\n分析一\n", string(data))

	_, err = app.ExtractSectionToFile("missing")
	assert.True(t, types.IsCode(err, types.ErrNotFound))

	plain := filepath.Join(dir, "plain.tex")
	writeFile(t, plain, "\\section{A}\n")
	_, err = app.OpenPath(plain)
	require.NoError(t, err)
	_, err = app.ExtractProblemToFile("一")
	assert.True(t, types.IsCode(err, types.ErrNotFound))
}

func TestReplacementWorkflow(t *testing.T) {
	app, path := openPaper(t)
	text := app.CurrentText()

	assert.Equal(t, "\n旧摘要\n", app.PairContent("摘要"))
	assert.Empty(t, app.PairContent("missing"))

	assert.Equal(t, text, app.ApplyReplacement(text, "missing", "x"))
	assert.Empty(t, app.PendingLabels())

	newText := app.ApplyReplacement(text, "摘要", "新摘要")
	assert.Equal(t, strings.Replace(text, "旧摘要", "新摘要", 1), newText)
	assert.Equal(t, "新摘要", app.PairContent("摘要"))
	assert.Equal(t, []string{"摘要"}, app.PendingLabels())

	t.Run("save keeps pending replacements", func(t *testing.T) {
		require.NoError(t, app.SaveText(newText))
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, newText, string(data))
		assert.Equal(t, []string{"摘要"}, app.PendingLabels())

		app.mu.RLock()
		backups, err := app.docs.Backups().ListBackups(path)
		app.mu.RUnlock()
		require.NoError(t, err)
		assert.Len(t, backups, 1)
	})

	t.Run("reload drops pending replacements", func(t *testing.T) {
		reloaded, err := app.ReloadFromDisk()
		require.NoError(t, err)
		assert.Equal(t, newText, reloaded)
		assert.Empty(t, app.PendingLabels())
		assert.Equal(t, "\n新摘要\n", app.PairContent("摘要"))
	})
}

func TestQuickOpen(t *testing.T) {
	app, path := openPaper(t)

	text, err := app.QuickOpen(path)
	require.NoError(t, err)
	assert.Equal(t, paperText, text)

	require.NoError(t, os.Remove(path))
	_, err = app.QuickOpen(path)
	assert.True(t, types.IsCode(err, types.ErrFileNotFound))
	assert.Empty(t, app.RecentFiles())

	_, err = app.QuickOpen("")
	assert.True(t, types.IsCode(err, types.ErrInvalidInput))
}

func TestUpdateCurrentTextAndCheck(t *testing.T) {
	app, _ := openPaper(t)

	result, err := app.Check()
	require.NoError(t, err)
	assert.True(t, result.Valid, "errors: %v", result.Errors)
	assert.Empty(t, result.Warnings)

	app.UpdateCurrentText(app.CurrentText() + "\\textbf{oops\n")
	assert.Len(t, app.OutlineNodes(), 3, "in-memory edits do not reparse")

	result, err = app.Check()
	require.NoError(t, err)
	assert.False(t, result.Valid)
}

func TestFindSections(t *testing.T) {
	app, _ := openPaper(t)

	matches := app.FindSections("分析")
	require.Len(t, matches, 1)
	assert.Equal(t, "问题一的分析", matches[0].Title)
	assert.Equal(t, 6, matches[0].Line)
	assert.Contains(t, matches.Text(), "6\t问题一的分析")

	assert.Empty(t, app.FindSections("  "))
	assert.Empty(t, app.FindSections("zzz"))
}

func TestAidFiles(t *testing.T) {
	aidDir := filepath.Join(t.TempDir(), "aid")
	writeFile(t, filepath.Join(aidDir, "b.txt"), "bee")
	writeFile(t, filepath.Join(aidDir, "A", "x.md"), "ex")
	writeFile(t, filepath.Join(aidDir, "c.TEX"), "\\section{C}")
	writeFile(t, filepath.Join(aidDir, "skip.pdf"), "%PDF")

	app, _ := newTestApp(t, "aid_dir: "+aidDir+"\n")

	files, err := app.ListAidFiles()
	require.NoError(t, err)
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Name
	}
	assert.Equal(t, []string{"A/x.md", "b.txt", "c.TEX"}, names)

	text, err := app.ReadAidFile("A/x.md")
	require.NoError(t, err)
	assert.Equal(t, "ex", text)

	_, err = app.ReadAidFile("../secret.txt")
	assert.True(t, types.IsCode(err, types.ErrInvalidInput))

	t.Run("unconfigured", func(t *testing.T) {
		app, _ := newTestApp(t, "")
		files, err := app.ListAidFiles()
		require.NoError(t, err)
		assert.Empty(t, files)

		_, err = app.ReadAidFile("b.txt")
		assert.True(t, types.IsCode(err, types.ErrConfig))
	})
}

func TestWatchReloadsOnChange(t *testing.T) {
	app, path := openPaper(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan string, 4)
	done := make(chan error, 1)
	go func() {
		done <- app.Watch(ctx, func(text string) { reloaded <- text })
	}()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)
	writeFile(t, path, paperText+"\\section{附录}\n")

	select {
	case text := <-reloaded:
		assert.Contains(t, text, `\section{附录}`)
	case <-time.After(3 * time.Second):
		t.Fatal("document was not reloaded")
	}
	assert.Len(t, app.OutlineNodes(), 4)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("watch did not stop")
	}
}

func TestWatchWithoutDocument(t *testing.T) {
	app, _ := newTestApp(t, "")
	err := app.Watch(context.Background(), nil)
	assert.True(t, types.IsCode(err, types.ErrInvalidInput))
}
