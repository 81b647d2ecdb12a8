package main

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/sahilm/fuzzy"
	"github.com/samber/lo"

	"latex-workbench/internal/check"
	"latex-workbench/internal/config"
	"latex-workbench/internal/editor"
	"latex-workbench/internal/latex"
	"latex-workbench/internal/logger"
	"latex-workbench/internal/marker"
	"latex-workbench/internal/settings"
	"latex-workbench/internal/types"
)

// Problem part keys accepted by RenderProblem.
const (
	PartAbstract = "abstract"
	PartRestate  = "restate"
	PartAnalysis = "analysis"
	PartModeling = "modeling"
)

// problemParts lists the fixed children of every problem node, in display order.
var problemParts = []ProblemPartNode{
	{Key: PartAbstract, Title: "摘要片段"},
	{Key: PartRestate, Title: "问题重述"},
	{Key: PartAnalysis, Title: "问题分析"},
	{Key: PartModeling, Title: "模型与求解"},
}

// aidSuffixes are the helper snippet extensions listed by ListAidFiles.
var aidSuffixes = []string{".txt", ".md", ".tex"}

// App is the workbench controller. It owns the open document, its parsed
// outline, the marker pairs found in it and the pending replacements, and
// hands plain data to the command layer.
type App struct {
	config *config.ConfigManager
	recent *settings.Manager

	mu           sync.RWMutex
	docs         *editor.DocumentIO
	currentFile  string
	currentText  string
	extractor    *latex.Extractor
	pairs        []marker.Pair
	replacements map[string]string // keyed by marker label
}

// NewApp creates an App from a loaded configuration. Configuration reloads
// rebuild the document reader and writer.
func NewApp(cfgMgr *config.ConfigManager, recent *settings.Manager) (*App, error) {
	a := &App{
		config:       cfgMgr,
		recent:       recent,
		replacements: make(map[string]string),
	}
	if err := a.applyConfig(cfgMgr.Get()); err != nil {
		return nil, err
	}
	cfgMgr.OnChange(func(cfg *types.Config) {
		if err := a.applyConfig(cfg); err != nil {
			logger.Warn("configuration change not applied", logger.Err(err))
		}
	})
	return a, nil
}

func (a *App) applyConfig(cfg *types.Config) error {
	enc, err := editor.NewEncodingHandler(cfg.Encoding)
	if err != nil {
		return err
	}
	docs := editor.NewDocumentIO(enc, editor.NewBackupManager(cfg.BackupDir), cfg.BackupKeep)

	a.mu.Lock()
	a.docs = docs
	a.mu.Unlock()

	logger.Debug("document io configured",
		logger.String("encoding", enc.Preferred()),
		logger.String("backupDir", cfg.BackupDir),
		logger.Int("backupKeep", cfg.BackupKeep))
	return nil
}

// GetConfig returns the config manager
func (a *App) GetConfig() *config.ConfigManager {
	return a.config
}

// CurrentFile returns the path of the open document, or "".
func (a *App) CurrentFile() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.currentFile
}

// CurrentText returns the in-memory text of the open document.
func (a *App) CurrentText() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.currentText
}

// Extractor returns the parser over the last opened, reloaded or saved
// version of the document, or nil.
func (a *App) Extractor() *latex.Extractor {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.extractor
}

// RecentFiles returns the recent files list, most recent first.
func (a *App) RecentFiles() []string {
	return a.recent.RecentFiles()
}

func errNoDocument() error {
	return types.NewAppError(types.ErrInvalidInput, "no document open", nil)
}

// load reads path and parses it. Nothing in a is changed.
func (a *App) load(path string) (string, *latex.Extractor, error) {
	a.mu.RLock()
	docs := a.docs
	a.mu.RUnlock()

	text, err := docs.ReadText(path)
	if err != nil {
		return "", nil, err
	}
	e, err := latex.NewFromFile(path, a.config.Get().MaxLevel, latex.WithReadFunc(docs.ReadText))
	if err != nil {
		return "", nil, err
	}
	return text, e, nil
}

// OpenPath opens a document: reads it, parses it, moves it to the front of
// the recent files, drops pending replacements and rescans markers.
func (a *App) OpenPath(path string) (string, error) {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}

	text, e, err := a.load(path)
	if err != nil {
		return "", err
	}

	a.mu.Lock()
	a.currentFile = path
	a.currentText = text
	a.extractor = e
	a.replacements = make(map[string]string)
	a.mu.Unlock()

	if err := a.recent.AddRecent(path); err != nil {
		logger.Warn("failed to update recent files", logger.Err(err))
	}
	a.ScanMarkers(text)

	logger.Info("document opened",
		logger.String("path", path),
		logger.Int("lines", len(e.Lines())),
		logger.Int("sections", len(e.Sections())))
	return text, nil
}

// ReloadFromDisk re-reads the open document. Pending replacements are
// dropped. With no document open it returns "".
func (a *App) ReloadFromDisk() (string, error) {
	path := a.CurrentFile()
	if path == "" {
		return "", nil
	}

	text, e, err := a.load(path)
	if err != nil {
		return "", err
	}

	a.mu.Lock()
	a.currentText = text
	a.extractor = e
	a.replacements = make(map[string]string)
	a.mu.Unlock()

	a.ScanMarkers(text)
	logger.Info("document reloaded", logger.String("path", path))
	return text, nil
}

// SaveText writes text over the open document, backing up the previous
// version, and reparses it. Pending replacements are kept.
func (a *App) SaveText(text string) error {
	a.mu.RLock()
	path, docs := a.currentFile, a.docs
	a.mu.RUnlock()
	if path == "" {
		return errNoDocument()
	}

	if err := docs.WriteText(path, text); err != nil {
		return err
	}
	e, err := latex.NewFromFile(path, a.config.Get().MaxLevel, latex.WithReadFunc(docs.ReadText))
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.currentText = text
	a.extractor = e
	a.mu.Unlock()

	if err := a.recent.AddRecent(path); err != nil {
		logger.Warn("failed to update recent files", logger.Err(err))
	}
	a.ScanMarkers(text)
	logger.Info("document saved", logger.String("path", path))
	return nil
}

// QuickOpen opens a recent file. A file that no longer exists is removed
// from the recent list and reported as FILE_NOT_FOUND.
func (a *App) QuickOpen(path string) (string, error) {
	if path == "" {
		return "", types.NewAppError(types.ErrInvalidInput, "empty path", nil)
	}
	if _, err := os.Stat(path); err != nil {
		if rmErr := a.recent.RemoveRecent(path); rmErr != nil {
			logger.Warn("failed to update recent files", logger.Err(rmErr))
		}
		return "", types.NewIOError("file not found or removed", path, err)
	}
	return a.OpenPath(path)
}

// UpdateCurrentText replaces the in-memory text without saving or
// reparsing.
func (a *App) UpdateCurrentText(text string) {
	a.mu.Lock()
	a.currentText = text
	a.mu.Unlock()
}

// OutlineNode is one heading of the outline.
type OutlineNode struct {
	Title string `json:"title" yaml:"title"`
	Level int    `json:"level" yaml:"level"`
	Line  int    `json:"line" yaml:"line"`
}

// Outline is the heading list in document order.
type Outline []OutlineNode

// Text renders the outline indented by level.
func (o Outline) Text() string {
	var b strings.Builder
	for _, n := range o {
		b.WriteString(strings.Repeat("  ", max(n.Level-1, 0)))
		b.WriteString(n.Title)
		b.WriteString("  (line ")
		b.WriteString(strconv.Itoa(n.Line))
		b.WriteString(")\n")
	}
	return b.String()
}

// OutlineNodes lists the headings, code blocks excluded.
func (a *App) OutlineNodes() Outline {
	e := a.Extractor()
	if e == nil {
		return Outline{}
	}
	return lo.Map(e.Headings(), func(s latex.Section, _ int) OutlineNode {
		return OutlineNode{Title: s.Title, Level: s.Level, Line: s.LineNum}
	})
}

// SectionTitles lists the titles of the top level sections.
func (a *App) SectionTitles() []string {
	return lo.FilterMap(a.OutlineNodes(), func(n OutlineNode, _ int) (string, bool) {
		return n.Title, n.Level == 1
	})
}

// CodeNode is one code block.
type CodeNode struct {
	Ordinal   int    `json:"ordinal" yaml:"ordinal"`
	Title     string `json:"title" yaml:"title"`
	Label     string `json:"label,omitempty" yaml:"label,omitempty"`
	Lang      string `json:"lang,omitempty" yaml:"lang,omitempty"`
	StartLine int    `json:"start_line" yaml:"start_line"`
	EndLine   int    `json:"end_line" yaml:"end_line"`
	Level     int    `json:"level" yaml:"level"`
}

// CodeNodes is the code block list in document order.
type CodeNodes []CodeNode

// Text renders one code block per line.
func (c CodeNodes) Text() string {
	var b strings.Builder
	for _, n := range c {
		b.WriteString(n.Title)
		b.WriteString("  (lines ")
		b.WriteString(strconv.Itoa(n.StartLine))
		b.WriteString("-")
		b.WriteString(strconv.Itoa(n.EndLine))
		b.WriteString(")\n")
	}
	return b.String()
}

// CodeNodes lists the code blocks.
func (a *App) CodeNodes() CodeNodes {
	e := a.Extractor()
	if e == nil {
		return CodeNodes{}
	}
	return lo.Map(e.CodeBlocks(), func(cb latex.CodeBlock, _ int) CodeNode {
		return CodeNode{
			Ordinal:   cb.Ordinal,
			Title:     cb.Title,
			Label:     cb.Label,
			Lang:      cb.Lang,
			StartLine: cb.StartLine,
			EndLine:   cb.EndLine,
			Level:     latex.CodeBlockLevel,
		}
	})
}

// ProblemPartNode is one fixed child of a problem node.
type ProblemPartNode struct {
	Key   string `json:"key" yaml:"key"`
	Title string `json:"title" yaml:"title"`
}

// ProblemNode is one problem and its parts.
type ProblemNode struct {
	ID    string            `json:"id" yaml:"id"`
	Title string            `json:"title" yaml:"title"`
	Parts []ProblemPartNode `json:"parts" yaml:"parts"`
}

// ProblemTree is the problem list ordered by numeral.
type ProblemTree []ProblemNode

// Text renders each problem followed by its part keys.
func (p ProblemTree) Text() string {
	var b strings.Builder
	for _, n := range p {
		b.WriteString(n.Title)
		b.WriteString("\n")
		for _, part := range n.Parts {
			b.WriteString("  ")
			b.WriteString(part.Key)
			b.WriteString("  ")
			b.WriteString(part.Title)
			b.WriteString("\n")
		}
	}
	return b.String()
}

// ProblemTree lists the problems found in the restatement.
func (a *App) ProblemTree() ProblemTree {
	e := a.Extractor()
	if e == nil {
		return ProblemTree{}
	}
	return lo.Map(e.ProblemIDs(), func(id string, _ int) ProblemNode {
		parts := make([]ProblemPartNode, len(problemParts))
		copy(parts, problemParts)
		return ProblemNode{ID: id, Title: "问题" + id, Parts: parts}
	})
}

// RenderContent joins the lines from line up to the next heading at level
// or above. A code block start renders the block.
func (a *App) RenderContent(line, level int) string {
	e := a.Extractor()
	if e == nil {
		return ""
	}
	return strings.Join(e.Content(line, level), "\n")
}

// RenderSection joins the lines of the top level section titled title.
func (a *App) RenderSection(title string) string {
	e := a.Extractor()
	if e == nil {
		return ""
	}
	return strings.Join(e.Section(title), "\n")
}

// RenderProblem renders one part of problem id, or all four parts when
// part is empty, each followed by a blank line. Unknown parts render "".
func (a *App) RenderProblem(id, part string) (string, error) {
	e := a.Extractor()
	if e == nil || id == "" {
		return "", nil
	}
	if part != "" && !lo.ContainsBy(problemParts, func(p ProblemPartNode) bool { return p.Key == part }) {
		return "", nil
	}

	parts := e.ProblemParts(id)
	var abstract []string
	if part == "" || part == PartAbstract {
		var err error
		if abstract, err = e.AbstractParts(id); err != nil {
			return "", err
		}
	}

	var content []string
	switch part {
	case "":
		for _, piece := range [][]string{abstract, parts.Restatement, parts.Analysis, parts.Modeling} {
			if len(piece) > 0 {
				content = append(content, piece...)
				content = append(content, "")
			}
		}
	case PartAbstract:
		content = abstract
	case PartRestate:
		content = parts.Restatement
	case PartAnalysis:
		content = parts.Analysis
	case PartModeling:
		content = parts.Modeling
	}
	return strings.TrimSpace(strings.Join(content, "\n")), nil
}

// ExtractProblemToFile writes the abstract paragraph and the restatement,
// analysis and modeling of problem id to 问题<id>.tex beside the document.
func (a *App) ExtractProblemToFile(id string) (string, error) {
	e := a.Extractor()
	path := a.CurrentFile()
	if e == nil || path == "" {
		return "", errNoDocument()
	}

	parts := e.ProblemParts(id)
	abstract, err := e.AbstractParts(id)
	if err != nil {
		return "", err
	}
	if parts.Empty() || len(abstract) == 0 {
		return "", types.NewAppErrorWithDetails(types.ErrNotFound, "problem sections not found", "问题"+id, nil)
	}

	lines := append(append([]string{}, abstract...), parts.Lines()...)
	out := filepath.Join(filepath.Dir(path), "问题"+id+".tex")
	if err := e.SaveToFile(lines, out); err != nil {
		return "", err
	}
	logger.Info("problem extracted", logger.String("id", id), logger.String("output", out))
	return out, nil
}

// ExtractSectionToFile writes the top level section titled title, heading
// included, to <title>.tex beside the document.
func (a *App) ExtractSectionToFile(title string) (string, error) {
	e := a.Extractor()
	path := a.CurrentFile()
	if e == nil || path == "" {
		return "", errNoDocument()
	}

	content := e.Section(title)
	if len(content) == 0 {
		return "", types.NewAppErrorWithDetails(types.ErrNotFound, "section not found", title, nil)
	}

	out := filepath.Join(filepath.Dir(path), title+".tex")
	if err := e.SaveToFile(content, out); err != nil {
		return "", err
	}
	logger.Info("section extracted", logger.String("title", title), logger.String("output", out))
	return out, nil
}

// ScanMarkers rescans text for marker pairs and returns their labels in
// document order. Labels may repeat.
func (a *App) ScanMarkers(text string) []string {
	pairs := marker.FindPairs(text)
	if dups := marker.DuplicateLabels(pairs); len(dups) > 0 {
		logger.Warn("duplicate marker labels", logger.Strings("labels", dups))
	}

	a.mu.Lock()
	a.pairs = pairs
	a.mu.Unlock()

	return lo.Map(pairs, func(p marker.Pair, _ int) string { return p.Label() })
}

// Pairs returns the marker pairs from the last scan.
func (a *App) Pairs() []marker.Pair {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]marker.Pair, len(a.pairs))
	copy(out, a.pairs)
	return out
}

// PairContent returns the pending replacement for label, or the content of
// the first pair with that label.
func (a *App) PairContent(label string) string {
	label = strings.TrimSpace(label)
	if label == "" {
		return ""
	}

	a.mu.RLock()
	defer a.mu.RUnlock()
	if content, ok := a.replacements[label]; ok {
		return content
	}
	if p, ok := lo.Find(a.pairs, func(p marker.Pair) bool { return p.Label() == label }); ok {
		return p.Content
	}
	return ""
}

// PendingLabels returns the labels with a pending replacement, sorted.
func (a *App) PendingLabels() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	labels := lo.Keys(a.replacements)
	sort.Strings(labels)
	return labels
}

// ApplyReplacement records content as the replacement for label and
// applies every pending replacement to text. An unknown label leaves text
// unchanged. Markers are rescanned in the result.
func (a *App) ApplyReplacement(text, label, content string) string {
	label = strings.TrimSpace(label)
	if label == "" {
		return text
	}

	a.mu.Lock()
	known := lo.ContainsBy(a.pairs, func(p marker.Pair) bool { return p.Label() == label })
	if !known {
		a.mu.Unlock()
		logger.Warn("no marker pair with label", logger.String("label", label))
		return text
	}
	a.replacements[label] = content
	pending := make(map[string]string, len(a.replacements))
	for k, v := range a.replacements {
		pending[k] = v
	}
	a.mu.Unlock()

	newText, _ := marker.ReplaceByLabel(text, pending)
	a.ScanMarkers(newText)
	return newText
}

// SectionMatch is one fuzzy search hit.
type SectionMatch struct {
	OutlineNode `yaml:",inline"`
	Score       int `json:"score" yaml:"score"`
}

// SectionMatches are fuzzy hits, best first.
type SectionMatches []SectionMatch

// Text renders one hit per line.
func (m SectionMatches) Text() string {
	var b strings.Builder
	for _, s := range m {
		b.WriteString(strconv.Itoa(s.Line))
		b.WriteString("\t")
		b.WriteString(s.Title)
		b.WriteString("\n")
	}
	return b.String()
}

type outlineSource Outline

func (s outlineSource) String(i int) string {
	return strings.ToLower(s[i].Title)
}

func (s outlineSource) Len() int {
	return len(s)
}

// FindSections fuzzy matches query against the outline titles.
func (a *App) FindSections(query string) SectionMatches {
	query = strings.TrimSpace(query)
	if query == "" {
		return SectionMatches{}
	}

	nodes := a.OutlineNodes()
	matches := fuzzy.FindFrom(strings.ToLower(query), outlineSource(nodes))
	return lo.Map(matches, func(m fuzzy.Match, _ int) SectionMatch {
		return SectionMatch{OutlineNode: nodes[m.Index], Score: m.Score}
	})
}

// Check lints the in-memory text of the open document.
func (a *App) Check() (*check.Result, error) {
	if a.CurrentFile() == "" {
		return nil, errNoDocument()
	}
	text := a.CurrentText()
	e := latex.New(latex.SplitLines(text), a.config.Get().MaxLevel)
	return check.Document(text, e), nil
}

// AidFile is one helper snippet.
type AidFile struct {
	Name string `json:"name" yaml:"name"`
	Path string `json:"path" yaml:"path"`
}

// ListAidFiles lists the snippets under the configured aid directory,
// recursively, sorted by relative path ignoring case. A missing or
// unconfigured directory lists nothing.
func (a *App) ListAidFiles() ([]AidFile, error) {
	base := a.config.Get().AidDir
	if base == "" {
		return []AidFile{}, nil
	}
	if info, err := os.Stat(base); err != nil || !info.IsDir() {
		return []AidFile{}, nil
	}

	files := []AidFile{}
	err := filepath.WalkDir(base, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !lo.Contains(aidSuffixes, strings.ToLower(filepath.Ext(p))) {
			return nil
		}
		rel, err := filepath.Rel(base, p)
		if err != nil {
			return err
		}
		files = append(files, AidFile{Name: filepath.ToSlash(rel), Path: p})
		return nil
	})
	if err != nil {
		return nil, types.NewIOError("failed to list aid files", base, err)
	}

	sort.SliceStable(files, func(i, j int) bool {
		return strings.ToLower(files[i].Name) < strings.ToLower(files[j].Name)
	})
	return files, nil
}

// ReadAidFile reads a snippet by its name relative to the aid directory.
func (a *App) ReadAidFile(name string) (string, error) {
	base := a.config.Get().AidDir
	if base == "" {
		return "", types.NewAppError(types.ErrConfig, "aid_dir is not configured", nil)
	}

	p := filepath.Join(base, filepath.FromSlash(name))
	rel, err := filepath.Rel(base, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", types.NewAppErrorWithDetails(types.ErrInvalidInput, "aid file outside aid_dir", name, nil)
	}

	a.mu.RLock()
	docs := a.docs
	a.mu.RUnlock()
	return docs.ReadText(p)
}
