package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"latex-workbench/internal/check"
	"latex-workbench/internal/config"
	"latex-workbench/internal/types"
)

var (
	showLine    int
	showLevel   int
	problemPart string
	saveToFile  bool
	markerLabel string
	replaceSets []string
	replaceSave bool
	configForce bool
)

func init() {
	showCmd.Flags().IntVar(&showLine, "line", 0, "0-based line of the heading or code block")
	showCmd.Flags().IntVar(&showLevel, "level", 1, "level of the heading at --line")

	problemCmd.Flags().StringVar(&problemPart, "part", "", "abstract, restate, analysis or modeling (default: all)")
	problemCmd.Flags().BoolVar(&saveToFile, "save", false, "write the problem to 问题<id>.tex beside the document")
	sectionCmd.Flags().BoolVar(&saveToFile, "save", false, "write the section to <title>.tex beside the document")

	markersCmd.Flags().StringVar(&markerLabel, "label", "", "print the content of the pair with this label")

	replaceCmd.Flags().StringArrayVar(&replaceSets, "set", nil, "label=content or label=@file, repeatable")
	replaceCmd.Flags().BoolVar(&replaceSave, "write", false, "save the result over the document (a backup is kept)")
	_ = replaceCmd.MarkFlagRequired("set")

	configInitCmd.Flags().BoolVar(&configForce, "force", false, "overwrite an existing config file")
	configCmd.AddCommand(configInitCmd, configShowCmd, configPathCmd)
	aidCmd.AddCommand(aidListCmd, aidShowCmd)

	rootCmd.AddCommand(
		outlineCmd,
		codeBlocksCmd,
		problemsCmd,
		showCmd,
		problemCmd,
		sectionCmd,
		markersCmd,
		replaceCmd,
		findCmd,
		checkCmd,
		watchCmd,
		aidCmd,
		recentCmd,
		configCmd,
		versionCmd,
	)
}

// openDocument opens args[pos], or the most recently opened file when the
// argument is absent.
func openDocument(args []string, pos int) error {
	if len(args) > pos {
		_, err := workbench.OpenPath(args[pos])
		return err
	}
	recent := workbench.RecentFiles()
	if len(recent) == 0 {
		return types.NewAppError(types.ErrInvalidInput, "no file given and no recent file", nil)
	}
	_, err := workbench.QuickOpen(recent[0])
	return err
}

var outlineCmd = &cobra.Command{
	Use:   "outline [file]",
	Short: "List the headings of a document",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := openDocument(args, 0); err != nil {
			return err
		}
		return render(cmd, workbench.OutlineNodes())
	},
}

var codeBlocksCmd = &cobra.Command{
	Use:     "codeblocks [file]",
	Aliases: []string{"code"},
	Short:   "List the code blocks of a document",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := openDocument(args, 0); err != nil {
			return err
		}
		return render(cmd, workbench.CodeNodes())
	},
}

var problemsCmd = &cobra.Command{
	Use:   "problems [file]",
	Short: "List the problems named in the restatement",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := openDocument(args, 0); err != nil {
			return err
		}
		return render(cmd, workbench.ProblemTree())
	},
}

var showCmd = &cobra.Command{
	Use:   "show [file]",
	Short: "Print the content under a heading or code block",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := openDocument(args, 0); err != nil {
			return err
		}
		return render(cmd, workbench.RenderContent(showLine, showLevel))
	},
}

var problemCmd = &cobra.Command{
	Use:   "problem <id> [file]",
	Short: "Print or extract the fragments of one problem",
	Example: `  latex-workbench problem 一 paper.tex
  latex-workbench problem 二 paper.tex --part analysis
  latex-workbench problem 二 paper.tex --save`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := openDocument(args, 1); err != nil {
			return err
		}
		if saveToFile {
			out, err := workbench.ExtractProblemToFile(args[0])
			if err != nil {
				return err
			}
			return render(cmd, out)
		}
		text, err := workbench.RenderProblem(args[0], problemPart)
		if err != nil {
			return err
		}
		return render(cmd, text)
	},
}

var sectionCmd = &cobra.Command{
	Use:   "section <title> [file]",
	Short: "Print or extract a top level section by exact title",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := openDocument(args, 1); err != nil {
			return err
		}
		if saveToFile {
			out, err := workbench.ExtractSectionToFile(args[0])
			if err != nil {
				return err
			}
			return render(cmd, out)
		}
		return render(cmd, workbench.RenderSection(args[0]))
	},
}

// markerView is one marker pair as listed by the markers command.
type markerView struct {
	Index   int    `json:"index" yaml:"index"`
	Label   string `json:"label" yaml:"label"`
	Start   int    `json:"start" yaml:"start"`
	End     int    `json:"end" yaml:"end"`
	Content string `json:"content" yaml:"content"`
}

type markerViews []markerView

func (m markerViews) Text() string {
	var b strings.Builder
	for _, v := range m {
		fmt.Fprintf(&b, "%d\t%s\t(%d bytes)\n", v.Index, v.Label, len(v.Content))
	}
	return b.String()
}

var markersCmd = &cobra.Command{
	Use:   "markers [file]",
	Short: "List the <-----label-----> marker pairs",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := openDocument(args, 0); err != nil {
			return err
		}
		if markerLabel != "" {
			return render(cmd, workbench.PairContent(markerLabel))
		}
		views := markerViews{}
		for _, p := range workbench.Pairs() {
			views = append(views, markerView{
				Index:   p.Index,
				Label:   p.Label(),
				Start:   p.Start,
				End:     p.End,
				Content: p.Content,
			})
		}
		return render(cmd, views)
	},
}

// parseSet splits label=content; content starting with @ names a file.
func parseSet(s string) (string, string, error) {
	label, value, ok := strings.Cut(s, "=")
	if !ok || strings.TrimSpace(label) == "" {
		return "", "", types.NewAppErrorWithDetails(types.ErrInvalidInput, "expected label=content", s, nil)
	}
	if strings.HasPrefix(value, "@") {
		name := strings.TrimPrefix(value, "@")
		data, err := os.ReadFile(name)
		if err != nil {
			return "", "", types.NewIOError("failed to read replacement", name, err)
		}
		value = strings.TrimRight(string(data), "\r\n")
	}
	return strings.TrimSpace(label), value, nil
}

type replaceResult struct {
	Text    string   `json:"text" yaml:"text"`
	Applied []string `json:"applied" yaml:"applied"`
	Saved   string   `json:"saved,omitempty" yaml:"saved,omitempty"`
}

var replaceCmd = &cobra.Command{
	Use:     "replace [file]",
	Short:   "Replace the content of marker pairs",
	Example: `  latex-workbench replace paper.tex --set 摘要=@abstract.txt --set 关键词=优化 --write`,
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := openDocument(args, 0); err != nil {
			return err
		}

		text := workbench.CurrentText()
		for _, set := range replaceSets {
			label, content, err := parseSet(set)
			if err != nil {
				return err
			}
			text = workbench.ApplyReplacement(text, label, content)
		}
		workbench.UpdateCurrentText(text)

		result := replaceResult{Text: text, Applied: workbench.PendingLabels()}
		if replaceSave {
			if err := workbench.SaveText(text); err != nil {
				return err
			}
			result.Saved = workbench.CurrentFile()
		}

		if format.IsStructured() {
			return render(cmd, result)
		}
		if replaceSave {
			return render(cmd, fmt.Sprintf("saved %s (%s)", result.Saved, strings.Join(result.Applied, ", ")))
		}
		return render(cmd, text)
	},
}

var findCmd = &cobra.Command{
	Use:   "find <query> [file]",
	Short: "Fuzzy search the outline",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := openDocument(args, 1); err != nil {
			return err
		}
		return render(cmd, workbench.FindSections(args[0]))
	},
}

var checkCmd = &cobra.Command{
	Use:   "check [file]",
	Short: "Report structural problems in a document",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := openDocument(args, 0); err != nil {
			return err
		}
		result, err := workbench.Check()
		if err != nil {
			return err
		}
		if format.IsStructured() {
			err = render(cmd, result)
		} else {
			err = render(cmd, check.FormatReport(workbench.CurrentFile(), result))
		}
		if err != nil {
			return err
		}
		if !result.Valid {
			return fmt.Errorf("check failed: %s", check.Summary(result))
		}
		return nil
	},
}

// docSummary is printed by watch after every reload.
func docSummary(a *App) string {
	summary := fmt.Sprintf("%s: %d headings, %d code blocks, %d problems, %d marker pairs",
		filepath.Base(a.CurrentFile()),
		len(a.OutlineNodes()),
		len(a.CodeNodes()),
		len(a.ProblemTree()),
		len(a.Pairs()))
	if result, err := a.Check(); err == nil {
		summary += "; " + check.Summary(result)
	}
	return summary
}

var watchCmd = &cobra.Command{
	Use:   "watch [file]",
	Short: "Reparse a document every time it is saved",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := openDocument(args, 0); err != nil {
			return err
		}
		cfgMgr.WatchConfig()
		fmt.Fprintln(cmd.OutOrStdout(), docSummary(workbench))
		return workbench.Watch(cmd.Context(), func(string) {
			fmt.Fprintln(cmd.OutOrStdout(), docSummary(workbench))
		})
	},
}

var aidCmd = &cobra.Command{
	Use:   "aid",
	Short: "Helper snippets from aid_dir",
}

var aidListCmd = &cobra.Command{
	Use:   "list",
	Short: "List helper snippets",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		files, err := workbench.ListAidFiles()
		if err != nil {
			return err
		}
		if format.IsStructured() {
			return render(cmd, files)
		}
		names := make([]string, len(files))
		for i, f := range files {
			names[i] = f.Name
		}
		return render(cmd, names)
	},
}

var aidShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Print a helper snippet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := workbench.ReadAidFile(args[0])
		if err != nil {
			return err
		}
		return render(cmd, text)
	},
}

var recentCmd = &cobra.Command{
	Use:   "recent",
	Short: "List recently opened files",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		files := workbench.RecentFiles()
		if format.IsStructured() {
			return render(cmd, files)
		}
		lines := make([]string, len(files))
		for i, f := range files {
			lines[i] = strconv.Itoa(i+1) + "  " + f
		}
		return render(cmd, lines)
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a default config file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var path string
		if len(args) > 0 {
			path = args[0]
		} else {
			dir, err := config.DefaultDir()
			if err != nil {
				return err
			}
			path = filepath.Join(dir, config.DefaultConfigFileName)
		}
		if _, err := os.Stat(path); err == nil && !configForce {
			return types.NewAppErrorWithDetails(types.ErrInvalidInput, "config file already exists, use --force", path, nil)
		}
		if err := config.WriteDefault(path); err != nil {
			return err
		}
		return render(cmd, path)
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return render(cmd, cfgMgr.Get())
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file in use",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return render(cmd, cfgMgr.GetConfigPath())
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "latex-workbench %s\n", version)
		fmt.Fprintf(cmd.OutOrStdout(), "  Commit: %s\n", gitCommit)
	},
}
