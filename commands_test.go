package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runCLI executes the root command with args against a temporary home
// directory and returns what it printed.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
		resetFlags(rootCmd)
	}()

	err := rootCmd.Execute()
	return out.String(), err
}

// resetFlags restores every flag to its default so that one test's flags
// do not leak into the next.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.PersistentFlags().VisitAll(reset)
	cmd.Flags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func setupCLI(t *testing.T) (string, string) {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfgPath := filepath.Join(home, "config.yaml")
	writeFile(t, cfgPath, "log:\n  file: "+filepath.Join(home, "wb.log")+"\n")

	paper := filepath.Join(home, "paper.tex")
	writeFile(t, paper, paperText)
	return cfgPath, paper
}

func TestCLIOutline(t *testing.T) {
	cfgPath, paper := setupCLI(t)

	out, err := runCLI(t, "outline", paper, "--config", cfgPath, "-o", "json")
	require.NoError(t, err)

	var nodes []OutlineNode
	require.NoError(t, json.Unmarshal([]byte(out), &nodes))
	require.Len(t, nodes, 3)
	assert.Equal(t, "问题一的分析", nodes[1].Title)

	// Without a file the most recent one is used.
	out, err = runCLI(t, "problems", "--config", cfgPath, "-o", "text")
	require.NoError(t, err)
	assert.Contains(t, out, "问题一\n")

	out, err = runCLI(t, "recent", "--config", cfgPath, "-o", "text")
	require.NoError(t, err)
	assert.Contains(t, out, "1  "+paper)
}

func TestCLIMaxLevelFlag(t *testing.T) {
	cfgPath, paper := setupCLI(t)
	writeFile(t, paper, "\\section{A}\n\\subsection{B}\n")

	out, err := runCLI(t, "outline", paper, "--config", cfgPath, "-o", "json", "--max-level", "1")
	require.NoError(t, err)

	var nodes []OutlineNode
	require.NoError(t, json.Unmarshal([]byte(out), &nodes))
	assert.Len(t, nodes, 1)
}

func TestCLIReplace(t *testing.T) {
	cfgPath, paper := setupCLI(t)
	content := filepath.Join(filepath.Dir(paper), "abstract.txt")
	writeFile(t, content, "新摘要\n")

	out, err := runCLI(t, "replace", paper, "--config", cfgPath, "-o", "text",
		"--set", "摘要=@"+content, "--write")
	require.NoError(t, err)
	assert.Contains(t, out, "saved "+paper)

	data, err := os.ReadFile(paper)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<-----摘要----->\n新摘要\n<-----摘要----->")
}

func TestCLICheckFails(t *testing.T) {
	cfgPath, paper := setupCLI(t)
	writeFile(t, paper, "\\section{A}\n\\begin{codeblock}\n")

	out, err := runCLI(t, "check", paper, "--config", cfgPath, "-o", "text")
	assert.Error(t, err)
	assert.Contains(t, out, "code block is never closed")
}

func TestCLIVersion(t *testing.T) {
	cfgPath, _ := setupCLI(t)

	out, err := runCLI(t, "version", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "latex-workbench dev")
}

func TestCLIBadOutputFormat(t *testing.T) {
	cfgPath, paper := setupCLI(t)

	_, err := runCLI(t, "outline", paper, "--config", cfgPath, "-o", "xml")
	assert.Error(t, err)
}

func TestParseSet(t *testing.T) {
	label, value, err := parseSet(" 关键词 =优化=模型")
	require.NoError(t, err)
	assert.Equal(t, "关键词", label)
	assert.Equal(t, "优化=模型", value)

	_, _, err = parseSet("novalue")
	assert.Error(t, err)

	_, _, err = parseSet("x=@/does/not/exist")
	assert.Error(t, err)
}
