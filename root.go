package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"latex-workbench/internal/config"
	"latex-workbench/internal/logger"
	"latex-workbench/internal/output"
	"latex-workbench/internal/settings"
)

var (
	cfgFile      string
	outputFormat string
	maxLevel     int
	verbose      bool

	format    output.Format
	cfgMgr    *config.ConfigManager
	workbench *App
)

var rootCmd = &cobra.Command{
	Use:   "latex-workbench",
	Short: "Navigate and edit competition paper LaTeX sources",
	Long: `latex-workbench reads a LaTeX paper and exposes its structure:
the heading outline, fenced code blocks, per-problem fragments of the
abstract, restatement, analysis and modeling sections, and the
<-----label-----> marker pairs used as fill-in templates.

Document commands take the .tex file as their last argument. Without it
the most recently opened file is used.`,
	SilenceUsage:       true,
	PersistentPreRunE:  setup,
	PersistentPostRunE: teardown,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.latex-workbench/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "text", "output format: text, yaml or json",
	)
	rootCmd.PersistentFlags().IntVar(
		&maxLevel, "max-level", config.DefaultMaxLevel, "deepest heading level in the outline (1-4)",
	)
	rootCmd.PersistentFlags().BoolVarP(
		&verbose, "verbose", "v", false, "log debug output to stderr",
	)
}

// setup loads configuration, starts logging and builds the workbench before
// any command runs.
func setup(cmd *cobra.Command, args []string) error {
	var err error
	if format, err = output.ParseFormat(outputFormat); err != nil {
		return err
	}

	if cfgMgr, err = config.NewConfigManager(cfgFile); err != nil {
		return err
	}
	if err := cfgMgr.BindFlag("max_level", cmd.Flags().Lookup("max-level")); err != nil {
		return err
	}
	initLogging()

	recentPath, err := settings.DefaultPath()
	if err != nil {
		return err
	}
	recent := settings.NewManagerWithPath(recentPath, cfgMgr.Get().RecentMax)

	workbench, err = NewApp(cfgMgr, recent)
	return err
}

func initLogging() {
	cfg := cfgMgr.Get()
	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = logger.LevelInfo
	}
	if verbose {
		level = logger.LevelDebug
	}

	logCfg := logger.DefaultConfig()
	logCfg.LogFilePath = cfg.Log.File
	logCfg.Level = level
	logCfg.EnableConsole = cfg.Log.Console || verbose
	if err := logger.Init(logCfg); err != nil {
		fmt.Fprintf(os.Stderr, "warning: logging disabled: %v\n", err)
		return
	}
	logger.Debug("logging initialized",
		logger.String("file", logCfg.LogFilePath),
		logger.String("level", level.String()))
}

func teardown(cmd *cobra.Command, args []string) error {
	return logger.Close()
}

// render writes data in the selected output format.
func render(cmd *cobra.Command, data any) error {
	return output.To(cmd.OutOrStdout(), format, data)
}
