package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/lexiz/internal/config"
	"github.com/abhisek/lexiz/internal/logger"
)

var (
	cfg *config.Config
	log *logger.Logger
)

var rootCmd = &cobra.Command{
	Use:   "lexiz",
	Short: "Spaced-repetition vocabulary trainer",
	Long:  "lexiz schedules vocabulary reviews with SM-2, tracks mastery per word and runs study sessions in the terminal.",
	Args:  cobra.NoArgs,

	SilenceUsage: true,

	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			log.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStudy(cmd, "")
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Assigned here rather than in the literal: setup refers back to rootCmd.
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return setup(cmd)
	}

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "Config file (default $XDG_CONFIG_HOME/lexiz/config.yaml)")
	pf.String("db", "", "Database DSN; a file path for sqlite (overrides LEXIZ_DB)")
	pf.String("driver", "", "Database driver: sqlite or postgres")
	pf.String("user", "", "Learner ID (overrides LEXIZ_USER)")
	pf.String("log-level", "", "Log level: debug, info, warn, error")
	pf.Bool("ephemeral", false, "Keep everything in memory; nothing is saved")

	rootCmd.AddCommand(studyCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(dueCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(remindersCmd)
	rootCmd.AddCommand(hintCmd)
	rootCmd.AddCommand(llmCmd)
	rootCmd.AddCommand(versionCmd)
}

// interactive commands own the terminal, so their logs go to a file.
func interactive(cmd *cobra.Command) bool {
	return cmd == rootCmd || cmd == studyCmd
}

// setup resolves configuration and builds the logger.
func setup(cmd *cobra.Command) error {
	v := config.New()
	if err := config.BindFlags(v, cmd.Flags()); err != nil {
		return err
	}
	path, _ := cmd.Flags().GetString("config")

	c, err := config.Load(v, path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	opts := logger.Options{Mode: c.Log.Mode, Level: c.Log.Level, Path: c.Log.Path}
	if opts.Path == "" && interactive(cmd) {
		if opts.Path, err = c.LogFile(); err != nil {
			return err
		}
	}
	l, err := logger.New(opts)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}

	cfg, log = c, l
	if c.File != "" {
		log.Debug("config loaded", "file", c.File)
	}
	return nil
}
