package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/danieldreier/kanji-srs/internal/config"
	"github.com/danieldreier/kanji-srs/internal/srs"
	"github.com/danieldreier/kanji-srs/internal/storage"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// newRootCmd builds the command tree. Running the root command serves MCP
// over stdio.
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "kanjisrs",
		Short: "Spaced-repetition kanji trainer",
		Long: "kanjisrs schedules kanji meaning and reading reviews with SM-2 or FSRS " +
			"and serves multiple-choice quizzes to MCP clients over stdio.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd)
		},
	}

	rootCmd.PersistentFlags().String("db", "", "Path to the database file, SQLite or .json (overrides KANJISRS_DB env var)")
	rootCmd.PersistentFlags().String("config", "", "Path to the YAML config file (overrides KANJISRS_CONFIG env var)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newImportCmd())
	rootCmd.AddCommand(newSessionCmd())
	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newResetCmd())
	rootCmd.AddCommand(newConfigCmd())
	return rootCmd
}

// Execute runs the command line.
func Execute() error {
	return newRootCmd().Execute()
}

// newLogger builds the development logger. Output goes to stderr because
// stdout carries the MCP transport.
func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("error parsing log level: %w", err)
	}
	logConfig := zap.NewDevelopmentConfig()
	logConfig.Level = zap.NewAtomicLevelAt(lvl)
	logConfig.OutputPaths = []string{"stderr"}
	logConfig.ErrorOutputPaths = []string{"stderr"}
	return logConfig.Build(zap.AddStacktrace(zapcore.ErrorLevel))
}

// resolveDBPath returns the database path using --db flag (highest priority),
// then KANJISRS_DB env var, then the default XDG path.
func resolveDBPath(cmd *cobra.Command) (string, error) {
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		return p, nil
	}
	return storage.DefaultDBPath()
}

// resolveConfigPath returns the config path and whether it was named
// explicitly, in which case it must exist.
func resolveConfigPath(cmd *cobra.Command) (string, bool, error) {
	if p, _ := cmd.Flags().GetString("config"); p != "" {
		return p, true, nil
	}
	p, err := config.DefaultPath()
	return p, false, err
}

func loadConfig(cmd *cobra.Command) (srs.Config, error) {
	path, explicit, err := resolveConfigPath(cmd)
	if err != nil {
		return srs.Config{}, err
	}
	return config.Load(path, explicit)
}

// openStore opens a JSON file store for *.json paths and SQLite otherwise.
func openStore(ctx context.Context, path string, cfg srs.Config, logger *zap.Logger) (storage.Store, error) {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return storage.OpenFileStore(path, cfg, logger)
	}
	return storage.OpenSQLite(ctx, path, cfg, logger)
}

// openService wires logger, config, store and service for a command. The
// returned cleanup closes the store and flushes the logger.
func openService(cmd *cobra.Command) (*StudyService, func(), error) {
	level, _ := cmd.Flags().GetString("log-level")
	logger, err := newLogger(level)
	if err != nil {
		return nil, nil, err
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		logger.Error("Error loading config", zap.Error(err))
		return nil, nil, err
	}

	dbPath, err := resolveDBPath(cmd)
	if err != nil {
		return nil, nil, err
	}
	store, err := openStore(cmd.Context(), dbPath, cfg, logger)
	if err != nil {
		logger.Error("Error opening store", zap.String("path", dbPath), zap.Error(err))
		return nil, nil, err
	}
	logger.Debug("Store opened", zap.String("path", dbPath), zap.String("strategy", string(cfg.Strategy)))

	svc, err := NewStudyService(store, cfg, logger)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	cleanup := func() {
		if err := store.Close(); err != nil {
			logger.Warn("Error closing store", zap.Error(err))
		}
		_ = logger.Sync()
	}
	return svc, cleanup, nil
}
