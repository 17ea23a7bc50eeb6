// Package main provides the luckin CLI: harvest job postings into PostgreSQL
// and recommend the ones most relevant to a set of skills.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jonathan/luckin/internal/config"
	"github.com/jonathan/luckin/internal/logger"
)

var (
	configPath string
	logLevel   string
	logFormat  string

	cfg *config.Config
	log = zerolog.Nop()
)

var rootCmd = &cobra.Command{
	Use:           "luckin",
	Short:         "Job posting harvester and relevance ranker",
	Long:          "luckin pages through job sites with a headless browser, stores the postings in PostgreSQL, and ranks stored postings against a set of skills with Gemini.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		return loadRuntime()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a YAML or JSON config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides LOG_LEVEL")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format (json, pretty); overrides LOG_FORMAT")
}

// loadRuntime resolves configuration and installs the logger.
func loadRuntime() error {
	loaded, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if logLevel != "" {
		loaded.LogLevel = logLevel
	}
	if logFormat != "" {
		loaded.LogFormat = logFormat
	}
	if err := loaded.Validate(); err != nil {
		return err
	}

	cfg = loaded
	log = logger.Init(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	return nil
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
