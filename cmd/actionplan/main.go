package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"actionplan/internal/platform/config"
	"actionplan/internal/platform/logger"
)

var (
	layoutFile string
	logLevel   string
	logFormat  string
)

var rootCmd = &cobra.Command{
	Use:           "actionplan",
	Short:         "Ingest audit action-plan workbooks and track their findings",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&layoutFile, "layout", "", "YAML layout file overriding cell positions (env LAYOUT_FILE)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (env LOG_LEVEL)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: json or text (env LOG_FORMAT)")

	rootCmd.AddCommand(serveCmd, inspectCmd, extractCmd, importCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// loadConfig reads the environment and applies command-line overrides. Logs
// go to logOut.
func loadConfig(logOut io.Writer) (config.Server, *slog.Logger, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return config.Server{}, nil, err
	}
	if layoutFile != "" {
		cfg.LayoutFile = layoutFile
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if logFormat != "" {
		cfg.LogFormat = logFormat
	}
	return cfg, logger.NewWithWriter(logOut, cfg.LogFormat, cfg.LogLevel), nil
}
