// Package main implements the browsernerd CLI: an MCP server that drives a
// single recorded browser session.
package main

import (
	"fmt"
	"os"

	"browsernerd/internal/config"
	"browsernerd/internal/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	// Global flags
	verbose    bool
	configPath string

	cfg  *config.Config
	logs *logging.Logger
)

var rootCmd = &cobra.Command{
	Use:   "browsernerd",
	Short: "browsernerd - recorded browser automation over MCP",
	Long: `browsernerd exposes one browser session as MCP tools on stdio.

Every session is traced and, unless disabled, recorded to video. Failed
actions leave a screenshot behind. Artifacts land in screenshots/, traces/
and videos/ under the configured artifacts root.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if verbose {
			loaded.Logging.Level = "debug"
		}
		l, err := logging.New(loaded.Logging)
		if err != nil {
			return err
		}
		cfg, logs = loaded, l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logs != nil {
			_ = logs.Sync()
		}
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the browsernerd version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", cfg.Name, version)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Config file")

	artifactsListCmd.Flags().StringVar(&listKind, "kind", "", "Only list screenshot, trace or video artifacts")
	artifactsListCmd.Flags().IntVar(&listLimit, "limit", 20, "Maximum rows (0 = all)")
	artifactsCmd.AddCommand(artifactsListCmd)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(artifactsCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// applyReload is the config watcher callback. Only the log level is safe to
// change while serving.
func applyReload(l *logging.Logger) func(*config.Config) {
	return func(next *config.Config) {
		level := next.Logging.ZapLevel()
		if verbose {
			level = zapcore.DebugLevel
		}
		if level != l.Level() {
			l.SetLevel(level)
		}
	}
}
