package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/sales-assistant/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:          "sales-assistant",
	Short:        "Sales insight reports from public company data",
	Long:         "Fetches a target company and its competitors, finds competitor mentions, reads an optional PDF and asks a language model for a sales one-pager.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		loaded, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		applyLogFlags(cmd, &loaded.Log)
		cfg = loaded

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(*cobra.Command, []string) {
		_ = zap.L().Sync()
	},
}

// applyLogFlags lets --log-level and --log-format win over config and env.
func applyLogFlags(cmd *cobra.Command, log *config.LogConfig) {
	if f := cmd.Flags().Lookup("log-level"); f != nil && f.Changed {
		log.Level = f.Value.String()
	}
	if f := cmd.Flags().Lookup("log-format"); f != nil && f.Changed {
		log.Format = f.Value.String()
	}
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "log format (json or console)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
