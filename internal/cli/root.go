// Package cli holds the proctorcam commands.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"proctorcam/internal/config"
)

// Version is the application version.
const Version = "0.1.0"

var (
	configFile string
	v          = viper.New()
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:     "proctorcam",
	Short:   "Real-time proctoring monitor for a single camera",
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(v, configFile)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		return nil
	},
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

// Execute runs the root command with a context cancelled on SIGINT/SIGTERM.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to a config file (default: ./config.yaml if present)")
	rootCmd.PersistentFlags().Int("port", 0, "HTTP port (overrides PORT)")
	rootCmd.PersistentFlags().String("log-dir", "", "Log directory (overrides LOG_DIR)")
	v.BindPFlag("port", rootCmd.PersistentFlags().Lookup("port"))
	v.BindPFlag("log_dir", rootCmd.PersistentFlags().Lookup("log-dir"))
}
