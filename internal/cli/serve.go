package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"proctorcam/internal/app"
	"proctorcam/internal/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Open the camera and serve the video stream and alert status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(ctx context.Context) error {
	l, err := logger.NewLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer l.Close()

	application, err := app.NewApp(cfg, l)
	if err != nil {
		l.Error("Failed to start: %v", err)
		return err
	}
	defer application.Close()

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		l.Error("Server stopped: %v", err)
		return err
	}
	l.Info("👋 Bye")
	return nil
}
