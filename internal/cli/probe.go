package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"proctorcam/internal/alert"
	"proctorcam/internal/app"
	"proctorcam/internal/logger"
	"proctorcam/internal/model"
	"proctorcam/internal/oracle"
	"proctorcam/internal/vision"
)

var probeImage string

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Send one image to the remote detector and print what it finds",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.OracleAPIKey == "" {
			return errors.New("ORACLE_API_KEY is not set")
		}

		frame, err := vision.LoadFrame(probeImage)
		if err != nil {
			return err
		}
		defer frame.Close()

		jpeg, err := frame.Encode(cfg.OracleInputSize)
		if err != nil {
			return err
		}

		client := oracle.NewClient(app.OracleConfig(cfg), logger.New(os.Stderr))
		predictions, err := client.Detect(cmd.Context(), jpeg)
		if err != nil {
			return fmt.Errorf("detector call failed: %w", err)
		}

		alertCfg := app.AlertConfig(cfg)
		return printPredictions(cmd.OutOrStdout(), predictions, alertCfg)
	},
}

func init() {
	probeCmd.Flags().StringVarP(&probeImage, "image", "i", "", "Path to a JPEG or PNG image")
	probeCmd.MarkFlagRequired("image")
	rootCmd.AddCommand(probeCmd)
}

func printPredictions(w io.Writer, predictions []model.Prediction, cfg alert.Config) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CLASS\tCONFIDENCE\tBOX\tAREA")
	for _, p := range predictions {
		fmt.Fprintf(tw, "%s\t%.2f\t%d,%d %dx%d\t%.0f\n", p.Class, p.Confidence, p.X, p.Y, p.Width, p.Height, p.Area())
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if p, ok := alert.FindSuspicious(predictions, cfg.ObjectMinConfidence, cfg.ObjectMinArea); ok {
		fmt.Fprintf(w, "\n%s: %s (%d%%)\n", alert.SuspiciousObject.Message(), p.Class, int(p.Confidence*100))
	} else {
		fmt.Fprintf(w, "\nNo suspicious object (confidence >= %.2f, area >= %d)\n", cfg.ObjectMinConfidence, cfg.ObjectMinArea)
	}
	return nil
}
