package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// errClassMissing signals that none of the required classes was detected.
var errClassMissing = errors.New("required class not detected")

var logger = zap.NewNop()

var rootCmd = &cobra.Command{
	Use:   "yolov5",
	Short: "YOLOv5 object detection on images and cameras",
	Long: `Run a YOLOv5 ONNX model over images or a camera and print the detections.

Settings are read, lowest precedence first, from the built-in defaults, a YAML
config file (--config), YOLOV5_* environment variables and command line flags.

Examples:
  yolov5 detect --model yolov5s.onnx images/            # Detect in a directory
  yolov5 detect --model yolov5s.onnx -o json a.jpg b.png
  yolov5 detect --require-class person frame.jpg        # Exit 2 without a person
  yolov5 camera --model yolov5s.onnx --source 0 --frames 100
  yolov5 bench --model yolov5s.onnx --batch 4 images/`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		jsonLogs, _ := cmd.Flags().GetBool("json-logs")
		verbose, _ := cmd.Flags().GetCount("verbose")
		l, err := newLogger(jsonLogs, verbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logger = l
		zap.ReplaceGlobals(l)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "YAML config file")
	rootCmd.PersistentFlags().Bool("json-logs", false, "Write logs as JSON")
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase log verbosity (-v info, -vv debug)")

	rootCmd.AddCommand(detectCmd)
	rootCmd.AddCommand(cameraCmd)
	rootCmd.AddCommand(benchCmd)
}

// newLogger builds a logger writing to stderr so that stdout carries only results.
func newLogger(jsonLogs bool, verbose int) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	if jsonLogs {
		cfg = zap.NewProductionConfig()
	}
	cfg.OutputPaths = []string{"stderr"}

	level := zapcore.WarnLevel
	switch {
	case verbose >= 2:
		level = zapcore.DebugLevel
	case verbose == 1:
		level = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(level)

	return cfg.Build()
}

func main() {
	err := rootCmd.Execute()
	_ = logger.Sync()

	switch {
	case err == nil:
	case errors.Is(err, errClassMissing):
		os.Exit(2)
	default:
		os.Exit(1)
	}
}
