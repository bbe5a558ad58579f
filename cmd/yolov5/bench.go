package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/nvr-ai/go-yolov5/benchmark"
	"github.com/nvr-ai/go-yolov5/images"
	"github.com/nvr-ai/go-yolov5/inference"
	"github.com/nvr-ai/go-yolov5/util"
)

var benchCmd = &cobra.Command{
	Use:   "bench [paths...]",
	Short: "Measure end-to-end detection latency and throughput",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadSettings(cmd.Flags())
		if err != nil {
			return err
		}
		scenario := benchmark.Scenario{Name: cfg.Model}
		scenario.BatchSize, _ = cmd.Flags().GetInt("batch")
		scenario.Iterations, _ = cmd.Flags().GetInt("iterations")
		scenario.WarmupRuns, _ = cmd.Flags().GetInt("warmup")

		files, err := util.LoadImageFiles(args)
		if err != nil {
			return err
		}
		frames := make([]images.Frame, 0, len(files))
		for _, f := range files {
			frame, err := util.DecodeImageFile(f)
			if err != nil {
				logger.Warn("failed to decode image", zap.String("path", f.Path), zap.Error(err))
				continue
			}
			frames = append(frames, frame)
		}

		engine, err := inference.NewEngineBuilder(cfg).
			WithLogger(logger).
			WithProvider().
			WithSession().
			Build()
		if err != nil {
			return err
		}
		defer engine.Close()

		metrics, err := benchmark.Run(cmd.Context(), engine, frames, scenario)
		if err != nil {
			return err
		}

		enc := yaml.NewEncoder(cmd.OutOrStdout())
		if err := enc.Encode(metrics); err != nil {
			return err
		}
		return enc.Close()
	},
}

func init() {
	addConfigFlags(benchCmd.Flags())
	benchCmd.Flags().Int("batch", 1, "Images per model call")
	benchCmd.Flags().Int("iterations", 100, "Measured model calls")
	benchCmd.Flags().Int("warmup", 5, "Unmeasured model calls before measuring")
}
