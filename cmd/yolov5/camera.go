package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-yolov5/common"
	"github.com/nvr-ai/go-yolov5/images"
	"github.com/nvr-ai/go-yolov5/images/cvmat"
	"github.com/nvr-ai/go-yolov5/inference"
)

var cameraCmd = &cobra.Command{
	Use:   "camera",
	Short: "Detect objects in frames captured from a video device or stream",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadSettings(cmd.Flags())
		if err != nil {
			return err
		}
		source, _ := cmd.Flags().GetString("source")
		frames, _ := cmd.Flags().GetInt("frames")

		engine, err := inference.NewEngineBuilder(cfg).
			WithLogger(logger).
			WithLabels().
			WithProvider().
			WithSession().
			Build()
		if err != nil {
			return err
		}
		defer engine.Close()

		capture, err := gocv.OpenVideoCapture(source)
		if err != nil {
			return common.Configuration("cannot open video source %q: %v", source, err)
		}
		defer capture.Close()

		return runCamera(cmd.Context(), cmd.OutOrStdout(), engine, capture, frames)
	},
}

func init() {
	addConfigFlags(cameraCmd.Flags())
	cameraCmd.Flags().String("source", "0", "Capture device id, file or stream URL")
	cameraCmd.Flags().Int("frames", 0, "Stop after this many frames, 0 runs until the source ends")
}

// runCamera reads frames one at a time and prints one line per frame.
func runCamera(ctx context.Context, out io.Writer, engine inference.Engine, capture *gocv.VideoCapture, limit int) error {
	labels := engine.Detector().Labels()

	img := gocv.NewMat()
	defer img.Close()

	fps := 0.0
	frameCount := 0
	lastTime := time.Now()

	for n := 0; limit == 0 || n < limit; n++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if ok := capture.Read(&img); !ok {
			logger.Info("video source ended", zap.Int("frames", n))
			return nil
		}
		if img.Empty() {
			continue
		}

		frameCount++
		if elapsed := time.Since(lastTime).Seconds(); elapsed >= 1.0 {
			fps = float64(frameCount) / elapsed
			frameCount = 0
			lastTime = time.Now()
		}

		frame, err := cvmat.FrameFromMat(img)
		if err != nil {
			logger.Warn("skipping frame", zap.Int("frame", n), zap.Error(err))
			continue
		}

		results, err := engine.Predict(ctx, []images.Frame{frame})
		if err != nil {
			return err
		}

		r := results[0]
		fmt.Fprintf(out, "frame %d | %d detections | FPS: %.2f\n", n, len(r.Detections), fps)
		for _, d := range r.Detections {
			fmt.Fprintf(out, "  %s %.2f %s\n", labels.Name(d.Class), d.Score, d.Box)
		}
	}
	return nil
}
