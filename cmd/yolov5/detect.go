package main

import (
	"context"
	"encoding/json"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/nvr-ai/go-yolov5/common"
	"github.com/nvr-ai/go-yolov5/config"
	"github.com/nvr-ai/go-yolov5/images"
	"github.com/nvr-ai/go-yolov5/images/cvmat"
	"github.com/nvr-ai/go-yolov5/inference"
	"github.com/nvr-ai/go-yolov5/models"
	"github.com/nvr-ai/go-yolov5/util"
)

var detectCmd = &cobra.Command{
	Use:   "detect [paths...]",
	Short: "Detect objects in image files, directories or glob patterns",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadSettings(cmd.Flags())
		if err != nil {
			return err
		}
		format, _ := cmd.Flags().GetString("output")
		batchSize, _ := cmd.Flags().GetInt("batch")
		required, _ := cmd.Flags().GetStringSlice("require-class")
		opencv, _ := cmd.Flags().GetBool("opencv")

		return runDetect(cmd.Context(), cmd.OutOrStdout(), cfg, detectArgs{
			Paths:     args,
			Format:    format,
			BatchSize: batchSize,
			Required:  required,
			OpenCV:    opencv,
		})
	},
}

func init() {
	addConfigFlags(detectCmd.Flags())
	detectCmd.Flags().StringP("output", "o", "yaml", "Output format: yaml or json")
	detectCmd.Flags().Int("batch", 8, "Images per model call")
	detectCmd.Flags().StringSlice("require-class", nil, "Exit with status 2 unless one of these classes is detected")
	detectCmd.Flags().Bool("opencv", false, "Decode images with OpenCV instead of Go decoders")
}

type detectArgs struct {
	Paths     []string
	Format    string
	BatchSize int
	Required  []string
	OpenCV    bool
}

// decodeFunc turns a loaded file into a frame.
type decodeFunc func(util.ImageFile) (images.Frame, error)

func decodeWithOpenCV(f util.ImageFile) (images.Frame, error) {
	return cvmat.DecodeFrame(f.Data)
}

// labeledDetection is one detection as printed.
type labeledDetection struct {
	Class int         `json:"class" yaml:"class"`
	Label string      `json:"label" yaml:"label"`
	Score float32     `json:"score" yaml:"score"`
	Box   images.Rect `json:"box" yaml:"box"`
}

// imageReport is the printed result of one input file.
type imageReport struct {
	Path       string             `json:"path" yaml:"path"`
	Width      int                `json:"width,omitempty" yaml:"width,omitempty"`
	Height     int                `json:"height,omitempty" yaml:"height,omitempty"`
	Detections []labeledDetection `json:"detections" yaml:"detections"`
	Error      string             `json:"error,omitempty" yaml:"error,omitempty"`
}

func runDetect(ctx context.Context, out io.Writer, cfg config.Config, args detectArgs) error {
	if args.Format != "yaml" && args.Format != "json" {
		return common.Configuration("unknown output format %q", args.Format)
	}
	if args.BatchSize <= 0 {
		return common.Configuration("batch must be positive, got %d", args.BatchSize)
	}

	files, err := util.LoadImageFiles(args.Paths)
	if err != nil {
		return err
	}

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

	required, err := resolveClasses(engine.Detector().Labels(), args.Required)
	if err != nil {
		return err
	}

	decode := decodeFunc(util.DecodeImageFile)
	if args.OpenCV {
		decode = decodeWithOpenCV
	}

	reports, results, err := detectFiles(ctx, engine, files, args.BatchSize, decode)
	if err != nil {
		return err
	}

	if err := writeReports(out, args.Format, reports); err != nil {
		return err
	}

	if len(required) > 0 && !inference.Exists(results, required...) {
		return errClassMissing
	}
	return nil
}

// detectFiles decodes and detects files in chunks of batchSize. Files that fail to decode are
// reported and skipped.
func detectFiles(ctx context.Context, engine inference.Engine, files []util.ImageFile, batchSize int, decode decodeFunc) ([]imageReport, []inference.Result, error) {
	labels := engine.Detector().Labels()
	reports := make([]imageReport, len(files))
	results := make([]inference.Result, len(files))

	for start := 0; start < len(files); start += batchSize {
		end := min(start+batchSize, len(files))

		frames := make([]images.Frame, end-start)
		decodeErrs := make([]error, end-start)
		for i := start; i < end; i++ {
			frame, err := decode(files[i])
			if err != nil {
				logger.Warn("failed to decode image", zap.String("path", files[i].Path), zap.Error(err))
				decodeErrs[i-start] = err
			}
			frames[i-start] = frame
		}

		batch, err := engine.Predict(ctx, frames)
		if err != nil {
			return nil, nil, err
		}
		for j, r := range batch {
			i := start + j
			if decodeErrs[j] != nil {
				r.Err = decodeErrs[j]
			}
			results[i] = r
			reports[i] = newImageReport(files[i].Path, r, labels)
		}
	}

	return reports, results, nil
}

func newImageReport(path string, r inference.Result, labels *models.OutputClassSet) imageReport {
	report := imageReport{
		Path:       path,
		Width:      r.Metadata.OriginalWidth,
		Height:     r.Metadata.OriginalHeight,
		Detections: make([]labeledDetection, 0, len(r.Detections)),
	}
	if r.Err != nil {
		report.Error = r.Err.Error()
	}
	for _, d := range r.Detections {
		report.Detections = append(report.Detections, labeledDetection{
			Class: d.Class,
			Label: labels.Name(d.Class),
			Score: d.Score,
			Box:   d.Box,
		})
	}
	return report
}

func writeReports(out io.Writer, format string, reports []imageReport) error {
	if format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(reports)
	}
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(reports); err != nil {
		return err
	}
	return enc.Close()
}

// resolveClasses maps class names to ids.
func resolveClasses(labels *models.OutputClassSet, names []string) ([]int, error) {
	ids := make([]int, 0, len(names))
	for _, name := range names {
		id, err := labels.Index(name)
		if err != nil {
			return nil, common.Classify(common.ErrConfiguration, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
