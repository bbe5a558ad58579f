// Package config - detector configuration.
package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/nvr-ai/go-yolov5/common"
	"github.com/nvr-ai/go-yolov5/images"
	"github.com/nvr-ai/go-yolov5/models/yolov5"
)

// Config holds every setting applied uniformly to prediction calls.
type Config struct {
	// ConfThres is the minimum effective confidence of a detection.
	ConfThres float32 `json:"conf_thres" yaml:"conf_thres" mapstructure:"conf_thres"`
	// IouThres is the same-class overlap above which the lower scoring box is suppressed.
	IouThres float32 `json:"iou_thres" yaml:"iou_thres" mapstructure:"iou_thres"`
	// Height is the model input height.
	Height int `json:"height" yaml:"height" mapstructure:"height"`
	// Width is the model input width.
	Width int `json:"width" yaml:"width" mapstructure:"width"`
	// MaxDet caps the detections kept per image. Zero keeps all.
	MaxDet int `json:"max_det" yaml:"max_det" mapstructure:"max_det"`
	// Agnostic suppresses overlapping boxes across classes.
	Agnostic bool `json:"agnostic" yaml:"agnostic" mapstructure:"agnostic"`
	// Classes keeps only these class ids when not empty.
	Classes []int `json:"classes" yaml:"classes" mapstructure:"classes"`
	// Workers bounds per-image parallelism. Zero uses GOMAXPROCS.
	Workers int `json:"workers" yaml:"workers" mapstructure:"workers"`
	// PadValue is the gray level of letterbox borders.
	PadValue int `json:"pad_value" yaml:"pad_value" mapstructure:"pad_value"`

	// Model is the path of the ONNX model.
	Model string `json:"model" yaml:"model" mapstructure:"model"`
	// Labels is the path of a dataset YAML with class names. Empty uses the COCO classes.
	Labels string `json:"labels" yaml:"labels" mapstructure:"labels"`
	// Provider selects the execution provider: cpu, cuda, coreml or openvino.
	Provider string `json:"provider" yaml:"provider" mapstructure:"provider"`
	// DeviceID selects the accelerator for GPU providers.
	DeviceID int `json:"device_id" yaml:"device_id" mapstructure:"device_id"`
	// LibraryPath points at the onnxruntime shared library. Empty uses the system default.
	LibraryPath string `json:"library_path" yaml:"library_path" mapstructure:"library_path"`
}

// Default returns the stock YOLOv5 settings for a 640x640 model on CPU.
func Default() Config {
	return Config{
		ConfThres: 0.25,
		IouThres:  0.45,
		Height:    640,
		Width:     640,
		MaxDet:    yolov5.DefaultMaxDetections,
		PadValue:  int(images.DefaultPadValue),
		Provider:  "cpu",
	}
}

// Load reads a YAML file on top of the defaults.
//
// Arguments:
//   - path: The YAML file.
//
// Returns:
//   - Config: The validated configuration.
//   - error: common.ErrConfiguration if the file cannot be read, parsed or validated.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, common.Configuration("failed to read config %s: %v", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, common.Configuration("failed to parse config %s: %v", path, err)
	}

	return cfg, cfg.Validate()
}

// Validate checks thresholds and dimensions eagerly so that bad settings fail at construction.
func (c Config) Validate() error {
	if c.Height <= 0 || c.Width <= 0 {
		return common.Configuration("input dimensions must be positive, got %dx%d", c.Width, c.Height)
	}
	if c.PadValue < 0 || c.PadValue > 255 {
		return common.Configuration("pad_value must be within [0, 255], got %d", c.PadValue)
	}
	if c.DeviceID < 0 {
		return common.Configuration("device_id must not be negative, got %d", c.DeviceID)
	}
	return c.SuppressOptions().Validate()
}

// SuppressOptions returns the post-processing options of the configuration.
func (c Config) SuppressOptions() yolov5.Options {
	return yolov5.Options{
		ConfThres:     c.ConfThres,
		IouThres:      c.IouThres,
		MaxDetections: c.MaxDet,
		Classes:       c.Classes,
		Agnostic:      c.Agnostic,
		Workers:       c.Workers,
	}
}
