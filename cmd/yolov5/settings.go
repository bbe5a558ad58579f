package main

import (
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/nvr-ai/go-yolov5/common"
	"github.com/nvr-ai/go-yolov5/config"
)

// envPrefix namespaces the environment overrides, e.g. YOLOV5_CONF_THRES.
const envPrefix = "YOLOV5"

// addConfigFlags registers one flag per configuration key.
func addConfigFlags(flags *pflag.FlagSet) {
	d := config.Default()
	flags.Float32("conf-thres", d.ConfThres, "Minimum detection confidence")
	flags.Float32("iou-thres", d.IouThres, "NMS IoU threshold")
	flags.Int("size", d.Width, "Square model input size; overrides height and width")
	flags.Int("max-det", d.MaxDet, "Maximum detections per image")
	flags.Bool("agnostic", d.Agnostic, "Class-agnostic NMS")
	flags.IntSlice("classes", nil, "Keep only these class ids")
	flags.Int("workers", d.Workers, "Per-image parallelism, 0 for all CPUs")
	flags.String("model", d.Model, "ONNX model path")
	flags.String("labels", d.Labels, "Dataset YAML with class names, COCO when empty")
	flags.String("provider", d.Provider, "Execution provider: cpu, cuda, coreml or openvino")
	flags.Int("device-id", d.DeviceID, "Accelerator device id")
	flags.String("library-path", d.LibraryPath, "onnxruntime shared library")
}

// loadSettings merges defaults, the config file, the environment and the flags.
//
// Arguments:
//   - flags: The command flags, including the persistent --config flag.
//
// Returns:
//   - config.Config: The validated configuration.
//   - error: common.ErrConfiguration on unreadable files or invalid values.
func loadSettings(flags *pflag.FlagSet) (config.Config, error) {
	v := viper.New()
	setDefaults(v, config.Default())

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path, _ := flags.GetString("config"); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return config.Config{}, common.Configuration("failed to read config %s: %v", path, err)
		}
	}

	bindings := map[string]string{
		"conf_thres":   "conf-thres",
		"iou_thres":    "iou-thres",
		"max_det":      "max-det",
		"agnostic":     "agnostic",
		"classes":      "classes",
		"workers":      "workers",
		"model":        "model",
		"labels":       "labels",
		"provider":     "provider",
		"device_id":    "device-id",
		"library_path": "library-path",
	}
	for key, name := range bindings {
		if f := flags.Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return config.Config{}, common.Configuration("failed to bind flag %s: %v", name, err)
			}
		}
	}

	var cfg config.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return config.Config{}, common.Configuration("failed to decode settings: %v", err)
	}

	if f := flags.Lookup("size"); f != nil && f.Changed {
		size, _ := flags.GetInt("size")
		cfg.Width, cfg.Height = size, size
	}

	return cfg, cfg.Validate()
}

func setDefaults(v *viper.Viper, d config.Config) {
	v.SetDefault("conf_thres", d.ConfThres)
	v.SetDefault("iou_thres", d.IouThres)
	v.SetDefault("height", d.Height)
	v.SetDefault("width", d.Width)
	v.SetDefault("max_det", d.MaxDet)
	v.SetDefault("agnostic", d.Agnostic)
	v.SetDefault("classes", d.Classes)
	v.SetDefault("workers", d.Workers)
	v.SetDefault("pad_value", d.PadValue)
	v.SetDefault("model", d.Model)
	v.SetDefault("labels", d.Labels)
	v.SetDefault("provider", d.Provider)
	v.SetDefault("device_id", d.DeviceID)
	v.SetDefault("library_path", d.LibraryPath)
}
