package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-yolov5/common"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, float32(0.25), cfg.ConfThres)
	assert.Equal(t, float32(0.45), cfg.IouThres)
	assert.Equal(t, 640, cfg.Height)
	assert.Equal(t, 640, cfg.Width)
	assert.Equal(t, 300, cfg.MaxDet)
	assert.Equal(t, 114, cfg.PadValue)
	assert.Equal(t, "cpu", cfg.Provider)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"conf above one", func(c *Config) { c.ConfThres = 1.01 }},
		{"negative conf", func(c *Config) { c.ConfThres = -0.1 }},
		{"iou above one", func(c *Config) { c.IouThres = 2 }},
		{"zero height", func(c *Config) { c.Height = 0 }},
		{"negative width", func(c *Config) { c.Width = -640 }},
		{"negative max_det", func(c *Config) { c.MaxDet = -1 }},
		{"pad out of range", func(c *Config) { c.PadValue = 256 }},
		{"negative workers", func(c *Config) { c.Workers = -2 }},
		{"negative device", func(c *Config) { c.DeviceID = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			assert.True(t, errors.Is(err, common.ErrConfiguration), "expected a configuration error, got %v", err)
		})
	}

	edges := Default()
	edges.ConfThres, edges.IouThres = 0, 1
	assert.NoError(t, edges.Validate(), "threshold bounds are inclusive")
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "yolov5.yaml")
	doc := "conf_thres: 0.5\nwidth: 1280\nclasses: [0, 2]\nmodel: yolov5s.onnx\n"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, float32(0.5), cfg.ConfThres)
	assert.Equal(t, 1280, cfg.Width)
	assert.Equal(t, 640, cfg.Height, "unset fields keep their defaults")
	assert.Equal(t, []int{0, 2}, cfg.Classes)
	assert.Equal(t, "yolov5s.onnx", cfg.Model)

	opts := cfg.SuppressOptions()
	assert.Equal(t, float32(0.5), opts.ConfThres)
	assert.Equal(t, []int{0, 2}, opts.Classes)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("iou_thres: 3\n"), 0o600))
	_, err = Load(bad)
	assert.True(t, errors.Is(err, common.ErrConfiguration))

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.True(t, errors.Is(err, common.ErrConfiguration))
}
