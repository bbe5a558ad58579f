package cvmat

import (
	"image/color"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-yolov5/common"
	"github.com/nvr-ai/go-yolov5/images"
)

func TestFrameFromMat_BGR(t *testing.T) {
	mat, err := gocv.NewMatFromBytes(1, 2, gocv.MatTypeCV8UC3, []byte{10, 20, 30, 40, 50, 60})
	require.NoError(t, err)
	defer mat.Close()

	f, err := FrameFromMat(mat)
	require.NoError(t, err)
	assert.Equal(t, 2, f.Width)
	assert.Equal(t, 1, f.Height)
	assert.Equal(t, images.ColorOrderBGR, f.Order)

	img, err := f.RGBA()
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{R: 30, G: 20, B: 10, A: 255}, img.RGBAAt(0, 0))
}

func TestFrameFromMat_Empty(t *testing.T) {
	mat := gocv.NewMat()
	defer mat.Close()

	_, err := FrameFromMat(mat)
	assert.True(t, errors.Is(err, common.ErrInvalidImage))
}

func TestDecodeFrame_Corrupt(t *testing.T) {
	_, err := DecodeFrame([]byte("not an image"))
	assert.Error(t, err, "garbage bytes should not decode")

	_, err = DecodeFrame(nil)
	assert.True(t, errors.Is(err, common.ErrInvalidImage))
}
