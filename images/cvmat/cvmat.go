// Package cvmat bridges OpenCV matrices and the in-memory frames consumed by the preprocessor.
package cvmat

import (
	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-yolov5/common"
	"github.com/nvr-ai/go-yolov5/images"
)

// FrameFromMat copies an 8-bit OpenCV matrix into a Frame. Three channel matrices are assumed to
// be BGR and four channel matrices BGRA, which is how OpenCV decodes and captures.
//
// Arguments:
//   - mat: The source matrix. It is not closed.
//
// Returns:
//   - images.Frame: The frame.
//   - error: common.ErrInvalidImage for empty or unsupported matrices.
func FrameFromMat(mat gocv.Mat) (images.Frame, error) {
	if mat.Empty() {
		return images.Frame{}, common.InvalidImage("matrix is empty")
	}

	var order images.ColorOrder
	switch mat.Type() {
	case gocv.MatTypeCV8UC1:
		order = images.ColorOrderGray
	case gocv.MatTypeCV8UC3:
		order = images.ColorOrderBGR
	case gocv.MatTypeCV8UC4:
		order = images.ColorOrderBGRA
	default:
		return images.Frame{}, common.InvalidImage("unsupported matrix type %v", mat.Type())
	}

	f := images.Frame{
		Width:    mat.Cols(),
		Height:   mat.Rows(),
		Channels: mat.Channels(),
		Order:    order,
		Pix:      mat.ToBytes(),
	}
	return f, f.Validate()
}

// DecodeFrame decodes an encoded image (JPEG, PNG, ...) with OpenCV.
func DecodeFrame(data []byte) (images.Frame, error) {
	if len(data) == 0 {
		return images.Frame{}, common.InvalidImage("image data is empty")
	}

	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return images.Frame{}, common.InvalidImage("failed to decode image: %v", err)
	}
	defer mat.Close()

	return FrameFromMat(mat)
}
