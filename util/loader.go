// Package util - image file discovery and decoding for batch detection.
package util

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"
	_ "golang.org/x/image/webp"

	"github.com/nvr-ai/go-yolov5/common"
	"github.com/nvr-ai/go-yolov5/images"
)

// ImageFormats are the file suffixes treated as images.
var ImageFormats = []string{"bmp", "dng", "jpeg", "jpg", "mpo", "png", "tif", "tiff", "webp", "pfm"}

// VideoFormats are recognized so they can be reported, but they are not loaded.
var VideoFormats = []string{"asf", "avi", "gif", "m4v", "mkv", "mov", "mp4", "mpeg", "mpg", "ts", "wmv"}

// ImageFile represents an image file.
type ImageFile struct {
	// Path is the path to the image file.
	Path string
	// Data is the raw bytes of the image file.
	Data []byte
	// Frame is the number at the end of the file name, or -1 when there is none.
	Frame int
}

// LoadImageFiles resolves paths into image files and reads them.
//
// Each path may be a file, a directory (its images, not recursive) or a glob pattern. Files
// whose suffix is not an image format are skipped and logged on the global zap logger.
//
// Arguments:
//   - paths: Files, directories or glob patterns.
//
// Returns:
//   - []ImageFile: The images in argument order. Directory and glob entries are sorted by frame
//     number, then name.
//   - error: common.ErrConfiguration when a path does not exist or a pattern is malformed, or
//     the read error.
func LoadImageFiles(paths []string) ([]ImageFile, error) {
	var files []ImageFile
	for _, p := range paths {
		var candidates []string
		switch {
		case strings.ContainsAny(p, "*?["):
			matches, err := filepath.Glob(p)
			if err != nil {
				return nil, common.Configuration("bad pattern %q: %v", p, err)
			}
			if len(matches) == 0 {
				return nil, common.Configuration("no files match %q", p)
			}
			candidates = matches
		default:
			info, err := os.Stat(p)
			if err != nil {
				return nil, common.Configuration("input %s: %v", p, err)
			}
			if !info.IsDir() {
				candidates = []string{p}
				break
			}
			entries, err := os.ReadDir(p)
			if err != nil {
				return nil, err
			}
			for _, e := range entries {
				if !e.IsDir() {
					candidates = append(candidates, filepath.Join(p, e.Name()))
				}
			}
		}

		loaded, err := readImageFiles(candidates)
		if err != nil {
			return nil, err
		}
		if len(candidates) > 1 {
			sortByFrame(loaded)
		}
		files = append(files, loaded...)
	}
	return files, nil
}

// LoadDirectoryImageFiles reads all image files from a directory.
//
// Arguments:
//   - dir: Directory path containing image files.
//
// Returns:
//   - []ImageFile: The images sorted by frame number, then name.
//   - error: Error if loading fails.
func LoadDirectoryImageFiles(dir string) ([]ImageFile, error) {
	return LoadImageFiles([]string{dir})
}

func readImageFiles(paths []string) ([]ImageFile, error) {
	var files []ImageFile
	for _, path := range paths {
		switch ext := suffix(path); {
		case contains(ImageFormats, ext):
		case contains(VideoFormats, ext):
			zap.L().Warn("skipping video input", zap.String("path", path))
			continue
		default:
			zap.L().Warn("skipping file that is not an image", zap.String("path", path))
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		files = append(files, ImageFile{
			Path:  path,
			Data:  data,
			Frame: frameNumber(path),
		})
	}
	return files, nil
}

// DecodeImageFile decodes an image file into a frame, applying its EXIF orientation.
//
// Arguments:
//   - f: The image file.
//
// Returns:
//   - images.Frame: The decoded RGBA frame.
//   - error: common.ErrInvalidImage if the bytes cannot be decoded.
func DecodeImageFile(f ImageFile) (images.Frame, error) {
	if len(f.Data) == 0 {
		return images.Frame{}, common.InvalidImage("%s is empty", f.Path)
	}
	img, err := imaging.Decode(bytes.NewReader(f.Data), imaging.AutoOrientation(true))
	if err != nil {
		return images.Frame{}, common.InvalidImage("failed to decode %s: %v", f.Path, err)
	}
	return images.FrameFromImage(img), nil
}

func suffix(path string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// frameNumber parses the trailing digits of a file name, e.g. 12 for "frame-0012.jpg".
func frameNumber(path string) int {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	i := len(name)
	for i > 0 && name[i-1] >= '0' && name[i-1] <= '9' {
		i--
	}
	n, err := strconv.Atoi(name[i:])
	if err != nil {
		return -1
	}
	return n
}

func sortByFrame(files []ImageFile) {
	sort.SliceStable(files, func(i, j int) bool {
		if files[i].Frame != files[j].Frame {
			return files[i].Frame < files[j].Frame
		}
		return files[i].Path < files[j].Path
	})
}
