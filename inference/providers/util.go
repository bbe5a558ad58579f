// Package providers - Utility functions.
package providers

import (
	"os"
	"runtime"
)

// LibraryPathEnv overrides the onnxruntime shared library location.
const LibraryPathEnv = "ONNXRUNTIME_SHARED_LIBRARY_PATH"

// GetSharedLibPath returns the path to the shared library for the current platform.
//
// Returns:
//   - string: The path from LibraryPathEnv when set, otherwise the bundled third_party library
//     for the platform, or an empty string to let the loader search the system paths.
func GetSharedLibPath() string {
	if p := os.Getenv(LibraryPathEnv); p != "" {
		return p
	}

	var candidate string
	switch runtime.GOOS {
	case "windows":
		candidate = "./third_party/onnxruntime.dll"
	case "darwin":
		candidate = "./third_party/libonnxruntime.dylib"
	case "linux":
		if runtime.GOARCH == "arm64" {
			candidate = "./third_party/onnxruntime_arm64.so"
		} else {
			candidate = "./third_party/onnxruntime.so"
		}
	}

	if candidate != "" {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}
