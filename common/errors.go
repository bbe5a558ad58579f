// Package common - Error taxonomy shared by the detection pipeline.
package common

import "github.com/pkg/errors"

// Sentinel errors. Every error raised by the pipeline wraps exactly one of these so that callers
// can classify failures with errors.Is.
var (
	// ErrInvalidImage marks an image slot whose buffer is empty, has zero dimensions, or is
	// otherwise unusable. It is reported per image and never aborts sibling images in a batch.
	ErrInvalidImage = errors.New("invalid image")

	// ErrModelInvocation marks a failed model call or a model output of unexpected shape.
	ErrModelInvocation = errors.New("model invocation failure")

	// ErrConfiguration marks thresholds outside [0, 1], non-positive input dimensions or other
	// unusable settings.
	ErrConfiguration = errors.New("configuration error")
)

// InvalidImage wraps ErrInvalidImage with a formatted reason.
//
// Arguments:
//   - format: The reason, as a format string.
//   - args: The format arguments.
//
// Returns:
//   - error: An error that matches ErrInvalidImage.
func InvalidImage(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvalidImage, format, args...)
}

// ModelInvocation wraps ErrModelInvocation with a formatted reason.
func ModelInvocation(format string, args ...interface{}) error {
	return errors.Wrapf(ErrModelInvocation, format, args...)
}

// Configuration wraps ErrConfiguration with a formatted reason.
func Configuration(format string, args ...interface{}) error {
	return errors.Wrapf(ErrConfiguration, format, args...)
}

// Classify tags an arbitrary error with one sentinel while keeping it reachable through
// errors.Is and errors.Cause. Errors that already match kind are returned unchanged.
//
// Arguments:
//   - kind: One of the sentinels above.
//   - cause: The underlying error.
//
// Returns:
//   - error: nil when cause is nil.
func Classify(kind, cause error) error {
	if cause == nil {
		return nil
	}
	if errors.Is(cause, kind) {
		return cause
	}
	return &classified{kind: kind, cause: cause}
}

type classified struct {
	kind  error
	cause error
}

func (c *classified) Error() string { return c.kind.Error() + ": " + c.cause.Error() }

// Is matches the sentinel the error was classified as.
func (c *classified) Is(target error) bool { return target == c.kind }

// Unwrap exposes the underlying error to errors.Is and errors.As.
func (c *classified) Unwrap() error { return c.cause }

// Cause exposes the underlying error to errors.Cause.
func (c *classified) Cause() error { return c.cause }
