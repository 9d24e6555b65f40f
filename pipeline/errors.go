// Package pipeline - Failure taxonomy.
//
// Every failure in the pipeline belongs to a class that fixes its blast
// radius: per-file failures attach to the file's result and never unwind
// past their stage, per-batch failures mark only that batch's frames,
// per-device failures disable the device, and config/export failures stop
// the run.
package pipeline

// Class partitions failures by blast radius.
type Class string

const (
	// ClassConfig is fatal before the pipeline starts.
	ClassConfig Class = "config"
	// ClassMediaRead covers unreadable files. Per file.
	ClassMediaRead Class = "media_read"
	// ClassDecode covers undecodable images. Per file.
	ClassDecode Class = "decode"
	// ClassProcess covers ffmpeg/ffprobe failures. Per file.
	ClassProcess Class = "external_process"
	// ClassSession covers backend session construction. Per device.
	ClassSession Class = "inference_session"
	// ClassRuntime covers inference execution. Per batch.
	ClassRuntime Class = "inference_runtime"
	// ClassExport is fatal; losing results defeats the run.
	ClassExport Class = "export"
)

// classedError carries the class as metadata rather than message text, so
// wrapping never duplicates the class prefix.
type classedError struct {
	class Class
	err   error
}

func (e *classedError) Error() string { return e.err.Error() }

// Cause exposes the wrapped error to pkg/errors.
func (e *classedError) Cause() error { return e.err }

// Unwrap exposes the wrapped error to the stdlib errors package.
func (e *classedError) Unwrap() error { return e.err }

// Tag wraps err with a failure class. Tagging nil returns nil, so call
// sites can tag unconditionally.
func Tag(class Class, err error) error {
	if err == nil {
		return nil
	}
	return &classedError{class: class, err: err}
}

// ClassOf walks the cause chain and returns the innermost failure class.
// Untagged errors report ClassRuntime, the per-batch default.
func ClassOf(err error) Class {
	class := ClassRuntime
	for err != nil {
		if tagged, ok := err.(*classedError); ok {
			class = tagged.class
		}
		cause, ok := err.(interface{ Cause() error })
		if !ok {
			break
		}
		err = cause.Cause()
	}
	return class
}

// Reason renders an error for export as "class: message".
func Reason(err error) string {
	if err == nil {
		return ""
	}
	return string(ClassOf(err)) + ": " + err.Error()
}
