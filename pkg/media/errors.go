package media

import "errors"

// Failure kinds reported by the extraction pipeline. Components wrap them
// together with the underlying cause, so callers can match both with errors.Is.
var (
	ErrInputMissing         = errors.New("input path missing")
	ErrInputNotFound        = errors.New("input not found")
	ErrOpenFailed           = errors.New("could not open container")
	ErrStreamProbeFailed    = errors.New("could not probe stream information")
	ErrNoVideoStream        = errors.New("no video stream")
	ErrUnsupportedCodec     = errors.New("unsupported codec")
	ErrCodecOpenFailed      = errors.New("could not open codec")
	ErrConversionInitFailed = errors.New("could not initialize conversion context")
	ErrWriteFailed          = errors.New("could not write frame")
	ErrDemuxFailed          = errors.New("could not read packets")
	ErrDecodeFailed         = errors.New("decoder failed")
)

// Fatal reports whether err must stop the pipeline. Only frame write
// failures are tolerated.
func Fatal(err error) bool {
	return err != nil && !errors.Is(err, ErrWriteFailed)
}
