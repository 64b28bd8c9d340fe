package loader

import (
	"errors"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"rgehrsitz/nvm/internal/storage"
)

var (
	ErrBadImage        = errors.New("bad image or unsupported feature")
	ErrVersionMismatch = errors.New("image version mismatch")
	ErrBadLayout       = errors.New("corrupt image layout")
	ErrMethodNotFound  = errors.New("method not found")
	ErrNotInitialized  = errors.New("image not initialized")
	ErrIndexOutOfRange = errors.New("index out of range")
)

// ErrorCode is the symbolic code handed to a Reporter.
type ErrorCode uint8

const (
	ErrorImageMagic ErrorCode = iota + 1
	ErrorImageVersion
	ErrorImageLayout
	ErrorMethodNotFound
	ErrorCapacity
)

func (c ErrorCode) String() string {
	switch c {
	case ErrorImageMagic:
		return "NVMFILE_MAGIC"
	case ErrorImageVersion:
		return "NVMFILE_VERSION"
	case ErrorImageLayout:
		return "NVMFILE_LAYOUT"
	case ErrorMethodNotFound:
		return "METHOD_NOT_FOUND"
	case ErrorCapacity:
		return "CAPACITY"
	default:
		return "UNKNOWN"
	}
}

// Reporter is the error sink the loader reports to before returning an error.
type Reporter interface {
	Report(code ErrorCode, err error)
}

// LogReporter reports through a zerolog logger. The zero value uses the
// global logger.
type LogReporter struct {
	Logger *zerolog.Logger
}

func (r LogReporter) Report(code ErrorCode, err error) {
	logger := r.Logger
	if logger == nil {
		logger = &log.Logger
	}
	logger.Error().Err(err).Str("code", code.String()).Msg("Image error")
}

// codeFor maps an access error onto a reporter code.
func codeFor(err error, fallback ErrorCode) ErrorCode {
	if errors.Is(err, storage.ErrCapacityExceeded) {
		return ErrorCapacity
	}
	return fallback
}
