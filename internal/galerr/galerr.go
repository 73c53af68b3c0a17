// Package galerr defines the engine's typed error kinds. Loaders and
// decoders return these so the caching layer can decide whether a failed
// tile should be retried, logged, or simply rendered as a gap.
package galerr

import "fmt"

// Kind classifies an Error.
type Kind int

const (
	KindGeneric Kind = iota
	KindConfiguration
	KindIO
	KindFsIO
	KindNotFound
	KindImageDecode
	KindProto
	KindTileProcessingRendering
	KindTileProcessingInternal
	KindFontNotFound
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "Configuration"
	case KindIO:
		return "IO"
	case KindFsIO:
		return "FsIo"
	case KindNotFound:
		return "NotFound"
	case KindImageDecode:
		return "ImageDecode"
	case KindProto:
		return "Proto"
	case KindTileProcessingRendering:
		return "TileProcessing::Rendering"
	case KindTileProcessingInternal:
		return "TileProcessing::Internal"
	case KindFontNotFound:
		return "FontServiceError::FontNotFound"
	default:
		return "Generic"
	}
}

// Error wraps an underlying cause with one of the above kinds, following the
// fmt.Errorf("...: %w", err) wrapping idiom.
type Error struct {
	kind    Kind
	message string
	cause   error
}

func New(kind Kind, message string) *Error {
	return &Error{kind: kind, message: message}
}

func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{kind: kind, message: message, cause: cause}
}

func (e *Error) Kind() Kind { return e.kind }

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.kind, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.kind, e.message)
}

func (e *Error) Unwrap() error { return e.cause }

// Is reports whether err is a *Error of the given kind, following errors.Is
// conventions so callers can do galerr.Is(err, galerr.KindNotFound).
func Is(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		if ge, ok := err.(*Error); ok {
			e = ge
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return e != nil && e.kind == kind
}
