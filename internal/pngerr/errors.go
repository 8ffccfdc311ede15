// Package pngerr defines the error kinds shared across the pngshrink core.
//
// All of them implement error; callers that need to distinguish a kind use
// errors.As against the concrete *Error type, or the Is helper below.
package pngerr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind identifies one of the error classes the optimizer core can surface.
type Kind int

const (
	// KindOther carries a free-form message with no structured fields.
	KindOther Kind = iota
	KindNotPNG
	KindTruncatedData
	KindInvalidData
	KindCrc
	KindChunkMissing
	KindInvalidDepthForType
	KindIncorrectDataLength
	KindDeflatedDataTooLong
	KindTimedOut
	KindAPNGNotSupported
	KindC2PAMetadataPreventsChanges
)

// Error is the concrete error type returned by the pngshrink core packages.
type Error struct {
	Kind Kind

	// Chunk holds the 4-byte chunk name for KindCrc / KindChunkMissing.
	Chunk string
	// Bound holds the size bound for KindDeflatedDataTooLong.
	Bound int
	// Got/Want hold the observed/expected lengths for KindIncorrectDataLength.
	Got, Want int
	// Depth/ColorType describe KindInvalidDepthForType.
	Depth     int
	ColorType string

	Message string
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindNotPNG:
		return "invalid header detected; not a PNG file"
	case KindTruncatedData:
		return "missing data in the file; the file is truncated"
	case KindInvalidData:
		return "invalid data found; unable to read PNG file"
	case KindCrc:
		return fmt.Sprintf("CRC mismatch in %s chunk; may be recoverable with --fix", e.Chunk)
	case KindChunkMissing:
		return fmt.Sprintf("chunk %s missing or empty", e.Chunk)
	case KindInvalidDepthForType:
		return fmt.Sprintf("invalid bit depth %d for color type %s", e.Depth, e.ColorType)
	case KindIncorrectDataLength:
		return fmt.Sprintf("data length %d does not match the expected length %d", e.Got, e.Want)
	case KindDeflatedDataTooLong:
		return fmt.Sprintf("deflated data exceeded bound of %d bytes", e.Bound)
	case KindTimedOut:
		return "timed out"
	case KindAPNGNotSupported:
		return "APNG files are not supported by the current options"
	case KindC2PAMetadataPreventsChanges:
		return "the image contains a C2PA manifest that would be invalidated by any file changes"
	default:
		return e.Message
	}
}

// New builds a KindOther error carrying a free-form message.
func New(message string) *Error { return &Error{Kind: KindOther, Message: message} }

// Newf is New with fmt.Sprintf formatting.
func Newf(format string, args ...any) *Error {
	return &Error{Kind: KindOther, Message: fmt.Sprintf(format, args...)}
}

func NotPNG() *Error          { return &Error{Kind: KindNotPNG} }
func TruncatedData() *Error   { return &Error{Kind: KindTruncatedData} }
func InvalidData() *Error     { return &Error{Kind: KindInvalidData} }
func TimedOut() *Error        { return &Error{Kind: KindTimedOut} }
func APNGNotSupported() *Error { return &Error{Kind: KindAPNGNotSupported} }
func C2PAMetadataPreventsChanges() *Error {
	return &Error{Kind: KindC2PAMetadataPreventsChanges}
}

func Crc(chunk string) *Error { return &Error{Kind: KindCrc, Chunk: chunk} }

func ChunkMissing(chunk string) *Error {
	return &Error{Kind: KindChunkMissing, Chunk: chunk}
}

func InvalidDepthForType(depth int, colorType string) *Error {
	return &Error{Kind: KindInvalidDepthForType, Depth: depth, ColorType: colorType}
}

func IncorrectDataLength(got, want int) *Error {
	return &Error{Kind: KindIncorrectDataLength, Got: got, Want: want}
}

func DeflatedDataTooLong(bound int) *Error {
	return &Error{Kind: KindDeflatedDataTooLong, Bound: bound}
}

// Is reports whether err (possibly wrapped with errors.Wrap) is a *Error of
// the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
