// Package pngopt ties together chunk parsing, the reduction pipeline, the
// filter/deflate evaluator, and validation into the single Optimize entry
// point spec.md's Main Optimizer describes.
package pngopt

import (
	"github.com/XC-Zero/pngshrink/internal/filter"
	"github.com/XC-Zero/pngshrink/internal/pngimage"
)

// StripPolicy controls which ancillary chunks survive optimization.
type StripPolicy uint8

const (
	// StripNone keeps every ancillary chunk.
	StripNone StripPolicy = iota
	// StripSafe keeps only chunks that affect rendering (see
	// pngimage.IsDisplayChunk).
	StripSafe
	// StripAll removes every ancillary chunk.
	StripAll
)

// Options configures one call to Optimize; it is the Go analogue of the
// teacher corpus's flat, struct-of-bools option records.
type Options struct {
	// Strip selects which ancillary chunks to keep.
	Strip StripPolicy
	// KeepChunks names additional chunks to keep even under StripAll /
	// StripSafe (the CLI's --keep flag).
	KeepChunks map[string]bool

	// FixErrors suppresses CRC validation failures on the input instead
	// of aborting.
	FixErrors bool

	// Interlace, when non-nil, forces the output to that interlacing
	// mode; nil preserves whatever the input used.
	Interlace *bool

	// OptimizeAlpha enables the visually-lossless alpha-channel
	// reductions (cleaned alpha, drop-alpha-with-tRNS-synthesis, and the
	// filter stage's transparent-pixel color rewriting).
	OptimizeAlpha bool

	// BitDepthReduction, ColorTypeReduction, PaletteReduction gate the
	// corresponding reduction passes.
	BitDepthReduction  bool
	ColorTypeReduction bool
	PaletteReduction   bool

	// Filters is the set of row-filter strategies to evaluate; if empty,
	// None is used (fastest, no search).
	Filters []filter.RowFilter

	// CompressionLevel is the dial handed to the deflate adaptor (clamped
	// to the backend's supported range).
	CompressionLevel int

	// UseSlowBackend swaps in the thorough deflate backend for the final
	// write once a winning candidate has been chosen.
	UseSlowBackend bool

	// SanityCheck re-decodes the optimized output and compares it
	// pixel-for-pixel against the input before accepting it.
	SanityCheck bool

	// Force writes the optimized output even when it is not smaller than
	// the input; with Force false, Optimize returns the input bytes
	// unchanged in that case instead (spec.md's optimizer monotonicity
	// guarantee).
	Force bool

	// Pretend runs the full pipeline and reports the candidate it would
	// write, without writing anything.
	Pretend bool
	// Backup requests that the original file be preserved (renamed)
	// before the optimized output replaces it.
	Backup bool

	// UseCache enables the on-disk seen-hashes cache, skipping
	// optimization entirely for inputs already processed.
	UseCache bool
	CacheDir string

	// DeadlineSeconds bounds wall-clock time spent evaluating candidates
	// for a single image; 0 means no deadline.
	DeadlineSeconds float64

	// Workers bounds how many trials run concurrently; 0 means
	// runtime.GOMAXPROCS(0).
	Workers int
}

// Keep reports whether an ancillary chunk called name should survive
// optimization under o.
func (o Options) Keep(name string) bool {
	if o.KeepChunks[name] {
		return true
	}
	switch o.Strip {
	case StripNone:
		return true
	case StripSafe:
		return pngimage.IsDisplayChunk(name)
	default:
		return false
	}
}
