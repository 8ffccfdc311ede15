// Package deflate is the uniform compression adaptor described in
// spec.md §4.7: a single deflate/inflate/crc32 contract behind which two
// interchangeable backends live — a fast one for exploring many candidates,
// and a slow, harder-working one for the final write.
package deflate

import (
	"github.com/XC-Zero/pngshrink/internal/crcsum"
	"github.com/XC-Zero/pngshrink/internal/pngerr"
)

// chunkSize is how much input the fast backend feeds the compressor
// between checks of its running output length against maxSize, per
// spec.md §4.7.
const chunkSize = 64 * 1024

// Backend is the adaptor's uniform shape; Fast and Slow are the two
// concrete implementations spec.md calls for.
type Backend interface {
	// Deflate compresses data at level. If maxSize is positive and the
	// compressed size would exceed it, Deflate returns
	// pngerr.DeflatedDataTooLong as early as the backend is able to detect
	// it (the fast backend detects this mid-stream; the slow backend only
	// at the end, since it never abandons a trial early).
	Deflate(data []byte, level int, maxSize int) ([]byte, error)
	// Inflate decompresses data, which must expand to exactly
	// expectedSize bytes.
	Inflate(data []byte, expectedSize int) ([]byte, error)
}

// Crc32 computes the CRC-32/IEEE checksum the PNG format uses for chunk
// trailers; it is exposed here so callers that already depend on the
// deflate adaptor for IDAT handling don't need a second import for the one
// other piece of the uniform contract spec.md §4.7 names.
func Crc32(data []byte) uint32 { return crcsum.Checksum(data) }

func tooLong(bound int) error { return pngerr.DeflatedDataTooLong(bound) }
