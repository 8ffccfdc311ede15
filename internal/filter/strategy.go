package filter

import (
	"bytes"
	"math/bits"

	kflate "github.com/klauspost/compress/flate"
)

// bruteLines is the number of previously-filtered rows kept as trailing
// context for the Brute strategy's trial compression.
const bruteLines = 4

// bruteLevel is the (very cheap) DEFLATE level Brute trial-compresses with.
const bruteLevel = 1

// Select runs the heuristic strategy over the five standard filters for one
// row and returns the winning filter along with its filtered bytes. data is
// the (possibly alpha-optimized) raw row; lastLine is the previous row's
// raw bytes (empty for the first row of a pass). tail is the Brute
// strategy's running window of previously-filtered row bytes; Select
// appends the winner's bytes to it and the caller is expected to retain it
// across calls within one candidate image (it must not be shared across
// candidates — see DESIGN.md).
func Select(strategy RowFilter, bpp int, data, lastLine []byte, tail *[]byte, firstOfPass bool) (RowFilter, []byte) {
	candidates := Standard[:]
	if firstOfPass {
		// On the first row of a pass, Up/Average/Paeth all degenerate to
		// Sub-like behavior since there is no previous row; restrict the
		// search to None/Sub to avoid redundant work.
		candidates = Standard[:2]
	}

	var best []byte
	var bestFilter RowFilter
	var scratch []byte

	switch strategy {
	case MinSum:
		bestScore := -1
		for _, f := range candidates {
			FilterLine(f, bpp, data, lastLine, &scratch)
			score := sumAbsSigned(scratch)
			if bestScore == -1 || score < bestScore {
				bestScore, bestFilter, best = score, f, cloneBytes(scratch)
			}
		}
	case Entropy:
		bestScore := int64(-1) << 62
		for _, f := range candidates {
			FilterLine(f, bpp, data, lastLine, &scratch)
			score := entropyScore(scratch)
			if score > bestScore {
				bestScore, bestFilter, best = score, f, cloneBytes(scratch)
			}
		}
	case Bigrams:
		bestScore := -1
		for _, f := range candidates {
			FilterLine(f, bpp, data, lastLine, &scratch)
			score := distinctBigrams(scratch)
			if bestScore == -1 || score < bestScore {
				bestScore, bestFilter, best = score, f, cloneBytes(scratch)
			}
		}
	case BigEnt:
		bestScore := int64(-1) << 62
		for _, f := range candidates {
			FilterLine(f, bpp, data, lastLine, &scratch)
			score := bigramEntropyScore(scratch)
			if score > bestScore {
				bestScore, bestFilter, best = score, f, cloneBytes(scratch)
			}
		}
	case Brute:
		bestScore := -1
		for _, f := range candidates {
			FilterLine(f, bpp, data, lastLine, &scratch)
			score := bruteScore(*tail, scratch)
			if bestScore == -1 || score < bestScore {
				bestScore, bestFilter, best = score, f, cloneBytes(scratch)
			}
		}
	default:
		panic("filter: Select called with a non-heuristic RowFilter: " + strategy.String())
	}

	*tail = appendWindow(*tail, best, (len(data)+1)*bruteLines)
	return bestFilter, best
}

func cloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func sumAbsSigned(f []byte) int {
	total := 0
	for _, b := range f {
		s := int8(b)
		if s < 0 {
			total += int(-s)
		} else {
			total += int(s)
		}
	}
	return total
}

// ilog2i approximates i*log2(i) with integer arithmetic, per spec.md §4.3.
func ilog2i(i uint32) uint32 {
	log := uint32(31 - bits.LeadingZeros32(i))
	return i*log + ((i - (1 << log)) << 1)
}

func entropyScore(f []byte) int64 {
	var counts [256]uint32
	for _, b := range f {
		counts[b]++
	}
	var total int64
	for _, c := range counts {
		if c == 0 {
			continue
		}
		total += int64(ilog2i(c))
	}
	return total
}

func distinctBigrams(f []byte) int {
	if len(f) < 2 {
		return 0
	}
	var seen [65536 / 64]uint64
	count := 0
	for i := 0; i+1 < len(f); i++ {
		bg := uint16(f[i])<<8 | uint16(f[i+1])
		word, bit := bg/64, bg%64
		mask := uint64(1) << bit
		if seen[word]&mask == 0 {
			seen[word] |= mask
			count++
		}
	}
	return count
}

func bigramEntropyScore(f []byte) int64 {
	counts := make(map[uint16]uint32, len(f))
	for i := 0; i+1 < len(f); i++ {
		bg := uint16(f[i])<<8 | uint16(f[i+1])
		counts[bg]++
	}
	var total int64
	for _, c := range counts {
		total += int64(ilog2i(c))
	}
	return total
}

// appendWindow appends line to tail, keeping at most limit trailing bytes.
func appendWindow(tail, line []byte, limit int) []byte {
	tail = append(tail, line...)
	if len(tail) > limit {
		tail = tail[len(tail)-limit:]
	}
	return tail
}

// bruteScore compresses the trailing window (previous rows' filtered bytes
// plus the candidate row) at a very cheap DEFLATE level and returns the
// resulting size; the smallest wins.
func bruteScore(tail, candidate []byte) int {
	var buf bytes.Buffer
	w, err := kflate.NewWriter(&buf, bruteLevel)
	if err != nil {
		return len(tail) + len(candidate)
	}
	_, _ = w.Write(tail)
	_, _ = w.Write(candidate)
	_ = w.Close()
	return buf.Len()
}
