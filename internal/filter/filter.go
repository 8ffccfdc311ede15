// Package filter implements the five PNG row filters (None/Sub/Up/Average/
// Paeth) plus the heuristic per-row selectors described in spec.md §4.3.
//
// Filters operate purely on byte slices (a row, the previous row, and a
// pixel stride `bpp`) so this package has no dependency on the image model;
// internal/pngimage drives it one scanline at a time.
package filter

import "github.com/XC-Zero/pngshrink/internal/pngerr"

// RowFilter identifies one of PNG's five standard delta filters, or one of
// the five heuristic row-filter strategies this package also implements.
type RowFilter uint8

const (
	None RowFilter = iota
	Sub
	Up
	Average
	Paeth
	// Heuristic strategies: each picks one of the five standard filters per
	// row according to a scoring rule.
	MinSum
	Entropy
	Bigrams
	BigEnt
	Brute
)

// Standard is the five filters a row can actually be tagged with on the
// wire; the heuristics above resolve to one of these before encoding.
var Standard = [5]RowFilter{None, Sub, Up, Average, Paeth}

func (f RowFilter) String() string {
	switch f {
	case None:
		return "None"
	case Sub:
		return "Sub"
	case Up:
		return "Up"
	case Average:
		return "Average"
	case Paeth:
		return "Paeth"
	case MinSum:
		return "MinSum"
	case Entropy:
		return "Entropy"
	case Bigrams:
		return "Bigrams"
	case BigEnt:
		return "BigEnt"
	case Brute:
		return "Brute"
	default:
		return "unknown"
	}
}

// IsStandard reports whether f is one of the five wire-level filters.
func (f RowFilter) IsStandard() bool { return f <= Paeth }

func paethPredictor(a, b, c uint8) uint8 {
	p := int(a) + int(b) - int(c)
	pa := abs(p - int(a))
	pb := abs(p - int(b))
	pc := abs(p - int(c))
	switch {
	case pa <= pb && pa <= pc:
		return a
	case pb <= pc:
		return b
	default:
		return c
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// FilterLine applies f to data (which must already be exactly as long as
// lastLine, or lastLine must be empty for the first row of a pass), writing
// the filtered bytes into buf (buf is reset first). bpp is bytes-per-pixel
// (or 1 for sub-byte depths); the standard filters defined here never
// depend on anything but byte-stride arithmetic.
func FilterLine(f RowFilter, bpp int, data, lastLine []byte, buf *[]byte) {
	*buf = (*buf)[:0]
	n := len(data)
	switch f {
	case None:
		*buf = append(*buf, data...)
	case Sub:
		for i := 0; i < n; i++ {
			var left uint8
			if i >= bpp {
				left = data[i-bpp]
			}
			*buf = append(*buf, data[i]-left)
		}
	case Up:
		if len(lastLine) == 0 {
			*buf = append(*buf, data...)
			return
		}
		for i := 0; i < n; i++ {
			*buf = append(*buf, data[i]-lastLine[i])
		}
	case Average:
		for i := 0; i < n; i++ {
			var left uint16
			if i >= bpp {
				left = uint16(data[i-bpp])
			}
			var up uint16
			if len(lastLine) != 0 {
				up = uint16(lastLine[i])
			}
			*buf = append(*buf, data[i]-uint8((left+up)>>1))
		}
	case Paeth:
		for i := 0; i < n; i++ {
			var left, up, upLeft uint8
			if i >= bpp {
				left = data[i-bpp]
			}
			if len(lastLine) != 0 {
				up = lastLine[i]
				if i >= bpp {
					upLeft = lastLine[i-bpp]
				}
			}
			*buf = append(*buf, data[i]-paethPredictor(left, up, upLeft))
		}
	default:
		panic("filter: FilterLine called with a non-standard RowFilter: " + f.String())
	}
}

// UnfilterLine is the inverse of FilterLine: it reconstructs the original
// row bytes given the filtered row and the already-reconstructed previous
// row (lastLine must be exactly len(data), or all zero for a pass's first
// row).
func UnfilterLine(f RowFilter, bpp int, data, lastLine []byte, buf *[]byte) error {
	*buf = (*buf)[:0]
	n := len(data)
	switch f {
	case None:
		*buf = append(*buf, data...)
	case Sub:
		for i := 0; i < n; i++ {
			var left uint8
			if i >= bpp {
				left = (*buf)[i-bpp]
			}
			*buf = append(*buf, data[i]+left)
		}
	case Up:
		for i := 0; i < n; i++ {
			var up uint8
			if len(lastLine) != 0 {
				up = lastLine[i]
			}
			*buf = append(*buf, data[i]+up)
		}
	case Average:
		for i := 0; i < n; i++ {
			var left uint16
			if i >= bpp {
				left = uint16((*buf)[i-bpp])
			}
			var up uint16
			if len(lastLine) != 0 {
				up = uint16(lastLine[i])
			}
			*buf = append(*buf, data[i]+uint8((left+up)>>1))
		}
	case Paeth:
		for i := 0; i < n; i++ {
			var left, up, upLeft uint8
			if i >= bpp {
				left = (*buf)[i-bpp]
			}
			if len(lastLine) != 0 {
				up = lastLine[i]
				if i >= bpp {
					upLeft = lastLine[i-bpp]
				}
			}
			*buf = append(*buf, data[i]+paethPredictor(left, up, upLeft))
		}
	default:
		return pngerr.InvalidData()
	}
	return nil
}
