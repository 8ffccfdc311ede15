package pngimage

import (
	"github.com/XC-Zero/pngshrink/internal/colors"
	"github.com/XC-Zero/pngshrink/internal/filter"
	"github.com/XC-Zero/pngshrink/internal/pngerr"
)

// PngImage is the fully decoded, unfiltered pixel buffer plus its header.
// Data holds exactly Ihdr.RawDataSize() bytes: one run of raw (no filter
// byte, no interlacing) scanline bytes per progressive row, or per Adam7
// pass row when Ihdr.Interlaced is set.
type PngImage struct {
	Ihdr IhdrData
	Data []byte
}

// FilterOptions controls how FilterImage picks a filter per row.
type FilterOptions struct {
	// Strategy is one of filter.Standard or one of the five heuristics.
	Strategy filter.RowFilter
	// OptimizeAlpha rewrites the color channels of fully-transparent
	// pixels before filtering, to whatever minimizes the chosen filter's
	// criterion. Decoding the result is pixel-identical under the
	// convention that alpha=0 pixels carry no visible color.
	OptimizeAlpha bool
}

// FilterImage applies opts and returns the filtered byte stream (one filter
// type byte followed by the filtered row, repeated once per scanline) ready
// to hand to the deflate adaptor.
func (img *PngImage) FilterImage(opts FilterOptions) []byte {
	bpp := img.Ihdr.Bpp()
	bytesPerPixel := (bpp + 7) / 8
	if bytesPerPixel < 1 {
		bytesPerPixel = 1
	}

	it := NewScanLines(img, false)
	out := make([]byte, 0, img.Ihdr.RawDataSize()+int(img.Ihdr.Height)+8)

	var lastLine []byte
	var lastPass uint8
	firstOfPass := true
	var bruteTail []byte
	var scratch []byte

	for {
		line, ok := it.Next()
		if !ok {
			break
		}
		pass := uint8(0)
		if line.Pass != nil {
			pass = *line.Pass
		}
		if pass != lastPass {
			lastLine = nil
			firstOfPass = true
			bruteTail = nil
			lastPass = pass
		}

		row := line.Data
		if opts.OptimizeAlpha && img.Ihdr.ColorType.HasAlpha() {
			row = optimizeAlphaRow(img.Ihdr.ColorType, int(img.Ihdr.BitDepth), bytesPerPixel, row)
		}

		var chosen filter.RowFilter
		if opts.Strategy.IsStandard() {
			chosen = opts.Strategy
			filter.FilterLine(chosen, bytesPerPixel, row, lastLine, &scratch)
		} else {
			chosen, scratch = filter.Select(opts.Strategy, bytesPerPixel, row, lastLine, &bruteTail, firstOfPass)
		}

		out = append(out, byte(chosen))
		out = append(out, scratch...)

		lastLine = row
		firstOfPass = false
	}
	return out
}

// UnfilterImage reconstructs a PngImage from a filtered byte stream (as
// produced by FilterImage, or as read straight out of decompressed IDAT
// data for an input file).
func UnfilterImage(ihdr IhdrData, filtered []byte) (*PngImage, error) {
	bpp := ihdr.Bpp()
	bytesPerPixel := (bpp + 7) / 8
	if bytesPerPixel < 1 {
		bytesPerPixel = 1
	}

	img := &PngImage{Ihdr: ihdr, Data: make([]byte, 0, ihdr.RawDataSize())}
	pos := 0
	var buf []byte

	unfilterPass := func(width, rows int) error {
		rowLen := rowBytes(bpp, width)
		var lastLine []byte
		for r := 0; r < rows; r++ {
			if pos >= len(filtered) {
				return pngerr.TruncatedData()
			}
			f := filtered[pos]
			pos++
			if pos+rowLen > len(filtered) {
				return pngerr.TruncatedData()
			}
			data := filtered[pos : pos+rowLen]
			pos += rowLen

			rf := filter.RowFilter(f)
			if !rf.IsStandard() {
				return pngerr.InvalidData()
			}
			if err := filter.UnfilterLine(rf, bytesPerPixel, data, lastLine, &buf); err != nil {
				return err
			}
			img.Data = append(img.Data, buf...)
			lastLine = img.Data[len(img.Data)-rowLen:]
		}
		return nil
	}

	if ihdr.Interlaced == InterlaceNone {
		if err := unfilterPass(int(ihdr.Width), int(ihdr.Height)); err != nil {
			return nil, err
		}
		return img, nil
	}

	for pass := 1; pass <= 7; pass++ {
		c := adam7Constants(pass)
		w := passPixels(int(ihdr.Width), int(c.xShift), int(c.xStep))
		rows := passPixels(int(ihdr.Height), int(c.yShift), int(c.yStep))
		if w == 0 || rows == 0 {
			continue
		}
		if err := unfilterPass(w, rows); err != nil {
			return nil, err
		}
	}
	return img, nil
}

// optimizeAlphaRow returns row unchanged if no pixel is fully transparent;
// otherwise it returns a rewritten copy where each fully-transparent
// pixel's color channels are copied from its left neighbor (or zeroed, for
// the leftmost pixel), which tends to minimize Sub/Average/Paeth deltas
// without changing the decoded image (alpha=0 pixels carry no visible
// color by convention).
func optimizeAlphaRow(ct colors.ColorType, bitDepth, bytesPerPixel int, row []byte) []byte {
	if bitDepth < 8 {
		// Sub-byte depths never carry an alpha channel (GrayscaleAlpha/RGBA
		// require bit depth >= 8), so there is nothing to optimize.
		return row
	}
	channels := ct.ChannelsPerPixel()
	channelBytes := bytesPerPixel / channels
	if channelBytes < 1 {
		return row
	}
	alphaOffset := (channels - 1) * channelBytes

	var out []byte
	for i := 0; i+bytesPerPixel <= len(row); i += bytesPerPixel {
		transparent := true
		for b := 0; b < channelBytes; b++ {
			if row[i+alphaOffset+b] != 0 {
				transparent = false
				break
			}
		}
		if !transparent {
			continue
		}
		if out == nil {
			out = append([]byte(nil), row...)
		}
		for c := 0; c < channels-1; c++ {
			for b := 0; b < channelBytes; b++ {
				dst := i + c*channelBytes + b
				if i >= bytesPerPixel {
					out[dst] = out[i-bytesPerPixel+c*channelBytes+b]
				} else {
					out[dst] = 0
				}
			}
		}
	}
	if out == nil {
		return row
	}
	return out
}
