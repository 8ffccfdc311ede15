package pngimage

import (
	"encoding/binary"

	"github.com/XC-Zero/pngshrink/internal/colors"
	"github.com/XC-Zero/pngshrink/internal/pngerr"
)

// Interlacing is the IHDR interlace-method field.
type Interlacing uint8

const (
	InterlaceNone Interlacing = 0
	InterlaceAdam7 Interlacing = 1
)

// IhdrData mirrors the fields of an IHDR chunk plus the parsed color type.
// Compression and filter method are always 0 and are not stored.
type IhdrData struct {
	Width       uint32
	Height      uint32
	ColorType   colors.ColorType
	BitDepth    colors.BitDepth
	Interlaced  Interlacing
}

// Bpp returns bits-per-pixel (channels * bit depth).
func (h IhdrData) Bpp() int {
	return h.ColorType.ChannelsPerPixel() * int(h.BitDepth)
}

// BytesPerChannel is 2 for 16-bit depth, 1 otherwise (sub-byte depths pack
// into bytes).
func (h IhdrData) BytesPerChannel() int {
	if h.BitDepth == colors.Sixteen {
		return 2
	}
	return 1
}

// rowBytes is ceil(width*bpp/8), the byte length of one unfiltered scanline
// at full (non-interlaced) resolution, or of one Adam7 pass row given an
// already-adjusted pixel count.
func rowBytes(bitsPerPixel, pixels int) int {
	return (bitsPerPixel*pixels + 7) / 8
}

// RawDataSize computes the exact length PngImage.Data must have: the sum,
// over every present scanline (progressive: one per height; interlaced:
// one per Adam7 pass row), of the unfiltered row byte length.
func (h IhdrData) RawDataSize() int {
	bpp := h.Bpp()
	if h.Interlaced == InterlaceNone {
		return int(h.Height) * rowBytes(bpp, int(h.Width))
	}
	total := 0
	for pass := 1; pass <= 7; pass++ {
		c := adam7Constants(pass)
		w := passPixels(int(h.Width), int(c.xShift), int(c.xStep))
		rows := passPixels(int(h.Height), int(c.yShift), int(c.yStep))
		total += rows * rowBytes(bpp, w)
	}
	return total
}

// passPixels computes ceil((dim - shift) / step), floored at 0 if shift
// exceeds dim (an empty pass).
func passPixels(dim, shift, step int) int {
	if shift >= dim {
		return 0
	}
	return (dim - shift + step - 1) / step
}

// ParseIHDR decodes a raw 13-byte IHDR payload plus the raw PLTE/tRNS
// payloads (nil if absent) into an IhdrData.
func ParseIHDR(ihdr, plte, trns []byte) (IhdrData, error) {
	if len(ihdr) < 13 {
		return IhdrData{}, pngerr.InvalidData()
	}
	width := binary.BigEndian.Uint32(ihdr[0:4])
	height := binary.BigEndian.Uint32(ihdr[4:8])
	if width == 0 || height == 0 {
		return IhdrData{}, pngerr.InvalidData()
	}
	depth, err := colors.ParseBitDepth(ihdr[8])
	if err != nil {
		return IhdrData{}, pngerr.InvalidData()
	}
	kind, err := colors.FromHeaderCode(ihdr[9])
	if err != nil {
		return IhdrData{}, pngerr.InvalidData()
	}
	if ihdr[10] != 0 || ihdr[11] != 0 {
		return IhdrData{}, pngerr.InvalidData()
	}
	var interlaced Interlacing
	switch ihdr[12] {
	case 0:
		interlaced = InterlaceNone
	case 1:
		interlaced = InterlaceAdam7
	default:
		return IhdrData{}, pngerr.InvalidData()
	}

	ct, err := buildColorType(kind, depth, plte, trns)
	if err != nil {
		return IhdrData{}, err
	}
	if !ct.ValidDepth(depth) {
		return IhdrData{}, pngerr.InvalidDepthForType(int(depth), ct.String())
	}

	return IhdrData{
		Width:      width,
		Height:     height,
		ColorType:  ct,
		BitDepth:   depth,
		Interlaced: interlaced,
	}, nil
}

func buildColorType(kind colors.Kind, depth colors.BitDepth, plte, trns []byte) (colors.ColorType, error) {
	switch kind {
	case colors.KindIndexed:
		if plte == nil {
			return colors.ColorType{}, pngerr.ChunkMissing("PLTE")
		}
		if len(plte)%3 != 0 {
			return colors.ColorType{}, pngerr.InvalidData()
		}
		n := len(plte) / 3
		palette := make([]colors.RGBA8, n)
		for i := 0; i < n; i++ {
			palette[i] = colors.RGBA8{R: plte[i*3], G: plte[i*3+1], B: plte[i*3+2], A: 255}
		}
		for i, a := range trns {
			if i < len(palette) {
				palette[i].A = a
			}
		}
		return colors.Indexed(palette), nil
	case colors.KindGrayscale:
		var shade *uint16
		if len(trns) >= 2 {
			v := binary.BigEndian.Uint16(trns[0:2])
			shade = &v
		}
		return colors.Grayscale(shade), nil
	case colors.KindRGB:
		var c *colors.RGB16
		if len(trns) >= 6 {
			v := colors.RGB16{
				R: binary.BigEndian.Uint16(trns[0:2]),
				G: binary.BigEndian.Uint16(trns[2:4]),
				B: binary.BigEndian.Uint16(trns[4:6]),
			}
			c = &v
		}
		return colors.RGB(c), nil
	case colors.KindGrayscaleAlpha:
		return colors.GrayscaleAlpha(), nil
	case colors.KindRGBA:
		return colors.RGBA(), nil
	default:
		return colors.ColorType{}, pngerr.InvalidData()
	}
}
