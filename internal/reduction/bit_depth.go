package reduction

import (
	"github.com/XC-Zero/pngshrink/internal/colors"
	"github.com/XC-Zero/pngshrink/internal/pngimage"
)

// Reduce16To8 loslessly halves 16-bit samples to 8-bit, which is only
// possible when every sample's high and low byte are equal (i.e. the
// value is some v*257, meaning the low 8 bits carry no information the
// high 8 bits don't already have).
func Reduce16To8(img *pngimage.PngImage) (*pngimage.PngImage, bool) {
	if img.Ihdr.BitDepth != colors.Sixteen {
		return nil, false
	}
	data := img.Data
	if len(data)%2 != 0 {
		return nil, false
	}
	for i := 0; i < len(data); i += 2 {
		if data[i] != data[i+1] {
			return nil, false
		}
	}
	out := make([]byte, len(data)/2)
	for i, j := 0, 0; i < len(data); i, j = i+2, j+1 {
		out[j] = data[i]
	}
	hdr := img.Ihdr
	hdr.BitDepth = colors.Eight
	return &pngimage.PngImage{Ihdr: hdr, Data: out}, true
}

// bitPermutations lists, for each sub-byte depth, the 8-bit gray levels
// that a sample of that depth scales up to: the sample's bits repeated
// across the whole byte (0x55 for the 2-bit sample 01, 0x11 for the
// 4-bit sample 0001). packBits keeps the low `bits` bits of such a byte,
// which is exactly that sample.
var bitPermutations = map[int][]byte{
	1: {0b0000_0000, 0b1111_1111},
	2: {0b0000_0000, 0b0101_0101, 0b1010_1010, 0b1111_1111},
	4: {
		0x00, 0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77,
		0x88, 0x99, 0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF,
	},
}

func isPermutation(bits int, b byte) bool {
	for _, p := range bitPermutations[bits] {
		if p == b {
			return true
		}
	}
	return false
}

// ReduceBitDepth8OrLess reduces an 8-bit Indexed image's bit depth down to
// the smallest of 1/2/4/8 that can still hold its highest-used palette
// index, or a grayscale/indexed byte-packed image down similarly if every
// byte's bit pattern is expressible at a smaller depth.
func ReduceBitDepth8OrLess(img *pngimage.PngImage) (*pngimage.PngImage, bool) {
	if img.Ihdr.BitDepth != colors.Eight {
		return nil, false
	}
	if img.Ihdr.ColorType.Kind != colors.KindIndexed && img.Ihdr.ColorType.Kind != colors.KindGrayscale {
		return nil, false
	}

	if img.Ihdr.ColorType.Kind == colors.KindIndexed {
		maxIndex := byte(0)
		for _, b := range img.Data {
			if b > maxIndex {
				maxIndex = b
			}
		}
		depth := 1
		for (1 << depth) <= int(maxIndex) {
			depth <<= 1
		}
		if depth >= 8 {
			return nil, false
		}
		return packBits(img, depth), true
	}

	// Grayscale: every byte must be expressible as a permutation of some
	// depth in {1, 2, 4}.
	allowed := 1
	for _, b := range img.Data {
		for allowed < 8 {
			if isPermutation(allowed, b) {
				break
			}
			allowed <<= 1
		}
		if allowed >= 8 {
			return nil, false
		}
	}
	return packBits(img, allowed), true
}

// packBits repacks an 8-bit-per-sample buffer down to `depth` bits per
// sample, most-significant-bit first within each output byte (PNG's
// packing convention for sub-byte depths).
func packBits(img *pngimage.PngImage, depth int) *pngimage.PngImage {
	samplesPerByte := 8 / depth
	mask := byte(1<<uint(depth)) - 1

	width := int(img.Ihdr.Width)
	height := int(img.Ihdr.Height)
	outRowLen := (width*depth + 7) / 8
	out := make([]byte, outRowLen*height)

	for y := 0; y < height; y++ {
		srcRow := img.Data[y*width : (y+1)*width]
		dstRow := out[y*outRowLen : (y+1)*outRowLen]
		for x := 0; x < width; x++ {
			v := srcRow[x] & mask
			byteIdx := x / samplesPerByte
			shift := 8 - depth - (x%samplesPerByte)*depth
			dstRow[byteIdx] |= v << uint(shift)
		}
	}

	hdr := img.Ihdr
	hdr.BitDepth, _ = colors.ParseBitDepth(uint8(depth))
	return &pngimage.PngImage{Ihdr: hdr, Data: out}
}

// ExpandBitDepth unpacks a sub-8-bit grayscale/indexed image up to 8 bits
// per sample, one byte per original sample, without rescaling the sample
// values (a 1-bit grayscale 1 stays 1, not 255). For Indexed images this
// is the inverse of packBits; Optimize calls it on Indexed inputs so the
// palette and color passes, which operate on byte-per-sample buffers, can
// run on them.
func ExpandBitDepth(img *pngimage.PngImage) *pngimage.PngImage {
	if img.Ihdr.BitDepth == colors.Eight || img.Ihdr.BitDepth == colors.Sixteen {
		out := *img
		out.Data = append([]byte(nil), img.Data...)
		return &out
	}
	depth := int(img.Ihdr.BitDepth)
	samplesPerByte := 8 / depth
	mask := byte(1<<uint(depth)) - 1

	width := int(img.Ihdr.Width)
	height := int(img.Ihdr.Height)
	srcRowLen := (width*depth + 7) / 8
	out := make([]byte, width*height)

	for y := 0; y < height; y++ {
		srcRow := img.Data[y*srcRowLen : (y+1)*srcRowLen]
		dstRow := out[y*width : (y+1)*width]
		for x := 0; x < width; x++ {
			byteIdx := x / samplesPerByte
			shift := 8 - depth - (x%samplesPerByte)*depth
			dstRow[x] = (srcRow[byteIdx] >> uint(shift)) & mask
		}
	}

	hdr := img.Ihdr
	hdr.BitDepth = colors.Eight
	return &pngimage.PngImage{Ihdr: hdr, Data: out}
}
