package pngopt

import (
	"bytes"

	"github.com/XC-Zero/pngshrink/internal/colors"
	"github.com/XC-Zero/pngshrink/internal/deflate"
	"github.com/XC-Zero/pngshrink/internal/pngimage"
)

// ValidateOutput re-decodes optimized and compares its pixels against
// original (the pre-optimization input bytes), per spec.md §4.8.
// Fully-transparent pixels compare equal regardless of color, which is
// what makes the optimize_alpha visually-lossless reductions valid.
//
// A decode failure on original (e.g. it had a CRC error that fix_errors
// forced past) does not fail validation: the best we can do at that point
// is confirm optimized itself still decodes.
func ValidateOutput(original, optimized []byte) (bool, error) {
	newData, err := pngimage.Decode(bytes.NewReader(optimized), false, keepAllChunks, nil, deflate.Fast{})
	if err != nil {
		return false, err
	}

	oldData, err := pngimage.Decode(bytes.NewReader(original), true, keepAllChunks, nil, deflate.Fast{})
	if err != nil {
		return true, nil
	}

	oldPixels := oldData.Image.ToRGBA8()
	newPixels := newData.Image.ToRGBA8()
	if len(oldPixels) != len(newPixels) {
		return false, nil
	}
	for i := range oldPixels {
		if !pixelsEqual(oldPixels[i], newPixels[i]) {
			return false, nil
		}
	}
	return true, nil
}

func pixelsEqual(a, b colors.RGBA8) bool {
	if a.A == 0 || b.A == 0 {
		return true
	}
	return a == b
}

func keepAllChunks([4]byte) bool { return true }
