// Package reduction implements the lossless/near-lossless pixel-format
// reduction passes the optimizer tries before evaluating candidates:
// alpha cleanup and dropping, 16-to-8 bit depth, RGB-to-grayscale,
// channel-to-indexed conversion (and back), and palette reduction plus
// reordering. Every function here is grounded on oxipng's
// src/reduction/*.rs and returns (result, true) on success or
// (zero, false) when the reduction does not apply to the given image.
package reduction

import (
	"github.com/XC-Zero/pngshrink/internal/colors"
	"github.com/XC-Zero/pngshrink/internal/pngimage"
)

// CleanAlpha zeroes the color channels of every fully-transparent pixel.
// This never changes how the image decodes (alpha=0 means the color is
// invisible) but frequently improves compressibility by removing
// irrelevant entropy hiding behind transparent pixels.
func CleanAlpha(img *pngimage.PngImage) (*pngimage.PngImage, bool) {
	if !img.Ihdr.ColorType.HasAlpha() {
		return nil, false
	}
	byteDepth := img.Ihdr.BytesPerChannel()
	bpp := img.Ihdr.ColorType.ChannelsPerPixel() * byteDepth
	coloredBytes := bpp - byteDepth

	out := make([]byte, 0, len(img.Data))
	changed := false
	for i := 0; i+bpp <= len(img.Data); i += bpp {
		pixel := img.Data[i : i+bpp]
		transparent := true
		for _, b := range pixel[coloredBytes:] {
			if b != 0 {
				transparent = false
				break
			}
		}
		if transparent {
			for _, b := range pixel[:coloredBytes] {
				if b != 0 {
					changed = true
					break
				}
			}
			out = append(out, make([]byte, coloredBytes)...)
			out = append(out, pixel[coloredBytes:]...)
		} else {
			out = append(out, pixel...)
		}
	}
	if !changed {
		return nil, false
	}

	next := &pngimage.PngImage{Ihdr: img.Ihdr, Data: out}
	return next, true
}

// unusedGrayShades are tried first (in this order) when looking for an
// unused gray value to repurpose as a tRNS transparency key, since they
// are cheap, recognizable, and 2-bit-depth-friendly if the search
// succeeds early.
var unusedGrayShades = [4]byte{0x00, 0xFF, 0x55, 0xAA}

// DropAlpha attempts to remove the alpha channel entirely: every pixel
// must be fully opaque, or (when optimizeAlpha is set) fully transparent,
// and in the latter case the function must find one unused color to
// repurpose as a tRNS transparency key.
func DropAlpha(img *pngimage.PngImage, optimizeAlpha bool) (*pngimage.PngImage, bool) {
	if !img.Ihdr.ColorType.HasAlpha() {
		return nil, false
	}
	byteDepth := img.Ihdr.BytesPerChannel()
	bpp := img.Ihdr.ColorType.ChannelsPerPixel() * byteDepth
	coloredBytes := bpp - byteDepth

	hasTransparency := false
	var usedShades [256]bool

	for i := 0; i+bpp <= len(img.Data); i += bpp {
		pixel := img.Data[i : i+bpp]
		alphaBytes := pixel[coloredBytes:]
		allZero, allFull := true, true
		for _, b := range alphaBytes {
			if b != 0 {
				allZero = false
			}
			if b != 255 {
				allFull = false
			}
		}
		switch {
		case optimizeAlpha && allZero:
			hasTransparency = true
		case !allFull:
			return nil, false
		case optimizeAlpha:
			gray := pixel[0]
			isGrayShade := true
			for _, b := range pixel[:coloredBytes] {
				if b != gray {
					isGrayShade = false
					break
				}
			}
			if isGrayShade {
				usedShades[gray] = true
			}
		}
	}

	var transparencyByte *byte
	if hasTransparency {
		var chosen *byte
		if img.Ihdr.ColorType.Kind == colors.KindGrayscaleAlpha {
			for _, v := range unusedGrayShades {
				if !usedShades[v] {
					c := v
					chosen = &c
					break
				}
			}
		}
		if chosen == nil {
			for v := 0; v < 256; v++ {
				if !usedShades[v] {
					c := byte(v)
					chosen = &c
					break
				}
			}
		}
		if chosen == nil {
			return nil, false
		}
		transparencyByte = chosen
	}

	out := make([]byte, 0, len(img.Data)/bpp*coloredBytes)
	for i := 0; i+bpp <= len(img.Data); i += bpp {
		pixel := img.Data[i : i+bpp]
		if transparencyByte != nil {
			allZero := true
			for _, b := range pixel[coloredBytes:] {
				if b != 0 {
					allZero = false
					break
				}
			}
			if allZero {
				for j := 0; j < coloredBytes; j++ {
					out = append(out, *transparencyByte)
				}
				continue
			}
		}
		out = append(out, pixel[:coloredBytes]...)
	}

	newHdr := img.Ihdr
	if transparencyByte == nil {
		if newHdr.ColorType.Kind == colors.KindGrayscaleAlpha {
			newHdr.ColorType = colors.Grayscale(nil)
		} else {
			newHdr.ColorType = colors.RGB(nil)
		}
	} else {
		var key uint16
		if img.Ihdr.BitDepth == colors.Sixteen {
			key = uint16(*transparencyByte)<<8 | uint16(*transparencyByte)
		} else {
			key = uint16(*transparencyByte)
		}
		if newHdr.ColorType.Kind == colors.KindGrayscaleAlpha {
			newHdr.ColorType = colors.Grayscale(&key)
		} else {
			rgb := colors.RGB16{R: key, G: key, B: key}
			newHdr.ColorType = colors.RGB(&rgb)
		}
	}

	return &pngimage.PngImage{Ihdr: newHdr, Data: out}, true
}
