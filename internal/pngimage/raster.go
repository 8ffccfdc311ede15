package pngimage

import "github.com/XC-Zero/pngshrink/internal/colors"

// ToRGBA8 expands img (de-interlacing it first if it is Adam7 and, for
// 16-bit depth, truncating it to its high byte) into one colors.RGBA8 per
// pixel, resolving palette lookups and tRNS transparency keys. It exists
// for validation (spec.md §4.8): comparing two images' actual rendered
// pixels regardless of which color type/bit depth each was stored as.
func (img *PngImage) ToRGBA8() []colors.RGBA8 {
	raster := img
	if img.Ihdr.Interlaced == InterlaceAdam7 {
		raster = img.Deinterlace()
	}
	var scaledShade *uint16
	if raster.Ihdr.BitDepth != colors.Eight && raster.Ihdr.ColorType.Kind != colors.KindIndexed {
		if s := raster.Ihdr.ColorType.TransparentShade; s != nil && raster.Ihdr.BitDepth < colors.Eight {
			mask := uint16(1<<uint(raster.Ihdr.BitDepth)) - 1
			v := uint16(*s) * (255 / mask)
			scaledShade = &v
		}
		raster = expandSamplesTo8(raster)
		if scaledShade != nil {
			raster.Ihdr.ColorType.TransparentShade = scaledShade
		}
	}

	ct := raster.Ihdr.ColorType
	width := int(raster.Ihdr.Width)
	height := int(raster.Ihdr.Height)
	out := make([]colors.RGBA8, 0, width*height)

	switch ct.Kind {
	case colors.KindIndexed:
		depth := int(raster.Ihdr.BitDepth)
		samplesPerByte := 8 / depth
		mask := byte(1<<uint(depth)) - 1
		rowLen := (width*depth + 7) / 8
		black := colors.RGBA8{A: 255}
		for y := 0; y < height; y++ {
			row := raster.Data[y*rowLen : (y+1)*rowLen]
			for x := 0; x < width; x++ {
				byteIdx := x / samplesPerByte
				shift := 8 - depth - (x%samplesPerByte)*depth
				idx := (row[byteIdx] >> uint(shift)) & mask
				c := black
				if int(idx) < len(ct.Palette) {
					c = ct.Palette[idx]
				}
				out = append(out, c)
			}
		}
	case colors.KindGrayscale:
		for y := 0; y < height; y++ {
			row := raster.Data[y*width : (y+1)*width]
			for _, v := range row {
				a := byte(255)
				if ct.TransparentShade != nil && uint16(v) == *ct.TransparentShade {
					a = 0
				}
				out = append(out, colors.RGBA8{R: v, G: v, B: v, A: a})
			}
		}
	case colors.KindGrayscaleAlpha:
		for i := 0; i+1 < len(raster.Data); i += 2 {
			v, a := raster.Data[i], raster.Data[i+1]
			out = append(out, colors.RGBA8{R: v, G: v, B: v, A: a})
		}
	case colors.KindRGB:
		for i := 0; i+2 < len(raster.Data); i += 3 {
			r, g, b := raster.Data[i], raster.Data[i+1], raster.Data[i+2]
			a := byte(255)
			if tc := ct.TransparentColor; tc != nil && uint16(r) == tc.R && uint16(g) == tc.G && uint16(b) == tc.B {
				a = 0
			}
			out = append(out, colors.RGBA8{R: r, G: g, B: b, A: a})
		}
	case colors.KindRGBA:
		for i := 0; i+3 < len(raster.Data); i += 4 {
			out = append(out, colors.RGBA8{R: raster.Data[i], G: raster.Data[i+1], B: raster.Data[i+2], A: raster.Data[i+3]})
		}
	}
	return out
}

// expandSamplesTo8 widens a sub-8-bit or 16-bit sample buffer (for
// non-indexed color types) to one byte per sample, truncating 16-bit
// samples to their high byte.
func expandSamplesTo8(img *PngImage) *PngImage {
	if img.Ihdr.BitDepth == colors.Sixteen {
		out := make([]byte, len(img.Data)/2)
		for i, j := 0, 0; i < len(img.Data); i, j = i+2, j+1 {
			out[j] = img.Data[i]
		}
		hdr := img.Ihdr
		hdr.BitDepth = colors.Eight
		return &PngImage{Ihdr: hdr, Data: out}
	}
	depth := int(img.Ihdr.BitDepth)
	samplesPerByte := 8 / depth
	mask := byte(1<<uint(depth)) - 1
	channels := img.Ihdr.ColorType.ChannelsPerPixel()
	width := int(img.Ihdr.Width) * channels
	height := int(img.Ihdr.Height)
	srcRowLen := (width*depth + 7) / 8
	out := make([]byte, width*height)
	for y := 0; y < height; y++ {
		srcRow := img.Data[y*srcRowLen : (y+1)*srcRowLen]
		dstRow := out[y*width : (y+1)*width]
		for x := 0; x < width; x++ {
			byteIdx := x / samplesPerByte
			shift := 8 - depth - (x%samplesPerByte)*depth
			v := (srcRow[byteIdx] >> uint(shift)) & mask
			// Scale up to the full 0-255 range the way libpng's default
			// display transform does, so a validation comparison isn't
			// fooled by e.g. a 1-bit sample of 1 (meaning "white") not
			// equaling byte value 255.
			dstRow[x] = v * (255 / mask)
		}
	}
	hdr := img.Ihdr
	hdr.BitDepth = colors.Eight
	return &PngImage{Ihdr: hdr, Data: out}
}
