package reduction

import (
	"github.com/elliotchance/orderedmap/v3"

	"github.com/XC-Zero/pngshrink/internal/colors"
	"github.com/XC-Zero/pngshrink/internal/pngimage"
)

// IndexedMaxDiff bounds how much larger indexed_to_channels' output may be
// than its input, to avoid bloating an image that is only indexed because
// it happens to have few colors at a large resolution.
const IndexedMaxDiff = 20000

// RGBToGrayscale attempts to drop the G/B (and, for RGBA, A stays) channels
// when every pixel's R, G, and B samples are equal.
func RGBToGrayscale(img *pngimage.PngImage) (*pngimage.PngImage, bool) {
	if !img.Ihdr.ColorType.IsRGB() {
		return nil, false
	}
	byteDepth := img.Ihdr.BytesPerChannel()
	bpp := img.Ihdr.ColorType.ChannelsPerPixel() * byteDepth
	lastColor := 2 * byteDepth

	out := make([]byte, 0, len(img.Data)/3)
	for i := 0; i+bpp <= len(img.Data); i += bpp {
		pixel := img.Data[i : i+bpp]
		if byteDepth == 1 {
			if pixel[0] != pixel[1] || pixel[1] != pixel[2] {
				return nil, false
			}
		} else {
			for k := 0; k < byteDepth; k++ {
				if pixel[k] != pixel[byteDepth+k] || pixel[byteDepth+k] != pixel[2*byteDepth+k] {
					return nil, false
				}
			}
		}
		out = append(out, pixel[lastColor:]...)
	}

	hdr := img.Ihdr
	if img.Ihdr.ColorType.Kind == colors.KindRGB {
		var shade *uint16
		if c := img.Ihdr.ColorType.TransparentColor; c != nil && c.R == c.G && c.G == c.B {
			v := c.R
			shade = &v
		}
		hdr.ColorType = colors.Grayscale(shade)
	} else {
		hdr.ColorType = colors.GrayscaleAlpha()
	}
	return &pngimage.PngImage{Ihdr: hdr, Data: out}, true
}

type paletteKey struct {
	r, g, b, a byte
}

// ToIndexed attempts to rebuild the image as an 8-bit palette + indices,
// bailing out as soon as a 257th distinct color would be needed.
// allowGrayscale controls whether a grayscale image (Grayscale or
// GrayscaleAlpha) is also considered a candidate (usually not worth it for
// Grayscale, which is already 1 channel, same as Indexed).
func ToIndexed(img *pngimage.PngImage, allowGrayscale bool) (*pngimage.PngImage, bool) {
	if img.Ihdr.BitDepth != colors.Eight {
		return nil, false
	}
	if img.Ihdr.ColorType.Kind == colors.KindIndexed {
		return nil, false
	}
	if !allowGrayscale && img.Ihdr.ColorType.IsGray() {
		return nil, false
	}

	channels := img.Ihdr.ColorType.ChannelsPerPixel()
	om := orderedmap.NewOrderedMap[paletteKey, int]()
	out := make([]byte, 0, len(img.Data)/channels)

	for i := 0; i+channels <= len(img.Data); i += channels {
		var key paletteKey
		switch channels {
		case 1:
			key = paletteKey{r: img.Data[i], g: img.Data[i], b: img.Data[i], a: 255}
		case 2:
			key = paletteKey{r: img.Data[i], g: img.Data[i], b: img.Data[i], a: img.Data[i+1]}
		case 3:
			key = paletteKey{r: img.Data[i], g: img.Data[i+1], b: img.Data[i+2], a: 255}
		case 4:
			key = paletteKey{r: img.Data[i], g: img.Data[i+1], b: img.Data[i+2], a: img.Data[i+3]}
		}
		idx, ok := om.Get(key)
		if !ok {
			idx = om.Len()
			if idx == 256 {
				return nil, false
			}
			om.Set(key, idx)
		}
		out = append(out, byte(idx))
	}

	var transparentKey *paletteKey
	if img.Ihdr.ColorType.Kind == colors.KindGrayscale && img.Ihdr.ColorType.TransparentShade != nil {
		v := byte(*img.Ihdr.ColorType.TransparentShade)
		k := paletteKey{r: v, g: v, b: v, a: 255}
		transparentKey = &k
	} else if img.Ihdr.ColorType.Kind == colors.KindRGB && img.Ihdr.ColorType.TransparentColor != nil {
		c := img.Ihdr.ColorType.TransparentColor
		k := paletteKey{r: byte(c.R), g: byte(c.G), b: byte(c.B), a: 255}
		transparentKey = &k
	}

	palette := make([]colors.RGBA8, om.Len())
	for el := om.Front(); el != nil; el = el.Next() {
		a := el.Key.a
		if transparentKey != nil && *transparentKey == el.Key {
			a = 0
		}
		palette[el.Value] = colors.RGBA8{R: el.Key.r, G: el.Key.g, B: el.Key.b, A: a}
	}

	hdr := img.Ihdr
	hdr.ColorType = colors.Indexed(palette)
	return &pngimage.PngImage{Ihdr: hdr, Data: out}, true
}

// IndexedToChannels expands an 8-bit-depth indexed image back out to
// Grayscale/GrayscaleAlpha/RGB/RGBA, whichever is the narrowest color type
// its palette's actual colors need, as long as doing so doesn't grow the
// data by more than IndexedMaxDiff bytes.
func IndexedToChannels(img *pngimage.PngImage, allowGrayscale bool) (*pngimage.PngImage, bool) {
	if img.Ihdr.BitDepth != colors.Eight || img.Ihdr.ColorType.Kind != colors.KindIndexed {
		return nil, false
	}
	palette := img.Ihdr.ColorType.Palette

	isGray := allowGrayscale
	if isGray {
		for _, c := range palette {
			if c.R != c.G || c.G != c.B {
				isGray = false
				break
			}
		}
	}
	hasAlpha := false
	for _, c := range palette {
		if c.A != 255 {
			hasAlpha = true
			break
		}
	}

	var newColorType colors.ColorType
	var channels int
	switch {
	case !isGray && hasAlpha:
		newColorType, channels = colors.RGBA(), 4
	case !isGray && !hasAlpha:
		newColorType, channels = colors.RGB(nil), 3
	case isGray && hasAlpha:
		newColorType, channels = colors.GrayscaleAlpha(), 2
	default:
		newColorType, channels = colors.Grayscale(nil), 1
	}

	outSize := channels * len(img.Data)
	if outSize-len(img.Data) > IndexedMaxDiff {
		return nil, false
	}

	black := colors.RGBA8{A: 255}
	out := make([]byte, 0, outSize)
	for _, b := range img.Data {
		c := black
		if int(b) < len(palette) {
			c = palette[b]
		}
		if isGray {
			out = append(out, c.R)
		} else {
			out = append(out, c.R, c.G, c.B)
		}
		if hasAlpha {
			out = append(out, c.A)
		}
	}

	hdr := img.Ihdr
	hdr.ColorType = newColorType
	return &pngimage.PngImage{Ihdr: hdr, Data: out}, true
}
