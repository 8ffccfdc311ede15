package reduction

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/XC-Zero/pngshrink/internal/colors"
	"github.com/XC-Zero/pngshrink/internal/pngimage"
)

func rgbaImage(w, h uint32, pixels []colors.RGBA8) *pngimage.PngImage {
	hdr := pngimage.IhdrData{Width: w, Height: h, ColorType: colors.RGBA(), BitDepth: colors.Eight, Interlaced: pngimage.InterlaceNone}
	data := make([]byte, 0, len(pixels)*4)
	for _, p := range pixels {
		data = append(data, p.R, p.G, p.B, p.A)
	}
	return &pngimage.PngImage{Ihdr: hdr, Data: data}
}

func TestCleanAlphaZeroesTransparentColor(t *testing.T) {
	img := rgbaImage(2, 1, []colors.RGBA8{
		{R: 10, G: 20, B: 30, A: 0},
		{R: 1, G: 2, B: 3, A: 255},
	})
	out, ok := CleanAlpha(img)
	require.True(t, ok)
	require.Equal(t, []byte{0, 0, 0, 0, 1, 2, 3, 255}, out.Data)
}

func TestDropAlphaAllOpaque(t *testing.T) {
	img := rgbaImage(2, 1, []colors.RGBA8{
		{R: 10, G: 20, B: 30, A: 255},
		{R: 1, G: 2, B: 3, A: 255},
	})
	out, ok := DropAlpha(img, true)
	require.True(t, ok)
	require.Equal(t, colors.KindRGB, out.Ihdr.ColorType.Kind)
	require.Nil(t, out.Ihdr.ColorType.TransparentColor)
	require.Equal(t, []byte{10, 20, 30, 1, 2, 3}, out.Data)
}

func TestDropAlphaWithTransparencySynthesizesTRNS(t *testing.T) {
	img := rgbaImage(2, 1, []colors.RGBA8{
		{R: 10, G: 20, B: 30, A: 255},
		{R: 99, G: 99, B: 99, A: 0},
	})
	out, ok := DropAlpha(img, true)
	require.True(t, ok)
	require.NotNil(t, out.Ihdr.ColorType.TransparentColor)
}

func TestDropAlphaRejectsPartialTransparency(t *testing.T) {
	img := rgbaImage(1, 1, []colors.RGBA8{{R: 1, G: 2, B: 3, A: 128}})
	_, ok := DropAlpha(img, true)
	require.False(t, ok)
}

func TestRGBToGrayscale(t *testing.T) {
	hdr := pngimage.IhdrData{Width: 2, Height: 1, ColorType: colors.RGB(nil), BitDepth: colors.Eight, Interlaced: pngimage.InterlaceNone}
	img := &pngimage.PngImage{Ihdr: hdr, Data: []byte{5, 5, 5, 9, 9, 9}}
	out, ok := RGBToGrayscale(img)
	require.True(t, ok)
	require.Equal(t, []byte{5, 9}, out.Data)
	require.True(t, out.Ihdr.ColorType.IsGray())
}

func TestRGBToGrayscaleRejectsColorful(t *testing.T) {
	hdr := pngimage.IhdrData{Width: 1, Height: 1, ColorType: colors.RGB(nil), BitDepth: colors.Eight, Interlaced: pngimage.InterlaceNone}
	img := &pngimage.PngImage{Ihdr: hdr, Data: []byte{5, 6, 7}}
	_, ok := RGBToGrayscale(img)
	require.False(t, ok)
}

func TestToIndexedAndBack(t *testing.T) {
	hdr := pngimage.IhdrData{Width: 3, Height: 1, ColorType: colors.RGB(nil), BitDepth: colors.Eight, Interlaced: pngimage.InterlaceNone}
	img := &pngimage.PngImage{Ihdr: hdr, Data: []byte{1, 2, 3, 1, 2, 3, 9, 9, 9}}

	indexed, ok := ToIndexed(img, true)
	require.True(t, ok)
	require.Equal(t, colors.KindIndexed, indexed.Ihdr.ColorType.Kind)
	require.Len(t, indexed.Ihdr.ColorType.Palette, 2)
	require.Equal(t, []byte{0, 0, 1}, indexed.Data)

	back, ok := IndexedToChannels(indexed, true)
	require.True(t, ok)
	require.Equal(t, img.Data, back.Data)
}

func TestReduceBitDepthIndexed(t *testing.T) {
	hdr := pngimage.IhdrData{Width: 4, Height: 1, ColorType: colors.Indexed(make([]colors.RGBA8, 4)), BitDepth: colors.Eight, Interlaced: pngimage.InterlaceNone}
	img := &pngimage.PngImage{Ihdr: hdr, Data: []byte{0, 1, 2, 3}}
	out, ok := ReduceBitDepth8OrLess(img)
	require.True(t, ok)
	require.Equal(t, colors.Two, out.Ihdr.BitDepth)

	back := ExpandBitDepth(out)
	require.Equal(t, img.Data, back.Data)
}

func TestReduce16To8(t *testing.T) {
	hdr := pngimage.IhdrData{Width: 2, Height: 1, ColorType: colors.Grayscale(nil), BitDepth: colors.Sixteen, Interlaced: pngimage.InterlaceNone}
	img := &pngimage.PngImage{Ihdr: hdr, Data: []byte{5, 5, 200, 200}}
	out, ok := Reduce16To8(img)
	require.True(t, ok)
	require.Equal(t, []byte{5, 200}, out.Data)
	require.Equal(t, colors.Eight, out.Ihdr.BitDepth)
}

func TestReduce16To8RejectsLossy(t *testing.T) {
	hdr := pngimage.IhdrData{Width: 1, Height: 1, ColorType: colors.Grayscale(nil), BitDepth: colors.Sixteen, Interlaced: pngimage.InterlaceNone}
	img := &pngimage.PngImage{Ihdr: hdr, Data: []byte{5, 6}}
	_, ok := Reduce16To8(img)
	require.False(t, ok)
}

func TestReducedPaletteDropsUnusedAndMergesTransparent(t *testing.T) {
	palette := []colors.RGBA8{
		{R: 1, G: 1, B: 1, A: 255},
		{R: 2, G: 2, B: 2, A: 0},
		{R: 9, G: 9, B: 9, A: 255}, // unused
		{R: 3, G: 3, B: 3, A: 0},
	}
	hdr := pngimage.IhdrData{Width: 3, Height: 1, ColorType: colors.Indexed(palette), BitDepth: colors.Eight, Interlaced: pngimage.InterlaceNone}
	img := &pngimage.PngImage{Ihdr: hdr, Data: []byte{0, 1, 3}}

	out, ok := ReducedPalette(img, true)
	require.True(t, ok)
	require.Len(t, out.Ihdr.ColorType.Palette, 2) // index 1 and 3 merge
	require.Equal(t, out.Data[1], out.Data[2])
}

func TestSortedPaletteMzengAndBattiatoAreNoopsOnTooFewColors(t *testing.T) {
	palette := []colors.RGBA8{{A: 255}, {A: 255}}
	hdr := pngimage.IhdrData{Width: 2, Height: 1, ColorType: colors.Indexed(palette), BitDepth: colors.Eight, Interlaced: pngimage.InterlaceNone}
	img := &pngimage.PngImage{Ihdr: hdr, Data: []byte{0, 1}}

	_, ok := SortedPaletteMzeng(img)
	require.False(t, ok)
	_, ok = SortedPaletteBattiato(img)
	require.False(t, ok)
}
