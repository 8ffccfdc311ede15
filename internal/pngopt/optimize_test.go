package pngopt

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/XC-Zero/pngshrink/internal/chunk"
	"github.com/XC-Zero/pngshrink/internal/colors"
	"github.com/XC-Zero/pngshrink/internal/deflate"
	"github.com/XC-Zero/pngshrink/internal/filter"
	"github.com/XC-Zero/pngshrink/internal/pngimage"
)

// buildRGBPNG builds a minimal valid PNG stream for an opaque width x
// height RGB image, with a deliberately indexable color palette so the
// reduction pipeline has something to do.
func buildRGBPNG(t *testing.T, width, height uint32) []byte {
	t.Helper()
	hdr := pngimage.IhdrData{
		Width: width, Height: height,
		ColorType:  colors.RGB(nil),
		BitDepth:   colors.Eight,
		Interlaced: pngimage.InterlaceNone,
	}
	img := &pngimage.PngImage{Ihdr: hdr, Data: make([]byte, hdr.RawDataSize())}
	palette := [][3]byte{{10, 20, 30}, {200, 0, 0}, {0, 200, 0}}
	for i := 0; i < len(img.Data); i += 3 {
		c := palette[(i/3)%len(palette)]
		img.Data[i], img.Data[i+1], img.Data[i+2] = c[0], c[1], c[2]
	}

	data := &pngimage.PngData{Image: img}
	out, err := data.Encode(pngimage.FilterOptions{Strategy: filter.None}, deflate.Fast{}, 6, 0)
	require.NoError(t, err)
	return out
}

func TestOptimizeProducesSmallerOrEqualValidPNG(t *testing.T) {
	input := buildRGBPNG(t, 8, 8)

	opts := Options{
		Strip:              StripSafe,
		BitDepthReduction:  true,
		ColorTypeReduction: true,
		PaletteReduction:   true,
		CompressionLevel:   6,
		SanityCheck:        true,
		Filters:            []filter.RowFilter{filter.None, filter.Sub, filter.Up, filter.Average, filter.Paeth},
	}

	result, err := Optimize(context.Background(), input, opts)
	require.NoError(t, err)
	require.NotEmpty(t, result.Output)
	require.LessOrEqual(t, result.OptimizedSize, result.OriginalSize)

	ok, err := ValidateOutput(input, result.Output)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestOptimizeRespectsCache(t *testing.T) {
	input := buildRGBPNG(t, 4, 4)
	dir := t.TempDir()

	opts := Options{
		BitDepthReduction:  true,
		ColorTypeReduction: true,
		PaletteReduction:   true,
		CompressionLevel:   6,
		SanityCheck:        true,
		UseCache:           true,
		CacheDir:           dir,
		Filters:            []filter.RowFilter{filter.None},
	}

	first, err := Optimize(context.Background(), input, opts)
	require.NoError(t, err)
	require.False(t, first.Skipped)

	second, err := Optimize(context.Background(), input, opts)
	require.NoError(t, err)
	require.True(t, second.Skipped)
}

// buildAPNGPNG builds a minimal one-frame APNG: an acTL chunk, a single
// fcTL chunk preceding the IDAT (so its frame is the default image), and
// no fdAT chunks at all.
func buildAPNGPNG(t *testing.T, width, height uint32) []byte {
	t.Helper()
	hdr := pngimage.IhdrData{
		Width: width, Height: height,
		ColorType:  colors.RGB(nil),
		BitDepth:   colors.Eight,
		Interlaced: pngimage.InterlaceNone,
	}
	img := &pngimage.PngImage{Ihdr: hdr, Data: make([]byte, hdr.RawDataSize())}
	for i := range img.Data {
		img.Data[i] = byte(i * 7)
	}

	filtered := img.FilterImage(pngimage.FilterOptions{Strategy: filter.None})
	idat, err := deflate.Fast{}.Deflate(filtered, 6, 0)
	require.NoError(t, err)

	actl := pngimage.ACTLData{NumFrames: 1, NumPlays: 0}
	fctl := pngimage.FCTLData{SequenceNumber: 0, Width: width, Height: height, DelayNum: 1, DelayDen: 10}

	var out []byte
	out = append(out, chunk.Signature[:]...)
	out = chunk.Write(out, chunk.Name4("IHDR"), marshalTestIHDR(hdr))
	out = chunk.Write(out, chunk.Name4("acTL"), actl.Marshal())
	out = chunk.Write(out, chunk.Name4("fcTL"), fctl.Marshal())
	out = chunk.Write(out, chunk.Name4("IDAT"), idat)
	out = chunk.Write(out, chunk.Name4("IEND"), nil)
	return out
}

func marshalTestIHDR(h pngimage.IhdrData) []byte {
	buf := make([]byte, 13)
	buf[0], buf[1], buf[2], buf[3] = byte(h.Width>>24), byte(h.Width>>16), byte(h.Width>>8), byte(h.Width)
	buf[4], buf[5], buf[6], buf[7] = byte(h.Height>>24), byte(h.Height>>16), byte(h.Height>>8), byte(h.Height)
	buf[8] = uint8(h.BitDepth)
	buf[9] = h.ColorType.HeaderCode()
	buf[12] = uint8(h.Interlaced)
	return buf
}

func TestOptimizeStripAllDegradesAPNGToStillPNG(t *testing.T) {
	input := buildAPNGPNG(t, 4, 4)

	opts := Options{
		Strip:              StripAll,
		BitDepthReduction:  true,
		ColorTypeReduction: true,
		PaletteReduction:   true,
		CompressionLevel:   6,
		SanityCheck:        true,
		Filters:            []filter.RowFilter{filter.None, filter.Sub},
	}

	result, err := Optimize(context.Background(), input, opts)
	require.NoError(t, err)
	require.True(t, result.SawAPNG)
	require.NotEmpty(t, result.Warnings)

	decoded, err := pngimage.Decode(bytes.NewReader(result.Output), false, func([4]byte) bool { return true }, nil, deflate.Fast{})
	require.NoError(t, err)
	require.False(t, decoded.SawAPNG, "Strip=All must drop acTL/fcTL so the output is a plain still PNG")
}

func TestOptimizeStripSafeRetainsAPNGFrames(t *testing.T) {
	input := buildAPNGPNG(t, 4, 4)

	opts := Options{
		Strip:              StripSafe,
		BitDepthReduction:  true,
		ColorTypeReduction: true,
		PaletteReduction:   true,
		CompressionLevel:   6,
		SanityCheck:        true,
		Filters:            []filter.RowFilter{filter.None, filter.Sub},
	}

	result, err := Optimize(context.Background(), input, opts)
	require.NoError(t, err)
	require.True(t, result.SawAPNG)

	decoded, err := pngimage.Decode(bytes.NewReader(result.Output), false, func([4]byte) bool { return true }, nil, deflate.Fast{})
	require.NoError(t, err)
	require.True(t, decoded.SawAPNG, "Strip=Safe must round-trip acTL/fcTL")

	frames, actl, err := decoded.ParseFrames()
	require.NoError(t, err)
	require.Equal(t, uint32(1), actl.NumFrames)
	require.Len(t, frames, 1)
	require.True(t, frames[0].IsDefaultImage)
}

func TestOptimizeForceMonotonicity(t *testing.T) {
	input := buildRGBPNG(t, 8, 8)
	opts := Options{
		Strip:              StripSafe,
		BitDepthReduction:  true,
		ColorTypeReduction: true,
		PaletteReduction:   true,
		CompressionLevel:   6,
		SanityCheck:        true,
		Filters:            []filter.RowFilter{filter.None, filter.Sub, filter.Up, filter.Average, filter.Paeth},
	}

	first, err := Optimize(context.Background(), input, opts)
	require.NoError(t, err)

	// Re-optimizing an already-optimized file must never grow it when
	// Force is false: the monotonicity guarantee falls back to returning
	// the (already minimal) input bytes unchanged.
	second, err := Optimize(context.Background(), first.Output, opts)
	require.NoError(t, err)
	require.LessOrEqual(t, len(second.Output), len(first.Output))

	opts.Force = true
	third, err := Optimize(context.Background(), first.Output, opts)
	require.NoError(t, err)
	require.False(t, third.Unchanged)
}

func TestOptimizePretendDoesNotRecordCache(t *testing.T) {
	input := buildRGBPNG(t, 4, 4)
	dir := t.TempDir()

	opts := Options{
		CompressionLevel: 6,
		SanityCheck:      true,
		UseCache:         true,
		CacheDir:         dir,
		Pretend:          true,
		Filters:          []filter.RowFilter{filter.None},
	}

	result, err := Optimize(context.Background(), input, opts)
	require.NoError(t, err)
	require.False(t, result.Skipped)

	seen, err := OpenSeen(dir)
	require.NoError(t, err)
	ok, err := seen.Contains(input)
	require.NoError(t, err)
	require.False(t, ok)
}
