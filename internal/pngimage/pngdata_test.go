package pngimage

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/XC-Zero/pngshrink/internal/chunk"
	"github.com/XC-Zero/pngshrink/internal/colors"
	"github.com/XC-Zero/pngshrink/internal/deflate"
	"github.com/XC-Zero/pngshrink/internal/filter"
)

func buildTestPNG(t *testing.T, width, height uint32) []byte {
	t.Helper()
	hdr := IhdrData{Width: width, Height: height, ColorType: colors.RGB(nil), BitDepth: colors.Eight, Interlaced: InterlaceNone}
	img := &PngImage{Ihdr: hdr, Data: make([]byte, hdr.RawDataSize())}
	for i := range img.Data {
		img.Data[i] = byte(i*31 + 7)
	}

	filtered := img.FilterImage(FilterOptions{Strategy: filter.None})
	idat, err := deflate.Fast{}.Deflate(filtered, 6, 0)
	require.NoError(t, err)

	var out []byte
	out = append(out, chunk.Signature[:]...)
	out = chunk.Write(out, chunk.Name4("IHDR"), marshalIHDR(hdr))
	out = chunk.Write(out, chunk.Name4("IDAT"), idat)
	out = chunk.Write(out, chunk.Name4("IEND"), nil)
	return out
}

func TestDecodeEncodeRoundTrip(t *testing.T) {
	stream := buildTestPNG(t, 4, 3)

	d, err := Decode(bytes.NewReader(stream), false, func([4]byte) bool { return true }, nil, deflate.Fast{})
	require.NoError(t, err)
	require.Equal(t, uint32(4), d.Image.Ihdr.Width)
	require.Equal(t, uint32(3), d.Image.Ihdr.Height)

	out, err := d.Encode(FilterOptions{Strategy: filter.Paeth}, deflate.Fast{}, 9, 0)
	require.NoError(t, err)

	d2, err := Decode(bytes.NewReader(out), false, func([4]byte) bool { return true }, nil, deflate.Fast{})
	require.NoError(t, err)
	require.Equal(t, d.Image.Data, d2.Image.Data)
}
