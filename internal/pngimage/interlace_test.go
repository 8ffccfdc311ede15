package pngimage

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/XC-Zero/pngshrink/internal/colors"
)

func smallRGBHeader(w, h uint32, interlaced Interlacing) IhdrData {
	return IhdrData{
		Width:      w,
		Height:     h,
		ColorType:  colors.RGB(nil),
		BitDepth:   colors.Eight,
		Interlaced: interlaced,
	}
}

func TestInterlaceDeinterlaceRoundTrip(t *testing.T) {
	hdr := smallRGBHeader(5, 5, InterlaceNone)
	raster := &PngImage{Ihdr: hdr, Data: make([]byte, hdr.RawDataSize())}
	for i := range raster.Data {
		raster.Data[i] = byte(i * 7 % 251)
	}

	interlaced := raster.Interlace()
	require.Equal(t, InterlaceAdam7, interlaced.Ihdr.Interlaced)
	require.Len(t, interlaced.Data, interlaced.Ihdr.RawDataSize())

	back := interlaced.Deinterlace()
	require.Equal(t, InterlaceNone, back.Ihdr.Interlaced)
	require.Equal(t, raster.Data, back.Data)
}

func TestDeinterlaceSubBytePacking(t *testing.T) {
	hdr := IhdrData{Width: 9, Height: 3, ColorType: colors.Grayscale(nil), BitDepth: colors.One, Interlaced: InterlaceNone}
	raster := &PngImage{Ihdr: hdr, Data: make([]byte, hdr.RawDataSize())}
	for i := range raster.Data {
		raster.Data[i] = byte(0b10110101 + i)
	}

	// Each 9-pixel row occupies 2 bytes; Deinterlace rebuilds rows from
	// zeroed buffers, so the 7 padding bits after the last pixel come
	// back as zero.
	want := append([]byte(nil), raster.Data...)
	for i := 1; i < len(want); i += 2 {
		want[i] &= 0x80
	}

	interlaced := raster.Interlace()
	back := interlaced.Deinterlace()
	require.Equal(t, want, back.Data)
}
