package pngimage

// getBits reads a bpp-bit sample starting at bitOffset (from the start of
// row) out of a big-endian-packed row, for bpp <= 8 it is a sub-byte
// (possibly single-bit) read; for bpp in {8, 16, 24, 32, 48, 64} it is a
// whole-byte-aligned read.
func getBits(row []byte, bitOffset, bpp int) uint64 {
	if bpp >= 8 {
		byteOff := bitOffset / 8
		nBytes := bpp / 8
		var v uint64
		for i := 0; i < nBytes; i++ {
			v = v<<8 | uint64(row[byteOff+i])
		}
		return v
	}
	byteOff := bitOffset / 8
	shift := 8 - bpp - (bitOffset % 8)
	mask := uint64(1)<<uint(bpp) - 1
	return (uint64(row[byteOff]) >> uint(shift)) & mask
}

// setBits writes a bpp-bit sample into row at bitOffset, per the same
// layout getBits reads.
func setBits(row []byte, bitOffset, bpp int, value uint64) {
	if bpp >= 8 {
		byteOff := bitOffset / 8
		nBytes := bpp / 8
		for i := nBytes - 1; i >= 0; i-- {
			row[byteOff+i] = byte(value)
			value >>= 8
		}
		return
	}
	byteOff := bitOffset / 8
	shift := 8 - bpp - (bitOffset % 8)
	mask := uint64(1)<<uint(bpp) - 1
	row[byteOff] =(row[byteOff] &^ byte(mask<<uint(shift))) | byte((value&mask)<<uint(shift))
}

// Deinterlace returns a new PngImage holding the same pixels laid out as a
// flat, non-interlaced raster. It is a no-op copy if img is already
// progressive.
func (img *PngImage) Deinterlace() *PngImage {
	if img.Ihdr.Interlaced == InterlaceNone {
		out := *img
		out.Data = append([]byte(nil), img.Data...)
		return &out
	}

	bpp := img.Ihdr.Bpp()
	destHdr := img.Ihdr
	destHdr.Interlaced = InterlaceNone
	dest := &PngImage{Ihdr: destHdr, Data: make([]byte, destHdr.RawDataSize())}
	destRowLen := rowBytes(bpp, int(img.Ihdr.Width))

	srcPos := 0
	for pass := 1; pass <= 7; pass++ {
		c := adam7Constants(pass)
		w := passPixels(int(img.Ihdr.Width), int(c.xShift), int(c.xStep))
		rows := passPixels(int(img.Ihdr.Height), int(c.yShift), int(c.yStep))
		if w == 0 || rows == 0 {
			continue
		}
		srcRowLen := rowBytes(bpp, w)
		for r := 0; r < rows; r++ {
			srcRow := img.Data[srcPos : srcPos+srcRowLen]
			srcPos += srcRowLen
			destY := int(c.yShift) + r*int(c.yStep)
			destRow := dest.Data[destY*destRowLen : (destY+1)*destRowLen]
			for px := 0; px < w; px++ {
				v := getBits(srcRow, px*bpp, bpp)
				destX := int(c.xShift) + px*int(c.xStep)
				setBits(destRow, destX*bpp, bpp, v)
			}
		}
	}
	return dest
}

// Interlace returns a new PngImage holding the same pixels rearranged into
// Adam7 pass order. It is a no-op copy if img is already interlaced.
func (img *PngImage) Interlace() *PngImage {
	if img.Ihdr.Interlaced == InterlaceAdam7 {
		out := *img
		out.Data = append([]byte(nil), img.Data...)
		return &out
	}

	bpp := img.Ihdr.Bpp()
	srcRowLen := rowBytes(bpp, int(img.Ihdr.Width))
	destHdr := img.Ihdr
	destHdr.Interlaced = InterlaceAdam7
	dest := &PngImage{Ihdr: destHdr, Data: make([]byte, 0, destHdr.RawDataSize())}

	for pass := 1; pass <= 7; pass++ {
		c := adam7Constants(pass)
		w := passPixels(int(img.Ihdr.Width), int(c.xShift), int(c.xStep))
		rows := passPixels(int(img.Ihdr.Height), int(c.yShift), int(c.yStep))
		if w == 0 || rows == 0 {
			continue
		}
		destRowLen := rowBytes(bpp, w)
		for r := 0; r < rows; r++ {
			srcY := int(c.yShift) + r*int(c.yStep)
			srcRow := img.Data[srcY*srcRowLen : (srcY+1)*srcRowLen]
			destRow := make([]byte, destRowLen)
			for px := 0; px < w; px++ {
				srcX := int(c.xShift) + px*int(c.xStep)
				v := getBits(srcRow, srcX*bpp, bpp)
				setBits(destRow, px*bpp, bpp, v)
			}
			dest.Data = append(dest.Data, destRow...)
		}
	}
	return dest
}
