package pngimage

import (
	"io"

	"github.com/XC-Zero/pngshrink/internal/chunk"
	"github.com/XC-Zero/pngshrink/internal/colors"
	"github.com/XC-Zero/pngshrink/internal/deflate"
)

// displayChunks is the set of ancillary chunks the "Safe" strip policy
// keeps because they affect how the image is rendered, per
// SPEC_FULL.md's display-chunk set (grounded on original_source's
// display_chunks.rs).
var displayChunks = map[string]bool{
	"cICP": true,
	"iCCP": true,
	"sRGB": true,
	"pHYs": true,
	"acTL": true,
	"fcTL": true,
	"fdAT": true,
}

// IsDisplayChunk reports whether name affects the rendered image (as
// opposed to being purely informational metadata).
func IsDisplayChunk(name string) bool { return displayChunks[name] }

// holdoverNames are emitted in a second, fixed group right after
// PLTE/tRNS (ahead of any other post-key ancillary chunk) because their
// correct interpretation depends on the palette: bKGD and hIST index into
// it, and a regenerated tRNS must follow the (possibly reordered) palette
// it describes.
var holdoverNames = []string{"bKGD", "hIST", "tRNS"}

// PngData is a fully parsed, decoded PNG: its image model plus the
// ancillary chunks that must round-trip around it.
type PngData struct {
	Image *PngImage

	// RawAux holds every kept ancillary chunk (IHDR/PLTE/tRNS/IDAT
	// excluded) with a sentinel "IDAT" marker, exactly as chunk.Parsed
	// describes.
	RawAux []chunk.Raw

	// PLTE/TRNS are carried separately from ColorType.Palette so a
	// reduction pass can rebuild them without losing the original bytes
	// for chunks (bKGD, hIST) that index into the palette by position.
	PLTE []byte
	TRNS []byte

	SawAPNG bool
}

// Decode reads a full PNG stream and returns its decoded image plus the
// ancillary chunks to preserve. keep/warn implement the strip policy and
// are forwarded to chunk.Parse unchanged.
func Decode(r io.Reader, fixErrors bool, keep chunk.KeepFunc, warn chunk.WarnFunc, backend deflate.Backend) (*PngData, error) {
	parsed, err := chunk.Parse(r, fixErrors, keep, warn)
	if err != nil {
		return nil, err
	}

	ihdr, err := ParseIHDR(parsed.IHDR, parsed.PLTE, parsed.TRNS)
	if err != nil {
		return nil, err
	}

	raw, err := backend.Inflate(parsed.IDAT, ihdr.RawDataSize()+expectedFilterBytes(ihdr))
	if err != nil {
		return nil, err
	}

	img, err := UnfilterImage(ihdr, raw)
	if err != nil {
		return nil, err
	}

	return &PngData{
		Image:   img,
		RawAux:  parsed.Aux,
		PLTE:    parsed.PLTE,
		TRNS:    parsed.TRNS,
		SawAPNG: parsed.SawAPNG,
	}, nil
}

// expectedFilterBytes is the count of per-row filter-type bytes that
// precede each scanline (or Adam7 pass row) in the decompressed IDAT
// stream, which RawDataSize() does not itself include.
func expectedFilterBytes(ihdr IhdrData) int {
	if ihdr.Interlaced == InterlaceNone {
		return int(ihdr.Height)
	}
	total := 0
	for pass := 1; pass <= 7; pass++ {
		c := adam7Constants(pass)
		rows := passPixels(int(ihdr.Height), int(c.yShift), int(c.yStep))
		if passPixels(int(ihdr.Width), int(c.xShift), int(c.xStep)) == 0 {
			continue
		}
		total += rows
	}
	return total
}

// Encode serializes d back to a full PNG byte stream, filtering d.Image
// with filterOpts and compressing the result with backend at level,
// enforcing maxSize if positive. Chunk order follows spec.md §4.1:
// IHDR, pre-IDAT ancillary chunks (minus bKGD/hIST/tRNS), PLTE, tRNS,
// bKGD/hIST holdovers, IDAT, post-IDAT ancillary chunks, IEND.
func (d *PngData) Encode(filterOpts FilterOptions, backend deflate.Backend, level, maxSize int) ([]byte, error) {
	filtered := d.Image.FilterImage(filterOpts)
	idat, err := backend.Deflate(filtered, level, maxSize)
	if err != nil {
		return nil, err
	}

	var out []byte
	out = append(out, chunk.Signature[:]...)
	out = chunk.Write(out, chunk.Name4("IHDR"), marshalIHDR(d.Image.Ihdr))

	idatWritten := false
	holdovers := map[string][]byte{}

	for _, a := range d.RawAux {
		if a.NameString() == "IDAT" {
			out, idatWritten = writeKeyAndIDAT(out, d, idat, holdovers)
			continue
		}
		if isHoldover(a.NameString()) {
			holdovers[a.NameString()] = a.Data
			continue
		}
		out = chunk.Write(out, a.Name, a.Data)
	}
	if !idatWritten {
		out, _ = writeKeyAndIDAT(out, d, idat, holdovers)
	}

	out = chunk.Write(out, chunk.Name4("IEND"), nil)
	return out, nil
}

// SyncKeyChunks rebuilds d.PLTE and d.TRNS from d.Image.Ihdr.ColorType,
// and drops bKGD/hIST holdovers once the image is no longer Indexed (they
// index into a palette that, after a reduction pass, may no longer
// exist). A reduction pass that changes color type or reorders/shrinks a
// palette must call this before Encode.
func (d *PngData) SyncKeyChunks() {
	ct := d.Image.Ihdr.ColorType
	switch ct.Kind {
	case colors.KindIndexed:
		plte := make([]byte, 0, len(ct.Palette)*3)
		trns := make([]byte, 0, len(ct.Palette))
		lastOpaque := -1
		for i, c := range ct.Palette {
			plte = append(plte, c.R, c.G, c.B)
			trns = append(trns, c.A)
			if c.A != 255 {
				lastOpaque = i
			}
		}
		d.PLTE = plte
		if lastOpaque >= 0 {
			d.TRNS = trns[:lastOpaque+1]
		} else {
			d.TRNS = nil
		}
	case colors.KindGrayscale:
		d.PLTE = nil
		d.TRNS = nil
		if s := ct.TransparentShade; s != nil {
			d.TRNS = []byte{byte(*s >> 8), byte(*s)}
		}
	case colors.KindRGB:
		d.PLTE = nil
		d.TRNS = nil
		if c := ct.TransparentColor; c != nil {
			d.TRNS = []byte{byte(c.R >> 8), byte(c.R), byte(c.G >> 8), byte(c.G), byte(c.B >> 8), byte(c.B)}
		}
	default:
		d.PLTE = nil
		d.TRNS = nil
	}
	if ct.Kind != colors.KindIndexed {
		for _, name := range []string{"bKGD", "hIST"} {
			var kept []chunk.Raw
			for _, a := range d.RawAux {
				if a.NameString() == name {
					continue
				}
				kept = append(kept, a)
			}
			d.RawAux = kept
		}
	}
}

func isHoldover(name string) bool {
	for _, h := range holdoverNames {
		if h == name {
			return true
		}
	}
	return false
}

// writeKeyAndIDAT emits PLTE (if present), tRNS, any held-over
// bKGD/hIST/tRNS chunks, and the IDAT payload, in that fixed order.
func writeKeyAndIDAT(out []byte, d *PngData, idat []byte, holdovers map[string][]byte) ([]byte, bool) {
	if d.PLTE != nil {
		out = chunk.Write(out, chunk.Name4("PLTE"), d.PLTE)
	}
	if trns, ok := holdovers["tRNS"]; ok {
		out = chunk.Write(out, chunk.Name4("tRNS"), trns)
		delete(holdovers, "tRNS")
	} else if d.TRNS != nil {
		out = chunk.Write(out, chunk.Name4("tRNS"), d.TRNS)
	}
	for _, name := range []string{"bKGD", "hIST"} {
		if data, ok := holdovers[name]; ok {
			out = chunk.Write(out, chunk.Name4(name), data)
			delete(holdovers, name)
		}
	}
	out = chunk.Write(out, chunk.Name4("IDAT"), idat)
	return out, true
}

func marshalIHDR(h IhdrData) []byte {
	buf := make([]byte, 13)
	putUint32(buf[0:4], h.Width)
	putUint32(buf[4:8], h.Height)
	buf[8] = uint8(h.BitDepth)
	buf[9] = h.ColorType.HeaderCode()
	buf[10] = 0
	buf[11] = 0
	buf[12] = uint8(h.Interlaced)
	return buf
}

func putUint32(b []byte, v uint32) {
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
}
