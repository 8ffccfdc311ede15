// Package chunk implements the PNG container codec: the 8-byte signature,
// the length-tagged CRC-checked chunk framing, and the split of a chunk
// stream into the IDAT accumulation, the IHDR/PLTE/tRNS "key" chunks, and
// the ordered ancillary chunks that round-trip on either side of IDAT.
//
// This is the Go re-expression of the teacher's chunk.go / png.go parse
// loop, generalized from its fixed struct-per-chunk-type model to the
// name+payload model the optimizer's reduction pipeline needs (chunk
// *contents* are only interpreted downstream, by internal/pngimage).
package chunk

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"

	"github.com/XC-Zero/pngshrink/internal/crcsum"
	"github.com/XC-Zero/pngshrink/internal/pngerr"
)

// Signature is the 8 canonical bytes every PNG stream must begin with.
var Signature = [8]byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}

// Raw is one length/name/data/crc chunk as read off the wire, before any
// interpretation of its payload.
type Raw struct {
	Name [4]byte
	Data []byte
}

func (r Raw) NameString() string { return string(r.Name[:]) }

// Parsed is the result of splitting a chunk stream: the concatenated IDAT
// payload, the "key" critical chunks (IHDR/PLTE/tRNS) needed to build the
// image model, and the ancillary chunks kept in original relative order
// with a sentinel IDAT marker threaded through so output can reproduce
// which chunks came before vs. after the image data.
type Parsed struct {
	IHDR []byte
	PLTE []byte // nil if absent
	TRNS []byte // nil if absent
	IDAT []byte // concatenated, still deflated

	// Aux holds ancillary chunks in original order, with one sentinel
	// {Name: "IDAT"} entry marking the position of the first IDAT chunk so
	// Output can split pre-IDAT from post-IDAT chunks.
	Aux []Raw

	// SawAPNG is true if an acTL chunk was encountered (even if stripped).
	SawAPNG bool
}

// KeepFunc decides, for an ancillary (non-key, non-IDAT) chunk name, whether
// it should be retained in Parsed.Aux. It implements the strip policy from
// spec.md §6; this package only calls it, it does not interpret it.
type KeepFunc func(name [4]byte) bool

// WarnFunc receives non-fatal diagnostics raised while parsing, such as the
// APNG-animation-dropped notice.
type WarnFunc func(msg string)

// Parse reads a full PNG chunk stream (starting at the 8-byte signature)
// from r and splits it per Parsed's contract.
//
// CRC mismatches are fatal unless fixErrors is set, matching spec.md §4.1.
func Parse(r io.Reader, fixErrors bool, keep KeepFunc, warn WarnFunc) (*Parsed, error) {
	var sig [8]byte
	if _, err := io.ReadFull(r, sig[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, pngerr.TruncatedData()
		}
		return nil, errors.Wrap(err, "reading PNG signature")
	}
	if sig != Signature {
		return nil, pngerr.NotPNG()
	}

	p := &Parsed{}
	sawIDAT := false
	for {
		raw, done, err := readOne(r, fixErrors)
		if err != nil {
			return nil, err
		}
		if done {
			break
		}

		switch raw.NameString() {
		case "IDAT":
			if !sawIDAT {
				p.Aux = append(p.Aux, Raw{Name: raw.Name})
				sawIDAT = true
			}
			p.IDAT = append(p.IDAT, raw.Data...)
		case "IHDR":
			p.IHDR = raw.Data
		case "PLTE":
			p.PLTE = raw.Data
		case "tRNS":
			p.TRNS = raw.Data
		case "acTL":
			p.SawAPNG = true
			if keep == nil || !keep(raw.Name) {
				if warn != nil {
					warn("stripping animation data from APNG - image will become standard PNG")
				}
				continue
			}
			p.Aux = append(p.Aux, raw)
		default:
			if keep == nil || keep(raw.Name) {
				p.Aux = append(p.Aux, raw)
			}
		}
	}

	if len(p.IDAT) == 0 {
		return nil, pngerr.ChunkMissing("IDAT")
	}
	if p.IHDR == nil {
		return nil, pngerr.ChunkMissing("IHDR")
	}
	return p, nil
}

// readOne reads a single chunk. done is true once IEND has been consumed.
func readOne(r io.Reader, fixErrors bool) (Raw, bool, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		if errors.Is(err, io.EOF) {
			// A well-formed stream always ends on IEND; reaching true EOF
			// here means the stream was truncated before IEND.
			return Raw{}, false, pngerr.TruncatedData()
		}
		return Raw{}, false, errors.Wrap(err, "reading chunk length")
	}
	length := binary.BigEndian.Uint32(lenBuf[:])

	var name [4]byte
	if _, err := io.ReadFull(r, name[:]); err != nil {
		return Raw{}, false, errors.Wrap(err, "reading chunk name")
	}
	if string(name[:]) == "IEND" {
		return Raw{}, true, nil
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return Raw{}, false, pngerr.TruncatedData()
	}

	var crcBuf [4]byte
	if _, err := io.ReadFull(r, crcBuf[:]); err != nil {
		return Raw{}, false, pngerr.TruncatedData()
	}
	crc := binary.BigEndian.Uint32(crcBuf[:])

	if !fixErrors && crcsum.ChunkChecksum(name, data) != crc {
		return Raw{}, false, pngerr.Crc(string(name[:]))
	}

	return Raw{Name: name, Data: data}, false, nil
}

// Write appends one framed chunk (length, name, data, CRC) to buf and
// returns the extended slice.
func Write(buf []byte, name [4]byte, data []byte) []byte {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(data)))
	buf = append(buf, lenBuf[:]...)
	buf = append(buf, name[:]...)
	buf = append(buf, data...)
	var crcBuf [4]byte
	binary.BigEndian.PutUint32(crcBuf[:], crcsum.ChunkChecksum(name, data))
	buf = append(buf, crcBuf[:]...)
	return buf
}

// Name4 converts a chunk-name string (must be exactly 4 bytes) to the
// array form chunk names are stored in.
func Name4(s string) [4]byte {
	var n [4]byte
	copy(n[:], s)
	return n
}
