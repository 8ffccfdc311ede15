package pngimage

import (
	"encoding/binary"

	"github.com/XC-Zero/pngshrink/internal/pngerr"
)

// DisposeOp is an fcTL chunk's dispose_op field: what to do to the output
// buffer after this frame is rendered, before the next frame is composed.
type DisposeOp uint8

const (
	DisposeNone       DisposeOp = 0
	DisposeBackground DisposeOp = 1
	DisposePrevious   DisposeOp = 2
)

// BlendOp is an fcTL chunk's blend_op field: how this frame's pixels are
// combined with the existing output buffer.
type BlendOp uint8

const (
	BlendSource BlendOp = 0
	BlendOver   BlendOp = 1
)

// FCTLData mirrors the 26-byte fcTL chunk payload.
type FCTLData struct {
	SequenceNumber uint32
	Width, Height  uint32
	XOffset, YOffset uint32
	DelayNum, DelayDen uint16
	DisposeOp      DisposeOp
	BlendOp        BlendOp
}

// ParseFCTL decodes a raw fcTL chunk payload.
func ParseFCTL(data []byte) (FCTLData, error) {
	if len(data) != 26 {
		return FCTLData{}, pngerr.IncorrectDataLength(len(data), 26)
	}
	f := FCTLData{
		SequenceNumber: binary.BigEndian.Uint32(data[0:4]),
		Width:          binary.BigEndian.Uint32(data[4:8]),
		Height:         binary.BigEndian.Uint32(data[8:12]),
		XOffset:        binary.BigEndian.Uint32(data[12:16]),
		YOffset:        binary.BigEndian.Uint32(data[16:20]),
		DelayNum:       binary.BigEndian.Uint16(data[20:22]),
		DelayDen:       binary.BigEndian.Uint16(data[22:24]),
		DisposeOp:      DisposeOp(data[24]),
		BlendOp:        BlendOp(data[25]),
	}
	if f.Width == 0 || f.Height == 0 {
		return FCTLData{}, pngerr.InvalidData()
	}
	return f, nil
}

// Marshal re-encodes f as a 26-byte fcTL payload.
func (f FCTLData) Marshal() []byte {
	out := make([]byte, 26)
	binary.BigEndian.PutUint32(out[0:4], f.SequenceNumber)
	binary.BigEndian.PutUint32(out[4:8], f.Width)
	binary.BigEndian.PutUint32(out[8:12], f.Height)
	binary.BigEndian.PutUint32(out[12:16], f.XOffset)
	binary.BigEndian.PutUint32(out[16:20], f.YOffset)
	binary.BigEndian.PutUint16(out[20:22], f.DelayNum)
	binary.BigEndian.PutUint16(out[22:24], f.DelayDen)
	out[24] = byte(f.DisposeOp)
	out[25] = byte(f.BlendOp)
	return out
}

// SplitFDAT strips an fdAT chunk's leading 4-byte sequence number, returning
// it alongside the remaining bytes (which are bit-for-bit equivalent to an
// IDAT chunk's payload for that frame).
func SplitFDAT(data []byte) (sequenceNumber uint32, frameData []byte, err error) {
	if len(data) < 4 {
		return 0, nil, pngerr.TruncatedData()
	}
	return binary.BigEndian.Uint32(data[0:4]), data[4:], nil
}

// JoinFDAT is the inverse of SplitFDAT.
func JoinFDAT(sequenceNumber uint32, frameData []byte) []byte {
	out := make([]byte, 4+len(frameData))
	binary.BigEndian.PutUint32(out[0:4], sequenceNumber)
	copy(out[4:], frameData)
	return out
}

// Frame is one APNG animation frame: its fcTL header plus the concatenated,
// still-compressed image data for that frame (the default/first frame's
// data lives in the stream's ordinary IDAT chunks and carries no fcTL of
// its own unless it is also rendered as part of the animation).
type Frame struct {
	Header FCTLData
	// IsDefaultImage is true for the frame whose pixel data is stored in
	// IDAT rather than fdAT (the single frame that doubles as the PNG's
	// static fallback image, per the APNG spec's acTL/IDAT/fdAT
	// interleaving rule).
	IsDefaultImage bool
	Data           []byte
}

// FrameFromFCTL begins a new Frame from a parsed fcTL chunk; Data is filled
// in separately as the following IDAT/fdAT chunks are consumed.
func FrameFromFCTL(header FCTLData, isDefaultImage bool) Frame {
	return Frame{Header: header, IsDefaultImage: isDefaultImage}
}

// ACTLData mirrors the acTL chunk payload: the animation's frame count and
// loop count (0 means infinite).
type ACTLData struct {
	NumFrames uint32
	NumPlays  uint32
}

func ParseACTL(data []byte) (ACTLData, error) {
	if len(data) != 8 {
		return ACTLData{}, pngerr.IncorrectDataLength(len(data), 8)
	}
	return ACTLData{
		NumFrames: binary.BigEndian.Uint32(data[0:4]),
		NumPlays:  binary.BigEndian.Uint32(data[4:8]),
	}, nil
}

func (a ACTLData) Marshal() []byte {
	out := make([]byte, 8)
	binary.BigEndian.PutUint32(out[0:4], a.NumFrames)
	binary.BigEndian.PutUint32(out[4:8], a.NumPlays)
	return out
}

// ParseFrames reconstructs the APNG frame sequence from d's ancillary
// chunks: it parses acTL, walks fcTL/fdAT in order pairing each fcTL with
// the fdAT payloads that follow it, and reports whether the first fcTL
// (if any) precedes the stream's IDAT - meaning that frame's pixels are
// the default image, not a separate fdAT blob. It errors if any fcTL/
// fdAT/acTL payload is malformed, or if the frame count doesn't match
// acTL's declared NumFrames.
func (d *PngData) ParseFrames() ([]Frame, ACTLData, error) {
	var actl ACTLData
	var haveACTL bool
	var frames []Frame
	sawIDAT := false

	for _, a := range d.RawAux {
		switch a.NameString() {
		case "acTL":
			parsed, err := ParseACTL(a.Data)
			if err != nil {
				return nil, ACTLData{}, err
			}
			actl, haveACTL = parsed, true
		case "IDAT":
			sawIDAT = true
		case "fcTL":
			header, err := ParseFCTL(a.Data)
			if err != nil {
				return nil, ACTLData{}, err
			}
			frames = append(frames, FrameFromFCTL(header, !sawIDAT))
		case "fdAT":
			if len(frames) == 0 {
				return nil, ACTLData{}, pngerr.InvalidData()
			}
			_, frameData, err := SplitFDAT(a.Data)
			if err != nil {
				return nil, ACTLData{}, err
			}
			last := &frames[len(frames)-1]
			last.Data = append(last.Data, frameData...)
		}
	}

	if haveACTL && uint32(len(frames)) != actl.NumFrames {
		return nil, ACTLData{}, pngerr.InvalidData()
	}
	return frames, actl, nil
}
