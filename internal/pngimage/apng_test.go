package pngimage

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/XC-Zero/pngshrink/internal/chunk"
)

func TestParseFramesRoundTrip(t *testing.T) {
	actl := ACTLData{NumFrames: 2, NumPlays: 0}
	fctl1 := FCTLData{SequenceNumber: 0, Width: 4, Height: 4, DelayNum: 1, DelayDen: 10}
	fctl2 := FCTLData{SequenceNumber: 2, Width: 4, Height: 4, DelayNum: 1, DelayDen: 10}
	frame2Data := []byte{1, 2, 3, 4}
	fdat := JoinFDAT(3, frame2Data)

	data := &PngData{RawAux: []chunk.Raw{
		{Name: chunk.Name4("acTL"), Data: actl.Marshal()},
		{Name: chunk.Name4("fcTL"), Data: fctl1.Marshal()},
		{Name: chunk.Name4("IDAT")},
		{Name: chunk.Name4("fcTL"), Data: fctl2.Marshal()},
		{Name: chunk.Name4("fdAT"), Data: fdat},
	}}

	frames, gotACTL, err := data.ParseFrames()
	require.NoError(t, err)
	require.Equal(t, actl, gotACTL)
	require.Len(t, frames, 2)

	require.True(t, frames[0].IsDefaultImage)
	require.Equal(t, fctl1, frames[0].Header)

	require.False(t, frames[1].IsDefaultImage)
	require.Equal(t, fctl2, frames[1].Header)
	require.Equal(t, frame2Data, frames[1].Data)
}

func TestParseFramesRejectsFrameCountMismatch(t *testing.T) {
	actl := ACTLData{NumFrames: 3, NumPlays: 0}
	fctl := FCTLData{SequenceNumber: 0, Width: 2, Height: 2, DelayNum: 1, DelayDen: 1}

	data := &PngData{RawAux: []chunk.Raw{
		{Name: chunk.Name4("acTL"), Data: actl.Marshal()},
		{Name: chunk.Name4("IDAT")},
		{Name: chunk.Name4("fcTL"), Data: fctl.Marshal()},
	}}

	_, _, err := data.ParseFrames()
	require.Error(t, err)
}

func TestParseFramesRejectsOrphanFDAT(t *testing.T) {
	data := &PngData{RawAux: []chunk.Raw{
		{Name: chunk.Name4("IDAT")},
		{Name: chunk.Name4("fdAT"), Data: JoinFDAT(1, []byte{0})},
	}}

	_, _, err := data.ParseFrames()
	require.Error(t, err)
}
