package chunk

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/XC-Zero/pngshrink/internal/pngerr"
)

func buildStream(t *testing.T, chunks []Raw) []byte {
	t.Helper()
	var buf []byte
	buf = append(buf, Signature[:]...)
	for _, c := range chunks {
		buf = Write(buf, c.Name, c.Data)
	}
	buf = Write(buf, Name4("IEND"), nil)
	return buf
}

func TestParseRoundTrip(t *testing.T) {
	ihdr := make([]byte, 13)
	chunks := []Raw{
		{Name: Name4("IHDR"), Data: ihdr},
		{Name: Name4("pHYs"), Data: []byte{0, 0, 1, 0, 0, 0, 1, 0, 1}},
		{Name: Name4("IDAT"), Data: []byte{1, 2, 3}},
		{Name: Name4("IDAT"), Data: []byte{4, 5}},
		{Name: Name4("tEXt"), Data: []byte("hi\x00there")},
	}
	stream := buildStream(t, chunks)

	p, err := Parse(bytes.NewReader(stream), false, func([4]byte) bool { return true }, nil)
	require.NoError(t, err)
	require.Equal(t, ihdr, p.IHDR)
	require.Equal(t, []byte{1, 2, 3, 4, 5}, p.IDAT)
	require.Len(t, p.Aux, 3) // pHYs, IDAT sentinel, tEXt
	require.Equal(t, "pHYs", p.Aux[0].NameString())
	require.Equal(t, "IDAT", p.Aux[1].NameString())
	require.Equal(t, "tEXt", p.Aux[2].NameString())
}

func TestParseRejectsBadSignature(t *testing.T) {
	_, err := Parse(bytes.NewReader([]byte("not a png at all........")), false, nil, nil)
	require.True(t, pngerr.Is(err, pngerr.KindNotPNG))
}

func TestParseRejectsBadCRC(t *testing.T) {
	stream := buildStream(t, []Raw{
		{Name: Name4("IHDR"), Data: make([]byte, 13)},
		{Name: Name4("IDAT"), Data: []byte{1}},
	})
	// Corrupt one byte of the IDAT payload after framing, without touching
	// its CRC trailer.
	idx := bytes.Index(stream, []byte("IDAT"))
	stream[idx+4] ^= 0xFF

	_, err := Parse(bytes.NewReader(stream), false, func([4]byte) bool { return true }, nil)
	require.True(t, pngerr.Is(err, pngerr.KindCrc))

	// fix_errors suppresses the check.
	p, err := Parse(bytes.NewReader(stream), true, func([4]byte) bool { return true }, nil)
	require.NoError(t, err)
	require.NotEmpty(t, p.IDAT)
}

func TestParseMissingIDAT(t *testing.T) {
	stream := buildStream(t, []Raw{{Name: Name4("IHDR"), Data: make([]byte, 13)}})
	_, err := Parse(bytes.NewReader(stream), false, func([4]byte) bool { return true }, nil)
	require.True(t, pngerr.Is(err, pngerr.KindChunkMissing))
}

func TestParseStripPolicyAndAPNGWarning(t *testing.T) {
	stream := buildStream(t, []Raw{
		{Name: Name4("IHDR"), Data: make([]byte, 13)},
		{Name: Name4("acTL"), Data: []byte{0, 0, 0, 1, 0, 0, 0, 0}},
		{Name: Name4("tEXt"), Data: []byte("k\x00v")},
		{Name: Name4("IDAT"), Data: []byte{1}},
	})
	var warned string
	p, err := Parse(bytes.NewReader(stream), false, func(n [4]byte) bool {
		return string(n[:]) != "acTL" && string(n[:]) != "tEXt"
	}, func(msg string) { warned = msg })
	require.NoError(t, err)
	require.True(t, p.SawAPNG)
	require.NotEmpty(t, warned)
	for _, a := range p.Aux {
		require.NotEqual(t, "tEXt", a.NameString())
	}
}
