package deflate

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFastRoundTrip(t *testing.T) {
	data := []byte("the quick brown fox jumps over the lazy dog, repeatedly, repeatedly, repeatedly")
	var f Backend = Fast{}
	compressed, err := f.Deflate(data, 6, 0)
	require.NoError(t, err)

	out, err := f.Inflate(compressed, len(data))
	require.NoError(t, err)
	require.Equal(t, data, out)
}

func TestFastEnforcesMaxSize(t *testing.T) {
	data := make([]byte, 1<<20)
	for i := range data {
		data[i] = byte(i * 2654435761)
	}
	_, err := Fast{}.Deflate(data, 1, 16)
	require.Error(t, err)
}

func TestSlowRoundTrip(t *testing.T) {
	data := []byte("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaabbbbbbbbbb")
	var s Backend = Slow{}
	compressed, err := s.Deflate(data, 6, 0)
	require.NoError(t, err)

	out, err := s.Inflate(compressed, len(data))
	require.NoError(t, err)
	require.Equal(t, data, out)
}

func TestCrc32MatchesChunkChecksumConvention(t *testing.T) {
	require.Equal(t, uint32(0), Crc32(nil))
	require.NotZero(t, Crc32([]byte("abc")))
}
