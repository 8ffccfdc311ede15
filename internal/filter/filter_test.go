package filter

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, f RowFilter, bpp int, data, lastLine []byte) {
	t.Helper()
	var filtered, restored []byte
	FilterLine(f, bpp, data, lastLine, &filtered)
	require.NoError(t, UnfilterLine(f, bpp, filtered, lastLine, &restored))
	require.Equal(t, data, restored)
}

func TestStandardFiltersRoundTrip(t *testing.T) {
	data := []byte{10, 20, 30, 40, 50, 60, 70, 80}
	lastLine := []byte{5, 6, 7, 8, 9, 10, 11, 12}
	for _, f := range Standard {
		roundTrip(t, f, 4, data, lastLine)
		roundTrip(t, f, 4, data, nil) // first row of a pass: no previous line
	}
}

func TestPaethPredictorTieBreak(t *testing.T) {
	// a <= b <= c with equal distances favors a, then b, then c.
	require.Equal(t, uint8(5), paethPredictor(5, 5, 5))
}

func TestUnfilterLineRejectsUnknownFilter(t *testing.T) {
	var buf []byte
	err := UnfilterLine(RowFilter(99), 3, []byte{1, 2, 3}, nil, &buf)
	require.Error(t, err)
}

func TestSelectHeuristicsPickAStandardFilter(t *testing.T) {
	data := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	lastLine := []byte{1, 1, 1, 1, 1, 1, 1, 1}
	for _, strategy := range []RowFilter{MinSum, Entropy, Bigrams, BigEnt, Brute} {
		var tail []byte
		chosen, filtered := Select(strategy, 4, data, lastLine, &tail, false)
		require.True(t, chosen.IsStandard())
		require.Len(t, filtered, len(data))

		var restored []byte
		require.NoError(t, UnfilterLine(chosen, 4, filtered, lastLine, &restored))
		require.Equal(t, data, restored)
	}
}

func TestIlog2iMonotonic(t *testing.T) {
	require.Equal(t, uint32(0), ilog2i(1))
	require.True(t, ilog2i(4) > ilog2i(3))
	require.True(t, ilog2i(100) > ilog2i(50))
}
