package evaluate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/XC-Zero/pngshrink/internal/filter"
)

func TestRunPicksSmallestIDATDeterministically(t *testing.T) {
	sizes := []int{500, 100, 300, 100, 200}
	trials := make([]Trial, len(sizes))
	for i, sz := range sizes {
		sz := sz
		trials[i] = func(ctx context.Context, bound *AtomicMin, nth int) (Candidate, bool) {
			return Candidate{Filter: filter.None, IDATLen: sz, Nth: nth}, true
		}
	}

	c, ok := Run(context.Background(), trials, 4)
	require.True(t, ok)
	require.Equal(t, 100, c.IDATLen)
	// Two candidates tie at 100; the earlier submission order (index 1)
	// must win regardless of goroutine completion order.
	require.Equal(t, 1, c.Nth)
}

func TestRunWithNoTrialsReturnsNotOK(t *testing.T) {
	_, ok := Run(context.Background(), nil, 2)
	require.False(t, ok)
}

func TestAtomicMinNeverIncreases(t *testing.T) {
	m := NewAtomicMin(1000)
	m.Update(500)
	require.EqualValues(t, 500, m.Load())
	m.Update(900)
	require.EqualValues(t, 500, m.Load())
}
