package deflate

import (
	"bytes"

	"github.com/klauspost/compress/zlib"
)

// Slow is the thorough backend used for the final write once the evaluator
// has already settled on a winning candidate. spec.md calls for a
// Zopfli-class exhaustive compressor here; the example pack carries no Go
// Zopfli binding (see DESIGN.md), so Slow instead spends its extra time by
// compressing the same data several different ways with
// klauspost/compress and keeping the smallest result, never abandoning a
// trial early the way Fast does.
type Slow struct{}

// candidateLevels are tried in addition to the caller's requested level;
// trying BestCompression alongside a couple of mid-range levels
// occasionally beats BestCompression alone because of how klauspost's
// block-splitting heuristics interact with small, highly-filtered PNG
// scanline streams.
var candidateLevels = []int{zlib.BestCompression, 7, 8}

func (Slow) Deflate(data []byte, level int, maxSize int) ([]byte, error) {
	tried := map[int]bool{}
	var best []byte

	tryLevel := func(l int) error {
		l = clampLevel(l)
		if tried[l] {
			return nil
		}
		tried[l] = true

		var buf bytes.Buffer
		zw, err := zlib.NewWriterLevel(&buf, l)
		if err != nil {
			return err
		}
		if _, err := zw.Write(data); err != nil {
			return err
		}
		if err := zw.Close(); err != nil {
			return err
		}
		if best == nil || buf.Len() < len(best) {
			best = buf.Bytes()
		}
		return nil
	}

	if err := tryLevel(level); err != nil {
		return nil, err
	}
	for _, l := range candidateLevels {
		if err := tryLevel(l); err != nil {
			return nil, err
		}
	}

	if maxSize > 0 && len(best) > maxSize {
		return nil, tooLong(maxSize)
	}
	return best, nil
}

func (Slow) Inflate(data []byte, expectedSize int) ([]byte, error) {
	return Fast{}.Inflate(data, expectedSize)
}
