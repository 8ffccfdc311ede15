package deflate

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/zlib"

	"github.com/XC-Zero/pngshrink/internal/pngerr"
)

// Fast is the exploratory backend the evaluator runs every trial
// combination through: klauspost/compress's zlib writer, fed the input in
// chunkSize pieces so a maxSize bound can be enforced without waiting for
// the whole stream to finish compressing.
type Fast struct{}

// clampLevel maps the caller's requested level (1-12 on the CLI) onto
// zlib.BestSpeed..zlib.BestCompression (1-9): levels 1-9 pass through
// one-to-one, anything above 9 clamps to 9 and anything below 1 to 1,
// since a "10+" knob has no fast-backend meaning.
func clampLevel(level int) int {
	if level > zlib.BestCompression {
		return zlib.BestCompression
	}
	if level < zlib.BestSpeed {
		return zlib.BestSpeed
	}
	return level
}

func (Fast) Deflate(data []byte, level int, maxSize int) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := zlib.NewWriterLevel(&buf, clampLevel(level))
	if err != nil {
		return nil, err
	}

	for off := 0; off < len(data); off += chunkSize {
		end := off + chunkSize
		if end > len(data) {
			end = len(data)
		}
		if _, err := zw.Write(data[off:end]); err != nil {
			return nil, err
		}
		if maxSize > 0 {
			if err := zw.Flush(); err != nil {
				return nil, err
			}
			if buf.Len() > maxSize {
				return nil, tooLong(maxSize)
			}
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	if maxSize > 0 && buf.Len() > maxSize {
		return nil, tooLong(maxSize)
	}
	return buf.Bytes(), nil
}

func (Fast) Inflate(data []byte, expectedSize int) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, pngerr.InvalidData()
	}
	defer r.Close()

	out := make([]byte, 0, expectedSize)
	buf := make([]byte, 32*1024)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			out = append(out, buf[:n]...)
			if len(out) > expectedSize {
				return nil, pngerr.IncorrectDataLength(len(out), expectedSize)
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}
	if len(out) != expectedSize {
		return nil, pngerr.IncorrectDataLength(len(out), expectedSize)
	}
	return out, nil
}
