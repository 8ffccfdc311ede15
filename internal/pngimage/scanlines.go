package pngimage

// adam7Pass holds the four constants that describe one of the seven Adam7
// interlacing passes. Factoring these into a flat struct array (rather than
// an enum-of-enums) keeps the hot per-pixel loops tight.
type adam7Pass struct {
	xShift, yShift, xStep, yStep uint8
}

var adam7PassTable = [8]adam7Pass{
	{}, // unused index 0
	{xShift: 0, yShift: 0, xStep: 8, yStep: 8},
	{xShift: 4, yShift: 0, xStep: 8, yStep: 8},
	{xShift: 0, yShift: 4, xStep: 4, yStep: 8},
	{xShift: 2, yShift: 0, xStep: 4, yStep: 4},
	{xShift: 0, yShift: 2, xStep: 2, yStep: 4},
	{xShift: 1, yShift: 0, xStep: 2, yStep: 2},
	{xShift: 0, yShift: 1, xStep: 1, yStep: 2},
}

func adam7Constants(pass int) adam7Pass { return adam7PassTable[pass] }

// ScanLine is one row as produced by the scanline iterator: its filter byte
// (only meaningful when the iterator was asked for filtered data), its
// pixel/filtered bytes, and which Adam7 pass it belongs to (nil for
// progressive images).
type ScanLine struct {
	Filter uint8
	Data   []byte
	Pass   *uint8 // nil for progressive images
}

// ScanLines is a lazy iterator over an image's rows, aware of Adam7
// geometry and of whether a leading filter byte is present in the
// underlying buffer.
type ScanLines struct {
	img       *PngImage
	hasFilter bool

	pos       int
	interlaced bool
	pass      int // 1..7, only used when interlaced
	passRow   int
	passRows  int
	passW     int
}

// NewScanLines returns an iterator over img's rows. hasFilter should be true
// when the underlying data still carries one filter-type byte per row
// (i.e. it has not yet been unfiltered).
func NewScanLines(img *PngImage, hasFilter bool) *ScanLines {
	it := &ScanLines{img: img, hasFilter: hasFilter}
	if img.Ihdr.Interlaced == InterlaceAdam7 {
		it.interlaced = true
		it.pass = 1
		it.setupPass()
	}
	return it
}

func (it *ScanLines) setupPass() {
	for it.pass <= 7 {
		c := adam7Constants(it.pass)
		it.passW = passPixels(int(it.img.Ihdr.Width), int(c.xShift), int(c.xStep))
		it.passRows = passPixels(int(it.img.Ihdr.Height), int(c.yShift), int(c.yStep))
		if it.passW > 0 && it.passRows > 0 {
			it.passRow = 0
			return
		}
		it.pass++
	}
}

// Next returns the next scanline, or ok=false once the image is exhausted.
func (it *ScanLines) Next() (ScanLine, bool) {
	bpp := it.img.Ihdr.Bpp()
	if it.interlaced {
		for it.pass <= 7 {
			if it.passRow >= it.passRows {
				it.pass++
				if it.pass <= 7 {
					it.setupPass()
				}
				continue
			}
			rowLen := rowBytes(bpp, it.passW)
			line, ok := it.take(rowLen)
			if !ok {
				return ScanLine{}, false
			}
			it.passRow++
			p := uint8(it.pass)
			return ScanLine{Filter: line.Filter, Data: line.Data, Pass: &p}, true
		}
		return ScanLine{}, false
	}

	rowLen := rowBytes(bpp, int(it.img.Ihdr.Width))
	return it.take(rowLen)
}

func (it *ScanLines) take(rowLen int) (ScanLine, bool) {
	total := rowLen
	if it.hasFilter {
		total++
	}
	if it.pos+total > len(it.img.Data) {
		return ScanLine{}, false
	}
	var filter uint8
	data := it.img.Data[it.pos : it.pos+total]
	if it.hasFilter {
		filter = data[0]
		data = data[1:]
	}
	it.pos += total
	return ScanLine{Filter: filter, Data: data}, true
}

// All drains the iterator into a slice, for callers that need random
// access to every line at once.
func (it *ScanLines) All() []ScanLine {
	var lines []ScanLine
	for {
		l, ok := it.Next()
		if !ok {
			break
		}
		lines = append(lines, l)
	}
	return lines
}
