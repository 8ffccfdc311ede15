package reduction

import (
	"sort"

	"github.com/elliotchance/orderedmap/v3"

	"github.com/XC-Zero/pngshrink/internal/colors"
	"github.com/XC-Zero/pngshrink/internal/pngimage"
)

// ReducedPalette drops any palette entries that are never referenced by
// img.Data, and (when optimizeAlpha is set) merges every fully-transparent
// entry into a single one, since they are visually indistinguishable.
func ReducedPalette(img *pngimage.PngImage, optimizeAlpha bool) (*pngimage.PngImage, bool) {
	if img.Ihdr.BitDepth != colors.Eight || img.Ihdr.ColorType.Kind != colors.KindIndexed {
		return nil, false
	}
	palette := img.Ihdr.ColorType.Palette

	var used [256]bool
	for _, b := range img.Data {
		used[b] = true
	}

	black := colors.RGBA8{A: 255}
	condensed := orderedmap.NewOrderedMap[colors.RGBA8, int]()
	var byteMap [256]byte
	didChange := false

	for i := 0; i < 256; i++ {
		if !used[i] {
			continue
		}
		color := black
		if i < len(palette) {
			color = palette[i]
		}
		if optimizeAlpha && color.A == 0 {
			color.R, color.G, color.B = 0, 0, 0
		}
		idx, ok := condensed.Get(color)
		if !ok {
			idx = condensed.Len()
			condensed.Set(color, idx)
		}
		byteMap[i] = byte(idx)
		if int(byteMap[i]) != i {
			didChange = true
		}
	}

	var data []byte
	switch {
	case didChange:
		data = make([]byte, len(img.Data))
		for i, b := range img.Data {
			data[i] = byteMap[b]
		}
	case condensed.Len() != len(palette):
		data = append([]byte(nil), img.Data...)
	default:
		return nil, false
	}

	newPalette := make([]colors.RGBA8, condensed.Len())
	for el := condensed.Front(); el != nil; el = el.Next() {
		newPalette[el.Value] = el.Key
	}

	hdr := img.Ihdr
	hdr.ColorType = colors.Indexed(newPalette)
	return &pngimage.PngImage{Ihdr: hdr, Data: data}, true
}

// mostPopularEdgeColor finds which palette index appears most often as the
// first or last byte of a scanline; putting it first in the palette helps
// slightly when the filter byte for that row ends up being 0.
func mostPopularEdgeColor(numColors int, img *pngimage.PngImage) int {
	var counts [256]uint32
	it := pngimage.NewScanLines(img, false)
	for {
		line, ok := it.Next()
		if !ok {
			break
		}
		if len(line.Data) == 0 {
			continue
		}
		counts[line.Data[0]]++
		counts[line.Data[len(line.Data)-1]]++
	}
	best, bestCount := 0, counts[0]
	for i := 1; i < numColors && i < 256; i++ {
		if counts[i] > bestCount {
			best, bestCount = i, counts[i]
		}
	}
	return best
}

// SortedPalette reorders the palette by ascending alpha, then descending
// luma, keeping the most popular edge color first.
func SortedPalette(img *pngimage.PngImage) (*pngimage.PngImage, bool) {
	if img.Ihdr.BitDepth != colors.Eight || img.Ihdr.ColorType.Kind != colors.KindIndexed {
		return nil, false
	}
	palette := img.Ihdr.ColorType.Palette
	if len(palette) <= 1 {
		return nil, false
	}

	type entry struct {
		origIdx int
		color   colors.RGBA8
	}
	entries := make([]entry, len(palette))
	for i, c := range palette {
		entries[i] = entry{origIdx: i, color: c}
	}

	keepFirst := mostPopularEdgeColor(len(palette), img)
	first := entries[keepFirst]
	rest := append(append([]entry(nil), entries[:keepFirst]...), entries[keepFirst+1:]...)

	colorVal := func(c colors.RGBA8) int64 {
		a := int64(c.A)
		return ((a&0xFE)<<18 + (a & 0x01)) -
			int64(c.R)*299 - int64(c.G)*587 - int64(c.B)*114
	}
	sort.SliceStable(rest, func(i, j int) bool {
		return colorVal(rest[i].color) < colorVal(rest[j].color)
	})
	ordered := append([]entry{first}, rest...)

	remapping := make([]int, len(ordered))
	newPalette := make([]colors.RGBA8, len(ordered))
	unchanged := true
	for i, e := range ordered {
		remapping[i] = e.origIdx
		newPalette[i] = e.color
		if e.origIdx != i {
			unchanged = false
		}
	}
	if unchanged {
		return nil, false
	}

	return applyRemapping(img, remapping, newPalette), true
}

func applyRemapping(img *pngimage.PngImage, remapping []int, newPalette []colors.RGBA8) *pngimage.PngImage {
	var byteMap [256]byte
	for i, orig := range remapping {
		byteMap[orig] = byte(i)
	}
	data := make([]byte, len(img.Data))
	for i, b := range img.Data {
		data[i] = byteMap[b]
	}
	hdr := img.Ihdr
	hdr.ColorType = colors.Indexed(newPalette)
	return &pngimage.PngImage{Ihdr: hdr, Data: data}
}

// applyPaletteReorder applies a computed remapping (new-index -> old-index)
// to img, returning (nil, false) if the remapping is the identity.
func applyPaletteReorder(img *pngimage.PngImage, remapping []int) (*pngimage.PngImage, bool) {
	palette := img.Ihdr.ColorType.Palette
	unchanged := true
	for i, v := range remapping {
		if i != v {
			unchanged = false
			break
		}
	}
	if unchanged {
		return nil, false
	}
	newPalette := make([]colors.RGBA8, len(remapping))
	for i, v := range remapping {
		newPalette[i] = palette[v]
	}
	return applyRemapping(img, remapping, newPalette), true
}

// mostPopularColor finds the palette index used most often across the
// whole image, along with its pixel count.
func mostPopularColor(numColors int, img *pngimage.PngImage) (int, uint32) {
	var counts [256]uint32
	for _, b := range img.Data {
		counts[b]++
	}
	best, bestCount := 0, counts[0]
	for i := 1; i < numColors && i < 256; i++ {
		if counts[i] > bestCount {
			best, bestCount = i, counts[i]
		}
	}
	return best, bestCount
}

// applyMostPopularColor rotates remapping so the most popular color (if it
// makes up at least 15% of the image) ends up first, reversing the order
// when that minimizes how far it has to move.
func applyMostPopularColor(img *pngimage.PngImage, remapping []int) {
	idx, count := mostPopularColor(len(remapping), img)
	if uint64(count)*20 < uint64(len(img.Data))*3 {
		return
	}
	firstIdx := -1
	for i, v := range remapping {
		if v == idx {
			firstIdx = i
			break
		}
	}
	if firstIdx < 0 {
		return
	}
	if firstIdx >= len(remapping)/2 {
		reverse(remapping)
		rotateRight(remapping, firstIdx+1)
	} else {
		rotateLeft(remapping, firstIdx)
	}
}

func reverse(s []int) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

func rotateLeft(s []int, n int) {
	n %= len(s)
	tmp := append(append([]int(nil), s[n:]...), s[:n]...)
	copy(s, tmp)
}

func rotateRight(s []int, n int) {
	rotateLeft(s, len(s)-n%len(s))
}

// coOccurrenceMatrix counts, for each pair of palette indices, how often
// they appear as horizontal or vertical neighbors.
func coOccurrenceMatrix(numColors int, img *pngimage.PngImage) [][]uint32 {
	matrix := make([][]uint32, numColors)
	for i := range matrix {
		matrix[i] = make([]uint32, numColors)
	}

	it := pngimage.NewScanLines(img, false)
	var prev []byte
	for {
		line, ok := it.Next()
		if !ok {
			break
		}
		var prevVal int = -1
		for i, b := range line.Data {
			val := int(b)
			if val >= numColors {
				continue
			}
			if prevVal >= 0 {
				matrix[prevVal][val]++
				matrix[val][prevVal]++
			}
			prevVal = val
			if prev != nil && i < len(prev) {
				up := int(prev[i])
				if up < numColors {
					matrix[up][val]++
					matrix[val][up]++
				}
			}
		}
		prev = line.Data
	}
	return matrix
}

type weightedEdge struct {
	i, j   int
	weight uint32
}

func weightedEdges(matrix [][]uint32) []weightedEdge {
	var edges []weightedEdge
	for i, row := range matrix {
		for j := 0; j < i; j++ {
			edges = append(edges, weightedEdge{i: j, j: i, weight: row[j]})
		}
	}
	sort.SliceStable(edges, func(a, b int) bool { return edges[a].weight > edges[b].weight })
	return edges
}

// SortedPaletteMzeng reindexes the palette using the modified Zeng
// technique (greedy chain growth by co-occurrence weight), per Pinho et
// al.'s note on Zeng's original method.
func SortedPaletteMzeng(img *pngimage.PngImage) (*pngimage.PngImage, bool) {
	if img.Ihdr.BitDepth != colors.Eight || img.Ihdr.Interlaced != pngimage.InterlaceNone {
		return nil, false
	}
	palette := img.Ihdr.ColorType.Palette
	if img.Ihdr.ColorType.Kind != colors.KindIndexed || len(palette) <= 2 {
		return nil, false
	}

	matrix := coOccurrenceMatrix(len(palette), img)
	edges := weightedEdges(matrix)
	if len(edges) == 0 {
		return nil, false
	}
	remapping := mzengReindex(len(palette), edges, matrix)
	applyMostPopularColor(img, remapping)
	return applyPaletteReorder(img, remapping)
}

// SortedPaletteBattiato reindexes the palette using Battiato et al.'s
// approximate TSP chain-construction technique.
func SortedPaletteBattiato(img *pngimage.PngImage) (*pngimage.PngImage, bool) {
	if img.Ihdr.BitDepth != colors.Eight || img.Ihdr.Interlaced != pngimage.InterlaceNone {
		return nil, false
	}
	palette := img.Ihdr.ColorType.Palette
	if img.Ihdr.ColorType.Kind != colors.KindIndexed || len(palette) <= 2 {
		return nil, false
	}

	matrix := coOccurrenceMatrix(len(palette), img)
	edges := weightedEdges(matrix)
	if len(edges) == 0 {
		return nil, false
	}
	remapping := battiatoReindex(len(palette), edges)
	applyMostPopularColor(img, remapping)
	return applyPaletteReorder(img, remapping)
}

func mzengReindex(numColors int, edges []weightedEdge, matrix [][]uint32) []int {
	remapping := []int{edges[0].i, edges[0].j}

	type sum struct {
		idx   int
		total uint32
	}
	var sums []sum
	bestPos := 0
	var best sum
	for i, row := range matrix {
		if i == remapping[0] || i == remapping[1] {
			continue
		}
		s := sum{idx: i, total: row[remapping[0]] + row[remapping[1]]}
		if s.total > best.total {
			bestPos = len(sums)
			best = s
		}
		sums = append(sums, s)
	}

	for len(sums) > 0 {
		bestIndex := best.idx
		var delta int64
		n := int64(numColors - len(sums))
		for i, idx := range remapping {
			delta += (n - 1 - 2*int64(i)) * int64(matrix[bestIndex][idx])
		}
		if delta > 0 {
			remapping = append([]int{bestIndex}, remapping...)
		} else {
			remapping = append(remapping, bestIndex)
		}

		sums[bestPos] = sums[len(sums)-1]
		sums = sums[:len(sums)-1]
		if len(sums) > 0 {
			bestPos = 0
			best = sum{}
			for i := range sums {
				sums[i].total += matrix[bestIndex][sums[i].idx]
				if sums[i].total > best.total {
					bestPos = i
					best = sums[i]
				}
			}
		}
	}
	return remapping
}

type chainVertex struct {
	state int // 0 = unvisited, 1 = chain endpoint, 2 = chain middle
	chain int
}

func battiatoReindex(numColors int, edges []weightedEdge) []int {
	var chains [][]int
	vx := make([]chainVertex, numColors)

	insertFront := func(chain []int, v int) []int {
		out := make([]int, 0, len(chain)+1)
		out = append(out, v)
		out = append(out, chain...)
		return out
	}

	for _, e := range edges {
		i, j := e.i, e.j
		vi, vj := vx[i], vx[j]
		switch {
		case vi.state == 0 && vj.state == 0:
			vx[i] = chainVertex{state: 1, chain: len(chains)}
			vx[j] = chainVertex{state: 1, chain: len(chains)}
			chains = append(chains, []int{i, j})
		case vi.state == 0 && vj.state == 1:
			vx[i] = chainVertex{state: 1, chain: vj.chain}
			vx[j] = chainVertex{state: 2, chain: vj.chain}
			chain := chains[vj.chain]
			if chain[0] == j {
				chains[vj.chain] = insertFront(chain, i)
			} else {
				chains[vj.chain] = append(chain, i)
			}
		case vi.state == 1 && vj.state == 0:
			vx[j] = chainVertex{state: 1, chain: vi.chain}
			vx[i] = chainVertex{state: 2, chain: vi.chain}
			chain := chains[vi.chain]
			if chain[0] == i {
				chains[vi.chain] = insertFront(chain, j)
			} else {
				chains[vi.chain] = append(chain, j)
			}
		case vi.state == 1 && vj.state == 1 && vi.chain != vj.chain:
			vx[i] = chainVertex{state: 2, chain: vi.chain}
			vx[j] = chainVertex{state: 2, chain: vj.chain}
			a, b := i, j
			if vj.chain < vi.chain {
				a, b = j, i
			}
			ca, cb := vx[a].chain, vx[b].chain
			chainB := chains[cb]
			chains[cb] = nil
			for _, v := range chainB {
				vx[v].chain = ca
			}
			chainA := chains[ca]
			switch {
			case chainA[0] == a && chainB[0] == b:
				for k := len(chainB) - 1; k >= 0; k-- {
					chainA = insertFront(chainA, chainB[k])
				}
			case chainA[0] == a:
				chainA = append(append([]int(nil), chainB...), chainA...)
			case chainB[0] == b:
				chainA = append(chainA, chainB...)
			default:
				chainA = append(chainA, chainB...)
			}
			chains[ca] = chainA
		}
		if len(chains) > 0 && len(chains[0]) == numColors {
			break
		}
	}
	if len(chains) == 0 {
		return identityRemap(numColors)
	}
	return chains[0]
}

func identityRemap(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}
