package pngopt

import (
	"bytes"
	"context"

	"github.com/XC-Zero/pngshrink/internal/chunk"
	"github.com/XC-Zero/pngshrink/internal/colors"
	"github.com/XC-Zero/pngshrink/internal/deflate"
	"github.com/XC-Zero/pngshrink/internal/evaluate"
	"github.com/XC-Zero/pngshrink/internal/filter"
	"github.com/XC-Zero/pngshrink/internal/pngerr"
	"github.com/XC-Zero/pngshrink/internal/pngimage"
	"github.com/XC-Zero/pngshrink/internal/reduction"
)

// Result is what Optimize reports back for one input image.
type Result struct {
	Output        []byte
	OriginalSize  int
	OptimizedSize int
	Winner        evaluate.Candidate
	// Skipped is true when the cache already had this exact input
	// recorded as previously optimized.
	Skipped bool
	// SawAPNG is true if the input carried an acTL chunk (even if the
	// animation itself was stripped from Output per Options.Strip).
	SawAPNG bool
	// APNGFrameCount is the number of fcTL-headed frames found when
	// SawAPNG is true.
	APNGFrameCount int
	// Unchanged is true when Output is the original input bytes verbatim,
	// because the optimized candidate was not smaller and Options.Force
	// was false.
	Unchanged bool
	// Warnings carries non-fatal diagnostics raised while parsing (for
	// example, an APNG's animation being dropped under Strip=All).
	Warnings []string
}

// Optimize runs the full pipeline described by spec.md's Main Optimizer:
// decode, build a set of candidate images from the reduction passes,
// evaluate every candidate's filter/format trials concurrently, encode the
// winner (with the slow backend when Options.UseSlowBackend is set, the
// fast one otherwise), and optionally validate the result.
func Optimize(ctx context.Context, input []byte, opts Options) (*Result, error) {
	if opts.UseCache {
		seen, err := OpenSeen(opts.CacheDir)
		if err != nil {
			return nil, err
		}
		ok, err := seen.Contains(input)
		if err != nil {
			return nil, err
		}
		if ok {
			return &Result{OriginalSize: len(input), Skipped: true}, nil
		}
	}

	keep := func(name [4]byte) bool { return opts.Keep(string(name[:])) }
	var warnings []string
	warn := func(msg string) { warnings = append(warnings, msg) }

	data, err := pngimage.Decode(bytes.NewReader(input), opts.FixErrors, keep, warn, deflate.Fast{})
	if err != nil {
		return nil, err
	}

	reductionOpts := opts
	frameCount := 0
	if data.SawAPNG && opts.Keep("acTL") {
		// The animation is being retained, so validate its structure
		// before reducing anything: chunk.Parse only checked that acTL
		// itself decodes, not that fcTL/fdAT form a consistent sequence.
		frames, _, ferr := data.ParseFrames()
		if ferr != nil {
			return nil, ferr
		}
		frameCount = len(frames)

		// The animation's other frames share this file's single IHDR, so
		// any reduction that changes color type, bit depth, or
		// interlacing would desync their raw bytes from the new format.
		// Only the format-preserving passes (alpha cleanup, filter/deflate
		// re-evaluation) are safe here; when acTL is being stripped instead
		// (below), the frames are discarded along with it and the
		// remaining default image is free to reduce normally.
		reductionOpts.BitDepthReduction = false
		reductionOpts.ColorTypeReduction = false
		reductionOpts.PaletteReduction = false
		reductionOpts.Interlace = nil
	}

	variants := applyReductions(data.Image, reductionOpts)

	deadline := NewDeadline(ctx, opts.DeadlineSeconds)
	defer deadline.Stop()

	strategies := opts.Filters
	if len(strategies) == 0 {
		strategies = []filter.RowFilter{filter.None}
	}
	level := opts.CompressionLevel
	if level == 0 {
		level = 6
	}

	trials := make([]evaluate.Trial, 0, len(variants)*len(strategies))
	for _, v := range variants {
		v := v
		for _, strat := range strategies {
			strat := strat
			trials = append(trials, func(tctx context.Context, bound *evaluate.AtomicMin, nth int) (evaluate.Candidate, bool) {
				if deadline.Expired() {
					return evaluate.Candidate{}, false
				}
				fo := pngimage.FilterOptions{Strategy: strat, OptimizeAlpha: opts.OptimizeAlpha}
				filtered := v.FilterImage(fo)
				idat, err := deflate.Fast{}.Deflate(filtered, level, int(bound.Load()))
				if err != nil {
					return evaluate.Candidate{}, false
				}
				return evaluate.Candidate{
					Filter:    strat,
					BitDepth:  uint8(v.Ihdr.BitDepth),
					ColorType: v.Ihdr.ColorType.String(),
					IDATLen:   len(idat),
					RawLen:    len(filtered),
					Nth:       nth,
					IDAT:      idat,
					Image:     v,
				}, true
			})
		}
	}

	winner, ok := evaluate.Run(deadline.Context(), trials, opts.Workers)
	if !ok {
		return nil, pngerr.TimedOut()
	}

	winningData := &pngimage.PngData{
		Image:   winner.Image,
		RawAux:  append([]chunk.Raw(nil), data.RawAux...),
		PLTE:    data.PLTE,
		TRNS:    data.TRNS,
		SawAPNG: data.SawAPNG,
	}
	winningData.SyncKeyChunks()

	backend := deflate.Backend(deflate.Fast{})
	if opts.UseSlowBackend {
		backend = deflate.Slow{}
	}
	output, err := winningData.Encode(pngimage.FilterOptions{Strategy: winner.Filter, OptimizeAlpha: opts.OptimizeAlpha}, backend, level, 0)
	if err != nil {
		return nil, err
	}

	unchanged := false
	if !opts.Force && len(output) >= len(input) {
		output = append([]byte(nil), input...)
		unchanged = true
	}

	if opts.SanityCheck && !unchanged {
		ok, err := ValidateOutput(input, output)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, pngerr.New("optimized output failed pixel-equivalence validation")
		}
	}

	if opts.UseCache && !opts.Pretend {
		seen, err := OpenSeen(opts.CacheDir)
		if err == nil {
			_ = seen.Record(input)
		}
	}

	return &Result{
		Output:         output,
		OriginalSize:   len(input),
		OptimizedSize:  len(output),
		Winner:         winner,
		SawAPNG:        data.SawAPNG,
		APNGFrameCount: frameCount,
		Unchanged:      unchanged,
		Warnings:       warnings,
	}, nil
}

// applyReductions runs the reduction passes opts enables, following
// spec.md's Main Optimizer steps 1-13: it builds one "baseline" image by
// chaining the reductions that are always adopted when they succeed
// (interlacing, alpha cleanup, 16-to-8, grayscale, palette shrink), then
// branches on the reductions whose benefit is uncertain - drop-alpha,
// indexed/channel conversion, and palette reordering - submitting each as
// an independent candidate image rather than picking one ahead of time.
// The caller cross-products the returned candidates against every filter
// strategy and lets the evaluator's actual compressed size decide the
// winner.
func applyReductions(img *pngimage.PngImage, opts Options) []*pngimage.PngImage {
	if opts.Interlace != nil {
		want := pngimage.InterlaceNone
		if *opts.Interlace {
			want = pngimage.InterlaceAdam7
		}
		if img.Ihdr.Interlaced != want {
			if want == pngimage.InterlaceAdam7 {
				img = img.Interlace()
			} else {
				img = img.Deinterlace()
			}
		}
	}

	if opts.OptimizeAlpha {
		if cleaned, ok := reduction.CleanAlpha(img); ok {
			img = cleaned
		}
	}
	if opts.BitDepthReduction {
		if reduced, ok := reduction.Reduce16To8(img); ok {
			img = reduced
		}
	}
	if opts.ColorTypeReduction {
		if gray, ok := reduction.RGBToGrayscale(img); ok {
			img = gray
		}
	}
	if opts.BitDepthReduction && img.Ihdr.ColorType.Kind == colors.KindIndexed && img.Ihdr.BitDepth != colors.Eight {
		img = reduction.ExpandBitDepth(img)
	}

	baseline := img
	var variants []*pngimage.PngImage
	submit := func(v *pngimage.PngImage) { variants = append(variants, v) }

	// Dropping unused palette entries is strictly non-increasing in size,
	// so it is adopted directly; reordering by luma is not guaranteed to
	// help and is submitted as its own candidate instead.
	if opts.PaletteReduction {
		if reduced, ok := reduction.ReducedPalette(baseline, opts.OptimizeAlpha); ok {
			baseline = reduced
		}
		if sorted, ok := reduction.SortedPalette(baseline); ok {
			submit(sorted)
		}
	}

	// Dropping the alpha channel entirely is a color-type change (RGBA->RGB,
	// GrayscaleAlpha->Grayscale), gated the same as any other color-type
	// reduction. It is only promoted to baseline when it didn't need to
	// synthesize a tRNS transparency key, or saved more than a token
	// amount of raw data; otherwise it's submitted alongside baseline and
	// the evaluator decides.
	const savingsThreshold = 1000
	if opts.ColorTypeReduction {
		if dropped, ok := reduction.DropAlpha(baseline, opts.OptimizeAlpha); ok {
			saved := baseline.Ihdr.RawDataSize() - dropped.Ihdr.RawDataSize()
			if dropped.Ihdr.ColorType.HasTrns() && saved <= savingsThreshold {
				submit(dropped)
			} else {
				baseline = dropped
			}
		}
	}

	// Un-palettizing back to channels is only worth the evaluator's time
	// at the highest compression effort.
	if opts.ColorTypeReduction && baseline.Ihdr.ColorType.Kind == colors.KindIndexed &&
		(opts.CompressionLevel >= 12 || opts.UseSlowBackend) {
		if channels, ok := reduction.IndexedToChannels(baseline, true); ok {
			submit(channels)
		}
	}

	var indexedCandidates []*pngimage.PngImage
	if opts.PaletteReduction && baseline.Ihdr.ColorType.Kind == colors.KindIndexed {
		indexedCandidates = append(indexedCandidates, baseline)
	}
	if opts.PaletteReduction {
		if indexed, ok := reduction.ToIndexed(baseline, false); ok {
			saved := baseline.Ihdr.RawDataSize() - indexed.Ihdr.RawDataSize()
			if saved <= savingsThreshold {
				submit(indexed)
			} else {
				baseline = indexed
			}
			indexedCandidates = append(indexedCandidates, indexed)
		}
	}

	// Both palette orderings are submitted independently: the evaluator's
	// trial compression decides which one wins, not a hand-picked
	// precedence between them.
	for _, ic := range indexedCandidates {
		if mzeng, ok := reduction.SortedPaletteMzeng(ic); ok {
			submit(mzeng)
		}
		if battiato, ok := reduction.SortedPaletteBattiato(ic); ok {
			submit(battiato)
		}
	}

	if opts.BitDepthReduction {
		retained := append(append([]*pngimage.PngImage{}, variants...), baseline)
		for _, v := range retained {
			if packed, ok := reduction.ReduceBitDepth8OrLess(v); ok {
				submit(packed)
			}
		}
	}

	submit(baseline)
	return variants
}
