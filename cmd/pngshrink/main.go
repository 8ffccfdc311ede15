// Command pngshrink recompresses PNG and APNG files losslessly (or
// visually-losslessly, with -a) by searching row-filter, bit-depth,
// color-type, and palette variants and keeping whichever compresses
// smallest.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/XC-Zero/pngshrink/internal/filter"
	"github.com/XC-Zero/pngshrink/internal/pngopt"
)

var log zerolog.Logger

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type cliFlags struct {
	preset     string
	zlibLevel  int
	filters    string
	fast       bool
	zopfli     bool
	interlace  string
	alpha      bool
	noBitDepth bool
	noColor    bool
	noPalette  bool
	noGray     bool
	noIndexed  bool
	strip      string
	keep       []string
	outDir     string
	out        string
	stdout     bool
	backup     bool
	pretend    bool
	force      bool
	fixErrors  bool
	sanity     bool
	timeout    float64
	threads    int
	verbose    bool
	quiet      bool
	useCache   bool
	cacheDir   string
}

func newRootCmd() *cobra.Command {
	var f cliFlags

	cmd := &cobra.Command{
		Use:   "pngshrink [flags] file...",
		Short: "Losslessly recompress PNG/APNG files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log = newLogger(f.verbose, f.quiet)
			opts, err := optionsFromFlags(f)
			if err != nil {
				return errors.WithStack(err)
			}
			return runAll(args, opts, f)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&f.preset, "opt", "o", "2", "optimization preset 0-6 or max")
	flags.IntVar(&f.zlibLevel, "zc", 0, "main deflate level (1-12), overrides preset")
	flags.StringVarP(&f.filters, "filters", "f", "", "comma-separated filter list (0-9)")
	flags.BoolVar(&f.fast, "fast", false, "cheap per-filter trial, then one final trial")
	flags.BoolVarP(&f.zopfli, "zopfli", "Z", false, "use the thorough (multi-level zlib) backend")
	flags.StringVarP(&f.interlace, "interlace", "i", "keep", "interlace directive: 0, 1, or keep")
	flags.BoolVarP(&f.alpha, "alpha", "a", false, "enable alpha-channel optimization")
	flags.BoolVar(&f.noBitDepth, "nb", false, "disable bit-depth reduction")
	flags.BoolVar(&f.noColor, "nc", false, "disable color-type reduction")
	flags.BoolVar(&f.noPalette, "np", false, "disable palette reduction")
	flags.BoolVar(&f.noGray, "ng", false, "disable RGB-to-grayscale reduction")
	flags.BoolVar(&f.noIndexed, "nx", false, "disable conversion to indexed color")
	flags.BoolVar(&f.sanity, "nz", false, "skip pixel-equivalence sanity check")
	flags.StringVarP(&f.strip, "strip", "s", "", "chunk strip policy: safe, all, or a comma list of chunks to keep (all other ancillary chunks are stripped)")
	flags.StringSliceVar(&f.keep, "keep", nil, "chunk names to always keep")
	flags.StringVar(&f.outDir, "dir", "", "write output files into this directory")
	flags.StringVar(&f.out, "out", "", "write output to this single path")
	flags.BoolVar(&f.stdout, "stdout", false, "write optimized output to stdout")
	flags.BoolVar(&f.backup, "backup", false, "keep the original file alongside the output")
	flags.BoolVarP(&f.pretend, "pretend", "P", false, "run the pipeline without writing anything")
	flags.BoolVar(&f.force, "force", false, "write even if the result isn't smaller than the input")
	flags.BoolVar(&f.fixErrors, "fix", false, "tolerate CRC errors in the input")
	flags.Float64Var(&f.timeout, "timeout", 0, "per-file wall-clock budget in seconds")
	flags.IntVarP(&f.threads, "threads", "t", 0, "worker count (0 = all CPUs)")
	flags.BoolVarP(&f.verbose, "verbose", "v", false, "debug-level logging")
	flags.BoolVarP(&f.quiet, "quiet", "q", false, "warnings and errors only")
	flags.BoolVar(&f.useCache, "cache", false, "skip files already recorded as optimized")
	flags.StringVar(&f.cacheDir, "cache-dir", defaultCacheDir(), "on-disk cache directory")

	return cmd
}

func newLogger(verbose, quiet bool) zerolog.Logger {
	level := zerolog.InfoLevel
	switch {
	case quiet:
		level = zerolog.WarnLevel
	case verbose:
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(level).With().Timestamp().Logger()
}

func defaultCacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ".pngshrink-cache"
	}
	return dir + "/pngshrink"
}

// optionsFromFlags turns the parsed CLI surface into one pngopt.Options,
// applying the -o preset first so any explicit flag can still override it.
func optionsFromFlags(f cliFlags) (pngopt.Options, error) {
	opts := presetOptions(f.preset)

	if f.zlibLevel != 0 {
		opts.CompressionLevel = f.zlibLevel
	}
	if f.filters != "" {
		fs, err := parseFilters(f.filters)
		if err != nil {
			return opts, err
		}
		opts.Filters = fs
	}
	opts.UseSlowBackend = f.zopfli || opts.UseSlowBackend

	switch f.interlace {
	case "0":
		no := false
		opts.Interlace = &no
	case "1":
		yes := true
		opts.Interlace = &yes
	case "keep", "":
		opts.Interlace = nil
	default:
		return opts, errors.Errorf("invalid -i value %q", f.interlace)
	}

	opts.OptimizeAlpha = f.alpha
	if f.noBitDepth {
		opts.BitDepthReduction = false
	}
	if f.noColor || f.noGray {
		opts.ColorTypeReduction = false
	}
	if f.noPalette || f.noIndexed {
		opts.PaletteReduction = false
	}
	opts.SanityCheck = !f.sanity

	strip, keep, err := parseStripPolicy(f.strip)
	if err != nil {
		return opts, err
	}
	opts.Strip = strip
	if opts.KeepChunks == nil {
		opts.KeepChunks = map[string]bool{}
	}
	for _, name := range append(keep, f.keep...) {
		opts.KeepChunks[name] = true
	}

	opts.FixErrors = f.fixErrors
	opts.Pretend = f.pretend
	opts.Force = f.force
	opts.Backup = f.backup
	opts.DeadlineSeconds = f.timeout
	opts.Workers = f.threads
	opts.UseCache = f.useCache
	opts.CacheDir = f.cacheDir

	return opts, nil
}

// presetOptions mirrors the reference tool's -o presets: higher numbers
// trade optimization time for (potentially) smaller output.
func presetOptions(preset string) pngopt.Options {
	opts := pngopt.Options{
		Strip:              pngopt.StripNone,
		BitDepthReduction:  true,
		ColorTypeReduction: true,
		PaletteReduction:   true,
		CompressionLevel:   6,
		SanityCheck:        true,
		Filters:            []filter.RowFilter{filter.None},
	}

	level, ok := presetLevel(preset)
	if !ok {
		level = 2
	}
	switch {
	case level <= 0:
		opts.Filters = []filter.RowFilter{filter.None}
	case level == 1:
		opts.Filters = []filter.RowFilter{filter.None, filter.Sub}
	case level <= 3:
		opts.Filters = filter.Standard[:]
	case level <= 5:
		opts.Filters = []filter.RowFilter{filter.MinSum, filter.Entropy, filter.Bigrams}
		opts.CompressionLevel = 9
	default:
		opts.Filters = []filter.RowFilter{filter.MinSum, filter.Entropy, filter.Bigrams, filter.BigEnt, filter.Brute}
		opts.CompressionLevel = 9
		opts.UseSlowBackend = true
	}
	return opts
}

func presetLevel(preset string) (int, bool) {
	if preset == "max" {
		return 6, true
	}
	n, err := strconv.Atoi(preset)
	if err != nil || n < 0 || n > 6 {
		return 0, false
	}
	return n, true
}

func parseFilters(list string) ([]filter.RowFilter, error) {
	names := map[string]filter.RowFilter{
		"0": filter.None, "1": filter.Sub, "2": filter.Up, "3": filter.Average, "4": filter.Paeth,
		"5": filter.MinSum, "6": filter.Entropy, "7": filter.Bigrams, "8": filter.BigEnt, "9": filter.Brute,
	}
	var out []filter.RowFilter
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		rf, ok := names[part]
		if !ok {
			return nil, errors.Errorf("invalid filter %q", part)
		}
		out = append(out, rf)
	}
	return out, nil
}

func parseStripPolicy(spec string) (pngopt.StripPolicy, []string, error) {
	switch spec {
	case "", "none":
		return pngopt.StripNone, nil, nil
	case "safe":
		return pngopt.StripSafe, nil, nil
	case "all":
		return pngopt.StripAll, nil, nil
	default:
		return pngopt.StripAll, strings.Split(spec, ","), nil
	}
}

// runAll processes every input path, bounding concurrency across files (as
// distinct from the per-file filter/deflate concurrency inside Optimize)
// to opts.Workers so -t also caps total parallelism.
func runAll(paths []string, opts pngopt.Options, f cliFlags) error {
	g := new(errgroup.Group)
	limit := opts.Workers
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	g.SetLimit(limit)
	for _, path := range paths {
		path := path
		g.Go(func() error {
			return runOne(path, opts, f)
		})
	}
	return g.Wait()
}

func runOne(path string, opts pngopt.Options, f cliFlags) error {
	input, err := readInput(path)
	if err != nil {
		return errors.Wrapf(err, "reading %s", path)
	}

	result, err := pngopt.Optimize(cmdContext(), input, opts)
	if err != nil {
		log.Error().Err(err).Str("file", path).Msg("optimization failed")
		return errors.Wrapf(err, "optimizing %s", path)
	}
	if result.Skipped {
		log.Debug().Str("file", path).Msg("skipped, already in cache")
		return nil
	}

	for _, w := range result.Warnings {
		log.Warn().Str("file", path).Msg(w)
	}

	log.Info().
		Str("file", path).
		Int("original", result.OriginalSize).
		Int("optimized", result.OptimizedSize).
		Bool("unchanged", result.Unchanged).
		Msg("optimized")

	if opts.Pretend {
		return nil
	}
	return writeOutput(path, result.Output, opts, f)
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func cmdContext() context.Context { return context.Background() }

func writeOutput(path string, output []byte, opts pngopt.Options, f cliFlags) error {
	if f.stdout {
		_, err := os.Stdout.Write(output)
		return err
	}

	dest := path
	if f.out != "" {
		dest = f.out
	} else if f.outDir != "" {
		dest = f.outDir + "/" + lastSegment(path)
	}

	if opts.Backup && dest == path && path != "-" {
		if err := os.Rename(path, path+".bak"); err != nil {
			return errors.Wrap(err, "backing up original")
		}
	}
	return os.WriteFile(dest, output, 0o644)
}

func lastSegment(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[i+1:]
	}
	return path
}
