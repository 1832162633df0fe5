// Package ingest extracts voucher codes from gzip-compressed code lists and
// turns them into VOUCHER discount rules.
//
// Codes are scanned in two passes. The first pass builds one bloom filter per
// file, the second re-reads every file and keeps codes whose presence in
// other files reaches the configured source count. With a source count of
// one every well-formed code is kept and the filters are skipped.
package ingest

import (
	"bufio"
	"context"
	"log/slog"
	"math/bits"
	"os"
	"slices"
	"strings"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"
)

// maxFiles bounds the per-code file bitmask.
const maxFiles = bits.UintSize

// Options controls code extraction.
type Options struct {
	// MinSources is the number of distinct files a code must appear in.
	MinSources int
	MinLen     int
	MaxLen     int
	// Capacity and FalsePositiveRate size each file's bloom filter.
	Capacity          uint
	FalsePositiveRate float64
	// ProgressEvery logs scan progress every N codes. Zero disables it.
	ProgressEvery uint64
	Logger        *slog.Logger
}

// DefaultOptions mirror the production code lists: 8 to 10 character codes
// confirmed by at least two lists.
func DefaultOptions() Options {
	return Options{
		MinSources:        2,
		MinLen:            8,
		MaxLen:            10,
		Capacity:          10_000_000,
		FalsePositiveRate: 0.001,
		ProgressEvery:     10_000_000,
	}
}

func (o Options) validate(files int) error {
	switch {
	case files == 0:
		return errors.New("no input files")
	case files > maxFiles:
		return errors.Errorf("too many input files: %d (max %d)", files, maxFiles)
	case o.MinSources < 1:
		return errors.Errorf("min sources must be positive, got %d", o.MinSources)
	case o.MinSources > files:
		return errors.Errorf("min sources %d exceeds file count %d", o.MinSources, files)
	case o.MinLen < 1 || o.MaxLen < o.MinLen:
		return errors.Errorf("invalid code length bounds [%d, %d]", o.MinLen, o.MaxLen)
	}
	return nil
}

// NormalizeCode trims and upper-cases a raw line. It reports false for
// lines outside the length bounds or containing whitespace.
func (o Options) NormalizeCode(line string) (string, bool) {
	code := strings.ToUpper(strings.TrimSpace(line))
	if len(code) < o.MinLen || len(code) > o.MaxLen {
		return "", false
	}
	if strings.ContainsAny(code, " \t") {
		return "", false
	}
	return code, true
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// Collect returns the sorted set of codes found in at least MinSources files.
func Collect(ctx context.Context, files []string, opts Options) ([]string, error) {
	if err := opts.validate(len(files)); err != nil {
		return nil, err
	}

	var filters []*bloom.BloomFilter
	if opts.MinSources > 1 {
		opts.logger().Info("pass 1: building bloom filters", slog.Int("files", len(files)))
		var err error
		if filters, err = buildFilters(ctx, files, opts); err != nil {
			return nil, errors.Wrap(err, "build bloom filters")
		}
	}

	opts.logger().Info("pass 2: finding candidate codes")
	masks := make([]map[string]uint, len(files))

	g, gctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			m, err := scanCandidates(gctx, i, path, filters, opts)
			if err != nil {
				return errors.Wrapf(err, "scan file %d for candidates", i+1)
			}
			masks[i] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make(map[string]uint)
	for _, m := range masks {
		for code, mask := range m {
			merged[code] |= mask
		}
	}

	codes := make([]string, 0, len(merged))
	for code, mask := range merged {
		if bits.OnesCount(mask) >= opts.MinSources {
			codes = append(codes, code)
		}
	}
	slices.Sort(codes)
	return codes, nil
}

func buildFilters(ctx context.Context, files []string, opts Options) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			filter := bloom.NewWithEstimates(opts.Capacity, opts.FalsePositiveRate)
			var count uint64
			err := streamGzFile(ctx, path, func(line string) {
				code, ok := opts.NormalizeCode(line)
				if !ok {
					return
				}
				filter.AddString(code)
				count++
				opts.progress("pass 1 progress", i, count)
			})
			if err != nil {
				return errors.Wrapf(err, "build filter for file %d", i+1)
			}
			opts.logger().Info("pass 1 complete", slog.Int("file", i+1), slog.Uint64("total_codes", count))
			filters[i] = filter
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return filters, nil
}

// scanCandidates marks every code of file idx that other files' filters
// report. The own-file bit plus the number of reporting filters is the
// code's source count.
func scanCandidates(ctx context.Context, idx int, path string, filters []*bloom.BloomFilter, opts Options) (map[string]uint, error) {
	candidates := make(map[string]uint)
	var count uint64

	err := streamGzFile(ctx, path, func(line string) {
		code, ok := opts.NormalizeCode(line)
		if !ok {
			return
		}
		count++
		opts.progress("pass 2 progress", idx, count)

		mask := uint(1) << uint(idx)
		for j, f := range filters {
			if j != idx && f.TestString(code) {
				mask |= uint(1) << uint(j)
			}
		}
		if filters == nil || mask != uint(1)<<uint(idx) {
			candidates[code] |= mask
		}
	})
	if err != nil {
		return nil, err
	}

	opts.logger().Info("pass 2 complete",
		slog.Int("file", idx+1),
		slog.Uint64("total_codes", count),
		slog.Int("candidates", len(candidates)),
	)
	return candidates, nil
}

func (o Options) progress(msg string, idx int, count uint64) {
	if o.ProgressEvery > 0 && count%o.ProgressEvery == 0 {
		o.logger().Info(msg, slog.Int("file", idx+1), slog.Uint64("codes", count))
	}
}

// streamGzFile opens a gzip-compressed file and calls fn for each line.
func streamGzFile(ctx context.Context, path string, fn func(line string)) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		fn(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}
	return nil
}
