package main

import (
	"bufio"
	"context"
	"log/slog"
	"math/bits"
	"os"
	"strconv"
	"strings"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"
)

const (
	bloomFPR      = 0.001
	progressEvery = 1_000_000
	minCodeLen    = 4
	maxCodeLen    = 32
)

type reconcileConfig struct {
	minSources        int
	defaultPercentage int
	capacity          uint
}

// entry is a code accepted for import.
type entry struct {
	code       string
	percentage int
}

type candidate struct {
	mask       uint
	percentage int
}

// parseLine extracts a code and optional percentage from "CODE[,PCT]".
// ok is false for blank, malformed or out-of-range lines.
func parseLine(line string, defaultPercentage int) (code string, percentage int, ok bool) {
	code, pct, hasPct := strings.Cut(strings.TrimSpace(line), ",")
	code = strings.TrimSpace(code)
	if len(code) < minCodeLen || len(code) > maxCodeLen || strings.ContainsAny(code, " \t") {
		return "", 0, false
	}
	percentage = defaultPercentage
	if hasPct {
		v, err := strconv.Atoi(strings.TrimSpace(pct))
		if err != nil {
			return "", 0, false
		}
		percentage = v
	}
	if percentage < 1 || percentage > 100 {
		return "", 0, false
	}
	return code, percentage, true
}

// reconcile returns the codes listed by at least cfg.minSources files, in
// file order of first appearance. Pass one builds a bloom filter per file,
// pass two keeps only codes some other filter may contain and confirms the
// count exactly.
func reconcile(ctx context.Context, files []string, cfg reconcileConfig) ([]entry, error) {
	if len(files) > bits.UintSize {
		return nil, errors.Errorf("at most %d files supported", bits.UintSize)
	}
	var filters []*bloom.BloomFilter
	if cfg.minSources > 1 {
		var err error
		if filters, err = buildFilters(ctx, files, cfg); err != nil {
			return nil, errors.Wrap(err, "build bloom filters")
		}
	}

	results := make([]map[string]candidate, len(files))
	orders := make([][]string, len(files))
	g, gctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			found := make(map[string]candidate)
			var order []string
			bit := uint(1) << uint(i)
			err := streamCodes(gctx, path, cfg.defaultPercentage, func(code string, pct int) {
				if _, seen := found[code]; seen {
					return
				}
				if !mayAppearElsewhere(filters, i, code, cfg.minSources) {
					return
				}
				found[code] = candidate{mask: bit, percentage: pct}
				order = append(order, code)
			})
			if err != nil {
				return errors.Wrapf(err, "scan file %d", i+1)
			}
			slog.Info("scan complete", slog.String("file", path), slog.Int("candidates", len(found)))
			results[i], orders[i] = found, order
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make(map[string]candidate)
	var order []string
	for i, found := range results {
		for _, code := range orders[i] {
			c := found[code]
			m, seen := merged[code]
			if !seen {
				order = append(order, code)
				m.percentage = c.percentage
			}
			m.mask |= c.mask
			merged[code] = m
		}
	}

	var out []entry
	for _, code := range order {
		c := merged[code]
		if bits.OnesCount(c.mask) >= cfg.minSources {
			out = append(out, entry{code: code, percentage: c.percentage})
		}
	}
	return out, nil
}

// mayAppearElsewhere reports whether enough other files may list code.
func mayAppearElsewhere(filters []*bloom.BloomFilter, self int, code string, minSources int) bool {
	if minSources <= 1 {
		return true
	}
	hits := 0
	for j, f := range filters {
		if j != self && f.TestString(code) {
			hits++
			if hits >= minSources-1 {
				return true
			}
		}
	}
	return false
}

func buildFilters(ctx context.Context, files []string, cfg reconcileConfig) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(files))
	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			filter := bloom.NewWithEstimates(max(cfg.capacity, 1), bloomFPR)
			var count uint64
			err := streamCodes(ctx, path, cfg.defaultPercentage, func(code string, _ int) {
				filter.AddString(code)
				count++
				if count%progressEvery == 0 {
					slog.Info("filter progress", slog.String("file", path), slog.Uint64("codes", count))
				}
			})
			if err != nil {
				return errors.Wrapf(err, "build filter for file %d", i+1)
			}
			filters[i] = filter
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return filters, nil
}

// streamCodes calls fn for every valid line of a gzip file.
func streamCodes(ctx context.Context, path string, defaultPercentage int, fn func(code string, percentage int)) error {
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
		if code, pct, ok := parseLine(scanner.Text(), defaultPercentage); ok {
			fn(code, pct)
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}
	return nil
}
