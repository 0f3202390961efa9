// Command discount-import loads discount codes from gzip campaign files.
//
// Each file holds one code per line, optionally followed by a comma and a
// percentage. A code is imported only when at least -min-sources files list
// it, which filters out typos and codes leaked from a single partner.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/xenking/bistro/internal/domain/discount"
	"github.com/xenking/bistro/internal/storage/postgres"
)

type options struct {
	pattern     string
	databaseURL string
	minSources  int
	percentage  int
	maxUsage    int
	validFor    time.Duration
	batchSize   int
	capacity    uint
}

func main() {
	var opt options
	flag.StringVar(&opt.pattern, "files", "data/campaign*.gz", "glob of gzip campaign files")
	flag.StringVar(&opt.databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.IntVar(&opt.minSources, "min-sources", 2, "number of files that must list a code")
	flag.IntVar(&opt.percentage, "percentage", 10, "percentage for lines without one")
	flag.IntVar(&opt.maxUsage, "max-usage", discount.DefaultMaxUsagePerUser, "max usages per user")
	flag.DurationVar(&opt.validFor, "valid-for", 30*24*time.Hour, "how long imported codes stay valid")
	flag.IntVar(&opt.batchSize, "batch", 1000, "codes per insert batch")
	flag.UintVar(&opt.capacity, "capacity", 10_000_000, "expected codes per file, sizes the bloom filters")
	flag.Parse()

	if opt.databaseURL == "" {
		opt.databaseURL = os.Getenv("DATABASE_URL")
	}
	if opt.databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, opt); err != nil {
		slog.Error("discount import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	slog.Info("discount import completed successfully")
}

func run(ctx context.Context, opt options) error {
	files, err := filepath.Glob(opt.pattern)
	if err != nil {
		return errors.Wrap(err, "expand file pattern")
	}
	if len(files) == 0 {
		return errors.Errorf("no files match %q", opt.pattern)
	}
	if opt.minSources > len(files) {
		return errors.Errorf("min-sources %d exceeds file count %d", opt.minSources, len(files))
	}
	slices.Sort(files)
	slog.Info("reconciling campaign files", slog.Int("files", len(files)), slog.Int("min_sources", opt.minSources))

	entries, err := reconcile(ctx, files, reconcileConfig{
		minSources:        opt.minSources,
		defaultPercentage: opt.percentage,
		capacity:          opt.capacity,
	})
	if err != nil {
		return errors.Wrap(err, "reconcile files")
	}
	slog.Info("valid codes found", slog.Int("count", len(entries)))
	if len(entries) == 0 {
		return nil
	}

	pool, err := postgres.NewPool(ctx, opt.databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	repo := postgres.NewDiscountRepository(pool, postgres.DefaultRetryConfig)
	now := time.Now().UTC()
	codes := buildCodes(entries, now, now.Add(opt.validFor), opt.maxUsage)

	var inserted int64
	for chunk := range slices.Chunk(codes, max(opt.batchSize, 1)) {
		n, err := repo.Import(ctx, chunk)
		inserted += n
		if err != nil {
			return errors.Wrap(err, "import batch")
		}
		slog.Info("import progress", slog.Int64("inserted", inserted), slog.Int("total", len(codes)))
	}
	slog.Info("import finished",
		slog.Int64("inserted", inserted),
		slog.Int64("skipped_existing", int64(len(codes))-inserted),
	)
	return nil
}

func buildCodes(entries []entry, now, expires time.Time, maxUsage int) []discount.Code {
	codes := make([]discount.Code, len(entries))
	for i, e := range entries {
		codes[i] = discount.Code{
			ID:              uuid.NewString(),
			Code:            e.code,
			Percentage:      e.percentage,
			ExpirationDate:  expires,
			IsActive:        true,
			MaxUsagePerUser: maxUsage,
			CreatedAt:       now,
		}
	}
	return codes
}
