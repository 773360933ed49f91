// Command catalog-ingest bulk loads catalog items from gzipped JSONL feed
// files into PostgreSQL. Files are parsed concurrently; item IDs seen in an
// earlier file win over later occurrences.
package main

import (
	"bufio"
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/ucpify/ucpify/internal/catalog"
	"github.com/ucpify/ucpify/internal/repository"
)

const (
	// Feed files may carry tens of millions of rows; the filter's false
	// positive rate is the fraction of distinct items wrongly skipped as
	// duplicates.
	bloomCapacity = 50_000_000
	bloomFPR      = 0.0001

	batchSize     = 10_000
	progressEvery = 1_000_000
)

func main() {
	var databaseURL string

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	files := flag.Args()
	if len(files) == 0 {
		slog.Error("no feed files given: pass one or more catalog .jsonl.gz files")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, files); err != nil {
		slog.Error("catalog ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("catalog ingest completed successfully")
}

func run(ctx context.Context, databaseURL string, files []string) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return errors.Wrapf(err, "check file %s", f)
		}
	}

	// Parse all feed files concurrently.
	slog.Info("parsing feed files", slog.Int("files", len(files)))

	parsed := make([][]catalog.Item, len(files))
	g, gctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(parseFile(gctx, i, f, parsed))
	}
	if err := g.Wait(); err != nil {
		return errors.Wrap(err, "parse feeds")
	}

	// Merge in file order, deduplicating IDs across files.
	seen := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
	var merged []catalog.Item
	var dupes int
	for _, items := range parsed {
		for _, it := range items {
			if seen.TestString(it.ID) {
				dupes++
				continue
			}
			seen.AddString(it.ID)
			merged = append(merged, it)
		}
	}

	slog.Info("feeds merged",
		slog.Int("items", len(merged)),
		slog.Int("duplicates_skipped", dupes),
	)
	if len(merged) == 0 {
		slog.Info("nothing to ingest")
		return nil
	}

	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	repo := repository.NewCatalogRepository(pool)
	var written int64
	for start := 0; start < len(merged); start += batchSize {
		end := min(start+batchSize, len(merged))
		n, err := repo.InsertItems(ctx, merged[start:end])
		if err != nil {
			return errors.Wrapf(err, "insert batch at %d", start)
		}
		written += n
		slog.Info("write progress", slog.Int64("written", written), slog.Int("total", len(merged)))
	}

	return nil
}

// parseFile streams one gzipped JSONL feed into parsed[idx].
func parseFile(ctx context.Context, idx int, path string, parsed [][]catalog.Item) func() error {
	return func() error {
		var items []catalog.Item
		var count uint64

		err := streamGzLines(ctx, path, func(line []byte) error {
			it, err := decodeItem(line)
			if err != nil {
				return errors.Wrapf(err, "line %d", count+1)
			}
			if it.ID == "" {
				return nil // skip rows without an ID
			}
			items = append(items, it)
			count++
			if count%progressEvery == 0 {
				slog.Info("parse progress", slog.String("file", path), slog.Uint64("rows", count))
			}
			return nil
		})
		if err != nil {
			return errors.Wrapf(err, "parse %s", path)
		}

		slog.Info("parse complete", slog.String("file", path), slog.Uint64("rows", count))
		parsed[idx] = items
		return nil
	}
}

// decodeItem parses one JSONL row. Unknown keys are skipped, so feeds may
// carry extra fields.
func decodeItem(line []byte) (catalog.Item, error) {
	var it catalog.Item
	d := jx.DecodeBytes(line)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			it.ID, err = d.Str()
		case "title":
			it.Title, err = d.Str()
		case "description":
			it.Description, err = d.Str()
		case "price":
			it.Price, err = d.Int64()
		case "sku":
			it.SKU, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	return it, err
}

// streamGzLines opens a gzip-compressed file and calls fn for each
// non-empty line.
func streamGzLines(ctx context.Context, path string, fn func(line []byte) error) error {
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
	scanner.Buffer(make([]byte, 0, 1<<20), 1<<20)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if err := fn(line); err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}
	return nil
}
