// Command seed-db loads users and menus into the canteen database and
// schedules the menus for the coming days.
package main

import (
	"bufio"
	"context"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/klauspost/pgzip"

	"github.com/xenking/canteen-orders/internal/domain/calendar"
	"github.com/xenking/canteen-orders/internal/storage/postgres"
)

func main() {
	var (
		databaseURL string
		seedFile    string
		days        int
	)
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&seedFile, "seed-file", "db/seed/canteen.json", "seed JSON file, gzip-compressed when it ends in .gz")
	flag.IntVar(&days, "days", 0, "days to schedule menus for, starting today (overrides the file)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, seedFile, days); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, seedFile string, days int) error {
	file, err := readSeedFile(seedFile)
	if err != nil {
		return err
	}
	if days > 0 {
		file.Days = days
	}
	if file.Days <= 0 {
		file.Days = defaultDays
	}

	slog.Info("connecting to database")
	pool, err := postgres.NewPool(ctx, databaseURL, 0)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	start := calendar.Today(time.Now(), time.Local)
	stats, err := postgres.Seed(ctx, pool, file.Data, start, file.Days)
	if err != nil {
		return errors.Wrap(err, "seed")
	}
	slog.Info("seeded",
		slog.Int("users", stats.Users),
		slog.Int("menus", stats.Menus),
		slog.Int("menu_days", stats.MenuDays),
		slog.String("from", start.String()),
		slog.Int("days", file.Days),
	)
	return nil
}

func readSeedFile(path string) (*seedFile, error) {
	slog.Info("reading seed file", slog.String("path", path))

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open seed file")
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = bufio.NewReader(f)
	if strings.HasSuffix(path, ".gz") {
		zr, err := pgzip.NewReader(r)
		if err != nil {
			return nil, errors.Wrap(err, "open gzip stream")
		}
		defer func() { _ = zr.Close() }()
		r = zr
	}

	file, err := decodeSeedFile(r)
	if err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	return file, nil
}
