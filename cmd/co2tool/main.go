// Command co2tool prepares the database the server reads from.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"co2dash/internal/config"
	"co2dash/internal/dataset"
	"co2dash/internal/db"
	"co2dash/internal/logging"
	"co2dash/internal/migrate"
)

const appName = "co2tool"

var version = "dev"

const usage = `usage: %s <command>
  migrate         apply pending schema migrations
  import <csv>    migrate, then load country,surface_km2,year,co2 rows
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, usage, os.Args[0])
		os.Exit(1)
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg, version, appName)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", os.Args[1], err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger, args []string, out io.Writer) error {
	switch args[0] {
	case "migrate":
		if len(args) != 1 {
			return fmt.Errorf("migrate takes no arguments")
		}
	case "import":
		if len(args) != 2 {
			return fmt.Errorf("import needs exactly one csv path")
		}
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}

	conn, err := db.Open(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(conn); closeErr != nil {
			logger.Error("db close", "err", closeErr)
		}
	}()

	if err := migrate.Run(ctx, conn); err != nil {
		return err
	}
	if args[0] == "migrate" {
		fmt.Fprintln(out, "migrations applied")
		return nil
	}

	f, err := os.Open(args[1])
	if err != nil {
		return err
	}
	defer logging.SafeClose(f, logger, "import csv")

	rows, err := dataset.ReadCSV(f)
	if err != nil {
		return fmt.Errorf("%s: %w", args[1], err)
	}
	stats, err := dataset.Import(ctx, conn, rows, logger)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "imported %d rows (%d countries, %d years)\n", stats.Rows, stats.Countries, stats.Years)
	return nil
}
