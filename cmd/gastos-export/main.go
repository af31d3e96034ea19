// Command gastos-export writes expenses from the database to a CSV or XLSX file
// without going through the HTTP server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"gastos/internal/cli"
	"gastos/internal/config"
	"gastos/internal/core"
	"gastos/internal/export"
	"gastos/internal/log"
	"gastos/internal/services"
	"gastos/internal/storage"
)

type options struct {
	dbPath string
	start  string
	end    string
	format string
	// out is the destination file; "-" writes to stdout.
	out string
	// verify reads a written CSV back and checks its row count against the database.
	verify bool
}

func main() {
	boot := log.New(log.Config{Output: os.Stderr, Format: "text", Component: log.ComponentExport})
	cli.LoadEnvFile(boot)
	cfg := config.Load()

	var opts options
	flag.StringVar(&opts.dbPath, "db", cfg.SQLiteDBPath, "path to the SQLite database")
	flag.StringVar(&opts.start, "start", "", "first day to include (YYYY-MM-DD)")
	flag.StringVar(&opts.end, "end", "", "last day to include (YYYY-MM-DD)")
	flag.StringVar(&opts.format, "format", export.FormatCSV, "output format: csv or xlsx")
	flag.StringVar(&opts.out, "out", "", "output file (default: gastos.<format>; - for stdout)")
	flag.BoolVar(&opts.verify, "verify", false, "read the CSV back and compare its row count with the database")
	flag.Parse()

	if err := run(context.Background(), boot, opts); err != nil {
		boot.Error("Export failed", log.FieldError, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *log.Logger, opts options) error {
	f, err := export.ParseFormat(opts.format)
	if err != nil {
		return err
	}
	rng, err := core.NewDateRange(opts.start, opts.end)
	if err != nil {
		return err
	}
	if opts.verify && (f != export.FormatCSV || opts.out == "-") {
		return errors.New("-verify needs a csv export written to a file")
	}

	store, err := storage.Open(ctx, opts.dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	svc := services.NewExpenseService(store, services.Options{Logger: logger})
	defer svc.Close()

	items, err := svc.Export(ctx, rng)
	if err != nil {
		return err
	}

	if opts.out == "-" {
		if err := export.Write(os.Stdout, f, items); err != nil {
			return fmt.Errorf("write %s: %w", f, err)
		}
		return nil
	}

	out := opts.out
	if out == "" {
		out = export.Filename(f)
	}
	if err := writeFile(out, f, items); err != nil {
		return err
	}

	fields := []any{log.FieldCount, len(items), log.FieldFormat, f,
		"total", core.SumAmounts(items).Decimal(), "path", out}
	if opts.verify {
		if err := verifyCSV(ctx, store, rng, out); err != nil {
			return err
		}
		fields = append(fields, "verified", true)
	}
	logger.Info("Expenses exported", fields...)
	return nil
}

func writeFile(path, format string, items []core.Expense) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := export.Write(file, format, items); err != nil {
		file.Close()
		return fmt.Errorf("write %s: %w", format, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}
	return nil
}

// verifyCSV parses the file at path and compares its rows with the number of
// expenses stored in rng.
func verifyCSV(ctx context.Context, store *storage.Store, rng core.DateRange, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("reopen output: %w", err)
	}
	defer file.Close()

	rows, err := export.ReadCSV(file)
	if err != nil {
		return fmt.Errorf("verify %s: %w", path, err)
	}
	want, err := store.Count(ctx, rng)
	if err != nil {
		return fmt.Errorf("verify %s: %w", path, err)
	}
	if len(rows) != want {
		return fmt.Errorf("verify %s: file has %d rows, database has %d", path, len(rows), want)
	}
	return nil
}
