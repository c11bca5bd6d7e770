package main

import (
	"fmt"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/AlissonDuarte/itssafe-backend/internal/fetcher"
	"github.com/AlissonDuarte/itssafe-backend/internal/seed"
)

var importOpts struct {
	format    string
	strict    bool
	dryRun    bool
	charset   string
	delimiter string
	sheet     string
	skipRows  int
	migrate   bool
}

var importCmd = &cobra.Command{
	Use:   "import <path-or-url>...",
	Short: "Import occurrences from JSON, YAML, CSV, XLSX, KML or shapefile sources",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		loader, err := newSeedLoader()
		if err != nil {
			return err
		}

		if importOpts.dryRun {
			for _, loc := range args {
				res, err := loader.Load(ctx, loc)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d valid, %d skipped\n", loc, len(res.Occurrences), res.Skipped)
			}
			return nil
		}

		if err := cfg.Validate("import"); err != nil {
			return err
		}
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if importOpts.migrate {
			if err := st.Migrate(ctx); err != nil {
				return eris.Wrap(err, "migrate")
			}
		}

		var total int64
		for _, loc := range args {
			res, err := loader.Load(ctx, loc)
			if err != nil {
				return err
			}
			n, err := st.InsertOccurrences(ctx, res.Occurrences)
			if err != nil {
				return eris.Wrapf(err, "import %s", loc)
			}
			total += n
			zap.L().Info("source imported",
				zap.String("source", loc),
				zap.Int64("stored", n),
				zap.Int("skipped", res.Skipped),
			)
		}

		count, err := st.CountOccurrences(ctx)
		if err != nil {
			return eris.Wrap(err, "count occurrences")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "imported %d occurrences (%d in store)\n", total, count)
		return nil
	},
}

func newSeedLoader() (*seed.Loader, error) {
	format, err := seed.ParseFormat(importOpts.format)
	if err != nil {
		return nil, err
	}

	csvOpts := fetcher.CSVOptions{Charset: importOpts.charset, TrimSpace: true, LazyQuotes: true}
	if csvOpts.Charset == "" {
		csvOpts.Charset = cfg.Import.Charset
	}
	if importOpts.delimiter != "" {
		r, size := utf8.DecodeRuneInString(importOpts.delimiter)
		if size != len(importOpts.delimiter) {
			return nil, eris.Errorf("delimiter must be a single character, got %q", importOpts.delimiter)
		}
		csvOpts.Delimiter = r
	}

	return seed.NewLoader(newSources(), seed.Options{
		Format: format,
		CSV:    csvOpts,
		XLSX:   fetcher.XLSXOptions{SheetName: importOpts.sheet, SkipRows: importOpts.skipRows},
		Strict: importOpts.strict,
	}), nil
}

func init() {
	f := importCmd.Flags()
	f.StringVar(&importOpts.format, "format", "", "source format (json, yaml, csv, xlsx, kml, shp, zip); detected from the extension when empty")
	f.BoolVar(&importOpts.strict, "strict", false, "fail on the first invalid record instead of skipping it")
	f.BoolVar(&importOpts.dryRun, "dry-run", false, "parse and validate without writing to the store")
	f.StringVar(&importOpts.charset, "charset", "", "CSV text encoding, e.g. latin1 (default from config)")
	f.StringVar(&importOpts.delimiter, "delimiter", "", "CSV field delimiter (default ,)")
	f.StringVar(&importOpts.sheet, "sheet", "", "XLSX sheet name (default first sheet)")
	f.IntVar(&importOpts.skipRows, "skip-rows", 0, "XLSX rows above the header")
	f.BoolVar(&importOpts.migrate, "migrate", false, "run the schema migration before importing")
	rootCmd.AddCommand(importCmd)
}
