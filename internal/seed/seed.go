// Package seed loads occurrence records from import files: JSON (native and
// legacy app exports), YAML, CSV, XLSX, KML and point shapefiles, bare or
// zipped, from local paths or remote URLs.
package seed

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/AlissonDuarte/itssafe-backend/internal/fetcher"
	"github.com/AlissonDuarte/itssafe-backend/internal/model"
)

// Format names an import file format.
type Format string

const (
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
	FormatCSV   Format = "csv"
	FormatXLSX  Format = "xlsx"
	FormatKML   Format = "kml"
	FormatSHP   Format = "shp"
	FormatZIP   Format = "zip"
	formatEmpty Format = ""
)

var extFormats = map[string]Format{
	".json": FormatJSON,
	".yaml": FormatYAML,
	".yml":  FormatYAML,
	".csv":  FormatCSV,
	".tsv":  FormatCSV,
	".txt":  FormatCSV,
	".xlsx": FormatXLSX,
	".kml":  FormatKML,
	".shp":  FormatSHP,
	".zip":  FormatZIP,
}

// DetectFormat picks a format from the file extension of name.
func DetectFormat(name string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(name))
	if f, ok := extFormats[ext]; ok {
		return f, nil
	}
	return formatEmpty, eris.Errorf("seed: cannot detect format of %q", name)
}

// ParseFormat validates a user supplied format name.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	switch f {
	case FormatJSON, FormatYAML, FormatCSV, FormatXLSX, FormatKML, FormatSHP, FormatZIP, formatEmpty:
		return f, nil
	}
	if f == "yml" {
		return FormatYAML, nil
	}
	return formatEmpty, eris.Errorf("seed: unknown format %q", s)
}

// Options configures a Loader.
type Options struct {
	// Format overrides detection from the file extension.
	Format Format
	CSV    fetcher.CSVOptions
	XLSX   fetcher.XLSXOptions
	// Strict fails the load on the first invalid record instead of
	// skipping it.
	Strict bool
	// Now stamps records without an event time. Default time.Now.
	Now func() time.Time
}

// Result is the outcome of one load.
type Result struct {
	Occurrences []model.Occurrence
	Skipped     int
}

// Loader reads occurrence files.
type Loader struct {
	sources *fetcher.Sources
	opts    Options
}

// NewLoader creates a Loader reading through sources.
func NewLoader(sources *fetcher.Sources, opts Options) *Loader {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if sources == nil {
		sources = fetcher.New(fetcher.Options{})
	}
	return &Loader{sources: sources, opts: opts}
}

// Load reads every occurrence at location. Records that fail validation are
// skipped and counted unless the loader is strict.
func (l *Loader) Load(ctx context.Context, location string) (Result, error) {
	format := l.opts.Format
	if format == formatEmpty {
		f, err := DetectFormat(fetcher.Name(location))
		if err != nil {
			return Result{}, err
		}
		format = f
	}

	records, err := l.read(ctx, location, format)
	if err != nil {
		return Result{}, eris.Wrapf(err, "seed: load %s", location)
	}
	return l.normalize(records)
}

func (l *Loader) read(ctx context.Context, location string, format Format) ([]record, error) {
	switch format {
	case FormatJSON, FormatYAML, FormatCSV, FormatKML:
		rc, err := l.sources.Open(ctx, location)
		if err != nil {
			return nil, err
		}
		defer rc.Close() //nolint:errcheck
		switch format {
		case FormatJSON:
			return readJSON(ctx, rc)
		case FormatYAML:
			return readYAML(rc)
		case FormatCSV:
			return readCSV(ctx, rc, l.opts.CSV)
		default:
			return readKML(ctx, rc)
		}
	case FormatXLSX, FormatSHP, FormatZIP:
		dir, err := os.MkdirTemp("", "itssafe-seed-*")
		if err != nil {
			return nil, eris.Wrap(err, "create temp dir")
		}
		defer os.RemoveAll(dir) //nolint:errcheck

		path, err := l.sources.Local(ctx, location, dir)
		if err != nil {
			return nil, err
		}
		switch format {
		case FormatXLSX:
			return readXLSX(path, l.opts.XLSX)
		case FormatSHP:
			return readShapefile(path)
		default:
			return l.readZIP(ctx, path, dir)
		}
	default:
		return nil, eris.Errorf("unsupported format %q", format)
	}
}

// zipPreference orders the members considered inside an archive.
var zipPreference = []string{".shp", ".json", ".csv", ".xlsx", ".kml", ".yaml", ".yml"}

func (l *Loader) readZIP(ctx context.Context, path, dir string) ([]record, error) {
	files, err := fetcher.ExtractZIP(path, filepath.Join(dir, "unzipped"))
	if err != nil {
		return nil, err
	}
	for _, ext := range zipPreference {
		member, ok := fetcher.FindExt(files, ext)
		if !ok {
			continue
		}
		format := extFormats[ext]
		zap.L().Debug("seed: reading archive member", zap.String("member", filepath.Base(member)))
		return l.read(ctx, member, format)
	}
	return nil, eris.New("archive holds no supported occurrence file")
}

func (l *Loader) normalize(records []record) (Result, error) {
	now := l.opts.Now()
	res := Result{Occurrences: make([]model.Occurrence, 0, len(records))}
	for i, r := range records {
		occ, err := r.occurrence()
		if err == nil {
			err = occ.Normalize(now)
		}
		if err != nil {
			if l.opts.Strict {
				return Result{}, eris.Wrapf(err, "seed: record %d", i+1)
			}
			res.Skipped++
			zap.L().Warn("seed: skipping record", zap.Int("record", i+1), zap.Error(err))
			continue
		}
		res.Occurrences = append(res.Occurrences, occ)
	}
	return res, nil
}
