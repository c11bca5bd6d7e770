package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/AlissonDuarte/itssafe-backend/internal/model"
	"github.com/AlissonDuarte/itssafe-backend/internal/zones"
)

var zonesCmd = &cobra.Command{
	Use:   "zones",
	Short: "Offline zone tools",
}

var generateOpts struct {
	eps        float64
	minSamples int
	exclude    []string
	types      []string
	shifts     []string
	out        string
}

var zonesGenerateCmd = &cobra.Command{
	Use:   "generate <path-or-url>",
	Short: "Build risk zones from an occurrence file and print them as GeoJSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("zones"); err != nil {
			return err
		}
		ctx := cmd.Context()

		exclude, err := zones.ParseRiskLevels(splitList(generateOpts.exclude))
		if err != nil {
			return err
		}
		eps := generateOpts.eps
		if eps <= 0 {
			eps = cfg.Service.EpsKM
		}
		minSamples := generateOpts.minSamples
		if minSamples <= 0 {
			minSamples = cfg.Service.MinSamples
		}

		loader, err := newSeedLoader()
		if err != nil {
			return err
		}
		res, err := loader.Load(ctx, args[0])
		if err != nil {
			return err
		}

		filter := model.ParseFilter(generateOpts.types, generateOpts.shifts)
		occs := res.Occurrences[:0]
		for _, o := range res.Occurrences {
			if filter.Match(o) {
				occs = append(occs, o)
			}
		}

		gen, err := newGenerator()
		if err != nil {
			return err
		}
		fc, err := gen.Generate(model.Points(occs), eps, minSamples, exclude)
		if err != nil {
			return eris.Wrap(err, "generate zones")
		}
		zap.L().Info("zones generated",
			zap.Int("occurrences", len(occs)),
			zap.Int("skipped", res.Skipped),
			zap.Int("zones", fc.Len()),
		)

		w := cmd.OutOrStdout()
		if generateOpts.out != "" {
			f, err := os.Create(generateOpts.out)
			if err != nil {
				return eris.Wrap(err, "create output")
			}
			defer f.Close() //nolint:errcheck
			w = f
		}
		return writeGeoJSON(w, fc)
	},
}

func writeGeoJSON(w io.Writer, fc zones.FeatureCollection) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(fc), "write geojson")
}

var tileKeyOpts struct {
	lat, lng, grid float64
}

var zonesTileKeyCmd = &cobra.Command{
	Use:   "tilekey",
	Short: "Print the cache grid key of the cell containing a point",
	RunE: func(cmd *cobra.Command, _ []string) error {
		p := zones.GeoPoint{Lat: tileKeyOpts.lat, Lng: tileKeyOpts.lng}
		if !p.Valid() {
			return eris.Errorf("invalid position (%f, %f)", p.Lat, p.Lng)
		}
		grid := tileKeyOpts.grid
		if grid <= 0 {
			grid = cfg.Service.GridSize
		}
		fmt.Fprintln(cmd.OutOrStdout(), zones.TileKey(p, grid))
		return nil
	},
}

func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		out = append(out, strings.Split(v, ",")...)
	}
	return out
}

func init() {
	f := zonesGenerateCmd.Flags()
	f.Float64Var(&generateOpts.eps, "eps", 0, "neighborhood radius in km (default from config)")
	f.IntVar(&generateOpts.minSamples, "min-samples", 0, "minimum cluster size (default from config)")
	f.StringSliceVar(&generateOpts.exclude, "exclude", nil, "risk levels to leave out (low, medium, high)")
	f.StringSliceVar(&generateOpts.types, "type", nil, "occurrence types to include")
	f.StringSliceVar(&generateOpts.shifts, "shift", nil, "shifts to include")
	f.StringVarP(&generateOpts.out, "out", "o", "", "write GeoJSON to this file instead of stdout")
	f.StringVar(&importOpts.format, "format", "", "source format; detected from the extension when empty")

	tf := zonesTileKeyCmd.Flags()
	tf.Float64Var(&tileKeyOpts.lat, "lat", 0, "latitude")
	tf.Float64Var(&tileKeyOpts.lng, "lng", 0, "longitude")
	tf.Float64Var(&tileKeyOpts.grid, "grid", 0, "grid cell size in degrees (default from config)")
	_ = zonesTileKeyCmd.MarkFlagRequired("lat")
	_ = zonesTileKeyCmd.MarkFlagRequired("lng")

	zonesCmd.AddCommand(zonesGenerateCmd, zonesTileKeyCmd)
	rootCmd.AddCommand(zonesCmd)
}
