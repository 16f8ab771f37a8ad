package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/twpayne/go-crs"
)

// An app holds the state shared by all subcommands.
type app struct {
	cfgFile string
	cfg     *config
	cache   *crs.TransformerCache
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "crs-convert",
		Short: "Convert coordinates between coordinate reference systems",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			a.cfg, err = loadConfig(a.cfgFile, cmd.Flags())
			if err != nil {
				return err
			}
			a.cache, err = crs.NewTransformerCache(crs.WithCacheSize(a.cfg.CacheSize))
			if err != nil {
				return err
			}
			if a.cfg.Verbose && a.cfgFile != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "Using config file: %s\n", a.cfgFile)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	persistentFlags := rootCmd.PersistentFlags()
	persistentFlags.StringVar(&a.cfgFile, "config", "", "config file")
	persistentFlags.String("from", "", "source CRS, an EPSG code or definition")
	persistentFlags.String("to", "", "target CRS, an EPSG code or definition (default EPSG:4326)")
	persistentFlags.StringP("output", "o", "", "output format (table|csv|markdown)")
	persistentFlags.Int("cache-size", 0, "maximum number of cached transformers")
	persistentFlags.BoolP("verbose", "v", false, "verbose output")

	rootCmd.AddCommand(
		a.newTransformCmd(),
		a.newGridCmd(),
		a.newGeoTIFFCmd(),
	)

	return rootCmd
}

// transformer returns the transformer from the configured source CRS to the
// configured target CRS.
func (a *app) transformer() (*crs.Transformer, error) {
	if a.cfg.From == "" {
		return nil, errors.New("no source CRS, use --from")
	}
	source, err := parseCRS(a.cfg.From)
	if err != nil {
		return nil, err
	}
	target, err := parseCRS(a.cfg.To)
	if err != nil {
		return nil, err
	}
	return a.cache.Get(source, target)
}

// parseCRS parses an EPSG code or a CRS definition.
func parseCRS(s string) (*crs.CRS, error) {
	if code, err := strconv.Atoi(s); err == nil {
		return crs.EnsureCRS(code)
	}
	return crs.EnsureCRS(s)
}

func (a *app) newTransformCmd() *cobra.Command {
	var inverse bool
	cmd := &cobra.Command{
		Use:   "transform X Y",
		Short: "Transform a single coordinate",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			x, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return err
			}
			y, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return err
			}
			transformer, err := a.transformer()
			if err != nil {
				return err
			}
			if a.cfg.Verbose {
				fmt.Fprintln(cmd.ErrOrStderr(), transformer)
			}
			var resultX, resultY float64
			if inverse {
				resultX, resultY, err = transformer.TransformInverse(x, y)
			} else {
				resultX, resultY, err = transformer.Transform(x, y)
			}
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), formatFloat(resultX), formatFloat(resultY))
			return err
		},
	}
	cmd.Flags().BoolVar(&inverse, "inverse", false, "transform from the target CRS to the source CRS")
	return cmd
}

func (a *app) newGridCmd() *cobra.Command {
	var xs, ys []float64
	cmd := &cobra.Command{
		Use:   "grid",
		Short: "Convert a grid of x and y coordinates to longitude and latitude",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if len(xs) == 0 || len(ys) == 0 {
				return errors.New("both --x and --y are required")
			}
			transformer, err := a.transformer()
			if err != nil {
				return err
			}
			ds := crs.NewDataset()
			if err := ds.SetCoord("x", crs.NewIndexVariable("x", xs, nil)); err != nil {
				return err
			}
			if err := ds.SetCoord("y", crs.NewIndexVariable("y", ys, nil)); err != nil {
				return err
			}
			converted, err := crs.MaybeConvert(ds, transformer)
			if err != nil {
				return err
			}
			return a.renderGrid(cmd.OutOrStdout(), converted)
		},
	}
	cmd.Flags().Float64SliceVar(&xs, "x", nil, "x coordinates")
	cmd.Flags().Float64SliceVar(&ys, "y", nil, "y coordinates")
	return cmd
}

func (a *app) newGeoTIFFCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "geotiff FILE",
		Short: "Print the longitude and latitude of a GeoTIFF's corner pixels",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var options []crs.GeoTIFFOption
			if a.cfg.From != "" {
				source, err := parseCRS(a.cfg.From)
				if err != nil {
					return err
				}
				options = append(options, crs.WithCRS(source))
			}
			path, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			ds, source, err := crs.ReadGeoTIFF(os.DirFS(filepath.Dir(path)), filepath.Base(path), options...)
			if err != nil {
				return err
			}
			target, err := parseCRS(a.cfg.To)
			if err != nil {
				return err
			}
			transformer, err := a.cache.Get(source, target)
			if err != nil {
				return err
			}
			corners, err := cornerDataset(ds)
			if err != nil {
				return err
			}
			converted, err := crs.MaybeConvert(corners, transformer)
			if err != nil {
				return err
			}
			return a.renderGrid(cmd.OutOrStdout(), converted)
		},
	}
	return cmd
}

// cornerDataset returns a dataset containing only the first and last x and y
// coordinates of ds.
func cornerDataset(ds *crs.Dataset) (*crs.Dataset, error) {
	corners := crs.NewDataset()
	for _, name := range []string{"x", "y"} {
		v, ok := ds.Coord(name)
		if !ok || v.Len() == 0 {
			return nil, fmt.Errorf("%s: missing coordinate", name)
		}
		values := v.Values()
		cornerValues := []float64{values[0]}
		if len(values) > 1 {
			cornerValues = append(cornerValues, values[len(values)-1])
		}
		if err := corners.SetCoord(name, crs.NewIndexVariable(name, cornerValues, v.Attrs())); err != nil {
			return nil, err
		}
	}
	return corners, nil
}

// renderGrid writes a row for every (x, y) pair in ds.
func (a *app) renderGrid(w io.Writer, ds *crs.Dataset) error {
	x, _ := ds.Coord("x")
	y, _ := ds.Coord("y")
	lon, ok := ds.Coord("lon")
	if !ok {
		return errors.New("lon: missing coordinate")
	}
	lat, ok := ds.Coord("lat")
	if !ok {
		return errors.New("lat: missing coordinate")
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"x", "y", "lon", "lat"})
	xs, ys := x.Values(), y.Values()
	for i, xValue := range xs {
		for j, yValue := range ys {
			t.AppendRow(table.Row{
				formatFloat(xValue),
				formatFloat(yValue),
				formatFloat(lon.At(i, j)),
				formatFloat(lat.At(i, j)),
			})
		}
	}

	switch a.cfg.Output {
	case "csv":
		t.RenderCSV()
	case "markdown":
		t.RenderMarkdown()
	default:
		t.Render()
	}
	return nil
}

func formatFloat(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}
