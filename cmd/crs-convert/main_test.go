package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/spf13/pflag"

	"github.com/twpayne/go-crs"
)

func runRootCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	rootCmd := newRootCmd()
	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return stdout.String(), err
}

func TestTransformCmd(t *testing.T) {
	for _, tc := range []struct {
		name      string
		args      []string
		expectedX float64
		expectedY float64
		delta     float64
	}{
		{
			name:      "forward",
			args:      []string{"transform", "--from", "32630", "300150", "5399970"},
			expectedX: -5.717306839742361,
			expectedY: 48.72069338556936,
			delta:     1e-9,
		},
		{
			name:      "inverse",
			args:      []string{"transform", "--from", "EPSG:32630", "--inverse", "--", "-5.717306839742361", "48.72069338556936"},
			expectedX: 300150,
			expectedY: 5399970,
			delta:     1e-6,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			output, err := runRootCmd(t, tc.args...)
			assert.NoError(t, err)
			fields := strings.Fields(output)
			assert.Equal(t, 2, len(fields))
			x, err := strconv.ParseFloat(fields[0], 64)
			assert.NoError(t, err)
			y, err := strconv.ParseFloat(fields[1], 64)
			assert.NoError(t, err)
			assert.True(t, x-tc.expectedX <= tc.delta && tc.expectedX-x <= tc.delta, "x: %v", x)
			assert.True(t, y-tc.expectedY <= tc.delta && tc.expectedY-y <= tc.delta, "y: %v", y)
		})
	}
}

func TestTransformCmd_Errors(t *testing.T) {
	_, err := runRootCmd(t, "transform", "300150", "5399970")
	assert.EqualError(t, err, "no source CRS, use --from")

	_, err = runRootCmd(t, "transform", "--from", "0", "300150", "5399970")
	assert.IsError(t, err, crs.ErrInvalidCRS)

	_, err = runRootCmd(t, "transform", "--from", "32630", "east", "5399970")
	assert.Error(t, err)
}

func TestGridCmd(t *testing.T) {
	output, err := runRootCmd(t, "grid", "--from", "32630", "-o", "csv", "--x", "300150,409650", "--y", "5399970,5399850")
	assert.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(output), "\n")
	assert.Equal(t, 5, len(lines))
	assert.Contains(t, lines[1], "300150")
	assert.Contains(t, lines[1], "5399970")
	assert.Contains(t, lines[1], "-5.7173068")

	_, err = runRootCmd(t, "grid", "--from", "32630", "--x", "300150")
	assert.EqualError(t, err, "both --x and --y are required")

	_, err = runRootCmd(t, "grid", "--from", "32630", "-o", "xml", "--x", "1", "--y", "1")
	assert.Error(t, err)
}

func TestGeoTIFFCmd(t *testing.T) {
	path := filepath.Join("..", "..", "testdata", "eu_dem", "eu_dem_v11_E00N20.TIF")
	if _, err := os.Stat(path); err != nil {
		t.Skip(err)
	}
	output, err := runRootCmd(t, "geotiff", "--from", "3035", "-o", "csv", path)
	assert.NoError(t, err)
	assert.Equal(t, 5, len(strings.Split(strings.TrimSpace(output), "\n")))
}

func TestCornerDataset(t *testing.T) {
	ds := crs.NewDataset()
	assert.NoError(t, ds.SetCoord("x", crs.NewIndexVariable("x", []float64{0, 1, 2, 3}, nil)))
	assert.NoError(t, ds.SetCoord("y", crs.NewIndexVariable("y", []float64{5}, nil)))

	corners, err := cornerDataset(ds)
	assert.NoError(t, err)
	x, _ := corners.Coord("x")
	assert.Equal(t, []float64{0, 3}, x.Values())
	y, _ := corners.Coord("y")
	assert.Equal(t, []float64{5}, y.Values())

	_, err = cornerDataset(crs.NewDataset())
	assert.Error(t, err)
}

func TestLoadConfig(t *testing.T) {
	cfgFile := filepath.Join(t.TempDir(), "crs-convert.yaml")
	assert.NoError(t, os.WriteFile(cfgFile, []byte("from: EPSG:32630\noutput: markdown\ncache_size: 4\n"), 0o644))

	t.Setenv("CRS_CACHE_SIZE", "8")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("to", "", "")
	flags.String("output", "", "")
	assert.NoError(t, flags.Parse([]string{"--to", "EPSG:3857"}))

	cfg, err := loadConfig(cfgFile, flags)
	assert.NoError(t, err)
	assert.Equal(t, &config{
		From:      "EPSG:32630",
		To:        "EPSG:3857",
		Output:    "markdown",
		CacheSize: 8,
	}, cfg)
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := loadConfig("", nil)
	assert.NoError(t, err)
	assert.Equal(t, &config{
		To:        "EPSG:4326",
		Output:    "table",
		CacheSize: 32,
	}, cfg)
}
