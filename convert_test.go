package crs_test

import (
	"testing"

	"github.com/alecthomas/assert/v2"
	"gonum.org/v1/gonum/mat"

	"github.com/twpayne/go-crs"
)

var (
	lonAttrs = crs.Attrs{
		"standard_name": "longitude",
		"axis":          "X",
		"long_name":     "longitude coordinate",
		"units":         "degrees_east",
	}
	latAttrs = crs.Attrs{
		"standard_name": "latitude",
		"axis":          "Y",
		"long_name":     "latitude coordinate",
		"units":         "degrees_north",
	}
)

// newTestDataset returns a new Dataset with the given coordinates.
func newTestDataset(t *testing.T, coords map[string]*crs.Variable) *crs.Dataset {
	t.Helper()
	ds := crs.NewDataset()
	for name, v := range coords {
		assert.NoError(t, ds.SetCoord(name, v))
	}
	return ds
}

func TestMaybeConvert(t *testing.T) {
	transformer, err := crs.CreateTransformer(32630, 4326)
	assert.NoError(t, err)

	for _, tc := range []struct {
		name     string
		ds       *crs.Dataset
		expected *crs.Dataset
	}{
		{
			name:     "empty",
			ds:       crs.NewDataset(),
			expected: crs.NewDataset(),
		},
		{
			name: "temporal_coords",
			ds: newTestDataset(t, map[string]*crs.Variable{
				"time": crs.NewIndexVariable("time", []float64{0, 1}, nil),
			}),
			expected: newTestDataset(t, map[string]*crs.Variable{
				"time": crs.NewIndexVariable("time", []float64{0, 1}, nil),
			}),
		},
		{
			name: "spatial_coords",
			ds: newTestDataset(t, map[string]*crs.Variable{
				"x": crs.NewIndexVariable("x", []float64{300150, 409650}, nil),
				"y": crs.NewIndexVariable("y", []float64{5399970, 5399850}, nil),
			}),
			expected: newTestDataset(t, map[string]*crs.Variable{
				"x": crs.NewIndexVariable("x", []float64{300150, 409650}, nil),
				"y": crs.NewIndexVariable("y", []float64{5399970, 5399850}, nil),
				"lon": crs.NewMatrixVariable("x", "y", mat.NewDense(2, 2, []float64{
					-5.717306839742361, -5.717248714305221,
					-4.229038940149932, -4.229012618606299,
				}), lonAttrs),
				"lat": crs.NewMatrixVariable("x", "y", mat.NewDense(2, 2, []float64{
					48.72069338556936, 48.71961507426066,
					48.746188884221624, 48.745109611036575,
				}), latAttrs),
			}),
		},
		{
			name: "spatial_and_temporal_coords",
			ds: newTestDataset(t, map[string]*crs.Variable{
				"time": crs.NewIndexVariable("time", []float64{0, 1, 2}, nil),
				"x":    crs.NewIndexVariable("x", []float64{300150}, nil),
				"y":    crs.NewIndexVariable("y", []float64{5399970}, nil),
			}),
			expected: newTestDataset(t, map[string]*crs.Variable{
				"time": crs.NewIndexVariable("time", []float64{0, 1, 2}, nil),
				"x":    crs.NewIndexVariable("x", []float64{300150}, nil),
				"y":    crs.NewIndexVariable("y", []float64{5399970}, nil),
				"lon":  crs.NewMatrixVariable("x", "y", mat.NewDense(1, 1, []float64{-5.717306839742361}), lonAttrs),
				"lat":  crs.NewMatrixVariable("x", "y", mat.NewDense(1, 1, []float64{48.72069338556936}), latAttrs),
			}),
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			actual, err := crs.MaybeConvert(tc.ds, transformer)
			assert.NoError(t, err)
			assert.True(t, crs.AllClose(tc.expected, actual, crs.DefaultRTol, crs.DefaultATol), crs.Diff(tc.expected, actual, crs.DefaultRTol, crs.DefaultATol))
		})
	}
}

func TestMaybeConvert_Unchanged(t *testing.T) {
	transformer, err := crs.CreateTransformer(32630, 4326)
	assert.NoError(t, err)

	ds := newTestDataset(t, map[string]*crs.Variable{
		"time": crs.NewIndexVariable("time", []float64{0, 1}, nil),
	})
	actual, err := crs.MaybeConvert(ds, transformer)
	assert.NoError(t, err)
	assert.True(t, ds == actual)
}

func TestMaybeConvert_DoesNotModifyInput(t *testing.T) {
	transformer, err := crs.CreateTransformer(32630, 4326)
	assert.NoError(t, err)

	ds := newTestDataset(t, map[string]*crs.Variable{
		"x": crs.NewIndexVariable("x", []float64{300150, 409650}, nil),
		"y": crs.NewIndexVariable("y", []float64{5399970, 5399850}, nil),
	})
	original := ds.Clone()

	actual, err := crs.MaybeConvert(ds, transformer)
	assert.NoError(t, err)
	assert.True(t, crs.Equal(original, ds))
	assert.Equal(t, []string{"lat", "lon", "x", "y"}, actual.CoordNames())

	x, ok := actual.Coord("x")
	assert.True(t, ok)
	assert.Equal(t, []float64{300150, 409650}, x.Values())
	assert.Equal(t, map[string]int{"x": 2, "y": 2}, actual.Sizes())
}

func TestMaybeConvert_Errors(t *testing.T) {
	transformer, err := crs.CreateTransformer(32630, 4326)
	assert.NoError(t, err)

	xy, err := crs.NewVariable([]string{"x", "y"}, []int{1, 1}, []float64{0}, nil)
	assert.NoError(t, err)

	for _, tc := range []struct {
		name     string
		ds       *crs.Dataset
		expected error
	}{
		{
			name: "x_only",
			ds: newTestDataset(t, map[string]*crs.Variable{
				"x": crs.NewIndexVariable("x", []float64{300150}, nil),
			}),
			expected: crs.ErrPartialXY,
		},
		{
			name: "y_only",
			ds: newTestDataset(t, map[string]*crs.Variable{
				"y": crs.NewIndexVariable("y", []float64{5399970}, nil),
			}),
			expected: crs.ErrPartialXY,
		},
		{
			name: "two_dimensional_x",
			ds: newTestDataset(t, map[string]*crs.Variable{
				"x": xy,
				"y": crs.NewIndexVariable("y", []float64{5399970}, nil),
			}),
			expected: crs.ErrNotOneDimensional,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := crs.MaybeConvert(tc.ds, transformer)
			assert.IsError(t, err, tc.expected)
		})
	}
}

func TestMaybeConvert_EmptyAxis(t *testing.T) {
	transformer, err := crs.CreateTransformer(32630, 4326)
	assert.NoError(t, err)

	ds := newTestDataset(t, map[string]*crs.Variable{
		"x": crs.NewIndexVariable("x", nil, nil),
		"y": crs.NewIndexVariable("y", []float64{5399970, 5399850}, nil),
	})
	actual, err := crs.MaybeConvert(ds, transformer)
	assert.NoError(t, err)

	lon, ok := actual.Coord("lon")
	assert.True(t, ok)
	assert.Equal(t, []int{0, 2}, lon.Shape())
	assert.Equal(t, lonAttrs, lon.Attrs())
}

func TestMaybeConvert_RoundTrip(t *testing.T) {
	forward, err := crs.CreateTransformer(32630, 4326)
	assert.NoError(t, err)
	inverse, err := forward.Inverse()
	assert.NoError(t, err)

	xs := []float64{300150, 350000, 409650}
	ys := []float64{5399970, 5399850}
	ds := newTestDataset(t, map[string]*crs.Variable{
		"x": crs.NewIndexVariable("x", xs, nil),
		"y": crs.NewIndexVariable("y", ys, nil),
	})
	actual, err := crs.MaybeConvert(ds, forward)
	assert.NoError(t, err)

	lon, ok := actual.Coord("lon")
	assert.True(t, ok)
	lat, ok := actual.Coord("lat")
	assert.True(t, ok)
	assert.Equal(t, []string{"x", "y"}, lat.Dims())

	for i, x := range xs {
		for j, y := range ys {
			actualX, actualY, err := inverse.Transform(lon.At(i, j), lat.At(i, j))
			assert.NoError(t, err)
			assertInDelta(t, x, actualX, 1e-6)
			assertInDelta(t, y, actualY, 1e-6)
		}
	}
}
