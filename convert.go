package crs

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrPartialXY is returned by MaybeConvert when a dataset has only one of
	// the x and y coordinates.
	ErrPartialXY = errors.New("dataset has only one of x and y")

	// ErrNotOneDimensional is returned by MaybeConvert when the x or y
	// coordinate is not indexed by its own dimension alone.
	ErrNotOneDimensional = errors.New("coordinate is not one-dimensional")
)

var (
	lonAttrs = Attrs{
		"standard_name": "longitude",
		"axis":          "X",
		"long_name":     "longitude coordinate",
		"units":         "degrees_east",
	}
	latAttrs = Attrs{
		"standard_name": "latitude",
		"axis":          "Y",
		"long_name":     "latitude coordinate",
		"units":         "degrees_north",
	}
)

// MaybeConvert adds lon and lat coordinates to ds if ds has x and y
// coordinates, and otherwise returns ds unchanged. lon and lat are indexed
// by both x and y because lines of constant x are not in general lines of
// constant longitude. ds itself is never modified.
func MaybeConvert(ds *Dataset, transformer *Transformer) (*Dataset, error) {
	x, hasX := ds.Coord("x")
	y, hasY := ds.Coord("y")
	switch {
	case !hasX && !hasY:
		return ds, nil
	case hasX != hasY:
		return nil, ErrPartialXY
	}
	if len(x.dims) != 1 || x.dims[0] != "x" {
		return nil, fmt.Errorf("x: %w", ErrNotOneDimensional)
	}
	if len(y.dims) != 1 || y.dims[0] != "y" {
		return nil, fmt.Errorf("y: %w", ErrNotOneDimensional)
	}

	var lonVar, latVar *Variable
	if x.Len() == 0 || y.Len() == 0 {
		// gonum does not allow empty matrices.
		shape := []int{x.Len(), y.Len()}
		lonVar = &Variable{dims: []string{"x", "y"}, shape: shape, attrs: lonAttrs}
		latVar = &Variable{dims: []string{"x", "y"}, shape: shape, attrs: latAttrs}
	} else {
		lon, lat, err := transformGrid(transformer, x.data, y.data)
		if err != nil {
			return nil, err
		}
		lonVar = NewMatrixVariable("x", "y", lon, lonAttrs)
		latVar = NewMatrixVariable("x", "y", lat, latAttrs)
	}

	result := ds.Clone()
	if err := result.SetCoord("lon", lonVar); err != nil {
		return nil, err
	}
	if err := result.SetCoord("lat", latVar); err != nil {
		return nil, err
	}
	return result, nil
}

// transformGrid transforms every (xs[i], ys[j]) pair and returns the
// transformed first and second components as len(xs)×len(ys) matrices.
func transformGrid(transformer *Transformer, xs, ys []float64) (*mat.Dense, *mat.Dense, error) {
	nx, ny := len(xs), len(ys)

	coordsFlat := make([]float64, 2*nx*ny)
	coords := make([][]float64, nx*ny)
	for i, x := range xs {
		for j, y := range ys {
			k := i*ny + j
			coordsFlat[2*k] = x
			coordsFlat[2*k+1] = y
			coords[k] = coordsFlat[2*k : 2*k+2]
		}
	}
	if err := transformer.TransformFloat64Slices(coords); err != nil {
		return nil, nil, fmt.Errorf("%s: %w", transformer, err)
	}

	lon := mat.NewDense(nx, ny, nil)
	lat := mat.NewDense(nx, ny, nil)
	for i := range nx {
		for j := range ny {
			coord := coords[i*ny+j]
			lon.Set(i, j, coord[0])
			lat.Set(i, j, coord[1])
		}
	}
	return lon, lat, nil
}
