package crs

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"gonum.org/v1/gonum/mat"
)

// Default tolerances for AllClose.
const (
	DefaultRTol = 1e-5
	DefaultATol = 1e-8
)

var (
	// ErrDimensionMismatch is returned when a variable disagrees with a
	// dataset on the length of a dimension, or when a variable's data does not
	// match its shape.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	errNotTwoDimensional = errors.New("not two-dimensional")
)

// Attrs are metadata attached to a variable or dataset.
type Attrs map[string]string

// A Variable is an n-dimensional array of float64s with named dimensions.
// Data is stored in row-major order.
type Variable struct {
	dims  []string
	shape []int
	data  []float64
	attrs Attrs
}

// NewVariable returns a new Variable.
func NewVariable(dims []string, shape []int, data []float64, attrs Attrs) (*Variable, error) {
	if len(dims) != len(shape) {
		return nil, fmt.Errorf("%w: %d dims, %d shape", ErrDimensionMismatch, len(dims), len(shape))
	}
	size := 1
	for _, n := range shape {
		size *= n
	}
	if len(data) != size {
		return nil, fmt.Errorf("%w: shape %v needs %d values, got %d", ErrDimensionMismatch, shape, size, len(data))
	}
	return &Variable{
		dims:  slices.Clone(dims),
		shape: slices.Clone(shape),
		data:  slices.Clone(data),
		attrs: maps.Clone(attrs),
	}, nil
}

// NewIndexVariable returns a new one-dimensional Variable along dim.
func NewIndexVariable(dim string, data []float64, attrs Attrs) *Variable {
	return &Variable{
		dims:  []string{dim},
		shape: []int{len(data)},
		data:  slices.Clone(data),
		attrs: maps.Clone(attrs),
	}
}

// NewMatrixVariable returns a new two-dimensional Variable with rows along
// rowDim and columns along colDim.
func NewMatrixVariable(rowDim, colDim string, m *mat.Dense, attrs Attrs) *Variable {
	rows, cols := m.Dims()
	data := make([]float64, 0, rows*cols)
	for i := range rows {
		data = append(data, m.RawRowView(i)...)
	}
	return &Variable{
		dims:  []string{rowDim, colDim},
		shape: []int{rows, cols},
		data:  data,
		attrs: maps.Clone(attrs),
	}
}

// Dims returns v's dimension names.
func (v *Variable) Dims() []string {
	return slices.Clone(v.dims)
}

// Shape returns v's shape.
func (v *Variable) Shape() []int {
	return slices.Clone(v.shape)
}

// Values returns a copy of v's data in row-major order.
func (v *Variable) Values() []float64 {
	return slices.Clone(v.data)
}

// Len returns the number of values in v.
func (v *Variable) Len() int {
	return len(v.data)
}

// At returns the value at idx. It panics if idx is out of range.
func (v *Variable) At(idx ...int) float64 {
	if len(idx) != len(v.shape) {
		panic(fmt.Sprintf("crs: %d indexes for %d dims", len(idx), len(v.shape)))
	}
	offset := 0
	for i, n := range v.shape {
		if idx[i] < 0 || idx[i] >= n {
			panic(fmt.Sprintf("crs: index %d out of range [0,%d)", idx[i], n))
		}
		offset = offset*n + idx[i]
	}
	return v.data[offset]
}

// Attrs returns a copy of v's attributes.
func (v *Variable) Attrs() Attrs {
	return maps.Clone(v.attrs)
}

// Matrix returns v as a matrix. v must be two-dimensional.
func (v *Variable) Matrix() (*mat.Dense, error) {
	if len(v.shape) != 2 {
		return nil, fmt.Errorf("%v: %w", v.dims, errNotTwoDimensional)
	}
	return mat.NewDense(v.shape[0], v.shape[1], slices.Clone(v.data)), nil
}

// A Dataset is a collection of named coordinate and data variables that share
// dimensions.
type Dataset struct {
	coords   map[string]*Variable
	dataVars map[string]*Variable
	attrs    Attrs
}

// NewDataset returns a new empty Dataset.
func NewDataset() *Dataset {
	return &Dataset{
		coords:   make(map[string]*Variable),
		dataVars: make(map[string]*Variable),
		attrs:    make(Attrs),
	}
}

// SetCoord sets the coordinate variable name.
func (d *Dataset) SetCoord(name string, v *Variable) error {
	if err := d.checkDims(name, v); err != nil {
		return err
	}
	d.coords[name] = v
	return nil
}

// SetDataVar sets the data variable name.
func (d *Dataset) SetDataVar(name string, v *Variable) error {
	if err := d.checkDims(name, v); err != nil {
		return err
	}
	d.dataVars[name] = v
	return nil
}

// Coord returns the coordinate variable name.
func (d *Dataset) Coord(name string) (*Variable, bool) {
	v, ok := d.coords[name]
	return v, ok
}

// DataVar returns the data variable name.
func (d *Dataset) DataVar(name string) (*Variable, bool) {
	v, ok := d.dataVars[name]
	return v, ok
}

// CoordNames returns the sorted names of d's coordinates.
func (d *Dataset) CoordNames() []string {
	return slices.Sorted(maps.Keys(d.coords))
}

// DataVarNames returns the sorted names of d's data variables.
func (d *Dataset) DataVarNames() []string {
	return slices.Sorted(maps.Keys(d.dataVars))
}

// Attr returns the dataset attribute key.
func (d *Dataset) Attr(key string) (string, bool) {
	value, ok := d.attrs[key]
	return value, ok
}

// SetAttr sets the dataset attribute key.
func (d *Dataset) SetAttr(key, value string) {
	d.attrs[key] = value
}

// Sizes returns the length of every dimension in d.
func (d *Dataset) Sizes() map[string]int {
	sizes := make(map[string]int)
	for _, vars := range []map[string]*Variable{d.coords, d.dataVars} {
		for _, v := range vars {
			for i, dim := range v.dims {
				sizes[dim] = v.shape[i]
			}
		}
	}
	return sizes
}

// Clone returns a copy of d. Variables are immutable once created so they are
// shared between d and the copy.
func (d *Dataset) Clone() *Dataset {
	return &Dataset{
		coords:   maps.Clone(d.coords),
		dataVars: maps.Clone(d.dataVars),
		attrs:    maps.Clone(d.attrs),
	}
}

// checkDims checks that v agrees with d on the length of every shared
// dimension. Replacing the variable name is allowed to change its own dims.
func (d *Dataset) checkDims(name string, v *Variable) error {
	if v == nil {
		return fmt.Errorf("%s: nil variable", name)
	}
	others := d.Clone()
	delete(others.coords, name)
	delete(others.dataVars, name)
	sizes := others.Sizes()
	for i, dim := range v.dims {
		if n, ok := sizes[dim]; ok && n != v.shape[i] {
			return fmt.Errorf("%s: %w: %s has length %d, expected %d", name, ErrDimensionMismatch, dim, v.shape[i], n)
		}
	}
	return nil
}

func cmpOptions(extra ...cmp.Option) cmp.Options {
	return append(cmp.Options{
		cmp.AllowUnexported(Dataset{}, Variable{}),
		cmpopts.EquateEmpty(),
		cmpopts.EquateNaNs(),
	}, extra...)
}

// Equal returns true if a and b have exactly the same coordinates, data
// variables, and attributes.
func Equal(a, b *Dataset) bool {
	return cmp.Equal(a, b, cmpOptions())
}

// AllClose returns true if a and b are equal except that floating point
// values x and y need only satisfy |x-y| <= max(rtol*min(|x|,|y|), atol).
func AllClose(a, b *Dataset, rtol, atol float64) bool {
	return cmp.Equal(a, b, cmpOptions(cmpopts.EquateApprox(rtol, atol)))
}

// Diff returns a human-readable report of the differences between a and b,
// using the same tolerances as AllClose. It returns the empty string if a and
// b are close.
func Diff(a, b *Dataset, rtol, atol float64) string {
	return cmp.Diff(a, b, cmpOptions(cmpopts.EquateApprox(rtol, atol)))
}
