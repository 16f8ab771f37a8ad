package crs

import (
	"fmt"

	"github.com/twpayne/go-proj/v10"
)

// A Transformer converts coordinates from a source CRS to a target CRS. Axis
// order is always (x, y), i.e. longitude or easting first, on both ends.
type Transformer struct {
	source *CRS
	target *CRS
	pj     *proj.PJ
}

// CreateTransformer returns a new Transformer from src to target.
func CreateTransformer[S, T CRSLike](src S, target T) (*Transformer, error) {
	sourceCRS, err := EnsureCRS(src)
	if err != nil {
		return nil, err
	}
	targetCRS, err := EnsureCRS(target)
	if err != nil {
		return nil, err
	}
	return newTransformer(sourceCRS, targetCRS)
}

func newTransformer(source, target *CRS) (*Transformer, error) {
	pj, err := proj.NewCRSToCRS(source.definition, target.definition, nil)
	if err != nil {
		return nil, fmt.Errorf("%s to %s: %w", source, target, err)
	}
	defer pj.Destroy()
	xyPJ, err := pj.NormalizeForVisualization()
	if err != nil {
		return nil, fmt.Errorf("%s to %s: %w", source, target, err)
	}
	return &Transformer{
		source: source,
		target: target,
		pj:     xyPJ,
	}, nil
}

// Source returns t's source CRS.
func (t *Transformer) Source() *CRS {
	return t.source
}

// Target returns t's target CRS.
func (t *Transformer) Target() *CRS {
	return t.target
}

// Equal returns true if t and other transform between the same CRSs.
func (t *Transformer) Equal(other *Transformer) bool {
	if t == nil || other == nil {
		return t == other
	}
	return t.source.Equal(other.source) && t.target.Equal(other.target)
}

// Inverse returns a new Transformer from t's target to t's source.
func (t *Transformer) Inverse() (*Transformer, error) {
	return newTransformer(t.target, t.source)
}

// Transform transforms a single coordinate from t's source to t's target.
func (t *Transformer) Transform(x, y float64) (float64, float64, error) {
	coord, err := t.pj.Forward(proj.Coord{x, y})
	if err != nil {
		return 0, 0, err
	}
	return coord[0], coord[1], nil
}

// TransformInverse transforms a single coordinate from t's target to t's
// source.
func (t *Transformer) TransformInverse(x, y float64) (float64, float64, error) {
	coord, err := t.pj.Inverse(proj.Coord{x, y})
	if err != nil {
		return 0, 0, err
	}
	return coord[0], coord[1], nil
}

// TransformFloat64Slices transforms coords in place. Each element of coords
// must have between two and four elements.
func (t *Transformer) TransformFloat64Slices(coords [][]float64) error {
	return t.pj.ForwardFloat64Slices(coords)
}

// String implements fmt.Stringer.
func (t *Transformer) String() string {
	return t.source.String() + " -> " + t.target.String()
}
