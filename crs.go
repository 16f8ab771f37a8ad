// Package crs normalizes coordinate reference system identifiers, builds
// transformers between them, and reprojects the spatial coordinates of
// labeled datasets.
package crs

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/twpayne/go-proj/v10"
)

// ErrInvalidCRS is returned when a CRS identifier does not resolve to a known
// coordinate reference system.
var ErrInvalidCRS = errors.New("invalid CRS")

// A CRSLike is anything that can be normalized into a *CRS: an EPSG code, a
// definition string understood by PROJ, or a *CRS.
type CRSLike interface {
	~int | ~string | *CRS
}

// A CRS is a coordinate reference system.
type CRS struct {
	definition string
	epsg       int
}

// FromEPSG returns the CRS with the given EPSG code.
func FromEPSG(code int) (*CRS, error) {
	if code <= 0 {
		return nil, fmt.Errorf("%w: EPSG:%d", ErrInvalidCRS, code)
	}
	return newCRS("EPSG:"+strconv.Itoa(code), code)
}

// FromDefinition returns the CRS described by definition. Definitions of the
// form "EPSG:<code>" are canonicalized, so FromDefinition("epsg:4326") is
// equal to FromEPSG(4326).
func FromDefinition(definition string) (*CRS, error) {
	definition = strings.TrimSpace(definition)
	if authority, code, ok := strings.Cut(definition, ":"); ok && strings.EqualFold(authority, "EPSG") {
		epsg, err := strconv.Atoi(code)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrInvalidCRS, definition)
		}
		return FromEPSG(epsg)
	}
	if definition == "" {
		return nil, fmt.Errorf("%w: empty definition", ErrInvalidCRS)
	}
	return newCRS(definition, 0)
}

// newCRS checks that PROJ can resolve definition.
func newCRS(definition string, epsg int) (*CRS, error) {
	pj, err := proj.New(definition)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidCRS, definition, err)
	}
	pj.Destroy()
	return &CRS{
		definition: definition,
		epsg:       epsg,
	}, nil
}

// EnsureCRS normalizes crsLike into a *CRS. A *CRS is returned unchanged, so
// EnsureCRS is idempotent.
func EnsureCRS[T CRSLike](crsLike T) (*CRS, error) {
	if c, ok := any(crsLike).(*CRS); ok {
		if c == nil {
			return nil, fmt.Errorf("%w: nil CRS", ErrInvalidCRS)
		}
		return c, nil
	}
	switch value := reflect.ValueOf(crsLike); value.Kind() {
	case reflect.Int:
		return FromEPSG(int(value.Int()))
	case reflect.String:
		return FromDefinition(value.String())
	default:
		return nil, fmt.Errorf("%w: %v", ErrInvalidCRS, crsLike)
	}
}

// Definition returns c's canonical definition.
func (c *CRS) Definition() string {
	return c.definition
}

// EPSG returns c's EPSG code and true, or zero and false if c was not built
// from an EPSG code.
func (c *CRS) EPSG() (int, bool) {
	return c.epsg, c.epsg != 0
}

// Equal returns true if c and other describe the same CRS.
func (c *CRS) Equal(other *CRS) bool {
	if c == nil || other == nil {
		return c == other
	}
	return c.definition == other.definition
}

// String implements fmt.Stringer.
func (c *CRS) String() string {
	return c.definition
}
