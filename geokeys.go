package crs

import (
	"errors"
	"fmt"
)

var errGeoKeyDirectory = errors.New("malformed GeoKey directory")

// A GeoKey identifies an entry in a GeoTIFF GeoKey directory.
type GeoKey uint16

// GeoKeys used to identify a CRS.
const (
	GeoKeyGTModelType  GeoKey = 1024
	GeoKeyGTRasterType GeoKey = 1025
	GeoKeyGTCitation   GeoKey = 1026

	GeoKeyGeodeticCRS   GeoKey = 2048
	GeoKeyGeogCitation  GeoKey = 2049
	GeoKeyGeodeticDatum GeoKey = 2050
	GeoKeyAngularUnits  GeoKey = 2054

	GeoKeyProjectedCRS GeoKey = 3072
	GeoKeyPCSCitation  GeoKey = 3073
	GeoKeyProjection   GeoKey = 3074
	GeoKeyProjMethod   GeoKey = 3075
	GeoKeyLinearUnits  GeoKey = 3076

	GeoKeyVertical GeoKey = 4096
)

// Model types, the values of GeoKeyGTModelType.
const (
	ModelTypeProjected  = 1
	ModelTypeGeographic = 2
	ModelTypeGeocentric = 3
)

// userDefined is the GeoKey value for a CRS that is described by other keys
// rather than by an EPSG code.
const userDefined = 32767

// geoTIFF tag locations of GeoKey values.
const (
	tagLocationDirectory = 0
	tagLocationDouble    = 34736 // GeoDoubleParamsTag.
	tagLocationASCII     = 34737 // GeoASCIIParamsTag.
)

// ParsedGeoKeys are the values of a GeoKey directory.
type ParsedGeoKeys struct {
	Params       map[GeoKey]int
	DoubleParams map[GeoKey]float64
	ASCIIParams  map[GeoKey]string
}

// ParseGeoKeys parses a GeoKey directory and its double and ASCII parameters.
func ParseGeoKeys(directory []uint16, doubleParams []float64, asciiParams []byte) (*ParsedGeoKeys, error) {
	if len(directory) < 4 {
		return nil, errGeoKeyDirectory
	}

	if keyDirectoryVersion := int(directory[0]); keyDirectoryVersion != 1 {
		return nil, fmt.Errorf("%w: version %d", errGeoKeyDirectory, keyDirectoryVersion)
	}
	if keyRevision := int(directory[1]); keyRevision != 1 {
		return nil, fmt.Errorf("%w: revision %d", errGeoKeyDirectory, keyRevision)
	}
	if minorRevision := int(directory[2]); minorRevision != 0 && minorRevision != 1 {
		return nil, fmt.Errorf("%w: minor revision %d", errGeoKeyDirectory, minorRevision)
	}
	numberOfKeys := int(directory[3])
	if len(directory) != 4+4*numberOfKeys {
		return nil, fmt.Errorf("%w: %d keys in %d entries", errGeoKeyDirectory, numberOfKeys, len(directory))
	}

	parsedGeoKeys := &ParsedGeoKeys{
		Params:       make(map[GeoKey]int),
		DoubleParams: make(map[GeoKey]float64),
		ASCIIParams:  make(map[GeoKey]string),
	}
	for i := range numberOfKeys {
		entry := directory[4+4*i : 4+4*(i+1)]
		key := GeoKey(entry[0])
		tagLocation := int(entry[1])
		count := int(entry[2])
		valueOffset := int(entry[3])
		switch tagLocation {
		case tagLocationDirectory:
			if count != 1 {
				return nil, fmt.Errorf("%w: key %d has %d values", errGeoKeyDirectory, key, count)
			}
			parsedGeoKeys.Params[key] = valueOffset
		case tagLocationDouble:
			if count != 1 {
				return nil, errors.ErrUnsupported
			}
			if valueOffset >= len(doubleParams) {
				return nil, fmt.Errorf("%w: key %d double offset %d out of range", errGeoKeyDirectory, key, valueOffset)
			}
			parsedGeoKeys.DoubleParams[key] = doubleParams[valueOffset]
		case tagLocationASCII:
			if valueOffset+count > len(asciiParams) {
				return nil, fmt.Errorf("%w: key %d ASCII offset %d out of range", errGeoKeyDirectory, key, valueOffset)
			}
			parsedGeoKeys.ASCIIParams[key] = string(asciiParams[valueOffset : valueOffset+count])
		default:
			return nil, errors.ErrUnsupported
		}
	}
	return parsedGeoKeys, nil
}

// EPSG returns the EPSG code of the CRS described by k. The projected CRS
// takes precedence over the geodetic CRS. It returns errors.ErrUnsupported if
// the CRS is user-defined or missing.
func (k *ParsedGeoKeys) EPSG() (int, error) {
	keys := []GeoKey{GeoKeyProjectedCRS, GeoKeyGeodeticCRS}
	if modelType, ok := k.Params[GeoKeyGTModelType]; ok && modelType == ModelTypeGeographic {
		keys = []GeoKey{GeoKeyGeodeticCRS}
	}
	for _, key := range keys {
		switch code, ok := k.Params[key]; {
		case !ok || code == 0:
			continue
		case code == userDefined:
			return 0, fmt.Errorf("user-defined CRS: %w", errors.ErrUnsupported)
		default:
			return code, nil
		}
	}
	return 0, fmt.Errorf("no CRS: %w", errors.ErrUnsupported)
}

// CRS returns the CRS described by k.
func (k *ParsedGeoKeys) CRS() (*CRS, error) {
	code, err := k.EPSG()
	if err != nil {
		return nil, err
	}
	return FromEPSG(code)
}
