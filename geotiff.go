package crs

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"strconv"

	"github.com/google/tiff"
	_ "github.com/google/tiff/bigtiff"
	_ "github.com/google/tiff/geotiff"
	"golang.org/x/image/tiff/lzw"
	"gonum.org/v1/gonum/mat"
)

// TIFF tag values accepted by ReadGeoTIFF.
const (
	compressionNone = 1
	compressionLZW  = 5

	rasterTypePixelIsPoint = 2
)

var errShortRead = errors.New("short read")

// A geoTIFFIFD is a struct into which github.com/google/tiff can unmarshal an
// IFD.
type geoTIFFIFD struct {
	ImageWidth          uint16    `tiff:"field,tag=256"`
	ImageLength         uint16    `tiff:"field,tag=257"`
	BitsPerSample       uint16    `tiff:"field,tag=258"`
	Compression         uint16    `tiff:"field,tag=259"`
	SamplesPerPixel     uint16    `tiff:"field,tag=277"`
	PlanarConfiguration uint16    `tiff:"field,tag=284"`
	Predictor           uint16    `tiff:"field,tag=317"`
	TileWidth           uint16    `tiff:"field,tag=322"`
	TileLength          uint16    `tiff:"field,tag=323"`
	TileOffsets         []uint64  `tiff:"field,tag=324"`
	TileByteCounts      []uint64  `tiff:"field,tag=325"`
	SampleFormat        uint16    `tiff:"field,tag=339"`
	ModelPixelScaleTag  []float64 `tiff:"field,tag=33550"`
	ModelTiepointTag    []float64 `tiff:"field,tag=33922"`
	GeoKeyDirectoryTag  []uint16  `tiff:"field,tag=34735"`
	GeoDoubleParamsTag  []float64 `tiff:"field,tag=34736"`
	GeoASCIIParamsTag   string    `tiff:"field,tag=34737"`
	GDALNoData          string    `tiff:"field,tag=42113"`
}

type geoTIFFReader struct {
	crs     *CRS
	dataVar string
}

// A GeoTIFFOption sets an option on ReadGeoTIFF.
type GeoTIFFOption func(*geoTIFFReader)

// WithCRS sets the CRS of the GeoTIFF, overriding its GeoKeys. It is needed
// for files with user-defined CRSs.
func WithCRS(crs *CRS) GeoTIFFOption {
	return func(r *geoTIFFReader) {
		r.crs = crs
	}
}

// WithDataVar also reads the GeoTIFF's band into the data variable name.
func WithDataVar(name string) GeoTIFFOption {
	return func(r *geoTIFFReader) {
		r.dataVar = name
	}
}

// ReadGeoTIFF reads the georeferencing of the single-band GeoTIFF filename in
// fsys. It returns a Dataset with x and y coordinates at pixel centres and its
// CRS. The dataset attribute crs is set to the CRS's definition.
func ReadGeoTIFF(fsys fs.FS, filename string, options ...GeoTIFFOption) (*Dataset, *CRS, error) {
	r := &geoTIFFReader{}
	for _, option := range options {
		option(r)
	}

	file, err := fsys.Open(filename)
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()
	osFile, ok := file.(*os.File)
	if !ok {
		return nil, nil, errors.ErrUnsupported
	}

	tiffTIFF, err := tiff.Parse(osFile, tiff.GetTagSpace("GeoTIFF"), nil)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", filename, err)
	}
	if len(tiffTIFF.IFDs()) == 0 {
		return nil, nil, fmt.Errorf("%s: no IFDs", filename)
	}

	// Later IFDs are overviews.
	var ifd geoTIFFIFD
	if err := tiff.UnmarshalIFD(tiffTIFF.IFDs()[0], &ifd); err != nil {
		return nil, nil, fmt.Errorf("%s: %w", filename, err)
	}

	geoKeys, err := ParseGeoKeys(ifd.GeoKeyDirectoryTag, ifd.GeoDoubleParamsTag, []byte(ifd.GeoASCIIParamsTag))
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", filename, err)
	}
	crs := r.crs
	if crs == nil {
		crs, err = geoKeys.CRS()
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", filename, err)
		}
	}

	ds, err := geoTIFFCoords(&ifd, geoKeys.Params[GeoKeyGTRasterType])
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", filename, err)
	}
	ds.SetAttr("crs", crs.Definition())

	if r.dataVar != "" {
		band, err := readBand(osFile, &ifd)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", filename, err)
		}
		if err := ds.SetDataVar(r.dataVar, NewMatrixVariable("y", "x", band, nil)); err != nil {
			return nil, nil, err
		}
	}

	return ds, crs, nil
}

// geoTIFFCoords returns a Dataset with the x and y coordinates of ifd's
// pixels. Only north-up rasters with a single tiepoint at the origin are
// supported.
func geoTIFFCoords(ifd *geoTIFFIFD, rasterType int) (*Dataset, error) {
	if len(ifd.ModelPixelScaleTag) != 3 || len(ifd.ModelTiepointTag) != 6 {
		return nil, errors.ErrUnsupported
	}
	if i, j := ifd.ModelTiepointTag[0], ifd.ModelTiepointTag[1]; i != 0 || j != 0 {
		return nil, errors.ErrUnsupported
	}
	scaleX, scaleY := ifd.ModelPixelScaleTag[0], ifd.ModelPixelScaleTag[1]
	translateX, translateY := ifd.ModelTiepointTag[3], ifd.ModelTiepointTag[4]

	offset := 0.5
	if rasterType == rasterTypePixelIsPoint {
		offset = 0
	}

	xs := make([]float64, int(ifd.ImageWidth))
	for i := range xs {
		xs[i] = translateX + (float64(i)+offset)*scaleX
	}
	ys := make([]float64, int(ifd.ImageLength))
	for j := range ys {
		ys[j] = translateY - (float64(j)+offset)*scaleY
	}

	ds := NewDataset()
	if err := ds.SetCoord("x", NewIndexVariable("x", xs, Attrs{"axis": "X"})); err != nil {
		return nil, err
	}
	if err := ds.SetCoord("y", NewIndexVariable("y", ys, Attrs{"axis": "Y"})); err != nil {
		return nil, err
	}
	return ds, nil
}

// readBand reads the single float32 band of a tiled GeoTIFF. NoData samples
// are returned as NaNs.
func readBand(r io.ReaderAt, ifd *geoTIFFIFD) (*mat.Dense, error) {
	if ifd.BitsPerSample != 32 ||
		ifd.SampleFormat != 3 ||
		ifd.SamplesPerPixel != 1 ||
		ifd.PlanarConfiguration != 1 ||
		ifd.Predictor > 1 ||
		(ifd.Compression != compressionNone && ifd.Compression != compressionLZW) ||
		ifd.TileWidth == 0 || ifd.TileLength == 0 ||
		ifd.ImageWidth == 0 || ifd.ImageLength == 0 {
		return nil, errors.ErrUnsupported
	}

	noData := float32(math.NaN())
	if ifd.GDALNoData != "" {
		value, err := strconv.ParseFloat(ifd.GDALNoData, 64)
		if err != nil {
			return nil, fmt.Errorf("GDAL nodata: %w", err)
		}
		noData = float32(value)
	}

	imageWidth, imageLength := int(ifd.ImageWidth), int(ifd.ImageLength)
	tileWidth, tileLength := int(ifd.TileWidth), int(ifd.TileLength)
	tilesAcross := (imageWidth + tileWidth - 1) / tileWidth
	tilesDown := (imageLength + tileLength - 1) / tileLength
	if len(ifd.TileOffsets) != tilesAcross*tilesDown || len(ifd.TileByteCounts) != tilesAcross*tilesDown {
		return nil, errors.New("incorrect number of tile byte counts or offsets")
	}
	tileSampleCount := tileWidth * tileLength

	band := mat.NewDense(imageLength, imageWidth, nil)
	for tileR := range tilesDown {
		for tileC := range tilesAcross {
			tileIndex := tileC + tilesAcross*tileR
			compressedData := make([]byte, ifd.TileByteCounts[tileIndex])
			switch n, err := r.ReadAt(compressedData, int64(ifd.TileOffsets[tileIndex])); {
			case n != len(compressedData):
				return nil, errShortRead
			case err != nil && !errors.Is(err, io.EOF):
				return nil, err
			}
			tileData, err := decompressTileData(ifd.Compression, compressedData, 4*tileSampleCount)
			if err != nil {
				return nil, err
			}
			tileSamples := decodeTileData(tileData, tileSampleCount)
			for y := range tileLength {
				row := tileR*tileLength + y
				if row >= imageLength {
					break
				}
				for x := range tileWidth {
					col := tileC*tileWidth + x
					if col >= imageWidth {
						break
					}
					sample := tileSamples[x+y*tileWidth]
					if sample == noData {
						band.Set(row, col, math.NaN())
					} else {
						band.Set(row, col, float64(sample))
					}
				}
			}
		}
	}
	return band, nil
}

// decompressTileData decompresses compressedData into size bytes.
func decompressTileData(compression uint16, compressedData []byte, size int) ([]byte, error) {
	switch compression {
	case compressionNone:
		if len(compressedData) < size {
			return nil, errShortRead
		}
		return compressedData[:size], nil
	case compressionLZW:
		tileData := make([]byte, size)
		r := lzw.NewReader(bytes.NewReader(compressedData), lzw.MSB, 8)
		defer r.Close()
		if _, err := io.ReadFull(r, tileData); err != nil {
			return nil, err
		}
		return tileData, nil
	default:
		return nil, errors.ErrUnsupported
	}
}

// decodeTileData decodes little-endian float32 samples.
func decodeTileData(tileData []byte, sampleCount int) []float32 {
	tileSamples := make([]float32, sampleCount)
	for i := range sampleCount {
		b := binary.LittleEndian.Uint32(tileData[i*4 : (i+1)*4])
		tileSamples[i] = math.Float32frombits(b)
	}
	return tileSamples
}
