package geometry

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/avalanchegeo/eros-ingester/common"
	"github.com/go-spatial/geom"
)

// SpatialFilterFromKML reads the polygon boundaries of a KML file and returns the
// minimum bounding rectangle of their coordinates as a "mbr" spatial filter.
func SpatialFilterFromKML(path string) (common.SpatialFilter, error) {
	f, err := os.Open(path)
	if err != nil {
		return common.SpatialFilter{}, fmt.Errorf("SpatialFilterFromKML.Open: %w", err)
	}
	defer f.Close()

	extent, err := BoundingRect(f)
	if err != nil {
		return common.SpatialFilter{}, fmt.Errorf("SpatialFilterFromKML[%s].%w", path, err)
	}

	sf, err := common.NewSpatialFilter(
		common.Coordinate{Latitude: extent.MinY(), Longitude: extent.MinX()},
		common.Coordinate{Latitude: extent.MaxY(), Longitude: extent.MaxX()},
	)
	if err != nil {
		return common.SpatialFilter{}, fmt.Errorf("SpatialFilterFromKML.%w", err)
	}
	return sf, nil
}

// BoundingRect computes the extent of every polygon outer boundary of a KML document
func BoundingRect(r io.Reader) (*geom.Extent, error) {
	coords, err := outerBoundaries(r)
	if err != nil {
		return nil, fmt.Errorf("BoundingRect.%w", err)
	}

	var points [][2]float64
	for _, block := range coords {
		pts, err := parseCoordinates(block)
		if err != nil {
			return nil, fmt.Errorf("BoundingRect.%w", err)
		}
		points = append(points, pts...)
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("BoundingRect: no polygon coordinates found")
	}
	return geom.NewExtent(points...), nil
}

// outerBoundaries collects the content of every
// Polygon>outerBoundaryIs>LinearRing>coordinates element, wherever the
// Placemark is nested (Document, Folder...).
func outerBoundaries(r io.Reader) ([]string, error) {
	decoder := xml.NewDecoder(r)
	var stack []string
	var coords []string
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			return coords, nil
		}
		if err != nil {
			return nil, fmt.Errorf("outerBoundaries.Token: %w", err)
		}
		switch t := token.(type) {
		case xml.StartElement:
			stack = append(stack, t.Name.Local)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if endsWith(stack, "Polygon", "outerBoundaryIs", "LinearRing", "coordinates") {
				coords = append(coords, string(t))
			}
		}
	}
}

func endsWith(stack []string, suffix ...string) bool {
	if len(stack) < len(suffix) {
		return false
	}
	offset := len(stack) - len(suffix)
	for i, s := range suffix {
		if stack[offset+i] != s {
			return false
		}
	}
	return true
}

// parseCoordinates parses a KML coordinates block: whitespace-separated
// longitude,latitude[,elevation] tuples. Elevation is ignored.
func parseCoordinates(block string) ([][2]float64, error) {
	var points [][2]float64
	for _, tuple := range strings.Fields(block) {
		parts := strings.Split(tuple, ",")
		if len(parts) < 2 {
			return nil, fmt.Errorf("parseCoordinates: malformed tuple %q", tuple)
		}
		lon, err := strconv.ParseFloat(parts[0], 64)
		if err != nil {
			return nil, fmt.Errorf("parseCoordinates: longitude of %q: %w", tuple, err)
		}
		lat, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return nil, fmt.Errorf("parseCoordinates: latitude of %q: %w", tuple, err)
		}
		points = append(points, [2]float64{lon, lat})
	}
	return points, nil
}
