package geo

import (
	"github.com/golang/geo/s2"
	polyline "github.com/twpayne/go-polyline"
)

const (
	earthRadiusKM = 6371.0
)

type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func NewCoordinate(lat, lon float64) Coordinate {
	return Coordinate{
		Lat: lat,
		Lon: lon,
	}
}

func (c Coordinate) GetLat() float64 {
	return c.Lat
}

func (c Coordinate) GetLon() float64 {
	return c.Lon
}

// CalculateHaversineDistance. great-circle distance between two coordinates in km.
func CalculateHaversineDistance(latOne, longOne, latTwo, longTwo float64) float64 {
	p1 := s2.LatLngFromDegrees(latOne, longOne)
	p2 := s2.LatLngFromDegrees(latTwo, longTwo)
	return p1.Distance(p2).Radians() * earthRadiusKM
}

// PolylineFromCoords encodes coordinates into a google encoded polyline
// with 5 digit precision.
func PolylineFromCoords(coords []Coordinate) string {
	flat := make([][]float64, len(coords))
	for i, c := range coords {
		flat[i] = []float64{c.Lat, c.Lon}
	}
	return string(polyline.EncodeCoords(flat))
}

func CoordsFromPolyline(enc string) ([]Coordinate, error) {
	flat, _, err := polyline.DecodeCoords([]byte(enc))
	if err != nil {
		return nil, err
	}
	coords := make([]Coordinate, len(flat))
	for i, p := range flat {
		coords[i] = NewCoordinate(p[0], p[1])
	}
	return coords, nil
}
