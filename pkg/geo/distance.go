package geo

import (
	"math"

	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"

	"github.com/lintas-routing/balancegraph/pkg/util"
)

type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func (c Coordinate) GetLat() float64 {
	return c.Lat
}

func (c Coordinate) GetLon() float64 {
	return c.Lon
}

func NewCoordinate(lat, lon float64) Coordinate {
	return Coordinate{
		Lat: lat,
		Lon: lon,
	}
}

const (
	earthRadiusKM = 6371.0
)

func havFunction(angleRad float64) float64 {
	return (1 - math.Cos(angleRad)) / 2.0
}

// CalculateHaversineDistance. calculate haversine distance in km
func CalculateHaversineDistance(latOne, longOne, latTwo, longTwo float64) float64 {
	latOne = util.DegreeToRadians(latOne)
	longOne = util.DegreeToRadians(longOne)
	latTwo = util.DegreeToRadians(latTwo)
	longTwo = util.DegreeToRadians(longTwo)

	a := havFunction(latOne-latTwo) + math.Cos(latOne)*math.Cos(latTwo)*havFunction(longOne-longTwo)
	c := 2.0 * math.Asin(math.Sqrt(a))
	return earthRadiusKM * c
}

// CalculateAngleDistanceKm. great-circle distance in km via s2 angles, used by
// the spatial index where chord-angle math is cheaper than haversine.
func CalculateAngleDistanceKm(latOne, longOne, latTwo, longTwo float64) float64 {
	p1 := s2.LatLngFromDegrees(latOne, longOne)
	p2 := s2.LatLngFromDegrees(latTwo, longTwo)
	return p1.Distance(p2).Radians() * earthRadiusKM
}

// GetDestinationPoint. destination point given start point, bearing (degrees)
// and distance (km). used to grow bounding boxes around graph nodes.
func GetDestinationPoint(lat, lon, bearingDeg, distKm float64) (float64, float64) {
	ll := s2.LatLngFromDegrees(lat, lon)
	angDist := s1.Angle(distKm / earthRadiusKM)
	bearing := s1.Angle(util.DegreeToRadians(bearingDeg))

	lat1 := ll.Lat.Radians()
	lon1 := ll.Lng.Radians()

	lat2 := math.Asin(math.Sin(lat1)*math.Cos(angDist.Radians()) +
		math.Cos(lat1)*math.Sin(angDist.Radians())*math.Cos(bearing.Radians()))
	lon2 := lon1 + math.Atan2(
		math.Sin(bearing.Radians())*math.Sin(angDist.Radians())*math.Cos(lat1),
		math.Cos(angDist.Radians())-math.Sin(lat1)*math.Sin(lat2))

	return util.RadiansToDegree(lat2), util.RadiansToDegree(lon2)
}
