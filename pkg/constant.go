package pkg

// vehicle categories supported by the parser. Only CAR is routed for now,
// the category still decides which osm highway types are drivable.
type VehicleCategory uint8

const (
	CAR VehicleCategory = iota
	UNSUPPORTED_VEHICLE
)

func GetVehicleCategory(category string) VehicleCategory {
	switch category {
	case "Car":
		return CAR
	default:
		return UNSUPPORTED_VEHICLE
	}
}

const (
	INF_WEIGHT float64 = 1e15

	MIN_SPEED_KMH float64 = 5.0
	MAX_SPEED_KMH float64 = 130.0
)

const (
	DEBUG = false
)

type OsmHighwayType uint8

// enum buat osm highway buat routing: https://wiki.openstreetmap.org/wiki/OSM_tags_for_routing/Telenav
const (
	MOTORWAY       OsmHighwayType = 0
	TRUNK          OsmHighwayType = 1
	PRIMARY        OsmHighwayType = 2
	SECONDARY      OsmHighwayType = 3
	TERTIARY       OsmHighwayType = 4
	RESIDENTIAL    OsmHighwayType = 5
	SERVICE        OsmHighwayType = 6
	UNCLASSIFIED   OsmHighwayType = 7
	MOTORWAY_LINK  OsmHighwayType = 8
	TRUNK_LINK     OsmHighwayType = 9
	PRIMARY_LINK   OsmHighwayType = 10
	SECONDARY_LINK OsmHighwayType = 11
	TERTIARY_LINK  OsmHighwayType = 12
	LIVING_STREET  OsmHighwayType = 13
	ROAD           OsmHighwayType = 14
	TRACK          OsmHighwayType = 15
	UNKNOWN        OsmHighwayType = 16
)

func GetHighwayType(roadType string) OsmHighwayType {
	switch roadType {
	case "motorway":
		return MOTORWAY
	case "trunk":
		return TRUNK
	case "primary":
		return PRIMARY
	case "secondary":
		return SECONDARY
	case "tertiary":
		return TERTIARY
	case "unclassified":
		return UNCLASSIFIED
	case "residential":
		return RESIDENTIAL
	case "service":
		return SERVICE
	case "motorway_link":
		return MOTORWAY_LINK
	case "trunk_link":
		return TRUNK_LINK
	case "primary_link":
		return PRIMARY_LINK
	case "secondary_link":
		return SECONDARY_LINK
	case "tertiary_link":
		return TERTIARY_LINK
	case "living_street":
		return LIVING_STREET
	case "road":
		return ROAD
	case "track":
		return TRACK
	default:
		return UNKNOWN
	}
}

// default speed limits in km/h per street type, following the german defaults
// of the osm wiki table (Key:highway).
var defaultSpeedKmh = map[OsmHighwayType]float64{
	MOTORWAY:       130,
	MOTORWAY_LINK:  50,
	TRUNK:          100,
	TRUNK_LINK:     50,
	PRIMARY:        100,
	PRIMARY_LINK:   30,
	SECONDARY:      70,
	SECONDARY_LINK: 30,
	TERTIARY:       70,
	TERTIARY_LINK:  30,
	UNCLASSIFIED:   50,
	RESIDENTIAL:    50,
	LIVING_STREET:  15,
	SERVICE:        20,
	TRACK:          30,
	ROAD:           50,
	UNKNOWN:        50,
}

func GetDefaultSpeedKmh(hwType OsmHighwayType) float64 {
	return defaultSpeedKmh[hwType]
}

// drivable but unusual street types for cars. picky drivers
// (parsing.vehicles.are_drivers_picky) avoid them.
func IsUncomfortableForCar(hwType OsmHighwayType) bool {
	switch hwType {
	case SERVICE, TRACK, ROAD:
		return true
	default:
		return false
	}
}
