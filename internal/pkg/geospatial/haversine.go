package geospatial

import "math"

// IUGG mean Earth radius in meters.
const meanRadius = 6371008.8

// Haversine returns the great-circle distance in meters on a sphere of mean
// Earth radius.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	phi1, phi2 := toRad(lat1), toRad(lat2)
	sinDPhi := math.Sin((phi2 - phi1) / 2)
	sinDLambda := math.Sin(toRad(lon2-lon1) / 2)

	h := sinDPhi*sinDPhi + math.Cos(phi1)*math.Cos(phi2)*sinDLambda*sinDLambda
	return 2 * meanRadius * math.Asin(math.Min(1, math.Sqrt(h)))
}

// BoundingBox returns the box holding every point within radiusMeters of
// (lat, lon). Degree lengths use the WGS84 radii of curvature at lat, and the
// result is clamped to valid coordinates.
func BoundingBox(lat, lon, radiusMeters float64) (minLat, minLon, maxLat, maxLon float64) {
	e2 := wgs84F * (2 - wgs84F)
	sinPhi, cosPhi := math.Sincos(toRad(lat))
	w := math.Sqrt(1 - e2*sinPhi*sinPhi)

	meridional := wgs84A * (1 - e2) / (w * w * w)
	primeVertical := wgs84A / w

	latDelta := radiusMeters / (meridional * math.Pi / 180)
	lonDelta := 180.0
	if parallel := primeVertical * cosPhi * math.Pi / 180; parallel > 1e-9 {
		lonDelta = math.Min(180, radiusMeters/parallel)
	}

	minLat, maxLat = math.Max(-90, lat-latDelta), math.Min(90, lat+latDelta)
	minLon, maxLon = math.Max(-180, lon-lonDelta), math.Min(180, lon+lonDelta)
	return minLat, minLon, maxLat, maxLon
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
