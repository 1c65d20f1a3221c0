package models

import "math"

const earthRadiusM = 6371000.0

// LatLng is a WGS84 coordinate pair.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Coarsen rounds the coordinate to 5 decimal degrees (roughly one meter),
// limiting both fidelity and payload entropy before transmission.
func (c LatLng) Coarsen() LatLng {
	return LatLng{
		Lat: math.Round(c.Lat*1e5) / 1e5,
		Lng: math.Round(c.Lng*1e5) / 1e5,
	}
}

// DistanceM returns the haversine distance to other in meters.
func (c LatLng) DistanceM(other LatLng) float64 {
	lat1 := c.Lat * math.Pi / 180
	lat2 := other.Lat * math.Pi / 180
	dLat := (other.Lat - c.Lat) * math.Pi / 180
	dLng := (other.Lng - c.Lng) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusM * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// GlobalLocationEntry is one team's coarse position as broadcast to every
// other team in the same game. Timestamp is wall-clock milliseconds.
type GlobalLocationEntry struct {
	TeamID    string  `json:"team_id"`
	Name      string  `json:"name"`
	Location  LatLng  `json:"location"`
	PhotoURL  *string `json:"photo_url,omitempty"`
	Timestamp int64   `json:"timestamp"`
}
