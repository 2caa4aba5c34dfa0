package models

import (
	"github.com/spf13/cast"
)

// ExtractNumber coerces a loosely typed monetary value to a non-negative
// float. Accepts plain numbers, numeric strings and Mongo-style
// {"$numberDecimal": "3.25"} wrappers. Anything unparsable comes back as 0.
func ExtractNumber(raw interface{}) float64 {
	if raw == nil {
		return 0
	}

	if m, ok := raw.(map[string]interface{}); ok {
		if dec, ok := m["$numberDecimal"]; ok {
			raw = dec
		} else {
			return 0
		}
	}

	n, err := cast.ToFloat64E(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// ToPoint normalizes the location shapes observed from the backend:
//
//	{"lat": .., "lng": ..}
//	{"latitude": .., "longitude": ..}
//	[lng, lat]                                (GeoJSON coordinate array)
//	{"type": "Point", "coordinates": [lng, lat]}
//
// Returns nil when the value fits none of them.
func ToPoint(raw interface{}) *Point {
	switch v := raw.(type) {
	case map[string]interface{}:
		if coords, ok := v["coordinates"]; ok {
			return ToPoint(coords)
		}
		if lat, lng, ok := latLngFrom(v, "lat", "lng"); ok {
			return &Point{Lat: lat, Lng: lng}
		}
		if lat, lng, ok := latLngFrom(v, "latitude", "longitude"); ok {
			return &Point{Lat: lat, Lng: lng}
		}
	case []interface{}:
		// GeoJSON ordering is longitude first.
		if len(v) >= 2 {
			lng, errLng := cast.ToFloat64E(v[0])
			lat, errLat := cast.ToFloat64E(v[1])
			if errLng == nil && errLat == nil {
				return &Point{Lat: lat, Lng: lng}
			}
		}
	}
	return nil
}

func latLngFrom(m map[string]interface{}, latKey, lngKey string) (float64, float64, bool) {
	rawLat, okLat := m[latKey]
	rawLng, okLng := m[lngKey]
	if !okLat || !okLng {
		return 0, 0, false
	}
	lat, errLat := cast.ToFloat64E(rawLat)
	lng, errLng := cast.ToFloat64E(rawLng)
	if errLat != nil || errLng != nil {
		return 0, 0, false
	}
	return lat, lng, true
}
