package geo

import (
	"math"
	"strings"
)

const polylineScale = 1e5

// Decode expands an encoded polyline (5-bit groups, offset 63, zig-zag deltas,
// 1e5 fixed point) into coordinates. A trailing incomplete pair is dropped.
func Decode(encoded string) []Point {
	if encoded == "" {
		return []Point{}
	}

	points := []Point{}
	index := 0
	lat, lng := 0, 0
	for index < len(encoded) {
		dlat, next, ok := decodeValue(encoded, index)
		if !ok {
			break
		}
		dlng, next, ok := decodeValue(encoded, next)
		if !ok {
			break
		}
		index = next
		lat += dlat
		lng += dlng
		points = append(points, Point{Lat: float64(lat) / polylineScale, Lon: float64(lng) / polylineScale})
	}
	return points
}

func decodeValue(encoded string, index int) (int, int, bool) {
	result := 0
	shift := uint(0)
	for {
		if index >= len(encoded) {
			return 0, index, false
		}
		b := int(encoded[index]) - 63
		index++
		result |= (b & 0x1f) << shift
		shift += 5
		if b < 0x20 {
			break
		}
	}
	if result&1 != 0 {
		return ^(result >> 1), index, true
	}
	return result >> 1, index, true
}

// Encode is the reference encoder for the format read by Decode.
func Encode(points []Point) string {
	var sb strings.Builder
	prevLat, prevLng := 0, 0
	for _, p := range points {
		lat := int(math.Round(p.Lat * polylineScale))
		lng := int(math.Round(p.Lon * polylineScale))
		encodeValue(&sb, lat-prevLat)
		encodeValue(&sb, lng-prevLng)
		prevLat, prevLng = lat, lng
	}
	return sb.String()
}

func encodeValue(sb *strings.Builder, v int) {
	v <<= 1
	if v < 0 {
		v = ^v
	}
	for v >= 0x20 {
		sb.WriteByte(byte((0x20 | (v & 0x1f)) + 63))
		v >>= 5
	}
	sb.WriteByte(byte(v + 63))
}
