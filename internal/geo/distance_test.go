package geo

import (
	"math"
	"testing"
)

func TestDistanceMetersSamePointIsZero(t *testing.T) {
	if d := DistanceMeters(5.6037, -0.1870, 5.6037, -0.1870); d != 0 {
		t.Fatalf("expected 0, got %f", d)
	}
}

func TestDistanceMetersSymmetric(t *testing.T) {
	ab := DistanceMeters(5.60, -0.18, 5.61, -0.19)
	ba := DistanceMeters(5.61, -0.19, 5.60, -0.18)
	if ab != ba {
		t.Fatalf("expected symmetric distance, got %f and %f", ab, ba)
	}
	// ~1.57 km between the two Accra points
	if ab < 1500 || ab > 1650 {
		t.Fatalf("unexpected distance: %f", ab)
	}
}

func TestDistanceMetersTriangleInequality(t *testing.T) {
	a := Point{Lat: 5.60, Lon: -0.18}
	b := Point{Lat: 5.61, Lon: -0.19}
	c := Point{Lat: 6.69, Lon: -1.62}
	if Distance(a, c) > Distance(a, b)+Distance(b, c)+1e-6 {
		t.Fatalf("triangle inequality violated")
	}
}

func TestDistanceMetersKnownValue(t *testing.T) {
	// one degree of latitude on the 6371 km sphere
	d := DistanceMeters(0, 0, 1, 0)
	want := 6371000.0 * math.Pi / 180
	if math.Abs(d-want) > 1e-6 {
		t.Fatalf("expected %f, got %f", want, d)
	}
}

func TestFormatDistance(t *testing.T) {
	cases := map[float64]string{
		0:      "0 m",
		12.4:   "12 m",
		999:    "999 m",
		1000:   "1.00 km",
		2500:   "2.50 km",
		1234:   "1.23 km",
	}
	for in, want := range cases {
		if got := FormatDistance(in); got != want {
			t.Fatalf("FormatDistance(%v): expected %q, got %q", in, want, got)
		}
	}
}
