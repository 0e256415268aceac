package geo

import "testing"

func TestHaversineDistanceKnownCoordinates(t *testing.T) {
	a := Coordinate{Latitude: 51.491079, Longitude: -0.269590}
	b := Coordinate{Latitude: 51.492191, Longitude: -0.266108}

	d := HaversineDistance(a, b)
	if d >= 300 || d <= 200 {
		t.Fatalf("expected distance in (200,300)m, got %.2f", d)
	}
}

func TestHaversineDistanceSamePoint(t *testing.T) {
	c := Coordinate{Latitude: 51.5074, Longitude: -0.1278}
	d := HaversineDistance(c, c)
	if d > 0.001 {
		t.Fatalf("expected ~0, got %.4f", d)
	}
}

func TestValidateCoordinate(t *testing.T) {
	cases := []struct {
		name    string
		c       Coordinate
		wantErr bool
	}{
		{"valid", Coordinate{51.5074, -0.1278}, false},
		{"lat too high", Coordinate{91, 0}, true},
		{"lat too low", Coordinate{-91, 0}, true},
		{"lon too high", Coordinate{0, 181}, true},
		{"lon too low", Coordinate{0, -181}, true},
		{"suspect missing", Coordinate{0, 0}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateCoordinate(tc.c)
			if (err != nil) != tc.wantErr {
				t.Fatalf("ValidateCoordinate(%v) err=%v, wantErr=%v", tc.c, err, tc.wantErr)
			}
		})
	}
}

func TestWithinDistance(t *testing.T) {
	actual := Coordinate{51.491079, -0.269590}
	expected := Coordinate{51.492191, -0.266108}

	ok, _, err := WithinDistance(actual, expected, 300)
	if err != nil || !ok {
		t.Fatalf("expected within 300m, ok=%v err=%v", ok, err)
	}

	ok, _, err = WithinDistance(actual, expected, 50)
	if err != nil || ok {
		t.Fatalf("expected outside 50m, ok=%v err=%v", ok, err)
	}
}

func TestCoordString(t *testing.T) {
	s := CoordString(Coordinate{51.491079, -0.269590})
	if s != "51.491079°N, 0.269590°W" {
		t.Fatalf("unexpected format: %s", s)
	}
}

func TestFormatDistance(t *testing.T) {
	cases := map[float64]string{
		250.5:  "250.5m",
		1500.0: "1.50km",
		999.9:  "999.9m",
	}
	for meters, want := range cases {
		if got := FormatDistance(meters); got != want {
			t.Errorf("FormatDistance(%v) = %q, want %q", meters, got, want)
		}
	}
}
