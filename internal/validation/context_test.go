package validation

import (
	"testing"
	"time"
)

func TestNormalizeLocationValid(t *testing.T) {
	in := &LocationInput{Latitude: 51.492191, Longitude: -0.266108, MaxDistanceMeters: 300}
	c, err := NormalizeLocation(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.MaxDistanceMeters != 300 {
		t.Fatalf("unexpected max distance: %v", c.MaxDistanceMeters)
	}
}

func TestNormalizeLocationNil(t *testing.T) {
	c, err := NormalizeLocation(nil)
	if err != nil || c != nil {
		t.Fatalf("expected nil,nil for nil input, got %v,%v", c, err)
	}
}

func TestNormalizeLocationRejectsZeroDistance(t *testing.T) {
	in := &LocationInput{Latitude: 10, Longitude: 10, MaxDistanceMeters: 0}
	if _, err := NormalizeLocation(in); err == nil {
		t.Fatal("expected error for non-positive max_distance_meters")
	}
}

func TestNormalizeLocationRejectsOutOfRange(t *testing.T) {
	in := &LocationInput{Latitude: 200, Longitude: 10, MaxDistanceMeters: 10}
	if _, err := NormalizeLocation(in); err == nil {
		t.Fatal("expected error for out-of-range latitude")
	}
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func TestNormalizeTimeStartDuration(t *testing.T) {
	in := &TimeInput{Start: strPtr("2025-08-01T15:23:00+01:00"), DurationMinutes: intPtr(10)}
	tc, err := NormalizeTime(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantStart, _ := time.Parse(time.RFC3339, "2025-08-01T15:23:00+01:00")
	wantEnd, _ := time.Parse(time.RFC3339, "2025-08-01T15:33:00+01:00")
	if !tc.Start.Equal(wantStart) || !tc.End.Equal(wantEnd) {
		t.Fatalf("got [%v,%v], want [%v,%v]", tc.Start, tc.End, wantStart, wantEnd)
	}
}

func TestNormalizeTimeEndDuration(t *testing.T) {
	in := &TimeInput{End: strPtr("2025-08-01T15:33:00+01:00"), DurationMinutes: intPtr(10)}
	tc, err := NormalizeTime(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantStart, _ := time.Parse(time.RFC3339, "2025-08-01T15:23:00+01:00")
	wantEnd, _ := time.Parse(time.RFC3339, "2025-08-01T15:33:00+01:00")
	if !tc.Start.Equal(wantStart) || !tc.End.Equal(wantEnd) {
		t.Fatalf("got [%v,%v], want [%v,%v]", tc.Start, tc.End, wantStart, wantEnd)
	}
}

func TestNormalizeTimeStartEnd(t *testing.T) {
	in := &TimeInput{Start: strPtr("2025-08-01T15:23:00+01:00"), End: strPtr("2025-08-01T15:33:00+01:00")}
	if _, err := NormalizeTime(in); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNormalizeTimeRejectsWrongCardinality(t *testing.T) {
	cases := []*TimeInput{
		{Start: strPtr("2025-08-01T15:23:00+01:00")},
		{Start: strPtr("2025-08-01T15:23:00+01:00"), End: strPtr("2025-08-01T15:33:00+01:00"), DurationMinutes: intPtr(10)},
		{},
	}
	for i, in := range cases {
		if _, err := NormalizeTime(in); err == nil {
			t.Errorf("case %d: expected cardinality error", i)
		}
	}
}

func TestNormalizeTimeRejectsEndNotAfterStart(t *testing.T) {
	in := &TimeInput{Start: strPtr("2025-08-01T15:33:00+01:00"), End: strPtr("2025-08-01T15:23:00+01:00")}
	if _, err := NormalizeTime(in); err == nil {
		t.Fatal("expected error when end <= start")
	}
}

func TestNormalizeTimeNil(t *testing.T) {
	tc, err := NormalizeTime(nil)
	if err != nil || tc != nil {
		t.Fatalf("expected nil,nil for nil input, got %v,%v", tc, err)
	}
}

func TestParseTimestampRejectsMissingOffset(t *testing.T) {
	if _, err := parseTimestamp("2025-08-01T15:23:00"); err == nil {
		t.Fatal("expected error for timestamp without timezone offset")
	}
}

func TestParseTimestampLegacySuffix(t *testing.T) {
	got, err := parseTimestamp("2025-08-01T15:23:00Z+1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want, _ := time.Parse(time.RFC3339, "2025-08-01T15:23:00+01:00")
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestParseTimestampRFC3339(t *testing.T) {
	got, err := parseTimestamp("2025-08-01T15:23:00Z")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.UTC().Hour() != 15 {
		t.Fatalf("unexpected hour: %d", got.UTC().Hour())
	}
}
