// Package validation normalizes a submission's optional location and time
// constraints into the canonical form the processor checks against.
package validation

import (
	"fmt"
	"regexp"
	"time"

	"github.com/outblock/imagevalidator/internal/geo"
)

// LocationInput is the caller-supplied, range-unchecked location constraint.
type LocationInput struct {
	Latitude          float64
	Longitude         float64
	MaxDistanceMeters float64
}

// LocationConstraint is the normalized, range-checked form.
type LocationConstraint struct {
	Expected          geo.Coordinate
	MaxDistanceMeters float64
}

// NormalizeLocation range-checks the expected coordinate and distance cap.
func NormalizeLocation(in *LocationInput) (*LocationConstraint, error) {
	if in == nil {
		return nil, nil
	}
	c := geo.Coordinate{Latitude: in.Latitude, Longitude: in.Longitude}
	if err := geo.ValidateCoordinate(c); err != nil {
		return nil, fmt.Errorf("invalid location constraint: %w", err)
	}
	if in.MaxDistanceMeters <= 0 {
		return nil, fmt.Errorf("invalid location constraint: max_distance_meters must be > 0, got %v", in.MaxDistanceMeters)
	}
	return &LocationConstraint{Expected: c, MaxDistanceMeters: in.MaxDistanceMeters}, nil
}

// TimeInput is the caller-supplied time constraint: exactly two of the three
// fields must be non-nil.
type TimeInput struct {
	Start          *string
	End            *string
	DurationMinutes *int
}

// TimeConstraint is the normalized, canonical [Start, End] interval.
type TimeConstraint struct {
	Start time.Time
	End   time.Time
}

// NormalizeTime derives the canonical [start, end] interval from whichever
// two of {start, end, duration} were supplied.
func NormalizeTime(in *TimeInput) (*TimeConstraint, error) {
	if in == nil {
		return nil, nil
	}

	count := 0
	if in.Start != nil {
		count++
	}
	if in.End != nil {
		count++
	}
	if in.DurationMinutes != nil {
		count++
	}
	if count != 2 {
		return nil, fmt.Errorf("time_constraint requires exactly two of {start, end, duration_minutes}, got %d", count)
	}

	var start, end time.Time
	var err error

	switch {
	case in.Start != nil && in.End != nil:
		start, err = parseTimestamp(*in.Start)
		if err != nil {
			return nil, fmt.Errorf("invalid time_constraint start: %w", err)
		}
		end, err = parseTimestamp(*in.End)
		if err != nil {
			return nil, fmt.Errorf("invalid time_constraint end: %w", err)
		}
		if !end.After(start) {
			return nil, fmt.Errorf("time_constraint end (%s) must be after start (%s)", end, start)
		}

	case in.Start != nil && in.DurationMinutes != nil:
		start, err = parseTimestamp(*in.Start)
		if err != nil {
			return nil, fmt.Errorf("invalid time_constraint start: %w", err)
		}
		end = start.Add(time.Duration(*in.DurationMinutes) * time.Minute)

	case in.End != nil && in.DurationMinutes != nil:
		end, err = parseTimestamp(*in.End)
		if err != nil {
			return nil, fmt.Errorf("invalid time_constraint end: %w", err)
		}
		start = end.Add(-time.Duration(*in.DurationMinutes) * time.Minute)
	}

	return &TimeConstraint{Start: start, End: end}, nil
}

// legacySuffixRe matches the backward-compatible "...Z+1" / "...Z-5" form: a
// timestamp that was stamped with a stray "Z" ahead of its real hour offset.
var legacySuffixRe = regexp.MustCompile(`^(.*)Z([+-]\d{1,2})$`)

// parseTimestamp accepts RFC-3339 timestamps and the legacy "...Z+1" suffix.
// Timestamps with no timezone offset at all are rejected.
func parseTimestamp(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}

	if m := legacySuffixRe.FindStringSubmatch(raw); m != nil {
		base, hourOffset := m[1], m[2]
		sign := hourOffset[:1]
		hours := hourOffset[1:]
		if len(hours) == 1 {
			hours = "0" + hours
		}
		normalized := base + sign + hours + ":00"
		if t, err := time.Parse(time.RFC3339, normalized); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("timestamp %q is missing a timezone offset or is malformed", raw)
}
