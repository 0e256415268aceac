// Package exifdata extracts GPS coordinates and capture timestamps from a
// local image file's EXIF metadata, using the same decode-then-read-by-tag
// approach as the Rust original's validation/exif.rs, translated onto
// rwcarlsen/goexif.
package exifdata

import (
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"

	"github.com/outblock/imagevalidator/internal/geo"
)

// exifDateLayout is the EXIF "YYYY:MM:DD HH:MM:SS" timestamp layout.
const exifDateLayout = "2006:01:02 15:04:05"

// Data holds the metadata the validators consume.
type Data struct {
	Coordinate       *geo.Coordinate // nil if GPS tags are absent
	DateTimeOriginal *time.Time
	DateTime         *time.Time
}

// Reader extracts Data from an image path. Abstracted behind an interface so
// the processor can be tested with a fake (mirrors the teacher's pattern of
// injecting a Processor/Client interface rather than a concrete decoder).
type Reader interface {
	Extract(path string) (*Data, error)
}

// FileReader reads EXIF metadata straight off disk.
type FileReader struct{}

func NewFileReader() *FileReader { return &FileReader{} }

func (FileReader) Extract(path string) (*Data, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode exif: %w", err)
	}

	coord, err := extractGPS(x)
	if err != nil {
		return nil, err
	}

	dtOriginal, err := extractDateTime(x, exif.DateTimeOriginal)
	if err != nil {
		return nil, err
	}
	dt, err := extractDateTime(x, exif.DateTime)
	if err != nil {
		return nil, err
	}

	return &Data{
		Coordinate:       coord,
		DateTimeOriginal: dtOriginal,
		DateTime:         dt,
	}, nil
}

// extractGPS returns nil, nil when any of the four GPS tags is missing — per
// spec this is "no coordinates", not an error.
func extractGPS(x *exif.Exif) (*geo.Coordinate, error) {
	latTag, errLat := x.Get(exif.GPSLatitude)
	latRefTag, errLatRef := x.Get(exif.GPSLatitudeRef)
	lonTag, errLon := x.Get(exif.GPSLongitude)
	lonRefTag, errLonRef := x.Get(exif.GPSLongitudeRef)

	if errLat != nil || errLatRef != nil || errLon != nil || errLonRef != nil {
		return nil, nil
	}

	latDMS, err := dmsFromTag(latTag)
	if err != nil {
		return nil, fmt.Errorf("invalid GPS latitude: %w", err)
	}
	lonDMS, err := dmsFromTag(lonTag)
	if err != nil {
		return nil, fmt.Errorf("invalid GPS longitude: %w", err)
	}

	latRef, err := latRefTag.StringVal()
	if err != nil {
		return nil, fmt.Errorf("invalid GPS latitude ref: %w", err)
	}
	lonRef, err := lonRefTag.StringVal()
	if err != nil {
		return nil, fmt.Errorf("invalid GPS longitude ref: %w", err)
	}

	coord := coordinateFromDMS(latDMS, lonDMS, latRef, lonRef)
	return &coord, nil
}

// coordinateFromDMS applies the GPS reference sign (S/W negate) to a pair of
// degrees-minutes-seconds values, per original_source/src/validation/exif.rs.
func coordinateFromDMS(latDMS, lonDMS dms, latRef, lonRef string) geo.Coordinate {
	lat := dmsToDecimal(latDMS)
	if strings.EqualFold(latRef, "S") {
		lat = -lat
	}
	lon := dmsToDecimal(lonDMS)
	if strings.EqualFold(lonRef, "W") {
		lon = -lon
	}
	return geo.Coordinate{Latitude: lat, Longitude: lon}
}

type dms struct {
	degrees, minutes, seconds float64
}

func dmsFromTag(tag *tiff.Tag) (dms, error) {
	if tag.Count != 3 {
		return dms{}, fmt.Errorf("expected 3 rational values for DMS, got %d", tag.Count)
	}
	d, err := ratToFloat(tag, 0)
	if err != nil {
		return dms{}, err
	}
	m, err := ratToFloat(tag, 1)
	if err != nil {
		return dms{}, err
	}
	s, err := ratToFloat(tag, 2)
	if err != nil {
		return dms{}, err
	}
	return dms{degrees: d, minutes: m, seconds: s}, nil
}

func ratToFloat(tag *tiff.Tag, i int) (float64, error) {
	r, err := tag.Rat(i)
	if err != nil {
		return 0, err
	}
	f, _ := new(big.Float).SetRat(r).Float64()
	return f, nil
}

func dmsToDecimal(v dms) float64 {
	return v.degrees + v.minutes/60 + v.seconds/3600
}

func extractDateTime(x *exif.Exif, tagName exif.FieldName) (*time.Time, error) {
	tag, err := x.Get(tagName)
	if err != nil {
		return nil, nil
	}

	raw, err := tag.StringVal()
	if err != nil {
		return nil, fmt.Errorf("invalid timestamp value for %s: %w", tagName, err)
	}

	parsed, err := parseExifTimestamp(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid timestamp format for %s: %w", tagName, err)
	}
	return &parsed, nil
}

// parseExifTimestamp parses the raw EXIF "YYYY:MM:DD HH:MM:SS" string,
// treating it as UTC since EXIF carries no offset for this field.
func parseExifTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimRight(raw, "\x00")
	return time.ParseInLocation(exifDateLayout, raw, time.UTC)
}

// CaptureTime resolves the timestamp the validators should treat as "when
// the photo was taken": DateTimeOriginal if present, else DateTime, else
// (false) when neither tag was present.
func (d *Data) CaptureTime() (time.Time, bool) {
	if d.DateTimeOriginal != nil {
		return *d.DateTimeOriginal, true
	}
	if d.DateTime != nil {
		return *d.DateTime, true
	}
	return time.Time{}, false
}
