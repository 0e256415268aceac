// Package processor resolves one job's image path and fans the content and
// metadata checks out concurrently, joining them into a single verdict. It
// is the component the pipeline worker calls once per dequeued job.
package processor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/outblock/imagevalidator/internal/exifdata"
	"github.com/outblock/imagevalidator/internal/geo"
	"github.com/outblock/imagevalidator/internal/llmclient"
	"github.com/outblock/imagevalidator/internal/validation"
)

// imageBaseDirAlias is the explicit alias a request may use for the
// configured base directory, per spec §4.3.
const imageBaseDirAlias = "$image_base_dir/"

// Resolution mirrors ValidationResults.resolution.
type Resolution string

const (
	Accepted Resolution = "accepted"
	Rejected Resolution = "rejected"
)

// Result is the outcome recorded against a COMPLETED job.
type Result struct {
	Resolution Resolution
	Reasons    []string
}

// Request is one job's resolved inputs: the raw image reference and its
// normalized constraints.
type Request struct {
	ImageRef     string
	ContentCheck string
	Location     *validation.LocationConstraint
	Time         *validation.TimeConstraint
}

// Processor ties together the VLM client and the EXIF reader.
type Processor struct {
	ImageBaseDir string
	VLM          llmclient.Client
	EXIF         exifdata.Reader
}

// New builds a Processor.
func New(imageBaseDir string, vlm llmclient.Client, exif exifdata.Reader) *Processor {
	return &Processor{ImageBaseDir: imageBaseDir, VLM: vlm, EXIF: exif}
}

// Process runs the content and metadata checks for req and returns the
// aggregated result. A non-nil error means the surrounding deadline fired
// (ctx was cancelled); any other failure is folded into a rejected Result
// instead, per spec §4.3 point 4.
func (p *Processor) Process(ctx context.Context, req Request) (*Result, error) {
	path := p.resolveImagePath(req.ImageRef)

	if _, err := os.Stat(path); err != nil {
		return &Result{Resolution: Rejected, Reasons: []string{"cannot locate image"}}, nil
	}

	var wg sync.WaitGroup
	wg.Add(2)

	var contentOK bool
	var contentErr error

	var locationOK, timeOK bool
	var locationReason, timeReason string
	var metaErr error

	go func() {
		defer wg.Done()
		contentOK, contentErr = p.runContentCheck(ctx, path, req.ContentCheck)
	}()

	go func() {
		defer wg.Done()
		locationOK, locationReason, timeOK, timeReason, metaErr = p.runMetadataCheck(path, req.Location, req.Time)
	}()

	wg.Wait()

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var reasons []string
	if contentErr != nil {
		reasons = append(reasons, fmt.Sprintf("validation error: %s", contentErr))
	} else if !contentOK {
		reasons = append(reasons, "image content does not match the requested description")
	}

	if metaErr != nil {
		reasons = append(reasons, fmt.Sprintf("validation error: %s", metaErr))
	} else {
		if !locationOK && locationReason != "" {
			reasons = append(reasons, locationReason)
		}
		if !timeOK && timeReason != "" {
			reasons = append(reasons, timeReason)
		}
	}

	if len(reasons) > 0 {
		return &Result{Resolution: Rejected, Reasons: reasons}, nil
	}
	return &Result{Resolution: Accepted}, nil
}

func (p *Processor) resolveImagePath(ref string) string {
	switch {
	case strings.HasPrefix(ref, "/"):
		return ref
	case strings.HasPrefix(ref, imageBaseDirAlias):
		return filepath.Join(p.ImageBaseDir, strings.TrimPrefix(ref, imageBaseDirAlias))
	default:
		return filepath.Join(p.ImageBaseDir, ref)
	}
}

func (p *Processor) runContentCheck(ctx context.Context, path, description string) (bool, error) {
	accepted, _, err := p.VLM.ValidateContent(ctx, path, description)
	if err != nil {
		return false, err
	}
	return accepted, nil
}

// runMetadataCheck reads EXIF once and applies the location and time checks
// against it, returning a pass/fail plus a human reason for each.
func (p *Processor) runMetadataCheck(path string, loc *validation.LocationConstraint, tc *validation.TimeConstraint) (locationOK bool, locationReason string, timeOK bool, timeReason string, err error) {
	if loc == nil {
		locationOK = true
	}
	if tc == nil {
		timeOK = true
	}
	if loc == nil && tc == nil {
		return
	}

	data, exifErr := p.EXIF.Extract(path)
	if exifErr != nil {
		return false, "", false, "", fmt.Errorf("reading image metadata: %w", exifErr)
	}

	if loc != nil {
		locationOK, locationReason = checkLocation(data.Coordinate, loc)
	}
	if tc != nil {
		timeOK, timeReason = checkTime(data, tc)
	}
	return
}

func checkLocation(observed *geo.Coordinate, constraint *validation.LocationConstraint) (bool, string) {
	if observed == nil {
		return false, "image has no GPS coordinates"
	}

	ok, distance, err := geo.WithinDistance(*observed, constraint.Expected, constraint.MaxDistanceMeters)
	if err != nil {
		return false, fmt.Sprintf("image GPS coordinates %s are invalid: %s", geo.CoordString(*observed), err)
	}
	if ok {
		return true, ""
	}
	return false, fmt.Sprintf(
		"image location %s is %s from expected location %s, exceeding %s limit",
		geo.CoordString(*observed), geo.FormatDistance(distance), geo.CoordString(constraint.Expected), geo.FormatDistance(constraint.MaxDistanceMeters),
	)
}

func checkTime(data *exifdata.Data, constraint *validation.TimeConstraint) (bool, string) {
	observed, ok := data.CaptureTime()
	if !ok {
		return false, "image has no capture timestamp"
	}

	if !observed.Before(constraint.Start) && !observed.After(constraint.End) {
		return true, ""
	}
	return false, fmt.Sprintf(
		"image timestamp %s is outside expected window [%s, %s]",
		observed.Format("2006-01-02T15:04:05Z07:00"),
		constraint.Start.Format("2006-01-02T15:04:05Z07:00"),
		constraint.End.Format("2006-01-02T15:04:05Z07:00"),
	)
}
