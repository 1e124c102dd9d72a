package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Sternrassler/places-scout/pkg/places"
)

// Request defaults and bounds.
const (
	DefaultLimit     = 30
	MaxLimit         = 100
	DefaultThreshold = 3.0
	MaxThreshold     = 5.0
)

// ErrValidation matches every *ValidationError.
var ErrValidation = errors.New("validation error")

// LatLng is a request coordinate.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Request is an inbound search request. Limit and Threshold are pointers so
// an absent value can take its default while an explicit zero is kept.
type Request struct {
	Keywords     []string `json:"keywords"`
	LocationText string   `json:"locationText,omitempty"`
	LatLng       *LatLng  `json:"latLng,omitempty"`
	Limit        *int     `json:"limit,omitempty"`
	Threshold    *float64 `json:"threshold,omitempty"`
}

// FieldError is one rejected request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every problem found in a request.
type ValidationError struct {
	Fields []FieldError
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Field + ": " + f.Message
	}
	return fmt.Sprintf("%s: %s", ErrValidation, strings.Join(msgs, "; "))
}

// Is makes errors.Is(err, ErrValidation) hold.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func (e *ValidationError) add(field, format string, args ...any) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// Validate checks r and returns a *ValidationError listing every problem,
// or nil. Whitespace-only keywords are rejected; a null limit or threshold
// means the default.
func (r *Request) Validate() error {
	verr := &ValidationError{}

	if len(r.Keywords) == 0 {
		verr.add("keywords", "at least one keyword required")
	}
	for i, k := range r.Keywords {
		if strings.TrimSpace(k) == "" {
			verr.add(fmt.Sprintf("keywords[%d]", i), "keyword must not be empty")
		}
	}

	if r.LatLng != nil {
		if r.LatLng.Lat < -90 || r.LatLng.Lat > 90 {
			verr.add("latLng.lat", "must be between -90 and 90, got %v", r.LatLng.Lat)
		}
		if r.LatLng.Lng < -180 || r.LatLng.Lng > 180 {
			verr.add("latLng.lng", "must be between -180 and 180, got %v", r.LatLng.Lng)
		}
	}

	if r.Limit != nil && (*r.Limit < 1 || *r.Limit > MaxLimit) {
		verr.add("limit", "must be between 1 and %d, got %d", MaxLimit, *r.Limit)
	}

	if r.Threshold != nil && (*r.Threshold < 0 || *r.Threshold > MaxThreshold) {
		verr.add("threshold", "must be between 0 and %v, got %v", MaxThreshold, *r.Threshold)
	}

	if len(verr.Fields) > 0 {
		return verr
	}
	return nil
}

// EffectiveLimit returns the requested limit or DefaultLimit.
func (r *Request) EffectiveLimit() int {
	if r.Limit == nil {
		return DefaultLimit
	}
	return *r.Limit
}

// EffectiveThreshold returns the requested threshold or DefaultThreshold.
func (r *Request) EffectiveThreshold() float64 {
	if r.Threshold == nil {
		return DefaultThreshold
	}
	return *r.Threshold
}

// Bias returns the location bias of the request. A coordinate wins over
// free text; nil when neither is set.
func (r *Request) Bias() *places.LocationBias {
	switch {
	case r.LatLng != nil:
		return places.CoordinateBias(r.LatLng.Lat, r.LatLng.Lng)
	case strings.TrimSpace(r.LocationText) != "":
		return places.TextBias(strings.TrimSpace(r.LocationText))
	default:
		return nil
	}
}
