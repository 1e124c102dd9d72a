// Package places defines the place records exchanged with the Places API:
// search candidates, full detail records, and location bias.
package places

import "fmt"

// BiasRadiusMeters is the fixed radius of the location bias circle.
const BiasRadiusMeters = 50000.0

// LatLng is a geographic coordinate.
type LatLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// DisplayName is a localized place name.
type DisplayName struct {
	Text         string `json:"text"`
	LanguageCode string `json:"languageCode,omitempty"`
}

// Candidate is the minimal place record returned by a search page.
type Candidate struct {
	ID               string       `json:"id"`
	DisplayName      *DisplayName `json:"displayName,omitempty"`
	FormattedAddress string       `json:"formattedAddress,omitempty"`
	Location         *LatLng      `json:"location,omitempty"`
	Rating           *float64     `json:"rating,omitempty"`
	UserRatingCount  *int         `json:"userRatingCount,omitempty"`
}

// Name returns the display text, or the ID when the place has no display name.
func (c Candidate) Name() string {
	if c.DisplayName != nil && c.DisplayName.Text != "" {
		return c.DisplayName.Text
	}
	return c.ID
}

// RatedBelow reports whether the candidate has a rating strictly below threshold.
// Candidates without a rating never qualify.
func (c Candidate) RatedBelow(threshold float64) bool {
	return c.Rating != nil && *c.Rating < threshold
}

// SearchPage is one page of text search results.
type SearchPage struct {
	Places []Candidate `json:"places"`

	// NextPageToken is empty on the last page.
	NextPageToken string `json:"nextPageToken,omitempty"`
}

// HasMore reports whether a continuation page exists.
func (p *SearchPage) HasMore() bool {
	return p != nil && p.NextPageToken != ""
}

// LocationBias steers a text search towards a location. Exactly one of Text
// or LatLng is set.
type LocationBias struct {
	Text   string
	LatLng *LatLng
}

// TextBias returns a bias centered on a free-text address.
func TextBias(text string) *LocationBias {
	return &LocationBias{Text: text}
}

// CoordinateBias returns a bias centered on a coordinate.
func CoordinateBias(lat, lng float64) *LocationBias {
	return &LocationBias{LatLng: &LatLng{Latitude: lat, Longitude: lng}}
}

// String implements fmt.Stringer for log fields.
func (b *LocationBias) String() string {
	switch {
	case b == nil:
		return ""
	case b.LatLng != nil:
		return fmt.Sprintf("%.6f,%.6f", b.LatLng.Latitude, b.LatLng.Longitude)
	default:
		return b.Text
	}
}
