package places

// Detail is a fully enriched place record. It carries every Candidate field
// plus the detail-only fields; a degraded record has only the former.
type Detail struct {
	ID                       string        `json:"id"`
	Name                     string        `json:"name"`
	DisplayName              *DisplayName  `json:"displayName,omitempty"`
	FormattedAddress         string        `json:"formattedAddress,omitempty"`
	ShortFormattedAddress    string        `json:"shortFormattedAddress,omitempty"`
	Location                 *LatLng       `json:"location,omitempty"`
	Rating                   *float64      `json:"rating,omitempty"`
	UserRatingCount          *int          `json:"userRatingCount,omitempty"`
	WebsiteURI               string        `json:"websiteUri,omitempty"`
	InternationalPhoneNumber string        `json:"internationalPhoneNumber,omitempty"`
	NationalPhoneNumber      string        `json:"nationalPhoneNumber,omitempty"`
	RegularOpeningHours      *OpeningHours `json:"regularOpeningHours,omitempty"`
	CurrentOpeningHours      *OpeningHours `json:"currentOpeningHours,omitempty"`
	Types                    []string      `json:"types,omitempty"`
	BusinessStatus           string        `json:"businessStatus,omitempty"`
	PlusCode                 *PlusCode     `json:"plusCode,omitempty"`
	Photos                   []Photo       `json:"photos,omitempty"`
	Reviews                  []Review      `json:"reviews,omitempty"`
	GoogleMapsURI            string        `json:"googleMapsUri,omitempty"`
}

// OpeningHours describes regular or current opening hours.
type OpeningHours struct {
	OpenNow             *bool        `json:"openNow,omitempty"`
	Periods             []Period     `json:"periods,omitempty"`
	WeekdayDescriptions []string     `json:"weekdayDescriptions,omitempty"`
	SecondaryHoursType  string       `json:"secondaryHoursType,omitempty"`
	SpecialDays         []SpecialDay `json:"specialDays,omitempty"`
}

// Period is one open/close interval.
type Period struct {
	Open  Point  `json:"open"`
	Close *Point `json:"close,omitempty"`
}

// Point is a point in the week, optionally pinned to a date.
type Point struct {
	Day    int   `json:"day"`
	Hour   int   `json:"hour"`
	Minute int   `json:"minute"`
	Date   *Date `json:"date,omitempty"`
}

// Date is a calendar date.
type Date struct {
	Year  int `json:"year"`
	Month int `json:"month"`
	Day   int `json:"day"`
}

// SpecialDay marks a date with exceptional hours.
type SpecialDay struct {
	Date Date `json:"date"`
}

// PlusCode is an Open Location Code.
type PlusCode struct {
	GlobalCode   string `json:"globalCode"`
	CompoundCode string `json:"compoundCode,omitempty"`
}

// Attribution credits an author.
type Attribution struct {
	DisplayName string `json:"displayName"`
	URI         string `json:"uri"`
	PhotoURI    string `json:"photoUri,omitempty"`
}

// Photo is a photo reference.
type Photo struct {
	Name               string        `json:"name"`
	WidthPx            int           `json:"widthPx"`
	HeightPx           int           `json:"heightPx"`
	AuthorAttributions []Attribution `json:"authorAttributions,omitempty"`
}

// LocalizedText is text with its language.
type LocalizedText struct {
	Text         string `json:"text"`
	LanguageCode string `json:"languageCode"`
}

// Review is a user review summary.
type Review struct {
	Name                           string         `json:"name"`
	RelativePublishTimeDescription string         `json:"relativePublishTimeDescription"`
	Rating                         float64        `json:"rating"`
	Text                           *LocalizedText `json:"text,omitempty"`
	OriginalText                   *LocalizedText `json:"originalText,omitempty"`
	AuthorAttribution              *Attribution   `json:"authorAttribution,omitempty"`
	PublishTime                    string         `json:"publishTime"`
}

// FromCandidate builds a degraded Detail from the fields already known from
// search. Detail-only fields stay empty.
func FromCandidate(c Candidate) Detail {
	return Detail{
		ID:               c.ID,
		Name:             c.ID,
		DisplayName:      c.DisplayName,
		FormattedAddress: c.FormattedAddress,
		Location:         c.Location,
		Rating:           c.Rating,
		UserRatingCount:  c.UserRatingCount,
	}
}

// MapsURL returns the canonical map link for a place: the upstream
// googleMapsUri when known, otherwise a place_id query URL.
func MapsURL(d Detail) string {
	if d.GoogleMapsURI != "" {
		return d.GoogleMapsURI
	}
	return "https://www.google.com/maps/place/?q=place_id:" + d.ID
}
