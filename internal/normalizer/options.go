package normalizer

// Shape selects how a raw option value is turned into its payload form.
type Shape int

const (
	// ShapeScalar values are copied verbatim (numbers, booleans, strings).
	ShapeScalar Shape = iota
	// ShapeList values are unwrapped from {values:[{value:X}]} or {items:[...]}.
	ShapeList
	// ShapeURLList is a list whose entries are sent as {url: X}.
	ShapeURLList
	// ShapeJSON values hold JSON text that is parsed before submission.
	ShapeJSON
)

func (s Shape) String() string {
	switch s {
	case ShapeScalar:
		return "scalar"
	case ShapeList:
		return "list"
	case ShapeURLList:
		return "url_list"
	case ShapeJSON:
		return "json"
	}
	return "unknown"
}

type ScalarType int

const (
	TypeAny ScalarType = iota
	TypeString
	TypeNumber
	TypeBool
)

func (t ScalarType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeNumber:
		return "number"
	case TypeBool:
		return "boolean"
	}
	return "any"
}

// Option describes one input field of the Google Maps actor.
type Option struct {
	Name    string
	Section string
	Shape   Shape
	Type    ScalarType
	// Optional scalars are omitted when unset, null or "".
	Optional bool
	// Default is used for required scalars that the row leaves unset.
	Default any
	// Enum restricts non-empty string values when set.
	Enum []string
}

const (
	SectionSearch     = "search"
	SectionCategories = "categories"
	SectionFilters    = "filters"
	SectionDetails    = "details"
	SectionEnrichment = "enrichment"
	SectionReviews    = "reviews"
	SectionImages     = "images"
	SectionLocation   = "geolocation"
	SectionDirect     = "direct"
)

var (
	SearchMatchingValues = []string{"all", "only_includes", "only_exact"}
	MinimumStarsValues   = []string{"two", "twoAndHalf", "three", "threeAndHalf", "four", "fourAndHalf"}
	WebsiteValues        = []string{"allPlaces", "withWebsite", "withoutWebsite"}
	ReviewsSortValues    = []string{"newest", "mostRelevant", "highestRanking", "lowestRanking"}
	ReviewsOriginValues  = []string{"all", "google"}
	NoSearchActionValues = []string{"all_places_no_search_ocr", "all_places_no_search_mouse"}
)

var options = []Option{
	// search terms
	{Name: "searchStringsArray", Section: SectionSearch, Shape: ShapeList},
	{Name: "locationQuery", Section: SectionSearch, Type: TypeString, Optional: true},
	{Name: "maxCrawledPlacesPerSearch", Section: SectionSearch, Type: TypeNumber, Optional: true},
	{Name: "language", Section: SectionSearch, Type: TypeString, Default: "en", Enum: LanguageCodes},
	{Name: "searchMatching", Section: SectionSearch, Type: TypeString, Default: "all", Enum: SearchMatchingValues},

	{Name: "categoryFilterWords", Section: SectionCategories, Shape: ShapeList},

	{Name: "placeMinimumStars", Section: SectionFilters, Type: TypeString, Optional: true, Enum: MinimumStarsValues},
	{Name: "website", Section: SectionFilters, Type: TypeString, Default: "allPlaces", Enum: WebsiteValues},
	{Name: "skipClosedPlaces", Section: SectionFilters, Type: TypeBool, Default: false},

	{Name: "scrapePlaceDetailPage", Section: SectionDetails, Type: TypeBool, Default: false},
	{Name: "scrapeTableReservationProvider", Section: SectionDetails, Type: TypeBool, Default: false},
	{Name: "includeWebResults", Section: SectionDetails, Type: TypeBool, Default: false},
	{Name: "scrapeDirectories", Section: SectionDetails, Type: TypeBool, Default: false},
	{Name: "maxQuestions", Section: SectionDetails, Type: TypeNumber, Default: 0},

	{Name: "scrapeContacts", Section: SectionEnrichment, Type: TypeBool, Default: false},
	{Name: "scrapeSocialMediaProfiles", Section: SectionEnrichment, Shape: ShapeJSON},
	{Name: "maximumLeadsEnrichmentRecords", Section: SectionEnrichment, Type: TypeNumber, Default: 0},
	{Name: "leadsEnrichmentDepartments", Section: SectionEnrichment, Shape: ShapeList, Enum: LeadsDepartments},

	{Name: "maxReviews", Section: SectionReviews, Type: TypeNumber, Default: 0},
	{Name: "reviewsStartDate", Section: SectionReviews, Type: TypeString, Optional: true},
	{Name: "reviewsSort", Section: SectionReviews, Type: TypeString, Default: "newest", Enum: ReviewsSortValues},
	{Name: "reviewsFilterString", Section: SectionReviews, Type: TypeString, Optional: true},
	{Name: "reviewsOrigin", Section: SectionReviews, Type: TypeString, Default: "all", Enum: ReviewsOriginValues},
	{Name: "scrapeReviewsPersonalData", Section: SectionReviews, Type: TypeBool, Default: true},

	{Name: "maxImages", Section: SectionImages, Type: TypeNumber, Default: 0},
	{Name: "scrapeImageAuthors", Section: SectionImages, Type: TypeBool, Default: false},

	{Name: "countryCode", Section: SectionLocation, Type: TypeString, Optional: true, Enum: CountryCodes},
	{Name: "city", Section: SectionLocation, Type: TypeString, Optional: true},
	{Name: "state", Section: SectionLocation, Type: TypeString, Optional: true},
	{Name: "county", Section: SectionLocation, Type: TypeString, Optional: true},
	{Name: "postalCode", Section: SectionLocation, Type: TypeString, Optional: true},
	{Name: "customGeolocation", Section: SectionLocation, Shape: ShapeJSON},

	{Name: "startUrls", Section: SectionDirect, Shape: ShapeURLList},
	{Name: "placeIds", Section: SectionDirect, Shape: ShapeList},
	{Name: "allPlacesNoSearchAction", Section: SectionDirect, Type: TypeString, Optional: true, Enum: NoSearchActionValues},
}

// Options returns the option table in display order.
func Options() []Option {
	out := make([]Option, len(options))
	copy(out, options)
	return out
}

// Lookup returns the option with the given name.
func Lookup(name string) (Option, bool) {
	for _, o := range options {
		if o.Name == name {
			return o, true
		}
	}
	return Option{}, false
}
