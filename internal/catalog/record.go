package catalog

import "time"

// Record is one raw movie record as yielded by the bulk dataset reader.
// TMDBID is the natural key; a record without one is rejected.
type Record struct {
	TMDBID           int64
	Title            string
	OriginalTitle    string
	OriginalLanguage string
	Adult            bool
	Status           string
	Tagline          string
	Overview         string
	ReleaseDate      *time.Time
	Runtime          *int
	Budget           int64
	Revenue          int64
	Popularity       float64
	VoteCount        int64
	VoteAverage      float64
	PosterPath       string
	BackdropPath     string
	Homepage         string
	IMDBID           string
	ExternalIDs      map[string]any
	OriginCountry    []string

	Collection *CollectionRef
	Genres     []GenreRef
	Companies  []CompanyRef
	Countries  []CountryRef
	Languages  []LanguageRef
}

// Dimension references carried by a raw record. Each identifies its
// dimension row by natural key; names are used only when the row has to
// be created.

type GenreRef struct {
	Name string
}

type CollectionRef struct {
	TMDBID int64
	Name   string
}

type CompanyRef struct {
	TMDBID        int64
	Name          string
	OriginCountry string
}

type CountryRef struct {
	Code string
	Name string
}

type LanguageRef struct {
	Code string
	Name string
}

// CrewMember is one entry of the semi-structured crew document.
type CrewMember struct {
	Role string `json:"role"`
	Name string `json:"name"`
}

// EnrichmentPayload carries the only two columns the enrichment step may
// touch. A nil field leaves its column untouched.
type EnrichmentPayload struct {
	Crew        []CrewMember
	ExternalIDs map[string]any
}

// BatchResult summarizes one LoadBatch run.
type BatchResult struct {
	Loaded   int // movie rows created
	Skipped  int // natural key already present, record left as-is
	Rejected int // missing natural key
	Failed   int // integrity failure, transaction rolled back
	Errors   []error
}
