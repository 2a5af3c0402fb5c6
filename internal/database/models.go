package database

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"
)

// Movie is the fact table: one row per distinct TMDb catalog id. The crew
// and external-ids documents stay semi-structured (jsonb) — their shape
// varies per record and they are only filtered on, never joined against.
// Origin country codes are kept as a text[] for containment queries.
type Movie struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	TMDBID           int64          `gorm:"column:tmdb_id;uniqueIndex;not null" json:"tmdb_id"`
	Title            string         `json:"title"`
	OriginalTitle    string         `json:"original_title"`
	OriginalLanguage string         `gorm:"type:varchar(10)" json:"original_language"`
	Adult            bool           `json:"adult"`
	Status           string         `json:"status"`
	Tagline          string         `gorm:"type:text" json:"tagline"`
	Overview         string         `gorm:"type:text" json:"overview"`
	ReleaseDate      *time.Time     `gorm:"type:date;index:idx_movies_release_date" json:"release_date,omitempty"`
	Runtime          *int           `json:"runtime,omitempty"`
	Budget           int64          `json:"budget"`
	Revenue          int64          `json:"revenue"`
	Popularity       float64        `json:"popularity"`
	VoteCount        int64          `json:"vote_count"`
	VoteAverage      float64        `json:"vote_average"`
	PosterPath       string         `json:"poster_path"`
	BackdropPath     string         `json:"backdrop_path"`
	Homepage         string         `json:"homepage"`
	IMDBID           string         `gorm:"column:imdb_id" json:"imdb_id"`
	ExternalIDs      datatypes.JSON `gorm:"column:external_ids;type:jsonb;default:'{}'" json:"external_ids"`
	Crew             datatypes.JSON `gorm:"type:jsonb;default:'[]'" json:"crew"`
	OriginCountry    pq.StringArray `gorm:"type:text[]" json:"origin_country"`

	// A movie stays meaningful without its franchise grouping, so the
	// reference nulls out when the collection goes away.
	CollectionID *uint       `json:"collection_id,omitempty"`
	Collection   *Collection `gorm:"foreignKey:CollectionID;constraint:OnDelete:SET NULL" json:"collection,omitempty"`
}

// Collection is a named franchise grouping of movies.
type Collection struct {
	ID     uint   `gorm:"primaryKey" json:"id"`
	TMDBID int64  `gorm:"column:tmdb_id;uniqueIndex;not null" json:"tmdb_id"`
	Name   string `gorm:"not null" json:"name"`
}

// Genre is a dimension row keyed by its name.
type Genre struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"uniqueIndex;not null" json:"name"`
}

// ProductionCompany is a dimension row keyed by its TMDb id. The name
// carries a trigram index on Postgres for fuzzy search.
type ProductionCompany struct {
	ID            uint    `gorm:"primaryKey" json:"id"`
	TMDBID        int64   `gorm:"column:tmdb_id;uniqueIndex;not null" json:"tmdb_id"`
	Name          string  `gorm:"not null" json:"name"`
	OriginCountry *string `gorm:"type:varchar(2)" json:"origin_country,omitempty"`
}

// ProductionCountry uses its ISO 3166-1 code as the primary key.
type ProductionCountry struct {
	Code string `gorm:"column:iso_3166_1;type:varchar(2);primaryKey" json:"iso_3166_1"`
	Name string `gorm:"not null" json:"name"`
}

// SpokenLanguage uses its ISO 639-1 code as the primary key.
type SpokenLanguage struct {
	Code string `gorm:"column:iso_639_1;type:varchar(2);primaryKey" json:"iso_639_1"`
	Name string `gorm:"not null" json:"name"`
}

// Association tables carry composite primary keys of both foreign keys and
// cascade away with either side.

type MovieGenre struct {
	MovieID uint  `gorm:"primaryKey" json:"movie_id"`
	GenreID uint  `gorm:"primaryKey" json:"genre_id"`
	Movie   Movie `gorm:"foreignKey:MovieID;constraint:OnDelete:CASCADE" json:"-"`
	Genre   Genre `gorm:"foreignKey:GenreID;constraint:OnDelete:CASCADE" json:"-"`
}

type MovieProductionCompany struct {
	MovieID   uint              `gorm:"primaryKey" json:"movie_id"`
	CompanyID uint              `gorm:"primaryKey" json:"company_id"`
	Movie     Movie             `gorm:"foreignKey:MovieID;constraint:OnDelete:CASCADE" json:"-"`
	Company   ProductionCompany `gorm:"foreignKey:CompanyID;constraint:OnDelete:CASCADE" json:"-"`
}

type MovieProductionCountry struct {
	MovieID     uint              `gorm:"primaryKey" json:"movie_id"`
	CountryCode string            `gorm:"type:varchar(2);primaryKey" json:"country_code"`
	Movie       Movie             `gorm:"foreignKey:MovieID;constraint:OnDelete:CASCADE" json:"-"`
	Country     ProductionCountry `gorm:"foreignKey:CountryCode;references:Code;constraint:OnDelete:CASCADE" json:"-"`
}

type MovieSpokenLanguage struct {
	MovieID      uint           `gorm:"primaryKey" json:"movie_id"`
	LanguageCode string         `gorm:"type:varchar(2);primaryKey" json:"language_code"`
	Movie        Movie          `gorm:"foreignKey:MovieID;constraint:OnDelete:CASCADE" json:"-"`
	Language     SpokenLanguage `gorm:"foreignKey:LanguageCode;references:Code;constraint:OnDelete:CASCADE" json:"-"`
}
