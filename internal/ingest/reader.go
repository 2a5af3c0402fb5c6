package ingest

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"

	"oater/internal/catalog"
	"oater/internal/logger"
)

// rawMovie mirrors one line of the TMDb JSONL dump.
type rawMovie struct {
	ID               int64          `json:"id"`
	Title            string         `json:"title"`
	OriginalTitle    string         `json:"original_title"`
	OriginalLanguage string         `json:"original_language"`
	Adult            bool           `json:"adult"`
	Status           string         `json:"status"`
	Tagline          string         `json:"tagline"`
	Overview         string         `json:"overview"`
	ReleaseDate      string         `json:"release_date"`
	Runtime          int            `json:"runtime"`
	Budget           int64          `json:"budget"`
	Revenue          int64          `json:"revenue"`
	Popularity       float64        `json:"popularity"`
	VoteCount        int64          `json:"vote_count"`
	VoteAverage      float64        `json:"vote_average"`
	PosterPath       string         `json:"poster_path"`
	BackdropPath     string         `json:"backdrop_path"`
	Homepage         string         `json:"homepage"`
	IMDBID           string         `json:"imdb_id"`
	ExternalIDs      map[string]any `json:"external_ids"`

	Genres              []rawGenre     `json:"genres"`
	ProductionCompanies []rawCompany   `json:"production_companies"`
	ProductionCountries []rawCountry   `json:"production_countries"`
	SpokenLanguages     []rawLanguage  `json:"spoken_languages"`
	BelongsToCollection *rawCollection `json:"belongs_to_collection"`
}

type rawGenre struct {
	Name string `json:"name"`
}

type rawCompany struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	OriginCountry string `json:"origin_country"`
}

type rawCountry struct {
	Code string `json:"iso_3166_1"`
	Name string `json:"name"`
}

type rawLanguage struct {
	Code        string `json:"iso_639_1"`
	Name        string `json:"name"`
	EnglishName string `json:"english_name"`
}

type rawCollection struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Options filter and bound one dataset read.
type Options struct {
	// Genre keeps only records carrying this genre name
	// (case-insensitive). Empty keeps everything.
	Genre string
	// OriginCountries keeps only records whose production countries
	// intersect this set. Empty keeps everything.
	OriginCountries []string
	// MaxRecords bounds how many dataset lines are considered.
	MaxRecords int
	// MaxKeep caps the result, keeping the records with the highest
	// (popularity, vote count).
	MaxKeep int
}

// Reader streams the bulk JSONL dump and yields filtered, ranked catalog
// records. Malformed lines are skipped with a log entry carrying the line
// number; the read continues.
type Reader struct {
	log hclog.Logger
}

func NewReader() *Reader {
	return &Reader{log: logger.Named("ingest")}
}

// Read loads, filters and ranks the dataset at path.
func (r *Reader) Read(path string, opts Options) ([]catalog.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset %s: %w", path, err)
	}
	defer f.Close()

	originSet := make(map[string]bool, len(opts.OriginCountries))
	for _, code := range opts.OriginCountries {
		originSet[strings.ToUpper(code)] = true
	}

	var records []catalog.Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)

	lineNo := 0
	for scanner.Scan() {
		if opts.MaxRecords > 0 && lineNo >= opts.MaxRecords {
			break
		}
		lineNo++

		var raw rawMovie
		if err := json.Unmarshal(scanner.Bytes(), &raw); err != nil {
			r.log.Warn("skipping malformed dataset line", "line", lineNo, "error", err)
			continue
		}
		if !matchesGenre(&raw, opts.Genre) {
			continue
		}
		if len(originSet) > 0 && !matchesOrigin(&raw, originSet) {
			continue
		}
		records = append(records, toRecord(&raw))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read dataset %s: %w", path, err)
	}

	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Popularity != records[j].Popularity {
			return records[i].Popularity > records[j].Popularity
		}
		return records[i].VoteCount > records[j].VoteCount
	})
	if opts.MaxKeep > 0 && len(records) > opts.MaxKeep {
		records = records[:opts.MaxKeep]
	}

	r.log.Info("dataset read", "lines", lineNo, "kept", len(records))
	return records, nil
}

func matchesGenre(raw *rawMovie, genre string) bool {
	if genre == "" {
		return true
	}
	for _, g := range raw.Genres {
		if strings.EqualFold(g.Name, genre) {
			return true
		}
	}
	return false
}

func matchesOrigin(raw *rawMovie, originSet map[string]bool) bool {
	for _, c := range raw.ProductionCountries {
		if originSet[strings.ToUpper(c.Code)] {
			return true
		}
	}
	return false
}

func toRecord(raw *rawMovie) catalog.Record {
	rec := catalog.Record{
		TMDBID:           raw.ID,
		Title:            raw.Title,
		OriginalTitle:    raw.OriginalTitle,
		OriginalLanguage: raw.OriginalLanguage,
		Adult:            raw.Adult,
		Status:           raw.Status,
		Tagline:          raw.Tagline,
		Overview:         raw.Overview,
		Budget:           raw.Budget,
		Revenue:          raw.Revenue,
		Popularity:       raw.Popularity,
		VoteCount:        raw.VoteCount,
		VoteAverage:      raw.VoteAverage,
		PosterPath:       raw.PosterPath,
		BackdropPath:     raw.BackdropPath,
		Homepage:         raw.Homepage,
		IMDBID:           raw.IMDBID,
		ExternalIDs:      raw.ExternalIDs,
	}

	if raw.ReleaseDate != "" {
		if t, err := time.Parse("2006-01-02", raw.ReleaseDate); err == nil {
			rec.ReleaseDate = &t
		}
	}
	if raw.Runtime > 0 {
		runtime := raw.Runtime
		rec.Runtime = &runtime
	}
	if raw.BelongsToCollection != nil && raw.BelongsToCollection.ID != 0 {
		rec.Collection = &catalog.CollectionRef{
			TMDBID: raw.BelongsToCollection.ID,
			Name:   raw.BelongsToCollection.Name,
		}
	}

	for _, g := range raw.Genres {
		if g.Name != "" {
			rec.Genres = append(rec.Genres, catalog.GenreRef{Name: g.Name})
		}
	}
	for _, c := range raw.ProductionCompanies {
		if c.ID != 0 {
			rec.Companies = append(rec.Companies, catalog.CompanyRef{
				TMDBID:        c.ID,
				Name:          c.Name,
				OriginCountry: c.OriginCountry,
			})
		}
	}
	for _, c := range raw.ProductionCountries {
		if c.Code != "" {
			rec.Countries = append(rec.Countries, catalog.CountryRef{Code: c.Code, Name: c.Name})
			// The dump's origin-country list is the production country
			// codes.
			rec.OriginCountry = append(rec.OriginCountry, c.Code)
		}
	}
	for _, l := range raw.SpokenLanguages {
		if l.Code != "" {
			name := l.EnglishName
			if name == "" {
				name = l.Name
			}
			rec.Languages = append(rec.Languages, catalog.LanguageRef{Code: l.Code, Name: name})
		}
	}
	return rec
}
