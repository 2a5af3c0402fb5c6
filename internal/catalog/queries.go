package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"oater/internal/database"
)

// Read-side query surface. Range and sort queries ride the ordered
// indexes; the crew, external-ids and origin-country predicates use jsonb
// / array containment (GIN-indexed); company search uses pg_trgm
// similarity. Containment and similarity queries are Postgres-only.

// companySimilarityThreshold is the minimum pg_trgm similarity for a
// company-name match. 0.3 is the pg_trgm default.
const companySimilarityThreshold = 0.3

// DecadeCount is one row of MoviesPerDecade.
type DecadeCount struct {
	Decade int   `json:"decade"`
	Total  int64 `json:"total"`
}

// GenreCount is one row of GenreCounts.
type GenreCount struct {
	Name  string `json:"name"`
	Total int64  `json:"total"`
}

// GenreRuntime is one row of AvgRuntimeByGenre.
type GenreRuntime struct {
	Name           string  `json:"name"`
	AverageRuntime float64 `json:"average_runtime"`
}

// DirectorCount is one row of ProlificDirectors.
type DirectorCount struct {
	Name  string `json:"name"`
	Total int64  `json:"total"`
}

// MovieDirector pairs a movie title with the name of its first credited
// director, as extracted from the crew document.
type MovieDirector struct {
	Title    string `json:"title"`
	Runtime  *int   `json:"runtime,omitempty"`
	Director string `json:"director"`
}

// EnrichmentTarget pairs a movie's surrogate key with its natural key.
type EnrichmentTarget struct {
	MovieID uint  `json:"movie_id"`
	TMDBID  int64 `json:"tmdb_id"`
}

// GenreMovieRow carries the fields the reporting stage aggregates over.
type GenreMovieRow struct {
	Title       string     `json:"title"`
	Runtime     *int       `json:"runtime"`
	ReleaseDate *time.Time `json:"release_date"`
	Overview    string     `json:"overview"`
	Popularity  float64    `json:"popularity"`
}

// OriginOverview pairs an overview text with its single origin country.
type OriginOverview struct {
	Country  string `json:"country"`
	Overview string `json:"overview"`
}

// ReleasedSince returns movies released after the given date, newest
// first.
func (s *Store) ReleasedSince(ctx context.Context, since time.Time, limit int) ([]database.Movie, error) {
	var movies []database.Movie
	err := s.db.WithContext(ctx).
		Where("release_date > ?", since).
		Order("release_date DESC").
		Limit(limit).
		Find(&movies).Error
	return movies, err
}

// TopByPopularity returns the most popular movies.
func (s *Store) TopByPopularity(ctx context.Context, limit int) ([]database.Movie, error) {
	var movies []database.Movie
	err := s.db.WithContext(ctx).
		Order("popularity DESC").
		Limit(limit).
		Find(&movies).Error
	return movies, err
}

// TopRated returns movies above a vote-average and budget floor, best
// rated first.
func (s *Store) TopRated(ctx context.Context, minVote float64, minBudget int64, limit int) ([]database.Movie, error) {
	var movies []database.Movie
	err := s.db.WithContext(ctx).
		Where("vote_average > ? AND budget > ?", minVote, minBudget).
		Order("vote_average DESC, budget DESC").
		Limit(limit).
		Find(&movies).Error
	return movies, err
}

// LongestInGenre returns the longest movies carrying the given genre.
func (s *Store) LongestInGenre(ctx context.Context, genre string, limit int) ([]database.Movie, error) {
	var movies []database.Movie
	err := s.db.WithContext(ctx).
		Select("movies.*").
		Joins("JOIN movie_genres mg ON mg.movie_id = movies.id").
		Joins("JOIN genres g ON g.id = mg.genre_id").
		Where("g.name = ? AND movies.runtime IS NOT NULL", genre).
		Order("movies.runtime DESC").
		Limit(limit).
		Find(&movies).Error
	return movies, err
}

// LongerThanAverage returns movies whose runtime exceeds the catalog
// average.
func (s *Store) LongerThanAverage(ctx context.Context, limit int) ([]database.Movie, error) {
	var movies []database.Movie
	err := s.db.WithContext(ctx).
		Where("runtime > (SELECT AVG(runtime) FROM movies WHERE runtime IS NOT NULL)").
		Order("runtime DESC").
		Limit(limit).
		Find(&movies).Error
	return movies, err
}

// MoviesPerDecade counts movies per release decade. Year extraction has
// no portable spelling, so the expression follows the dialect.
func (s *Store) MoviesPerDecade(ctx context.Context) ([]DecadeCount, error) {
	yearExpr := "CAST(EXTRACT(YEAR FROM release_date) AS int)"
	if s.db.Dialector.Name() == "sqlite" {
		yearExpr = "CAST(strftime('%Y', release_date) AS int)"
	}
	var rows []DecadeCount
	err := s.db.WithContext(ctx).Raw(fmt.Sprintf(`
		SELECT (%s / 10) * 10 AS decade,
		       COUNT(*) AS total
		  FROM movies
		 WHERE release_date IS NOT NULL
		 GROUP BY decade
		 ORDER BY decade`, yearExpr)).Scan(&rows).Error
	return rows, err
}

// GenreCounts counts movies per genre, keeping genres with more than
// minCount movies.
func (s *Store) GenreCounts(ctx context.Context, minCount int) ([]GenreCount, error) {
	var rows []GenreCount
	err := s.db.WithContext(ctx).Raw(`
		SELECT g.name AS name, COUNT(m.id) AS total
		  FROM genres g
		  JOIN movie_genres mg ON mg.genre_id = g.id
		  JOIN movies m ON m.id = mg.movie_id
		 GROUP BY g.name
		HAVING COUNT(m.id) > ?
		 ORDER BY total DESC`, minCount).Scan(&rows).Error
	return rows, err
}

// AvgRuntimeByGenre averages runtimes per genre for movies released on or
// after the given date.
func (s *Store) AvgRuntimeByGenre(ctx context.Context, since time.Time, limit int) ([]GenreRuntime, error) {
	var rows []GenreRuntime
	err := s.db.WithContext(ctx).Raw(`
		SELECT g.name AS name, AVG(m.runtime) AS average_runtime
		  FROM genres g
		  JOIN movie_genres mg ON mg.genre_id = g.id
		  JOIN movies m ON m.id = mg.movie_id
		 WHERE m.release_date >= ? AND m.runtime IS NOT NULL
		 GROUP BY g.name
		 ORDER BY average_runtime DESC
		 LIMIT ?`, since, limit).Scan(&rows).Error
	return rows, err
}

// DirectedBy returns movies in a genre whose crew document contains a
// director with the given name, newest first.
func (s *Store) DirectedBy(ctx context.Context, director, genre string, limit int) ([]database.Movie, error) {
	probe, err := crewProbe(director)
	if err != nil {
		return nil, err
	}
	var movies []database.Movie
	err = s.db.WithContext(ctx).
		Select("movies.*").
		Joins("JOIN movie_genres mg ON mg.movie_id = movies.id").
		Joins("JOIN genres g ON g.id = mg.genre_id").
		Where("g.name = ? AND movies.crew @> ?", genre, probe).
		Order("movies.release_date DESC").
		Limit(limit).
		Find(&movies).Error
	return movies, err
}

// LongMoviesWithDirectors returns movies running longer than minRuntime
// along with the first credited director's name. Only movies whose crew
// document contains a director entry qualify.
func (s *Store) LongMoviesWithDirectors(ctx context.Context, minRuntime, limit int) ([]MovieDirector, error) {
	probe, err := crewProbe("")
	if err != nil {
		return nil, err
	}
	var rows []MovieDirector
	err = s.db.WithContext(ctx).Raw(`
		SELECT title, runtime, crew->0->>'name' AS director
		  FROM movies
		 WHERE runtime > ? AND crew @> ?
		 LIMIT ?`, minRuntime, probe, limit).Scan(&rows).Error
	return rows, err
}

// GenreMoviesWithDirectors returns movies of a genre along with the first
// credited director's name.
func (s *Store) GenreMoviesWithDirectors(ctx context.Context, genre string, limit int) ([]MovieDirector, error) {
	probe, err := crewProbe("")
	if err != nil {
		return nil, err
	}
	var rows []MovieDirector
	err = s.db.WithContext(ctx).Raw(`
		SELECT m.title, m.crew->0->>'name' AS director
		  FROM movies m
		  JOIN movie_genres mg ON mg.movie_id = m.id
		  JOIN genres g ON g.id = mg.genre_id
		 WHERE g.name = ? AND m.crew @> ?
		 LIMIT ?`, genre, probe, limit).Scan(&rows).Error
	return rows, err
}

// ProlificDirectors lists directors credited on more than minCount movies
// of a genre.
func (s *Store) ProlificDirectors(ctx context.Context, genre string, minCount, limit int) ([]DirectorCount, error) {
	probe, err := crewProbe("")
	if err != nil {
		return nil, err
	}
	var rows []DirectorCount
	err = s.db.WithContext(ctx).Raw(`
		SELECT name, COUNT(*) AS total FROM (
			SELECT jsonb_array_elements(m.crew)->>'name' AS name
			  FROM movies m
			  JOIN movie_genres mg ON mg.movie_id = m.id
			  JOIN genres g ON g.id = mg.genre_id
			 WHERE g.name = ? AND m.crew @> ?
		) AS directors
		 WHERE name IS NOT NULL
		 GROUP BY name
		HAVING COUNT(*) > ?
		 ORDER BY total DESC
		 LIMIT ?`, genre, probe, minCount, limit).Scan(&rows).Error
	return rows, err
}

// crewProbe builds the jsonb containment probe for a director entry. An
// empty name matches any director.
func crewProbe(director string) (string, error) {
	entry := map[string]string{"role": "director"}
	if director != "" {
		entry["name"] = director
	}
	raw, err := json.Marshal([]map[string]string{entry})
	if err != nil {
		return "", fmt.Errorf("failed to encode crew probe: %w", err)
	}
	return string(raw), nil
}

// WithExternalID returns movies whose external-ids document contains the
// given key/value pair.
func (s *Store) WithExternalID(ctx context.Context, key, value string) ([]database.Movie, error) {
	probe, err := json.Marshal(map[string]string{key: value})
	if err != nil {
		return nil, fmt.Errorf("failed to encode external id probe: %w", err)
	}
	var movies []database.Movie
	err = s.db.WithContext(ctx).
		Where("external_ids @> ?", string(probe)).
		Find(&movies).Error
	return movies, err
}

// FromOriginCountry returns movies whose origin-country list contains the
// given code.
func (s *Store) FromOriginCountry(ctx context.Context, code string, limit int) ([]database.Movie, error) {
	var movies []database.Movie
	err := s.db.WithContext(ctx).
		Where("origin_country @> ARRAY[?]::text[]", code).
		Limit(limit).
		Find(&movies).Error
	return movies, err
}

// SearchCompanies fuzzy-matches production companies by name using
// trigram similarity, best match first. Casing and whitespace variants of
// the same name all land above the threshold.
func (s *Store) SearchCompanies(ctx context.Context, name string, limit int) ([]database.ProductionCompany, error) {
	var companies []database.ProductionCompany
	err := s.db.WithContext(ctx).Raw(`
		SELECT * FROM production_companies
		 WHERE similarity(name, ?) > ?
		 ORDER BY similarity(name, ?) DESC
		 LIMIT ?`, name, companySimilarityThreshold, name, limit).Scan(&companies).Error
	return companies, err
}

// GenreByName looks a genre up by its exact name.
func (s *Store) GenreByName(ctx context.Context, name string) (*database.Genre, error) {
	var genre database.Genre
	err := s.db.WithContext(ctx).Where("name = ?", name).First(&genre).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("genre %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &genre, nil
}

// GenresWithPrefix returns genres whose name starts with the prefix.
func (s *Store) GenresWithPrefix(ctx context.Context, prefix string) ([]database.Genre, error) {
	var genres []database.Genre
	err := s.db.WithContext(ctx).
		Where("name LIKE ?", prefix+"%").
		Order("name").
		Find(&genres).Error
	return genres, err
}

// EnrichmentTargets returns the (surrogate key, natural key) pairs of all
// movies in a genre, the working set of the enrichment stage.
func (s *Store) EnrichmentTargets(ctx context.Context, genre string) ([]EnrichmentTarget, error) {
	var targets []EnrichmentTarget
	err := s.db.WithContext(ctx).Raw(`
		SELECT m.id AS movie_id, m.tmdb_id AS tmdb_id
		  FROM movies m
		  JOIN movie_genres mg ON mg.movie_id = m.id
		  JOIN genres g ON g.id = mg.genre_id
		 WHERE g.name = ?
		 ORDER BY m.id`, genre).Scan(&targets).Error
	return targets, err
}

// GenreMovies returns the reporting rows for a genre: every dated movie
// with the fields the analysis aggregates over.
func (s *Store) GenreMovies(ctx context.Context, genre string) ([]GenreMovieRow, error) {
	var rows []GenreMovieRow
	err := s.db.WithContext(ctx).Raw(`
		SELECT m.title, m.runtime, m.release_date, m.overview, m.popularity
		  FROM movies m
		  JOIN movie_genres mg ON mg.movie_id = m.id
		  JOIN genres g ON g.id = mg.genre_id
		 WHERE g.name = ? AND m.release_date IS NOT NULL`, genre).Scan(&rows).Error
	return rows, err
}

// OverviewsByOrigin returns overview texts of movies with exactly one
// origin country, for each of the given codes.
func (s *Store) OverviewsByOrigin(ctx context.Context, codes []string) ([]OriginOverview, error) {
	var rows []OriginOverview
	err := s.db.WithContext(ctx).Raw(`
		SELECT origin_country[1] AS country, overview
		  FROM movies
		 WHERE overview IS NOT NULL AND overview <> ''
		   AND array_length(origin_country, 1) = 1
		   AND origin_country[1] IN ?`, codes).Scan(&rows).Error
	return rows, err
}
