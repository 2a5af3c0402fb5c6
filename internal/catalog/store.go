package catalog

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hashicorp/go-hclog"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"oater/internal/database"
	"oater/internal/logger"
)

// Store is the movie catalog: a normalized fact/dimension schema plus the
// load, enrichment and query operations performed against it.
type Store struct {
	db  *gorm.DB
	log hclog.Logger
}

func New(db *gorm.DB) *Store {
	return &Store{db: db, log: logger.Named("catalog")}
}

// LoadBatch upserts a batch of raw records. Each record gets its own
// all-or-nothing transaction: dimension resolution, movie upsert and
// association inserts either all land or none do. Records missing their
// natural key are rejected and the batch continues; so does any record
// whose transaction fails on an integrity violation. Re-running the same
// batch changes nothing.
func (s *Store) LoadBatch(ctx context.Context, records []Record) BatchResult {
	var res BatchResult
	for i := range records {
		rec := &records[i]
		if rec.TMDBID == 0 {
			err := &ValidationError{Reason: "missing tmdb id", Title: rec.Title}
			s.log.Warn("rejecting record", "title", rec.Title, "error", err)
			res.Rejected++
			res.Errors = append(res.Errors, err)
			continue
		}

		created, err := s.loadOne(ctx, rec)
		switch {
		case err != nil:
			cv := &ConstraintViolation{TMDBID: rec.TMDBID, Err: err}
			s.log.Error("record load failed", "tmdb_id", rec.TMDBID, "title", rec.Title, "error", err)
			res.Failed++
			res.Errors = append(res.Errors, cv)
		case created:
			res.Loaded++
		default:
			res.Skipped++
		}
	}
	return res
}

// loadOne runs one record's writes inside a transaction and reports
// whether a new movie row was created.
func (s *Store) loadOne(ctx context.Context, rec *Record) (created bool, err error) {
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		movie, e := buildMovie(rec)
		if e != nil {
			return e
		}

		if rec.Collection != nil {
			collectionID, e := upsertCollection(tx, rec.Collection)
			if e != nil {
				return e
			}
			movie.CollectionID = &collectionID
		}

		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tmdb_id"}},
			DoNothing: true,
		}).Create(movie)
		if res.Error != nil {
			return res.Error
		}
		created = res.RowsAffected > 0
		if !created {
			// Bulk load runs once; enrichment is the designated update
			// path, so an existing row keeps its fields. Associations are
			// still reconciled idempotently below.
			var existing database.Movie
			if e := tx.Select("id").Where("tmdb_id = ?", rec.TMDBID).First(&existing).Error; e != nil {
				return e
			}
			movie.ID = existing.ID
		}

		return linkDimensions(tx, movie.ID, rec)
	})
	return created, err
}

func buildMovie(rec *Record) (*database.Movie, error) {
	externalIDs := datatypes.JSON("{}")
	if rec.ExternalIDs != nil {
		raw, err := json.Marshal(rec.ExternalIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to encode external ids: %w", err)
		}
		externalIDs = datatypes.JSON(raw)
	}

	return &database.Movie{
		TMDBID:           rec.TMDBID,
		Title:            rec.Title,
		OriginalTitle:    rec.OriginalTitle,
		OriginalLanguage: rec.OriginalLanguage,
		Adult:            rec.Adult,
		Status:           rec.Status,
		Tagline:          rec.Tagline,
		Overview:         rec.Overview,
		ReleaseDate:      rec.ReleaseDate,
		Runtime:          rec.Runtime,
		Budget:           rec.Budget,
		Revenue:          rec.Revenue,
		Popularity:       rec.Popularity,
		VoteCount:        rec.VoteCount,
		VoteAverage:      rec.VoteAverage,
		PosterPath:       rec.PosterPath,
		BackdropPath:     rec.BackdropPath,
		Homepage:         rec.Homepage,
		IMDBID:           rec.IMDBID,
		ExternalIDs:      externalIDs,
		Crew:             datatypes.JSON("[]"),
		OriginCountry:    rec.OriginCountry,
	}, nil
}

// linkDimensions resolves every dimension reference to its surrogate key
// and inserts the association rows, skipping links that already exist.
func linkDimensions(tx *gorm.DB, movieID uint, rec *Record) error {
	for _, ref := range rec.Genres {
		genreID, err := upsertGenre(tx, ref.Name)
		if err != nil {
			return err
		}
		if err := insertLink(tx, &database.MovieGenre{MovieID: movieID, GenreID: genreID}); err != nil {
			return err
		}
	}

	for _, ref := range rec.Companies {
		companyID, err := upsertCompany(tx, &ref)
		if err != nil {
			return err
		}
		if err := insertLink(tx, &database.MovieProductionCompany{MovieID: movieID, CompanyID: companyID}); err != nil {
			return err
		}
	}

	for _, ref := range rec.Countries {
		if err := upsertCountry(tx, &ref); err != nil {
			return err
		}
		if err := insertLink(tx, &database.MovieProductionCountry{MovieID: movieID, CountryCode: ref.Code}); err != nil {
			return err
		}
	}

	for _, ref := range rec.Languages {
		if err := upsertLanguage(tx, &ref); err != nil {
			return err
		}
		if err := insertLink(tx, &database.MovieSpokenLanguage{MovieID: movieID, LanguageCode: ref.Code}); err != nil {
			return err
		}
	}
	return nil
}

// insertLink inserts an association row, tolerating an existing one. The
// composite primary key makes the insert idempotent.
func insertLink(tx *gorm.DB, link interface{}) error {
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(link).Error
}

// The upsert helpers implement find-or-create on the natural key as a
// conditional insert: when the insert hits the uniqueness constraint the
// existing surrogate key is looked up instead.

func upsertGenre(tx *gorm.DB, name string) (uint, error) {
	genre := database.Genre{Name: name}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoNothing: true,
	}).Create(&genre).Error
	if err != nil {
		return 0, err
	}
	if genre.ID == 0 {
		if err := tx.Where("name = ?", name).First(&genre).Error; err != nil {
			return 0, err
		}
	}
	return genre.ID, nil
}

func upsertCollection(tx *gorm.DB, ref *CollectionRef) (uint, error) {
	col := database.Collection{TMDBID: ref.TMDBID, Name: ref.Name}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tmdb_id"}},
		DoNothing: true,
	}).Create(&col).Error
	if err != nil {
		return 0, err
	}
	if col.ID == 0 {
		if err := tx.Where("tmdb_id = ?", ref.TMDBID).First(&col).Error; err != nil {
			return 0, err
		}
	}
	return col.ID, nil
}

func upsertCompany(tx *gorm.DB, ref *CompanyRef) (uint, error) {
	company := database.ProductionCompany{TMDBID: ref.TMDBID, Name: ref.Name}
	if ref.OriginCountry != "" {
		country := ref.OriginCountry
		company.OriginCountry = &country
	}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tmdb_id"}},
		DoNothing: true,
	}).Create(&company).Error
	if err != nil {
		return 0, err
	}
	if company.ID == 0 {
		if err := tx.Where("tmdb_id = ?", ref.TMDBID).First(&company).Error; err != nil {
			return 0, err
		}
	}
	return company.ID, nil
}

func upsertCountry(tx *gorm.DB, ref *CountryRef) error {
	return tx.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&database.ProductionCountry{Code: ref.Code, Name: ref.Name}).Error
}

func upsertLanguage(tx *gorm.DB, ref *LanguageRef) error {
	return tx.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&database.SpokenLanguage{Code: ref.Code, Name: ref.Name}).Error
}

// Enrich updates the crew and external-ids columns of the movie with the
// given natural key, leaving every other column untouched. It never
// creates rows: a missing movie surfaces as ErrNotFound with no write
// applied.
func (s *Store) Enrich(ctx context.Context, tmdbID int64, payload EnrichmentPayload) error {
	updates := map[string]interface{}{}
	if payload.Crew != nil {
		raw, err := json.Marshal(payload.Crew)
		if err != nil {
			return fmt.Errorf("failed to encode crew: %w", err)
		}
		updates["crew"] = datatypes.JSON(raw)
	}
	if payload.ExternalIDs != nil {
		raw, err := json.Marshal(payload.ExternalIDs)
		if err != nil {
			return fmt.Errorf("failed to encode external ids: %w", err)
		}
		updates["external_ids"] = datatypes.JSON(raw)
	}
	if len(updates) == 0 {
		return nil
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&database.Movie{}).Where("tmdb_id = ?", tmdbID).Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("enrich tmdb id %d: %w", tmdbID, ErrNotFound)
		}
		return nil
	})
}

// DeleteGenre removes a genre row. The association rows cascade away with
// it; the movies themselves stay.
func (s *Store) DeleteGenre(ctx context.Context, name string) error {
	res := s.db.WithContext(ctx).Where("name = ?", name).Delete(&database.Genre{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("genre %q: %w", name, ErrNotFound)
	}
	return nil
}

// DB exposes the underlying handle for read-only collaborators.
func (s *Store) DB() *gorm.DB {
	return s.db
}
