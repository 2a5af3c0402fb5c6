package catalog

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"oater/internal/database"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.Exec("PRAGMA foreign_keys = ON").Error)
	require.NoError(t, database.Migrate(db))
	return New(db)
}

func rioBravo() Record {
	release := time.Date(1959, 3, 18, 0, 0, 0, 0, time.UTC)
	runtime := 141
	return Record{
		TMDBID:        42,
		Title:         "Rio Bravo",
		OriginalTitle: "Rio Bravo",
		ReleaseDate:   &release,
		Runtime:       &runtime,
		Popularity:    23.5,
		VoteCount:     1200,
		VoteAverage:   7.9,
		OriginCountry: []string{"US"},
		Genres:        []GenreRef{{Name: "Western"}},
		Companies:     []CompanyRef{{TMDBID: 7, Name: "Warner Bros.", OriginCountry: "US"}},
		Countries:     []CountryRef{{Code: "US", Name: "United States of America"}},
		Languages:     []LanguageRef{{Code: "en", Name: "English"}},
	}
}

func countRows(t *testing.T, db *gorm.DB, model interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(model).Count(&n).Error)
	return n
}

func TestLoadBatchCreatesRowsAndLinks(t *testing.T) {
	store := newTestStore(t)

	res := store.LoadBatch(context.Background(), []Record{rioBravo()})
	assert.Equal(t, 1, res.Loaded)
	assert.Equal(t, 0, res.Skipped)
	assert.Equal(t, 0, res.Rejected)
	assert.Equal(t, 0, res.Failed)

	db := store.DB()
	assert.EqualValues(t, 1, countRows(t, db, &database.Movie{}))
	assert.EqualValues(t, 1, countRows(t, db, &database.Genre{}))
	assert.EqualValues(t, 1, countRows(t, db, &database.ProductionCompany{}))
	assert.EqualValues(t, 1, countRows(t, db, &database.MovieGenre{}))
	assert.EqualValues(t, 1, countRows(t, db, &database.MovieProductionCompany{}))
	assert.EqualValues(t, 1, countRows(t, db, &database.MovieProductionCountry{}))
	assert.EqualValues(t, 1, countRows(t, db, &database.MovieSpokenLanguage{}))

	var movie database.Movie
	require.NoError(t, db.Where("tmdb_id = ?", 42).First(&movie).Error)
	assert.Equal(t, "Rio Bravo", movie.Title)
	assert.Nil(t, movie.CollectionID)
}

func TestLoadBatchIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := store.LoadBatch(ctx, []Record{rioBravo()})
	require.Equal(t, 1, first.Loaded)

	second := store.LoadBatch(ctx, []Record{rioBravo()})
	assert.Equal(t, 0, second.Loaded)
	assert.Equal(t, 1, second.Skipped)
	assert.Equal(t, 0, second.Failed)

	db := store.DB()
	assert.EqualValues(t, 1, countRows(t, db, &database.Movie{}))
	assert.EqualValues(t, 1, countRows(t, db, &database.Genre{}))
	assert.EqualValues(t, 1, countRows(t, db, &database.ProductionCompany{}))
	assert.EqualValues(t, 1, countRows(t, db, &database.MovieGenre{}))
	assert.EqualValues(t, 1, countRows(t, db, &database.MovieProductionCompany{}))
}

func TestLoadBatchSkipKeepsExistingFields(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	store.LoadBatch(ctx, []Record{rioBravo()})

	changed := rioBravo()
	changed.Title = "Rio Bravo (Restored)"
	res := store.LoadBatch(ctx, []Record{changed})
	assert.Equal(t, 1, res.Skipped)

	var movie database.Movie
	require.NoError(t, store.DB().Where("tmdb_id = ?", 42).First(&movie).Error)
	assert.Equal(t, "Rio Bravo", movie.Title)
}

func TestLoadBatchRejectsMissingNaturalKey(t *testing.T) {
	store := newTestStore(t)

	bad := Record{Title: "No Identifier"}
	res := store.LoadBatch(context.Background(), []Record{bad, rioBravo()})

	assert.Equal(t, 1, res.Rejected)
	assert.Equal(t, 1, res.Loaded)
	require.Len(t, res.Errors, 1)

	var verr *ValidationError
	require.ErrorAs(t, res.Errors[0], &verr)
	assert.Equal(t, "No Identifier", verr.Title)

	assert.EqualValues(t, 1, countRows(t, store.DB(), &database.Movie{}))
}

func TestLoadBatchSharesDimensionRows(t *testing.T) {
	store := newTestStore(t)

	second := rioBravo()
	second.TMDBID = 43
	second.Title = "El Dorado"
	res := store.LoadBatch(context.Background(), []Record{rioBravo(), second})
	require.Equal(t, 2, res.Loaded)

	db := store.DB()
	assert.EqualValues(t, 2, countRows(t, db, &database.Movie{}))
	assert.EqualValues(t, 1, countRows(t, db, &database.Genre{}))
	assert.EqualValues(t, 1, countRows(t, db, &database.ProductionCompany{}))
	assert.EqualValues(t, 1, countRows(t, db, &database.ProductionCountry{}))
	assert.EqualValues(t, 2, countRows(t, db, &database.MovieGenre{}))
}

func TestCollectionReferenceNullsOnDelete(t *testing.T) {
	store := newTestStore(t)
	db := store.DB()

	rec := rioBravo()
	rec.Collection = &CollectionRef{TMDBID: 9, Name: "Howard Hawks Westerns"}
	res := store.LoadBatch(context.Background(), []Record{rec})
	require.Equal(t, 1, res.Loaded)

	var movie database.Movie
	require.NoError(t, db.Where("tmdb_id = ?", 42).First(&movie).Error)
	require.NotNil(t, movie.CollectionID)

	var collection database.Collection
	require.NoError(t, db.Where("tmdb_id = ?", 9).First(&collection).Error)
	require.NoError(t, db.Delete(&collection).Error)

	require.NoError(t, db.Where("tmdb_id = ?", 42).First(&movie).Error)
	assert.Nil(t, movie.CollectionID, "collection reference should null out, not cascade")
}

func TestDeleteGenreCascadesLinksOnly(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	store.LoadBatch(ctx, []Record{rioBravo()})
	require.NoError(t, store.DeleteGenre(ctx, "Western"))

	db := store.DB()
	assert.EqualValues(t, 0, countRows(t, db, &database.Genre{}))
	assert.EqualValues(t, 0, countRows(t, db, &database.MovieGenre{}))
	assert.EqualValues(t, 1, countRows(t, db, &database.Movie{}), "movie must survive genre deletion")
}

func TestDeleteGenreNotFound(t *testing.T) {
	store := newTestStore(t)
	err := store.DeleteGenre(context.Background(), "Nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEnrichUpdatesOnlyCrewAndExternalIDs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	store.LoadBatch(ctx, []Record{rioBravo()})

	payload := EnrichmentPayload{
		Crew:        []CrewMember{{Role: "director", Name: "Howard Hawks"}},
		ExternalIDs: map[string]any{"imdb_id": "tt0053221"},
	}
	require.NoError(t, store.Enrich(ctx, 42, payload))

	var movie database.Movie
	require.NoError(t, store.DB().Where("tmdb_id = ?", 42).First(&movie).Error)
	assert.Equal(t, "Rio Bravo", movie.Title)
	assert.InDelta(t, 23.5, movie.Popularity, 0.001)

	var crew []CrewMember
	require.NoError(t, json.Unmarshal(movie.Crew, &crew))
	require.Len(t, crew, 1)
	assert.Equal(t, "Howard Hawks", crew[0].Name)

	var ids map[string]any
	require.NoError(t, json.Unmarshal(movie.ExternalIDs, &ids))
	assert.Equal(t, "tt0053221", ids["imdb_id"])
}

func TestEnrichNotFoundLeavesStoreUnchanged(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	store.LoadBatch(ctx, []Record{rioBravo()})

	err := store.Enrich(ctx, 999, EnrichmentPayload{
		Crew: []CrewMember{{Role: "director", Name: "Nobody"}},
	})
	require.ErrorIs(t, err, ErrNotFound)

	var movie database.Movie
	require.NoError(t, store.DB().Where("tmdb_id = ?", 42).First(&movie).Error)
	assert.Equal(t, "[]", string(movie.Crew))
}

func TestEnrichEmptyPayloadIsNoop(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	store.LoadBatch(ctx, []Record{rioBravo()})
	require.NoError(t, store.Enrich(ctx, 42, EnrichmentPayload{}))

	var movie database.Movie
	require.NoError(t, store.DB().Where("tmdb_id = ?", 42).First(&movie).Error)
	assert.Equal(t, "[]", string(movie.Crew))
}
