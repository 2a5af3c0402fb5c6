package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func seedWesterns(t *testing.T, store *Store) {
	t.Helper()

	releases := []struct {
		id         int64
		title      string
		year       int
		runtime    int
		popularity float64
		vote       float64
		budget     int64
	}{
		{42, "Rio Bravo", 1959, 141, 23.5, 7.9, 1_200_000},
		{43, "El Dorado", 1966, 126, 15.1, 7.6, 4_600_000},
		{44, "Unforgiven", 1992, 130, 31.2, 8.0, 14_400_000},
		{45, "Short One", 1971, 82, 2.4, 5.5, 90_000},
	}

	records := make([]Record, 0, len(releases))
	for _, r := range releases {
		release := time.Date(r.year, 6, 1, 0, 0, 0, 0, time.UTC)
		runtime := r.runtime
		records = append(records, Record{
			TMDBID:      r.id,
			Title:       r.title,
			ReleaseDate: &release,
			Runtime:     &runtime,
			Popularity:  r.popularity,
			VoteAverage: r.vote,
			Budget:      r.budget,
			Overview:    "A gunslinger rides into a dusty frontier town.",
			Genres:      []GenreRef{{Name: "Western"}},
		})
	}
	res := store.LoadBatch(context.Background(), records)
	require.Equal(t, len(records), res.Loaded)
}

func TestTopByPopularity(t *testing.T) {
	store := newTestStore(t)
	seedWesterns(t, store)

	movies, err := store.TopByPopularity(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, movies, 2)
	assert.Equal(t, "Unforgiven", movies[0].Title)
	assert.Equal(t, "Rio Bravo", movies[1].Title)
}

func TestReleasedSince(t *testing.T) {
	store := newTestStore(t)
	seedWesterns(t, store)

	movies, err := store.ReleasedSince(context.Background(), time.Date(1965, 1, 1, 0, 0, 0, 0, time.UTC), 10)
	require.NoError(t, err)
	require.Len(t, movies, 3)
	assert.Equal(t, "Unforgiven", movies[0].Title, "newest first")
}

func TestTopRated(t *testing.T) {
	store := newTestStore(t)
	seedWesterns(t, store)

	movies, err := store.TopRated(context.Background(), 7.5, 1_000_000, 5)
	require.NoError(t, err)
	require.Len(t, movies, 3)
	assert.Equal(t, "Unforgiven", movies[0].Title)
}

func TestLongestInGenre(t *testing.T) {
	store := newTestStore(t)
	seedWesterns(t, store)

	movies, err := store.LongestInGenre(context.Background(), "Western", 2)
	require.NoError(t, err)
	require.Len(t, movies, 2)
	assert.Equal(t, "Rio Bravo", movies[0].Title)
	assert.Equal(t, "Unforgiven", movies[1].Title)
}

func TestLongerThanAverage(t *testing.T) {
	store := newTestStore(t)
	seedWesterns(t, store)

	// Average runtime is just under 120, so the short one drops out.
	movies, err := store.LongerThanAverage(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, movies, 3)
	assert.Equal(t, "Rio Bravo", movies[0].Title)
}

func TestGenreCounts(t *testing.T) {
	store := newTestStore(t)
	seedWesterns(t, store)

	counts, err := store.GenreCounts(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, counts, 1)
	assert.Equal(t, "Western", counts[0].Name)
	assert.EqualValues(t, 4, counts[0].Total)

	counts, err = store.GenreCounts(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, counts)
}

func TestMoviesPerDecade(t *testing.T) {
	store := newTestStore(t)
	seedWesterns(t, store)

	decades, err := store.MoviesPerDecade(context.Background())
	require.NoError(t, err)
	require.Len(t, decades, 4)
	assert.Equal(t, 1950, decades[0].Decade)
	assert.EqualValues(t, 1, decades[0].Total)
	assert.Equal(t, 1990, decades[3].Decade)
}

func TestAvgRuntimeByGenre(t *testing.T) {
	store := newTestStore(t)
	seedWesterns(t, store)

	// 1966, 1971 and 1992 releases qualify: (126 + 82 + 130) / 3.
	runtimes, err := store.AvgRuntimeByGenre(context.Background(), time.Date(1960, 1, 1, 0, 0, 0, 0, time.UTC), 10)
	require.NoError(t, err)
	require.Len(t, runtimes, 1)
	assert.Equal(t, "Western", runtimes[0].Name)
	assert.InDelta(t, 112.67, runtimes[0].AverageRuntime, 0.01)
}

func TestGenreLookups(t *testing.T) {
	store := newTestStore(t)
	seedWesterns(t, store)
	ctx := context.Background()

	genre, err := store.GenreByName(ctx, "Western")
	require.NoError(t, err)
	assert.NotZero(t, genre.ID)

	_, err = store.GenreByName(ctx, "Musical")
	assert.ErrorIs(t, err, ErrNotFound)

	genres, err := store.GenresWithPrefix(ctx, "Wes")
	require.NoError(t, err)
	require.Len(t, genres, 1)
	assert.Equal(t, "Western", genres[0].Name)
}

func TestEnrichmentTargets(t *testing.T) {
	store := newTestStore(t)
	seedWesterns(t, store)

	targets, err := store.EnrichmentTargets(context.Background(), "Western")
	require.NoError(t, err)
	require.Len(t, targets, 4)
	assert.EqualValues(t, 42, targets[0].TMDBID)
	assert.NotZero(t, targets[0].MovieID)
}

func TestGenreMovies(t *testing.T) {
	store := newTestStore(t)
	seedWesterns(t, store)

	rows, err := store.GenreMovies(context.Background(), "Western")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	for _, row := range rows {
		assert.NotNil(t, row.ReleaseDate)
		assert.NotEmpty(t, row.Title)
	}
}

// The containment and trigram queries are Postgres-only, so their SQL
// shape is asserted through sqlmock instead of sqlite.

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 sqlDB,
		PreferSimpleProtocol: true,
	}), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)
	return New(db), mock
}

func TestDirectedByUsesCrewContainment(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`crew @>`).
		WithArgs("Western", `[{"name":"Clint Eastwood","role":"director"}]`, 5).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title"}))

	_, err := store.DirectedBy(context.Background(), "Clint Eastwood", "Western", 5)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithExternalIDUsesContainment(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`external_ids @>`).
		WithArgs(`{"imdb_id":"tt0053221"}`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title"}))

	_, err := store.WithExternalID(context.Background(), "imdb_id", "tt0053221")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFromOriginCountryUsesArrayContainment(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`origin_country @> ARRAY\[\$1\]::text\[\]`).
		WithArgs("IT", 10).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title"}))

	_, err := store.FromOriginCountry(context.Background(), "IT", 10)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

// Stands in for the behavioral fuzzy-retrieval property: casing and
// whitespace variants of the same company name all score above the
// similarity threshold on Postgres, which sqlite (no pg_trgm) cannot
// reproduce. The asserted shape is the similarity predicate itself.
func TestSearchCompaniesUsesTrigramSimilarity(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`similarity\(name, \$1\) > \$2`).
		WithArgs("Warner Bros.", companySimilarityThreshold, "Warner Bros.", 10).
		WillReturnRows(sqlmock.NewRows([]string{"id", "tmdb_id", "name"}))

	_, err := store.SearchCompanies(context.Background(), "Warner Bros.", 10)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLongMoviesWithDirectorsExtractsName(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`crew->0->>'name'`).
		WithArgs(150, `[{"role":"director"}]`, 5).
		WillReturnRows(sqlmock.NewRows([]string{"title", "runtime", "director"}).
			AddRow("The Good, the Bad and the Ugly", 161, "Sergio Leone"))

	rows, err := store.LongMoviesWithDirectors(context.Background(), 150, 5)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Sergio Leone", rows[0].Director)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGenreMoviesWithDirectorsExtractsName(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`m\.crew->0->>'name'`).
		WithArgs("Western", `[{"role":"director"}]`, 5).
		WillReturnRows(sqlmock.NewRows([]string{"title", "director"}).
			AddRow("Unforgiven", "Clint Eastwood"))

	rows, err := store.GenreMoviesWithDirectors(context.Background(), "Western", 5)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Clint Eastwood", rows[0].Director)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProlificDirectorsUnnestsCrew(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`jsonb_array_elements\(m\.crew\)`).
		WithArgs("Western", `[{"role":"director"}]`, 1, 5).
		WillReturnRows(sqlmock.NewRows([]string{"name", "total"}))

	_, err := store.ProlificDirectors(context.Background(), "Western", 1, 5)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOverviewsByOriginFiltersSingleOrigin(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`array_length\(origin_country, 1\) = 1`).
		WithArgs("US", "IT").
		WillReturnRows(sqlmock.NewRows([]string{"country", "overview"}).
			AddRow("US", "A gunslinger rides again."))

	rows, err := store.OverviewsByOrigin(context.Background(), []string{"US", "IT"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "US", rows[0].Country)
	require.NoError(t, mock.ExpectationsWereMet())
}
