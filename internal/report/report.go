package report

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/hashicorp/go-hclog"
	"gonum.org/v1/gonum/stat"

	"oater/internal/catalog"
	"oater/internal/logger"
)

// Reporter renders read-only analytics over the catalog into CSV and
// text files.
type Reporter struct {
	store *catalog.Store
	log   hclog.Logger
}

func New(store *catalog.Store) *Reporter {
	return &Reporter{store: store, log: logger.Named("report")}
}

// Generate writes the full report set for a genre into outDir: per-year
// counts, average popularity per year, runtime/title-length correlation,
// the top movies by popularity, and the overview word frequencies.
func (r *Reporter) Generate(ctx context.Context, genre, outDir string, topMovies, topWords int) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("failed to create report dir: %w", err)
	}

	rows, err := r.store.GenreMovies(ctx, genre)
	if err != nil {
		return fmt.Errorf("failed to load %q movies: %w", genre, err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("no %q movies in the catalog", genre)
	}

	if err := r.countsByYear(rows, filepath.Join(outDir, "movies_by_year.csv")); err != nil {
		return err
	}
	if err := r.popularityByYear(rows, filepath.Join(outDir, "avg_popularity_by_year.csv")); err != nil {
		return err
	}
	if err := r.runtimeTitleCorrelation(rows, filepath.Join(outDir, "correlation_runtime_title.txt")); err != nil {
		return err
	}
	if err := r.topByPopularity(rows, topMovies, filepath.Join(outDir, "top_by_popularity.csv")); err != nil {
		return err
	}
	if err := r.overviewWords(rows, topWords, filepath.Join(outDir, "overview_word_counts.csv")); err != nil {
		return err
	}

	r.log.Info("reports generated", "genre", genre, "movies", len(rows), "dir", outDir)
	return nil
}

func (r *Reporter) countsByYear(rows []catalog.GenreMovieRow, path string) error {
	counts := map[int]int{}
	for _, row := range rows {
		if row.ReleaseDate != nil {
			counts[row.ReleaseDate.Year()]++
		}
	}
	records := [][]string{{"year", "count"}}
	for _, year := range sortedKeys(counts) {
		records = append(records, []string{strconv.Itoa(year), strconv.Itoa(counts[year])})
	}
	return writeCSV(path, records)
}

func (r *Reporter) popularityByYear(rows []catalog.GenreMovieRow, path string) error {
	sums := map[int]float64{}
	counts := map[int]int{}
	for _, row := range rows {
		if row.ReleaseDate != nil {
			year := row.ReleaseDate.Year()
			sums[year] += row.Popularity
			counts[year]++
		}
	}
	records := [][]string{{"year", "avg_popularity"}}
	for _, year := range sortedKeys(counts) {
		avg := sums[year] / float64(counts[year])
		records = append(records, []string{strconv.Itoa(year), strconv.FormatFloat(avg, 'f', 3, 64)})
	}
	return writeCSV(path, records)
}

// runtimeTitleCorrelation writes the Pearson correlation between runtime
// and title length. Needs more than two movies with a known runtime.
func (r *Reporter) runtimeTitleCorrelation(rows []catalog.GenreMovieRow, path string) error {
	var runtimes, titleLengths []float64
	for _, row := range rows {
		if row.Runtime != nil {
			runtimes = append(runtimes, float64(*row.Runtime))
			titleLengths = append(titleLengths, float64(len([]rune(row.Title))))
		}
	}
	if len(runtimes) <= 2 {
		r.log.Warn("not enough data for runtime/title-length correlation", "samples", len(runtimes))
		return nil
	}
	pearson := stat.Correlation(runtimes, titleLengths, nil)
	content := fmt.Sprintf("Pearson r (runtime vs title length): %.3f (n=%d)\n", pearson, len(runtimes))
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func (r *Reporter) topByPopularity(rows []catalog.GenreMovieRow, n int, path string) error {
	sorted := make([]catalog.GenreMovieRow, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Popularity > sorted[j].Popularity
	})
	if n > 0 && len(sorted) > n {
		sorted = sorted[:n]
	}

	records := [][]string{{"title", "popularity", "year"}}
	for _, row := range sorted {
		year := ""
		if row.ReleaseDate != nil {
			year = strconv.Itoa(row.ReleaseDate.Year())
		}
		records = append(records, []string{
			row.Title,
			strconv.FormatFloat(row.Popularity, 'f', 3, 64),
			year,
		})
	}
	return writeCSV(path, records)
}

func (r *Reporter) overviewWords(rows []catalog.GenreMovieRow, n int, path string) error {
	texts := make([]string, 0, len(rows))
	for _, row := range rows {
		if row.Overview != "" {
			texts = append(texts, row.Overview)
		}
	}
	records := [][]string{{"word", "count"}}
	for _, wc := range TopWords(texts, n) {
		records = append(records, []string{wc.Word, strconv.Itoa(wc.Count)})
	}
	return writeCSV(path, records)
}

// WordsByOrigin writes one word-frequency CSV per origin country from the
// overviews of single-origin movies.
func (r *Reporter) WordsByOrigin(ctx context.Context, codes []string, n int, outDir string) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("failed to create report dir: %w", err)
	}

	overviews, err := r.store.OverviewsByOrigin(ctx, codes)
	if err != nil {
		return fmt.Errorf("failed to load overviews: %w", err)
	}
	if len(overviews) == 0 {
		return fmt.Errorf("no single-origin overviews for %v", codes)
	}

	byCountry := map[string][]string{}
	for _, row := range overviews {
		byCountry[row.Country] = append(byCountry[row.Country], row.Overview)
	}
	for country, texts := range byCountry {
		records := [][]string{{"rank", "word", "count"}}
		for i, wc := range TopWords(texts, n) {
			records = append(records, []string{strconv.Itoa(i + 1), wc.Word, strconv.Itoa(wc.Count)})
		}
		path := filepath.Join(outDir, fmt.Sprintf("top_words_%s.csv", country))
		if err := writeCSV(path, records); err != nil {
			return err
		}
		r.log.Info("word frequency table written", "country", country, "path", path)
	}
	return nil
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

func writeCSV(path string, records [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.WriteAll(records); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
