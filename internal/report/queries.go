package report

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"
)

// RunQueries executes the canned analytical query set against the
// catalog and renders each result as a table. Every query rides one of
// the declared indexes: ordered btrees, jsonb/array containment GINs, or
// the company-name trigram index.
func (r *Reporter) RunQueries(ctx context.Context, genre string, out io.Writer) error {
	now := time.Now()
	y2000 := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

	queries := []struct {
		title string
		run   func() ([][]string, error)
	}{
		{
			"Movies released in the last year, newest first (top 5)",
			func() ([][]string, error) {
				movies, err := r.store.ReleasedSince(ctx, now.AddDate(-1, 0, 0), 5)
				if err != nil {
					return nil, err
				}
				rows := [][]string{{"title", "release_date"}}
				for _, m := range movies {
					rows = append(rows, []string{m.Title, dateString(m.ReleaseDate)})
				}
				return rows, nil
			},
		},
		{
			fmt.Sprintf("Longest %s movies (top 5)", genre),
			func() ([][]string, error) {
				movies, err := r.store.LongestInGenre(ctx, genre, 5)
				if err != nil {
					return nil, err
				}
				rows := [][]string{{"title", "runtime"}}
				for _, m := range movies {
					rows = append(rows, []string{m.Title, intString(m.Runtime)})
				}
				return rows, nil
			},
		},
		{
			"Movies over 150 minutes with their director (top 5)",
			func() ([][]string, error) {
				movies, err := r.store.LongMoviesWithDirectors(ctx, 150, 5)
				if err != nil {
					return nil, err
				}
				rows := [][]string{{"title", "runtime", "director"}}
				for _, m := range movies {
					rows = append(rows, []string{m.Title, intString(m.Runtime), m.Director})
				}
				return rows, nil
			},
		},
		{
			"Movies longer than the catalog average (top 5)",
			func() ([][]string, error) {
				movies, err := r.store.LongerThanAverage(ctx, 5)
				if err != nil {
					return nil, err
				}
				rows := [][]string{{"title", "runtime"}}
				for _, m := range movies {
					rows = append(rows, []string{m.Title, intString(m.Runtime)})
				}
				return rows, nil
			},
		},
		{
			"Movies per decade",
			func() ([][]string, error) {
				decades, err := r.store.MoviesPerDecade(ctx)
				if err != nil {
					return nil, err
				}
				rows := [][]string{{"decade", "total"}}
				for _, d := range decades {
					rows = append(rows, []string{fmt.Sprintf("%ds", d.Decade), fmt.Sprintf("%d", d.Total)})
				}
				return rows, nil
			},
		},
		{
			"Genres with more than 10 movies",
			func() ([][]string, error) {
				counts, err := r.store.GenreCounts(ctx, 10)
				if err != nil {
					return nil, err
				}
				rows := [][]string{{"genre", "total"}}
				for _, c := range counts {
					rows = append(rows, []string{c.Name, fmt.Sprintf("%d", c.Total)})
				}
				return rows, nil
			},
		},
		{
			"Average runtime by genre since 2000 (top 10)",
			func() ([][]string, error) {
				runtimes, err := r.store.AvgRuntimeByGenre(ctx, y2000, 10)
				if err != nil {
					return nil, err
				}
				rows := [][]string{{"genre", "avg_runtime"}}
				for _, g := range runtimes {
					rows = append(rows, []string{g.Name, fmt.Sprintf("%.1f", g.AverageRuntime)})
				}
				return rows, nil
			},
		},
		{
			fmt.Sprintf("%s movies with their director (top 5)", genre),
			func() ([][]string, error) {
				movies, err := r.store.GenreMoviesWithDirectors(ctx, genre, 5)
				if err != nil {
					return nil, err
				}
				rows := [][]string{{"title", "director"}}
				for _, m := range movies {
					rows = append(rows, []string{m.Title, m.Director})
				}
				return rows, nil
			},
		},
		{
			fmt.Sprintf("%s movies directed by Clint Eastwood (top 5)", genre),
			func() ([][]string, error) {
				movies, err := r.store.DirectedBy(ctx, "Clint Eastwood", genre, 5)
				if err != nil {
					return nil, err
				}
				rows := [][]string{{"title", "release_date"}}
				for _, m := range movies {
					rows = append(rows, []string{m.Title, dateString(m.ReleaseDate)})
				}
				return rows, nil
			},
		},
		{
			fmt.Sprintf("Directors with more than one %s movie (top 5)", genre),
			func() ([][]string, error) {
				directors, err := r.store.ProlificDirectors(ctx, genre, 1, 5)
				if err != nil {
					return nil, err
				}
				rows := [][]string{{"director", "movies"}}
				for _, d := range directors {
					rows = append(rows, []string{d.Name, fmt.Sprintf("%d", d.Total)})
				}
				return rows, nil
			},
		},
		{
			"Best rated movies with a budget over $1M (top 5)",
			func() ([][]string, error) {
				movies, err := r.store.TopRated(ctx, 7.5, 1_000_000, 5)
				if err != nil {
					return nil, err
				}
				rows := [][]string{{"title", "vote_average", "budget"}}
				for _, m := range movies {
					rows = append(rows, []string{m.Title, fmt.Sprintf("%.1f", m.VoteAverage), fmt.Sprintf("%d", m.Budget)})
				}
				return rows, nil
			},
		},
	}

	for _, q := range queries {
		rows, err := q.run()
		if err != nil {
			return fmt.Errorf("query %q failed: %w", q.title, err)
		}
		fmt.Fprintf(out, "-- %s\n", q.title)
		if len(rows) <= 1 {
			fmt.Fprintln(out, "(no results)")
			fmt.Fprintln(out)
			continue
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		for _, row := range rows {
			for i, cell := range row {
				if i > 0 {
					fmt.Fprint(tw, "\t")
				}
				fmt.Fprint(tw, cell)
			}
			fmt.Fprintln(tw)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		fmt.Fprintln(out)
	}
	return nil
}

func dateString(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}

func intString(n *int) string {
	if n == nil {
		return ""
	}
	return fmt.Sprintf("%d", n)
}
