package tmdb

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/go-hclog"

	"oater/internal/catalog"
	"oater/internal/logger"
)

// Enricher walks the movies of a genre and backfills their crew and
// external-id columns from TMDb, going through the response cache so the
// run can be interrupted and resumed.
type Enricher struct {
	store  *catalog.Store
	client *Client
	cache  *Cache
	log    hclog.Logger
}

func NewEnricher(store *catalog.Store, client *Client, cache *Cache) *Enricher {
	return &Enricher{
		store:  store,
		client: client,
		cache:  cache,
		log:    logger.Named("enricher"),
	}
}

// EnrichStats summarizes one enrichment run.
type EnrichStats struct {
	Updated    int // movies whose crew/external ids were written
	Cached     int // responses served from the cache
	Dead       int // ids known or newly reported absent from TMDb
	NoDirector int // credits fetched but no director to store
	Failed     int // transient fetch or store failures, skipped
}

// Run enriches every movie of the genre. Fetch failures and absent ids
// never abort the run; each target is handled independently.
func (e *Enricher) Run(ctx context.Context, genre string) (EnrichStats, error) {
	var stats EnrichStats

	targets, err := e.store.EnrichmentTargets(ctx, genre)
	if err != nil {
		return stats, fmt.Errorf("failed to list enrichment targets: %w", err)
	}
	if len(targets) == 0 {
		return stats, fmt.Errorf("no %q movies in the catalog", genre)
	}
	e.log.Info("starting enrichment", "genre", genre, "targets", len(targets))

	for _, target := range targets {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if e.cache.IsDead(target.TMDBID) {
			stats.Dead++
			continue
		}

		entry, ok := e.cache.Get(target.TMDBID)
		if ok {
			stats.Cached++
		} else {
			entry, err = e.fetch(ctx, target.TMDBID)
			if errors.Is(err, ErrNotFound) {
				if err := e.cache.MarkDead(target.TMDBID); err != nil {
					return stats, err
				}
				stats.Dead++
				continue
			}
			if err != nil {
				e.log.Warn("enrichment fetch failed", "tmdb_id", target.TMDBID, "error", err)
				stats.Failed++
				continue
			}
			if err := e.cache.Put(entry); err != nil {
				return stats, err
			}
		}

		crew := directors(entry.Credits)
		if len(crew) == 0 {
			stats.NoDirector++
			continue
		}

		payload := catalog.EnrichmentPayload{Crew: crew, ExternalIDs: entry.ExternalIDs}
		if err := e.store.Enrich(ctx, target.TMDBID, payload); err != nil {
			e.log.Error("enrichment update failed", "tmdb_id", target.TMDBID, "error", err)
			stats.Failed++
			continue
		}
		stats.Updated++
	}

	e.log.Info("enrichment finished",
		"updated", stats.Updated, "cached", stats.Cached,
		"dead", stats.Dead, "no_director", stats.NoDirector, "failed", stats.Failed)
	return stats, nil
}

// fetch pulls credits and external ids for one movie. External ids are
// best-effort: a failure there still caches and uses the credits.
func (e *Enricher) fetch(ctx context.Context, tmdbID int64) (*CacheEntry, error) {
	credits, err := e.client.Credits(ctx, tmdbID)
	if err != nil {
		return nil, err
	}
	entry := &CacheEntry{TMDBID: tmdbID, Credits: credits}

	ids, err := e.client.ExternalIDs(ctx, tmdbID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		e.log.Warn("external ids fetch failed", "tmdb_id", tmdbID, "error", err)
	} else if err == nil {
		entry.ExternalIDs = ids
	}
	return entry, nil
}

// directors extracts the director credits as crew documents.
func directors(credits *CreditsResponse) []catalog.CrewMember {
	if credits == nil {
		return nil
	}
	var crew []catalog.CrewMember
	for _, entry := range credits.Crew {
		if entry.Job == "Director" && entry.Name != "" {
			crew = append(crew, catalog.CrewMember{Role: "director", Name: entry.Name})
		}
	}
	return crew
}
