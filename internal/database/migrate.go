package database

import (
	"fmt"

	"gorm.io/gorm"
)

// postgresIndexes is the index surface the query layer depends on: ordered
// btrees for range/sort queries, GIN for the jsonb and array containment
// columns, and a trigram GIN for fuzzy company-name search. All statements
// are idempotent so migration can re-run freely.
var postgresIndexes = []string{
	`CREATE EXTENSION IF NOT EXISTS pg_trgm`,
	`CREATE INDEX IF NOT EXISTS idx_movies_popularity ON movies (popularity DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_movies_vote_average ON movies (vote_average DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_movies_crew ON movies USING GIN (crew)`,
	`CREATE INDEX IF NOT EXISTS idx_movies_external_ids ON movies USING GIN (external_ids)`,
	`CREATE INDEX IF NOT EXISTS idx_movies_origin_country ON movies USING GIN (origin_country)`,
	`CREATE INDEX IF NOT EXISTS idx_production_companies_name_trgm ON production_companies USING GIN (name gin_trgm_ops)`,
}

// Migrate creates the catalog schema: dimension tables first so the fact
// and association tables can reference them, then the Postgres-only index
// DDL (sqlite gets the portable btree indexes from the model tags only).
func Migrate(db *gorm.DB) error {
	models := []interface{}{
		&Collection{},
		&Genre{},
		&ProductionCompany{},
		&ProductionCountry{},
		&SpokenLanguage{},
		&Movie{},
		&MovieGenre{},
		&MovieProductionCompany{},
		&MovieProductionCountry{},
		&MovieSpokenLanguage{},
	}
	if err := db.AutoMigrate(models...); err != nil {
		return fmt.Errorf("auto-migration failed: %w", err)
	}

	if db.Dialector.Name() != "postgres" {
		return nil
	}
	for _, stmt := range postgresIndexes {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("index migration failed (%s): %w", stmt, err)
		}
	}
	return nil
}
