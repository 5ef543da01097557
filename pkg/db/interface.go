package db

import (
	"context"
	"database/sql"

	"podscribe/pkg/domain"
)

// DBProvider is an interface for database clients that provide access to a sql.DB handle.
// This allows both PostgresClient and SupabaseClient to be used interchangeably.
type DBProvider interface {
	DB() *sql.DB
}

// EpisodeSaver upserts catalog entries keyed by slug.
type EpisodeSaver interface {
	SaveEpisode(ctx context.Context, entry *domain.CatalogEntry) error
}
