package main

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/arxos/graphrules/internal/grerr"
)

// postgresSourceStore implements rulestorage.SourceStore against a small
// dedicated table, kept in this binary rather than internal/rulestorage
// so that package stays free of a hard Postgres dependency for tests.
type postgresSourceStore struct {
	store *sqlx.DB
}

func (p postgresSourceStore) PutSource(ctx context.Context, key, source string) error {
	_, err := p.store.ExecContext(ctx, `
		INSERT INTO dsl_sources (key, source, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET source = EXCLUDED.source, updated_at = now()`,
		key, source)
	if err != nil {
		return grerr.Storef("put dsl source %q: %v", key, err)
	}
	return nil
}

func (p postgresSourceStore) GetSource(ctx context.Context, key string) (string, error) {
	var source string
	err := p.store.GetContext(ctx, &source, `SELECT source FROM dsl_sources WHERE key = $1`, key)
	if err != nil {
		return "", grerr.NotFoundf("dsl source %q", key)
	}
	return source, nil
}

func (p postgresSourceStore) ListSources(ctx context.Context) ([]string, error) {
	var keys []string
	if err := p.store.SelectContext(ctx, &keys, `SELECT key FROM dsl_sources ORDER BY key`); err != nil {
		return nil, grerr.Storef("list dsl sources: %v", err)
	}
	return keys, nil
}
