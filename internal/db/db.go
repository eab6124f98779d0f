// internal/db/db.go
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// Open connects to Postgres and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to DB: %w", err)
	}
	conn.SetMaxOpenConns(20)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping DB: %w", err)
	}
	return conn, nil
}

// Schema is idempotent and safe to apply on every start.
const Schema = `
CREATE TABLE IF NOT EXISTS posts (
    id               TEXT PRIMARY KEY,
    channel          TEXT NOT NULL,
    subject          TEXT NOT NULL DEFAULT '',
    body             TEXT NOT NULL DEFAULT '',
    media_assets     JSONB NOT NULL DEFAULT '[]',
    thumbnail        JSONB,
    channel_metadata JSONB NOT NULL DEFAULT '{}',
    state            TEXT NOT NULL,
    scheduled_at     TIMESTAMPTZ,
    campaign_id      TEXT,
    recipient_ids    TEXT[] NOT NULL DEFAULT '{}',
    send_results     JSONB NOT NULL DEFAULT '{}',
    created_at       TIMESTAMPTZ NOT NULL,
    updated_at       TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_posts_scheduled_at ON posts (scheduled_at) WHERE scheduled_at IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_posts_state ON posts (state);

CREATE TABLE IF NOT EXISTS templates (
    id               TEXT PRIMARY KEY,
    name             TEXT NOT NULL,
    channel          TEXT NOT NULL,
    subject          TEXT NOT NULL DEFAULT '',
    body             TEXT NOT NULL DEFAULT '',
    media_assets     JSONB NOT NULL DEFAULT '[]',
    channel_metadata JSONB NOT NULL DEFAULT '{}',
    is_active        BOOLEAN NOT NULL DEFAULT TRUE,
    created_at       TIMESTAMPTZ NOT NULL,
    updated_at       TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS recipients (
    id      TEXT PRIMARY KEY,
    name    TEXT NOT NULL DEFAULT '',
    email   TEXT NOT NULL DEFAULT '',
    phone   TEXT NOT NULL DEFAULT '',
    company TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS campaign_recipients (
    campaign_id  TEXT NOT NULL,
    recipient_id TEXT NOT NULL REFERENCES recipients (id) ON DELETE CASCADE,
    PRIMARY KEY (campaign_id, recipient_id)
);

CREATE TABLE IF NOT EXISTS deliveries (
    id               TEXT PRIMARY KEY,
    post_id          TEXT NOT NULL,
    recipient_id     TEXT NOT NULL,
    channel          TEXT NOT NULL,
    status           TEXT NOT NULL,
    rendered_content TEXT NOT NULL DEFAULT '',
    last_error       TEXT NOT NULL DEFAULT '',
    created_at       TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_deliveries_post_id ON deliveries (post_id);
`

func Migrate(ctx context.Context, conn *sql.DB) error {
	if _, err := conn.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
