package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const dbFilename = "flux_bot.sqlite"

const createHistoryTable = `
CREATE TABLE IF NOT EXISTS generation_history (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    request_id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    channel_id TEXT NOT NULL,
    message_id TEXT NOT NULL DEFAULT '',
    prompt TEXT NOT NULL,
    enhanced_prompt TEXT NOT NULL DEFAULT '',
    resolution TEXT NOT NULL,
    loras TEXT NOT NULL DEFAULT '[]',
    upscale INTEGER NOT NULL DEFAULT 1,
    creativity INTEGER NOT NULL DEFAULT 0,
    seed INTEGER NOT NULL DEFAULT -1,
    status TEXT NOT NULL,
    error TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP NOT NULL
);
`

const createHistoryUserIndex = `
CREATE INDEX IF NOT EXISTS idx_generation_history_user ON generation_history (user_id, created_at);
`

// New opens the bot database, creating it and its schema on first run.
func New(ctx context.Context) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dbFilename)
	if err != nil {
		return nil, fmt.Errorf("error opening sqlite database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("error connecting to sqlite database: %w", err)
	}

	for _, stmt := range []string{createHistoryTable, createHistoryUserIndex} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("error migrating sqlite database: %w", err)
		}
	}

	return db, nil
}
