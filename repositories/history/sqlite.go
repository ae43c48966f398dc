package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"flux_comfy_bot/clock"
	"flux_comfy_bot/entities"
)

const insertHistoryQuery string = `
INSERT INTO generation_history (request_id, user_id, channel_id, message_id, prompt,
                                enhanced_prompt, resolution, loras, upscale, creativity,
                                seed, status, error, created_at) VALUES
                             (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`

const getHistoryByRequestQuery string = `
SELECT id, request_id, user_id, channel_id, message_id, prompt,
       enhanced_prompt, resolution, loras, upscale, creativity,
       seed, status, error, created_at FROM generation_history WHERE request_id = ?;
`

const getHistoryByMessageQuery string = `
SELECT id, request_id, user_id, channel_id, message_id, prompt,
       enhanced_prompt, resolution, loras, upscale, creativity,
       seed, status, error, created_at FROM generation_history WHERE message_id = ?;
`

const listHistoryByUserQuery string = `
SELECT id, request_id, user_id, channel_id, message_id, prompt,
       enhanced_prompt, resolution, loras, upscale, creativity,
       seed, status, error, created_at FROM generation_history
WHERE user_id = ? ORDER BY created_at DESC LIMIT ?;
`

type sqliteRepo struct {
	dbConn *sql.DB
	clock  clock.Clock
}

type Config struct {
	DB *sql.DB
}

func NewRepository(cfg *Config) (Repository, error) {
	if cfg.DB == nil {
		return nil, errors.New("missing DB parameter")
	}

	newRepo := &sqliteRepo{
		dbConn: cfg.DB,
		clock:  clock.NewClock(),
	}

	return newRepo, nil
}

func (repo *sqliteRepo) Create(ctx context.Context, entry *entities.HistoryEntry) (*entities.HistoryEntry, error) {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = repo.clock.Now()
	}

	marshalLoras, err := json.Marshal(entry.Loras)
	if err != nil {
		marshalLoras = []byte("[]")
	}
	res, err := repo.dbConn.ExecContext(ctx, insertHistoryQuery,
		entry.RequestID, entry.UserID, entry.ChannelID, entry.MessageID, entry.Prompt,
		entry.Enhanced, entry.Resolution, string(marshalLoras), entry.Upscale, entry.Creativity,
		entry.Seed, entry.Status, entry.Error, entry.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	lastID, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	entry.ID = lastID

	return entry, nil
}

func (repo *sqliteRepo) GetByRequest(ctx context.Context, requestID string) (*entities.HistoryEntry, error) {
	var entry entities.HistoryEntry
	var lorasString string

	err := repo.dbConn.QueryRowContext(ctx, getHistoryByRequestQuery, requestID).Scan(
		&entry.ID, &entry.RequestID, &entry.UserID, &entry.ChannelID, &entry.MessageID, &entry.Prompt,
		&entry.Enhanced, &entry.Resolution, &lorasString, &entry.Upscale, &entry.Creativity,
		&entry.Seed, &entry.Status, &entry.Error, &entry.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	err = json.Unmarshal([]byte(lorasString), &entry.Loras)
	if err != nil {
		return nil, err
	}

	return &entry, nil
}

func (repo *sqliteRepo) GetByMessage(ctx context.Context, messageID string) (*entities.HistoryEntry, error) {
	var entry entities.HistoryEntry
	var lorasString string

	err := repo.dbConn.QueryRowContext(ctx, getHistoryByMessageQuery, messageID).Scan(
		&entry.ID, &entry.RequestID, &entry.UserID, &entry.ChannelID, &entry.MessageID, &entry.Prompt,
		&entry.Enhanced, &entry.Resolution, &lorasString, &entry.Upscale, &entry.Creativity,
		&entry.Seed, &entry.Status, &entry.Error, &entry.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	err = json.Unmarshal([]byte(lorasString), &entry.Loras)
	if err != nil {
		return nil, err
	}

	return &entry, nil
}

func (repo *sqliteRepo) ListByUser(ctx context.Context, userID string, limit int) ([]entities.HistoryEntry, error) {
	rows, err := repo.dbConn.QueryContext(ctx, listHistoryByUserQuery, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []entities.HistoryEntry
	for rows.Next() {
		var entry entities.HistoryEntry
		var lorasString string

		err := rows.Scan(
			&entry.ID, &entry.RequestID, &entry.UserID, &entry.ChannelID, &entry.MessageID, &entry.Prompt,
			&entry.Enhanced, &entry.Resolution, &lorasString, &entry.Upscale, &entry.Creativity,
			&entry.Seed, &entry.Status, &entry.Error, &entry.CreatedAt,
		)
		if err != nil {
			return nil, err
		}

		err = json.Unmarshal([]byte(lorasString), &entry.Loras)
		if err != nil {
			return nil, err
		}

		entries = append(entries, entry)
	}

	return entries, rows.Err()
}
