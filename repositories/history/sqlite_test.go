package history

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	"flux_comfy_bot/databases/sqlite"
	"flux_comfy_bot/entities"
)

func newTestRepository(t *testing.T) Repository {
	t.Helper()

	cwd, err := os.Getwd()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { os.Chdir(cwd) })

	db, err := sqlite.New(context.Background())
	if err != nil {
		t.Fatalf("error opening database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	repo, err := NewRepository(&Config{DB: db})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return repo
}

func testEntry(requestID, userID string, createdAt time.Time) *entities.HistoryEntry {
	return &entities.HistoryEntry{
		RequestID:  requestID,
		UserID:     userID,
		ChannelID:  "channel-1",
		MessageID:  "message-" + requestID,
		Prompt:     "a red fox",
		Enhanced:   "a vivid red fox",
		Resolution: "1:1 [1024x1024 square]",
		Loras:      []entities.LoraSelection{{File: "anime.safetensors", Strength: 0.8}},
		Upscale:    2,
		Creativity: 5,
		Seed:       42,
		Status:     "Succeeded",
		CreatedAt:  createdAt,
	}
}

func TestCreateAndGetByRequest(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	created, err := repo.Create(ctx, testEntry("req-1", "user-1", time.Now()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created.ID == 0 {
		t.Errorf("created entry has no ID")
	}

	got, err := repo.GetByRequest(ctx, "req-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Prompt != "a red fox" || got.Enhanced != "a vivid red fox" || got.Seed != 42 {
		t.Errorf("entry = %+v", got)
	}
	if len(got.Loras) != 1 || got.Loras[0].File != "anime.safetensors" || got.Loras[0].Strength != 0.8 {
		t.Errorf("loras = %+v", got.Loras)
	}
}

func TestGetByRequestNotFound(t *testing.T) {
	repo := newTestRepository(t)

	_, err := repo.GetByRequest(context.Background(), "req-missing")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("err = %v, want sql.ErrNoRows", err)
	}
}

func TestGetByMessage(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	if _, err := repo.Create(ctx, testEntry("req-1", "user-1", time.Now())); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := repo.GetByMessage(ctx, "message-req-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.RequestID != "req-1" {
		t.Errorf("requestID = %q", got.RequestID)
	}
}

func TestListByUser(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	base := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	for i, requestID := range []string{"req-1", "req-2", "req-3"} {
		entry := testEntry(requestID, "user-1", base.Add(time.Duration(i)*time.Minute))
		if _, err := repo.Create(ctx, entry); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if _, err := repo.Create(ctx, testEntry("req-other", "user-2", base)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entries, err := repo.ListByUser(ctx, "user-1", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].RequestID != "req-3" || entries[1].RequestID != "req-2" {
		t.Errorf("order = %q, %q, want newest first", entries[0].RequestID, entries[1].RequestID)
	}
	for _, entry := range entries {
		if entry.UserID != "user-1" {
			t.Errorf("listing leaked another user's entry: %+v", entry)
		}
	}
}
