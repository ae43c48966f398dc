package entities

import "time"

// HistoryEntry is one finished generation as stored in the history table.
type HistoryEntry struct {
	ID         int64
	RequestID  string
	UserID     string
	ChannelID  string
	MessageID  string
	Prompt     string
	Enhanced   string
	Resolution string
	Loras      []LoraSelection
	Upscale    int
	Creativity int
	Seed       int64
	Status     string
	Error      string
	CreatedAt  time.Time
}
