// Package chat defines the usage record written for every admitted chat
// request, and the aggregates derived from it for quota enforcement.
package chat

import (
	"time"

	"github.com/xraph/metered/id"
	"github.com/xraph/metered/types"
)

// Record is one admitted chat request: which model was used, how many
// tokens it consumed, and what it cost. Records are immutable once written.
type Record struct {
	ID           id.ChatID     `json:"id"`
	UserID       id.UserID     `json:"user_id"`
	Model        string        `json:"model"`
	InputTokens  int64         `json:"input_tokens"`
	OutputTokens int64         `json:"output_tokens"`
	Cost         types.Credits `json:"cost"`
	CreatedAt    time.Time     `json:"created_at"`
}

// TotalTokens returns input plus output tokens.
func (r *Record) TotalTokens() int64 {
	return r.InputTokens + r.OutputTokens
}

// Stats summarizes a user's chat history.
type Stats struct {
	TotalChats  int64                 `json:"total_chats"`
	TotalTokens int64                 `json:"total_tokens"`
	TotalCost   types.Credits         `json:"total_cost"`
	ByModel     map[string]ModelStats `json:"by_model"`
}

// ModelStats is the per-model slice of Stats.
type ModelStats struct {
	Chats  int64         `json:"chats"`
	Tokens int64         `json:"tokens"`
	Cost   types.Credits `json:"cost"`
}
