package models

// SavedSplit is a history entry: a complete snapshot of one split.
type SavedSplit struct {
	// ID is the unique identifier for the split (UUID format).
	ID string `json:"id"`

	// Title is the human-readable name. Auto-generated from participants when empty.
	Title string `json:"title"`

	// Owner is the client identity the split is saved for. It never leaves
	// the server.
	Owner string `json:"-"`

	// Timestamp is the Unix timestamp when the split was saved.
	Timestamp int64 `json:"timestamp"`

	Receipt            Receipt             `json:"receiptData"`
	Assignments        AssignmentMap       `json:"assignments"`
	ManualSplits       ItemManualSplitsMap `json:"itemManualSplits"`
	Overrides          ItemOverridesMap    `json:"itemOverrides"`
	DistributionMethod DistributionMethod  `json:"distributionMethod"`

	// Participants is every named person appearing in Assignments.
	Participants []string `json:"participants"`

	// Payments records who paid the bill and how much. Optional; used to
	// compute who owes whom.
	Payments map[string]float64 `json:"payments,omitempty"`

	ItemCount int     `json:"itemCount"`
	Total     float64 `json:"total"`
	Currency  string  `json:"currency"`
}

// ChatRole identifies the author of a chat message.
type ChatRole string

const (
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
	RoleSystem    ChatRole = "system"
)

// ChatMessage is one entry of a session's chat transcript.
type ChatMessage struct {
	ID        string   `json:"id"`
	Role      ChatRole `json:"role"`
	Content   string   `json:"content"`
	Timestamp int64    `json:"timestamp"`
}
