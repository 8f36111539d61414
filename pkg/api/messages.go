// Package api defines the request and response messages of the SplitSmart
// RPC services. Field names follow the JSON the web client already speaks.
package api

import (
	"encoding/json"

	"github.com/mmynk/splitsmart/internal/calculator"
	"github.com/mmynk/splitsmart/internal/models"
)

// CalculateSplitRequest carries everything the calculator needs. No session
// is required.
type CalculateSplitRequest struct {
	Receipt            *models.Receipt            `json:"receiptData"`
	Assignments        models.AssignmentMap       `json:"assignments"`
	ManualSplits       models.ItemManualSplitsMap `json:"itemManualSplits,omitempty"`
	Overrides          models.ItemOverridesMap    `json:"itemOverrides,omitempty"`
	DistributionMethod string                     `json:"distributionMethod,omitempty"`

	// Payments is optional. When set the response includes who owes whom.
	Payments map[string]float64 `json:"payments,omitempty"`
}

type CalculateSplitResponse struct {
	Summary   models.SplitSummary        `json:"summary"`
	Balances  []calculator.MemberBalance `json:"balances,omitempty"`
	Transfers []calculator.Transfer      `json:"transfers,omitempty"`
}

type StartSessionRequest struct {
	// UserName is who "I" and "me" mean in chat commands. Optional.
	UserName string `json:"userName,omitempty"`
}

type StartSessionResponse struct {
	// Token authorizes the other session calls as "Authorization: Bearer <token>".
	Token     string       `json:"token"`
	ExpiresAt int64        `json:"expiresAt"`
	State     SessionState `json:"state"`
}

// SessionState is the full view of a session after a call.
type SessionState struct {
	SessionID          string                     `json:"sessionId"`
	UserName           string                     `json:"userName,omitempty"`
	Receipt            *models.Receipt            `json:"receiptData,omitempty"`
	Assignments        models.AssignmentMap       `json:"assignments"`
	ManualSplits       models.ItemManualSplitsMap `json:"itemManualSplits"`
	Overrides          models.ItemOverridesMap    `json:"itemOverrides"`
	DistributionMethod models.DistributionMethod  `json:"distributionMethod"`

	// Summary is nil until a receipt is loaded.
	Summary *models.SplitSummary `json:"summary,omitempty"`

	CanUndo  bool                 `json:"canUndo"`
	CanRedo  bool                 `json:"canRedo"`
	Messages []models.ChatMessage `json:"messages"`
}

// SessionResponse is returned by every call that edits a session.
type SessionResponse struct {
	State SessionState `json:"state"`
}

type GetSessionRequest struct{}

// UploadReceiptRequest loads a receipt into the session, either from an image
// read by the assistant or from receipt JSON. Exactly one must be set.
type UploadReceiptRequest struct {
	// Image is base64 data, optionally with a data URI prefix.
	Image    string `json:"image,omitempty"`
	MimeType string `json:"mimeType,omitempty"`

	ReceiptJSON json.RawMessage `json:"receiptJson,omitempty"`
}

// ChatResponse is a session update plus the assistant's reply.
type ChatResponse struct {
	State SessionState       `json:"state"`
	Reply models.ChatMessage `json:"reply"`
}

type SendMessageRequest struct {
	Message string `json:"message"`
}

type UpdateItemRequest struct {
	Item models.ReceiptItem `json:"item"`
}

type AssignItemRequest struct {
	ItemID string `json:"itemId"`
	// Names replaces the item's assignees. Empty unassigns the item.
	Names []string `json:"names"`
}

type SetManualSplitRequest struct {
	ItemID string `json:"itemId"`
	// Amounts per person. Null removes the manual split.
	Amounts map[string]float64 `json:"amounts"`
}

type SetOverridesRequest struct {
	Overrides models.ItemOverridesMap `json:"itemOverrides"`
}

type SetDistributionMethodRequest struct {
	Method string `json:"distributionMethod"`
}

type UndoRequest struct{}

type RedoRequest struct{}

// SaveSplitRequest stores a split in history. When Split is nil the caller's
// session is saved.
type SaveSplitRequest struct {
	Title    string             `json:"title,omitempty"`
	Payments map[string]float64 `json:"payments,omitempty"`
	Split    *models.SavedSplit `json:"split,omitempty"`
}

type SaveSplitResponse struct {
	Split *models.SavedSplit `json:"split"`
}

type ListSplitsRequest struct {
	Limit int `json:"limit,omitempty"`
}

type ListSplitsResponse struct {
	Splits []*models.SavedSplit `json:"splits"`
}

type GetSplitRequest struct {
	ID string `json:"id"`
}

// GetSplitResponse includes the settlement recomputed from the saved inputs.
type GetSplitResponse struct {
	Split     *models.SavedSplit         `json:"split"`
	Summary   models.SplitSummary        `json:"summary"`
	Balances  []calculator.MemberBalance `json:"balances,omitempty"`
	Transfers []calculator.Transfer      `json:"transfers,omitempty"`
}

type DeleteSplitRequest struct {
	ID string `json:"id"`
}

type DeleteSplitResponse struct{}

type ClearHistoryRequest struct{}

type ClearHistoryResponse struct {
	Deleted int `json:"deleted"`
}

// RestoreSplitRequest loads a saved split into the caller's session.
type RestoreSplitRequest struct {
	ID string `json:"id"`
}
