// Package assistant talks to the language model that reads receipt photos
// and turns chat commands into item assignments.
package assistant

import (
	"context"
	"errors"
	"strings"

	"github.com/mmynk/splitsmart/internal/models"
)

// ErrUnavailable is returned when no model is configured.
var ErrUnavailable = errors.New("assistant is not configured")

// ReceiptExtractor reads a receipt out of an image.
type ReceiptExtractor interface {
	ExtractReceipt(ctx context.Context, image []byte, mimeType string) (*models.Receipt, error)
}

// Command is one chat instruction together with the state it applies to.
type Command struct {
	Receipt     *models.Receipt
	Assignments models.AssignmentMap
	Message     string
	// UserName is who "I", "me" and "my" refer to. May be empty.
	UserName string
}

// CommandResult is the full assignment map after the command, plus the text
// to show the user.
type CommandResult struct {
	Assignments models.AssignmentMap
	Reply       string
}

// CommandInterpreter applies a natural-language command to the assignments.
type CommandInterpreter interface {
	InterpretCommand(ctx context.Context, cmd Command) (*CommandResult, error)
}

// Assistant does both jobs.
type Assistant interface {
	ReceiptExtractor
	CommandInterpreter
}

// Unavailable is used when no API key is configured. Every call fails with
// ErrUnavailable so the rest of the server keeps working.
type Unavailable struct{}

func (Unavailable) ExtractReceipt(context.Context, []byte, string) (*models.Receipt, error) {
	return nil, ErrUnavailable
}

func (Unavailable) InterpretCommand(context.Context, Command) (*CommandResult, error) {
	return nil, ErrUnavailable
}

var imageTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/jpg":  true,
	"image/webp": true,
}

// SplitDataURI separates a "data:image/png;base64," prefix from the payload.
// Input without a recognised prefix is returned unchanged with an empty type.
func SplitDataURI(s string) (mimeType, payload string) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return "", s
	}
	header, data, ok := strings.Cut(rest, ",")
	if !ok {
		return "", s
	}
	mt, ok := strings.CutSuffix(header, ";base64")
	if !ok || !imageTypes[mt] {
		return "", s
	}
	return mt, data
}
