package assistant

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mmynk/splitsmart/internal/models"
	"github.com/mmynk/splitsmart/internal/receipt"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com"
	DefaultModel   = "gemini-2.5-pro"

	// maxResponseBytes bounds how much of a model response is read.
	maxResponseBytes = 4 << 20
)

var (
	errEmptyResponse = errors.New("empty gemini response")
	errNotJSON       = errors.New("gemini returned non-json output")
)

// GeminiConfig configures the Gemini client.
type GeminiConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// GeminiClient calls the Gemini generateContent REST endpoint.
type GeminiClient struct {
	apiKey  string
	model   string
	baseURL string
	http    *http.Client
}

// NewGeminiClient returns a client, or Unavailable when no API key is set.
func NewGeminiClient(cfg GeminiConfig) Assistant {
	if cfg.APIKey == "" {
		return Unavailable{}
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &GeminiClient{
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: cfg.Timeout},
	}
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generationConfig struct {
	Temperature      float64 `json:"temperature"`
	ResponseMimeType string  `json:"responseMimeType"`
	ResponseSchema   schema  `json:"responseSchema"`
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

// ExtractReceipt sends the image to the model and normalizes what comes back.
func (g *GeminiClient) ExtractReceipt(ctx context.Context, image []byte, mimeType string) (*models.Receipt, error) {
	if len(image) == 0 {
		return nil, errors.New("empty receipt image")
	}
	if mimeType == "" {
		mimeType = "image/png"
	}

	out, err := g.generate(ctx, generateRequest{
		Contents: []content{{Parts: []part{
			{InlineData: &inlineData{MimeType: mimeType, Data: base64.StdEncoding.EncodeToString(image)}},
			{Text: receiptPrompt},
		}}},
		GenerationConfig: generationConfig{
			Temperature:      0.1,
			ResponseMimeType: "application/json",
			ResponseSchema:   receiptSchema,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("extracting receipt: %w", err)
	}

	return receipt.Parse(out)
}

type commandResponse struct {
	UpdatedAssignments []struct {
		ItemID string `json:"itemId"`
		Owners []any  `json:"owners"`
	} `json:"updatedAssignments"`
	Reply string `json:"reply"`
}

// InterpretCommand asks the model for the updated assignment map.
func (g *GeminiClient) InterpretCommand(ctx context.Context, cmd Command) (*CommandResult, error) {
	if cmd.Receipt == nil {
		return nil, errors.New("no receipt to apply command to")
	}
	prompt, err := commandPrompt(cmd)
	if err != nil {
		return nil, err
	}

	out, err := g.generate(ctx, generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
		GenerationConfig: generationConfig{
			Temperature:      0.2,
			ResponseMimeType: "application/json",
			ResponseSchema:   commandSchema,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("interpreting command: %w", err)
	}

	var resp commandResponse
	if err := json.Unmarshal(out, &resp); err != nil {
		return nil, fmt.Errorf("invalid assignment data: %w", err)
	}

	assignments := models.AssignmentMap{}
	for _, entry := range resp.UpdatedAssignments {
		if entry.ItemID == "" {
			continue
		}
		owners := make([]string, 0, len(entry.Owners))
		for _, o := range entry.Owners {
			owners = append(owners, fmt.Sprint(o))
		}
		assignments[entry.ItemID] = owners
	}

	return &CommandResult{
		Assignments: receipt.SanitizeAssignments(cmd.Receipt, assignments),
		Reply:       strings.TrimSpace(resp.Reply),
	}, nil
}

// generate posts the request and returns the text of the first candidate,
// which must be JSON.
func (g *GeminiClient) generate(ctx context.Context, payload generateRequest) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", g.baseURL, g.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.apiKey)

	start := time.Now()
	resp, err := g.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, err
	}
	slog.Debug("Gemini response",
		"model", g.model,
		"status", resp.StatusCode,
		"bytes", len(raw),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gemini api error: status %d: %s", resp.StatusCode, truncate(raw, 512))
	}

	var result struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, err
	}
	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return nil, errEmptyResponse
	}

	var text strings.Builder
	for _, p := range result.Candidates[0].Content.Parts {
		text.WriteString(p.Text)
	}
	output := []byte(strings.TrimSpace(text.String()))
	if len(output) == 0 {
		return nil, errEmptyResponse
	}
	if !json.Valid(output) {
		return nil, errNotJSON
	}
	return output, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
