package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"connectrpc.com/connect"

	"github.com/mmynk/splitsmart/internal/assistant"
	"github.com/mmynk/splitsmart/internal/auth"
	"github.com/mmynk/splitsmart/internal/middleware"
	"github.com/mmynk/splitsmart/internal/models"
	"github.com/mmynk/splitsmart/internal/session"
	"github.com/mmynk/splitsmart/internal/storage/sqlite"
	"github.com/mmynk/splitsmart/pkg/api/apiconnect"
)

const mockReceiptJSON = `{
	"items": [
		{"id": "1", "description": "Classic Burger", "price": 12.99, "quantity": 1},
		{"id": "2", "description": "Truffle Fries", "price": 7.99, "quantity": 1},
		{"id": "3", "description": "Red Wine (Glass)", "price": 14.50, "quantity": 1},
		{"id": "4", "description": "Caesar Salad", "price": 9.99, "quantity": 1}
	],
	"subtotal": 45.47, "tax": 4.55, "tip": 9.10, "total": 59.12, "currency": "$"
}`

// fakeAssistant records what it was asked and answers with canned results.
type fakeAssistant struct {
	mu sync.Mutex

	receipt    *models.Receipt
	extractErr error
	gotImage   []byte
	gotMime    string

	result     *assistant.CommandResult
	commandErr error
	gotCommand assistant.Command
	// whileThinking runs during InterpretCommand, before the result is returned.
	whileThinking func()
}

func (f *fakeAssistant) ExtractReceipt(_ context.Context, image []byte, mimeType string) (*models.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gotImage, f.gotMime = image, mimeType
	if f.extractErr != nil {
		return nil, f.extractErr
	}
	return f.receipt.Clone(), nil
}

func (f *fakeAssistant) InterpretCommand(_ context.Context, cmd assistant.Command) (*assistant.CommandResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gotCommand = cmd
	if f.whileThinking != nil {
		f.whileThinking()
	}
	if f.commandErr != nil {
		return nil, f.commandErr
	}
	return f.result, nil
}

type testEnv struct {
	split   *apiconnect.SplitServiceClient
	history *apiconnect.HistoryServiceClient
	ai      *fakeAssistant
}

// setupTestServer serves both services with a temp SQLite database and the
// real session interceptors.
func setupTestServer(t *testing.T) *testEnv {
	t.Helper()

	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	tokens := auth.NewTokenManager("test-secret", time.Hour)
	ai := &fakeAssistant{}
	splitSvc := NewSplitService(SplitServiceDeps{
		Sessions:      session.NewManager(100, time.Hour, 20),
		Tokens:        tokens,
		Assistant:     ai,
		SessionTTL:    time.Hour,
		MaxImageBytes: 64,
	})
	historySvc := NewHistoryService(store, splitSvc, nil)

	splitPath, splitHandler := apiconnect.NewSplitServiceHandler(splitSvc,
		connect.WithInterceptors(middleware.RequireSession(tokens,
			apiconnect.SplitServiceCalculateSplitProcedure,
			apiconnect.SplitServiceStartSessionProcedure,
		)),
	)
	historyPath, historyHandler := apiconnect.NewHistoryServiceHandler(historySvc,
		connect.WithInterceptors(middleware.RequireSession(tokens)),
	)

	mux := http.NewServeMux()
	mux.Handle(splitPath, splitHandler)
	mux.Handle(historyPath, historyHandler)
	server := httptest.NewServer(mux)

	t.Cleanup(func() {
		server.Close()
		store.Close()
	})

	return &testEnv{
		split:   apiconnect.NewSplitServiceClient(http.DefaultClient, server.URL),
		history: apiconnect.NewHistoryServiceClient(http.DefaultClient, server.URL),
		ai:      ai,
	}
}

// authed wraps msg in a request carrying the session token.
func authed[T any](token string, msg *T) *connect.Request[T] {
	req := connect.NewRequest(msg)
	req.Header().Set("Authorization", "Bearer "+token)
	return req
}

func wantCode(t *testing.T, err error, code connect.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %v error, got nil", code)
	}
	var connectErr *connect.Error
	if !errors.As(err, &connectErr) || connectErr.Code() != code {
		t.Fatalf("error = %v, want code %v", err, code)
	}
}

func findPerson(t *testing.T, people []models.PersonSummary, name string) models.PersonSummary {
	t.Helper()
	for _, p := range people {
		if p.Name == name {
			return p
		}
	}
	t.Fatalf("no summary for %s", name)
	return models.PersonSummary{}
}
