package service

import (
	"context"
	"encoding/base64"
	"errors"
	"math"
	"strings"
	"testing"

	"connectrpc.com/connect"

	"github.com/mmynk/splitsmart/internal/assistant"
	"github.com/mmynk/splitsmart/internal/calculator"
	"github.com/mmynk/splitsmart/internal/models"
	"github.com/mmynk/splitsmart/pkg/api"
)

func mockReceipt() *models.Receipt {
	return &models.Receipt{
		Items: []models.ReceiptItem{
			{ID: "1", Description: "Classic Burger", Price: 12.99, Quantity: 1},
			{ID: "2", Description: "Truffle Fries", Price: 7.99, Quantity: 1},
			{ID: "3", Description: "Red Wine (Glass)", Price: 14.50, Quantity: 1},
			{ID: "4", Description: "Caesar Salad", Price: 9.99, Quantity: 1},
		},
		Subtotal: 45.47, Tax: 4.55, Tip: 9.10, Total: 59.12, Currency: "$",
	}
}

func TestCalculateSplit(t *testing.T) {
	env := setupTestServer(t)

	tests := []struct {
		name         string
		req          *api.CalculateSplitRequest
		wantCode     connect.Code
		validateFunc func(t *testing.T, resp *api.CalculateSplitResponse)
	}{
		{
			name: "proportional",
			req: &api.CalculateSplitRequest{
				Receipt:     mockReceipt(),
				Assignments: models.AssignmentMap{"1": {"Alice"}, "2": {"Alice", "Bob"}, "3": {"Bob"}, "4": {"Bob"}},
			},
			validateFunc: func(t *testing.T, resp *api.CalculateSplitResponse) {
				if len(resp.Summary.Participants) != 2 {
					t.Fatalf("expected 2 people, got %+v", resp.Summary.Participants)
				}
				alice := findPerson(t, resp.Summary.Participants, "Alice")
				if math.Abs(alice.Subtotal-16.985) > 0.001 {
					t.Errorf("Alice subtotal = %v, want 16.985", alice.Subtotal)
				}
				if math.Abs(resp.Summary.GrandTotal-59.12) > 0.01 {
					t.Errorf("grand total = %v, want 59.12", resp.Summary.GrandTotal)
				}
			},
		},
		{
			name: "manual with payer",
			req: &api.CalculateSplitRequest{
				Receipt:            mockReceipt(),
				Assignments:        models.AssignmentMap{"1": {"Alice", "Bob"}, "2": {"Bob"}, "3": {"Alice"}, "4": {"Bob"}},
				ManualSplits:       models.ItemManualSplitsMap{"1": {"Alice": 10, "Bob": 2.99}},
				DistributionMethod: "MANUAL",
				Payments:           map[string]float64{"Alice": 59.12},
			},
			validateFunc: func(t *testing.T, resp *api.CalculateSplitResponse) {
				if len(resp.Transfers) != 1 || resp.Transfers[0].From != "Bob" || resp.Transfers[0].To != "Alice" {
					t.Fatalf("transfers = %+v, want one from Bob to Alice", resp.Transfers)
				}
				bob := findPerson(t, resp.Summary.Participants, "Bob")
				if math.Abs(resp.Transfers[0].Amount-bob.TotalOwed) > 0.01 {
					t.Errorf("transfer %v, want Bob's total %v", resp.Transfers[0].Amount, bob.TotalOwed)
				}
				if len(resp.Summary.Imbalances) != 0 {
					t.Errorf("balanced split reported imbalances: %+v", resp.Summary.Imbalances)
				}
			},
		},
		{
			name: "nothing assigned",
			req:  &api.CalculateSplitRequest{Receipt: mockReceipt()},
			validateFunc: func(t *testing.T, resp *api.CalculateSplitResponse) {
				people := resp.Summary.Participants
				if len(people) != 1 || people[0].Name != calculator.UnassignedName {
					t.Fatalf("people = %+v, want only Unassigned", people)
				}
			},
		},
		{
			name:     "missing receipt",
			req:      &api.CalculateSplitRequest{},
			wantCode: connect.CodeInvalidArgument,
		},
		{
			name:     "unknown method",
			req:      &api.CalculateSplitRequest{Receipt: mockReceipt(), DistributionMethod: "RANDOM"},
			wantCode: connect.CodeInvalidArgument,
		},
		{
			name: "duplicate item ids",
			req: &api.CalculateSplitRequest{Receipt: &models.Receipt{Items: []models.ReceiptItem{
				{ID: "1", Price: 1}, {ID: "1", Price: 2},
			}}},
			wantCode: connect.CodeInvalidArgument,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := env.split.CalculateSplit(context.Background(), connect.NewRequest(tt.req))
			if tt.wantCode != 0 {
				wantCode(t, err, tt.wantCode)
				return
			}
			if err != nil {
				t.Fatalf("CalculateSplit failed: %v", err)
			}
			tt.validateFunc(t, resp.Msg)
		})
	}
}

func TestSessionRequiresToken(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	_, err := env.split.GetSession(ctx, connect.NewRequest(&api.GetSessionRequest{}))
	wantCode(t, err, connect.CodeUnauthenticated)

	_, err = env.split.GetSession(ctx, authed("garbage", &api.GetSessionRequest{}))
	wantCode(t, err, connect.CodeUnauthenticated)
}

func TestSessionFlow(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	start, err := env.split.StartSession(ctx, connect.NewRequest(&api.StartSessionRequest{UserName: "Alice"}))
	if err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	token := start.Msg.Token
	if token == "" || start.Msg.State.SessionID == "" {
		t.Fatalf("StartSession returned %+v", start.Msg)
	}
	if len(start.Msg.State.Messages) != 2 {
		t.Errorf("expected welcome and greeting, got %+v", start.Msg.State.Messages)
	}

	// Edits before a receipt is loaded are rejected.
	_, err = env.split.AssignItem(ctx, authed(token, &api.AssignItemRequest{ItemID: "1", Names: []string{"Alice"}}))
	wantCode(t, err, connect.CodeFailedPrecondition)

	upload, err := env.split.UploadReceipt(ctx, authed(token, &api.UploadReceiptRequest{ReceiptJSON: []byte(mockReceiptJSON)}))
	if err != nil {
		t.Fatalf("UploadReceipt failed: %v", err)
	}
	if !strings.HasPrefix(upload.Msg.Reply.Content, "I found 4 items.") {
		t.Errorf("reply = %q", upload.Msg.Reply.Content)
	}
	if upload.Msg.State.Summary == nil {
		t.Fatal("summary should be computed once a receipt is loaded")
	}

	if _, err := env.split.AssignItem(ctx, authed(token, &api.AssignItemRequest{ItemID: "1", Names: []string{" Alice ", "Alice"}})); err != nil {
		t.Fatalf("AssignItem failed: %v", err)
	}

	env.ai.result = &assistant.CommandResult{
		Assignments: models.AssignmentMap{"1": {"Alice"}, "2": {"Bob"}, "ghost": {"Eve"}},
		Reply:       "Bob had the fries.",
	}
	chat, err := env.split.SendMessage(ctx, authed(token, &api.SendMessageRequest{Message: "Bob had the fries"}))
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if env.ai.gotCommand.UserName != "Alice" || env.ai.gotCommand.Assignments["1"][0] != "Alice" {
		t.Errorf("assistant got %+v", env.ai.gotCommand)
	}
	state := chat.Msg.State
	if _, ok := state.Assignments["ghost"]; ok {
		t.Error("assignments for unknown items should be dropped")
	}
	if state.Assignments["2"][0] != "Bob" || chat.Msg.Reply.Content != "Bob had the fries." {
		t.Errorf("state = %+v, reply = %q", state.Assignments, chat.Msg.Reply.Content)
	}

	undo, err := env.split.Undo(ctx, authed(token, &api.UndoRequest{}))
	if err != nil {
		t.Fatalf("Undo failed: %v", err)
	}
	if _, ok := undo.Msg.State.Assignments["2"]; ok || !undo.Msg.State.CanRedo {
		t.Errorf("undo should revert the chat command: %+v", undo.Msg.State)
	}
	if _, err := env.split.Redo(ctx, authed(token, &api.RedoRequest{})); err != nil {
		t.Fatalf("Redo failed: %v", err)
	}

	// Manual strategy with an override on the burger.
	if _, err := env.split.SetDistributionMethod(ctx, authed(token, &api.SetDistributionMethodRequest{Method: "MANUAL"})); err != nil {
		t.Fatalf("SetDistributionMethod failed: %v", err)
	}
	tax := 2.0
	if _, err := env.split.SetOverrides(ctx, authed(token, &api.SetOverridesRequest{
		Overrides: models.ItemOverridesMap{"1": {Tax: &tax}},
	})); err != nil {
		t.Fatalf("SetOverrides failed: %v", err)
	}
	got, err := env.split.GetSession(ctx, authed(token, &api.GetSessionRequest{}))
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	alice := findPerson(t, got.Msg.State.Summary.Participants, "Alice")
	if math.Abs(alice.TaxShare-2) > 1e-9 {
		t.Errorf("Alice tax = %v, want the 2.00 override", alice.TaxShare)
	}

	// Switching away and back keeps the override.
	for _, m := range []string{"EQUAL", "MANUAL"} {
		if _, err := env.split.SetDistributionMethod(ctx, authed(token, &api.SetDistributionMethodRequest{Method: m})); err != nil {
			t.Fatalf("SetDistributionMethod(%s) failed: %v", m, err)
		}
	}
	got, _ = env.split.GetSession(ctx, authed(token, &api.GetSessionRequest{}))
	if len(got.Msg.State.Overrides) != 1 {
		t.Errorf("override lost after switching methods: %+v", got.Msg.State.Overrides)
	}

	// An unbalanced manual split is reported but not rejected.
	split, err := env.split.SetManualSplit(ctx, authed(token, &api.SetManualSplitRequest{
		ItemID: "1", Amounts: map[string]float64{"Alice": 5},
	}))
	if err != nil {
		t.Fatalf("SetManualSplit failed: %v", err)
	}
	if imb := split.Msg.State.Summary.Imbalances; len(imb) != 1 || imb[0].ItemID != "1" {
		t.Errorf("imbalances = %+v, want item 1", imb)
	}

	_, err = env.split.SetDistributionMethod(ctx, authed(token, &api.SetDistributionMethodRequest{Method: "BOGUS"}))
	wantCode(t, err, connect.CodeInvalidArgument)

	_, err = env.split.AssignItem(ctx, authed(token, &api.AssignItemRequest{ItemID: "nope", Names: []string{"Alice"}}))
	wantCode(t, err, connect.CodeNotFound)
}

func TestUpdateItem(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()
	start, _ := env.split.StartSession(ctx, connect.NewRequest(&api.StartSessionRequest{}))
	token := start.Msg.Token
	if _, err := env.split.UploadReceipt(ctx, authed(token, &api.UploadReceiptRequest{ReceiptJSON: []byte(mockReceiptJSON)})); err != nil {
		t.Fatalf("UploadReceipt failed: %v", err)
	}

	resp, err := env.split.UpdateItem(ctx, authed(token, &api.UpdateItemRequest{
		Item: models.ReceiptItem{ID: "2", Description: " Sweet Potato Fries ", Price: 8.49, Quantity: 0},
	}))
	if err != nil {
		t.Fatalf("UpdateItem failed: %v", err)
	}
	item, _ := resp.Msg.State.Receipt.Item("2")
	if item.Description != "Sweet Potato Fries" || item.Price != 8.49 || item.Quantity != 1 {
		t.Errorf("item = %+v", item)
	}

	_, err = env.split.UpdateItem(ctx, authed(token, &api.UpdateItemRequest{Item: models.ReceiptItem{ID: "99"}}))
	wantCode(t, err, connect.CodeNotFound)
}

func TestUploadReceiptImage(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()
	start, _ := env.split.StartSession(ctx, connect.NewRequest(&api.StartSessionRequest{}))
	token := start.Msg.Token

	env.ai.receipt = mockReceipt()
	image := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString([]byte("jpeg"))
	resp, err := env.split.UploadReceipt(ctx, authed(token, &api.UploadReceiptRequest{Image: image}))
	if err != nil {
		t.Fatalf("UploadReceipt failed: %v", err)
	}
	if string(env.ai.gotImage) != "jpeg" || env.ai.gotMime != "image/jpeg" {
		t.Errorf("assistant got %q (%s)", env.ai.gotImage, env.ai.gotMime)
	}
	if len(resp.Msg.State.Receipt.Items) != 4 {
		t.Errorf("receipt not loaded: %+v", resp.Msg.State.Receipt)
	}

	t.Run("extraction failure becomes a chat reply", func(t *testing.T) {
		env.ai.extractErr = errors.New("model overloaded")
		defer func() { env.ai.extractErr = nil }()

		resp, err := env.split.UploadReceipt(ctx, authed(token, &api.UploadReceiptRequest{
			Image: base64.StdEncoding.EncodeToString([]byte("png")),
		}))
		if err != nil {
			t.Fatalf("UploadReceipt should not fail: %v", err)
		}
		if resp.Msg.Reply.Content != replyReceiptFailed {
			t.Errorf("reply = %q", resp.Msg.Reply.Content)
		}
		if resp.Msg.State.Receipt == nil {
			t.Error("previous receipt should be kept")
		}
	})

	t.Run("invalid base64", func(t *testing.T) {
		_, err := env.split.UploadReceipt(ctx, authed(token, &api.UploadReceiptRequest{Image: "%%%"}))
		wantCode(t, err, connect.CodeInvalidArgument)
	})

	t.Run("image too large", func(t *testing.T) {
		big := base64.StdEncoding.EncodeToString(make([]byte, 65))
		_, err := env.split.UploadReceipt(ctx, authed(token, &api.UploadReceiptRequest{Image: big}))
		wantCode(t, err, connect.CodeInvalidArgument)
	})

	t.Run("empty request", func(t *testing.T) {
		_, err := env.split.UploadReceipt(ctx, authed(token, &api.UploadReceiptRequest{}))
		wantCode(t, err, connect.CodeInvalidArgument)
	})
}

func TestSendMessage(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()
	start, _ := env.split.StartSession(ctx, connect.NewRequest(&api.StartSessionRequest{}))
	token := start.Msg.Token

	_, err := env.split.SendMessage(ctx, authed(token, &api.SendMessageRequest{Message: "Tom had the burger"}))
	wantCode(t, err, connect.CodeFailedPrecondition)

	if _, err := env.split.UploadReceipt(ctx, authed(token, &api.UploadReceiptRequest{ReceiptJSON: []byte(mockReceiptJSON)})); err != nil {
		t.Fatalf("UploadReceipt failed: %v", err)
	}

	_, err = env.split.SendMessage(ctx, authed(token, &api.SendMessageRequest{Message: "   "}))
	wantCode(t, err, connect.CodeInvalidArgument)

	env.ai.commandErr = assistant.ErrUnavailable
	resp, err := env.split.SendMessage(ctx, authed(token, &api.SendMessageRequest{Message: "Tom had the burger"}))
	if err != nil {
		t.Fatalf("SendMessage should not fail: %v", err)
	}
	if resp.Msg.Reply.Content != replyCommandFailed {
		t.Errorf("reply = %q", resp.Msg.Reply.Content)
	}
	msgs := resp.Msg.State.Messages
	if msgs[len(msgs)-2].Role != models.RoleUser || msgs[len(msgs)-2].Content != "Tom had the burger" {
		t.Errorf("user message not recorded: %+v", msgs)
	}
	if resp.Msg.State.CanUndo {
		t.Error("a failed command should not create an undo step")
	}
}

func TestSendMessage_SplitEditedMeanwhile(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()
	token := startWithReceipt(t, env, "Alice")

	env.ai.result = &assistant.CommandResult{
		Assignments: models.AssignmentMap{"2": {"Tom"}},
		Reply:       "Tom had the fries.",
	}
	// The user assigns the burger while the assistant is still working.
	env.ai.whileThinking = func() {
		if _, err := env.split.AssignItem(ctx, authed(token, &api.AssignItemRequest{ItemID: "1", Names: []string{"Alice"}})); err != nil {
			t.Errorf("AssignItem failed: %v", err)
		}
	}

	resp, err := env.split.SendMessage(ctx, authed(token, &api.SendMessageRequest{Message: "Tom had the fries"}))
	if err != nil {
		t.Fatalf("SendMessage should not fail: %v", err)
	}
	if resp.Msg.Reply.Content != replySplitChanged {
		t.Errorf("reply = %q, want %q", resp.Msg.Reply.Content, replySplitChanged)
	}
	state := resp.Msg.State
	if names := state.Assignments["1"]; len(names) != 1 || names[0] != "Alice" {
		t.Errorf("concurrent edit lost: %+v", state.Assignments)
	}
	if _, ok := state.Assignments["2"]; ok {
		t.Errorf("stale command applied: %+v", state.Assignments)
	}

	// Resending without interference applies it.
	env.ai.whileThinking = nil
	resp, err = env.split.SendMessage(ctx, authed(token, &api.SendMessageRequest{Message: "Tom had the fries"}))
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if names := resp.Msg.State.Assignments["2"]; len(names) != 1 || names[0] != "Tom" {
		t.Errorf("resent command not applied: %+v", resp.Msg.State.Assignments)
	}
}
