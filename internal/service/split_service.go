package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"connectrpc.com/connect"
	"github.com/google/uuid"

	"github.com/mmynk/splitsmart/internal/assistant"
	"github.com/mmynk/splitsmart/internal/auth"
	"github.com/mmynk/splitsmart/internal/calculator"
	"github.com/mmynk/splitsmart/internal/metrics"
	"github.com/mmynk/splitsmart/internal/middleware"
	"github.com/mmynk/splitsmart/internal/models"
	"github.com/mmynk/splitsmart/internal/money"
	"github.com/mmynk/splitsmart/internal/receipt"
	"github.com/mmynk/splitsmart/internal/session"
	"github.com/mmynk/splitsmart/pkg/api"
	"github.com/mmynk/splitsmart/pkg/api/apiconnect"
)

// Chat replies shown when a turn cannot be completed. The RPC itself succeeds.
const (
	replyReceiptFailed = "Sorry, I had trouble reading that receipt. Please try a clearer image."
	replyCommandFailed = "I'm having trouble understanding that command. Could you rephrase?"
	replySplitChanged  = "The split changed while I was working on that. Please send it again."
)

// DefaultMaxImageBytes bounds decoded receipt images.
const DefaultMaxImageBytes = 10 << 20

// SplitServiceDeps are the collaborators of a SplitService.
type SplitServiceDeps struct {
	Sessions  *session.Manager
	Tokens    *auth.TokenManager
	Assistant assistant.Assistant
	Metrics   *metrics.Metrics // optional

	// SessionTTL is reported to clients as the token expiry.
	SessionTTL    time.Duration
	MaxImageBytes int
}

// SplitService implements the Connect SplitService
type SplitService struct {
	apiconnect.UnimplementedSplitServiceHandler
	deps SplitServiceDeps
}

// NewSplitService creates a SplitService. A nil Assistant behaves as an
// unconfigured one.
func NewSplitService(deps SplitServiceDeps) *SplitService {
	if deps.Assistant == nil {
		deps.Assistant = assistant.Unavailable{}
	}
	if deps.MaxImageBytes <= 0 {
		deps.MaxImageBytes = DefaultMaxImageBytes
	}
	return &SplitService{deps: deps}
}

// CalculateSplit computes a settlement from the request alone.
func (s *SplitService) CalculateSplit(ctx context.Context, req *connect.Request[api.CalculateSplitRequest]) (*connect.Response[api.CalculateSplitResponse], error) {
	msg := req.Msg
	if msg.Receipt == nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("receiptData is required"))
	}
	r, err := receipt.Normalize(*msg.Receipt)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	method, err := models.ParseDistributionMethod(msg.DistributionMethod)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	assignments := receipt.SanitizeAssignments(r, msg.Assignments)
	manualSplits := receipt.SanitizeManualSplits(r, msg.ManualSplits)
	overrides := receipt.SanitizeOverrides(r, msg.Overrides)

	slog.Debug("Calculating split",
		"items", len(r.Items),
		"assigned_items", len(assignments),
		"method", method,
	)
	summary := calculator.Summarize(r, assignments, manualSplits, overrides, method)
	s.deps.Metrics.SettlementComputed(string(method))

	resp := &api.CalculateSplitResponse{Summary: summary}
	if len(msg.Payments) > 0 {
		resp.Balances, resp.Transfers = calculator.SettleUp(summary.Participants, sanitizePayments(msg.Payments))
	}
	return connect.NewResponse(resp), nil
}

// StartSession creates a session and returns the token for it. A client that
// presents its previous token, expired or not, keeps its owner and with it its
// saved splits.
func (s *SplitService) StartSession(ctx context.Context, req *connect.Request[api.StartSessionRequest]) (*connect.Response[api.StartSessionResponse], error) {
	userName := strings.TrimSpace(req.Msg.UserName)
	owner := uuid.New().String()
	if prev, ok := bearerToken(req.Header()); ok {
		if o, err := s.deps.Tokens.PreviousOwner(prev); err == nil {
			owner = o
		} else {
			slog.Debug("Ignoring previous token", "error", err)
		}
	}
	sess := s.deps.Sessions.Create(userName)

	token, err := s.deps.Tokens.Generate(sess.ID(), userName, owner)
	if err != nil {
		s.deps.Sessions.Delete(sess.ID())
		slog.Error("Failed to issue session token", "error", err)
		return nil, connect.NewError(connect.CodeInternal, errors.New("failed to start session"))
	}
	s.deps.Metrics.SetActiveSessions(s.deps.Sessions.Len())

	slog.Info("Session started", "session_id", sess.ID(), "user_name", userName)
	return connect.NewResponse(&api.StartSessionResponse{
		Token:     token,
		ExpiresAt: time.Now().Add(s.deps.SessionTTL).Unix(),
		State:     s.state(sess),
	}), nil
}

func (s *SplitService) GetSession(ctx context.Context, req *connect.Request[api.GetSessionRequest]) (*connect.Response[api.SessionResponse], error) {
	sess, err := s.session(ctx)
	if err != nil {
		return nil, err
	}
	return s.sessionResponse(sess), nil
}

// UploadReceipt loads a receipt into the session from JSON or from an image
// read by the assistant. Loading a receipt starts the split over.
func (s *SplitService) UploadReceipt(ctx context.Context, req *connect.Request[api.UploadReceiptRequest]) (*connect.Response[api.ChatResponse], error) {
	sess, err := s.session(ctx)
	if err != nil {
		return nil, err
	}
	msg := req.Msg

	if len(msg.ReceiptJSON) > 0 {
		r, err := receipt.Parse(msg.ReceiptJSON)
		if err != nil {
			return nil, connect.NewError(connect.CodeInvalidArgument, err)
		}
		return s.receiptLoaded(sess, r), nil
	}

	if msg.Image == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("image or receiptJson is required"))
	}
	uriType, payload := assistant.SplitDataURI(msg.Image)
	image, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("image is not valid base64: %w", err))
	}
	if len(image) > s.deps.MaxImageBytes {
		return nil, connect.NewError(connect.CodeInvalidArgument,
			fmt.Errorf("image is %d bytes, limit is %d", len(image), s.deps.MaxImageBytes))
	}
	mimeType := msg.MimeType
	if mimeType == "" {
		mimeType = uriType
	}

	r, err := s.deps.Assistant.ExtractReceipt(ctx, image, mimeType)
	if err != nil {
		s.deps.Metrics.AssistantCall("extract_receipt", outcome(err))
		slog.Warn("Receipt extraction failed", "session_id", sess.ID(), "error", err)
		reply := sess.AddMessage(models.RoleAssistant, replyReceiptFailed)
		return connect.NewResponse(&api.ChatResponse{State: s.state(sess), Reply: reply}), nil
	}
	s.deps.Metrics.AssistantCall("extract_receipt", metrics.OutcomeOK)
	return s.receiptLoaded(sess, r), nil
}

func (s *SplitService) receiptLoaded(sess *session.Session, r *models.Receipt) *connect.Response[api.ChatResponse] {
	sess.LoadReceipt(r)
	slog.Info("Receipt loaded",
		"session_id", sess.ID(),
		"items", len(r.Items),
		"total", r.Total,
	)
	reply := sess.AddMessage(models.RoleAssistant, fmt.Sprintf(
		"I found %d items. You can now tell me who ordered what! (e.g. \"Tom had the burger\")", len(r.Items)))
	return connect.NewResponse(&api.ChatResponse{State: s.state(sess), Reply: reply})
}

// SendMessage runs a chat command through the assistant and applies the
// returned assignments as one undoable step. If the split was edited while the
// assistant was working, the command is dropped and the user asked to resend.
func (s *SplitService) SendMessage(ctx context.Context, req *connect.Request[api.SendMessageRequest]) (*connect.Response[api.ChatResponse], error) {
	sess, err := s.session(ctx)
	if err != nil {
		return nil, err
	}
	text := strings.TrimSpace(req.Msg.Message)
	if text == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("message is required"))
	}
	snap := sess.Snapshot()
	if snap.Receipt == nil {
		return nil, connect.NewError(connect.CodeFailedPrecondition, session.ErrNoReceipt)
	}

	sess.AddMessage(models.RoleUser, text)
	result, err := s.deps.Assistant.InterpretCommand(ctx, assistant.Command{
		Receipt:     snap.Receipt,
		Assignments: snap.Assignments,
		Message:     text,
		UserName:    sess.UserName(),
	})
	if err != nil {
		s.deps.Metrics.AssistantCall("interpret_command", outcome(err))
		slog.Warn("Chat command failed", "session_id", sess.ID(), "error", err)
		reply := sess.AddMessage(models.RoleAssistant, replyCommandFailed)
		return connect.NewResponse(&api.ChatResponse{State: s.state(sess), Reply: reply}), nil
	}
	s.deps.Metrics.AssistantCall("interpret_command", metrics.OutcomeOK)

	err = sess.SetAssignmentsAt(snap.Version, receipt.SanitizeAssignments(snap.Receipt, result.Assignments))
	if errors.Is(err, session.ErrStale) {
		slog.Info("Chat command dropped, split edited meanwhile", "session_id", sess.ID())
		reply := sess.AddMessage(models.RoleAssistant, replySplitChanged)
		return connect.NewResponse(&api.ChatResponse{State: s.state(sess), Reply: reply}), nil
	}
	if err != nil {
		return nil, sessionError(err)
	}
	replyText := result.Reply
	if replyText == "" {
		replyText = "Done! Assignments updated."
	}
	reply := sess.AddMessage(models.RoleAssistant, replyText)
	return connect.NewResponse(&api.ChatResponse{State: s.state(sess), Reply: reply}), nil
}

// UpdateItem edits a receipt item in place. The ID selects the item.
func (s *SplitService) UpdateItem(ctx context.Context, req *connect.Request[api.UpdateItemRequest]) (*connect.Response[api.SessionResponse], error) {
	sess, err := s.session(ctx)
	if err != nil {
		return nil, err
	}
	item := req.Msg.Item
	if strings.TrimSpace(item.ID) == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("item id is required"))
	}
	// Run the single item through the same normalization as a full receipt.
	normalized, err := receipt.Normalize(models.Receipt{Items: []models.ReceiptItem{item}})
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	if err := sess.UpdateItem(normalized.Items[0]); err != nil {
		return nil, sessionError(err)
	}
	return s.sessionResponse(sess), nil
}

func (s *SplitService) AssignItem(ctx context.Context, req *connect.Request[api.AssignItemRequest]) (*connect.Response[api.SessionResponse], error) {
	sess, err := s.session(ctx)
	if err != nil {
		return nil, err
	}
	snap := sess.Snapshot()
	if snap.Receipt == nil {
		return nil, connect.NewError(connect.CodeFailedPrecondition, session.ErrNoReceipt)
	}
	names := receipt.SanitizeAssignments(snap.Receipt,
		models.AssignmentMap{req.Msg.ItemID: req.Msg.Names},
	)[req.Msg.ItemID]
	if err := sess.AssignItem(req.Msg.ItemID, names); err != nil {
		return nil, sessionError(err)
	}
	return s.sessionResponse(sess), nil
}

func (s *SplitService) SetManualSplit(ctx context.Context, req *connect.Request[api.SetManualSplitRequest]) (*connect.Response[api.SessionResponse], error) {
	sess, err := s.session(ctx)
	if err != nil {
		return nil, err
	}
	snap := sess.Snapshot()
	if snap.Receipt == nil {
		return nil, connect.NewError(connect.CodeFailedPrecondition, session.ErrNoReceipt)
	}
	var amounts map[string]float64
	if req.Msg.Amounts != nil {
		amounts = receipt.SanitizeManualSplits(snap.Receipt,
			models.ItemManualSplitsMap{req.Msg.ItemID: req.Msg.Amounts},
		)[req.Msg.ItemID]
		if amounts == nil {
			amounts = map[string]float64{}
		}
	}
	if err := sess.SetManualSplit(req.Msg.ItemID, amounts); err != nil {
		return nil, sessionError(err)
	}
	return s.sessionResponse(sess), nil
}

func (s *SplitService) SetOverrides(ctx context.Context, req *connect.Request[api.SetOverridesRequest]) (*connect.Response[api.SessionResponse], error) {
	sess, err := s.session(ctx)
	if err != nil {
		return nil, err
	}
	snap := sess.Snapshot()
	if snap.Receipt == nil {
		return nil, connect.NewError(connect.CodeFailedPrecondition, session.ErrNoReceipt)
	}
	if err := sess.SetOverrides(receipt.SanitizeOverrides(snap.Receipt, req.Msg.Overrides)); err != nil {
		return nil, sessionError(err)
	}
	return s.sessionResponse(sess), nil
}

// SetDistributionMethod switches the strategy. Manual splits and overrides
// survive so switching back to MANUAL restores them.
func (s *SplitService) SetDistributionMethod(ctx context.Context, req *connect.Request[api.SetDistributionMethodRequest]) (*connect.Response[api.SessionResponse], error) {
	sess, err := s.session(ctx)
	if err != nil {
		return nil, err
	}
	method, err := models.ParseDistributionMethod(req.Msg.Method)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	sess.SetMethod(method)
	return s.sessionResponse(sess), nil
}

func (s *SplitService) Undo(ctx context.Context, req *connect.Request[api.UndoRequest]) (*connect.Response[api.SessionResponse], error) {
	sess, err := s.session(ctx)
	if err != nil {
		return nil, err
	}
	if err := sess.Undo(); err != nil {
		return nil, sessionError(err)
	}
	return s.sessionResponse(sess), nil
}

func (s *SplitService) Redo(ctx context.Context, req *connect.Request[api.RedoRequest]) (*connect.Response[api.SessionResponse], error) {
	sess, err := s.session(ctx)
	if err != nil {
		return nil, err
	}
	if err := sess.Redo(); err != nil {
		return nil, sessionError(err)
	}
	return s.sessionResponse(sess), nil
}

// session resolves the caller's session from the authenticated context.
func (s *SplitService) session(ctx context.Context) (*session.Session, error) {
	return lookupSession(ctx, s.deps.Sessions)
}

func (s *SplitService) sessionResponse(sess *session.Session) *connect.Response[api.SessionResponse] {
	return connect.NewResponse(&api.SessionResponse{State: s.state(sess)})
}

// state renders the session, computing the settlement when a receipt is loaded.
func (s *SplitService) state(sess *session.Session) api.SessionState {
	snap := sess.Snapshot()
	st := api.SessionState{
		SessionID:          sess.ID(),
		UserName:           sess.UserName(),
		Receipt:            snap.Receipt,
		Assignments:        snap.Assignments,
		ManualSplits:       snap.ManualSplits,
		Overrides:          snap.Overrides,
		DistributionMethod: snap.DistributionMethod,
		CanUndo:            snap.CanUndo,
		CanRedo:            snap.CanRedo,
		Messages:           sess.Messages(),
	}
	if snap.Receipt != nil {
		summary := calculator.Summarize(snap.Receipt, snap.Assignments, snap.ManualSplits, snap.Overrides, snap.DistributionMethod)
		s.deps.Metrics.SettlementComputed(string(snap.DistributionMethod))
		st.Summary = &summary
	}
	return st
}

// bearerToken reads the token from an Authorization header, if any.
func bearerToken(h http.Header) (string, bool) {
	token, ok := strings.CutPrefix(h.Get("Authorization"), "Bearer ")
	return token, ok && token != ""
}

func lookupSession(ctx context.Context, sessions *session.Manager) (*session.Session, error) {
	id := middleware.GetSessionID(ctx)
	if id == "" {
		return nil, connect.NewError(connect.CodeUnauthenticated, auth.ErrMissingToken)
	}
	sess, err := sessions.Get(id)
	if err != nil {
		return nil, sessionError(err)
	}
	return sess, nil
}

// sessionError maps session package errors to connect codes.
func sessionError(err error) error {
	switch {
	case errors.Is(err, session.ErrNotFound):
		return connect.NewError(connect.CodeNotFound, errors.New("session expired or unknown, start a new session"))
	case errors.Is(err, session.ErrNoReceipt),
		errors.Is(err, session.ErrNothingToUndo),
		errors.Is(err, session.ErrNothingToRedo):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	case errors.Is(err, session.ErrUnknownItem):
		return connect.NewError(connect.CodeNotFound, err)
	default:
		slog.Error("Session update failed", "error", err)
		return connect.NewError(connect.CodeInternal, err)
	}
}

func outcome(err error) string {
	if errors.Is(err, assistant.ErrUnavailable) {
		return metrics.OutcomeUnavailable
	}
	return metrics.OutcomeError
}

// sanitizePayments drops blank payers and non-positive amounts.
func sanitizePayments(payments map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(payments))
	for name, amount := range payments {
		name = strings.TrimSpace(name)
		amount = money.Finite(amount)
		if name == "" || amount <= 0 {
			continue
		}
		out[name] += amount
	}
	return out
}
