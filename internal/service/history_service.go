package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/splitsmart/internal/auth"
	"github.com/mmynk/splitsmart/internal/calculator"
	"github.com/mmynk/splitsmart/internal/metrics"
	"github.com/mmynk/splitsmart/internal/middleware"
	"github.com/mmynk/splitsmart/internal/models"
	"github.com/mmynk/splitsmart/internal/receipt"
	"github.com/mmynk/splitsmart/internal/session"
	"github.com/mmynk/splitsmart/internal/storage"
	"github.com/mmynk/splitsmart/pkg/api"
	"github.com/mmynk/splitsmart/pkg/api/apiconnect"
)

// HistoryService implements the Connect HistoryService
type HistoryService struct {
	apiconnect.UnimplementedHistoryServiceHandler
	store    storage.Store
	sessions *session.Manager
	split    *SplitService
	metrics  *metrics.Metrics
}

// NewHistoryService creates a HistoryService. The split service renders
// session state for RestoreSplit.
func NewHistoryService(store storage.Store, split *SplitService, m *metrics.Metrics) *HistoryService {
	return &HistoryService{
		store:    store,
		sessions: split.deps.Sessions,
		split:    split,
		metrics:  m,
	}
}

// SaveSplit stores the given split, or the caller's session when none is given.
func (s *HistoryService) SaveSplit(ctx context.Context, req *connect.Request[api.SaveSplitRequest]) (*connect.Response[api.SaveSplitResponse], error) {
	owner, err := requireOwner(ctx)
	if err != nil {
		return nil, err
	}
	var saved *models.SavedSplit
	if req.Msg.Split != nil {
		r, err := receipt.Normalize(req.Msg.Split.Receipt)
		if err != nil {
			return nil, connect.NewError(connect.CodeInvalidArgument, err)
		}
		method, err := models.ParseDistributionMethod(string(req.Msg.Split.DistributionMethod))
		if err != nil {
			return nil, connect.NewError(connect.CodeInvalidArgument, err)
		}
		saved = buildSavedSplit(r, req.Msg.Split.Assignments, req.Msg.Split.ManualSplits, req.Msg.Split.Overrides, method)
		saved.ID = req.Msg.Split.ID
		saved.Title = req.Msg.Split.Title
		saved.Payments = req.Msg.Split.Payments
	} else {
		sess, err := lookupSession(ctx, s.sessions)
		if err != nil {
			return nil, err
		}
		snap := sess.Snapshot()
		if snap.Receipt == nil {
			return nil, connect.NewError(connect.CodeFailedPrecondition, session.ErrNoReceipt)
		}
		saved = buildSavedSplit(snap.Receipt, snap.Assignments, snap.ManualSplits, snap.Overrides, snap.DistributionMethod)
	}

	if title := strings.TrimSpace(req.Msg.Title); title != "" {
		saved.Title = title
	}
	if len(req.Msg.Payments) > 0 {
		saved.Payments = req.Msg.Payments
	}
	if len(saved.Payments) > 0 {
		saved.Payments = sanitizePayments(saved.Payments)
	}
	saved.Owner = owner

	if err := s.store.SaveSplit(ctx, saved); err != nil {
		if errors.Is(err, storage.ErrNotOwner) {
			return nil, connect.NewError(connect.CodePermissionDenied, err)
		}
		slog.Error("Failed to save split", "error", err)
		return nil, connect.NewError(connect.CodeInternal, errors.New("failed to save split"))
	}
	s.metrics.SplitSaved()

	slog.Info("Split saved",
		"split_id", saved.ID,
		"title", saved.Title,
		"participants", len(saved.Participants),
		"items", saved.ItemCount,
	)
	return connect.NewResponse(&api.SaveSplitResponse{Split: saved}), nil
}

// ListSplits returns saved splits, newest first.
func (s *HistoryService) ListSplits(ctx context.Context, req *connect.Request[api.ListSplitsRequest]) (*connect.Response[api.ListSplitsResponse], error) {
	owner, err := requireOwner(ctx)
	if err != nil {
		return nil, err
	}
	splits, err := s.store.ListSplits(ctx, owner, req.Msg.Limit)
	if err != nil {
		slog.Error("Failed to list splits", "error", err)
		return nil, connect.NewError(connect.CodeInternal, errors.New("failed to list splits"))
	}
	if splits == nil {
		splits = []*models.SavedSplit{}
	}
	return connect.NewResponse(&api.ListSplitsResponse{Splits: splits}), nil
}

// GetSplit returns a saved split with its settlement recomputed.
func (s *HistoryService) GetSplit(ctx context.Context, req *connect.Request[api.GetSplitRequest]) (*connect.Response[api.GetSplitResponse], error) {
	saved, err := s.get(ctx, req.Msg.ID)
	if err != nil {
		return nil, err
	}

	summary := calculator.Summarize(&saved.Receipt, saved.Assignments, saved.ManualSplits, saved.Overrides, saved.DistributionMethod)
	s.metrics.SettlementComputed(string(saved.DistributionMethod))
	resp := &api.GetSplitResponse{Split: saved, Summary: summary}
	if len(saved.Payments) > 0 {
		resp.Balances, resp.Transfers = calculator.SettleUp(summary.Participants, saved.Payments)
	}
	return connect.NewResponse(resp), nil
}

func (s *HistoryService) DeleteSplit(ctx context.Context, req *connect.Request[api.DeleteSplitRequest]) (*connect.Response[api.DeleteSplitResponse], error) {
	owner, err := requireOwner(ctx)
	if err != nil {
		return nil, err
	}
	if req.Msg.ID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("id is required"))
	}
	if err := s.store.DeleteSplit(ctx, owner, req.Msg.ID); err != nil {
		return nil, storageError(err)
	}
	slog.Info("Split deleted", "split_id", req.Msg.ID)
	return connect.NewResponse(&api.DeleteSplitResponse{}), nil
}

func (s *HistoryService) ClearHistory(ctx context.Context, req *connect.Request[api.ClearHistoryRequest]) (*connect.Response[api.ClearHistoryResponse], error) {
	owner, err := requireOwner(ctx)
	if err != nil {
		return nil, err
	}
	n, err := s.store.ClearSplits(ctx, owner)
	if err != nil {
		return nil, storageError(err)
	}
	slog.Info("History cleared", "deleted", n)
	return connect.NewResponse(&api.ClearHistoryResponse{Deleted: n}), nil
}

// RestoreSplit loads a saved split into the caller's session, replacing its
// receipt and edits.
func (s *HistoryService) RestoreSplit(ctx context.Context, req *connect.Request[api.RestoreSplitRequest]) (*connect.Response[api.SessionResponse], error) {
	sess, err := lookupSession(ctx, s.sessions)
	if err != nil {
		return nil, err
	}
	saved, err := s.get(ctx, req.Msg.ID)
	if err != nil {
		return nil, err
	}
	sess.Restore(saved)
	sess.AddMessage(models.RoleAssistant, "Restored \""+saved.Title+"\".")
	slog.Info("Split restored", "split_id", saved.ID, "session_id", sess.ID())
	return s.split.sessionResponse(sess), nil
}

func (s *HistoryService) get(ctx context.Context, id string) (*models.SavedSplit, error) {
	owner, err := requireOwner(ctx)
	if err != nil {
		return nil, err
	}
	if id == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("id is required"))
	}
	saved, err := s.store.GetSplit(ctx, owner, id)
	if err != nil {
		return nil, storageError(err)
	}
	return saved, nil
}

// requireOwner returns the caller's history owner from the session token.
func requireOwner(ctx context.Context) (string, error) {
	owner := middleware.GetOwner(ctx)
	if owner == "" {
		return "", connect.NewError(connect.CodeUnauthenticated, auth.ErrMissingToken)
	}
	return owner, nil
}

// buildSavedSplit snapshots sanitized inputs into a history entry.
func buildSavedSplit(
	r *models.Receipt,
	assignments models.AssignmentMap,
	manualSplits models.ItemManualSplitsMap,
	overrides models.ItemOverridesMap,
	method models.DistributionMethod,
) *models.SavedSplit {
	assignments = receipt.SanitizeAssignments(r, assignments)
	return &models.SavedSplit{
		Receipt:            *r.Clone(),
		Assignments:        assignments,
		ManualSplits:       receipt.SanitizeManualSplits(r, manualSplits),
		Overrides:          receipt.SanitizeOverrides(r, overrides),
		DistributionMethod: method,
		Participants:       assignments.Participants(r),
		ItemCount:          len(r.Items),
		Total:              r.Total,
		Currency:           r.Currency,
	}
}

func storageError(err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return connect.NewError(connect.CodeNotFound, err)
	}
	slog.Error("Storage operation failed", "error", err)
	return connect.NewError(connect.CodeInternal, errors.New("storage error"))
}
