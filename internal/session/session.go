// Package session holds the editable state of one bill being split: the
// receipt, who shares which item, manual splits, tax/tip overrides, the
// chosen distribution method and the chat transcript.
//
// A Session is the only mutable state in the system. The calculator never
// sees it directly; callers take a Snapshot and pass the copied values in.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/splitsmart/internal/models"
)

var (
	ErrNoReceipt     = errors.New("no receipt uploaded yet")
	ErrUnknownItem   = errors.New("unknown receipt item")
	ErrNothingToUndo = errors.New("nothing to undo")
	ErrNothingToRedo = errors.New("nothing to redo")
	ErrStale         = errors.New("split changed since it was read")
)

// Snapshot is a deep copy of the calculator inputs held by a session.
type Snapshot struct {
	Receipt            *models.Receipt
	Assignments        models.AssignmentMap
	ManualSplits       models.ItemManualSplitsMap
	Overrides          models.ItemOverridesMap
	DistributionMethod models.DistributionMethod
	CanUndo            bool
	CanRedo            bool

	// Version changes with every edit, undo, redo and receipt load.
	Version uint64
}

// state is one undo/redo step. The distribution method is a view setting and
// is not part of it.
type state struct {
	receipt      *models.Receipt
	assignments  models.AssignmentMap
	manualSplits models.ItemManualSplitsMap
	overrides    models.ItemOverridesMap
}

// Session is safe for concurrent use.
type Session struct {
	mu sync.Mutex

	id        string
	userName  string
	createdAt time.Time

	receipt      *models.Receipt
	assignments  models.AssignmentMap
	manualSplits models.ItemManualSplitsMap
	overrides    models.ItemOverridesMap
	method       models.DistributionMethod

	messages []models.ChatMessage

	undo     []state
	redo     []state
	maxDepth int
	version  uint64
}

// New creates an empty session. maxDepth bounds the undo history.
func New(id, userName string, maxDepth int) *Session {
	if maxDepth < 1 {
		maxDepth = 1
	}
	return &Session{
		id:           id,
		userName:     userName,
		createdAt:    time.Now(),
		assignments:  models.AssignmentMap{},
		manualSplits: models.ItemManualSplitsMap{},
		overrides:    models.ItemOverridesMap{},
		method:       models.Proportional,
		maxDepth:     maxDepth,
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) CreatedAt() time.Time { return s.createdAt }

// UserName is who "I", "me" and "my" refer to in chat commands.
func (s *Session) UserName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userName
}

func (s *Session) SetUserName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userName = name
}

// Snapshot returns copies of the current calculator inputs.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Receipt:            s.receipt.Clone(),
		Assignments:        s.assignments.Clone(),
		ManualSplits:       s.manualSplits.Clone(),
		Overrides:          s.overrides.Clone(),
		DistributionMethod: s.method,
		CanUndo:            len(s.undo) > 0,
		CanRedo:            len(s.redo) > 0,
		Version:            s.version,
	}
}

// Messages returns a copy of the chat transcript.
func (s *Session) Messages() []models.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.ChatMessage(nil), s.messages...)
}

// AddMessage appends to the chat transcript and returns the stored message.
func (s *Session) AddMessage(role models.ChatRole, content string) models.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg := models.ChatMessage{
		ID:        uuid.New().String(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UnixMilli(),
	}
	s.messages = append(s.messages, msg)
	return msg
}

// LoadReceipt replaces the receipt and starts over: assignments, manual
// splits, overrides and undo history are cleared.
func (s *Session) LoadReceipt(r *models.Receipt) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.receipt = r.Clone()
	s.assignments = models.AssignmentMap{}
	s.manualSplits = models.ItemManualSplitsMap{}
	s.overrides = models.ItemOverridesMap{}
	s.undo, s.redo = nil, nil
	s.version++
}

// Restore loads a saved split, including its distribution method.
func (s *Session) Restore(saved *models.SavedSplit) {
	s.mu.Lock()
	defer s.mu.Unlock()
	receipt := saved.Receipt
	s.receipt = receipt.Clone()
	s.assignments = saved.Assignments.Clone()
	s.manualSplits = saved.ManualSplits.Clone()
	s.overrides = saved.Overrides.Clone()
	if saved.DistributionMethod != "" {
		s.method = saved.DistributionMethod
	}
	s.undo, s.redo = nil, nil
	s.version++
}

// SetAssignmentsAt replaces the whole assignment map, as a chat command does,
// but only if nothing was edited
// since the snapshot with the given version was taken. Otherwise it returns
// ErrStale and leaves the session untouched.
func (s *Session) SetAssignmentsAt(version uint64, assignments models.AssignmentMap) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.receipt == nil {
		return ErrNoReceipt
	}
	if s.version != version {
		return ErrStale
	}
	s.record()
	s.assignments = assignments.Clone()
	return nil
}

// AssignItem sets who shares one item. An empty list unassigns it.
func (s *Session) AssignItem(itemID string, names []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkItem(itemID); err != nil {
		return err
	}
	s.record()
	if len(names) == 0 {
		delete(s.assignments, itemID)
		return nil
	}
	s.assignments[itemID] = append([]string(nil), names...)
	return nil
}

// SetManualSplit sets explicit per-person amounts for one item. A nil split
// returns the item to equal division.
func (s *Session) SetManualSplit(itemID string, split map[string]float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkItem(itemID); err != nil {
		return err
	}
	s.record()
	if split == nil {
		delete(s.manualSplits, itemID)
		return nil
	}
	inner := make(map[string]float64, len(split))
	for name, amount := range split {
		inner[name] = amount
	}
	s.manualSplits[itemID] = inner
	return nil
}

// SetOverrides replaces the per-item tax/tip overrides.
func (s *Session) SetOverrides(overrides models.ItemOverridesMap) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.receipt == nil {
		return ErrNoReceipt
	}
	s.record()
	s.overrides = overrides.Clone()
	return nil
}

// UpdateItem replaces the receipt item with the same ID.
func (s *Session) UpdateItem(item models.ReceiptItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkItem(item.ID); err != nil {
		return err
	}
	s.record()
	s.receipt = s.receipt.Clone()
	for i := range s.receipt.Items {
		if s.receipt.Items[i].ID == item.ID {
			s.receipt.Items[i] = item
		}
	}
	return nil
}

// SetMethod switches the distribution method. Manual splits and overrides are
// kept so switching back restores them.
func (s *Session) SetMethod(method models.DistributionMethod) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.method = method
}

// Undo reverts the last edit.
func (s *Session) Undo() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.undo) == 0 {
		return ErrNothingToUndo
	}
	prev := s.undo[len(s.undo)-1]
	s.undo = s.undo[:len(s.undo)-1]
	s.redo = append(s.redo, s.current())
	s.apply(prev)
	return nil
}

// Redo re-applies the last undone edit.
func (s *Session) Redo() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.redo) == 0 {
		return ErrNothingToRedo
	}
	next := s.redo[len(s.redo)-1]
	s.redo = s.redo[:len(s.redo)-1]
	s.undo = append(s.undo, s.current())
	s.apply(next)
	return nil
}

func (s *Session) checkItem(itemID string) error {
	if s.receipt == nil {
		return ErrNoReceipt
	}
	if _, ok := s.receipt.Item(itemID); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownItem, itemID)
	}
	return nil
}

// record pushes the current state onto the undo stack and clears redo.
// Callers hold s.mu.
func (s *Session) record() {
	s.undo = append(s.undo, s.current())
	if len(s.undo) > s.maxDepth {
		s.undo = s.undo[len(s.undo)-s.maxDepth:]
	}
	s.redo = nil
	s.version++
}

func (s *Session) current() state {
	return state{
		receipt:      s.receipt.Clone(),
		assignments:  s.assignments.Clone(),
		manualSplits: s.manualSplits.Clone(),
		overrides:    s.overrides.Clone(),
	}
}

func (s *Session) apply(st state) {
	s.version++
	s.receipt = st.receipt
	s.assignments = st.assignments
	s.manualSplits = st.manualSplits
	s.overrides = st.overrides
}
