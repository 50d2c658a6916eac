// Package review models the human review workflow over pending match
// suggestions: an ordered list with a cursor, single-key actions, a short
// recent-approvals log, and derived statistics.
//
// Review state is client-local. The durable transitions (approve/reject)
// happen in the reconcile service; the session only tracks which suggestion
// is in front of the reviewer.
package review

import (
	"errors"
	"time"

	"github.com/previa-finance/previa-backend/internal/infrastructure/storage"
)

// ErrUndoNotAvailable is returned by Undo. A real compensating transaction
// (delete the match row, revert suggestion and transaction status) has not
// been built, and a silent no-op would corrupt the reviewer's mental model,
// so the affordance reports itself as unavailable instead.
var ErrUndoNotAvailable = errors.New("review: undo is not yet available")

// RecentApprovalsLimit caps the client-local approvals log.
const RecentApprovalsLimit = 5

// Action is a review decision on the current suggestion
type Action int

const (
	ActionNone Action = iota
	ActionApprove
	ActionReject
	ActionSkip
)

// ActionForKey maps a keyboard shortcut to a review action:
// A approve, R reject, N skip/next.
func ActionForKey(key rune) (Action, bool) {
	switch key {
	case 'a', 'A':
		return ActionApprove, true
	case 'r', 'R':
		return ActionReject, true
	case 'n', 'N':
		return ActionSkip, true
	default:
		return ActionNone, false
	}
}

// ApprovalRecord is one entry in the recent-approvals log
type ApprovalRecord struct {
	SuggestionID string    `json:"suggestion_id"`
	Timestamp    time.Time `json:"timestamp"`
}

// Session is the review cursor over an ordered suggestion list.
//
// With Wrap enabled (the default UX) advancing past the last suggestion
// loops back to the first, supporting continuous review; with Wrap disabled
// the cursor stops on the last item.
type Session struct {
	suggestions []*storage.PendingSuggestion
	cursor      int
	wrap        bool
	recent      []ApprovalRecord
}

// NewSession creates a review session over suggestions, which are expected
// to be sorted by confidence descending (the store's ordering).
func NewSession(suggestions []*storage.PendingSuggestion, wrap bool) *Session {
	return &Session{
		suggestions: suggestions,
		wrap:        wrap,
	}
}

// Len returns the number of pending suggestions
func (s *Session) Len() int {
	return len(s.suggestions)
}

// Current returns the suggestion under the cursor, or nil when the session
// is empty.
func (s *Session) Current() *storage.PendingSuggestion {
	if len(s.suggestions) == 0 {
		return nil
	}
	if s.cursor >= len(s.suggestions) {
		s.cursor = 0
	}
	return s.suggestions[s.cursor]
}

// Skip advances the cursor without resolving the current suggestion
func (s *Session) Skip() {
	if len(s.suggestions) == 0 {
		return
	}
	s.cursor++
	if s.cursor >= len(s.suggestions) {
		if s.wrap {
			s.cursor = 0
		} else {
			s.cursor = len(s.suggestions) - 1
		}
	}
}

// Resolve removes a suggestion from the pending list after a successful
// approve or reject and leaves the cursor on the next pending item. It is
// only called after the durable transition succeeded; a failed mutation
// keeps the cursor in place so the reviewer can retry.
func (s *Session) Resolve(suggestionID string) {
	idx := -1
	for i, sg := range s.suggestions {
		if sg.ID == suggestionID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}

	s.suggestions = append(s.suggestions[:idx], s.suggestions[idx+1:]...)
	if idx < s.cursor {
		s.cursor--
	}
	if s.cursor >= len(s.suggestions) {
		if s.wrap || len(s.suggestions) == 0 {
			s.cursor = 0
		} else {
			s.cursor = len(s.suggestions) - 1
		}
	}
}

// RecordApproval appends to the recent-approvals log, newest first,
// capped at RecentApprovalsLimit.
func (s *Session) RecordApproval(suggestionID string) {
	record := ApprovalRecord{
		SuggestionID: suggestionID,
		Timestamp:    time.Now().UTC(),
	}
	s.recent = append([]ApprovalRecord{record}, s.recent...)
	if len(s.recent) > RecentApprovalsLimit {
		s.recent = s.recent[:RecentApprovalsLimit]
	}
}

// RecentApprovals returns the capped approvals log, newest first
func (s *Session) RecentApprovals() []ApprovalRecord {
	return s.recent
}

// Undo reverses a recent approval. Not implemented; see ErrUndoNotAvailable.
func (s *Session) Undo(string) error {
	return ErrUndoNotAvailable
}

// Refresh replaces the suggestion list (after a re-fetch) and keeps the
// cursor within bounds.
func (s *Session) Refresh(suggestions []*storage.PendingSuggestion) {
	s.suggestions = suggestions
	if s.cursor >= len(s.suggestions) {
		s.cursor = 0
	}
}

// Suggestions returns the pending list in review order
func (s *Session) Suggestions() []*storage.PendingSuggestion {
	return s.suggestions
}
