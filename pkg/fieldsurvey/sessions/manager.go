// Package sessions manages field sessions and their inactivity timeout.
//
// The timeout is derived lazily from UpdatedAt: an open session whose inactivity reached the
// timeout is reported as timed out immediately, and the first operation that observes it
// commits the timeout to the store. The session-timeout job sweeps the rest.
package sessions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/case-framework/field-survey-backend/pkg/docstore"
	"github.com/case-framework/field-survey-backend/pkg/fieldsurvey/types"
	"github.com/case-framework/field-survey-backend/pkg/metrics"
	"github.com/case-framework/field-survey-backend/pkg/utils"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
)

const (
	DefaultTimeout       = 2 * time.Hour
	DefaultWarningWindow = 15 * time.Minute
)

type Manager struct {
	store         docstore.Gateway
	clock         utils.Clock
	Timeout       time.Duration
	WarningWindow time.Duration
}

func NewManager(store docstore.Gateway, clock utils.Clock) *Manager {
	if clock == nil {
		clock = utils.SystemClock
	}
	return &Manager{
		store:         store,
		clock:         clock,
		Timeout:       DefaultTimeout,
		WarningWindow: DefaultWarningWindow,
	}
}

func (m *Manager) elapsed(s types.Session) time.Duration {
	return m.clock.Now().Sub(s.UpdatedAt)
}

// TimeRemaining is the time left before the inactivity timeout, zero for sessions that are not open.
func (m *Manager) TimeRemaining(s types.Session) time.Duration {
	if !s.IsOpen() {
		return 0
	}
	remaining := m.Timeout - m.elapsed(s)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// IsNearTimeout reports whether an open session is inside the warning window before its timeout.
func (m *Manager) IsNearTimeout(s types.Session) bool {
	if !s.IsOpen() {
		return false
	}
	elapsed := m.elapsed(s)
	return elapsed >= m.Timeout-m.WarningWindow && elapsed < m.Timeout
}

func (m *Manager) HasTimedOut(s types.Session) bool {
	return s.IsOpen() && m.elapsed(s) >= m.Timeout
}

// LiveStatus is the stored status, except that an open session past its timeout reports timeout.
func (m *Manager) LiveStatus(s types.Session) types.SessionStatus {
	if m.HasTimedOut(s) {
		return types.SESSION_STATUS_TIMEOUT
	}
	return s.Status
}

func (m *Manager) Describe(s types.Session) types.SessionState {
	remaining := m.TimeRemaining(s)
	return types.SessionState{
		Session:              s,
		LiveStatus:           m.LiveStatus(s),
		TimeRemaining:        remaining,
		TimeRemainingSeconds: int64(remaining / time.Second),
		NearTimeout:          m.IsNearTimeout(s),
	}
}

// Create opens a session for a respondent. An enumerator holds at most one open session.
func (m *Manager) Create(ctx context.Context, respondentID string, enumeratorID string) (types.Session, error) {
	if respondentID == "" || enumeratorID == "" {
		return types.Session{}, types.NewError(types.KIND_INVALID_INPUT, "respondent and enumerator are required")
	}

	respondent := types.Respondent{}
	if err := m.store.Get(ctx, types.COLLECTION_NAME_RESPONDENTS, respondentID, &respondent); err != nil {
		if docstore.IsNotFound(err) {
			return types.Session{}, types.NewError(types.KIND_NOT_FOUND, "respondent not found")
		}
		return types.Session{}, err
	}

	active, err := m.findOpen(ctx, enumeratorID)
	if err != nil {
		return types.Session{}, err
	}
	if active != nil {
		if !m.HasTimedOut(*active) {
			return types.Session{}, &types.Error{
				Kind:    types.KIND_ACTIVE_SESSION_EXISTS,
				Message: "session " + active.ID + " is still open",
				Current: string(active.Status),
			}
		}
		if _, err := m.close(ctx, *active, types.CLOSE_REASON_TIMEOUT); err != nil && !errors.Is(err, types.ErrAlreadyClosed) {
			return types.Session{}, err
		}
	}

	now := m.clock.Now().UTC()
	session := types.Session{
		ID:           uuid.NewString(),
		RespondentID: respondentID,
		EnumeratorID: enumeratorID,
		StartTime:    now,
		Status:       types.SESSION_STATUS_OPEN,
		UpdatedAt:    now,
	}
	if _, err := m.store.Create(ctx, types.COLLECTION_NAME_SESSIONS, session); err != nil {
		if docstore.IsConflict(err) {
			return types.Session{}, &types.Error{
				Kind:    types.KIND_ACTIVE_SESSION_EXISTS,
				Message: "another session was opened concurrently",
				Err:     err,
			}
		}
		return types.Session{}, fmt.Errorf("creating session: %w", err)
	}

	metrics.SessionsOpened.Inc()
	slog.Info("session opened", slog.String("sessionId", session.ID), slog.String("enumeratorId", enumeratorID))
	return session, nil
}

// Touch records activity on an open session and restarts its inactivity timer.
func (m *Manager) Touch(ctx context.Context, id string) (types.Session, error) {
	session, err := m.get(ctx, id)
	if err != nil {
		return session, err
	}
	if !session.IsOpen() {
		return session, types.NewStateConflict(types.KIND_ALREADY_CLOSED, string(session.Status), string(types.SESSION_STATUS_OPEN))
	}
	if m.HasTimedOut(session) {
		if _, err := m.close(ctx, session, types.CLOSE_REASON_TIMEOUT); err != nil && !errors.Is(err, types.ErrAlreadyClosed) {
			return session, err
		}
		return session, types.NewStateConflict(types.KIND_ALREADY_CLOSED, string(types.SESSION_STATUS_TIMEOUT), string(types.SESSION_STATUS_OPEN))
	}

	updated := types.Session{}
	err = m.store.Update(ctx, types.COLLECTION_NAME_SESSIONS, id,
		bson.M{"status": types.SESSION_STATUS_OPEN},
		bson.M{"updatedAt": m.clock.Now().UTC()},
		&updated,
	)
	if err != nil {
		return session, m.translateConflict(ctx, id, err, types.SESSION_STATUS_OPEN)
	}
	return updated, nil
}

// Close ends an open session. A timeout reason stores status timeout, any other reason closed.
// Concurrent closes race on the stored status: the first write wins and the others fail with
// AlreadyClosed.
func (m *Manager) Close(ctx context.Context, id string, reason types.CloseReason) (types.Session, error) {
	if !reason.IsValid() {
		return types.Session{}, types.NewError(types.KIND_INVALID_INPUT, fmt.Sprintf("unknown close reason %q", reason))
	}
	session, err := m.get(ctx, id)
	if err != nil {
		return session, err
	}
	target := statusForReason(reason)
	if !session.IsOpen() {
		return session, types.NewStateConflict(types.KIND_ALREADY_CLOSED, string(session.Status), string(target))
	}
	if reason != types.CLOSE_REASON_TIMEOUT && m.HasTimedOut(session) {
		if _, err := m.close(ctx, session, types.CLOSE_REASON_TIMEOUT); err != nil && !errors.Is(err, types.ErrAlreadyClosed) {
			return session, err
		}
		return session, types.NewStateConflict(types.KIND_ALREADY_CLOSED, string(types.SESSION_STATUS_TIMEOUT), string(target))
	}
	return m.close(ctx, session, reason)
}

func statusForReason(reason types.CloseReason) types.SessionStatus {
	if reason == types.CLOSE_REASON_TIMEOUT {
		return types.SESSION_STATUS_TIMEOUT
	}
	return types.SESSION_STATUS_CLOSED
}

func (m *Manager) close(ctx context.Context, session types.Session, reason types.CloseReason) (types.Session, error) {
	target := statusForReason(reason)
	now := m.clock.Now().UTC()

	updated := types.Session{}
	err := m.store.Update(ctx, types.COLLECTION_NAME_SESSIONS, session.ID,
		bson.M{"status": types.SESSION_STATUS_OPEN},
		bson.M{
			"status":      target,
			"closeReason": reason,
			"endTime":     now,
			"updatedAt":   now,
		},
		&updated,
	)
	if err != nil {
		return session, m.translateConflict(ctx, session.ID, err, target)
	}

	metrics.SessionsClosed.WithLabelValues(string(reason)).Inc()
	slog.Info("session closed", slog.String("sessionId", session.ID), slog.String("reason", string(reason)))
	return updated, nil
}

// translateConflict turns a failed status expectation into AlreadyClosed carrying the stored status.
func (m *Manager) translateConflict(ctx context.Context, id string, err error, target types.SessionStatus) error {
	if docstore.IsNotFound(err) {
		return types.NewError(types.KIND_NOT_FOUND, "session not found")
	}
	if !docstore.IsConflict(err) {
		return err
	}
	current := types.Session{}
	if getErr := m.store.Get(ctx, types.COLLECTION_NAME_SESSIONS, id, &current); getErr != nil {
		slog.Warn("could not reload session after conflict", slog.String("sessionId", id), slog.String("error", getErr.Error()))
	}
	return &types.Error{
		Kind:    types.KIND_ALREADY_CLOSED,
		Current: string(current.Status),
		Target:  string(target),
		Err:     err,
	}
}

func (m *Manager) get(ctx context.Context, id string) (types.Session, error) {
	session := types.Session{}
	if err := m.store.Get(ctx, types.COLLECTION_NAME_SESSIONS, id, &session); err != nil {
		if docstore.IsNotFound(err) {
			return session, types.NewError(types.KIND_NOT_FOUND, "session not found")
		}
		return session, err
	}
	return session, nil
}

// Get returns a session, committing its timeout first if it has lapsed.
func (m *Manager) Get(ctx context.Context, id string) (types.Session, error) {
	session, err := m.get(ctx, id)
	if err != nil {
		return session, err
	}
	return m.commitIfTimedOut(ctx, session)
}

// GetActive returns the enumerator's open session, or NotFound if there is none.
func (m *Manager) GetActive(ctx context.Context, enumeratorID string) (types.Session, error) {
	active, err := m.findOpen(ctx, enumeratorID)
	if err != nil {
		return types.Session{}, err
	}
	if active == nil {
		return types.Session{}, types.NewError(types.KIND_NOT_FOUND, "no open session")
	}
	session, err := m.commitIfTimedOut(ctx, *active)
	if err != nil {
		return session, err
	}
	if !session.IsOpen() {
		return types.Session{}, types.NewError(types.KIND_NOT_FOUND, "no open session")
	}
	return session, nil
}

func (m *Manager) commitIfTimedOut(ctx context.Context, session types.Session) (types.Session, error) {
	if !m.HasTimedOut(session) {
		return session, nil
	}
	closed, err := m.close(ctx, session, types.CLOSE_REASON_TIMEOUT)
	if err != nil {
		if errors.Is(err, types.ErrAlreadyClosed) {
			return m.get(ctx, session.ID)
		}
		return session, err
	}
	return closed, nil
}

func (m *Manager) findOpen(ctx context.Context, enumeratorID string) (*types.Session, error) {
	open := []types.Session{}
	err := m.store.List(ctx, types.COLLECTION_NAME_SESSIONS, docstore.Query{
		Filter: bson.M{"enumeratorId": enumeratorID, "status": types.SESSION_STATUS_OPEN},
		Limit:  1,
	}, &open)
	if err != nil {
		return nil, err
	}
	if len(open) == 0 {
		return nil, nil
	}
	return &open[0], nil
}

// CloseTimedOut commits the timeout of every open session whose inactivity reached the timeout
// and returns how many it closed.
func (m *Manager) CloseTimedOut(ctx context.Context) (int, error) {
	cutoff := m.clock.Now().UTC().Add(-m.Timeout)
	expired := []types.Session{}
	err := m.store.List(ctx, types.COLLECTION_NAME_SESSIONS, docstore.Query{
		Filter: bson.M{
			"status":    types.SESSION_STATUS_OPEN,
			"updatedAt": bson.M{"$lte": cutoff},
		},
		Sort: []docstore.SortField{{Key: "updatedAt"}},
	}, &expired)
	if err != nil {
		return 0, err
	}

	closed := 0
	for _, session := range expired {
		if err := ctx.Err(); err != nil {
			return closed, err
		}
		if _, err := m.close(ctx, session, types.CLOSE_REASON_TIMEOUT); err != nil {
			if errors.Is(err, types.ErrAlreadyClosed) {
				continue
			}
			slog.Error("could not commit session timeout", slog.String("sessionId", session.ID), slog.String("error", err.Error()))
			continue
		}
		closed++
	}
	return closed, nil
}
