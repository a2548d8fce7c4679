package sessions

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/case-framework/field-survey-backend/pkg/docstore"
	"github.com/case-framework/field-survey-backend/pkg/fieldsurvey/types"
	"github.com/case-framework/field-survey-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testStart = time.Date(2024, 5, 6, 8, 0, 0, 0, time.UTC)

type fixture struct {
	store   *docstore.MemoryStore
	clock   *testutil.FakeClock
	manager *Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := docstore.NewMemoryStore(types.Indexes)
	clock := testutil.NewFakeClock(testStart)
	return &fixture{store: store, clock: clock, manager: NewManager(store, clock)}
}

func (f *fixture) respondent(t *testing.T, id string, pseudonym string) {
	t.Helper()
	_, err := f.store.Create(context.Background(), types.COLLECTION_NAME_RESPONDENTS, types.Respondent{
		ID:           id,
		Pseudonym:    pseudonym,
		AgeRange:     types.AGE_RANGE_35_44,
		Sex:          types.SEX_OTHER,
		AdminArea:    "East",
		ConsentGiven: true,
		EnumeratorID: "enum-1",
		CreatedAt:    testStart,
	})
	require.NoError(t, err)
}

func openSession(updatedAt time.Time) types.Session {
	return types.Session{ID: "s", Status: types.SESSION_STATUS_OPEN, StartTime: updatedAt, UpdatedAt: updatedAt}
}

func TestTimeoutComputation(t *testing.T) {
	clock := testutil.NewFakeClock(testStart)
	manager := NewManager(docstore.NewMemoryStore(nil), clock)
	session := openSession(testStart)

	tests := []struct {
		name          string
		elapsed       time.Duration
		wantRemaining time.Duration
		wantNear      bool
		wantTimedOut  bool
	}{
		{name: "fresh", elapsed: 0, wantRemaining: 2 * time.Hour},
		{name: "100 minutes", elapsed: 100 * time.Minute, wantRemaining: 20 * time.Minute},
		{name: "warning starts at 105 minutes", elapsed: 105 * time.Minute, wantRemaining: 15 * time.Minute, wantNear: true},
		{name: "110 minutes", elapsed: 110 * time.Minute, wantRemaining: 10 * time.Minute, wantNear: true},
		{name: "119 minutes", elapsed: 119 * time.Minute, wantRemaining: time.Minute, wantNear: true},
		{name: "exactly two hours", elapsed: 2 * time.Hour, wantRemaining: 0, wantTimedOut: true},
		{name: "121 minutes", elapsed: 121 * time.Minute, wantRemaining: 0, wantTimedOut: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock.Set(testStart.Add(tt.elapsed))
			assert.Equal(t, tt.wantRemaining, manager.TimeRemaining(session))
			assert.Equal(t, tt.wantNear, manager.IsNearTimeout(session))
			assert.Equal(t, tt.wantTimedOut, manager.HasTimedOut(session))

			wantLive := types.SESSION_STATUS_OPEN
			if tt.wantTimedOut {
				wantLive = types.SESSION_STATUS_TIMEOUT
			}
			assert.Equal(t, wantLive, manager.LiveStatus(session))
		})
	}
}

func TestTimeoutComputationForClosedSessions(t *testing.T) {
	clock := testutil.NewFakeClock(testStart.Add(110 * time.Minute))
	manager := NewManager(docstore.NewMemoryStore(nil), clock)

	for _, status := range []types.SessionStatus{types.SESSION_STATUS_CLOSED, types.SESSION_STATUS_TIMEOUT} {
		session := types.Session{Status: status, UpdatedAt: testStart}
		assert.Zero(t, manager.TimeRemaining(session))
		assert.False(t, manager.IsNearTimeout(session))
		assert.False(t, manager.HasTimedOut(session))
		assert.Equal(t, status, manager.LiveStatus(session))
	}
}

func TestDescribe(t *testing.T) {
	clock := testutil.NewFakeClock(testStart.Add(110 * time.Minute))
	manager := NewManager(docstore.NewMemoryStore(nil), clock)

	state := manager.Describe(openSession(testStart))
	assert.Equal(t, types.SESSION_STATUS_OPEN, state.LiveStatus)
	assert.Equal(t, 10*time.Minute, state.TimeRemaining)
	assert.Equal(t, int64(600), state.TimeRemainingSeconds)
	assert.True(t, state.NearTimeout)
}

func TestCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("opens a session", func(t *testing.T) {
		f := newFixture(t)
		f.respondent(t, "resp-1", "R-00001")

		session, err := f.manager.Create(ctx, "resp-1", "enum-1")
		require.NoError(t, err)
		assert.Equal(t, types.SESSION_STATUS_OPEN, session.Status)
		assert.Equal(t, testStart, session.StartTime)
		assert.Equal(t, testStart, session.UpdatedAt)
		assert.Nil(t, session.EndTime)
	})

	t.Run("unknown respondent", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.manager.Create(ctx, "missing", "enum-1")
		assert.ErrorIs(t, err, types.ErrNotFound)
	})

	t.Run("missing ids", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.manager.Create(ctx, "", "enum-1")
		assert.ErrorIs(t, err, types.ErrInvalidInput)
	})

	t.Run("one open session per enumerator", func(t *testing.T) {
		f := newFixture(t)
		f.respondent(t, "resp-1", "R-00001")
		f.respondent(t, "resp-2", "R-00002")

		_, err := f.manager.Create(ctx, "resp-1", "enum-1")
		require.NoError(t, err)

		_, err = f.manager.Create(ctx, "resp-2", "enum-1")
		assert.ErrorIs(t, err, types.ErrActiveSessionExists)

		_, err = f.manager.Create(ctx, "resp-2", "enum-2")
		assert.NoError(t, err)
	})

	t.Run("closed session frees the enumerator", func(t *testing.T) {
		f := newFixture(t)
		f.respondent(t, "resp-1", "R-00001")

		first, err := f.manager.Create(ctx, "resp-1", "enum-1")
		require.NoError(t, err)
		_, err = f.manager.Close(ctx, first.ID, types.CLOSE_REASON_COMPLETED)
		require.NoError(t, err)

		second, err := f.manager.Create(ctx, "resp-1", "enum-1")
		require.NoError(t, err)
		assert.NotEqual(t, first.ID, second.ID)
	})

	t.Run("lapsed open session is timed out first", func(t *testing.T) {
		f := newFixture(t)
		f.respondent(t, "resp-1", "R-00001")

		first, err := f.manager.Create(ctx, "resp-1", "enum-1")
		require.NoError(t, err)
		f.clock.Advance(3 * time.Hour)

		_, err = f.manager.Create(ctx, "resp-1", "enum-1")
		require.NoError(t, err)

		stored := types.Session{}
		require.NoError(t, f.store.Get(ctx, types.COLLECTION_NAME_SESSIONS, first.ID, &stored))
		assert.Equal(t, types.SESSION_STATUS_TIMEOUT, stored.Status)
		assert.Equal(t, types.CLOSE_REASON_TIMEOUT, stored.CloseReason)
	})

	t.Run("index arbitrates a stale pre-check", func(t *testing.T) {
		inner := docstore.NewMemoryStore(types.Indexes)
		store := testutil.NewFaultyStore(inner)
		clock := testutil.NewFakeClock(testStart)
		manager := NewManager(store, clock)
		f := &fixture{store: inner, clock: clock, manager: manager}
		f.respondent(t, "resp-1", "R-00001")

		_, err := manager.Create(ctx, "resp-1", "enum-1")
		require.NoError(t, err)

		store.StaleListNext(1)
		_, err = manager.Create(ctx, "resp-1", "enum-1")
		assert.ErrorIs(t, err, types.ErrActiveSessionExists)
	})

	t.Run("concurrent creates leave one open session", func(t *testing.T) {
		f := newFixture(t)
		f.respondent(t, "resp-1", "R-00001")

		var wg sync.WaitGroup
		var mu sync.Mutex
		succeeded := 0
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := f.manager.Create(ctx, "resp-1", "enum-1"); err == nil {
					mu.Lock()
					succeeded++
					mu.Unlock()
				} else {
					assert.ErrorIs(t, err, types.ErrActiveSessionExists)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, succeeded)
	})
}

func TestTouch(t *testing.T) {
	ctx := context.Background()

	t.Run("resets the inactivity timer", func(t *testing.T) {
		f := newFixture(t)
		f.respondent(t, "resp-1", "R-00001")
		session, err := f.manager.Create(ctx, "resp-1", "enum-1")
		require.NoError(t, err)

		f.clock.Advance(110 * time.Minute)
		assert.True(t, f.manager.IsNearTimeout(session))

		touched, err := f.manager.Touch(ctx, session.ID)
		require.NoError(t, err)
		assert.Equal(t, testStart.Add(110*time.Minute), touched.UpdatedAt)
		assert.False(t, f.manager.IsNearTimeout(touched))
		assert.Equal(t, 2*time.Hour, f.manager.TimeRemaining(touched))
	})

	t.Run("closed session", func(t *testing.T) {
		f := newFixture(t)
		f.respondent(t, "resp-1", "R-00001")
		session, err := f.manager.Create(ctx, "resp-1", "enum-1")
		require.NoError(t, err)
		_, err = f.manager.Close(ctx, session.ID, types.CLOSE_REASON_MANUAL)
		require.NoError(t, err)

		_, err = f.manager.Touch(ctx, session.ID)
		assert.ErrorIs(t, err, types.ErrAlreadyClosed)
	})

	t.Run("lapsed session commits timeout", func(t *testing.T) {
		f := newFixture(t)
		f.respondent(t, "resp-1", "R-00001")
		session, err := f.manager.Create(ctx, "resp-1", "enum-1")
		require.NoError(t, err)
		f.clock.Advance(121 * time.Minute)

		_, err = f.manager.Touch(ctx, session.ID)
		require.ErrorIs(t, err, types.ErrAlreadyClosed)
		var domainErr *types.Error
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, string(types.SESSION_STATUS_TIMEOUT), domainErr.Current)

		stored := types.Session{}
		require.NoError(t, f.store.Get(ctx, types.COLLECTION_NAME_SESSIONS, session.ID, &stored))
		assert.Equal(t, types.SESSION_STATUS_TIMEOUT, stored.Status)
	})

	t.Run("unknown session", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.manager.Touch(ctx, "missing")
		assert.ErrorIs(t, err, types.ErrNotFound)
	})
}

func TestClose(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		reason     types.CloseReason
		wantStatus types.SessionStatus
	}{
		{name: "manual", reason: types.CLOSE_REASON_MANUAL, wantStatus: types.SESSION_STATUS_CLOSED},
		{name: "completed", reason: types.CLOSE_REASON_COMPLETED, wantStatus: types.SESSION_STATUS_CLOSED},
		{name: "timeout", reason: types.CLOSE_REASON_TIMEOUT, wantStatus: types.SESSION_STATUS_TIMEOUT},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.respondent(t, "resp-1", "R-00001")
			session, err := f.manager.Create(ctx, "resp-1", "enum-1")
			require.NoError(t, err)
			f.clock.Advance(30 * time.Minute)

			closed, err := f.manager.Close(ctx, session.ID, tt.reason)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, closed.Status)
			assert.Equal(t, tt.reason, closed.CloseReason)
			require.NotNil(t, closed.EndTime)
			assert.Equal(t, testStart.Add(30*time.Minute), *closed.EndTime)

			_, err = f.manager.Close(ctx, session.ID, types.CLOSE_REASON_MANUAL)
			assert.ErrorIs(t, err, types.ErrAlreadyClosed)
		})
	}

	t.Run("invalid reason", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.manager.Close(ctx, "any", types.CloseReason("bored"))
		assert.ErrorIs(t, err, types.ErrInvalidInput)
	})

	t.Run("manual close of a lapsed session records the timeout", func(t *testing.T) {
		f := newFixture(t)
		f.respondent(t, "resp-1", "R-00001")
		session, err := f.manager.Create(ctx, "resp-1", "enum-1")
		require.NoError(t, err)
		f.clock.Advance(125 * time.Minute)

		_, err = f.manager.Close(ctx, session.ID, types.CLOSE_REASON_MANUAL)
		assert.ErrorIs(t, err, types.ErrAlreadyClosed)

		stored, err := f.manager.Get(ctx, session.ID)
		require.NoError(t, err)
		assert.Equal(t, types.SESSION_STATUS_TIMEOUT, stored.Status)
	})

	t.Run("racing closes: first write wins", func(t *testing.T) {
		inner := docstore.NewMemoryStore(types.Indexes)
		store := testutil.NewFaultyStore(inner)
		clock := testutil.NewFakeClock(testStart)
		manager := NewManager(store, clock)
		f := &fixture{store: inner, clock: clock, manager: manager}
		f.respondent(t, "resp-1", "R-00001")
		session, err := manager.Create(ctx, "resp-1", "enum-1")
		require.NoError(t, err)

		// The first close lands, but the second caller already read the session as open.
		_, err = manager.Close(ctx, session.ID, types.CLOSE_REASON_MANUAL)
		require.NoError(t, err)
		_, err = manager.close(ctx, session, types.CLOSE_REASON_TIMEOUT)
		require.ErrorIs(t, err, types.ErrAlreadyClosed)

		var domainErr *types.Error
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, string(types.SESSION_STATUS_CLOSED), domainErr.Current)
		assert.Equal(t, string(types.SESSION_STATUS_TIMEOUT), domainErr.Target)
	})

	t.Run("terminal states never reopen", func(t *testing.T) {
		f := newFixture(t)
		f.respondent(t, "resp-1", "R-00001")
		session, err := f.manager.Create(ctx, "resp-1", "enum-1")
		require.NoError(t, err)
		_, err = f.manager.Close(ctx, session.ID, types.CLOSE_REASON_TIMEOUT)
		require.NoError(t, err)

		_, err = f.manager.Touch(ctx, session.ID)
		assert.ErrorIs(t, err, types.ErrAlreadyClosed)
		_, err = f.manager.Close(ctx, session.ID, types.CLOSE_REASON_COMPLETED)
		assert.ErrorIs(t, err, types.ErrAlreadyClosed)

		stored, err := f.manager.Get(ctx, session.ID)
		require.NoError(t, err)
		assert.Equal(t, types.SESSION_STATUS_TIMEOUT, stored.Status)
	})
}

func TestTimeoutScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.respondent(t, "resp-42", "R-00042")

	s1, err := f.manager.Create(ctx, "resp-42", "enum-7")
	require.NoError(t, err)

	f.clock.Advance(130 * time.Minute)
	assert.True(t, f.manager.HasTimedOut(s1))

	closed, err := f.manager.Close(ctx, s1.ID, types.CLOSE_REASON_TIMEOUT)
	require.NoError(t, err)
	assert.Equal(t, types.SESSION_STATUS_TIMEOUT, closed.Status)
	require.NotNil(t, closed.EndTime)
	assert.Equal(t, testStart.Add(130*time.Minute), *closed.EndTime)

	s2, err := f.manager.Create(ctx, "resp-42", "enum-7")
	require.NoError(t, err)
	assert.Equal(t, types.SESSION_STATUS_OPEN, s2.Status)
}

func TestGetActive(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.respondent(t, "resp-1", "R-00001")

	_, err := f.manager.GetActive(ctx, "enum-1")
	assert.ErrorIs(t, err, types.ErrNotFound)

	session, err := f.manager.Create(ctx, "resp-1", "enum-1")
	require.NoError(t, err)

	active, err := f.manager.GetActive(ctx, "enum-1")
	require.NoError(t, err)
	assert.Equal(t, session.ID, active.ID)

	f.clock.Advance(2 * time.Hour)
	_, err = f.manager.GetActive(ctx, "enum-1")
	assert.ErrorIs(t, err, types.ErrNotFound)

	stored, err := f.manager.Get(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, types.SESSION_STATUS_TIMEOUT, stored.Status)
}

func TestCloseTimedOut(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.respondent(t, "resp-1", "R-00001")

	stale, err := f.manager.Create(ctx, "resp-1", "enum-1")
	require.NoError(t, err)
	f.clock.Advance(90 * time.Minute)
	fresh, err := f.manager.Create(ctx, "resp-1", "enum-2")
	require.NoError(t, err)
	f.clock.Advance(40 * time.Minute)

	closed, err := f.manager.CloseTimedOut(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, closed)

	got, err := f.manager.Get(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, types.SESSION_STATUS_TIMEOUT, got.Status)

	got, err = f.manager.Get(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, types.SESSION_STATUS_OPEN, got.Status)

	closed, err = f.manager.CloseTimedOut(ctx)
	require.NoError(t, err)
	assert.Zero(t, closed)
}
