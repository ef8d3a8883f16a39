package registration

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/communitypulse/server/internal/model"
)

// memStore is an in-memory Store used to exercise the lifecycle
// manager without a database.  InTx holds a mutex for the duration of
// the callback, which mirrors the serialization the MySQL event row
// lock provides, and restores a snapshot when the callback fails so
// aborted transactions leave no trace.
type memStore struct {
	mu     sync.Mutex
	events map[uint64]*model.Event
	regs   []*model.Registration
	nextID uint64
}

func newMemStore(events ...*model.Event) *memStore {
	s := &memStore{events: make(map[uint64]*model.Event)}
	for _, ev := range events {
		cp := *ev
		s.events[ev.ID] = &cp
	}
	return s
}

func (s *memStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapEvents := make(map[uint64]*model.Event, len(s.events))
	for id, ev := range s.events {
		cp := *ev
		snapEvents[id] = &cp
	}
	snapRegs := make([]*model.Registration, len(s.regs))
	for i, r := range s.regs {
		cp := *r
		cp.Attendees = append([]string(nil), r.Attendees...)
		snapRegs[i] = &cp
	}
	if err := fn(&memTx{s: s}); err != nil {
		s.events = snapEvents
		s.regs = snapRegs
		return err
	}
	return nil
}

type memTx struct{ s *memStore }

func (t *memTx) EventForUpdate(ctx context.Context, eventID uint64) (*model.Event, error) {
	ev, ok := t.s.events[eventID]
	if !ok {
		return nil, ErrEventNotFound
	}
	cp := *ev
	return &cp, nil
}

func (t *memTx) ActiveRegistration(ctx context.Context, eventID, userID uint64) (*model.Registration, error) {
	for _, r := range t.s.regs {
		if r.EventID == eventID && r.UserID == userID && r.Status != model.StatusCancelled {
			cp := *r
			cp.Attendees = append([]string(nil), r.Attendees...)
			return &cp, nil
		}
	}
	return nil, nil
}

func (t *memTx) LatestCancelledRegistration(ctx context.Context, eventID, userID uint64) (*model.Registration, error) {
	var last *model.Registration
	for _, r := range t.s.regs {
		if r.EventID == eventID && r.UserID == userID && r.Status == model.StatusCancelled {
			last = r
		}
	}
	if last == nil {
		return nil, nil
	}
	cp := *last
	cp.Attendees = append([]string(nil), last.Attendees...)
	return &cp, nil
}

func (t *memTx) InsertRegistration(ctx context.Context, reg *model.Registration) error {
	// Mirrors the unique key on (event_id, user_id, active_flag).
	for _, r := range t.s.regs {
		if r.EventID == reg.EventID && r.UserID == reg.UserID && r.Status != model.StatusCancelled {
			return ErrAlreadyActive
		}
	}
	t.s.nextID++
	reg.ID = t.s.nextID
	cp := *reg
	cp.Attendees = append([]string(nil), reg.Attendees...)
	t.s.regs = append(t.s.regs, &cp)
	return nil
}

func (t *memTx) UpdateRegistration(ctx context.Context, reg *model.Registration) error {
	for i, r := range t.s.regs {
		if r.ID == reg.ID {
			cp := *reg
			cp.Attendees = append([]string(nil), reg.Attendees...)
			t.s.regs[i] = &cp
			return nil
		}
	}
	return ErrNoActiveRegistration
}

func (t *memTx) SetAttendeesCount(ctx context.Context, eventID uint64, count uint32) error {
	ev, ok := t.s.events[eventID]
	if !ok {
		return ErrEventNotFound
	}
	ev.AttendeesCount = count
	return nil
}

// activeSum recomputes the counter from the registration rows, which
// is what the stored aggregate must always equal.
func (s *memStore) activeSum(eventID uint64) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sum uint32
	for _, r := range s.regs {
		if r.EventID == eventID && r.Status != model.StatusCancelled {
			sum += r.NumberOfAttendees
		}
	}
	return sum
}

func (s *memStore) counter(eventID uint64) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events[eventID].AttendeesCount
}

func (s *memStore) rowCount(eventID, userID uint64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.regs {
		if r.EventID == eventID && r.UserID == userID {
			n++
		}
	}
	return n
}

// memSink records notifications instead of persisting them.
type memSink struct {
	mu    sync.Mutex
	notes []*model.Notification
}

func (s *memSink) Create(ctx context.Context, n *model.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notes = append(s.notes, n)
	return nil
}

var baseTime = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func testEvent(id uint64) *model.Event {
	return &model.Event{
		ID:                id,
		Title:             "Neighborhood Cleanup",
		StartDate:         baseTime.Add(10 * 24 * time.Hour),
		EndDate:           baseTime.Add(10*24*time.Hour + 3*time.Hour),
		RegistrationStart: baseTime,
		RegistrationEnd:   baseTime.Add(7 * 24 * time.Hour),
		IsApproved:        true,
	}
}

func newTestManager(store *memStore, sink NotificationSink, now time.Time) *Manager {
	m := NewManager(store, sink)
	m.now = func() time.Time { return now }
	return m
}

func TestLifecycleScenario(t *testing.T) {
	store := newMemStore(testEvent(1))
	m := newTestManager(store, nil, baseTime.Add(24*time.Hour))
	ctx := context.Background()

	reg, err := m.MarkInterest(ctx, 1, 42, "dana")
	require.NoError(t, err)
	assert.Equal(t, model.StatusInterested, reg.Status)
	assert.Equal(t, uint32(1), store.counter(1))

	m.now = func() time.Time { return baseTime.Add(48 * time.Hour) }
	reg, err = m.Confirm(ctx, 1, 42, []string{"dana", "li", "sam"}, 3)
	require.NoError(t, err)
	assert.Equal(t, model.StatusRegistered, reg.Status)
	assert.Equal(t, uint32(3), reg.NumberOfAttendees)
	// Delta of +2 applied, not +3 on top of the interest count.
	assert.Equal(t, uint32(3), store.counter(1))

	m.now = func() time.Time { return baseTime.Add(72 * time.Hour) }
	reg, err = m.Cancel(ctx, 1, 42)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, reg.Status)
	assert.Equal(t, uint32(0), store.counter(1))
	assert.Equal(t, 1, store.rowCount(1, 42), "cancellation must not delete the row")
}

func TestMarkInterestFailures(t *testing.T) {
	unapproved := testEvent(2)
	unapproved.IsApproved = false
	store := newMemStore(testEvent(1), unapproved)
	m := newTestManager(store, nil, baseTime)
	ctx := context.Background()

	_, err := m.MarkInterest(ctx, 99, 42, "dana")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = m.MarkInterest(ctx, 2, 42, "dana")
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = m.MarkInterest(ctx, 1, 42, "dana")
	require.NoError(t, err)
	_, err = m.MarkInterest(ctx, 1, 42, "dana")
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, uint32(1), store.counter(1), "failed attempts must not touch the counter")
}

func TestConfirmValidation(t *testing.T) {
	cases := []struct {
		name  string
		names []string
		count int
	}{
		{"count mismatch", []string{"a", "b"}, 3},
		{"zero attendees", nil, 0},
		{"too many attendees", make([]string, 11), 11},
		{"empty name", []string{"a", "  "}, 2},
	}
	for i := range cases[2].names {
		cases[2].names[i] = "x"
	}
	store := newMemStore(testEvent(1))
	m := newTestManager(store, nil, baseTime)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := m.Confirm(context.Background(), 1, 42, tc.names, tc.count)
			var ve *ValidationError
			assert.ErrorAs(t, err, &ve)
		})
	}
}

func TestConfirmWindow(t *testing.T) {
	ev := testEvent(1)
	store := newMemStore(ev)
	ctx := context.Background()
	m := newTestManager(store, nil, baseTime)
	_, err := m.MarkInterest(ctx, 1, 42, "dana")
	require.NoError(t, err)

	cases := []struct {
		name string
		now  time.Time
		ok   bool
	}{
		{"just inside skew before open", ev.RegistrationStart.Add(-23 * time.Hour), true},
		{"too early", ev.RegistrationStart.Add(-25 * time.Hour), false},
		{"just inside skew after close", ev.RegistrationEnd.Add(23 * time.Hour), true},
		{"too late", ev.RegistrationEnd.Add(25 * time.Hour), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newMemStore(ev)
			mm := newTestManager(s, nil, baseTime)
			_, err := mm.MarkInterest(ctx, 1, 42, "dana")
			require.NoError(t, err)
			mm.now = func() time.Time { return tc.now }
			_, err = mm.Confirm(ctx, 1, 42, []string{"dana"}, 1)
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidState)
			}
		})
	}
}

func TestConfirmStateErrors(t *testing.T) {
	store := newMemStore(testEvent(1))
	m := newTestManager(store, nil, baseTime.Add(time.Hour))
	ctx := context.Background()

	// No registration at all.
	_, err := m.Confirm(ctx, 1, 42, []string{"dana"}, 1)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = m.MarkInterest(ctx, 1, 42, "dana")
	require.NoError(t, err)
	_, err = m.Confirm(ctx, 1, 42, []string{"dana"}, 1)
	require.NoError(t, err)

	// Confirming again is a conflict, not a state error.
	_, err = m.Confirm(ctx, 1, 42, []string{"dana"}, 1)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestRegisterDirect(t *testing.T) {
	store := newMemStore(testEvent(1))
	m := newTestManager(store, nil, baseTime.Add(time.Hour))
	ctx := context.Background()

	reg, err := m.RegisterDirect(ctx, 1, 42, []string{"dana", "li"}, 2)
	require.NoError(t, err)
	assert.Equal(t, model.StatusRegistered, reg.Status)
	assert.Equal(t, uint32(2), store.counter(1))

	// Any active registration blocks a direct registration.
	_, err = m.RegisterDirect(ctx, 1, 42, []string{"dana"}, 1)
	assert.ErrorIs(t, err, ErrConflict)
	_, err = m.MarkInterest(ctx, 1, 43, "li")
	require.NoError(t, err)
	_, err = m.RegisterDirect(ctx, 1, 43, []string{"li"}, 1)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestCancelCancelled(t *testing.T) {
	store := newMemStore(testEvent(1))
	m := newTestManager(store, nil, baseTime.Add(time.Hour))
	ctx := context.Background()

	_, err := m.Cancel(ctx, 1, 42)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = m.MarkInterest(ctx, 1, 42, "dana")
	require.NoError(t, err)
	_, err = m.Cancel(ctx, 1, 42)
	require.NoError(t, err)

	_, err = m.Cancel(ctx, 1, 42)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, uint32(0), store.counter(1))
}

func TestReactivation(t *testing.T) {
	store := newMemStore(testEvent(1))
	m := newTestManager(store, nil, baseTime.Add(time.Hour))
	ctx := context.Background()

	_, err := m.MarkInterest(ctx, 1, 42, "dana")
	require.NoError(t, err)
	_, err = m.Confirm(ctx, 1, 42, []string{"dana", "li", "sam"}, 3)
	require.NoError(t, err)
	_, err = m.Cancel(ctx, 1, 42)
	require.NoError(t, err)

	reg, err := m.MarkInterest(ctx, 1, 42, "dana")
	require.NoError(t, err)
	assert.Equal(t, model.StatusInterested, reg.Status)
	assert.Equal(t, uint32(1), reg.NumberOfAttendees)
	assert.Equal(t, []string{"dana"}, reg.Attendees, "reactivation resets the attendee list to the acting user")
	assert.Equal(t, uint32(1), store.counter(1))
	assert.Equal(t, 1, store.rowCount(1, 42), "reactivation reuses the cancelled row")
}

// TestCounterAlwaysMatchesActiveSum walks a mixed sequence of
// operations for several users and recomputes the aggregate after
// every step, successful or not.
func TestCounterAlwaysMatchesActiveSum(t *testing.T) {
	store := newMemStore(testEvent(1))
	m := newTestManager(store, nil, baseTime.Add(time.Hour))
	ctx := context.Background()

	steps := []func() error{
		func() error { _, err := m.MarkInterest(ctx, 1, 1, "a"); return err },
		func() error { _, err := m.RegisterDirect(ctx, 1, 2, []string{"b", "c"}, 2); return err },
		func() error { _, err := m.Confirm(ctx, 1, 1, []string{"a", "d", "e", "f"}, 4); return err },
		func() error { _, err := m.MarkInterest(ctx, 1, 1, "a"); return err },       // conflict
		func() error { _, err := m.Cancel(ctx, 1, 2); return err },
		func() error { _, err := m.Confirm(ctx, 1, 2, []string{"b"}, 1); return err }, // not found
		func() error { _, err := m.MarkInterest(ctx, 1, 2, "b"); return err },       // reactivate
		func() error { _, err := m.Cancel(ctx, 1, 1); return err },
		func() error { _, err := m.Cancel(ctx, 1, 1); return err }, // not found
	}
	for i, step := range steps {
		_ = step()
		assert.Equal(t, store.activeSum(1), store.counter(1), "step %d", i)
	}
	assert.Equal(t, uint32(1), store.counter(1))
}

// TestConcurrentMarkInterest races many goroutines for the same
// (event, user) pair: exactly one may win, everyone else must see a
// conflict, and the counter moves by exactly one.
func TestConcurrentMarkInterest(t *testing.T) {
	store := newMemStore(testEvent(1))
	m := newTestManager(store, nil, baseTime.Add(time.Hour))
	ctx := context.Background()

	const attempts = 100
	var wg sync.WaitGroup
	wg.Add(attempts)
	errs := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		go func() {
			defer wg.Done()
			_, err := m.MarkInterest(ctx, 1, 42, "dana")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ok, conflicts, other int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrConflict):
			conflicts++
		default:
			other++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, attempts-1, conflicts)
	assert.Zero(t, other)
	assert.Equal(t, uint32(1), store.counter(1))
	assert.Equal(t, 1, store.rowCount(1, 42))
}

func TestReminderNotification(t *testing.T) {
	// Event more than a day out: confirming writes a reminder.
	store := newMemStore(testEvent(1))
	sink := &memSink{}
	m := newTestManager(store, sink, baseTime.Add(time.Hour))
	ctx := context.Background()

	_, err := m.RegisterDirect(ctx, 1, 42, []string{"dana"}, 1)
	require.NoError(t, err)
	require.Len(t, sink.notes, 1)
	assert.Equal(t, model.NotificationReminder, sink.notes[0].Type)
	assert.Equal(t, uint64(42), sink.notes[0].UserID)

	// Event starting within a day: no reminder.
	soon := testEvent(2)
	soon.StartDate = baseTime.Add(90 * time.Minute)
	store2 := newMemStore(soon)
	sink2 := &memSink{}
	m2 := newTestManager(store2, sink2, baseTime.Add(time.Hour))
	_, err = m2.RegisterDirect(ctx, 2, 42, []string{"dana"}, 1)
	require.NoError(t, err)
	assert.Empty(t, sink2.notes)
}
