package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/require"

	"github.com/burakmert236/volei-list/common/database"
	"github.com/burakmert236/volei-list/common/models"
	"github.com/burakmert236/volei-list/services/roster-service/internal/repository"
	"github.com/burakmert236/volei-list/services/roster-service/internal/repository/migrations"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingPublisher struct {
	mu            sync.Mutex
	registered    []models.Entry
	cancellations []models.Cancellation
	resets        []int
	err           error
}

func (p *recordingPublisher) PublishRegistered(ctx context.Context, entry models.Entry) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.registered = append(p.registered, entry)
	return p.err
}

func (p *recordingPublisher) PublishCancelled(ctx context.Context, cancellation models.Cancellation) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cancellations = append(p.cancellations, cancellation)
	return p.err
}

func (p *recordingPublisher) PublishReset(ctx context.Context, removed int, at time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resets = append(p.resets, removed)
	return p.err
}

func saoPaulo(t testing.TB) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)
	return loc
}

// openTime is 14:00 in Sao Paulo, inside the registration window.
func openTime(t testing.TB) time.Time {
	return time.Date(2026, 3, 14, 14, 0, 0, 0, saoPaulo(t))
}

func newTestStore(t *testing.T, loc *time.Location) repository.RosterStore {
	t.Helper()

	client, err := database.NewSQLiteClient(context.Background(), filepath.Join(t.TempDir(), "roster.db"), migrations.FS)
	require.NoError(t, err)

	store := repository.NewSQLiteStore(client, loc)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

type testEnv struct {
	svc       RosterService
	clock     *fakeClock
	publisher *recordingPublisher
	store     repository.RosterStore
}

func newTestEnv(t *testing.T, configure ...func(*Settings)) *testEnv {
	t.Helper()

	settings := DefaultSettings(saoPaulo(t))
	for _, fn := range configure {
		fn(&settings)
	}

	env := &testEnv{
		clock:     newFakeClock(openTime(t)),
		publisher: &recordingPublisher{},
		store:     newTestStore(t, settings.Location),
	}
	env.svc = NewRosterService(settings, Dependencies{
		Store:     env.store,
		Publisher: env.publisher,
		Clock:     env.clock,
	})
	return env
}

func withCapacity(active, waiting int) func(*Settings) {
	return func(s *Settings) {
		s.ActiveCapacity = active
		s.WaitingCapacity = waiting
	}
}

// register advances the clock so every entry gets a distinct timestamp.
func (e *testEnv) register(t *testing.T, names ...string) {
	t.Helper()
	for _, name := range names {
		_, err := e.svc.Register(context.Background(), name)
		require.Nil(t, err, "register %s", name)
		e.clock.Advance(time.Second)
	}
}

func (e *testEnv) list(t *testing.T) *models.Roster {
	t.Helper()
	roster, err := e.svc.List(context.Background())
	require.Nil(t, err)
	return roster
}

type placement struct {
	Name     string
	Position int
}

func placements(entries []models.Entry) []placement {
	out := make([]placement, 0, len(entries))
	for _, e := range entries {
		out = append(out, placement{Name: e.Name, Position: e.Position})
	}
	return out
}
