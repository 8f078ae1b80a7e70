package service

import (
	"cmp"
	"context"
	"slices"
	"testing"
	"time"

	"pgregory.net/rapid"

	apperrors "github.com/burakmert236/volei-list/common/errors"
	"github.com/burakmert236/volei-list/common/models"
)

// rosterModel is a plain in-memory account of the roster rules used to
// check the service against random operation sequences.
type rosterModel struct {
	activeCap, waitingCap int
	active, waiting       []modelEntry
}

type modelEntry struct {
	name     string
	position int
	tick     int
}

func (m *rosterModel) has(name string) bool {
	for _, list := range [][]modelEntry{m.active, m.waiting} {
		for _, e := range list {
			if e.name == name {
				return true
			}
		}
	}
	return false
}

func (m *rosterModel) register(name string, tick int) string {
	switch {
	case m.has(name):
		return apperrors.CodeDuplicateName
	case len(m.active) < m.activeCap:
		m.active = append(m.active, modelEntry{name, len(m.active) + 1, tick})
	case len(m.waiting) < m.waitingCap:
		m.waiting = append(m.waiting, modelEntry{name, len(m.waiting) + 1, tick})
	default:
		return apperrors.CodeRosterFull
	}
	return ""
}

func (m *rosterModel) cancel(name string) string {
	if i := slices.IndexFunc(m.active, func(e modelEntry) bool { return e.name == name }); i >= 0 {
		removed := m.active[i]
		m.active = slices.Delete(m.active, i, i+1)
		if len(m.waiting) == 0 {
			return ""
		}
		j := 0
		for k, e := range m.waiting {
			if e.tick < m.waiting[j].tick {
				j = k
			}
		}
		promoted := m.waiting[j]
		promoted.position = removed.position
		m.waiting = slices.Delete(m.waiting, j, j+1)
		m.active = append(m.active, promoted)
		return ""
	}
	if i := slices.IndexFunc(m.waiting, func(e modelEntry) bool { return e.name == name }); i >= 0 {
		m.waiting = slices.Delete(m.waiting, i, i+1)
		return ""
	}
	return apperrors.CodeEntryNotFound
}

func sortedPlacements(list []modelEntry) []placement {
	sorted := slices.Clone(list)
	slices.SortFunc(sorted, func(a, b modelEntry) int {
		if c := cmp.Compare(a.position, b.position); c != 0 {
			return c
		}
		return cmp.Compare(a.tick, b.tick)
	})
	out := make([]placement, 0, len(sorted))
	for _, e := range sorted {
		out = append(out, placement{Name: e.name, Position: e.position})
	}
	return out
}

func codeOf(err *apperrors.AppError) string {
	if err == nil {
		return ""
	}
	return err.Code
}

func TestRoster_MatchesModel(t *testing.T) {
	names := []string{"Ana", "Bia", "Caio", "Davi", "Eva", "Fabio", "Gil", "Hugo"}

	rapid.Check(t, func(r *rapid.T) {
		activeCap := rapid.IntRange(1, 4).Draw(r, "activeCap")
		waitingCap := rapid.IntRange(0, 3).Draw(r, "waitingCap")
		env := newTestEnv(t, withCapacity(activeCap, waitingCap))
		model := &rosterModel{activeCap: activeCap, waitingCap: waitingCap}
		ctx := context.Background()

		steps := rapid.IntRange(1, 40).Draw(r, "steps")
		for tick := 0; tick < steps; tick++ {
			name := rapid.SampledFrom(names).Draw(r, "name")
			env.clock.Advance(time.Second)

			if rapid.Bool().Draw(r, "register") {
				_, err := env.svc.Register(ctx, name)
				if got, want := codeOf(err), model.register(name, tick); got != want {
					r.Fatalf("register %s: got %q want %q", name, got, want)
				}
			} else {
				_, err := env.svc.Cancel(ctx, name)
				if got, want := codeOf(err), model.cancel(name); got != want {
					r.Fatalf("cancel %s: got %q want %q", name, got, want)
				}
			}

			roster, err := env.svc.List(ctx)
			if err != nil {
				r.Fatalf("list: %v", err)
			}
			if got, want := placements(roster.Active), sortedPlacements(model.active); !slices.Equal(got, want) {
				r.Fatalf("active: got %v want %v", got, want)
			}
			if got, want := placements(roster.Waiting), sortedPlacements(model.waiting); !slices.Equal(got, want) {
				r.Fatalf("waiting: got %v want %v", got, want)
			}
			if len(roster.Active) > activeCap || len(roster.Waiting) > waitingCap {
				r.Fatalf("capacity exceeded: %d/%d", len(roster.Active), len(roster.Waiting))
			}
		}
	})
}

func TestRoster_RegisterOnlyKeepsPositionsContiguous(t *testing.T) {
	rapid.Check(t, func(r *rapid.T) {
		env := newTestEnv(t, withCapacity(rapid.IntRange(1, 6).Draw(r, "activeCap"), rapid.IntRange(0, 6).Draw(r, "waitingCap")))
		ctx := context.Background()

		names := rapid.SliceOfN(rapid.StringMatching(`[A-Z][a-z]{1,6}`), 1, 20).Draw(r, "names")
		for _, name := range names {
			_, err := env.svc.Register(ctx, name)
			if err != nil && err.Code != apperrors.CodeDuplicateName && err.Code != apperrors.CodeRosterFull {
				r.Fatalf("register %s: %v", name, err)
			}
			env.clock.Advance(time.Millisecond)
		}

		roster, err := env.svc.List(ctx)
		if err != nil {
			r.Fatalf("list: %v", err)
		}

		seen := map[string]bool{}
		for _, list := range [][]models.Entry{roster.Active, roster.Waiting} {
			for i, e := range list {
				if e.Position != i+1 {
					r.Fatalf("%s at position %d, want %d", e.Name, e.Position, i+1)
				}
				if seen[e.Name] {
					r.Fatalf("%s listed twice", e.Name)
				}
				seen[e.Name] = true
			}
		}
	})
}
