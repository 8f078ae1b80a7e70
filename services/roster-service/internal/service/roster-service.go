package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/burakmert236/volei-list/common/cache"
	apperrors "github.com/burakmert236/volei-list/common/errors"
	"github.com/burakmert236/volei-list/common/logger"
	"github.com/burakmert236/volei-list/common/models"
	"github.com/burakmert236/volei-list/common/telemetry"
	"github.com/burakmert236/volei-list/common/utils"
	rostererrors "github.com/burakmert236/volei-list/services/roster-service/internal/errors"
	"github.com/burakmert236/volei-list/services/roster-service/internal/events/publisher"
	"github.com/burakmert236/volei-list/services/roster-service/internal/repository"
)

const rosterCacheKey = "roster"

type RosterService interface {
	List(ctx context.Context) (*models.Roster, *apperrors.AppError)
	IsRegistrationOpen(now time.Time) bool
	RegistrationOpen() bool
	Register(ctx context.Context, name string) (*models.Entry, *apperrors.AppError)
	Cancel(ctx context.Context, name string) (*models.Cancellation, *apperrors.AppError)
	Reset(ctx context.Context) (int, *apperrors.AppError)
	Health(ctx context.Context) *apperrors.AppError
}

// Broker reports the state of the event connection. Health fails while it
// is disconnected.
type Broker interface {
	IsConnected() bool
}

type Dependencies struct {
	Store     repository.RosterStore
	Broker    Broker
	Publisher publisher.Publisher
	Cache     *cache.Cache[models.Roster]
	Tracer    trace.Tracer
	Clock     Clock
	Logger    *logger.Logger
}

type rosterService struct {
	settings  Settings
	store     repository.RosterStore
	broker    Broker
	publisher publisher.Publisher
	cache     *cache.Cache[models.Roster]
	tracer    trace.Tracer
	clock     Clock
	logger    *logger.Logger

	// generation counts committed writes. List only caches a snapshot when
	// no write committed while it was being read.
	cacheMu    sync.Mutex
	generation uint64
}

func NewRosterService(settings Settings, deps Dependencies) RosterService {
	if settings.Location == nil {
		settings.Location = time.UTC
	}
	if deps.Publisher == nil {
		deps.Publisher = publisher.NopPublisher{}
	}
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	if deps.Cache == nil {
		deps.Cache = cache.New[models.Roster]("roster", 0, deps.Logger)
	}
	if deps.Tracer == nil {
		deps.Tracer = noop.NewTracerProvider().Tracer("roster")
	}
	if deps.Clock == nil {
		deps.Clock = SystemClock
	}

	return &rosterService{
		settings:  settings,
		store:     deps.Store,
		broker:    deps.Broker,
		publisher: deps.Publisher,
		cache:     deps.Cache,
		tracer:    deps.Tracer,
		clock:     deps.Clock,
		logger:    deps.Logger.With("component", "roster-service"),
	}
}

func (s *rosterService) List(ctx context.Context) (*models.Roster, *apperrors.AppError) {
	if roster, ok := s.cache.Get(rosterCacheKey); ok {
		return roster.Clone(), nil
	}

	ctx, span := s.tracer.Start(ctx, "roster.list")
	generation := s.currentGeneration()

	var roster models.Roster
	err := s.store.View(ctx, func(repo repository.EntryRepository) error {
		var err error
		if roster.Active, err = repo.ListByStatus(ctx, models.EntryStatusActive); err != nil {
			return err
		}
		roster.Waiting, err = repo.ListByStatus(ctx, models.EntryStatusWaiting)
		return err
	})
	if err != nil {
		appErr := s.storeError(err, "list roster")
		endSpan(span, appErr)
		return nil, appErr
	}

	active, waiting := roster.Counts()
	span.SetAttributes(attribute.Int("roster.active", active), attribute.Int("roster.waiting", waiting))
	endSpan(span, nil)

	s.storeSnapshot(generation, roster)
	return &roster, nil
}

func (s *rosterService) IsRegistrationOpen(now time.Time) bool {
	return s.settings.windowContains(utils.TimeOfDay(now.In(s.settings.Location)))
}

func (s *rosterService) RegistrationOpen() bool {
	return s.IsRegistrationOpen(s.clock.Now())
}

func (s *rosterService) Register(ctx context.Context, rawName string) (*models.Entry, *apperrors.AppError) {
	ctx, span := s.tracer.Start(ctx, "roster.register")
	now := s.clock.Now()

	if !s.IsRegistrationOpen(now) {
		appErr := rostererrors.RegistrationClosedError(
			formatTimeOfDay(s.settings.OpensAt),
			formatTimeOfDay(s.settings.ClosesAt),
		)
		endSpan(span, appErr)
		return nil, appErr
	}

	name, appErr := normalizeName(rawName)
	if appErr != nil {
		endSpan(span, appErr)
		return nil, appErr
	}

	var created models.Entry
	err := s.store.Update(ctx, func(repo repository.EntryRepository) error {
		exists, err := repo.ExistsByName(ctx, name)
		if err != nil {
			return err
		}
		if exists {
			return rostererrors.DuplicateNameError()
		}

		created = models.Entry{
			Name:         name,
			RegisteredAt: now.In(s.settings.Location),
		}

		activeCount, err := repo.CountByStatus(ctx, models.EntryStatusActive)
		if err != nil {
			return err
		}

		if activeCount < s.settings.ActiveCapacity {
			created.Status = models.EntryStatusActive
			created.Position = activeCount + 1
			return repo.Create(ctx, &created)
		}

		waitingCount, err := repo.CountByStatus(ctx, models.EntryStatusWaiting)
		if err != nil {
			return err
		}

		if waitingCount < s.settings.WaitingCapacity {
			created.Status = models.EntryStatusWaiting
			created.Position = waitingCount + 1
			return repo.Create(ctx, &created)
		}

		return rostererrors.RosterFullError()
	})
	if err != nil {
		appErr := s.storeError(err, "register entry")
		endSpan(span, appErr)
		return nil, appErr
	}

	s.invalidateRoster()
	span.SetAttributes(
		attribute.String("roster.status", string(created.Status)),
		attribute.Int("roster.position", created.Position),
	)
	endSpan(span, nil)

	s.logger.Info("Entry registered",
		"name", created.Name,
		"status", created.Status,
		"position", created.Position,
	)

	if err := s.publisher.PublishRegistered(ctx, created); err != nil {
		s.logger.Warn("Failed to publish registered event", "error", err)
	}

	return &created, nil
}

func (s *rosterService) Cancel(ctx context.Context, rawName string) (*models.Cancellation, *apperrors.AppError) {
	ctx, span := s.tracer.Start(ctx, "roster.cancel")
	name := strings.TrimSpace(rawName)

	var result models.Cancellation
	err := s.store.Update(ctx, func(repo repository.EntryRepository) error {
		active, err := repo.FindByName(ctx, name, models.EntryStatusActive)
		if err != nil {
			return err
		}

		if active != nil {
			if err := repo.Delete(ctx, active.EntryId); err != nil {
				return err
			}

			next, err := repo.FindEarliestWaiting(ctx)
			if err != nil {
				return err
			}

			result = models.Cancellation{Removed: *active}
			if next == nil {
				return nil
			}

			// The promoted entry takes the vacated slot; nobody else moves.
			next.Status = models.EntryStatusActive
			next.Position = active.Position
			if err := repo.UpdatePlacement(ctx, next); err != nil {
				return err
			}
			result.Promoted = next
			return nil
		}

		waiting, err := repo.FindByName(ctx, name, models.EntryStatusWaiting)
		if err != nil {
			return err
		}
		if waiting == nil {
			return rostererrors.EntryNotFoundError()
		}

		result = models.Cancellation{Removed: *waiting}
		return repo.Delete(ctx, waiting.EntryId)
	})
	if err != nil {
		appErr := s.storeError(err, "cancel entry")
		endSpan(span, appErr)
		return nil, appErr
	}

	s.invalidateRoster()
	span.SetAttributes(
		attribute.String("roster.status", string(result.Removed.Status)),
		attribute.Bool("roster.promoted", result.Promoted != nil),
	)
	endSpan(span, nil)

	fields := []interface{}{
		"name", result.Removed.Name,
		"status", result.Removed.Status,
		"position", result.Removed.Position,
	}
	if result.Promoted != nil {
		fields = append(fields, "promoted", result.Promoted.Name)
	}
	s.logger.Info("Entry cancelled", fields...)

	if err := s.publisher.PublishCancelled(ctx, result); err != nil {
		s.logger.Warn("Failed to publish cancelled event", "error", err)
	}

	return &result, nil
}

func (s *rosterService) Reset(ctx context.Context) (int, *apperrors.AppError) {
	ctx, span := s.tracer.Start(ctx, "roster.reset")

	var removed int
	err := s.store.Update(ctx, func(repo repository.EntryRepository) error {
		var err error
		removed, err = repo.DeleteAll(ctx)
		return err
	})
	if err != nil {
		appErr := s.storeError(err, "reset roster")
		endSpan(span, appErr)
		return 0, appErr
	}

	s.invalidateRoster()
	span.SetAttributes(attribute.Int("roster.removed", removed))
	endSpan(span, nil)

	s.logger.Info("Roster reset", "removed", removed)

	if err := s.publisher.PublishReset(ctx, removed, s.clock.Now().In(s.settings.Location)); err != nil {
		s.logger.Warn("Failed to publish reset event", "error", err)
	}

	return removed, nil
}

func (s *rosterService) currentGeneration() uint64 {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	return s.generation
}

func (s *rosterService) storeSnapshot(generation uint64, roster models.Roster) {
	if !s.cache.Enabled() {
		return
	}

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if s.generation != generation {
		s.logger.Debug("Skipping stale roster snapshot", "read_generation", generation, "generation", s.generation)
		return
	}
	s.cache.Set(rosterCacheKey, *roster.Clone())
}

// invalidateRoster runs after a write commits.
func (s *rosterService) invalidateRoster() {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.generation++
	s.cache.Delete(rosterCacheKey)
}

func (s *rosterService) Health(ctx context.Context) *apperrors.AppError {
	if err := s.store.Ping(ctx); err != nil {
		return apperrors.Wrap(err, apperrors.CodeServiceUnavailable, "store unavailable")
	}
	if s.broker != nil && !s.broker.IsConnected() {
		return apperrors.New(apperrors.CodeServiceUnavailable, "event broker disconnected")
	}
	return nil
}

// storeError keeps domain errors raised inside a transaction and classifies
// everything else coming out of the store.
func (s *rosterService) storeError(err error, op string) *apperrors.AppError {
	if errors.Is(err, repository.ErrConflict) {
		s.logger.Warn("Concurrent roster update", "op", op, "error", err)
		return rostererrors.ConflictError(err)
	}

	appErr := rostererrors.StoreError(err, op)
	if !apperrors.IsUserFacing(appErr) {
		s.logger.Error("Roster store failure", "op", op, "error", err)
	}
	return appErr
}

func normalizeName(raw string) (string, *apperrors.AppError) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", rostererrors.EmptyNameError()
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return "", rostererrors.NameTooLongError(MaxNameLength)
	}
	return name, nil
}

func endSpan(span trace.Span, appErr *apperrors.AppError) {
	if appErr != nil {
		telemetry.EndSpan(span, appErr)
		return
	}
	telemetry.EndSpan(span, nil)
}
