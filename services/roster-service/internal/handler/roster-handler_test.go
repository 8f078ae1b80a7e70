package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/burakmert236/volei-list/common/database"
	apperrors "github.com/burakmert236/volei-list/common/errors"
	"github.com/burakmert236/volei-list/common/logger"
	"github.com/burakmert236/volei-list/common/models"
	"github.com/burakmert236/volei-list/services/roster-service/internal/repository"
	"github.com/burakmert236/volei-list/services/roster-service/internal/repository/migrations"
	"github.com/burakmert236/volei-list/services/roster-service/internal/service"
)

var brt = time.FixedZone("BRT", -3*60*60)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

func newTestServer(t *testing.T, active, waiting int) (http.Handler, *testClock) {
	t.Helper()

	client, err := database.NewSQLiteClient(context.Background(), filepath.Join(t.TempDir(), "roster.db"), migrations.FS)
	require.NoError(t, err)
	store := repository.NewSQLiteStore(client, brt)
	t.Cleanup(func() { _ = store.Close() })

	clock := &testClock{now: time.Date(2026, 3, 14, 15, 0, 0, 0, brt)}
	settings := service.DefaultSettings(brt)
	settings.ActiveCapacity = active
	settings.WaitingCapacity = waiting

	svc := service.NewRosterService(settings, service.Dependencies{Store: store, Clock: clock})
	return NewRosterHandler(svc, "12:00", "23:59", logger.Nop()).Routes(), clock
}

func postForm(h http.Handler, path, name string) *httptest.ResponseRecorder {
	form := url.Values{"nome": {name}}
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestRegister_RedirectsAndListsEntry(t *testing.T) {
	h, _ := newTestServer(t, 22, 50)

	rec := postForm(h, "/inscrever", "Ana")
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "/", rec.Header().Get("Location"))

	page := get(h, "/")
	require.Equal(t, http.StatusOK, page.Code)
	require.Contains(t, page.Header().Get("Content-Type"), "text/html")
	require.Contains(t, page.Body.String(), "1. Ana")
	require.Contains(t, page.Body.String(), `action="/inscrever"`)
}

func TestRegister_DomainErrorsArePlainText400(t *testing.T) {
	h, clock := newTestServer(t, 1, 0)
	require.Equal(t, http.StatusFound, postForm(h, "/inscrever", "Ana").Code)

	cases := []struct {
		name string
		body string
	}{
		{"Ana", "Você já está inscrito"},
		{"Bia", "Lista de vagas e espera estão completas"},
		{"   ", "Informe um nome"},
	}
	for _, tc := range cases {
		rec := postForm(h, "/inscrever", tc.name)
		require.Equal(t, http.StatusBadRequest, rec.Code, tc.name)
		require.Equal(t, tc.body, rec.Body.String())
		require.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
	}

	clock.Set(time.Date(2026, 3, 15, 9, 0, 0, 0, brt))
	rec := postForm(h, "/inscrever", "Caio")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "Inscrições só são permitidas entre 12:00 e 23:59", rec.Body.String())
}

func TestIndex_ClosedHidesRegistrationForm(t *testing.T) {
	h, clock := newTestServer(t, 22, 50)
	clock.Set(time.Date(2026, 3, 15, 9, 0, 0, 0, brt))

	body := get(h, "/").Body.String()
	require.NotContains(t, body, `action="/inscrever"`)
	require.Contains(t, body, "Inscrições só são permitidas entre 12:00 e 23:59")
	require.Contains(t, body, `action="/cancelar"`)
}

func TestIndex_EscapesNames(t *testing.T) {
	h, _ := newTestServer(t, 22, 50)
	require.Equal(t, http.StatusFound, postForm(h, "/inscrever", "<script>x</script>").Code)

	body := get(h, "/").Body.String()
	require.NotContains(t, body, "<script>x</script>")
	require.Contains(t, body, "&lt;script&gt;")
}

func TestCancel(t *testing.T) {
	h, _ := newTestServer(t, 1, 1)
	postForm(h, "/inscrever", "Ana")
	postForm(h, "/inscrever", "Bia")

	rec := postForm(h, "/cancelar", "Ana")
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "/", rec.Header().Get("Location"))

	rec = postForm(h, "/cancelar", "Ana")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "Inscrição não encontrada", rec.Body.String())

	var roster rosterResponse
	require.NoError(t, json.Unmarshal(get(h, "/api/roster").Body.Bytes(), &roster))
	require.Len(t, roster.Active, 1)
	require.Equal(t, "Bia", roster.Active[0].Name)
	require.Equal(t, 1, roster.Active[0].Position)
	require.Empty(t, roster.Waiting)
}

func TestRosterJSON(t *testing.T) {
	h, _ := newTestServer(t, 1, 1)
	postForm(h, "/inscrever", "Ana")
	postForm(h, "/inscrever", "Bia")

	rec := get(h, "/api/roster")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, true, body["registration_open"])

	var roster rosterResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &roster))
	require.Equal(t, models.EntryStatusActive, roster.Active[0].Status)
	require.Equal(t, models.EntryStatusWaiting, roster.Waiting[0].Status)
}

func TestRouting(t *testing.T) {
	h, _ := newTestServer(t, 22, 50)

	require.Equal(t, http.StatusMethodNotAllowed, get(h, "/inscrever").Code)
	require.Equal(t, http.StatusNotFound, get(h, "/nope").Code)

	health := get(h, "/healthz")
	require.Equal(t, http.StatusOK, health.Code)
	require.Equal(t, "ok", health.Body.String())
}

func TestRequestID(t *testing.T) {
	h, _ := newTestServer(t, 22, 50)

	rec := get(h, "/healthz")
	require.NotEmpty(t, rec.Header().Get(requestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, "abc-123", rec.Header().Get(requestIDHeader))
}

// brokenService fails every call the way a dead store would.
type brokenService struct {
	service.RosterService
	panics bool
}

func (s brokenService) List(ctx context.Context) (*models.Roster, *apperrors.AppError) {
	if s.panics {
		panic("boom")
	}
	return nil, apperrors.NewAppError(apperrors.CodeDatabaseError, "failed to list roster", context.DeadlineExceeded)
}

func (s brokenService) Register(ctx context.Context, name string) (*models.Entry, *apperrors.AppError) {
	return nil, apperrors.NewAppError(apperrors.CodeDatabaseError, "failed to register entry", context.DeadlineExceeded)
}

func (s brokenService) Health(ctx context.Context) *apperrors.AppError {
	return apperrors.New(apperrors.CodeServiceUnavailable, "store unavailable")
}

func TestInternalErrorsAreNotLeaked(t *testing.T) {
	h := NewRosterHandler(brokenService{}, "12:00", "23:59", logger.Nop()).Routes()

	rec := postForm(h, "/inscrever", "Ana")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, internalErrorMessage, rec.Body.String())

	rec = get(h, "/")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.NotContains(t, rec.Body.String(), "deadline")

	rec = get(h, "/healthz")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestPanicIsRecovered(t *testing.T) {
	h := NewRosterHandler(brokenService{panics: true}, "12:00", "23:59", logger.Nop()).Routes()

	rec := get(h, "/")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, internalErrorMessage, rec.Body.String())
}
