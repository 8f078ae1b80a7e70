package handler

import (
	"embed"
	"encoding/json"
	"html/template"
	"io"
	"net/http"

	apperrors "github.com/burakmert236/volei-list/common/errors"
	"github.com/burakmert236/volei-list/common/logger"
	"github.com/burakmert236/volei-list/common/models"
	"github.com/burakmert236/volei-list/services/roster-service/internal/service"
)

//go:embed templates/*.html
var templateFS embed.FS

var indexTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

const internalErrorMessage = "Erro interno, tente novamente"

type RosterHandler struct {
	rosterService service.RosterService
	opensAt       string
	closesAt      string
	logger        *logger.Logger
}

// NewRosterHandler serves the roster page. opensAt and closesAt are only
// shown to users.
func NewRosterHandler(rosterService service.RosterService, opensAt, closesAt string, logger *logger.Logger) *RosterHandler {
	return &RosterHandler{
		rosterService: rosterService,
		opensAt:       opensAt,
		closesAt:      closesAt,
		logger:        logger.With("component", "http"),
	}
}

func (h *RosterHandler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", h.Index)
	mux.HandleFunc("POST /inscrever", h.Register)
	mux.HandleFunc("POST /cancelar", h.Cancel)
	mux.HandleFunc("GET /api/roster", h.RosterJSON)
	mux.HandleFunc("GET /healthz", h.Health)

	return withRecovery(withRequestLogging(mux, h.logger), h.logger)
}

type indexPage struct {
	Vagas         []models.Entry
	Espera        []models.Entry
	HorarioValido bool
	OpensAt       string
	ClosesAt      string
	MaxNameLength int
}

func (h *RosterHandler) Index(w http.ResponseWriter, r *http.Request) {
	roster, err := h.rosterService.List(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	page := indexPage{
		Vagas:         roster.Active,
		Espera:        roster.Waiting,
		HorarioValido: h.rosterService.RegistrationOpen(),
		OpensAt:       h.opensAt,
		ClosesAt:      h.closesAt,
		MaxNameLength: service.MaxNameLength,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, page); err != nil {
		h.logger.Error("Failed to render index", "error", err)
	}
}

func (h *RosterHandler) Register(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.writeError(w, r, apperrors.Wrap(err, apperrors.CodeInvalidInput, "Formulário inválido"))
		return
	}

	if _, err := h.rosterService.Register(r.Context(), r.PostForm.Get("nome")); err != nil {
		h.writeError(w, r, err)
		return
	}

	http.Redirect(w, r, "/", http.StatusFound)
}

func (h *RosterHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.writeError(w, r, apperrors.Wrap(err, apperrors.CodeInvalidInput, "Formulário inválido"))
		return
	}

	if _, err := h.rosterService.Cancel(r.Context(), r.PostForm.Get("nome")); err != nil {
		h.writeError(w, r, err)
		return
	}

	http.Redirect(w, r, "/", http.StatusFound)
}

type rosterResponse struct {
	Active           []models.Entry `json:"active"`
	Waiting          []models.Entry `json:"waiting"`
	RegistrationOpen bool           `json:"registration_open"`
}

func (h *RosterHandler) RosterJSON(w http.ResponseWriter, r *http.Request) {
	roster, err := h.rosterService.List(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(rosterResponse{
		Active:           roster.Active,
		Waiting:          roster.Waiting,
		RegistrationOpen: h.rosterService.RegistrationOpen(),
	}); err != nil {
		h.logger.Error("Failed to encode roster", "error", err)
	}
}

func (h *RosterHandler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.rosterService.Health(r.Context()); err != nil {
		h.logger.Warn("Health check failed", "error", err)
		writeText(w, http.StatusServiceUnavailable, "unavailable")
		return
	}
	writeText(w, http.StatusOK, "ok")
}

// writeError answers with the error message as plain text. Internal
// failures get a generic message and are logged instead.
func (h *RosterHandler) writeError(w http.ResponseWriter, r *http.Request, err *apperrors.AppError) {
	status := apperrors.HTTPStatus(err)
	if !apperrors.IsUserFacing(err) {
		h.logger.Error("Request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", requestIDFrom(r.Context()),
			"error", err,
		)
		writeText(w, status, internalErrorMessage)
		return
	}

	writeText(w, status, err.Message)
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}
