package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"memberdir/internal/member/classification"
	"memberdir/internal/member/models"
	"memberdir/internal/member/query"
	"memberdir/internal/member/roles"
	"memberdir/internal/member/service"
	"memberdir/pkg/platform/httputil"
	"memberdir/pkg/requestcontext"
)

// Service defines the member operations the handler exposes.
type Service interface {
	Register(ctx context.Context, subject string, in service.RegisterInput) (*models.Member, error)
	Questionnaire(ctx context.Context, subject string) (classification.State, classification.Outcome, error)
	EditMembership(ctx context.Context, subject string, in service.EditInput) (*models.Member, error)
	GetBySubject(ctx context.Context, subject string) (*models.Member, error)
	Search(ctx context.Context, spec query.FilterSpec, page query.Page) (query.Result, error)
}

// CallerResolver maps the authenticated subject to a role.
type CallerResolver interface {
	Resolve(ctx context.Context, subject string) (roles.Caller, error)
}

// Handler serves the member endpoints. Routes assume RequireAuth upstream.
type Handler struct {
	logger  *slog.Logger
	members Service
	callers CallerResolver
}

func New(members Service, callers CallerResolver, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, members: members, callers: callers}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/members", h.handleRegister)
	r.Get("/members", h.handleSearch)
	r.Get("/members/me", h.handleGetMe)
	r.Put("/members/me/membership", h.handleEditMembership)
	r.Get("/members/me/questionnaire", h.handleQuestionnaire)
	r.Post("/members/questionnaire/step", h.handleStep)
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	req, ok := httputil.DecodeAndPrepare[RegisterRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	m, err := h.members.Register(ctx, requestcontext.Subject(ctx), service.RegisterInput{
		Personal:     req.Personal,
		Professional: req.Professional,
		Answers:      req.Answers,
		Subrecords:   classification.Subrecords{Education: req.Education, Associate: req.Associate},
	})
	if err != nil {
		h.logger.WarnContext(ctx, "member registration failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toResponse(m))
}

// handleSearch lists members. Callers without an admin role only see the
// public directory: their inDirectory filter is forced to true.
func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	spec, page, err := parseSearch(r.URL.Query())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	caller, err := h.callers.Resolve(ctx, requestcontext.Subject(ctx))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if !caller.Role.IsAdmin() {
		listed := models.FlagTrue
		spec.InDirectory = &listed
	}

	res, err := h.members.Search(ctx, spec, page)
	if err != nil {
		h.logger.ErrorContext(ctx, "member search failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	out := SearchResponse{Users: make([]MemberResponse, 0, len(res.Members)), Count: res.Count}
	for _, m := range res.Members {
		out.Users = append(out.Users, toResponse(m))
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) handleGetMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	m, err := h.members.GetBySubject(ctx, requestcontext.Subject(ctx))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(m))
}

func (h *Handler) handleEditMembership(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	req, ok := httputil.DecodeAndPrepare[EditMembershipRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	m, err := h.members.EditMembership(ctx, requestcontext.Subject(ctx), service.EditInput{
		Answers:    req.Answers,
		Subrecords: classification.Subrecords{Education: req.Education, Associate: req.Associate},
	})
	if err != nil {
		h.logger.WarnContext(ctx, "membership edit failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(m))
}

func (h *Handler) handleQuestionnaire(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	state, outcome, err := h.members.Questionnaire(ctx, requestcontext.Subject(ctx))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, QuestionnaireResponse{Answers: state.Answers, Outcome: outcome})
}

// handleStep evaluates one answer without persisting anything, so clients can
// drive the questionnaire one question at a time.
func (h *Handler) handleStep(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[StepRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	state, outcome, err := classification.Step(classification.State{Answers: req.Answers}, req.Question, *req.Answer)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, QuestionnaireResponse{Answers: state.Answers, Outcome: outcome})
}
