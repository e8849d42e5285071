package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"memberdir/internal/announcement/models"
	"memberdir/internal/member/roles"
	dErrors "memberdir/pkg/domain-errors"
	"memberdir/pkg/platform/httputil"
	"memberdir/pkg/requestcontext"
)

type Service interface {
	Create(ctx context.Context, ownerID uuid.UUID, title, body string, spec []string) (*models.Announcement, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Announcement, error)
	Audience(ctx context.Context, id uuid.UUID) ([]string, error)
	Deliver(ctx context.Context, id uuid.UUID) (models.Delivery, error)
}

type CallerResolver interface {
	Resolve(ctx context.Context, subject string) (roles.Caller, error)
}

// Handler serves announcements. Authoring, audience listing and delivery are
// limited to admins; any member can read an announcement.
type Handler struct {
	logger        *slog.Logger
	announcements Service
	callers       CallerResolver
}

func New(announcements Service, callers CallerResolver, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, announcements: announcements, callers: callers}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/announcements", h.handleCreate)
	r.Get("/announcements/{id}", h.handleGet)
	r.Get("/announcements/{id}/audience", h.handleAudience)
	r.Post("/announcements/{id}/deliver", h.handleDeliver)
}

type CreateRequest struct {
	Title      string   `json:"title"`
	Body       string   `json:"body"`
	Recipients []string `json:"recipients"`
}

// Validate defers to the recipient resolver so every entry is reported.
func (r *CreateRequest) Validate() error {
	return nil
}

type AudienceResponse struct {
	Recipients []string `json:"recipients"`
	Count      int      `json:"count"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	caller, ok := h.requireAdmin(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[CreateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	a, err := h.announcements.Create(ctx, caller.MemberID, req.Title, req.Body, req.Recipients)
	if err != nil {
		h.logger.WarnContext(ctx, "announcement rejected",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, a)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, err := h.callers.Resolve(ctx, requestcontext.Subject(ctx)); err != nil {
		httputil.WriteError(w, err)
		return
	}
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	a, err := h.announcements.Get(ctx, id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, a)
}

func (h *Handler) handleAudience(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := h.requireAdmin(w, r); !ok {
		return
	}
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	addrs, err := h.announcements.Audience(ctx, id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if addrs == nil {
		addrs = []string{}
	}
	httputil.WriteJSON(w, http.StatusOK, AudienceResponse{Recipients: addrs, Count: len(addrs)})
}

func (h *Handler) handleDeliver(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := h.requireAdmin(w, r); !ok {
		return
	}
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	d, err := h.announcements.Deliver(ctx, id)
	if err != nil {
		h.logger.ErrorContext(ctx, "announcement delivery failed",
			"request_id", requestcontext.RequestID(ctx),
			"announcement_id", id,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, d)
}

func (h *Handler) requireAdmin(w http.ResponseWriter, r *http.Request) (roles.Caller, bool) {
	ctx := r.Context()
	caller, err := h.callers.Resolve(ctx, requestcontext.Subject(ctx))
	if err != nil {
		httputil.WriteError(w, err)
		return roles.Caller{}, false
	}
	if !caller.Role.IsAdmin() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "only admins can manage announcements"))
		return roles.Caller{}, false
	}
	return caller, true
}

func parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid announcement id"))
		return uuid.Nil, false
	}
	return id, true
}
