package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	admissionModels "memberdir/internal/admission/models"
	"memberdir/internal/member/models"
	"memberdir/internal/member/roles"
	dErrors "memberdir/pkg/domain-errors"
	"memberdir/pkg/platform/httputil"
	"memberdir/pkg/requestcontext"
)

// Service defines the admission operations exposed over HTTP.
type Service interface {
	SubmitRequest(ctx context.Context, memberID uuid.UUID, clinic *models.Clinic, display *models.Display) (*models.Member, error)
	Approve(ctx context.Context, callerSubject string, memberIDs []uuid.UUID) (admissionModels.BatchResult, error)
	Deny(ctx context.Context, callerSubject string, memberIDs []uuid.UUID, reason string) (admissionModels.BatchResult, error)
}

type CallerResolver interface {
	Resolve(ctx context.Context, subject string) (roles.Caller, error)
}

type Handler struct {
	logger    *slog.Logger
	admission Service
	callers   CallerResolver
}

func New(admission Service, callers CallerResolver, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, admission: admission, callers: callers}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/directory/admission", h.handleSubmit)
	r.Post("/directory/admission/approve", h.handleApprove)
	r.Post("/directory/admission/deny", h.handleDeny)
}

type SubmitRequest struct {
	Clinic  *models.Clinic  `json:"clinic"`
	Display *models.Display `json:"display"`
}

// Validate is a no-op: the workflow reports every field error at once.
func (r *SubmitRequest) Validate() error {
	return nil
}

type SubmitResponse struct {
	Status      models.AdmissionStatus `json:"status"`
	InDirectory models.DirectoryFlag   `json:"inDirectory"`
}

type DecisionRequest struct {
	MemberIDs []uuid.UUID `json:"memberIds"`
	Reason    string      `json:"reason,omitempty"`
}

func (r *DecisionRequest) Validate() error {
	if len(r.MemberIDs) == 0 {
		return dErrors.Validation("no members selected", map[string]string{"memberIds": "at least one member id is required"})
	}
	return nil
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	req, ok := httputil.DecodeAndPrepare[SubmitRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	caller, err := h.callers.Resolve(ctx, requestcontext.Subject(ctx))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	m, err := h.admission.SubmitRequest(ctx, caller.MemberID, req.Clinic, req.Display)
	if err != nil {
		h.logger.WarnContext(ctx, "directory admission request rejected",
			"request_id", requestID,
			"member_id", caller.MemberID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, SubmitResponse{Status: m.Account.Admission, InDirectory: m.InDirectory()})
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[DecisionRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	res, err := h.admission.Approve(ctx, requestcontext.Subject(ctx), req.MemberIDs)
	h.writeBatch(ctx, w, res, err)
}

func (h *Handler) handleDeny(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[DecisionRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	res, err := h.admission.Deny(ctx, requestcontext.Subject(ctx), req.MemberIDs, req.Reason)
	h.writeBatch(ctx, w, res, err)
}

// writeBatch answers 200 whenever the batch ran; per-member failures are in
// the outcomes.
func (h *Handler) writeBatch(ctx context.Context, w http.ResponseWriter, res admissionModels.BatchResult, err error) {
	if err != nil {
		h.logger.WarnContext(ctx, "admission decision rejected",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}
