package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"contactlink/internal/contact/models"
	dErrors "contactlink/pkg/domain-errors"
	"contactlink/pkg/platform/httputil"
	"contactlink/pkg/requestcontext"
)

// Service defines the contact operations exposed over HTTP.
type Service interface {
	Identify(ctx context.Context, email, phoneNumber string) (*models.IdentityView, error)
	Lookup(ctx context.Context, id models.ContactID) (*models.IdentityView, error)
	ListContacts(ctx context.Context) ([]*models.Contact, error)
}

// Handler wires contact endpoints to the contact service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts contact endpoints on the router. Identify is mounted
// separately so the rate limiter can wrap it alone.
func (h *Handler) Register(r chi.Router) {
	r.Get("/contacts", h.HandleListContacts)
	r.Get("/contacts/{id}/identity", h.HandleLookup)
}

// RegisterIdentify mounts POST /identify behind the given middleware.
func (h *Handler) RegisterIdentify(r chi.Router, middlewares ...func(http.Handler) http.Handler) {
	r.With(middlewares...).Post("/identify", h.HandleIdentify)
}

// HandleIdentify handles POST /identify requests.
func (h *Handler) HandleIdentify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[IdentifyRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	view, err := h.service.Identify(ctx, req.EmailValue(), req.PhoneNumberValue())
	if err != nil {
		h.logger.WarnContext(ctx, "identify request failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "identify request served",
		"request_id", requestID,
		"primary_id", view.PrimaryID,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, FromView(view))
}

// HandleLookup handles GET /contacts/{id}/identity requests.
func (h *Handler) HandleLookup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "contact id must be a positive integer"))
		return
	}

	view, err := h.service.Lookup(ctx, models.ContactID(id))
	if err != nil {
		h.logger.WarnContext(ctx, "identity lookup failed",
			"request_id", requestID,
			"contact_id", id,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromView(view))
}

// HandleListContacts handles GET /contacts requests.
func (h *Handler) HandleListContacts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	contacts, err := h.service.ListContacts(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "list contacts failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromContacts(contacts))
}
