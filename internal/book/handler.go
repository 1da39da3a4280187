package book

import (
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-bookcrossing/internal/auth"
	"github.com/ovaphlow/pitchfork/service-bookcrossing/internal/book/entity"
	"github.com/ovaphlow/pitchfork/service-bookcrossing/pkg/utilities"
)

// Handler contains dependencies for handling book endpoints.
type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

// NewHandler constructs a new Handler.
func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

type CreateRequest struct {
	Title     string `json:"title"`
	Author    string `json:"author"`
	Publisher string `json:"publisher"`
}

// Create lists a book owned by the caller.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	uid, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		utilities.WriteError(w, http.StatusUnauthorized, "missing_token", "authentication required")
		return
	}
	var req CreateRequest
	if err := utilities.DecodeJSON(r, &req); err != nil {
		utilities.WriteError(w, http.StatusBadRequest, "invalid_payload", "invalid payload")
		return
	}
	b, err := h.svc.Register(r.Context(), uid, req.Title, req.Author, req.Publisher)
	if err != nil {
		switch {
		case errors.Is(err, ErrTitleRequired):
			utilities.WriteError(w, http.StatusBadRequest, "invalid_payload", err.Error())
		case errors.Is(err, ErrOwnerNotFound):
			utilities.WriteError(w, http.StatusUnauthorized, "invalid_token", "unknown user")
		default:
			h.logger.Warnw("register book failed", "owner_id", uid, "err", err)
			utilities.WriteError(w, http.StatusInternalServerError, "internal", "register failed")
		}
		return
	}
	utilities.WriteJSON(w, http.StatusCreated, b)
}

// Get returns one book.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		utilities.WriteError(w, http.StatusBadRequest, "invalid_id", "invalid id")
		return
	}
	b, err := h.svc.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			utilities.WriteError(w, http.StatusNotFound, "not_found", "book not found")
			return
		}
		h.logger.Warnw("get book failed", "book_id", id, "err", err)
		utilities.WriteError(w, http.StatusInternalServerError, "internal", "lookup failed")
		return
	}
	utilities.WriteJSON(w, http.StatusOK, b)
}

// List supports ?owner=<id>&visible=<bool>&limit=&offset=.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f entity.Filter
	if v := q.Get("owner"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			utilities.WriteError(w, http.StatusBadRequest, "invalid_query", "invalid owner")
			return
		}
		f.OwnerID = id
	}
	if v := q.Get("visible"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			utilities.WriteError(w, http.StatusBadRequest, "invalid_query", "invalid visible")
			return
		}
		f.Visible = &b
	}
	f.Limit, f.Offset = utilities.PageParams(q)
	books, err := h.svc.List(r.Context(), f)
	if err != nil {
		h.logger.Warnw("list books failed", "err", err)
		utilities.WriteError(w, http.StatusInternalServerError, "internal", "list failed")
		return
	}
	utilities.WriteJSON(w, http.StatusOK, books)
}
