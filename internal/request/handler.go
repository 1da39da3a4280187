package request

import (
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-bookcrossing/internal/auth"
	"github.com/ovaphlow/pitchfork/service-bookcrossing/internal/request/entity"
	"github.com/ovaphlow/pitchfork/service-bookcrossing/pkg/utilities"
)

// Handler exposes the request lifecycle over HTTP.
type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Response wraps a request with its derived state.
type Response struct {
	*entity.Request
	State entity.State `json:"state"`
}

func respond(req *entity.Request) Response {
	return Response{Request: req, State: req.State()}
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	uid, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		utilities.WriteError(w, http.StatusUnauthorized, "missing_token", "authentication required")
		return
	}
	var p entity.CreatePayload
	if err := utilities.DecodeJSON(r, &p); err != nil {
		h.logger.Debugw("invalid request payload", "err", err)
		utilities.WriteError(w, http.StatusBadRequest, "invalid_payload", "invalid payload")
		return
	}
	req, err := h.svc.Create(r.Context(), uid, p)
	if err != nil {
		h.writeErr(w, "create", err)
		return
	}
	if req == nil {
		utilities.WriteError(w, http.StatusConflict, "quota_exhausted", "open request limit reached")
		return
	}
	utilities.WriteJSON(w, http.StatusCreated, respond(req))
}

// Get is visible to the request's owner and requester only.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	req, ok := h.authorize(w, r, id, isParty)
	if !ok {
		return
	}
	utilities.WriteJSON(w, http.StatusOK, respond(req))
}

// List supports ?owner=&requester=&book=&limit=&offset=. The caller must be
// the owner or the requester named in the filter; with neither given it
// lists the caller's own requests.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	uid, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		utilities.WriteError(w, http.StatusUnauthorized, "missing_token", "authentication required")
		return
	}
	q := r.URL.Query()
	var f entity.Filter
	for key, dst := range map[string]*int64{"owner": &f.OwnerUserID, "requester": &f.ReqUserID, "book": &f.BookID} {
		v := q.Get(key)
		if v == "" {
			continue
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			utilities.WriteError(w, http.StatusBadRequest, "invalid_query", "invalid "+key)
			return
		}
		*dst = n
	}
	if f.OwnerUserID == 0 && f.ReqUserID == 0 {
		f.ReqUserID = uid
	}
	if f.OwnerUserID != uid && f.ReqUserID != uid {
		utilities.WriteError(w, http.StatusForbidden, "forbidden", "can only list own requests")
		return
	}
	f.Limit, f.Offset = utilities.PageParams(q)
	reqs, err := h.svc.List(r.Context(), f)
	if err != nil {
		h.writeErr(w, "list", err)
		return
	}
	out := make([]Response, 0, len(reqs))
	for _, req := range reqs {
		out = append(out, respond(req))
	}
	utilities.WriteJSON(w, http.StatusOK, out)
}

// Update is reserved to the book's owner.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var p entity.UpdatePayload
	if err := utilities.DecodeJSON(r, &p); err != nil {
		utilities.WriteError(w, http.StatusBadRequest, "invalid_payload", "invalid payload")
		return
	}
	if _, ok := h.authorize(w, r, id, isOwner); !ok {
		return
	}
	req, err := h.svc.Update(r.Context(), id, p)
	if err != nil {
		h.writeErr(w, "update", err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, respond(req))
}

// Delete resolves the request and hands the book to the requester. The
// owner may resolve in any state; the requester only once the owner has
// accepted.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if _, ok := h.authorize(w, r, id, func(req *entity.Request, uid int64) bool {
		return isOwner(req, uid) || (req.ReqUserID == uid && req.State() == entity.StateAccepted)
	}); !ok {
		return
	}
	req, err := h.svc.Delete(r.Context(), id)
	if err != nil {
		h.writeErr(w, "delete", err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, respond(req))
}

func isOwner(req *entity.Request, uid int64) bool { return req.OwnerUserID == uid }

func isParty(req *entity.Request, uid int64) bool {
	return req.OwnerUserID == uid || req.ReqUserID == uid
}

// authorize loads the request and checks the caller against allowed.
func (h *Handler) authorize(w http.ResponseWriter, r *http.Request, id int64, allowed func(*entity.Request, int64) bool) (*entity.Request, bool) {
	uid, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		utilities.WriteError(w, http.StatusUnauthorized, "missing_token", "authentication required")
		return nil, false
	}
	req, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.writeErr(w, "authorize", err)
		return nil, false
	}
	if !allowed(req, uid) {
		utilities.WriteError(w, http.StatusForbidden, "forbidden", "not permitted on this request")
		return nil, false
	}
	return req, true
}

func (h *Handler) writeErr(w http.ResponseWriter, op string, err error) {
	var se *StorageError
	switch {
	case errors.Is(err, ErrNotFound):
		utilities.WriteError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, ErrBookNotFound), errors.Is(err, ErrUserNotFound):
		utilities.WriteError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, ErrBookUnavailable):
		utilities.WriteError(w, http.StatusConflict, "book_unavailable", err.Error())
	case errors.Is(err, ErrRequesterMismatch):
		utilities.WriteError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, ErrInvalidPayload), errors.Is(err, ErrOwnerMismatch), errors.Is(err, ErrSelfRequest):
		utilities.WriteError(w, http.StatusUnprocessableEntity, "invalid_payload", err.Error())
	case errors.As(err, &se):
		h.logger.Errorw("request storage failure", "op", op, "err", err)
		utilities.WriteError(w, http.StatusInternalServerError, "storage_error", "storage failure")
	default:
		h.logger.Errorw("request operation failed", "op", op, "err", err)
		utilities.WriteError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		utilities.WriteError(w, http.StatusBadRequest, "invalid_id", "invalid id")
		return 0, false
	}
	return id, true
}
