package handler

import (
	"net/http"
	"strconv"
	"strings"

	"waterdash/internal/model"
	"waterdash/internal/service"
)

// AuditHandler exposes the audit trail, master users only (enforced by
// the route's permission gate).
type AuditHandler struct {
	audit *service.AuditService
}

func NewAuditHandler(audit *service.AuditService) *AuditHandler {
	return &AuditHandler{audit: audit}
}

func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	query := model.AuditQuery{
		Action:  strings.TrimSpace(r.URL.Query().Get("action")),
		ActorID: strings.TrimSpace(r.URL.Query().Get("actor_id")),
		Outcome: strings.TrimSpace(r.URL.Query().Get("outcome")),
	}
	query.Page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	query.Limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	if query.Page < 1 {
		query.Page = 1
	}
	if query.Limit <= 0 {
		query.Limit = 50
	}

	events, err := h.audit.Query(r.Context(), query)
	if err != nil {
		writeError(w, err)
		return
	}

	meta := &model.Meta{Page: query.Page, Limit: query.Limit, Total: len(events)}
	writeSuccess(w, http.StatusOK, events, meta)
}
