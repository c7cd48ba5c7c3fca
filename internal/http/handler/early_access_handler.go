package handler

import (
	"net/http"

	"github.com/hhwjsw711/agentic-jumpstart-sub001/internal/domain"
	"github.com/hhwjsw711/agentic-jumpstart-sub001/internal/http/middleware"
	"github.com/hhwjsw711/agentic-jumpstart-sub001/internal/http/response"
	"github.com/hhwjsw711/agentic-jumpstart-sub001/internal/service"
)

type EarlyAccessHandler struct {
	earlyAccess service.EarlyAccessService
}

func NewEarlyAccessHandler(earlyAccess service.EarlyAccessService) *EarlyAccessHandler {
	return &EarlyAccessHandler{earlyAccess: earlyAccess}
}

func (h *EarlyAccessHandler) Status(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	response.JSON(w, r, http.StatusOK, map[string]any{
		"flag":       domain.FlagEarlyAccessMode,
		"can_access": h.earlyAccess.CanAccess(r.Context(), userID),
	})
}

func Live(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}
