package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/hhwjsw711/agentic-jumpstart-sub001/internal/domain"
	"github.com/hhwjsw711/agentic-jumpstart-sub001/internal/http/middleware"
	"github.com/hhwjsw711/agentic-jumpstart-sub001/internal/http/response"
	"github.com/hhwjsw711/agentic-jumpstart-sub001/internal/observability"
	"github.com/hhwjsw711/agentic-jumpstart-sub001/internal/service"
)

const maxTargetingBodyBytes = 1 << 20

type updateTargetingRequest struct {
	Mode    string `json:"mode" validate:"required,oneof=ALL PREMIUM NON_PREMIUM CUSTOM"`
	UserIDs []uint `json:"user_ids" validate:"omitempty,dive,gt=0"`
}

type FeatureFlagHandler struct {
	svc      service.FeatureFlagService
	validate *validator.Validate
}

func NewFeatureFlagHandler(svc service.FeatureFlagService) *FeatureFlagHandler {
	return &FeatureFlagHandler{svc: svc, validate: validator.New(validator.WithRequiredStructEnabled())}
}

func (h *FeatureFlagHandler) EvaluateAll(w http.ResponseWriter, r *http.Request) {
	results := h.svc.EvaluateAll(r.Context(), middleware.UserIDFromContext(r.Context()))
	response.JSON(w, r, http.StatusOK, map[string]any{"items": results})
}

func (h *FeatureFlagHandler) EvaluateOne(w http.ResponseWriter, r *http.Request) {
	flag, ok := flagFromPath(r)
	if !ok {
		response.Error(w, r, http.StatusNotFound, "UNKNOWN_FEATURE_FLAG", "feature flag not found", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, h.svc.Evaluate(r.Context(), string(flag), middleware.UserIDFromContext(r.Context())))
}

// FeatureStatus answers for routes already guarded by RequireFeature.
func (h *FeatureFlagHandler) FeatureStatus(flag domain.FlagKey) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, map[string]any{"feature": flag, "enabled": true})
	}
}

func (h *FeatureFlagHandler) ListTargeting(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListTargeting(r.Context())
	if err != nil {
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to list feature flag targeting", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]any{"items": items})
}

func (h *FeatureFlagHandler) GetTargeting(w http.ResponseWriter, r *http.Request) {
	flag, ok := flagFromPath(r)
	if !ok {
		response.Error(w, r, http.StatusNotFound, "UNKNOWN_FEATURE_FLAG", "feature flag not found", nil)
		return
	}
	view, err := h.svc.GetTargeting(r.Context(), string(flag))
	if err != nil {
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to load feature flag targeting", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, view)
}

func (h *FeatureFlagHandler) UpdateTargeting(w http.ResponseWriter, r *http.Request) {
	actorID := middleware.UserIDFromContext(r.Context())
	rawKey := strings.TrimSpace(chi.URLParam(r, "key"))
	audit := observability.AuditInput{
		EventName:   "feature_flag.targeting.update",
		ActorUserID: observability.ActorUserID(actorID),
		TargetType:  "feature_flag",
		TargetID:    rawKey,
		Action:      "update_targeting",
	}

	flag, ok := domain.ParseFlagKey(rawKey)
	if !ok {
		audit.Outcome, audit.Reason = "rejected", "unknown_flag"
		observability.EmitAudit(r, audit)
		response.Error(w, r, http.StatusNotFound, "UNKNOWN_FEATURE_FLAG", "feature flag not found", nil)
		return
	}

	var body updateTargetingRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxTargetingBodyBytes)).Decode(&body); err != nil {
		audit.Outcome, audit.Reason = "rejected", "invalid_payload"
		observability.EmitAudit(r, audit)
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if err := h.validate.Struct(body); err != nil {
		audit.Outcome, audit.Reason = "rejected", "validation_failed"
		observability.EmitAudit(r, audit, "mode", body.Mode)
		response.Error(w, r, http.StatusBadRequest, "INVALID_TARGETING", "invalid targeting payload", validationDetails(err))
		return
	}

	err := h.svc.UpdateTargeting(r.Context(), service.UpdateTargetingInput{
		Flag:      string(flag),
		Mode:      body.Mode,
		UserIDs:   body.UserIDs,
		UpdatedBy: actorID,
	})
	if err != nil {
		if service.IsValidationError(err) {
			audit.Outcome, audit.Reason = "rejected", "validation_failed"
			observability.EmitAudit(r, audit, "mode", body.Mode, "user_count", len(body.UserIDs))
			response.Error(w, r, http.StatusBadRequest, "INVALID_TARGETING", err.Error(), nil)
			return
		}
		audit.Outcome, audit.Reason = "failure", "store_error"
		observability.EmitAudit(r, audit, "mode", body.Mode, "user_count", len(body.UserIDs))
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to update feature flag targeting", nil)
		return
	}

	audit.Outcome, audit.Reason = "success", "targeting_replaced"
	observability.EmitAudit(r, audit, "mode", body.Mode, "user_count", len(body.UserIDs))

	view, err := h.svc.GetTargeting(r.Context(), string(flag))
	if err != nil {
		response.JSON(w, r, http.StatusOK, map[string]any{"flag": flag, "target_mode": body.Mode})
		return
	}
	response.JSON(w, r, http.StatusOK, view)
}

func flagFromPath(r *http.Request) (domain.FlagKey, bool) {
	return domain.ParseFlagKey(strings.TrimSpace(chi.URLParam(r, "key")))
}

func validationDetails(err error) []map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make([]map[string]string, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, map[string]string{"field": fe.Field(), "rule": fe.Tag()})
	}
	return out
}
