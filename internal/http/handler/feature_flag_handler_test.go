package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hhwjsw711/agentic-jumpstart-sub001/internal/domain"
	"github.com/hhwjsw711/agentic-jumpstart-sub001/internal/http/middleware"
	"github.com/hhwjsw711/agentic-jumpstart-sub001/internal/security"
	"github.com/hhwjsw711/agentic-jumpstart-sub001/internal/service"
)

type stubFeatureFlagService struct {
	service.FeatureFlagService
	updateFn   func(in service.UpdateTargetingInput) error
	lastUpdate *service.UpdateTargetingInput
	listErr    error
}

func (s *stubFeatureFlagService) Evaluate(_ context.Context, flag string, userID uint) service.FeatureFlagEvaluation {
	return service.FeatureFlagEvaluation{Key: domain.FlagKey(flag), Enabled: userID == 7, Source: service.EvaluationSourceStore}
}

func (s *stubFeatureFlagService) EvaluateAll(ctx context.Context, userID uint) []service.FeatureFlagEvaluation {
	out := []service.FeatureFlagEvaluation{}
	for _, key := range domain.FlagKeys() {
		out = append(out, s.Evaluate(ctx, string(key), userID))
	}
	return out
}

func (s *stubFeatureFlagService) ListTargeting(context.Context) ([]service.FlagTargetingSummary, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return []service.FlagTargetingSummary{{Flag: domain.FlagNews, TargetMode: domain.TargetModeAll}}, nil
}

func (s *stubFeatureFlagService) GetTargeting(_ context.Context, flag string) (*service.FlagTargetingView, error) {
	mode := domain.TargetModeAll
	if s.lastUpdate != nil {
		mode = domain.TargetMode(s.lastUpdate.Mode)
	}
	return &service.FlagTargetingView{Flag: domain.FlagKey(flag), TargetMode: mode, Users: []service.FlagTargetingUser{}}, nil
}

func (s *stubFeatureFlagService) UpdateTargeting(_ context.Context, in service.UpdateTargetingInput) error {
	s.lastUpdate = &in
	if s.updateFn != nil {
		return s.updateFn(in)
	}
	return nil
}

func withRouteKey(req *http.Request, key string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("key", key)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func withUser(req *http.Request, userID uint) *http.Request {
	claims := &security.Claims{}
	claims.Subject = strconv.FormatUint(uint64(userID), 10)
	return req.WithContext(middleware.ContextWithClaims(req.Context(), claims))
}

func decodeData(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var env struct {
		Success bool           `json:"success"`
		Data    map[string]any `json:"data"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v body=%s", err, rr.Body.String())
	}
	return env.Data
}

func TestEvaluateOneHandler(t *testing.T) {
	h := NewFeatureFlagHandler(&stubFeatureFlagService{})

	rr := httptest.NewRecorder()
	h.EvaluateOne(rr, withUser(withRouteKey(httptest.NewRequest(http.MethodGet, "/api/v1/features/NEWS_FEATURE", nil), "NEWS_FEATURE"), 7))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	data := decodeData(t, rr)
	if data["key"] != "NEWS_FEATURE" || data["enabled"] != true {
		t.Fatalf("unexpected evaluation payload %+v", data)
	}

	rr = httptest.NewRecorder()
	h.EvaluateOne(rr, withRouteKey(httptest.NewRequest(http.MethodGet, "/api/v1/features/news_feature", nil), "news_feature"))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown flag, got %d", rr.Code)
	}
}

func TestEvaluateAllHandlerAnonymous(t *testing.T) {
	h := NewFeatureFlagHandler(&stubFeatureFlagService{})
	rr := httptest.NewRecorder()
	h.EvaluateAll(rr, httptest.NewRequest(http.MethodGet, "/api/v1/features", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	items, ok := decodeData(t, rr)["items"].([]any)
	if !ok || len(items) != len(domain.FlagKeys()) {
		t.Fatalf("unexpected items %+v", items)
	}
}

func TestUpdateTargetingHandler(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		body     string
		updateFn func(service.UpdateTargetingInput) error
		want     int
		wantCall bool
	}{
		{name: "success", key: "NEWS_FEATURE", body: `{"mode":"CUSTOM","user_ids":[1,2]}`, want: http.StatusOK, wantCall: true},
		{name: "unknown flag", key: "NOPE", body: `{"mode":"ALL"}`, want: http.StatusNotFound},
		{name: "bad json", key: "NEWS_FEATURE", body: `{`, want: http.StatusBadRequest},
		{name: "missing mode", key: "NEWS_FEATURE", body: `{}`, want: http.StatusBadRequest},
		{name: "lowercase mode", key: "NEWS_FEATURE", body: `{"mode":"all"}`, want: http.StatusBadRequest},
		{name: "zero user id", key: "NEWS_FEATURE", body: `{"mode":"CUSTOM","user_ids":[0]}`, want: http.StatusBadRequest},
		{
			name: "service validation", key: "NEWS_FEATURE", body: `{"mode":"CUSTOM","user_ids":[]}`,
			updateFn: func(service.UpdateTargetingInput) error { return service.ErrCustomTargetingRequiresUsers },
			want:     http.StatusBadRequest, wantCall: true,
		},
		{
			name: "store failure", key: "NEWS_FEATURE", body: `{"mode":"ALL"}`,
			updateFn: func(service.UpdateTargetingInput) error { return errors.New("db down") },
			want:     http.StatusInternalServerError, wantCall: true,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubFeatureFlagService{updateFn: tc.updateFn}
			h := NewFeatureFlagHandler(svc)
			req := httptest.NewRequest(http.MethodPut, "/api/v1/admin/feature-flags/"+tc.key+"/targeting", bytes.NewBufferString(tc.body))
			req = withUser(withRouteKey(req, tc.key), 3)
			rr := httptest.NewRecorder()

			h.UpdateTargeting(rr, req)

			if rr.Code != tc.want {
				t.Fatalf("expected %d, got %d body=%s", tc.want, rr.Code, rr.Body.String())
			}
			if (svc.lastUpdate != nil) != tc.wantCall {
				t.Fatalf("unexpected service call state: %+v", svc.lastUpdate)
			}
			if tc.name == "success" {
				if svc.lastUpdate.UpdatedBy != 3 || svc.lastUpdate.Flag != "NEWS_FEATURE" || len(svc.lastUpdate.UserIDs) != 2 {
					t.Fatalf("unexpected update input %+v", svc.lastUpdate)
				}
				if data := decodeData(t, rr); data["target_mode"] != "CUSTOM" {
					t.Fatalf("unexpected response %+v", data)
				}
			}
		})
	}
}

func TestListTargetingHandler(t *testing.T) {
	rr := httptest.NewRecorder()
	NewFeatureFlagHandler(&stubFeatureFlagService{}).ListTargeting(rr, httptest.NewRequest(http.MethodGet, "/x", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	NewFeatureFlagHandler(&stubFeatureFlagService{listErr: errors.New("boom")}).ListTargeting(rr, httptest.NewRequest(http.MethodGet, "/x", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
}

func TestGetTargetingHandlerUnknownFlag(t *testing.T) {
	rr := httptest.NewRecorder()
	NewFeatureFlagHandler(&stubFeatureFlagService{}).GetTargeting(rr, withRouteKey(httptest.NewRequest(http.MethodGet, "/x", nil), "NOPE"))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

type stubEarlyAccess struct{ allow bool }

func (s stubEarlyAccess) CanAccess(context.Context, uint) bool { return s.allow }

func TestEarlyAccessStatusHandler(t *testing.T) {
	rr := httptest.NewRecorder()
	NewEarlyAccessHandler(stubEarlyAccess{allow: true}).Status(rr, httptest.NewRequest(http.MethodGet, "/api/v1/early-access", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if data := decodeData(t, rr); data["can_access"] != true || data["flag"] != "EARLY_ACCESS_MODE" {
		t.Fatalf("unexpected payload %+v", data)
	}
}
