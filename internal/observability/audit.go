package observability

import (
	"log/slog"
	"net/http"
	"strconv"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

type AuditInput struct {
	EventName   string
	ActorUserID string
	TargetType  string
	TargetID    string
	Action      string
	Outcome     string
	Reason      string
}

func ActorUserID(userID uint) string {
	if userID == 0 {
		return "anonymous"
	}
	return strconv.FormatUint(uint64(userID), 10)
}

// EmitAudit writes one structured audit record; extra must be key/value pairs.
func EmitAudit(r *http.Request, in AuditInput, extra ...any) {
	EmitAuditWithLogger(slog.Default(), r, in, extra...)
}

func EmitAuditWithLogger(logger *slog.Logger, r *http.Request, in AuditInput, extra ...any) {
	if logger == nil {
		logger = slog.Default()
	}
	args := []any{
		"event_id", uuid.NewString(),
		"event_name", in.EventName,
		"actor_user_id", in.ActorUserID,
		"target_type", in.TargetType,
		"target_id", in.TargetID,
		"action", in.Action,
		"outcome", in.Outcome,
		"reason", in.Reason,
	}
	ctx := r.Context()
	if id := chimiddleware.GetReqID(ctx); id != "" {
		args = append(args, "request_id", id)
	}
	args = append(args, "path", r.URL.Path)
	args = append(args, extra...)
	logger.InfoContext(ctx, "audit_event", args...)
}
