package orchestrator

import (
	"context"
	"encoding/json"
	"log/slog"

	"newsdesk/types"
)

// FailureHandler is told about every run that ends FAILED. Handlers run in
// registration order and must not block for long.
type FailureHandler interface {
	HandleFailure(ctx context.Context, rec types.FailureRecord)
}

// FailureHandlerFunc adapts a function to FailureHandler
type FailureHandlerFunc func(ctx context.Context, rec types.FailureRecord)

func (f FailureHandlerFunc) HandleFailure(ctx context.Context, rec types.FailureRecord) {
	f(ctx, rec)
}

// LogFailures writes each failure as a structured error line
func LogFailures(log *slog.Logger) FailureHandler {
	return FailureHandlerFunc(func(ctx context.Context, rec types.FailureRecord) {
		log.Error("run failed",
			"task", rec.TaskName,
			"run_id", rec.RunID,
			"client_id", rec.ClientID,
			"stage", string(rec.Stage),
			"attempts", rec.Attempts,
			"fatal", rec.Fatal,
			"error", rec.Summary)
	})
}

type publisher interface {
	Publish(ctx context.Context, key string, value []byte) error
}

// PublishFailures forwards failure records as JSON keyed by client id
func PublishFailures(pub publisher, log *slog.Logger) FailureHandler {
	return FailureHandlerFunc(func(ctx context.Context, rec types.FailureRecord) {
		b, err := json.Marshal(rec)
		if err != nil {
			log.Error("failed to encode failure record", "run_id", rec.RunID, "error", err)
			return
		}
		if err := pub.Publish(ctx, rec.ClientID, b); err != nil {
			log.Warn("failed to publish failure record", "run_id", rec.RunID, "error", err)
		}
	})
}
