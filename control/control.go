// Package control consumes operator commands from the Kafka control topic.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"newsdesk/orchestrator"
	"newsdesk/shared/kafka"
	"newsdesk/types"
)

const (
	ActionRebuild = "rebuild"
	ActionRun     = "run"
)

// Message is one control command, e.g. {"action":"run","client_id":"acme"}
type Message struct {
	Action   string `json:"action"`
	ClientID string `json:"client_id,omitempty"`
}

// Rebuilder reloads the schedule from the client registry
type Rebuilder interface {
	Rebuild(ctx context.Context) ([]error, error)
}

// Runner starts a run for a registered client
type Runner interface {
	RunClient(ctx context.Context, clientID string) (string, error)
}

// NewHandler returns the message handler for the control topic. Malformed and
// unknown commands are marked and skipped.
func NewHandler(sched Rebuilder, runner Runner, log *slog.Logger) *kafka.TypedMessageHandler[Message] {
	return &kafka.TypedMessageHandler[Message]{
		Validate: func(msg *Message) bool {
			switch msg.Action {
			case ActionRebuild:
				return true
			case ActionRun:
				if msg.ClientID == "" {
					log.Warn("run command without client_id, skipping")
					return false
				}
				return true
			}
			log.Warn("unknown control action, skipping", "action", msg.Action)
			return false
		},
		Process: func(ctx context.Context, msg *Message) error {
			return process(ctx, sched, runner, log, msg)
		},
		AlwaysMark: true,
		Log:        log,
	}
}

func process(ctx context.Context, sched Rebuilder, runner Runner, log *slog.Logger, msg *Message) error {
	switch msg.Action {
	case ActionRebuild:
		rejected, err := sched.Rebuild(ctx)
		if err != nil {
			return fmt.Errorf("rebuild schedule: %w", err)
		}
		log.Info("schedule rebuilt from control topic", "rejected", len(rejected))
	case ActionRun:
		runID, err := runner.RunClient(ctx, msg.ClientID)
		switch {
		case errors.Is(err, orchestrator.ErrRunInFlight):
			log.Info("run already in flight, command dropped", "client_id", msg.ClientID)
		case errors.Is(err, types.ErrUnknownClient):
			log.Warn("run command for unknown client", "client_id", msg.ClientID)
		case err != nil:
			return fmt.Errorf("run %s: %w", msg.ClientID, err)
		default:
			log.Info("run started from control topic", "client_id", msg.ClientID, "run_id", runID)
		}
	}
	return nil
}

// Config holds the control consumer settings
type Config struct {
	Brokers []string
	Topic   string
	GroupID string
}

// NewConsumer creates a consumer for the control topic
func NewConsumer(cfg Config, sched Rebuilder, runner Runner, log *slog.Logger) (*kafka.Consumer, error) {
	return kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers: cfg.Brokers,
		Topic:   cfg.Topic,
		GroupID: cfg.GroupID,
		Handler: NewHandler(sched, runner, log),
		Log:     log,
	})
}
