// Package schedule turns client registry entries into cron triggers.
package schedule

import (
	"fmt"
	"log/slog"
	"strings"

	"newsdesk/types"

	"github.com/robfig/cron/v3"
)

// Fields are the five positional parts of a cron expression
type Fields struct {
	Minute     string `json:"minute"`
	Hour       string `json:"hour"`
	DayOfMonth string `json:"day_of_month"`
	Month      string `json:"month"`
	DayOfWeek  string `json:"day_of_week"`
}

func (f Fields) String() string {
	return strings.Join([]string{f.Minute, f.Hour, f.DayOfMonth, f.Month, f.DayOfWeek}, " ")
}

// Trigger is one named schedule entry
type Trigger struct {
	TaskName string
	ClientID string
	Fields   Fields
	Schedule cron.Schedule
}

// ParseError reports a schedule entry that was rejected
type ParseError struct {
	ClientID string
	Spec     string
	Reason   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("client %q: bad schedule %q: %s", e.ClientID, e.Spec, e.Reason)
}

func (e *ParseError) Unwrap() error { return types.ErrScheduleParse }

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Parse splits spec into exactly five fields and validates them
func Parse(clientID, spec string) (Fields, cron.Schedule, error) {
	parts := strings.Fields(spec)
	if len(parts) != 5 {
		return Fields{}, nil, &ParseError{
			ClientID: clientID,
			Spec:     spec,
			Reason:   fmt.Sprintf("expected 5 fields, got %d", len(parts)),
		}
	}
	f := Fields{
		Minute:     parts[0],
		Hour:       parts[1],
		DayOfMonth: parts[2],
		Month:      parts[3],
		DayOfWeek:  parts[4],
	}
	sched, err := parser.Parse(f.String())
	if err != nil {
		return Fields{}, nil, &ParseError{ClientID: clientID, Spec: spec, Reason: err.Error()}
	}
	return f, sched, nil
}

// Build derives the trigger map from clients. Entries that fail to parse, or
// that repeat an id already seen, are logged and returned as errors; they never
// prevent the remaining entries from being scheduled.
func Build(clients []types.ClientConfig, log *slog.Logger) (map[string]Trigger, []error) {
	triggers := make(map[string]Trigger, len(clients))
	seen := make(map[string]bool, len(clients))
	var errs []error

	for _, c := range clients {
		if strings.TrimSpace(c.ID) == "" {
			err := &ParseError{Spec: c.Schedule, Reason: "empty client id"}
			errs = append(errs, err)
			log.Error("schedule entry rejected", "error", err)
			continue
		}
		name := c.TaskName()
		if seen[c.ID] {
			err := &ParseError{ClientID: c.ID, Spec: c.Schedule, Reason: "duplicate client id"}
			errs = append(errs, err)
			log.Error("schedule entry rejected", "task", name, "error", err)
			continue
		}
		seen[c.ID] = true
		fields, sched, err := Parse(c.ID, c.Schedule)
		if err != nil {
			errs = append(errs, err)
			log.Error("schedule entry rejected", "task", name, "error", err)
			continue
		}
		triggers[name] = Trigger{TaskName: name, ClientID: c.ID, Fields: fields, Schedule: sched}
	}
	return triggers, errs
}
