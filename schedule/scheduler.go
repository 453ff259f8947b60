package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"newsdesk/registry"

	"github.com/robfig/cron/v3"
)

// FireFunc starts a run for a client; it must not block for the run's duration
type FireFunc func(clientID string)

// Entry describes an installed trigger
type Entry struct {
	TaskName string    `json:"task_name"`
	ClientID string    `json:"client_id"`
	Spec     string    `json:"spec"`
	Next     time.Time `json:"next"`
}

// Scheduler keeps a cron.Cron in sync with the client registry
type Scheduler struct {
	// rebuildMu serializes whole rebuilds, registry read included
	rebuildMu sync.Mutex
	mu        sync.Mutex
	cron      *cron.Cron
	registry  registry.ClientRegistry
	fire      FireFunc
	log       *slog.Logger
	entries   map[string]cron.EntryID
	triggers  map[string]Trigger
}

// NewScheduler creates a stopped scheduler evaluating specs in loc
func NewScheduler(reg registry.ClientRegistry, fire FireFunc, loc *time.Location, log *slog.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithParser(parser),
		cron.WithChain(cron.Recover(cronLogger{log})),
	)
	return &Scheduler{
		cron:     c,
		registry: reg,
		fire:     fire,
		log:      log,
		entries:  make(map[string]cron.EntryID),
		triggers: make(map[string]Trigger),
	}
}

// Rebuild re-reads the registry and replaces every installed trigger. Entries
// that fail to parse are skipped; the returned slice lists them. A registry
// read failure leaves the current triggers untouched. Concurrent rebuilds run
// one after the other, so the last registry read is the one installed.
func (s *Scheduler) Rebuild(ctx context.Context) ([]error, error) {
	s.rebuildMu.Lock()
	defer s.rebuildMu.Unlock()

	clients, err := s.registry.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read client registry: %w", err)
	}
	triggers, rejected := Build(clients, s.log)

	s.mu.Lock()
	defer s.mu.Unlock()

	for name, id := range s.entries {
		s.cron.Remove(id)
		delete(s.entries, name)
	}
	for name, t := range triggers {
		clientID := t.ClientID
		id := s.cron.Schedule(t.Schedule, cron.FuncJob(func() {
			s.log.Info("trigger fired", "task", name, "client_id", clientID)
			s.fire(clientID)
		}))
		s.entries[name] = id
	}
	s.triggers = triggers

	s.log.Info("schedule rebuilt", "installed", len(triggers), "rejected", len(rejected))
	return rejected, nil
}

// Entries lists installed triggers sorted by task name
func (s *Scheduler) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Entry, 0, len(s.entries))
	for name, id := range s.entries {
		t := s.triggers[name]
		out = append(out, Entry{
			TaskName: name,
			ClientID: t.ClientID,
			Spec:     t.Fields.String(),
			Next:     s.cron.Entry(id).Next,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TaskName < out[j].TaskName })
	return out
}

// Start begins firing triggers in the background
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the cron loop and returns a context done once running jobs return
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// cronLogger adapts slog to cron's logger interface
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error("cron: "+msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
