// Package orchestrator drives client runs through fetch, enrich and deliver,
// retrying each stage on its own policy.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"newsdesk/config"
	"newsdesk/types"

	"github.com/google/uuid"
)

var (
	// ErrRunInFlight is returned when a client already has a run in progress
	ErrRunInFlight = errors.New("run already in flight")
	// ErrUnknownRun is returned by Wait for ids it never saw
	ErrUnknownRun = errors.New("unknown run")
	// ErrStopped is returned by Trigger after Stop
	ErrStopped = errors.New("orchestrator stopped")
)

// StageHandler executes one attempt of a stage for a client
type StageHandler interface {
	Run(ctx context.Context, client types.ClientConfig, runID string) (types.StageResult, error)
}

// Options configures an Orchestrator. Zero values fall back to defaults.
type Options struct {
	Policies       map[types.Stage]RetryPolicy
	Workers        []WorkerSpec
	RunTimeout     time.Duration
	AttemptTimeout time.Duration
	// Guard extends the one-run-per-client rule beyond this process
	Guard           Guard
	FailureHandlers []FailureHandler
	History         int
	Log             *slog.Logger
}

type run struct {
	id       string
	client   types.ClientConfig
	ctx      context.Context
	cancel   context.CancelFunc
	attempts map[types.Stage]int
	done     chan struct{}
	once     sync.Once
	final    types.RunSnapshot
}

// Orchestrator owns the worker pool and every in-flight run
type Orchestrator struct {
	handlers map[types.Stage]StageHandler
	policies map[types.Stage]RetryPolicy
	failures []FailureHandler
	pool     *Pool
	status   *Status
	guard    Guard
	log      *slog.Logger

	runTimeout     time.Duration
	attemptTimeout time.Duration

	mu       sync.Mutex
	byClient map[string]*run
	byID     map[string]*run
	stopped  bool
	runs     sync.WaitGroup
}

// New builds an orchestrator. Every stage needs a handler, and the worker
// specs must cover every stage.
func New(handlers map[types.Stage]StageHandler, opts Options) (*Orchestrator, error) {
	for _, st := range types.Stages {
		if handlers[st] == nil {
			return nil, fmt.Errorf("no handler registered for stage %s", st)
		}
	}
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	workers := opts.Workers
	if len(workers) == 0 {
		workers = []WorkerSpec{{Name: "default", Count: config.DefaultWorkers, Capabilities: types.Stages}}
	}
	pool, err := NewPool(workers, log)
	if err != nil {
		return nil, err
	}

	policies := DefaultPolicies()
	for st, p := range opts.Policies {
		policies[st] = p
	}
	for st, p := range policies {
		if p.MaxAttempts < 1 {
			return nil, fmt.Errorf("stage %s: max attempts must be at least 1", st)
		}
	}

	o := &Orchestrator{
		handlers:       handlers,
		policies:       policies,
		pool:           pool,
		status:         NewStatus(opts.History),
		guard:          opts.Guard,
		log:            log,
		runTimeout:     opts.RunTimeout,
		attemptTimeout: opts.AttemptTimeout,
		byClient:       make(map[string]*run),
		byID:           make(map[string]*run),
	}
	if o.runTimeout <= 0 {
		o.runTimeout = config.RunTimeout
	}
	if o.attemptTimeout <= 0 {
		o.attemptTimeout = config.AttemptTimeout
	}
	o.failures = append([]FailureHandler{LogFailures(log), o.status}, opts.FailureHandlers...)
	return o, nil
}

// Start launches the worker pool
func (o *Orchestrator) Start() {
	o.pool.Start()
}

// Status returns active runs, recent runs, failures and log lines
func (o *Orchestrator) Status() types.StatusResponse {
	return o.status.Snapshot()
}

// Trigger starts a run for client and returns its id without waiting for it.
// A client with a run already in progress gets ErrRunInFlight.
func (o *Orchestrator) Trigger(ctx context.Context, client types.ClientConfig) (string, error) {
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return "", ErrStopped
	}
	if cur, ok := o.byClient[client.ID]; ok {
		o.mu.Unlock()
		return cur.id, fmt.Errorf("client %s: %w", client.ID, ErrRunInFlight)
	}
	runCtx, cancel := context.WithTimeout(context.Background(), o.runTimeout)
	r := &run{
		id:       uuid.NewString(),
		client:   client,
		ctx:      runCtx,
		cancel:   cancel,
		attempts: make(map[types.Stage]int),
		done:     make(chan struct{}),
	}
	o.byClient[client.ID] = r
	o.byID[r.id] = r
	o.runs.Add(1)
	o.mu.Unlock()

	if o.guard != nil {
		ok, err := o.guard.Acquire(ctx, client.ID, r.id)
		if err == nil && !ok {
			err = fmt.Errorf("client %s: %w", client.ID, ErrRunInFlight)
		}
		if err != nil {
			o.release(r)
			return "", err
		}
	}

	o.status.Begin(types.RunSnapshot{
		RunID:     r.id,
		ClientID:  client.ID,
		TaskName:  client.TaskName(),
		State:     types.StateInit,
		StartedAt: time.Now().UTC(),
	})
	o.log.Info("run started", "client_id", client.ID, "run_id", r.id)

	o.submit(r, types.StageFetch)
	return r.id, nil
}

// release forgets a run that never started
func (o *Orchestrator) release(r *run) {
	r.cancel()
	o.mu.Lock()
	delete(o.byClient, r.client.ID)
	delete(o.byID, r.id)
	o.mu.Unlock()
	close(r.done)
	o.runs.Done()
}

// Wait blocks until the run finishes or ctx is done
func (o *Orchestrator) Wait(ctx context.Context, runID string) (types.RunSnapshot, error) {
	o.mu.Lock()
	r, ok := o.byID[runID]
	o.mu.Unlock()
	if !ok {
		if snap, found := o.status.Get(runID); found && snap.State.Terminal() {
			return snap, nil
		}
		return types.RunSnapshot{}, fmt.Errorf("run %s: %w", runID, ErrUnknownRun)
	}
	select {
	case <-r.done:
		return r.final, nil
	case <-ctx.Done():
		return types.RunSnapshot{}, ctx.Err()
	}
}

// Stop cancels every in-flight run, waits for them to finish and stops the workers
func (o *Orchestrator) Stop(ctx context.Context) error {
	o.mu.Lock()
	o.stopped = true
	for _, r := range o.byID {
		r.cancel()
	}
	o.mu.Unlock()

	done := make(chan struct{})
	go func() {
		o.runs.Wait()
		o.pool.Stop()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func stateFor(stage types.Stage) types.State {
	switch stage {
	case types.StageFetch:
		return types.StateFetching
	case types.StageEnrich:
		return types.StateEnriching
	default:
		return types.StateDelivering
	}
}

// submit queues the next attempt of stage. Whichever comes first claims the
// job: a worker picking it up, or the run's context ending while it waits in
// the queue. A run that expires behind busy workers fails right away and gives
// up its client slot.
func (o *Orchestrator) submit(r *run, stage types.Stage) {
	o.status.SetState(r.id, stateFor(stage), stage)

	var claim sync.Once
	stop := context.AfterFunc(r.ctx, func() {
		claim.Do(func() {
			o.fail(r, stage, fmt.Errorf("run aborted while queued: %w", r.ctx.Err()))
		})
	})
	err := o.pool.Submit(stage, func(worker string) {
		claimed := false
		claim.Do(func() { claimed = true })
		if !claimed {
			return
		}
		stop()
		o.attempt(r, stage, worker)
	})
	if err != nil {
		claim.Do(func() {
			stop()
			o.fail(r, stage, err)
		})
	}
}

func (o *Orchestrator) attempt(r *run, stage types.Stage, worker string) {
	if err := r.ctx.Err(); err != nil {
		o.fail(r, stage, fmt.Errorf("run aborted: %w", err))
		return
	}
	r.attempts[stage]++
	n := r.attempts[stage]
	o.status.Attempt(r.id, stage, n)

	actx, cancel := context.WithTimeout(r.ctx, o.attemptTimeout)
	res, err := o.invoke(actx, stage, r)
	cancel()
	o.status.Apply(r.id, res)

	if err == nil {
		o.log.Debug("stage succeeded",
			"client_id", r.client.ID, "run_id", r.id, "stage", string(stage), "attempt", n, "worker", worker)
		o.advance(r, stage)
		return
	}

	policy := o.policies[stage]
	if types.IsFatal(err) || n >= policy.MaxAttempts || r.ctx.Err() != nil {
		o.fail(r, stage, err)
		return
	}

	delay := policy.Backoff(n)
	o.log.Warn("stage attempt failed, retrying",
		"client_id", r.client.ID, "run_id", r.id, "stage", string(stage),
		"attempt", n, "max_attempts", policy.MaxAttempts, "backoff", delay, "error", err)
	o.status.AddLog(r.id, r.client.ID, fmt.Sprintf("%s attempt %d failed: %v", stage, n, err))
	o.retryAfter(r, stage, delay)
}

// retryAfter re-submits stage once delay elapses. Cancelling the run while it
// waits fails the run immediately.
func (o *Orchestrator) retryAfter(r *run, stage types.Stage, delay time.Duration) {
	var once sync.Once
	t := time.AfterFunc(delay, func() {
		once.Do(func() { o.submit(r, stage) })
	})
	context.AfterFunc(r.ctx, func() {
		once.Do(func() {
			t.Stop()
			o.fail(r, stage, fmt.Errorf("run aborted during backoff: %w", r.ctx.Err()))
		})
	})
}

// invoke runs the stage handler, turning a panic into an error
func (o *Orchestrator) invoke(ctx context.Context, stage types.Stage, r *run) (res types.StageResult, err error) {
	defer func() {
		if p := recover(); p != nil {
			o.log.Error("stage panicked", "client_id", r.client.ID, "run_id", r.id, "stage", string(stage), "panic", p)
			err = fmt.Errorf("stage %s panicked: %v", stage, p)
		}
	}()
	return o.handlers[stage].Run(ctx, r.client, r.id)
}

func (o *Orchestrator) advance(r *run, stage types.Stage) {
	switch stage {
	case types.StageFetch:
		if r.client.NLPEnabled {
			o.submit(r, types.StageEnrich)
			return
		}
		o.status.SetState(r.id, types.StateSkipped, "")
		o.submit(r, types.StageDeliver)
	case types.StageEnrich:
		o.submit(r, types.StageDeliver)
	case types.StageDeliver:
		o.finish(r, types.StateDone, nil)
	}
}

func (o *Orchestrator) fail(r *run, stage types.Stage, err error) {
	rec := types.FailureRecord{
		TaskName: r.client.TaskName(),
		RunID:    r.id,
		ClientID: r.client.ID,
		Stage:    stage,
		Attempts: r.attempts[stage],
		Fatal:    types.IsFatal(err),
		Summary:  err.Error(),
		At:       time.Now().UTC(),
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	for _, h := range o.failures {
		h.HandleFailure(ctx, rec)
	}
	cancel()
	o.finish(r, types.StateFailed, err)
}

func (o *Orchestrator) finish(r *run, state types.State, err error) {
	r.once.Do(func() {
		r.final = o.status.Finish(r.id, state, err)
		r.cancel()

		if o.guard != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if gerr := o.guard.Release(ctx, r.client.ID, r.id); gerr != nil {
				o.log.Warn("failed to release run guard", "client_id", r.client.ID, "run_id", r.id, "error", gerr)
			}
			cancel()
		}

		o.mu.Lock()
		delete(o.byClient, r.client.ID)
		delete(o.byID, r.id)
		o.mu.Unlock()

		if state == types.StateDone {
			o.log.Info("run finished", "client_id", r.client.ID, "run_id", r.id)
		}
		close(r.done)
		o.runs.Done()
	})
}
