package orchestrator

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"newsdesk/config"
	"newsdesk/types"
)

// ErrPoolClosed is returned by Submit after Stop
var ErrPoolClosed = errors.New("worker pool closed")

// WorkerSpec declares a group of identical workers and the stages they run
type WorkerSpec struct {
	Name         string
	Count        int
	Capabilities []types.Stage
}

// WorkerSpecsFromConfig converts configured worker groups
func WorkerSpecsFromConfig(groups []config.WorkerConfig) []WorkerSpec {
	specs := make([]WorkerSpec, 0, len(groups))
	for _, g := range groups {
		spec := WorkerSpec{Name: g.Name, Count: g.Count}
		for _, c := range g.Capabilities {
			spec.Capabilities = append(spec.Capabilities, types.Stage(strings.ToLower(strings.TrimSpace(c))))
		}
		specs = append(specs, spec)
	}
	return specs
}

type job struct {
	stage types.Stage
	run   func(worker string)
}

// Pool runs stage jobs on a fixed set of workers. A job is only handed to a
// worker whose spec lists the job's stage.
type Pool struct {
	mu      sync.Mutex
	cond    *sync.Cond
	pending []job
	closed  bool
	started bool
	specs   []WorkerSpec
	wg      sync.WaitGroup
	log     *slog.Logger
}

// NewPool validates specs. Every stage must have at least one capable worker.
func NewPool(specs []WorkerSpec, log *slog.Logger) (*Pool, error) {
	covered := make(map[types.Stage]bool)
	for _, s := range specs {
		if s.Count <= 0 {
			return nil, fmt.Errorf("worker group %q: count must be positive", s.Name)
		}
		for _, c := range s.Capabilities {
			if !knownStage(c) {
				return nil, fmt.Errorf("worker group %q: unknown capability %q", s.Name, c)
			}
			covered[c] = true
		}
	}
	var missing []string
	for _, st := range types.Stages {
		if !covered[st] {
			missing = append(missing, string(st))
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("no worker can run stage %s", strings.Join(missing, ", "))
	}

	p := &Pool{specs: specs, log: log}
	p.cond = sync.NewCond(&p.mu)
	return p, nil
}

func knownStage(s types.Stage) bool {
	for _, st := range types.Stages {
		if s == st {
			return true
		}
	}
	return false
}

// Start launches the workers
func (p *Pool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true
	for _, s := range p.specs {
		caps := make(map[types.Stage]bool, len(s.Capabilities))
		for _, c := range s.Capabilities {
			caps[c] = true
		}
		for i := 0; i < s.Count; i++ {
			name := fmt.Sprintf("%s-%d", s.Name, i)
			p.wg.Add(1)
			go p.work(name, caps)
		}
	}
}

// Submit queues a job for the given stage
func (p *Pool) Submit(stage types.Stage, run func(worker string)) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPoolClosed
	}
	p.pending = append(p.pending, job{stage: stage, run: run})
	p.cond.Broadcast()
	return nil
}

// Pending returns the number of queued jobs
func (p *Pool) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

// Stop refuses new jobs, lets workers drain what is queued and waits for them
func (p *Pool) Stop() {
	p.mu.Lock()
	p.closed = true
	p.cond.Broadcast()
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *Pool) work(name string, caps map[types.Stage]bool) {
	defer p.wg.Done()
	for {
		j, ok := p.next(caps)
		if !ok {
			p.log.Debug("worker stopped", "worker", name)
			return
		}
		j.run(name)
	}
}

// next blocks until a job this worker can run is queued, or the pool is
// closed with nothing left for it
func (p *Pool) next(caps map[types.Stage]bool) (job, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for {
		for i, j := range p.pending {
			if caps[j.stage] {
				p.pending = append(p.pending[:i], p.pending[i+1:]...)
				return j, true
			}
		}
		if p.closed {
			return job{}, false
		}
		p.cond.Wait()
	}
}
