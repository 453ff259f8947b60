package orchestrator

import (
	"strings"
	"sync"
	"testing"
	"time"

	"newsdesk/config"
	"newsdesk/logging"
	"newsdesk/types"
)

func TestNewPoolRequiresCapableWorker(t *testing.T) {
	_, err := NewPool([]WorkerSpec{
		{Name: "io", Count: 2, Capabilities: []types.Stage{types.StageFetch, types.StageDeliver}},
	}, logging.Discard())
	if err == nil || !strings.Contains(err.Error(), "enrich") {
		t.Fatalf("expected missing enrich worker error, got %v", err)
	}

	_, err = NewPool([]WorkerSpec{{Name: "x", Count: 1, Capabilities: []types.Stage{"render"}}}, logging.Discard())
	if err == nil {
		t.Error("unknown capability accepted")
	}
	_, err = NewPool([]WorkerSpec{{Name: "x", Count: 0, Capabilities: types.Stages}}, logging.Discard())
	if err == nil {
		t.Error("zero count accepted")
	}
}

func TestPoolRoutesByCapability(t *testing.T) {
	p, err := NewPool([]WorkerSpec{
		{Name: "io", Count: 2, Capabilities: []types.Stage{types.StageFetch, types.StageDeliver}},
		{Name: "nlp", Count: 1, Capabilities: []types.Stage{types.StageEnrich}},
	}, logging.Discard())
	if err != nil {
		t.Fatal(err)
	}
	p.Start()

	var mu sync.Mutex
	ran := make(map[types.Stage][]string)
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		for _, st := range types.Stages {
			st := st
			wg.Add(1)
			if err := p.Submit(st, func(worker string) {
				defer wg.Done()
				mu.Lock()
				ran[st] = append(ran[st], worker)
				mu.Unlock()
			}); err != nil {
				t.Fatal(err)
			}
		}
	}
	wg.Wait()
	p.Stop()

	for _, w := range ran[types.StageEnrich] {
		if !strings.HasPrefix(w, "nlp-") {
			t.Errorf("enrich ran on %s", w)
		}
	}
	for _, st := range []types.Stage{types.StageFetch, types.StageDeliver} {
		for _, w := range ran[st] {
			if !strings.HasPrefix(w, "io-") {
				t.Errorf("%s ran on %s", st, w)
			}
		}
	}
	if err := p.Submit(types.StageFetch, func(string) {}); err != ErrPoolClosed {
		t.Errorf("expected ErrPoolClosed, got %v", err)
	}
}

func TestPoolBusyWorkerDoesNotBlockOtherStages(t *testing.T) {
	p, err := NewPool([]WorkerSpec{
		{Name: "io", Count: 1, Capabilities: []types.Stage{types.StageFetch, types.StageDeliver}},
		{Name: "nlp", Count: 1, Capabilities: []types.Stage{types.StageEnrich}},
	}, logging.Discard())
	if err != nil {
		t.Fatal(err)
	}
	p.Start()
	defer p.Stop()

	block := make(chan struct{})
	done := make(chan string, 1)
	_ = p.Submit(types.StageEnrich, func(string) { <-block })
	_ = p.Submit(types.StageFetch, func(w string) { done <- w })

	select {
	case w := <-done:
		if w != "io-0" {
			t.Errorf("fetch ran on %s", w)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("fetch job starved behind enrich")
	}
	close(block)
}

func TestRetryDelay(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 5, BackoffBase: time.Second, BackoffCap: 10 * time.Second}
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 10 * time.Second},
		{40, 10 * time.Second},
	}
	for _, tt := range tests {
		if got := p.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %s, want %s", tt.attempt, got, tt.want)
		}
	}

	p.Jitter = true
	for i := 0; i < 100; i++ {
		if d := p.Backoff(3); d < 0 || d > 4*time.Second {
			t.Fatalf("jittered backoff %s out of range", d)
		}
	}
}

func TestPoliciesFromConfig(t *testing.T) {
	p := PoliciesFromConfig(map[string]config.Retry{
		"enrich": {MaxAttempts: 7},
		"bogus":  {MaxAttempts: 1},
	})
	if p[types.StageEnrich].MaxAttempts != 7 || p[types.StageEnrich].BackoffCap != 120*time.Second {
		t.Errorf("enrich policy %+v", p[types.StageEnrich])
	}
	if p[types.StageFetch].MaxAttempts != 3 || p[types.StageDeliver].BackoffCap != 60*time.Second {
		t.Errorf("defaults changed: %+v", p)
	}
	if len(p) != 3 {
		t.Errorf("unexpected stages %v", p)
	}
}

func TestStatusHistoryBounded(t *testing.T) {
	s := NewStatus(3)
	for i := 0; i < 5; i++ {
		id := string(rune('a' + i))
		s.Begin(types.RunSnapshot{RunID: id, ClientID: "C"})
		s.Finish(id, types.StateDone, nil)
	}
	resp := s.Snapshot()
	if len(resp.Recent) != 3 || resp.Recent[0].RunID != "c" {
		t.Errorf("recent %+v", resp.Recent)
	}
	if len(resp.Logs) != 3 {
		t.Errorf("logs %d", len(resp.Logs))
	}
	if _, ok := s.Get("a"); ok {
		t.Error("evicted run still visible")
	}
}
