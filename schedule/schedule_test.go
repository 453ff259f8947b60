package schedule

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"newsdesk/logging"
	"newsdesk/registry"
	"newsdesk/types"
)

func TestParse(t *testing.T) {
	cases := []struct {
		name    string
		spec    string
		wantErr bool
		want    Fields
	}{
		{"daily", "0 7 * * *", false, Fields{"0", "7", "*", "*", "*"}},
		{"extra whitespace", "  */15   9-17 * * 1-5 ", false, Fields{"*/15", "9-17", "*", "*", "1-5"}},
		{"four fields", "0 7 * *", true, Fields{}},
		{"six fields", "0 0 7 * * *", true, Fields{}},
		{"out of range", "61 7 * * *", true, Fields{}},
		{"garbage", "every morning please ok", true, Fields{}},
		{"empty", "", true, Fields{}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			f, sched, err := Parse("acme", c.spec)
			if c.wantErr {
				if !errors.Is(err, types.ErrScheduleParse) {
					t.Fatalf("Parse(%q) err = %v; want ErrScheduleParse", c.spec, err)
				}
				if !types.IsFatal(err) {
					t.Fatalf("schedule errors must be fatal")
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q): %v", c.spec, err)
			}
			if f != c.want {
				t.Fatalf("fields = %+v; want %+v", f, c.want)
			}
			if sched == nil {
				t.Fatalf("nil schedule")
			}
		})
	}
}

func TestBuildIsolatesBadEntries(t *testing.T) {
	clients := []types.ClientConfig{
		{ID: "good1", Schedule: "0 7 * * *"},
		{ID: "bad", Schedule: "0 7 * *"},
		{ID: "good2", Schedule: "30 18 * * 1-5"},
		{ID: "good1", Schedule: "5 5 * * *"},
		{ID: "", Schedule: "0 0 * * *"},
	}
	triggers, errs := Build(clients, logging.Discard())

	if len(triggers) != 2 {
		t.Fatalf("got %d triggers; want 2", len(triggers))
	}
	for _, name := range []string{"task_for_good1", "task_for_good2"} {
		if _, ok := triggers[name]; !ok {
			t.Fatalf("missing %s", name)
		}
	}
	if triggers["task_for_good1"].Fields.Hour != "7" {
		t.Fatalf("duplicate id replaced the first entry")
	}
	if len(errs) != 3 {
		t.Fatalf("got %d errors; want 3: %v", len(errs), errs)
	}
	var pe *ParseError
	if !errors.As(errs[0], &pe) || pe.ClientID != "bad" {
		t.Fatalf("first error = %v", errs[0])
	}
}

func TestScheduleNextFire(t *testing.T) {
	_, sched, err := Parse("acme", "30 7 * * 1")
	if err != nil {
		t.Fatal(err)
	}
	from := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) // Wednesday
	next := sched.Next(from)
	want := time.Date(2024, 5, 6, 7, 30, 0, 0, time.UTC) // Monday
	if !next.Equal(want) {
		t.Fatalf("next = %v; want %v", next, want)
	}
}

type switchRegistry struct {
	registry.Static
	err error
}

func (s *switchRegistry) List(ctx context.Context) ([]types.ClientConfig, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.Static.List(ctx)
}

func TestSchedulerRebuild(t *testing.T) {
	reg := &switchRegistry{Static: registry.Static{
		{ID: "a", Schedule: "0 7 * * *"},
		{ID: "b", Schedule: "nope"},
	}}
	s := NewScheduler(reg, func(string) {}, time.UTC, logging.Discard())

	rejected, err := s.Rebuild(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(rejected) != 1 {
		t.Fatalf("rejected = %v", rejected)
	}
	entries := s.Entries()
	if len(entries) != 1 || entries[0].TaskName != "task_for_a" || entries[0].Spec != "0 7 * * *" {
		t.Fatalf("entries = %+v", entries)
	}

	reg.Static = registry.Static{
		{ID: "b", Schedule: "0 8 * * *"},
		{ID: "c", Schedule: "0 9 * * *"},
	}
	if _, err := s.Rebuild(context.Background()); err != nil {
		t.Fatal(err)
	}
	entries = s.Entries()
	if len(entries) != 2 || entries[0].ClientID != "b" || entries[1].ClientID != "c" {
		t.Fatalf("entries after rebuild = %+v", entries)
	}

	reg.err = errors.New("registry down")
	if _, err := s.Rebuild(context.Background()); err == nil {
		t.Fatal("expected registry error")
	}
	if len(s.Entries()) != 2 {
		t.Fatalf("failed rebuild must keep existing triggers")
	}
}

func TestSchedulerFires(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for a real cron tick")
	}
	fired := make(chan string, 1)
	reg := registry.Static{{ID: "tick", Schedule: "* * * * *"}}
	s := NewScheduler(reg, func(id string) {
		select {
		case fired <- id:
		default:
		}
	}, time.UTC, logging.Discard())
	if _, err := s.Rebuild(context.Background()); err != nil {
		t.Fatal(err)
	}
	s.Start()
	defer s.Stop()

	select {
	case id := <-fired:
		if id != "tick" {
			t.Fatalf("fired %q", id)
		}
	case <-time.After(65 * time.Second):
		t.Fatal("trigger did not fire within a minute")
	}
}

// gatedRegistry blocks its first List until release is closed
type gatedRegistry struct {
	mu      sync.Mutex
	calls   int
	entered chan struct{}
	release chan struct{}
	lists   []registry.Static
}

func (g *gatedRegistry) List(ctx context.Context) ([]types.ClientConfig, error) {
	g.mu.Lock()
	n := g.calls
	g.calls++
	g.mu.Unlock()
	if n == 0 {
		close(g.entered)
		<-g.release
	}
	return g.lists[n].List(ctx)
}

func (g *gatedRegistry) Get(ctx context.Context, id string) (types.ClientConfig, error) {
	return g.lists[len(g.lists)-1].Get(ctx, id)
}

func TestConcurrentRebuildInstallsLatestRead(t *testing.T) {
	reg := &gatedRegistry{
		entered: make(chan struct{}),
		release: make(chan struct{}),
		lists: []registry.Static{
			{{ID: "c1", Schedule: "0 7 * * *"}},
			{{ID: "c1", Schedule: "0 7 * * *"}, {ID: "c2", Schedule: "0 8 * * *"}},
		},
	}
	s := NewScheduler(reg, func(string) {}, time.UTC, logging.Discard())

	first := make(chan error, 1)
	go func() {
		_, err := s.Rebuild(context.Background())
		first <- err
	}()
	<-reg.entered

	second := make(chan error, 1)
	go func() {
		_, err := s.Rebuild(context.Background())
		second <- err
	}()

	// the second rebuild must not read the registry while the first is in flight
	time.Sleep(50 * time.Millisecond)
	reg.mu.Lock()
	calls := reg.calls
	reg.mu.Unlock()
	if calls != 1 {
		t.Fatalf("registry read %d times while first rebuild was in flight", calls)
	}

	close(reg.release)
	if err := <-first; err != nil {
		t.Fatal(err)
	}
	if err := <-second; err != nil {
		t.Fatal(err)
	}

	entries := s.Entries()
	if len(entries) != 2 || entries[0].TaskName != "task_for_c1" || entries[1].TaskName != "task_for_c2" {
		t.Fatalf("entries = %+v", entries)
	}
}
