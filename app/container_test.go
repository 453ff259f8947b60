package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"newsdesk/config"
	"newsdesk/logging"
	"newsdesk/storage"
	"newsdesk/types"
)

const registryYAML = `clients:
  - id: acme
    schedule: "0 7 * * *"
    topic_query: tesla
    delivery_target: carrier-pigeon
  - id: broken
    schedule: "every morning"
    topic_query: rain
    delivery_target: sqs
`

func testContainer(t *testing.T) (*Container, *atomic.Int32) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "clients.yaml")
	if err := os.WriteFile(path, []byte(registryYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	hits := new(atomic.Int32)
	news := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok","articles":[{"title":"Tesla opens plant","link":"https://example.com/t","content":"Tesla opened a plant.","name_source":"example.com"}]}`))
	}))
	t.Cleanup(news.Close)

	cfg := config.Default()
	cfg.Registry.Path = path
	cfg.Secrets.Backend = "static"
	cfg.Secrets.Static = map[string]map[string]string{"clients/acme": {"queue_url": "q"}}
	cfg.NewsCatcher.BaseURL = news.URL
	cfg.NewsCatcher.RateLimit = 0

	c := New(&cfg, logging.Discard())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = c.Close(ctx)
	})
	return c, hits
}

func TestRunClientWiresStages(t *testing.T) {
	c, hits := testContainer(t)
	ctx := context.Background()

	if _, err := c.RunClient(ctx, "ghost"); !errors.Is(err, types.ErrUnknownClient) {
		t.Fatalf("expected ErrUnknownClient, got %v", err)
	}

	id, err := c.RunClient(ctx, "acme")
	if err != nil {
		t.Fatal(err)
	}
	orch, err := c.Orchestrator(ctx)
	if err != nil {
		t.Fatal(err)
	}
	wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	snap, err := orch.Wait(wctx, id)
	if err != nil {
		t.Fatal(err)
	}

	// fetch ran against the news server, delivery rejected the unknown mode
	if hits.Load() != 1 || snap.Added != 1 {
		t.Errorf("hits %d, snapshot %+v", hits.Load(), snap)
	}
	if snap.State != types.StateFailed || snap.Stage != types.StageDeliver || snap.Attempts[types.StageDeliver] != 1 {
		t.Errorf("snapshot %+v", snap)
	}

	store, err := c.Store(ctx)
	if err != nil {
		t.Fatal(err)
	}
	arts, err := store.QueryForClientToday(ctx, "acme", storage.QueryOptions{})
	if err != nil || len(arts) != 1 {
		t.Errorf("stored %v, %v", arts, err)
	}
}

func TestSchedulerSkipsBrokenEntries(t *testing.T) {
	c, _ := testContainer(t)
	sched, err := c.Scheduler(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	rejected, err := sched.Rebuild(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(rejected) != 1 || !errors.Is(rejected[0], types.ErrScheduleParse) {
		t.Errorf("rejected %v", rejected)
	}
	entries := sched.Entries()
	if len(entries) != 1 || entries[0].TaskName != "task_for_acme" {
		t.Errorf("entries %+v", entries)
	}
}

func TestGuardRequiresRedis(t *testing.T) {
	c, _ := testContainer(t)
	c.cfg.Guard.Enabled = true
	if _, err := c.Orchestrator(context.Background()); err == nil {
		t.Error("guard without redis should fail")
	}
}
