// Package app wires configuration into the long-lived components. Every
// component is built on first use and shared afterwards.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"newsdesk/config"
	"newsdesk/delivery"
	"newsdesk/newscatcher"
	"newsdesk/nlp"
	"newsdesk/orchestrator"
	"newsdesk/registry"
	"newsdesk/rssfeeds"
	"newsdesk/schedule"
	"newsdesk/secrets"
	"newsdesk/shared/kafka"
	"newsdesk/stages"
	"newsdesk/storage"
	"newsdesk/types"

	"github.com/redis/go-redis/v9"
)

// Container holds the process-wide dependencies
type Container struct {
	cfg *config.Config
	log *slog.Logger

	storeOnce sync.Once
	store     storage.ArticleStore
	redis     *redis.Client
	storeErr  error

	registryOnce sync.Once
	registry     registry.ClientRegistry
	registryErr  error

	secretsOnce sync.Once
	secrets     secrets.Store
	secretsErr  error

	segmenterOnce sync.Once
	segmenter     *nlp.Segmenter
	segmenterErr  error

	orchOnce sync.Once
	orch     *orchestrator.Orchestrator
	orchErr  error

	schedOnce sync.Once
	sched     *schedule.Scheduler
	schedErr  error

	mu      sync.Mutex
	closers []io.Closer
}

func New(cfg *config.Config, log *slog.Logger) *Container {
	return &Container{cfg: cfg, log: log}
}

func (c *Container) Config() *config.Config { return c.cfg }

func (c *Container) Log() *slog.Logger { return c.log }

func (c *Container) onClose(cl io.Closer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closers = append(c.closers, cl)
}

// Store returns the article store selected by store.backend
func (c *Container) Store(ctx context.Context) (storage.ArticleStore, error) {
	c.storeOnce.Do(func() {
		sc := c.cfg.Store
		switch sc.Backend {
		case "redis":
			var rs *storage.RedisStore
			rs, c.storeErr = storage.NewRedisStore(ctx, storage.RedisConfig{
				Addr:     sc.Redis.Addr,
				Password: sc.Redis.Password,
				DB:       sc.Redis.DB,
				Prefix:   sc.Redis.Prefix,
			}, nil)
			if c.storeErr == nil {
				c.store, c.redis = rs, rs.Client()
			}
		case "mongo":
			c.store, c.storeErr = storage.NewMongoStore(ctx, storage.MongoConfig{
				URI:        sc.Mongo.URI,
				Database:   sc.Mongo.Database,
				Collection: sc.Mongo.Collection,
			}, nil)
		default:
			c.store = storage.NewMemoryStore(nil)
		}
		if c.storeErr == nil {
			c.onClose(c.store)
			c.log.Info("article store ready", "backend", sc.Backend)
		}
	})
	return c.store, c.storeErr
}

// Registry returns the client registry selected by registry.backend
func (c *Container) Registry(ctx context.Context) (registry.ClientRegistry, error) {
	c.registryOnce.Do(func() {
		rc := c.cfg.Registry
		switch rc.Backend {
		case "mongo":
			var m *registry.MongoRegistry
			m, c.registryErr = registry.NewMongoRegistry(ctx, rc.Mongo.URI, rc.Mongo.Database, rc.Mongo.Collection)
			if c.registryErr == nil {
				c.registry = m
				c.onClose(m)
			}
		case "postgres":
			var p *registry.PostgresRegistry
			p, c.registryErr = registry.NewPostgresRegistry(rc.Postgres.DSN, rc.Postgres.Table)
			if c.registryErr == nil {
				c.registry = p
				c.onClose(p)
			}
		default:
			c.registry = registry.NewFileRegistry(rc.Path)
		}
	})
	return c.registry, c.registryErr
}

// Secrets returns the credential store selected by secrets.backend
func (c *Container) Secrets(ctx context.Context) (secrets.Store, error) {
	c.secretsOnce.Do(func() {
		sc := c.cfg.Secrets
		if sc.Backend == "static" {
			static := make(secrets.Static, len(sc.Static))
			for ref, kv := range sc.Static {
				static[ref] = secrets.Credentials(kv)
			}
			c.secrets = static
			return
		}
		c.secrets, c.secretsErr = secrets.NewAWSStore(ctx, sc.Region, sc.Profile)
	})
	return c.secrets, c.secretsErr
}

// Sources returns the news sources clients can select by name
func (c *Container) Sources() map[string]stages.NewsSource {
	nc := c.cfg.NewsCatcher
	return map[string]stages.NewsSource{
		stages.DefaultSource: newscatcher.NewClient(newscatcher.Config{
			BaseURL:   nc.BaseURL,
			APIKey:    nc.APIKey,
			RateLimit: nc.RateLimit,
			PageSize:  nc.PageSize,
			Timeout:   nc.Timeout,
		}),
		"rss": rssfeeds.NewSource(c.cfg.RSS.Count, c.cfg.RSS.Extract, c.log),
	}
}

func (c *Container) Segmenter() (*nlp.Segmenter, error) {
	c.segmenterOnce.Do(func() {
		c.segmenter, c.segmenterErr = nlp.NewSegmenter()
	})
	return c.segmenter, c.segmenterErr
}

// Classifier returns the sentiment classifier selected by nlp.classifier
func (c *Container) Classifier() stages.Classifier {
	nc := c.cfg.NLP
	if nc.Classifier == "cohere" {
		return nlp.NewCohereClassifier(nc.APIKey, nc.Model, nc.Timeout)
	}
	return nlp.NewHTTPClassifier(nc.Endpoint, nc.APIKey, nc.Timeout)
}

// Orchestrator builds the stage table and the engine. The worker pool is
// started before it is returned.
func (c *Container) Orchestrator(ctx context.Context) (*orchestrator.Orchestrator, error) {
	c.orchOnce.Do(func() {
		c.orch, c.orchErr = c.buildOrchestrator(ctx)
		if c.orchErr == nil {
			c.orch.Start()
		}
	})
	return c.orch, c.orchErr
}

func (c *Container) buildOrchestrator(ctx context.Context) (*orchestrator.Orchestrator, error) {
	store, err := c.Store(ctx)
	if err != nil {
		return nil, err
	}
	creds, err := c.Secrets(ctx)
	if err != nil {
		return nil, err
	}
	seg, err := c.Segmenter()
	if err != nil {
		return nil, err
	}

	handlers := map[types.Stage]orchestrator.StageHandler{
		types.StageFetch:   stages.NewFetchStage(store, c.Sources(), c.log),
		types.StageEnrich:  stages.NewEnrichStage(store, seg, c.Classifier(), c.log),
		types.StageDeliver: stages.NewDeliveryStage(store, creds, delivery.NewRegistry(), c.log),
	}

	opts := orchestrator.Options{
		Policies:       orchestrator.PoliciesFromConfig(c.cfg.Retry),
		Workers:        orchestrator.WorkerSpecsFromConfig(c.cfg.Workers),
		RunTimeout:     c.cfg.Run.Timeout,
		AttemptTimeout: c.cfg.Run.AttemptTimeout,
		Log:            c.log,
	}
	if c.cfg.Guard.Enabled {
		if c.redis == nil {
			return nil, errors.New("run guard needs the redis store")
		}
		opts.Guard = orchestrator.NewRedisGuard(c.redis, c.cfg.Store.Redis.Prefix, c.cfg.Run.Timeout+time.Minute)
	}
	if kc := c.cfg.Kafka; kc.Enabled && kc.FailuresTopic != "" {
		producer, err := kafka.NewSyncProducer(kc.Brokers)
		if err != nil {
			return nil, err
		}
		pub := kafka.NewPublisher(producer, kc.FailuresTopic)
		c.onClose(pub)
		opts.FailureHandlers = append(opts.FailureHandlers, orchestrator.PublishFailures(pub, c.log))
	}
	return orchestrator.New(handlers, opts)
}

// RunClient looks the client up and starts a run for it
func (c *Container) RunClient(ctx context.Context, clientID string) (string, error) {
	reg, err := c.Registry(ctx)
	if err != nil {
		return "", err
	}
	client, err := reg.Get(ctx, clientID)
	if err != nil {
		return "", err
	}
	orch, err := c.Orchestrator(ctx)
	if err != nil {
		return "", err
	}
	return orch.Trigger(ctx, client)
}

// Scheduler returns the cron scheduler; its triggers start runs through RunClient
func (c *Container) Scheduler(ctx context.Context) (*schedule.Scheduler, error) {
	c.schedOnce.Do(func() {
		reg, err := c.Registry(ctx)
		if err != nil {
			c.schedErr = err
			return
		}
		loc, err := time.LoadLocation(c.cfg.Scheduler.Timezone)
		if err != nil {
			c.schedErr = fmt.Errorf("scheduler timezone: %w", err)
			return
		}
		c.sched = schedule.NewScheduler(reg, c.fire, loc, c.log)
	})
	return c.sched, c.schedErr
}

func (c *Container) fire(clientID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	runID, err := c.RunClient(ctx, clientID)
	switch {
	case errors.Is(err, orchestrator.ErrRunInFlight):
		c.log.Info("trigger dropped, run in flight", "client_id", clientID)
	case err != nil:
		c.log.Error("failed to start scheduled run", "client_id", clientID, "error", err)
	default:
		c.log.Debug("scheduled run started", "client_id", clientID, "run_id", runID)
	}
}

// Close stops the orchestrator and releases every connection, newest first
func (c *Container) Close(ctx context.Context) error {
	var errs []error
	if c.orch != nil {
		if err := c.orch.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}
