package main

import (
	"context"
	"errors"
	"time"

	"newsdesk/api"
	"newsdesk/control"
	"newsdesk/shared/kafka"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scheduler, the ops API and the Kafka control consumer",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		c, err := loadContainer()
		if err != nil {
			return err
		}
		log := c.Log()
		cfg := c.Config()

		orch, err := c.Orchestrator(ctx)
		if err != nil {
			return err
		}
		sched, err := c.Scheduler(ctx)
		if err != nil {
			return err
		}
		rejected, err := sched.Rebuild(ctx)
		if err != nil {
			return err
		}
		for _, r := range rejected {
			log.Warn("schedule entry rejected", "error", r)
		}
		sched.Start()

		srv := api.NewServer(cfg.Server.Port, api.Deps{
			Runs:     c,
			Status:   orch,
			Schedule: sched,
			Log:      log,
		})
		errc := srv.Start()

		var consumer *kafka.Consumer
		if cfg.Kafka.Enabled && cfg.Kafka.ControlTopic != "" {
			consumer, err = control.NewConsumer(control.Config{
				Brokers: cfg.Kafka.Brokers,
				Topic:   cfg.Kafka.ControlTopic,
				GroupID: cfg.Kafka.GroupID,
			}, sched, c, log)
			if err != nil {
				return err
			}
			if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
		}

		log.Info("newsdesk running", "triggers", len(sched.Entries()))
		select {
		case <-ctx.Done():
		case err := <-errc:
			if err != nil {
				log.Error("ops api failed", "error", err)
			}
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		<-sched.Stop().Done()
		if consumer != nil {
			if err := consumer.Close(); err != nil {
				log.Warn("kafka consumer close", "error", err)
			}
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn("ops api shutdown", "error", err)
		}
		return c.Close(shutdownCtx)
	},
}
