package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"newsdesk/types"

	"github.com/spf13/cobra"
)

var (
	runClientID string
	runTimeout  time.Duration
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the pipeline once for a client and wait for the result",
	RunE: func(cmd *cobra.Command, args []string) error {
		if runClientID == "" {
			return errors.New("--client is required")
		}
		c, err := loadContainer()
		if err != nil {
			return err
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			_ = c.Close(ctx)
		}()

		ctx := cmd.Context()
		runID, err := c.RunClient(ctx, runClientID)
		if err != nil {
			return err
		}
		orch, err := c.Orchestrator(ctx)
		if err != nil {
			return err
		}

		wctx := ctx
		if runTimeout > 0 {
			var cancel context.CancelFunc
			wctx, cancel = context.WithTimeout(ctx, runTimeout)
			defer cancel()
		}
		snap, err := orch.Wait(wctx, runID)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), renderRun(snap))
		if snap.State != types.StateDone {
			return fmt.Errorf("run %s ended %s", snap.RunID, snap.State)
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runClientID, "client", "", "client id from the registry")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "stop waiting after this long (0 waits for the run)")
}
