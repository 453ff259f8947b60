package main

import (
	"fmt"
	"time"

	"newsdesk/schedule"

	"github.com/spf13/cobra"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Validate the client registry and print the trigger table",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadContainer()
		if err != nil {
			return err
		}
		reg, err := c.Registry(cmd.Context())
		if err != nil {
			return err
		}
		clients, err := reg.List(cmd.Context())
		if err != nil {
			return err
		}

		triggers, rejected := schedule.Build(clients, c.Log())
		loc, err := time.LoadLocation(c.Config().Scheduler.Timezone)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, renderTriggers(triggers, time.Now().In(loc)))
		fmt.Fprint(out, renderRejected(rejected))
		if len(rejected) > 0 {
			return fmt.Errorf("%d registry entr(ies) rejected", len(rejected))
		}
		return nil
	},
}
