package main

import (
	"context"
	"fmt"
)

// runCompliance is the entrypoint the external scheduler (cron, systemd timer)
// calls to sweep expired milestones.
func (cli *commandLine) runCompliance() error {
	stats, err := cli.evaluator.Run(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf(
		"compliance run done: scanned=%d evaluated=%d passed=%d failed=%d blocked=%d\n",
		stats.Scanned, stats.Evaluated, stats.Passed, stats.Failed, stats.Blocked,
	)
	return nil
}
