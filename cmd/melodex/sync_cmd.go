package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/melodex/melodex/internal/daemon"
	"github.com/melodex/melodex/internal/sync"
)

// syncCmd runs one synchronous pass over all pending files and exits.
var syncCmd = &cobra.Command{
	Use:   "sync [files...]",
	Short: "Queue files and run one sync pass",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveConfig()
		if err != nil {
			return err
		}
		cfg.AutoSync = false

		d, err := daemon.New(cfg)
		if err != nil {
			return err
		}

		cmd.SilenceUsage = true
		setupLogging(d.Workspace())

		if err := d.Start(cmd.Context()); err != nil {
			return err
		}
		defer d.Stop()

		svc := d.Service()
		for _, path := range args {
			meta, err := svc.QueueFileForSync(cmd.Context(), path)
			if err != nil {
				return fmt.Errorf("queue %s: %w", path, err)
			}
			fmt.Printf("queued %s (v%d)\n", meta.FilePath, meta.Version)
		}

		if err := svc.RunSyncPass(cmd.Context()); err != nil &&
			!errors.Is(err, sync.ErrSyncAlreadyRunning) {
			return err
		}
		return nil
	},
}
