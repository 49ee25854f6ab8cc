package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/melodex/melodex/internal/db"
	"github.com/melodex/melodex/internal/sync"
	"github.com/melodex/melodex/internal/workspace"
)

var statusColors = map[sync.SyncStatus]func(a ...interface{}) string{
	sync.SyncStatusPending: color.New(color.FgHiYellow).SprintFunc(),
	sync.SyncStatusSyncing: color.New(color.FgHiCyan).SprintFunc(),
	sync.SyncStatusSynced:  color.New(color.FgHiGreen).SprintFunc(),
	sync.SyncStatusError:   color.New(color.FgHiRed).SprintFunc(),
}

// statusCmd prints the sync state of every tracked file.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show sync status of tracked files",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveConfig()
		if err != nil {
			return err
		}

		ws, err := workspace.NewWorkspace(cfg.DataDir)
		if err != nil {
			return err
		}

		cmd.SilenceUsage = true

		database, err := db.NewSqliteDB(db.WithPath(ws.DBPath))
		if err != nil {
			return err
		}
		defer database.Close()

		store := sync.NewStore(database)
		if err := store.Init(cmd.Context()); err != nil {
			return err
		}

		files, err := store.List(cmd.Context())
		if err != nil {
			return err
		}
		if len(files) == 0 {
			fmt.Println("no files tracked")
			return nil
		}

		for _, f := range files {
			paint, ok := statusColors[f.SyncStatus]
			if !ok {
				paint = fmt.Sprint
			}
			line := fmt.Sprintf("%-8s v%-3d %-9s %s", paint(string(f.SyncStatus)), f.Version,
				humanize.Bytes(uint64(f.Size)), f.FilePath)
			if f.ErrorMessage != "" {
				line += fmt.Sprintf("  (%s)", f.ErrorMessage)
			}
			fmt.Println(line)
		}
		return nil
	},
}
