package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pario-ai/fcagent/pkg/auth"
	"github.com/pario-ai/fcagent/pkg/config"
	"github.com/pario-ai/fcagent/pkg/tasks"
)

func newTasksCmd() *cobra.Command {
	var (
		configPath string
		userID     string
		limit      int
		offset     int
	)

	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List recorded tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			store, err := tasks.Open(cfg.DBPath)
			if err != nil {
				return err
			}
			defer store.Close()

			list, total, err := store.List(context.Background(), userID, limit, offset)
			if err != nil {
				return err
			}
			if len(list) == 0 {
				fmt.Println("No tasks recorded.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTYPE\tSTATUS\tCREATED\tCOMPLETED")
			for _, t := range list {
				completed := "-"
				if t.CompletedAt != nil {
					completed = t.CompletedAt.Format("2006-01-02T15:04:05")
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
					t.ID, t.Type, t.Status, t.CreatedAt.Format("2006-01-02T15:04:05"), completed)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Printf("\n%d of %d tasks\n", len(list), total)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "fcagent.yaml", "path to config file")
	cmd.Flags().StringVar(&userID, "user", auth.Subject, "owner of the tasks")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of tasks")
	cmd.Flags().IntVar(&offset, "offset", 0, "number of tasks to skip")
	return cmd
}
