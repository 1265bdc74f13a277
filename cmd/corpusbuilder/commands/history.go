package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"git.home.luguber.info/inful/corpusbuilder/internal/config"
	"git.home.luguber.info/inful/corpusbuilder/internal/history"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	Limit int    `short:"n" help:"Maximum number of runs to show" default:"10"`
	RunID string `short:"r" name:"run" help:"Show the tasks of one run instead of the run list"`
}

func (h *HistoryCmd) Run(_ *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	store, err := history.NewStore(cfg.History.Path)
	if err != nil {
		return fmt.Errorf("open run ledger: %w", err)
	}
	defer func() {
		_ = store.Close()
	}()

	ctx := context.Background()
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer w.Flush()

	if h.RunID != "" {
		tasks, err := store.TasksForRun(ctx, h.RunID)
		if err != nil {
			return err
		}
		if len(tasks) == 0 {
			fmt.Printf("No tasks recorded for run %s\n", h.RunID)
			return nil
		}
		fmt.Fprintln(w, "IDX\tPROJECT\tLABEL\tSTATUS\tSTAGE\tDURATION\tERROR")
		for _, t := range tasks {
			fmt.Fprintf(w, "%02d\t%s\t%s\t%s\t%s\t%s\t%s\n",
				t.TaskIndex, t.Project, t.Label, t.Status, t.Stage,
				(time.Duration(t.DurationMS) * time.Millisecond).String(), t.Error)
		}
		return nil
	}

	runs, err := store.RecentRuns(ctx, h.Limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded")
		return nil
	}
	fmt.Fprintln(w, "RUN\tVERSION\tSTARTED\tDURATION\tOK\tPARTIAL\tFAILED")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%d\n",
			r.ID, r.Version,
			r.StartedAt.Format(time.RFC3339),
			r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String(),
			r.Succeeded, r.Partial, r.Failed)
	}
	return nil
}
