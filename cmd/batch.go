package main

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/lead-refinery/internal/intake"
	"github.com/sells-group/lead-refinery/internal/model"
	"github.com/sells-group/lead-refinery/internal/pipeline"
	"github.com/sells-group/lead-refinery/internal/queue"
	"github.com/sells-group/lead-refinery/pkg/notion"
)

var batchFlags struct {
	file        string
	source      string
	limit       int
	concurrency int
}

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Enrich a batch of leads from a file or the Notion queue",
	Long:  "Reads leads from an XLSX or CSV file (--file) or pulls queued pages from the Notion lead database (--source notion), then enriches them concurrently. Failed leads are recorded and can be rerun with 'leads retry'.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if (batchFlags.file == "") == (batchFlags.source == "") {
			return eris.New("batch: exactly one of --file or --source is required")
		}
		if batchFlags.source != "" && batchFlags.source != "notion" {
			return eris.Errorf("batch: unsupported source %q", batchFlags.source)
		}

		mode := "enrich"
		if batchFlags.source == "notion" {
			mode = "queue"
		}
		env, err := initRefinery(ctx, mode)
		if err != nil {
			return err
		}
		defer env.Close()

		concurrency := batchFlags.concurrency
		if concurrency <= 0 {
			concurrency = cfg.Batch.Concurrency
		}

		var (
			leads    []pipeline.Lead
			onResult func(pipeline.Result)
		)
		if batchFlags.file != "" {
			res, err := loadLeadFile(ctx, batchFlags.file)
			if err != nil {
				return err
			}
			leads = res.Leads
			if batchFlags.limit > 0 && len(leads) > batchFlags.limit {
				leads = leads[:batchFlags.limit]
			}
		} else {
			q := queue.New(notion.NewClient(cfg.Notion.Token), cfg.Notion.LeadDB)
			leads, err = q.Pull(ctx, batchFlags.limit)
			if err != nil {
				return err
			}
			for _, l := range leads {
				if err := q.MarkRunning(ctx, l.RawLeadID); err != nil {
					zap.L().Warn("batch: mark running failed", zap.String("raw_lead_id", l.RawLeadID), zap.Error(err))
				}
			}
			onResult = q.Report(ctx)
		}

		if len(leads) == 0 {
			fmt.Println("No leads to process.")
			return nil
		}

		if err := enqueue(ctx, env, leads); err != nil {
			return err
		}

		sum := env.Pipeline.EnrichBatch(ctx, leads, concurrency, onResult)
		fmt.Printf("Processed %d leads: %d completed, %d failed\n", sum.Total, sum.Completed, sum.Failed)
		return nil
	},
}

func loadLeadFile(ctx context.Context, path string) (*intake.Result, error) {
	res, err := intake.LoadFile(ctx, path)
	if err != nil {
		return nil, err
	}
	zap.L().Info("lead file parsed",
		zap.String("file", path),
		zap.Int("rows", res.Rows),
		zap.Int("leads", len(res.Leads)),
		zap.Int("dropped", res.Dropped),
	)
	return res, nil
}

// enqueue records every lead as queued so progress is visible before
// processing starts.
func enqueue(ctx context.Context, env *refineryEnv, leads []pipeline.Lead) error {
	states := make([]model.LeadState, len(leads))
	for i, l := range leads {
		states[i] = model.LeadState{RawLeadID: l.RawLeadID, Identity: l.Identity}
	}
	if _, err := env.Store.EnqueueLeads(ctx, states); err != nil {
		return eris.Wrap(err, "batch: enqueue leads")
	}
	return nil
}

func init() {
	f := batchCmd.Flags()
	f.StringVar(&batchFlags.file, "file", "", "path to an .xlsx or .csv lead file")
	f.StringVar(&batchFlags.source, "source", "", "lead source (notion)")
	f.IntVar(&batchFlags.limit, "limit", 0, "max leads to process (0 = all)")
	f.IntVar(&batchFlags.concurrency, "concurrency", 0, "max concurrent leads (default batch.concurrency)")
	rootCmd.AddCommand(batchCmd)
}
