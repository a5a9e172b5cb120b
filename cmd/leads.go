package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/lead-refinery/internal/export"
	"github.com/sells-group/lead-refinery/internal/model"
	"github.com/sells-group/lead-refinery/internal/queue"
	"github.com/sells-group/lead-refinery/internal/store"
	"github.com/sells-group/lead-refinery/pkg/notion"
)

var leadsCmd = &cobra.Command{
	Use:   "leads",
	Short: "Inspect, export and retry enriched leads",
}

var leadsListFlags struct {
	status string
	limit  int
}

var leadsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List lead processing states",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		status := model.LeadStatus(leadsListFlags.status)
		if status != "" && !status.Valid() {
			return eris.Errorf("leads: unknown status %q", leadsListFlags.status)
		}

		if err := cfg.Validate("store"); err != nil {
			return err
		}
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		states, err := st.ListLeadStates(ctx, store.LeadFilter{Status: status, Limit: leadsListFlags.limit})
		if err != nil {
			return eris.Wrap(err, "leads: list")
		}
		if len(states) == 0 {
			fmt.Fprintln(os.Stderr, "No leads found.")
			return nil
		}
		return printStates(os.Stdout, states)
	},
}

func printStates(out io.Writer, states []model.LeadState) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RAW LEAD ID\tEMAIL\tFIRM\tSTATUS\tATTEMPTS\tUPDATED\tERROR")
	for _, s := range states {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			s.RawLeadID,
			s.Identity.Email,
			s.Identity.FirmName,
			s.Status,
			s.Attempts,
			s.UpdatedAt.Format(time.DateTime),
			truncate(s.Error, 60),
		)
	}
	return w.Flush()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

var leadsExportFlags struct {
	format   string
	out      string
	tenant   string
	verified bool
}

var leadsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export enriched records to XLSX or CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		format := strings.ToLower(leadsExportFlags.format)
		if format != "xlsx" && format != "csv" {
			return eris.Errorf("leads: unsupported export format %q", leadsExportFlags.format)
		}

		if err := cfg.Validate("store"); err != nil {
			return err
		}
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		recs, err := st.FetchAll(ctx, store.RecordFilter{
			TenantID:     leadsExportFlags.tenant,
			VerifiedOnly: leadsExportFlags.verified,
		})
		if err != nil {
			return eris.Wrap(err, "leads: fetch records")
		}

		path := leadsExportFlags.out
		if path == "" {
			path = "refinery-export." + format
		}
		f, err := os.Create(path)
		if err != nil {
			return eris.Wrapf(err, "leads: create %s", path)
		}
		defer f.Close() //nolint:errcheck

		if format == "csv" {
			err = export.WriteCSV(f, recs)
		} else {
			err = export.WriteXLSX(f, recs)
		}
		if err != nil {
			return err
		}
		fmt.Printf("Exported %d records to %s\n", len(recs), path)
		return nil
	},
}

var leadsRetryConcurrency int

var leadsRetryCmd = &cobra.Command{
	Use:   "retry",
	Short: "Rerun every lead whose last attempt failed",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initRefinery(ctx, "enrich")
		if err != nil {
			return err
		}
		defer env.Close()

		concurrency := leadsRetryConcurrency
		if concurrency <= 0 {
			concurrency = cfg.Batch.Concurrency
		}
		sum, err := env.Pipeline.Retry(ctx, concurrency, nil)
		if err != nil {
			return err
		}
		fmt.Printf("Retried %d leads: %d completed, %d failed\n", sum.Total, sum.Completed, sum.Failed)
		return nil
	},
}

var leadsPushFile string

var leadsPushCmd = &cobra.Command{
	Use:   "push",
	Short: "Queue leads from a file into the Notion lead database",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if cfg.Notion.Token == "" || cfg.Notion.LeadDB == "" {
			return eris.New("leads: notion.token and notion.lead_db are required")
		}

		if leadsPushFile == "" {
			return eris.New("leads: --file is required")
		}
		res, err := loadLeadFile(ctx, leadsPushFile)
		if err != nil {
			return err
		}

		q := queue.New(notion.NewClient(cfg.Notion.Token), cfg.Notion.LeadDB)
		n, err := q.Push(ctx, res.Leads)
		if err != nil {
			return err
		}
		fmt.Printf("Queued %d leads in Notion\n", n)
		return nil
	},
}

func init() {
	leadsListCmd.Flags().StringVar(&leadsListFlags.status, "status", "", "filter by status (queued, running, completed, error)")
	leadsListCmd.Flags().IntVar(&leadsListFlags.limit, "limit", 50, "max leads to show")

	leadsExportCmd.Flags().StringVar(&leadsExportFlags.format, "format", "xlsx", "output format (xlsx or csv)")
	leadsExportCmd.Flags().StringVar(&leadsExportFlags.out, "out", "", "output path (default refinery-export.<format>)")
	leadsExportCmd.Flags().StringVar(&leadsExportFlags.tenant, "tenant", "", "only this tenant's records")
	leadsExportCmd.Flags().BoolVar(&leadsExportFlags.verified, "verified", false, "only verified records")

	leadsRetryCmd.Flags().IntVar(&leadsRetryConcurrency, "concurrency", 0, "max concurrent leads (default batch.concurrency)")

	leadsPushCmd.Flags().StringVar(&leadsPushFile, "file", "", "path to an .xlsx or .csv lead file")

	leadsCmd.AddCommand(leadsListCmd, leadsExportCmd, leadsRetryCmd, leadsPushCmd)
	rootCmd.AddCommand(leadsCmd)
}
