package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/lead-refinery/internal/crm"
	"github.com/sells-group/lead-refinery/pkg/salesforce"
)

var publishFlags struct {
	tenant string
	limit  int
}

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Upsert verified records into Salesforce as Leads",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("publish"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		client, err := salesforce.Connect(salesforce.JWTConfig{
			LoginURL: cfg.Salesforce.LoginURL,
			Username: cfg.Salesforce.Username,
			ClientID: cfg.Salesforce.ClientID,
			KeyPath:  cfg.Salesforce.KeyPath,
		}, salesforce.WithRateLimit(cfg.Salesforce.RateLimit))
		if err != nil {
			return err
		}

		tenant := publishFlags.tenant
		if tenant == "" {
			tenant = cfg.Refinery.TenantID
		}
		sum, err := crm.NewPublisher(client, st).Publish(ctx, tenant, publishFlags.limit)
		if err != nil {
			return err
		}
		fmt.Printf("Published %d records: %d created, %d updated, %d failed, %d skipped\n",
			sum.Considered, sum.Created, sum.Updated, sum.Failed, sum.Skipped)
		return nil
	},
}

func init() {
	publishCmd.Flags().StringVar(&publishFlags.tenant, "tenant", "", "tenant to publish (default refinery.tenant_id)")
	publishCmd.Flags().IntVar(&publishFlags.limit, "limit", 0, "max records to publish (0 = all)")
	rootCmd.AddCommand(publishCmd)
}
