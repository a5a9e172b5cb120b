package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/lead-refinery/internal/entitlement"
)

var creditsCmd = &cobra.Command{
	Use:   "credits",
	Short: "Manage the shared Redis credit balance",
}

func redisQuota() (*entitlement.RedisQuota, func(), error) {
	if cfg.Entitlement.Mode != "redis" {
		return nil, nil, eris.Errorf("credits: entitlement.mode is %q, want redis", cfg.Entitlement.Mode)
	}
	rdb := newRedis()
	return entitlement.NewRedisQuota(rdb, cfg.Entitlement.Key), func() { _ = rdb.Close() }, nil
}

var creditsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the remaining credits",
	RunE: func(cmd *cobra.Command, args []string) error {
		q, done, err := redisQuota()
		if err != nil {
			return err
		}
		defer done()

		n, err := q.Remaining(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("%d credits remaining\n", n)
		return nil
	},
}

var creditsFundAmount int64

var creditsFundCmd = &cobra.Command{
	Use:   "fund",
	Short: "Add credits to the balance",
	RunE: func(cmd *cobra.Command, args []string) error {
		if creditsFundAmount <= 0 {
			return eris.New("credits: --amount must be > 0")
		}
		q, done, err := redisQuota()
		if err != nil {
			return err
		}
		defer done()

		if err := q.Fund(cmd.Context(), creditsFundAmount); err != nil {
			return err
		}
		n, err := q.Remaining(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Added %d credits, %d remaining\n", creditsFundAmount, n)
		return nil
	},
}

func init() {
	creditsFundCmd.Flags().Int64Var(&creditsFundAmount, "amount", 0, "credits to add")
	creditsCmd.AddCommand(creditsShowCmd, creditsFundCmd)
	rootCmd.AddCommand(creditsCmd)
}
