package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/lead-refinery/internal/model"
)

var enrichFlags struct {
	email     string
	firstName string
	lastName  string
	firm      string
	title     string
	website   string
	id        string
}

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Enrich a single lead and print the record as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initRefinery(ctx, "enrich")
		if err != nil {
			return err
		}
		defer env.Close()

		identity := model.LeadIdentity{
			Email:         enrichFlags.email,
			FirstName:     enrichFlags.firstName,
			LastName:      enrichFlags.lastName,
			FirmName:      enrichFlags.firm,
			DeclaredTitle: enrichFlags.title,
			Website:       enrichFlags.website,
		}

		rec, err := env.Pipeline.EnrichLead(ctx, identity, enrichFlags.id)
		if err != nil {
			return eris.Wrap(err, "enrich")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	},
}

func init() {
	f := enrichCmd.Flags()
	f.StringVar(&enrichFlags.email, "email", "", "lead email address (required)")
	f.StringVar(&enrichFlags.firstName, "first-name", "", "lead first name (required)")
	f.StringVar(&enrichFlags.lastName, "last-name", "", "lead last name")
	f.StringVar(&enrichFlags.firm, "firm", "", "lead firm name (required)")
	f.StringVar(&enrichFlags.title, "title", "", "declared job title")
	f.StringVar(&enrichFlags.website, "website", "", "firm website")
	f.StringVar(&enrichFlags.id, "id", "", "raw lead id (generated when empty)")
	_ = enrichCmd.MarkFlagRequired("email")
	_ = enrichCmd.MarkFlagRequired("first-name")
	_ = enrichCmd.MarkFlagRequired("firm")
	rootCmd.AddCommand(enrichCmd)
}
