package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/lead-refinery/internal/taxonomy"
)

var taxonomyCmd = &cobra.Command{
	Use:   "taxonomy",
	Short: "Inspect the classification taxonomies",
}

var taxonomyShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the loaded job level, function and industry taxonomies",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := loadTaxonomy()
		if err != nil {
			return err
		}
		return printTaxonomy(os.Stdout, reg)
	},
}

func printTaxonomy(out io.Writer, reg *taxonomy.Registry) error {
	fmt.Fprintf(out, "Taxonomy version %s\n\n", reg.Version())

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "LEVEL\tRANK\tLABEL")
	for _, l := range reg.JobLevels() {
		fmt.Fprintf(w, "%s\t%d\t%s\n", l.ID, l.Rank, l.Label)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "FUNCTION\tF0\tF1\tF2")
	for _, f := range reg.Functions() {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", f.ID, f.F0, f.F1, f.F2)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "INDUSTRY\tVERTICAL\tNAME")
	for _, i := range reg.Industries() {
		fmt.Fprintf(w, "%s\t%s\t%s\n", i.ID, i.VerticalCode, i.Name)
	}
	return w.Flush()
}

func init() {
	taxonomyCmd.AddCommand(taxonomyShowCmd)
	rootCmd.AddCommand(taxonomyCmd)
}
