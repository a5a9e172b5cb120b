package main

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"enrich", "batch", "serve", "leads", "publish", "taxonomy", "credits"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "refinery", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestEnrichCommand_Flags(t *testing.T) {
	for _, name := range []string{"email", "first-name", "last-name", "firm", "title", "website", "id"} {
		require.NotNil(t, enrichCmd.Flags().Lookup(name), "enrich should have --%s", name)
	}
	email := enrichCmd.Flags().Lookup("email")
	assert.Equal(t, []string{"true"}, email.Annotations[cobra.BashCompOneRequiredFlag])
}

func TestBatchCommand_Flags(t *testing.T) {
	limit := batchCmd.Flags().Lookup("limit")
	require.NotNil(t, limit)
	assert.Equal(t, "0", limit.DefValue)

	require.NotNil(t, batchCmd.Flags().Lookup("file"))
	require.NotNil(t, batchCmd.Flags().Lookup("source"))
	require.NotNil(t, batchCmd.Flags().Lookup("concurrency"))
}

func TestBatchCommand_RequiresOneSource(t *testing.T) {
	orig := batchFlags
	t.Cleanup(func() { batchFlags = orig })

	batchFlags.file, batchFlags.source = "", ""
	err := batchCmd.RunE(batchCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exactly one of --file or --source")

	batchFlags.file, batchFlags.source = "leads.csv", "notion"
	err = batchCmd.RunE(batchCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exactly one of --file or --source")

	batchFlags.file, batchFlags.source = "", "sheets"
	err = batchCmd.RunE(batchCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported source")
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestLeadsCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range leadsCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"list", "export", "retry", "push"} {
		assert.True(t, names[name], "expected leads subcommand %q not found", name)
	}

	format := leadsExportCmd.Flags().Lookup("format")
	require.NotNil(t, format)
	assert.Equal(t, "xlsx", format.DefValue)
}

func TestCreditsCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range creditsCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["show"])
	assert.True(t, names["fund"])
}

func TestTaxonomyCommand_HasShow(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range taxonomyCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["show"])
}
