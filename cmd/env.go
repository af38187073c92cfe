package cmd

import (
	"fmt"
	"maps"
	"slices"

	"github.com/spf13/cobra"

	"github.com/DataSpeaksTech/aici/envconfig"
)

func NewEnvCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "env",
		Short: "Show the effective configuration",
		Long: `Show the configuration after environment variables, ~/.aici/.env and the
configuration file have been applied. Use --example to print a commented
configuration file.`,
		Args: cobra.ExactArgs(0),
		RunE: EnvHandler,
	}

	cmd.Flags().Bool("example", false, "Print an example configuration file")
	return cmd
}

func EnvHandler(cmd *cobra.Command, _ []string) error {
	if example, _ := cmd.Flags().GetBool("example"); example {
		fmt.Fprint(cmd.OutOrStdout(), envconfig.GenerateExampleConfig())
		return nil
	}

	vars := envconfig.AsMap()

	table := newTable(cmd, "NAME", "VALUE", "DESCRIPTION")
	for _, k := range slices.Sorted(maps.Keys(vars)) {
		v := vars[k]
		table.Append([]string{v.Name, fmt.Sprintf("%v", v.Value), v.Description})
	}
	table.Render()

	return nil
}
