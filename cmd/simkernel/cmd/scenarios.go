package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"simkernel/examples"
)

var scenariosCmd = &cobra.Command{
	Use:   "scenarios",
	Short: "List the example scenarios",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		wrt := tabwriter.NewWriter(cmd.OutOrStdout(), 4, 4, 2, ' ', 0)
		fmt.Fprintln(wrt, "NAME\tCORRECT\tDESCRIPTION")
		for _, s := range examples.Scenarios() {
			fmt.Fprintf(wrt, "%v\t%v\t%v\n", s.Name, s.Correct, s.Description)
		}
		return wrt.Flush()
	},
}

func init() {
	rootCmd.AddCommand(scenariosCmd)
}
