package cli

import (
	"encoding/json"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/anstrom/ragescanner/internal/scanning"
)

var portsOutput string

// portsCmd represents the ports command
var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List the TCP ports checked on online hosts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := validateOutput(portsOutput); err != nil {
			return err
		}
		return writePorts(cmd.OutOrStdout(), portsOutput)
	},
}

func init() {
	rootCmd.AddCommand(portsCmd)
	portsCmd.Flags().StringVarP(&portsOutput, "output", "o", outputTable, "Output format: table or json")
}

func writePorts(w io.Writer, format string) error {
	ports := scanning.WellKnownPorts()

	if format == outputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(ports)
	}

	table := tablewriter.NewWriter(w)
	table.Header("Port", "Service")
	for _, p := range ports {
		_ = table.Append([]string{strconv.Itoa(int(p.Port)), p.Name})
	}
	return table.Render()
}
