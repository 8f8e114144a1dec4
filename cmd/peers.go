// cmd/peers.go
package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/norelabs/dashsrv/internal/status"
)

var peersJSON bool

var peersCmd = &cobra.Command{
	Use:   "peers",
	Short: "Poll every configured peer once",
	Long: `Builds one mesh report from the configuration file: this machine first,
then every dashboard entry in configuration order. Unreachable peers are listed
as offline with the reason.`,
	Example: `  dashsrv peers
  dashsrv peers --json`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		svc := newStatusService(cfg, nodeName(cfg), nil)
		report := svc.GetAggregateReport().Value

		if peersJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		}
		printReport(os.Stdout, report)
		return nil
	},
}

func printReport(out io.Writer, report status.AggregateReport) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "STATUS\tNODE\tADDRESSES\tCPU\tMEMORY\tPING\tVERSION")
	for _, n := range report.Nodes {
		name := n.Name
		if name == "" {
			name = n.Hostname
		}
		if n.Self {
			name += " (self)"
		}
		ips := strings.Join(n.IPs, ", ")

		if !n.Online {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t\t\t\n", badColor.Sprint("offline"), name, ips, n.Error)
			continue
		}

		version := n.Version
		if version == "" {
			version = "-"
		}
		if n.Compatible != nil && !*n.Compatible {
			version = warnColor.Sprintf("%s (incompatible)", version)
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			goodColor.Sprint("online"), name, ips,
			colorizePercent(n.CPU),
			colorizePercent(n.Memory.Usage*100),
			colorizePing(n.Ping),
			version)
	}
}

func init() {
	rootCmd.AddCommand(peersCmd)
	peersCmd.Flags().BoolVar(&peersJSON, "json", false, "Print the report as JSON")
}
