// cmd/status.go
package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/norelabs/dashsrv/internal/hardware"
)

var statusCmd = &cobra.Command{
	Use:     "status",
	Aliases: []string{"st"},
	Short:   "Show this machine's vitals",
	Long: `Samples the local machine the same way the /api/local endpoint does:
addresses, CPU load, memory and uptime.`,
	Example: `  dashsrv status
  dashsrv status --no-color`,
	Run: func(cmd *cobra.Command, args []string) {
		collector := hardware.NewCollector(hardware.NewSystemSampler())
		sample, err := collector.Collect()
		if err != nil {
			Debug("partial sample: %v", err)
		}
		printVitals(os.Stdout, sample, err)
	},
}

func printVitals(out io.Writer, s hardware.Sample, sampleErr error) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	defer w.Flush()

	headerColor.Fprintf(w, "--- dashsrv node status (%s) ---\n", Version)

	host := s.Hostname
	if host == "" {
		host = "unknown"
	}
	fmt.Fprintf(w, "  %s:\t%s\n", labelColor.Sprint("Hostname"), host)

	ips := "-"
	if len(s.IPs) > 0 {
		ips = strings.Join(s.IPs, ", ")
	}
	fmt.Fprintf(w, "  %s:\t%s\n", labelColor.Sprint("Addresses"), ips)
	fmt.Fprintf(w, "  %s:\t%s\n", labelColor.Sprint("CPU Usage"), colorizePercent(s.CPUPercent))

	if s.Memory.TotalMB > 0 {
		used := s.Memory.TotalMB - min(s.Memory.AvailableMB, s.Memory.TotalMB)
		fmt.Fprintf(w, "  %s:\t%s (%s / %s)\n", labelColor.Sprint("Memory"),
			colorizePercent(s.Memory.Usage()*100), formatMB(used), formatMB(s.Memory.TotalMB))
	} else {
		fmt.Fprintf(w, "  %s:\t%s\n", labelColor.Sprint("Memory"), badColor.Sprint("unavailable"))
	}

	if s.UptimeSeconds > 0 {
		fmt.Fprintf(w, "  %s:\t%s\n", labelColor.Sprint("Uptime"), formatUptime(s.UptimeSeconds))
	}

	if sampleErr != nil {
		fmt.Fprintf(w, "  %s:\t%s\n", labelColor.Sprint("Warnings"), warnColor.Sprint(sampleErr.Error()))
	}
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
