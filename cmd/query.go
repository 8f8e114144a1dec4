// cmd/query.go
package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/norelabs/dashsrv/internal/minecraft"
)

// defaultQueryProtocol is announced in the handshake when --protocol is not
// given.
const defaultQueryProtocol = 774

var (
	queryProtocol int32
	queryTimeout  time.Duration
	queryJSON     bool
)

var queryCmd = &cobra.Command{
	Use:   "query <host[:port]>",
	Short: "Query a game server once",
	Long: `Runs one Server List Ping against a game server and prints its status:
version, players, ping and the message of the day.

The port defaults to 25565. The MOTD keeps its colors when stdout is a terminal.`,
	Example: `  dashsrv query 192.168.0.105
  dashsrv query play.example.net:25566 --protocol 773
  dashsrv query 192.168.0.105 --json`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ep, err := minecraft.ParseAddress(args[0], queryProtocol)
		if err != nil {
			return err
		}
		Debug("querying %s with timeout %s", ep, queryTimeout)

		client := &minecraft.Client{Timeout: queryTimeout}
		st, qerr := client.Query(ep)

		if queryJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(st); err != nil {
				return err
			}
		} else {
			printQueryResult(os.Stdout, ep, st, stdoutIsTerminal(), terminalWidth(80))
		}
		return qerr
	},
}

// printQueryResult writes a human readable status. ansi keeps MOTD colors;
// otherwise the MOTD is stripped and truncated to width.
func printQueryResult(out io.Writer, ep minecraft.Endpoint, st minecraft.ServerStatus, ansi bool, width int) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	defer w.Flush()

	headerColor.Fprintf(w, "--- %s ---\n", ep.Address())
	if !st.Online {
		fmt.Fprintf(w, "  %s:\t%s\n", labelColor.Sprint("Status"), badColor.Sprint("offline"))
		fmt.Fprintf(w, "  %s:\t%s\n", labelColor.Sprint("Error"), st.Error)
		return
	}

	fmt.Fprintf(w, "  %s:\t%s\n", labelColor.Sprint("Status"), goodColor.Sprint("online"))
	fmt.Fprintf(w, "  %s:\t%s (protocol %d)\n", labelColor.Sprint("Version"), st.Version.Name, st.Version.Protocol)
	if st.Version.Protocol != ep.ProtocolVersion {
		fmt.Fprintf(w, "  \t%s\n", warnColor.Sprintf("server speaks protocol %d, we announced %d", st.Version.Protocol, ep.ProtocolVersion))
	}
	fmt.Fprintf(w, "  %s:\t%d / %d\n", labelColor.Sprint("Players"), st.Players.Online, st.Players.Max)
	fmt.Fprintf(w, "  %s:\t%s\n", labelColor.Sprint("Ping"), colorizePing(st.PingMS))
	if st.Favicon != "" {
		fmt.Fprintf(w, "  %s:\t%d bytes\n", labelColor.Sprint("Icon"), len(st.Favicon))
	}
	w.Flush()

	fmt.Fprintf(out, "  %s:\n", labelColor.Sprint("MOTD"))
	for _, line := range motdForOutput(st.MOTD, ansi, width-4) {
		fmt.Fprintf(out, "    %s\n", line)
	}
}

func motdForOutput(motd string, ansi bool, width int) []string {
	var lines []string
	for _, line := range strings.Split(motd, "\n") {
		if ansi {
			lines = append(lines, minecraft.EscapeToANSI(line))
			continue
		}
		plain := minecraft.StripFormatting(line)
		if width > 0 {
			plain = runewidth.Truncate(plain, width, "…")
		}
		lines = append(lines, plain)
	}
	return lines
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().Int32Var(&queryProtocol, "protocol", defaultQueryProtocol, "Protocol version to announce")
	queryCmd.Flags().DurationVar(&queryTimeout, "timeout", minecraft.DefaultTimeout, "Query timeout")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "Print the raw status as JSON")
}
