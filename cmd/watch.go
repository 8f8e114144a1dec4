// cmd/watch.go
package cmd

import (
	"net"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/norelabs/dashsrv/internal/config"
	"github.com/norelabs/dashsrv/internal/tui"
)

var (
	watchInterval time.Duration
	watchTimeout  time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch [url]",
	Short: "Live terminal dashboard of a running dashsrv",
	Long: `Opens a full-screen dashboard that polls a running dashsrv instance.

Without a URL the listen address from the configuration file is used.

Keys: r refresh, a toggle auto-refresh, q or Esc quit.`,
	Example: `  dashsrv watch
  dashsrv watch http://192.168.0.105:8080 --interval 2s`,
	Args:         cobra.MaximumNArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		target := ""
		if len(args) == 1 {
			target = args[0]
		} else {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			target = watchTarget(cfg)
		}
		Debug("watching %s every %s", target, watchInterval)
		return tui.RunWatch(target, watchInterval, watchTimeout)
	},
}

// watchTarget turns the configured listen address into a URL, replacing the
// wildcard address with loopback.
func watchTarget(cfg *config.Config) string {
	host := cfg.HostIP
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(cfg.HostPort))
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().DurationVar(&watchInterval, "interval", tui.DefaultInterval, "Refresh interval")
	watchCmd.Flags().DurationVar(&watchTimeout, "timeout", 3*time.Second, "Per-request timeout")
}
