// cmd/root.go
package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/norelabs/dashsrv/internal/config"
)

// getEnvOrDefault returns the value of an environment variable or a default value
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

var cfgFile string
var debugMode bool
var noColor bool

// debugLogFile is the file handle for debug logging
var debugLogFile *os.File
var debugLogMu sync.Mutex
var debugLogInitOnce sync.Once

// initDebugLogFile initializes the debug log file
func initDebugLogFile() {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return
	}

	logDir := filepath.Join(homeDir, ".dashsrv", "logs")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return
	}

	logPath := filepath.Join(logDir, "debug.log")
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return
	}

	debugLogFile = f

	timestamp := time.Now().Format("2006-01-02 15:04:05.000")
	fmt.Fprintf(debugLogFile, "\n=== Debug session started: %s ===\n", timestamp)
}

// Debug prints a message if debug mode is enabled and writes to log file
func Debug(format string, args ...interface{}) {
	if debugMode {
		timestamp := time.Now().Format("2006-01-02 15:04:05.000")
		msg := fmt.Sprintf(format, args...)

		fmt.Printf("[DEBUG] %s\n", msg)

		debugLogMu.Lock()
		debugLogInitOnce.Do(initDebugLogFile)
		if debugLogFile != nil {
			fmt.Fprintf(debugLogFile, "[%s] %s\n", timestamp, msg)
		}
		debugLogMu.Unlock()
	}
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "dashsrv",
	Short: "dashsrv is a home-lab status dashboard",
	Long: `A small status server for a home lab. It queries game servers over the
Server List Ping protocol, checks media servers, samples the local machine and
merges the reports of other dashsrv instances into one view.`,
	Version: Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor {
			color.NoColor = true
		}
		if debugMode {
			fullCmd := "dashsrv"
			if cmd.Name() != "dashsrv" {
				fullCmd += " " + cmd.Name()
			}
			cmd.Flags().Visit(func(f *pflag.Flag) {
				if f.Name == "debug" {
					return
				}
				if f.Value.Type() == "bool" {
					fullCmd += " --" + f.Name
				} else {
					fullCmd += " --" + f.Name + "=" + f.Value.String()
				}
			})
			if len(args) > 0 {
				fullCmd += " " + strings.Join(args, " ")
			}
			Debug("command: %s", fullCmd)
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", getEnvOrDefault("DASHSRV_CONFIG", config.DefaultPath), "config file")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colorized output")
}
