// cmd/init.go
package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/norelabs/dashsrv/internal/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Long: `Writes the default configuration to the --config path (dashsrv.yaml by
default). An existing file is left alone unless --force is given.`,
	Example: `  dashsrv init
  dashsrv init --config /etc/dashsrv.yaml --force`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return writeDefaultConfig(cfgFile, initForce)
	},
}

func writeDefaultConfig(path string, force bool) error {
	_, err := os.Stat(path)
	switch {
	case err == nil && !force:
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	case err != nil && !errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("check %s: %w", path, err)
	}

	if err := config.WriteDefault(path); err != nil {
		return err
	}
	goodColor.Printf("✅ Wrote default configuration to %s\n", path)
	fmt.Println("   - Add your servers under 'servers:' and run 'dashsrv serve'")
	return nil
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing file")
}
