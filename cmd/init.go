package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/zjrosen/sensible/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a commented default config file",
	Long: `Write the default configuration to ./.sensible/config.yaml, or to
~/.config/sensible/config.yaml with --global.`,
	Args:        cobra.NoArgs,
	Annotations: map[string]string{annotationSkipConfig: "true"},
	RunE:        runInit,
}

var (
	initGlobal bool
	initForce  bool
)

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().BoolVarP(&initGlobal, "global", "g", false, "write to the user config directory")
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "overwrite an existing config file")
}

func runInit(cmd *cobra.Command, _ []string) error {
	path := localConfigPath
	if initGlobal {
		dir := userConfigDir()
		if dir == "" {
			return fmt.Errorf("cannot determine home directory")
		}
		path = filepath.Join(dir, "config.yaml")
	}

	if err := initConfigFile(path, initForce); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	return nil
}

// initConfigFile writes the default config to path, refusing to replace an
// existing file unless force is set.
func initConfigFile(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	return config.WriteDefaultConfig(path)
}
