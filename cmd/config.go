package cmd

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zjrosen/sensible/internal/config"
	"github.com/zjrosen/sensible/internal/distance"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Long:  `Print the configuration after defaults, the config file and flags are merged.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		data, err := config.Marshal(cfg)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if path := viper.ConfigFileUsed(); path != "" {
			_, _ = fmt.Fprintf(out, "# %s\n", path)
		} else {
			_, _ = fmt.Fprintln(out, "# defaults (no config file)")
		}
		_, err = out.Write(data)
		return err
	},
}

var masksCmd = &cobra.Command{
	Use:   "masks",
	Short: "List the distance masks",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		t := table.New().
			Border(lipgloss.NormalBorder()).
			Headers("DISTANCE", "MASK")
		for _, r := range cfg.Masks {
			t.Row(strconv.FormatInt(r.Distance, 10), r.Mask)
		}
		t.Row("future", cfg.FutureMask)
		t.Row("past", cfg.PastMask)
		_, err := fmt.Fprintln(cmd.OutOrStdout(), t.String())
		return err
	},
}

var masksSetCmd = &cobra.Command{
	Use:   "set <seconds> <mask>",
	Short: "Add or replace the mask used below a distance",
	Example: `  sensible masks set 10 "just now"
  sensible masks set 604800 "%dddd at %h:%MM%tt"`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		dist, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid distance %q: %w", args[0], err)
		}
		path, err := writableConfigPath()
		if err != nil {
			return err
		}
		updated, err := config.SetMask(path, distance.Rule{Distance: dist, Mask: args[1]}, cfg.Masks)
		if err != nil {
			return err
		}
		cfg.Masks = updated
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Saved %d masks to %s\n", len(updated), path)
		return nil
	},
}

var masksDeleteCmd = &cobra.Command{
	Use:   "delete <seconds>",
	Short: "Remove the mask for a distance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dist, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid distance %q: %w", args[0], err)
		}
		path, err := writableConfigPath()
		if err != nil {
			return err
		}
		updated, err := config.DeleteMask(path, dist, cfg.Masks)
		if err != nil {
			return err
		}
		cfg.Masks = updated
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Saved %d masks to %s\n", len(updated), path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(masksCmd)
	masksCmd.AddCommand(masksSetCmd)
	masksCmd.AddCommand(masksDeleteCmd)
}

// writableConfigPath returns the config file in use, creating the default
// local file when none was found.
func writableConfigPath() (string, error) {
	if path := viper.ConfigFileUsed(); path != "" {
		return path, nil
	}
	if err := config.WriteDefaultConfig(localConfigPath); err != nil {
		return "", err
	}
	return localConfigPath, nil
}
