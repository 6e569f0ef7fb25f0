package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/torifo/echo-news/internal/config"
	"github.com/torifo/echo-news/internal/news"
	"github.com/torifo/echo-news/internal/tui"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage API keys",
}

var setKeyCmd = &cobra.Command{
	Use:   "set-key <gnews|currents> <key>",
	Short: "Use your own API key for a provider",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := news.ParseProvider(args[0])
		if err != nil {
			return err
		}
		if err := config.SetKey(flagConfig, p, args[1]); err != nil {
			return fmt.Errorf("saving key: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved own API key for %s.\n", tui.DisplayName(p))
		return nil
	},
}

var removeKeyCmd = &cobra.Command{
	Use:   "remove-key <gnews|currents>",
	Short: "Remove your own key and go back to the shared key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := news.ParseProvider(args[0])
		if err != nil {
			return err
		}
		if err := config.RemoveKey(flagConfig, p); err != nil {
			return fmt.Errorf("removing key: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed own API key for %s, the shared key is used again.\n", tui.DisplayName(p))
		return nil
	},
}

var showConfigCmd = &cobra.Command{
	Use:   "show",
	Short: "Show key settings and today's usage",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(flagConfig)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		usage, err := openQuota().Usage()
		if err != nil {
			return fmt.Errorf("reading quota: %w", err)
		}

		rows := make([]tui.KeyStatus, 0, len(news.All()))
		for _, p := range news.All() {
			row := tui.KeyStatus{Provider: p, Usage: usage[p]}
			if own := cfg.OwnKey(p); own != "" {
				row.MaskedKey = config.MaskKey(own)
			}
			rows = append(rows, row)
		}
		return tui.WriteConfigStatus(cmd.OutOrStdout(), rows)
	},
}

func init() {
	configCmd.AddCommand(setKeyCmd)
	configCmd.AddCommand(removeKeyCmd)
	configCmd.AddCommand(showConfigCmd)
}
