package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewSourceCmd creates the 'source' command and its subcommands.
func NewSourceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "source",
		Short:   "Inspect configured notice sources",
		Aliases: []string{"sources"},
	}
	cmd.AddCommand(newSourceListCmd())
	return cmd
}

func newSourceListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all configured notice sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			if AppCfg == nil {
				return fmt.Errorf("configuration not loaded for source list")
			}
			out := cmd.OutOrStdout()
			if len(AppCfg.Sources) == 0 {
				fmt.Fprintln(out, "No sources configured.")
				return nil
			}
			fmt.Fprintln(out, "Configured Sources:")
			for _, s := range AppCfg.Sources {
				state := "enabled"
				if s.Disabled {
					state = "disabled"
				}
				fmt.Fprintf(out, "Name: %s, URL: %s, Chat: %s, Every: %s, Profile: %s, Proxy: %s [%s]\n",
					s.Name, s.URL, s.ChatID, s.Frequency(), orNone(s.Profile), orNone(s.Proxy), state)
			}
			return nil
		},
	}
}

func orNone(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
