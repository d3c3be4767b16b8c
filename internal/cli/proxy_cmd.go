package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/haytac/neighbourhood-emoji/internal/proxy"
)

// NewProxyCmd creates the 'proxy' command and its subcommands.
func NewProxyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "proxy",
		Short:   "Inspect and validate proxy configurations",
		Aliases: []string{"proxies"},
	}
	cmd.AddCommand(newProxyListCmd())
	cmd.AddCommand(newProxyValidateCmd())
	return cmd
}

func newProxyListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all configured proxies",
		RunE: func(cmd *cobra.Command, args []string) error {
			if AppCfg == nil {
				return fmt.Errorf("configuration not loaded for proxy list")
			}
			out := cmd.OutOrStdout()
			if len(AppCfg.Proxies) == 0 {
				fmt.Fprintln(out, "No proxies configured.")
				return nil
			}
			fmt.Fprintln(out, "Configured Proxies:")
			for _, p := range AppCfg.Proxies {
				auth := "no"
				if p.Username != "" {
					auth = "yes"
				}
				feedDef := ""
				if p.Name == AppCfg.DefaultFeedProxy {
					feedDef = " [Default feeds]"
				}
				tgDef := ""
				if p.Name == AppCfg.DefaultTelegramProxy {
					tgDef = " [Default TG]"
				}
				fmt.Fprintf(out, "Name: %s, Type: %s, Address: %s, Auth: %s%s%s\n",
					p.Name, p.Type, p.Address, auth, feedDef, tgDef)
			}
			return nil
		},
	}
}

func newProxyValidateCmd() *cobra.Command {
	var targetURL string

	validateCmd := &cobra.Command{
		Use:   "validate <name>",
		Short: "Validate connectivity of a configured proxy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if AppCfg == nil {
				return fmt.Errorf("configuration not loaded for proxy validate")
			}
			p := AppCfg.ProxyByName(args[0])
			if p == nil {
				return fmt.Errorf("proxy %q not found", args[0])
			}

			validator := proxy.NewDefaultProxyValidator(proxy.NewHTTPClientFactory())
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Validating proxy %s (Address: %s) against target %s...\n", p.Name, p.Address, targetURL)
			if err := validator.Validate(cmd.Context(), p, targetURL); err != nil {
				return fmt.Errorf("validation failed: %w", err)
			}
			fmt.Fprintln(out, "Proxy validation successful.")
			return nil
		},
	}
	validateCmd.Flags().StringVar(&targetURL, "target", proxy.DefaultValidationTarget, "URL to test proxy connectivity against")
	return validateCmd
}
