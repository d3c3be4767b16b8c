package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/haytac/neighbourhood-emoji/internal/config"
	"github.com/haytac/neighbourhood-emoji/internal/logging"
)

var (
	cfgFile string
	dryRun  bool
	// AppCfg is populated by the root command's PersistentPreRunE.
	AppCfg *config.AppConfig
)

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "neighbourhood-emoji",
		Short: "Emoji token codec and community notice relay.",
		Long: `neighbourhood-emoji decodes {{EMOJI:<CODE>}} tokens stored in community posts,
serves the codec over HTTP and relays notice feeds into Telegram chats.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loadedCfg, err := config.LoadConfig(cfgFile)
			if err != nil {
				return fmt.Errorf("error loading config: %w", err)
			}
			AppCfg = loadedCfg
			logging.Setup(AppCfg.Log)
			AppCfg.DryRun = dryRun
			return nil
		},
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml, $HOME/.neighbourhood-emoji/config.yaml)")
	root.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "log notices instead of sending them to Telegram")

	root.AddCommand(NewRunCmd())
	root.AddCommand(NewServeCmd())
	root.AddCommand(NewDecodeCmd())
	root.AddCommand(NewEncodeCmd())
	root.AddCommand(NewInspectCmd())
	root.AddCommand(NewGlyphCmd())
	root.AddCommand(NewSourceCmd())
	root.AddCommand(NewProxyCmd())
	return root
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
