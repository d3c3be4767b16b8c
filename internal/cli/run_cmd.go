package cli

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/haytac/neighbourhood-emoji/internal/app"
)

// NewRunCmd creates the run command.
func NewRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Starts the emoji API and the notice relay",
		Long:  `Starts the emoji HTTP API, the metrics endpoint and the scheduler that relays new notices from every enabled source to Telegram.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApplication(cmd, false)
		},
	}
}

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Starts only the emoji API and the metrics endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApplication(cmd, true)
		},
	}
}

func runApplication(cmd *cobra.Command, apiOnly bool) error {
	if AppCfg == nil {
		return fmt.Errorf("configuration not loaded")
	}
	application, err := app.NewApplication(AppCfg)
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize application")
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	return application.Run(cmd.Context(), apiOnly)
}
