package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// newFetchCmd creates the 'fetch' subcommand.
func newFetchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch",
		Short: "Downloads this month's NTSB extracts",
		Long: `Scrapes the NTSB avdata listing, downloads the monthly update and full
archives published this month, and unpacks them into the data directory.
Archives already downloaded this month are reused. Prints one extract name
per line.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			extracts, err := fetchExtracts(ctx, appInstance.cfg, cmd.ErrOrStderr(), appInstance.logger.Named("fetcher"))
			if err != nil {
				return err
			}
			for _, name := range extracts {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			appInstance.logger.Info("fetch finished", zap.Strings("extracts", extracts))
			return nil
		},
	}
}
