package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/ntsb-publisher/internal/feed"
)

type previewFlags struct {
	extract string
	limit   int
}

// newPreviewCmd creates the 'preview' subcommand.
func newPreviewCmd() *cobra.Command {
	flags := &previewFlags{}
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Prints assembled documents without publishing",
		Long: `Assembles the documents of the first candidate records of an extract
and prints them. Neither the ledger nor the feed is touched.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			cfg := appInstance.cfg
			extract := flags.extract
			if extract == "" {
				extract = cfg.Source.Extracts[0]
			}
			epoch, err := cfg.EpochTime()
			if err != nil {
				return err
			}
			opener, err := newOpener(cfg.Source)
			if err != nil {
				return err
			}
			src, err := opener.Open(cmd.Context(), extract)
			if err != nil {
				return fmt.Errorf("open extract %s: %w", extract, err)
			}
			defer src.Close()

			newAssembler := assemblerFactory(cfg.Pipeline.MaxBodyLen, appInstance.logger.Named("assembler"))
			return preview(cmd.Context(), src, newAssembler(src), epoch, flags.limit, cmd.OutOrStdout(), appInstance.logger)
		},
	}
	cmd.Flags().StringVar(&flags.extract, "extract", "", "extract to preview (default: first configured extract)")
	cmd.Flags().IntVar(&flags.limit, "limit", 3, "number of documents to print")
	return cmd
}

// preview writes up to limit assembled documents to out. Non-fatal candidate
// and assembly errors are logged and skipped.
func preview(
	ctx context.Context,
	src feed.Source,
	asm feed.Assembler,
	epoch time.Time,
	limit int,
	out io.Writer,
	logger *zap.Logger,
) error {
	_, records, err := src.Stream(ctx, epoch)
	if err != nil {
		return fmt.Errorf("stream candidates: %w", err)
	}
	printed := 0
	for candidate, recErr := range records {
		if printed >= limit {
			break
		}
		if recErr != nil {
			if errors.Is(recErr, feed.ErrFatal) {
				return recErr
			}
			logger.Warn("skipping candidate", zap.Error(recErr))
			continue
		}
		doc, asmErr := asm.Assemble(ctx, candidate)
		if asmErr != nil {
			if errors.Is(asmErr, feed.ErrFatal) {
				return asmErr
			}
			logger.Warn("assembly failed", zap.String("event_id", candidate.EventID), zap.Error(asmErr))
			continue
		}
		fmt.Fprintf(out, "# %s\n\n%s\n\n", doc.Title, doc.Body)
		printed++
	}
	return nil
}
