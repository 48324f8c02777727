package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"simpleweb3/internal/apiclient"
	"simpleweb3/internal/logger"
	"simpleweb3/internal/model"
	"simpleweb3/internal/service"

	"github.com/spf13/cobra"
)

type exportOptions struct {
	req model.QueryRequest
	out string
}

func newExportCmd(opts *rootOptions) *cobra.Command {
	eo := &exportOptions{}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Download validator rewards as CSV from a running server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			l := opts.newLogger(cfg)
			defer l.Cleanup()

			// fail fast on input the server would reject
			if _, err := service.ValidateQuery(eo.req); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()

			dl, err := apiclient.New(cfg.APIBaseURL, l).DownloadExport(ctx, eo.req)
			if err != nil {
				return err
			}

			if eo.out == "-" {
				_, err := cmd.OutOrStdout().Write(dl.CSV)
				return err
			}
			path := eo.out
			if path == "" {
				path = dl.Filename
			}
			if err := os.WriteFile(path, dl.CSV, 0o644); err != nil {
				return fmt.Errorf("error writing %s: %w", path, err)
			}
			l.Info("CSV file downloaded successfully", logger.Fields{"file": path, "bytes": len(dl.CSV)})
			return nil
		},
	}

	cmd.Flags().StringVar(&eo.req.Pubkey1, "pubkey1", "", "first validator identity (base58)")
	cmd.Flags().StringVar(&eo.req.Pubkey2, "pubkey2", "", "second validator identity (base58)")
	cmd.Flags().StringVar(&eo.req.StartDate, "start", "", "start date, YYYY-MM-DD (inclusive)")
	cmd.Flags().StringVar(&eo.req.EndDate, "end", "", "end date, YYYY-MM-DD (exclusive)")
	cmd.Flags().StringVar(&eo.out, "out", "", "output file, - for stdout (default is the server's filename)")
	return cmd
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
