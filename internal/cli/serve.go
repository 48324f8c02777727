package cli

import (
	"context"
	"fmt"
	"time"

	"simpleweb3/internal/controller"
	"simpleweb3/internal/service"
	"simpleweb3/internal/telemetry"

	"github.com/spf13/cobra"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			l := opts.newLogger(cfg)
			defer l.Cleanup()

			ctx := commandContext(cmd)

			shutdownTracer, err := telemetry.InitTracer(ctx, "simpleweb3", cfg.OtelEndpoint)
			if err != nil {
				l.Warn("tracing disabled", err)
			}
			defer func() {
				sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = shutdownTracer(sctx)
			}()

			srvc, err := service.NewService(ctx, cfg, l)
			if err != nil {
				return fmt.Errorf("failed to set up services: %w", err)
			}
			defer srvc.Close()

			return controller.NewController(cfg, srvc).Serve(ctx)
		},
	}
}
