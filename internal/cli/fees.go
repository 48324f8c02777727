package cli

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"simpleweb3/internal/apiclient"
	"simpleweb3/internal/model"
	"simpleweb3/internal/units"

	"github.com/spf13/cobra"
)

func newFeesCmd(opts *rootOptions) *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "fees",
		Short: "Show the fee market as seen by a running server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			l := opts.newLogger(cfg)
			defer l.Cleanup()

			ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()

			client := apiclient.New(cfg.APIBaseURL, l)
			out := cmd.OutOrStdout()
			if !watch {
				snap, err := client.Fees(ctx)
				if err != nil {
					return err
				}
				printFees(out, *snap)
				return nil
			}
			return client.WatchFees(ctx, func(snap model.FeeSnapshot) { printFees(out, snap) })
		},
	}

	cmd.Flags().BoolVar(&watch, "watch", false, "follow the fee stream")
	return cmd
}

func printFees(w io.Writer, s model.FeeSnapshot) {
	fmt.Fprintf(w, "chain=%s block=%d base=%s gwei priority=%s gwei max=%s gwei\n",
		s.ChainID, s.BlockNumber, units.WeiToGwei(s.BaseFee), units.WeiToGwei(s.PriorityFee), units.WeiToGwei(s.MaxFee))
}
