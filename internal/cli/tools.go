package cli

import (
	"fmt"
	"math/big"

	"simpleweb3/internal/model"
	"simpleweb3/internal/units"
	"simpleweb3/internal/validation"

	"github.com/spf13/cobra"
)

func newConvertCmd() *cobra.Command {
	var req units.Request

	cmd := &cobra.Command{
		Use:   "convert <mode> <input>",
		Short: "Convert between units (ETH2WEI, WEI2ETH, HEX2DEC, DEC2HEX, SOL2LAMPORTS, LAMPORTS2SOL, CUSTOM)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Mode, req.Input = args[0], args[1]
			out, err := units.Convert(req)
			if err != nil {
				fmt.Fprintln(cmd.OutOrStdout(), "ERROR")
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.From, "from", "wei", "source unit for CUSTOM (wei, gwei, ether, lamports, sol, custom)")
	cmd.Flags().StringVar(&req.To, "to", "ether", "target unit for CUSTOM")
	cmd.Flags().IntVar(&req.Decimals, "decimals", 18, "decimals of the custom unit")
	return cmd
}

func newValidateCmd() *cobra.Command {
	var (
		draft model.TransactionDraft
		value string
	)

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a recipient address and calldata",
		RunE: func(cmd *cobra.Command, args []string) error {
			if value != "" {
				v, ok := new(big.Int).SetString(value, 0)
				if !ok {
					return fmt.Errorf("invalid value %q", value)
				}
				draft.ValueWei = v
			}
			if err := validation.ValidateDraft(draft); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "valid")
			return nil
		},
	}

	cmd.Flags().StringVar(&draft.To, "to", "", "recipient address")
	cmd.Flags().StringVar(&draft.Data, "data", "", "calldata as hex")
	cmd.Flags().StringVar(&value, "value", "", "value in wei")
	return cmd
}
