package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"simpleweb3/internal/gas"
	"simpleweb3/internal/model"
	"simpleweb3/internal/service"
	"simpleweb3/internal/units"
	"simpleweb3/internal/validation"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
)

const gasLabHelp = `commands:
  to=<address> data=<hex> value=<ether>   edit the draft
  + | -                                    step the gas limit
  hold+ | hold- | stop                     repeat a step until stopped
  low | avg | fast | est                   gas limit presets
  est!                                     estimate now, skipping the debounce
  safe | boost | max                       priority fee presets
  tip=<gwei> | tip+ | tip-                 set or step the priority fee
  base=<gwei>                              override the base fee
  show | help | quit`

type gasLabOptions struct {
	from  string
	draft model.TransactionDraft
	value string
}

func newGasLabCmd(opts *rootOptions) *cobra.Command {
	gl := &gasLabOptions{}

	cmd := &cobra.Command{
		Use:   "gaslab",
		Short: "Compose a transaction and tune its gas interactively against the configured RPC",
		RunE: func(cmd *cobra.Command, args []string) error {
			if gl.from != "" && !validation.IsAddress(gl.from) {
				return fmt.Errorf("invalid sender address %q", gl.from)
			}

			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			l := opts.newLogger(cfg)
			defer l.Cleanup()
			if gl.value != "" {
				v, err := units.ParseUnits(gl.value, units.EtherDecimals)
				if err != nil {
					return fmt.Errorf("invalid value %q: %w", gl.value, err)
				}
				gl.draft.ValueWei = v
			}

			ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srvc, err := service.NewService(ctx, cfg, l)
			if err != nil {
				return err
			}
			defer srvc.Close()
			if srvc.Transactions == nil {
				return errors.New("gaslab needs at least one rpc endpoint")
			}
			ts := srvc.Transactions

			ctrl := gas.NewController(ctx, ts.Estimator(common.HexToAddress(gl.from)), gas.Options{
				Limits:   ts.Limits(),
				Fees:     ts.FeeBounds(),
				Debounce: cfg.Gas.Debounce,
				Hold:     cfg.Gas.HoldInterval,
			}, l)
			defer ctrl.Close()

			if snap, err := ts.Fees(ctx); err != nil {
				l.Warn("could not read fees, base fee left at zero", err)
			} else {
				ctrl.SetBaseFee(snap.BaseFee)
				ctrl.SetPriorityFee(snap.PriorityFee)
			}
			if gl.draft.To != "" {
				if err := validation.ValidateDraft(gl.draft); err != nil {
					return err
				}
				ctrl.UpdateDraft(gl.draft)
			}

			return runGasLab(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), ctrl, gl.draft)
		},
	}

	cmd.Flags().StringVar(&gl.from, "from", "", "sender address used for estimates")
	cmd.Flags().StringVar(&gl.draft.To, "to", "", "recipient address")
	cmd.Flags().StringVar(&gl.draft.Data, "data", "", "calldata as hex")
	cmd.Flags().StringVar(&gl.value, "value", "", "value in ether")
	return cmd
}

type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) printf(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.w, format, args...)
}

// runGasLab reads commands from in until EOF, quit or ctx is done. Estimates
// and hold ticks arrive asynchronously and are echoed as they land.
func runGasLab(ctx context.Context, in io.Reader, out io.Writer, ctrl *gas.Controller, draft model.TransactionDraft) error {
	w := &syncWriter{w: out}

	updates, unsubscribe := ctrl.Subscribe()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		var last uint64
		for s := range updates {
			if s.Estimate != last || s.Error != "" {
				last = s.Estimate
				w.printf("~ %s\n", formatSnapshot(s))
			}
		}
	}()
	defer func() {
		unsubscribe()
		wg.Wait()
	}()

	var stopHold func()
	defer func() {
		if stopHold != nil {
			stopHold()
		}
	}()

	lines := make(chan string)
	done := make(chan struct{})
	defer close(done)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
	}()

	w.printf("%s\n", formatSnapshot(ctrl.Snapshot()))
	for {
		var line string
		select {
		case <-ctx.Done():
			return nil
		case l, ok := <-lines:
			if !ok {
				return nil
			}
			line = strings.TrimSpace(l)
		}
		if line == "" {
			continue
		}

		// any command other than stop ends a running hold
		if stopHold != nil && line != "stop" {
			stopHold()
			stopHold = nil
		}

		snap, err := applyGasLabCommand(ctrl, &draft, line, &stopHold)
		switch {
		case errors.Is(err, errQuit):
			return nil
		case err != nil:
			w.printf("! %s\n", describeError(err))
		case line == "help":
			w.printf("%s\n", gasLabHelp)
		case snap != nil:
			w.printf("%s\n", formatSnapshot(*snap))
		}
	}
}

var errQuit = errors.New("quit")

func applyGasLabCommand(ctrl *gas.Controller, draft *model.TransactionDraft, line string, stopHold *func()) (*gas.Snapshot, error) {
	key, val, hasVal := strings.Cut(line, "=")
	key = strings.ToLower(strings.TrimSpace(key))
	val = strings.TrimSpace(val)

	snapshot := func(s gas.Snapshot) (*gas.Snapshot, error) { return &s, nil }

	if hasVal {
		switch key {
		case "to", "data", "value":
			next := draft.Clone()
			switch key {
			case "to":
				next.To = val
			case "data":
				next.Data = val
			case "value":
				v, err := units.ParseUnits(val, units.EtherDecimals)
				if err != nil {
					return nil, err
				}
				next.ValueWei = v
			}
			*draft = next
			if err := validation.ValidateDraft(next); err != nil {
				return nil, err
			}
			ctrl.UpdateDraft(next)
			return snapshot(ctrl.Snapshot())
		case "tip", "base":
			v, err := units.GweiToWei(val)
			if err != nil {
				return nil, err
			}
			if key == "tip" {
				return snapshot(ctrl.SetPriorityFee(v))
			}
			return snapshot(ctrl.SetBaseFee(v))
		default:
			return nil, fmt.Errorf("unknown command %q", line)
		}
	}

	switch key {
	case "+":
		return snapshot(ctrl.Step(gas.Up))
	case "-":
		return snapshot(ctrl.Step(gas.Down))
	case "hold+":
		*stopHold = ctrl.StartHold(gas.Up)
		return nil, nil
	case "hold-":
		*stopHold = ctrl.StartHold(gas.Down)
		return nil, nil
	case "stop":
		if *stopHold != nil {
			(*stopHold)()
			*stopHold = nil
		}
		return snapshot(ctrl.Snapshot())
	case "low", "avg", "fast", "est":
		s, err := ctrl.ApplyGasPreset(gas.GasPreset(key))
		if err != nil {
			return nil, err
		}
		return snapshot(s)
	case "est!":
		ctrl.EstimateNow()
		return snapshot(ctrl.Snapshot())
	case "safe", "boost", "max":
		s, err := ctrl.ApplyPriorityPreset(gas.PriorityPreset(key))
		if err != nil {
			return nil, err
		}
		return snapshot(s)
	case "tip+":
		return snapshot(ctrl.StepPriority(gas.Up))
	case "tip-":
		return snapshot(ctrl.StepPriority(gas.Down))
	case "show":
		return snapshot(ctrl.Snapshot())
	case "help":
		return nil, nil
	case "quit", "exit":
		return nil, errQuit
	default:
		return nil, fmt.Errorf("unknown command %q, try help", line)
	}
}

func describeError(err error) string {
	var verr *validation.ValidationError
	if errors.As(err, &verr) {
		return fmt.Sprintf("%d: %s", verr.Code, verr.Message())
	}
	return err.Error()
}

func formatSnapshot(s gas.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "gas=%d", s.GasLimit)
	if s.Estimate > 0 {
		fmt.Fprintf(&b, " est=%d", s.Estimate)
	}
	fmt.Fprintf(&b, " base=%s tip=%s max=%s gwei",
		units.WeiToGwei(s.BaseFee), units.WeiToGwei(s.PriorityFee), units.WeiToGwei(s.MaxFee))
	if s.Estimating {
		b.WriteString(" estimating")
	}
	if s.Error != "" {
		fmt.Fprintf(&b, " error=%q", s.Error)
	}
	return b.String()
}
