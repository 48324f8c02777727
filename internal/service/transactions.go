package service

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"simpleweb3/internal/gas"
	"simpleweb3/internal/logger"
	"simpleweb3/internal/metrics"
	"simpleweb3/internal/model"
	"simpleweb3/internal/telemetry"
	"simpleweb3/internal/validation"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"go.opentelemetry.io/otel/attribute"
)

// RPC is the subset of ethclient.Client the transaction service uses
type RPC interface {
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// FeeCache stores the latest fee snapshot per chain and a short history
type FeeCache interface {
	Latest(ctx context.Context, chain string) (*model.FeeSnapshot, error)
	Store(ctx context.Context, snap *model.FeeSnapshot) error
	History(ctx context.Context, chain string, n int64) ([]model.FeeSnapshot, error)
}

// TransactionServiceImpl estimates, prices and broadcasts transactions on one chain
type TransactionServiceImpl struct {
	rpc         RPC
	chainID     string
	endpoint    string
	limits      gas.Bounds
	fees        gas.FeeBounds
	cache       FeeCache
	sendTimeout time.Duration
	logger      logger.Logger
	now         func() time.Time
}

type TransactionOptions struct {
	ChainID     string
	Endpoint    string
	Limits      gas.Bounds
	Fees        gas.FeeBounds
	SendTimeout time.Duration
	// Cache is optional
	Cache FeeCache
}

// NewTransactionService creates a new transaction service
func NewTransactionService(rpc RPC, opts TransactionOptions, l logger.Logger) *TransactionServiceImpl {
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = 60 * time.Second
	}
	return &TransactionServiceImpl{
		rpc:         rpc,
		chainID:     opts.ChainID,
		endpoint:    opts.Endpoint,
		limits:      opts.Limits,
		fees:        opts.Fees,
		cache:       opts.Cache,
		sendTimeout: opts.SendTimeout,
		logger:      l.WithFields(logger.Fields{"component": "transactions", "chain": opts.ChainID}),
		now:         time.Now,
	}
}

func (ts *TransactionServiceImpl) Limits() gas.Bounds { return ts.limits }

func (ts *TransactionServiceImpl) FeeBounds() gas.FeeBounds { return ts.fees }

// EstimateGas validates the draft and asks the node for a gas estimate. It
// returns the clamped limit and the raw estimate.
func (ts *TransactionServiceImpl) EstimateGas(ctx context.Context, from common.Address, draft model.TransactionDraft) (uint64, uint64, error) {
	if err := validation.ValidateDraft(draft); err != nil {
		return 0, 0, err
	}

	msg := ethereum.CallMsg{
		From:  from,
		Value: draft.ValueWei,
	}
	to := common.HexToAddress(draft.To)
	msg.To = &to
	if draft.Data != "" {
		data := draft.Data
		if !strings.HasPrefix(data, "0x") {
			data = "0x" + data
		}
		if len(data)%2 != 0 {
			data = "0x0" + data[2:]
		}
		b, err := hexutil.Decode(data)
		if err != nil {
			return 0, 0, fmt.Errorf("error decoding calldata: %w", err)
		}
		msg.Data = b
	}

	ctx, span := telemetry.StartSpan(ctx, "rpc.eth_estimateGas", attribute.String("chain", ts.chainID))
	start := time.Now()
	estimated, err := ts.rpc.EstimateGas(ctx, msg)
	metrics.ObserveRPC(ts.endpoint, "eth_estimateGas", start, err)
	telemetry.EndSpan(span, err)
	if err != nil {
		return 0, 0, fmt.Errorf("error estimating gas: %w", err)
	}

	return ts.limits.Clamp(estimated), estimated, nil
}

// Estimator adapts EstimateGas to a gas.Controller for the given sender.
func (ts *TransactionServiceImpl) Estimator(from common.Address) gas.Estimator {
	return estimatorFunc(func(ctx context.Context, d model.TransactionDraft) (uint64, error) {
		_, raw, err := ts.EstimateGas(ctx, from, d)
		return raw, err
	})
}

type estimatorFunc func(ctx context.Context, d model.TransactionDraft) (uint64, error)

func (f estimatorFunc) EstimateGas(ctx context.Context, d model.TransactionDraft) (uint64, error) {
	return f(ctx, d)
}

// Fees returns the current fee snapshot, from the cache when it is fresh.
func (ts *TransactionServiceImpl) Fees(ctx context.Context) (*model.FeeSnapshot, error) {
	if ts.cache != nil {
		snap, err := ts.cache.Latest(ctx, ts.chainID)
		if err != nil {
			ts.logger.Warn("fee cache lookup failed", err)
		} else if snap != nil {
			metrics.FeeCacheHits.WithLabelValues("hit").Inc()
			return snap, nil
		}
		metrics.FeeCacheHits.WithLabelValues("miss").Inc()
	}
	return ts.RefreshFees(ctx)
}

// FeeHistory returns up to n recorded snapshots, newest first.
func (ts *TransactionServiceImpl) FeeHistory(ctx context.Context, n int64) ([]model.FeeSnapshot, error) {
	if ts.cache == nil {
		return nil, ErrNoFeeHistory
	}
	return ts.cache.History(ctx, ts.chainID, n)
}

// RefreshFees reads the base fee and tip from the node and updates the cache.
func (ts *TransactionServiceImpl) RefreshFees(ctx context.Context) (*model.FeeSnapshot, error) {
	ctx, span := telemetry.StartSpan(ctx, "rpc.fees", attribute.String("chain", ts.chainID))
	snap, err := ts.readFees(ctx)
	telemetry.EndSpan(span, err)
	if err != nil {
		return nil, err
	}

	if ts.cache != nil {
		if err := ts.cache.Store(ctx, snap); err != nil {
			ts.logger.Warn("fee cache store failed", err)
		}
	}
	return snap, nil
}

func (ts *TransactionServiceImpl) readFees(ctx context.Context) (*model.FeeSnapshot, error) {
	start := time.Now()
	head, err := ts.rpc.HeaderByNumber(ctx, nil)
	metrics.ObserveRPC(ts.endpoint, "eth_getBlockByNumber", start, err)
	if err != nil {
		return nil, fmt.Errorf("error getting latest header: %w", err)
	}

	start = time.Now()
	tip, err := ts.rpc.SuggestGasTipCap(ctx)
	metrics.ObserveRPC(ts.endpoint, "eth_maxPriorityFeePerGas", start, err)
	if err != nil {
		return nil, fmt.Errorf("error getting priority fee: %w", err)
	}

	base := new(big.Int)
	if head.BaseFee != nil {
		base.Set(head.BaseFee)
	}
	priority := ts.fees.Clamp(tip)

	return &model.FeeSnapshot{
		ChainID:     ts.chainID,
		BaseFee:     base,
		PriorityFee: priority,
		MaxFee:      gas.MaxFee(base, priority),
		BlockNumber: head.Number.Uint64(),
		ObservedAt:  ts.now().UTC(),
	}, nil
}

// WatchFees refreshes the fee snapshot every interval and passes it to publish until ctx is done.
func (ts *TransactionServiceImpl) WatchFees(ctx context.Context, interval time.Duration, publish func(*model.FeeSnapshot)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		snap, err := ts.RefreshFees(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			ts.logger.Warn("fee refresh failed", err)
		} else {
			publish(snap)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// DecodeRawTransaction parses a 0x-prefixed signed transaction.
func DecodeRawTransaction(raw string) (*types.Transaction, error) {
	b, err := hexutil.Decode(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("invalid raw transaction hex: %w", err)
	}
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(b); err != nil {
		return nil, fmt.Errorf("invalid raw transaction: %w", err)
	}
	return tx, nil
}

// Broadcast submits a signed raw transaction. Node errors come back as
// *BroadcastError with a user-facing message.
func (ts *TransactionServiceImpl) Broadcast(ctx context.Context, raw string) (common.Hash, error) {
	tx, err := DecodeRawTransaction(raw)
	if err != nil {
		return common.Hash{}, badRequest(err.Error())
	}

	ctx, cancel := context.WithTimeout(ctx, ts.sendTimeout)
	defer cancel()

	ctx, span := telemetry.StartSpan(ctx, "rpc.eth_sendRawTransaction",
		attribute.String("chain", ts.chainID),
		attribute.String("tx.hash", tx.Hash().Hex()),
		attribute.String("tx.type", string(model.TxTypeOf(tx))),
	)
	start := time.Now()
	err = ts.rpc.SendTransaction(ctx, tx)
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	metrics.ObserveRPC(ts.endpoint, "eth_sendRawTransaction", start, err)
	telemetry.EndSpan(span, err)

	if err != nil {
		berr := &BroadcastError{Message: ClassifySendError(err), Err: err}
		ts.logger.WithError(err).Error("Transaction failed", logger.Fields{"hash": tx.Hash().Hex()})
		return common.Hash{}, berr
	}

	ts.logger.Info("transaction sent", logger.Fields{"hash": tx.Hash().Hex(), "type": model.TxTypeOf(tx)})
	return tx.Hash(), nil
}

// ClassifySendError maps a send failure to the message shown to the user.
func ClassifySendError(err error) string {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "User rejected") || strings.Contains(msg, "user rejected"):
		return "Transaction was rejected by user."
	case strings.Contains(msg, "insufficient funds"):
		return "Insufficient funds for transaction."
	case errors.Is(err, context.DeadlineExceeded) || strings.Contains(strings.ToLower(msg), "timeout"):
		return "Transaction timed out. Please try again."
	default:
		return "Transaction failed: " + msg
	}
}
