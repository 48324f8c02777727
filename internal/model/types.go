package model

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
)

// TxType represents the envelope a draft will be signed as
type TxType string

const (
	LegacyTx  TxType = "legacy"
	EIP1559Tx TxType = "eip1559"
	EIP2930Tx TxType = "eip2930"
)

// ParseTxType accepts the wire names, case-insensitive. Empty means eip1559.
func ParseTxType(s string) (TxType, error) {
	switch TxType(strings.ToLower(strings.TrimSpace(s))) {
	case "", EIP1559Tx:
		return EIP1559Tx, nil
	case LegacyTx:
		return LegacyTx, nil
	case EIP2930Tx:
		return EIP2930Tx, nil
	default:
		return "", fmt.Errorf("unknown transaction type %q", s)
	}
}

// TxTypeOf maps a decoded transaction to its TxType. Blob and set-code
// envelopes carry dynamic fees and report as eip1559.
func TxTypeOf(tx *types.Transaction) TxType {
	switch tx.Type() {
	case types.LegacyTxType:
		return LegacyTx
	case types.AccessListTxType:
		return EIP2930Tx
	default:
		return EIP1559Tx
	}
}

// FeeParams are per-gas prices in wei
type FeeParams struct {
	BaseFee              *big.Int `json:"baseFee"`
	MaxPriorityFeePerGas *big.Int `json:"maxPriorityFeePerGas"`
	MaxFeePerGas         *big.Int `json:"maxFeePerGas"`
}

// TransactionDraft is an unsigned transaction being composed
type TransactionDraft struct {
	To       string    `json:"to"`
	Data     string    `json:"data,omitempty"`
	ValueWei *big.Int  `json:"value,omitempty"`
	GasLimit uint64    `json:"gasLimit,omitempty"`
	Fees     FeeParams `json:"fees"`
	Type     TxType    `json:"type,omitempty"`
}

// Clone returns a deep copy so callers can hand drafts across goroutines.
func (d TransactionDraft) Clone() TransactionDraft {
	out := d
	out.ValueWei = cloneInt(d.ValueWei)
	out.Fees = FeeParams{
		BaseFee:              cloneInt(d.Fees.BaseFee),
		MaxPriorityFeePerGas: cloneInt(d.Fees.MaxPriorityFeePerGas),
		MaxFeePerGas:         cloneInt(d.Fees.MaxFeePerGas),
	}
	return out
}

func cloneInt(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}

// QueryRequest is the body of a validator export request
type QueryRequest struct {
	Pubkey1   string `json:"pubkey1"`
	Pubkey2   string `json:"pubkey2"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

// FeeSnapshot is the fee market as observed at one block
type FeeSnapshot struct {
	ChainID     string    `json:"chainId"`
	BaseFee     *big.Int  `json:"baseFee"`
	PriorityFee *big.Int  `json:"priorityFee"`
	MaxFee      *big.Int  `json:"maxFee"`
	BlockNumber uint64    `json:"blockNumber"`
	ObservedAt  time.Time `json:"observedAt"`
}
