package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"simpleweb3/internal/model"

	"github.com/ethereum/go-ethereum/common"
)

// Error codes shown to the user next to a failed validation
const (
	CodeInvalidDetails   = 501
	CodeInvalidRecipient = 502
	CodeInvalidData      = 503
)

var (
	ErrInvalidDetails   = errors.New("Invalid transaction details. Please check the recipient address and data format.")
	ErrInvalidRecipient = errors.New("Invalid recipient address format.")
	ErrInvalidData      = errors.New("Invalid data format. Must be valid hexadecimal.")
)

var (
	addressRe = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
	hexDataRe = regexp.MustCompile(`^(0x)?[0-9A-Fa-f]*$`)
)

// ValidationError pairs a user-facing code with one of the ErrInvalid* sentinels
type ValidationError struct {
	Code int
	Err  error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%d: %s", e.Code, e.Err.Error())
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Message is the user-facing text without the code.
func (e *ValidationError) Message() string { return e.Err.Error() }

// IsAddress reports whether s is a 0x-prefixed 20 byte address. All-lowercase
// hex is accepted as is; any uppercase letter requires the EIP-55 checksum.
func IsAddress(s string) bool {
	if !addressRe.MatchString(s) {
		return false
	}
	if s[2:] == strings.ToLower(s[2:]) {
		return true
	}
	return common.HexToAddress(s).Hex() == s
}

// IsHexData reports whether s is hex digits with an optional 0x prefix. The empty string is valid.
func IsHexData(s string) bool {
	return hexDataRe.MatchString(s)
}

// ValidateDraft checks the recipient, value and calldata of a draft.
func ValidateDraft(d model.TransactionDraft) error {
	if strings.TrimSpace(d.To) == "" || (d.ValueWei != nil && d.ValueWei.Sign() < 0) {
		return &ValidationError{Code: CodeInvalidDetails, Err: ErrInvalidDetails}
	}
	if !IsAddress(d.To) {
		return &ValidationError{Code: CodeInvalidRecipient, Err: ErrInvalidRecipient}
	}
	if d.Data != "" && !IsHexData(d.Data) {
		return &ValidationError{Code: CodeInvalidData, Err: ErrInvalidData}
	}
	return nil
}
