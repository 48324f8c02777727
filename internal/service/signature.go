package service

import (
	"strings"

	"simpleweb3/internal/validation"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// VerifySignature recovers the personal_sign signer of the trimmed message.
// When expected is non-empty, valid reports whether it matches the signer.
func VerifySignature(message, signature, expected string) (signer common.Address, valid bool, err error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return common.Address{}, false, badRequest("message is required")
	}
	if expected != "" && !validation.IsAddress(expected) {
		return common.Address{}, false, badRequest(validation.ErrInvalidRecipient.Error())
	}

	sig, err := hexutil.Decode(strings.TrimSpace(signature))
	if err != nil || len(sig) != crypto.SignatureLength {
		return common.Address{}, false, badRequest("signature must be 65 bytes of 0x-prefixed hex")
	}
	// wallets emit V as 27/28
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return common.Address{}, false, badRequest("could not recover signer: " + err.Error())
	}
	signer = crypto.PubkeyToAddress(*pub)

	if expected == "" {
		return signer, true, nil
	}
	return signer, signer == common.HexToAddress(expected), nil
}
