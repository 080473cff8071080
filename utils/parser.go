package utils

import (
	"encoding/json"

	"github.com/vitwit/paylink/types"
)

// TransactionRequest is the body of a Solana Pay transaction request.
type TransactionRequest struct {
	Account string `json:"account" validate:"required,solana_pubkey"`
}

// ParseTransactionRequest parses and validates a transaction request body.
func ParseTransactionRequest(data []byte) (*TransactionRequest, error) {
	var req TransactionRequest

	if err := json.Unmarshal(data, &req); err != nil {
		return nil, types.WrapError(types.ErrInvalidAddress, err, "failed to parse transaction request")
	}

	if err := types.Validator().Struct(&req); err != nil {
		return nil, types.WrapError(types.ErrInvalidAddress, err, "validation failed")
	}

	return &req, nil
}

// NormalizeJSON formats JSON with consistent indentation
func NormalizeJSON(data interface{}) ([]byte, error) {
	return json.MarshalIndent(data, "", "  ")
}
