package program

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/vitwit/paylink/types"
)

// Custom error codes surfaced by the program and the runtime.
const (
	// System program: account already in use (Anchor init on a live address).
	CodeAccountInUse uint32 = 0

	CodeConstraintHasOne        uint32 = 2001
	CodeConstraintSeeds         uint32 = 2006
	CodeAccountDiscriminator    uint32 = 3002
	CodeAccountNotInitialized   uint32 = 3012
	CodeAccountOwnedByWrongProg uint32 = 3007
)

// ProgramError is a custom instruction error reported by the ledger.
type ProgramError struct {
	Code uint32
}

func (e *ProgramError) Error() string {
	return fmt.Sprintf("custom program error: 0x%x", e.Code)
}

var customErrorPattern = regexp.MustCompile(`custom program error: 0x([0-9a-fA-F]+)`)

// ParseProgramError extracts a custom error code from a ledger error message.
func ParseProgramError(msg string) (*ProgramError, bool) {
	m := customErrorPattern.FindStringSubmatch(msg)
	if m == nil {
		return nil, false
	}
	code, err := strconv.ParseUint(m[1], 16, 32)
	if err != nil {
		return nil, false
	}
	return &ProgramError{Code: uint32(code)}, true
}

// MapError translates a program error into the module's error taxonomy.
func MapError(err *ProgramError) *types.PaylinkError {
	switch err.Code {
	case CodeAccountInUse:
		return types.WrapError(types.ErrAlreadyExists, err, "account already exists")
	case CodeAccountNotInitialized, CodeAccountDiscriminator, CodeAccountOwnedByWrongProg:
		return types.WrapError(types.ErrNotFound, err, "account not found")
	case CodeConstraintSeeds:
		return types.WrapError(types.ErrStaleIndex, err, "link index is stale")
	case CodeConstraintHasOne:
		return types.WrapError(types.ErrUnauthorized, err, "signer does not own the account")
	default:
		return types.WrapError(types.ErrSubmitFailed, err, "program rejected the transaction")
	}
}
