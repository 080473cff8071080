package types

import (
	"errors"
	"fmt"
)

// PaylinkError is the error type returned by every package of the module.
type PaylinkError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *PaylinkError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *PaylinkError) Unwrap() error {
	return e.Err
}

// Is matches any *PaylinkError with the same code, so callers can write
// errors.Is(err, types.ErrNotFoundError).
func (e *PaylinkError) Is(target error) bool {
	var t *PaylinkError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// Kind returns the taxonomy bucket of the error's code.
func (e *PaylinkError) Kind() ErrorKind {
	if k, ok := codeKinds[e.Code]; ok {
		return k
	}
	return KindInternal
}

// Common error codes
const (
	ErrInvalidAmount       = "INVALID_AMOUNT"
	ErrUnsupportedCurrency = "UNSUPPORTED_CURRENCY"
	ErrInvalidPatch        = "INVALID_PATCH"
	ErrInvalidAddress      = "INVALID_ADDRESS"
	ErrIndexExhausted      = "INDEX_EXHAUSTED"
	ErrConfigError         = "CONFIG_ERROR"
	ErrMetadataUnavailable = "METADATA_UNAVAILABLE"
	ErrNetworkUnavailable  = "NETWORK_UNAVAILABLE"
	ErrNotFound            = "NOT_FOUND"
	ErrAlreadyExists       = "ALREADY_EXISTS"
	ErrUnauthorized        = "UNAUTHORIZED"
	ErrSemanticMismatch    = "SEMANTIC_MISMATCH"
	ErrStaleIndex          = "STALE_INDEX"
	ErrDerivationExhausted = "DERIVATION_EXHAUSTED"
	ErrSubmitFailed        = "SUBMIT_FAILED"
)

// ErrorKind groups codes by how callers should react to them.
type ErrorKind string

const (
	KindValidation       ErrorKind = "validation"
	KindNotFound         ErrorKind = "not_found"
	KindAlreadyExists    ErrorKind = "already_exists"
	KindUnauthorized     ErrorKind = "unauthorized"
	KindNetwork          ErrorKind = "network"
	KindSemanticMismatch ErrorKind = "semantic_mismatch"
	KindConcurrency      ErrorKind = "concurrency"
	KindInternal         ErrorKind = "internal"
)

var codeKinds = map[string]ErrorKind{
	ErrInvalidAmount:       KindValidation,
	ErrUnsupportedCurrency: KindValidation,
	ErrInvalidPatch:        KindValidation,
	ErrInvalidAddress:      KindValidation,
	ErrIndexExhausted:      KindValidation,
	ErrConfigError:         KindValidation,
	ErrMetadataUnavailable: KindNetwork,
	ErrNetworkUnavailable:  KindNetwork,
	ErrNotFound:            KindNotFound,
	ErrAlreadyExists:       KindAlreadyExists,
	ErrUnauthorized:        KindUnauthorized,
	ErrSemanticMismatch:    KindSemanticMismatch,
	ErrStaleIndex:          KindConcurrency,
	ErrDerivationExhausted: KindInternal,
	ErrSubmitFailed:        KindInternal,
}

// Sentinels for errors.Is. Only the Code is compared.
var (
	ErrInvalidAmountError       = &PaylinkError{Code: ErrInvalidAmount}
	ErrUnsupportedCurrencyError = &PaylinkError{Code: ErrUnsupportedCurrency}
	ErrInvalidPatchError        = &PaylinkError{Code: ErrInvalidPatch}
	ErrInvalidAddressError      = &PaylinkError{Code: ErrInvalidAddress}
	ErrIndexExhaustedError      = &PaylinkError{Code: ErrIndexExhausted}
	ErrMetadataUnavailableError = &PaylinkError{Code: ErrMetadataUnavailable}
	ErrNetworkUnavailableError  = &PaylinkError{Code: ErrNetworkUnavailable}
	ErrNotFoundError            = &PaylinkError{Code: ErrNotFound}
	ErrAlreadyExistsError       = &PaylinkError{Code: ErrAlreadyExists}
	ErrUnauthorizedError        = &PaylinkError{Code: ErrUnauthorized}
	ErrSemanticMismatchError    = &PaylinkError{Code: ErrSemanticMismatch}
	ErrStaleIndexError          = &PaylinkError{Code: ErrStaleIndex}
	ErrDerivationExhaustedError = &PaylinkError{Code: ErrDerivationExhausted}
)

// NewError builds a PaylinkError with a formatted message.
func NewError(code, format string, args ...any) *PaylinkError {
	return &PaylinkError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WrapError attaches a code and message to an underlying error.
func WrapError(code string, err error, format string, args ...any) *PaylinkError {
	return &PaylinkError{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the taxonomy bucket of err, or KindInternal for foreign errors.
func KindOf(err error) ErrorKind {
	var pe *PaylinkError
	if errors.As(err, &pe) {
		return pe.Kind()
	}
	return KindInternal
}

// CodeOf returns the code of err, or "" for foreign errors.
func CodeOf(err error) string {
	var pe *PaylinkError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}
