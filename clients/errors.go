package clients

import (
	"context"
	"errors"

	"github.com/vitwit/paylink/program"
	"github.com/vitwit/paylink/types"
)

// networkError wraps a transport failure. Context expiry is reported the same
// way so the poller treats a slow attempt like any other outage.
func networkError(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	var pe *types.PaylinkError
	if errors.As(err, &pe) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return types.WrapError(types.ErrNetworkUnavailable, err, format, args...)
}

// submitError classifies a rejected transaction. Program errors keep their
// meaning; everything else is a submission failure.
func submitError(err error) error {
	if err == nil {
		return nil
	}
	if perr, ok := program.ParseProgramError(err.Error()); ok {
		return program.MapError(perr)
	}
	var pe *types.PaylinkError
	if errors.As(err, &pe) {
		return err
	}
	return types.WrapError(types.ErrSubmitFailed, err, "transaction rejected")
}
