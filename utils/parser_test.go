package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTransactionRequest(t *testing.T) {
	req, err := ParseTransactionRequest([]byte(`{"account":"AejHuZdNpDUiAiwuV2NKXz8K6eLzChYGpTcxptinWbar"}`))
	require.NoError(t, err)
	assert.Equal(t, "AejHuZdNpDUiAiwuV2NKXz8K6eLzChYGpTcxptinWbar", req.Account)

	_, err = ParseTransactionRequest([]byte(`{"account":"nope"}`))
	assert.Error(t, err)
}
