package verification

// Reasons a landed transaction does not settle a link.
const (
	// -----------------------------
	// TRANSACTION
	// -----------------------------
	ReasonTransactionMissing   = "settlement_transaction_missing"
	ReasonTransactionFailed    = "settlement_transaction_failed"
	ReasonTransactionMalformed = "settlement_transaction_malformed"
	ReasonReferenceNotFound    = "settlement_reference_not_in_instructions"

	// -----------------------------
	// TRANSFER PARSING
	// -----------------------------
	ReasonNotATransferInstruction        = "settlement_not_a_transfer_instruction"
	ReasonNotATransferCheckedInstruction = "settlement_instruction_not_transfer_checked"

	// -----------------------------
	// TRANSFER CHECKS
	// -----------------------------
	ReasonRecipientMismatch = "settlement_recipient_mismatch"
	ReasonMintMismatch      = "settlement_mint_mismatch"
	ReasonAmountMismatch    = "settlement_amount_mismatch"
	ReasonBalanceMismatch   = "settlement_balance_mismatch"

	ReasonUnsupportedCurrency = "settlement_unsupported_currency"
)
