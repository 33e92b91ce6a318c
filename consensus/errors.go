package consensus

import "errors"

// Header validation errors.
var (
	ErrUnknownParent     = errors.New("unknown parent")
	ErrInvalidNumber     = errors.New("invalid block number")
	ErrInvalidGasLimit   = errors.New("invalid gas limit")
	ErrInvalidGasUsed    = errors.New("gas used exceeds gas limit")
	ErrInvalidTimestamp  = errors.New("timestamp not greater than parent")
	ErrExtraDataTooLong  = errors.New("extra data too long")
	ErrInvalidBaseFee    = errors.New("invalid base fee")
	ErrInvalidDifficulty = errors.New("invalid difficulty for post-merge block")
	ErrInvalidUncleHash  = errors.New("invalid uncle hash for post-merge block")
	ErrInvalidNonce      = errors.New("invalid nonce for post-merge block")
)
