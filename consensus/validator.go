// Package consensus provides stateless header-chain validation: the rules
// a block header must satisfy with respect to its parent before it is
// admitted to the tree at all. It knows nothing about transaction
// execution or state roots — that is the Executor's job.
package consensus

import (
	"fmt"
	"math/big"

	"github.com/eth2030/eth2030/core/types"
)

const (
	// MaxExtraDataSize is the maximum allowed extra data in a block header.
	MaxExtraDataSize = 32

	// GasLimitBoundDivisor is the divisor for max gas limit change per block.
	GasLimitBoundDivisor uint64 = 1024

	// MinGasLimit is the minimum gas limit.
	MinGasLimit uint64 = 5000

	// MaxGasLimit is the maximum gas limit (2^63 - 1).
	MaxGasLimit uint64 = 1<<63 - 1

	// ElasticityMultiplier is the EIP-1559 elasticity multiplier.
	ElasticityMultiplier uint64 = 2

	// BaseFeeChangeDenominator is the EIP-1559 base fee change denominator.
	BaseFeeChangeDenominator uint64 = 8
)

// HeaderValidator checks header-chain consensus rules: parent linkage,
// monotonic numbering and timestamps, gas-limit bounds, and post-merge
// PoS invariants. It holds no mutable state and is safe for concurrent use.
type HeaderValidator struct{}

// NewHeaderValidator creates a stateless header validator.
func NewHeaderValidator() *HeaderValidator {
	return &HeaderValidator{}
}

// ValidateHeader checks whether child conforms to the consensus rules
// given its direct parent. This is the sole entry point used by the tree's
// admission path; it is deliberately narrower than full block validation
// (no body, no state root, no execution).
func (v *HeaderValidator) ValidateHeader(child, parent *types.Header) error {
	if child.ParentHash != parent.Hash() {
		return fmt.Errorf("%w: want %s, got %s", ErrUnknownParent, parent.Hash(), child.ParentHash)
	}

	if len(child.Extra) > MaxExtraDataSize {
		return fmt.Errorf("%w: %d > %d", ErrExtraDataTooLong, len(child.Extra), MaxExtraDataSize)
	}

	if child.Time <= parent.Time {
		return fmt.Errorf("%w: child %d <= parent %d", ErrInvalidTimestamp, child.Time, parent.Time)
	}

	expected := new(big.Int).Add(parent.Number, big.NewInt(1))
	if child.Number.Cmp(expected) != 0 {
		return fmt.Errorf("%w: want %s, got %s", ErrInvalidNumber, expected, child.Number)
	}

	if err := verifyGasLimit(parent.GasLimit, child.GasLimit); err != nil {
		return err
	}

	if child.GasUsed > child.GasLimit {
		return fmt.Errorf("%w: %d > %d", ErrInvalidGasUsed, child.GasUsed, child.GasLimit)
	}

	if err := verifyPostMerge(child); err != nil {
		return err
	}

	if child.BaseFee != nil {
		expectedBaseFee := CalcBaseFee(parent)
		if child.BaseFee.Cmp(expectedBaseFee) != 0 {
			return fmt.Errorf("%w: want %s, got %s", ErrInvalidBaseFee, expectedBaseFee, child.BaseFee)
		}
	}

	return nil
}

// CalcBaseFee computes the expected EIP-1559 base fee for the block that
// follows parent, given the gas parent used against its target (half its
// gas limit, scaled by ElasticityMultiplier).
func CalcBaseFee(parent *types.Header) *big.Int {
	if parent.BaseFee == nil {
		return big.NewInt(0)
	}
	parentGasTarget := parent.GasLimit / ElasticityMultiplier
	if parentGasTarget == 0 {
		return new(big.Int).Set(parent.BaseFee)
	}

	if parent.GasUsed == parentGasTarget {
		return new(big.Int).Set(parent.BaseFee)
	}

	if parent.GasUsed > parentGasTarget {
		gasUsedDelta := parent.GasUsed - parentGasTarget
		x := new(big.Int).Mul(parent.BaseFee, big.NewInt(int64(gasUsedDelta)))
		y := x.Div(x, big.NewInt(int64(parentGasTarget)))
		baseFeeDelta := y.Div(y, big.NewInt(int64(BaseFeeChangeDenominator)))
		if baseFeeDelta.Cmp(big.NewInt(1)) < 0 {
			baseFeeDelta = big.NewInt(1)
		}
		return new(big.Int).Add(parent.BaseFee, baseFeeDelta)
	}

	gasUsedDelta := parentGasTarget - parent.GasUsed
	x := new(big.Int).Mul(parent.BaseFee, big.NewInt(int64(gasUsedDelta)))
	y := x.Div(x, big.NewInt(int64(parentGasTarget)))
	baseFeeDelta := y.Div(y, big.NewInt(int64(BaseFeeChangeDenominator)))
	next := new(big.Int).Sub(parent.BaseFee, baseFeeDelta)
	if next.Sign() < 0 {
		return big.NewInt(0)
	}
	return next
}

func verifyGasLimit(parentGasLimit, headerGasLimit uint64) error {
	if headerGasLimit < MinGasLimit {
		return fmt.Errorf("%w: %d < minimum %d", ErrInvalidGasLimit, headerGasLimit, MinGasLimit)
	}
	if headerGasLimit > MaxGasLimit {
		return fmt.Errorf("%w: %d > maximum %d", ErrInvalidGasLimit, headerGasLimit, MaxGasLimit)
	}

	var diff uint64
	if headerGasLimit < parentGasLimit {
		diff = parentGasLimit - headerGasLimit
	} else {
		diff = headerGasLimit - parentGasLimit
	}
	limit := parentGasLimit / GasLimitBoundDivisor
	if diff >= limit {
		return fmt.Errorf("%w: change %d exceeds limit %d", ErrInvalidGasLimit, diff, limit)
	}
	return nil
}

func verifyPostMerge(header *types.Header) error {
	if header.Difficulty != nil && header.Difficulty.Sign() != 0 {
		return fmt.Errorf("%w: got %s", ErrInvalidDifficulty, header.Difficulty)
	}
	if header.Nonce != (types.BlockNonce{}) {
		return fmt.Errorf("%w: got %x", ErrInvalidNonce, header.Nonce)
	}
	if header.UncleHash != (types.Hash{}) && header.UncleHash != types.EmptyUncleHash {
		return fmt.Errorf("%w: got %s", ErrInvalidUncleHash, header.UncleHash)
	}
	return nil
}
