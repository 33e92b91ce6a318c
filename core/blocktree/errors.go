package blocktree

import (
	"errors"
	"fmt"

	"github.com/eth2030/eth2030/core/types"
)

// Structural and lookup errors.
var (
	// ErrChainIDConsistency signals an internal indices/chains
	// inconsistency: a chain id was found in an index but not in the
	// chains map. This is a bug, never expected user input.
	ErrChainIDConsistency = errors.New("chain id consistency error")

	// ErrUnknownBlock is returned by MakeCanonical when the given hash
	// is not held by any chain in the tree.
	ErrUnknownBlock = errors.New("unknown block")

	// ErrInvalidLink is returned by Chain.AppendBlock when the given
	// block's parent hash does not match the chain's current tip.
	ErrInvalidLink = errors.New("block does not link to chain tip")

	// ErrChainJointMismatch is returned by AppendChain when the other
	// chain's joint does not equal this chain's tip.
	ErrChainJointMismatch = errors.New("chain joint does not match tip")
)

// PendingBlockIsFinalizedError is returned by InsertBlock when the given
// block's number is at or below the finalized boundary.
type PendingBlockIsFinalizedError struct {
	BlockNumber   uint64
	BlockHash     types.Hash
	LastFinalized uint64
}

func (e *PendingBlockIsFinalizedError) Error() string {
	return fmt.Sprintf("pending block %d (%s) is at or below finalized block %d",
		e.BlockNumber, e.BlockHash, e.LastFinalized)
}

// PendingBlockIsInFutureError is returned by InsertBlock when the given
// block's number exceeds the admission window above the finalized block.
type PendingBlockIsInFutureError struct {
	BlockNumber   uint64
	BlockHash     types.Hash
	LastFinalized uint64
}

func (e *PendingBlockIsInFutureError) Error() string {
	return fmt.Sprintf("pending block %d (%s) is too far ahead of finalized block %d",
		e.BlockNumber, e.BlockHash, e.LastFinalized)
}
