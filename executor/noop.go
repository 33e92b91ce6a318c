// Package executor provides Executor implementations for the blockchain
// tree. The tree treats execution as an opaque collaborator (see
// core/blocktree.Executor); this package supplies a no-op implementation
// for driving the tree in tests and tooling without a real EVM wired in.
package executor

import (
	"github.com/eth2030/eth2030/core/blocktree"
	"github.com/eth2030/eth2030/core/types"
)

// executedMarker is the post-state NoopExecutor hands back: a record that
// a given block hash was "executed" without running anything, so tests
// can assert a chain's pending state reflects the blocks appended to it.
type executedMarker struct {
	blockHash types.Hash
}

// NoopExecutor is a blocktree.Executor that performs no real computation.
// It records the executed block's hash as its resulting state, enough for
// the tree's bookkeeping (append/split/merge of pending state) to be
// exercised without a real EVM.
type NoopExecutor struct{}

// NewNoopExecutor creates an Executor that accepts every block without
// running it.
func NewNoopExecutor() *NoopExecutor {
	return &NoopExecutor{}
}

func (e *NoopExecutor) Execute(block *types.Block, parentState blocktree.State) (blocktree.State, blocktree.ChangeSets, error) {
	return executedMarker{blockHash: block.Hash()}, nil, nil
}
