package blocktree

import (
	"fmt"

	"github.com/eth2030/eth2030/core/types"
)

// Chain is an ordered, non-empty sequence of blocks branching from a
// Joint. It carries the accumulated post-state over its own blocks; the
// joint block itself is not a member, since it lives in canonical history
// or in another Chain (see Joint).
type Chain struct {
	blocks       []*types.Block
	joint        Joint
	pendingState State
}

// First returns the oldest block in the chain.
func (c *Chain) First() *types.Block {
	return c.blocks[0]
}

// Tip returns the newest block in the chain.
func (c *Chain) Tip() *types.Block {
	return c.blocks[len(c.blocks)-1]
}

// JointBlock returns the Joint this chain branches from.
func (c *Chain) JointBlock() Joint {
	return c.joint
}

// Len returns the number of blocks held directly by this chain.
func (c *Chain) Len() int {
	return len(c.blocks)
}

// Blocks returns the chain's blocks in order, oldest first. The slice is
// shared with the chain; callers must not mutate it.
func (c *Chain) Blocks() []*types.Block {
	return c.blocks
}

// PendingState returns the chain's accumulated post-execution state, as
// produced by the Executor over the chain's own blocks.
func (c *Chain) PendingState() State {
	return c.pendingState
}

// NewCanonicalJoint builds a singleton Chain for block, branching from
// the given canonical parent block. It validates the header against the
// parent via consensus and executes the block via executor before
// accepting it; it does not mutate db.
func NewCanonicalJoint(block, parent *types.Block, consensus ConsensusValidator, exec Executor) (*Chain, error) {
	if err := consensus.ValidateHeader(block.Header(), parent.Header()); err != nil {
		return nil, fmt.Errorf("validating header against canonical parent: %w", err)
	}
	post, _, err := exec.Execute(block, nil)
	if err != nil {
		return nil, fmt.Errorf("executing block against canonical parent: %w", err)
	}
	return &Chain{
		blocks:       []*types.Block{block},
		joint:        Joint{Number: parent.NumberU64(), Hash: parent.Hash()},
		pendingState: post,
	}, nil
}

// NewChainJoint builds a singleton Chain for block, branching from some
// interior block of c (the caller guarantees block.ParentHash() is
// c.blocks[i].Hash() for some i). The parent's post-state is whichever
// value was accumulated up to that interior block; since this
// implementation does not replay changesets (out of scope — see
// ChangeSets), the executor is handed c's own accumulated
// pendingState as the closest available approximation when block's
// parent is c's tip, and nil otherwise. The present chain c is not
// modified.
func (c *Chain) NewChainJoint(block *types.Block, parentIndex int, consensus ConsensusValidator, exec Executor) (*Chain, error) {
	if parentIndex < 0 || parentIndex >= len(c.blocks) {
		return nil, fmt.Errorf("%w: parent index %d out of range [0,%d)", ErrInvalidLink, parentIndex, len(c.blocks))
	}
	parent := c.blocks[parentIndex]
	if err := consensus.ValidateHeader(block.Header(), parent.Header()); err != nil {
		return nil, fmt.Errorf("validating header against interior parent: %w", err)
	}

	var parentState State
	if parentIndex == len(c.blocks)-1 {
		parentState = c.pendingState
	}
	post, _, err := exec.Execute(block, parentState)
	if err != nil {
		return nil, fmt.Errorf("executing block against interior parent: %w", err)
	}
	return &Chain{
		blocks:       []*types.Block{block},
		joint:        Joint{Number: parent.NumberU64(), Hash: parent.Hash()},
		pendingState: post,
	}, nil
}

// AppendBlock extends the chain's tip with block. Fails with ErrInvalidLink
// if block does not link to the current tip, or if consensus/execution
// rejects it.
func (c *Chain) AppendBlock(block *types.Block, consensus ConsensusValidator, exec Executor) error {
	tip := c.Tip()
	if block.ParentHash() != tip.Hash() {
		return fmt.Errorf("%w: tip %s, block parent %s", ErrInvalidLink, tip.Hash(), block.ParentHash())
	}
	if err := consensus.ValidateHeader(block.Header(), tip.Header()); err != nil {
		return fmt.Errorf("validating header: %w", err)
	}
	post, _, err := exec.Execute(block, c.pendingState)
	if err != nil {
		return fmt.Errorf("executing block: %w", err)
	}
	c.blocks = append(c.blocks, block)
	c.pendingState = post
	return nil
}

// AppendChain splices other onto the tail of c, assuming other.joint
// equals c.Tip(). It adopts other's pendingState.
func (c *Chain) AppendChain(other *Chain) error {
	tip := c.Tip()
	if other.joint.Hash != tip.Hash() {
		return fmt.Errorf("%w: tip %s, other joint %s", ErrChainJointMismatch, tip.Hash(), other.joint.Hash)
	}
	c.blocks = append(c.blocks, other.blocks...)
	c.pendingState = other.pendingState
	return nil
}

// SplitAtBlockHash partitions c into (prefix ending at and including hash,
// suffix starting at hash's child). If hash is not in c, both return
// values are nil. If hash is the tip, suffix is nil and the prefix holds
// every block and keeps c's pendingState. Otherwise post-state moves to
// the suffix and the prefix carries no pendingState, since recomputing it
// requires replaying changesets this implementation does not retain.
func (c *Chain) SplitAtBlockHash(hash types.Hash) (prefix, suffix *Chain) {
	idx := -1
	for i, b := range c.blocks {
		if b.Hash() == hash {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil, nil
	}
	return c.splitAtIndex(idx)
}

// SplitAtNumber partitions c into (prefix including the block at number,
// suffix starting after it), keyed by block height instead of hash.
func (c *Chain) SplitAtNumber(number uint64) (prefix, suffix *Chain) {
	idx := -1
	for i, b := range c.blocks {
		if b.NumberU64() == number {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil, nil
	}
	return c.splitAtIndex(idx)
}

func (c *Chain) splitAtIndex(idx int) (prefix, suffix *Chain) {
	prefixBlocks := c.blocks[:idx+1]
	prefix = &Chain{
		blocks: append([]*types.Block(nil), prefixBlocks...),
		joint:  c.joint,
	}
	if idx == len(c.blocks)-1 {
		prefix.pendingState = c.pendingState
		return prefix, nil
	}
	suffixBlocks := c.blocks[idx+1:]
	suffix = &Chain{
		blocks:       append([]*types.Block(nil), suffixBlocks...),
		joint:        Joint{Number: prefixBlocks[len(prefixBlocks)-1].NumberU64(), Hash: prefixBlocks[len(prefixBlocks)-1].Hash()},
		pendingState: c.pendingState,
	}
	return prefix, suffix
}
