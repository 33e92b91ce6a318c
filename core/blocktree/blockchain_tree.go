// Package blocktree implements the in-memory Blockchain Tree: a forest of
// pending side chains anchored to a canonical chain persisted in a
// durable store. It buffers blocks received from the network before they
// become canonical, decides when a pending branch should be promoted
// (InsertBlock/MakeCanonical), and prunes old history once it is final
// (FinalizeBlock).
package blocktree

import (
	"fmt"
	"sync"

	"github.com/eth2030/eth2030/core/types"
	"github.com/eth2030/eth2030/log"
)

// Config bounds the tree's admission window. The collaborators are passed
// to New separately.
type Config struct {
	// MaxChainLength bounds how far above FinalizedBlock a block number
	// may be before InsertBlock rejects it outright.
	MaxChainLength uint64
}

// DefaultConfig returns sane defaults for a tree tracking recent chain
// history (64 blocks, matching typical finality-window sizing).
func DefaultConfig() Config {
	return Config{MaxChainLength: 64}
}

// BlockchainTree owns the set of live side chains and a window of
// canonical headers, and implements the three state-mutating protocols:
// InsertBlock, FinalizeBlock, MakeCanonical. It is a single-owner,
// non-reentrant state machine: every public method acquires mu for its
// full duration, so callers never observe a partially-applied operation.
type BlockchainTree struct {
	mu sync.Mutex

	chains          map[ChainID]*Chain
	chainIDCounter  ChainID
	indices         *BlockIndices
	canonicalBlocks map[uint64]*types.Block // in-memory window cache, keyed like indices.canonicalChain

	finalizedBlock uint64
	maxChainLength uint64

	db        Database
	consensus ConsensusValidator
	executor  Executor

	metrics *Metrics
}

// New creates a BlockchainTree seeded with the given window of canonical
// blocks, ordered oldest to newest with the last entry as the tip. All of
// them are assumed already persisted in db. The window must cover at
// least [finalizedBlock, tip]: InsertBlock and MakeCanonical can only
// branch from or promote onto a canonical block the window holds.
func New(canonicalWindow []*types.Block, finalizedBlock uint64, cfg Config, db Database, consensus ConsensusValidator, executor Executor) *BlockchainTree {
	indices := NewBlockIndices()
	canonicalBlocks := make(map[uint64]*types.Block, len(canonicalWindow))
	for i, b := range canonicalWindow {
		if i == 0 {
			indices.SeedCanonical(b.NumberU64(), b.Hash())
		} else {
			indices.extendCanonical(b.NumberU64(), b.Hash())
		}
		canonicalBlocks[b.NumberU64()] = b
	}
	return &BlockchainTree{
		chains:          make(map[ChainID]*Chain),
		indices:         indices,
		canonicalBlocks: canonicalBlocks,
		finalizedBlock:  finalizedBlock,
		maxChainLength:  cfg.MaxChainLength,
		db:              db,
		consensus:       consensus,
		executor:        executor,
		metrics:         NewMetrics(),
	}
}

// Metrics returns the tree's observability counters.
func (t *BlockchainTree) Metrics() *Metrics {
	return t.metrics
}

// Indices exposes the tree's cross-indexed lookup tables for inspection by
// tooling and tests. Callers must not mutate anything reachable through it.
func (t *BlockchainTree) Indices() *BlockIndices {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.indices
}

// InsertBlock admits block into the tree. Per spec, missing-parent is not
// an error: out-of-order delivery is normal, and the block is silently
// dropped (a higher layer may trigger sync). Duplicate inserts of an
// already-known hash are an idempotent no-op.
func (t *BlockchainTree) InsertBlock(block *types.Block) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	number := block.NumberU64()
	hash := block.Hash()

	if number <= t.finalizedBlock {
		return &PendingBlockIsFinalizedError{BlockNumber: number, BlockHash: hash, LastFinalized: t.finalizedBlock}
	}
	if number > t.finalizedBlock+t.maxChainLength {
		return &PendingBlockIsInFutureError{BlockNumber: number, BlockHash: hash, LastFinalized: t.finalizedBlock}
	}

	if _, ok := t.indices.GetBlockChainID(hash); ok {
		return nil // idempotent no-op: already held by a side chain
	}

	if parentChainID, ok := t.indices.GetBlockChainID(block.ParentHash()); ok {
		if err := t.joinBlockToChain(block, parentChainID); err != nil {
			return err
		}
		t.metrics.insertMeter.Mark(1)
		return t.writePendingBlock(block)
	}

	if parentHash, ok := t.indices.CanonicalHash(number - 1); ok && parentHash == block.ParentHash() {
		parent := t.canonicalBlocks[number-1]
		if parent == nil {
			return fmt.Errorf("%w: canonical parent %d not cached", ErrChainIDConsistency, number-1)
		}
		chain, err := NewCanonicalJoint(block, parent, t.consensus, t.executor)
		if err != nil {
			return err
		}
		t.insertChain(chain)
		t.metrics.insertMeter.Mark(1)
		return t.writePendingBlock(block)
	}

	// Parent unknown: silently accept, as out-of-order delivery is normal.
	log.Debug("dropping block with unknown parent", "number", number, "hash", hash, "parent", block.ParentHash())
	return nil
}

// joinBlockToChain appends block to the end of an existing chain, or
// forks a new chain from one of its interior blocks if block does not
// link directly to its tip.
func (t *BlockchainTree) joinBlockToChain(block *types.Block, chainID ChainID) error {
	parentChain, ok := t.chains[chainID]
	if !ok {
		return fmt.Errorf("%w: chain %d", ErrChainIDConsistency, chainID)
	}

	if parentChain.Tip().Hash() == block.ParentHash() {
		if err := parentChain.AppendBlock(block, t.consensus, t.executor); err != nil {
			return err
		}
		t.indices.RegisterAppendedBlock(chainID, block)
		return nil
	}

	parentIndex := -1
	for i, b := range parentChain.Blocks() {
		if b.Hash() == block.ParentHash() {
			parentIndex = i
			break
		}
	}
	if parentIndex == -1 {
		return fmt.Errorf("%w: parent %s not found in chain %d", ErrChainIDConsistency, block.ParentHash(), chainID)
	}

	forked, err := parentChain.NewChainJoint(block, parentIndex, t.consensus, t.executor)
	if err != nil {
		return err
	}
	t.insertChain(forked)
	return nil
}

// insertChain assigns the next ChainID to chain, registers it in the
// indices, and stores it in the chains map.
func (t *BlockchainTree) insertChain(chain *Chain) ChainID {
	id := t.chainIDCounter
	t.chainIDCounter++
	t.indices.InsertChain(id, chain)
	t.chains[id] = chain
	t.metrics.chainCount.Inc()
	return id
}

func (t *BlockchainTree) writePendingBlock(block *types.Block) error {
	tx, err := t.db.TxMut()
	if err != nil {
		return fmt.Errorf("opening tx: %w", err)
	}
	if err := tx.PutPendingBlock(block.Hash(), block); err != nil {
		tx.Rollback()
		return fmt.Errorf("writing pending block: %w", err)
	}
	return tx.Commit()
}

// FinalizeBlock marks n as permanently canonical, pruning every side
// chain whose ancestry is now unreachable from it. Removal is transitive:
// pruning a chain may orphan others whose joint pointed into it, so the
// set returned by the indices is drained to a worklist fixpoint, never
// recursively.
func (t *BlockchainTree) FinalizeBlock(n uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	removeChains := t.indices.FinalizeCanonicalBlocks(n)
	for len(removeChains) > 0 {
		var id ChainID
		for candidate := range removeChains {
			id = candidate
			break
		}
		delete(removeChains, id)

		chain, ok := t.chains[id]
		if !ok {
			continue
		}
		delete(t.chains, id)
		t.metrics.chainCount.Dec()
		t.metrics.finalizedPruned.Inc()

		for lost := range t.indices.RemoveChain(chain) {
			removeChains[lost] = struct{}{}
		}
	}

	for number := range t.canonicalBlocks {
		if number <= n && number != t.indices.canonicalMax {
			delete(t.canonicalBlocks, number)
		}
	}
	t.finalizedBlock = n
}

// MakeCanonical promotes the block identified by hash to be the new
// canonical tip, performing the minimum reorg: it walks the chain's
// joints back toward canonical history, merges the promotion path
// bottom-up, and either fast-forwards (if the path joins the current
// canonical tip) or reverts the displaced canonical suffix and re-parks
// it as a side chain.
func (t *BlockchainTree) MakeCanonical(hash types.Hash) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	chainID, ok := t.indices.GetBlockChainID(hash)
	if !ok {
		return ErrUnknownBlock
	}
	chain, ok := t.chains[chainID]
	if !ok {
		return fmt.Errorf("%w: chain %d", ErrChainIDConsistency, chainID)
	}
	delete(t.chains, chainID)

	canon, pending := chain.SplitAtBlockHash(hash)
	if canon == nil {
		return fmt.Errorf("%w: hash %s not found in chain %d", ErrChainIDConsistency, hash, chainID)
	}
	if pending != nil {
		t.indices.InsertChain(chainID, pending)
		t.chains[chainID] = pending
	} else {
		// The whole chain was promoted: its branch point is resolved, but
		// its blocksToChain/numberToBlock entries are cleaned up later, in
		// commitCanonical, once every promoted block is known. Any side
		// chain forking off one of this chain's own (interior) blocks
		// remains valid and must not be disturbed here.
		t.indices.detachJoint(canon.JointBlock().Hash, canon.First().Hash())
		t.metrics.chainCount.Dec()
	}

	joint := canon.JointBlock()
	chainsToPromote := []*Chain{canon}

	for {
		joinedID, ok := t.indices.GetBlockChainID(joint.Hash)
		if !ok {
			break
		}
		parent, ok := t.chains[joinedID]
		if !ok {
			return fmt.Errorf("%w: chain %d", ErrChainIDConsistency, joinedID)
		}
		delete(t.chains, joinedID)

		parentCanon, rest := parent.SplitAtNumber(joint.Number)
		if parentCanon == nil {
			return fmt.Errorf("%w: joint number %d not found in chain %d", ErrChainIDConsistency, joint.Number, joinedID)
		}
		if rest != nil {
			t.indices.InsertChain(joinedID, rest)
			t.chains[joinedID] = rest
		} else {
			t.indices.detachJoint(parentCanon.JointBlock().Hash, parentCanon.First().Hash())
			t.metrics.chainCount.Dec()
		}

		joint = parentCanon.JointBlock()
		chainsToPromote = append(chainsToPromote, parentCanon)
	}

	oldTip := t.indices.CanonicalTip()

	newCanon := chainsToPromote[len(chainsToPromote)-1]
	for i := len(chainsToPromote) - 2; i >= 0; i-- {
		if err := newCanon.AppendChain(chainsToPromote[i]); err != nil {
			return fmt.Errorf("merging promotion path: %w", err)
		}
	}

	if newCanon.JointBlock().Hash == oldTip.Hash {
		// Fast-forward: the promotion path joins the current tip directly,
		// so no canonical blocks need reverting.
		return t.commitCanonical(newCanon)
	}

	canonJoint := newCanon.JointBlock()
	if canonHash, ok := t.indices.CanonicalHash(canonJoint.Number); !ok || canonHash != canonJoint.Hash {
		return fmt.Errorf("%w: new canonical chain's joint %v is not on canonical history", ErrChainIDConsistency, canonJoint)
	}

	oldCanon, err := t.revertCanonical(canonJoint.Number)
	if err != nil {
		return fmt.Errorf("reverting canonical: %w", err)
	}
	if err := t.commitCanonical(newCanon); err != nil {
		// Roll the reverted suffix back into canonical bookkeeping so the
		// tree's invariants hold even though the commit failed.
		t.reinstateCanonical(oldCanon)
		return fmt.Errorf("committing canonical: %w", err)
	}
	t.insertChain(oldCanon)

	depth := oldTip.Number - canonJoint.Number
	t.metrics.reorgCount.Inc()
	if depth > t.metrics.maxReorgDepth {
		t.metrics.maxReorgDepth = depth
	}
	return nil
}

// commitCanonical persists newCanon's blocks as canonical via a single
// durable transaction, updates the in-memory canonical window, and
// removes newCanon's blocks from the side-chain indices (they are no
// longer pending once canonical).
func (t *BlockchainTree) commitCanonical(newCanon *Chain) error {
	tx, err := t.db.TxMut()
	if err != nil {
		return fmt.Errorf("opening tx: %w", err)
	}
	for _, b := range newCanon.Blocks() {
		if err := tx.WriteCanonical(b.NumberU64(), b.Hash(), b); err != nil {
			tx.Rollback()
			return fmt.Errorf("writing canonical block %d: %w", b.NumberU64(), err)
		}
		if err := tx.DeletePendingBlock(b.Hash()); err != nil {
			tx.Rollback()
			return fmt.Errorf("deleting pending block %d: %w", b.NumberU64(), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	for _, b := range newCanon.Blocks() {
		t.indices.extendCanonical(b.NumberU64(), b.Hash())
		t.canonicalBlocks[b.NumberU64()] = b
		delete(t.indices.blocksToChain, b.Hash())
		if set, ok := t.indices.numberToBlock[b.NumberU64()]; ok {
			delete(set, b.Hash())
			if len(set) == 0 {
				delete(t.indices.numberToBlock, b.NumberU64())
			}
		}
	}
	return nil
}

// revertCanonical unwinds canonical blocks (revertUntil, currentTip] from
// the store via a single durable transaction and returns them as a Chain
// whose joint is (revertUntil, canonicalHash(revertUntil)), so the
// displaced suffix can be re-parked as a side chain.
func (t *BlockchainTree) revertCanonical(revertUntil uint64) (*Chain, error) {
	oldTip := t.indices.CanonicalTip()
	jointHash, ok := t.indices.CanonicalHash(revertUntil)
	if !ok {
		return nil, fmt.Errorf("%w: revert boundary %d not in canonical window", ErrChainIDConsistency, revertUntil)
	}

	var reverted []*types.Block
	for n := revertUntil + 1; n <= oldTip.Number; n++ {
		b, ok := t.canonicalBlocks[n]
		if !ok {
			return nil, fmt.Errorf("%w: canonical block %d not cached for revert", ErrChainIDConsistency, n)
		}
		reverted = append(reverted, b)
	}
	if len(reverted) == 0 {
		return nil, fmt.Errorf("%w: nothing to revert above %d", ErrChainIDConsistency, revertUntil)
	}

	tx, err := t.db.TxMut()
	if err != nil {
		return nil, fmt.Errorf("opening tx: %w", err)
	}
	for n := oldTip.Number; n > revertUntil; n-- {
		if err := tx.DeleteCanonical(n); err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("deleting canonical %d: %w", n, err)
		}
	}
	for _, b := range reverted {
		if err := tx.PutPendingBlock(b.Hash(), b); err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("re-parking block %d: %w", b.NumberU64(), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	t.indices.truncateCanonicalAbove(revertUntil)
	for n := revertUntil + 1; n <= oldTip.Number; n++ {
		delete(t.canonicalBlocks, n)
	}

	return &Chain{
		blocks: reverted,
		joint:  Joint{Number: revertUntil, Hash: jointHash},
	}, nil
}

// reinstateCanonical restores a chain previously removed by
// revertCanonical back into the canonical window, used when a subsequent
// commitCanonical call fails and the reorg must roll back.
func (t *BlockchainTree) reinstateCanonical(oldCanon *Chain) {
	for _, b := range oldCanon.Blocks() {
		t.indices.extendCanonical(b.NumberU64(), b.Hash())
		t.canonicalBlocks[b.NumberU64()] = b
	}
}
