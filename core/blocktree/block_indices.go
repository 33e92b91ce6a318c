package blocktree

import "github.com/eth2030/eth2030/core/types"

// BlockIndices holds the cross-indexed lookup tables the tree uses to
// answer "which chain holds hash H?", "which block is canonical at height
// N?", and "which children fork off hash H?". All four maps are kept
// logically simultaneous; see the package-level invariant tests for the
// relationships they must satisfy after every public tree operation.
type BlockIndices struct {
	// forkToChild maps a block hash with at least one side-chain child to
	// the set of first-blocks of chains branching from it.
	forkToChild map[types.Hash]map[types.Hash]struct{}

	// canonicalChain is the in-memory window [finalizedBlock, tip] of the
	// canonical chain, number to hash. Go has no ordered map, so min/max
	// are tracked alongside for the contiguous-range invariant.
	canonicalChain map[uint64]types.Hash
	canonicalMin   uint64
	canonicalMax   uint64
	hasCanonical   bool

	// blocksToChain maps every hash held by any side chain to its ChainID.
	blocksToChain map[types.Hash]ChainID

	// numberToBlock maps a block number to the set of side-chain hashes
	// at that height.
	numberToBlock map[uint64]map[types.Hash]struct{}
}

// NewBlockIndices creates an empty set of indices.
func NewBlockIndices() *BlockIndices {
	return &BlockIndices{
		forkToChild:    make(map[types.Hash]map[types.Hash]struct{}),
		canonicalChain: make(map[uint64]types.Hash),
		blocksToChain:  make(map[types.Hash]ChainID),
		numberToBlock:  make(map[uint64]map[types.Hash]struct{}),
	}
}

// SeedCanonical initializes the canonical window with a single known
// (number, hash) pair. New seeds it with the oldest block of the persisted
// canonical window and adds the rest through extendCanonical.
func (bi *BlockIndices) SeedCanonical(number uint64, hash types.Hash) {
	bi.canonicalChain[number] = hash
	bi.canonicalMin = number
	bi.canonicalMax = number
	bi.hasCanonical = true
}

// InsertChain adds every block of chain to blocksToChain and
// numberToBlock, and registers the chain's first block as a fork-child of
// its joint.
func (bi *BlockIndices) InsertChain(id ChainID, chain *Chain) {
	for _, b := range chain.Blocks() {
		bi.blocksToChain[b.Hash()] = id
		if bi.numberToBlock[b.NumberU64()] == nil {
			bi.numberToBlock[b.NumberU64()] = make(map[types.Hash]struct{})
		}
		bi.numberToBlock[b.NumberU64()][b.Hash()] = struct{}{}
	}
	first := chain.First()
	if bi.forkToChild[chain.joint.Hash] == nil {
		bi.forkToChild[chain.joint.Hash] = make(map[types.Hash]struct{})
	}
	bi.forkToChild[chain.joint.Hash][first.Hash()] = struct{}{}
}

// RegisterAppendedBlock records a block appended directly onto an existing
// chain's tip (Chain.AppendBlock mutates the chain in place, so it never
// goes through InsertChain). It is not a branch point, so forkToChild is
// left untouched.
func (bi *BlockIndices) RegisterAppendedBlock(id ChainID, block *types.Block) {
	bi.blocksToChain[block.Hash()] = id
	if bi.numberToBlock[block.NumberU64()] == nil {
		bi.numberToBlock[block.NumberU64()] = make(map[types.Hash]struct{})
	}
	bi.numberToBlock[block.NumberU64()][block.Hash()] = struct{}{}
}

// GetBlockChainID reports which ChainID holds the side-chain block with
// the given hash, if any.
func (bi *BlockIndices) GetBlockChainID(hash types.Hash) (ChainID, bool) {
	id, ok := bi.blocksToChain[hash]
	return id, ok
}

// RemoveChain removes chain's own blocks from the indices, plus
// transitively: for each block in chain, if it has registered fork
// children, those children's owning chains are also detached and their
// ChainIDs collected into the returned set. The caller drains this set
// (re-calling RemoveChain on each) until it is empty.
func (bi *BlockIndices) RemoveChain(chain *Chain) map[ChainID]struct{} {
	loseChains := make(map[ChainID]struct{})
	for _, b := range chain.Blocks() {
		hash := b.Hash()
		number := b.NumberU64()

		if set, ok := bi.numberToBlock[number]; ok {
			delete(set, hash)
			if len(set) == 0 {
				delete(bi.numberToBlock, number)
			}
		}
		delete(bi.blocksToChain, hash)

		if forkChildren, ok := bi.forkToChild[hash]; ok {
			delete(bi.forkToChild, hash)
			for child := range forkChildren {
				if lostID, ok := bi.blocksToChain[child]; ok {
					delete(bi.blocksToChain, child)
					loseChains[lostID] = struct{}{}
				}
			}
		}
	}
	return loseChains
}

// FinalizeCanonicalBlocks retains in canonicalChain only keys > n,
// discarding [oldFinalized, n]. For every discarded canonical hash, it
// consults forkToChild and collects dependent ChainIDs, using the same
// harvesting rule as RemoveChain.
func (bi *BlockIndices) FinalizeCanonicalBlocks(n uint64) map[ChainID]struct{} {
	loseChains := make(map[ChainID]struct{})
	if !bi.hasCanonical {
		return loseChains
	}

	newMin := bi.canonicalMin
	for number := bi.canonicalMin; number <= n && number <= bi.canonicalMax; number++ {
		hash, ok := bi.canonicalChain[number]
		if !ok {
			continue
		}
		delete(bi.canonicalChain, number)
		newMin = number + 1

		if forkChildren, ok := bi.forkToChild[hash]; ok {
			delete(bi.forkToChild, hash)
			for child := range forkChildren {
				if lostID, ok := bi.blocksToChain[child]; ok {
					delete(bi.blocksToChain, child)
					loseChains[lostID] = struct{}{}
				}
			}
		}
	}
	if newMin > bi.canonicalMax {
		bi.canonicalMin = bi.canonicalMax
	} else {
		bi.canonicalMin = newMin
	}
	return loseChains
}

// detachJoint removes the single (jointHash -> firstBlockHash) fork-child
// entry recorded when a chain was first inserted, used when that chain is
// promoted to canonical in full. It must not touch any other fork-child
// registered under jointHash, nor any entry keyed by one of the promoted
// chain's own (now-canonical) blocks: side chains forking off those blocks
// are still valid, just resolved through canonical history instead of
// blocksToChain (see the joint invariant in Joint's doc comment).
func (bi *BlockIndices) detachJoint(jointHash, firstBlockHash types.Hash) {
	children, ok := bi.forkToChild[jointHash]
	if !ok {
		return
	}
	delete(children, firstBlockHash)
	if len(children) == 0 {
		delete(bi.forkToChild, jointHash)
	}
}

// CanonicalHash returns the canonical hash at block number n, if it is
// within the in-memory window.
func (bi *BlockIndices) CanonicalHash(n uint64) (types.Hash, bool) {
	h, ok := bi.canonicalChain[n]
	return h, ok
}

// CanonicalTip returns the Joint at the highest known canonical number.
func (bi *BlockIndices) CanonicalTip() Joint {
	return Joint{Number: bi.canonicalMax, Hash: bi.canonicalChain[bi.canonicalMax]}
}

// extendCanonical records a new canonical (number, hash) pair at the tip,
// used by commitCanonical when a chain is promoted.
func (bi *BlockIndices) extendCanonical(number uint64, hash types.Hash) {
	bi.canonicalChain[number] = hash
	if !bi.hasCanonical {
		bi.hasCanonical = true
		bi.canonicalMin = number
		bi.canonicalMax = number
		return
	}
	if number > bi.canonicalMax {
		bi.canonicalMax = number
	}
	if number < bi.canonicalMin {
		bi.canonicalMin = number
	}
}

// truncateCanonicalAbove removes canonical entries with number > n, used
// by revertCanonical when unwinding the canonical chain during a reorg.
func (bi *BlockIndices) truncateCanonicalAbove(n uint64) {
	for number := range bi.canonicalChain {
		if number > n {
			delete(bi.canonicalChain, number)
		}
	}
	bi.canonicalMax = n
}
