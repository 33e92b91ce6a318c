package blocktree

import "github.com/eth2030/eth2030/core/types"

// State is an opaque post-execution state handle produced by an Executor.
// The tree stores and forwards State values as a Chain's pending state but
// never inspects their contents. It is an alias for any so that an
// Executor implementation living in another package can satisfy this
// interface's method set without importing blocktree for the type itself.
type State = any

// ChangeSets is an opaque record of what a block changed relative to its
// parent state. Like State, the tree only ever carries it around.
type ChangeSets = any

// ConsensusValidator checks header-chain consensus rules between a child
// block and its direct parent: parent linkage, monotonic numbering and
// timestamps, gas-limit bounds. It knows nothing about transaction
// execution or state roots.
type ConsensusValidator interface {
	ValidateHeader(child, parent *types.Header) error
}

// Executor applies a block's transactions against its parent's state and
// returns the resulting state and changeset. The tree treats both as
// opaque values it carries alongside a Chain.
type Executor interface {
	Execute(block *types.Block, parentState State) (postState State, changesets ChangeSets, err error)
}

// Database opens durable transactions the tree uses to persist pending
// blocks and to commit or revert canonical history.
type Database interface {
	TxMut() (Tx, error)
}

// Tx is a single durable transaction against the persistent store. The
// tree commits or rolls back every Tx it opens before returning.
// InsertBlock and a fast-forward MakeCanonical use one Tx; a reorging
// MakeCanonical uses two, one for the revert and one for the new canonical
// blocks, so the revert stays committed if the second one fails.
type Tx interface {
	PutPendingBlock(hash types.Hash, block *types.Block) error
	DeletePendingBlock(hash types.Hash) error
	WriteCanonical(number uint64, hash types.Hash, block *types.Block) error
	DeleteCanonical(number uint64) error
	Commit() error
	Rollback() error
}
