package blocktree

import "github.com/eth2030/eth2030/core/types"

// ChainID identifies a Chain within a tree. It is assigned monotonically
// by BlockchainTree.insertChain and never reused within a tree's lifetime.
type ChainID uint64

// Joint identifies the block a Chain branches from. The joint block
// itself is never a member of the Chain that points to it — it lives
// either in canonical history or in another Chain.
type Joint struct {
	Number uint64
	Hash   types.Hash
}
