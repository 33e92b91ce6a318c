package blocktree_test

import (
	"math/big"
	"testing"

	"github.com/eth2030/eth2030/consensus"
	"github.com/eth2030/eth2030/core/blocktree"
	"github.com/eth2030/eth2030/core/types"
	"github.com/eth2030/eth2030/executor"
	"github.com/eth2030/eth2030/storage"
)

// buildHeader constructs a header that passes consensus.HeaderValidator:
// monotonic number and timestamp, parent-matched gas limit, post-merge
// zero difficulty/nonce/uncle-hash, and no base fee (so the EIP-1559
// check is skipped). extra distinguishes otherwise-identical siblings.
func buildHeader(number uint64, parentHash types.Hash, parentTime uint64, extra byte) *types.Header {
	h := &types.Header{
		ParentHash: parentHash,
		Number:     big.NewInt(int64(number)),
		GasLimit:   30_000_000,
		Time:       parentTime + 12,
	}
	if extra != 0 {
		h.Extra = []byte{extra}
	}
	return h
}

func genesis() *types.Block {
	return types.NewBlock(&types.Header{
		Number:   big.NewInt(0),
		GasLimit: 30_000_000,
	}, nil)
}

func child(parent *types.Block, extra byte) *types.Block {
	h := buildHeader(parent.NumberU64()+1, parent.Hash(), parent.Header().Time, extra)
	return types.NewBlock(h, nil)
}

func newTestTree(t *testing.T, window []*types.Block) (*blocktree.BlockchainTree, *storage.Store) {
	t.Helper()
	store := storage.NewMemoryStore()
	tree := blocktree.New(window, 0, blocktree.DefaultConfig(), store, consensus.NewHeaderValidator(), executor.NewNoopExecutor())
	return tree, store
}

// canonicalSeed builds the 6-block canonical window C0..C5 used across the
// scenarios in this file.
func canonicalSeed() []*types.Block {
	blocks := make([]*types.Block, 6)
	blocks[0] = genesis()
	for i := 1; i < 6; i++ {
		blocks[i] = child(blocks[i-1], 0)
	}
	return blocks
}

// Scenario 1: a block extending the canonical tip is admitted as a
// singleton pending chain; the canonical window is untouched.
func TestScenarioPendingAppend(t *testing.T) {
	seed := canonicalSeed()
	tip := seed[len(seed)-1]
	tree, _ := newTestTree(t, seed)

	b6 := child(tip, 0)
	if err := tree.InsertBlock(b6); err != nil {
		t.Fatalf("InsertBlock failed: %v", err)
	}
	if tree.Metrics().ChainCount() != 1 {
		t.Fatalf("got chain count %d, want 1", tree.Metrics().ChainCount())
	}
	if _, ok := tree.Indices().CanonicalHash(6); ok {
		t.Fatal("pending block must not appear in canonical history")
	}
}

// Scenario 2: canonicalizing a block whose joint is the current tip is a
// pure fast-forward — no canonical history is reverted.
func TestScenarioFastForwardCanonicalize(t *testing.T) {
	seed := canonicalSeed()
	tip := seed[len(seed)-1]
	tree, store := newTestTree(t, seed)

	b6 := child(tip, 0)
	if err := tree.InsertBlock(b6); err != nil {
		t.Fatalf("InsertBlock failed: %v", err)
	}
	if err := tree.MakeCanonical(b6.Hash()); err != nil {
		t.Fatalf("MakeCanonical failed: %v", err)
	}

	hash, ok := tree.Indices().CanonicalHash(6)
	if !ok || hash != b6.Hash() {
		t.Fatalf("got (%s, %v), want (%s, true)", hash, ok, b6.Hash())
	}
	if got := tree.Metrics().ReorgCount(); got != 0 {
		t.Fatalf("fast-forward must not count as a reorg, got %d", got)
	}
	if got := store.ChainDB().ReadBlockByNumber(6); got == nil {
		t.Fatal("expected block 6 to be durably persisted as canonical")
	}
}

// Scenario 3: canonicalizing a competing branch that joins below the
// current tip reverts the superseded canonical block and re-parks it as a
// side chain.
func TestScenarioReorg(t *testing.T) {
	seed := canonicalSeed()
	tip := seed[len(seed)-1]
	tree, _ := newTestTree(t, seed)

	b6 := child(tip, 0)
	if err := tree.InsertBlock(b6); err != nil {
		t.Fatalf("InsertBlock(b6) failed: %v", err)
	}
	if err := tree.MakeCanonical(b6.Hash()); err != nil {
		t.Fatalf("MakeCanonical(b6) failed: %v", err)
	}

	altB6 := child(tip, 0xaa) // competing block at height 6, different hash
	altB7 := child(altB6, 0)
	if err := tree.InsertBlock(altB6); err != nil {
		t.Fatalf("InsertBlock(altB6) failed: %v", err)
	}
	if err := tree.InsertBlock(altB7); err != nil {
		t.Fatalf("InsertBlock(altB7) failed: %v", err)
	}

	if err := tree.MakeCanonical(altB7.Hash()); err != nil {
		t.Fatalf("MakeCanonical(altB7) failed: %v", err)
	}

	if got := tree.Metrics().ReorgCount(); got != 1 {
		t.Fatalf("got reorg count %d, want 1", got)
	}
	if hash, ok := tree.Indices().CanonicalHash(6); !ok || hash != altB6.Hash() {
		t.Fatalf("expected altB6 canonical at 6, got (%s, %v)", hash, ok)
	}
	if hash, ok := tree.Indices().CanonicalHash(7); !ok || hash != altB7.Hash() {
		t.Fatalf("expected altB7 canonical at 7, got (%s, %v)", hash, ok)
	}
	if _, ok := tree.Indices().GetBlockChainID(b6.Hash()); !ok {
		t.Fatal("expected the superseded block to be re-parked as a side chain")
	}
}

// Scenario 4: finalizing a block transitively prunes every side chain
// whose ancestry can no longer reach canonical history.
func TestScenarioCascadingFinalize(t *testing.T) {
	seed := canonicalSeed()
	tip := seed[len(seed)-1]
	tree, _ := newTestTree(t, seed)

	b6 := child(tip, 0)
	if err := tree.InsertBlock(b6); err != nil {
		t.Fatalf("InsertBlock(b6) failed: %v", err)
	}
	if err := tree.MakeCanonical(b6.Hash()); err != nil {
		t.Fatalf("MakeCanonical(b6) failed: %v", err)
	}

	// A side chain forking off the now-finalized canonical history.
	altB6 := child(tip, 0xaa)
	if err := tree.InsertBlock(altB6); err != nil {
		t.Fatalf("InsertBlock(altB6) failed: %v", err)
	}
	if tree.Metrics().ChainCount() != 1 {
		t.Fatalf("got chain count %d, want 1 before finalize", tree.Metrics().ChainCount())
	}

	tree.FinalizeBlock(6)

	if tree.Metrics().ChainCount() != 0 {
		t.Fatalf("got chain count %d, want 0 after finalizing past the fork point", tree.Metrics().ChainCount())
	}
	if _, ok := tree.Indices().GetBlockChainID(altB6.Hash()); ok {
		t.Fatal("expected the orphaned side chain to be pruned")
	}
}

// Scenario 5: a block forking off an interior block of an existing side
// chain creates a second, independent side chain; the original chain is
// left holding its own suffix.
func TestScenarioForkInsideSideChain(t *testing.T) {
	seed := canonicalSeed()
	tip := seed[len(seed)-1]
	tree, _ := newTestTree(t, seed)

	b6 := child(tip, 0)
	b7 := child(b6, 0)
	if err := tree.InsertBlock(b6); err != nil {
		t.Fatalf("InsertBlock(b6) failed: %v", err)
	}
	if err := tree.InsertBlock(b7); err != nil {
		t.Fatalf("InsertBlock(b7) failed: %v", err)
	}

	forkB7 := child(b6, 0xbb) // forks off b6, same height as b7
	if err := tree.InsertBlock(forkB7); err != nil {
		t.Fatalf("InsertBlock(forkB7) failed: %v", err)
	}

	if tree.Metrics().ChainCount() != 2 {
		t.Fatalf("got chain count %d, want 2", tree.Metrics().ChainCount())
	}
	origID, ok := tree.Indices().GetBlockChainID(b7.Hash())
	if !ok {
		t.Fatal("original suffix should still be tracked")
	}
	forkID, ok := tree.Indices().GetBlockChainID(forkB7.Hash())
	if !ok {
		t.Fatal("forked suffix should be tracked")
	}
	if origID == forkID {
		t.Fatal("the fork must live in its own chain id")
	}
}

// Scenario 6: inserting an already-known block is an idempotent no-op.
func TestScenarioDuplicateInsert(t *testing.T) {
	seed := canonicalSeed()
	tip := seed[len(seed)-1]
	tree, _ := newTestTree(t, seed)

	b6 := child(tip, 0)
	if err := tree.InsertBlock(b6); err != nil {
		t.Fatalf("first InsertBlock failed: %v", err)
	}
	if tree.Metrics().ChainCount() != 1 {
		t.Fatalf("got chain count %d, want 1", tree.Metrics().ChainCount())
	}
	if err := tree.InsertBlock(b6); err != nil {
		t.Fatalf("duplicate InsertBlock should be a no-op, got error: %v", err)
	}
	if tree.Metrics().ChainCount() != 1 {
		t.Fatalf("duplicate insert must not create a second chain, got count %d", tree.Metrics().ChainCount())
	}
}

func TestInsertBlockRejectsFinalized(t *testing.T) {
	seed := canonicalSeed()
	tree, _ := newTestTree(t, seed)

	// Number 0 is at the finalized boundary (finalizedBlock == 0), so it
	// must be rejected outright.
	stale := types.NewBlock(&types.Header{
		ParentHash: types.Hash{},
		Number:     big.NewInt(0),
		GasLimit:   30_000_000,
	}, nil)

	err := tree.InsertBlock(stale)
	if _, ok := err.(*blocktree.PendingBlockIsFinalizedError); !ok {
		t.Fatalf("got %v (%T), want *PendingBlockIsFinalizedError", err, err)
	}
}

func TestInsertBlockRejectsFarFuture(t *testing.T) {
	seed := canonicalSeed()
	tip := seed[len(seed)-1]
	tree, _ := newTestTree(t, seed)

	far := tip
	for i := uint64(0); i < blocktree.DefaultConfig().MaxChainLength+1; i++ {
		far = child(far, 0)
	}

	err := tree.InsertBlock(far)
	if _, ok := err.(*blocktree.PendingBlockIsInFutureError); !ok {
		t.Fatalf("got %v (%T), want *PendingBlockIsInFutureError", err, err)
	}
}

func TestMakeCanonicalUnknownBlock(t *testing.T) {
	seed := canonicalSeed()
	tree, _ := newTestTree(t, seed)

	if err := tree.MakeCanonical(types.Hash{0xde, 0xad}); err != blocktree.ErrUnknownBlock {
		t.Fatalf("got %v, want ErrUnknownBlock", err)
	}
}
