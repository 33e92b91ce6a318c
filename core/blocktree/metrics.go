package blocktree

import "github.com/eth2030/eth2030/metrics"

// Metrics tracks observability counters for a BlockchainTree: how many
// side chains are live, how many reorgs have happened and how deep the
// deepest one was, and how many chains finalization has pruned. None of
// this is required by the tree's correctness; it exists purely so an
// operator can see what the tree is doing.
type Metrics struct {
	chainCount      *metrics.Gauge
	reorgCount      *metrics.Counter
	finalizedPruned *metrics.Counter
	maxReorgDepth   uint64
	insertMeter     *metrics.Meter
}

// NewMetrics creates a set of counters registered in the default metrics
// registry, so they show up in a Prometheus scrape alongside every other
// tree's counters without any wiring at the call site.
func NewMetrics() *Metrics {
	return &Metrics{
		chainCount:      metrics.DefaultRegistry.Gauge("blocktree/chains"),
		reorgCount:      metrics.DefaultRegistry.Counter("blocktree/reorgs"),
		finalizedPruned: metrics.DefaultRegistry.Counter("blocktree/finalized_pruned"),
		insertMeter:     metrics.NewMeter(),
	}
}

// InsertRate1 returns the 1-minute moving average of blocks accepted into
// the tree per second.
func (m *Metrics) InsertRate1() float64 { return m.insertMeter.Rate1() }

// ChainCount returns the number of side chains currently live in the tree.
func (m *Metrics) ChainCount() int64 { return m.chainCount.Value() }

// ReorgCount returns the total number of MakeCanonical calls that
// performed a reorg (as opposed to a fast-forward).
func (m *Metrics) ReorgCount() int64 { return m.reorgCount.Value() }

// FinalizedPruned returns the total number of chains removed by
// FinalizeBlock over the tree's lifetime.
func (m *Metrics) FinalizedPruned() int64 { return m.finalizedPruned.Value() }

// MaxReorgDepth returns the deepest reorg (in blocks reverted) seen so far.
func (m *Metrics) MaxReorgDepth() uint64 { return m.maxReorgDepth }
