// Command blocktreectl drives a BlockchainTree backed by a Pebble store on
// disk: seed it with a genesis block, feed it candidate blocks, and promote
// or finalize canonical history, all from the command line.
package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/eth2030/eth2030/consensus"
	"github.com/eth2030/eth2030/core/blocktree"
	"github.com/eth2030/eth2030/core/types"
	"github.com/eth2030/eth2030/executor"
	"github.com/eth2030/eth2030/log"
	"github.com/eth2030/eth2030/metrics"
	"github.com/eth2030/eth2030/storage"
	"github.com/urfave/cli/v2"
)

var logger = log.Default().Module("blocktreectl")

var logFormatFlag = &cli.StringFlag{
	Name:  "log-format",
	Usage: "console log rendering: json (default), text, or color",
	Value: "json",
}

// applyLogFormat switches the default logger's rendering ahead of every
// command's Action, based on --log-format. json keeps slog's own encoder;
// text and color route through the formatter package instead.
func applyLogFormat(c *cli.Context) error {
	var f log.LogFormatter
	switch c.String(logFormatFlag.Name) {
	case "json":
		return nil // slog.NewJSONHandler default, nothing to do
	case "text":
		f = &log.TextFormatter{}
	case "color":
		f = &log.ColorFormatter{}
	default:
		return fmt.Errorf("unknown --log-format %q (want json, text, or color)", c.String(logFormatFlag.Name))
	}
	l := log.NewWithFormatter(slog.LevelInfo, os.Stderr, f)
	log.SetDefault(l)
	logger = l.Module("blocktreectl")
	return nil
}

var dataDirFlag = &cli.StringFlag{
	Name:     "datadir",
	Usage:    "path to the Pebble database directory",
	Required: true,
}

var windowFlag = &cli.UintFlag{
	Name:  "window",
	Usage: "number of trailing canonical blocks to load into the tree",
	Value: 256,
}

var metricsAddrFlag = &cli.StringFlag{
	Name:  "metrics-addr",
	Usage: "if set, serve Prometheus metrics on this address (e.g. :6060) while the command runs",
}

func main() {
	app := &cli.App{
		Name:   "blocktreectl",
		Usage:  "inspect and drive a blockchain tree's pending side chains and canonical history",
		Flags:  []cli.Flag{logFormatFlag},
		Before: applyLogFormat,
		Commands: []*cli.Command{
			initCommand,
			statusCommand,
			insertCommand,
			canonicalizeCommand,
			finalizeCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Error("command failed", "err", err)
		os.Exit(1)
	}
}

var initCommand = &cli.Command{
	Name:      "init",
	Usage:     "seed a fresh database with a genesis block",
	ArgsUsage: "<genesis-rlp-file>",
	Flags:     []cli.Flag{dataDirFlag},
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return cli.Exit("expected exactly one argument: path to a genesis block RLP file", 1)
		}
		block, err := readBlockFile(c.Args().First())
		if err != nil {
			return err
		}
		if block.NumberU64() != 0 {
			return fmt.Errorf("genesis block must be number 0, got %d", block.NumberU64())
		}

		store, err := storage.NewPebbleStore(c.String(dataDirFlag.Name))
		if err != nil {
			return fmt.Errorf("opening store: %w", err)
		}
		defer store.Close()

		if err := store.ChainDB().WriteBlock(block); err != nil {
			return fmt.Errorf("writing genesis block: %w", err)
		}
		if err := store.ChainDB().WriteCanonicalHash(0, block.Hash()); err != nil {
			return fmt.Errorf("writing genesis canonical hash: %w", err)
		}
		if err := store.ChainDB().WriteHeadBlockHash(block.Hash()); err != nil {
			return fmt.Errorf("writing genesis head: %w", err)
		}

		logger.Info("initialized genesis", "hash", block.Hash(), "number", block.NumberU64())
		return nil
	},
}

var statusCommand = &cli.Command{
	Name:  "status",
	Usage: "print the current canonical tip",
	Flags: []cli.Flag{dataDirFlag, windowFlag},
	Action: func(c *cli.Context) error {
		tree, store, err := openTree(c)
		if err != nil {
			return err
		}
		defer store.Close()

		tip := tree.Indices().CanonicalTip()
		treeMetrics := tree.Metrics()
		fmt.Printf("canonical tip:  number=%d hash=%s\n", tip.Number, tip.Hash)
		fmt.Printf("live chains:    %d\n", treeMetrics.ChainCount())
		fmt.Printf("reorgs:         %d (max depth %d)\n", treeMetrics.ReorgCount(), treeMetrics.MaxReorgDepth())
		fmt.Printf("finalized pruned chains: %d\n", treeMetrics.FinalizedPruned())
		fmt.Printf("insert rate (1m):        %.3f blocks/s\n", treeMetrics.InsertRate1())
		return nil
	},
}

var insertCommand = &cli.Command{
	Name:      "insert",
	Usage:     "insert a candidate block into the tree",
	ArgsUsage: "<block-rlp-file>",
	Flags:     []cli.Flag{dataDirFlag, windowFlag, metricsAddrFlag},
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return cli.Exit("expected exactly one argument: path to a block RLP file", 1)
		}
		if addr := c.String(metricsAddrFlag.Name); addr != "" {
			serveMetrics(addr)
		}
		block, err := readBlockFile(c.Args().First())
		if err != nil {
			return err
		}

		tree, store, err := openTree(c)
		if err != nil {
			return err
		}
		defer store.Close()

		if err := tree.InsertBlock(block); err != nil {
			return fmt.Errorf("insert: %w", err)
		}
		logger.Info("inserted block", "hash", block.Hash(), "number", block.NumberU64())
		return nil
	},
}

var canonicalizeCommand = &cli.Command{
	Name:      "canonicalize",
	Usage:     "promote a known block to the head of canonical history",
	ArgsUsage: "<block-hash>",
	Flags:     []cli.Flag{dataDirFlag, windowFlag},
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return cli.Exit("expected exactly one argument: the block hash", 1)
		}
		hash := types.HexToHash(c.Args().First())

		tree, store, err := openTree(c)
		if err != nil {
			return err
		}
		defer store.Close()

		if err := tree.MakeCanonical(hash); err != nil {
			return fmt.Errorf("make canonical: %w", err)
		}
		logger.Info("made canonical", "hash", hash)
		return nil
	},
}

var finalizeCommand = &cli.Command{
	Name:      "finalize",
	Usage:     "advance the finalized boundary, pruning unreachable side chains",
	ArgsUsage: "<number>",
	Flags:     []cli.Flag{dataDirFlag, windowFlag},
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return cli.Exit("expected exactly one argument: the block number to finalize up to", 1)
		}
		var n uint64
		if _, err := fmt.Sscanf(c.Args().First(), "%d", &n); err != nil {
			return fmt.Errorf("parsing block number: %w", err)
		}

		tree, store, err := openTree(c)
		if err != nil {
			return err
		}
		defer store.Close()

		tree.FinalizeBlock(n)
		logger.Info("finalized", "number", n)
		return nil
	},
}

// serveMetrics starts a background HTTP server exposing every counter and
// gauge registered in metrics.DefaultRegistry (which includes the tree's own
// chain-count, reorg, and finalize-pruned metrics) in Prometheus text format.
// The tree's insert-rate meter is not in the registry and is not served.
// It does not block; the server runs for the lifetime of the process.
func serveMetrics(addr string) {
	exporter := metrics.NewPrometheusExporter(metrics.DefaultRegistry, metrics.DefaultPrometheusConfig())
	srv := &http.Server{Addr: addr, Handler: exporter.Handler()}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server stopped", "err", err)
		}
	}()
	logger.Info("serving metrics", "addr", addr)
}

// readBlockFile decodes a single RLP-encoded block from a file on disk.
func readBlockFile(path string) (*types.Block, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	block, err := types.DecodeBlockRLP(data)
	if err != nil {
		return nil, fmt.Errorf("decoding block from %s: %w", path, err)
	}
	return block, nil
}

// openTree opens the Pebble store at the configured data directory and
// rebuilds a BlockchainTree from its persisted canonical history: the head
// block hash plus the trailing --window blocks below it.
func openTree(c *cli.Context) (*blocktree.BlockchainTree, *storage.Store, error) {
	store, err := storage.NewPebbleStore(c.String(dataDirFlag.Name))
	if err != nil {
		return nil, nil, fmt.Errorf("opening store: %w", err)
	}

	headHash, err := store.ChainDB().ReadHeadBlockHash()
	if err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("reading head block hash (did you run init?): %w", err)
	}
	head := store.ChainDB().ReadBlock(headHash)
	if head == nil {
		store.Close()
		return nil, nil, fmt.Errorf("head block %s not found in store", headHash)
	}

	window := uint64(c.Uint(windowFlag.Name))
	start := uint64(0)
	if head.NumberU64() > window {
		start = head.NumberU64() - window
	}

	canonicalWindow := make([]*types.Block, 0, head.NumberU64()-start+1)
	for n := start; n <= head.NumberU64(); n++ {
		block := store.ChainDB().ReadBlockByNumber(n)
		if block == nil {
			store.Close()
			return nil, nil, fmt.Errorf("canonical block %d missing from store", n)
		}
		canonicalWindow = append(canonicalWindow, block)
	}

	tree := blocktree.New(canonicalWindow, start, blocktree.DefaultConfig(), store, consensus.NewHeaderValidator(), executor.NewNoopExecutor())
	return tree, store, nil
}
