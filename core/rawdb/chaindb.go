// chaindb.go provides a high-level chain database wrapping the low-level
// rawdb accessors with LRU caches for blocks, headers, and total difficulty.
// It reads the store a BlockchainTree persists into through
// storage.Transaction: canonical blocks are written when MakeCanonical
// commits, pending side-chain blocks when InsertBlock admits them.
// Pending blocks are not read back when a tree is rebuilt.
package rawdb

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/eth2030/eth2030/core/types"
	"github.com/eth2030/eth2030/rlp"
)

// Cache sizes.
const (
	blockCacheSize  = 256
	headerCacheSize = 1024
	tdCacheSize     = 1024
)

// Schema extension for total difficulty.
var tdPrefix = []byte("d") // d + num (8 bytes BE) + hash -> total difficulty RLP

// tdKey = tdPrefix + num + hash
func tdKey(number uint64, hash types.Hash) []byte {
	key := make([]byte, 0, len(tdPrefix)+8+32)
	key = append(key, tdPrefix...)
	key = append(key, encodeBlockNumber(number)...)
	key = append(key, hash[:]...)
	return key
}

// lruCache is a simple fixed-size LRU cache using a doubly-linked list and map.
type lruCache[K comparable, V any] struct {
	mu       sync.Mutex
	capacity int
	items    map[K]*lruNode[K, V]
	head     *lruNode[K, V] // most recent
	tail     *lruNode[K, V] // least recent
}

type lruNode[K comparable, V any] struct {
	key        K
	value      V
	prev, next *lruNode[K, V]
}

func newLRU[K comparable, V any](capacity int) *lruCache[K, V] {
	return &lruCache[K, V]{
		capacity: capacity,
		items:    make(map[K]*lruNode[K, V], capacity),
	}
}

func (c *lruCache[K, V]) get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	node, ok := c.items[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.moveToFront(node)
	return node.value, true
}

func (c *lruCache[K, V]) put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if node, ok := c.items[key]; ok {
		node.value = value
		c.moveToFront(node)
		return
	}
	if len(c.items) >= c.capacity {
		c.evict()
	}
	node := &lruNode[K, V]{key: key, value: value}
	c.items[key] = node
	c.pushFront(node)
}

func (c *lruCache[K, V]) remove(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	node, ok := c.items[key]
	if !ok {
		return
	}
	c.removeNode(node)
	delete(c.items, key)
}

func (c *lruCache[K, V]) pushFront(node *lruNode[K, V]) {
	node.prev = nil
	node.next = c.head
	if c.head != nil {
		c.head.prev = node
	}
	c.head = node
	if c.tail == nil {
		c.tail = node
	}
}

func (c *lruCache[K, V]) removeNode(node *lruNode[K, V]) {
	if node.prev != nil {
		node.prev.next = node.next
	} else {
		c.head = node.next
	}
	if node.next != nil {
		node.next.prev = node.prev
	} else {
		c.tail = node.prev
	}
	node.prev = nil
	node.next = nil
}

func (c *lruCache[K, V]) moveToFront(node *lruNode[K, V]) {
	if c.head == node {
		return
	}
	c.removeNode(node)
	c.pushFront(node)
}

func (c *lruCache[K, V]) evict() {
	if c.tail == nil {
		return
	}
	victim := c.tail
	c.removeNode(victim)
	delete(c.items, victim.key)
}

// ChainDB is a high-level chain database wrapping a low-level Database with
// LRU caches for frequently accessed data. It is safe for concurrent use.
type ChainDB struct {
	db Database

	blockCache  *lruCache[types.Hash, *types.Block]
	headerCache *lruCache[types.Hash, *types.Header]
	tdCache     *lruCache[types.Hash, *big.Int]

	mu sync.RWMutex // not locked by any method; each lruCache has its own lock
}

// NewChainDB creates a new ChainDB wrapping the given low-level database.
func NewChainDB(db Database) *ChainDB {
	return &ChainDB{
		db:          db,
		blockCache:  newLRU[types.Hash, *types.Block](blockCacheSize),
		headerCache: newLRU[types.Hash, *types.Header](headerCacheSize),
		tdCache:     newLRU[types.Hash, *big.Int](tdCacheSize),
	}
}

// DB returns the underlying low-level database.
func (cdb *ChainDB) DB() Database { return cdb.db }

// --- Canonical block operations (keyed by number + hash) ---

// ReadBlock retrieves a canonical block by hash, using the cache when possible.
// Returns nil if the block is not found.
func (cdb *ChainDB) ReadBlock(hash types.Hash) *types.Block {
	if block, ok := cdb.blockCache.get(hash); ok {
		return block
	}
	number, err := ReadHeaderNumber(cdb.db, hash)
	if err != nil {
		return nil
	}
	block := cdb.readBlockFromDB(number, hash)
	if block != nil {
		cdb.blockCache.put(hash, block)
	}
	return block
}

// ReadBlockByNumber retrieves a canonical block by number.
func (cdb *ChainDB) ReadBlockByNumber(number uint64) *types.Block {
	hash, err := ReadCanonicalHash(cdb.db, number)
	if err != nil {
		return nil
	}
	return cdb.ReadBlock(hash)
}

// WriteBlock stores a block's header and body, indexed by number and hash.
func (cdb *ChainDB) WriteBlock(block *types.Block) error {
	header := block.Header()
	headerData, err := header.EncodeRLP()
	if err != nil {
		return fmt.Errorf("encode header: %w", err)
	}
	if err := WriteHeader(cdb.db, block.NumberU64(), block.Hash(), headerData); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	bodyData, err := EncodeBlockBody(block)
	if err != nil {
		return fmt.Errorf("encode body: %w", err)
	}
	if err := WriteBody(cdb.db, block.NumberU64(), block.Hash(), bodyData); err != nil {
		return fmt.Errorf("write body: %w", err)
	}

	cdb.blockCache.put(block.Hash(), block)
	cdb.headerCache.put(block.Hash(), header)
	return nil
}

// HasBlock reports whether a header is stored for the given hash.
func (cdb *ChainDB) HasBlock(hash types.Hash) bool {
	number, err := ReadHeaderNumber(cdb.db, hash)
	if err != nil {
		return false
	}
	return HasHeader(cdb.db, number, hash)
}

// --- Header operations ---

// ReadHeader retrieves a header by hash, using the cache when possible.
func (cdb *ChainDB) ReadHeader(hash types.Hash) *types.Header {
	if header, ok := cdb.headerCache.get(hash); ok {
		return header
	}
	number, err := ReadHeaderNumber(cdb.db, hash)
	if err != nil {
		return nil
	}
	header := cdb.readHeaderFromDB(number, hash)
	if header != nil {
		cdb.headerCache.put(hash, header)
	}
	return header
}

// WriteHeader stores a header keyed by number and hash.
func (cdb *ChainDB) WriteHeader(header *types.Header) error {
	data, err := header.EncodeRLP()
	if err != nil {
		return fmt.Errorf("encode header: %w", err)
	}
	if err := WriteHeader(cdb.db, header.Number.Uint64(), header.Hash(), data); err != nil {
		return err
	}
	cdb.headerCache.put(header.Hash(), header)
	return nil
}

// --- Pending (non-canonical) blocks ---

// ReadPendingBlock retrieves a side-chain block persisted by hash only.
func (cdb *ChainDB) ReadPendingBlock(hash types.Hash) *types.Block {
	data, err := ReadPendingBlock(cdb.db, hash)
	if err != nil {
		return nil
	}
	block, err := types.DecodeBlockRLP(data)
	if err != nil {
		return nil
	}
	return block
}

// WritePendingBlock persists a side-chain block by hash.
func (cdb *ChainDB) WritePendingBlock(block *types.Block) error {
	data, err := block.EncodeRLP()
	if err != nil {
		return fmt.Errorf("encode block: %w", err)
	}
	return WritePendingBlock(cdb.db, block.Hash(), data)
}

// DeletePendingBlock removes a side-chain block entry.
func (cdb *ChainDB) DeletePendingBlock(hash types.Hash) error {
	return DeletePendingBlock(cdb.db, hash)
}

// --- Total difficulty ---

// ReadTd retrieves the total difficulty for a block.
func (cdb *ChainDB) ReadTd(hash types.Hash) *big.Int {
	if td, ok := cdb.tdCache.get(hash); ok {
		return td
	}
	number, err := ReadHeaderNumber(cdb.db, hash)
	if err != nil {
		return nil
	}
	data, err := cdb.db.Get(tdKey(number, hash))
	if err != nil {
		return nil
	}
	td := new(big.Int)
	if err := rlp.DecodeBytes(data, td); err != nil {
		return nil
	}
	cdb.tdCache.put(hash, td)
	return td
}

// WriteTd stores the total difficulty for a block.
func (cdb *ChainDB) WriteTd(hash types.Hash, number uint64, td *big.Int) error {
	data, err := rlp.EncodeToBytes(td)
	if err != nil {
		return fmt.Errorf("encode td: %w", err)
	}
	if err := cdb.db.Put(tdKey(number, hash), data); err != nil {
		return err
	}
	cdb.tdCache.put(hash, td)
	return nil
}

// --- Canonical chain pointers ---

// ReadCanonicalHash retrieves the canonical hash at a block number.
func (cdb *ChainDB) ReadCanonicalHash(number uint64) (types.Hash, error) {
	h, err := ReadCanonicalHash(cdb.db, number)
	return types.Hash(h), err
}

// WriteCanonicalHash stores the canonical hash at a block number.
func (cdb *ChainDB) WriteCanonicalHash(number uint64, hash types.Hash) error {
	return WriteCanonicalHash(cdb.db, number, [32]byte(hash))
}

// ReadHeadBlockHash retrieves the current canonical tip hash.
func (cdb *ChainDB) ReadHeadBlockHash() (types.Hash, error) {
	h, err := ReadHeadBlockHash(cdb.db)
	return types.Hash(h), err
}

// WriteHeadBlockHash stores the current canonical tip hash.
func (cdb *ChainDB) WriteHeadBlockHash(hash types.Hash) error {
	return WriteHeadBlockHash(cdb.db, [32]byte(hash))
}

func (cdb *ChainDB) readBlockFromDB(number uint64, hash types.Hash) *types.Block {
	header := cdb.readHeaderFromDB(number, hash)
	if header == nil {
		return nil
	}
	bodyData, err := ReadBody(cdb.db, number, hash)
	if err != nil {
		return types.NewBlock(header, nil)
	}
	body, err := DecodeBlockBody(bodyData)
	if err != nil {
		return types.NewBlock(header, nil)
	}
	return types.NewBlock(header, body)
}

func (cdb *ChainDB) readHeaderFromDB(number uint64, hash types.Hash) *types.Header {
	data, err := ReadHeader(cdb.db, number, [32]byte(hash))
	if err != nil {
		return nil
	}
	header, err := types.DecodeHeaderRLP(data)
	if err != nil {
		return nil
	}
	return header
}

// EncodeBlockBody RLP-encodes a block's body: [[tx1, tx2, ...], [uncle1, ...], [withdrawal1, ...]].
func EncodeBlockBody(block *types.Block) ([]byte, error) {
	var txsPayload []byte
	for i, tx := range block.Transactions() {
		wrapped, err := rlp.EncodeToBytes(tx)
		if err != nil {
			return nil, fmt.Errorf("encoding tx %d: %w", i, err)
		}
		txsPayload = append(txsPayload, wrapped...)
	}

	var unclesPayload []byte
	for _, uncle := range block.Uncles() {
		enc, err := uncle.EncodeRLP()
		if err != nil {
			return nil, fmt.Errorf("encoding uncle: %w", err)
		}
		unclesPayload = append(unclesPayload, enc...)
	}

	var withdrawalsPayload []byte
	for _, w := range block.Withdrawals() {
		enc := types.EncodeWithdrawal(w)
		wrapped, err := rlp.EncodeToBytes(enc)
		if err != nil {
			return nil, fmt.Errorf("wrapping withdrawal: %w", err)
		}
		withdrawalsPayload = append(withdrawalsPayload, wrapped...)
	}

	var bodyPayload []byte
	bodyPayload = append(bodyPayload, rlp.WrapList(txsPayload)...)
	bodyPayload = append(bodyPayload, rlp.WrapList(unclesPayload)...)
	bodyPayload = append(bodyPayload, rlp.WrapList(withdrawalsPayload)...)

	return rlp.WrapList(bodyPayload), nil
}

// DecodeBlockBody decodes a block body encoded by EncodeBlockBody.
func DecodeBlockBody(data []byte) (*types.Body, error) {
	s := rlp.NewStreamFromBytes(data)
	if _, err := s.List(); err != nil {
		return nil, fmt.Errorf("opening body list: %w", err)
	}

	if _, err := s.List(); err != nil {
		return nil, fmt.Errorf("opening txs list: %w", err)
	}
	var txs [][]byte
	for !s.AtListEnd() {
		txBytes, err := s.Bytes()
		if err != nil {
			return nil, fmt.Errorf("reading tx bytes: %w", err)
		}
		txs = append(txs, append([]byte(nil), txBytes...))
	}
	if err := s.ListEnd(); err != nil {
		return nil, fmt.Errorf("closing txs list: %w", err)
	}

	if _, err := s.List(); err != nil {
		return nil, fmt.Errorf("opening uncles list: %w", err)
	}
	var uncles []*types.Header
	for !s.AtListEnd() {
		uncleBytes, err := s.RawItem()
		if err != nil {
			return nil, fmt.Errorf("reading uncle: %w", err)
		}
		uncle, err := types.DecodeHeaderRLP(uncleBytes)
		if err != nil {
			return nil, fmt.Errorf("decoding uncle: %w", err)
		}
		uncles = append(uncles, uncle)
	}
	if err := s.ListEnd(); err != nil {
		return nil, fmt.Errorf("closing uncles list: %w", err)
	}

	if _, err := s.List(); err != nil {
		return nil, fmt.Errorf("opening withdrawals list: %w", err)
	}
	var withdrawals []*types.Withdrawal
	for !s.AtListEnd() {
		wBytes, err := s.Bytes()
		if err != nil {
			return nil, fmt.Errorf("reading withdrawal bytes: %w", err)
		}
		w, err := types.DecodeWithdrawal(wBytes)
		if err != nil {
			return nil, fmt.Errorf("decoding withdrawal: %w", err)
		}
		withdrawals = append(withdrawals, w)
	}
	if err := s.ListEnd(); err != nil {
		return nil, fmt.Errorf("closing withdrawals list: %w", err)
	}

	if err := s.ListEnd(); err != nil {
		return nil, fmt.Errorf("closing body list: %w", err)
	}

	return &types.Body{
		Transactions: txs,
		Uncles:       uncles,
		Withdrawals:  withdrawals,
	}, nil
}
