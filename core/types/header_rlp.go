package types

import (
	"math/big"

	"github.com/eth2030/eth2030/rlp"
	"golang.org/x/crypto/sha3"
)

// EncodeRLP returns the RLP encoding of the header in Yellow Paper field order:
// [ParentHash, UncleHash, Coinbase, Root, TxHash, ReceiptHash, Bloom,
//
//	Difficulty, Number, GasLimit, GasUsed, Time, Extra, MixDigest, Nonce,
//	BaseFee, WithdrawalsHash, ParentBeaconRoot]
//
// Optional fields are appended only if non-nil (and all preceding optionals are present).
// The fixed-size and uint64 fields go through rlp's zero-reflection Append
// helpers directly; only the three big.Int fields (Difficulty, Number,
// BaseFee) fall back to the general
// reflective encoder, since a header is hashed on every insertion and
// reflection cost there is not free.
func (h *Header) EncodeRLP() ([]byte, error) {
	payload := make([]byte, 0, rlp.EstimateListSize(256))

	payload = rlp.AppendBytes(payload, h.ParentHash[:])
	payload = rlp.AppendBytes(payload, h.UncleHash[:])
	payload = rlp.AppendBytes(payload, h.Coinbase[:])
	payload = rlp.AppendBytes(payload, h.Root[:])
	payload = rlp.AppendBytes(payload, h.TxHash[:])
	payload = rlp.AppendBytes(payload, h.ReceiptHash[:])
	payload = rlp.AppendBytes(payload, h.Bloom[:])

	diffEnc, err := rlp.EncodeToBytes(bigIntOrZero(h.Difficulty))
	if err != nil {
		return nil, err
	}
	payload = append(payload, diffEnc...)
	numEnc, err := rlp.EncodeToBytes(bigIntOrZero(h.Number))
	if err != nil {
		return nil, err
	}
	payload = append(payload, numEnc...)

	payload = rlp.AppendUint64(payload, h.GasLimit)
	payload = rlp.AppendUint64(payload, h.GasUsed)
	payload = rlp.AppendUint64(payload, h.Time)
	payload = rlp.AppendBytes(payload, h.Extra)
	payload = rlp.AppendBytes(payload, h.MixDigest[:])
	payload = rlp.AppendBytes(payload, h.Nonce[:])

	// EIP-1559: BaseFee
	if h.BaseFee != nil {
		enc, err := rlp.EncodeToBytes(h.BaseFee)
		if err != nil {
			return nil, err
		}
		payload = append(payload, enc...)
	}
	// EIP-4895: WithdrawalsHash
	if h.BaseFee != nil && h.WithdrawalsHash != nil {
		payload = rlp.AppendBytes(payload, h.WithdrawalsHash[:])
	}
	// EIP-4788: ParentBeaconBlockRoot
	if h.BaseFee != nil && h.WithdrawalsHash != nil && h.ParentBeaconRoot != nil {
		payload = rlp.AppendBytes(payload, h.ParentBeaconRoot[:])
	}

	out := rlp.AppendListHeader(make([]byte, 0, len(payload)+9), len(payload))
	out = append(out, payload...)
	return out, nil
}

// bigIntOrZero returns v if non-nil, otherwise a zero big.Int.
func bigIntOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

// DecodeHeaderRLP decodes an RLP-encoded header.
func DecodeHeaderRLP(data []byte) (*Header, error) {
	s := rlp.NewStreamFromBytes(data)
	_, err := s.List()
	if err != nil {
		return nil, err
	}

	h := &Header{}

	// 15 base fields
	if err := decodeHash(s, &h.ParentHash); err != nil {
		return nil, err
	}
	if err := decodeHash(s, &h.UncleHash); err != nil {
		return nil, err
	}
	if err := decodeAddress(s, &h.Coinbase); err != nil {
		return nil, err
	}
	if err := decodeHash(s, &h.Root); err != nil {
		return nil, err
	}
	if err := decodeHash(s, &h.TxHash); err != nil {
		return nil, err
	}
	if err := decodeHash(s, &h.ReceiptHash); err != nil {
		return nil, err
	}
	if err := decodeBloom(s, &h.Bloom); err != nil {
		return nil, err
	}

	h.Difficulty, err = s.BigInt()
	if err != nil {
		return nil, err
	}
	h.Number, err = s.BigInt()
	if err != nil {
		return nil, err
	}
	h.GasLimit, err = s.Uint64()
	if err != nil {
		return nil, err
	}
	h.GasUsed, err = s.Uint64()
	if err != nil {
		return nil, err
	}
	h.Time, err = s.Uint64()
	if err != nil {
		return nil, err
	}
	h.Extra, err = s.Bytes()
	if err != nil {
		return nil, err
	}
	if err := decodeHash(s, &h.MixDigest); err != nil {
		return nil, err
	}
	if err := decodeBlockNonce(s, &h.Nonce); err != nil {
		return nil, err
	}

	// Optional fields: try reading each in sequence. If we hit ListEnd, stop.
	if !s.AtListEnd() {
		h.BaseFee, err = s.BigInt()
		if err != nil {
			return nil, err
		}
	}
	if !s.AtListEnd() {
		var wh Hash
		if err := decodeHash(s, &wh); err != nil {
			return nil, err
		}
		h.WithdrawalsHash = &wh
	}
	if !s.AtListEnd() {
		var pbr Hash
		if err := decodeHash(s, &pbr); err != nil {
			return nil, err
		}
		h.ParentBeaconRoot = &pbr
	}

	if err := s.ListEnd(); err != nil {
		return nil, err
	}
	return h, nil
}

// decodeHash reads an RLP string into a Hash.
func decodeHash(s *rlp.Stream, h *Hash) error {
	b, err := s.Bytes()
	if err != nil {
		return err
	}
	copy(h[HashLength-len(b):], b)
	return nil
}

// decodeAddress reads an RLP string into an Address.
func decodeAddress(s *rlp.Stream, a *Address) error {
	b, err := s.Bytes()
	if err != nil {
		return err
	}
	copy(a[AddressLength-len(b):], b)
	return nil
}

// decodeBloom reads an RLP string into a Bloom.
func decodeBloom(s *rlp.Stream, bl *Bloom) error {
	b, err := s.Bytes()
	if err != nil {
		return err
	}
	bl.SetBytes(b)
	return nil
}

// decodeBlockNonce reads an RLP string into a BlockNonce.
func decodeBlockNonce(s *rlp.Stream, n *BlockNonce) error {
	b, err := s.Bytes()
	if err != nil {
		return err
	}
	copy(n[NonceLength-len(b):], b)
	return nil
}

// computeHeaderHash computes the Keccak-256 hash of the RLP-encoded header.
func computeHeaderHash(h *Header) Hash {
	enc, err := h.EncodeRLP()
	if err != nil {
		return Hash{}
	}
	d := sha3.NewLegacyKeccak256()
	d.Write(enc)
	var hash Hash
	copy(hash[:], d.Sum(nil))
	return hash
}
