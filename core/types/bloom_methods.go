package types

// BloomByteLength is the number of bytes in a bloom filter (256).
const BloomByteLength = BloomLength

// BytesToBloom converts a byte slice to a Bloom, left-padding or
// left-truncating as necessary to fill exactly 256 bytes.
func BytesToBloom(b []byte) Bloom {
	var bloom Bloom
	bloom.SetBytes(b)
	return bloom
}

// Bytes returns a copy of the bloom filter as a byte slice.
func (b Bloom) Bytes() []byte {
	out := make([]byte, BloomByteLength)
	copy(out, b[:])
	return out
}

// SetBytes sets the bloom filter from a byte slice, left-padding if shorter
// than 256 bytes or truncating from the left if longer. Used by header RLP
// decoding, which stores the bloom as an opaque field of the block header
// without interpreting its bits: log/receipt bloom construction belongs to
// the execution layer, out of scope here.
func (b *Bloom) SetBytes(data []byte) {
	*b = Bloom{}
	if len(data) > BloomByteLength {
		data = data[len(data)-BloomByteLength:]
	}
	copy(b[BloomByteLength-len(data):], data)
}
