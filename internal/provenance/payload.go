package provenance

import (
	"fmt"
	"math/rand"

	"github.com/yyyoichi/bitstream-go"
	"github.com/yyyoichi/golay"
)

func encodedLen(bits int) int {
	return golay.EncodedBits(bits)
}

// encodePayload Golay-encodes payload and shuffles the encoded bits so that
// neighbouring blocks carry unrelated codewords.
func encodePayload(payload []byte, seed int64) []bool {
	w := bitstream.NewBitWriter[uint64](0, 0)
	for _, b := range payload {
		for i := 7; i >= 0; i-- {
			w.WriteBool(b>>i&1 == 1)
		}
	}

	var encoded []uint64
	enc := golay.NewEncoder(&encoded)
	_ = enc.Encode(w.Data(), len(payload)*8)
	n := enc.Bits()

	index := permutation(n, seed)
	r := bitstream.NewBitReader(encoded, 0, 0)
	bits := make([]bool, n)
	for i := range n {
		bits[i], _ = r.ReadBitAt(index[i])
	}
	return bits
}

func decodePayload(bits []bool, size int, seed int64) ([]byte, error) {
	index := permutation(len(bits), seed)
	w := bitstream.NewBitWriter[uint64](0, 0)
	for i := range bits {
		w.WriteBitAt(index[i], bits[i])
	}

	var decoded []uint64
	dec := golay.NewDecoder(w.Data(), w.Bits())
	if err := dec.Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}

	r := bitstream.NewBitReader(decoded, 0, 0)
	out := make([]byte, size)
	for i := range size * 8 {
		bit, _ := r.ReadBitAt(i)
		if bit {
			out[i/8] |= 1 << (7 - i%8)
		}
	}
	return out, nil
}

func permutation(n int, seed int64) []int {
	index := make([]int, n)
	for i := range index {
		index[i] = i
	}
	rd := rand.New(rand.NewSource(seed))
	rd.Shuffle(n, func(i, j int) {
		index[i], index[j] = index[j], index[i]
	})
	return index
}
