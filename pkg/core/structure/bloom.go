package structure

import (
	"encoding/binary"
	"math"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// BloomFilter answers "definitely absent" for coordinate pairs.
type BloomFilter struct {
	bitset []uint64
	k      uint
	m      uint
	count  uint
	lock   sync.RWMutex
}

func NewBloomFilter(n uint, p float64) *BloomFilter {
	if n == 0 {
		n = 1
	}
	if p <= 0 || p >= 1 {
		p = 0.01
	}

	// 理论最佳公式
	// m = - (n * ln(p)) / (ln(2)^2)
	// k = (m / n) * ln(2)
	m := uint(math.Ceil(-float64(n) * math.Log(p) / (math.Ln2 * math.Ln2)))
	k := uint(math.Ceil((float64(m) / float64(n)) * math.Ln2))

	return &BloomFilter{
		bitset: make([]uint64, (m+63)/64),
		k:      k,
		m:      m,
	}
}

func positions(x, y float64) (uint32, uint32) {
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[:8], math.Float64bits(x))
	binary.LittleEndian.PutUint64(buf[8:], math.Float64bits(y))
	h := xxhash.Sum64(buf[:])
	return uint32(h), uint32(h>>32) | 1
}

func (bf *BloomFilter) Add(x, y float64) {
	bf.lock.Lock()
	defer bf.lock.Unlock()

	h1, h2 := positions(x, y)
	for i := uint(0); i < bf.k; i++ {
		pos := uint(h1+uint32(i)*h2) % bf.m
		bf.bitset[pos/64] |= 1 << (pos % 64)
	}
	bf.count++
}

func (bf *BloomFilter) Contains(x, y float64) bool {
	bf.lock.RLock()
	defer bf.lock.RUnlock()

	h1, h2 := positions(x, y)
	for i := uint(0); i < bf.k; i++ {
		pos := uint(h1+uint32(i)*h2) % bf.m
		if bf.bitset[pos/64]&(1<<(pos%64)) == 0 {
			return false
		}
	}
	return true
}

// Reset clears every bit. Removals cannot be undone individually, so the
// store rebuilds the filter instead.
func (bf *BloomFilter) Reset() {
	bf.lock.Lock()
	defer bf.lock.Unlock()
	clear(bf.bitset)
	bf.count = 0
}

func (bf *BloomFilter) Stats() map[string]interface{} {
	bf.lock.RLock()
	defer bf.lock.RUnlock()
	return map[string]interface{}{
		"bloom_bits_size": bf.m,
		"bloom_hashes":    bf.k,
		"bloom_count":     bf.count,
	}
}
