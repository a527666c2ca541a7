package hostmem

import (
	"fmt"
	"math/bits"
	"sync"
	"sync/atomic"
)

// minClass is the smallest bucket capacity. Smaller requests share it.
const minClass = 64

// Pool is a thread-safe Allocator that recycles backing arrays.
//
// Pool groups backing arrays by power-of-two capacity, so buffers of
// similar size are reused across readbacks of the same resource. This keeps
// per-frame readbacks from churning the garbage collector.
//
// Thread safety: All methods are safe for concurrent use.
type Pool struct {
	mu      sync.Mutex
	buckets map[int][][]byte
	maxSize int // max arrays kept per bucket

	nextID atomic.Uint64
	allocs atomic.Int64
	frees  atomic.Int64
	bytes  atomic.Int64
}

// Stats is a point-in-time view of a Pool.
type Stats struct {
	// Allocs is the number of blocks handed out.
	Allocs int64
	// Frees is the number of blocks returned.
	Frees int64
	// Live is Allocs - Frees.
	Live int64
	// LiveBytes is the requested size of all live blocks.
	LiveBytes int64
	// Retained is the number of backing arrays kept for reuse.
	Retained int
}

// NewPool creates a pool keeping at most maxPerBucket arrays per size class.
// A maxPerBucket of 0 means unlimited (use with caution).
func NewPool(maxPerBucket int) *Pool {
	return &Pool{
		buckets: make(map[int][][]byte),
		maxSize: maxPerBucket,
	}
}

// Alloc returns a zeroed block of exactly size bytes. Negative sizes are
// treated as zero; sizes above MaxSize return ErrTooLarge.
func (p *Pool) Alloc(size int) (*Block, error) {
	if size < 0 {
		size = 0
	}
	if size > MaxSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, size)
	}
	class := sizeClass(size)

	var buf []byte
	p.mu.Lock()
	if bucket := p.buckets[class]; len(bucket) > 0 {
		buf = bucket[len(bucket)-1]
		p.buckets[class] = bucket[:len(bucket)-1]
	}
	p.mu.Unlock()

	if buf == nil {
		buf = make([]byte, class)
	}

	p.allocs.Add(1)
	p.bytes.Add(int64(size))
	return &Block{
		id:   p.nextID.Add(1),
		data: buf[:size],
	}, nil
}

// Free returns the block's backing array to its bucket. The contents are
// cleared before reuse. If the bucket is full the array is left to the GC.
func (p *Pool) Free(b *Block) error {
	if b == nil {
		return nil
	}
	if !b.release() {
		return ErrDoubleFree
	}
	p.frees.Add(1)
	p.bytes.Add(-int64(len(b.data)))

	buf := b.data[:cap(b.data)]
	b.data = nil
	clear(buf)

	class := cap(buf)
	p.mu.Lock()
	defer p.mu.Unlock()

	bucket := p.buckets[class]
	if p.maxSize > 0 && len(bucket) >= p.maxSize {
		return nil
	}
	p.buckets[class] = append(bucket, buf)
	return nil
}

// Stats returns the current counters.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	retained := 0
	for _, bucket := range p.buckets {
		retained += len(bucket)
	}
	p.mu.Unlock()

	allocs := p.allocs.Load()
	frees := p.frees.Load()
	return Stats{
		Allocs:    allocs,
		Frees:     frees,
		Live:      allocs - frees,
		LiveBytes: p.bytes.Load(),
		Retained:  retained,
	}
}

// sizeClass rounds size up to the next power of two, at least minClass.
func sizeClass(size int) int {
	if size <= minClass {
		return minClass
	}
	return 1 << bits.Len(uint(size-1))
}

var _ Allocator = (*Pool)(nil)
