package hostmem

import (
	"errors"
	"math"
	"sync"
	"testing"
)

func TestPoolAllocExactSize(t *testing.T) {
	p := NewPool(4)
	for _, size := range []int{0, 1, 63, 64, 65, 1024, 1000, 4097} {
		b := mustAlloc(t, p, size)
		if b.Len() != size {
			t.Errorf("Alloc(%d).Len() = %d", size, b.Len())
		}
		if len(b.Bytes()) != size {
			t.Errorf("Alloc(%d) bytes len = %d", size, len(b.Bytes()))
		}
	}
}

func mustAlloc(t *testing.T, p *Pool, size int) *Block {
	t.Helper()
	b, err := p.Alloc(size)
	if err != nil {
		t.Fatalf("Alloc(%d): %v", size, err)
	}
	return b
}

func TestPoolAllocTooLarge(t *testing.T) {
	p := NewPool(4)
	for _, size := range []int{MaxSize + 1, math.MaxInt} {
		b, err := p.Alloc(size)
		if !errors.Is(err, ErrTooLarge) {
			t.Errorf("Alloc(%d) err = %v, want ErrTooLarge", size, err)
		}
		if b != nil {
			t.Errorf("Alloc(%d) returned a block", size)
		}
	}
	if s := p.Stats(); s.Allocs != 0 {
		t.Errorf("Allocs = %d after refused allocations, want 0", s.Allocs)
	}
}

func TestPoolAllocNegative(t *testing.T) {
	p := NewPool(4)
	if b := mustAlloc(t, p, -5); b.Len() != 0 {
		t.Errorf("Alloc(-5).Len() = %d, want 0", b.Len())
	}
}

func TestPoolUniqueIDs(t *testing.T) {
	p := NewPool(4)
	a := mustAlloc(t, p, 16)
	b := mustAlloc(t, p, 16)
	if a.ID() == b.ID() {
		t.Errorf("expected distinct ids, both %d", a.ID())
	}
}

func TestPoolFreeTwice(t *testing.T) {
	p := NewPool(4)
	b := mustAlloc(t, p, 128)

	if err := p.Free(b); err != nil {
		t.Fatalf("first Free: %v", err)
	}
	if !b.Freed() {
		t.Error("Freed() = false after Free")
	}
	if err := p.Free(b); !errors.Is(err, ErrDoubleFree) {
		t.Errorf("second Free = %v, want ErrDoubleFree", err)
	}

	s := p.Stats()
	if s.Allocs != 1 || s.Frees != 1 || s.Live != 0 {
		t.Errorf("Stats = %+v, want 1 alloc, 1 free, 0 live", s)
	}
}

func TestPoolFreeNil(t *testing.T) {
	p := NewPool(4)
	if err := p.Free(nil); err != nil {
		t.Errorf("Free(nil) = %v", err)
	}
}

func TestPoolReuseClears(t *testing.T) {
	p := NewPool(4)
	b := mustAlloc(t, p, 100)
	for i := range b.Bytes() {
		b.Bytes()[i] = 0xAB
	}
	_ = p.Free(b)

	if got := p.Stats().Retained; got != 1 {
		t.Fatalf("Retained = %d, want 1", got)
	}

	c := mustAlloc(t, p, 90) // same 128-byte class
	for i, v := range c.Bytes() {
		if v != 0 {
			t.Fatalf("reused byte %d = %#x, want 0", i, v)
		}
	}
	if got := p.Stats().Retained; got != 0 {
		t.Errorf("Retained after reuse = %d, want 0", got)
	}
}

func TestPoolBucketLimit(t *testing.T) {
	p := NewPool(2)
	blocks := []*Block{mustAlloc(t, p, 10), mustAlloc(t, p, 10), mustAlloc(t, p, 10)}
	for _, b := range blocks {
		_ = p.Free(b)
	}
	if got := p.Stats().Retained; got != 2 {
		t.Errorf("Retained = %d, want 2", got)
	}
}

func TestPoolLiveBytes(t *testing.T) {
	p := NewPool(0)
	a := mustAlloc(t, p, 100)
	b := mustAlloc(t, p, 24)
	if got := p.Stats().LiveBytes; got != 124 {
		t.Errorf("LiveBytes = %d, want 124", got)
	}
	_ = p.Free(a)
	_ = p.Free(b)
	if got := p.Stats().LiveBytes; got != 0 {
		t.Errorf("LiveBytes after free = %d, want 0", got)
	}
}

func TestSizeClass(t *testing.T) {
	tests := []struct {
		size, want int
	}{
		{0, 64},
		{64, 64},
		{65, 128},
		{128, 128},
		{129, 256},
		{1 << 20, 1 << 20},
		{1<<20 + 1, 1 << 21},
		{MaxSize, MaxSize},
	}
	for _, tt := range tests {
		if got := sizeClass(tt.size); got != tt.want {
			t.Errorf("sizeClass(%d) = %d, want %d", tt.size, got, tt.want)
		}
	}
}

func TestPoolConcurrent(t *testing.T) {
	p := NewPool(8)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				b, err := p.Alloc(i + 1)
				if err != nil {
					t.Errorf("Alloc: %v", err)
					return
				}
				if err := p.Free(b); err != nil {
					t.Errorf("Free: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	if s := p.Stats(); s.Live != 0 || s.Allocs != 1600 {
		t.Errorf("Stats = %+v, want 1600 allocs and 0 live", s)
	}
}
