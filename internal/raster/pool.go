package raster

import "sync"

// pool recycles pixel storage by exact byte length. Pipeline stages allocate
// same-sized buffers back to back, so a transform chain settles on two slices.
type pool struct {
	mu      sync.Mutex
	buckets map[int][][]byte
	maxSize int // max slices retained per length
}

var defaultPool = newPool(4)

func newPool(maxPerBucket int) *pool {
	return &pool{
		buckets: make(map[int][][]byte),
		maxSize: maxPerBucket,
	}
}

// get returns a zeroed slice of length n.
func (p *pool) get(n int) []byte {
	p.mu.Lock()
	bucket := p.buckets[n]
	if len(bucket) > 0 {
		buf := bucket[len(bucket)-1]
		p.buckets[n] = bucket[:len(bucket)-1]
		p.mu.Unlock()

		clear(buf)
		return buf
	}
	p.mu.Unlock()

	return make([]byte, n)
}

func (p *pool) put(buf []byte) {
	n := len(buf)
	if n == 0 {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.buckets[n]) >= p.maxSize {
		return
	}
	p.buckets[n] = append(p.buckets[n], buf)
}
