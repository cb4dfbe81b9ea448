package pool

import (
	"sync"
)

// BufferPool recycles byte slices of a fixed capacity. It backs the frame
// assembly on the hot request/response path, where one buffer is needed per
// written frame.
type BufferPool struct {
	pool sync.Pool
}

// NewBufferPool creates a pool handing out buffers with the given capacity.
func NewBufferPool(capacity int) *BufferPool {
	return &BufferPool{
		pool: sync.Pool{
			New: func() any {
				buf := make([]byte, 0, capacity)
				return &buf
			},
		},
	}
}

// Get returns an empty buffer from the pool.
//
// Return the buffer to the pool with Put.
func (p *BufferPool) Get() *[]byte {
	buf, _ := p.pool.Get().(*[]byte) // Type assertion is safe here since we only put *[]byte into the pool
	return buf
}

// Put returns buf to the pool.
//
// The buffer cannot be accessed after returning to the pool.
func (p *BufferPool) Put(buf *[]byte) {
	*buf = (*buf)[:0]
	p.pool.Put(buf)
}
