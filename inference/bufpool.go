package inference

import "sync"

// bufferPool recycles frame pixel buffers between requests, frames from
// the same source share a size so buffers are reused as is
type bufferPool struct {
	pool sync.Pool
}

// get returns an empty slice with at least size capacity
func (b *bufferPool) get(size int) []byte {

	if v := b.pool.Get(); v != nil {
		buf := *(v.(*[]byte))

		if cap(buf) >= size {
			return buf[:0]
		}
	}

	return make([]byte, 0, size)
}

// put returns a buffer to the pool, it must not be used afterwards
func (b *bufferPool) put(buf []byte) {

	if buf == nil {
		return
	}

	b.pool.Put(&buf)
}
