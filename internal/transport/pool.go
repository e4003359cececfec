package transport

import "sync"

// bufferPool recycles receive buffers of one size. Responses are copied out
// at their exact length, so a buffer never outlives a Recv.
type bufferPool struct {
	size int
	pool sync.Pool
}

func newBufferPool(size int) *bufferPool {
	bp := &bufferPool{size: size}
	bp.pool.New = func() any {
		buf := make([]byte, size)
		return &buf
	}
	return bp
}

func (bp *bufferPool) get() *[]byte {
	return bp.pool.Get().(*[]byte)
}

func (bp *bufferPool) put(buf *[]byte) {
	if buf == nil || len(*buf) != bp.size {
		return
	}
	bp.pool.Put(buf)
}
