package pools

import (
	"sync"
	"sync/atomic"
)

// Response body buffer tiers: readAllPooled (core/response) sizes its
// scratch buffer off Content-Length when known, so most bodies land
// squarely in one tier instead of growing through all three on every
// read.
const (
	SmallBufferSize  = 2 * 1024  // small JSON/text bodies, redirects' empty bodies
	MediumBufferSize = 8 * 1024  // the common case: typical API response payloads
	LargeBufferSize  = 32 * 1024 // large payloads (bulk endpoints, file downloads)
)

// BufferPool hands out []byte scratch buffers tiered by capacity so a
// body's accumulation buffer is reused across requests instead of
// allocated fresh each time.
type BufferPool struct {
	small  sync.Pool
	medium sync.Pool
	large  sync.Pool

	smallHits   atomic.Uint64
	mediumHits  atomic.Uint64
	largeHits   atomic.Uint64
	totalLeases atomic.Uint64
}

// NewBufferPool builds an empty tiered pool; each tier lazily allocates
// on its first miss.
func NewBufferPool() *BufferPool {
	return &BufferPool{
		small: sync.Pool{
			New: func() any {
				buf := make([]byte, 0, SmallBufferSize)
				return &buf
			},
		},
		medium: sync.Pool{
			New: func() any {
				buf := make([]byte, 0, MediumBufferSize)
				return &buf
			},
		},
		large: sync.Pool{
			New: func() any {
				buf := make([]byte, 0, LargeBufferSize)
				return &buf
			},
		},
	}
}

// Get leases a buffer whose tier covers estimatedSize (typically a
// response's Content-Length, or MediumBufferSize when unknown).
func (bp *BufferPool) Get(estimatedSize int) *[]byte {
	bp.totalLeases.Add(1)

	switch {
	case estimatedSize <= SmallBufferSize:
		bp.smallHits.Add(1)
		return bp.small.Get().(*[]byte)
	case estimatedSize <= MediumBufferSize:
		bp.mediumHits.Add(1)
		return bp.medium.Get().(*[]byte)
	default:
		bp.largeHits.Add(1)
		return bp.large.Get().(*[]byte)
	}
}

// Put returns buf to the tier matching its capacity, resetting its
// length first. Buffers that outgrew every tier (a body larger than
// LargeBufferSize was accumulated into it) are left for the GC rather
// than pooled, so one oversized response doesn't permanently bloat the
// pool's steady-state footprint.
func (bp *BufferPool) Put(buf *[]byte) {
	if buf == nil {
		return
	}

	*buf = (*buf)[:0]

	switch c := cap(*buf); {
	case c <= SmallBufferSize:
		bp.small.Put(buf)
	case c <= MediumBufferSize:
		bp.medium.Put(buf)
	case c <= LargeBufferSize:
		bp.large.Put(buf)
	}
}

// Stats reports this pool's tier occupancy for diagnostics.
func (bp *BufferPool) Stats() BufferStats {
	total := bp.totalLeases.Load()
	var hitRate float64
	if total > 0 {
		hitRate = float64(bp.smallHits.Load()+bp.mediumHits.Load()+bp.largeHits.Load()) / float64(total)
	}
	return BufferStats{
		SmallHits:   bp.smallHits.Load(),
		MediumHits:  bp.mediumHits.Load(),
		LargeHits:   bp.largeHits.Load(),
		TotalLeases: total,
		HitRate:     hitRate,
	}
}

// BufferStats summarizes a BufferPool's tier usage since process start.
type BufferStats struct {
	SmallHits   uint64
	MediumHits  uint64
	LargeHits   uint64
	TotalLeases uint64
	HitRate     float64
}

var globalBufferPool = NewBufferPool()

// AcquireBuffer leases a buffer from the package-wide pool backing every
// Response's body accumulation (core/response.Response.readAllPooled).
func AcquireBuffer(estimatedSize int) *[]byte {
	return globalBufferPool.Get(estimatedSize)
}

// ReleaseBuffer returns buf to the package-wide pool.
func ReleaseBuffer(buf *[]byte) {
	globalBufferPool.Put(buf)
}

// GlobalBufferStats reports the package-wide pool's tier usage, exposed
// through Client.BufferPoolStats for operators tuning body-size
// expectations against observed tier hit rates.
func GlobalBufferStats() BufferStats {
	return globalBufferPool.Stats()
}
