// atomicflag holds the small lock-free primitives shared between the
// training coordinator, the render manager, and the http layer: boolean
// flags (training-active, model-updated, rendering-active), event counters,
// and an atomic float for live statistics read while training writes.
// These replace ad hoc shared mutable state with primitives owned by the
// component that constructs them and handed to each loop at construction.
package atomicflag

import (
	"math"
	"sync/atomic"
	"unsafe"
)

// Flag is a boolean settable/clearable from any goroutine.
// The zero value is cleared.
type Flag struct {
	v uint32
}

// Set raises the flag.
func (f *Flag) Set() {
	atomic.StoreUint32(&f.v, 1)
}

// Clear lowers the flag.
func (f *Flag) Clear() {
	atomic.StoreUint32(&f.v, 0)
}

// IsSet reads the flag without blocking.
func (f *Flag) IsSet() bool {
	return atomic.LoadUint32(&f.v) == 1
}

// Counter is a monotonic event counter. The zero value is zero.
type Counter struct {
	n uint64
}

// Add increments the counter by delta and returns the new count.
func (c *Counter) Add(delta uint64) uint64 {
	return atomic.AddUint64(&c.n, delta)
}

// Count reads the current count.
func (c *Counter) Count() uint64 {
	return atomic.LoadUint64(&c.n)
}

// AtomicFloat64 encapsulates a float64 for non-locking atomic operations.
// Reads must go through AtomicRead to ensure the value is synchronized with
// main memory rather than a stale local copy. Writes CAS the bit pattern;
// a failed CAS is reported to the caller rather than retried blindly, since
// the pointee changing mid-operation usually means the caller should
// recompute, not clobber.
type AtomicFloat64 struct {
	val float64
}

// NewAtomicFloat64 encapsulates a float64 for atomic operations.
func NewAtomicFloat64(val float64) *AtomicFloat64 {
	return &AtomicFloat64{
		val: val,
	}
}

// AtomicRead atomically reads the float64.
func (af *AtomicFloat64) AtomicRead() (value float64) {
	bits := atomic.LoadUint64((*uint64)(unsafe.Pointer(&af.val)))
	return math.Float64frombits(bits)
}

// AtomicAdd atomically adds to the float64, returning whether the add
// succeeded against a concurrent mutation.
func (af *AtomicFloat64) AtomicAdd(addend float64) (newVal float64, succeeded bool) {
	old := af.AtomicRead()
	newVal = old + addend
	succeeded = atomic.CompareAndSwapUint64(
		(*uint64)(unsafe.Pointer(&af.val)),
		math.Float64bits(old),
		math.Float64bits(newVal))
	return
}

// AtomicSet sets the float64, returning true on success.
func (af *AtomicFloat64) AtomicSet(newVal float64) (succeeded bool) {
	old := af.AtomicRead()
	succeeded = atomic.CompareAndSwapUint64(
		(*uint64)(unsafe.Pointer(&af.val)),
		math.Float64bits(old),
		math.Float64bits(newVal))
	return
}
