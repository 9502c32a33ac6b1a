package packet

import "sync/atomic"

// Blob is a reference-counted immutable byte buffer, the payload every
// blob-bearing packet type (blob, json-object, json-array, and the content
// field of an http-response) wraps. Init increments the refcount, Dispose
// decrements it; the decrement that brings it to zero clears the backing slice so
// a use-after-free shows up as a nil-slice panic instead of silently
// reading stale bytes.
type Blob struct {
	refcount int32
	data     []byte
	mime     string
}

// NewBlob wraps data (not copied) with an initial refcount of 1.
func NewBlob(data []byte, mime string) *Blob {
	return &Blob{refcount: 1, data: data, mime: mime}
}

// Ref increments the refcount and returns b, for call sites that want to
// hand out another owning reference without an explicit Unref/Ref pair.
func (b *Blob) Ref() *Blob {
	atomic.AddInt32(&b.refcount, 1)
	return b
}

// Unref decrements the refcount, releasing the backing bytes once it
// reaches zero.
func (b *Blob) Unref() {
	if atomic.AddInt32(&b.refcount, -1) <= 0 {
		b.data = nil
	}
}

// RefCount returns the current refcount, for tests.
func (b *Blob) RefCount() int32 {
	return atomic.LoadInt32(&b.refcount)
}

func (b *Blob) Bytes() []byte { return b.data }
func (b *Blob) MIME() string  { return b.mime }
