package store

// WriteCallback reports the outcome of one queued write: nil on success,
// an *ferr.Error with Code Cancelled (errors.Is matches ferr.ErrCancelled)
// if a later write to the same entry superseded this one before the
// coalescing timer fired, or another error from the flush
// itself. userData is whatever the caller passed to Write, round-tripped
// unchanged.
type WriteCallback func(err error, userData any)

// pendingWrite is one queued write targeting a single entry, per spec §3's
// "Pending Write" data model: "owned blob reference, computed bit-mask,
// optional completion callback and user data".
type pendingWrite struct {
	entry    string
	data     []byte
	cb       WriteCallback
	userData any
}
