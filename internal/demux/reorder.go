package demux

// Temporal reorder buffer: caption triplets are scanned in decode
// order but must be dispatched to the 608/708 decoders in display
// order. Ported from sequencing.c's cc_data_pkts/store_hdcc/
// process_hdcc, which buffers up to 2*MAXBFRAMES+1 slots indexed by
// (tref - anchor_tref + MAXBFRAMES) and flushes them in ascending
// index order whenever a new anchor (I/P frame) arrives.

const (
	maxBFrames  = 50
	sortBufSize = 2*maxBFrames + 1
)

// ReorderedBlock is one caption triplet released by the reorder
// buffer, tagged with the frame-time-stamp it was deposited under.
type ReorderedBlock struct {
	FTS     int64
	Triplet CCTriplet
}

type reorderSlot struct {
	triplets []CCTriplet
	fts      int64
	used     bool
}

// ReorderBuffer sorts caption triplets from decode order into display
// order across a GOP's worth of B-frames.
type ReorderBuffer struct {
	slots      [sortBufSize]reorderSlot
	anchorTref int
	haveAnchor bool
}

// NewReorderBuffer creates an empty reorder buffer.
func NewReorderBuffer() *ReorderBuffer {
	return &ReorderBuffer{}
}

// Store buffers triplets captured from the frame with temporal
// reference tref, timestamped fts. If tref falls outside the current
// anchor's window, the buffer is flushed early (as if a new anchor had
// arrived) before the new triplets are stored under a fresh anchor.
func (r *ReorderBuffer) Store(tref int, fts int64, triplets []CCTriplet) []ReorderedBlock {
	if len(triplets) == 0 {
		return nil
	}
	if !r.haveAnchor {
		r.anchorTref = tref
		r.haveAnchor = true
	}

	var flushed []ReorderedBlock
	idx := tref - r.anchorTref + maxBFrames
	if idx < 0 || idx >= sortBufSize {
		flushed = r.flushLocked()
		r.anchorTref = tref
		r.haveAnchor = true
		idx = maxBFrames
	}

	slot := &r.slots[idx]
	slot.triplets = append(slot.triplets, triplets...)
	slot.fts = fts
	slot.used = true
	return flushed
}

// NewAnchor marks tref as the new reference frame for the next batch
// of B-frames. If a GOP is already buffered, it's flushed first, in
// ascending display order, and the flushed blocks are returned.
func (r *ReorderBuffer) NewAnchor(tref int) []ReorderedBlock {
	flushed := r.flushLocked()
	r.anchorTref = tref
	r.haveAnchor = true
	return flushed
}

// Flush releases every buffered triplet in ascending display order and
// resets the buffer, as if the stream had ended or the GOP boundary
// was unrecoverable.
func (r *ReorderBuffer) Flush() []ReorderedBlock {
	return r.flushLocked()
}

func (r *ReorderBuffer) flushLocked() []ReorderedBlock {
	var out []ReorderedBlock
	for i := range r.slots {
		s := &r.slots[i]
		if !s.used {
			continue
		}
		for _, t := range s.triplets {
			out = append(out, ReorderedBlock{FTS: s.fts, Triplet: t})
		}
		s.triplets = nil
		s.fts = 0
		s.used = false
	}
	r.haveAnchor = false
	return out
}
