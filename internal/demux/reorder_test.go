package demux

import "testing"

func TestReorderBufferOrdersByTref(t *testing.T) {
	r := NewReorderBuffer()

	// Decode order: anchor (tref 0), then B-frames tref 2, tref 1.
	r.Store(0, 1000, []CCTriplet{{B1: 'A'}})
	r.Store(2, 1033, []CCTriplet{{B1: 'C'}})
	r.Store(1, 1017, []CCTriplet{{B1: 'B'}})

	got := r.NewAnchor(3)
	want := []byte{'A', 'B', 'C'}
	if len(got) != len(want) {
		t.Fatalf("got %d blocks, want %d", len(got), len(want))
	}
	for i, b := range want {
		if got[i].Triplet.B1 != b {
			t.Errorf("block %d = %c, want %c", i, got[i].Triplet.B1, b)
		}
	}
}

func TestReorderBufferPreservesFTSPerSlot(t *testing.T) {
	r := NewReorderBuffer()
	r.Store(0, 5000, []CCTriplet{{B1: 'X'}})
	r.Store(1, 5033, []CCTriplet{{B1: 'Y'}})

	got := r.NewAnchor(2)
	if got[0].FTS != 5000 || got[1].FTS != 5033 {
		t.Errorf("FTS values = %d, %d, want 5000, 5033", got[0].FTS, got[1].FTS)
	}
}

func TestReorderBufferEarlyFlushOnGap(t *testing.T) {
	r := NewReorderBuffer()
	r.Store(0, 1000, []CCTriplet{{B1: 'A'}})

	// tref jumps far outside the current anchor's 101-slot window:
	// Store must flush the old GOP before buffering the new one.
	flushed := r.Store(0+sortBufSize+5, 9000, []CCTriplet{{B1: 'Z'}})
	if len(flushed) != 1 || flushed[0].Triplet.B1 != 'A' {
		t.Fatalf("early flush = %+v, want one block for 'A'", flushed)
	}

	got := r.Flush()
	if len(got) != 1 || got[0].Triplet.B1 != 'Z' {
		t.Fatalf("final flush = %+v, want one block for 'Z'", got)
	}
}

func TestReorderBufferEmptyStoreIsNoop(t *testing.T) {
	r := NewReorderBuffer()
	if got := r.Store(0, 1000, nil); got != nil {
		t.Errorf("Store with no triplets returned %v, want nil", got)
	}
	if got := r.Flush(); got != nil {
		t.Errorf("Flush on untouched buffer = %v, want nil", got)
	}
}

func TestReorderBufferMultipleAnchorsIndependent(t *testing.T) {
	r := NewReorderBuffer()
	r.Store(0, 1000, []CCTriplet{{B1: '1'}})
	first := r.NewAnchor(1)
	if len(first) != 1 || first[0].Triplet.B1 != '1' {
		t.Fatalf("first GOP flush = %+v", first)
	}

	r.Store(1, 1033, []CCTriplet{{B1: '2'}})
	second := r.NewAnchor(2)
	if len(second) != 1 || second[0].Triplet.B1 != '2' {
		t.Fatalf("second GOP flush = %+v, want fresh buffer after anchor reset", second)
	}
}
