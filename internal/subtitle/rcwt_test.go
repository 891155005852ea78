package subtitle

import (
	"bytes"
	"io"
	"testing"
)

func TestRCWTRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	enc := NewRCWTEncoder(&buf)

	blocks := []struct {
		fts      int64
		triplets []RCWTTriplet
	}{
		{fts: 0, triplets: []RCWTTriplet{{CCValid: true, CCType: 0, B1: 0x94, B2: 0x20}}},
		{fts: 33, triplets: []RCWTTriplet{
			{CCValid: true, CCType: 1, B1: 0x80, B2: 0x80},
			{CCValid: false, CCType: 2, B1: 0x00, B2: 0x00},
		}},
	}
	for _, b := range blocks {
		if err := enc.WriteBlock(b.fts, b.triplets); err != nil {
			t.Fatal(err)
		}
	}

	dec := NewRCWTReader(&buf)
	for i, want := range blocks {
		got, err := dec.ReadBlock()
		if err != nil {
			t.Fatalf("block %d: %v", i, err)
		}
		if got.FTS != want.fts {
			t.Fatalf("block %d: fts = %d, want %d", i, got.FTS, want.fts)
		}
		if len(got.Triplets) != len(want.triplets) {
			t.Fatalf("block %d: %d triplets, want %d", i, len(got.Triplets), len(want.triplets))
		}
		for j, tr := range got.Triplets {
			if tr != want.triplets[j] {
				t.Fatalf("block %d triplet %d = %+v, want %+v", i, j, tr, want.triplets[j])
			}
		}
	}
	if _, err := dec.ReadBlock(); err != io.EOF {
		t.Fatalf("expected io.EOF at end, got %v", err)
	}
}

func TestRCWTReaderRejectsBadHeader(t *testing.T) {
	dec := NewRCWTReader(bytes.NewReader([]byte("not an rcwt file")))
	if _, err := dec.ReadBlock(); err != ErrMissingRCWTHeader {
		t.Fatalf("expected ErrMissingRCWTHeader, got %v", err)
	}
}

func TestRCWTReaderToleratesTruncation(t *testing.T) {
	var buf bytes.Buffer
	enc := NewRCWTEncoder(&buf)
	if err := enc.WriteBlock(0, []RCWTTriplet{{CCValid: true, CCType: 0, B1: 1, B2: 2}}); err != nil {
		t.Fatal(err)
	}
	truncated := buf.Bytes()[:buf.Len()-1]
	dec := NewRCWTReader(bytes.NewReader(truncated))
	if _, err := dec.ReadBlock(); err != io.EOF {
		t.Fatalf("expected io.EOF on truncated trailing triplet, got %v", err)
	}
}
