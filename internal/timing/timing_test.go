package timing

import "testing"

func TestEngineFirstFrameZeroOffset(t *testing.T) {
	e := NewEngine(StreamModeGeneric, nil)
	e.SetFrame(90000, 0, 30, true) // 1 second in, tref 0 -> ftsOffset 0
	if got := e.FTS(FieldCC1); got != 0 {
		t.Errorf("FTS = %d, want 0 on first frame", got)
	}
	if got := e.FTSMax(); got != 0 {
		t.Errorf("FTSMax = %d, want 0", got)
	}
}

func TestEngineMonotonicAdvance(t *testing.T) {
	e := NewEngine(StreamModeGeneric, nil)
	e.SetFrame(0, 0, 30, true)
	e.SetFrame(90000, 0, 30, true) // +1000ms
	if got := e.FTS(FieldCC1); got != 1000 {
		t.Errorf("FTS after +1s = %d, want 1000", got)
	}
	if got := e.FTSMax(); got != 1000 {
		t.Errorf("FTSMax = %d, want 1000", got)
	}
}

func TestEngineCaptionBlockCounterAdvancesWithinFrame(t *testing.T) {
	e := NewEngine(StreamModeGeneric, nil)
	e.SetFrame(0, 0, 30, true)

	first := e.FTS(FieldCC1)
	e.Advance(FieldCC1)
	second := e.FTS(FieldCC1)

	if first != 0 {
		t.Fatalf("first FTS = %d, want 0", first)
	}
	wantSecond := int64(1001) / 30
	if second != wantSecond {
		t.Errorf("second FTS = %d, want %d", second, wantSecond)
	}
}

func TestEngineCounterResetsOnNewFrame(t *testing.T) {
	e := NewEngine(StreamModeGeneric, nil)
	e.SetFrame(0, 0, 30, true)
	e.Advance(FieldCC1)
	e.Advance(FieldCC1)

	e.SetFrame(90000, 0, 30, true)
	if got := e.FTS(FieldCC1); got != 1000 {
		t.Errorf("FTS after new frame = %d, want counter reset to 1000", got)
	}
}

func TestEngineBigPTSChangeOnIFrameRebasesTimeline(t *testing.T) {
	e := NewEngine(StreamModeGeneric, nil)
	e.SetFrame(0, 0, 30, true)
	e.SetFrame(90000, 0, 30, true) // establishes steady state at 1000ms

	// Jump forward by 10 seconds on an I-frame (tref 0): should rebase, not break.
	jumpPTS := int64(90000*11)
	e.SetFrame(jumpPTS, 0, 30, true)
	if got := e.FTS(FieldCC1); got < 0 {
		t.Errorf("FTS went negative after accepted rebase: %d", got)
	}
}

func TestEngineBigPTSChangeOnNonIFrameRefused(t *testing.T) {
	e := NewEngine(StreamModeGeneric, nil)
	e.SetFrame(0, 0, 30, true)
	e.SetFrame(90000, 0, 30, true)
	maxBefore := e.FTSMax()

	// Jump forward by 10 seconds on a non-anchor B-frame: should be refused.
	e.SetFrame(int64(90000*11), 5, 30, false)
	if got := e.FTS(FieldCC1); got != maxBefore {
		t.Errorf("FTS after refused jump = %d, want unchanged %d", got, maxBefore)
	}
}

func TestEngineMP4ModeDisablesSyncCheck(t *testing.T) {
	e := NewEngine(StreamModeMP4, nil)
	e.SetFrame(0, 0, 30, true)
	e.SetFrame(90000, 0, 30, true)

	// A large forward jump that would trip the detector in generic mode
	// must be accepted silently in MP4 mode.
	e.SetFrame(int64(90000*20), 5, 30, false)
	if got := e.FTS(FieldCC1); got <= 1000 {
		t.Errorf("FTS did not advance in MP4 mode despite PTS jump: %d", got)
	}
}

func TestNormalizePTSTracksRollover(t *testing.T) {
	e := NewEngine(StreamModeGeneric, nil)
	near := uint64(ptsMax33 - 1000)
	got1 := e.NormalizePTS(near)
	if got1 != int64(near) {
		t.Fatalf("first NormalizePTS = %d, want %d", got1, near)
	}

	// Simulate wraparound: top 3 bits go from 0b111 to 0b000.
	wrapped := uint64(500)
	got2 := e.NormalizePTS(wrapped)
	want2 := int64(wrapped) + ptsMax33
	if got2 != want2 {
		t.Errorf("NormalizePTS after wrap = %d, want %d", got2, want2)
	}
}
