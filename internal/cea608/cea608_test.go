package cea608

import "testing"

// TestPopOnCycle exercises the classic pop-on sequence: RCL opens the
// non-displayed buffer, text is written, and two EOCs swap buffers,
// each one flushing whatever was visible before the swap (invariant 3:
// the flushed screen's content is what the caller should treat as the
// subtitle that just ended).
func TestPopOnCycle(t *testing.T) {
	d := NewDecoder(Options{Channel: 1})

	if sub := d.Feed(0x14, 0x20, 1000); sub != nil { // RCL
		t.Fatalf("RCL returned %+v, want nil", sub)
	}

	d.Feed('H', 'I', 1000) // writes into the non-displayed buffer

	if sub := d.Feed(0x14, 0x2F, 2000); sub != nil { // EOC: swaps in "HI", flushes old empty buffer1
		t.Fatalf("first EOC returned %+v, want nil (buffer1 was empty)", sub)
	}

	d.Feed('B', 'Y', 3000) // now written into buffer1 (currently hidden)

	sub := d.Feed(0x14, 0x2F, 4000) // second EOC flushes buffer2 ("HI")
	if sub == nil {
		t.Fatal("second EOC returned nil, want the flushed \"HI\" screen")
	}
	if got := sub.Screen.Line(0); got != "HI" {
		t.Errorf("flushed line = %q, want \"HI\"", got)
	}
}

// TestRollUp2Cycle checks that a CR in roll-up mode flushes the visible
// screen and shifts rows once the window is full.
func TestRollUp2Cycle(t *testing.T) {
	d := NewDecoder(Options{Channel: 1})

	d.Feed(0x14, 0x25, 1000) // RU2
	if d.mode != ModeRollUp2 {
		t.Fatalf("mode after RU2 = %v, want ModeRollUp2", d.mode)
	}

	d.Feed('H', 'I', 1000)

	sub := d.Feed(0x14, 0x2D, 2000) // CR
	if sub == nil {
		t.Fatal("CR returned nil, want a flushed \"HI\" screen")
	}
	if got := sub.Screen.Line(0); got != "HI" {
		t.Errorf("flushed line = %q, want \"HI\"", got)
	}
}

// TestDuplicateControlCodeDropped verifies the CEA-608 requirement that
// a repeated control code byte pair (common over noisy line-21 data) is
// processed once and the dedup state resets afterward.
func TestDuplicateControlCodeDropped(t *testing.T) {
	d := NewDecoder(Options{Channel: 1})

	d.Feed(0x14, 0x20, 1000)
	if d.lastC1 != 0x14 || d.lastC2 != 0x20 {
		t.Fatalf("lastC1/lastC2 = %d/%d, want 0x14/0x20", d.lastC1, d.lastC2)
	}

	if sub := d.Feed(0x14, 0x20, 1000); sub != nil {
		t.Errorf("duplicate control code returned %+v, want nil", sub)
	}
	if d.lastC1 != -1 || d.lastC2 != -1 {
		t.Errorf("lastC1/lastC2 after dedup = %d/%d, want -1/-1", d.lastC1, d.lastC2)
	}
}

// TestChannelFiltering checks that a Decoder configured for channel 1
// ignores control codes addressed to channel 2, and resumes on its own
// channel's codes.
func TestChannelFiltering(t *testing.T) {
	d := NewDecoder(Options{Channel: 1})

	d.Feed(0x1C, 0x25, 1000) // RU2 on channel 2 (hi 0x18-0x1E range)
	if d.mode != ModePopOn {
		t.Errorf("mode after channel-2 RU2 = %v, want unchanged ModePopOn", d.mode)
	}

	d.Feed(0x14, 0x25, 2000) // RU2 on channel 1
	if d.mode != ModeRollUp2 {
		t.Errorf("mode after channel-1 RU2 = %v, want ModeRollUp2", d.mode)
	}
}

// TestPAC verifies a PAC byte pair positions the cursor and sets color
// per pac2Attribs/rowdata (hand-traced: c1=0x10,c2=0x4A -> row index 0
// -> rowdata[0]=11 -> cursorRow=10; idx=0x4A-0x40=10 -> ColYellow).
func TestPAC(t *testing.T) {
	d := NewDecoder(Options{Channel: 1})
	d.Feed(0x10, 0x4A, 1000)

	if d.cursorRow != 10 {
		t.Errorf("cursorRow = %d, want 10", d.cursorRow)
	}
	if d.color != ColYellow {
		t.Errorf("color = %v, want ColYellow", d.color)
	}
	if d.cursorColumn != 0 {
		t.Errorf("cursorColumn = %d, want 0", d.cursorColumn)
	}
}

// TestEraseDisplayedMemory checks EDM clears the visible buffer and
// flushes whatever was on it first.
func TestEraseDisplayedMemory(t *testing.T) {
	d := NewDecoder(Options{Channel: 1})
	d.Feed(0x14, 0x25, 1000) // RU2
	d.Feed('H', 'I', 1000)

	sub := d.Feed(0x14, 0x2C, 2000) // EDM
	if sub == nil {
		t.Fatal("EDM returned nil, want flushed \"HI\" screen")
	}
	if got := sub.Screen.Line(0); got != "HI" {
		t.Errorf("flushed line = %q, want \"HI\"", got)
	}
	if !d.visibleScreen().Empty {
		t.Error("visible screen not empty after EDM")
	}
}

// TestEndOfDataFlushesPending mirrors handle_end_of_data: EndOfData
// synthesizes an EDM so any screen still on display at end of stream is
// captured rather than silently dropped.
func TestEndOfDataFlushesPending(t *testing.T) {
	d := NewDecoder(Options{Channel: 1})
	d.Feed(0x14, 0x25, 1000) // RU2
	d.Feed('B', 'Y', 1000)

	sub := d.EndOfData()
	if sub == nil {
		t.Fatal("EndOfData returned nil, want flushed \"BY\" screen")
	}
	if got := sub.Screen.Line(0); got != "BY" {
		t.Errorf("flushed line = %q, want \"BY\"", got)
	}
}

// TestPaddingIgnored checks that 0x00 0x00 byte pairs (null padding
// between real caption data) are silently dropped.
func TestPaddingIgnored(t *testing.T) {
	d := NewDecoder(Options{Channel: 1})
	if sub := d.Feed(0x00, 0x00, 1000); sub != nil {
		t.Errorf("padding returned %+v, want nil", sub)
	}
}
