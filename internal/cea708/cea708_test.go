package cea708

import "testing"

// buildPacket assembles a 12-byte DTVCC packet: sequence/length header,
// one service-1 block defining window 0 (visible, 1 row x 32 cols) and
// writing "HI" into it, padded to an even total length.
func buildPacket() []byte {
	return []byte{
		0x06,       // seq=0, length_code=6 -> total length 12
		0x2A,       // service 1, block length 10
		0x98,       // DFx: DefineWindow0
		0x20,       // visible, priority 0
		0x00, 0x00, // anchor point/vertical/horizontal
		0x00, // row_count-1 = 0 -> 1 row
		0x1F, // col_count-1 = 31 -> 32 cols
		0x00, // unused
		'H', 'I',
		0x00, // C0 pad byte
	}
}

// TestReassemblerDefineWindowAndWrite feeds a full packet through
// AddTriplet two bytes at a time (as cc_data triplets arrive) and
// checks the resulting window text, exercising the C1 DFx dispatch fix
// (DFx lives in 0x80-0x9F, not 0x10-0x1F).
func TestReassemblerDefineWindowAndWrite(t *testing.T) {
	buf := buildPacket()
	r := NewReassembler()

	var events []PacketEvent
	events = append(events, r.AddTriplet(true, 3, buf[0], buf[1])...)
	for i := 2; i < len(buf); i += 2 {
		events = append(events, r.AddTriplet(true, 2, buf[i], buf[i+1])...)
	}
	events = append(events, r.AddTriplet(false, 2, 0, 0)...) // flush

	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].ServiceNum != 1 {
		t.Errorf("ServiceNum = %d, want 1", events[0].ServiceNum)
	}
	if events[0].Text != "HI" {
		t.Errorf("Text = %q, want \"HI\"", events[0].Text)
	}
}

// TestReassemblerRejectsWrongLength checks a packet whose declared
// length doesn't match the accumulated byte count is dropped rather
// than mis-parsed.
func TestReassemblerRejectsWrongLength(t *testing.T) {
	r := NewReassembler()
	// length_code=6 -> declares 12 bytes, but only 2 are ever supplied.
	events := r.AddTriplet(true, 3, 0x06, 0x2A)
	events = append(events, r.AddTriplet(false, 2, 0, 0)...)
	if len(events) != 0 {
		t.Errorf("got %d events for a truncated packet, want 0", len(events))
	}
}

// TestServiceWindowVisibilityToggle checks DSW/HDW (0x89/0x8A) flip a
// window's Visible flag via the window-bitmap C1 commands.
func TestServiceWindowVisibilityToggle(t *testing.T) {
	s := NewService(1)
	s.defineWindow(0, []byte{0x20, 0x00, 0x00, 0x00, 0x1F, 0x00})
	if !s.windows[0].Visible {
		t.Fatal("window not visible after defineWindow with visible bit set")
	}

	s.displayWindows(0x01, false) // HDW bitmap bit0 -> window0
	if s.windows[0].Visible {
		t.Error("window still visible after HDW")
	}

	s.displayWindows(0x01, true) // DSW bitmap bit0 -> window0
	if !s.windows[0].Visible {
		t.Error("window not visible after DSW")
	}
}

// TestWriteCharAdvancesPenLeftToRight checks the default print direction
// wraps characters across columns without crossing rows automatically.
func TestWriteCharAdvancesPenLeftToRight(t *testing.T) {
	s := NewService(1)
	s.defineWindow(0, []byte{0x20, 0x00, 0x00, 0x00, 0x03, 0x00}) // 4 cols
	s.currentWindow = 0

	s.writeChar('A')
	s.writeChar('B')
	w := s.windows[0]
	if w.Rows[0][0] != 'A' || w.Rows[0][1] != 'B' {
		t.Errorf("row0 = %q, want \"AB...\"", w.Rows[0][:4])
	}
	if w.PenCol != 2 {
		t.Errorf("PenCol = %d, want 2", w.PenCol)
	}
}
