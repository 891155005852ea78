package xds

import "testing"

// TestProgramNamePacket feeds a complete Current/ProgramName XDS packet
// (start code 0x01,0x01 then "News" as two text pairs) and checks the
// checksum validates and the name decodes, hand-computed per
// do_end_of_xds's checksum formula: cs = (128 - sum(bytes)%128) & 0x7F.
func TestProgramNamePacket(t *testing.T) {
	d := NewDecoder()
	d.ProcessBytes(0x01, 0x01) // start: class=Current, type=1 (Program Name)
	d.ProcessBytes('N', 'e')
	d.ProcessBytes('w', 's')

	ev, ok := d.EndOfPacket(0x52)
	if !ok {
		t.Fatal("EndOfPacket reported checksum mismatch, want match")
	}
	if ev.Class != ClassCurrent || ev.Type != 1 {
		t.Errorf("Class/Type = %v/%d, want ClassCurrent/1", ev.Class, ev.Type)
	}
	if ev.ProgramName != "News" {
		t.Errorf("ProgramName = %q, want \"News\"", ev.ProgramName)
	}
	if d.ProgramName() != "News" {
		t.Errorf("d.ProgramName() = %q, want \"News\"", d.ProgramName())
	}
}

// TestCallLettersPacket mirrors TestProgramNamePacket for the
// ClassChannel/call-letters packet that carries station call letters.
func TestCallLettersPacket(t *testing.T) {
	d := NewDecoder()
	d.ProcessBytes(0x05, 0x02) // start: class=Channel, type=2 (Call Letters)
	d.ProcessBytes('W', 'X')
	d.ProcessBytes('Y', 'Z')

	ev, ok := d.EndOfPacket(0x08)
	if !ok {
		t.Fatal("EndOfPacket reported checksum mismatch, want match")
	}
	if ev.CallLetters != "WXYZ" {
		t.Errorf("CallLetters = %q, want \"WXYZ\"", ev.CallLetters)
	}
	if d.CallLetters() != "WXYZ" {
		t.Errorf("d.CallLetters() = %q, want \"WXYZ\"", d.CallLetters())
	}
}

// TestEndOfPacketRejectsBadChecksum checks a packet whose checksum
// doesn't validate is dropped (spec.md invariant 6) rather than
// surfaced with garbage text.
func TestEndOfPacketRejectsBadChecksum(t *testing.T) {
	d := NewDecoder()
	d.ProcessBytes(0x01, 0x01)
	d.ProcessBytes('N', 'e')
	d.ProcessBytes('w', 's')

	if _, ok := d.EndOfPacket(0x00); ok {
		t.Error("EndOfPacket accepted a wrong checksum")
	}
}

// TestEndOfPacketWithoutStartIsNoop checks EndOfPacket before any
// ProcessBytes start code is a safe no-op.
func TestEndOfPacketWithoutStartIsNoop(t *testing.T) {
	d := NewDecoder()
	if _, ok := d.EndOfPacket(0x00); ok {
		t.Error("EndOfPacket on an empty decoder reported success")
	}
}

func TestStripXDSTextTrimsTrailingSpacesAndParity(t *testing.T) {
	got := stripXDSText([]byte{0xC1, 0xC2, ' ', ' '}) // 'A'|0x80, 'B'|0x80, trailing spaces
	if got != "AB" {
		t.Errorf("stripXDSText = %q, want \"AB\"", got)
	}
}
